package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"cashflow/internal/log"
	"cashflow/internal/middleware/ratelimit"
	"cashflow/internal/middleware/security"
	"cashflow/internal/middleware/trace"
	"cashflow/internal/services"
)

const apiPrefix = "/api"

// Pinger reports whether the storage backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options tunes the server. Zero values fall back to defaults; a nil
// Detector trusts loopback proxies only.
type Options struct {
	RateLimitPerMinute int
	Logger             *log.Logger
	Detector           *security.Detector
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
}

// Server serves the ledger and forecast JSON API.
type Server struct {
	http.Server

	ledger    *services.LedgerService
	forecasts *services.ForecastService
	pinger    Pinger

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	logger   *log.Logger
	started  time.Time

	stopOnce sync.Once
}

// NewServer wires routes and middleware. pinger may be nil, in which case
// readiness only reports the process as up.
func NewServer(addr string, ledger *services.LedgerService, forecasts *services.ForecastService, pinger Pinger, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	s := &Server{
		ledger:    ledger,
		forecasts: forecasts,
		pinger:    pinger,
		detector:  opts.Detector,
		logger:    logger.WithComponent(log.ComponentHTTP),
		started:   time.Now(),
	}
	if s.detector == nil {
		s.detector = NewDetector()
	}
	s.limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute})
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       withDefault(opts.ReadTimeout, 10*time.Second),
		WriteTimeout:      withDefault(opts.WriteTimeout, 15*time.Second),
		IdleTimeout:       withDefault(opts.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    1 << 16,
	}
	return s
}

func withDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		NotFoundError("route not found").Write(w)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		MethodNotAllowedError().Write(w)
	})

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)

	api := r.PathPrefix(apiPrefix).Subrouter()
	api.Use(s.limiter.Middleware(s.detector.ExtractClientIP, ratelimit.ReadOnly, func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.detector.ExtractClientIP(r),
			log.FieldPath, r.URL.Path)
		TooManyRequestsError().Write(w)
	}))

	api.HandleFunc("/accounts", s.handleListAccounts).Methods(http.MethodGet)
	api.HandleFunc("/accounts", s.handleCreateAccount).Methods(http.MethodPost)
	api.HandleFunc("/accounts/{id}", s.handleGetAccount).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{id}", s.handleUpdateAccount).Methods(http.MethodPut)
	api.HandleFunc("/accounts/{id}", s.handleDeleteAccount).Methods(http.MethodDelete)

	api.HandleFunc("/transactions", s.handleListTransactions).Methods(http.MethodGet)
	api.HandleFunc("/transactions", s.handleCreateTransaction).Methods(http.MethodPost)
	api.HandleFunc("/transactions/{id}", s.handleGetTransaction).Methods(http.MethodGet)
	api.HandleFunc("/transactions/{id}", s.handleUpdateTransaction).Methods(http.MethodPut)
	api.HandleFunc("/transactions/{id}", s.handleDeleteTransaction).Methods(http.MethodDelete)
	api.HandleFunc("/transactions/{id}/exceptions", s.handleListExceptions).Methods(http.MethodGet)
	api.HandleFunc("/transactions/{id}/exceptions/{date}", s.handlePutException).Methods(http.MethodPut)
	api.HandleFunc("/transactions/{id}/exceptions/{date}", s.handleDeleteException).Methods(http.MethodDelete)

	api.HandleFunc("/credit-cards", s.handleListCards).Methods(http.MethodGet)
	api.HandleFunc("/credit-cards", s.handleCreateCard).Methods(http.MethodPost)
	api.HandleFunc("/credit-cards/{id}", s.handleGetCard).Methods(http.MethodGet)
	api.HandleFunc("/credit-cards/{id}", s.handleUpdateCard).Methods(http.MethodPut)
	api.HandleFunc("/credit-cards/{id}", s.handleDeleteCard).Methods(http.MethodDelete)
	api.HandleFunc("/credit-cards/{id}/invoices", s.handleListInvoices).Methods(http.MethodGet)
	api.HandleFunc("/credit-cards/{id}/invoices/{month}", s.handlePutInvoice).Methods(http.MethodPut)
	api.HandleFunc("/credit-cards/{id}/invoices/{month}", s.handleDeleteInvoice).Methods(http.MethodDelete)
	api.HandleFunc("/credit-cards/{id}/invoices/{month}/breakdown", s.handleInvoiceBreakdown).Methods(http.MethodGet)

	api.HandleFunc("/timeline", s.handleTimeline).Methods(http.MethodGet)
	api.HandleFunc("/kpis", s.handleKPIs).Methods(http.MethodGet)
	api.HandleFunc("/balance/projection", s.handleProjection).Methods(http.MethodGet)
	api.HandleFunc("/balance/simulate", s.handleSimulate).Methods(http.MethodPost)
	api.HandleFunc("/forecasts/snapshots", s.handleSnapshots).Methods(http.MethodGet)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	// Outermost first: tracing assigns the request id the logger picks up.
	var h http.Handler = r
	h = s.detectSuspicious(h)
	h = log.RequestIDMiddleware(trace.FromRequest)(h)
	h = log.Middleware(s.logger)(h)
	h = headers.Middleware(h)
	h = s.tracer.Middleware(h)
	return h
}

// detectSuspicious logs requests outside the API surface. They are still
// served; routing and body decoding reject what they cannot handle.
func (s *Server) detectSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reason, ok := s.detector.Inspect(r); ok {
			log.FromContext(r.Context()).WithComponent(log.ComponentSecurity).WarnContext(r.Context(), "Suspicious request detected",
				log.FieldReason, string(reason),
				log.FieldClientIP, s.detector.ExtractClientIP(r),
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldUserAgent, r.UserAgent())
		}
		next.ServeHTTP(w, r)
	})
}

// NewDetector returns a detector sized to this server's routes and body
// limit.
func NewDetector() *security.Detector {
	return security.NewDetector(security.Config{
		APIPrefix:    apiPrefix,
		PublicPaths:  []string{"/healthz", "/readyz", "/metrics"},
		MaxBodyBytes: maxBodyBytes,
	})
}

// Shutdown stops accepting requests and releases the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(s.limiter.Stop)
	return s.Server.Shutdown(ctx)
}
