package security

import (
	"fmt"
	"mime"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
)

// Reason names the check a flagged request failed.
type Reason string

const (
	ReasonUnusualMethod  Reason = "unusual_method"
	ReasonLongURL        Reason = "long_url"
	ReasonTraversal      Reason = "path_traversal"
	ReasonUnknownSurface Reason = "unknown_surface"
	ReasonBodyTooLarge   Reason = "body_too_large"
	ReasonNonJSONBody    Reason = "non_json_body"
	ReasonForwardChain   Reason = "forward_chain"
)

// DetectionMetrics tracks security detection events
type DetectionMetrics struct {
	SuspiciousRequests int64
	InvalidIPAttempts  int64
}

// Config describes the surface the detector guards: JSON endpoints under
// APIPrefix, a few public paths outside it, and the largest body a write
// endpoint accepts. Zero values fall back to the API defaults.
type Config struct {
	APIPrefix      string
	PublicPaths    []string
	MaxBodyBytes   int64
	MaxURLLength   int
	MaxForwardHops int
}

func (c Config) withDefaults() Config {
	if c.APIPrefix == "" {
		c.APIPrefix = "/api"
	}
	if c.PublicPaths == nil {
		c.PublicPaths = []string{"/healthz", "/readyz", "/metrics"}
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 1 << 20
	}
	if c.MaxURLLength <= 0 {
		c.MaxURLLength = 2048
	}
	if c.MaxForwardHops <= 0 {
		c.MaxForwardHops = 5
	}
	return c
}

var unusualMethods = []string{"TRACE", "TRACK", "DEBUG", "CONNECT"}

var traversalMarkers = []string{"../", "..\\", "%2e%2e", "\x00"}

// Detector flags requests that fall outside the JSON API surface and
// resolves client addresses behind trusted proxies.
type Detector struct {
	cfg     Config
	metrics DetectionMetrics

	mu             sync.RWMutex
	trustedProxies []*net.IPNet
}

// NewDetector creates a detector that trusts only loopback proxies until
// more are added with AddTrustedProxy.
func NewDetector(cfg Config) *Detector {
	d := &Detector{cfg: cfg.withDefaults()}
	if err := d.AddTrustedProxy("127.0.0.0/8"); err != nil {
		panic(err)
	}
	return d
}

// Inspect reports the first check r fails.
func (d *Detector) Inspect(r *http.Request) (Reason, bool) {
	reason, ok := d.inspect(r)
	if ok {
		atomic.AddInt64(&d.metrics.SuspiciousRequests, 1)
	}
	return reason, ok
}

func (d *Detector) inspect(r *http.Request) (Reason, bool) {
	if slices.Contains(unusualMethods, r.Method) {
		return ReasonUnusualMethod, true
	}
	if len(r.URL.String()) > d.cfg.MaxURLLength {
		return ReasonLongURL, true
	}
	if hasTraversal(r.URL) {
		return ReasonTraversal, true
	}

	path := r.URL.Path
	inAPI := path == d.cfg.APIPrefix || strings.HasPrefix(path, d.cfg.APIPrefix+"/")
	if !inAPI && !slices.Contains(d.cfg.PublicPaths, path) {
		return ReasonUnknownSurface, true
	}

	if inAPI && isWrite(r.Method) {
		if r.ContentLength > d.cfg.MaxBodyBytes {
			return ReasonBodyTooLarge, true
		}
		if r.ContentLength != 0 && !isJSON(r.Header.Get("Content-Type")) {
			return ReasonNonJSONBody, true
		}
	}

	if xff := r.Header.Get("X-Forwarded-For"); strings.Count(xff, ",") > d.cfg.MaxForwardHops {
		return ReasonForwardChain, true
	}
	return "", false
}

func hasTraversal(u *url.URL) bool {
	raw := strings.ToLower(u.EscapedPath())
	for _, m := range traversalMarkers {
		if strings.Contains(u.Path, m) || strings.Contains(raw, m) {
			return true
		}
	}
	values, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return true
	}
	for key, vs := range values {
		for _, v := range append(vs, key) {
			for _, m := range traversalMarkers {
				if strings.Contains(v, m) {
					return true
				}
			}
		}
	}
	return false
}

func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "application/json"
}

// ExtractClientIP extracts the real client IP, validating forwarded headers
func (d *Detector) ExtractClientIP(r *http.Request) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}

	parsedDirectIP := net.ParseIP(directIP)
	if parsedDirectIP == nil || !d.isTrustedProxy(parsedDirectIP) {
		return directIP
	}

	// X-Forwarded-For lists the originating client first.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		clientIP, _, _ := strings.Cut(xff, ",")
		clientIP = strings.TrimSpace(clientIP)
		if net.ParseIP(clientIP) != nil {
			return clientIP
		}
		atomic.AddInt64(&d.metrics.InvalidIPAttempts, 1)
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if net.ParseIP(xri) != nil {
			return xri
		}
		atomic.AddInt64(&d.metrics.InvalidIPAttempts, 1)
	}

	return directIP
}

func (d *Detector) isTrustedProxy(ip net.IP) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, network := range d.trustedProxies {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// GetMetrics returns current security metrics
func (d *Detector) GetMetrics() DetectionMetrics {
	return DetectionMetrics{
		SuspiciousRequests: atomic.LoadInt64(&d.metrics.SuspiciousRequests),
		InvalidIPAttempts:  atomic.LoadInt64(&d.metrics.InvalidIPAttempts),
	}
}

// AddTrustedProxy adds a trusted proxy network
func (d *Detector) AddTrustedProxy(cidr string) error {
	_, network, err := net.ParseCIDR(strings.TrimSpace(cidr))
	if err != nil {
		return fmt.Errorf("invalid trusted proxy CIDR %q: %w", cidr, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, existing := range d.trustedProxies {
		if existing.String() == network.String() {
			return nil
		}
	}
	d.trustedProxies = append(d.trustedProxies, network)
	return nil
}
