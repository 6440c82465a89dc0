package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cashflow/internal/core"
	"cashflow/internal/forecast"
	"cashflow/internal/log"
	"cashflow/internal/services"
	"cashflow/internal/storage/memory"
)

var fixedNow = time.Date(2025, 1, 10, 9, 30, 0, 0, time.UTC)

func seededStore() *memory.Store {
	jan, _ := core.ParseMonth("2025-01")
	return memory.NewFromSeed(memory.Seed{
		Accounts: []core.BankAccount{{
			ID: "acc", Name: "Checking", AccountType: core.Checking,
			Balance: core.MustMoney("1000.00"), BalanceDate: core.NewDate(2025, 1, 10),
		}},
		Transactions: []core.Transaction{
			{ID: "salary", Description: "Salary", Amount: core.MustMoney("5000.00"), Type: core.Income, IsRecurring: true, Day: 15},
			{ID: "rent", Description: "Rent", Amount: core.MustMoney("1200.00"), Type: core.Expense, ExpenseType: core.Fixed, IsRecurring: true, Day: 20},
			{ID: "sub", Description: "Streaming", Amount: core.MustMoney("39.90"), Type: core.Expense, ExpenseType: core.Subscription,
				IsRecurring: true, SubscriptionCardID: "visa", SubscriptionBillingDay: 2, SubscriptionCardDueDay: 10},
			{ID: "bonus", Description: "Bonus", Amount: core.MustMoney("250.00"), Type: core.Income, Date: core.NewDate(2025, 3, 1)},
		},
		CreditCards: []core.CreditCard{{ID: "visa", Name: "Visa", ClosingDay: 3, DueDay: 10}},
		Invoices:    []core.CreditCardInvoice{{ID: "inv", CreditCardID: "visa", Month: jan, Value: core.MustMoney("700")}},
	})
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

func newTestServer(t *testing.T, opts Options) (*Server, *memory.Store) {
	t.Helper()
	store := seededStore()
	if opts.Logger == nil {
		opts.Logger = log.New(log.Config{Output: io.Discard})
	}
	ledger := services.NewLedgerService(store, nil)
	forecasts := services.NewForecastService(store, store).WithClock(func() time.Time { return fixedNow })
	s := NewServer(":0", ledger, forecasts, store, opts)
	t.Cleanup(func() { s.limiter.Stop() })
	return s, store
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(bytes.NewReader(rr.Body.Bytes())).Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	rr := do(t, s, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("/healthz status = %d", rr.Code)
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" || rr.Header().Get("X-Request-ID") == "" {
		t.Errorf("missing middleware headers: %v", rr.Header())
	}

	rr = do(t, s, http.MethodGet, "/readyz", "")
	ready := decode[map[string]any](t, rr)
	if rr.Code != http.StatusOK || ready["status"] != "ready" {
		t.Errorf("/readyz = %d %v", rr.Code, ready)
	}

	s.pinger = failingPinger{}
	rr = do(t, s, http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("/readyz with failing storage = %d, want 503", rr.Code)
	}

	rr = do(t, s, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "cashflow_http_requests_total") {
		t.Errorf("/metrics = %d %q", rr.Code, rr.Body.String())
	}
}

func TestAccountsCRUD(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	rr := do(t, s, http.MethodPost, "/api/accounts",
		`{"name":"  Savings ","bank":"Inter","account_type":"savings","balance":"250.5","balance_date":"2025-01-09"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rr.Code, rr.Body.String())
	}
	created := decode[core.BankAccount](t, rr)
	if created.ID == "" || created.Name != "Savings" || created.Balance.String() != "250.50" {
		t.Errorf("created = %+v", created)
	}
	if loc := rr.Header().Get("Location"); loc != "/api/accounts/"+created.ID {
		t.Errorf("Location = %q", loc)
	}

	rr = do(t, s, http.MethodPut, "/api/accounts/"+created.ID,
		`{"name":"Savings","account_type":"savings","balance":300,"balance_date":"2025-01-10"}`)
	if rr.Code != http.StatusOK || decode[core.BankAccount](t, rr).Balance.String() != "300.00" {
		t.Errorf("update = %d %s", rr.Code, rr.Body.String())
	}

	rr = do(t, s, http.MethodGet, "/api/accounts", "")
	if list := decode[[]core.BankAccount](t, rr); len(list) != 2 {
		t.Errorf("list = %+v", list)
	}

	if rr = do(t, s, http.MethodDelete, "/api/accounts/"+created.ID, ""); rr.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rr.Code)
	}
	if rr = do(t, s, http.MethodGet, "/api/accounts/"+created.ID, ""); rr.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d", rr.Code)
	}
}

func TestTransactionsAndExceptions(t *testing.T) {
	s, store := newTestServer(t, Options{})

	rr := do(t, s, http.MethodPost, "/api/transactions",
		`{"description":"Gym","amount":"89.90","type":"expense","expense_type":"subscription","is_recurring":true,"subscription_card":"visa","subscription_billing_day":5}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rr.Code, rr.Body.String())
	}
	if tx := decode[core.Transaction](t, rr); tx.SubscriptionCardDueDay != 10 {
		t.Errorf("due day = %d, want copied from card", tx.SubscriptionCardDueDay)
	}

	rr = do(t, s, http.MethodPut, "/api/transactions/rent/exceptions/2025-02-20",
		`{"action":"edit","override_amount":1300,"override_description":"Rent adjusted"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("put exception status = %d: %s", rr.Code, rr.Body.String())
	}
	exs, _ := store.ListTransactionExceptions(context.Background(), "rent")
	if len(exs) != 1 || exs[0].OverrideAmount == nil || exs[0].OverrideAmount.String() != "1300.00" {
		t.Errorf("stored exceptions = %+v", exs)
	}

	rr = do(t, s, http.MethodGet, "/api/transactions/rent/exceptions", "")
	if list := decode[[]core.RecurrenceException](t, rr); len(list) != 1 {
		t.Errorf("list exceptions = %+v", list)
	}

	if rr = do(t, s, http.MethodDelete, "/api/transactions/rent/exceptions/2025-02-20", ""); rr.Code != http.StatusNoContent {
		t.Errorf("delete exception status = %d", rr.Code)
	}
	if rr = do(t, s, http.MethodPut, "/api/transactions/bonus/exceptions/2025-03-01", `{"action":"delete"}`); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("exception on single transaction status = %d, want 422", rr.Code)
	}
}

func TestInvoices(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	rr := do(t, s, http.MethodPut, "/api/credit-cards/visa/invoices/2025-02", `{"value":"310.25"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("put invoice status = %d: %s", rr.Code, rr.Body.String())
	}
	inv := decode[core.CreditCardInvoice](t, rr)
	if inv.ID == "" || inv.Month.String() != "2025-02" || inv.Value.String() != "310.25" {
		t.Errorf("invoice = %+v", inv)
	}

	rr = do(t, s, http.MethodGet, "/api/credit-cards/visa/invoices", "")
	if list := decode[[]core.CreditCardInvoice](t, rr); len(list) != 2 {
		t.Errorf("list invoices = %+v", list)
	}

	rr = do(t, s, http.MethodGet, "/api/credit-cards/visa/invoices/2025-01/breakdown", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("breakdown status = %d: %s", rr.Code, rr.Body.String())
	}
	b := decode[forecast.InvoiceBreakdown](t, rr)
	if b.Invoice.Amount.String() != "700.00" {
		t.Errorf("breakdown = %+v", b)
	}

	if rr = do(t, s, http.MethodDelete, "/api/credit-cards/visa/invoices/2025-02", ""); rr.Code != http.StatusNoContent {
		t.Errorf("delete invoice status = %d", rr.Code)
	}
}

func TestForecastEndpoints(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	rr := do(t, s, http.MethodGet, "/api/balance/projection?date=2025-01-31", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("projection status = %d: %s", rr.Code, rr.Body.String())
	}
	if p := decode[forecast.Projection](t, rr); p.ProjectedBalance.String() != "4060.10" {
		t.Errorf("projected balance = %s, want 4060.10", p.ProjectedBalance)
	}

	rr = do(t, s, http.MethodGet, "/api/timeline?period=current", "")
	if tl := decode[services.TimelineResult](t, rr); len(tl.Entries) != 4 || tl.Window.Start.Key() != "2025-01-01" {
		t.Errorf("timeline = %+v", tl)
	}

	rr = do(t, s, http.MethodGet, "/api/kpis?period=next", "")
	kpis := decode[services.KPIs](t, rr)
	if rr.Code != http.StatusOK || kpis.ProjectedBalance == nil {
		t.Errorf("kpis = %d %+v", rr.Code, kpis)
	}

	rr = do(t, s, http.MethodPost, "/api/balance/simulate", `{"amount":100,"purchase_date":"2025-01-15"}`)
	sim := decode[forecast.Simulation](t, rr)
	if rr.Code != http.StatusOK || sim.Risk != forecast.RiskLow || !sim.CanAfford {
		t.Errorf("simulate = %d %+v", rr.Code, sim)
	}

	rr = do(t, s, http.MethodGet, "/api/forecasts/snapshots?limit=5", "")
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("snapshots = %d %q", rr.Code, rr.Body.String())
	}
}

func TestErrorMapping(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"malformed json", http.MethodPost, "/api/accounts", `{"name":`, http.StatusBadRequest},
		{"empty body", http.MethodPost, "/api/transactions", "", http.StatusBadRequest},
		{"invalid amount", http.MethodPost, "/api/transactions", `{"description":"x","amount":"abc","type":"income"}`, http.StatusUnprocessableEntity},
		{"validation failure", http.MethodPost, "/api/credit-cards", `{"name":"","closing_day":3,"due_day":10}`, http.StatusUnprocessableEntity},
		{"unknown transaction", http.MethodGet, "/api/transactions/nope", "", http.StatusNotFound},
		{"unknown card invoices", http.MethodGet, "/api/credit-cards/nope/invoices", "", http.StatusNotFound},
		{"bad exception date", http.MethodPut, "/api/transactions/rent/exceptions/2025-02-30", `{"action":"delete"}`, http.StatusUnprocessableEntity},
		{"bad month", http.MethodPut, "/api/credit-cards/visa/invoices/2025-13", `{"value":1}`, http.StatusUnprocessableEntity},
		{"bad period", http.MethodGet, "/api/timeline?period=forever", "", http.StatusUnprocessableEntity},
		{"custom without bounds", http.MethodGet, "/api/kpis?period=custom", "", http.StatusUnprocessableEntity},
		{"bad projection date", http.MethodGet, "/api/balance/projection?date=tomorrow", "", http.StatusUnprocessableEntity},
		{"simulate without amount", http.MethodPost, "/api/balance/simulate", `{}`, http.StatusUnprocessableEntity},
		{"bad limit", http.MethodGet, "/api/forecasts/snapshots?limit=abc", "", http.StatusBadRequest},
		{"unknown route", http.MethodGet, "/api/unknown", "", http.StatusNotFound},
		{"wrong method", http.MethodPatch, "/api/accounts", `{}`, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, s, tt.method, tt.path, tt.body)
			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tt.want, rr.Body.String())
			}
			if body := decode[ErrorBody](t, rr); body.Error == "" {
				t.Error("error body is empty")
			}
		})
	}
}

func TestRateLimitAppliesToWrites(t *testing.T) {
	s, _ := newTestServer(t, Options{RateLimitPerMinute: 2})

	for i := 0; i < 2; i++ {
		if rr := do(t, s, http.MethodPost, "/api/credit-cards", `{"name":"Card","closing_day":1,"due_day":8}`); rr.Code != http.StatusCreated {
			t.Fatalf("write %d status = %d", i, rr.Code)
		}
	}
	for i := 0; i < 5; i++ {
		if rr := do(t, s, http.MethodGet, "/api/credit-cards", ""); rr.Code != http.StatusOK {
			t.Fatalf("read %d status = %d", i, rr.Code)
		}
	}
	rr := do(t, s, http.MethodPost, "/api/credit-cards", `{"name":"Card","closing_day":1,"due_day":8}`)
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") == "" {
		t.Errorf("third write = %d, headers %v", rr.Code, rr.Header())
	}
}

func TestSuspiciousRequestsAreCounted(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	if rr := do(t, s, http.MethodGet, "/wp-admin/setup.php", ""); rr.Code != http.StatusNotFound {
		t.Errorf("unknown path status = %d, want 404", rr.Code)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/credit-cards", strings.NewReader("name=Card"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("form body status = %d, want 400", rr.Code)
	}
	do(t, s, http.MethodGet, "/api/kpis", "")

	rr = do(t, s, http.MethodGet, "/metrics", "")
	if !strings.Contains(rr.Body.String(), "cashflow_suspicious_requests_total 2\n") {
		t.Errorf("/metrics = %q, want 2 suspicious requests", rr.Body.String())
	}
}

func TestTrustedProxyKeysRateLimit(t *testing.T) {
	detector := NewDetector()
	if err := detector.AddTrustedProxy("10.0.0.0/8"); err != nil {
		t.Fatal(err)
	}
	s, _ := newTestServer(t, Options{RateLimitPerMinute: 1, Detector: detector})

	write := func(client string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/credit-cards", strings.NewReader(`{"name":"Card","closing_day":1,"due_day":8}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", client)
		req.RemoteAddr = "10.0.0.2:4000"
		rr := httptest.NewRecorder()
		s.Handler.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := write("198.51.100.1"); code != http.StatusCreated {
		t.Fatalf("first client status = %d", code)
	}
	if code := write("198.51.100.2"); code != http.StatusCreated {
		t.Errorf("second client behind the same proxy status = %d, want 201", code)
	}
	if code := write("198.51.100.1"); code != http.StatusTooManyRequests {
		t.Errorf("first client again status = %d, want 429", code)
	}
}

func TestRequestParsing(t *testing.T) {
	q, err := ParsePeriodQuery(map[string][]string{"period": {"custom"}, "start": {"2025-01-05"}, "end": {"2025-02-05"}})
	if err != nil || q.Period != "custom" || q.Start.Key() != "2025-01-05" || q.End.Key() != "2025-02-05" {
		t.Errorf("ParsePeriodQuery() = %+v, %v", q, err)
	}
	if _, err := ParsePeriodQuery(map[string][]string{"start": {"05/01/2025"}}); !core.IsValidationError(err) {
		t.Errorf("ParsePeriodQuery() bad start error = %v", err)
	}

	limits := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"", 0, false},
		{"10", 10, false},
		{"1000", maxSnapshotLimit, false},
		{"0", 0, true},
		{"-3", 0, true},
	}
	for _, tt := range limits {
		got, err := parseLimit(map[string][]string{"limit": {tt.in}}, maxSnapshotLimit)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseLimit(%q) = %d, %v", tt.in, got, err)
		}
	}

	if got := sanitizeInput("  Rent\x00\x07 April\t "); got != "Rent April" {
		t.Errorf("sanitizeInput() = %q", got)
	}
}
