package http

import (
	"net/http"

	"cashflow/internal/core"
)

const maxSnapshotLimit = 365

type simulateRequest struct {
	Amount       *core.Money `json:"amount"`
	PurchaseDate core.Date   `json:"purchase_date"`
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	q, err := ParsePeriodQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	result, err := s.forecasts.Timeline(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	result.Entries = orEmpty(result.Entries)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleKPIs(w http.ResponseWriter, r *http.Request) {
	q, err := ParsePeriodQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	kpis, err := s.forecasts.KPIs(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, kpis)
}

func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	target, err := parseDateValue("date", r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.forecasts.Project(r.Context(), target)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Amount == nil {
		UnprocessableEntityError(core.ErrInvalidAmount.Error() + ": amount is required").Write(w)
		return
	}
	sim, err := s.forecasts.Simulate(r.Context(), *req.Amount, req.PurchaseDate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sim)
}

func (s *Server) handleInvoiceBreakdown(w http.ResponseWriter, r *http.Request) {
	month, err := parsePathMonth(r, "month")
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := s.forecasts.InvoiceBreakdown(r.Context(), pathVar(r, "id"), month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	b.Charged = orEmpty(b.Charged)
	b.Pending = orEmpty(b.Pending)
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query(), maxSnapshotLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	snaps, err := s.forecasts.Snapshots(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(snaps))
}
