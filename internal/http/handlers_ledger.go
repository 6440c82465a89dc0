package http

import (
	"net/http"

	"cashflow/internal/core"
)

type exceptionRequest struct {
	Action              core.ExceptionAction `json:"action"`
	OverrideAmount      *core.Money          `json:"override_amount"`
	OverrideDescription *string              `json:"override_description"`
}

type invoiceRequest struct {
	Value core.Money `json:"value"`
}

func orEmpty[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

// Accounts

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.ledger.ListAccounts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(accounts))
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	a, err := s.ledger.GetAccount(r.Context(), pathVar(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var a core.BankAccount
	if err := decodeJSON(w, r, &a); err != nil {
		writeError(w, r, err)
		return
	}
	sanitizeAccount(&a)
	created, err := s.ledger.CreateAccount(r.Context(), a)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).
		Header("Location", "/api/accounts/"+created.ID).
		Body(created).Write(w)
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	var a core.BankAccount
	if err := decodeJSON(w, r, &a); err != nil {
		writeError(w, r, err)
		return
	}
	sanitizeAccount(&a)
	updated, err := s.ledger.UpdateAccount(r.Context(), pathVar(r, "id"), a)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteAccount(r.Context(), pathVar(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// Transactions

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.ledger.ListTransactions(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(txs))
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.ledger.GetTransaction(r.Context(), pathVar(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var tx core.Transaction
	if err := decodeJSON(w, r, &tx); err != nil {
		writeError(w, r, err)
		return
	}
	sanitizeTransaction(&tx)
	created, err := s.ledger.CreateTransaction(r.Context(), tx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).
		Header("Location", "/api/transactions/"+created.ID).
		Body(created).Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var tx core.Transaction
	if err := decodeJSON(w, r, &tx); err != nil {
		writeError(w, r, err)
		return
	}
	sanitizeTransaction(&tx)
	updated, err := s.ledger.UpdateTransaction(r.Context(), pathVar(r, "id"), tx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteTransaction(r.Context(), pathVar(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// Recurrence exceptions

func (s *Server) handleListExceptions(w http.ResponseWriter, r *http.Request) {
	exs, err := s.ledger.ListExceptions(r.Context(), pathVar(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(exs))
}

func (s *Server) handlePutException(w http.ResponseWriter, r *http.Request) {
	date, err := parsePathDate(r, "date")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req exceptionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.OverrideDescription != nil {
		desc := sanitizeInput(*req.OverrideDescription)
		req.OverrideDescription = &desc
	}

	stored, err := s.ledger.PutException(r.Context(), core.RecurrenceException{
		TransactionID:       pathVar(r, "id"),
		Date:                date,
		Action:              req.Action,
		OverrideAmount:      req.OverrideAmount,
		OverrideDescription: req.OverrideDescription,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

func (s *Server) handleDeleteException(w http.ResponseWriter, r *http.Request) {
	date, err := parsePathDate(r, "date")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ledger.DeleteException(r.Context(), pathVar(r, "id"), date); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// Credit cards

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	cards, err := s.ledger.ListCards(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(cards))
}

func (s *Server) handleGetCard(w http.ResponseWriter, r *http.Request) {
	c, err := s.ledger.GetCard(r.Context(), pathVar(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	var c core.CreditCard
	if err := decodeJSON(w, r, &c); err != nil {
		writeError(w, r, err)
		return
	}
	sanitizeCard(&c)
	created, err := s.ledger.CreateCard(r.Context(), c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).
		Header("Location", "/api/credit-cards/"+created.ID).
		Body(created).Write(w)
}

func (s *Server) handleUpdateCard(w http.ResponseWriter, r *http.Request) {
	var c core.CreditCard
	if err := decodeJSON(w, r, &c); err != nil {
		writeError(w, r, err)
		return
	}
	sanitizeCard(&c)
	updated, err := s.ledger.UpdateCard(r.Context(), pathVar(r, "id"), c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteCard(r.Context(), pathVar(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// Invoices

func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	invs, err := s.ledger.ListInvoices(r.Context(), pathVar(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(invs))
}

func (s *Server) handlePutInvoice(w http.ResponseWriter, r *http.Request) {
	month, err := parsePathMonth(r, "month")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req invoiceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	stored, err := s.ledger.PutInvoice(r.Context(), core.CreditCardInvoice{
		CreditCardID: pathVar(r, "id"),
		Month:        month,
		Value:        req.Value,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

func (s *Server) handleDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	month, err := parsePathMonth(r, "month")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ledger.DeleteInvoice(r.Context(), pathVar(r, "id"), month); err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
