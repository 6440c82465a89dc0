package http

import (
	"strings"

	"cashflow/internal/core"
)

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func sanitizeTransaction(tx *core.Transaction) {
	tx.Description = sanitizeInput(tx.Description)
	tx.SubscriptionCardID = strings.TrimSpace(tx.SubscriptionCardID)
}

func sanitizeAccount(a *core.BankAccount) {
	a.Name = sanitizeInput(a.Name)
	a.Bank = sanitizeInput(a.Bank)
}

func sanitizeCard(c *core.CreditCard) {
	c.Name = sanitizeInput(c.Name)
	c.BankID = strings.TrimSpace(c.BankID)
	c.Color = sanitizeInput(c.Color)
}
