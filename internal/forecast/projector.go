package forecast

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"cashflow/internal/core"
)

// Breakdown itemizes how a projected balance was reached.
type Breakdown struct {
	InitialBalance      core.Money `json:"initial_balance"`
	Income              core.Money `json:"income"`
	FixedExpense        core.Money `json:"fixed_expense"`
	VariableExpense     core.Money `json:"variable_expense"`
	SubscriptionExpense core.Money `json:"subscription_expense"`
	Invoices            core.Money `json:"invoice_total"`
}

// Projection is the balance expected on the window end date.
type Projection struct {
	Window           Window       `json:"window"`
	CurrentBalance   core.Money   `json:"current_balance"`
	ProjectedBalance core.Money   `json:"projected_balance"`
	Breakdown        Breakdown    `json:"breakdown"`
	Totals           PeriodTotals `json:"totals"`
	Warnings         []Warning    `json:"warnings"`
}

// CurrentBalance sums the balances of all accounts.
func CurrentBalance(accounts []core.BankAccount) core.Money {
	var total core.Money
	for _, a := range accounts {
		total = total.Add(a.Balance)
	}
	return total
}

// Project computes the balance on target starting from the accounts' current
// balance and applying every occurrence and invoice due in [today, target].
// Account balances dated before today are used as-is and flagged stale.
func Project(l Ledger, today, target time.Time) (Projection, error) {
	w := NewWindow(today, target)
	if w.Empty() {
		return Projection{}, fmt.Errorf("%w: target %s is before %s", ErrInvalidWindow, w.End, w.Start)
	}

	occs, invoices, warnings := Collect(l, w)
	totals := Aggregate(occs, invoices)
	current := CurrentBalance(l.Accounts)

	for _, a := range l.Accounts {
		if !a.BalanceDate.IsZero() && a.BalanceDate.Before(w.Start.Time) {
			warnings = append(warnings, Warning{
				Code:     WarnStaleBalance,
				SourceID: a.ID,
				Message:  fmt.Sprintf("balance of %s dated %s, before %s", a.Name, a.BalanceDate, w.Start),
			})
		}
	}
	if warnings == nil {
		warnings = []Warning{}
	}

	return Projection{
		Window:           w,
		CurrentBalance:   current,
		ProjectedBalance: current.Add(totals.Net),
		Breakdown: Breakdown{
			InitialBalance:      current,
			Income:              totals.Income,
			FixedExpense:        totals.FixedExpense,
			VariableExpense:     totals.VariableExpense,
			SubscriptionExpense: totals.SubscriptionExpense,
			Invoices:            totals.Invoices,
		},
		Totals:   totals,
		Warnings: warnings,
	}, nil
}

type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// mediumRiskShare is the share of the current balance below which a
// non-negative outcome is still considered risky.
var mediumRiskShare = decimal.NewFromFloat(0.10)

// Simulation is the outcome of a hypothetical purchase.
type Simulation struct {
	Amount              core.Money `json:"amount"`
	PurchaseDate        core.Date  `json:"purchase_date"`
	TargetDate          core.Date  `json:"target_date"`
	CurrentBalance      core.Money `json:"current_balance"`
	ProjectedBalance    core.Money `json:"projected_balance"`
	NewProjectedBalance core.Money `json:"new_projected_balance"`
	CanAfford           bool       `json:"can_afford"`
	Risk                RiskLevel  `json:"risk_level"`
	// PercentOfBalance is nil when the current balance is zero.
	PercentOfBalance *float64  `json:"percent_of_balance"`
	Warnings         []Warning `json:"warnings"`
}

// Simulate projects the balance one month after purchaseDate and subtracts
// amount from it.
func Simulate(l Ledger, today time.Time, amount core.Money, purchaseDate time.Time) (Simulation, error) {
	if err := amount.Validate(); err != nil {
		return Simulation{}, err
	}
	purchase := core.DateOf(purchaseDate)
	target := purchase.AddMonths(1)

	p, err := Project(l, today, target.Time)
	if err != nil {
		return Simulation{}, err
	}

	after := p.ProjectedBalance.Sub(amount)
	s := Simulation{
		Amount:              amount,
		PurchaseDate:        purchase,
		TargetDate:          target,
		CurrentBalance:      p.CurrentBalance,
		ProjectedBalance:    p.ProjectedBalance,
		NewProjectedBalance: after,
		CanAfford:           !after.IsNegative(),
		Risk:                riskOf(after, p.CurrentBalance),
		Warnings:            p.Warnings,
	}
	if !p.CurrentBalance.IsZero() {
		pct := amount.Amount.Div(p.CurrentBalance.Amount).Mul(decimal.NewFromInt(100)).Round(2).InexactFloat64()
		s.PercentOfBalance = &pct
	}
	return s, nil
}

func riskOf(after, current core.Money) RiskLevel {
	switch {
	case after.IsNegative():
		return RiskHigh
	case after.Amount.LessThan(current.Amount.Mul(mediumRiskShare)):
		return RiskMedium
	default:
		return RiskLow
	}
}
