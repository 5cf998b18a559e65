// Package finance holds the pure loan arithmetic: the amortized
// installment figure shown to borrowers and the flat interest charge
// the ledger settles against. The two models deliberately coexist;
// see DESIGN.md.
package finance

import (
	"errors"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNonPositivePrincipal = errors.New("principal must be greater than zero")
	ErrInvalidTerm          = errors.New("term must be at least one month")
	ErrNegativeRate         = errors.New("interest rate must not be negative")
)

var oneHundred = decimal.NewFromInt(100)

// MonthlyPayment computes the fixed installment for an amortizing loan
// of the given principal over termMonths at the given annual
// percentage rate, rounded to 2 decimal places.
//
//	r = rate/1200
//	payment = r == 0 ? P/n : (r*P) / (1 - (1+r)^-n)
//
// The power term is evaluated in float64, the same way the schedule
// reference does it; monetary rounding happens in decimal.
func MonthlyPayment(principal decimal.Decimal, termMonths int, annualRate decimal.Decimal) (decimal.Decimal, error) {
	if !principal.IsPositive() {
		return decimal.Zero, ErrNonPositivePrincipal
	}
	if termMonths < 1 {
		return decimal.Zero, ErrInvalidTerm
	}
	if annualRate.IsNegative() {
		return decimal.Zero, ErrNegativeRate
	}

	if annualRate.IsZero() {
		return principal.Div(decimal.NewFromInt(int64(termMonths))).Round(2), nil
	}

	monthlyRate := annualRate.InexactFloat64() / 1200.0
	denom := 1 - math.Pow(1+monthlyRate, -float64(termMonths))
	payment := principal.InexactFloat64() * monthlyRate / denom
	return decimal.NewFromFloat(payment).Round(2), nil
}

// TotalInterest is the flat total interest charge: principal * rate / 100.
// This figure, not the amortization schedule, determines the total due
// and loan closure.
func TotalInterest(principal, annualRate decimal.Decimal) decimal.Decimal {
	return principal.Mul(annualRate).Div(oneHundred).Round(2)
}

// Installment is one period of an amortization schedule.
type Installment struct {
	Period           int             `json:"period"`
	DueDate          time.Time       `json:"due_date"`
	Principal        decimal.Decimal `json:"principal"`
	Interest         decimal.Decimal `json:"interest"`
	Total            decimal.Decimal `json:"total"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
}

// Schedule expands the amortizing payment into a full installment
// schedule starting one month after start. The final row absorbs
// rounding drift so the balance lands exactly on zero.
func Schedule(principal decimal.Decimal, termMonths int, annualRate decimal.Decimal, start time.Time) ([]Installment, error) {
	payment, err := MonthlyPayment(principal, termMonths, annualRate)
	if err != nil {
		return nil, err
	}

	monthlyRate := annualRate.Div(decimal.NewFromInt(1200))
	schedule := make([]Installment, 0, termMonths)
	remaining := principal

	for period := 1; period <= termMonths; period++ {
		interest := remaining.Mul(monthlyRate).Round(2)
		principalPart := payment.Sub(interest)
		total := payment

		if period == termMonths {
			principalPart = remaining
			total = principalPart.Add(interest)
		}

		remaining = remaining.Sub(principalPart)
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}

		schedule = append(schedule, Installment{
			Period:           period,
			DueDate:          start.AddDate(0, period, 0),
			Principal:        principalPart,
			Interest:         interest,
			Total:            total,
			RemainingBalance: remaining,
		})
	}
	return schedule, nil
}
