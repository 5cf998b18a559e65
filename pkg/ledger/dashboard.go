package ledger

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kmwangi/pesalend/pkg/models"
)

var oneHundred = decimal.NewFromInt(100)

// growthWindow is the trailing window used for portfolio growth.
const growthWindow = 30 * 24 * time.Hour

// BorrowerSummary is the borrower dashboard's headline figures.
type BorrowerSummary struct {
	TotalBorrowed    decimal.Decimal `json:"total_borrowed"`
	ActiveLoans      int             `json:"active_loans"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
}

// BorrowerSummary computes the borrower's totals across all loans.
func (l *Ledger) BorrowerSummary(borrowerID uuid.UUID) (*BorrowerSummary, error) {
	loans, err := l.storage.ListLoansByBorrower(borrowerID)
	if err != nil {
		return nil, err
	}

	summary := &BorrowerSummary{
		TotalBorrowed:    decimal.Zero,
		TotalOutstanding: decimal.Zero,
	}
	for _, loan := range loans {
		summary.TotalBorrowed = summary.TotalBorrowed.Add(loan.Amount)
		if loan.Status == models.LoanActive && !loan.Closed {
			summary.ActiveLoans++
			summary.TotalOutstanding = summary.TotalOutstanding.Add(loan.RemainingBalance())
		}
	}
	return summary, nil
}

// PurposeShare is one slice of the portfolio composition breakdown.
type PurposeShare struct {
	Purpose string          `json:"purpose"`
	Amount  decimal.Decimal `json:"amount"`
	Percent decimal.Decimal `json:"percent"`
}

// LenderPortfolio is the lender dashboard's derived statistics. All
// figures are recomputed per request and hold no independent state.
type LenderPortfolio struct {
	TotalFunded        decimal.Decimal `json:"total_funded"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
	ExpectedInterest   decimal.Decimal `json:"expected_interest"`
	TotalLoans         int             `json:"total_loans"`
	GrowthPercent      decimal.Decimal `json:"growth_percent"`
	Composition        []PurposeShare  `json:"composition"`
}

// LenderPortfolio computes totals, 30-day growth, and the purpose
// composition (top 5 by funded amount) over the lender's loans.
func (l *Ledger) LenderPortfolio(lenderID uuid.UUID) (*LenderPortfolio, error) {
	loans, err := l.storage.ListLoansByLender(lenderID)
	if err != nil {
		return nil, err
	}

	p := &LenderPortfolio{
		TotalFunded:        decimal.Zero,
		OutstandingBalance: decimal.Zero,
		ExpectedInterest:   decimal.Zero,
		GrowthPercent:      decimal.Zero,
		TotalLoans:         len(loans),
	}

	cutoff := l.now().Add(-growthWindow)
	recent, older := decimal.Zero, decimal.Zero
	byPurpose := make(map[string]decimal.Decimal)

	for _, loan := range loans {
		p.TotalFunded = p.TotalFunded.Add(loan.Amount)
		p.OutstandingBalance = p.OutstandingBalance.Add(loan.RemainingBalance())
		p.ExpectedInterest = p.ExpectedInterest.Add(loan.Interest())

		if loan.FundedDate.Before(cutoff) {
			older = older.Add(loan.Amount)
		} else {
			recent = recent.Add(loan.Amount)
		}
		byPurpose[loan.Purpose] = byPurpose[loan.Purpose].Add(loan.Amount)
	}

	switch {
	case older.IsPositive():
		p.GrowthPercent = recent.Div(older).Mul(oneHundred).Round(2)
	case recent.IsPositive():
		p.GrowthPercent = oneHundred
	}

	p.Composition = topPurposes(byPurpose, p.TotalFunded, 5)
	return p, nil
}

// topPurposes ranks purposes by funded amount descending and returns
// the top n with their share of the total.
func topPurposes(byPurpose map[string]decimal.Decimal, total decimal.Decimal, n int) []PurposeShare {
	shares := make([]PurposeShare, 0, len(byPurpose))
	for purpose, amount := range byPurpose {
		share := PurposeShare{Purpose: purpose, Amount: amount, Percent: decimal.Zero}
		if total.IsPositive() {
			share.Percent = amount.Div(total).Mul(oneHundred).Round(2)
		}
		shares = append(shares, share)
	}

	sort.Slice(shares, func(i, j int) bool {
		if !shares[i].Amount.Equal(shares[j].Amount) {
			return shares[i].Amount.GreaterThan(shares[j].Amount)
		}
		return shares[i].Purpose < shares[j].Purpose
	})

	if len(shares) > n {
		shares = shares[:n]
	}
	return shares
}
