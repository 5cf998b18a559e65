package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kmwangi/pesalend/pkg/models"
)

var timeNow = time.Now

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

// loanResponse embeds the loan plus its derived money views so clients
// do not re-implement the arithmetic.
type loanResponse struct {
	*models.Loan
	Interest         decimal.Decimal `json:"interest"`
	TotalDue         decimal.Decimal `json:"total_due"`
	Balance          decimal.Decimal `json:"balance"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	ProgressPercent  decimal.Decimal `json:"progress_percent"`
}

func loanView(loan *models.Loan) loanResponse {
	return loanResponse{
		Loan:             loan,
		Interest:         loan.Interest(),
		TotalDue:         loan.TotalDue(),
		Balance:          loan.Balance(),
		RemainingBalance: loan.RemainingBalance(),
		ProgressPercent:  loan.ProgressPercent(),
	}
}

func loanViews(loans []*models.Loan) []loanResponse {
	views := make([]loanResponse, len(loans))
	for i, loan := range loans {
		views[i] = loanView(loan)
	}
	return views
}
