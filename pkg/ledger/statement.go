package ledger

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kmwangi/pesalend/pkg/models"
)

// StatementRow is one line of a lender's transaction statement with
// the running wallet balance as of that entry.
type StatementRow struct {
	Date        string          `json:"date"`
	Time        string          `json:"time"`
	Type        string          `json:"type"`
	Description string          `json:"description"`
	Status      string          `json:"status"`
	Amount      string          `json:"amount"` // explicit sign
	Balance     decimal.Decimal `json:"balance"`
}

// Statement reconstructs the lender's transaction history newest
// first. The running balance is computed oldest to newest — deposits
// credit, funding events debit — then the rows are presented in
// reverse so the most recent entry leads.
func (l *Ledger) Statement(lenderID uuid.UUID) ([]StatementRow, error) {
	entries, err := l.storage.ListTransactionsByLender(lenderID)
	if err != nil {
		return nil, err
	}

	rows := make([]StatementRow, len(entries))
	balance := decimal.Zero

	// entries are newest first; walk from the back so the balance
	// accumulates in chronological order.
	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		sign := "+"
		if entry.Type == models.TransactionFunding {
			sign = "-"
			balance = balance.Sub(entry.Amount)
		} else {
			balance = balance.Add(entry.Amount)
		}

		description := "Wallet deposit"
		if entry.Type == models.TransactionFunding {
			description = entry.Borrower
		}

		rows[i] = StatementRow{
			Date:        entry.Timestamp.Format("2006-01-02"),
			Time:        entry.Timestamp.Format("15:04:05"),
			Type:        string(entry.Type),
			Description: description,
			Status:      entry.Status,
			Amount:      sign + entry.Amount.StringFixed(2),
			Balance:     balance,
		}
	}
	return rows, nil
}

// WriteStatementCSV writes the lender's statement as CSV, newest
// entry first.
func (l *Ledger) WriteStatementCSV(w io.Writer, lenderID uuid.UUID) error {
	rows, err := l.Statement(lenderID)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Date", "Time", "Type", "Borrower/Description", "Status", "Amount", "Balance"}); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, row := range rows {
		record := []string{row.Date, row.Time, row.Type, row.Description, row.Status, row.Amount, row.Balance.StringFixed(2)}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
