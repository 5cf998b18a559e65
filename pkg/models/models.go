package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrLoanNotActive is returned when a repayment targets a loan that
	// is not active or already closed.
	ErrLoanNotActive = errors.New("loan is not active")
	// ErrInvalidAmount is returned for zero or negative payment amounts.
	ErrInvalidAmount = errors.New("amount must be greater than zero")
	// ErrExceedsBalance is returned when a payment is larger than the
	// loan's outstanding balance (principal plus interest).
	ErrExceedsBalance = errors.New("amount exceeds outstanding balance")
)

// Role classifies a user on the platform.
type Role string

const (
	RoleBorrower Role = "borrower"
	RoleLender   Role = "lender"
	RoleAdmin    Role = "admin"
)

type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// IsLender reports whether the user may fund or reject applications.
func (u *User) IsLender() bool {
	return u.Role == RoleLender || u.Role == RoleAdmin
}

// ApplicationStatus defines the possible states of a loan application.
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApproved ApplicationStatus = "approved"
	ApplicationRejected ApplicationStatus = "rejected"
)

// LoanApplication is a borrower's request for funding. It is created
// pending and transitions to approved or rejected exactly once.
type LoanApplication struct {
	ID               uuid.UUID         `json:"id"`
	BorrowerID       uuid.UUID         `json:"borrower_id"`
	Amount           decimal.Decimal   `json:"amount"`
	Purpose          string            `json:"purpose"`
	DurationMonths   int               `json:"duration_months"`
	MonthlyIncome    decimal.Decimal   `json:"monthly_income"`
	EmploymentStatus string            `json:"employment_status"`
	InterestRate     decimal.Decimal   `json:"interest_rate"` // annual, percent
	Status           ApplicationStatus `json:"status"`
	LenderID         *uuid.UUID        `json:"lender_id,omitempty"`
	SubmittedAt      time.Time         `json:"submitted_at"`
}

// LoanStatus defines the possible states of a funded loan.
type LoanStatus string

const (
	LoanPending   LoanStatus = "Pending"
	LoanActive    LoanStatus = "Active"
	LoanCompleted LoanStatus = "Completed"
)

// Loan is the funded instrument derived from an approved application.
// Interest is a flat charge against principal, fixed at funding time;
// MonthlyPayment is the amortized installment figure shown to the
// borrower, recomputed whenever amount, duration, or rate change.
type Loan struct {
	ID             uuid.UUID       `json:"id"`
	ApplicationID  uuid.UUID       `json:"application_id"`
	BorrowerID     uuid.UUID       `json:"borrower_id"`
	LenderID       uuid.UUID       `json:"lender_id"`
	Amount         decimal.Decimal `json:"amount"`
	Purpose        string          `json:"purpose"`
	DurationMonths int             `json:"duration_months"`
	InterestRate   decimal.Decimal `json:"interest_rate"`
	MonthlyPayment decimal.Decimal `json:"monthly_payment"`
	Status         LoanStatus      `json:"status"`
	PaidAmount     decimal.Decimal `json:"paid_amount"`
	Closed         bool            `json:"closed"`
	FundedDate     time.Time       `json:"funded_date"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

var oneHundred = decimal.NewFromInt(100)

// Interest is the flat total interest charge: amount * rate / 100.
func (l *Loan) Interest() decimal.Decimal {
	return l.Amount.Mul(l.InterestRate).Div(oneHundred).Round(2)
}

// TotalDue is principal plus flat interest.
func (l *Loan) TotalDue() decimal.Decimal {
	return l.Amount.Add(l.Interest())
}

// Balance is the amount still owed including interest. Repayment caps
// are checked against this figure.
func (l *Loan) Balance() decimal.Decimal {
	return l.TotalDue().Sub(l.PaidAmount)
}

// RemainingBalance is the unpaid principal, floored at zero.
func (l *Loan) RemainingBalance() decimal.Decimal {
	rem := l.Amount.Sub(l.PaidAmount)
	if rem.IsNegative() {
		return decimal.Zero
	}
	return rem
}

// ProgressPercent is paid amount as a percentage of the loan amount,
// rounded to 2 decimal places. Zero when the amount is zero.
func (l *Loan) ProgressPercent() decimal.Decimal {
	if l.Amount.IsZero() {
		return decimal.Zero
	}
	return l.PaidAmount.Div(l.Amount).Mul(oneHundred).Round(2)
}

// RecordPayment applies a repayment of the given amount to the loan's
// ledger fields. PaidAmount only ever grows, and the loan completes
// exactly when paid amount reaches principal plus flat interest;
// Closed moves in lockstep with the Completed status. Callers must
// persist the mutated loan and the payment row atomically.
func (l *Loan) RecordPayment(amount decimal.Decimal, now time.Time) error {
	if l.Status != LoanActive || l.Closed {
		return ErrLoanNotActive
	}
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if amount.GreaterThan(l.Balance()) {
		return ErrExceedsBalance
	}

	l.PaidAmount = l.PaidAmount.Add(amount)
	if l.PaidAmount.GreaterThanOrEqual(l.TotalDue()) {
		l.Status = LoanCompleted
		l.Closed = true
	}
	l.UpdatedAt = now
	return nil
}

// PaymentMethod identifies the channel a repayment arrived through.
type PaymentMethod string

const (
	PaymentManual PaymentMethod = "Manual"
	PaymentMpesa  PaymentMethod = "M-Pesa"
)

// LoanPayment is an immutable ledger entry for one confirmed
// repayment. Provider-sourced payments carry the M-Pesa receipt
// number, unique per loan.
type LoanPayment struct {
	ID            uuid.UUID       `json:"id"`
	LoanID        uuid.UUID       `json:"loan_id"`
	PayerID       uuid.UUID       `json:"payer_id"`
	Amount        decimal.Decimal `json:"amount"`
	Method        PaymentMethod   `json:"method"`
	ReceiptNumber string          `json:"receipt_number,omitempty"`
	Phone         string          `json:"phone,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// LenderWallet holds a lender's cash balance. It is created on first
// deposit with a zero balance and only ever grows; loan funding is
// tracked as Transaction rows, not wallet debits.
type LenderWallet struct {
	LenderID  uuid.UUID       `json:"lender_id"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TransactionType classifies a wallet ledger entry.
type TransactionType string

const (
	TransactionDeposit TransactionType = "deposit"
	TransactionFunding TransactionType = "funding"
)

// Transaction is a lender-side ledger entry used for statement
// reconstruction.
type Transaction struct {
	ID        uuid.UUID       `json:"id"`
	LenderID  uuid.UUID       `json:"lender_id"`
	Amount    decimal.Decimal `json:"amount"`
	Type      TransactionType `json:"type"`
	Borrower  string          `json:"borrower,omitempty"` // set on funding rows
	Status    string          `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
}

// NotificationType classifies an in-app notification.
type NotificationType string

const (
	NotificationPayment NotificationType = "payment"
	NotificationOffer   NotificationType = "offer"
	NotificationOther   NotificationType = "other"
)

type Notification struct {
	ID        uuid.UUID        `json:"id"`
	UserID    uuid.UUID        `json:"user_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}
