package store

import (
	"errors"

	"github.com/google/uuid"
	"github.com/kmwangi/pesalend/pkg/models"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyProcessed is returned when an application status
	// transition targets an application that is no longer pending.
	ErrAlreadyProcessed = errors.New("application already processed")
	// ErrDuplicateReceipt is returned when a provider payment carries a
	// receipt number already recorded for the loan. Callers treat this
	// as a successful no-op so repeat callback deliveries never
	// double-credit a loan.
	ErrDuplicateReceipt = errors.New("receipt already recorded for loan")
)

// Storage defines the interface for database operations on the loan
// brokering ledger. Multi-row financial mutations are exposed as
// single atomic operations so racing requests cannot observe or
// produce partial state.
type Storage interface {
	CreateUser(user *models.User) error
	GetUser(id uuid.UUID) (*models.User, error)

	CreateApplication(app *models.LoanApplication) error
	GetApplication(id uuid.UUID) (*models.LoanApplication, error)
	ListApplicationsByStatus(status models.ApplicationStatus) ([]*models.LoanApplication, error)
	ListApplicationsByBorrower(borrowerID uuid.UUID) ([]*models.LoanApplication, error)

	// ApproveApplication transitions a pending application to approved
	// and persists the funded loan plus the lender's funding ledger row
	// in one transaction. Returns ErrAlreadyProcessed when the
	// application is not pending; a concurrent double approval yields
	// exactly one loan.
	ApproveApplication(appID, lenderID uuid.UUID, loan *models.Loan, funding *models.Transaction) error

	// RejectApplication transitions a pending application to rejected
	// with lender attribution and no other side effects.
	RejectApplication(appID, lenderID uuid.UUID) error

	GetLoan(id uuid.UUID) (*models.Loan, error)
	ListLoansByBorrower(borrowerID uuid.UUID) ([]*models.Loan, error)
	ListLoansByLender(lenderID uuid.UUID) ([]*models.Loan, error)

	// ApplyPayment runs the repayment state machine against the current
	// loan row and persists the payment and the updated loan in one
	// transaction. The loan is re-read under the write transaction, so
	// a manual repayment racing a provider callback cannot lose an
	// update. Returns the loan as persisted, models.ErrLoanNotActive /
	// models.ErrExceedsBalance / models.ErrInvalidAmount on state-machine
	// rejection, and ErrDuplicateReceipt on a repeated receipt number.
	ApplyPayment(payment *models.LoanPayment) (*models.Loan, error)
	ListPaymentsForLoan(loanID uuid.UUID) ([]*models.LoanPayment, error)

	GetWallet(lenderID uuid.UUID) (*models.LenderWallet, error)

	// Deposit credits the lender's wallet, creating it with a zero
	// balance if absent, and records the deposit ledger row in the same
	// transaction. entry.Amount must be positive.
	Deposit(entry *models.Transaction) (*models.LenderWallet, error)
	ListTransactionsByLender(lenderID uuid.UUID) ([]*models.Transaction, error)

	CreateNotification(note *models.Notification) error
	ListNotificationsForUser(userID uuid.UUID) ([]*models.Notification, error)
	MarkNotificationRead(id, userID uuid.UUID) error

	Close() error
}
