// Package ledger implements the loan brokering business logic: the
// application lifecycle, repayment reconciliation, the lender wallet,
// and the read-side dashboard and statement views. Every operation
// takes the acting user explicitly; nothing here reads ambient
// session state.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kmwangi/pesalend/pkg/finance"
	"github.com/kmwangi/pesalend/pkg/models"
	"github.com/kmwangi/pesalend/pkg/mpesa"
	"github.com/kmwangi/pesalend/pkg/store"
)

var (
	// ErrNotLender is returned when a non-lender tries to process an
	// application or fund a wallet.
	ErrNotLender = errors.New("only lenders can perform this action")
)

// DefaultInterestRate is the annual flat rate applied when an
// application does not specify one.
var DefaultInterestRate = decimal.RequireFromString("8.00")

// Ledger handles the business logic for applications, loans, payments,
// and wallets over a Storage implementation.
type Ledger struct {
	storage store.Storage
	logger  *zap.Logger
	now     func() time.Time
}

// NewLedger creates a new Ledger with a given Storage implementation.
func NewLedger(s store.Storage, logger *zap.Logger) *Ledger {
	return &Ledger{
		storage: s,
		logger:  logger,
		now:     time.Now,
	}
}

// ApplicationInput carries the borrower-supplied fields of a new loan
// application.
type ApplicationInput struct {
	Amount           decimal.Decimal
	Purpose          string
	DurationMonths   int
	MonthlyIncome    decimal.Decimal
	EmploymentStatus string
	InterestRate     decimal.Decimal // zero means DefaultInterestRate
}

// SubmitApplication validates and persists a new pending application
// for the borrower.
func (l *Ledger) SubmitApplication(borrower *models.User, in ApplicationInput) (*models.LoanApplication, error) {
	if !in.Amount.IsPositive() {
		return nil, models.ErrInvalidAmount
	}
	if in.DurationMonths < 1 {
		return nil, finance.ErrInvalidTerm
	}
	rate := in.InterestRate
	if rate.IsZero() {
		rate = DefaultInterestRate
	}
	if rate.IsNegative() {
		return nil, finance.ErrNegativeRate
	}

	app := &models.LoanApplication{
		ID:               uuid.New(),
		BorrowerID:       borrower.ID,
		Amount:           in.Amount,
		Purpose:          in.Purpose,
		DurationMonths:   in.DurationMonths,
		MonthlyIncome:    in.MonthlyIncome,
		EmploymentStatus: in.EmploymentStatus,
		InterestRate:     rate,
		Status:           models.ApplicationPending,
		SubmittedAt:      l.now(),
	}
	if err := l.storage.CreateApplication(app); err != nil {
		return nil, fmt.Errorf("failed to store application: %w", err)
	}
	return app, nil
}

// PendingApplications lists applications awaiting a lender decision.
func (l *Ledger) PendingApplications() ([]*models.LoanApplication, error) {
	return l.storage.ListApplicationsByStatus(models.ApplicationPending)
}

// ApproveApplication transitions a pending application to approved and
// creates the funded loan in one atomic step. Only a lender may
// approve; a non-pending application returns store.ErrAlreadyProcessed
// even when two approvals race.
func (l *Ledger) ApproveApplication(actor *models.User, appID uuid.UUID) (*models.Loan, error) {
	if !actor.IsLender() {
		return nil, ErrNotLender
	}

	app, err := l.storage.GetApplication(appID)
	if err != nil {
		return nil, err
	}
	if app.Status != models.ApplicationPending {
		return nil, store.ErrAlreadyProcessed
	}

	monthlyPayment, err := finance.MonthlyPayment(app.Amount, app.DurationMonths, app.InterestRate)
	if err != nil {
		return nil, fmt.Errorf("failed to compute monthly payment: %w", err)
	}

	borrower, err := l.storage.GetUser(app.BorrowerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load borrower: %w", err)
	}

	now := l.now()
	loan := &models.Loan{
		ID:             uuid.New(),
		ApplicationID:  app.ID,
		BorrowerID:     app.BorrowerID,
		LenderID:       actor.ID,
		Amount:         app.Amount,
		Purpose:        app.Purpose,
		DurationMonths: app.DurationMonths,
		InterestRate:   app.InterestRate,
		MonthlyPayment: monthlyPayment,
		Status:         models.LoanActive,
		PaidAmount:     decimal.Zero,
		Closed:         false,
		FundedDate:     now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	funding := &models.Transaction{
		ID:        uuid.New(),
		LenderID:  actor.ID,
		Amount:    app.Amount,
		Type:      models.TransactionFunding,
		Borrower:  borrower.Username,
		Status:    "completed",
		Timestamp: now,
	}

	if err := l.storage.ApproveApplication(app.ID, actor.ID, loan, funding); err != nil {
		return nil, err
	}

	l.notify(borrower.ID, models.NotificationOffer, "Loan funded",
		fmt.Sprintf("Your loan application for %s has been funded. Monthly payment: %s.", app.Amount.StringFixed(2), monthlyPayment.StringFixed(2)))

	l.logger.Info("application approved",
		zap.String("application_id", app.ID.String()),
		zap.String("loan_id", loan.ID.String()),
		zap.String("lender_id", actor.ID.String()),
		zap.String("amount", app.Amount.StringFixed(2)),
	)
	return loan, nil
}

// RejectApplication transitions a pending application to rejected with
// lender attribution and no further side effects.
func (l *Ledger) RejectApplication(actor *models.User, appID uuid.UUID) error {
	if !actor.IsLender() {
		return ErrNotLender
	}
	if err := l.storage.RejectApplication(appID, actor.ID); err != nil {
		return err
	}
	l.logger.Info("application rejected",
		zap.String("application_id", appID.String()),
		zap.String("lender_id", actor.ID.String()),
	)
	return nil
}

// GetLoan retrieves a loan by its ID.
func (l *Ledger) GetLoan(id uuid.UUID) (*models.Loan, error) {
	return l.storage.GetLoan(id)
}

// PaymentsForLoan retrieves the repayment history of a loan.
func (l *Ledger) PaymentsForLoan(loanID uuid.UUID) ([]*models.LoanPayment, error) {
	return l.storage.ListPaymentsForLoan(loanID)
}

// ApplyManualPayment records a repayment entered directly by the
// actor. The amount must be positive and within the loan's outstanding
// balance (principal plus flat interest); the loan completes when paid
// amount reaches the total due. Payment row and loan update are
// persisted atomically.
func (l *Ledger) ApplyManualPayment(actor *models.User, loanID uuid.UUID, amount decimal.Decimal) (*models.Loan, error) {
	payment := &models.LoanPayment{
		ID:        uuid.New(),
		LoanID:    loanID,
		PayerID:   actor.ID,
		Amount:    amount,
		Method:    models.PaymentManual,
		CreatedAt: l.now(),
	}

	loan, err := l.storage.ApplyPayment(payment)
	if err != nil {
		return nil, err
	}

	l.notify(loan.LenderID, models.NotificationPayment, "Repayment received",
		fmt.Sprintf("A repayment of %s was recorded for loan %s.", amount.StringFixed(2), loan.ID))

	l.logger.Info("manual payment applied",
		zap.String("loan_id", loan.ID.String()),
		zap.String("payer_id", actor.ID.String()),
		zap.String("amount", amount.StringFixed(2)),
		zap.Bool("closed", loan.Closed),
	)
	return loan, nil
}

// HandleProviderCallback reconciles an asynchronous STK push result.
// Declined results, malformed references, unknown loans, and repeated
// receipt numbers are all acknowledged as no-ops: the provider
// delivers at least once and retries on error responses, so only
// infrastructure failures (where the event was not durably accepted)
// return an error. The returned loan is nil for no-ops.
func (l *Ledger) HandleProviderCallback(cb *mpesa.STKCallback) (*models.Loan, error) {
	if cb.ResultCode != 0 {
		l.logger.Info("provider callback declined upstream",
			zap.Int("result_code", cb.ResultCode),
			zap.String("result_desc", cb.ResultDesc),
			zap.String("checkout_request_id", cb.CheckoutRequestID),
		)
		return nil, nil
	}

	details, err := cb.PaymentDetails()
	if err != nil {
		l.logger.Warn("provider callback metadata unparseable", zap.Error(err))
		return nil, nil
	}
	if details.ReceiptNumber == "" || !details.Amount.IsPositive() {
		l.logger.Warn("provider callback missing receipt or amount",
			zap.String("checkout_request_id", cb.CheckoutRequestID))
		return nil, nil
	}

	loanID, err := mpesa.ParseReference(details.AccountReference)
	if err != nil {
		l.logger.Warn("provider callback reference invalid", zap.Error(err))
		return nil, nil
	}

	existing, err := l.storage.GetLoan(loanID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			l.logger.Warn("provider callback for unknown loan", zap.String("loan_id", loanID.String()))
			return nil, nil
		}
		return nil, err
	}

	payment := &models.LoanPayment{
		ID:            uuid.New(),
		LoanID:        loanID,
		PayerID:       existing.BorrowerID,
		Amount:        details.Amount,
		Method:        models.PaymentMpesa,
		ReceiptNumber: details.ReceiptNumber,
		Phone:         details.Phone,
		CreatedAt:     l.now(),
	}

	loan, err := l.storage.ApplyPayment(payment)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateReceipt):
			l.logger.Info("provider callback replay ignored",
				zap.String("loan_id", loanID.String()),
				zap.String("receipt", details.ReceiptNumber),
			)
			return nil, nil
		case errors.Is(err, models.ErrLoanNotActive), errors.Is(err, models.ErrExceedsBalance), errors.Is(err, models.ErrInvalidAmount):
			l.logger.Warn("provider payment rejected by loan state machine",
				zap.String("loan_id", loanID.String()),
				zap.String("receipt", details.ReceiptNumber),
				zap.Error(err),
			)
			return nil, nil
		default:
			return nil, err
		}
	}

	l.notify(loan.BorrowerID, models.NotificationPayment, "M-Pesa payment received",
		fmt.Sprintf("Your payment of %s (receipt %s) was applied to loan %s.", details.Amount.StringFixed(2), details.ReceiptNumber, loan.ID))

	l.logger.Info("provider payment applied",
		zap.String("loan_id", loan.ID.String()),
		zap.String("receipt", details.ReceiptNumber),
		zap.String("amount", details.Amount.StringFixed(2)),
		zap.Bool("closed", loan.Closed),
	)
	return loan, nil
}

// FundWallet deposits amount into the lender's wallet, creating the
// wallet with a zero balance on first use, and records the deposit
// ledger row in the same transaction.
func (l *Ledger) FundWallet(lender *models.User, amount decimal.Decimal) (*models.LenderWallet, error) {
	if !lender.IsLender() {
		return nil, ErrNotLender
	}
	if !amount.IsPositive() {
		return nil, models.ErrInvalidAmount
	}

	entry := &models.Transaction{
		ID:        uuid.New(),
		LenderID:  lender.ID,
		Amount:    amount,
		Type:      models.TransactionDeposit,
		Status:    "completed",
		Timestamp: l.now(),
	}
	wallet, err := l.storage.Deposit(entry)
	if err != nil {
		return nil, err
	}

	l.logger.Info("wallet funded",
		zap.String("lender_id", lender.ID.String()),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("balance", wallet.Balance.StringFixed(2)),
	)
	return wallet, nil
}

// Wallet returns the lender's wallet, defaulting to a zero balance
// when none exists yet. The read never creates a row; the wallet is
// materialized on first deposit.
func (l *Ledger) Wallet(lenderID uuid.UUID) (*models.LenderWallet, error) {
	wallet, err := l.storage.GetWallet(lenderID)
	if errors.Is(err, store.ErrNotFound) {
		return &models.LenderWallet{LenderID: lenderID, Balance: decimal.Zero}, nil
	}
	return wallet, err
}

// Notifications lists a user's notifications, newest first.
func (l *Ledger) Notifications(userID uuid.UUID) ([]*models.Notification, error) {
	return l.storage.ListNotificationsForUser(userID)
}

// MarkNotificationRead marks one of the user's notifications as read.
func (l *Ledger) MarkNotificationRead(id, userID uuid.UUID) error {
	return l.storage.MarkNotificationRead(id, userID)
}

// notify records an in-app notification. Failures are logged, not
// propagated: notifications are not part of the financial transaction.
func (l *Ledger) notify(userID uuid.UUID, typ models.NotificationType, title, message string) {
	note := &models.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      typ,
		Title:     title,
		Message:   message,
		CreatedAt: l.now(),
	}
	if err := l.storage.CreateNotification(note); err != nil {
		l.logger.Warn("failed to store notification",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
	}
}
