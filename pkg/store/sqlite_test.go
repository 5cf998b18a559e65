package store

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmwangi/pesalend/pkg/models"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "pesalend_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedUser(t *testing.T, s *SQLiteStore, role models.Role) *models.User {
	t.Helper()
	user := &models.User{
		ID:        uuid.New(),
		Username:  string(role) + "-" + uuid.NewString()[:8],
		Email:     uuid.NewString()[:8] + "@example.com",
		Phone:     "0712345678",
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.CreateUser(user))
	return user
}

func seedApplication(t *testing.T, s *SQLiteStore, borrowerID uuid.UUID) *models.LoanApplication {
	t.Helper()
	app := &models.LoanApplication{
		ID:               uuid.New(),
		BorrowerID:       borrowerID,
		Amount:           d("10000"),
		Purpose:          "Business",
		DurationMonths:   12,
		MonthlyIncome:    d("45000"),
		EmploymentStatus: "employed",
		InterestRate:     d("8.00"),
		Status:           models.ApplicationPending,
		SubmittedAt:      time.Now().UTC(),
	}
	require.NoError(t, s.CreateApplication(app))
	return app
}

func buildLoan(app *models.LoanApplication, lenderID uuid.UUID) *models.Loan {
	now := time.Now().UTC()
	return &models.Loan{
		ID:             uuid.New(),
		ApplicationID:  app.ID,
		BorrowerID:     app.BorrowerID,
		LenderID:       lenderID,
		Amount:         app.Amount,
		Purpose:        app.Purpose,
		DurationMonths: app.DurationMonths,
		InterestRate:   app.InterestRate,
		MonthlyPayment: d("869.88"),
		Status:         models.LoanActive,
		PaidAmount:     decimal.Zero,
		FundedDate:     now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func buildFunding(app *models.LoanApplication, lenderID uuid.UUID) *models.Transaction {
	return &models.Transaction{
		ID:        uuid.New(),
		LenderID:  lenderID,
		Amount:    app.Amount,
		Type:      models.TransactionFunding,
		Borrower:  "borrower",
		Status:    "completed",
		Timestamp: time.Now().UTC(),
	}
}

func approvedLoan(t *testing.T, s *SQLiteStore) (*models.Loan, *models.User, *models.User) {
	t.Helper()
	borrower := seedUser(t, s, models.RoleBorrower)
	lender := seedUser(t, s, models.RoleLender)
	app := seedApplication(t, s, borrower.ID)
	loan := buildLoan(app, lender.ID)
	require.NoError(t, s.ApproveApplication(app.ID, lender.ID, loan, buildFunding(app, lender.ID)))
	return loan, borrower, lender
}

func TestCreateAndGetUser(t *testing.T) {
	s := newTestStore(t)
	user := seedUser(t, s, models.RoleBorrower)

	fetched, err := s.GetUser(user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Username, fetched.Username)
	assert.Equal(t, user.Role, fetched.Role)

	_, err = s.GetUser(uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApplicationRoundTrip(t *testing.T) {
	s := newTestStore(t)
	borrower := seedUser(t, s, models.RoleBorrower)
	app := seedApplication(t, s, borrower.ID)

	fetched, err := s.GetApplication(app.ID)
	require.NoError(t, err)
	assert.True(t, fetched.Amount.Equal(d("10000")))
	assert.Equal(t, models.ApplicationPending, fetched.Status)
	assert.Nil(t, fetched.LenderID)

	pending, err := s.ListApplicationsByStatus(models.ApplicationPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestApproveApplication(t *testing.T) {
	s := newTestStore(t)
	loan, _, lender := approvedLoan(t, s)

	fetched, err := s.GetLoan(loan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoanActive, fetched.Status)
	assert.True(t, fetched.PaidAmount.IsZero())

	app, err := s.GetApplication(loan.ApplicationID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationApproved, app.Status)
	require.NotNil(t, app.LenderID)
	assert.Equal(t, lender.ID, *app.LenderID)

	entries, err := s.ListTransactionsByLender(lender.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.TransactionFunding, entries[0].Type)
}

func TestApproveApplicationAlreadyProcessed(t *testing.T) {
	s := newTestStore(t)
	loan, _, _ := approvedLoan(t, s)
	other := seedUser(t, s, models.RoleLender)

	app, err := s.GetApplication(loan.ApplicationID)
	require.NoError(t, err)

	err = s.ApproveApplication(app.ID, other.ID, buildLoan(app, other.ID), buildFunding(app, other.ID))
	assert.ErrorIs(t, err, ErrAlreadyProcessed)

	err = s.RejectApplication(app.ID, other.ID)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)

	err = s.ApproveApplication(uuid.New(), other.ID, buildLoan(app, other.ID), buildFunding(app, other.ID))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentApprovalYieldsOneLoan(t *testing.T) {
	s := newTestStore(t)
	borrower := seedUser(t, s, models.RoleBorrower)
	app := seedApplication(t, s, borrower.ID)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		lender := seedUser(t, s, models.RoleLender)
		wg.Add(1)
		go func(i int, lenderID uuid.UUID) {
			defer wg.Done()
			errs[i] = s.ApproveApplication(app.ID, lenderID, buildLoan(app, lenderID), buildFunding(app, lenderID))
		}(i, lender.ID)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrAlreadyProcessed)
		}
	}
	assert.Equal(t, 1, succeeded)

	loans, err := s.ListLoansByBorrower(borrower.ID)
	require.NoError(t, err)
	assert.Len(t, loans, 1)
}

func TestApplyPayment(t *testing.T) {
	s := newTestStore(t)
	loan, borrower, _ := approvedLoan(t, s)

	updated, err := s.ApplyPayment(&models.LoanPayment{
		ID: uuid.New(), LoanID: loan.ID, PayerID: borrower.ID,
		Amount: d("5000"), Method: models.PaymentManual, CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, "5000.00", updated.PaidAmount.StringFixed(2))
	assert.Equal(t, models.LoanActive, updated.Status)

	payments, err := s.ListPaymentsForLoan(loan.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, models.PaymentManual, payments[0].Method)
}

func TestApplyPaymentCompletesLoan(t *testing.T) {
	s := newTestStore(t)
	loan, borrower, _ := approvedLoan(t, s)

	updated, err := s.ApplyPayment(&models.LoanPayment{
		ID: uuid.New(), LoanID: loan.ID, PayerID: borrower.ID,
		Amount: d("10800"), Method: models.PaymentManual, CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, models.LoanCompleted, updated.Status)
	assert.True(t, updated.Closed)

	fetched, err := s.GetLoan(loan.ID)
	require.NoError(t, err)
	assert.True(t, fetched.Closed)
	assert.Equal(t, models.LoanCompleted, fetched.Status)
}

func TestApplyPaymentRejectsExcessWithoutSideEffects(t *testing.T) {
	s := newTestStore(t)
	loan, borrower, _ := approvedLoan(t, s)

	_, err := s.ApplyPayment(&models.LoanPayment{
		ID: uuid.New(), LoanID: loan.ID, PayerID: borrower.ID,
		Amount: d("10800.01"), Method: models.PaymentManual, CreatedAt: time.Now().UTC(),
	})
	assert.ErrorIs(t, err, models.ErrExceedsBalance)

	fetched, err := s.GetLoan(loan.ID)
	require.NoError(t, err)
	assert.True(t, fetched.PaidAmount.IsZero())

	payments, err := s.ListPaymentsForLoan(loan.ID)
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestApplyPaymentDuplicateReceipt(t *testing.T) {
	s := newTestStore(t)
	loan, borrower, _ := approvedLoan(t, s)

	pay := func() error {
		_, err := s.ApplyPayment(&models.LoanPayment{
			ID: uuid.New(), LoanID: loan.ID, PayerID: borrower.ID,
			Amount: d("5000"), Method: models.PaymentMpesa,
			ReceiptNumber: "NLJ7RT61SV", Phone: "254712345678",
			CreatedAt: time.Now().UTC(),
		})
		return err
	}

	require.NoError(t, pay())
	assert.ErrorIs(t, pay(), ErrDuplicateReceipt)

	fetched, err := s.GetLoan(loan.ID)
	require.NoError(t, err)
	assert.Equal(t, "5000.00", fetched.PaidAmount.StringFixed(2), "duplicate receipt must not double-credit")

	payments, err := s.ListPaymentsForLoan(loan.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func TestApplyPaymentManualReceiptsNotDeduplicated(t *testing.T) {
	s := newTestStore(t)
	loan, borrower, _ := approvedLoan(t, s)

	// Manual payments carry no receipt; the partial unique index must
	// not collapse them.
	for i := 0; i < 2; i++ {
		_, err := s.ApplyPayment(&models.LoanPayment{
			ID: uuid.New(), LoanID: loan.ID, PayerID: borrower.ID,
			Amount: d("1000"), Method: models.PaymentManual, CreatedAt: time.Now().UTC(),
		})
		require.NoError(t, err)
	}

	fetched, err := s.GetLoan(loan.ID)
	require.NoError(t, err)
	assert.Equal(t, "2000.00", fetched.PaidAmount.StringFixed(2))
}

func TestDepositCreatesWalletLazily(t *testing.T) {
	s := newTestStore(t)
	lender := seedUser(t, s, models.RoleLender)

	_, err := s.GetWallet(lender.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	wallet, err := s.Deposit(&models.Transaction{
		ID: uuid.New(), LenderID: lender.ID, Amount: d("2500"),
		Type: models.TransactionDeposit, Status: "completed", Timestamp: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, "2500.00", wallet.Balance.StringFixed(2))

	wallet, err = s.Deposit(&models.Transaction{
		ID: uuid.New(), LenderID: lender.ID, Amount: d("500"),
		Type: models.TransactionDeposit, Status: "completed", Timestamp: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, "3000.00", wallet.Balance.StringFixed(2))

	entries, err := s.ListTransactionsByLender(lender.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestDepositRejectsNonPositive(t *testing.T) {
	s := newTestStore(t)
	lender := seedUser(t, s, models.RoleLender)

	_, err := s.Deposit(&models.Transaction{
		ID: uuid.New(), LenderID: lender.ID, Amount: decimal.Zero,
		Type: models.TransactionDeposit, Timestamp: time.Now().UTC(),
	})
	assert.ErrorIs(t, err, models.ErrInvalidAmount)

	_, err = s.GetWallet(lender.ID)
	assert.ErrorIs(t, err, ErrNotFound, "rejected deposit must not create a wallet")
}

func TestNotifications(t *testing.T) {
	s := newTestStore(t)
	user := seedUser(t, s, models.RoleBorrower)

	note := &models.Notification{
		ID: uuid.New(), UserID: user.ID, Type: models.NotificationPayment,
		Title: "Repayment received", Message: "5000.00 applied", CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.CreateNotification(note))

	notes, err := s.ListNotificationsForUser(user.ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.False(t, notes[0].Read)

	require.NoError(t, s.MarkNotificationRead(note.ID, user.ID))
	notes, err = s.ListNotificationsForUser(user.ID)
	require.NoError(t, err)
	assert.True(t, notes[0].Read)

	assert.ErrorIs(t, s.MarkNotificationRead(note.ID, uuid.New()), ErrNotFound)
}
