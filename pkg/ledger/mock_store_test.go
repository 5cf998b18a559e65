package ledger

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kmwangi/pesalend/pkg/models"
	"github.com/kmwangi/pesalend/pkg/store"
)

// MockStore is an in-memory implementation of the Storage interface
// for testing. It mirrors the SQLite store's transactional semantics:
// guarded status transitions, the unique (loan, receipt) constraint,
// and all-or-nothing payment application.
type MockStore struct {
	users         map[uuid.UUID]*models.User
	applications  map[uuid.UUID]*models.LoanApplication
	loans         map[uuid.UUID]*models.Loan
	payments      []*models.LoanPayment
	receipts      map[string]bool // loanID|receipt
	wallets       map[uuid.UUID]*models.LenderWallet
	transactions  []*models.Transaction
	notifications []*models.Notification
}

func NewMockStore() *MockStore {
	return &MockStore{
		users:        make(map[uuid.UUID]*models.User),
		applications: make(map[uuid.UUID]*models.LoanApplication),
		loans:        make(map[uuid.UUID]*models.Loan),
		receipts:     make(map[string]bool),
		wallets:      make(map[uuid.UUID]*models.LenderWallet),
	}
}

func (m *MockStore) CreateUser(user *models.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *MockStore) GetUser(id uuid.UUID) (*models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return user, nil
}

func (m *MockStore) CreateApplication(app *models.LoanApplication) error {
	m.applications[app.ID] = app
	return nil
}

func (m *MockStore) GetApplication(id uuid.UUID) (*models.LoanApplication, error) {
	app, ok := m.applications[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *app
	return &copied, nil
}

func (m *MockStore) ListApplicationsByStatus(status models.ApplicationStatus) ([]*models.LoanApplication, error) {
	apps := []*models.LoanApplication{}
	for _, app := range m.applications {
		if app.Status == status {
			apps = append(apps, app)
		}
	}
	return apps, nil
}

func (m *MockStore) ListApplicationsByBorrower(borrowerID uuid.UUID) ([]*models.LoanApplication, error) {
	apps := []*models.LoanApplication{}
	for _, app := range m.applications {
		if app.BorrowerID == borrowerID {
			apps = append(apps, app)
		}
	}
	return apps, nil
}

func (m *MockStore) transition(appID, lenderID uuid.UUID, target models.ApplicationStatus) error {
	app, ok := m.applications[appID]
	if !ok {
		return store.ErrNotFound
	}
	if app.Status != models.ApplicationPending {
		return store.ErrAlreadyProcessed
	}
	app.Status = target
	app.LenderID = &lenderID
	return nil
}

func (m *MockStore) ApproveApplication(appID, lenderID uuid.UUID, loan *models.Loan, funding *models.Transaction) error {
	if err := m.transition(appID, lenderID, models.ApplicationApproved); err != nil {
		return err
	}
	m.loans[loan.ID] = loan
	m.transactions = append(m.transactions, funding)
	return nil
}

func (m *MockStore) RejectApplication(appID, lenderID uuid.UUID) error {
	return m.transition(appID, lenderID, models.ApplicationRejected)
}

func (m *MockStore) GetLoan(id uuid.UUID) (*models.Loan, error) {
	loan, ok := m.loans[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *loan
	return &copied, nil
}

func (m *MockStore) ListLoansByBorrower(borrowerID uuid.UUID) ([]*models.Loan, error) {
	loans := []*models.Loan{}
	for _, loan := range m.loans {
		if loan.BorrowerID == borrowerID {
			loans = append(loans, loan)
		}
	}
	return loans, nil
}

func (m *MockStore) ListLoansByLender(lenderID uuid.UUID) ([]*models.Loan, error) {
	loans := []*models.Loan{}
	for _, loan := range m.loans {
		if loan.LenderID == lenderID {
			loans = append(loans, loan)
		}
	}
	return loans, nil
}

func (m *MockStore) ApplyPayment(payment *models.LoanPayment) (*models.Loan, error) {
	loan, ok := m.loans[payment.LoanID]
	if !ok {
		return nil, store.ErrNotFound
	}

	key := payment.LoanID.String() + "|" + payment.ReceiptNumber
	if payment.ReceiptNumber != "" && m.receipts[key] {
		return nil, store.ErrDuplicateReceipt
	}

	updated := *loan
	if err := updated.RecordPayment(payment.Amount, payment.CreatedAt); err != nil {
		return nil, err
	}

	if payment.ReceiptNumber != "" {
		m.receipts[key] = true
	}
	m.loans[payment.LoanID] = &updated
	m.payments = append(m.payments, payment)
	copied := updated
	return &copied, nil
}

func (m *MockStore) ListPaymentsForLoan(loanID uuid.UUID) ([]*models.LoanPayment, error) {
	payments := []*models.LoanPayment{}
	for _, payment := range m.payments {
		if payment.LoanID == loanID {
			payments = append(payments, payment)
		}
	}
	return payments, nil
}

func (m *MockStore) GetWallet(lenderID uuid.UUID) (*models.LenderWallet, error) {
	wallet, ok := m.wallets[lenderID]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *wallet
	return &copied, nil
}

func (m *MockStore) Deposit(entry *models.Transaction) (*models.LenderWallet, error) {
	if !entry.Amount.IsPositive() {
		return nil, models.ErrInvalidAmount
	}
	wallet, ok := m.wallets[entry.LenderID]
	if !ok {
		wallet = &models.LenderWallet{
			LenderID:  entry.LenderID,
			Balance:   decimal.Zero,
			CreatedAt: entry.Timestamp,
		}
		m.wallets[entry.LenderID] = wallet
	}
	wallet.Balance = wallet.Balance.Add(entry.Amount)
	wallet.UpdatedAt = entry.Timestamp
	m.transactions = append(m.transactions, entry)
	copied := *wallet
	return &copied, nil
}

func (m *MockStore) ListTransactionsByLender(lenderID uuid.UUID) ([]*models.Transaction, error) {
	entries := []*models.Transaction{}
	// newest first, matching the SQLite store ordering
	for i := len(m.transactions) - 1; i >= 0; i-- {
		if m.transactions[i].LenderID == lenderID {
			entries = append(entries, m.transactions[i])
		}
	}
	return entries, nil
}

func (m *MockStore) CreateNotification(note *models.Notification) error {
	m.notifications = append(m.notifications, note)
	return nil
}

func (m *MockStore) ListNotificationsForUser(userID uuid.UUID) ([]*models.Notification, error) {
	notes := []*models.Notification{}
	for _, note := range m.notifications {
		if note.UserID == userID {
			notes = append(notes, note)
		}
	}
	return notes, nil
}

func (m *MockStore) MarkNotificationRead(id, userID uuid.UUID) error {
	for _, note := range m.notifications {
		if note.ID == id && note.UserID == userID {
			note.Read = true
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *MockStore) Close() error {
	return nil
}

var _ store.Storage = (*MockStore)(nil)
