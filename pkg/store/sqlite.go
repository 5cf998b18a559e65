package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/kmwangi/pesalend/pkg/models"
	"github.com/mattn/go-sqlite3"
)

// SQLiteStore manages the database connection and operations for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLiteStore and initializes the database.
// Write transactions are opened immediate so financial mutations
// serialize instead of failing mid-transaction under contention.
func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName+"?_txlock=immediate&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	return s, nil
}

// initSchema creates the database tables if they don't already exist.
// We use TEXT for decimal fields in SQLite to ensure no precision is lost.
func (s *SQLiteStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		phone TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS loan_applications (
		id TEXT PRIMARY KEY,
		borrower_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		purpose TEXT NOT NULL,
		duration_months INTEGER NOT NULL,
		monthly_income TEXT NOT NULL DEFAULT '0',
		employment_status TEXT NOT NULL DEFAULT '',
		interest_rate TEXT NOT NULL,
		status TEXT NOT NULL,
		lender_id TEXT,
		submitted_at DATETIME NOT NULL,
		FOREIGN KEY(borrower_id) REFERENCES users(id)
	);
	CREATE TABLE IF NOT EXISTS loans (
		id TEXT PRIMARY KEY,
		application_id TEXT NOT NULL UNIQUE,
		borrower_id TEXT NOT NULL,
		lender_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		purpose TEXT NOT NULL,
		duration_months INTEGER NOT NULL,
		interest_rate TEXT NOT NULL,
		monthly_payment TEXT NOT NULL,
		status TEXT NOT NULL,
		paid_amount TEXT NOT NULL DEFAULT '0',
		closed INTEGER NOT NULL DEFAULT 0,
		funded_date DATETIME NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		FOREIGN KEY(application_id) REFERENCES loan_applications(id)
	);
	CREATE TABLE IF NOT EXISTS loan_payments (
		id TEXT PRIMARY KEY,
		loan_id TEXT NOT NULL,
		payer_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		method TEXT NOT NULL,
		receipt_number TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		FOREIGN KEY(loan_id) REFERENCES loans(id)
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_loan_payments_receipt
		ON loan_payments(loan_id, receipt_number) WHERE receipt_number != '';
	CREATE TABLE IF NOT EXISTS lender_wallets (
		lender_id TEXT PRIMARY KEY,
		balance TEXT NOT NULL DEFAULT '0',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		lender_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		type TEXT NOT NULL,
		borrower TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'completed',
		timestamp DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		message TEXT NOT NULL,
		read INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// isUniqueViolation checks whether the error is a UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	if sqliteErr, ok := err.(sqlite3.Error); ok {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// CreateUser inserts a new user.
func (s *SQLiteStore) CreateUser(user *models.User) error {
	_, err := s.db.Exec(
		`INSERT INTO users (id, username, email, phone, role, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID.String(), user.Username, user.Email, user.Phone, user.Role, user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(id uuid.UUID) (*models.User, error) {
	var user models.User
	var idStr string
	row := s.db.QueryRow(`SELECT id, username, email, phone, role, created_at FROM users WHERE id = ?`, id.String())
	err := row.Scan(&idStr, &user.Username, &user.Email, &user.Phone, &user.Role, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	user.ID = uuid.MustParse(idStr)
	return &user, nil
}

// CreateApplication inserts a new pending loan application.
func (s *SQLiteStore) CreateApplication(app *models.LoanApplication) error {
	_, err := s.db.Exec(
		`INSERT INTO loan_applications (id, borrower_id, amount, purpose, duration_months, monthly_income, employment_status, interest_rate, status, lender_id, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		app.ID.String(), app.BorrowerID.String(), app.Amount, app.Purpose, app.DurationMonths,
		app.MonthlyIncome, app.EmploymentStatus, app.InterestRate, app.Status, lenderIDValue(app.LenderID), app.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	return nil
}

func lenderIDValue(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return id.String()
}

const applicationColumns = `id, borrower_id, amount, purpose, duration_months, monthly_income, employment_status, interest_rate, status, lender_id, submitted_at`

func scanApplication(row interface{ Scan(...interface{}) error }) (*models.LoanApplication, error) {
	var app models.LoanApplication
	var idStr, borrowerStr string
	var lenderStr sql.NullString
	err := row.Scan(&idStr, &borrowerStr, &app.Amount, &app.Purpose, &app.DurationMonths,
		&app.MonthlyIncome, &app.EmploymentStatus, &app.InterestRate, &app.Status, &lenderStr, &app.SubmittedAt)
	if err != nil {
		return nil, err
	}
	app.ID = uuid.MustParse(idStr)
	app.BorrowerID = uuid.MustParse(borrowerStr)
	if lenderStr.Valid {
		lenderID := uuid.MustParse(lenderStr.String)
		app.LenderID = &lenderID
	}
	return &app, nil
}

// GetApplication retrieves a loan application by ID.
func (s *SQLiteStore) GetApplication(id uuid.UUID) (*models.LoanApplication, error) {
	row := s.db.QueryRow(`SELECT `+applicationColumns+` FROM loan_applications WHERE id = ?`, id.String())
	app, err := scanApplication(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	return app, nil
}

func (s *SQLiteStore) listApplications(query string, args ...interface{}) ([]*models.LoanApplication, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	var apps []*models.LoanApplication
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan application row: %w", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return apps, nil
}

// ListApplicationsByStatus retrieves applications in the given status, newest first.
func (s *SQLiteStore) ListApplicationsByStatus(status models.ApplicationStatus) ([]*models.LoanApplication, error) {
	return s.listApplications(`SELECT `+applicationColumns+` FROM loan_applications WHERE status = ? ORDER BY submitted_at DESC`, string(status))
}

// ListApplicationsByBorrower retrieves a borrower's applications, newest first.
func (s *SQLiteStore) ListApplicationsByBorrower(borrowerID uuid.UUID) ([]*models.LoanApplication, error) {
	return s.listApplications(`SELECT `+applicationColumns+` FROM loan_applications WHERE borrower_id = ? ORDER BY submitted_at DESC`, borrowerID.String())
}

// transitionApplication flips a pending application to the target
// status inside tx. The status guard in the WHERE clause is what makes
// double processing safe under concurrent requests.
func transitionApplication(tx *sql.Tx, appID, lenderID uuid.UUID, target models.ApplicationStatus) error {
	result, err := tx.Exec(
		`UPDATE loan_applications SET status = ?, lender_id = ? WHERE id = ? AND status = ?`,
		string(target), lenderID.String(), appID.String(), string(models.ApplicationPending),
	)
	if err != nil {
		return fmt.Errorf("failed to update application status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		var exists int
		if err := tx.QueryRow(`SELECT 1 FROM loan_applications WHERE id = ?`, appID.String()).Scan(&exists); err != nil {
			if err == sql.ErrNoRows {
				return ErrNotFound
			}
			return fmt.Errorf("failed to check application existence: %w", err)
		}
		return ErrAlreadyProcessed
	}
	return nil
}

// ApproveApplication atomically approves a pending application and
// persists the funded loan and the lender's funding ledger row.
func (s *SQLiteStore) ApproveApplication(appID, lenderID uuid.UUID, loan *models.Loan, funding *models.Transaction) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := transitionApplication(tx, appID, lenderID, models.ApplicationApproved); err != nil {
		return err
	}

	_, err = tx.Exec(
		`INSERT INTO loans (id, application_id, borrower_id, lender_id, amount, purpose, duration_months, interest_rate, monthly_payment, status, paid_amount, closed, funded_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		loan.ID.String(), loan.ApplicationID.String(), loan.BorrowerID.String(), loan.LenderID.String(),
		loan.Amount, loan.Purpose, loan.DurationMonths, loan.InterestRate, loan.MonthlyPayment,
		loan.Status, loan.PaidAmount, loan.Closed, loan.FundedDate, loan.CreatedAt, loan.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create loan: %w", err)
	}

	if err := insertTransaction(tx, funding); err != nil {
		return err
	}

	return tx.Commit()
}

// RejectApplication atomically rejects a pending application.
func (s *SQLiteStore) RejectApplication(appID, lenderID uuid.UUID) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := transitionApplication(tx, appID, lenderID, models.ApplicationRejected); err != nil {
		return err
	}
	return tx.Commit()
}

const loanColumns = `id, application_id, borrower_id, lender_id, amount, purpose, duration_months, interest_rate, monthly_payment, status, paid_amount, closed, funded_date, created_at, updated_at`

func scanLoan(row interface{ Scan(...interface{}) error }) (*models.Loan, error) {
	var loan models.Loan
	var idStr, appStr, borrowerStr, lenderStr string
	err := row.Scan(&idStr, &appStr, &borrowerStr, &lenderStr, &loan.Amount, &loan.Purpose,
		&loan.DurationMonths, &loan.InterestRate, &loan.MonthlyPayment, &loan.Status,
		&loan.PaidAmount, &loan.Closed, &loan.FundedDate, &loan.CreatedAt, &loan.UpdatedAt)
	if err != nil {
		return nil, err
	}
	loan.ID = uuid.MustParse(idStr)
	loan.ApplicationID = uuid.MustParse(appStr)
	loan.BorrowerID = uuid.MustParse(borrowerStr)
	loan.LenderID = uuid.MustParse(lenderStr)
	return &loan, nil
}

// GetLoan retrieves a loan by its ID.
func (s *SQLiteStore) GetLoan(id uuid.UUID) (*models.Loan, error) {
	row := s.db.QueryRow(`SELECT `+loanColumns+` FROM loans WHERE id = ?`, id.String())
	loan, err := scanLoan(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	return loan, nil
}

func (s *SQLiteStore) listLoans(query string, args ...interface{}) ([]*models.Loan, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	defer rows.Close()

	var loans []*models.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan row: %w", err)
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return loans, nil
}

// ListLoansByBorrower retrieves a borrower's loans, newest first.
func (s *SQLiteStore) ListLoansByBorrower(borrowerID uuid.UUID) ([]*models.Loan, error) {
	return s.listLoans(`SELECT `+loanColumns+` FROM loans WHERE borrower_id = ? ORDER BY created_at DESC`, borrowerID.String())
}

// ListLoansByLender retrieves a lender's funded loans, newest first.
func (s *SQLiteStore) ListLoansByLender(lenderID uuid.UUID) ([]*models.Loan, error) {
	return s.listLoans(`SELECT `+loanColumns+` FROM loans WHERE lender_id = ? ORDER BY funded_date DESC`, lenderID.String())
}

// ApplyPayment runs the repayment state machine against the current
// loan row and persists both the payment and the updated loan in one
// transaction. The loan is re-read under the write transaction so
// concurrent repayments serialize on the current paid amount, and the
// unique receipt index rejects duplicate provider deliveries.
func (s *SQLiteStore) ApplyPayment(payment *models.LoanPayment) (*models.Loan, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(`SELECT `+loanColumns+` FROM loans WHERE id = ?`, payment.LoanID.String())
	loan, err := scanLoan(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get loan for payment: %w", err)
	}

	if err := loan.RecordPayment(payment.Amount, payment.CreatedAt); err != nil {
		return nil, err
	}

	_, err = tx.Exec(
		`INSERT INTO loan_payments (id, loan_id, payer_id, amount, method, receipt_number, phone, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.ID.String(), payment.LoanID.String(), payment.PayerID.String(),
		payment.Amount, payment.Method, payment.ReceiptNumber, payment.Phone, payment.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateReceipt
		}
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	_, err = tx.Exec(
		`UPDATE loans SET paid_amount = ?, status = ?, closed = ?, updated_at = ? WHERE id = ?`,
		loan.PaidAmount, loan.Status, loan.Closed, loan.UpdatedAt, loan.ID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update loan balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit payment: %w", err)
	}
	return loan, nil
}

// ListPaymentsForLoan retrieves all payments for a loan, oldest first.
func (s *SQLiteStore) ListPaymentsForLoan(loanID uuid.UUID) ([]*models.LoanPayment, error) {
	rows, err := s.db.Query(
		`SELECT id, loan_id, payer_id, amount, method, receipt_number, phone, created_at
		FROM loan_payments WHERE loan_id = ? ORDER BY created_at ASC`, loanID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list payments for loan %s: %w", loanID, err)
	}
	defer rows.Close()

	var payments []*models.LoanPayment
	for rows.Next() {
		var payment models.LoanPayment
		var idStr, loanStr, payerStr string
		if err := rows.Scan(&idStr, &loanStr, &payerStr, &payment.Amount, &payment.Method,
			&payment.ReceiptNumber, &payment.Phone, &payment.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment row: %w", err)
		}
		payment.ID = uuid.MustParse(idStr)
		payment.LoanID = uuid.MustParse(loanStr)
		payment.PayerID = uuid.MustParse(payerStr)
		payments = append(payments, &payment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return payments, nil
}

// GetWallet retrieves a lender's wallet.
func (s *SQLiteStore) GetWallet(lenderID uuid.UUID) (*models.LenderWallet, error) {
	var wallet models.LenderWallet
	var idStr string
	row := s.db.QueryRow(`SELECT lender_id, balance, created_at, updated_at FROM lender_wallets WHERE lender_id = ?`, lenderID.String())
	err := row.Scan(&idStr, &wallet.Balance, &wallet.CreatedAt, &wallet.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	wallet.LenderID = uuid.MustParse(idStr)
	return &wallet, nil
}

// Deposit credits a lender's wallet, creating it with a zero balance
// when absent, and records the deposit ledger row in one transaction.
func (s *SQLiteStore) Deposit(entry *models.Transaction) (*models.LenderWallet, error) {
	if !entry.Amount.IsPositive() {
		return nil, models.ErrInvalidAmount
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT OR IGNORE INTO lender_wallets (lender_id, balance, created_at, updated_at) VALUES (?, '0', ?, ?)`,
		entry.LenderID.String(), entry.Timestamp, entry.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}

	var wallet models.LenderWallet
	var idStr string
	row := tx.QueryRow(`SELECT lender_id, balance, created_at, updated_at FROM lender_wallets WHERE lender_id = ?`, entry.LenderID.String())
	if err := row.Scan(&idStr, &wallet.Balance, &wallet.CreatedAt, &wallet.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to read wallet: %w", err)
	}
	wallet.LenderID = uuid.MustParse(idStr)
	wallet.Balance = wallet.Balance.Add(entry.Amount)
	wallet.UpdatedAt = entry.Timestamp

	_, err = tx.Exec(
		`UPDATE lender_wallets SET balance = ?, updated_at = ? WHERE lender_id = ?`,
		wallet.Balance, wallet.UpdatedAt, wallet.LenderID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update wallet balance: %w", err)
	}

	if err := insertTransaction(tx, entry); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit deposit: %w", err)
	}
	return &wallet, nil
}

func insertTransaction(tx *sql.Tx, entry *models.Transaction) error {
	_, err := tx.Exec(
		`INSERT INTO transactions (id, lender_id, amount, type, borrower, status, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID.String(), entry.LenderID.String(), entry.Amount, entry.Type, entry.Borrower, entry.Status, entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// ListTransactionsByLender retrieves a lender's ledger rows, newest first.
func (s *SQLiteStore) ListTransactionsByLender(lenderID uuid.UUID) ([]*models.Transaction, error) {
	rows, err := s.db.Query(
		`SELECT id, lender_id, amount, type, borrower, status, timestamp
		FROM transactions WHERE lender_id = ? ORDER BY timestamp DESC`, lenderID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var entries []*models.Transaction
	for rows.Next() {
		var entry models.Transaction
		var idStr, lenderStr string
		if err := rows.Scan(&idStr, &lenderStr, &entry.Amount, &entry.Type, &entry.Borrower, &entry.Status, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		entry.ID = uuid.MustParse(idStr)
		entry.LenderID = uuid.MustParse(lenderStr)
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return entries, nil
}

// CreateNotification inserts a notification.
func (s *SQLiteStore) CreateNotification(note *models.Notification) error {
	_, err := s.db.Exec(
		`INSERT INTO notifications (id, user_id, type, title, message, read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		note.ID.String(), note.UserID.String(), note.Type, note.Title, note.Message, note.Read, note.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// ListNotificationsForUser retrieves a user's notifications, newest first.
func (s *SQLiteStore) ListNotificationsForUser(userID uuid.UUID) ([]*models.Notification, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, type, title, message, read, created_at
		FROM notifications WHERE user_id = ? ORDER BY created_at DESC`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notes []*models.Notification
	for rows.Next() {
		var note models.Notification
		var idStr, userStr string
		if err := rows.Scan(&idStr, &userStr, &note.Type, &note.Title, &note.Message, &note.Read, &note.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification row: %w", err)
		}
		note.ID = uuid.MustParse(idStr)
		note.UserID = uuid.MustParse(userStr)
		notes = append(notes, &note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return notes, nil
}

// MarkNotificationRead marks a user's notification as read.
func (s *SQLiteStore) MarkNotificationRead(id, userID uuid.UUID) error {
	result, err := s.db.Exec(
		`UPDATE notifications SET read = 1 WHERE id = ? AND user_id = ?`,
		id.String(), userID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
