package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kmwangi/pesalend/pkg/finance"
	"github.com/kmwangi/pesalend/pkg/ledger"
	"github.com/kmwangi/pesalend/pkg/models"
	"github.com/kmwangi/pesalend/pkg/mpesa"
	"github.com/kmwangi/pesalend/pkg/store"
)

// Server holds the ledger, the storage layer, and the payment
// provider client.
type Server struct {
	ledger   *ledger.Ledger
	storage  store.Storage
	payments *mpesa.Client
	logger   *zap.Logger
	validate *validator.Validate
}

func NewServer(s store.Storage, payments *mpesa.Client, logger *zap.Logger) *Server {
	return &Server{
		ledger:   ledger.NewLedger(s, logger),
		storage:  s,
		payments: payments,
		logger:   logger,
		validate: validator.New(),
	}
}

// pathID extracts the {id} route variable as a UUID.
func pathID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(mux.Vars(r)["id"])
}

// decodeAndValidate decodes the JSON body into req and runs validator
// tags against it.
func (s *Server) decodeAndValidate(r *http.Request, req interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		return err
	}
	return s.validate.Struct(req)
}

// actor loads the acting user referenced by a request body.
func (s *Server) actor(id uuid.UUID) (*models.User, error) {
	return s.storage.GetUser(id)
}

func (s *Server) createUserHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username" validate:"required"`
		Email    string `json:"email" validate:"required,email"`
		Phone    string `json:"phone"`
		Role     string `json:"role" validate:"required,oneof=borrower lender admin"`
	}
	if err := s.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user := &models.User{
		ID:        uuid.New(),
		Username:  req.Username,
		Email:     req.Email,
		Phone:     req.Phone,
		Role:      models.Role(req.Role),
		CreatedAt: timeNow(),
	}
	if err := s.storage.CreateUser(user); err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) getUserHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user ID")
		return
	}
	user, err := s.storage.GetUser(id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) submitApplicationHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BorrowerID       uuid.UUID       `json:"borrower_id" validate:"required"`
		Amount           decimal.Decimal `json:"amount"`
		Purpose          string          `json:"purpose" validate:"required"`
		DurationMonths   int             `json:"duration_months" validate:"required,min=1"`
		MonthlyIncome    decimal.Decimal `json:"monthly_income"`
		EmploymentStatus string          `json:"employment_status"`
		InterestRate     decimal.Decimal `json:"interest_rate"`
	}
	if err := s.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	borrower, err := s.actor(req.BorrowerID)
	if err != nil {
		s.respondError(w, err)
		return
	}

	app, err := s.ledger.SubmitApplication(borrower, ledger.ApplicationInput{
		Amount:           req.Amount,
		Purpose:          req.Purpose,
		DurationMonths:   req.DurationMonths,
		MonthlyIncome:    req.MonthlyIncome,
		EmploymentStatus: req.EmploymentStatus,
		InterestRate:     req.InterestRate,
	})
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, app)
}

func (s *Server) listApplicationsHandler(w http.ResponseWriter, r *http.Request) {
	status := models.ApplicationStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = models.ApplicationPending
	}
	apps, err := s.storage.ListApplicationsByStatus(status)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apps)
}

type actorRequest struct {
	LenderID uuid.UUID `json:"lender_id" validate:"required"`
}

func (s *Server) approveApplicationHandler(w http.ResponseWriter, r *http.Request) {
	appID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid application ID")
		return
	}
	var req actorRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	actor, err := s.actor(req.LenderID)
	if err != nil {
		s.respondError(w, err)
		return
	}

	loan, err := s.ledger.ApproveApplication(actor, appID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, loan)
}

func (s *Server) rejectApplicationHandler(w http.ResponseWriter, r *http.Request) {
	appID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid application ID")
		return
	}
	var req actorRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	actor, err := s.actor(req.LenderID)
	if err != nil {
		s.respondError(w, err)
		return
	}

	if err := s.ledger.RejectApplication(actor, appID); err != nil {
		s.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getLoanHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid loan ID")
		return
	}
	loan, err := s.ledger.GetLoan(loanID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loanView(loan))
}

func (s *Server) loanScheduleHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid loan ID")
		return
	}
	loan, err := s.ledger.GetLoan(loanID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	schedule, err := finance.Schedule(loan.Amount, loan.DurationMonths, loan.InterestRate, loan.FundedDate)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, schedule)
}

func (s *Server) loanPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid loan ID")
		return
	}
	payments, err := s.ledger.PaymentsForLoan(loanID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payments)
}

func (s *Server) recordPaymentHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid loan ID")
		return
	}
	var req struct {
		PayerID uuid.UUID       `json:"payer_id" validate:"required"`
		Amount  decimal.Decimal `json:"amount"`
	}
	if err := s.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	payer, err := s.actor(req.PayerID)
	if err != nil {
		s.respondError(w, err)
		return
	}

	loan, err := s.ledger.ApplyManualPayment(payer, loanID, req.Amount)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, loanView(loan))
}

func (s *Server) initiatePushHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid loan ID")
		return
	}
	var req struct {
		Phone  string          `json:"phone" validate:"required"`
		Amount decimal.Decimal `json:"amount"`
	}
	if err := s.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	loan, err := s.ledger.GetLoan(loanID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if loan.Status != models.LoanActive || loan.Closed {
		s.respondError(w, models.ErrLoanNotActive)
		return
	}

	// Whole shillings; the provider does not accept fractional amounts,
	// and rounding here would prompt the payer for a different figure
	// than they asked for.
	if !req.Amount.IsInteger() || !req.Amount.IsPositive() {
		s.respondError(w, models.ErrInvalidAmount)
		return
	}
	amount := req.Amount.IntPart()

	resp, err := s.payments.InitiateSTKPush(r.Context(), req.Phone, amount,
		mpesa.FormatReference(loan.ID), "Loan repayment")
	if err != nil {
		s.respondError(w, err)
		return
	}
	if !resp.Accepted() {
		writeJSON(w, http.StatusBadGateway, resp)
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

// callbackAck is the acknowledgement body the provider expects.
type callbackAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

// mpesaCallbackHandler receives the asynchronous STK push result. It
// acknowledges success for every payload it could durably accept,
// including declined payments, unknown references, and duplicate
// deliveries; an error status is returned only when storage failed and
// a provider retry is actually wanted.
func (s *Server) mpesaCallbackHandler(w http.ResponseWriter, r *http.Request) {
	var envelope mpesa.CallbackEnvelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		s.logger.Warn("unparseable provider callback", zap.Error(err))
		writeJSON(w, http.StatusOK, callbackAck{ResultCode: 0, ResultDesc: "Accepted"})
		return
	}

	if _, err := s.ledger.HandleProviderCallback(&envelope.Body.STKCallback); err != nil {
		s.logger.Error("provider callback processing failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "processing failed")
		return
	}
	writeJSON(w, http.StatusOK, callbackAck{ResultCode: 0, ResultDesc: "Accepted"})
}

func (s *Server) borrowerLoansHandler(w http.ResponseWriter, r *http.Request) {
	borrowerID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid borrower ID")
		return
	}
	loans, err := s.storage.ListLoansByBorrower(borrowerID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	summary, err := s.ledger.BorrowerSummary(borrowerID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"loans":   loanViews(loans),
		"summary": summary,
	})
}

func (s *Server) lenderLoansHandler(w http.ResponseWriter, r *http.Request) {
	lenderID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid lender ID")
		return
	}
	loans, err := s.storage.ListLoansByLender(lenderID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	portfolio, err := s.ledger.LenderPortfolio(lenderID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"loans":     loanViews(loans),
		"portfolio": portfolio,
	})
}

func (s *Server) depositHandler(w http.ResponseWriter, r *http.Request) {
	lenderID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid lender ID")
		return
	}
	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := s.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	lender, err := s.actor(lenderID)
	if err != nil {
		s.respondError(w, err)
		return
	}

	wallet, err := s.ledger.FundWallet(lender, req.Amount)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, wallet)
}

func (s *Server) getWalletHandler(w http.ResponseWriter, r *http.Request) {
	lenderID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid lender ID")
		return
	}
	wallet, err := s.ledger.Wallet(lenderID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

func (s *Server) transactionsHandler(w http.ResponseWriter, r *http.Request) {
	lenderID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid lender ID")
		return
	}
	rows, err := s.ledger.Statement(lenderID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) transactionsCSVHandler(w http.ResponseWriter, r *http.Request) {
	lenderID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid lender ID")
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="transactions.csv"`)
	if err := s.ledger.WriteStatementCSV(w, lenderID); err != nil {
		s.logger.Error("failed to write statement csv", zap.Error(err))
	}
}

func (s *Server) notificationsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user ID")
		return
	}
	notes, err := s.ledger.Notifications(userID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

func (s *Server) markNotificationReadHandler(w http.ResponseWriter, r *http.Request) {
	noteID, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid notification ID")
		return
	}
	var req struct {
		UserID uuid.UUID `json:"user_id" validate:"required"`
	}
	if err := s.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.ledger.MarkNotificationRead(noteID, req.UserID); err != nil {
		s.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// respondError maps domain errors to HTTP statuses.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrAlreadyProcessed),
		errors.Is(err, models.ErrLoanNotActive):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrInvalidAmount),
		errors.Is(err, models.ErrExceedsBalance),
		errors.Is(err, finance.ErrInvalidTerm),
		errors.Is(err, finance.ErrNegativeRate),
		errors.Is(err, finance.ErrNonPositivePrincipal),
		errors.Is(err, mpesa.ErrInvalidPhone):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrNotLender):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, mpesa.ErrProviderUnavailable):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.logger.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
