package main

import (
	"log"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kmwangi/pesalend/pkg/mpesa"
	"github.com/kmwangi/pesalend/pkg/store"
)

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newRouter(server *Server, logger *zap.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(requestLogger(logger))

	router.HandleFunc("/users", server.createUserHandler).Methods("POST")
	router.HandleFunc("/users/{id}", server.getUserHandler).Methods("GET")
	router.HandleFunc("/users/{id}/notifications", server.notificationsHandler).Methods("GET")
	router.HandleFunc("/notifications/{id}/read", server.markNotificationReadHandler).Methods("POST")

	router.HandleFunc("/applications", server.submitApplicationHandler).Methods("POST")
	router.HandleFunc("/applications", server.listApplicationsHandler).Methods("GET")
	router.HandleFunc("/applications/{id}/approve", server.approveApplicationHandler).Methods("POST")
	router.HandleFunc("/applications/{id}/reject", server.rejectApplicationHandler).Methods("POST")

	router.HandleFunc("/loans/{id}", server.getLoanHandler).Methods("GET")
	router.HandleFunc("/loans/{id}/schedule", server.loanScheduleHandler).Methods("GET")
	router.HandleFunc("/loans/{id}/payments", server.loanPaymentsHandler).Methods("GET")
	router.HandleFunc("/loans/{id}/payments", server.recordPaymentHandler).Methods("POST")
	router.HandleFunc("/loans/{id}/stkpush", server.initiatePushHandler).Methods("POST")
	router.HandleFunc("/mpesa/callback", server.mpesaCallbackHandler).Methods("POST")

	router.HandleFunc("/borrowers/{id}/loans", server.borrowerLoansHandler).Methods("GET")
	router.HandleFunc("/lenders/{id}/loans", server.lenderLoansHandler).Methods("GET")
	router.HandleFunc("/lenders/{id}/wallet", server.getWalletHandler).Methods("GET")
	router.HandleFunc("/lenders/{id}/wallet/deposits", server.depositHandler).Methods("POST")
	router.HandleFunc("/lenders/{id}/transactions", server.transactionsHandler).Methods("GET")
	router.HandleFunc("/lenders/{id}/transactions.csv", server.transactionsCSVHandler).Methods("GET")

	return router
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	sqliteStore, err := store.NewSQLiteStore(env("DB_PATH", "pesalend.db"))
	if err != nil {
		logger.Fatal("failed to initialize SQLite store", zap.Error(err))
	}
	defer sqliteStore.Close()

	payments := mpesa.NewClient(mpesa.Config{
		Environment:    env("MPESA_ENV", "sandbox"),
		ConsumerKey:    os.Getenv("MPESA_CONSUMER_KEY"),
		ConsumerSecret: os.Getenv("MPESA_CONSUMER_SECRET"),
		Shortcode:      os.Getenv("MPESA_SHORTCODE"),
		Passkey:        os.Getenv("MPESA_PASSKEY"),
		CallbackURL:    os.Getenv("MPESA_CALLBACK_URL"),
	}, logger)

	server := NewServer(sqliteStore, payments, logger)
	router := newRouter(server, logger)

	addr := ":" + env("HTTP_PORT", "8080")
	logger.Info("server starting", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, router); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}
