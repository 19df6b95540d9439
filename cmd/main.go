package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/tshiamom/clanfund-gobackend/internal/config"
	"github.com/tshiamom/clanfund-gobackend/internal/db"
	"github.com/tshiamom/clanfund-gobackend/internal/handlers"
	"github.com/tshiamom/clanfund-gobackend/internal/notify"
	"github.com/tshiamom/clanfund-gobackend/internal/services"
	"github.com/tshiamom/clanfund-gobackend/internal/upload"
)

func main() {
	// Load .env
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Error loading .env: %s", err)
	}
	cfg := config.Load()

	// Connect to MongoDB
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := db.Connect(ctx, cfg.MongoURI)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.Printf("Error disconnecting from MongoDB: %v", err)
		}
	}()
	log.Println("Successfully connected to MongoDB")

	database := client.Database(cfg.DBName)
	if err := db.EnsureIndexes(ctx, database); err != nil {
		log.Fatalf("Failed to create indexes: %v", err)
	}

	store := services.NewStore(database)

	// Notification pipeline
	queue := notify.NewQueue(256)
	email := notify.NewEmailClient(cfg.ZeptoAPIURL, cfg.ZeptoAPIKey, cfg.EmailFrom)
	var sms notify.SMSSender
	if cfg.SMSProvider == "smsportal" {
		sms = notify.NewSMSPortalClient(cfg.SMSPortalURL, cfg.SMSPortalClientID, cfg.SMSPortalAPISecret)
	} else {
		sms = notify.NewBulkSMSClient(cfg.BulkSMSURL, cfg.BulkSMSToken)
	}
	notifier := notify.NewNotifier(store, email, sms, cfg.SiteURL)
	notifier.RegisterAll(queue)
	queue.Start(4)
	defer queue.Stop()

	// Services
	fanout := services.NewFanoutEngine(store, store, queue)
	contributionService := services.NewContributionService(store, fanout, queue)
	paymentService := services.NewPaymentService(store, queue)
	yocoService := services.NewYocoService(store, queue, cfg.YocoSecretKey, cfg.YocoBaseURL, cfg.SiteURL)
	memberService := services.NewMemberService(store, cfg.JWTSecret)

	uploader, err := upload.NewUploader(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
	if err != nil {
		log.Fatalf("Failed to configure uploads: %v", err)
	}

	// Handlers
	auth := handlers.NewAuth(cfg.JWTSecret)
	memberHandler := handlers.NewMemberHandler(memberService)
	contributionHandler := handlers.NewContributionHandler(contributionService, auth)
	paymentHandler := handlers.NewPaymentHandler(paymentService, yocoService, store, uploader, auth)
	yocoHandler := handlers.NewYocoHandler(yocoService, store, auth)
	notificationHandler := handlers.NewNotificationHandler(store)

	// Set up router
	router := mux.NewRouter()
	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET", "HEAD")

	router.HandleFunc("/api/login", memberHandler.Login).Methods("POST")
	router.HandleFunc("/api/webhook/yoco", yocoHandler.Webhook).Methods("POST")
	router.HandleFunc("/api/webhook/sms-report", notificationHandler.SMSReport).Methods("POST")

	router.HandleFunc("/api/contribution-types", contributionHandler.CreateType).Methods("POST")
	router.HandleFunc("/api/contribution-types", contributionHandler.ListTypes).Methods("GET")
	router.HandleFunc("/api/contribution-types/{slug}", contributionHandler.GetTypeBySlug).Methods("GET")
	router.HandleFunc("/api/contribution-types/{slug}", contributionHandler.UpdateType).Methods("PATCH")

	router.HandleFunc("/api/contributions", contributionHandler.ListContributions).Methods("GET")
	router.HandleFunc("/api/contribution/{id}", contributionHandler.GetContribution).Methods("GET")
	router.HandleFunc("/api/contribution/{id}/checkout", paymentHandler.Checkout).Methods("POST")
	router.HandleFunc("/api/payment/log/{id}", paymentHandler.LogPayment).Methods("POST")

	router.HandleFunc("/api/payments", paymentHandler.ListPayments).Methods("GET")
	router.HandleFunc("/api/payment/{id}", paymentHandler.GetPayment).Methods("GET")
	router.HandleFunc("/api/payment/{id}/yoco", yocoHandler.CreateCheckout).Methods("POST")
	router.HandleFunc("/api/payment/{id}/approve", paymentHandler.Approve).Methods("POST")
	router.HandleFunc("/api/payment/{id}/reject", paymentHandler.Reject).Methods("POST")

	router.HandleFunc("/api/admin/reminders/run", contributionHandler.RunReminders).Methods("POST")

	// Start server
	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	log.Printf("Server running on port %s", cfg.HTTPPort)
	log.Fatal(server.ListenAndServe())
}
