package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docview-paywall/internal/client"
	"docview-paywall/internal/config"
	"docview-paywall/internal/grant"
	"docview-paywall/internal/handler"
	"docview-paywall/internal/logger"
	"docview-paywall/internal/model"
	"docview-paywall/internal/repository"
	"docview-paywall/internal/server"
	"docview-paywall/internal/service"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log, "docview")

	db, err := client.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}

	documentRepo := repository.NewDocumentRepository(db)
	linkRepo := repository.NewVisitorLinkRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	grantRepo := repository.NewGrantRepository(db)

	if cfg.Database.Seed {
		if err := documentRepo.Seed(context.Background()); err != nil {
			log.Fatalf("seed database: %v", err)
		}
	}

	router := client.NewGatewayRouter()
	if cfg.Paywall.MockEnabled && !cfg.Environment.IsProduction() {
		router.Register(model.PaymentMethodMock, client.NewMockGateway(
			client.NewRandomOutcome(cfg.Paywall.MockSuccessRate, cfg.Paywall.MockSeed),
			client.WithMockDelay(cfg.Paywall.MockDelay),
		))
		log.Warnf("mock payment gateway enabled (success rate %.2f)", cfg.Paywall.MockSuccessRate)
	}
	if cfg.BrainTree.MerchantID != "" {
		router.Register(model.PaymentMethodCard, client.NewBraintreeGateway(client.NewBraintreeClient(&cfg.BrainTree)))
	}

	paypalPricing, err := client.NewPaypalPricing(&cfg.Paypal)
	if err != nil {
		log.Fatalf("paypal pricing: %v", err)
	}

	var paypalClient client.PaypalClient
	if cfg.Paypal.ClientID != "" {
		paypalClient = client.NewPaypalClient(&cfg.Paypal)
		router.Register(model.PaymentMethodPaypal, client.NewPaypalGateway(paypalClient))
	}

	signer := grant.NewSigner(cfg.Grant.Secret, cfg.Grant.Issuer)

	accessService := service.NewAccessService(documentRepo, linkRepo, grantRepo, signer, service.LinkPolicy{
		DefaultTTL: cfg.Visitor.LinkTTL,
		MaxTTL:     cfg.Visitor.MaxLinkTTL,
	}, log)
	paymentService := service.NewPaymentService(
		router,
		paypalClient,
		service.PaymentConfig{
			BaseURL:        cfg.BaseURL,
			GatewayTimeout: cfg.Paywall.GatewayTimeout,
			PaypalPricing:  paypalPricing,
		},
		documentRepo,
		transactionRepo,
		log,
	)
	paywallService := service.NewPaywallService(
		accessService,
		paymentService,
		grantRepo,
		signer,
		cfg.Paywall.ViewingWindow,
		cfg.Paywall.SessionTTL,
		log,
	)

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	go paywallService.RunJanitor(janitorCtx, time.Minute)

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	// Init HTTP server
	srv := server.NewServer(
		handler.NewAccessHandler(accessService, cfg.Visitor.TickPeriod),
		paywallService,
		server.Options{
			Logger:           log,
			PaymentRateLimit: cfg.Paywall.PaymentRateLimit,
			ShareKey:         cfg.Visitor.ShareKey,
		},
	)

	log.Infof("Starting HTTP server on %s", serverAddr)
	go func() {
		if err := srv.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	<-sigChan
	log.Info("Signal received, starting graceful shutdown...")
	stopJanitor()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("HTTP server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
