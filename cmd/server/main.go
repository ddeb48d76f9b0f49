package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"checkout-service/config"
	"checkout-service/internal/api"
	"checkout-service/internal/broker"
	"checkout-service/internal/gateway"
	"checkout-service/internal/ratelimit"
	"checkout-service/internal/redisclient"
	"checkout-service/internal/service"
	"checkout-service/internal/store"
	"checkout-service/internal/util"
	"checkout-service/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting checkout service")

	tp, err := util.InitTracer("checkout-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.RunMigrations(cfg.Database.MigrationsPath); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database connected, migrations applied")

	// The rate limiter prefers the shared Redis counter; without Redis it
	// falls back to a process-local store, which only bounds this node.
	var limitStore ratelimit.Store
	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Printf("Redis unavailable, using in-memory rate limiting: %v", err)
		memStore := ratelimit.NewMemoryStore()
		go func() {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for range ticker.C {
				memStore.Prune()
			}
		}()
		limitStore = memStore
	} else {
		defer redisClient.Close()
		limitStore = ratelimit.NewRedisStore(redisClient)
		log.Println("Redis connected")
	}

	checkoutLimiter := ratelimit.New(limitStore, ratelimit.Config{
		MaxRequests: cfg.RateLimit.CheckoutMax,
		Window:      cfg.RateLimit.CheckoutWindow,
	})
	standardLimiter := ratelimit.New(limitStore, ratelimit.Config{
		MaxRequests: cfg.RateLimit.StandardMax,
		Window:      cfg.RateLimit.StandardWindow,
	})

	abuseProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicAbuse)
	defer abuseProducer.Close()
	orderProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer orderProducer.Close()
	log.Println("Kafka producers initialized")

	eventPublisher := broker.NewEventPublisher(abuseProducer, orderProducer)

	validator := service.NewPriceValidator(db)
	tamperingLogger := service.NewTamperingLogger(eventPublisher)
	razorpayGateway := gateway.NewRazorpayGateway(
		cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret, cfg.Razorpay.Currency, cfg.Razorpay.Timeout)
	checkoutService := service.NewCheckoutService(db, validator, razorpayGateway, tamperingLogger, eventPublisher)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	abuseConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicAbuse, cfg.Kafka.ConsumerGroup)
	abuseWorker := worker.NewAbuseLogWorker(abuseConsumer, db)
	go func() {
		if err := abuseWorker.Start(workerCtx); err != nil {
			log.Printf("Abuse log worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(checkoutService, checkoutLimiter, standardLimiter)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	abuseWorker.Stop()

	log.Println("Server exited")
}
