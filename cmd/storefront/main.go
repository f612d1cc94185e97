package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/construmax/storefront-backend/internal/auth"
	"github.com/construmax/storefront-backend/internal/cart"
	"github.com/construmax/storefront-backend/internal/catalog"
	"github.com/construmax/storefront-backend/internal/config"
	"github.com/construmax/storefront-backend/internal/db"
	"github.com/construmax/storefront-backend/internal/events"
	httpserver "github.com/construmax/storefront-backend/internal/http"
	"github.com/construmax/storefront-backend/internal/order"
	"github.com/construmax/storefront-backend/internal/payment"
)

func main() {
	_ = godotenv.Load()

	logger := log.New(os.Stdout, "[storefront] ", log.LstdFlags|log.Lshortfile)

	cfg := config.Load()
	if cfg.JWTSecret == "" {
		logger.Fatal("JWT_SECRET not set")
	}

	if err := db.RunMigrations(cfg.DatabaseURL, logger); err != nil {
		logger.Fatalf("run migrations: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("open db: %v", err)
	}
	defer pool.Close()

	rabbitConn, err := events.Dial(cfg.RabbitURL)
	if err != nil {
		logger.Fatalf("dial rabbitmq: %v", err)
	}
	defer rabbitConn.Close()

	publisher, err := events.NewPublisher(rabbitConn)
	if err != nil {
		logger.Fatalf("create publisher: %v", err)
	}

	gateway, err := payment.NewClient(cfg.PaymentURL, cfg.PaymentTimeout)
	if err != nil {
		logger.Fatalf("create payment client: %v", err)
	}

	productRepo := catalog.NewPostgresRepository(pool)
	productStore := catalog.NewStore(productRepo)
	cartRepo := cart.NewPostgresRepository(pool)
	orderRepo := order.NewPostgresRepository(pool)
	adminRepo := auth.NewPostgresRepository(pool)

	router := httpserver.NewRouter(httpserver.RouterConfig{
		Products: httpserver.NewProductHandler(productRepo, productStore),
		Carts:    httpserver.NewCartHandler(cartRepo, productRepo, logger),
		Checkout: httpserver.NewCheckoutHandler(cartRepo, gateway, orderRepo, publisher, publisher, logger),
		Admin:    httpserver.NewAdminHandler(adminRepo, productRepo, orderRepo, []byte(cfg.JWTSecret)),

		JWTSecret:        []byte(cfg.JWTSecret),
		CORSAllowOrigins: cfg.CORSAllowOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 35 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("storefront listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Printf("shutdown signal received")
	case err := <-errCh:
		logger.Fatalf("server error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown error: %v", err)
	}
	if err := publisher.Close(); err != nil {
		logger.Printf("publisher close error: %v", err)
	}
}
