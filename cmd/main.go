package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rashinkp/byway-sub005/domain"
	"github.com/rashinkp/byway-sub005/internal/cart"
	"github.com/rashinkp/byway-sub005/internal/config"
	"github.com/rashinkp/byway-sub005/internal/gateway"
	h "github.com/rashinkp/byway-sub005/internal/http"
	"github.com/rashinkp/byway-sub005/internal/lock"
	"github.com/rashinkp/byway-sub005/internal/publisher"
	"github.com/rashinkp/byway-sub005/internal/repository"
	"github.com/rashinkp/byway-sub005/internal/service"
	"github.com/rashinkp/byway-sub005/internal/wallet"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := log.With().Str("service", "checkout").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	creds := &repository.Credentials{
		Host:              cfg.DBHost,
		Port:              cfg.DBPort,
		User:              cfg.DBUser,
		Password:          cfg.DBPassword,
		DBName:            cfg.DBName,
		MigrationsDirPath: cfg.MigrationsDirPath,
	}
	repo, err := repository.NewRepository(creds)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer repo.Close()

	if err := repo.RunMigrations(creds); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer redisClient.Close()

	mongoCtx, cancelMongo := context.WithTimeout(context.Background(), 10*time.Second)
	mongoDB, err := cart.ConnectMongoDB(mongoCtx, cfg.MongoURI, cfg.MongoDBName)
	cancelMongo()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to mongodb")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoDB.Client().Disconnect(ctx); err != nil {
			logger.Error().Err(err).Msg("failed to disconnect mongodb")
		}
	}()

	locker := lock.NewRedisLocker(redisClient, cfg.CheckoutLockTTL)
	balanceCache := wallet.NewRedisBalanceCache(redisClient)
	walletSvc := wallet.NewService(repo, repo, balanceCache, logger)
	cartSource := cart.NewMongoRepository(mongoDB)

	stripeGW := gateway.NewStripeGateway(cfg.StripeAPIKey, cfg.StripeWebhookSecret, cfg.Currency, cfg.RequestTimeout)
	paypalGW, err := gateway.NewPayPalGateway(cfg.PayPalClientID, cfg.PayPalSecret, cfg.PayPalAPIBase, cfg.PayPalWebhookID, cfg.Currency)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize paypal gateway")
	}
	gateways := map[domain.Gateway]gateway.PaymentGateway{
		domain.GatewayStripe: stripeGW,
		domain.GatewayPaypal: paypalGW,
	}

	checkoutSvc := service.NewCheckoutService(
		repo, cartSource, walletSvc, locker, gateways,
		service.Options{
			Currency:   cfg.Currency,
			SuccessURL: cfg.SuccessURL,
			CancelURL:  cfg.CancelURL,
		},
		logger,
	)
	settlementSvc := service.NewSettlementService(repo, walletSvc, locker, logger)

	poller := publisher.NewOutboxPoller(repo, locker, logger, cfg.StaleOrderTimeout, cfg.KafkaBrokers...)
	defer poller.Close()

	pollerCtx, stopPoller := context.WithCancel(context.Background())
	defer stopPoller()
	go poller.Run(pollerCtx)

	orderHandler := h.NewOrderHandler(checkoutSvc, settlementSvc)
	stripeHandler := h.NewStripeHandler(stripeGW, checkoutSvc, settlementSvc, logger)
	paypalHandler := h.NewPayPalHandler(paypalGW, checkoutSvc, settlementSvc, logger)
	walletHandler := h.NewWalletHandler(walletSvc, checkoutSvc)

	router := h.NewRouter(orderHandler, stripeHandler, paypalHandler, walletHandler, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.HTTPPort).Msg("checkout service starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	stopPoller()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server exited")
}
