// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stripe-invoice-bridge/internal/config"
	"stripe-invoice-bridge/internal/domain/ports/adapter"
	"stripe-invoice-bridge/internal/domain/ports/repository"
	sheetsAdapter "stripe-invoice-bridge/internal/infra/adapters/sheets"
	stripeAdapter "stripe-invoice-bridge/internal/infra/adapters/stripe"
	"stripe-invoice-bridge/internal/infra/adapters/szamlazz"
	httpapi "stripe-invoice-bridge/internal/infra/http"
	"stripe-invoice-bridge/internal/infra/logging"
	"stripe-invoice-bridge/internal/infra/markers"
	"stripe-invoice-bridge/internal/infra/metrics"
	red "stripe-invoice-bridge/internal/infra/redis"
	"stripe-invoice-bridge/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("developer mode enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Gateway ----
	gateway, err := stripeAdapter.NewGateway(cfg.Stripe.SecretKey)
	if err != nil {
		log.Fatalf("stripe gateway: %v", err)
	}

	// ---- Invoice issuer ----
	issuer := szamlazz.NewIssuer(cfg.Szamlazz)

	// ---- Ledger mirror (optional) ----
	var ledger adapter.Ledger
	if cfg.Sheets.Enabled {
		l, err := sheetsAdapter.NewLedger(ctx, cfg.Sheets)
		if err != nil {
			log.Fatalf("sheets ledger: %v", err)
		}
		ledger = l
		logger.Info().Str("spreadsheet", cfg.Sheets.SpreadsheetID).Msg("ledger mirror enabled")
	} else {
		logger.Warn().Msg("ledger mirror disabled, invoices will not be audited in sheets")
	}

	// ---- Idempotency markers + optional strict-mode lock ----
	markerStore := markers.NewGatewayMarkerStore(gateway)
	var locker repository.Locker
	if cfg.StrictMode() {
		rc, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer rc.Close()
		locker = red.NewLocker(rc)
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("strict mode enabled, per-payment locking active")
	}

	// ---- Engine ----
	uc := usecase.NewReconcileUseCase(gateway, issuer, ledger, markerStore, locker, usecase.Config{
		DefaultVATRate: cfg.Invoicing.DefaultVATRate,
		DefaultSheet:   cfg.Sheets.DefaultSheet,
		LockTTL:        cfg.Redis.LockTTL,
	}, logger)

	// ---- HTTP ----
	server := httpapi.NewServer(cfg, uc, logger)
	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		logger.Error().Err(err).Msg("http server failed")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown incomplete")
	}
}
