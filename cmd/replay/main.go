// File: cmd/replay/main.go
//
// Out-of-band replay of payments and refunds: payments that predate the
// webhook configuration, retries after fixed product metadata, and so on.
// Runs the same idempotent engine as the webhook, so replaying a finished
// payment is a harmless no-op.
//
//	replay -config config.yaml pi_xxx pi_yyy
//	replay -config config.yaml -refund re_xxx
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"stripe-invoice-bridge/internal/config"
	"stripe-invoice-bridge/internal/domain/ports/adapter"
	sheetsAdapter "stripe-invoice-bridge/internal/infra/adapters/sheets"
	stripeAdapter "stripe-invoice-bridge/internal/infra/adapters/stripe"
	"stripe-invoice-bridge/internal/infra/adapters/szamlazz"
	"stripe-invoice-bridge/internal/infra/logging"
	"stripe-invoice-bridge/internal/infra/markers"
	"stripe-invoice-bridge/internal/usecase"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	refund := flag.Bool("refund", false, "treat the ids as refund ids instead of payment ids")
	flag.Parse()

	ids := flag.Args()
	if len(ids) == 0 {
		fmt.Fprintln(os.Stderr, "usage: replay [-refund] <id> [<id> ...]")
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, true)

	ctx := context.Background()
	gateway, err := stripeAdapter.NewGateway(cfg.Stripe.SecretKey)
	if err != nil {
		log.Fatalf("stripe gateway: %v", err)
	}
	issuer := szamlazz.NewIssuer(cfg.Szamlazz)
	var ledger adapter.Ledger
	if cfg.Sheets.Enabled {
		l, err := sheetsAdapter.NewLedger(ctx, cfg.Sheets)
		if err != nil {
			log.Fatalf("sheets ledger: %v", err)
		}
		ledger = l
	}

	// No locker here: replay is a manual, serial tool.
	uc := usecase.NewReconcileUseCase(gateway, issuer, ledger, markers.NewGatewayMarkerStore(gateway), nil, usecase.Config{
		DefaultVATRate: cfg.Invoicing.DefaultVATRate,
		DefaultSheet:   cfg.Sheets.DefaultSheet,
	}, logger)

	failed := 0
	for _, id := range ids {
		var (
			out *usecase.Outcome
			err error
		)
		if *refund {
			out, err = uc.ProcessRefund(ctx, id)
		} else {
			out, err = uc.ProcessPayment(ctx, id)
		}
		if err != nil {
			failed++
			fmt.Printf("%s  ERROR  %v\n", id, err)
			continue
		}
		switch out.Status {
		case usecase.OutcomeSkipped:
			fmt.Printf("%s  SKIPPED  %s\n", id, out.SkipReason)
		default:
			fmt.Printf("%s  %s  %s\n", id, out.Status, out.InvoiceNumber)
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}
