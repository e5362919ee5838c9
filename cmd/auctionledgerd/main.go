// auctionledgerd serves the custodial auction ledger over TCP or
// vsock. Asset custody is backed by the in-memory bank; deployments
// with an external asset store substitute their own core.Custody.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudx-io/auctionledger/core"
	"github.com/cloudx-io/auctionledger/custody"
	"github.com/cloudx-io/auctionledger/journal"
	"github.com/cloudx-io/auctionledger/service"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := service.LoadAndValidate(*configPath)
	if err != nil {
		log.Fatalf("ERROR: Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var events core.Events
	var jnl *journal.Journal
	if cfg.Journal.Enabled() {
		pool, err := journal.Connect(ctx, cfg.Journal.DSN)
		if err != nil {
			log.Fatalf("ERROR: Failed to connect journal database: %v", err)
		}
		defer pool.Close()

		jnl = journal.New(journal.Config{
			BatchSize:     cfg.Journal.BatchSize,
			FlushInterval: cfg.Journal.FlushInterval,
		}, pool)
		if err := jnl.Start(ctx); err != nil {
			log.Fatalf("ERROR: Failed to start journal: %v", err)
		}
		events = jnl
	}

	bank := custody.NewBank()
	ledger := core.NewLedger(core.SystemClock{}, bank, events)

	server := service.NewServer(*cfg, ledger)
	if err := server.Start(ctx); err != nil {
		log.Fatalf("ERROR: Server failed: %v", err)
	}

	if jnl != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := jnl.Stop(shutdownCtx); err != nil {
			log.Printf("ERROR: Failed to stop journal: %v", err)
		}
	}
}
