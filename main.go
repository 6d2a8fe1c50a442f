package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"condocore/aggregate"
	"condocore/alias"
	"condocore/config"
	"condocore/lifecycle"
	"condocore/logging"
	"condocore/normalize"
	"condocore/resolve"
	"condocore/scheduler"
	"condocore/scraper"
	"condocore/storage"
	"condocore/store"
	"condocore/txretry"
)

var (
	scrapeNow = flag.Bool("scrape", false, "Run scrape once and exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	logFile, err := logging.Setup("daemon.log")
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting condocore...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Loaded %d site configs", len(cfg.Sites))
	for id, site := range cfg.Sites {
		log.Printf("  - %s (%s)", site.Name, id)
	}

	ctx := context.Background()

	pgStore, err := store.NewPostgresStore(ctx, cfg.Postgres.DBURL, txretry.Config{MaxRetries: cfg.Core.DeadlockRetries})
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer pgStore.Close()
	log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.Postgres.DBURL))

	normalizer := normalize.NewEngine()
	aggregator := aggregate.NewEngine(pgStore)
	lifecycleEngine := lifecycle.NewEngine(pgStore, aggregator, cfg.Core.StalledListingThreshold, cfg.Core.FinalPriceWindow)
	aliasLedger := alias.NewLedger(pgStore)
	resolver := resolve.NewEngine(pgStore, normalizer, aggregator, lifecycleEngine, aliasLedger)

	log.Println("Entity-resolution engine initialized")

	sqliteStore, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer sqliteStore.Close()
	log.Printf("SQLite bookkeeping database: %s", cfg.DBPath)

	// No Fetcher/Parser pair is registered here — HTTP fetching and
	// per-site HTML parsing are external collaborators (see DESIGN.md).
	// A deployment wires real implementations into scraper.NewHandler per
	// configured site before calling scraper.NewOrchestrator.
	handlers := make(map[string]scraper.Handler)

	orchestrator := scraper.NewOrchestrator(cfg, sqliteStore, resolver, handlers)

	if *scrapeNow {
		log.Println("Running scrape...")
		if err := orchestrator.RunAll(ctx); err != nil {
			log.Fatalf("Scrape failed: %v", err)
		}
		log.Println("Scrape complete!")
		return
	}

	sched := scheduler.New(cfg, orchestrator, sqliteStore, pgStore, lifecycleEngine)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	sched.Stop()
	log.Println("Goodbye!")
}

// maskConnectionString masks password in connection string for logging
func maskConnectionString(connStr string) string {
	// Simple mask - find :// and mask until @
	start := 0
	for i := 0; i < len(connStr)-3; i++ {
		if connStr[i:i+3] == "://" {
			start = i + 3
			break
		}
	}
	if start == 0 {
		return connStr
	}

	// Find : after user
	colonIdx := -1
	atIdx := -1
	for i := start; i < len(connStr); i++ {
		if connStr[i] == ':' && colonIdx == -1 {
			colonIdx = i
		}
		if connStr[i] == '@' {
			atIdx = i
			break
		}
	}

	if colonIdx > 0 && atIdx > colonIdx {
		return connStr[:colonIdx+1] + "****" + connStr[atIdx:]
	}
	return connStr
}
