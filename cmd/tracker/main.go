package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/you/bsgo-tracker/internal/config"
	"github.com/you/bsgo-tracker/internal/msgstate"
	"github.com/you/bsgo-tracker/internal/scrape"
	"github.com/you/bsgo-tracker/internal/store"
	"github.com/you/bsgo-tracker/internal/tracker"
	"github.com/you/bsgo-tracker/internal/version"
	"github.com/you/bsgo-tracker/internal/webhook"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	var (
		versionFlag   bool
		webhooks      string
		sourceURL     string
		updateMinutes int
		dbPath        string
		dataDir       string
		httpAddr      string
	)

	flag.BoolVar(&versionFlag, "version", false, "Print build version and exit")
	flag.StringVar(&webhooks, "webhooks", "", "Destination list: JSON array or comma-separated webhook URLs")
	flag.StringVar(&sourceURL, "source-url", "", "Default leaderboard page URL")
	flag.IntVar(&updateMinutes, "update-minutes", 0, "Minutes between update cycles")
	flag.StringVar(&dbPath, "sqlite", "", "Path to the history SQLite database")
	flag.StringVar(&dataDir, "data-dir", "", "Directory for per-destination message-id files")
	flag.StringVar(&httpAddr, "http-addr", "", "Prometheus metrics address (e.g., :8765); disabled when empty")
	flag.Parse()

	if versionFlag {
		fmt.Printf(
			"tracker version: %s (commit %s, built %s)\n",
			version.Version,
			version.Commit,
			version.BuildTime,
		)
		os.Exit(0)
	}

	overrides := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		overrides[f.Name] = true
	})

	cfg := config.Load()
	if overrides["webhooks"] {
		cfg.Webhooks = strings.TrimSpace(webhooks)
	}
	if overrides["source-url"] {
		cfg.SourceURL = strings.TrimSpace(sourceURL)
	}
	if overrides["update-minutes"] && updateMinutes > 0 {
		cfg.UpdateMinutes = updateMinutes
	}
	if overrides["sqlite"] {
		cfg.DBPath = strings.TrimSpace(dbPath)
	}
	if overrides["data-dir"] {
		cfg.DataDir = strings.TrimSpace(dataDir)
	}

	dests, err := cfg.Destinations()
	if err != nil {
		log.Fatalf("tracker: config: %v", err)
	}

	log.Printf("tracker: %s", cfg.RedactedJSON())
	log.Printf("tracker: loaded %d webhook(s), interval %s", len(dests), cfg.Interval())

	hist, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("tracker: open sqlite: %v", err)
	}
	defer func() {
		if err := hist.Close(); err != nil {
			log.Printf("tracker: closing store: %v", err)
		}
	}()
	if err := hist.Ping(); err != nil {
		log.Fatalf("tracker: ping sqlite: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("tracker: received %s, shutting down", sig)
		cancel()
	}()

	metrics := tracker.NewMetrics()
	if httpAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv := &http.Server{Addr: httpAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("tracker: metrics listener: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
			_ = srv.Shutdown(shutdownCtx)
			cancelShutdown()
		}()
		log.Printf("tracker: metrics ready on %s", httpAddr)
	}

	runner := &tracker.Runner{
		Destinations:   dests,
		Fetcher:        scrape.New(&http.Client{Timeout: cfg.FetchTimeout()}),
		Store:          hist,
		State:          msgstate.NewFileStore(cfg.DataDir),
		Publisher:      webhook.New(&http.Client{Timeout: cfg.PublishTimeout()}),
		Interval:       cfg.Interval(),
		Metrics:        metrics,
		FetchTimeout:   cfg.FetchTimeout(),
		PublishTimeout: cfg.PublishTimeout(),
	}

	runner.Run(ctx)
	log.Printf("tracker: shutdown complete")
}
