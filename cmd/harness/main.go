package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jarness/jarness/internal/api"
	"github.com/jarness/jarness/internal/history"
	"github.com/jarness/jarness/internal/logging"
	"github.com/jarness/jarness/internal/runner"
	"github.com/jarness/jarness/pkg/config"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	flags := flag.NewFlagSet(cmd, flag.ExitOnError)
	configPath := flags.String("config", "harness.yaml", "path to the harness configuration")
	flags.Parse(os.Args[2:])

	switch cmd {
	case "check":
		runCheck(*configPath)
	case "run":
		runHarness(*configPath)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: harness <run|check> [-config harness.yaml]")
}

func runCheck(configPath string) {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Configuration check failed: %v", err)
	}
	fmt.Printf("Configuration OK: %d container(s)\n", len(cfg.Containers))
}

func runHarness(configPath string) {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if len(cfg.Containers) == 0 {
		log.Fatalf("No containers configured")
	}

	logging.Init(cfg.Logging)
	defer logging.Close()

	var store *history.Store
	if cfg.History.Enabled {
		store, err = history.Open(cfg.History.Path)
		if err != nil {
			log.Fatalf("Failed to open history store: %v", err)
		}
		defer store.Close()

		if err := store.StartPruning(cfg.History.PruneSchedule, cfg.History.RetentionDays); err != nil {
			log.Fatalf("Failed to schedule history pruning: %v", err)
		}
	}

	r, err := runner.New(cfg, store)
	if err != nil {
		log.Fatalf("Failed to build harness: %v", err)
	}
	defer r.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := r.StartAll(ctx); err != nil {
		log.Fatalf("Failed to start containers: %v", err)
	}

	var apiServer *http.Server
	if cfg.ControlAPI.Enabled {
		router := api.NewRouter(cfg.ControlAPI, r, store)
		apiServer = &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.ControlAPI.Host, cfg.ControlAPI.Port),
			Handler: router,
		}
		go func() {
			log.Printf("Control API listening on %s", apiServer.Addr)
			if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("Control API error: %v", err)
			}
		}()
	}

	log.Printf("Harness ready; waiting for interrupt")
	<-ctx.Done()

	log.Printf("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if apiServer != nil {
		apiServer.Shutdown(shutdownCtx)
	}

	if err := r.StopAll(shutdownCtx); err != nil {
		log.Printf("Teardown finished with errors: %v", err)
		os.Exit(1)
	}
	log.Printf("Teardown complete")
}
