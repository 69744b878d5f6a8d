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

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"

	"github.com/oumiche/impact-auto-plus-sub006/internal/adapter/fsm"
	handler "github.com/oumiche/impact-auto-plus-sub006/internal/adapter/http"
	otelad "github.com/oumiche/impact-auto-plus-sub006/internal/adapter/otel"
	riverad "github.com/oumiche/impact-auto-plus-sub006/internal/adapter/river"
	"github.com/oumiche/impact-auto-plus-sub006/internal/adapter/sqlite"
	"github.com/oumiche/impact-auto-plus-sub006/internal/app"
)

const usage = `usage: atelieriq <command> [flags]

commands:
  serve     run the HTTP API server (default)
  workflow  show the intervention workflow transition table
  status    apply a status transition to an intervention

run "atelieriq <command> -h" for command flags.
`

func main() {
	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 {
		cmd = args[0]
		args = args[1:]
	}

	switch cmd {
	case "serve":
		if err := run(); err != nil {
			log.Fatal(err)
		}
	case "workflow":
		os.Exit(runWorkflow(args, os.Stdout, os.Stderr))
	case "status":
		os.Exit(runStatus(args, os.Stdout, os.Stderr))
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

// run wires the full service and blocks until SIGINT/SIGTERM.
func run() error {
	port := envOrDefault("PORT", "8080")
	dbPath := envOrDefault("DATABASE_PATH", "atelieriq.db")

	ctx := context.Background()

	// --- Observability ---
	providers, err := otelad.Setup(ctx, otelad.ConfigFromEnv())
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}

	// --- Adapters (out) ---
	db, err := otelad.OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}

	store, err := sqlite.NewFromDB(db)
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	defer store.Close()

	riverClient, err := riverad.Setup(ctx, db)
	if err != nil {
		return fmt.Errorf("river: %w", err)
	}

	// --- Application ---
	codes := app.NewCodeService(store, otelad.NewTracingSequenceStore(store))
	workflows := app.NewWorkflowService(
		otelad.NewTracingRepository(store),
		fsm.New(),
		codes,
		otelad.NewTracingPublisher(riverad.NewPublisher(riverClient)),
	)

	// --- Adapters (in) ---
	router := chi.NewMux()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)
	router.Use(otelchi.Middleware("atelieriq", otelchi.WithChiRoutes(router)))

	api := humachi.New(router, huma.DefaultConfig("atelieriq", "0.1.0"))
	handler.Register(api, workflows, codes)

	if err := riverClient.Start(ctx); err != nil {
		return fmt.Errorf("starting river: %w", err)
	}

	// --- Server ---
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(done)

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("atelieriq listening on :%s", port)
		log.Printf("API docs: http://localhost:%s/docs", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server: %w", err)
	case <-done:
	}
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	if err := riverClient.Stop(shutdownCtx); err != nil {
		log.Printf("river shutdown error: %v", err)
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("otel shutdown error: %v", err)
	}

	log.Println("stopped")
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
