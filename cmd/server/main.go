// Package main is the entry point for the door schedule sync server.
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

	"github.com/door-schedule-sync/backend/internal/api"
	"github.com/door-schedule-sync/backend/internal/config"
	"github.com/door-schedule-sync/backend/internal/pco"
	"github.com/door-schedule-sync/backend/internal/storage"
	syncsvc "github.com/door-schedule-sync/backend/internal/sync"
	"github.com/door-schedule-sync/backend/internal/unifi"
	"github.com/door-schedule-sync/backend/internal/websocket"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
// Defaults to "dev" when not provided.
var version = "dev"

func main() {
	configPath := flag.String("config", "/data/config.yaml", "Path to the YAML config file")
	dataDir := flag.String("data", "/data", "Data directory for SQLite database")
	staticDir := flag.String("static", "./static", "Directory for static frontend files")
	addr := flag.String("addr", "", "HTTP server address (overrides config)")
	healthCheck := flag.Bool("health-check", false, "Run health check and exit")
	flag.Parse()

	if envVer := os.Getenv("VERSION"); envVer != "" {
		version = envVer
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	listen := cfg.Listen
	if *addr != "" {
		listen = *addr
	}

	// Health check mode for Docker HEALTHCHECK
	if *healthCheck {
		if err := runHealthCheck(listen); err != nil {
			log.Fatalf("Health check failed: %v", err)
		}
		os.Exit(0)
	}

	log.Printf("Starting door schedule sync (version: %s)...", version)

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("Failed to load timezone %q: %v", cfg.Timezone, err)
	}

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		log.Fatalf("Failed to create data directory %q: %v", *dataDir, err)
	}
	db, err := storage.NewDB(*dataDir + "/door-schedule-sync.db")
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := storage.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations complete")

	store := storage.NewDocumentStore(db)

	hub := websocket.NewHub()
	go hub.Run()

	pcoClient := pco.NewClient(cfg.PCO)
	unifiClient := unifi.NewClient(cfg.Unifi)

	service := syncsvc.NewService(cfg, store, pcoClient, unifiClient, hub, loc)
	scheduler := syncsvc.NewScheduler(service, cfg.Sync.Cron)
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start sync scheduler: %v", err)
	}

	router := api.NewRouter(db, store, hub, service, scheduler, pcoClient, unifiClient, *staticDir)

	server := &http.Server{
		Addr:         listen,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // a manual sync pass can be slow
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server listening on %s", listen)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}

// runHealthCheck performs a health check against the running server.
func runHealthCheck(addr string) error {
	url := "http://localhost" + addr + "/api/health"
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return http.ErrAbortHandler
	}
	return nil
}
