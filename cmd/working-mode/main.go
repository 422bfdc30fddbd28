package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/llyrli/working-mode/internal/api"
	"github.com/llyrli/working-mode/internal/classifier"
	"github.com/llyrli/working-mode/internal/config"
	"github.com/llyrli/working-mode/internal/db"
	"github.com/llyrli/working-mode/internal/ledger"
	"github.com/llyrli/working-mode/internal/llm"
	"github.com/llyrli/working-mode/internal/reminder"
	"github.com/llyrli/working-mode/internal/scheduler"
	"github.com/llyrli/working-mode/internal/timekey"
	"github.com/llyrli/working-mode/internal/tracker"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting working-mode...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Open the store
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	settings, err := database.LoadSettings()
	if err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}

	clock := clockwork.NewRealClock()

	// Build the engine
	llmClient := llm.NewClient(cfg.GeminiBaseURL)
	cls := classifier.New(llmClient)
	cache := classifier.NewCache(clock)
	led := ledger.New(database, clock)

	notifiers := []reminder.Notifier{}
	if cfg.NotifyWebhook != "" {
		notifiers = append(notifiers, reminder.NewWebhookNotifier(cfg.NotifyWebhook))
	}
	notifiers = append(notifiers, reminder.LogNotifier{})
	policy := reminder.New(clock, notifiers...)

	controller := tracker.New(database, led, cls, cache, policy)

	// Create and start the periodic tick
	sched, err := scheduler.New(timekey.Location(settings.TimeZone), clock, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := controller.Tick(ctx); err != nil {
			log.Printf("Tick error: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}
	if settings.Enabled {
		if err := sched.Start(settings.IntervalMinutes); err != nil {
			log.Fatalf("Failed to start scheduler: %v", err)
		}
	}

	// Create router
	router := api.NewRouter(cfg, controller, sched)

	// Start server
	addr := ":" + cfg.Port
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Stopping scheduler...")
	if err := sched.Shutdown(); err != nil {
		log.Printf("Scheduler shutdown error: %v", err)
	}

	// Settle any outstanding time before exit
	if settings, err := database.LoadSettings(); err == nil {
		if err := led.Settle(settings); err != nil {
			log.Printf("Final settlement error: %v", err)
		}
	}

	log.Println("Closing database...")
	if err := database.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("Shutdown complete")
}
