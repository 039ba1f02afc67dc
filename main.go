package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"ytqueue/api"
	"ytqueue/config"
	"ytqueue/job"
	"ytqueue/ytdlp"

	"github.com/joho/godotenv"
)

func main() {
	// 1. Load configuration (.env is optional)
	godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Open the job store
	store, err := job.OpenStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open job store: %v", err)
	}
	defer store.Close()

	// Jobs stranded in processing by a previous crash can never finish.
	if n, err := store.FailStale("interrupted by server restart"); err != nil {
		log.Fatalf("Failed to reconcile stale jobs: %v", err)
	} else if n > 0 {
		log.Printf("Marked %d interrupted download(s) as failed", n)
	}

	// 3. Initialize the yt-dlp runner and the queue manager
	runner, err := ytdlp.NewRunner(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize yt-dlp runner: %v", err)
	}
	mgr := job.NewManager(cfg, store, runner, runner)

	// 4. Set up router and server
	router := api.SetupRouter(mgr, cfg)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// 5. Start the worker and HTTP server under a signal context
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mgr.Start(ctx)

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 6. Wait for interrupt signal for graceful shutdown
	<-ctx.Done()

	stop()
	log.Println("Shutting down gracefully, press Ctrl+C again to force")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	log.Println("Server exiting")
}
