package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/lanedispatch/internal/config"
	"github.com/joshu-sajeev/lanedispatch/internal/job"
	"github.com/joshu-sajeev/lanedispatch/internal/lane"
	"github.com/joshu-sajeev/lanedispatch/internal/models"
	"github.com/joshu-sajeev/lanedispatch/internal/persistence"
	"github.com/joshu-sajeev/lanedispatch/internal/storage/jobstore"
	"github.com/joshu-sajeev/lanedispatch/internal/stream"
	"github.com/joshu-sajeev/lanedispatch/middleware"
	"gorm.io/gorm"
)

func main() {
	log.Println("Starting dispatcher...")

	ctx := context.Background()

	cfg, err := config.LoadFromEnv(ctx)
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	db, err := openDatabase(ctx)
	if err != nil {
		log.Fatal("Connection failed:", err)
	}

	if err := jobstore.MigrateModels(db, &models.JobRecord{}); err != nil {
		log.Fatal("Migration failed:", err)
	}

	store := jobstore.NewJobStore(db)
	adapter := persistence.NewAdapter(store, cfg.FlushInterval, cfg.FlushBatchSize)
	adapter.Start()

	manager, err := lane.NewManager(cfg.LaneCount, cfg.Concurrency, cfg.DefaultTimeout, adapter)
	if err != nil {
		log.Fatal("Failed to build lanes:", err)
	}

	recovered, err := adapter.Recover(ctx, cfg.LaneCount)
	if err != nil {
		log.Fatal("Recovery failed:", err)
	}
	if err := manager.Restore(recovered); err != nil {
		log.Fatal("Restore failed:", err)
	}
	for idx, jobs := range recovered {
		log.Printf("[RECOVER] Lane %d: re-queued %d unfinished jobs", idx, len(jobs))
	}

	cleanupCtx, stopCleanup := context.WithCancel(ctx)
	go cleanupLoop(cleanupCtx, adapter, cfg.CleanupInterval, cfg.CleanupAge)

	hub := stream.NewHub()
	go hub.Run(manager.Events())

	service := job.NewService(manager, adapter)
	handler := job.NewHandler(service)

	router := gin.Default()
	router.Use(middleware.ErrorHandler())
	job.RegisterRoutes(router, handler)
	router.GET("/events", hub.Handler)

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed:", err)
		}
	}()
	log.Printf("Dispatcher active on %s. Press Ctrl+C to stop.", cfg.HTTPAddr)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down...")
	stopCleanup()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[HTTP][WARN] Shutdown: %v", err)
	}
	if err := manager.ShutdownAll(shutdownCtx); err != nil {
		log.Printf("[MANAGER][WARN] Final flush: %v", err)
	}
	if err := adapter.Shutdown(shutdownCtx); err != nil {
		log.Printf("[FLUSH][WARN] Final flush: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}

	log.Println("Shutdown complete.")
}

// openDatabase connects to postgres unless SQLITE_DSN points at a local
// sqlite file, which is handy for development runs.
func openDatabase(ctx context.Context) (*gorm.DB, error) {
	if dsn := os.Getenv("SQLITE_DSN"); dsn != "" {
		log.Printf("[DB] Using sqlite database at %s", dsn)
		return jobstore.OpenSQLite(dsn)
	}

	cfg, err := jobstore.LoadConfigFromEnv(ctx)
	if err != nil {
		return nil, err
	}
	return jobstore.ConnectDB(ctx, cfg)
}

func cleanupLoop(ctx context.Context, adapter *persistence.Adapter, interval, age time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			count, err := adapter.Cleanup(ctx, age)
			if err != nil {
				log.Printf("[CLEANUP][WARN] %v", err)
				continue
			}
			if count > 0 {
				log.Printf("[CLEANUP] Removed %d finished jobs", count)
			}
		case <-ctx.Done():
			return
		}
	}
}
