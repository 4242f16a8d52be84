package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iRajatDas/tinypicresizer/internal/config"
	"github.com/iRajatDas/tinypicresizer/internal/handler"
	"github.com/iRajatDas/tinypicresizer/internal/middleware"
	"github.com/iRajatDas/tinypicresizer/internal/worker"
)

func main() {
	cfg := config.Load()

	// Shared worker pool for size-fitting jobs
	pool := worker.NewPool(cfg.WorkerCount)
	pool.Start()
	defer pool.Stop()

	h := handler.New(pool, cfg.DefaultTargetKB, cfg.MaxTargetKB, cfg.MaxUploadMB)

	mux := http.NewServeMux()
	mux.HandleFunc("/shrink", h.Shrink)
	mux.HandleFunc("/health", h.Health)
	mux.Handle("/metrics", promhttp.Handler())

	// Apply middlewares in order (outermost first):
	// 1. Security headers (always applied)
	// 2. Rate limiting (per IP)
	// 3. Concurrency limit (global)
	// 4. Recovery (catches panics)
	// 5. Logger (logs requests)
	handler := middleware.Security(
		middleware.RateLimit(cfg.RateLimitPerSec, cfg.RateLimitBurst)(
			middleware.ConcurrencyLimit(cfg.MaxConcurrent)(
				middleware.Recovery(
					middleware.Logger(mux),
				),
			),
		),
	)

	// Configure server with timeouts to prevent slowloris and hanging connections
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Starting image size-fitting API on %s", server.Addr)
	log.Printf("Default target: %dKB, Max target: %dKB, Max upload: %dMB, Max concurrent: %d, Rate limit: %d/sec, Workers: %d",
		cfg.DefaultTargetKB, cfg.MaxTargetKB, cfg.MaxUploadMB, cfg.MaxConcurrent, cfg.RateLimitPerSec, cfg.WorkerCount)

	if err := server.ListenAndServe(); err != nil {
		log.Printf("Server error: %v", err)
		os.Exit(1)
	}
}
