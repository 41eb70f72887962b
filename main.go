package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"medreminder-go/internal/handlers"
	"medreminder-go/internal/notify"
	"medreminder-go/internal/store"
	"medreminder-go/internal/sweeper"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using defaults")
	}

	// Redis Configuration
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	redisPassword := os.Getenv("REDIS_PASSWORD")
	redisDB := 0
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if db, err := strconv.Atoi(dbStr); err == nil {
			redisDB = db
		}
	}

	// Redis store holds settings and the dose event fan-out
	redisStore := store.NewRedisStore(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})

	// PostgreSQL Configuration
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	pgStore, err := store.NewPostgresStore(databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}

	ctx := context.Background()
	if err := pgStore.RunMigrations(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	// Web push channel (VAPID keys from env or generated on boot)
	push, err := notify.NewWebPush()
	if err != nil {
		log.Fatalf("Failed to initialize web push: %v", err)
	}

	scheduler := notify.NewScheduler(pgStore, push, notify.DefaultWindow)
	sweep := sweeper.New(pgStore, redisStore, push)

	h := handlers.NewHandler(pgStore, pgStore, pgStore, redisStore, push, scheduler)

	// Fill the notification window for doses already on the books.
	if n, err := scheduler.ScheduleWindow(ctx, time.Now()); err != nil {
		log.Printf("Initial notification scheduling failed: %v", err)
	} else if n > 0 {
		log.Printf("Scheduled %d notifications on startup", n)
	}

	// Background jobs. The dispatch tick backs up the per-dose fallback
	// timers; the hourly roll keeps the 24h window full as time passes.
	jobs := cron.New(cron.WithSeconds())
	jobs.AddFunc("*/30 * * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
		defer cancel()
		if _, err := scheduler.DispatchDue(ctx, time.Now()); err != nil {
			log.Printf("Notification dispatch failed: %v", err)
		}
	})
	jobs.AddFunc("0 * * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Second)
		defer cancel()
		if n, err := sweep.Sweep(ctx, time.Now()); err != nil {
			log.Printf("Missed-dose sweep failed: %v", err)
		} else if n > 0 {
			log.Printf("Marked %d doses as missed", n)
		}
	})
	jobs.AddFunc("0 0 * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Second)
		defer cancel()
		if _, err := scheduler.ScheduleWindow(ctx, time.Now()); err != nil {
			log.Printf("Notification scheduling failed: %v", err)
		}
	})
	jobs.Start()

	// Auth routes
	http.HandleFunc("/api/signup", h.SignupHandler)
	http.HandleFunc("/api/login", h.LoginHandler)
	http.HandleFunc("/api/logout", h.LogoutHandler)
	http.HandleFunc("/api/login/verify-2fa", h.Verify2FALoginHandler)

	// 2FA management (protected)
	http.HandleFunc("/api/2fa/generate", handlers.AuthMiddleware(h.Generate2FAHandler))
	http.HandleFunc("/api/2fa/enable", handlers.AuthMiddleware(h.Enable2FAHandler))
	http.HandleFunc("/api/2fa/disable", handlers.AuthMiddleware(h.Disable2FAHandler))

	// Medicines and doses (protected)
	http.HandleFunc("/api/medicines", handlers.AuthMiddleware(h.MedicinesHandler))
	http.HandleFunc("/api/medicines/", handlers.AuthMiddleware(h.MedicineHandler))
	http.HandleFunc("/api/doses/upcoming", handlers.AuthMiddleware(h.UpcomingDosesHandler))
	http.HandleFunc("/api/doses/history", handlers.AuthMiddleware(h.DoseHistoryHandler))
	http.HandleFunc("/api/doses/", handlers.AuthMiddleware(h.MarkTakenHandler))
	http.HandleFunc("/api/dashboard", handlers.AuthMiddleware(h.DashboardHandler))
	http.HandleFunc("/api/events/dose-taken", handlers.AuthMiddleware(h.DoseTakenEventHandler))

	// Push notifications (protected)
	http.HandleFunc("/api/push/vapid-key", handlers.AuthMiddleware(h.GetVAPIDKeyHandler))
	http.HandleFunc("/api/push/subscribe", handlers.AuthMiddleware(h.SubscribePushHandler))
	http.HandleFunc("/api/push/unsubscribe", handlers.AuthMiddleware(h.UnsubscribePushHandler))
	http.HandleFunc("/api/push/test", handlers.AuthMiddleware(h.TestPushHandler))

	// Settings (protected)
	http.HandleFunc("/api/settings", handlers.AuthMiddleware(h.SettingsHandler))

	// Live dose events for open dashboard tabs
	http.HandleFunc("/events", handlers.AuthMiddleware(h.DoseEventsHandler))

	// Operational endpoints
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{Addr: ":" + port}

	go func() {
		log.Println("Listening on :" + port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down")
	cronCtx := jobs.Stop()
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	<-cronCtx.Done()
}
