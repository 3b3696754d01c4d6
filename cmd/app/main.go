package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"pickup-service/internal/config"
	blockClose "pickup-service/internal/http-server/handlers/blocks/close"
	blockCreate "pickup-service/internal/http-server/handlers/blocks/create"
	blockGet "pickup-service/internal/http-server/handlers/blocks/get"
	bookingCancel "pickup-service/internal/http-server/handlers/bookings/cancel"
	bookingCreate "pickup-service/internal/http-server/handlers/bookings/create"
	bookingReschedule "pickup-service/internal/http-server/handlers/bookings/reschedule"
	eventGet "pickup-service/internal/http-server/handlers/events/get"
	slotList "pickup-service/internal/http-server/handlers/slots/list"
	templateGet "pickup-service/internal/http-server/handlers/templates/get"
	"pickup-service/internal/lock"
	"pickup-service/internal/reminder"
	svc "pickup-service/internal/service"
	"pickup-service/internal/storage/postgres"
	slogpretty "pickup-service/pkg/handlers/slogPretty"
	"pickup-service/pkg/middleware/mwLogger"
	"pickup-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Party-ID")
		w.Header().Set("Content-Type", "application/json; charset=utf-8")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {

	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("Starting API", slog.String("env", cfg.Env))
	log.Debug("Debug messages are enabled")

	storage, err := postgres.New(cfg.StoragePath)
	if err != nil {
		log.Error("Failed to init storage", sl.Err(err))
		os.Exit(1)
	}

	locker, err := lock.NewRedisLock(cfg.RedisAddr)
	if err != nil {
		log.Error("Failed to init redis lock", sl.Err(err))
		os.Exit(1)
	}

	service := svc.NewService(storage, locker, svc.Options{
		LockTTL:       cfg.Booking.LockTTL,
		RetryAttempts: cfg.Booking.RetryAttempts,
		RetryBackoff:  cfg.Booking.RetryBackoff,
	})

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(mwLogger.New(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)
	router.Use(CORS)

	// Events (portal read path)
	router.Get("/events/{kind}/{id}", eventGet.New(log, service))
	router.Get("/events/{kind}/{id}/slots", slotList.New(log, service))

	// Bookings
	router.Post("/bookings", bookingCreate.New(log, service))
	router.Put("/bookings/cancel", bookingCancel.New(log, service))
	router.Post("/bookings/reschedule", bookingReschedule.New(log, service))

	// Blocks (staff tooling)
	router.Post("/blocks", blockCreate.New(log, service))
	router.Get("/blocks/{id}", blockGet.New(log, service))
	router.Put("/blocks/{id}/close", blockClose.New(log, service))

	// Templates (read-only policy view)
	router.Get("/templates/{id}", templateGet.New(log, service))

	reminderCtx, stopReminder := context.WithCancel(context.Background())
	defer stopReminder()

	if cfg.Reminder.Enabled {
		sweeper := reminder.New(log, storage, reminder.NewLogNotifier(log),
			cfg.Reminder.Interval, cfg.Reminder.Window)
		go sweeper.Run(reminderCtx)
	}

	serv := &http.Server{
		Addr:         cfg.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	serverErrCh := make(chan error, 1)

	go func() {
		log.Info("Starting HTTP server", slog.String("addr", cfg.Address))
		if err := serv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		} else {
			serverErrCh <- nil
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case err := <-serverErrCh:
		if err != nil {
			log.Error("HTTP server stopped unexpectedly", sl.Err(err))
		} else {
			log.Info("HTTP server stopped gracefully")
		}
	}

	stopReminder()

	shutdownTimeout := cfg.HTTPServer.ShutdownTimeout

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	log.Info("Shutting down HTTP server", slog.String("timeout", shutdownTimeout.String()))

	if err := serv.Shutdown(ctx); err != nil {
		log.Error("Server shutdown failed", sl.Err(err))
	} else {
		log.Info("Server shutdown complete")
	}

	if storage != nil {
		if err := storage.Close(); err != nil {
			log.Error("Failed to close storage", sl.Err(err))
		} else {
			log.Info("Storage closed")
		}
	}

	if locker != nil {
		if err := locker.Close(); err != nil {
			log.Error("Failed to close locker", sl.Err(err))
		} else {
			log.Info("Locker closed")
		}
	}

	log.Info("Shutdown finished, server stopped")

}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger
	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}
