package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/avvvet/hrbuddy-intent/internal/config"
	"github.com/avvvet/hrbuddy-intent/internal/handlers"
	"github.com/avvvet/hrbuddy-intent/internal/logger"
	"github.com/avvvet/hrbuddy-intent/internal/memory"
	"github.com/avvvet/hrbuddy-intent/internal/options"
	"github.com/avvvet/hrbuddy-intent/internal/oracle"
	"github.com/avvvet/hrbuddy-intent/internal/schema"
	"github.com/avvvet/hrbuddy-intent/internal/transport"
)

func main() {
	// Load .env file if it exists (for development)
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.NewStructured("info", "console").Error("failed to load config", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	log := logger.NewStructured(cfg.LogLevel, cfg.LogFormat).With(map[string]interface{}{
		"service": cfg.ServiceName,
	})
	if envErr != nil {
		log.Debug("no .env file found, using environment variables", nil)
	}

	if err := run(cfg, log); err != nil {
		log.Error("service stopped with error", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

func run(cfg *config.Config, log logger.Logger) error {
	log.Info("starting HRbuddy intent service", map[string]interface{}{
		"nats_url":     cfg.NatsURL,
		"llm_provider": cfg.LLMProvider,
	})

	ctx := context.Background()

	redisClient, err := memory.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	store := memory.NewRedisStore(redisClient, memory.StoreOptions{
		TTL:        cfg.StateTTL,
		MaxRetries: cfg.StateMaxRetries,
		Logger:     log,
	})
	defer store.Close()
	log.Info("redis connected", nil)

	history := memory.NewManager(memory.NewRedisHistory(redisClient, cfg.HistoryTTL), log)

	model, err := oracle.NewModel(cfg)
	if err != nil {
		return err
	}
	registry := schema.Default()
	nlu := oracle.NewLangChainOracle(model, registry, oracle.Options{
		MaxTokens:   cfg.OracleMaxTokens,
		Temperature: cfg.OracleTemperature,
	}, log)

	conn, err := transport.Connect(cfg, log)
	if err != nil {
		return err
	}
	defer conn.Close()

	optionCache := options.NewCache(transport.NewNATSOptionSource(conn, cfg.NatsOptionsSubject), cfg.OptionsCacheTTL, log)

	turnHandler := handlers.NewTurnHandler(handlers.Deps{
		Registry:             registry,
		Oracle:               nlu,
		Store:                store,
		History:              history,
		Options:              optionCache,
		Executor:             transport.NewNATSExecutor(conn, cfg.NatsExecuteSubject),
		Logger:               log,
		OracleTimeout:        cfg.OracleTimeout,
		MinConfidence:        cfg.OracleMinConfidence,
		StickyLock:           cfg.StickyLock,
		ResidualTextFallback: cfg.ResidualTextFallback,
	})

	natsTransport := transport.NewNATSTransport(conn, cfg, turnHandler, log)
	if err := natsTransport.Start(); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           opsRouter(store, conn),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("ops server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	log.Info("HRbuddy intent service is running", map[string]interface{}{
		"subject":   cfg.NatsTurnSubject,
		"http_addr": cfg.HTTPAddr,
	})

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info("shutting down gracefully", map[string]interface{}{"signal": sig.String()})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("error stopping ops server", map[string]interface{}{"error": err.Error()})
	}
	if err := natsTransport.Close(); err != nil {
		log.Warn("error closing NATS transport", map[string]interface{}{"error": err.Error()})
	}

	log.Info("HRbuddy intent service stopped", nil)
	return nil
}

func opsRouter(store *memory.RedisStore, conn *nats.Conn) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := store.Ping(ctx); err != nil {
			http.Error(w, "redis: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
		if !conn.IsConnected() {
			http.Error(w, "nats: "+conn.Status().String(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}
