package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	archiveftp "github.com/maziggy/bambusy/internal/archive/adapters/ftp"
	archiveapp "github.com/maziggy/bambusy/internal/archive/application"
	archiverepo "github.com/maziggy/bambusy/internal/archive/infrastructure/postgres"
	archivehttp "github.com/maziggy/bambusy/internal/archive/interfaces/http"
	"github.com/maziggy/bambusy/internal/audit"
	"github.com/maziggy/bambusy/internal/auth"
	"github.com/maziggy/bambusy/internal/config"
	"github.com/maziggy/bambusy/internal/energy/tasmota"
	"github.com/maziggy/bambusy/internal/eventing"
	"github.com/maziggy/bambusy/internal/notify"
	"github.com/maziggy/bambusy/internal/observability/logging"
	"github.com/maziggy/bambusy/internal/observability/metrics"
	printerapp "github.com/maziggy/bambusy/internal/printer/application"
	printerhttp "github.com/maziggy/bambusy/internal/printer/interfaces/http"
	"github.com/maziggy/bambusy/internal/printer/mqtt"
)

func main() {
	cfg := loadConfig()
	logging.Configure(logging.Config{Level: cfg.LogLevel})
	logger := logging.Base()

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("db open error")
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatal().Err(err).Msg("db ping error")
	}

	metrics.Init(db, logger)

	fleet, err := config.LoadFleet(cfg.PrintersFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("fleet config error")
	}

	bus := eventing.NewBus()
	manager, err := printerapp.NewManager(bus, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("manager error")
	}
	defer manager.Close()

	archiveRepo := archiverepo.NewArchiveRepository(db)
	index := archiveapp.NewActivePrintIndex()
	meter := tasmota.NewMeter(tasmota.NewClient(), fleet.PlugHosts())

	pipeline, err := archiveapp.NewPipeline(
		archiveRepo,
		index,
		fleet,
		archiveftp.NewFetcherFactory(context.Background()),
		bus,
		logger,
		archiveapp.WithEnergyMeter(meter, cfg.PricePerKWh),
		archiveapp.WithStepTimeout(cfg.PipelineTimeout),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("pipeline error")
	}
	pipeline.Bind(bus)

	notifiers := []notify.Notifier{notify.NewLogNotifier(logger)}
	if cfg.WebhookURL != "" {
		webhook, err := notify.NewWebhookNotifier(cfg.WebhookURL, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("webhook notifier error")
		}
		notifiers = append(notifiers, webhook)
	}
	notify.Bind(bus, notify.NewMultiNotifier(notifiers...))

	printersHandler, err := printerhttp.NewHandler(manager, fleet, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("printers handler error")
	}
	archivesHandler, err := archivehttp.NewHandler(archiveRepo, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("archives handler error")
	}

	authMiddleware := auth.NewMiddleware(
		[]byte(cfg.JWTSecret),
		auth.NewDefaultPolicy([]string{"/healthz"}, []string{"/metrics"}),
	)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/printers", printersHandler)
	mux.Handle("/api/v1/printers/", printersHandler)
	mux.Handle("/api/v1/archives", archivesHandler)
	mux.Handle("/api/v1/archives/", archivesHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	connectFleet(manager, fleet, logger, cfg.ConnectTimeout)

	audited := audit.Middleware(mux, audit.NewRepository(db), logger)
	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(audited), logger)}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-shutdown
		logger.Info().Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}()

	logger.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("http server error")
	}
}

func connectFleet(manager *printerapp.Manager, fleet *config.Fleet, logger zerolog.Logger, timeout time.Duration) {
	for _, entry := range fleet.Printers {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		err := manager.Connect(ctx, mqtt.Config{
			DeviceID:   entry.ID,
			Host:       entry.Host,
			Serial:     entry.Serial,
			AccessCode: entry.AccessCode,
		})
		cancel()
		if err != nil {
			logger.Warn().Err(err).Str("device_id", entry.ID).Msg("initial connect failed")
			continue
		}
		logger.Info().Str("device_id", entry.ID).Str("host", entry.Host).Msg("printer session started")
	}
}

type appConfig struct {
	DatabaseURL     string
	HTTPAddr        string
	PrintersFile    string
	JWTSecret       string
	WebhookURL      string
	PricePerKWh     float64
	ConnectTimeout  time.Duration
	PipelineTimeout time.Duration
	LogLevel        string
}

func loadConfig() appConfig {
	cfg := appConfig{
		DatabaseURL:     getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:        getenvDefault("HTTP_ADDR", ":8080"),
		PrintersFile:    getenvDefault("PRINTERS_FILE", "printers.yaml"),
		JWTSecret:       getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		WebhookURL:      getenvDefault("NOTIFY_WEBHOOK_URL", ""),
		PricePerKWh:     getenvFloatDefault("PRICE_PER_KWH", 0.30),
		ConnectTimeout:  getenvDuration("CONNECT_TIMEOUT", 15*time.Second),
		PipelineTimeout: getenvDuration("PIPELINE_TIMEOUT", 2*time.Minute),
		LogLevel:        getenvDefault("LOG_LEVEL", "info"),
	}
	if cfg.DatabaseURL == "" {
		logger := logging.Base()
		logger.Fatal().Msg("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		logger := logging.Base()
		logger.Fatal().Msg("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", resp.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
