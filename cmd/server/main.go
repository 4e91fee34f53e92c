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

	"go.uber.org/zap"

	"k3rs/backend/internal/api"
	"k3rs/backend/internal/config"
	"k3rs/backend/internal/database"
	"k3rs/backend/internal/institution"
	"k3rs/backend/internal/metrics"
	"k3rs/backend/internal/objectstore"
	"k3rs/backend/internal/report"
	"k3rs/backend/internal/session"
	"k3rs/backend/internal/store"
)

func main() {
	if err := config.LoadEnvFiles(".env", "backend/.env"); err != nil {
		log.Printf("warning: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := config.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	location, err := time.LoadLocation(cfg.AppTimezone)
	if err != nil {
		return err
	}

	profile, err := institution.Load(cfg.InstitutionProfile)
	if err != nil {
		return err
	}

	connectCtx, cancel := context.WithTimeout(ctx, 45*time.Second)
	defer cancel()

	pool, err := database.NewPool(connectCtx, cfg.DatabaseURL, cfg.DBMaxConns, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := database.EnsureSchema(connectCtx, pool, logger); err != nil {
		return err
	}

	var revoker session.Revoker = session.NewMemoryRevoker()
	if cfg.RedisEnabled() {
		redisRevoker, client, err := session.NewRedisRevoker(connectCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer client.Close()
		revoker = redisRevoker
		logger.Info("token revocation backed by redis", zap.String("addr", cfg.RedisAddr))
	} else {
		logger.Warn("REDIS_ADDR not set, token revocation is process-local")
	}

	var (
		photos   api.PhotoStore
		resolver store.PhotoResolver
	)
	if cfg.S3Enabled() {
		objects, err := objectstore.New(connectCtx, objectstore.Config{
			Bucket:    cfg.S3Bucket,
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			URLTTL:    cfg.PhotoURLTTL,
		})
		if err != nil {
			return err
		}
		photos = objects
		resolver = objects.SignedURL
	} else {
		logger.Warn("S3_BUCKET not set, photo upload is disabled")
	}

	recorder, err := metrics.New()
	if err != nil {
		return err
	}

	fetcher := report.NewHTTPFetcher(report.FetcherConfig{Timeout: cfg.PhotoFetchTimeout})
	defer fetcher.CloseIdleConnections()

	exporter := report.NewExporter(profile, fetcher,
		report.WithLogger(logger.Named("report")),
		report.WithObserver(recorder),
		report.WithLogo(cfg.LogoPath),
		report.WithClock(func() time.Time { return time.Now().In(location) }),
	)

	srv := api.NewServer(api.Deps{
		Store:          store.New(pool, resolver),
		Photos:         photos,
		Exporter:       exporter,
		Revoker:        revoker,
		Metrics:        recorder,
		Logger:         logger.Named("api"),
		JWTSecret:      cfg.JWTSecret,
		TokenTTL:       cfg.JWTTTL,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AdminEmails:    cfg.AdminEmails,
		Location:       location,
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Mux(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      3 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("K3RS backend running", zap.String("addr", httpServer.Addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}
