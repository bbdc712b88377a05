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

	"campusevents-backend/internal/config"
	"campusevents-backend/internal/db"
	httpapi "campusevents-backend/internal/http"
	"campusevents-backend/internal/kv"
	"campusevents-backend/internal/logging"
	"campusevents-backend/internal/migrations"
	"campusevents-backend/internal/services"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}
	logger, syncLogs, err := logging.New(logging.Options{
		Dir:           cfg.LogDir,
		MaxSizeMB:     cfg.LogMaxSizeMB,
		RetentionDays: cfg.LogRetentionDays,
		Level:         level,
	})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer syncLogs()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db", zap.Error(err))
	}
	defer database.Close()
	if err := migrations.Apply(ctx, database, migrations.Files()); err != nil {
		logger.Fatal("migrations", zap.Error(err))
	}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("kv store", zap.Error(err))
	}
	defer store.Close()

	hub := services.NewNotificationHub()
	go hub.Run(ctx)

	server := httpapi.NewServer(database, store, cfg, logger, newMailer(cfg, logger), hub)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", zap.String("addr", httpServer.Addr), zap.String("admin_auth", cfg.AdminAuthMode))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop
	cancel()
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = httpServer.Shutdown(ctxShutdown)
	logger.Info("shutdown complete")
}

// openStore uses Redis when REDIS_URL is set so counters survive restarts
// and are shared between instances.
func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (kv.Store, error) {
	if cfg.RedisURL == "" {
		logger.Warn("REDIS_URL not set, rate limits and OTPs are kept in memory")
		return kv.NewMemory(), nil
	}
	store, err := kv.NewRedis(ctx, cfg.RedisURL, "campusevents:")
	if err != nil {
		return nil, err
	}
	return store, nil
}

func newMailer(cfg config.Config, logger *zap.Logger) services.Mailer {
	if cfg.SMTPHost == "" {
		logger.Warn("SMTP_HOST not set, OTP codes are written to the log")
		return services.LogMailer{Logger: logger}
	}
	return services.SMTPMailer{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	}
}
