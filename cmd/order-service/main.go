package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/app"
	"github.com/vladislavdragonenkov/orderflow/internal/version"
)

// loadDotEnv подгружает переменные из файла, если он есть. Уже заданные
// переменные окружения не перезаписываются.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(logger *log.Logger, cfg app.Config) []string {
	var warnings []string

	if cfg.LogFormat == "json" {
		logger.SetFormatter(&log.JSONFormatter{})
	} else {
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		warnings = append(warnings, "unknown log level "+cfg.LogLevel+", using info")
		level = log.InfoLevel
	}
	logger.SetLevel(level)
	return warnings
}

func main() {
	if err := loadDotEnv(".env"); err != nil {
		log.WithError(err).Fatal("failed to load .env file")
	}

	cfg, warnings := app.LoadConfig(os.LookupEnv)
	warnings = append(warnings, setupLogger(log.StandardLogger(), cfg)...)
	for _, warning := range warnings {
		log.Warn(warning)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"grpc_addr":      cfg.GRPCAddr,
		"metrics_addr":   cfg.MetricsAddr,
		"storage_driver": cfg.StorageDriver,
		"version":        version.GetVersion(),
	}).Info("starting order service")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("order service failed")
	}

	log.Info("order service stopped")
}
