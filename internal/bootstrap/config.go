package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/probeworks/apiprobe/config"
)

// logLevel backs the handler from InitLogger so the configured level can
// be applied once configuration loads.
var logLevel = new(slog.LevelVar)

// InitLogger builds the process-wide JSON logger. The level starts at
// info and follows SetLogLevel once configuration is available.
func InitLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	return logger
}

// SetLogLevel applies the configured level to the logger from InitLogger.
func SetLogLevel(level slog.Level) {
	logLevel.Set(level)
}

// LoadConfig reads a .env file when present, parses the environment into
// AppConfig, and applies the sanitize pass.
func LoadConfig() (config.AppConfig, error) {
	var cfg config.AppConfig

	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return cfg, fmt.Errorf("load .env file: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	cfg.Sanitize()
	return cfg, nil
}

// ValidateServiceConfig rejects configurations that enable no service.
func ValidateServiceConfig(cfg *config.AppConfig) error {
	if cfg == nil {
		return errors.New("service config is required")
	}
	if _, err := cfg.GetEnabledServices(); err != nil {
		return fmt.Errorf("invalid service configuration: %w", err)
	}
	return nil
}

// GetEnabledServices lists the enabled service names, sorted, for
// startup logging.
func GetEnabledServices(cfg *config.AppConfig) []string {
	if cfg == nil {
		return nil
	}
	services, err := cfg.GetEnabledServices()
	if err != nil {
		return nil
	}

	names := make([]string, 0, len(services))
	for mode := range services {
		names = append(names, string(mode))
	}
	slices.Sort(names)
	return names
}
