package config

import (
	"os"
	"strings"
)

// AppConfig composes the engine configuration from its domain files:
// database.go (PostgreSQL and the default Redis target), http.go
// (server), engine.go (scheduler, certs, load tests), observability.go
// (logging and metrics). Values load from environment variables via
// github.com/caarlos0/env.
type AppConfig struct {
	// IsDev enables development behavior (.env loading, seed data).
	// DEV=true or APP_ENV=development both switch it on.
	IsDev bool `env:"DEV" envDefault:"false"`

	Postgres PostgresConfig `envPrefix:"DB_"`
	Redis    RedisConfig    `envPrefix:"REDIS_"`

	HTTP HTTPConfig

	// Services is the comma-separated list of roles this process hosts.
	Services string `env:"SERVICES" envDefault:"http,scheduler,reaper"`

	Engine EngineConfig `envPrefix:"ENGINE_"`

	Observability ObservabilityConfig
}

// Sanitize applies guardrails after env parsing.
func (c *AppConfig) Sanitize() {
	c.HTTP.Sanitize()
	c.Engine.Sanitize()
	c.Observability.Sanitize()

	// APP_ENV is the deployment tooling's switch; DEV wins when set.
	if !c.IsDev {
		env := strings.ToLower(os.Getenv("APP_ENV"))
		c.IsDev = env == "development" || env == "dev"
	}
}

// GetEnabledServices parses the Services list.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

func (c *AppConfig) serviceEnabled(mode ServiceMode) bool {
	services, err := c.GetEnabledServices()
	return err == nil && services[mode]
}

// IsHTTPServerEnabled reports whether this process serves the run API.
func (c *AppConfig) IsHTTPServerEnabled() bool { return c.serviceEnabled(ServiceModeHTTP) }

// IsSchedulerEnabled reports whether this process fires stored tasks.
func (c *AppConfig) IsSchedulerEnabled() bool { return c.serviceEnabled(ServiceModeScheduler) }

// IsReaperEnabled reports whether this process sweeps batch progress.
func (c *AppConfig) IsReaperEnabled() bool { return c.serviceEnabled(ServiceModeReaper) }
