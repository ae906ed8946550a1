package config

// PostgresConfig contains PostgreSQL database configuration. This is the
// engine's own store; target databases tests run SQL against are stored
// rows, not env configuration.
type PostgresConfig struct {
	Host     string `env:"HOST"     envDefault:"localhost"`
	Port     int    `env:"PORT"     envDefault:"5432"`
	User     string `env:"USER"     envDefault:"apiprobe"`
	Password string `env:"PASSWORD" envDefault:"apiprobe"`
	Name     string `env:"NAME"     envDefault:"apiprobe"`
	SSLMode  string `env:"SSL_MODE" envDefault:"disable"` // Use 'disable' for local dev, 'require' for production
	// RunMigrations controls whether the application applies embedded
	// schema migrations during startup.
	RunMigrations bool `env:"RUN_MIGRATIONS" envDefault:"true"`
}

// RedisConfig contains the default Redis connection. Dev-mode seeding
// registers it as the initial stored Redis target so a fresh install can
// exercise captcha fetches without manual setup.
type RedisConfig struct {
	Addr     string `env:"ADDR"     envDefault:"localhost:6379"`
	Password string `env:"PASSWORD" envDefault:""`
	DB       int    `env:"DB"       envDefault:"0"`
}
