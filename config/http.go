package config

import "time"

// HTTPConfig holds the run API server settings.
type HTTPConfig struct {
	// Addr is the listen address, host part optional.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// BatchTimeout caps one background batch run submitted over HTTP.
	// Zero means no limit; batches already serialize behind each other.
	BatchTimeout time.Duration `env:"HTTP_BATCH_TIMEOUT" envDefault:"0"`
}

// Sanitize discards values that parsed but make no sense.
func (h *HTTPConfig) Sanitize() {
	if h.BatchTimeout < 0 {
		h.BatchTimeout = 0
	}
}
