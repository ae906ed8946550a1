package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ServiceMode names one of the process roles a single binary can host.
type ServiceMode string

const (
	// ServiceModeHTTP serves the run API.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeScheduler fires stored cron tasks.
	ServiceModeScheduler ServiceMode = "scheduler"
	// ServiceModeReaper sweeps stale batch progress entries.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes lists every mode ParseServices accepts.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{ServiceModeHTTP, ServiceModeScheduler, ServiceModeReaper}
}

// ParseServices splits a comma-separated SERVICES value into the set of
// enabled modes. Blank segments are skipped; unknown names and an empty
// result are errors.
func ParseServices(raw string) (map[ServiceMode]bool, error) {
	enabled := make(map[ServiceMode]bool)
	for _, part := range strings.Split(raw, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		mode := ServiceMode(name)
		if !slices.Contains(ValidServiceModes(), mode) {
			return nil, fmt.Errorf("unknown service %q (valid: http, scheduler, reaper)", name)
		}
		enabled[mode] = true
	}
	if len(enabled) == 0 {
		return nil, errors.New("no services enabled")
	}
	return enabled, nil
}
