package config

import "time"

// WatchdogConfig paces the health watchdog (internal/watchdog, C10).
type WatchdogConfig struct {
	// TickSpec is a robfig/cron schedule string for the review pass, e.g.
	// "@every 30s".
	TickSpec string `yaml:"tick_spec"`

	// StaleAfter is how long a tracked target may hold the same status
	// before the watchdog flags it as stuck and interrupts it.
	StaleAfter time.Duration `yaml:"stale_after"`
}
