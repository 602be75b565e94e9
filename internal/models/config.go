package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config represents the application configuration
type Config struct {
	Database   DatabaseConfig
	Settlement SettlementConfig
	Sweeper    SweeperConfig
	Notify     NotifyConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path             string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	ConnMaxIdleTime  time.Duration
	PingTimeout      time.Duration
	SeedDemoAccounts bool
}

// SettlementConfig holds the commission split settings.
type SettlementConfig struct {
	// CommissionRate is the platform's share of gross order price,
	// e.g. 0.30 for a 70/30 provider/platform split.
	CommissionRate decimal.Decimal
	// ScheduleFile optionally points to a YAML file with per-category
	// rate overrides. Empty means the flat rate applies everywhere.
	ScheduleFile string
}

// SweeperConfig holds the timeout reaper settings.
type SweeperConfig struct {
	// GracePeriod is how long an order may sit in awaiting_confirmation
	// before funds are released on the customer's behalf.
	GracePeriod   time.Duration
	SweepInterval time.Duration
}

// NotifyConfig holds push-gateway settings. An empty endpoint disables
// outbound notifications entirely.
type NotifyConfig struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}
