package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Settings holds the resolved runtime configuration for a reconciliation
// run. Values come from the config file, LOOM_ environment variables, and
// command-line flags, in ascending precedence.
type Settings struct {
	DatabasePath      string
	OrderHistoryPath  string
	ChargesPath       string
	LedgerPayee       string
	AutoThreshold     float64
	FlagThreshold     float64
	FallbackCap       float64
	AmountTolerance   int64
	ShipWindowDays    int
	ShipLagDays       int
	BatchSize         int
	UseAsyncBatches   bool
	RetryMaxAttempts  int
	RetryInitialDelay time.Duration
	RetryMaxDelay     time.Duration
}

// Defaults mirroring the documented confidence policy and matcher windows.
const (
	defaultAutoThreshold   = 0.85
	defaultFlagThreshold   = 0.65
	defaultFallbackCap     = 0.70
	defaultAmountTolerance = 100
	defaultShipWindowDays  = 7
	defaultShipLagDays     = 3
	defaultBatchSize       = 25
)

// SetDefaults registers defaults on the shared viper instance. Called once
// from command initialization before any config file is read.
func SetDefaults() {
	viper.SetDefault("database.path", "~/.local/share/loom/loom.db")
	viper.SetDefault("classify.auto_threshold", defaultAutoThreshold)
	viper.SetDefault("classify.flag_threshold", defaultFlagThreshold)
	viper.SetDefault("classify.fallback_cap", defaultFallbackCap)
	viper.SetDefault("classify.batch_size", defaultBatchSize)
	viper.SetDefault("classify.async_batches", false)
	viper.SetDefault("match.amount_tolerance_cents", defaultAmountTolerance)
	viper.SetDefault("match.ship_window_days", defaultShipWindowDays)
	viper.SetDefault("match.ship_lag_days", defaultShipLagDays)
	viper.SetDefault("retry.max_attempts", 3)
	viper.SetDefault("retry.initial_delay", "1s")
	viper.SetDefault("retry.max_delay", "30s")
}

// Load resolves Settings from viper and validates them.
func Load() (*Settings, error) {
	s := &Settings{
		DatabasePath:      ExpandPath(viper.GetString("database.path")),
		OrderHistoryPath:  ExpandPath(viper.GetString("orders.path")),
		ChargesPath:       ExpandPath(viper.GetString("charges.path")),
		LedgerPayee:       viper.GetString("ledger.payee"),
		AutoThreshold:     viper.GetFloat64("classify.auto_threshold"),
		FlagThreshold:     viper.GetFloat64("classify.flag_threshold"),
		FallbackCap:       viper.GetFloat64("classify.fallback_cap"),
		AmountTolerance:   viper.GetInt64("match.amount_tolerance_cents"),
		ShipWindowDays:    viper.GetInt("match.ship_window_days"),
		ShipLagDays:       viper.GetInt("match.ship_lag_days"),
		BatchSize:         viper.GetInt("classify.batch_size"),
		UseAsyncBatches:   viper.GetBool("classify.async_batches"),
		RetryMaxAttempts:  viper.GetInt("retry.max_attempts"),
		RetryInitialDelay: viper.GetDuration("retry.initial_delay"),
		RetryMaxDelay:     viper.GetDuration("retry.max_delay"),
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks threshold ordering and bounds.
func (s *Settings) Validate() error {
	if s.DatabasePath == "" {
		return fmt.Errorf("database.path is required")
	}
	if s.AutoThreshold <= 0 || s.AutoThreshold > 1 {
		return fmt.Errorf("classify.auto_threshold must be in (0, 1], got %v", s.AutoThreshold)
	}
	if s.FlagThreshold <= 0 || s.FlagThreshold >= s.AutoThreshold {
		return fmt.Errorf("classify.flag_threshold must be in (0, %v), got %v", s.AutoThreshold, s.FlagThreshold)
	}
	if s.FallbackCap <= 0 || s.FallbackCap > 1 {
		return fmt.Errorf("classify.fallback_cap must be in (0, 1], got %v", s.FallbackCap)
	}
	if s.AmountTolerance < 0 {
		return fmt.Errorf("match.amount_tolerance_cents must not be negative")
	}
	if s.ShipWindowDays < 0 {
		return fmt.Errorf("match.ship_window_days must not be negative")
	}
	if s.ShipLagDays < 0 {
		return fmt.Errorf("match.ship_lag_days must not be negative")
	}
	if s.BatchSize <= 0 {
		return fmt.Errorf("classify.batch_size must be positive")
	}
	return nil
}
