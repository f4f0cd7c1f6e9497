package config

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"metagate/observability/logging"
)

// Validate rejects configurations the daemon cannot start with.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}
	target, err := cfg.TargetAddress()
	if err != nil {
		return fmt.Errorf("Target: %w", err)
	}
	if target == (common.Address{}) {
		return fmt.Errorf("Target: zero address")
	}
	if _, err := cfg.ReplayPolicy(); err != nil {
		return fmt.Errorf("Policy: %w", err)
	}
	switch cfg.Backend {
	case BackendMemory, BackendLevelDB, BackendBolt:
	default:
		return fmt.Errorf("Backend: unknown backend %q", cfg.Backend)
	}
	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.Level: %w", err)
	}
	if cfg.RateLimit.RequestsPerMinute < 0 {
		return fmt.Errorf("rate_limit.RequestsPerMinute: must not be negative")
	}
	if cfg.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit.Burst: must not be negative")
	}
	if cfg.Auth.Enabled && strings.TrimSpace(cfg.Auth.HMACSecret) == "" {
		return fmt.Errorf("auth: HMACSecret (or %s) required when auth is enabled", EnvTokenSecret)
	}
	return nil
}
