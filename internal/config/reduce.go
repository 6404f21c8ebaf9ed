package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// ReduceConfig holds configuration for the reduce command. RPCURL is optional:
// without it pool reads fail and stored values are kept.
type ReduceConfig struct {
	In                string
	RPCURL            string
	MaxRetries        int
	RetryBackoff      time.Duration
	Dedup             bool
	ResetOpenOnReopen bool
	NATSURL           string
	Store             StoreConfig
	LogLevel          string
}

// LoadReduce merges config file, environment variables, and flags into ReduceConfig.
func LoadReduce(cfgFile string, flags *pflag.FlagSet) (ReduceConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"max-retries":   5,
		"retry-backoff": 500 * time.Millisecond,
		"dedup":         true,
		"log-level":     "info",
	})
	if err != nil {
		return ReduceConfig{}, err
	}

	cfg := ReduceConfig{
		In:                v.GetString("in"),
		RPCURL:            v.GetString("rpc"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		Dedup:             v.GetBool("dedup"),
		ResetOpenOnReopen: v.GetBool("reset-open-on-reopen"),
		NATSURL:           v.GetString("nats-url"),
		Store:             storeConfig(v),
		LogLevel:          v.GetString("log-level"),
	}
	if cfg.In == "" {
		return cfg, fmt.Errorf("input path is required")
	}
	return cfg, cfg.Store.Validate()
}
