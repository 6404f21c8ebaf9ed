package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendLevelDB  = "leveldb"
	BackendPostgres = "postgres"
)

// StoreConfig selects and locates the entity store.
type StoreConfig struct {
	Backend string
	Path    string
	PGDSN   string
}

// Config holds configuration for the run command.
type Config struct {
	RPCURL            string
	FromBlock         uint64
	ToBlock           uint64
	MUSDAddress       string
	SuperStakeAddress string
	FactoryAddress    string
	Pools             []string
	BatchSize         uint64
	Confirmations     uint64
	Follow            bool
	PollInterval      time.Duration
	RawOut            string
	MaxRetries        int
	RetryBackoff      time.Duration
	Dedup             bool
	ResetOpenOnReopen bool
	MetricsAddr       string
	NATSURL           string
	Store             StoreConfig
	LogLevel          string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"batch-size":    uint64(2000),
		"confirmations": uint64(0),
		"poll-interval": 5 * time.Second,
		"max-retries":   5,
		"retry-backoff": 500 * time.Millisecond,
		"dedup":         true,
		"metrics-addr":  ":9102",
		"log-level":     "info",
	})
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		RPCURL:            v.GetString("rpc"),
		FromBlock:         v.GetUint64("from"),
		ToBlock:           v.GetUint64("to"),
		MUSDAddress:       v.GetString("musd"),
		SuperStakeAddress: v.GetString("superstake"),
		FactoryAddress:    v.GetString("factory"),
		Pools:             getStringSlice(v, "pool"),
		BatchSize:         v.GetUint64("batch-size"),
		Confirmations:     v.GetUint64("confirmations"),
		Follow:            v.GetBool("follow"),
		PollInterval:      v.GetDuration("poll-interval"),
		RawOut:            v.GetString("raw-out"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		Dedup:             v.GetBool("dedup"),
		ResetOpenOnReopen: v.GetBool("reset-open-on-reopen"),
		MetricsAddr:       v.GetString("metrics-addr"),
		NATSURL:           v.GetString("nats-url"),
		Store:             storeConfig(v),
		LogLevel:          v.GetString("log-level"),
	}
	return cfg, nil
}

// Validate checks the settings the run command cannot work without.
func (c Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if c.MUSDAddress == "" && c.SuperStakeAddress == "" && c.FactoryAddress == "" && len(c.Pools) == 0 {
		return fmt.Errorf("at least one of musd, superstake, factory or pool is required")
	}
	if c.BatchSize == 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}
	if c.ToBlock != 0 && c.ToBlock < c.FromBlock {
		return fmt.Errorf("to block must be >= from block")
	}
	return c.Store.Validate()
}

// Validate checks that the chosen backend has what it needs.
func (s StoreConfig) Validate() error {
	switch s.Backend {
	case BackendMemory:
		return nil
	case BackendLevelDB:
		if s.Path == "" {
			return fmt.Errorf("store path is required for leveldb")
		}
		return nil
	case BackendPostgres:
		if s.PGDSN == "" {
			return fmt.Errorf("pg dsn is required for postgres")
		}
		return nil
	default:
		return fmt.Errorf("unknown store backend %q", s.Backend)
	}
}

func storeConfig(v *viper.Viper) StoreConfig {
	return StoreConfig{
		Backend: strings.ToLower(v.GetString("store")),
		Path:    v.GetString("store-path"),
		PGDSN:   v.GetString("pg-dsn"),
	}
}

// newViper builds a viper instance reading, in increasing priority: defaults,
// the config file, INDEXER_* environment variables and explicitly set flags.
func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("INDEXER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("store", BackendLevelDB)
	v.SetDefault("store-path", "./data/state")
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
