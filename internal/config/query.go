package config

import "github.com/spf13/pflag"

// QueryConfig holds configuration for the query command.
type QueryConfig struct {
	Store    StoreConfig
	Limit    int
	LogLevel string
}

// LoadQuery merges config file, environment variables, and flags into QueryConfig.
func LoadQuery(cfgFile string, flags *pflag.FlagSet) (QueryConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"limit":     50,
		"log-level": "warn",
	})
	if err != nil {
		return QueryConfig{}, err
	}

	cfg := QueryConfig{
		Store:    storeConfig(v),
		Limit:    v.GetInt("limit"),
		LogLevel: v.GetString("log-level"),
	}
	return cfg, cfg.Store.Validate()
}
