package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// StageConfig holds configuration for a dataset stage (buys or sells).
type StageConfig struct {
	SubgraphURL   string
	RPCURL        string
	EtherscanURL  string
	EtherscanKey  string
	Token         string
	MinUsd        float64
	From          string
	To            string
	PageSize      int
	MaxRetries    int
	RetryBackoff  time.Duration
	Timeout       time.Duration
	MaxTxCount    int
	RecencyWindow time.Duration
	RequireRecent bool
	GroupSize     int
	GroupDelay    time.Duration
	ExplorerRate  float64
	Out           string
	LogLevel      string
}

// LoadStage merges .env, config file, environment variables, and flags
// into a StageConfig.
func LoadStage(cfgFile string, flags *pflag.FlagSet) (StageConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("min-usd", 500.0)
		v.SetDefault("page-size", 1000)
		v.SetDefault("max-retries", 3)
		v.SetDefault("retry-backoff", 500*time.Millisecond)
		v.SetDefault("timeout", 10*time.Second)
		v.SetDefault("max-tx-count", 10000)
		v.SetDefault("recency-window", 45*24*time.Hour)
		v.SetDefault("require-recent", false)
		v.SetDefault("group-size", 4)
		v.SetDefault("group-delay", time.Second)
		v.SetDefault("explorer-rate", 5.0)
		v.SetDefault("log-level", "info")
	})
	if err != nil {
		return StageConfig{}, err
	}

	cfg := StageConfig{
		SubgraphURL:   v.GetString("subgraph-url"),
		RPCURL:        v.GetString("rpc"),
		EtherscanURL:  v.GetString("etherscan-url"),
		EtherscanKey:  v.GetString("etherscan-api-key"),
		Token:         v.GetString("token"),
		MinUsd:        v.GetFloat64("min-usd"),
		From:          v.GetString("from"),
		To:            v.GetString("to"),
		PageSize:      v.GetInt("page-size"),
		MaxRetries:    v.GetInt("max-retries"),
		RetryBackoff:  v.GetDuration("retry-backoff"),
		Timeout:       v.GetDuration("timeout"),
		MaxTxCount:    v.GetInt("max-tx-count"),
		RecencyWindow: v.GetDuration("recency-window"),
		RequireRecent: v.GetBool("require-recent"),
		GroupSize:     v.GetInt("group-size"),
		GroupDelay:    v.GetDuration("group-delay"),
		ExplorerRate:  v.GetFloat64("explorer-rate"),
		Out:           v.GetString("out"),
		LogLevel:      v.GetString("log-level"),
	}

	return cfg, nil
}

// ReportConfig holds configuration for the report command.
type ReportConfig struct {
	BuyData      string
	SellData     string
	Out          string
	Sort         []string
	Top          int
	PGDSN        string
	Token        string
	EtherscanURL string
	EtherscanKey string
	Timeout      time.Duration
	GroupSize    int
	GroupDelay   time.Duration
	ExplorerRate float64
	LogLevel     string
}

// LoadReport merges .env, config file, environment variables, and
// flags into a ReportConfig.
func LoadReport(cfgFile string, flags *pflag.FlagSet) (ReportConfig, error) {
	v, err := newViper(cfgFile, flags, func(v *viper.Viper) {
		v.SetDefault("buy-data", "./data/walletBuydata.json")
		v.SetDefault("sell-data", "./data/walletSelldata.json")
		v.SetDefault("out", "./data/walletProfitROIdata.json")
		v.SetDefault("sort", []string{"roi"})
		v.SetDefault("top", 0)
		v.SetDefault("timeout", 10*time.Second)
		v.SetDefault("group-size", 4)
		v.SetDefault("group-delay", time.Second)
		v.SetDefault("explorer-rate", 5.0)
		v.SetDefault("log-level", "info")
	})
	if err != nil {
		return ReportConfig{}, err
	}

	cfg := ReportConfig{
		BuyData:      v.GetString("buy-data"),
		SellData:     v.GetString("sell-data"),
		Out:          v.GetString("out"),
		Sort:         getStringSlice(v, "sort"),
		Top:          v.GetInt("top"),
		PGDSN:        v.GetString("pg-dsn"),
		Token:        v.GetString("token"),
		EtherscanURL: v.GetString("etherscan-url"),
		EtherscanKey: v.GetString("etherscan-api-key"),
		Timeout:      v.GetDuration("timeout"),
		GroupSize:    v.GetInt("group-size"),
		GroupDelay:   v.GetDuration("group-delay"),
		ExplorerRate: v.GetFloat64("explorer-rate"),
		LogLevel:     v.GetString("log-level"),
	}

	return cfg, nil
}

func newViper(cfgFile string, flags *pflag.FlagSet, setDefaults func(*viper.Viper)) (*viper.Viper, error) {
	// Static credentials (subgraph URL, RPC URL, explorer API key) live
	// in .env; a missing file is fine.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("SCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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

// ParseTimestamp parses a timestamp value (unix seconds, RFC3339, or a
// plain YYYY-MM-DD date).
func ParseTimestamp(input string) (uint64, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, nil
	}

	if isNumeric(input) {
		val, err := strconv.ParseUint(input, 10, 64)
		if err != nil {
			return 0, err
		}
		return val, nil
	}

	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if tm, err := time.Parse(layout, input); err == nil {
			return uint64(tm.Unix()), nil
		}
	}
	return 0, fmt.Errorf("invalid timestamp %q", input)
}

func isNumeric(input string) bool {
	for _, r := range input {
		if r < '0' || r > '9' {
			return false
		}
	}
	return input != ""
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
