// Package config merges config files, CLMM_* environment variables and command flags into
// per-command settings.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "CLMM"

// PoolConfig describes the pool an engine runs. Addresses are hex strings; the command
// layer parses them.
type PoolConfig struct {
	ChainID     uint64
	Address     string
	Token0      string
	Token1      string
	Fee         uint32
	TickSpacing int32
	Owner       string
	Decimals0   uint8
	Decimals1   uint8
}

// load builds a viper instance with defaults, env, flags and the config file applied.
func load(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetDefault("log-level", "info")

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

func poolDefaults(defaults map[string]interface{}) map[string]interface{} {
	defaults["chain-id"] = uint64(31337)
	defaults["fee"] = uint32(3000)
	defaults["tick-spacing"] = int32(60)
	defaults["decimals0"] = uint8(18)
	defaults["decimals1"] = uint8(18)
	return defaults
}

func loadPool(v *viper.Viper) PoolConfig {
	return PoolConfig{
		ChainID:     v.GetUint64("chain-id"),
		Address:     v.GetString("pool"),
		Token0:      v.GetString("token0"),
		Token1:      v.GetString("token1"),
		Fee:         v.GetUint32("fee"),
		TickSpacing: v.GetInt32("tick-spacing"),
		Owner:       v.GetString("owner"),
		Decimals0:   uint8(v.GetUint("decimals0")),
		Decimals1:   uint8(v.GetUint("decimals1")),
	}
}

// WindowSeconds parses an aggregation window such as "5m". An empty window disables
// aggregation and returns zero.
func WindowSeconds(window string) (uint64, error) {
	if strings.TrimSpace(window) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(window)
	if err != nil {
		return 0, fmt.Errorf("invalid window: %w", err)
	}
	secs := uint64(d / time.Second)
	if d <= 0 || secs == 0 {
		return 0, fmt.Errorf("window must be at least 1s")
	}
	return secs, nil
}

// ParseTimestamp parses a timestamp value (unix seconds or RFC3339).
func ParseTimestamp(input string) (uint64, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, nil
	}

	if isNumeric(input) {
		return strconv.ParseUint(input, 10, 64)
	}

	tm, err := time.Parse(time.RFC3339, input)
	if err != nil {
		return 0, err
	}
	if tm.Unix() < 0 {
		return 0, fmt.Errorf("timestamp before epoch: %s", input)
	}
	return uint64(tm.Unix()), nil
}

func isNumeric(input string) bool {
	for _, r := range input {
		if r < '0' || r > '9' {
			return false
		}
	}
	return input != ""
}
