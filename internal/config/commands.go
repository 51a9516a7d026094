package config

import (
	"time"

	"github.com/spf13/pflag"
)

// SimulateConfig holds configuration for the simulate command.
type SimulateConfig struct {
	Pool      PoolConfig
	In        string
	Out       string
	Results   string
	Windows   string
	Snapshots string
	Window    string
	PGDSN     string
	StartTime string
	LogLevel  string
}

// LoadSimulate merges config file, environment variables, and flags into SimulateConfig.
func LoadSimulate(cfgFile string, flags *pflag.FlagSet) (SimulateConfig, error) {
	v, err := load(cfgFile, flags, poolDefaults(map[string]interface{}{
		"out":       "./data/sim_logs.jsonl",
		"results":   "./data/sim_results.jsonl",
		"windows":   "./data/sim_windows.jsonl",
		"snapshots": "./data/sim_snapshots.jsonl",
		"window":    "5m",
	}))
	if err != nil {
		return SimulateConfig{}, err
	}
	return SimulateConfig{
		Pool:      loadPool(v),
		In:        v.GetString("in"),
		Out:       v.GetString("out"),
		Results:   v.GetString("results"),
		Windows:   v.GetString("windows"),
		Snapshots: v.GetString("snapshots"),
		Window:    v.GetString("window"),
		PGDSN:     v.GetString("pg-dsn"),
		StartTime: v.GetString("start-time"),
		LogLevel:  v.GetString("log-level"),
	}, nil
}

// ReplayConfig holds configuration for the replay command.
type ReplayConfig struct {
	Pool      PoolConfig
	In        string
	Strict    bool
	Errors    string
	Snapshots string
	Windows   string
	Window    string
	PGDSN     string
	LogLevel  string
}

// LoadReplay merges config file, environment variables, and flags into ReplayConfig.
func LoadReplay(cfgFile string, flags *pflag.FlagSet) (ReplayConfig, error) {
	v, err := load(cfgFile, flags, poolDefaults(map[string]interface{}{
		"errors":    "./data/replay_errors.jsonl",
		"snapshots": "./data/replay_snapshots.jsonl",
		"windows":   "./data/replay_windows.jsonl",
		"strict":    false,
	}))
	if err != nil {
		return ReplayConfig{}, err
	}
	return ReplayConfig{
		Pool:      loadPool(v),
		In:        v.GetString("in"),
		Strict:    v.GetBool("strict"),
		Errors:    v.GetString("errors"),
		Snapshots: v.GetString("snapshots"),
		Windows:   v.GetString("windows"),
		Window:    v.GetString("window"),
		PGDSN:     v.GetString("pg-dsn"),
		LogLevel:  v.GetString("log-level"),
	}, nil
}

// FollowConfig holds configuration for the follow command.
type FollowConfig struct {
	RPCURL            string
	Pool              string
	Owner             string
	FromBlock         uint64
	ToBlock           uint64
	BatchSize         uint64
	Confirmations     uint64
	Out               string
	Checkpoint        string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
	Follow            bool
	PollInterval      time.Duration
	MetricsAddr       string
	Window            string
	Windows           string
	Snapshots         string
	TVLFromChain      bool
	Verify            bool
	Strict            bool
	PGDSN             string
	LogLevel          string
}

// LoadFollow merges config file, environment variables, and flags into FollowConfig.
func LoadFollow(cfgFile string, flags *pflag.FlagSet) (FollowConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{
		"batch-size":         uint64(2000),
		"confirmations":      uint64(12),
		"out":                "./data/logs.jsonl",
		"checkpoint":         "./data/checkpoint.json",
		"checkpoint-enabled": true,
		"max-retries":        5,
		"retry-backoff":      500 * time.Millisecond,
		"follow":             true,
		"poll-interval":      12 * time.Second,
		"metrics-addr":       ":9102",
		"window":             "5m",
		"windows":            "./data/windows.jsonl",
	})
	if err != nil {
		return FollowConfig{}, err
	}
	return FollowConfig{
		RPCURL:            v.GetString("rpc"),
		Pool:              v.GetString("pool"),
		Owner:             v.GetString("owner"),
		FromBlock:         v.GetUint64("from"),
		ToBlock:           v.GetUint64("to"),
		BatchSize:         v.GetUint64("batch-size"),
		Confirmations:     v.GetUint64("confirmations"),
		Out:               v.GetString("out"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		Follow:            v.GetBool("follow"),
		PollInterval:      v.GetDuration("poll-interval"),
		MetricsAddr:       v.GetString("metrics-addr"),
		Window:            v.GetString("window"),
		Windows:           v.GetString("windows"),
		Snapshots:         v.GetString("snapshots"),
		TVLFromChain:      v.GetBool("tvl-from-chain"),
		Verify:            v.GetBool("verify"),
		Strict:            v.GetBool("strict"),
		PGDSN:             v.GetString("pg-dsn"),
		LogLevel:          v.GetString("log-level"),
	}, nil
}
