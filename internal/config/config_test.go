package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoadFollowPrecedence(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "clmm.yaml")
	content := "rpc: http://file:8545\nbatch-size: 500\nconfirmations: 3\n"
	if err := os.WriteFile(cfgFile, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CLMM_CONFIRMATIONS", "7")

	flags := pflag.NewFlagSet("follow", pflag.ContinueOnError)
	flags.Uint64("batch-size", 2000, "")
	flags.String("pool", "", "")
	if err := flags.Parse([]string{"--batch-size=100", "--pool=0x1111111111111111111111111111111111111111"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := LoadFollow(cfgFile, flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCURL != "http://file:8545" {
		t.Fatalf("rpc %q", cfg.RPCURL)
	}
	if cfg.BatchSize != 100 {
		t.Fatalf("batch size %d, want flag value", cfg.BatchSize)
	}
	if cfg.Confirmations != 7 {
		t.Fatalf("confirmations %d, want env value", cfg.Confirmations)
	}
	if cfg.RetryBackoff != 500*time.Millisecond || !cfg.Follow || cfg.MetricsAddr != ":9102" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.Pool != "0x1111111111111111111111111111111111111111" {
		t.Fatalf("pool %q", cfg.Pool)
	}
}

func TestLoadSimulatePoolDefaults(t *testing.T) {
	cfg, err := LoadSimulate(filepath.Join(writeConfig(t, "fee: 500\ntick-spacing: 10\n"), "clmm.yaml"), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Pool.Fee != 500 || cfg.Pool.TickSpacing != 10 {
		t.Fatalf("pool %+v", cfg.Pool)
	}
	if cfg.Pool.ChainID != 31337 || cfg.Pool.Decimals0 != 18 || cfg.Window != "5m" {
		t.Fatalf("defaults %+v", cfg)
	}
}

func TestLoadDecodeTopicMap(t *testing.T) {
	t.Setenv("CLMM_TOPIC0_MAP", "0xabc=swap, 0xdef = Mint ,bad")
	cfg, err := LoadDecode(filepath.Join(writeConfig(t, "in: logs.jsonl\n"), "clmm.yaml"), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Topic0Map) != 2 || cfg.Topic0Map["0xabc"] != "swap" || cfg.Topic0Map["0xdef"] != "Mint" {
		t.Fatalf("topic0 map %v", cfg.Topic0Map)
	}
}

func TestWindowSeconds(t *testing.T) {
	cases := []struct {
		in   string
		want uint64
		err  bool
	}{
		{"", 0, false},
		{"5m", 300, false},
		{"1h", 3600, false},
		{"500ms", 0, true},
		{"-1m", 0, true},
		{"soon", 0, true},
	}
	for _, tc := range cases {
		got, err := WindowSeconds(tc.in)
		if tc.err {
			if err == nil {
				t.Fatalf("%q: expected error", tc.in)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("%q: got %d, %v", tc.in, got, err)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	got, err := ParseTimestamp("2024-01-02T03:04:05Z")
	if err != nil || got != 1704164645 {
		t.Fatalf("rfc3339: %d, %v", got, err)
	}
	got, err = ParseTimestamp(" 1700000000 ")
	if err != nil || got != 1700000000 {
		t.Fatalf("unix: %d, %v", got, err)
	}
	if _, err := ParseTimestamp("yesterday"); err == nil {
		t.Fatalf("expected error")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "clmm.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return dir
}
