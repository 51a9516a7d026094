package config

import (
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DecodeConfig holds configuration for the decode command.
type DecodeConfig struct {
	RPCURL          string
	In              string
	Out             string
	Errors          string
	LogLevel        string
	Topic0Map       map[string]string
	IncludeLiveMeta bool
	// Pool seeds the metadata cache so logs of a local pool decode without an RPC.
	Pool PoolConfig
}

// LoadDecode resolves the decode command: flags over CLMM_ environment over the config file.
func LoadDecode(cfgFile string, flags *pflag.FlagSet) (DecodeConfig, error) {
	v, err := load(cfgFile, flags, poolDefaults(map[string]interface{}{
		"out":               "./data/typed_events.jsonl",
		"errors":            "./data/decode_errors.jsonl",
		"include-live-meta": false,
	}))
	if err != nil {
		return DecodeConfig{}, err
	}

	return DecodeConfig{
		RPCURL:          v.GetString("rpc"),
		In:              v.GetString("in"),
		Out:             v.GetString("out"),
		Errors:          v.GetString("errors"),
		LogLevel:        v.GetString("log-level"),
		Topic0Map:       topicMap(v, "topic0-map"),
		IncludeLiveMeta: v.GetBool("include-live-meta"),
		Pool:            loadPool(v),
	}, nil
}

// topicMap reads topic0-map either as a mapping from the config file or as
// "topic=Event,topic=Event" from a flag or the environment. Malformed pairs are skipped.
func topicMap(v *viper.Viper, key string) map[string]string {
	raw, ok := v.Get(key).(string)
	if !ok {
		return v.GetStringMapString(key)
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		topic, name, found := strings.Cut(pair, "=")
		topic, name = strings.TrimSpace(topic), strings.TrimSpace(name)
		if found && topic != "" && name != "" {
			out[topic] = name
		}
	}
	return out
}
