// Package config loads per-command configuration from flags, environment
// variables (POOLCTL_ prefix), and an optional config file.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// SimulateConfig holds configuration for the simulate command.
type SimulateConfig struct {
	Pool        string
	Token0      string
	Token1      string
	Fee         uint32
	TickSpacing int
	StartTime   uint32
	Ops         string
	Out         string
	Snapshot    string
	PGDSN       string
	LogLevel    string
}

// LoadSimulate merges config file, environment variables, and flags into
// SimulateConfig.
func LoadSimulate(cfgFile string, flags *pflag.FlagSet) (SimulateConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("POOLCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("fee", uint32(3000))
	v.SetDefault("tick-spacing", 60)
	v.SetDefault("start-time", uint32(1))
	v.SetDefault("out", "./data/events.jsonl")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return SimulateConfig{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if err := readConfigFile(v, cfgFile); err != nil {
		return SimulateConfig{}, err
	}

	cfg := SimulateConfig{
		Pool:        v.GetString("pool"),
		Token0:      v.GetString("token0"),
		Token1:      v.GetString("token1"),
		Fee:         v.GetUint32("fee"),
		TickSpacing: v.GetInt("tick-spacing"),
		StartTime:   v.GetUint32("start-time"),
		Ops:         v.GetString("ops"),
		Out:         v.GetString("out"),
		Snapshot:    v.GetString("snapshot"),
		PGDSN:       v.GetString("pg-dsn"),
		LogLevel:    v.GetString("log-level"),
	}

	return cfg, nil
}

func readConfigFile(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		return nil
	}

	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}
