package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// QuoteConfig holds configuration for the quote command.
type QuoteConfig struct {
	Snapshot          string
	ZeroForOne        bool
	Amount            string
	SqrtPriceLimitX96 string
	LogLevel          string
}

// LoadQuote merges config file, environment variables, and flags into
// QuoteConfig.
func LoadQuote(cfgFile string, flags *pflag.FlagSet) (QuoteConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("POOLCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return QuoteConfig{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if err := readConfigFile(v, cfgFile); err != nil {
		return QuoteConfig{}, err
	}

	cfg := QuoteConfig{
		Snapshot:          v.GetString("snapshot"),
		ZeroForOne:        v.GetBool("zero-for-one"),
		Amount:            v.GetString("amount"),
		SqrtPriceLimitX96: v.GetString("sqrt-price-limit"),
		LogLevel:          v.GetString("log-level"),
	}

	return cfg, nil
}
