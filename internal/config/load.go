package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// SetDefaults registers every default with v so AutomaticEnv can resolve nested keys.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("app", map[string]any{
		"name":        "intent-crawler",
		"environment": "development",
		"debug":       false,
	})
	v.SetDefault("logger", map[string]any{
		"level":        "info",
		"encoding":     "json",
		"development":  false,
		"output_paths": []string{"stdout"},
	})
	v.SetDefault("source", map[string]any{
		"list_url":         DefaultListURL,
		"detail_url":       DefaultDetailURL,
		"search_url":       DefaultSearchURL,
		"detail_link_base": DefaultDetailLinkBase,
		"col_code":         DefaultColCode,
		"page_size":        DefaultPageSize,
		"referer":          DefaultReferer,
		"origin":           DefaultOrigin,
	})
	v.SetDefault("fetcher", map[string]any{
		"request_timeout": DefaultRequestTimeout,
		"pacing": map[string]any{
			"min": DefaultPacingMin,
			"max": DefaultPacingMax,
		},
		"user_agents": DefaultUserAgents,
		"proxy_urls":  []string{},
		"probe_url":   DefaultProbeURL,
	})
	v.SetDefault("navigator", map[string]any{
		"headless":           true,
		"challenge_attempts": DefaultChallengeAttempts,
		"settle_min":         DefaultSettleMin,
		"settle_max":         DefaultSettleMax,
		"element_timeout":    DefaultElementTimeout,
		"browser_bin":        "",
	})
	v.SetDefault("pipeline", map[string]any{
		"max_pages":       DefaultMaxPages,
		"start_page":      DefaultStartPage,
		"rescue_attempts": DefaultRescueAttempts,
		"workers":         DefaultWorkers,
		"run_timeout":     DefaultRunTimeout,
		"mode":            ModeBrowser,
	})
	v.SetDefault("solver", map[string]any{
		"url":      "",
		"timeout":  DefaultSolverTimeout,
		"attempts": DefaultSolverAttempts,
	})
	v.SetDefault("server", map[string]any{
		"address":       DefaultServerAddress,
		"read_timeout":  DefaultReadTimeout,
		"write_timeout": DefaultWriteTimeout,
		"idle_timeout":  DefaultIdleTimeout,
	})
	v.SetDefault("redis", map[string]any{
		"enabled":    false,
		"address":    DefaultRedisAddress,
		"password":   "",
		"db":         0,
		"key_prefix": DefaultRedisKeyPrefix,
		"ttl":        DefaultRedisTTL,
	})
}

// Init prepares v: .env first, then environment variables with "." mapped to "_",
// then an optional config file.
func Init(v *viper.Viper, cfgFile string) error {
	// .env is optional
	_ = godotenv.Load()

	SetDefaults(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// Load decodes v into a Config, applies defaults and validates the result.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
