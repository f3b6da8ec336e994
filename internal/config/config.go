// Package config defines the typed configuration sections of the intention crawler
// and loads them from viper.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/jonesrussell/north-cloud/intent-crawler/internal/logger"
)

// Default configuration values.
const (
	DefaultListURL        = "http://www.ccgp-shandong.gov.cn:8087/api/website/site/getListByCode"
	DefaultDetailURL      = "http://www.ccgp-shandong.gov.cn:8087/api/website/site/getDetail"
	DefaultSearchURL      = "http://www.ccgp-shandong.gov.cn/xxgk"
	DefaultDetailLinkBase = "http://www.ccgp-shandong.gov.cn/detail"
	DefaultOrigin         = "http://www.ccgp-shandong.gov.cn"
	DefaultReferer        = "http://www.ccgp-shandong.gov.cn/"
	DefaultColCode        = "2500"
	DefaultPageSize       = 10

	DefaultRequestTimeout = 20 * time.Second
	DefaultPacingMin      = 2 * time.Second
	DefaultPacingMax      = 5 * time.Second
	DefaultProbeURL       = "http://ip-api.com/json?lang=zh-CN"

	DefaultChallengeAttempts = 5
	DefaultSettleMin         = 300 * time.Millisecond
	DefaultSettleMax         = 900 * time.Millisecond
	DefaultElementTimeout    = 10 * time.Second

	DefaultMaxPages       = 5
	DefaultStartPage      = 1
	DefaultRescueAttempts = 5
	DefaultWorkers        = 2
	DefaultRunTimeout     = 30 * time.Minute
	MaxWorkers            = 8

	DefaultSolverTimeout  = 15 * time.Second
	DefaultSolverAttempts = 3

	DefaultServerAddress = ":8080"
	DefaultReadTimeout   = 15 * time.Second
	DefaultWriteTimeout  = 30 * time.Second
	DefaultIdleTimeout   = 60 * time.Second

	DefaultRedisAddress   = "localhost:6379"
	DefaultRedisKeyPrefix = "intent-crawler:task:"
	DefaultRedisTTL       = 24 * time.Hour
)

// Pipeline modes.
const (
	ModeBrowser = "browser"
	ModeAPI     = "api"
)

// DefaultUserAgents is the desktop browser pool rotated by the fetcher.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36 Edg/119.0.0.0",
}

// Config is the root configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app" yaml:"app"`
	Logger    logger.Config   `mapstructure:"logger" yaml:"logger"`
	Source    SourceConfig    `mapstructure:"source" yaml:"source"`
	Fetcher   FetcherConfig   `mapstructure:"fetcher" yaml:"fetcher"`
	Navigator NavigatorConfig `mapstructure:"navigator" yaml:"navigator"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline" yaml:"pipeline"`
	Solver    SolverConfig    `mapstructure:"solver" yaml:"solver"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Redis     RedisConfig     `mapstructure:"redis" yaml:"redis"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `mapstructure:"name" yaml:"name"`
	Environment string `mapstructure:"environment" yaml:"environment"`
	Debug       bool   `mapstructure:"debug" yaml:"debug"`
}

// SourceConfig describes the portal endpoints and request constants.
type SourceConfig struct {
	ListURL        string `mapstructure:"list_url" yaml:"list_url"`
	DetailURL      string `mapstructure:"detail_url" yaml:"detail_url"`
	SearchURL      string `mapstructure:"search_url" yaml:"search_url"`
	DetailLinkBase string `mapstructure:"detail_link_base" yaml:"detail_link_base"`
	ColCode        string `mapstructure:"col_code" yaml:"col_code"`
	PageSize       int    `mapstructure:"page_size" yaml:"page_size"`
	Referer        string `mapstructure:"referer" yaml:"referer"`
	Origin         string `mapstructure:"origin" yaml:"origin"`
}

// PacingConfig bounds the uniform jitter applied before every outbound request.
type PacingConfig struct {
	Min time.Duration `mapstructure:"min" yaml:"min"`
	Max time.Duration `mapstructure:"max" yaml:"max"`
}

// FetcherConfig configures the list/detail fetcher transport.
type FetcherConfig struct {
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	Pacing         PacingConfig  `mapstructure:"pacing" yaml:"pacing"`
	UserAgents     []string      `mapstructure:"user_agents" yaml:"user_agents"`
	// ProxyURLs are rotated round robin; empty means direct connections.
	ProxyURLs []string `mapstructure:"proxy_urls" yaml:"proxy_urls"`
	ProbeURL  string   `mapstructure:"probe_url" yaml:"probe_url"`
}

// NavigatorConfig configures the interactive browser session.
type NavigatorConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	ChallengeAttempts int           `mapstructure:"challenge_attempts" yaml:"challenge_attempts"`
	SettleMin         time.Duration `mapstructure:"settle_min" yaml:"settle_min"`
	SettleMax         time.Duration `mapstructure:"settle_max" yaml:"settle_max"`
	ElementTimeout    time.Duration `mapstructure:"element_timeout" yaml:"element_timeout"`
	// BrowserBin overrides the browser binary; empty lets the launcher resolve one.
	BrowserBin string `mapstructure:"browser_bin" yaml:"browser_bin"`
}

// PipelineConfig bounds a single run.
type PipelineConfig struct {
	MaxPages       int           `mapstructure:"max_pages" yaml:"max_pages"`
	StartPage      int           `mapstructure:"start_page" yaml:"start_page"`
	RescueAttempts int           `mapstructure:"rescue_attempts" yaml:"rescue_attempts"`
	Workers        int           `mapstructure:"workers" yaml:"workers"`
	RunTimeout     time.Duration `mapstructure:"run_timeout" yaml:"run_timeout"`
	Mode           string        `mapstructure:"mode" yaml:"mode"`
}

// SolverConfig points at the external challenge recognition service.
type SolverConfig struct {
	URL      string        `mapstructure:"url" yaml:"url"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Attempts int           `mapstructure:"attempts" yaml:"attempts"`
}

// ServerConfig configures the HTTP front end.
type ServerConfig struct {
	Address      string        `mapstructure:"address" yaml:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
}

// RedisConfig configures the optional redis task store.
type RedisConfig struct {
	Enabled   bool          `mapstructure:"enabled" yaml:"enabled"`
	Address   string        `mapstructure:"address" yaml:"address"`
	Password  string        `mapstructure:"password" yaml:"password"`
	DB        int           `mapstructure:"db" yaml:"db"`
	KeyPrefix string        `mapstructure:"key_prefix" yaml:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidationError represents an error in configuration validation.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config: field %q with value %v: %s", e.Field, e.Value, e.Reason)
}

// Unwrap lets callers match ErrInvalidConfig.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfig
}

// WithDefaults returns a copy with zero values replaced by defaults.
func (c Config) WithDefaults() Config {
	c.Logger.SetDefaults()
	if c.App.Name == "" {
		c.App.Name = "intent-crawler"
	}
	c.Source = c.Source.withDefaults()
	c.Fetcher = c.Fetcher.withDefaults()
	c.Navigator = c.Navigator.withDefaults()
	c.Pipeline = c.Pipeline.withDefaults()
	if c.Solver.Timeout == 0 {
		c.Solver.Timeout = DefaultSolverTimeout
	}
	if c.Solver.Attempts == 0 {
		c.Solver.Attempts = DefaultSolverAttempts
	}
	if c.Server.Address == "" {
		c.Server.Address = DefaultServerAddress
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = DefaultReadTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = DefaultIdleTimeout
	}
	if c.Redis.Address == "" {
		c.Redis.Address = DefaultRedisAddress
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = DefaultRedisTTL
	}
	return c
}

func (s SourceConfig) withDefaults() SourceConfig {
	if s.ListURL == "" {
		s.ListURL = DefaultListURL
	}
	if s.DetailURL == "" {
		s.DetailURL = DefaultDetailURL
	}
	if s.SearchURL == "" {
		s.SearchURL = DefaultSearchURL
	}
	if s.DetailLinkBase == "" {
		s.DetailLinkBase = DefaultDetailLinkBase
	}
	if s.ColCode == "" {
		s.ColCode = DefaultColCode
	}
	if s.PageSize == 0 {
		s.PageSize = DefaultPageSize
	}
	if s.Origin == "" {
		s.Origin = DefaultOrigin
	}
	if s.Referer == "" {
		s.Referer = DefaultReferer
	}
	return s
}

func (f FetcherConfig) withDefaults() FetcherConfig {
	if f.RequestTimeout == 0 {
		f.RequestTimeout = DefaultRequestTimeout
	}
	if f.Pacing.Min == 0 && f.Pacing.Max == 0 {
		f.Pacing = PacingConfig{Min: DefaultPacingMin, Max: DefaultPacingMax}
	}
	if len(f.UserAgents) == 0 {
		f.UserAgents = DefaultUserAgents
	}
	if f.ProbeURL == "" {
		f.ProbeURL = DefaultProbeURL
	}
	return f
}

func (n NavigatorConfig) withDefaults() NavigatorConfig {
	if n.ChallengeAttempts == 0 {
		n.ChallengeAttempts = DefaultChallengeAttempts
	}
	if n.SettleMin == 0 && n.SettleMax == 0 {
		n.SettleMin, n.SettleMax = DefaultSettleMin, DefaultSettleMax
	}
	if n.ElementTimeout == 0 {
		n.ElementTimeout = DefaultElementTimeout
	}
	return n
}

func (p PipelineConfig) withDefaults() PipelineConfig {
	if p.MaxPages == 0 {
		p.MaxPages = DefaultMaxPages
	}
	if p.StartPage == 0 {
		p.StartPage = DefaultStartPage
	}
	if p.RescueAttempts == 0 {
		p.RescueAttempts = DefaultRescueAttempts
	}
	if p.Workers == 0 {
		p.Workers = DefaultWorkers
	}
	if p.RunTimeout == 0 {
		p.RunTimeout = DefaultRunTimeout
	}
	if p.Mode == "" {
		p.Mode = ModeBrowser
	}
	return p
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c Config) Validate() error {
	if c.Source.ListURL == "" {
		return &ValidationError{Field: "source.list_url", Value: c.Source.ListURL, Reason: "must not be empty"}
	}
	if c.Source.PageSize < 1 {
		return &ValidationError{Field: "source.page_size", Value: c.Source.PageSize, Reason: "must be positive"}
	}
	if err := c.Fetcher.Pacing.Validate(); err != nil {
		return err
	}
	if c.Fetcher.RequestTimeout <= 0 {
		return &ValidationError{Field: "fetcher.request_timeout", Value: c.Fetcher.RequestTimeout, Reason: "must be positive"}
	}
	if c.Navigator.ChallengeAttempts < 1 {
		return &ValidationError{
			Field: "navigator.challenge_attempts", Value: c.Navigator.ChallengeAttempts, Reason: "must be at least 1",
		}
	}
	if c.Navigator.SettleMax < c.Navigator.SettleMin {
		return &ValidationError{Field: "navigator.settle_max", Value: c.Navigator.SettleMax, Reason: "must be >= settle_min"}
	}
	return c.Pipeline.Validate()
}

// Validate rejects zero and inverted pacing windows.
func (p PacingConfig) Validate() error {
	if p.Min <= 0 {
		return &ValidationError{Field: "fetcher.pacing.min", Value: p.Min, Reason: "must be positive"}
	}
	if p.Max < p.Min {
		return &ValidationError{Field: "fetcher.pacing.max", Value: p.Max, Reason: "must be >= pacing.min"}
	}
	return nil
}

// Validate checks run bounds.
func (p PipelineConfig) Validate() error {
	if p.MaxPages < 1 {
		return &ValidationError{Field: "pipeline.max_pages", Value: p.MaxPages, Reason: "must be at least 1"}
	}
	if p.StartPage < 1 {
		return &ValidationError{Field: "pipeline.start_page", Value: p.StartPage, Reason: "must be at least 1"}
	}
	if p.RescueAttempts < 0 {
		return &ValidationError{Field: "pipeline.rescue_attempts", Value: p.RescueAttempts, Reason: "must not be negative"}
	}
	if p.Workers < 1 || p.Workers > MaxWorkers {
		return &ValidationError{
			Field: "pipeline.workers", Value: p.Workers, Reason: fmt.Sprintf("must be between 1 and %d", MaxWorkers),
		}
	}
	if p.Mode != ModeBrowser && p.Mode != ModeAPI {
		return &ValidationError{Field: "pipeline.mode", Value: p.Mode, Reason: "must be browser or api"}
	}
	return nil
}
