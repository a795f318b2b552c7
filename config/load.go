package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/yitech/chartfeed/logger"
	"github.com/yitech/chartfeed/model/bar"
	"github.com/yitech/chartfeed/model/symbol"
)

// Source kinds.
const (
	SourceIEX     = "iex"
	SourceBinance = "binance"
	SourceBybit   = "bybit"
	SourceOKX     = "okx"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Source    SourceConfig    `yaml:"source"`
	Chart     ChartConfig     `yaml:"chart"`
	Profile   ProfileConfig   `yaml:"profile"`
	Portfolio PortfolioConfig `yaml:"portfolio"`
	Symbols   []symbol.Entry  `yaml:"symbols"`
	Log       logger.Config   `yaml:"log"`
}

type ServerConfig struct {
	HTTPAddr string `yaml:"httpAddr"`
	GRPCAddr string `yaml:"grpcAddr"` // empty disables the gRPC feed
}

type SourceConfig struct {
	Kind          string        `yaml:"kind"`
	BaseURL       string        `yaml:"baseURL"`
	WSURL         string        `yaml:"wsURL"`
	Token         string        `yaml:"token"`
	Category      string        `yaml:"category"` // bybit only
	Timeout       time.Duration `yaml:"timeout"`
	Retries       int           `yaml:"retries"`
	QuoteInterval time.Duration `yaml:"quoteInterval"` // iex polling period
	// LoadDirectory replaces Symbols with the source's own directory at
	// startup when the source publishes one.
	LoadDirectory bool `yaml:"loadDirectory"`
}

type ChartConfig struct {
	Timezone          string         `yaml:"timezone"`
	Exchange          string         `yaml:"exchange"`
	DefaultResolution bar.Resolution `yaml:"defaultResolution"`
}

type ProfileConfig struct {
	BaseURL string `yaml:"baseURL"`
	APIKey  string `yaml:"apiKey"`
}

type PortfolioConfig struct {
	DBPath string `yaml:"dbPath"` // empty disables the trade API
}

// Default returns the configuration used for keys absent from the file.
func Default() AppConfig {
	return AppConfig{
		Server: ServerConfig{HTTPAddr: ":8080"},
		Source: SourceConfig{
			Kind:          SourceIEX,
			Timeout:       15 * time.Second,
			QuoteInterval: 5 * time.Second,
		},
		Chart: ChartConfig{
			Timezone:          "America/New_York",
			DefaultResolution: bar.ResolutionD,
		},
		Log: logger.DefaultConfig(),
	}
}

// Load reads YAML config from path over Default and validates it.
func Load(path string) (AppConfig, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides secrets and addresses
// from the environment. envFile, when it exists, is loaded into the
// environment first without replacing variables already set.
func LoadWithEnvOverrides(path, envFile string) (AppConfig, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return AppConfig{}, fmt.Errorf("load env file: %w", err)
		}
	}
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("CHARTFEED_SOURCE"); v != "" {
		cfg.Source.Kind = v
	}
	if v := os.Getenv("CHARTFEED_IEX_TOKEN"); v != "" {
		cfg.Source.Token = v
	}
	if v := os.Getenv("CHARTFEED_FMP_API_KEY"); v != "" {
		cfg.Profile.APIKey = v
	}
	if v := os.Getenv("CHARTFEED_HTTP_ADDR"); v != "" {
		cfg.Server.HTTPAddr = v
	}
	if v := os.Getenv("CHARTFEED_DB_PATH"); v != "" {
		cfg.Portfolio.DBPath = v
	}
	return cfg, Validate(cfg)
}

// Validate ensures required fields are present.
func Validate(cfg AppConfig) error {
	if cfg.Server.HTTPAddr == "" {
		return errors.New("server.httpAddr is required")
	}
	switch cfg.Source.Kind {
	case SourceIEX, SourceBinance, SourceBybit, SourceOKX:
	default:
		return fmt.Errorf("source.kind %q is not one of iex, binance, bybit, okx", cfg.Source.Kind)
	}
	if cfg.Source.Timeout < 0 || cfg.Source.QuoteInterval < 0 {
		return errors.New("source durations must be >= 0")
	}
	if cfg.Source.Retries < 0 {
		return errors.New("source.retries must be >= 0")
	}
	if cfg.Chart.Timezone == "" {
		return errors.New("chart.timezone is required")
	}
	if _, err := time.LoadLocation(cfg.Chart.Timezone); err != nil {
		return fmt.Errorf("chart.timezone: %w", err)
	}
	if cfg.Chart.DefaultResolution == "" {
		return errors.New("chart.defaultResolution is required")
	}
	seen := make(map[string]struct{}, len(cfg.Symbols))
	for i, e := range cfg.Symbols {
		if e.Symbol == "" {
			return fmt.Errorf("symbols[%d].symbol is required", i)
		}
		if _, dup := seen[e.Symbol]; dup {
			return fmt.Errorf("symbol %s listed twice", e.Symbol)
		}
		seen[e.Symbol] = struct{}{}
	}
	return nil
}

// Location returns the chart timezone. Validate has already checked it.
func (c ChartConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
