// Package config loads the chain-clean configuration.
//
// Responsibilities:
//   - Read the YAML file (JSON is valid YAML)
//   - Apply CHAINCLEAN_* environment overrides on top of the file
//   - Validate the result and evaluate the arithmetic fields
//
// Precedence is defaults < file < environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Knetic/govaluate"
	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/contactkeval/chain-clean/internal/arb"
	"github.com/contactkeval/chain-clean/internal/chain"
	"github.com/contactkeval/chain-clean/internal/data"
	"github.com/contactkeval/chain-clean/internal/logger"
	"github.com/contactkeval/chain-clean/internal/pricing"
)

// EnvPrefix prefixes every environment override, e.g. CHAINCLEAN_SERVER_PORT.
const EnvPrefix = "CHAINCLEAN"

//
// ==========================
// Error taxonomy
// ==========================
//

var (
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrInvalidExpression = errors.New("invalid numeric expression")
)

//
// ==========================
// Configuration types
// ==========================
//

// Config represents the complete application configuration
type Config struct {
	Pricing PricingConfig `yaml:"pricing" envconfig:"PRICING"`
	Cleaner CleanerConfig `yaml:"cleaner" envconfig:"CLEANER"`
	Sources SourcesConfig `yaml:"sources" envconfig:"SOURCES"`
	Chains  []ChainConfig `yaml:"chains" ignored:"true" validate:"dive"`
	Report  ReportConfig  `yaml:"report" envconfig:"REPORT"`
	Store   StoreConfig   `yaml:"store" envconfig:"STORE"`
	Log     LogConfig     `yaml:"log" envconfig:"LOG"`
	Server  ServerConfig  `yaml:"server" envconfig:"SERVER"`
}

// PricingConfig holds the shared market inputs. Rate, Maturity and Dividend
// are expressions such as "30/365" or "0.05 - 0.01".
type PricingConfig struct {
	SpotBid  float64 `yaml:"spot_bid" split_words:"true" validate:"gte=0"`
	SpotAsk  float64 `yaml:"spot_ask" split_words:"true" validate:"gtefield=SpotBid"`
	Rate     string  `yaml:"rate" split_words:"true"`
	Maturity string  `yaml:"maturity" split_words:"true"`
	Dividend string  `yaml:"dividend" split_words:"true"`
}

type CleanerConfig struct {
	MaxIter   int    `yaml:"max_iter" split_words:"true" validate:"gte=1,lte=1000"`
	Butterfly string `yaml:"butterfly" split_words:"true" validate:"omitempty,oneof=auto quoted conservative"`
	Dominance bool   `yaml:"dominance" split_words:"true"`
	Workers   int    `yaml:"workers" split_words:"true" validate:"gte=1,lte=256"`
}

// SourcesConfig configures the chain providers.
type SourcesConfig struct {
	Dir               string               `yaml:"dir" split_words:"true"`
	MassiveAPIKey     string               `yaml:"massive_api_key" split_words:"true"`
	RequestsPerSecond float64              `yaml:"requests_per_second" split_words:"true" validate:"gte=0"`
	Synthetic         data.SyntheticParams `yaml:"synthetic" envconfig:"SYNTHETIC"`
}

// ChainConfig names one table to load and clean.
type ChainConfig struct {
	Name       string `yaml:"name" validate:"required"`
	Side       string `yaml:"side" validate:"required"`
	Source     string `yaml:"source" validate:"omitempty,oneof=csv xlsx massive synthetic"`
	Fallback   string `yaml:"fallback" validate:"omitempty,oneof=csv xlsx massive synthetic"`
	Path       string `yaml:"path"`
	Sheet      string `yaml:"sheet"`
	Underlying string `yaml:"underlying"`
	Expiry     string `yaml:"expiry" validate:"omitempty,datetime=2006-01-02"`
}

type ReportConfig struct {
	Dir string `yaml:"dir" split_words:"true"`
}

type StoreConfig struct {
	// Path of the SQLite run history; empty disables it.
	Path string `yaml:"path" split_words:"true"`
}

type LogConfig struct {
	Verbosity string `yaml:"verbosity" split_words:"true"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" split_words:"true" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" split_words:"true" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" split_words:"true" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true" validate:"gt=0"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" split_words:"true" validate:"gt=0"`
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Pricing: PricingConfig{Rate: "0", Maturity: "0", Dividend: "0"},
		Cleaner: CleanerConfig{
			MaxIter:   arb.DefaultMaxIter,
			Butterfly: string(arb.ButterflyAuto),
			Workers:   4,
		},
		Sources: SourcesConfig{
			Dir:       ".",
			Synthetic: data.DefaultSyntheticParams(),
		},
		Report: ReportConfig{Dir: "out"},
		Log:    LogConfig{Verbosity: "info"},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    8 << 20,
		},
	}
}

//
// ==========================
// Loading
// ==========================
//

// Load builds the configuration from defaults, the file at path and the
// environment. An empty path searches the usual locations and carries on
// without a file when none exists.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		logger.Debugf("event=config_file path=%s chains=%d", path, len(cfg.Chains))
	}

	// only variables that are set override the file; leaf fields carry no
	// envconfig tag so lookups never fall back to unprefixed names like PATH
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	for _, location := range []string{
		"chain-clean.yaml",
		"configs/chain-clean.yaml",
	} {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct constraints plus the fields validator cannot see:
// expressions, side labels and the verbosity name.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := c.PricingContext(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := arb.ParseButterflyRule(c.Cleaner.Butterfly); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := logger.ParseVerbosity(c.Log.Verbosity); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	for _, cc := range c.Chains {
		if _, err := chain.ParseSide(cc.Side); err != nil {
			return fmt.Errorf("%w: chain %q: %v", ErrInvalidConfig, cc.Name, err)
		}
	}
	return nil
}

//
// ==========================
// Derived values
// ==========================
//

// PricingContext evaluates the pricing section.
func (c *Config) PricingContext() (pricing.Context, error) {
	p := c.Pricing
	r, err := EvalExpression(p.Rate)
	if err != nil {
		return pricing.Context{}, fmt.Errorf("pricing.rate: %w", err)
	}
	T, err := EvalExpression(p.Maturity)
	if err != nil {
		return pricing.Context{}, fmt.Errorf("pricing.maturity: %w", err)
	}
	q, err := EvalExpression(p.Dividend)
	if err != nil {
		return pricing.Context{}, fmt.Errorf("pricing.dividend: %w", err)
	}
	return pricing.NewContext(p.SpotBid, p.SpotAsk, r, T, q)
}

// CleanerOptions maps the cleaner section onto arb.Options.
func (c *Config) CleanerOptions() arb.Options {
	rule, _ := arb.ParseButterflyRule(c.Cleaner.Butterfly)
	return arb.Options{
		MaxIter:   c.Cleaner.MaxIter,
		Butterfly: rule,
		Dominance: c.Cleaner.Dominance,
		Workers:   c.Cleaner.Workers,
	}
}

// ProviderOptions maps the sources section onto data.Options.
func (c *Config) ProviderOptions(pc pricing.Context) data.Options {
	return data.Options{
		Dir:               c.Sources.Dir,
		MassiveAPIKey:     c.Sources.MassiveAPIKey,
		RequestsPerSecond: c.Sources.RequestsPerSecond,
		Pricing:           pc,
		Synthetic:         c.Sources.Synthetic,
	}
}

// Request turns a chain entry into a provider request.
func (cc ChainConfig) Request() (data.ChainRequest, error) {
	side, err := chain.ParseSide(cc.Side)
	if err != nil {
		return data.ChainRequest{}, err
	}
	req := data.ChainRequest{
		Name:       cc.Name,
		Side:       side,
		Path:       cc.Path,
		Sheet:      cc.Sheet,
		Underlying: strings.ToUpper(cc.Underlying),
	}
	if cc.Expiry != "" {
		if req.Expiry, err = time.Parse("2006-01-02", cc.Expiry); err != nil {
			return data.ChainRequest{}, err
		}
	}
	return req, nil
}

// Provider builds the chain's primary provider with its fallback attached.
func (cc ChainConfig) Provider(opts data.Options) (data.Provider, error) {
	var secondary data.Provider
	if cc.Fallback != "" {
		var err error
		if secondary, err = data.NewProvider(cc.Fallback, opts, nil); err != nil {
			return nil, err
		}
	}
	return data.NewProvider(cc.Source, opts, secondary)
}

// EvalExpression evaluates an arithmetic expression to a number. The empty
// string is zero.
func EvalExpression(expr string) (float64, error) {
	if strings.TrimSpace(expr) == "" {
		return 0, nil
	}

	evalExpr, err := govaluate.NewEvaluableExpression(expr)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidExpression, expr, err)
	}

	if vars := evalExpr.Vars(); len(vars) > 0 {
		return 0, fmt.Errorf("%w: %q uses unknown names %v", ErrInvalidExpression, expr, vars)
	}

	result, err := evalExpr.Evaluate(map[string]interface{}{})
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidExpression, expr, err)
	}

	f, ok := result.(float64)
	if !ok {
		return 0, fmt.Errorf("%w: %q is not numeric", ErrInvalidExpression, expr)
	}
	return f, nil
}
