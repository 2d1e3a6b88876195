// Package config loads nurdbar settings from NURDBAR_* environment
// variables, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

// EnvPrefix prefixes every variable, e.g. NURDBAR_BAR_PAYMENT_BARCODE.
const EnvPrefix = "NURDBAR"

// Scan modes.
const (
	ModeTake = "take"
	ModeGive = "give"
)

type Config struct {
	DB      DBConfig
	HTTP    HTTPConfig
	Log     LogConfig
	Scanner ScannerConfig
	Bar     BarConfig
	Auth    AuthConfig
}

type DBConfig struct {
	Path string `default:"nurdbar.sqlite3"`
}

type HTTPConfig struct {
	Addr            string        `default:":8080"`
	ShutdownTimeout time.Duration `split_words:"true" default:"10s"`
}

type LogConfig struct {
	Level     string `default:"info"`
	Format    string `default:"json"`
	WarnStack bool   `split_words:"true" default:"false"`
}

type ScannerConfig struct {
	// Device is a serial device or "-" for stdin.
	Device string `default:"/dev/ttyUSB0"`
	// MetricsAddr serves /metrics for the scan loop when set.
	MetricsAddr string `split_words:"true"`
}

// BarConfig holds the ledger and scan session settings.
type BarConfig struct {
	PaymentBarcode   string          `split_words:"true" default:"1010101010"`
	PaymentUnitPrice decimal.Decimal `split_words:"true" default:"0.01"`
	DefaultAmount    int             `split_words:"true" default:"1"`
	PriceTolerance   decimal.Decimal `split_words:"true" default:"0"`
	Mode             string          `default:"take"`
	SessionTimeout   time.Duration   `split_words:"true" default:"30s"`
}

type AuthConfig struct {
	TokenExpiry time.Duration `split_words:"true" default:"24h"`
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDotenv loads variables from the given files (".env" when none are
// given) without overriding ones already set. Missing files are ignored.
func LoadDotenv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Validate checks values envconfig cannot check by type alone.
func (c *Config) Validate() error {
	var errs []error
	if c.DB.Path == "" {
		errs = append(errs, errors.New("db path required"))
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		errs = append(errs, fmt.Errorf("log format %q: want json or console", c.Log.Format))
	}
	if c.Bar.PaymentBarcode == "" {
		errs = append(errs, errors.New("payment barcode required"))
	}
	if !c.Bar.PaymentUnitPrice.IsPositive() {
		errs = append(errs, fmt.Errorf("payment unit price %s must be positive", c.Bar.PaymentUnitPrice))
	}
	if c.Bar.DefaultAmount <= 0 {
		errs = append(errs, fmt.Errorf("default amount %d must be positive", c.Bar.DefaultAmount))
	}
	if c.Bar.PriceTolerance.IsNegative() {
		errs = append(errs, fmt.Errorf("price tolerance %s must not be negative", c.Bar.PriceTolerance))
	}
	if c.Bar.Mode != ModeTake && c.Bar.Mode != ModeGive {
		errs = append(errs, fmt.Errorf("mode %q: want take or give", c.Bar.Mode))
	}
	if c.Bar.SessionTimeout < 0 {
		errs = append(errs, fmt.Errorf("session timeout %s must not be negative", c.Bar.SessionTimeout))
	}
	if c.Auth.TokenExpiry <= 0 {
		errs = append(errs, fmt.Errorf("token expiry %s must be positive", c.Auth.TokenExpiry))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
