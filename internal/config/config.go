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

type Config struct {
	App        AppConfig        `envconfig:"APP"`
	Database   DatabaseConfig   `envconfig:"DB"`
	Redis      RedisConfig      `envconfig:"REDIS"`
	JWT        JWTConfig        `envconfig:"JWT"`
	Payroll    PayrollConfig    `envconfig:"PAYROLL"`
	Settlement SettlementConfig `envconfig:"SETTLEMENT"`
	Queue      QueueConfig      `envconfig:"QUEUE"`
	Report     ReportConfig     `envconfig:"REPORT"`
}

// AppConfig holds application configuration
type AppConfig struct {
	Port           int      `default:"8080"`
	Env            string   `default:"development"`
	LogLevel       string   `split_words:"true" default:"info"`
	LogFormat      string   `split_words:"true" default:"json"`
	AllowedOrigins []string `split_words:"true" default:"http://localhost:3000"`
	Currency       string   `default:"INR"`
}

type DatabaseConfig struct {
	Host     string `default:"localhost"`
	Port     int    `default:"5432"`
	User     string `default:"postgres"`
	Password string
	Name     string `default:"payroll_engine"`
	SSLMode  string `split_words:"true" default:"disable"`
	MaxConns int32  `split_words:"true" default:"25"`
	MinConns int32  `split_words:"true" default:"5"`
}

// RedisConfig backs the resource locks and the job queue. An empty Addr
// falls back to in-process locks and disables the queue.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int `default:"0"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	SecretKey      string        `split_words:"true"`
	AccessTokenTTL time.Duration `split_words:"true" default:"15m"`
}

type PayrollConfig struct {
	StandardDaysPerMonth int64           `split_words:"true" default:"30"`
	OvertimeMultiplier   decimal.Decimal `split_words:"true" default:"1.5"`
	Workers              int             `default:"8"`
	LockTTL              time.Duration   `split_words:"true" default:"5m"`
	OpenCyclesInterval   time.Duration   `split_words:"true" default:"1h"`
}

type SettlementConfig struct {
	GratuityMinYears    int `split_words:"true" default:"5"`
	GratuityDaysPerYear int `split_words:"true" default:"15"`
	GratuityDivisor     int `split_words:"true" default:"26"`
}

type QueueConfig struct {
	Enabled     bool `default:"false"`
	Concurrency int  `default:"5"`
}

type ReportConfig struct {
	ExportFile string `split_words:"true"`
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	config := &Config{}
	if err := envconfig.Process("", config); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.JWT.SecretKey == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if c.Payroll.StandardDaysPerMonth <= 0 {
		return fmt.Errorf("PAYROLL_STANDARD_DAYS_PER_MONTH must be positive")
	}
	if c.Payroll.OvertimeMultiplier.IsNegative() {
		return fmt.Errorf("PAYROLL_OVERTIME_MULTIPLIER must not be negative")
	}
	if c.Payroll.Workers <= 0 {
		return fmt.Errorf("PAYROLL_WORKERS must be positive")
	}
	if c.Settlement.GratuityDivisor <= 0 {
		return fmt.Errorf("SETTLEMENT_GRATUITY_DIVISOR must be positive")
	}
	if c.Queue.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("REDIS_ADDR is required when QUEUE_ENABLED is set")
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
