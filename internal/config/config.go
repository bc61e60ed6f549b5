package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config defines server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	DB        DBConfig        `yaml:"db"`
	Log       LogConfig       `yaml:"log"`
	Transport TransportConfig `yaml:"transport"`
	Auth      AuthConfig      `yaml:"auth"`
	Vesting   VestingConfig   `yaml:"vesting"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	MCP       MCPConfig       `yaml:"mcp"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

type TransportConfig struct {
	Mode string `yaml:"mode"` // http or stdio
}

type AuthConfig struct {
	MaxSkew time.Duration `yaml:"max_skew"`
}

type VestingConfig struct {
	DefaultMonths      uint16 `yaml:"default_months"`
	BeneficiaryDeposit uint64 `yaml:"beneficiary_deposit"`
}

type LedgerConfig struct {
	// NativeAuthority may mint native deposit credits.
	NativeAuthority string `yaml:"native_authority"`
}

type MCPConfig struct {
	// LocalIdentity is the caller for stdio sessions, which carry no headers.
	LocalIdentity string `yaml:"local_identity"`
}

// Load reads configuration from .env files, an optional YAML file and
// environment variables, in increasing precedence.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		DB: DBConfig{
			Path: "vesting.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Transport: TransportConfig{
			Mode: "http",
		},
		Auth: AuthConfig{
			MaxSkew: 5 * time.Minute,
		},
		Vesting: VestingConfig{
			DefaultMonths: 36,
		},
	}

	loadEnv(os.Getenv("VESTING_ENV_PATH"))

	if path := os.Getenv("VESTING_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks values that would otherwise fail later at startup.
func (c Config) Validate() error {
	switch c.Transport.Mode {
	case "http", "stdio":
	default:
		return fmt.Errorf("invalid transport mode %q", c.Transport.Mode)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Vesting.DefaultMonths == 0 {
		return fmt.Errorf("vesting.default_months must be positive")
	}
	if c.Auth.MaxSkew <= 0 {
		return fmt.Errorf("auth.max_skew must be positive")
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if host := os.Getenv("VESTING_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("VESTING_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid VESTING_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if dbPath := os.Getenv("VESTING_DB_PATH"); dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if level := os.Getenv("VESTING_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if logPath := os.Getenv("VESTING_LOG_PATH"); logPath != "" {
		cfg.Log.Path = logPath
	}
	if mode := os.Getenv("VESTING_TRANSPORT_MODE"); mode != "" {
		cfg.Transport.Mode = mode
	}
	if skew := os.Getenv("VESTING_AUTH_MAX_SKEW"); skew != "" {
		d, err := time.ParseDuration(skew)
		if err != nil {
			return fmt.Errorf("invalid VESTING_AUTH_MAX_SKEW: %w", err)
		}
		cfg.Auth.MaxSkew = d
	}
	if months := os.Getenv("VESTING_DEFAULT_MONTHS"); months != "" {
		n, err := strconv.ParseUint(months, 10, 16)
		if err != nil {
			return fmt.Errorf("invalid VESTING_DEFAULT_MONTHS: %w", err)
		}
		cfg.Vesting.DefaultMonths = uint16(n)
	}
	if deposit := os.Getenv("VESTING_BENEFICIARY_DEPOSIT"); deposit != "" {
		n, err := strconv.ParseUint(deposit, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid VESTING_BENEFICIARY_DEPOSIT: %w", err)
		}
		cfg.Vesting.BeneficiaryDeposit = n
	}
	if authority := os.Getenv("VESTING_NATIVE_AUTHORITY"); authority != "" {
		cfg.Ledger.NativeAuthority = authority
	}
	if identity := os.Getenv("VESTING_MCP_LOCAL_IDENTITY"); identity != "" {
		cfg.MCP.LocalIdentity = identity
	}
	return nil
}

// loadEnv loads .env then .env.local from dir; later files win.
func loadEnv(dir string) {
	for _, name := range []string{".env", ".env.local"} {
		_ = godotenv.Overload(filepath.Join(dir, name))
	}
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
