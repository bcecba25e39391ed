package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config application configuration structure
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	NATS      NATSConfig      `yaml:"nats"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Relay     RelayConfig     `yaml:"relay"`
	ZK        ZKConfig        `yaml:"zk"`
	Merkle    MerkleConfig    `yaml:"merkle"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Admin     AdminConfig     `yaml:"admin"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig server configuration
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig database configuration
type DatabaseConfig struct {
	DSN    string `yaml:"dsn"`
	Driver string `yaml:"driver"`
}

// NATSConfig message server configuration
type NATSConfig struct {
	URL            string `yaml:"url"`
	Timeout        int    `yaml:"timeout"`
	ReconnectWait  int    `yaml:"reconnect_wait"`
	MaxReconnects  int    `yaml:"max_reconnects"`
	DepositSubject string `yaml:"deposit_subject"`
	Enabled        bool   `yaml:"enabled"`
}

// LedgerConfig ledger node configuration
type LedgerConfig struct {
	RPCEndpoint  string `yaml:"rpc_endpoint"`
	ProgramScope string `yaml:"program_scope"`
	Timeout      int    `yaml:"timeout"`
}

// RelayConfig relayer policy configuration
type RelayConfig struct {
	RelayerAddress  string   `yaml:"relayer_address"`
	FeeBps          uint64   `yaml:"fee_bps"`
	MinAmount       uint64   `yaml:"min_amount"`
	MaxAmount       uint64   `yaml:"max_amount"`
	SupportedAssets []string `yaml:"supported_assets"`
	VerifyProofs    bool     `yaml:"verify_proofs"`
	MaxAttempts     int      `yaml:"max_attempts"`
	BaseDelayMs     int      `yaml:"base_delay_ms"`
	JitterMaxMs     int      `yaml:"jitter_max_ms"`
	BudgetSec       int      `yaml:"budget_sec"`
}

// ZKConfig proof system configuration
type ZKConfig struct {
	VerifyingKeyPath string `yaml:"verifying_key_path"`
	HashVectorPath   string `yaml:"hash_vector_path"`
	ParameterSet     string `yaml:"parameter_set"`
}

// MerkleConfig accumulator configuration
type MerkleConfig struct {
	Depth       int    `yaml:"depth"`
	HistorySize int    `yaml:"history_size"`
	StatePath   string `yaml:"state_path"`
}

// RateLimitConfig request gate configuration
type RateLimitConfig struct {
	PerKeyTokens int  `yaml:"per_key_tokens"`
	GlobalTokens int  `yaml:"global_tokens"`
	PeriodSec    int  `yaml:"period_sec"`
	Enabled      bool `yaml:"enabled"`
}

// AdminConfig admin API access control configuration
type AdminConfig struct {
	JWTSecret    string   `yaml:"jwt_secret"`
	TokenTTLMin  int      `yaml:"token_ttl_min"`
	AdminAPIKeys []string `yaml:"api_keys"`
}

// LogConfig logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AppConfig global configuration instance
var AppConfig *Config

// LoadConfig loads the configuration file, applies defaults and
// environment overrides, and installs the result as AppConfig.
func LoadConfig(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
		if _, err := os.Stat("config.local.yaml"); err == nil {
			configPath = "config.local.yaml"
			log.Printf("🔧 Using local configuration file: config.local.yaml")
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	fmt.Printf("✅ [%s] Loading configuration from: %s\n", time.Now().Format("2006-01-02 15:04:05"), configPath)

	applyDefaults(&config)
	overrideFromEnv(&config)

	if err := validate(&config); err != nil {
		return err
	}

	AppConfig = &config
	return nil
}

func applyDefaults(config *Config) {
	if config.Server.Host == "" {
		config.Server.Host = "0.0.0.0"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.Database.Driver == "" {
		config.Database.Driver = "postgres"
	}
	if config.Ledger.Timeout == 0 {
		config.Ledger.Timeout = 30
	}
	if config.Relay.MaxAttempts == 0 {
		config.Relay.MaxAttempts = 5
	}
	if config.Relay.BaseDelayMs == 0 {
		config.Relay.BaseDelayMs = 500
	}
	if config.Relay.JitterMaxMs == 0 {
		config.Relay.JitterMaxMs = 250
	}
	if config.Relay.BudgetSec == 0 {
		config.Relay.BudgetSec = 60
	}
	if config.Merkle.Depth == 0 {
		config.Merkle.Depth = 20
	}
	if config.Merkle.HistorySize == 0 {
		config.Merkle.HistorySize = 30
	}
	if config.RateLimit.PerKeyTokens == 0 {
		config.RateLimit.PerKeyTokens = 5
	}
	if config.RateLimit.GlobalTokens == 0 {
		config.RateLimit.GlobalTokens = 100
	}
	if config.RateLimit.PeriodSec == 0 {
		config.RateLimit.PeriodSec = 60
	}
	if config.Admin.TokenTTLMin == 0 {
		config.Admin.TokenTTLMin = 60
	}
	if config.NATS.Timeout == 0 {
		config.NATS.Timeout = 10
	}
	if config.NATS.ReconnectWait == 0 {
		config.NATS.ReconnectWait = 2
	}
	if config.NATS.MaxReconnects == 0 {
		config.NATS.MaxReconnects = 60
	}
	if config.NATS.DepositSubject == "" {
		config.NATS.DepositSubject = "pool.deposits"
	}
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
}

// overrideFromEnv applies environment variable overrides
func overrideFromEnv(config *Config) {
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		config.Database.DSN = dsn
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if url := os.Getenv("NATS_URL"); url != "" {
		config.NATS.URL = url
	}
	if rpc := os.Getenv("LEDGER_RPC_ENDPOINT"); rpc != "" {
		config.Ledger.RPCEndpoint = rpc
	}
	if addr := os.Getenv("RELAYER_ADDRESS"); addr != "" {
		config.Relay.RelayerAddress = addr
	}
	if bps := os.Getenv("RELAY_FEE_BPS"); bps != "" {
		if v, err := strconv.ParseUint(bps, 10, 64); err == nil {
			config.Relay.FeeBps = v
		}
	}
	if assets := os.Getenv("RELAY_SUPPORTED_ASSETS"); assets != "" {
		config.Relay.SupportedAssets = strings.Split(assets, ",")
	}
	if secret := os.Getenv("ADMIN_JWT_SECRET"); secret != "" {
		config.Admin.JWTSecret = secret
	}
	if vk := os.Getenv("VERIFYING_KEY_PATH"); vk != "" {
		config.ZK.VerifyingKeyPath = vk
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Log.Level = level
	}
}

func validate(config *Config) error {
	if config.Ledger.RPCEndpoint == "" {
		return fmt.Errorf("ledger.rpc_endpoint is required")
	}
	if config.Relay.RelayerAddress == "" {
		return fmt.Errorf("relay.relayer_address is required")
	}
	if config.Relay.FeeBps > 10000 {
		return fmt.Errorf("relay.fee_bps must not exceed 10000, got %d", config.Relay.FeeBps)
	}
	if config.Relay.VerifyProofs && config.ZK.VerifyingKeyPath == "" {
		return fmt.Errorf("zk.verifying_key_path is required when proof verification is enabled")
	}
	if config.Merkle.Depth < 1 || config.Merkle.Depth > 32 {
		return fmt.Errorf("merkle.depth must be in [1, 32], got %d", config.Merkle.Depth)
	}
	if config.Merkle.HistorySize < 30 {
		return fmt.Errorf("merkle.history_size must be at least 30, got %d", config.Merkle.HistorySize)
	}
	return nil
}

// RetryBudget returns the submission retry wall-clock budget.
func (c *RelayConfig) RetryBudget() time.Duration {
	return time.Duration(c.BudgetSec) * time.Second
}

// BaseDelay returns the first backoff delay.
func (c *RelayConfig) BaseDelay() time.Duration {
	return time.Duration(c.BaseDelayMs) * time.Millisecond
}

// JitterMax returns the backoff jitter bound.
func (c *RelayConfig) JitterMax() time.Duration {
	return time.Duration(c.JitterMaxMs) * time.Millisecond
}
