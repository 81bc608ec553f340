package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/bridge-service/bridge_service/internal/domain/entities"
)

// Config holds all configuration for the application.
type Config struct {
	Environment string                 `mapstructure:"environment"`
	LogLevel    string                 `mapstructure:"log_level"`
	Server      ServerConfig           `mapstructure:"server"`
	Database    DatabaseConfig         `mapstructure:"database"`
	Attestation AttestationConfig      `mapstructure:"attestation"`
	Chains      map[string]ChainConfig `mapstructure:"chains"`
	EventBus    EventBusConfig         `mapstructure:"event_bus"`
	Sweeper     SweeperConfig          `mapstructure:"sweeper"`
	Signer      SignerConfig           `mapstructure:"signer"`
	Tracing     TracingConfig          `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port            int      `mapstructure:"port"`
	Host            string   `mapstructure:"host"`
	ReadTimeout     int      `mapstructure:"read_timeout"`
	WriteTimeout    int      `mapstructure:"write_timeout"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	RateLimitPerMin int      `mapstructure:"rate_limit_per_min"`
}

type DatabaseConfig struct {
	URL             string `mapstructure:"url"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

// AttestationConfig configures the Circle Iris attestation client.
type AttestationConfig struct {
	BaseURL              string `mapstructure:"base_url"`
	Environment          string `mapstructure:"environment"` // "sandbox" or "mainnet"
	Timeout              int    `mapstructure:"timeout"`              // per-request timeout, seconds
	PollIntervalMs       int    `mapstructure:"poll_interval_ms"`     // delay between poll attempts
	PollTimeoutMs        int    `mapstructure:"poll_timeout_ms"`      // interactive polling window
	MaxRequestsPerSecond int    `mapstructure:"max_requests_per_second"`
}

func (c AttestationConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c AttestationConfig) PollTimeout() time.Duration {
	return time.Duration(c.PollTimeoutMs) * time.Millisecond
}

// ChainConfig is the static per-chain table: token and contract addresses,
// RPC endpoint and the attestation service's domain identifier.
type ChainConfig struct {
	ChainID            int64  `mapstructure:"chain_id"`
	RPC                string `mapstructure:"rpc"`
	Domain             uint32 `mapstructure:"domain"`
	USDCAddress        string `mapstructure:"usdc_address"`
	TokenMessenger     string `mapstructure:"token_messenger"`
	MessageTransmitter string `mapstructure:"message_transmitter"`
}

type EventBusConfig struct {
	MaxSubscribers        int `mapstructure:"max_subscribers"`
	HealthCheckIntervalMs int `mapstructure:"health_check_interval_ms"`
	SubscriberBuffer      int `mapstructure:"subscriber_buffer"`
}

func (c EventBusConfig) HealthCheckInterval() time.Duration {
	return time.Duration(c.HealthCheckIntervalMs) * time.Millisecond
}

// SweeperConfig configures the background job that resumes transfers stuck
// awaiting attestation.
type SweeperConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Schedule    string `mapstructure:"schedule"`
	BatchLimit  int    `mapstructure:"batch_limit"`
	MaxAgeHours int    `mapstructure:"max_age_hours"`
}

type SignerConfig struct {
	// PrivateKey is the hot key used for burn/mint transactions, hex encoded.
	// The API never accepts raw keys; requests reference the credential name.
	PrivateKey    string `mapstructure:"private_key"`
	CredentialRef string `mapstructure:"credential_ref"`
}

type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	CollectorURL string  `mapstructure:"collector_url"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	Insecure     bool    `mapstructure:"insecure"`
}

// Load loads configuration from config files and environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	overrideFromEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if config.Database.URL == "" {
		config.Database.URL = fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s?sslmode=%s",
			config.Database.User,
			config.Database.Password,
			config.Database.Host,
			config.Database.Port,
			config.Database.Name,
			config.Database.SSLMode,
		)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)
	viper.SetDefault("server.allowed_origins", []string{"*"})
	viper.SetDefault("server.rate_limit_per_min", 100)

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "bridge_service")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 300)

	// Attestation defaults
	viper.SetDefault("attestation.environment", "sandbox")
	viper.SetDefault("attestation.base_url", "")
	viper.SetDefault("attestation.timeout", 30)
	viper.SetDefault("attestation.poll_interval_ms", 5000)
	viper.SetDefault("attestation.poll_timeout_ms", 30000)
	viper.SetDefault("attestation.max_requests_per_second", 35)

	// Event bus defaults
	viper.SetDefault("event_bus.max_subscribers", 100)
	viper.SetDefault("event_bus.health_check_interval_ms", 500)
	viper.SetDefault("event_bus.subscriber_buffer", 16)

	// Sweeper defaults
	viper.SetDefault("sweeper.enabled", true)
	viper.SetDefault("sweeper.schedule", "@every 2m")
	viper.SetDefault("sweeper.batch_limit", 20)
	viper.SetDefault("sweeper.max_age_hours", 24)

	// Signer defaults
	viper.SetDefault("signer.credential_ref", "default")

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.collector_url", "localhost:4317")
	viper.SetDefault("tracing.sample_rate", 1.0)
	viper.SetDefault("tracing.insecure", true)

	// Chain table: CCTP v2 testnets. TokenMessenger and MessageTransmitter
	// are deployed at the same address on every testnet.
	chainDefaults := map[string]map[string]interface{}{
		string(entities.ChainEthereumSepolia): {
			"chain_id":     11155111,
			"rpc":          "https://ethereum-sepolia-rpc.publicnode.com",
			"domain":       0,
			"usdc_address": "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238",
		},
		string(entities.ChainAvalancheFuji): {
			"chain_id":     43113,
			"rpc":          "https://api.avax-test.network/ext/bc/C/rpc",
			"domain":       1,
			"usdc_address": "0x5425890298aed601595a70AB815c96711a31Bc65",
		},
		string(entities.ChainOptimismSepolia): {
			"chain_id":     11155420,
			"rpc":          "https://sepolia.optimism.io",
			"domain":       2,
			"usdc_address": "0x5fd84259d66Cd46123540766Be93DFE6D43130D7",
		},
		string(entities.ChainArbitrumSepolia): {
			"chain_id":     421614,
			"rpc":          "https://sepolia-rollup.arbitrum.io/rpc",
			"domain":       3,
			"usdc_address": "0x75faf114eafb1BDbe2F0316DF893fd58CE46AA4d",
		},
		string(entities.ChainBaseSepolia): {
			"chain_id":     84532,
			"rpc":          "https://sepolia.base.org",
			"domain":       6,
			"usdc_address": "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		},
	}
	for chain, values := range chainDefaults {
		for key, value := range values {
			viper.SetDefault("chains."+chain+"."+key, value)
		}
		viper.SetDefault("chains."+chain+".token_messenger", "0x8FE6B999Dc680CcFDD5Bf7EB0974218be2542DAA")
		viper.SetDefault("chains."+chain+".message_transmitter", "0xE737e5cEBEEBa77EFE34D4aa090756590b1CE275")
	}
}

func overrideFromEnv() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			viper.Set("server.port", p)
		}
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		viper.Set("database.url", url)
	}
	if key := os.Getenv("SIGNER_PRIVATE_KEY"); key != "" {
		viper.Set("signer.private_key", key)
	}
	if url := os.Getenv("ATTESTATION_BASE_URL"); url != "" {
		viper.Set("attestation.base_url", url)
	}
}

// validate checks the configuration at startup. The chain table is checked
// exhaustively: every supported chain must be fully configured, and nothing
// outside the supported set may appear.
func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}

	for name := range cfg.Chains {
		if !entities.Chain(name).IsSupported() {
			return fmt.Errorf("unknown chain in configuration: %s", name)
		}
	}

	for _, chain := range entities.SupportedChains() {
		cc, ok := cfg.Chains[string(chain)]
		if !ok {
			return fmt.Errorf("missing configuration for chain %s", chain)
		}
		if cc.RPC == "" {
			return fmt.Errorf("chain %s: rpc endpoint is required", chain)
		}
		if cc.ChainID == 0 {
			return fmt.Errorf("chain %s: chain_id is required", chain)
		}
		if !isHexAddress(cc.USDCAddress) {
			return fmt.Errorf("chain %s: invalid usdc_address %q", chain, cc.USDCAddress)
		}
		if !isHexAddress(cc.TokenMessenger) {
			return fmt.Errorf("chain %s: invalid token_messenger %q", chain, cc.TokenMessenger)
		}
		if !isHexAddress(cc.MessageTransmitter) {
			return fmt.Errorf("chain %s: invalid message_transmitter %q", chain, cc.MessageTransmitter)
		}
	}

	if cfg.Attestation.PollIntervalMs <= 0 {
		return fmt.Errorf("attestation.poll_interval_ms must be positive")
	}
	if cfg.EventBus.MaxSubscribers <= 0 {
		return fmt.Errorf("event_bus.max_subscribers must be positive")
	}

	return nil
}

// ChainFor returns the configuration for a supported chain.
func (c *Config) ChainFor(chain entities.Chain) (ChainConfig, error) {
	cc, ok := c.Chains[string(chain)]
	if !ok {
		return ChainConfig{}, fmt.Errorf("chain %s is not configured", chain)
	}
	return cc, nil
}

func isHexAddress(s string) bool {
	if len(s) != 42 || !strings.HasPrefix(s, "0x") {
		return false
	}
	for _, r := range s[2:] {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
