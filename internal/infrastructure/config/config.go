package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the treasury service.
type Config struct {
	Environment string         `mapstructure:"environment"`
	LogLevel    string         `mapstructure:"log_level"`
	Server      ServerConfig   `mapstructure:"server"`
	Database    DatabaseConfig `mapstructure:"database"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Solana      SolanaConfig   `mapstructure:"solana"`
	Treasury    TreasuryConfig `mapstructure:"treasury"`
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

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SolanaConfig configures the on-chain transaction executor.
type SolanaConfig struct {
	RPCURL         string `mapstructure:"rpc_url"`
	TreasurySecret string `mapstructure:"treasury_secret"` // base58 hot wallet key
	USDCMint       string `mapstructure:"usdc_mint"`
	Commitment     string `mapstructure:"commitment"`
	ConfirmRetries int    `mapstructure:"confirm_retries"`
}

// TreasuryConfig carries the authorization policy knobs.
type TreasuryConfig struct {
	// AutoApproveThresholds maps currency code to the minor-unit amount at or
	// below which a withdrawal bypasses human review.
	AutoApproveThresholds map[string]int64 `mapstructure:"auto_approve_thresholds"`
	// MultiSigThreshold is the minor-unit amount at or above which a payout
	// should go through a multi-sig proposal instead of the single-owner queue.
	MultiSigThreshold int64 `mapstructure:"multisig_threshold"`

	WithdrawalTTL time.Duration `mapstructure:"withdrawal_ttl"`
	ProposalTTL   time.Duration `mapstructure:"proposal_ttl"`

	// SweepSchedule is the cron spec for the scheduled expiry sweep.
	SweepSchedule string `mapstructure:"sweep_schedule"`

	// Admins lists the opaque admin identities allowed to decide withdrawals.
	Admins []string `mapstructure:"admins"`

	// WalletCacheTTL bounds how long immutable wallet definitions are cached.
	WalletCacheTTL time.Duration `mapstructure:"wallet_cache_ttl"`
}

// Load reads configuration from config.yaml and the environment.
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

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)
	viper.SetDefault("server.rate_limit_per_min", 100)
	viper.SetDefault("server.allowed_origins", []string{"*"})

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "treasury_service")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 300)

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("solana.rpc_url", "https://api.mainnet-beta.solana.com")
	viper.SetDefault("solana.commitment", "confirmed")
	viper.SetDefault("solana.confirm_retries", 30)

	// 0.1 SOL auto-approve cutoff, 24h review window, 7 day proposal window
	viper.SetDefault("treasury.auto_approve_thresholds", map[string]int64{
		"SOL":  100_000_000,
		"USDC": 100_000_000,
	})
	viper.SetDefault("treasury.multisig_threshold", int64(1_000_000_000))
	viper.SetDefault("treasury.withdrawal_ttl", "24h")
	viper.SetDefault("treasury.proposal_ttl", "168h")
	viper.SetDefault("treasury.sweep_schedule", "*/5 * * * *")
	viper.SetDefault("treasury.wallet_cache_ttl", "10m")
}

func overrideFromEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		viper.Set("database.url", v)
	}
	if v := os.Getenv("SOLANA_RPC_URL"); v != "" {
		viper.Set("solana.rpc_url", v)
	}
	if v := os.Getenv("TREASURY_SECRET"); v != "" {
		viper.Set("solana.treasury_secret", v)
	}
	if v := os.Getenv("TREASURY_ADMINS"); v != "" {
		viper.Set("treasury.admins", strings.Split(v, ","))
	}
}

func validate(cfg *Config) error {
	if cfg.Treasury.WithdrawalTTL <= 0 {
		return fmt.Errorf("treasury.withdrawal_ttl must be positive")
	}
	if cfg.Treasury.ProposalTTL <= 0 {
		return fmt.Errorf("treasury.proposal_ttl must be positive")
	}
	for currency, threshold := range cfg.Treasury.AutoApproveThresholds {
		if threshold < 0 {
			return fmt.Errorf("treasury.auto_approve_thresholds.%s must not be negative", currency)
		}
	}
	return nil
}
