package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"xdc-transfer/internal/models"
	"xdc-transfer/internal/validation"
)

// Config holds all configuration for the application
type Config struct {
	LogLevel   string
	LogFormat  string
	MaxRetries int
	RetryDelay time.Duration
	HTTP       HTTPConfig
	Server     ServerConfig
	Wallet     WalletConfig
	Chain      models.ChainInfo
	Transfer   TransferConfig
	Kafka      KafkaConfig
	Database   DatabaseConfig
}

// HTTPConfig holds HTTP client configuration
type HTTPConfig struct {
	Timeout time.Duration
}

// ServerConfig holds the listener for the browser-facing API
type ServerConfig struct {
	ListenAddr      string
	ShutdownTimeout time.Duration
}

// WalletConfig points at the JSON-RPC wallet endpoint that owns the keys
type WalletConfig struct {
	RpcEndpoint  string
	ApiKey       string
	RateLimit    float64
	PollInterval time.Duration
}

// TransferConfig bounds the confirmation wait
type TransferConfig struct {
	ConfirmationTimeout      time.Duration
	ConfirmationPollInterval time.Duration
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Enabled       bool
	BrokerAddress string
	Topic         string
	BatchSize     int
	BatchTimeout  time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// A missing .env is fine; the variables may be set externally.
	_ = godotenv.Load()

	chainID := int64(getEnvAsInt("CHAIN_ID", int(models.XDCApothem.ID)))
	chain, ok := models.LookupChain(chainID)
	if !ok {
		return nil, fmt.Errorf("unsupported CHAIN_ID %d", chainID)
	}
	chain.RpcEndpoint = getEnv("CHAIN_RPC_ENDPOINT", chain.RpcEndpoint)
	chain.ExplorerBaseURL = getEnv("CHAIN_EXPLORER_URL", chain.ExplorerBaseURL)

	config := &Config{
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogFormat:  getEnv("LOG_FORMAT", "console"),
		MaxRetries: getEnvAsInt("MAX_RETRIES", 3),
		RetryDelay: time.Duration(getEnvAsInt("RETRY_DELAY", 1)) * time.Second,
		HTTP: HTTPConfig{
			Timeout: time.Duration(getEnvAsInt("HTTP_TIMEOUT", 30)) * time.Second,
		},
		Server: ServerConfig{
			ListenAddr:      getEnv("LISTEN_ADDR", "127.0.0.1:3000"),
			ShutdownTimeout: time.Duration(getEnvAsInt("SHUTDOWN_TIMEOUT", 10)) * time.Second,
		},
		Wallet: WalletConfig{
			RpcEndpoint:  getEnv("WALLET_RPC_ENDPOINT", "http://127.0.0.1:8550"),
			ApiKey:       getEnv("WALLET_API_KEY", ""),
			RateLimit:    getEnvAsFloat("WALLET_RATE_LIMIT", 10),
			PollInterval: time.Duration(getEnvAsInt("SESSION_POLL_INTERVAL", 4)) * time.Second,
		},
		Chain: chain,
		Transfer: TransferConfig{
			ConfirmationTimeout:      time.Duration(getEnvAsInt("CONFIRMATION_TIMEOUT", 120)) * time.Second,
			ConfirmationPollInterval: time.Duration(getEnvAsInt("CONFIRMATION_POLL_INTERVAL", 2)) * time.Second,
		},
		Kafka: KafkaConfig{
			Enabled:       getEnvAsBool("KAFKA_ENABLED", false),
			BrokerAddress: getEnv("KAFKA_BROKER_ADDRESS", "localhost:9092"),
			Topic:         getEnv("KAFKA_TOPIC", "xdc-transfers"),
			BatchSize:     getEnvAsInt("KAFKA_BATCH_SIZE", 10),
			BatchTimeout:  time.Duration(getEnvAsInt("KAFKA_BATCH_TIMEOUT", 1)) * time.Second,
		},
		Database: DatabaseConfig{
			Enabled:  getEnvAsBool("DB_ENABLED", false),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "xdc_transfer"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the values that would otherwise fail late at dial time
func (c *Config) Validate() error {
	if err := validation.ValidateURL(c.Wallet.RpcEndpoint); err != nil {
		return fmt.Errorf("WALLET_RPC_ENDPOINT: %w", err)
	}
	if err := validation.ValidateURL(c.Chain.RpcEndpoint); err != nil {
		return fmt.Errorf("CHAIN_RPC_ENDPOINT: %w", err)
	}
	if c.Wallet.RateLimit <= 0 {
		return fmt.Errorf("WALLET_RATE_LIMIT must be positive, got %v", c.Wallet.RateLimit)
	}
	if c.Transfer.ConfirmationTimeout <= 0 || c.Transfer.ConfirmationPollInterval <= 0 {
		return fmt.Errorf("confirmation timeout and poll interval must be positive")
	}
	if c.MaxRetries < 1 {
		c.MaxRetries = 1
	}
	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as int or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsFloat gets an environment variable as float64 or returns a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
