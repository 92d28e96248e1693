// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment  string
	Server       ServerConfig
	Database     DatabaseConfig
	JWT          JWTConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
	AWS          AWSConfig
	Bridge       BridgeConfig
	Pinning      PinningConfig
	Registration RegistrationConfig
	Verification VerificationConfig
	Payment      PaymentConfig
	Licensing    LicensingConfig
	Frontend     FrontendConfig
}

type FrontendConfig struct {
	BaseURL string
}

type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int
}

type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
}

type JWTConfig struct {
	SecretKey       string
	AccessTokenTTL  int // in hours
	RefreshTokenTTL int // in hours
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers            []string
	PurchaseEventTopic string
	AssetEventTopic    string
}

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	S3Bucket        string
	CloudFrontURL   string
}

// BridgeConfig controls the cross-chain purchase flow. The monitor
// settings are the single source of truth for the polling bound.
type BridgeConfig struct {
	StatusOracleURL        string
	WalletRPCURL           string
	SimulateStatus         bool
	StrictConfirmation     bool
	MonitorIntervalSeconds int
	MonitorMaxAttempts     int
	ProcessingBuffer       int // seconds added to every time estimate
	HighFinalityThreshold  int // finality depth above which the penalty applies
	HighFinalityPenalty    int // seconds
}

type PinningConfig struct {
	BaseURL    string
	APIKey     string
	GatewayURL string
}

type RegistrationConfig struct {
	APIBaseURL  string
	APIKey      string
	SPGContract string
	ChainID     int64
}

type VerificationConfig struct {
	BaseURL  string
	APIKey   string
	Network  string
	CacheTTL int // seconds
}

type PaymentConfig struct {
	StripeSecretKey      string
	StripePublishableKey string
	PlatformFeePercent   float64
}

// LicensingConfig holds the fixed USD price per tier and the static
// USD-to-native conversion used when attaching value to the source
// transaction. Prices are not queried live.
type LicensingConfig struct {
	PriceBasicUSD      float64
	PriceCommercialUSD float64
	PriceExclusiveUSD  float64
	NativeConversion   float64
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "ipvault"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "silent"),
		},
		JWT: JWTConfig{
			SecretKey:       getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
			AccessTokenTTL:  getEnvAsInt("JWT_ACCESS_TTL", 24),   // 24 hours
			RefreshTokenTTL: getEnvAsInt("JWT_REFRESH_TTL", 168), // 7 days
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:            getEnvAsSlice("KAFKA_BROKERS", nil),
			PurchaseEventTopic: getEnv("KAFKA_PURCHASE_TOPIC", "license.purchases"),
			AssetEventTopic:    getEnv("KAFKA_ASSET_TOPIC", "assets.registered"),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			S3Bucket:        getEnv("AWS_S3_BUCKET", "ipvault-assets"),
			CloudFrontURL:   getEnv("AWS_CLOUDFRONT_URL", ""),
		},
		Bridge: BridgeConfig{
			StatusOracleURL:        getEnv("BRIDGE_STATUS_URL", "https://stats-api.dln.trade/api"),
			WalletRPCURL:           getEnv("BRIDGE_WALLET_RPC_URL", "http://localhost:8545"),
			SimulateStatus:         getEnvAsBool("BRIDGE_SIMULATE_STATUS", false),
			StrictConfirmation:     getEnvAsBool("BRIDGE_STRICT_CONFIRMATION", true),
			MonitorIntervalSeconds: getEnvAsInt("BRIDGE_MONITOR_INTERVAL", 5),
			MonitorMaxAttempts:     getEnvAsInt("BRIDGE_MONITOR_ATTEMPTS", 6),
			ProcessingBuffer:       getEnvAsInt("BRIDGE_PROCESSING_BUFFER", 60),
			HighFinalityThreshold:  getEnvAsInt("BRIDGE_HIGH_FINALITY_THRESHOLD", 20),
			HighFinalityPenalty:    getEnvAsInt("BRIDGE_HIGH_FINALITY_PENALTY", 120),
		},
		Pinning: PinningConfig{
			BaseURL:    getEnv("PINNING_BASE_URL", "https://api.pinata.cloud"),
			APIKey:     getEnv("PINNING_API_KEY", ""),
			GatewayURL: getEnv("PINNING_GATEWAY_URL", "https://gateway.pinata.cloud/ipfs"),
		},
		Registration: RegistrationConfig{
			APIBaseURL:  getEnv("REGISTRATION_API_URL", "https://api.storyapis.com"),
			APIKey:      getEnv("REGISTRATION_API_KEY", ""),
			SPGContract: getEnv("REGISTRATION_SPG_CONTRACT", ""),
			ChainID:     getEnvAsInt64("REGISTRATION_CHAIN_ID", 1315),
		},
		Verification: VerificationConfig{
			BaseURL:  getEnv("VERIFICATION_BASE_URL", "https://docs-demo.ip-api-sandbox.yakoa.io"),
			APIKey:   getEnv("VERIFICATION_API_KEY", ""),
			Network:  getEnv("VERIFICATION_NETWORK", "docs-demo"),
			CacheTTL: getEnvAsInt("VERIFICATION_CACHE_TTL", 300),
		},
		Payment: PaymentConfig{
			StripeSecretKey:      getEnv("STRIPE_SECRET_KEY", ""),
			StripePublishableKey: getEnv("STRIPE_PUBLISHABLE_KEY", ""),
			PlatformFeePercent:   getEnvAsFloat("PLATFORM_FEE_PERCENT", 10.0),
		},
		Licensing: LicensingConfig{
			PriceBasicUSD:      getEnvAsFloat("LICENSE_PRICE_BASIC", 5.0),
			PriceCommercialUSD: getEnvAsFloat("LICENSE_PRICE_COMMERCIAL", 10.0),
			PriceExclusiveUSD:  getEnvAsFloat("LICENSE_PRICE_EXCLUSIVE", 50.0),
			NativeConversion:   getEnvAsFloat("LICENSE_NATIVE_CONVERSION", 1.0),
		},
		Frontend: FrontendConfig{
			BaseURL: getEnv("FRONTEND_BASE_URL", "http://localhost:3000"),
		},
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.JWT.SecretKey == "your-secret-key-change-in-production" && c.Environment == "production" {
		return fmt.Errorf("JWT secret key must be changed in production")
	}

	if c.Database.Password == "" && c.Environment == "production" {
		return fmt.Errorf("database password is required in production")
	}

	if c.Bridge.SimulateStatus && c.Environment == "production" {
		return fmt.Errorf("simulated bridge status is not allowed in production")
	}

	if c.Bridge.MonitorIntervalSeconds < 1 || c.Bridge.MonitorMaxAttempts < 1 {
		return fmt.Errorf("bridge monitor interval and attempts must be positive")
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

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
		if boolValue, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
