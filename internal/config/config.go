package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds all runtime configuration loaded from environment variables.
// It is constructed once at startup by Load, validated, and treated as
// immutable for the life of the process.
type Config struct {
	// --- Safety gates (independent toggles; both must be "go" to broadcast) ---
	// DryRun computes and reports decisions without building/forwarding requests.
	DryRun bool
	// LiveArmed allows built requests to reach the execution boundary.
	LiveArmed bool

	// --- Loop cadence & rotation discipline ---
	ScanInterval       time.Duration
	MaxRotationsPerDay int
	CooldownSeconds    int64
	MinHoldSeconds     int64
	// EnterOnly disallows new exposure while stable prices are unstable.
	EnterOnly bool

	// --- Strategy thresholds ---
	DefaultTradeSizeUsd  float64
	RotationDeltaApyBps  int64
	MaxPaybackHours      float64
	MaxDepegDeviationBps int64
	MaxSlippageBps       int64
	AprCliffMinDropBps   int64

	// --- Price feed ---
	PriceFeedBaseURL    string
	PriceTimeoutSeconds int64
	StableSymbols       []string

	// --- Chain & vault ---
	ChainID      int64
	RPCURL       string
	VaultAddress string

	// --- Surfaces ---
	WebPort        string
	StatusToken    string
	PoolsFile      string

	// --- Database ---
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
}

// Load reads configuration from environment variables and validates it.
// Invalid combinations fail here, before any scan loop starts.
func Load() (*Config, error) {
	log.Info().Msg("Loading application configuration from environment variables...")

	cfg := &Config{
		DryRun:               getEnvAsBool("ROTOR_DRY_RUN", true),
		LiveArmed:            getEnvAsBool("ROTOR_LIVE_ARMED", false),
		ScanInterval:         time.Duration(getEnvAsInt64("ROTOR_SCAN_INTERVAL_SECONDS", 300)) * time.Second,
		MaxRotationsPerDay:   int(getEnvAsInt64("ROTOR_MAX_ROTATIONS_PER_DAY", 4)),
		CooldownSeconds:      getEnvAsInt64("ROTOR_COOLDOWN_SECONDS", 1800),
		MinHoldSeconds:       getEnvAsInt64("ROTOR_MIN_HOLD_SECONDS", 21600),
		EnterOnly:            getEnvAsBool("ROTOR_ENTER_ONLY", false),
		DefaultTradeSizeUsd:  getEnvAsFloat64("ROTOR_DEFAULT_TRADE_SIZE_USD", 10000),
		RotationDeltaApyBps:  getEnvAsInt64("ROTOR_ROTATION_DELTA_APY_BPS", 200),
		MaxPaybackHours:      getEnvAsFloat64("ROTOR_MAX_PAYBACK_HOURS", 72),
		MaxDepegDeviationBps: getEnvAsInt64("ROTOR_MAX_DEPEG_DEVIATION_BPS", 100),
		MaxSlippageBps:       getEnvAsInt64("ROTOR_MAX_SLIPPAGE_BPS", 50),
		AprCliffMinDropBps:   getEnvAsInt64("ROTOR_APR_CLIFF_MIN_DROP_BPS", 5000),
		PriceFeedBaseURL:     getEnvWithDefault("PRICE_FEED_BASE_URL", "https://api.coingecko.com/api/v3"),
		PriceTimeoutSeconds:  getEnvAsInt64("PRICE_FEED_TIMEOUT_SECONDS", 8),
		StableSymbols:        splitList(getEnvWithDefault("ROTOR_STABLE_SYMBOLS", "USDC,USDT")),
		ChainID:              getEnvAsInt64("CHAIN_ID", 0),
		RPCURL:               getEnvWithDefault("NODE_RPC", ""),
		VaultAddress:         getEnvWithDefault("VAULT_ADDRESS", ""),
		WebPort:              getEnvWithDefault("WEB_PORT", "8080"),
		StatusToken:          getEnvWithDefault("BOT_STATUS_TOKEN", ""),
		PoolsFile:            getEnvWithDefault("ROTOR_POOLS_FILE", "pools.yaml"),
		DBHost:               getEnvWithDefault("DB_HOST", "localhost"),
		DBPort:               int(getEnvAsInt64("DB_PORT", 5432)),
		DBUser:               getEnvWithDefault("DB_USER", "rotor"),
		DBPassword:           getEnvWithDefault("DB_PASSWORD", ""),
		DBName:               getEnvWithDefault("DB_NAME", "rotor"),
		DBSSLMode:            getEnvWithDefault("DB_SSLMODE", "disable"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Debug().
		Bool("DryRun", cfg.DryRun).
		Bool("LiveArmed", cfg.LiveArmed).
		Dur("ScanInterval", cfg.ScanInterval).
		Str("VaultAddress", cfg.VaultAddress).
		Msg("Configuration loaded successfully.")

	return cfg, nil
}

// Validate rejects invalid or inconsistent settings. These are configuration
// errors: fatal at startup, never at decision time.
func (c *Config) Validate() error {
	if c.ScanInterval <= 0 {
		return errors.New("ROTOR_SCAN_INTERVAL_SECONDS must be positive")
	}
	if c.MaxRotationsPerDay <= 0 {
		return errors.New("ROTOR_MAX_ROTATIONS_PER_DAY must be positive")
	}
	if c.CooldownSeconds < 0 || c.MinHoldSeconds < 0 {
		return errors.New("cooldown and minimum hold seconds cannot be negative")
	}
	if c.DefaultTradeSizeUsd <= 0 {
		return errors.New("ROTOR_DEFAULT_TRADE_SIZE_USD must be positive")
	}
	if c.MaxDepegDeviationBps <= 0 {
		return errors.New("ROTOR_MAX_DEPEG_DEVIATION_BPS must be positive")
	}
	if c.MaxPaybackHours <= 0 {
		return errors.New("ROTOR_MAX_PAYBACK_HOURS must be positive")
	}
	if c.PriceTimeoutSeconds <= 0 {
		return errors.New("PRICE_FEED_TIMEOUT_SECONDS must be positive")
	}
	if len(c.StableSymbols) == 0 {
		return errors.New("ROTOR_STABLE_SYMBOLS must list at least one symbol")
	}
	if c.LiveArmed && !c.DryRun {
		if c.VaultAddress == "" {
			return errors.New("live mode requires VAULT_ADDRESS to be set")
		}
		if c.RPCURL == "" {
			return errors.New("live mode requires NODE_RPC to be set")
		}
	}
	return nil
}

// getEnvWithDefault retrieves a string environment variable with a fallback.
func getEnvWithDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt64 retrieves an environment variable as an int64 with a fallback.
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", valueStr).Msg("Invalid integer environment variable, using default")
		return defaultValue
	}
	return value
}

// getEnvAsFloat64 retrieves an environment variable as a float64 with a fallback.
func getEnvAsFloat64(key string, defaultValue float64) float64 {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", valueStr).Msg("Invalid float environment variable, using default")
		return defaultValue
	}
	return value
}

// getEnvAsBool retrieves an environment variable as a bool with a fallback.
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return defaultValue
	}
	switch strings.ToLower(strings.TrimSpace(valueStr)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		log.Warn().Str("key", key).Str("value", valueStr).Msg("Invalid boolean environment variable, using default")
		return defaultValue
	}
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
