package sim

import (
	"os"
	"strconv"
	"time"
)

// Config holds fill-simulation timing configuration
type Config struct {
	// Delay before the first (partial) fill, per order type. Market
	// orders fill on the shorter schedule.
	MarketFillDelay time.Duration
	LimitFillDelay  time.Duration

	// Delay between the partial fill and the full fill
	SecondFillDelay time.Duration

	// Jitter applied to every delay, as a percentage of its base
	JitterPct int

	// Seed for the jitter source; a fixed seed makes runs repeatable
	Seed int64
}

// LoadConfig loads fill-simulation configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		MarketFillDelay: getEnvAsDuration("SIM_MARKET_FILL_DELAY", 1*time.Second),
		LimitFillDelay:  getEnvAsDuration("SIM_LIMIT_FILL_DELAY", 2*time.Second),
		SecondFillDelay: getEnvAsDuration("SIM_SECOND_FILL_DELAY", 2*time.Second),
		JitterPct:       getEnvAsInt("SIM_JITTER_PCT", 0),
		Seed:            getEnvAsInt64("SIM_SEED", 1),
	}
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
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
