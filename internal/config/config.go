package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds configuration for the FIX server and client binaries
type Config struct {
	// Service name
	ServiceName string

	// FIX listener port (server) / dial port (client)
	FIXPort int

	// Host to dial (client only)
	FIXHost string

	// HTTP port for health and metrics
	HTTPPort int

	// gRPC port for the health service
	GRPCPort int

	// Log level: debug, info, warn, error
	LogLevel string

	// FIX begin string, single fixed dialect
	BeginString string

	// Session identity. The server may leave these empty and adopt
	// the counterparty ids from the first message it receives.
	SenderCompID string
	TargetCompID string

	// Heartbeat interval for logged-on sessions
	HeartbeatInterval time.Duration

	// Kafka brokers for the drop-copy feed (comma-separated, empty disables)
	DropCopyBrokers string

	// Drop-copy topic
	DropCopyTopic string
}

// LoadConfig loads configuration from environment variables with defaults
func LoadConfig(serviceName string) *Config {
	defaultSender := "SERVER_EXCHANGE"
	defaultTarget := "CLIENT_TRADER"
	if serviceName == "fix-client" {
		defaultSender, defaultTarget = defaultTarget, defaultSender
	}

	cfg := &Config{
		ServiceName:       serviceName,
		FIXPort:           getEnvAsInt("FIX_PORT", 9878),
		FIXHost:           getEnvAsString("FIX_HOST", "127.0.0.1"),
		HTTPPort:          getEnvAsInt("PORT_HTTP", 8080),
		GRPCPort:          getEnvAsInt("PORT_GRPC", 50051),
		LogLevel:          getEnvAsString("LOG_LEVEL", "info"),
		BeginString:       getEnvAsString("FIX_BEGIN_STRING", "FIX.4.4"),
		SenderCompID:      getEnvAsString("FIX_SENDER_COMP_ID", defaultSender),
		TargetCompID:      getEnvAsString("FIX_TARGET_COMP_ID", defaultTarget),
		HeartbeatInterval: getEnvAsDuration("FIX_HEARTBEAT_INTERVAL", 30*time.Second),
		DropCopyBrokers:   getEnvAsString("DROPCOPY_BROKERS", ""),
		DropCopyTopic:     getEnvAsString("DROPCOPY_TOPIC", "executions.dropcopy"),
	}

	return cfg
}

// FIXAddr returns the FIX listener address
func (c *Config) FIXAddr() string {
	return fmt.Sprintf(":%d", c.FIXPort)
}

// FIXDialAddr returns the address the client connects to
func (c *Config) FIXDialAddr() string {
	return fmt.Sprintf("%s:%d", c.FIXHost, c.FIXPort)
}

// HTTPAddr returns the HTTP server address
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// GRPCAddr returns the gRPC server address
func (c *Config) GRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}

func getEnvAsString(key, defaultValue string) string {
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
