package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig("fix-server")

	assert.Equal(t, "fix-server", cfg.ServiceName)
	assert.Equal(t, 9878, cfg.FIXPort)
	assert.Equal(t, "FIX.4.4", cfg.BeginString)
	assert.Equal(t, "SERVER_EXCHANGE", cfg.SenderCompID)
	assert.Equal(t, "CLIENT_TRADER", cfg.TargetCompID)
	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval)
	assert.Empty(t, cfg.DropCopyBrokers)
}

func TestLoadConfigSwapsCompIDsForClient(t *testing.T) {
	cfg := LoadConfig("fix-client")

	assert.Equal(t, "CLIENT_TRADER", cfg.SenderCompID)
	assert.Equal(t, "SERVER_EXCHANGE", cfg.TargetCompID)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("FIX_PORT", "19878")
	t.Setenv("FIX_HOST", "fix.example.test")
	t.Setenv("FIX_HEARTBEAT_INTERVAL", "5s")
	t.Setenv("FIX_SENDER_COMP_ID", "VENUE_2")

	cfg := LoadConfig("fix-server")
	assert.Equal(t, 19878, cfg.FIXPort)
	assert.Equal(t, "VENUE_2", cfg.SenderCompID)
	assert.Equal(t, 5*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, ":19878", cfg.FIXAddr())
	assert.Equal(t, "fix.example.test:19878", cfg.FIXDialAddr())
}
