package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ismaiel54/fix-trading-engine/internal/fix"
)

func TestDelaysWithoutJitter(t *testing.T) {
	timing := New(&Config{
		MarketFillDelay: 1 * time.Second,
		LimitFillDelay:  2 * time.Second,
		SecondFillDelay: 3 * time.Second,
		Seed:            1,
	})

	assert.Equal(t, 1*time.Second, timing.FirstFillDelay(fix.OrdTypeMarket))
	assert.Equal(t, 2*time.Second, timing.FirstFillDelay(fix.OrdTypeLimit))
	assert.Equal(t, 3*time.Second, timing.SecondFillDelay())
}

func TestJitterStaysWithinBounds(t *testing.T) {
	base := 1 * time.Second
	timing := New(&Config{
		MarketFillDelay: base,
		LimitFillDelay:  base,
		SecondFillDelay: base,
		JitterPct:       20,
		Seed:            42,
	})

	lo := time.Duration(float64(base) * 0.8)
	hi := time.Duration(float64(base) * 1.2)
	for i := 0; i < 100; i++ {
		d := timing.SecondFillDelay()
		assert.GreaterOrEqual(t, d, lo)
		assert.LessOrEqual(t, d, hi)
	}
}

func TestJitterRepeatableAcrossSeeds(t *testing.T) {
	cfg := &Config{
		MarketFillDelay: 1 * time.Second,
		LimitFillDelay:  1 * time.Second,
		SecondFillDelay: 1 * time.Second,
		JitterPct:       50,
		Seed:            7,
	}

	a, b := New(cfg), New(cfg)
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.SecondFillDelay(), b.SecondFillDelay())
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("SIM_MARKET_FILL_DELAY", "250ms")
	t.Setenv("SIM_JITTER_PCT", "15")
	t.Setenv("SIM_SEED", "99")

	cfg := LoadConfig()
	assert.Equal(t, 250*time.Millisecond, cfg.MarketFillDelay)
	assert.Equal(t, 2*time.Second, cfg.LimitFillDelay)
	assert.Equal(t, 15, cfg.JitterPct)
	assert.Equal(t, int64(99), cfg.Seed)
}
