package sim

import (
	"math/rand"
	"sync"
	"time"

	"github.com/ismaiel54/fix-trading-engine/internal/fix"
)

// Timing produces the fill simulator's delays: a first wait before
// the partial fill (shorter for market orders) and a second wait
// before the full fill, each with optional bounded jitter from a
// seeded source so runs are repeatable.
type Timing struct {
	cfg *Config
	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a timing model from cfg
func New(cfg *Config) *Timing {
	return &Timing{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
}

// FirstFillDelay is the wait before the partial fill
func (t *Timing) FirstFillDelay(ordType fix.OrdType) time.Duration {
	base := t.cfg.LimitFillDelay
	if ordType == fix.OrdTypeMarket {
		base = t.cfg.MarketFillDelay
	}
	return t.jitter(base)
}

// SecondFillDelay is the wait between partial and full fill
func (t *Timing) SecondFillDelay() time.Duration {
	return t.jitter(t.cfg.SecondFillDelay)
}

// jitter shifts d by up to ±JitterPct percent
func (t *Timing) jitter(d time.Duration) time.Duration {
	if t.cfg.JitterPct <= 0 || d <= 0 {
		return d
	}
	t.mu.Lock()
	f := t.rng.Float64()
	t.mu.Unlock()

	span := float64(d) * float64(t.cfg.JitterPct) / 100
	return d + time.Duration((f*2-1)*span)
}
