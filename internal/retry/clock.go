package retry

import (
	"math/rand"
	"time"
)

// Clock and RNG are injected so the exponential-backoff formula is
// deterministic under test.
type Clock interface {
	Now() float64
}

type RNG interface {
	// Intn returns a uniform integer in [0, n).
	Intn(n int) int
}

type systemClock struct{}

func (systemClock) Now() float64 { return float64(time.Now().UnixNano()) / 1e9 }

// SystemClock is the production Clock, reporting fractional epoch seconds.
var SystemClock Clock = systemClock{}

type mathRandRNG struct {
	r *rand.Rand
}

// NewMathRandRNG returns an RNG seeded from the given source. Production
// callers should seed it from crypto/rand or time; tests use a fixed seed.
func NewMathRandRNG(seed int64) RNG {
	return &mathRandRNG{r: rand.New(rand.NewSource(seed))}
}

func (m *mathRandRNG) Intn(n int) int { return m.r.Intn(n) }
