package httpapi

import (
	"math/rand"
	"sync"
	"time"
)

// Simulator synthesizes plausible household wattage when no vendor cloud
// is wired up: a morning spike (kettle, toaster), a steady evening load,
// occasional heavy appliances, and a trickle the rest of the day.
type Simulator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulator creates a simulator seeded from the clock.
func NewSimulator() *Simulator {
	return &Simulator{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Watts returns a simulated instantaneous draw for the given time of day.
func (s *Simulator) Watts(now time.Time) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var base float64
	hour := now.Hour()
	switch {
	case hour >= 7 && hour <= 9:
		base = 1200
	case hour >= 17 && hour <= 19:
		base = 300
	case s.rng.Float64() < 0.20:
		base = 800
	default:
		base = 5 + s.rng.Float64()*10
	}

	watts := base + (s.rng.Float64()*50 - 25)
	if watts < 0 {
		watts = 0
	}
	return watts
}
