package tracker

import (
	"math/rand/v2"
	"sync"
)

// idGenerator draws collision-resistant random track ids from a
// cryptographically-indifferent PRNG seeded at construction, re-drawing on
// the vanishingly rare hit against an id already in use.
type idGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newIDGenerator(seed1, seed2 uint64) *idGenerator {
	return &idGenerator{rng: rand.New(rand.NewPCG(seed1, seed2))}
}

// next draws a fresh id, re-drawing while inUse reports true.
func (g *idGenerator) next(inUse func(uint64) bool) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	for {
		id := g.rng.Uint64()
		if id != 0 && !inUse(id) {
			return id
		}
	}
}
