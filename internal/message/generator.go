// Package message selects motivational reminder texts tiered by today's
// progress toward the daily hydration goal.
package message

import (
	"math/rand"
	"sync"
)

// Tier buckets the progress ratio.
type Tier string

const (
	TierLow       Tier = "low"       // < 0.25
	TierMedium    Tier = "medium"    // [0.25, 0.75)
	TierHigh      Tier = "high"      // [0.75, 1.0)
	TierCompleted Tier = "completed" // >= 1.0
)

// pools holds the fixed candidate messages per tier.
var pools = map[Tier][]string{
	TierLow: {
		"Time for a glass of water! Your body will thank you.",
		"Hydration check: you're just getting started today. Drink up!",
		"A quick sip now keeps the afternoon slump away.",
		"Your water bottle misses you. Go say hello.",
	},
	TierMedium: {
		"Nice pace! Another glass keeps you on track.",
		"Halfway territory. Keep the water flowing.",
		"You're doing well today. Top up your glass!",
		"Steady progress. A drink now keeps the streak going.",
	},
	TierHigh: {
		"Almost there! One or two more glasses to reach your goal.",
		"So close to your daily goal. Finish strong!",
		"Great work today. The finish line is one glass away.",
	},
	TierCompleted: {
		"Goal reached! Sip as you please, champion.",
		"Daily goal complete. Excellent hydration today!",
		"You did it! Anything more is a bonus round.",
	},
}

// TierFor maps a progress ratio to its message tier. Bounds are inclusive at
// the lower end; ratios above 1.0 still report completed.
func TierFor(ratio float64) Tier {
	switch {
	case ratio < 0.25:
		return TierLow
	case ratio < 0.75:
		return TierMedium
	case ratio < 1.0:
		return TierHigh
	default:
		return TierCompleted
	}
}

// Generator picks a message uniformly at random within the tier for a given
// progress ratio. The random source is injected so tests can substitute a
// deterministic one.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator creates a generator backed by the given random source.
func NewGenerator(src rand.Source) *Generator {
	return &Generator{rng: rand.New(src)}
}

// Generate returns a message for the given progress ratio. Always non-empty
// for any finite non-negative ratio.
func (g *Generator) Generate(ratio float64) string {
	pool := pools[TierFor(ratio)]

	g.mu.Lock()
	idx := g.rng.Intn(len(pool))
	g.mu.Unlock()

	return pool[idx]
}

// Pool returns the candidate messages for a tier.
func Pool(tier Tier) []string {
	return pools[tier]
}
