package pairing

import "math/rand/v2"

// Option applies a configuration option to the Generator.
type Option func(*Generator)

// WithRand sets the random source used for shuffles and partner picks.
func WithRand(rng *rand.Rand) Option {
	return func(g *Generator) {
		if rng != nil {
			g.rng = rng
		}
	}
}

// WithSeed makes the generator deterministic for a given seed.
func WithSeed(seed uint64) Option {
	return func(g *Generator) {
		g.rng = rand.New(rand.NewPCG(seed, seed^pcgStream)) //nolint:gosec // pairing does not need crypto randomness
	}
}
