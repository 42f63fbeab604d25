// Package randutil centralises seeded randomness so dealing, fallback
// landlord selection and AI bids are reproducible under a fixed seed.
package randutil

import rand "math/rand/v2"

const goldenRatio64 = 0x9e3779b97f4a7c15

// New returns a *rand.Rand derived deterministically from seed. rand/v2's
// PCG wants two well-mixed 64-bit values; deriving both here keeps every
// call site reproducible.
func New(seed int64) *rand.Rand {
	u := uint64(seed)
	return rand.New(rand.NewPCG(mix(u), mix(u+goldenRatio64)))
}

func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
