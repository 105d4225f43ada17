package analytics

import (
	"math/rand/v2"
	"sync"
)

const (
	minJitter = 0.8
	maxJitter = 1.2
)

// Jitter scales heuristic growth figures. Factor must return a value in [0.8, 1.2].
type Jitter interface {
	Factor() float64
}

// RandomJitter draws a uniform factor on every call.
type RandomJitter struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomJitter(seed uint64) *RandomJitter {
	return &RandomJitter{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (j *RandomJitter) Factor() float64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return minJitter + j.rng.Float64()*(maxJitter-minJitter)
}

// FixedJitter always returns the same factor, clamped to the allowed range.
type FixedJitter float64

func (j FixedJitter) Factor() float64 {
	return min(maxJitter, max(minJitter, float64(j)))
}
