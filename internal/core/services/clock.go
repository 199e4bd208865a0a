package services

import "time"

// Clock abstracts wall time so sessions can be driven by tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock {
	return systemClock{}
}

// Random is the subset of *math/rand.Rand used for sampling and bonus rolls.
type Random interface {
	Intn(n int) int
	Shuffle(n int, swap func(i, j int))
}
