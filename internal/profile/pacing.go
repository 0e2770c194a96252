package profile

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"time"
)

// Algorithm selects how the wait between two requests to a host is drawn.
type Algorithm string

const (
	// Equispaced waits exactly the average every time.
	Equispaced Algorithm = "EQUISPACED"
	// ExponentialRandom draws from an exponential distribution with the given mean.
	ExponentialRandom Algorithm = "EXPONENTIAL_RND"
	// ExponentialRandomMin is ExponentialRandom but never below the minimum.
	ExponentialRandomMin Algorithm = "EXPONENTIAL_RND_MIN"
)

// Default pacing, the same for every host without its own settings.
const (
	DefaultAlgorithm   = ExponentialRandomMin
	DefaultAverageWait = 25 * time.Second
	DefaultMinimumWait = 20 * time.Second
)

var algorithms = []Algorithm{Equispaced, ExponentialRandom, ExponentialRandomMin}

// ParseAlgorithm accepts an algorithm name in any case, with or without an
// "ACCESS_" prefix.
func ParseAlgorithm(s string) (Algorithm, error) {
	name := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "ACCESS_")
	for _, a := range algorithms {
		if string(a) == name {
			return a, nil
		}
	}
	return "", &OptionsError{Option: "algorithm", Value: s, Accepted: acceptedAlgorithms()}
}

func acceptedAlgorithms() []string {
	accepted := make([]string, len(algorithms))
	for i, a := range algorithms {
		accepted[i] = string(a)
	}
	return accepted
}

// Pacing is a host's access pattern.
type Pacing struct {
	Algorithm Algorithm
	Average   time.Duration
	// Minimum is only used by ExponentialRandomMin.
	Minimum time.Duration
}

// DefaultPacing returns the pacing used for hosts without their own settings.
func DefaultPacing() Pacing {
	return Pacing{Algorithm: DefaultAlgorithm, Average: DefaultAverageWait, Minimum: DefaultMinimumWait}
}

// Validate checks the algorithm and the wait times. The algorithm must be
// one of the constants; use ParseAlgorithm to convert user input first.
func (p Pacing) Validate() error {
	if !slices.Contains(algorithms, p.Algorithm) {
		return &OptionsError{Option: "algorithm", Value: string(p.Algorithm), Accepted: acceptedAlgorithms()}
	}
	if p.Average <= 0 {
		return fmt.Errorf("%w: average must be positive, got %v", ErrInvalidWait, p.Average)
	}
	if p.Minimum < 0 {
		return fmt.Errorf("%w: minimum must not be negative, got %v", ErrInvalidWait, p.Minimum)
	}
	return nil
}

// draw returns the next wait. rng must not be shared without locking.
func (p Pacing) draw(rng *rand.Rand) time.Duration {
	switch p.Algorithm {
	case ExponentialRandom:
		return expovariate(rng, p.Average)
	case ExponentialRandomMin:
		return max(p.Minimum, expovariate(rng, p.Average))
	default:
		return p.Average
	}
}

func expovariate(rng *rand.Rand, mean time.Duration) time.Duration {
	return time.Duration(rng.ExpFloat64() * float64(mean))
}
