package executor

import (
	"math/rand"
	"time"
)

// PacingConfig describes the delay inserted between block requests.
type PacingConfig struct {
	BaseDelay       time.Duration
	Jitter          time.Duration
	RandomGenerator *rand.Rand
}

type requestPacer struct {
	baseDelay       time.Duration
	jitter          time.Duration
	randomGenerator *rand.Rand
}

func newRequestPacer(configuration PacingConfig) requestPacer {
	baseDelay := configuration.BaseDelay
	if baseDelay < 0 {
		baseDelay = 0
	}
	randomGenerator := configuration.RandomGenerator
	if randomGenerator == nil {
		randomGenerator = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return requestPacer{baseDelay: baseDelay, jitter: configuration.Jitter, randomGenerator: randomGenerator}
}

// NextWait samples the delay before the next request, uniformly within
// [base-jitter, base+jitter] and never negative.
func (pacer requestPacer) NextWait() time.Duration {
	if pacer.jitter <= 0 {
		return pacer.baseDelay
	}
	offset := (pacer.randomGenerator.Float64()*2 - 1) * float64(pacer.jitter)
	sampled := time.Duration(float64(pacer.baseDelay) + offset)
	if sampled < 0 {
		return 0
	}
	return sampled
}
