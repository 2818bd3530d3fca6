package resilience

import (
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerConfig controls when a service's circuit opens.
type BreakerConfig struct {
	// Timeout is how long the circuit stays open before a probe request.
	Timeout time.Duration
	// MinRequests is the number of requests observed before the ratio applies.
	MinRequests uint32
	// FailureRatio trips the circuit once reached.
	FailureRatio float64
}

// NewBreaker builds a circuit breaker for the named service. Permanent errors
// count as successes so that a bad request cannot open the circuit.
func NewBreaker(name string, cfg BreakerConfig, logger *slog.Logger) *gobreaker.CircuitBreaker {
	if logger == nil {
		logger = slog.Default()
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				"service", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || IsPermanent(err)
		},
	})
}
