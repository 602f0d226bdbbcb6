// Package backoff computes the delay before a failed job is re-delivered.
// Every strategy is stateless and safe for concurrent use.
package backoff

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before retry n (1-indexed: retry 1 follows
// the first failed execution).
type Strategy interface {
	Delay(retry int) time.Duration
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(retry int) time.Duration

// Delay calls f.
func (f StrategyFunc) Delay(retry int) time.Duration { return f(retry) }

// Strategy names accepted by Named.
const (
	NameConstant          = "constant"
	NameLinear            = "linear"
	NameExponential       = "exponential"
	NameExponentialJitter = "exponential_jitter"
)

// Constant waits interval before every retry.
func Constant(interval time.Duration) Strategy {
	return StrategyFunc(func(int) time.Duration { return interval })
}

// Linear waits initial*retry, capped at maxDelay.
func Linear(initial, maxDelay time.Duration) Strategy {
	return StrategyFunc(func(retry int) time.Duration {
		return capAt(float64(initial)*float64(retry), maxDelay)
	})
}

// Exponential waits initial*2^(retry-1), capped at maxDelay.
func Exponential(initial, maxDelay time.Duration) Strategy {
	return StrategyFunc(func(retry int) time.Duration {
		return capAt(float64(initial)*math.Pow(2, float64(retry-1)), maxDelay)
	})
}

// ExponentialJitter draws uniformly from [0, Exponential(initial, maxDelay)]
// so a burst of failures does not retry in lockstep.
func ExponentialJitter(initial, maxDelay time.Duration) Strategy {
	exp := Exponential(initial, maxDelay)
	return StrategyFunc(func(retry int) time.Duration {
		return time.Duration(rand.Float64() * float64(exp.Delay(retry))) //nolint:gosec // jitter, not crypto
	})
}

// Named builds a strategy from its configured name.
func Named(name string, initial, maxDelay time.Duration) (Strategy, error) {
	switch name {
	case NameConstant:
		return Constant(initial), nil
	case NameLinear:
		return Linear(initial, maxDelay), nil
	case NameExponential:
		return Exponential(initial, maxDelay), nil
	case NameExponentialJitter, "":
		return ExponentialJitter(initial, maxDelay), nil
	default:
		return nil, fmt.Errorf("backoff: unknown strategy %q", name)
	}
}

// DefaultStrategy is exponential with full jitter from 10s up to 5m.
func DefaultStrategy() Strategy {
	return ExponentialJitter(10*time.Second, 5*time.Minute)
}

func capAt(d float64, maxDelay time.Duration) time.Duration {
	if maxDelay > 0 && d > float64(maxDelay) {
		return maxDelay
	}
	return time.Duration(d)
}
