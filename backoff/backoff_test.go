package backoff_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simd-personal/Inno-Supps/backoff"
)

func TestStrategies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		strategy backoff.Strategy
		want     []time.Duration // retries 1..n
	}{
		{
			name:     "constant",
			strategy: backoff.Constant(5 * time.Second),
			want:     []time.Duration{5 * time.Second, 5 * time.Second, 5 * time.Second},
		},
		{
			name:     "linear",
			strategy: backoff.Linear(time.Second, 3*time.Second),
			want:     []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second},
		},
		{
			name:     "exponential",
			strategy: backoff.Exponential(time.Second, 10*time.Second),
			want:     []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second},
		},
		{
			name:     "exponential uncapped",
			strategy: backoff.Exponential(time.Second, 0),
			want:     []time.Duration{time.Second, 2 * time.Second, 4 * time.Second},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			for i, want := range tt.want {
				assert.Equal(t, want, tt.strategy.Delay(i+1), "retry %d", i+1)
			}
		})
	}
}

func TestExponentialJitter_WithinBounds(t *testing.T) {
	t.Parallel()

	s := backoff.ExponentialJitter(time.Second, 8*time.Second)
	for retry := 1; retry <= 6; retry++ {
		upper := backoff.Exponential(time.Second, 8*time.Second).Delay(retry)
		for range 50 {
			d := s.Delay(retry)
			assert.GreaterOrEqual(t, d, time.Duration(0))
			assert.LessOrEqual(t, d, upper)
		}
	}
}

func TestNamed(t *testing.T) {
	t.Parallel()

	s, err := backoff.Named(backoff.NameLinear, time.Second, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, s.Delay(2))

	s, err = backoff.Named("", time.Second, time.Minute)
	require.NoError(t, err)
	assert.LessOrEqual(t, s.Delay(1), time.Second)

	_, err = backoff.Named("fibonacci", time.Second, time.Minute)
	assert.Error(t, err)
}

func TestDefaultStrategy_Capped(t *testing.T) {
	t.Parallel()

	s := backoff.DefaultStrategy()
	for retry := 1; retry <= 20; retry++ {
		assert.LessOrEqual(t, s.Delay(retry), 5*time.Minute)
	}
}
