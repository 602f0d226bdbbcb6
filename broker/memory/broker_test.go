package memory_test

import (
	"testing"

	"github.com/simd-personal/Inno-Supps/broker"
	"github.com/simd-personal/Inno-Supps/broker/brokertest"
	"github.com/simd-personal/Inno-Supps/broker/memory"
)

func TestBroker(t *testing.T) {
	brokertest.Run(t, func(_ *testing.T, clock *brokertest.Clock) broker.Broker {
		return memory.New(memory.WithClock(clock.Now))
	})
}
