package kafka

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConsumerRequiresBrokers(t *testing.T) {
	_, err := NewConsumer()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "brokers are required")
}

func TestPartitionLockStable(t *testing.T) {
	c, err := NewConsumer(WithConsumerBrokers([]string{"localhost:9092"}))
	require.NoError(t, err)

	a := c.partitionLock("signals", 0)
	b := c.partitionLock("signals", 0)
	assert.Same(t, a, b)
	assert.NotSame(t, a, c.partitionLock("signals", 1))
	assert.NotSame(t, a, c.partitionLock("signals.dlq", 0))
}

func TestPartitionLockConcurrent(t *testing.T) {
	c, err := NewConsumer(
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerWorkers(8),
	)
	require.NoError(t, err)

	var wg sync.WaitGroup
	locks := make([]*sync.Mutex, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			locks[i] = c.partitionLock("signals", i%8)
		}(i)
	}
	wg.Wait()

	for i, mu := range locks {
		require.NotNil(t, mu)
		assert.Same(t, c.partitionLock("signals", i%8), mu)
	}
}
