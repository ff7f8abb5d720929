package polkadot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchWithDeadlineReturnsValue(t *testing.T) {
	got, err := fetchWithDeadline(context.Background(), time.Second, func() (string, error) {
		return "0x01", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "0x01", got)
}

func TestFetchWithDeadlineAbandonsHungQuery(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	start := time.Now()
	_, err := fetchWithDeadline(context.Background(), 50*time.Millisecond, func() (string, error) {
		<-block
		return "", nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestFetchWithDeadlineHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	block := make(chan struct{})
	defer close(block)

	_, err := fetchWithDeadline(ctx, time.Minute, func() (string, error) {
		<-block
		return "", nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
