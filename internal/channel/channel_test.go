package channel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferedSendReceive(t *testing.T) {
	ch := New[int](2)
	defer ch.Close()

	require.NoError(t, ch.Send(context.Background(), 1))
	require.NoError(t, ch.Send(context.Background(), 2))
	assert.Equal(t, 2, ch.Len())

	assert.Equal(t, 1, <-ch.Receive())
	assert.Equal(t, 2, <-ch.Receive())
}

func TestSendCanceledContext(t *testing.T) {
	ch := NewBuffered[string](1)
	defer ch.Close()
	require.NoError(t, ch.Send(context.Background(), "fills the buffer"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := ch.Send(ctx, "blocked")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, ch.Len())
}

func TestUnbufferedHandoff(t *testing.T) {
	ch := New[int](0)
	defer ch.Close()
	assert.Equal(t, 0, ch.Len())

	done := make(chan int)
	go func() {
		done <- <-ch.Receive()
	}()
	require.NoError(t, ch.Send(context.Background(), 7))
	assert.Equal(t, 7, <-done)
}
