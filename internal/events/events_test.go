package events

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) log(level, msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("%s: %s %v", level, msg, keysAndValues))
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) { l.log("DEBUG", msg, keysAndValues...) }
func (l *testLogger) Info(msg string, keysAndValues ...any)  { l.log("INFO", msg, keysAndValues...) }
func (l *testLogger) Error(msg string, keysAndValues ...any) { l.log("ERROR", msg, keysAndValues...) }

func newTestBus(t *testing.T) (*Bus, *testLogger) {
	t.Helper()
	logger := &testLogger{}
	b, err := New(logger)
	require.NoError(t, err)
	return b, logger
}

func TestSyncSubscriber(t *testing.T) {
	b, _ := newTestBus(t)

	var got Event
	b.Subscribe(ModelLoaded, func(e Event) {
		got = e
	})

	b.Emit(Event{Name: ModelLoaded, ModelID: "tower"})

	assert.Equal(t, "tower", got.ModelID)
	assert.False(t, got.Timestamp.IsZero())
}

func TestMultipleSubscribers(t *testing.T) {
	b, _ := newTestBus(t)

	var calls atomic.Int64
	for i := 0; i < 3; i++ {
		b.Subscribe(ModelError, func(Event) {
			calls.Add(1)
		})
	}

	b.Emit(Event{Name: ModelError, Err: errors.New("load failed")})
	assert.Equal(t, int64(3), calls.Load())
}

func TestEmitWithoutSubscribers(t *testing.T) {
	b, _ := newTestBus(t)
	assert.False(t, b.HasSubscribers(ModelExported))
	b.Emit(Event{Name: ModelExported})
}

func TestBufferedSubscriber(t *testing.T) {
	b, _ := newTestBus(t)

	var processed atomic.Int64
	b.Subscribe(ModelLoaded, func(Event) {
		processed.Add(1)
	}, Buffered(16))

	for i := 0; i < 5; i++ {
		b.Emit(Event{Name: ModelLoaded, ModelID: fmt.Sprintf("model-%d", i)})
	}

	require.Eventually(t, func() bool {
		return processed.Load() == 5
	}, time.Second, 5*time.Millisecond)
}

func TestBufferedSubscriberDropsWhenFull(t *testing.T) {
	b, logger := newTestBus(t)

	release := make(chan struct{})
	b.Subscribe(ModelLoaded, func(Event) {
		<-release
	}, Buffered(1))

	// One event occupies the worker, one fills the buffer, the rest drop.
	for i := 0; i < 5; i++ {
		b.Emit(Event{Name: ModelLoaded})
	}
	close(release)

	require.Eventually(t, func() bool {
		logger.mu.Lock()
		defer logger.mu.Unlock()
		return len(logger.messages) > 0
	}, time.Second, 5*time.Millisecond)

	logger.mu.Lock()
	defer logger.mu.Unlock()
	assert.Contains(t, logger.messages[0], "queue full")
}

func TestBlockingSubscriberDoesNotDrop(t *testing.T) {
	b, _ := newTestBus(t)

	var processed atomic.Int64
	b.Subscribe(ModelLoaded, func(Event) {
		time.Sleep(time.Millisecond)
		processed.Add(1)
	}, Buffered(1), Blocking())

	for i := 0; i < 10; i++ {
		b.Emit(Event{Name: ModelLoaded})
	}

	require.Eventually(t, func() bool {
		return processed.Load() == 10
	}, 2*time.Second, 5*time.Millisecond)
}

func TestLoggedSubscriber(t *testing.T) {
	b, logger := newTestBus(t)

	b.Subscribe(ModelError, func(Event) {}, Logged())
	b.Emit(Event{Name: ModelError, ModelID: "tower", Err: errors.New("boom")})

	logger.mu.Lock()
	defer logger.mu.Unlock()
	require.NotEmpty(t, logger.messages)
	assert.Contains(t, logger.messages[len(logger.messages)-1], "event carried error")
}
