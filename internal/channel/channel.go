// Package channel provides generic channel abstractions for decoupled
// communication between loaders, workers and consumers. Sends are
// context-aware so producers stop cleanly when a load is canceled.
package channel

import "context"

// Receiver provides read access to a channel.
type Receiver[T any] interface {
	Receive() <-chan T
	Len() int
}

// Sender provides write access to a channel.
type Sender[T any] interface {
	// Send delivers a value, or returns the context error if the context
	// ends first.
	Send(ctx context.Context, v T) error
}

// Channel combines read and write access.
type Channel[T any] interface {
	Receiver[T]
	Sender[T]
	Close()
}

// New creates a channel. A size of zero or less yields an unbuffered
// channel.
func New[T any](size int) Channel[T] {
	if size <= 0 {
		return NewUnbuffered[T]()
	}
	return NewBuffered[T](size)
}
