// Package notify carries fire-and-forget "something changed" signals from
// background workers to the single-threaded front-end loop.
package notify

import (
	"errors"
	"sync"
)

// Kind identifies what changed.
type Kind uint8

const (
	// Log means the commit log grew or was restarted.
	Log Kind = iota + 1
	// Tags means a new tag snapshot is available.
	Tags
	// Filter means the active filter run produced new matches or finished.
	Filter
)

func (k Kind) String() string {
	switch k {
	case Log:
		return "log"
	case Tags:
		return "tags"
	case Filter:
		return "filter"
	default:
		return "unknown"
	}
}

// ErrClosed is returned by Send once the receiving side is gone.
var ErrClosed = errors.New("notify: sink closed")

// Sink receives change signals. Send must not block.
type Sink interface {
	Send(Kind) error
}

// Discard is a Sink that drops every signal.
var Discard Sink = discard{}

type discard struct{}

func (discard) Send(Kind) error { return nil }

// Channel is a coalescing Sink backed by a buffered channel. While a signal of a
// given kind is still waiting to be received, further signals of that kind are
// absorbed, so a fast producer can never fill the channel.
type Channel struct {
	mu      sync.Mutex
	ch      chan Kind
	pending map[Kind]bool
	closed  bool
}

// NewChannel creates a coalescing channel sink.
func NewChannel() *Channel {
	return &Channel{
		// One slot per kind is enough because of coalescing.
		ch:      make(chan Kind, 8),
		pending: make(map[Kind]bool),
	}
}

// Send queues k unless an undelivered k is already queued.
func (c *Channel) Send(k Kind) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.pending[k] {
		return nil
	}
	select {
	case c.ch <- k:
		c.pending[k] = true
	default:
		// Only reachable with more kinds than buffer slots; drop.
	}
	return nil
}

// Recv blocks until a signal arrives. ok is false once the channel is closed
// and drained.
func (c *Channel) Recv() (Kind, bool) {
	k, ok := <-c.ch
	if ok {
		c.mu.Lock()
		delete(c.pending, k)
		c.mu.Unlock()
	}
	return k, ok
}

// Close stops accepting signals. Safe to call multiple times.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
}
