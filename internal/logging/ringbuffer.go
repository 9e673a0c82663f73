package logging

import (
	"os"
	"sync"
)

// RingBuffer keeps the most recent size bytes written to it.
type RingBuffer struct {
	mu   sync.Mutex
	buf  []byte
	next int  // write position
	full bool // buf has wrapped at least once
}

// NewRingBuffer returns a buffer holding size bytes (4MB if size <= 0).
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = 4 * 1024 * 1024
	}
	return &RingBuffer{buf: make([]byte, size)}
}

// Write never fails; older bytes are overwritten once the buffer is full.
func (rb *RingBuffer) Write(p []byte) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	size := len(rb.buf)
	if len(p) >= size {
		copy(rb.buf, p[len(p)-size:])
		rb.next = 0
		rb.full = true
		return len(p), nil
	}

	n := copy(rb.buf[rb.next:], p)
	if n < len(p) {
		rb.next = copy(rb.buf, p[n:])
		rb.full = true
	} else {
		rb.next += n
		if rb.next == size {
			rb.next = 0
			rb.full = true
		}
	}
	return len(p), nil
}

// Len is the number of bytes currently held.
func (rb *RingBuffer) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.full {
		return len(rb.buf)
	}
	return rb.next
}

// Bytes returns the held bytes oldest first.
func (rb *RingBuffer) Bytes() []byte {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if !rb.full {
		return append([]byte(nil), rb.buf[:rb.next]...)
	}
	out := make([]byte, 0, len(rb.buf))
	out = append(out, rb.buf[rb.next:]...)
	return append(out, rb.buf[:rb.next]...)
}

func (rb *RingBuffer) DumpToFile(path string) error {
	return os.WriteFile(path, rb.Bytes(), 0o600)
}
