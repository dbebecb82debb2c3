package signer

import (
	"fmt"
	"sync"
	"time"
)

// TonceModulus is the number of distinct counter suffixes. The counter
// cycles 1, 2, ..., 998, 0, 1, ... so at most this many signed requests
// per second receive distinct tonces.
const TonceModulus = 999

// Tonce generates per-request freshness tokens: the Unix second followed
// by a three digit, zero padded counter. It is safe for concurrent use.
type Tonce struct {
	mu  sync.Mutex
	seq int
	now func() time.Time
}

// NewTonce returns a generator backed by the wall clock, counter at zero.
func NewTonce() *Tonce {
	return NewTonceWithClock(time.Now)
}

// NewTonceWithClock returns a generator reading time from now.
func NewTonceWithClock(now func() time.Time) *Tonce {
	return &Tonce{now: now}
}

// Next advances the counter and returns the resulting tonce.
// The advance, the clock read and the formatting happen under one lock.
func (t *Tonce) Next() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.seq < TonceModulus-1 {
		t.seq++
	} else {
		t.seq = 0
	}
	return FormatTonce(t.now().Unix(), t.seq)
}

// Seq returns the last counter value handed out.
func (t *Tonce) Seq() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seq
}

// FormatTonce renders seconds and counter as a tonce string.
func FormatTonce(unixSeconds int64, seq int) string {
	return fmt.Sprintf("%d%03d", unixSeconds, seq)
}
