// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"sync"
	"time"
)

// WriteBehind coalesces snapshot writes. Mark schedules write to run once,
// delay after the first unwritten change; changes made before it runs ride
// along. A zero delay makes Mark write synchronously.
//
// write must always save the latest state, so running it late or twice is
// harmless.
type WriteBehind struct {
	delay time.Duration
	write func()

	mu      sync.Mutex
	timer   *time.Timer
	pending bool

	writeMu sync.Mutex // serializes write calls
}

// NewWriteBehind returns a WriteBehind that calls write.
func NewWriteBehind(delay time.Duration, write func()) *WriteBehind {
	return &WriteBehind{delay: delay, write: write}
}

// Mark records that state changed.
func (w *WriteBehind) Mark() {
	if w.delay <= 0 {
		w.writeMu.Lock()
		defer w.writeMu.Unlock()
		w.write()
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending {
		return
	}
	w.pending = true
	w.timer = time.AfterFunc(w.delay, w.run)
}

// Flush performs a pending write now and waits for any write in progress.
func (w *WriteBehind) Flush() {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	w.run()
}

// Pending reports whether a change is waiting to be written.
func (w *WriteBehind) Pending() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending
}

func (w *WriteBehind) run() {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	w.mu.Lock()
	pending := w.pending
	w.pending = false
	w.mu.Unlock()

	if pending {
		w.write()
	}
}
