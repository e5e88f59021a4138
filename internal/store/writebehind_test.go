// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteBehind_ZeroDelayIsSynchronous(t *testing.T) {
	var writes atomic.Int32
	w := NewWriteBehind(0, func() { writes.Add(1) })

	w.Mark()
	w.Mark()
	assert.Equal(t, int32(2), writes.Load())
	assert.False(t, w.Pending())
}

func TestWriteBehind_CoalescesBurst(t *testing.T) {
	var writes atomic.Int32
	w := NewWriteBehind(50*time.Millisecond, func() { writes.Add(1) })

	for i := 0; i < 100; i++ {
		w.Mark()
	}
	assert.Zero(t, writes.Load(), "nothing is written on the caller's path")
	assert.True(t, w.Pending())

	require.Eventually(t, func() bool { return writes.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), writes.Load())
	assert.False(t, w.Pending())
}

func TestWriteBehind_Flush(t *testing.T) {
	var writes atomic.Int32
	w := NewWriteBehind(time.Hour, func() { writes.Add(1) })

	w.Flush()
	assert.Zero(t, writes.Load(), "flush without changes writes nothing")

	w.Mark()
	w.Flush()
	assert.Equal(t, int32(1), writes.Load())
	assert.False(t, w.Pending())

	w.Mark()
	assert.True(t, w.Pending(), "marks after a flush schedule a new write")
	w.Flush()
	assert.Equal(t, int32(2), writes.Load())
}
