// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	sq, err := OpenSQLite(filepath.Join(dir, "db", "test.db"))
	require.NoError(t, err)
	fl, err := OpenFile(filepath.Join(dir, "files"))
	require.NoError(t, err)

	stores := map[string]Store{
		BackendMemory: NewMemory(),
		BackendSQLite: sq,
		BackendFile:   fl,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func TestStore_GetPutDelete(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(ctx, "missing")
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Put(ctx, "cache.entries", []byte(`{"a":1}`)))
			got, err := s.Get(ctx, "cache.entries")
			require.NoError(t, err)
			assert.Equal(t, `{"a":1}`, string(got))

			require.NoError(t, s.Put(ctx, "cache.entries", []byte(`{}`)))
			got, err = s.Get(ctx, "cache.entries")
			require.NoError(t, err)
			assert.Equal(t, `{}`, string(got))

			require.NoError(t, s.Delete(ctx, "cache.entries"))
			require.NoError(t, s.Delete(ctx, "cache.entries"))
			_, err = s.Get(ctx, "cache.entries")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_ListByPrefix(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			keys := []string{
				"usage.archive.2026-01-02T10:00:00Z",
				"usage.archive.2026-01-01T10:00:00Z",
				"usage.history",
				"cache.entries",
			}
			for _, k := range keys {
				require.NoError(t, s.Put(ctx, k, []byte("[]")))
			}

			got, err := s.List(ctx, "usage.archive.")
			require.NoError(t, err)
			assert.Equal(t, []string{
				"usage.archive.2026-01-01T10:00:00Z",
				"usage.archive.2026-01-02T10:00:00Z",
			}, got)

			all, err := s.List(ctx, "")
			require.NoError(t, err)
			assert.Len(t, all, 4)
		})
	}
}

func TestStore_LargeValueRoundTrip(t *testing.T) {
	ctx := context.Background()
	value := []byte(strings.Repeat(`{"key":"abc","value":"explanation text"},`, 5000))
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Put(ctx, "big", value))
			got, err := s.Get(ctx, "big")
			require.NoError(t, err)
			assert.Equal(t, value, got)
		})
	}
}

func TestStore_ClosedMemory(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Close())
	_, err := m.Get(context.Background(), "x")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSQLite_Persists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kv.db")

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "usage.history", []byte("[1]")))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(ctx, "usage.history")
	require.NoError(t, err)
	assert.Equal(t, "[1]", string(got))
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	for _, backend := range []string{"", BackendSQLite, BackendFile, BackendMemory} {
		s, err := Open(backend, dir)
		require.NoError(t, err, backend)
		require.NoError(t, s.Close())
	}
	_, err := Open("redis", dir)
	assert.Error(t, err)
}
