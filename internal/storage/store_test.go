// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// backends returns every store the test environment can provide. Redis is
// only exercised when STREAMCHAT_TEST_REDIS_ADDR points at a server.
func backends(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	file, err := NewFileStore(filepath.Join(dir, "state.json"))
	require.NoError(t, err)

	sqlite, err := OpenSQLite(filepath.Join(dir, "state.db"))
	require.NoError(t, err)

	stores := map[string]Store{
		"memory": NewMemoryStore(),
		"file":   file,
		"sqlite": sqlite,
	}

	if addr := os.Getenv("STREAMCHAT_TEST_REDIS_ADDR"); addr != "" {
		r, err := NewRedisStore(context.Background(), RedisOptions{Addr: addr, Prefix: "streamchat-test:" + t.Name() + ":"})
		require.NoError(t, err)
		stores["redis"] = r
	}

	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func TestStore_Contract(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := s.Get(ctx, "missing")
			require.NoError(t, err)
			require.False(t, ok)

			require.NoError(t, s.Set(ctx, "k", "v1"))
			v, ok, err := s.Get(ctx, "k")
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, "v1", v)

			require.NoError(t, s.Set(ctx, "k", "v2"))
			v, _, _ = s.Get(ctx, "k")
			require.Equal(t, "v2", v)

			// Empty values are stored, not treated as absent
			require.NoError(t, s.Set(ctx, "empty", ""))
			v, ok, err = s.Get(ctx, "empty")
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, "", v)

			require.NoError(t, s.Delete(ctx, "k"))
			_, ok, _ = s.Get(ctx, "k")
			require.False(t, ok)

			require.NoError(t, s.Delete(ctx, "never-set"))
		})
	}
}

func TestFileStore_Persists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	s, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "pass", "secret"))

	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	v, ok, err := reopened.Get(ctx, "pass")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "secret", v)

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		require.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}
}

func TestFileStore_CorruptFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	s, err := NewFileStore(path)
	require.NoError(t, err)
	_, ok, err := s.Get(context.Background(), "messageList")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSQLiteStore_Persists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "messageList", `[{"role":"user","content":"hi"}]`))
	require.NoError(t, s.Close())

	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()

	v, ok, err := reopened.Get(ctx, "messageList")
	require.NoError(t, err)
	require.True(t, ok)
	require.Contains(t, v, `"hi"`)
}

func TestOpen_Backends(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(ctx, Options{Dir: dir})
	require.NoError(t, err)
	require.IsType(t, &FileStore{}, s)
	require.Equal(t, filepath.Join(dir, "state.json"), s.(*FileStore).Path())
	s.Close()

	s, err = Open(ctx, Options{Backend: "SQLite", Dir: dir})
	require.NoError(t, err)
	require.IsType(t, &SQLiteStore{}, s)
	s.Close()

	s, err = Open(ctx, Options{Backend: "memory"})
	require.NoError(t, err)
	require.IsType(t, &MemoryStore{}, s)

	_, err = Open(ctx, Options{Backend: "etcd"})
	require.True(t, errors.Is(err, ErrUnknownBackend))
}

func TestRedisStore_Unreachable(t *testing.T) {
	// Port 1 is never a redis server
	_, err := NewRedisStore(context.Background(), RedisOptions{Addr: "127.0.0.1:1"})
	require.Error(t, err)
}
