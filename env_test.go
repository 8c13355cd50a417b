package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEnv(t *testing.T) {
	t.Setenv("PQ_TEST_INT", "7")
	t.Setenv("PQ_TEST_BAD_INT", "seven")
	t.Setenv("PQ_TEST_BOOL", "true")
	t.Setenv("PQ_TEST_DURATION", "150ms")

	require.Equal(t, "default", StringEnv("PQ_TEST_MISSING", "default"))
	require.Equal(t, 7, IntEnv("PQ_TEST_INT", 1))
	require.Equal(t, 1, IntEnv("PQ_TEST_BAD_INT", 1))
	require.True(t, BoolEnv("PQ_TEST_BOOL", false))
	require.Equal(t, 150*time.Millisecond, DurationEnv("PQ_TEST_DURATION", time.Second))
	require.Equal(t, time.Second, DurationEnv("PQ_TEST_MISSING", time.Second))
}

func TestLoadEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.Nil(t, os.WriteFile(path, []byte("PQ_TEST_FROM_FILE=file\nPQ_TEST_PRESET=file\n"), 0644))
	t.Setenv("PQ_TEST_PRESET", "env")
	t.Cleanup(func() { os.Unsetenv("PQ_TEST_FROM_FILE") })

	require.Nil(t, LoadEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	require.Equal(t, "file", StringEnv("PQ_TEST_FROM_FILE", ""))
	require.Equal(t, "env", StringEnv("PQ_TEST_PRESET", ""))
}
