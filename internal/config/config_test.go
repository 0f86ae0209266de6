package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains: it changes
// the working directory and restores the previous one when the test ends.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	c, err := Load(newFlags(t))
	require.NoError(t, err)

	require.Equal(t, "8080", c.Port)
	require.Equal(t, 5*time.Second, c.RoundDuration)
	require.Equal(t, 600*time.Second, c.RoomTTL)
	require.Equal(t, 6, c.RoomIDLength)
	require.Equal(t, "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789", c.RoomIDAlphabet)
	require.Equal(t, 5, c.RoomIDAttempts)
	require.Equal(t, 12, c.SessionIDLength)
	require.True(t, c.SerializeRooms)
	require.Equal(t, "redis", c.StoreBackend)
	require.Equal(t, "redis", c.Broadcast)
	require.False(t, c.LocalBroadcastOnSharedStore())
	require.Equal(t, DefaultSessionSecret, c.SessionSecret)
}

func TestFlagsOverrideEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("FLAGDASH_PORT", "9000")
	t.Setenv("FLAGDASH_ROUND_DURATION", "7s")
	t.Setenv("FLAGDASH_STORE_BACKEND", "memory")

	c, err := Load(newFlags(t, "--port", "9100"))
	require.NoError(t, err)
	require.Equal(t, "9100", c.Port)
	require.Equal(t, 7*time.Second, c.RoundDuration)
	require.Equal(t, "memory", c.StoreBackend)
}

func TestDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("FLAGDASH_ROOM_ID_LENGTH=8\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("FLAGDASH_ROOM_ID_LENGTH") })

	c, err := Load(newFlags(t))
	require.NoError(t, err)
	require.Equal(t, 8, c.RoomIDLength)
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "flagdash.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store-backend: badger\nbadger-path: /tmp/rooms\n"), 0o644))

	c, err := Load(newFlags(t, "--config", path))
	require.NoError(t, err)
	require.Equal(t, "badger", c.StoreBackend)
	require.Equal(t, "/tmp/rooms", c.BadgerPath)
}

func TestValidation(t *testing.T) {
	cases := map[string][]string{
		"unknown backend":   {"--store-backend", "mongo"},
		"unknown broadcast": {"--broadcast", "carrier-pigeon"},
		"zero round":        {"--round-duration", "0s"},
		"ttl below round":   {"--round-duration", "10s", "--room-ttl", "5s"},
		"no attempts":       {"--room-id-attempts", "0"},
		"bad alphabet":      {"--room-id-alphabet", "AB-"},
		"nats without url":  {"--store-backend", "nats", "--nats-url", ""},
		"export no file":    {"--export-enabled", "--export-file", ""},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			chdir(t, t.TempDir())
			_, err := Load(newFlags(t, args...))
			require.Error(t, err)
		})
	}
}

func TestLocalBroadcastOnSharedStore(t *testing.T) {
	cases := []struct {
		store, broadcast string
		want             bool
	}{
		{"redis", "local", true},
		{"nats", "local", true},
		{"redis", "redis", false},
		{"nats", "nats", false},
		{"memory", "local", false},
		{"badger", "local", false},
	}
	for _, tc := range cases {
		t.Run(tc.store+"/"+tc.broadcast, func(t *testing.T) {
			chdir(t, t.TempDir())
			c, err := Load(newFlags(t, "--store-backend", tc.store, "--broadcast", tc.broadcast))
			require.NoError(t, err)
			require.Equal(t, tc.want, c.LocalBroadcastOnSharedStore())
		})
	}
}
