package app

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/law-makers/ordercrawl/internal/auth"
	"github.com/law-makers/ordercrawl/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.LogLevel = "error"
	cfg.Data.Store = filepath.Join(dir, "data", "ordercrawl.db")
	cfg.Data.SecretsDir = filepath.Join(dir, "secrets")
	cfg.Data.DumpDir = filepath.Join(dir, "dumps")
	cfg.Data.ThumbDir = filepath.Join(dir, "thumbs")
	return cfg
}

func TestSetupLogging(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	cfg := config.Default()
	cfg.JSONLog = true
	cfg.LogLevel = "warn"

	var buf bytes.Buffer
	logger := SetupLogging(cfg, &buf)
	logger.Info().Msg("hidden")
	logger.Warn().Str("year", "2023").Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"message":"shown"`)
	assert.Contains(t, out, `"year":"2023"`)
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
}

func TestSetupLogging_BadLevelFallsBackToInfo(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	cfg := config.Default()
	cfg.LogLevel = "loud"
	SetupLogging(cfg, &bytes.Buffer{})
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestNew(t *testing.T) {
	t.Setenv("CI", "1")
	ctx := context.Background()

	_, err := New(ctx, nil)
	require.Error(t, err)

	a, err := New(ctx, testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(ctx) })

	stats, err := a.Store.Stats(ctx)
	require.NoError(t, err)
	assert.True(t, stats.LastModified.IsZero())
	assert.NotNil(t, a.Throttle)
	assert.NotNil(t, a.Parser)
	assert.False(t, a.startTime.IsZero())
}

func TestCredentials_ConfigWins(t *testing.T) {
	t.Setenv("CI", "1")
	ctx := context.Background()

	cfg := testConfig(t)
	a, err := New(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(ctx) })

	require.NoError(t, a.Secrets.SaveCredentials(auth.Credentials{User: "stored", Password: "pw1"}))

	creds, err := a.Credentials()()
	require.NoError(t, err)
	assert.Equal(t, "stored", creds.User)

	cfg.Login = config.LoginConfig{User: "alice", Password: "pw2"}
	creds, err = a.Credentials()()
	require.NoError(t, err)
	assert.Equal(t, auth.Credentials{User: "alice", Password: "pw2"}, creds)
}

func TestClose(t *testing.T) {
	t.Setenv("CI", "1")
	ctx := context.Background()

	a, err := New(ctx, testConfig(t))
	require.NoError(t, err)
	require.NoError(t, a.Close(ctx))
}
