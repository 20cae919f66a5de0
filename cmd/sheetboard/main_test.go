package main

import (
	"context"
	"errors"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/goliatone/go-sheetboard/components/dashboard"
	"github.com/goliatone/go-sheetboard/pkg/config"
	"github.com/goliatone/go-sheetboard/pkg/remote"
)

func TestCLIParsesSubcommands(t *testing.T) {
	var c cli
	parser, err := kong.New(&c, kong.Name("sheetboard"), kong.Exit(func(int) { t.Fatal("unexpected exit") }))
	require.NoError(t, err)

	kctx, err := parser.Parse([]string{"version", "restore", "--dashboard", "dash-1", "v-1"})
	require.NoError(t, err)
	assert.Equal(t, "version restore <id>", kctx.Command())
	assert.Equal(t, "dash-1", c.Version.Restore.Dashboard)
	assert.Equal(t, "v-1", c.Version.Restore.ID)

	_, err = parser.Parse([]string{"export"})
	assert.Error(t, err)

	_, err = parser.Parse([]string{"serve-editor", "--router", "fiber"})
	require.NoError(t, err)
	assert.Equal(t, "fiber", c.ServeEditor.Router)
	_, err = parser.Parse([]string{"serve-editor", "--router", "gin"})
	assert.Error(t, err)
}

func TestOpenBackend(t *testing.T) {
	logger := zap.NewNop()

	_, err := openBackend(config.Default(), logger, false)
	assert.True(t, errors.Is(err, errStoreURLRequired))

	mem, err := openBackend(config.Default(), logger, true)
	require.NoError(t, err)
	assert.IsType(t, &dashboard.InMemoryDashboardStore{}, mem.dashboards)

	cfg := config.Default()
	cfg.Store.URL = "http://store.local"
	remoteDeps, err := openBackend(cfg, logger, false)
	require.NoError(t, err)
	assert.IsType(t, &remote.Client{}, remoteDeps.dashboards)
}

func TestWorkbookDepsWithoutFile(t *testing.T) {
	deps, err := openWorkbook(config.Default(), zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, deps.accessor())
}

func TestLogNotifierLevels(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := logNotifier(zap.New(core))

	n.Notify(context.Background(), dashboard.Notification{Level: dashboard.LevelError, Message: "boom"})
	n.Notify(context.Background(), dashboard.Notification{Level: dashboard.LevelSuccess, Message: "saved"})

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.ErrorLevel, entries[0].Level)
	assert.Equal(t, "boom", entries[0].Message)
	assert.Equal(t, zap.InfoLevel, entries[1].Level)
}

func TestNewLoggerFollowsEnvironment(t *testing.T) {
	cfg := config.Default()
	dev, err := newLogger(cfg)
	require.NoError(t, err)
	assert.True(t, dev.Core().Enabled(zap.DebugLevel))

	cfg.Environment = "production"
	prod, err := newLogger(cfg)
	require.NoError(t, err)
	assert.False(t, prod.Core().Enabled(zap.DebugLevel))
}
