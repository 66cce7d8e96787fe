package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/shopintake/core/config"
	coretelegram "github.com/m3rciful/shopintake/core/telegram"
)

type fakeApp struct {
	closed  bool
	optsErr error
}

func (a *fakeApp) TelegramRunOptions() (coretelegram.RunOptions, error) {
	return coretelegram.RunOptions{}, a.optsErr
}

func (a *fakeApp) Close() error {
	a.closed = true
	return nil
}

func TestResolveConfigPath(t *testing.T) {
	t.Setenv("SHOP_CONFIG", "/etc/env.yaml")
	assert.Equal(t, "/tmp/flag.yaml", ResolveConfigPath("/tmp/flag.yaml", "SHOP_CONFIG", "config.yaml"))
	assert.Equal(t, "/etc/env.yaml", ResolveConfigPath("", "SHOP_CONFIG", "config.yaml"))
	t.Setenv("SHOP_CONFIG", "")
	assert.Equal(t, "config.yaml", ResolveConfigPath("", "SHOP_CONFIG", "config.yaml"))
	t.Setenv("CONFIG_PATH", "")
	assert.Empty(t, ResolveConfigPath("", "", ""))
}

func TestRunLifecycle(t *testing.T) {
	app := &fakeApp{}
	var loadedFrom string
	var started, stopped, loggerClosed bool

	err := Run(Options{
		ConfigPath: "bot.yaml",
		LoadConfig: func(path string) (*coreconfig.Config, error) {
			loadedFrom = path
			return &coreconfig.Config{}, nil
		},
		Bootstrap: func(context.Context, *coreconfig.Config) (TelegramApp, error) {
			return app, nil
		},
		ShutdownLogger: func() error { loggerClosed = true; return nil },
		RunTelegram: func(ctx context.Context, opts coretelegram.RunOptions) error {
			require.NoError(t, opts.OnStart(ctx, coretelegram.Runtime{}))
			started = true
			require.NoError(t, opts.OnStop(ctx, coretelegram.Runtime{}))
			stopped = true
			return nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "bot.yaml", loadedFrom)
	assert.True(t, started)
	assert.True(t, stopped)
	assert.True(t, app.closed)
	assert.True(t, loggerClosed)
}

func TestRunErrors(t *testing.T) {
	load := func(string) (*coreconfig.Config, error) { return &coreconfig.Config{}, nil }

	require.Error(t, Run(Options{LoadConfig: load}))

	err := Run(Options{
		ConfigPath: "x.yaml",
		LoadConfig: func(string) (*coreconfig.Config, error) { return nil, errors.New("missing") },
		Bootstrap:  func(context.Context, *coreconfig.Config) (TelegramApp, error) { return &fakeApp{}, nil },
	})
	require.ErrorContains(t, err, "failed to load config")

	app := &fakeApp{optsErr: errors.New("bad")}
	err = Run(Options{
		ConfigPath:     "x.yaml",
		LoadConfig:     load,
		Bootstrap:      func(context.Context, *coreconfig.Config) (TelegramApp, error) { return app, nil },
		ShutdownLogger: func() error { return nil },
	})
	require.ErrorContains(t, err, "telegram options build failed")
	assert.True(t, app.closed)
}
