package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/shopintake/core/commerce"
	coreconfig "github.com/m3rciful/shopintake/core/config"
	coredatabase "github.com/m3rciful/shopintake/core/database"
	"github.com/m3rciful/shopintake/core/journal"
)

type nopShop struct{}

func (nopShop) ListCategories(context.Context) ([]commerce.Category, error) { return nil, nil }

func (nopShop) FindCategoryByExactName(context.Context, string) (commerce.Category, bool, error) {
	return commerce.Category{}, false, nil
}

func (nopShop) CreateCategory(_ context.Context, name string) (commerce.Category, error) {
	return commerce.Category{ID: 1, Name: name}, nil
}

func (nopShop) UploadMedia(context.Context, commerce.Media) (commerce.MediaRef, error) {
	return commerce.MediaRef{ID: 1}, nil
}

func (nopShop) CreateProduct(context.Context, commerce.ProductInput) (commerce.Product, error) {
	return commerce.Product{ID: 1}, nil
}

func testConfig(t *testing.T) *coreconfig.Config {
	t.Helper()
	cfg := &coreconfig.Config{
		Telegram: coreconfig.TelegramConfig{Token: "token", AdminID: 5},
		Commerce: coreconfig.CommerceConfig{
			URL:            "https://shop.example",
			ConsumerKey:    "ck",
			ConsumerSecret: "cs",
		},
	}
	require.NoError(t, coreconfig.Normalize(cfg))
	return cfg
}

func noLogger(*coreconfig.Config) error { return nil }

func TestRunWithoutDatabase(t *testing.T) {
	cfg := testConfig(t)
	app, err := Run(context.Background(), Options{Config: cfg, LoggerInit: noLogger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	assert.Nil(t, app.DB)
	assert.IsType(t, journal.Log{}, app.Journal)
	assert.IsType(t, &commerce.Client{}, app.Commerce)
	require.NotNil(t, app.Intake)
	assert.Same(t, cfg, app.CoreConfig())

	opts, err := app.TelegramRunOptions()
	require.NoError(t, err)
	assert.Same(t, cfg, opts.Config)
	assert.NotEmpty(t, opts.Middlewares)

	endpoints := map[any]bool{}
	for _, r := range opts.Routes {
		endpoints[r.Endpoint] = true
	}
	for _, want := range []any{"/start", "/cancel", "/help", tele.OnText, tele.OnPhoto, tele.OnCallback} {
		assert.True(t, endpoints[want], "missing route %v", want)
	}
	assert.False(t, endpoints["/recent"])
}

func TestRunRejectsNilConfig(t *testing.T) {
	_, err := Run(context.Background(), Options{})
	require.Error(t, err)
}

func TestRunLoggerFailure(t *testing.T) {
	_, err := Run(context.Background(), Options{
		Config:     testConfig(t),
		LoggerInit: func(*coreconfig.Config) error { return errors.New("no disk") },
	})
	require.ErrorContains(t, err, "logger init failed")
}

func TestRunWithDatabase(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Host = "db"
	require.NoError(t, coreconfig.Normalize(cfg))

	raw, err := sql.Open("postgres", "host=db")
	require.NoError(t, err)
	db := sqlx.NewDb(raw, "postgres")

	var migrated coredatabase.MigrateOptions
	app, err := Run(context.Background(), Options{
		Config:     cfg,
		LoggerInit: noLogger,
		Commerce:   nopShop{},
		Connect: func(_ context.Context, dc coreconfig.DatabaseConfig) (*sqlx.DB, error) {
			assert.Equal(t, "5432", dc.Port)
			return db, nil
		},
		Migrate: func(_ context.Context, _ coreconfig.DatabaseConfig, o coredatabase.MigrateOptions) error {
			migrated = o
			return nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, coredatabase.MigrateOptions{}, migrated)
	assert.Same(t, db, app.DB)
	assert.IsType(t, &journal.SQL{}, app.Journal)

	opts, err := app.TelegramRunOptions()
	require.NoError(t, err)
	var recent bool
	for _, r := range opts.Routes {
		if r.Endpoint == "/recent" {
			recent = true
		}
	}
	assert.True(t, recent)
	require.NoError(t, app.Close())
}

func TestRunMigrationFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Host = "db"
	require.NoError(t, coreconfig.Normalize(cfg))

	raw, err := sql.Open("postgres", "host=db")
	require.NoError(t, err)

	_, err = Run(context.Background(), Options{
		Config:     cfg,
		LoggerInit: noLogger,
		Commerce:   nopShop{},
		Connect: func(context.Context, coreconfig.DatabaseConfig) (*sqlx.DB, error) {
			return sqlx.NewDb(raw, "postgres"), nil
		},
		Migrate: func(context.Context, coreconfig.DatabaseConfig, coredatabase.MigrateOptions) error {
			return errors.New("dirty")
		},
	})
	require.ErrorContains(t, err, "migrations failed")
}
