package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/uptrace/bun"

	authx "github.com/tanpawarit/Chative-Commerce-Tools/agent/auth"
	contractx "github.com/tanpawarit/Chative-Commerce-Tools/agent/contract"
	"github.com/tanpawarit/Chative-Commerce-Tools/agent/dispatch"
	toolx "github.com/tanpawarit/Chative-Commerce-Tools/agent/tool"
	configx "github.com/tanpawarit/Chative-Commerce-Tools/pkg/config"
	postgresx "github.com/tanpawarit/Chative-Commerce-Tools/pkg/postgres"
	"github.com/tanpawarit/Chative-Commerce-Tools/store"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type AppConfig struct {
	Addr        string `default:":8080"`
	StoreDriver string `split_words:"true" default:"postgres"`
	AutoMigrate bool   `split_words:"true" default:"true"`
}

// core is everything a surface needs to run tool calls.
type core struct {
	catalog    contractx.CatalogStore
	orders     contractx.OrderStore
	registry   *toolx.Registry
	dispatcher *dispatch.Dispatcher
	metrics    *prometheus.Registry
	db         *bun.DB
}

func (c *core) health(ctx context.Context) error {
	if c.db == nil {
		return nil
	}
	return c.db.PingContext(ctx)
}

func (c *core) Close() {
	if c.db != nil {
		_ = c.db.Close()
	}
}

func buildCore(ctx context.Context, app AppConfig) (*core, error) {
	logger := zerolog.Ctx(ctx)
	c := &core{metrics: prometheus.NewRegistry()}

	switch strings.ToLower(strings.TrimSpace(app.StoreDriver)) {
	case StoreDriverMemory:
		mem := store.NewMemoryStore()
		c.catalog, c.orders = mem, mem
		logger.Warn().Msg("using in-memory store, data is lost on exit")
	case "", StoreDriverPostgres:
		db, err := openDatabase(ctx)
		if err != nil {
			return nil, err
		}
		c.db = db
		if app.AutoMigrate {
			if err := store.Migrate(ctx, db); err != nil {
				c.Close()
				return nil, err
			}
		}
		pg, err := store.NewPostgresStore(db)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.catalog, c.orders = pg, pg
	default:
		return nil, fmt.Errorf("unknown store driver %q", app.StoreDriver)
	}

	registry, err := toolx.NewCommerceRegistry(c.catalog, c.orders)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.registry = registry

	authCfg, err := configx.New[authx.Config]("AUTH")
	if err != nil {
		c.Close()
		return nil, err
	}
	gate, err := authx.New(*authCfg)
	if err != nil {
		c.Close()
		return nil, err
	}

	c.metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := dispatch.NewMetrics(c.metrics)
	if err != nil {
		c.Close()
		return nil, err
	}

	c.dispatcher, err = dispatch.New(registry, gate, dispatch.WithMetrics(metrics))
	if err != nil {
		c.Close()
		return nil, err
	}

	logger.Info().
		Str("store", app.StoreDriver).
		Str("auth_mode", authCfg.Mode).
		Int("tools", len(registry.Tools())).
		Msg("tool layer ready")
	return c, nil
}

func openDatabase(ctx context.Context) (*bun.DB, error) {
	pgCfg, err := configx.New[postgresx.Config]("POSTGRES")
	if err != nil {
		return nil, err
	}
	db, err := postgresx.New(ctx, *pgCfg, store.QueryLogger{})
	if err != nil {
		return nil, errors.Join(contractx.ErrStore, err)
	}
	return db, nil
}
