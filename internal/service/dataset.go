package service

import (
	"context"
	stderrors "errors"
	"sync"

	"github.com/gogf/gf/v2/frame/g"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Malowking/dsquery/core/cache"
	"github.com/Malowking/dsquery/core/config"
	dscache "github.com/Malowking/dsquery/dataset/cache"
	"github.com/Malowking/dsquery/dataset/datasource"
	"github.com/Malowking/dsquery/dataset/intent"
	dsservice "github.com/Malowking/dsquery/dataset/service"
	"github.com/Malowking/dsquery/internal/dao"
)

// Components 进程级共享组件
type Components struct {
	Dataset  *dsservice.Service
	Store    *cache.Store
	Pool     *datasource.Pool
	Janitor  *cache.Janitor
	Bus      *cache.InvalidationBus // redis 未启用时为 nil
	Registry *prometheus.Registry
}

var (
	components *Components
	initOnce   sync.Once
	initErr    error
)

// Init 初始化数据集服务及其依赖，需在 dao.InitDB 与 cache.InitRedis 之后调用
func Init(ctx context.Context) error {
	initOnce.Do(func() {
		components, initErr = build(ctx)
	})
	return initErr
}

func build(ctx context.Context) (*Components, error) {
	cfg := config.LoadDatasetConfig(ctx)

	store := cache.NewStore(cache.WithMaxEntries(cfg.MaxEntries))
	pool := datasource.NewPool()

	registry := prometheus.NewRegistry()
	if err := registry.Register(cache.NewCollector(store, "dsquery")); err != nil {
		return nil, err
	}

	c := &Components{
		Store:    store,
		Pool:     pool,
		Janitor:  cache.NewJanitor(store, cfg.CleanupInterval),
		Registry: registry,
	}

	var opts []dsservice.Option
	if client := cache.GetRedisClient(); client != nil {
		c.Bus = cache.NewInvalidationBus(client, store)
		opts = append(opts,
			dsservice.WithInvalidator(c.Bus),
			dsservice.WithTaskTracker(dscache.NewTaskCache(client)),
		)
	}

	svc := dsservice.New(dsservice.Config{
		DatasetTTL:   cfg.DatasetTTL,
		PreviewTTL:   cfg.PreviewTTL,
		QueryTTL:     cfg.QueryTTL,
		SampleSize:   cfg.SampleSize,
		QueryTimeout: cfg.QueryTimeout,
		DefaultLimit: cfg.DefaultLimit,
		MaxLimit:     cfg.MaxLimit,
	}, dao.Dataset, dao.DataSource, pool, store, opts...)

	pipeline, err := intent.NewLLMPipelineFromConfig(ctx, svc.Compiler())
	switch {
	case err == nil:
		dsservice.WithPipeline(pipeline)(svc)
		g.Log().Info(ctx, "Natural language query enabled")
	case stderrors.Is(err, intent.ErrNotConfigured):
		g.Log().Warning(ctx, "chat model not configured, natural language query disabled")
	default:
		return nil, err
	}

	c.Dataset = svc
	g.Log().Infof(ctx, "Dataset service initialized, query limit %d/%d, cache max entries %d",
		cfg.DefaultLimit, cfg.MaxLimit, cfg.MaxEntries)
	return c, nil
}

// Shared 返回共享组件，Init 之前为 nil
func Shared() *Components {
	return components
}

// Dataset 返回数据集服务
func Dataset() *dsservice.Service {
	if components == nil {
		return nil
	}
	return components.Dataset
}
