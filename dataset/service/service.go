package service

import (
	"context"
	"sync"
	"time"

	"github.com/gogf/gf/v2/frame/g"

	"github.com/Malowking/dsquery/core/cache"
	"github.com/Malowking/dsquery/core/common"
	dscache "github.com/Malowking/dsquery/dataset/cache"
	dscommon "github.com/Malowking/dsquery/dataset/common"
	"github.com/Malowking/dsquery/dataset/datasource"
	"github.com/Malowking/dsquery/dataset/inference"
	"github.com/Malowking/dsquery/dataset/intent"
	"github.com/Malowking/dsquery/dataset/parser"
	"github.com/Malowking/dsquery/dataset/quality"
	"github.com/Malowking/dsquery/dataset/query"
	"github.com/Malowking/dsquery/pkg/schema"
)

// Repository 数据集元数据存储，FindByID 未找到时返回 nil, nil
type Repository interface {
	FindByID(ctx context.Context, id string) (*schema.Dataset, error)
	Find(ctx context.Context, filter schema.DatasetFilter, sort string, skip, limit int) ([]*schema.Dataset, error)
	Count(ctx context.Context, filter schema.DatasetFilter) (int64, error)
	Distinct(ctx context.Context, field string, filter schema.DatasetFilter) ([]string, error)
	FindOneAndUpdate(ctx context.Context, id string, patch *schema.DatasetPatch) (*schema.Dataset, error)
	DeleteByID(ctx context.Context, id string) error
	Create(ctx context.Context, d *schema.Dataset) error
}

// DataSourceRepository 数据源存储，GetDataSource 未找到时返回 nil, nil
type DataSourceRepository interface {
	GetDataSource(ctx context.Context, id string) (*datasource.Config, error)
	CreateDataSource(ctx context.Context, cfg *datasource.Config) error
	ListDataSources(ctx context.Context, ownerID string) ([]*datasource.Config, error)
}

// Executor SQL执行适配器
type Executor interface {
	Execute(ctx context.Context, cfg *datasource.Config, sql string, args []any) (*datasource.Result, error)
	Ping(ctx context.Context, cfg *datasource.Config) error
}

// Invalidator 按标签失效缓存，本地 Store 与跨实例的 InvalidationBus 都实现了它
type Invalidator interface {
	Invalidate(ctx context.Context, tags ...string) int
}

// TaskTracker 分析任务状态
type TaskTracker interface {
	Start(ctx context.Context, datasetID string) error
	UpdateProgress(ctx context.Context, datasetID string, progress int, currentStep string) error
	MarkSuccess(ctx context.Context, datasetID string) error
	MarkFailed(ctx context.Context, datasetID string, errorMsg string) error
	GetTask(ctx context.Context, datasetID string) (*dscache.TaskStatus, error)
}

// Config 服务配置
type Config struct {
	DatasetTTL   time.Duration
	PreviewTTL   time.Duration
	QueryTTL     time.Duration
	SampleSize   int
	QueryTimeout time.Duration
	DefaultLimit int
	MaxLimit     int
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		DatasetTTL:   dscommon.DatasetCacheTTL,
		PreviewTTL:   dscommon.PreviewCacheTTL,
		QueryTTL:     dscommon.QueryCacheTTL,
		SampleSize:   dscommon.SampleSize,
		QueryTimeout: dscommon.QueryTimeout,
		DefaultLimit: dscommon.DefaultQueryLimit,
		MaxLimit:     dscommon.MaxQueryLimit,
	}
}

// Option 服务可选组件
type Option func(*Service)

// WithPipeline 启用自然语言查询
func WithPipeline(p intent.Pipeline) Option {
	return func(s *Service) { s.pipeline = p }
}

// WithTaskTracker 启用分析任务状态跟踪
func WithTaskTracker(t TaskTracker) Option {
	return func(s *Service) { s.tasks = t }
}

// WithInvalidator 替换缓存失效方式，默认直接失效本地 Store
func WithInvalidator(i Invalidator) Option {
	return func(s *Service) { s.invalidator = i }
}

// Service 数据集服务
type Service struct {
	cfg         Config
	repo        Repository
	sources     DataSourceRepository
	executor    Executor
	store       *cache.Store
	invalidator Invalidator
	pipeline    intent.Pipeline
	tasks       TaskTracker

	engine    *inference.Engine
	analyzer  *quality.Analyzer
	compiler  *query.Compiler
	validator *parser.SQLValidator

	analyses sync.WaitGroup
}

// New 创建数据集服务
func New(cfg Config, repo Repository, sources DataSourceRepository, executor Executor, store *cache.Store, opts ...Option) *Service {
	def := DefaultConfig()
	if cfg.DatasetTTL <= 0 {
		cfg.DatasetTTL = def.DatasetTTL
	}
	if cfg.PreviewTTL <= 0 {
		cfg.PreviewTTL = def.PreviewTTL
	}
	if cfg.QueryTTL <= 0 {
		cfg.QueryTTL = def.QueryTTL
	}
	if cfg.SampleSize <= 0 {
		cfg.SampleSize = def.SampleSize
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = def.QueryTimeout
	}

	s := &Service{
		cfg:       cfg,
		repo:      repo,
		sources:   sources,
		executor:  executor,
		store:     store,
		engine:    inference.NewEngine(),
		analyzer:  quality.NewAnalyzer(),
		compiler:  query.NewCompiler(cfg.DefaultLimit, cfg.MaxLimit),
		validator: parser.NewSQLValidator(),
	}
	s.invalidator = store
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Compiler 返回服务使用的查询编译器
func (s *Service) Compiler() *query.Compiler {
	return s.compiler
}

// Wait blocks until every scheduled analysis has finished.
func (s *Service) Wait() {
	s.analyses.Wait()
}

// invalidate 在持久化写入之后调用
func (s *Service) invalidate(ctx context.Context, datasetID string) {
	removed := s.invalidator.Invalidate(ctx, dscommon.DatasetTag(datasetID))
	g.Log().Debugf(ctx, "dataset %s cache invalidated, %d entries removed", datasetID, removed)
}

// scheduleAnalysis 后台执行字段分析，不受请求取消影响
func (s *Service) scheduleAnalysis(ctx context.Context, datasetID string) {
	bg := context.WithoutCancel(ctx)
	if s.tasks != nil {
		if err := s.tasks.Start(bg, datasetID); err != nil {
			g.Log().Warningf(bg, "记录分析任务失败 %s: %v", datasetID, err)
		}
	}

	s.analyses.Add(1)
	common.SafeGo(bg, "analyze-fields-"+datasetID, func() {
		defer s.analyses.Done()
		if err := s.AnalyzeFields(bg, datasetID); err != nil {
			g.Log().Warningf(bg, "数据集 %s 字段分析失败: %v", datasetID, err)
		}
	})
}
