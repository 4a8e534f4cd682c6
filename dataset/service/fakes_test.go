package service

import (
	"context"
	"database/sql"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/Malowking/dsquery/core/cache"
	dscache "github.com/Malowking/dsquery/dataset/cache"
	dscommon "github.com/Malowking/dsquery/dataset/common"
	"github.com/Malowking/dsquery/dataset/datasource"
	"github.com/Malowking/dsquery/dataset/intent"
	"github.com/Malowking/dsquery/pkg/schema"
)

// memRepo 内存数据集存储，读写都返回副本
type memRepo struct {
	mu       sync.Mutex
	datasets map[string]*schema.Dataset
	finds    atomic.Int64
}

func newMemRepo() *memRepo {
	return &memRepo{datasets: make(map[string]*schema.Dataset)}
}

func (r *memRepo) FindByID(_ context.Context, id string) (*schema.Dataset, error) {
	r.finds.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.datasets[id].Clone(), nil
}

func (r *memRepo) match(d *schema.Dataset, f schema.DatasetFilter) bool {
	if f.UserID != "" && !d.Can(f.UserID, schema.RoleViewer) {
		return false
	}
	if f.Keyword != "" {
		kw := strings.ToLower(f.Keyword)
		if !strings.Contains(strings.ToLower(d.Name+" "+d.DisplayName+" "+d.Description), kw) {
			return false
		}
	}
	if f.Category != "" && d.Category != f.Category {
		return false
	}
	if f.Type != "" && d.Type != f.Type {
		return false
	}
	if len(f.Tags) > 0 && !slices.ContainsFunc(f.Tags, func(t string) bool { return slices.Contains(d.Tags, t) }) {
		return false
	}
	return true
}

func (r *memRepo) Find(_ context.Context, f schema.DatasetFilter, order string, skip, limit int) ([]*schema.Dataset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*schema.Dataset
	for _, d := range r.datasets {
		if r.match(d, f) {
			out = append(out, d.Clone())
		}
	}

	column, dir, _ := strings.Cut(order, " ")
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if dir == "desc" {
			a, b = b, a
		}
		switch column {
		case "name":
			return a.Name < b.Name
		case "created_at":
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.UpdatedAt.Before(b.UpdatedAt)
	})

	if skip >= len(out) {
		return []*schema.Dataset{}, nil
	}
	return out[skip:min(skip+limit, len(out))], nil
}

func (r *memRepo) Count(_ context.Context, f schema.DatasetFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, d := range r.datasets {
		if r.match(d, f) {
			n++
		}
	}
	return n, nil
}

func (r *memRepo) Distinct(_ context.Context, field string, f schema.DatasetFilter) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := map[string]struct{}{}
	for _, d := range r.datasets {
		if !r.match(d, f) {
			continue
		}
		switch field {
		case "category":
			if d.Category != "" {
				set[d.Category] = struct{}{}
			}
		case "type":
			set[string(d.Type)] = struct{}{}
		case "tags":
			for _, t := range d.Tags {
				set[t] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}

func (r *memRepo) FindOneAndUpdate(_ context.Context, id string, patch *schema.DatasetPatch) (*schema.Dataset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.datasets[id]
	if !ok {
		return nil, nil
	}
	patch.Apply(d)
	d.UpdatedAt = time.Now()
	return d.Clone(), nil
}

func (r *memRepo) DeleteByID(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.datasets, id)
	return nil
}

func (r *memRepo) Create(_ context.Context, d *schema.Dataset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.datasets[d.ID] = d.Clone()
	return nil
}

type memSources struct {
	mu      sync.Mutex
	configs map[string]*datasource.Config
}

func (m *memSources) GetDataSource(_ context.Context, id string) (*datasource.Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.configs[id]
	if !ok {
		return nil, nil
	}
	c := *cfg
	return &c, nil
}

func (m *memSources) CreateDataSource(_ context.Context, cfg *datasource.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *cfg
	m.configs[cfg.ID] = &c
	return nil
}

func (m *memSources) ListDataSources(_ context.Context, ownerID string) ([]*datasource.Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*datasource.Config
	for _, cfg := range m.configs {
		if cfg.OwnerID == ownerID {
			c := *cfg
			out = append(out, &c)
		}
	}
	return out, nil
}

// countingExecutor 记录执行次数，用于验证缓存命中；before 在执行前调用，可用来阻塞某条语句
type countingExecutor struct {
	*datasource.Pool
	executions atomic.Int64
	before     func(sql string)
}

func (e *countingExecutor) Execute(ctx context.Context, cfg *datasource.Config, sql string, args []any) (*datasource.Result, error) {
	e.executions.Add(1)
	if e.before != nil {
		e.before(sql)
	}
	return e.Pool.Execute(ctx, cfg, sql, args)
}

// memTracker 内存任务状态
type memTracker struct {
	mu    sync.Mutex
	tasks map[string]*dscache.TaskStatus
	steps []string
}

func (m *memTracker) Start(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.tasks[id] = &dscache.TaskStatus{DatasetID: id, Status: dscommon.TaskStatusRunning, StartedAt: now, UpdatedAt: now}
	return nil
}

func (m *memTracker) task(id string) *dscache.TaskStatus {
	t, ok := m.tasks[id]
	if !ok {
		t = &dscache.TaskStatus{DatasetID: id}
		m.tasks[id] = t
	}
	return t
}

func (m *memTracker) UpdateProgress(_ context.Context, id string, progress int, step string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.task(id)
	t.Progress = progress
	t.CurrentStep = step
	m.steps = append(m.steps, step)
	return nil
}

func (m *memTracker) MarkSuccess(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.task(id)
	t.Status = dscommon.TaskStatusSuccess
	t.Progress = 100
	return nil
}

func (m *memTracker) MarkFailed(_ context.Context, id string, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.task(id)
	t.Status = dscommon.TaskStatusFailed
	t.ErrorMsg = msg
	return nil
}

func (m *memTracker) GetTask(_ context.Context, id string) (*dscache.TaskStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, dscache.ErrTaskNotFound
	}
	c := *t
	return &c, nil
}

// fakePipeline 固定返回意图，校验与编译使用真实实现
type fakePipeline struct {
	*intent.LLMPipeline
	extraction *intent.Extraction
}

func (p *fakePipeline) ExtractIntent(context.Context, string, []schema.Field) (*intent.Extraction, error) {
	return p.extraction, nil
}

const (
	alice = "alice"
	bob   = "bob"
	carol = "carol"
)

type fixture struct {
	svc     *Service
	repo    *memRepo
	sources *memSources
	exec    *countingExecutor
	store   *cache.Store
	tracker *memTracker
	dsID    string
}

func createSalesDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sales.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE sales (id INTEGER PRIMARY KEY, region TEXT, order_count INTEGER, revenue REAL, order_date TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO sales (id, region, order_count, revenue, order_date) VALUES
		(1, 'APAC', 5, 10.5, '2024-01-01'),
		(2, 'EMEA', 5, 20.25, '2024-01-02'),
		(3, 'APAC', 12, 4.5, '2024-01-03'),
		(4, NULL, 5, 1.5, '2024-01-04'),
		(5, 'AMER', 5, 7.75, '2024-01-05'),
		(6, 'EMEA', 5, 3.25, '2024-01-06')`)
	require.NoError(t, err)
	return path
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		repo:    newMemRepo(),
		sources: &memSources{configs: map[string]*datasource.Config{}},
		exec:    &countingExecutor{Pool: datasource.NewPool()},
		store:   cache.NewStore(),
		tracker: &memTracker{tasks: map[string]*dscache.TaskStatus{}},
	}
	t.Cleanup(func() { _ = f.exec.Close() })

	opts = append([]Option{WithTaskTracker(f.tracker)}, opts...)
	f.svc = New(DefaultConfig(), f.repo, f.sources, f.exec, f.store, opts...)

	ds, err := f.svc.CreateDataSource(context.Background(), alice, &datasource.Config{
		Name:   "sales",
		DBType: dscommon.DBTypeSQLite,
		Path:   createSalesDB(t),
	})
	require.NoError(t, err)
	f.dsID = ds.ID
	return f
}

func (f *fixture) createTable(t *testing.T, table string, mutate ...func(*CreateRequest)) *schema.Dataset {
	t.Helper()
	req := &CreateRequest{
		Name:   table,
		Type:   schema.DatasetTypeTable,
		Source: schema.SourceConfig{Table: &schema.TableSource{DataSourceID: f.dsID, Table: table}},
	}
	for _, m := range mutate {
		m(req)
	}
	d, err := f.svc.Create(context.Background(), alice, req)
	require.NoError(t, err)
	f.svc.Wait()
	return d
}

func (f *fixture) createView(t *testing.T, baseID string, filters ...schema.Filter) *schema.Dataset {
	t.Helper()
	d, err := f.svc.Create(context.Background(), alice, &CreateRequest{
		Name:   "view_of_" + baseID,
		Type:   schema.DatasetTypeView,
		Source: schema.SourceConfig{View: &schema.ViewSource{BaseDatasetID: baseID, Filters: filters}},
	})
	require.NoError(t, err)
	f.svc.Wait()
	return d
}
