package service

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/Malowking/dsquery/core/cache"
	"github.com/Malowking/dsquery/core/errors"
	dscommon "github.com/Malowking/dsquery/dataset/common"
	"github.com/Malowking/dsquery/dataset/datasource"
	"github.com/Malowking/dsquery/dataset/query"
	"github.com/Malowking/dsquery/pkg/schema"
)

// resolvedSource 数据集展开后的编译来源
type resolvedSource struct {
	source       *query.Source
	datasourceID string   // 视图链最底层数据集的数据源
	chain        []string // 视图链上所有数据集id，包含自身
}

// tags 查询结果缓存标签：视图链上任一数据集修改都会失效
func (r *resolvedSource) tags(kind string) []string {
	tags := make([]string, 0, len(r.chain)+1)
	for _, id := range r.chain {
		tags = append(tags, dscommon.DatasetTag(id))
	}
	return append(tags, kind)
}

// loadRaw 读取数据集（不做权限检查），经缓存
func (s *Service) loadRaw(ctx context.Context, id string) (*schema.Dataset, error) {
	key := fmt.Sprintf("dataset:%s:raw", id)
	return cache.Fetch(ctx, s.store, key, s.cfg.DatasetTTL, []string{dscommon.DatasetTag(id)},
		func(ctx context.Context) (*schema.Dataset, error) {
			d, err := s.repo.FindByID(ctx, id)
			if err != nil {
				return nil, errors.Wrap(errors.ErrDatabaseQuery, err, "查询数据集失败")
			}
			if d == nil {
				return nil, errors.Newf(errors.ErrDatasetNotFound, "数据集不存在: %s", id)
			}
			return d, nil
		})
}

// resolve 展开视图链，检测循环引用与嵌套深度
func (s *Service) resolve(ctx context.Context, d *schema.Dataset) (*resolvedSource, error) {
	visited := map[string]struct{}{}
	return s.resolveFrom(ctx, d, visited, 0)
}

func (s *Service) resolveFrom(ctx context.Context, d *schema.Dataset, visited map[string]struct{}, depth int) (*resolvedSource, error) {
	if d.ID != "" {
		if _, seen := visited[d.ID]; seen {
			return nil, errors.Newf(errors.ErrInvalidParameter, "视图存在循环引用: %s", d.ID)
		}
		visited[d.ID] = struct{}{}
	}
	if depth > dscommon.MaxViewDepth {
		return nil, errors.Newf(errors.ErrInvalidQuery, "视图嵌套超过 %d 层", dscommon.MaxViewDepth)
	}

	src := d.Source
	switch {
	case src.Table != nil:
		return &resolvedSource{
			source:       &query.Source{Schema: src.Table.Schema, Table: src.Table.Table},
			datasourceID: src.Table.DataSourceID,
			chain:        []string{d.ID},
		}, nil
	case src.SQL != nil:
		return &resolvedSource{
			source:       &query.Source{SQL: src.SQL.Query},
			datasourceID: src.SQL.DataSourceID,
			chain:        []string{d.ID},
		}, nil
	case src.View != nil:
		base, err := s.loadRaw(ctx, src.View.BaseDatasetID)
		if err != nil {
			return nil, err
		}
		inner, err := s.resolveFrom(ctx, base, visited, depth+1)
		if err != nil {
			return nil, err
		}
		return &resolvedSource{
			source:       &query.Source{Base: inner.source, Filters: src.View.Filters},
			datasourceID: inner.datasourceID,
			chain:        append([]string{d.ID}, inner.chain...),
		}, nil
	}
	return nil, errors.Newf(errors.ErrUnsupportedDatasetType, "数据集 %s 缺少来源配置", d.ID)
}

// datasource 读取数据源配置
func (s *Service) datasource(ctx context.Context, id string) (*datasource.Config, error) {
	cfg, err := s.sources.GetDataSource(ctx, id)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabaseQuery, err, "查询数据源失败")
	}
	if cfg == nil {
		return nil, errors.Newf(errors.ErrDataSourceNotFound, "数据源不存在: %s", id)
	}
	return cfg, nil
}

// compileError 编译错误统一为查询参数错误
func compileError(err error) error {
	if errors.IsAppError(err) {
		return err
	}
	return errors.Wrap(errors.ErrInvalidQuery, err, "查询编译失败")
}

// execute 带超时执行SQL，失败统一为数据源执行错误
func (s *Service) execute(ctx context.Context, cfg *datasource.Config, sql string, args []any) (*datasource.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	res, err := s.executor.Execute(ctx, cfg, sql, args)
	if err != nil {
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errors.Wrapf(errors.ErrSourceExecution, err, "查询超时(%s)", s.cfg.QueryTimeout)
		}
		return nil, errors.Wrap(errors.ErrSourceExecution, err, "数据源执行失败")
	}
	return res, nil
}

// checkDataSourceOwner 数据源必须属于调用者
func (s *Service) checkDataSourceOwner(ctx context.Context, userID, datasourceID string) error {
	cfg, err := s.datasource(ctx, datasourceID)
	if err != nil {
		return err
	}
	if cfg.OwnerID != userID {
		return errors.Newf(errors.ErrPermissionDenied, "无权使用数据源: %s", datasourceID)
	}
	return nil
}

// validateSource 校验来源配置：类型匹配、数据源归属、SQL只读、视图基表可见且无循环
func (s *Service) validateSource(ctx context.Context, userID string, d *schema.Dataset) error {
	if err := d.Source.Validate(d.Type); err != nil {
		return errors.Wrap(errors.ErrInvalidParameter, err, "数据来源配置无效")
	}

	switch d.Type {
	case schema.DatasetTypeTable, schema.DatasetTypeSQL:
		if err := s.checkDataSourceOwner(ctx, userID, d.Source.DataSourceID()); err != nil {
			return err
		}
		if d.Type == schema.DatasetTypeSQL {
			if err := s.validator.Validate(d.Source.SQL.Query); err != nil {
				return errors.Wrap(errors.ErrInvalidQuery, err, "SQL校验失败")
			}
		}
	case schema.DatasetTypeView:
		base, err := s.loadRaw(ctx, d.Source.View.BaseDatasetID)
		if err != nil {
			return err
		}
		if !base.Can(userID, schema.RoleViewer) {
			return errors.Newf(errors.ErrPermissionDenied, "无权访问基础数据集: %s", base.ID)
		}
		if _, err := s.resolve(ctx, d); err != nil {
			return err
		}
		// 视图过滤条件需要能编译
		if _, _, err := s.compiler.CompileCount(&query.Source{Base: &query.Source{Table: "base"}, Filters: d.Source.View.Filters}, query.DialectGeneric); err != nil {
			return compileError(err)
		}
	}
	return nil
}
