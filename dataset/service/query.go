package service

import (
	"context"
	"fmt"
	"time"

	"github.com/gogf/gf/v2/frame/g"

	"github.com/Malowking/dsquery/core/cache"
	"github.com/Malowking/dsquery/core/errors"
	dscommon "github.com/Malowking/dsquery/dataset/common"
	"github.com/Malowking/dsquery/dataset/datasource"
	"github.com/Malowking/dsquery/dataset/intent"
	"github.com/Malowking/dsquery/dataset/query"
	"github.com/Malowking/dsquery/pkg/schema"
)

// AskResult 自然语言查询结果
type AskResult struct {
	Extraction *intent.Extraction  `json:"extraction"`
	Validation *intent.Validation  `json:"validation"`
	DSL        string              `json:"dsl,omitempty"`
	SQL        string              `json:"sql,omitempty"`
	Result     *schema.QueryResult `json:"result,omitempty"`
}

// recoverable 数据源侧的失败转换为带错误信息的空结果
func recoverable(err error) bool {
	switch errors.CodeOf(err) {
	case errors.ErrSourceExecution, errors.ErrDataSourceNotFound:
		return true
	}
	return false
}

// Preview 预览数据集前 n 行
func (s *Service) Preview(ctx context.Context, userID, id string, limit int) (*schema.PreviewResult, error) {
	d, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	resolved, err := s.resolve(ctx, d)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = dscommon.DefaultPreviewLimit
	}
	limit = min(limit, dscommon.MaxPreviewLimit)

	key := fmt.Sprintf("dataset:%s:preview:%d", id, limit)
	result, err := cache.Fetch(ctx, s.store, key, s.cfg.PreviewTTL, resolved.tags(dscommon.TagPreview),
		func(ctx context.Context) (*schema.PreviewResult, error) {
			cfg, err := s.datasource(ctx, resolved.datasourceID)
			if err != nil {
				return nil, err
			}
			sql, args, err := s.compiler.CompilePreview(resolved.source, limit, query.DialectFor(cfg.DBType))
			if err != nil {
				return nil, compileError(err)
			}

			start := time.Now()
			res, err := s.execute(ctx, cfg, sql, args)
			if err != nil {
				return nil, err
			}
			return &schema.PreviewResult{
				Columns:       res.Columns,
				Rows:          res.Data,
				TotalCount:    res.Total,
				ExecutionTime: time.Since(start).Milliseconds(),
			}, nil
		})
	if err != nil {
		if recoverable(err) {
			g.Log().Warningf(ctx, "预览数据集 %s 失败: %v", id, err)
			return &schema.PreviewResult{
				Columns: []schema.ColumnMeta{},
				Rows:    []map[string]any{},
				Errors:  []string{err.Error()},
			}, nil
		}
		return nil, err
	}
	return result, nil
}

// Query 编译并执行结构化查询，按规范化查询哈希缓存。
// 缓存键对 measures 与 dimensions 排序，只是顺序不同的请求共享同一条缓存，
// 因此返回的 ORDER BY 与 top-N 结果以最先写入缓存的那次请求的顺序为准。
func (s *Service) Query(ctx context.Context, userID, id string, spec schema.QuerySpec) (*schema.QueryResult, error) {
	d, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	resolved, err := s.resolve(ctx, d)
	if err != nil {
		return nil, err
	}

	spec.Limit = s.compiler.NormalizeLimit(spec.Limit)
	key, err := query.CacheKey(id, spec)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidQuery, err, "查询参数无法序列化")
	}

	return s.runQuery(ctx, id, key, resolved, func(dialect query.Dialect) (string, []any, error) {
		return s.compiler.Compile(resolved.source, spec, d.Fields, dialect)
	})
}

// QuerySQL 执行只读SQL，结果行数受 maxLimit 限制
func (s *Service) QuerySQL(ctx context.Context, userID, id, rawSQL string) (*schema.QueryResult, error) {
	d, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Validate(rawSQL); err != nil {
		return nil, errors.Wrap(errors.ErrInvalidQuery, err, "SQL校验失败")
	}
	resolved, err := s.resolve(ctx, d)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("dataset:%s:sql:%s", id, query.HashSQL(rawSQL))
	limit := s.compiler.NormalizeLimit(s.cfg.MaxLimit)
	return s.runQuery(ctx, id, key, resolved, func(dialect query.Dialect) (string, []any, error) {
		return s.compiler.CompilePreview(&query.Source{SQL: rawSQL}, limit, dialect)
	})
}

// Ask 自然语言查询：抽取意图、校验、编译后与 Query 共用缓存
func (s *Service) Ask(ctx context.Context, userID, id, question string) (*AskResult, error) {
	if s.pipeline == nil {
		return nil, errors.New(errors.ErrIntentNotConfigured, "自然语言查询未配置")
	}
	d, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	ext, err := s.pipeline.ExtractIntent(ctx, question, d.Fields)
	if err != nil {
		return nil, errors.Wrap(errors.ErrOperationFailed, err, "意图解析失败")
	}
	validation := s.pipeline.ValidateIntent(&ext.Intent, d.Fields)
	out := &AskResult{Extraction: ext, Validation: validation}
	if !validation.Valid {
		return out, nil
	}

	resolved, err := s.resolve(ctx, d)
	if err != nil {
		return nil, err
	}
	spec := ext.Intent.Spec()
	spec.Limit = s.compiler.NormalizeLimit(spec.Limit)
	key, err := query.CacheKey(id, spec)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidQuery, err, "查询参数无法序列化")
	}

	// DSL 与方言无关，先用通用方言编译一次以便在缓存命中时也能返回
	translation, err := s.pipeline.IntentToSQL(&ext.Intent, resolved.source, d.Fields, query.DialectGeneric)
	if err != nil {
		return nil, compileError(err)
	}
	out.DSL = translation.DSL

	intentCopy := ext.Intent
	result, err := s.runQuery(ctx, id, key, resolved, func(dialect query.Dialect) (string, []any, error) {
		tr, err := s.pipeline.IntentToSQL(&intentCopy, resolved.source, d.Fields, dialect)
		if err != nil {
			return "", nil, err
		}
		return tr.SQL, tr.Args, nil
	})
	if err != nil {
		return nil, err
	}
	out.Result = result
	out.SQL = result.SQL
	return out, nil
}

// runQuery 在缓存中执行编译好的查询；数据源错误转为带错误信息的空结果
func (s *Service) runQuery(ctx context.Context, id, key string, resolved *resolvedSource,
	compile func(query.Dialect) (string, []any, error)) (*schema.QueryResult, error) {

	result, err := cache.Fetch(ctx, s.store, key, s.cfg.QueryTTL, resolved.tags(dscommon.TagQuery),
		func(ctx context.Context) (*schema.QueryResult, error) {
			var (
				cfg *datasource.Config
				err error
			)
			if cfg, err = s.datasource(ctx, resolved.datasourceID); err != nil {
				return nil, err
			}
			sql, args, err := compile(query.DialectFor(cfg.DBType))
			if err != nil {
				return nil, compileError(err)
			}

			start := time.Now()
			res, err := s.execute(ctx, cfg, sql, args)
			if err != nil {
				return nil, err
			}
			g.Log().Debugf(ctx, "dataset %s query executed in %s: %s", id, time.Since(start), sql)
			return &schema.QueryResult{
				Data:          res.Data,
				Columns:       res.Columns,
				Total:         res.Total,
				ExecutionTime: time.Since(start).Milliseconds(),
				SQL:           sql,
			}, nil
		})
	if err != nil {
		if recoverable(err) {
			g.Log().Warningf(ctx, "查询数据集 %s 失败: %v", id, err)
			return &schema.QueryResult{
				Data:    []map[string]any{},
				Columns: []schema.ColumnMeta{},
				Errors:  []string{err.Error()},
			}, nil
		}
		return nil, err
	}
	return result, nil
}
