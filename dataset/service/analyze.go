package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gogf/gf/v2/frame/g"

	"github.com/Malowking/dsquery/core/errors"
	dscache "github.com/Malowking/dsquery/dataset/cache"
	dscommon "github.com/Malowking/dsquery/dataset/common"
	"github.com/Malowking/dsquery/dataset/datasource"
	"github.com/Malowking/dsquery/dataset/inference"
	"github.com/Malowking/dsquery/dataset/query"
	"github.com/Malowking/dsquery/pkg/schema"
)

// AnalysisStatus 字段分析进度
type AnalysisStatus struct {
	DatasetID   string     `json:"dataset_id"`
	Status      string     `json:"status"`
	Progress    int        `json:"progress"`
	CurrentStep string     `json:"current_step,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// AnalyzeFields 采样数据源，推断字段并评估数据质量。
// 失败时数据集状态置为 error 并记录原因，已有字段保持不变。
func (s *Service) AnalyzeFields(ctx context.Context, id string) error {
	d, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return errors.Wrap(errors.ErrDatabaseQuery, err, "查询数据集失败")
	}
	if d == nil {
		return errors.Newf(errors.ErrDatasetNotFound, "数据集不存在: %s", id)
	}
	g.Log().Infof(ctx, "开始分析数据集字段: id=%s", id)

	s.progress(ctx, id, 10, "解析数据来源")
	resolved, err := s.resolve(ctx, d)
	if err != nil {
		return s.failAnalysis(ctx, id, err)
	}
	cfg, err := s.datasource(ctx, resolved.datasourceID)
	if err != nil {
		return s.failAnalysis(ctx, id, err)
	}
	dialect := query.DialectFor(cfg.DBType)

	s.progress(ctx, id, 30, "采样数据")
	sql, args, err := s.compiler.CompilePreview(resolved.source, s.cfg.SampleSize, dialect)
	if err != nil {
		return s.failAnalysis(ctx, id, compileError(err))
	}
	sample, err := s.execute(ctx, cfg, sql, args)
	if err != nil {
		return s.failAnalysis(ctx, id, err)
	}

	s.progress(ctx, id, 60, "推断字段")
	columns := make([]string, len(sample.Columns))
	for i, c := range sample.Columns {
		columns[i] = c.Name
	}
	inferred := s.engine.Infer(columns, sample.Data)

	recordCount := int64(sample.Total)
	if total, err := s.count(ctx, resolved, cfg); err != nil {
		g.Log().Warningf(ctx, "统计数据集 %s 行数失败，使用采样行数: %v", id, err)
	} else {
		recordCount = total
	}

	s.progress(ctx, id, 80, "评估数据质量")
	now := time.Now()
	status := schema.DatasetStatusActive
	lastError := ""
	patch := &schema.DatasetPatch{
		Metadata: &schema.Metadata{
			RecordCount:   recordCount,
			ColumnCount:   len(columns),
			LastRefreshed: &now,
			DataSize:      estimateSize(sample.Data, recordCount),
		},
		Status:    &status,
		LastError: &lastError,
		// 采样期间用户可能修改过字段，合并必须基于写入时的最新字段
		Refresh: func(cur *schema.Dataset) {
			cur.Fields = inference.Merge(cur.Fields, inferred)
			report := s.analyzer.Analyze(cur.Fields, sample.Data)
			cur.QualityScore = report.Score
			cur.QualityIssues = report.Issues
		},
	}
	updated, err := s.repo.FindOneAndUpdate(ctx, id, patch)
	if err != nil {
		g.Log().Errorf(ctx, "保存字段分析结果失败 %s: %v", id, err)
		return s.failAnalysis(ctx, id, errors.Wrap(errors.ErrDatabaseUpdate, err, "保存分析结果失败"))
	}
	if updated == nil {
		return errors.Newf(errors.ErrDatasetNotFound, "数据集不存在: %s", id)
	}
	s.invalidate(ctx, id)

	if s.tasks != nil {
		if err := s.tasks.MarkSuccess(ctx, id); err != nil {
			g.Log().Warningf(ctx, "更新分析任务状态失败 %s: %v", id, err)
		}
	}
	g.Log().Infof(ctx, "数据集字段分析完成: id=%s, fields=%d, score=%d", id, len(updated.Fields), updated.QualityScore)
	return nil
}

// count 执行 COUNT(*) 查询
func (s *Service) count(ctx context.Context, resolved *resolvedSource, cfg *datasource.Config) (int64, error) {
	sql, args, err := s.compiler.CompileCount(resolved.source, query.DialectFor(cfg.DBType))
	if err != nil {
		return 0, err
	}
	res, err := s.execute(ctx, cfg, sql, args)
	if err != nil {
		return 0, err
	}
	if len(res.Data) == 0 {
		return 0, fmt.Errorf("COUNT 查询没有返回结果")
	}
	return toInt64(res.Data[0]["total"])
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int32:
		return int64(x), nil
	case int:
		return int64(x), nil
	case uint64:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case string:
		return strconv.ParseInt(x, 10, 64)
	}
	return 0, fmt.Errorf("无法识别的行数类型 %T", v)
}

// estimateSize 按采样行的文本长度估算总数据量（字节）
func estimateSize(rows []map[string]any, recordCount int64) int64 {
	if len(rows) == 0 {
		return 0
	}
	var sampleBytes int64
	for _, row := range rows {
		for _, v := range row {
			if v != nil {
				sampleBytes += int64(len(fmt.Sprint(v)))
			}
		}
	}
	return sampleBytes * recordCount / int64(len(rows))
}

// failAnalysis 记录失败状态，不修改字段
func (s *Service) failAnalysis(ctx context.Context, id string, cause error) error {
	msg := cause.Error()
	status := schema.DatasetStatusError
	if _, err := s.repo.FindOneAndUpdate(ctx, id, &schema.DatasetPatch{Status: &status, LastError: &msg}); err != nil {
		g.Log().Errorf(ctx, "保存分析失败状态出错 %s: %v", id, err)
	}
	s.invalidate(ctx, id)

	if s.tasks != nil {
		if err := s.tasks.MarkFailed(ctx, id, msg); err != nil {
			g.Log().Warningf(ctx, "更新分析任务状态失败 %s: %v", id, err)
		}
	}
	return errors.Wrap(errors.ErrInferenceFailed, cause, "字段分析失败")
}

func (s *Service) progress(ctx context.Context, id string, pct int, step string) {
	if s.tasks == nil {
		return
	}
	if err := s.tasks.UpdateProgress(ctx, id, pct, step); err != nil {
		g.Log().Debugf(ctx, "更新分析进度失败 %s: %v", id, err)
	}
}

// AnalysisStatus 查询分析进度；任务记录不存在时按数据集状态推断
func (s *Service) AnalysisStatus(ctx context.Context, userID, id string) (*AnalysisStatus, error) {
	d, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if s.tasks != nil {
		task, err := s.tasks.GetTask(ctx, id)
		switch {
		case err == nil:
			return &AnalysisStatus{
				DatasetID:   id,
				Status:      task.Status,
				Progress:    task.Progress,
				CurrentStep: task.CurrentStep,
				Error:       task.ErrorMsg,
				StartedAt:   &task.StartedAt,
				UpdatedAt:   &task.UpdatedAt,
			}, nil
		case !stderrors.Is(err, dscache.ErrTaskNotFound):
			g.Log().Warningf(ctx, "读取分析任务失败 %s: %v", id, err)
		}
	}

	out := &AnalysisStatus{DatasetID: id, UpdatedAt: &d.UpdatedAt}
	switch d.Status {
	case schema.DatasetStatusActive:
		out.Status, out.Progress = dscommon.TaskStatusSuccess, 100
	case schema.DatasetStatusError:
		out.Status, out.Error = dscommon.TaskStatusFailed, d.LastError
	default:
		out.Status = dscommon.TaskStatusPending
	}
	return out, nil
}
