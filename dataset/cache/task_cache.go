package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/Malowking/dsquery/dataset/common"
)

// ErrTaskNotFound 任务不存在或已过期
var ErrTaskNotFound = errors.New("任务不存在或已过期")

// TaskStatus 字段分析任务状态
type TaskStatus struct {
	DatasetID   string    `json:"dataset_id"`
	Status      string    `json:"status"`       // pending, running, success, failed
	Progress    int       `json:"progress"`     // 0-100
	CurrentStep string    `json:"current_step"` // 当前步骤描述
	ErrorMsg    string    `json:"error_msg,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TaskCache Redis 分析任务状态
type TaskCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewTaskCache 创建任务缓存管理器
func NewTaskCache(client redis.UniversalClient) *TaskCache {
	return &TaskCache{
		client: client,
		prefix: "dataset:analysis:",
		ttl:    2 * time.Hour, // 任务2小时后自动过期
	}
}

func (tc *TaskCache) key(datasetID string) string {
	return tc.prefix + datasetID
}

// Start 记录一次新的分析任务
func (tc *TaskCache) Start(ctx context.Context, datasetID string) error {
	now := time.Now()
	return tc.SaveTask(ctx, &TaskStatus{
		DatasetID:   datasetID,
		Status:      common.TaskStatusPending,
		CurrentStep: "等待分析",
		StartedAt:   now,
	})
}

// SaveTask 保存任务状态
func (tc *TaskCache) SaveTask(ctx context.Context, task *TaskStatus) error {
	task.UpdatedAt = time.Now()

	taskJSON, err := sonic.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task failed: %w", err)
	}
	if err := tc.client.Set(ctx, tc.key(task.DatasetID), taskJSON, tc.ttl).Err(); err != nil {
		return fmt.Errorf("save task to redis failed: %w", err)
	}
	return nil
}

// GetTask 获取任务状态
func (tc *TaskCache) GetTask(ctx context.Context, datasetID string) (*TaskStatus, error) {
	taskJSON, err := tc.client.Get(ctx, tc.key(datasetID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task from redis failed: %w", err)
	}

	var task TaskStatus
	if err := sonic.Unmarshal(taskJSON, &task); err != nil {
		return nil, fmt.Errorf("unmarshal task failed: %w", err)
	}
	return &task, nil
}

// UpdateTask 更新任务状态，任务不存在时按新任务处理
func (tc *TaskCache) UpdateTask(ctx context.Context, datasetID string, updateFn func(*TaskStatus)) error {
	task, err := tc.GetTask(ctx, datasetID)
	if errors.Is(err, ErrTaskNotFound) {
		task = &TaskStatus{DatasetID: datasetID, StartedAt: time.Now()}
	} else if err != nil {
		return err
	}

	updateFn(task)
	return tc.SaveTask(ctx, task)
}

// UpdateProgress 更新任务进度
func (tc *TaskCache) UpdateProgress(ctx context.Context, datasetID string, progress int, currentStep string) error {
	return tc.UpdateTask(ctx, datasetID, func(task *TaskStatus) {
		task.Status = common.TaskStatusRunning
		task.Progress = progress
		task.CurrentStep = currentStep
	})
}

// MarkSuccess 标记任务成功
func (tc *TaskCache) MarkSuccess(ctx context.Context, datasetID string) error {
	return tc.UpdateTask(ctx, datasetID, func(task *TaskStatus) {
		task.Status = common.TaskStatusSuccess
		task.Progress = 100
		task.CurrentStep = "完成"
		task.ErrorMsg = ""
	})
}

// MarkFailed 标记任务失败
func (tc *TaskCache) MarkFailed(ctx context.Context, datasetID string, errorMsg string) error {
	return tc.UpdateTask(ctx, datasetID, func(task *TaskStatus) {
		task.Status = common.TaskStatusFailed
		task.ErrorMsg = errorMsg
	})
}

// DeleteTask 删除任务
func (tc *TaskCache) DeleteTask(ctx context.Context, datasetID string) error {
	return tc.client.Del(ctx, tc.key(datasetID)).Err()
}
