package common

import "time"

// 支持的数据源数据库类型
const (
	DBTypePostgreSQL = "postgresql"
	DBTypeMySQL      = "mysql"
	DBTypeSQLServer  = "sqlserver"
	DBTypeSQLite     = "sqlite"
)

// 默认查询限制
const (
	DefaultQueryLimit   = 1000
	MaxQueryLimit       = 10000
	DefaultPreviewLimit = 100
	MaxPreviewLimit     = 1000
	QueryTimeout        = 30 * time.Second
)

// 推断相关
const (
	SampleSize       = 1000 // 推断采样行数
	TypeSniffLimit   = 100  // 类型判断使用的非空值数量
	SampleValueLimit = 5    // 每个字段保留的示例值数量
	MaxViewDepth     = 8    // 视图嵌套最大深度
	PlaceholderField = "placeholder"
)

// 缓存TTL
const (
	DatasetCacheTTL = 10 * time.Minute
	PreviewCacheTTL = 5 * time.Minute
	QueryCacheTTL   = 3 * time.Minute
)

// 缓存标签
const (
	TagPreview       = "preview"
	TagQuery         = "query"
	TagDatasetPrefix = "dataset:"
	TagUserPrefix    = "user:"
)

// DatasetTag 数据集缓存标签
func DatasetTag(id string) string {
	return TagDatasetPrefix + id
}

// UserTag 用户缓存标签
func UserTag(userID string) string {
	return TagUserPrefix + userID
}

// 任务状态
const (
	TaskStatusPending = "pending"
	TaskStatusRunning = "running"
	TaskStatusSuccess = "success"
	TaskStatusFailed  = "failed"
)
