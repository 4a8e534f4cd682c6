package errors

// ErrCode 业务错误码类型
type ErrCode int

const (
	// 通用错误 1000-1999
	ErrInvalidParameter ErrCode = 1001 // 参数错误
	ErrUnauthorized     ErrCode = 1002 // 未授权
	ErrInternalError    ErrCode = 1003 // 内部错误
	ErrNotFound         ErrCode = 1004 // 资源未找到
	ErrAlreadyExists    ErrCode = 1005 // 资源已存在
	ErrOperationFailed  ErrCode = 1006 // 操作失败
	ErrPermissionDenied ErrCode = 1007 // 权限不足

	// 数据集相关 3000-3999
	ErrDatasetNotFound        ErrCode = 3001 // 数据集未找到
	ErrDataSourceNotFound     ErrCode = 3002 // 数据源未找到
	ErrUnsupportedDatasetType ErrCode = 3003 // 不支持的数据集类型
	ErrInvalidQuery           ErrCode = 3004 // 查询参数无效
	ErrInferenceFailed        ErrCode = 3005 // 字段推断失败
	ErrIntentNotConfigured    ErrCode = 3006 // 意图解析未配置

	// 数据库相关 6000-6999
	ErrDatabaseQuery   ErrCode = 6001 // 数据库查询失败
	ErrDatabaseInsert  ErrCode = 6002 // 数据库插入失败
	ErrDatabaseUpdate  ErrCode = 6003 // 数据库更新失败
	ErrDatabaseDelete  ErrCode = 6004 // 数据库删除失败
	ErrDatabaseInit    ErrCode = 6005 // 数据库初始化失败
	ErrSourceExecution ErrCode = 6006 // 数据源执行失败
)

// HTTPStatusCode 返回错误码对应的HTTP状态码
func (e ErrCode) HTTPStatusCode() int {
	switch {
	case e >= 1001 && e <= 1999:
		switch e {
		case ErrInvalidParameter:
			return 400
		case ErrUnauthorized:
			return 401
		case ErrPermissionDenied:
			return 403
		case ErrNotFound:
			return 404
		case ErrAlreadyExists:
			return 409
		default:
			return 500
		}
	case e >= 3000 && e <= 3999:
		switch e {
		case ErrDatasetNotFound, ErrDataSourceNotFound:
			return 404
		case ErrUnsupportedDatasetType, ErrInvalidQuery:
			return 400
		case ErrIntentNotConfigured:
			return 501
		default:
			return 500
		}
	case e == ErrSourceExecution:
		return 502
	default:
		return 500
	}
}
