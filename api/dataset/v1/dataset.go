package v1

import (
	"github.com/gogf/gf/v2/frame/g"

	"github.com/Malowking/dsquery/dataset/datasource"
	"github.com/Malowking/dsquery/dataset/intent"
	"github.com/Malowking/dsquery/pkg/schema"
)

// ============ 数据集管理接口 ============

// DatasetCreateReq 创建数据集请求
type DatasetCreateReq struct {
	g.Meta      `path:"/v1/datasets" method:"post" tags:"dataset" summary:"创建数据集"`
	Name        string              `json:"name" v:"required#数据集名称不能为空"`
	DisplayName string              `json:"display_name"`
	Description string              `json:"description"`
	Category    string              `json:"category"`
	Tags        []string            `json:"tags"`
	Type        string              `json:"type" v:"required|in:table,sql,view#数据集类型不能为空|数据集类型只能是table、sql或view"`
	Source      schema.SourceConfig `json:"source"`
	Fields      []schema.Field      `json:"fields"` // 可选，为空时由后台推断
	Permissions []schema.Permission `json:"permissions"`
}

// DatasetCreateRes 创建数据集响应，字段推断在后台进行
type DatasetCreateRes struct {
	Dataset *schema.Dataset `json:"dataset"`
}

// DatasetSearchReq 检索数据集请求
type DatasetSearchReq struct {
	g.Meta    `path:"/v1/datasets" method:"get" tags:"dataset" summary:"检索数据集"`
	Keyword   string   `json:"keyword"`
	Category  string   `json:"category"`
	Type      string   `json:"type"`
	Tags      []string `json:"tags"`
	Page      int      `json:"page" v:"min:1#页码必须大于0" d:"1"`
	PageSize  int      `json:"page_size" v:"between:1,100#每页数量必须在1-100之间" d:"20"`
	SortBy    string   `json:"sort_by" v:"in:name,created_at,updated_at"`
	SortOrder string   `json:"sort_order" v:"in:asc,desc" d:"desc"`
}

// DatasetSearchRes 检索数据集响应
type DatasetSearchRes struct {
	Datasets   []*schema.Dataset `json:"datasets"`
	Pagination Pagination        `json:"pagination"`
	Filters    Facets            `json:"filters"`
}

// Pagination 分页信息
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// Facets 当前用户可见数据集的可选过滤值
type Facets struct {
	Categories []string `json:"categories"`
	Types      []string `json:"types"`
	Tags       []string `json:"tags"`
}

// DatasetGetReq 获取数据集请求
type DatasetGetReq struct {
	g.Meta `path:"/v1/datasets/:id" method:"get" tags:"dataset" summary:"获取数据集详情"`
	ID     string `json:"id" in:"path" v:"required#数据集ID不能为空"`
}

// DatasetGetRes 获取数据集响应
type DatasetGetRes struct {
	Dataset *schema.Dataset `json:"dataset"`
}

// DatasetUpdateReq 更新数据集请求，未提供的字段不修改
type DatasetUpdateReq struct {
	g.Meta      `path:"/v1/datasets/:id" method:"put" tags:"dataset" summary:"更新数据集"`
	ID          string               `json:"id" in:"path" v:"required#数据集ID不能为空"`
	Name        *string              `json:"name"`
	DisplayName *string              `json:"display_name"`
	Description *string              `json:"description"`
	Category    *string              `json:"category"`
	Tags        *[]string            `json:"tags"`
	Source      *schema.SourceConfig `json:"source"`
	Fields      *[]schema.Field      `json:"fields"`
	Permissions *[]schema.Permission `json:"permissions"` // 仅所有者可修改
}

// DatasetUpdateRes 更新数据集响应
type DatasetUpdateRes struct {
	Dataset *schema.Dataset `json:"dataset"`
}

// DatasetDeleteReq 删除数据集请求
type DatasetDeleteReq struct {
	g.Meta `path:"/v1/datasets/:id" method:"delete" tags:"dataset" summary:"删除数据集"`
	ID     string `json:"id" in:"path" v:"required#数据集ID不能为空"`
}

// DatasetDeleteRes 删除数据集响应
type DatasetDeleteRes struct {
	Message string `json:"message"`
}

// ============ 数据查询接口 ============

// DatasetPreviewReq 预览数据请求
type DatasetPreviewReq struct {
	g.Meta `path:"/v1/datasets/:id/preview" method:"get" tags:"dataset" summary:"预览数据集"`
	ID     string `json:"id" in:"path" v:"required#数据集ID不能为空"`
	Limit  int    `json:"limit" v:"between:1,1000#预览行数必须在1-1000之间" d:"100"`
}

// DatasetPreviewRes 预览数据响应，执行失败时 rows 为空且 errors 非空
type DatasetPreviewRes struct {
	*schema.PreviewResult
}

// DatasetQueryReq 结构化查询请求
type DatasetQueryReq struct {
	g.Meta     `path:"/v1/datasets/:id/query" method:"post" tags:"dataset" summary:"结构化查询"`
	ID         string          `json:"id" in:"path" v:"required#数据集ID不能为空"`
	Measures   []string        `json:"measures"`
	Dimensions []string        `json:"dimensions"`
	Filters    []schema.Filter `json:"filters"`
	Limit      int             `json:"limit" v:"min:0#limit不能为负数"`
}

// DatasetQueryRes 查询结果
type DatasetQueryRes struct {
	*schema.QueryResult
}

// DatasetQuerySQLReq 只读SQL查询请求
type DatasetQuerySQLReq struct {
	g.Meta `path:"/v1/datasets/:id/sql" method:"post" tags:"dataset" summary:"执行只读SQL"`
	ID     string `json:"id" in:"path" v:"required#数据集ID不能为空"`
	SQL    string `json:"sql" v:"required#SQL不能为空"`
}

// DatasetQuerySQLRes 查询结果
type DatasetQuerySQLRes struct {
	*schema.QueryResult
}

// DatasetAskReq 自然语言查询请求
type DatasetAskReq struct {
	g.Meta   `path:"/v1/datasets/:id/ask" method:"post" tags:"dataset" summary:"自然语言查询"`
	ID       string `json:"id" in:"path" v:"required#数据集ID不能为空"`
	Question string `json:"question" v:"required#问题不能为空"`
}

// DatasetAskRes 自然语言查询响应；意图校验未通过时没有 result
type DatasetAskRes struct {
	Extraction *intent.Extraction  `json:"extraction"`
	Validation *intent.Validation  `json:"validation"`
	DSL        string              `json:"dsl,omitempty"`
	SQL        string              `json:"sql,omitempty"`
	Result     *schema.QueryResult `json:"result,omitempty"`
}

// ============ 字段分析接口 ============

// DatasetAnalyzeReq 重新分析字段请求
type DatasetAnalyzeReq struct {
	g.Meta `path:"/v1/datasets/:id/analyze" method:"post" tags:"dataset" summary:"重新推断字段"`
	ID     string `json:"id" in:"path" v:"required#数据集ID不能为空"`
}

// DatasetAnalyzeRes 重新分析字段响应
type DatasetAnalyzeRes struct {
	Status string `json:"status"`
}

// DatasetAnalysisStatusReq 分析进度请求
type DatasetAnalysisStatusReq struct {
	g.Meta `path:"/v1/datasets/:id/analysis" method:"get" tags:"dataset" summary:"获取字段分析进度"`
	ID     string `json:"id" in:"path" v:"required#数据集ID不能为空"`
}

// DatasetAnalysisStatusRes 分析进度响应
type DatasetAnalysisStatusRes struct {
	DatasetID   string `json:"dataset_id"`
	Status      string `json:"status"` // pending, running, success, failed
	Progress    int    `json:"progress"`
	CurrentStep string `json:"current_step"`
	Error       string `json:"error,omitempty"`
}

// ============ 数据源接口 ============

// DataSourceCreateReq 创建数据源请求
type DataSourceCreateReq struct {
	g.Meta   `path:"/v1/datasources" method:"post" tags:"datasource" summary:"创建数据源"`
	Name     string `json:"name" v:"required#数据源名称不能为空"`
	DBType   string `json:"db_type" v:"required|in:postgresql,mysql,sqlserver,sqlite#数据库类型不能为空|不支持的数据库类型"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	Username string `json:"username"`
	Password string `json:"password"`
	SSLMode  string `json:"ssl_mode"`
	Path     string `json:"path"` // sqlite 文件路径
}

// DataSourceCreateRes 创建数据源响应
type DataSourceCreateRes struct {
	DataSource *datasource.Config `json:"datasource"`
}

// DataSourceListReq 列出数据源请求
type DataSourceListReq struct {
	g.Meta `path:"/v1/datasources" method:"get" tags:"datasource" summary:"获取当前用户的数据源"`
}

// DataSourceListRes 列出数据源响应，不包含密码
type DataSourceListRes struct {
	List []*datasource.Config `json:"list"`
}

// DataSourceTestReq 测试数据源连接请求
type DataSourceTestReq struct {
	g.Meta `path:"/v1/datasources/:id/test" method:"post" tags:"datasource" summary:"测试数据源连接"`
	ID     string `json:"id" in:"path" v:"required#数据源ID不能为空"`
}

// DataSourceTestRes 测试数据源连接响应
type DataSourceTestRes struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
