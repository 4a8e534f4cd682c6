package schema

// FilterOperator 过滤运算符
type FilterOperator string

const (
	OpEquals         FilterOperator = "equals"
	OpNotEquals      FilterOperator = "not_equals"
	OpGreaterThan    FilterOperator = "greater_than"
	OpLessThan       FilterOperator = "less_than"
	OpGreaterOrEqual FilterOperator = "greater_or_equal"
	OpLessOrEqual    FilterOperator = "less_or_equal"
	OpContains       FilterOperator = "contains"
	OpIn             FilterOperator = "in"
	OpNotIn          FilterOperator = "not_in"
)

// Filter 查询过滤条件
type Filter struct {
	Field    string         `json:"field"`
	Operator FilterOperator `json:"operator"`
	Value    any            `json:"value"`
}

// QuerySpec 结构化查询
type QuerySpec struct {
	Measures   []string `json:"measures"`
	Dimensions []string `json:"dimensions"`
	Filters    []Filter `json:"filters"`
	Limit      int      `json:"limit"`
}

// ColumnMeta 结果列信息
type ColumnMeta struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// QueryResult 查询结果，执行失败时 Data 为空且 Errors 非空
type QueryResult struct {
	Data          []map[string]any `json:"data"`
	Columns       []ColumnMeta     `json:"columns"`
	Total         int              `json:"total"`
	ExecutionTime int64            `json:"execution_time"` // 毫秒
	SQL           string           `json:"sql,omitempty"`
	Errors        []string         `json:"errors,omitempty"`
}

// PreviewResult 预览结果，执行失败时 Rows 为空且 Errors 非空
type PreviewResult struct {
	Columns       []ColumnMeta     `json:"columns"`
	Rows          []map[string]any `json:"rows"`
	TotalCount    int              `json:"total_count"`
	ExecutionTime int64            `json:"execution_time"` // 毫秒
	Errors        []string         `json:"errors,omitempty"`
}
