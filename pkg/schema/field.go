package schema

// DataType 字段数据类型
type DataType string

const (
	DataTypeString  DataType = "string"
	DataTypeNumber  DataType = "number"
	DataTypeDate    DataType = "date"
	DataTypeBoolean DataType = "boolean"
)

// Valid reports whether t is one of the known data types.
func (t DataType) Valid() bool {
	switch t {
	case DataTypeString, DataTypeNumber, DataTypeDate, DataTypeBoolean:
		return true
	}
	return false
}

// FieldType 字段角色
type FieldType string

const (
	FieldTypeDimension  FieldType = "dimension"
	FieldTypeMeasure    FieldType = "measure"
	FieldTypeCalculated FieldType = "calculated"
)

func (t FieldType) Valid() bool {
	switch t {
	case FieldTypeDimension, FieldTypeMeasure, FieldTypeCalculated:
		return true
	}
	return false
}

// AggregationType 度量聚合方式
type AggregationType string

const (
	AggregationSum   AggregationType = "SUM"
	AggregationAvg   AggregationType = "AVG"
	AggregationCount AggregationType = "COUNT"
	AggregationMax   AggregationType = "MAX"
	AggregationMin   AggregationType = "MIN"
)

func (a AggregationType) Valid() bool {
	switch a {
	case AggregationSum, AggregationAvg, AggregationCount, AggregationMax, AggregationMin:
		return true
	}
	return false
}

// DimensionLevel 维度层级
type DimensionLevel string

const (
	DimensionCategorical DimensionLevel = "categorical"
	DimensionOrdinal     DimensionLevel = "ordinal"
	DimensionTemporal    DimensionLevel = "temporal"
)

func (l DimensionLevel) Valid() bool {
	switch l {
	case DimensionCategorical, DimensionOrdinal, DimensionTemporal:
		return true
	}
	return false
}

// Field 数据集字段
type Field struct {
	Name            string          `json:"name"`                       // 源列名，字段唯一标识
	DisplayName     string          `json:"display_name"`               // 展示名称，用户可修改
	Description     string          `json:"description,omitempty"`      // 描述
	Type            DataType        `json:"type"`                       // 数据类型
	FieldType       FieldType       `json:"field_type"`                 // 维度/度量/计算字段
	AggregationType AggregationType `json:"aggregation_type,omitempty"` // 仅度量
	DimensionLevel  DimensionLevel  `json:"dimension_level,omitempty"`  // 仅维度
	IsNullable      bool            `json:"is_nullable"`
	IsPrimaryKey    bool            `json:"is_primary_key"`
	SampleValues    []any           `json:"sample_values,omitempty"`
	Expression      string          `json:"expression,omitempty"` // 计算字段表达式
	Format          string          `json:"format,omitempty"`
	Hidden          bool            `json:"hidden"`
}

// IssueType 质量问题类型
type IssueType string

const (
	IssueMissingValues    IssueType = "missing_values"
	IssueDuplicateRecords IssueType = "duplicate_records"
)

// Severity 严重程度
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// QualityIssue 数据质量问题，每次推断重新生成
type QualityIssue struct {
	Type        IssueType `json:"type"`
	Field       string    `json:"field"`
	Count       int       `json:"count"`
	Percentage  float64   `json:"percentage"`
	Severity    Severity  `json:"severity"`
	Description string    `json:"description"`
}
