package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Malowking/dsquery/dataset/common"
	"github.com/Malowking/dsquery/pkg/schema"
)

func TestMergeKeepsUserEdits(t *testing.T) {
	existing := []schema.Field{{
		Name:        "revenue",
		DisplayName: "Revenue (¥)",
		FieldType:   schema.FieldTypeMeasure,
		Format:      "currency",
		Hidden:      true,
		Type:        schema.DataTypeString,
	}}
	inferred := NewEngine().Infer([]string{"revenue"}, column("revenue", "a", "a", "b"))
	require.Equal(t, schema.FieldTypeMeasure, inferred[0].FieldType, "revenue is a measure keyword")
	// 模拟推断结果与用户设置不一致
	inferred[0].FieldType = schema.FieldTypeDimension
	inferred[0].AggregationType = ""
	inferred[0].DimensionLevel = schema.DimensionCategorical

	merged := Merge(existing, inferred)
	require.Len(t, merged, 1)
	f := merged[0]

	assert.Equal(t, "Revenue (¥)", f.DisplayName)
	assert.Equal(t, schema.FieldTypeMeasure, f.FieldType)
	assert.Equal(t, schema.AggregationSum, f.AggregationType, "missing aggregation is filled for measures")
	assert.Empty(t, f.DimensionLevel)
	assert.Equal(t, "currency", f.Format)
	assert.True(t, f.Hidden)

	// 类型、可空与示例值总是刷新
	assert.Equal(t, schema.DataTypeString, f.Type)
	assert.Equal(t, []any{"a", "b"}, f.SampleValues)
}

func TestMergeFieldPrecedence(t *testing.T) {
	existing := schema.Field{
		Name:            "status",
		Description:     "订单状态",
		FieldType:       schema.FieldTypeDimension,
		DimensionLevel:  schema.DimensionOrdinal,
		AggregationType: schema.AggregationMax, // 与角色不符，合并后清除
		IsNullable:      false,
		SampleValues:    []any{"old"},
	}
	inferred := schema.Field{
		Name:           "status",
		DisplayName:    "Status",
		Type:           schema.DataTypeString,
		FieldType:      schema.FieldTypeDimension,
		DimensionLevel: schema.DimensionCategorical,
		IsNullable:     true,
		IsPrimaryKey:   true,
		SampleValues:   []any{"paid", "open"},
	}

	f := MergeField(existing, inferred)
	assert.Equal(t, "Status", f.DisplayName, "absent display name falls back to inferred")
	assert.Equal(t, "订单状态", f.Description)
	assert.Equal(t, schema.DimensionOrdinal, f.DimensionLevel)
	assert.Empty(t, f.AggregationType)
	assert.False(t, f.IsPrimaryKey, "existing primary key flag wins")
	assert.True(t, f.IsNullable)
	assert.Equal(t, []any{"paid", "open"}, f.SampleValues)
}

func TestMergeColumnSet(t *testing.T) {
	existing := []schema.Field{
		{Name: common.PlaceholderField, FieldType: schema.FieldTypeDimension},
		{Name: "dropped", FieldType: schema.FieldTypeDimension},
		{Name: "margin", FieldType: schema.FieldTypeCalculated, Expression: "profit / revenue"},
	}
	inferred := []schema.Field{
		{Name: "region", FieldType: schema.FieldTypeDimension, DimensionLevel: schema.DimensionCategorical},
	}

	merged := Merge(existing, inferred)
	names := make([]string, 0, len(merged))
	for _, f := range merged {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"region", "margin"}, names)
}

func TestNormalize(t *testing.T) {
	f := schema.Field{Name: "order_date", FieldType: schema.FieldTypeDimension, AggregationType: schema.AggregationSum}
	Normalize(&f, schema.DataTypeString)
	assert.Equal(t, schema.DimensionTemporal, f.DimensionLevel)
	assert.Empty(t, f.AggregationType)

	c := schema.Field{Name: "x", FieldType: schema.FieldTypeCalculated, DimensionLevel: schema.DimensionOrdinal}
	Normalize(&c, schema.DataTypeNumber)
	assert.Empty(t, c.DimensionLevel)
	assert.Empty(t, c.AggregationType)
}

func TestFieldLookup(t *testing.T) {
	l := NewFieldLookup([]schema.Field{
		{Name: "revenue", DisplayName: "销售额"},
		{Name: "region", DisplayName: "Sales Region"},
		{Name: "Region2", DisplayName: "revenue"}, // 展示名与其他列名冲突时列名优先
	})

	tests := []struct {
		ref  string
		want string
		ok   bool
	}{
		{"revenue", "revenue", true},
		{"销售额", "revenue", true},
		{"sales  region", "region", true},
		{"REGION2", "Region2", true},
		{" Sales Region ", "region", true},
		{"profit", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := l.Resolve(tt.ref)
		assert.Equal(t, tt.ok, ok, tt.ref)
		assert.Equal(t, tt.want, got, tt.ref)
	}
}
