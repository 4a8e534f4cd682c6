package inference

import (
	"fmt"
	"strings"

	"github.com/Malowking/dsquery/dataset/common"
	"github.com/Malowking/dsquery/pkg/schema"
)

// Engine 字段推断引擎，无状态，可并发使用
type Engine struct {
	sampleSize       int
	sniffLimit       int
	sampleValueLimit int
}

// NewEngine 创建推断引擎
func NewEngine() *Engine {
	return &Engine{
		sampleSize:       common.SampleSize,
		sniffLimit:       common.TypeSniffLimit,
		sampleValueLimit: common.SampleValueLimit,
	}
}

// columnProfile 单列的采样画像，规则函数只读它
type columnProfile struct {
	name          string
	tokens        []string // 小写分词
	values        []any    // 非空值，最多 sniffLimit 个
	hasNull       bool
	dataType      schema.DataType
	distinctRatio float64
}

// Infer returns one field per column, in column order.
func (e *Engine) Infer(columns []string, rows []map[string]any) []schema.Field {
	if len(rows) > e.sampleSize {
		rows = rows[:e.sampleSize]
	}

	fields := make([]schema.Field, 0, len(columns))
	for _, col := range columns {
		values := make([]any, len(rows))
		for i, row := range rows {
			values[i] = row[col]
		}
		fields = append(fields, e.InferColumn(col, values))
	}
	return fields
}

// InferColumn infers a single field from its sampled values.
func (e *Engine) InferColumn(name string, values []any) schema.Field {
	p := e.profile(name, values)

	field := schema.Field{
		Name:         name,
		DisplayName:  DisplayName(name),
		Type:         p.dataType,
		IsNullable:   p.hasNull,
		IsPrimaryKey: strings.EqualFold(name, "id"),
		SampleValues: e.sampleValues(p.values),
	}

	field.FieldType = schema.FieldTypeDimension
	for _, rule := range measureRules {
		if rule.match(p) {
			field.FieldType = schema.FieldTypeMeasure
			break
		}
	}

	if field.FieldType == schema.FieldTypeMeasure {
		field.AggregationType = defaultAggregation(p)
	} else {
		field.DimensionLevel = defaultLevel(p)
	}
	return field
}

func (e *Engine) profile(name string, values []any) *columnProfile {
	p := &columnProfile{
		name:   name,
		tokens: lowerTokens(name),
	}

	for _, v := range values {
		if isNull(v) {
			p.hasNull = true
			continue
		}
		if len(p.values) < e.sniffLimit {
			p.values = append(p.values, v)
		}
	}

	p.dataType = schema.DataTypeString
	for _, rule := range typeRules {
		if rule.match(p.values) {
			p.dataType = rule.dataType
			break
		}
	}

	if len(p.values) > 0 {
		distinct := make(map[string]struct{}, len(p.values))
		for _, v := range p.values {
			distinct[valueKey(v)] = struct{}{}
		}
		p.distinctRatio = float64(len(distinct)) / float64(len(p.values))
	}
	return p
}

func (e *Engine) sampleValues(values []any) []any {
	seen := make(map[string]struct{})
	out := make([]any, 0, e.sampleValueLimit)
	for _, v := range values {
		if len(out) >= e.sampleValueLimit {
			break
		}
		k := valueKey(v)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out
}

func defaultAggregation(p *columnProfile) schema.AggregationType {
	for _, rule := range aggregationRules {
		if rule.lexicon.matches(p) {
			return rule.aggregation
		}
	}
	return schema.AggregationSum
}

func defaultLevel(p *columnProfile) schema.DimensionLevel {
	for _, rule := range levelRules {
		if rule.match(p) {
			return rule.level
		}
	}
	return schema.DimensionCategorical
}

// isNull treats nil and blank strings as missing.
func isNull(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	}
	return false
}

// IsNull is exported for the quality analyzer so both agree on what "missing" means.
func IsNull(v any) bool {
	return isNull(v)
}

func valueKey(v any) string {
	return fmt.Sprintf("%T:%v", v, v)
}
