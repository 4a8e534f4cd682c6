package inference

import (
	"github.com/Malowking/dsquery/dataset/common"
	"github.com/Malowking/dsquery/pkg/schema"
)

// 合并优先级（existing 为用户已保存字段，inferred 为本次推断结果）：
//
//	DisplayName, Description, FieldType,
//	AggregationType, DimensionLevel,
//	Expression, Format                 existing，为空时取 inferred
//	Hidden, IsPrimaryKey               existing
//	Type, IsNullable, SampleValues     inferred
//
// 合并后按角色重新规整：度量缺聚合方式时按列名补默认值，维度缺层级时按规则补，
// 并清除与角色不符的属性。

// Merge merges freshly inferred fields into the existing ones by name.
// Output follows the inferred column order. Existing calculated fields are
// appended after it; other existing fields whose column disappeared are dropped.
func Merge(existing, inferred []schema.Field) []schema.Field {
	byName := make(map[string]schema.Field, len(existing))
	for _, f := range existing {
		byName[f.Name] = f
	}

	merged := make([]schema.Field, 0, len(inferred))
	seen := make(map[string]struct{}, len(inferred))
	for _, inf := range inferred {
		seen[inf.Name] = struct{}{}
		if ex, ok := byName[inf.Name]; ok {
			merged = append(merged, MergeField(ex, inf))
		} else {
			merged = append(merged, inf)
		}
	}

	for _, ex := range existing {
		if _, ok := seen[ex.Name]; ok {
			continue
		}
		if ex.FieldType == schema.FieldTypeCalculated && ex.Name != common.PlaceholderField {
			merged = append(merged, ex)
		}
	}
	return merged
}

// MergeField applies the precedence table to one pair of fields with the same name.
func MergeField(existing, inferred schema.Field) schema.Field {
	out := schema.Field{
		Name:            existing.Name,
		DisplayName:     keep(existing.DisplayName, inferred.DisplayName),
		Description:     keep(existing.Description, inferred.Description),
		FieldType:       keep(existing.FieldType, inferred.FieldType),
		AggregationType: keep(existing.AggregationType, inferred.AggregationType),
		DimensionLevel:  keep(existing.DimensionLevel, inferred.DimensionLevel),
		Expression:      keep(existing.Expression, inferred.Expression),
		Format:          keep(existing.Format, inferred.Format),
		Hidden:          existing.Hidden,
		IsPrimaryKey:    existing.IsPrimaryKey,

		Type:         inferred.Type,
		IsNullable:   inferred.IsNullable,
		SampleValues: inferred.SampleValues,
	}
	Normalize(&out, inferred.Type)
	return out
}

func keep[T ~string](existing, fallback T) T {
	if existing != "" {
		return existing
	}
	return fallback
}

// Normalize makes aggregation and level consistent with the field's role.
func Normalize(f *schema.Field, dataType schema.DataType) {
	p := &columnProfile{name: f.Name, tokens: lowerTokens(f.Name), dataType: dataType}

	switch f.FieldType {
	case schema.FieldTypeMeasure:
		if f.AggregationType == "" {
			f.AggregationType = defaultAggregation(p)
		}
		f.DimensionLevel = ""
	case schema.FieldTypeDimension:
		if f.DimensionLevel == "" {
			f.DimensionLevel = defaultLevel(p)
		}
		f.AggregationType = ""
	default:
		f.AggregationType = ""
		f.DimensionLevel = ""
	}
}
