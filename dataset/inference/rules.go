package inference

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Malowking/dsquery/pkg/schema"
)

// typeRule 类型判断规则，按顺序匹配，第一个命中的生效
type typeRule struct {
	dataType schema.DataType
	match    func(values []any) bool
}

var typeRules = []typeRule{
	{schema.DataTypeBoolean, allOf(isBooleanLike)},
	{schema.DataTypeNumber, moreThan(0.8, isNumeric)},
	{schema.DataTypeDate, moreThan(0.8, isDateLike)},
}

// roleRule 维度/度量判断规则
type roleRule struct {
	name  string
	match func(p *columnProfile) bool
}

// measureRules 任一命中即为度量，否则为维度
var measureRules = []roleRule{
	{"measure-keyword", func(p *columnProfile) bool { return measureLexicon.matches(p) }},
	{"high-cardinality-number", func(p *columnProfile) bool {
		return p.dataType == schema.DataTypeNumber && p.distinctRatio > 0.5
	}},
}

type aggregationRule struct {
	aggregation schema.AggregationType
	lexicon     lexicon
}

var aggregationRules = []aggregationRule{
	{schema.AggregationCount, countLexicon},
	{schema.AggregationSum, sumLexicon},
	{schema.AggregationAvg, avgLexicon},
}

type levelRule struct {
	level schema.DimensionLevel
	match func(p *columnProfile) bool
}

var levelRules = []levelRule{
	{schema.DimensionTemporal, func(p *columnProfile) bool { return p.dataType == schema.DataTypeDate }},
	{schema.DimensionTemporal, func(p *columnProfile) bool { return temporalLexicon.matches(p) }},
	{schema.DimensionOrdinal, func(p *columnProfile) bool { return ordinalLexicon.matches(p) }},
}

// lexicon 关键词表：words 按分词后的整词匹配，cjk 按子串匹配
type lexicon struct {
	words []string
	cjk   []string
}

func (l lexicon) matches(p *columnProfile) bool {
	for _, tok := range p.tokens {
		for _, w := range l.words {
			if tok == w || tok == w+"s" {
				return true
			}
		}
	}
	for _, w := range l.cjk {
		if strings.Contains(p.name, w) {
			return true
		}
	}
	return false
}

var (
	measureLexicon = lexicon{
		words: []string{"count", "sum", "total", "amount", "price", "cost", "revenue", "profit", "quantity", "qty", "rate", "percentage", "percent", "pct"},
		cjk:   []string{"数量", "金额", "总额", "总计", "合计", "价格", "单价", "成本", "收入", "营收", "利润", "比率", "比例", "百分比", "销售额", "次数", "个数", "率"},
	}
	countLexicon = lexicon{
		words: []string{"count", "num", "cnt"},
		cjk:   []string{"次数", "个数", "计数"},
	}
	sumLexicon = lexicon{
		words: []string{"total", "sum", "amount"},
		cjk:   []string{"总额", "总计", "合计", "金额"},
	}
	avgLexicon = lexicon{
		words: []string{"avg", "average", "mean", "rate"},
		cjk:   []string{"平均", "均值", "率"},
	}
	temporalLexicon = lexicon{
		words: []string{"date", "time", "timestamp", "datetime", "year", "month", "day", "week", "quarter", "hour"},
		cjk:   []string{"日期", "时间", "年份", "月份", "季度", "小时", "周次"},
	}
	ordinalLexicon = lexicon{
		words: []string{"level", "grade", "rating", "priority", "rank", "tier"},
		cjk:   []string{"等级", "级别", "评级", "优先级", "排名"},
	}
)

func allOf(pred func(any) bool) func([]any) bool {
	return func(values []any) bool {
		if len(values) == 0 {
			return false
		}
		for _, v := range values {
			if !pred(v) {
				return false
			}
		}
		return true
	}
}

func moreThan(threshold float64, pred func(any) bool) func([]any) bool {
	return func(values []any) bool {
		if len(values) == 0 {
			return false
		}
		hits := 0
		for _, v := range values {
			if pred(v) {
				hits++
			}
		}
		return float64(hits)/float64(len(values)) > threshold
	}
}

func isBooleanLike(v any) bool {
	switch x := v.(type) {
	case bool:
		return true
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "false", "0", "1":
			return true
		}
		return false
	}
	if f, ok := toFloat(v); ok {
		return f == 0 || f == 1
	}
	return false
}

func isNumeric(v any) bool {
	_, ok := toFloat(v)
	return ok
}

// toFloat parses numeric Go values and numeric strings; NaN and Inf are rejected.
func toFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case int:
		f = float64(x)
	case int8:
		f = float64(x)
	case int16:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint:
		f = float64(x)
	case uint8:
		f = float64(x)
	case uint16:
		f = float64(x)
	case uint32:
		f = float64(x)
	case uint64:
		f = float64(x)
	case float32:
		f = float64(x)
	case float64:
		f = x
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	"02-Jan-2006",
	"2006年01月02日",
	"2006年1月2日",
}

func isDateLike(v any) bool {
	switch x := v.(type) {
	case time.Time:
		return !x.IsZero()
	case string:
		s := strings.TrimSpace(x)
		if len(s) <= 8 {
			return false
		}
		for _, layout := range dateLayouts {
			if _, err := time.Parse(layout, s); err == nil {
				return true
			}
		}
	}
	return false
}
