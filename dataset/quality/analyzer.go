package quality

import (
	"fmt"
	"math"

	"github.com/Malowking/dsquery/dataset/inference"
	"github.com/Malowking/dsquery/pkg/schema"
)

// 严重程度阈值（缺失百分比）
const (
	highMissingPercent   = 50.0
	mediumMissingPercent = 20.0
)

// penalty 每种严重程度的扣分系数与上限
var penalty = map[schema.Severity]struct{ factor, limit float64 }{
	schema.SeverityHigh:   {0.8, 30},
	schema.SeverityMedium: {0.5, 20},
	schema.SeverityLow:    {0.2, 10},
}

// Report 质量分析结果
type Report struct {
	Score  int
	Issues []schema.QualityIssue
}

// Analyzer 数据质量分析器
type Analyzer struct{}

// NewAnalyzer 创建数据质量分析器
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze scans the sample rows field by field. Calculated fields have no
// source column and are skipped.
func (a *Analyzer) Analyze(fields []schema.Field, rows []map[string]any) Report {
	issues := make([]schema.QualityIssue, 0)
	total := len(rows)
	if total == 0 {
		return Report{Score: 100, Issues: issues}
	}

	for _, f := range fields {
		if f.FieldType == schema.FieldTypeCalculated {
			continue
		}

		missing := 0
		var seen map[string]struct{}
		duplicates := 0
		if f.IsPrimaryKey {
			seen = make(map[string]struct{}, total)
		}

		for _, row := range rows {
			v := row[f.Name]
			if inference.IsNull(v) {
				missing++
				continue
			}
			if seen != nil {
				k := fmt.Sprintf("%T:%v", v, v)
				if _, dup := seen[k]; dup {
					duplicates++
				} else {
					seen[k] = struct{}{}
				}
			}
		}

		if missing > 0 {
			pct := percentage(missing, total)
			issues = append(issues, schema.QualityIssue{
				Type:        schema.IssueMissingValues,
				Field:       f.Name,
				Count:       missing,
				Percentage:  pct,
				Severity:    missingSeverity(pct),
				Description: fmt.Sprintf("字段 %s 存在 %d 个缺失值 (%.2f%%)", f.Name, missing, pct),
			})
		}
		if duplicates > 0 {
			pct := percentage(duplicates, total)
			issues = append(issues, schema.QualityIssue{
				Type:        schema.IssueDuplicateRecords,
				Field:       f.Name,
				Count:       duplicates,
				Percentage:  pct,
				Severity:    schema.SeverityHigh,
				Description: fmt.Sprintf("主键字段 %s 存在 %d 个重复值", f.Name, duplicates),
			})
		}
	}

	return Report{Score: Score(issues), Issues: issues}
}

// Score 计算质量分数：从100开始按问题扣分，最低为0，四舍五入取整
func Score(issues []schema.QualityIssue) int {
	score := 100.0
	for _, issue := range issues {
		p, ok := penalty[issue.Severity]
		if !ok {
			continue
		}
		score -= math.Min(issue.Percentage*p.factor, p.limit)
	}
	if score < 0 {
		score = 0
	}
	return int(math.Round(score))
}

func missingSeverity(pct float64) schema.Severity {
	switch {
	case pct > highMissingPercent:
		return schema.SeverityHigh
	case pct > mediumMissingPercent:
		return schema.SeverityMedium
	default:
		return schema.SeverityLow
	}
}

func percentage(count, total int) float64 {
	return math.Round(float64(count)/float64(total)*10000) / 100
}
