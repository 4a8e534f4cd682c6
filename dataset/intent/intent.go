package intent

import (
	"context"
	"errors"

	"github.com/Malowking/dsquery/dataset/query"
	"github.com/Malowking/dsquery/pkg/schema"
)

// ErrNotConfigured 未配置对话模型
var ErrNotConfigured = errors.New("自然语言查询未配置")

// Intent 从自然语言中抽取的结构化查询意图
type Intent struct {
	Measures   []string        `json:"measures"`
	Dimensions []string        `json:"dimensions"`
	Filters    []schema.Filter `json:"filters"`
	Limit      int             `json:"limit"`
}

// Spec converts the intent into a query specification.
func (i *Intent) Spec() schema.QuerySpec {
	return schema.QuerySpec{
		Measures:   i.Measures,
		Dimensions: i.Dimensions,
		Filters:    i.Filters,
		Limit:      i.Limit,
	}
}

// Extraction extractIntent 的结果
type Extraction struct {
	Intent      Intent   `json:"intent"`
	Confidence  float64  `json:"confidence"`
	Explanation string   `json:"explanation"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Validation validateIntent 的结果
type Validation struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// Translation intentToSQL 的结果，SQL 中的取值全部在 Args 中
type Translation struct {
	DSL  string
	SQL  string
	Args []any
}

// Pipeline 自然语言意图管道
type Pipeline interface {
	ExtractIntent(ctx context.Context, question string, fields []schema.Field) (*Extraction, error)
	ValidateIntent(intent *Intent, fields []schema.Field) *Validation
	IntentToSQL(intent *Intent, src *query.Source, fields []schema.Field, dialect query.Dialect) (*Translation, error)
}
