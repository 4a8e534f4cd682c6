package query

import (
	"fmt"
	"reflect"

	"github.com/Malowking/dsquery/dataset/common"
	"github.com/Malowking/dsquery/dataset/inference"
	"github.com/Malowking/dsquery/pkg/schema"
)

// Source 编译用的数据来源，三选一：
//   - Table 非空：物理表，Schema 可选
//   - SQL 非空：保存的SQL，作为子查询
//   - Base 非空：视图，基于 Base 并附加 Filters
type Source struct {
	Schema  string
	Table   string
	SQL     string
	Base    *Source
	Filters []schema.Filter
}

var operators = map[schema.FilterOperator]struct {
	sql  string
	kind predicateKind
}{
	schema.OpEquals:         {"=", predCompare},
	schema.OpNotEquals:      {"!=", predCompare},
	schema.OpGreaterThan:    {">", predCompare},
	schema.OpLessThan:       {"<", predCompare},
	schema.OpGreaterOrEqual: {">=", predCompare},
	schema.OpLessOrEqual:    {"<=", predCompare},
	schema.OpContains:       {"LIKE", predLike},
	schema.OpIn:             {"IN", predIn},
	schema.OpNotIn:          {"NOT IN", predIn},
}

// Compiler 结构化查询编译器，无状态，可并发使用
type Compiler struct {
	defaultLimit int
	maxLimit     int
}

// NewCompiler 创建编译器，limit<=0 时使用 defaultLimit，超过 maxLimit 时截断
func NewCompiler(defaultLimit, maxLimit int) *Compiler {
	if defaultLimit <= 0 {
		defaultLimit = common.DefaultQueryLimit
	}
	if maxLimit <= 0 {
		maxLimit = common.MaxQueryLimit
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	return &Compiler{defaultLimit: defaultLimit, maxLimit: maxLimit}
}

// NormalizeLimit applies the default and the cap.
func (c *Compiler) NormalizeLimit(limit int) int {
	if limit <= 0 {
		return c.defaultLimit
	}
	if limit > c.maxLimit {
		return c.maxLimit
	}
	return limit
}

// Compile turns spec into SQL for src. Field references may be column names
// or display names; unknown names are used as-is and measures default to SUM.
func (c *Compiler) Compile(src *Source, spec schema.QuerySpec, fields []schema.Field, d Dialect) (string, []any, error) {
	stmt, err := c.Build(src, spec, fields)
	if err != nil {
		return "", nil, err
	}
	sql, args := stmt.Render(d)
	return sql, args, nil
}

// Build constructs the statement tree without rendering it.
func (c *Compiler) Build(src *Source, spec schema.QuerySpec, fields []schema.Field) (*Statement, error) {
	from, err := buildFrom(src, 0)
	if err != nil {
		return nil, err
	}

	lookup := inference.NewFieldLookup(fields)
	byName := make(map[string]schema.Field, len(fields))
	for _, f := range fields {
		byName[f.Name] = f
	}
	resolve := func(ref string) (string, error) {
		name, ok := lookup.Resolve(ref)
		if !ok {
			name = ref
		}
		return name, validIdent(name)
	}

	stmt := &Statement{from: from}

	dims := make([]string, 0, len(spec.Dimensions))
	for _, ref := range spec.Dimensions {
		name, err := resolve(ref)
		if err != nil {
			return nil, err
		}
		dims = append(dims, name)
		stmt.items = append(stmt.items, selectItem{column: name})
	}

	measures := make([]string, 0, len(spec.Measures))
	for _, ref := range spec.Measures {
		name, err := resolve(ref)
		if err != nil {
			return nil, err
		}
		agg := schema.AggregationSum
		if f, ok := byName[name]; ok && f.AggregationType.Valid() {
			agg = f.AggregationType
		}
		measures = append(measures, name)
		stmt.items = append(stmt.items, selectItem{column: name, agg: string(agg), alias: name})
	}

	stmt.where, err = buildPredicates(spec.Filters, resolve)
	if err != nil {
		return nil, err
	}

	if len(dims) > 0 {
		stmt.groupBy = dims
	}
	switch {
	case len(measures) > 0:
		stmt.orderBy = []orderItem{{expr: measures[0], desc: true}}
	case len(dims) > 0:
		stmt.orderBy = []orderItem{{expr: dims[0]}}
	}

	limit := c.NormalizeLimit(spec.Limit)
	stmt.limit = &limit
	return stmt, nil
}

// CompilePreview 生成 SELECT * ... LIMIT n，limit 由调用方规整
func (c *Compiler) CompilePreview(src *Source, limit int, d Dialect) (string, []any, error) {
	from, err := buildFrom(src, 0)
	if err != nil {
		return "", nil, err
	}
	stmt := &Statement{from: from, limit: &limit}
	sql, args := stmt.Render(d)
	return sql, args, nil
}

// CompileCount 生成 SELECT COUNT(*) AS total ...
func (c *Compiler) CompileCount(src *Source, d Dialect) (string, []any, error) {
	from, err := buildFrom(src, 0)
	if err != nil {
		return "", nil, err
	}
	stmt := &Statement{from: from, count: true}
	sql, args := stmt.Render(d)
	return sql, args, nil
}

func buildFrom(src *Source, depth int) (fromNode, error) {
	if src == nil {
		return nil, ErrEmptySource
	}
	if depth > common.MaxViewDepth {
		return nil, ErrViewTooDeep
	}
	switch {
	case src.Base != nil:
		base, err := buildFrom(src.Base, depth+1)
		if err != nil {
			return nil, err
		}
		where, err := buildPredicates(src.Filters, func(ref string) (string, error) {
			return ref, validIdent(ref)
		})
		if err != nil {
			return nil, err
		}
		return viewNode{base: base, where: where}, nil
	case src.SQL != "":
		return subqueryNode{sql: src.SQL}, nil
	case src.Table != "":
		path := src.Table
		if src.Schema != "" {
			path = src.Schema + "." + src.Table
		}
		if err := validPath(path); err != nil {
			return nil, err
		}
		return tableNode{path: path}, nil
	}
	return nil, ErrEmptySource
}

func buildPredicates(filters []schema.Filter, resolve func(string) (string, error)) ([]predicate, error) {
	preds := make([]predicate, 0, len(filters))
	for _, f := range filters {
		op, ok := operators[f.Operator]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedOperator, f.Operator)
		}
		column, err := resolve(f.Field)
		if err != nil {
			return nil, err
		}

		p := predicate{kind: op.kind, column: column, op: op.sql}
		switch op.kind {
		case predIn:
			values := listValues(f.Value)
			if len(values) == 0 {
				continue
			}
			p.args = values
		case predLike:
			if isList(f.Value) || f.Value == nil {
				return nil, fmt.Errorf("%w: %s 需要单个值", ErrInvalidFilterValue, f.Operator)
			}
			// 通配符在渲染时按方言转义
			p.args = []any{fmt.Sprint(f.Value)}
		default:
			if isList(f.Value) {
				return nil, fmt.Errorf("%w: %s 需要单个值", ErrInvalidFilterValue, f.Operator)
			}
			p.args = []any{f.Value}
		}
		preds = append(preds, p)
	}
	return preds, nil
}

func isList(v any) bool {
	if v == nil {
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

// listValues flattens a slice value; a scalar becomes a one-element list.
func listValues(v any) []any {
	if v == nil {
		return nil
	}
	if !isList(v) {
		return []any{v}
	}
	rv := reflect.ValueOf(v)
	out := make([]any, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out = append(out, rv.Index(i).Interface())
	}
	return out
}
