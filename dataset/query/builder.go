package query

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Malowking/dsquery/dataset/common"
)

var (
	ErrInvalidIdentifier   = errors.New("非法的标识符")
	ErrUnsupportedOperator = errors.New("不支持的过滤运算符")
	ErrInvalidFilterValue  = errors.New("非法的过滤值")
	ErrEmptySource         = errors.New("数据来源为空")
	ErrViewTooDeep         = errors.New("视图嵌套层级过深")
)

// Dialect 决定占位符与行数限制的写法
type Dialect int

const (
	DialectGeneric   Dialect = iota // ? / LIMIT ?，适用于 mysql、sqlite
	DialectPostgres                 // $1 / LIMIT $n
	DialectSQLServer                // @p1 / OFFSET 0 ROWS FETCH NEXT @pN ROWS ONLY
)

// DialectFor 根据数据源类型选择方言
func DialectFor(dbType string) Dialect {
	switch strings.ToLower(dbType) {
	case common.DBTypePostgreSQL, "postgres":
		return DialectPostgres
	case common.DBTypeSQLServer, "mssql":
		return DialectSQLServer
	default:
		return DialectGeneric
	}
}

func (d Dialect) String() string {
	switch d {
	case DialectPostgres:
		return "postgres"
	case DialectSQLServer:
		return "sqlserver"
	}
	return "generic"
}

var identPattern = regexp.MustCompile(`^[\p{L}_][\p{L}\p{N}_]*$`)

// validIdent 校验单段标识符，标识符原样输出到SQL中，只能是字母、数字与下划线
func validIdent(s string) error {
	if !identPattern.MatchString(s) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, s)
	}
	return nil
}

// validPath 校验 schema.table 形式的表名
func validPath(s string) error {
	parts := strings.Split(s, ".")
	if len(parts) > 3 {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, s)
	}
	for _, p := range parts {
		if err := validIdent(p); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidIdentifier, s)
		}
	}
	return nil
}

// selectItem SELECT 列，Agg 为空时原样输出列名
type selectItem struct {
	column string
	agg    string
	alias  string
	star   bool
}

// fromNode FROM 子句节点
type fromNode interface {
	render(r *renderer)
}

type tableNode struct{ path string }

func (n tableNode) render(r *renderer) { r.write(n.path) }

// subqueryNode 用户保存的只读SQL，作为子查询 subquery
type subqueryNode struct{ sql string }

func (n subqueryNode) render(r *renderer) {
	r.write("(")
	r.write(strings.TrimRight(strings.TrimSpace(n.sql), ";"))
	r.write(") AS subquery")
}

// viewNode 视图：(SELECT * FROM <base> [WHERE ...]) AS view_query
type viewNode struct {
	base  fromNode
	where []predicate
}

func (n viewNode) render(r *renderer) {
	r.write("(SELECT * FROM ")
	n.base.render(r)
	r.where(n.where)
	r.write(") AS view_query")
}

type predicateKind int

const (
	predCompare predicateKind = iota
	predLike
	predIn
)

// predicate WHERE 条件，取值只能通过 args 绑定
type predicate struct {
	kind   predicateKind
	column string
	op     string
	args   []any
}

type orderItem struct {
	expr string
	desc bool
}

// Statement 查询语句的语法树
type Statement struct {
	items   []selectItem
	from    fromNode
	where   []predicate
	groupBy []string
	orderBy []orderItem
	limit   *int
	count   bool
}

// Render 按方言生成SQL与绑定参数
func (s *Statement) Render(d Dialect) (string, []any) {
	r := &renderer{dialect: d}
	r.write("SELECT ")
	switch {
	case s.count:
		r.write("COUNT(*) AS total")
	case len(s.items) == 0:
		r.write("*")
	default:
		for i, it := range s.items {
			if i > 0 {
				r.write(", ")
			}
			r.selectItem(it)
		}
	}

	r.write(" FROM ")
	s.from.render(r)
	r.where(s.where)

	if len(s.groupBy) > 0 {
		r.write(" GROUP BY ")
		r.write(strings.Join(s.groupBy, ", "))
	}

	orderBy := s.orderBy
	if s.limit != nil && d == DialectSQLServer && len(orderBy) == 0 {
		r.write(" ORDER BY (SELECT NULL)")
	}
	for i, o := range orderBy {
		if i == 0 {
			r.write(" ORDER BY ")
		} else {
			r.write(", ")
		}
		r.write(o.expr)
		if o.desc {
			r.write(" DESC")
		} else {
			r.write(" ASC")
		}
	}

	if s.limit != nil {
		if d == DialectSQLServer {
			r.write(" OFFSET 0 ROWS FETCH NEXT ")
			r.bind(*s.limit)
			r.write(" ROWS ONLY")
		} else {
			r.write(" LIMIT ")
			r.bind(*s.limit)
		}
	}
	return r.sb.String(), r.args
}

type renderer struct {
	dialect Dialect
	sb      strings.Builder
	args    []any
}

func (r *renderer) write(s string) {
	r.sb.WriteString(s)
}

// bind 追加参数并写入对应方言的占位符
func (r *renderer) bind(v any) {
	r.args = append(r.args, v)
	switch r.dialect {
	case DialectPostgres:
		fmt.Fprintf(&r.sb, "$%d", len(r.args))
	case DialectSQLServer:
		fmt.Fprintf(&r.sb, "@p%d", len(r.args))
	default:
		r.sb.WriteByte('?')
	}
}

func (r *renderer) selectItem(it selectItem) {
	if it.star {
		r.write("*")
		return
	}
	if it.agg == "" {
		r.write(it.column)
	} else {
		r.write(it.agg)
		r.write("(")
		r.write(it.column)
		r.write(")")
	}
	if it.alias != "" {
		r.write(" AS ")
		r.write(it.alias)
	}
}

func (r *renderer) where(preds []predicate) {
	for i, p := range preds {
		if i == 0 {
			r.write(" WHERE ")
		} else {
			r.write(" AND ")
		}
		r.write(p.column)
		r.write(" ")
		r.write(p.op)
		r.write(" ")
		switch p.kind {
		case predIn:
			r.write("(")
			for j, a := range p.args {
				if j > 0 {
					r.write(", ")
				}
				r.bind(a)
			}
			r.write(")")
		case predLike:
			r.bind(containsPattern(p.args[0].(string), r.dialect))
			r.write(" ESCAPE '" + likeEscape + "'")
		default:
			r.bind(p.args[0])
		}
	}
}

// likeEscape mysql 字符串字面量会吞掉反斜杠，所以用 !
const likeEscape = "!"

var (
	likeReplacer          = strings.NewReplacer(likeEscape, likeEscape+likeEscape, "%", likeEscape+"%", "_", likeEscape+"_")
	sqlServerLikeReplacer = strings.NewReplacer(likeEscape, likeEscape+likeEscape, "%", likeEscape+"%", "_", likeEscape+"_", "[", likeEscape+"[")
)

// containsPattern 把 contains 的取值转成只做子串匹配的 LIKE 模式
func containsPattern(v string, d Dialect) string {
	if d == DialectSQLServer {
		return "%" + sqlServerLikeReplacer.Replace(v) + "%"
	}
	return "%" + likeReplacer.Replace(v) + "%"
}
