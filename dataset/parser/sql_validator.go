package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/xwb1989/sqlparser"
)

var (
	ErrNotReadOnly    = errors.New("SQL语句不是只读操作")
	ErrInvalidSQL     = errors.New("无效的SQL语句")
	ErrUnsafeKeywords = errors.New("SQL包含危险关键字")
	ErrNoFromClause   = errors.New("缺少FROM子句")
	ErrMultiStatement = errors.New("不允许多条SQL语句")
)

// SQLValidator SQL校验器，用于SQL数据集与自然语言生成的SQL
type SQLValidator struct {
	bannedKeywords  *regexp.Regexp
	bannedFunctions map[string]struct{}
}

// NewSQLValidator 创建SQL校验器
func NewSQLValidator() *SQLValidator {
	banned := []string{"INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER", "TRUNCATE", "GRANT", "REVOKE", "EXEC", "EXECUTE", "CALL", "MERGE", "REPLACE INTO", "OUTFILE", "DUMPFILE"}
	return &SQLValidator{
		// 按整词匹配，避免 updated_at 之类的列名误判
		bannedKeywords: regexp.MustCompile(`(?i)\b(` + strings.Join(banned, "|") + `)\b`),
		bannedFunctions: map[string]struct{}{
			"load_file": {}, "sleep": {}, "benchmark": {}, "pg_sleep": {}, "pg_read_file": {},
		},
	}
}

// Validate 校验SQL（默认方法，调用ValidateReadOnly）
func (v *SQLValidator) Validate(sql string) error {
	return v.ValidateReadOnly(sql)
}

// ValidateReadOnly 校验SQL是否只读
func (v *SQLValidator) ValidateReadOnly(sql string) error {
	sql = strings.TrimRight(strings.TrimSpace(sql), ";")
	if sql == "" {
		return fmt.Errorf("%w: 空语句", ErrInvalidSQL)
	}

	// 1. 检查危险关键字（字符串字面量之外的部分）
	if m := v.bannedKeywords.FindString(stripLiterals(sql)); m != "" {
		return fmt.Errorf("%w: %s", ErrUnsafeKeywords, strings.ToUpper(m))
	}

	// 2. 只允许单条语句
	pieces, err := sqlparser.SplitStatementToPieces(sql)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSQL, err)
	}
	if len(pieces) > 1 {
		return ErrMultiStatement
	}

	// 3. 使用sqlparser解析
	stmt, err := sqlparser.Parse(sql)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSQL, err)
	}

	switch s := stmt.(type) {
	case *sqlparser.Select:
		if noFrom(s) {
			return ErrNoFromClause
		}
	case *sqlparser.Union:
	case *sqlparser.ParenSelect:
	default:
		return fmt.Errorf("%w: 只允许SELECT查询", ErrNotReadOnly)
	}

	// 4. 遍历语法树：禁止加锁读与危险函数
	return v.walk(stmt)
}

func (v *SQLValidator) walk(stmt sqlparser.Statement) error {
	var found error
	_ = sqlparser.Walk(func(node sqlparser.SQLNode) (bool, error) {
		switch n := node.(type) {
		case *sqlparser.Select:
			if n.Lock != "" {
				found = fmt.Errorf("%w: %s", ErrNotReadOnly, strings.TrimSpace(n.Lock))
				return false, nil
			}
		case *sqlparser.Union:
			if n.Lock != "" {
				found = fmt.Errorf("%w: %s", ErrNotReadOnly, strings.TrimSpace(n.Lock))
				return false, nil
			}
		case *sqlparser.FuncExpr:
			if _, banned := v.bannedFunctions[n.Name.Lowered()]; banned {
				found = fmt.Errorf("%w: %s", ErrUnsafeKeywords, n.Name.String())
				return false, nil
			}
		}
		return found == nil, nil
	}, stmt)
	return found
}

// ExtractTables 提取SQL中引用的表名（含JOIN与子查询）
func (v *SQLValidator) ExtractTables(sql string) ([]string, error) {
	stmt, err := sqlparser.Parse(strings.TrimRight(strings.TrimSpace(sql), ";"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSQL, err)
	}

	seen := make(map[string]struct{})
	tables := make([]string, 0)
	_ = sqlparser.Walk(func(node sqlparser.SQLNode) (bool, error) {
		if t, ok := node.(*sqlparser.AliasedTableExpr); ok {
			if name, ok := t.Expr.(sqlparser.TableName); ok && !name.IsEmpty() {
				full := name.Name.String()
				if !name.Qualifier.IsEmpty() {
					full = name.Qualifier.String() + "." + full
				}
				if _, dup := seen[full]; !dup {
					seen[full] = struct{}{}
					tables = append(tables, full)
				}
			}
		}
		return true, nil
	}, stmt)
	return tables, nil
}

// noFrom sqlparser 会为缺少 FROM 的语句补一个 dual 表
func noFrom(s *sqlparser.Select) bool {
	if len(s.From) == 0 {
		return true
	}
	if len(s.From) != 1 {
		return false
	}
	t, ok := s.From[0].(*sqlparser.AliasedTableExpr)
	if !ok {
		return false
	}
	name, ok := t.Expr.(sqlparser.TableName)
	return ok && name.Qualifier.IsEmpty() && name.Name.String() == "dual"
}

// stripLiterals 去掉单引号字符串字面量，避免 'delete' 之类的取值被当作关键字
func stripLiterals(sql string) string {
	var sb strings.Builder
	inQuote := false
	for i := 0; i < len(sql); i++ {
		ch := sql[i]
		if ch == '\'' {
			if inQuote && i+1 < len(sql) && sql[i+1] == '\'' {
				i++
				continue
			}
			inQuote = !inQuote
			sb.WriteByte(' ')
			continue
		}
		if !inQuote {
			sb.WriteByte(ch)
		}
	}
	return sb.String()
}
