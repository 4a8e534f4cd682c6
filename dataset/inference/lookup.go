package inference

import (
	"strings"

	"github.com/Malowking/dsquery/pkg/schema"
)

// FieldLookup 展示名称到列名的查找表
//
// 解析顺序：列名精确匹配、展示名精确匹配、列名忽略大小写、展示名忽略大小写。
// 同一层级出现重复时以字段顺序靠前者为准。
type FieldLookup struct {
	names         map[string]string
	displayNames  map[string]string
	foldedNames   map[string]string
	foldedDisplay map[string]string
}

// NewFieldLookup 根据字段列表构建查找表
func NewFieldLookup(fields []schema.Field) *FieldLookup {
	l := &FieldLookup{
		names:         make(map[string]string, len(fields)),
		displayNames:  make(map[string]string, len(fields)),
		foldedNames:   make(map[string]string, len(fields)),
		foldedDisplay: make(map[string]string, len(fields)),
	}
	for _, f := range fields {
		putFirst(l.names, f.Name, f.Name)
		putFirst(l.foldedNames, fold(f.Name), f.Name)
		if f.DisplayName != "" {
			putFirst(l.displayNames, f.DisplayName, f.Name)
			putFirst(l.foldedDisplay, fold(f.DisplayName), f.Name)
		}
	}
	return l
}

// Resolve maps a column name or display name to the column name.
func (l *FieldLookup) Resolve(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}
	for _, m := range []map[string]string{l.names, l.displayNames} {
		if name, ok := m[ref]; ok {
			return name, true
		}
	}
	folded := fold(ref)
	for _, m := range []map[string]string{l.foldedNames, l.foldedDisplay} {
		if name, ok := m[folded]; ok {
			return name, true
		}
	}
	return "", false
}

func fold(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func putFirst(m map[string]string, key, value string) {
	if _, ok := m[key]; !ok {
		m[key] = value
	}
}
