package query

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/Malowking/dsquery/pkg/schema"
)

// canonicalQuery 规范化后的查询，用于生成缓存键
type canonicalQuery struct {
	Measures   []string        `json:"m"`
	Dimensions []string        `json:"d"`
	Filters    []canonicalItem `json:"f"`
	Limit      int             `json:"l"`
}

type canonicalItem struct {
	Field    string `json:"field"`
	Operator string `json:"op"`
	Value    string `json:"value"`
}

// Hash returns a stable digest of spec: measure, dimension and filter order
// do not matter. The limit should already be normalized.
func Hash(spec schema.QuerySpec) (string, error) {
	c := canonicalQuery{
		Measures:   sortedCopy(spec.Measures),
		Dimensions: sortedCopy(spec.Dimensions),
		Filters:    make([]canonicalItem, 0, len(spec.Filters)),
		Limit:      spec.Limit,
	}
	for _, f := range spec.Filters {
		value, err := sonic.ConfigStd.MarshalToString(f.Value)
		if err != nil {
			return "", fmt.Errorf("marshal filter value: %w", err)
		}
		c.Filters = append(c.Filters, canonicalItem{Field: f.Field, Operator: string(f.Operator), Value: value})
	}
	slices.SortFunc(c.Filters, func(a, b canonicalItem) int {
		if n := strings.Compare(a.Field, b.Field); n != 0 {
			return n
		}
		if n := strings.Compare(a.Operator, b.Operator); n != 0 {
			return n
		}
		return strings.Compare(a.Value, b.Value)
	})

	data, err := sonic.ConfigStd.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal query: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// HashSQL 原始SQL的摘要
func HashSQL(sql string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(sql)))
	return hex.EncodeToString(sum[:])
}

// CacheKey dataset:<id>:query:<hash>
func CacheKey(datasetID string, spec schema.QuerySpec) (string, error) {
	h, err := Hash(spec)
	if err != nil {
		return "", err
	}
	return "dataset:" + datasetID + ":query:" + h, nil
}

func sortedCopy(s []string) []string {
	out := slices.Clone(s)
	if out == nil {
		out = []string{}
	}
	slices.Sort(out)
	return out
}
