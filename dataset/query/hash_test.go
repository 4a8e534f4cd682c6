package query

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Malowking/dsquery/pkg/schema"
)

func TestHashIgnoresOrder(t *testing.T) {
	a := schema.QuerySpec{
		Measures:   []string{"a", "b"},
		Dimensions: []string{"x", "y"},
		Filters: []schema.Filter{
			{Field: "x", Operator: schema.OpEquals, Value: "1"},
			{Field: "y", Operator: schema.OpIn, Value: []any{1, 2}},
		},
		Limit: 10,
	}
	b := schema.QuerySpec{
		Measures:   []string{"b", "a"},
		Dimensions: []string{"y", "x"},
		Filters: []schema.Filter{
			{Field: "y", Operator: schema.OpIn, Value: []any{1, 2}},
			{Field: "x", Operator: schema.OpEquals, Value: "1"},
		},
		Limit: 10,
	}
	ha, err := Hash(a)
	require.NoError(t, err)
	hb, err := Hash(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
	assert.Len(t, ha, 64)
}

func TestHashDistinguishes(t *testing.T) {
	base := schema.QuerySpec{Measures: []string{"a"}, Limit: 10}
	h0, _ := Hash(base)

	variants := []schema.QuerySpec{
		{Measures: []string{"a"}, Limit: 11},
		{Measures: []string{"a"}, Dimensions: []string{"a"}, Limit: 10},
		{Dimensions: []string{"a"}, Limit: 10},
		{Measures: []string{"a"}, Limit: 10, Filters: []schema.Filter{{Field: "a", Operator: schema.OpEquals, Value: 1}}},
		{Measures: []string{"a"}, Limit: 10, Filters: []schema.Filter{{Field: "a", Operator: schema.OpEquals, Value: "1"}}},
	}
	seen := map[string]struct{}{h0: {}}
	for i, v := range variants {
		h, err := Hash(v)
		require.NoError(t, err)
		_, dup := seen[h]
		assert.False(t, dup, "variant %d collides", i)
		seen[h] = struct{}{}
	}
}

func TestCacheKey(t *testing.T) {
	key, err := CacheKey("ds1", schema.QuerySpec{Measures: []string{"a"}})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "dataset:ds1:query:"))
	assert.Equal(t, HashSQL(" select 1 "), HashSQL("select 1"))
}
