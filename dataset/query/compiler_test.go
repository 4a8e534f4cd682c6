package query

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Malowking/dsquery/pkg/schema"
)

var salesFields = []schema.Field{
	{Name: "region", DisplayName: "Region", FieldType: schema.FieldTypeDimension, DimensionLevel: schema.DimensionCategorical},
	{Name: "revenue", DisplayName: "销售额", FieldType: schema.FieldTypeMeasure, AggregationType: schema.AggregationSum},
	{Name: "orders", FieldType: schema.FieldTypeMeasure, AggregationType: schema.AggregationCount},
}

func TestCompileScenario(t *testing.T) {
	c := NewCompiler(1000, 10000)
	sql, args, err := c.Compile(&Source{Table: "sales"}, schema.QuerySpec{
		Measures:   []string{"revenue"},
		Dimensions: []string{"region"},
		Filters:    []schema.Filter{{Field: "region", Operator: schema.OpEquals, Value: "APAC"}},
		Limit:      10,
	}, salesFields, DialectGeneric)
	require.NoError(t, err)
	assert.Equal(t, "SELECT region, SUM(revenue) AS revenue FROM sales WHERE region = ? GROUP BY region ORDER BY revenue DESC LIMIT ?", sql)
	assert.Equal(t, []any{"APAC", 10}, args)
}

func TestCompileClauses(t *testing.T) {
	c := NewCompiler(1000, 10000)
	tests := []struct {
		name string
		src  *Source
		spec schema.QuerySpec
		sql  string
		args []any
	}{
		{
			name: "空查询输出星号",
			src:  &Source{Schema: "public", Table: "sales"},
			spec: schema.QuerySpec{},
			sql:  "SELECT * FROM public.sales LIMIT ?",
			args: []any{1000},
		},
		{
			name: "仅维度按首个维度升序",
			src:  &Source{Table: "sales"},
			spec: schema.QuerySpec{Dimensions: []string{"Region"}, Limit: 50000},
			sql:  "SELECT region FROM sales GROUP BY region ORDER BY region ASC LIMIT ?",
			args: []any{10000},
		},
		{
			name: "展示名与未知度量",
			src:  &Source{Table: "sales"},
			spec: schema.QuerySpec{Measures: []string{"销售额", "orders", "profit"}},
			sql:  "SELECT SUM(revenue) AS revenue, COUNT(orders) AS orders, SUM(profit) AS profit FROM sales ORDER BY revenue DESC LIMIT ?",
			args: []any{1000},
		},
		{
			name: "运算符",
			src:  &Source{Table: "sales"},
			spec: schema.QuerySpec{Filters: []schema.Filter{
				{Field: "revenue", Operator: schema.OpGreaterThan, Value: 10},
				{Field: "revenue", Operator: schema.OpLessOrEqual, Value: 99.5},
				{Field: "region", Operator: schema.OpNotEquals, Value: "EMEA"},
				{Field: "region", Operator: schema.OpIn, Value: []string{"APAC", "NA"}},
				{Field: "region", Operator: schema.OpNotIn, Value: []any{}},
				{Field: "region", Operator: schema.OpContains, Value: "AP"},
			}, Limit: 5},
			sql:  "SELECT * FROM sales WHERE revenue > ? AND revenue <= ? AND region != ? AND region IN (?, ?) AND region LIKE ? ESCAPE '!' LIMIT ?",
			args: []any{10, 99.5, "EMEA", "APAC", "NA", "%AP%", 5},
		},
		{
			name: "SQL数据集作为子查询",
			src:  &Source{SQL: "SELECT * FROM orders WHERE status = 'paid';"},
			spec: schema.QuerySpec{Measures: []string{"revenue"}, Limit: 3},
			sql:  "SELECT SUM(revenue) AS revenue FROM (SELECT * FROM orders WHERE status = 'paid') AS subquery ORDER BY revenue DESC LIMIT ?",
			args: []any{3},
		},
		{
			name: "视图参数在外层参数之前",
			src: &Source{
				Base:    &Source{Table: "sales"},
				Filters: []schema.Filter{{Field: "region", Operator: schema.OpEquals, Value: "APAC"}},
			},
			spec: schema.QuerySpec{
				Dimensions: []string{"region"},
				Filters:    []schema.Filter{{Field: "revenue", Operator: schema.OpGreaterThan, Value: 1}},
				Limit:      7,
			},
			sql:  "SELECT region FROM (SELECT * FROM sales WHERE region = ?) AS view_query WHERE revenue > ? GROUP BY region ORDER BY region ASC LIMIT ?",
			args: []any{"APAC", 1, 7},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := c.Compile(tt.src, tt.spec, salesFields, DialectGeneric)
			require.NoError(t, err)
			assert.Equal(t, tt.sql, sql)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestCompileNeverInterpolatesValues(t *testing.T) {
	c := NewCompiler(1000, 10000)
	sql, args, err := c.Compile(&Source{Table: "customers"}, schema.QuerySpec{
		Filters: []schema.Filter{{Field: "name", Operator: schema.OpContains, Value: "O'Brien"}},
	}, nil, DialectGeneric)
	require.NoError(t, err)
	assert.NotContains(t, sql, "O'Brien")
	assert.NotContains(t, sql, "Brien")
	assert.Contains(t, args, "%O'Brien%")
}

func TestCompileContainsEscapesWildcards(t *testing.T) {
	c := NewCompiler(1000, 10000)
	tests := []struct {
		name    string
		value   any
		dialect Dialect
		sql     string
		pattern string
	}{
		{"百分号与下划线", "50%_off", DialectGeneric, "SELECT * FROM sales WHERE region LIKE ? ESCAPE '!' LIMIT ?", "%50!%!_off%"},
		{"转义符本身", "hi!", DialectGeneric, "SELECT * FROM sales WHERE region LIKE ? ESCAPE '!' LIMIT ?", "%hi!!%"},
		{"单独的百分号", "%", DialectPostgres, "SELECT * FROM sales WHERE region LIKE $1 ESCAPE '!' LIMIT $2", "%!%%"},
		{"sqlserver 方括号", "[A]_1", DialectSQLServer, "SELECT * FROM sales WHERE region LIKE @p1 ESCAPE '!' ORDER BY (SELECT NULL) OFFSET 0 ROWS FETCH NEXT @p2 ROWS ONLY", "%![A]!_1%"},
		{"非字符串值", 42, DialectGeneric, "SELECT * FROM sales WHERE region LIKE ? ESCAPE '!' LIMIT ?", "%42%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := c.Compile(&Source{Table: "sales"}, schema.QuerySpec{
				Filters: []schema.Filter{{Field: "region", Operator: schema.OpContains, Value: tt.value}},
				Limit:   5,
			}, salesFields, tt.dialect)
			require.NoError(t, err)
			assert.Equal(t, tt.sql, sql)
			require.Len(t, args, 2)
			assert.Equal(t, tt.pattern, args[0])
		})
	}
}

func TestCompileDialects(t *testing.T) {
	c := NewCompiler(1000, 10000)
	spec := schema.QuerySpec{
		Measures:   []string{"revenue"},
		Dimensions: []string{"region"},
		Filters:    []schema.Filter{{Field: "region", Operator: schema.OpIn, Value: []string{"APAC", "NA"}}},
		Limit:      10,
	}

	sql, args, err := c.Compile(&Source{Table: "sales"}, spec, salesFields, DialectPostgres)
	require.NoError(t, err)
	assert.Equal(t, "SELECT region, SUM(revenue) AS revenue FROM sales WHERE region IN ($1, $2) GROUP BY region ORDER BY revenue DESC LIMIT $3", sql)
	assert.Equal(t, []any{"APAC", "NA", 10}, args)

	sql, _, err = c.Compile(&Source{Table: "sales"}, spec, salesFields, DialectSQLServer)
	require.NoError(t, err)
	assert.Equal(t, "SELECT region, SUM(revenue) AS revenue FROM sales WHERE region IN (@p1, @p2) GROUP BY region ORDER BY revenue DESC OFFSET 0 ROWS FETCH NEXT @p3 ROWS ONLY", sql)

	sql, args, err = c.CompilePreview(&Source{Schema: "dbo", Table: "sales"}, 100, DialectSQLServer)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM dbo.sales ORDER BY (SELECT NULL) OFFSET 0 ROWS FETCH NEXT @p1 ROWS ONLY", sql)
	assert.Equal(t, []any{100}, args)
}

func TestCompileCountAndPreview(t *testing.T) {
	c := NewCompiler(1000, 10000)
	sql, args, err := c.CompileCount(&Source{Base: &Source{Table: "sales"}, Filters: []schema.Filter{
		{Field: "region", Operator: schema.OpEquals, Value: "APAC"},
	}}, DialectPostgres)
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) AS total FROM (SELECT * FROM sales WHERE region = $1) AS view_query", sql)
	assert.Equal(t, []any{"APAC"}, args)

	sql, args, err = c.CompilePreview(&Source{Table: "sales"}, 20, DialectGeneric)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM sales LIMIT ?", sql)
	assert.Equal(t, []any{20}, args)
}

func TestCompileUnknownFieldsPassThrough(t *testing.T) {
	c := NewCompiler(1000, 10000)
	sql, args, err := c.Compile(&Source{Table: "sales"}, schema.QuerySpec{
		Measures:   []string{"profit"},
		Dimensions: []string{"country"},
		Limit:      10,
	}, salesFields, DialectGeneric)
	require.NoError(t, err)
	assert.Equal(t, "SELECT country, SUM(profit) AS profit FROM sales GROUP BY country ORDER BY profit DESC LIMIT ?", sql)
	assert.Equal(t, []any{10}, args)
}

func TestCompileErrors(t *testing.T) {
	c := NewCompiler(1000, 10000)
	tests := []struct {
		name string
		src  *Source
		spec schema.QuerySpec
		err  error
	}{
		{"表名注入", &Source{Table: "sales; DROP TABLE users"}, schema.QuerySpec{}, ErrInvalidIdentifier},
		{"列名注入", &Source{Table: "sales"}, schema.QuerySpec{Dimensions: []string{"region) --"}}, ErrInvalidIdentifier},
		{"未知运算符", &Source{Table: "sales"}, schema.QuerySpec{Filters: []schema.Filter{{Field: "region", Operator: "like", Value: "x"}}}, ErrUnsupportedOperator},
		{"等于不能传列表", &Source{Table: "sales"}, schema.QuerySpec{Filters: []schema.Filter{{Field: "region", Operator: schema.OpEquals, Value: []any{1}}}}, ErrInvalidFilterValue},
		{"空来源", &Source{}, schema.QuerySpec{}, ErrEmptySource},
		{"nil来源", nil, schema.QuerySpec{}, ErrEmptySource},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := c.Compile(tt.src, tt.spec, salesFields, DialectGeneric)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestCompileViewDepth(t *testing.T) {
	src := &Source{Table: "sales"}
	for i := 0; i < 20; i++ {
		src = &Source{Base: src}
	}
	_, _, err := NewCompiler(0, 0).CompileCount(src, DialectGeneric)
	assert.ErrorIs(t, err, ErrViewTooDeep)
}

func TestIdentifiers(t *testing.T) {
	assert.NoError(t, validIdent("销售额"))
	assert.NoError(t, validIdent("_col1"))
	assert.Error(t, validIdent("1col"))
	assert.Error(t, validIdent("a b"))
	assert.NoError(t, validPath("db.public.sales"))
	assert.Error(t, validPath("public..sales"))
	assert.Error(t, validPath(strings.Repeat("a.", 4)+"a"))
}

func TestDialectFor(t *testing.T) {
	assert.Equal(t, DialectPostgres, DialectFor("postgresql"))
	assert.Equal(t, DialectSQLServer, DialectFor("SQLServer"))
	assert.Equal(t, DialectGeneric, DialectFor("mysql"))
	assert.Equal(t, DialectGeneric, DialectFor("sqlite"))
}
