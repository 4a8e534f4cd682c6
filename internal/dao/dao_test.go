package dao

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/Malowking/dsquery/dataset/datasource"
	"github.com/Malowking/dsquery/pkg/schema"
)

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name    string
		config  DBConfig
		want    string
		wantErr bool
	}{
		{
			name:   "mysql默认字符集",
			config: DBConfig{Type: "mysql", Host: "db", Port: "3306", User: "u", Pass: "p", Name: "meta"},
			want:   "u:p@tcp(db:3306)/meta?charset=utf8mb4&parseTime=True&loc=Local",
		},
		{
			name:   "pgsql",
			config: DBConfig{Type: "pgsql", Host: "db", Port: "5432", User: "u", Pass: "p", Name: "meta"},
			want:   "host=db user=u password=p dbname=meta port=5432 sslmode=disable TimeZone=Asia/Shanghai",
		},
		{name: "不支持", config: DBConfig{Type: "oracle"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsn, err := buildDSN(&tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, dsn)
		})
	}
}

func TestGormLogLevel(t *testing.T) {
	assert.Equal(t, logger.Info, gormLogLevel("INFO"))
	assert.Equal(t, logger.Silent, gormLogLevel("silent"))
	assert.Equal(t, logger.Warn, gormLogLevel(""))
}

func TestModelOrder(t *testing.T) {
	assert.Equal(t, "update_time desc", modelOrder(""))
	assert.Equal(t, "create_time asc", modelOrder("created_at asc"))
	assert.Equal(t, "name desc", modelOrder("name desc"))
	assert.Equal(t, "update_time desc", modelOrder("updated_at sideways"))
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\%\_off\\`, escapeLike(`50%_off\`))
}

func TestDatasetRoundTrip(t *testing.T) {
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	d := &schema.Dataset{
		ID:          "ds1",
		OwnerID:     "alice",
		Name:        "sales",
		DisplayName: "Sales",
		Category:    "finance",
		Tags:        []string{"daily", "daily", "", "kpi"},
		Type:        schema.DatasetTypeView,
		Source: schema.SourceConfig{View: &schema.ViewSource{
			BaseDatasetID: "base",
			Filters:       []schema.Filter{{Field: "region", Operator: schema.OpEquals, Value: "APAC"}},
		}},
		Fields: []schema.Field{{
			Name: "revenue", Type: schema.DataTypeNumber,
			FieldType: schema.FieldTypeMeasure, AggregationType: schema.AggregationSum,
		}},
		Metadata:     schema.Metadata{RecordCount: 42, ColumnCount: 1, LastRefreshed: &now},
		QualityScore: 97,
		Status:       schema.DatasetStatusActive,
		Permissions: []schema.Permission{
			{UserID: "bob", Role: schema.RoleViewer},
			{UserID: "bob", Role: schema.RoleEditor},
			{UserID: "alice", Role: schema.RoleViewer},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	m, err := datasetToModel(d)
	require.NoError(t, err)
	assert.Len(t, m.Tags, 2, "duplicate and empty tags are dropped")
	require.Len(t, m.Permissions, 1, "owner is not stored as a grant")
	assert.Equal(t, "editor", m.Permissions[0].Role, "highest role per user wins")
	assert.JSONEq(t, `[]`, string(m.QualityIssues))

	back, err := datasetFromModel(m)
	require.NoError(t, err)
	assert.Equal(t, []string{"daily", "kpi"}, back.Tags)
	assert.Equal(t, "base", back.Source.View.BaseDatasetID)
	assert.Equal(t, "APAC", back.Source.View.Filters[0].Value)
	assert.Equal(t, d.Fields, back.Fields)
	assert.Equal(t, int64(42), back.Metadata.RecordCount)
	assert.True(t, back.Metadata.LastRefreshed.Equal(now))
	assert.True(t, back.Can("bob", schema.RoleEditor))
	assert.Empty(t, back.QualityIssues)
}

func TestDataSourceConversion(t *testing.T) {
	cfg := &datasource.Config{ID: "x", OwnerID: "alice", Name: "wh", DBType: "postgresql", Host: "h", Port: 5432, Database: "d", Username: "u", Password: "secret", SSLMode: "require"}
	assert.Equal(t, cfg, dataSourceFromModel(dataSourceToModel(cfg)))
}
