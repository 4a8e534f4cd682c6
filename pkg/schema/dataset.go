package schema

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// DatasetType 数据集类型
type DatasetType string

const (
	DatasetTypeTable DatasetType = "table"
	DatasetTypeSQL   DatasetType = "sql"
	DatasetTypeView  DatasetType = "view"
)

func (t DatasetType) Valid() bool {
	switch t {
	case DatasetTypeTable, DatasetTypeSQL, DatasetTypeView:
		return true
	}
	return false
}

// DatasetStatus 数据集状态
type DatasetStatus string

const (
	DatasetStatusPending DatasetStatus = "pending"
	DatasetStatusActive  DatasetStatus = "active"
	DatasetStatusError   DatasetStatus = "error"
)

// Role 数据集权限角色，viewer < editor < owner
type Role string

const (
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
	RoleOwner  Role = "owner"
)

func (r Role) rank() int {
	switch r {
	case RoleViewer:
		return 1
	case RoleEditor:
		return 2
	case RoleOwner:
		return 3
	}
	return 0
}

// AtLeast reports whether r grants everything required grants.
func (r Role) AtLeast(required Role) bool {
	return r.rank() > 0 && r.rank() >= required.rank()
}

func (r Role) Valid() bool {
	return r.rank() > 0
}

// Permission 用户权限
type Permission struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}

// TableSource 物理表来源
type TableSource struct {
	DataSourceID string `json:"datasource_id"`
	Schema       string `json:"schema,omitempty"`
	Table        string `json:"table"`
}

// SQLSource 自定义SQL来源
type SQLSource struct {
	DataSourceID string `json:"datasource_id"`
	Query        string `json:"query"`
}

// ViewSource 基于其他数据集的视图
type ViewSource struct {
	BaseDatasetID string   `json:"base_dataset_id"`
	Filters       []Filter `json:"filters,omitempty"`
}

// SourceConfig 数据来源配置，table/sql/view 三选一
type SourceConfig struct {
	Table *TableSource `json:"table,omitempty"`
	SQL   *SQLSource   `json:"sql,omitempty"`
	View  *ViewSource  `json:"view,omitempty"`
}

var (
	ErrSourceMismatch   = errors.New("数据来源配置与数据集类型不一致")
	ErrSourceIncomplete = errors.New("数据来源配置不完整")
)

// Validate checks that exactly the configuration matching t is populated.
func (c SourceConfig) Validate(t DatasetType) error {
	populated := 0
	for _, set := range []bool{c.Table != nil, c.SQL != nil, c.View != nil} {
		if set {
			populated++
		}
	}
	if populated != 1 {
		return fmt.Errorf("%w: 需要且只能配置一种来源", ErrSourceMismatch)
	}

	switch t {
	case DatasetTypeTable:
		if c.Table == nil {
			return ErrSourceMismatch
		}
		if c.Table.DataSourceID == "" || c.Table.Table == "" {
			return fmt.Errorf("%w: table 需要 datasource_id 与 table", ErrSourceIncomplete)
		}
	case DatasetTypeSQL:
		if c.SQL == nil {
			return ErrSourceMismatch
		}
		if c.SQL.DataSourceID == "" || strings.TrimSpace(c.SQL.Query) == "" {
			return fmt.Errorf("%w: sql 需要 datasource_id 与 query", ErrSourceIncomplete)
		}
	case DatasetTypeView:
		if c.View == nil {
			return ErrSourceMismatch
		}
		if c.View.BaseDatasetID == "" {
			return fmt.Errorf("%w: view 需要 base_dataset_id", ErrSourceIncomplete)
		}
	default:
		return fmt.Errorf("unsupported dataset type: %s", t)
	}
	return nil
}

// DataSourceID returns the datasource referenced directly by the config, or "" for views.
func (c SourceConfig) DataSourceID() string {
	switch {
	case c.Table != nil:
		return c.Table.DataSourceID
	case c.SQL != nil:
		return c.SQL.DataSourceID
	}
	return ""
}

// Metadata 数据集统计信息
type Metadata struct {
	RecordCount   int64      `json:"record_count"`
	ColumnCount   int        `json:"column_count"`
	LastRefreshed *time.Time `json:"last_refreshed,omitempty"`
	DataSize      int64      `json:"data_size"`
}

// Dataset 数据集
type Dataset struct {
	ID            string         `json:"id"`
	OwnerID       string         `json:"owner_id"`
	Name          string         `json:"name"`
	DisplayName   string         `json:"display_name"`
	Description   string         `json:"description"`
	Category      string         `json:"category"`
	Tags          []string       `json:"tags"`
	Type          DatasetType    `json:"type"`
	Source        SourceConfig   `json:"source"`
	Fields        []Field        `json:"fields"`
	Metadata      Metadata       `json:"metadata"`
	QualityScore  int            `json:"quality_score"`
	QualityIssues []QualityIssue `json:"quality_issues"`
	Status        DatasetStatus  `json:"status"`
	LastError     string         `json:"last_error,omitempty"`
	Permissions   []Permission   `json:"permissions"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// RoleOf returns the effective role of userID; the owner is always RoleOwner.
func (d *Dataset) RoleOf(userID string) (Role, bool) {
	if userID == "" {
		return "", false
	}
	if d.OwnerID == userID {
		return RoleOwner, true
	}
	best := Role("")
	for _, p := range d.Permissions {
		if p.UserID == userID && p.Role.rank() > best.rank() {
			best = p.Role
		}
	}
	return best, best != ""
}

// Can reports whether userID holds at least the required role.
func (d *Dataset) Can(userID string, required Role) bool {
	role, ok := d.RoleOf(userID)
	return ok && role.AtLeast(required)
}

// Field returns the field named name.
func (d *Dataset) Field(name string) (*Field, bool) {
	for i := range d.Fields {
		if d.Fields[i].Name == name {
			return &d.Fields[i], true
		}
	}
	return nil, false
}

// Clone returns a copy that shares no slices or pointers with d.
func (d *Dataset) Clone() *Dataset {
	if d == nil {
		return nil
	}
	c := *d
	c.Tags = slices.Clone(d.Tags)
	c.Permissions = slices.Clone(d.Permissions)
	c.QualityIssues = slices.Clone(d.QualityIssues)
	if d.Fields != nil {
		c.Fields = make([]Field, len(d.Fields))
		for i, f := range d.Fields {
			f.SampleValues = slices.Clone(f.SampleValues)
			c.Fields[i] = f
		}
	}
	c.Source = d.Source.Clone()
	c.Metadata = d.Metadata.Clone()
	return &c
}

// Clone 深拷贝来源配置，包括视图过滤条件中的列表取值
func (c SourceConfig) Clone() SourceConfig {
	out := SourceConfig{}
	if c.Table != nil {
		t := *c.Table
		out.Table = &t
	}
	if c.SQL != nil {
		s := *c.SQL
		out.SQL = &s
	}
	if c.View != nil {
		v := *c.View
		v.Filters = CloneFilters(c.View.Filters)
		out.View = &v
	}
	return out
}

func (m Metadata) Clone() Metadata {
	if m.LastRefreshed != nil {
		ts := *m.LastRefreshed
		m.LastRefreshed = &ts
	}
	return m
}

// CloneFilters copies filters; list values (in / not_in) get their own backing array.
func CloneFilters(filters []Filter) []Filter {
	if filters == nil {
		return nil
	}
	out := make([]Filter, len(filters))
	for i, f := range filters {
		switch v := f.Value.(type) {
		case []any:
			f.Value = slices.Clone(v)
		case []string:
			f.Value = slices.Clone(v)
		}
		out[i] = f
	}
	return out
}

// DatasetPatch 数据集更新内容，nil 字段表示不修改
type DatasetPatch struct {
	Name          *string
	DisplayName   *string
	Description   *string
	Category      *string
	Tags          *[]string
	Source        *SourceConfig
	Fields        *[]Field
	Permissions   *[]Permission
	Metadata      *Metadata
	QualityScore  *int
	QualityIssues *[]QualityIssue
	Status        *DatasetStatus
	LastError     *string

	// Refresh 在其他字段写入之后、于同一次加锁写入内作用在最新的存储行上，
	// 用于需要与并发修改合并的派生数据（如字段推断结果）
	Refresh func(d *Dataset)
}

// Apply writes the populated patch values onto d.
func (p *DatasetPatch) Apply(d *Dataset) {
	if p.Name != nil {
		d.Name = *p.Name
	}
	if p.DisplayName != nil {
		d.DisplayName = *p.DisplayName
	}
	if p.Description != nil {
		d.Description = *p.Description
	}
	if p.Category != nil {
		d.Category = *p.Category
	}
	if p.Tags != nil {
		d.Tags = slices.Clone(*p.Tags)
	}
	if p.Source != nil {
		d.Source = p.Source.Clone()
	}
	if p.Fields != nil {
		d.Fields = slices.Clone(*p.Fields)
	}
	if p.Permissions != nil {
		d.Permissions = slices.Clone(*p.Permissions)
	}
	if p.Metadata != nil {
		d.Metadata = p.Metadata.Clone()
	}
	if p.QualityScore != nil {
		d.QualityScore = *p.QualityScore
	}
	if p.QualityIssues != nil {
		d.QualityIssues = slices.Clone(*p.QualityIssues)
	}
	if p.Status != nil {
		d.Status = *p.Status
	}
	if p.LastError != nil {
		d.LastError = *p.LastError
	}
	if p.Refresh != nil {
		p.Refresh(d)
	}
}

// DatasetFilter 数据集检索条件，UserID 限定为可访问的数据集
type DatasetFilter struct {
	UserID   string
	Keyword  string
	Category string
	Type     DatasetType
	Tags     []string
}
