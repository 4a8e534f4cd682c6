package dao

import (
	"fmt"

	"github.com/bytedance/sonic"
	"gorm.io/datatypes"

	"github.com/Malowking/dsquery/dataset/datasource"
	gormModel "github.com/Malowking/dsquery/internal/model/gorm"
	"github.com/Malowking/dsquery/pkg/schema"
)

func marshalJSON(v any) (datatypes.JSON, error) {
	data, err := sonic.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}

func unmarshalJSON(data datatypes.JSON, v any) error {
	if len(data) == 0 {
		return nil
	}
	return sonic.Unmarshal(data, v)
}

// datasetToModel 转换为持久化模型，所有者不写入授权表
func datasetToModel(d *schema.Dataset) (*gormModel.Dataset, error) {
	m := &gormModel.Dataset{
		ID:           d.ID,
		OwnerID:      d.OwnerID,
		Name:         d.Name,
		DisplayName:  d.DisplayName,
		Description:  d.Description,
		Category:     d.Category,
		Type:         string(d.Type),
		QualityScore: d.QualityScore,
		Status:       string(d.Status),
		LastError:    d.LastError,
		CreateTime:   d.CreatedAt,
		UpdateTime:   d.UpdatedAt,
	}

	var err error
	if m.Source, err = marshalJSON(d.Source); err != nil {
		return nil, fmt.Errorf("marshal source: %w", err)
	}
	if m.Fields, err = marshalJSON(d.Fields); err != nil {
		return nil, fmt.Errorf("marshal fields: %w", err)
	}
	if m.Metadata, err = marshalJSON(d.Metadata); err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	issues := d.QualityIssues
	if issues == nil {
		issues = []schema.QualityIssue{}
	}
	if m.QualityIssues, err = marshalJSON(issues); err != nil {
		return nil, fmt.Errorf("marshal quality issues: %w", err)
	}

	m.Tags = tagsToModel(d.ID, d.Tags)
	m.Permissions = permissionsToModel(d.ID, d.OwnerID, d.Permissions)
	return m, nil
}

func tagsToModel(datasetID string, tags []string) []gormModel.DatasetTag {
	seen := make(map[string]struct{}, len(tags))
	out := make([]gormModel.DatasetTag, 0, len(tags))
	for _, t := range tags {
		if _, dup := seen[t]; dup || t == "" {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, gormModel.DatasetTag{DatasetID: datasetID, Tag: t})
	}
	return out
}

func permissionsToModel(datasetID, ownerID string, perms []schema.Permission) []gormModel.DatasetPermission {
	best := make(map[string]schema.Role, len(perms))
	order := make([]string, 0, len(perms))
	for _, p := range perms {
		if p.UserID == ownerID {
			continue
		}
		cur, ok := best[p.UserID]
		if !ok {
			order = append(order, p.UserID)
		}
		if !ok || p.Role.AtLeast(cur) {
			best[p.UserID] = p.Role
		}
	}
	out := make([]gormModel.DatasetPermission, 0, len(order))
	for _, uid := range order {
		out = append(out, gormModel.DatasetPermission{DatasetID: datasetID, UserID: uid, Role: string(best[uid])})
	}
	return out
}

// datasetFromModel 转换为领域模型
func datasetFromModel(m *gormModel.Dataset) (*schema.Dataset, error) {
	d := &schema.Dataset{
		ID:            m.ID,
		OwnerID:       m.OwnerID,
		Name:          m.Name,
		DisplayName:   m.DisplayName,
		Description:   m.Description,
		Category:      m.Category,
		Type:          schema.DatasetType(m.Type),
		QualityScore:  m.QualityScore,
		Status:        schema.DatasetStatus(m.Status),
		LastError:     m.LastError,
		CreatedAt:     m.CreateTime,
		UpdatedAt:     m.UpdateTime,
		Tags:          make([]string, 0, len(m.Tags)),
		Permissions:   make([]schema.Permission, 0, len(m.Permissions)),
		QualityIssues: []schema.QualityIssue{},
	}
	if err := unmarshalJSON(m.Source, &d.Source); err != nil {
		return nil, fmt.Errorf("unmarshal source of %s: %w", m.ID, err)
	}
	if err := unmarshalJSON(m.Fields, &d.Fields); err != nil {
		return nil, fmt.Errorf("unmarshal fields of %s: %w", m.ID, err)
	}
	if err := unmarshalJSON(m.Metadata, &d.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata of %s: %w", m.ID, err)
	}
	if err := unmarshalJSON(m.QualityIssues, &d.QualityIssues); err != nil {
		return nil, fmt.Errorf("unmarshal quality issues of %s: %w", m.ID, err)
	}
	for _, t := range m.Tags {
		d.Tags = append(d.Tags, t.Tag)
	}
	for _, p := range m.Permissions {
		d.Permissions = append(d.Permissions, schema.Permission{UserID: p.UserID, Role: schema.Role(p.Role)})
	}
	return d, nil
}

func dataSourceToModel(cfg *datasource.Config) *gormModel.DataSource {
	return &gormModel.DataSource{
		ID:       cfg.ID,
		OwnerID:  cfg.OwnerID,
		Name:     cfg.Name,
		DBType:   cfg.DBType,
		Host:     cfg.Host,
		Port:     cfg.Port,
		Database: cfg.Database,
		Username: cfg.Username,
		Password: cfg.Password,
		SSLMode:  cfg.SSLMode,
		Path:     cfg.Path,
	}
}

func dataSourceFromModel(m *gormModel.DataSource) *datasource.Config {
	return &datasource.Config{
		ID:       m.ID,
		OwnerID:  m.OwnerID,
		Name:     m.Name,
		DBType:   m.DBType,
		Host:     m.Host,
		Port:     m.Port,
		Database: m.Database,
		Username: m.Username,
		Password: m.Password,
		SSLMode:  m.SSLMode,
		Path:     m.Path,
	}
}
