package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gogf/gf/v2/frame/g"
	"github.com/google/uuid"

	"github.com/Malowking/dsquery/core/cache"
	"github.com/Malowking/dsquery/core/errors"
	dscommon "github.com/Malowking/dsquery/dataset/common"
	"github.com/Malowking/dsquery/pkg/schema"
)

// CreateRequest 创建数据集
type CreateRequest struct {
	Name        string
	DisplayName string
	Description string
	Category    string
	Tags        []string
	Type        schema.DatasetType
	Source      schema.SourceConfig
	Fields      []schema.Field
	Permissions []schema.Permission
}

// SearchParams 检索参数
type SearchParams struct {
	Keyword   string
	Category  string
	Type      schema.DatasetType
	Tags      []string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination 分页信息
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// Facets 可选过滤值
type Facets struct {
	Categories []string `json:"categories"`
	Types      []string `json:"types"`
	Tags       []string `json:"tags"`
}

// SearchResult 检索结果
type SearchResult struct {
	Datasets   []*schema.Dataset `json:"datasets"`
	Pagination Pagination        `json:"pagination"`
	Filters    Facets            `json:"filters"`
}

var sortColumns = map[string]string{
	"":           "updated_at",
	"name":       "name",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

func newID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// Create 创建数据集并后台执行字段分析
func (s *Service) Create(ctx context.Context, ownerID string, req *CreateRequest) (*schema.Dataset, error) {
	if ownerID == "" {
		return nil, errors.New(errors.ErrUnauthorized, "缺少用户身份")
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, errors.New(errors.ErrInvalidParameter, "数据集名称不能为空")
	}
	if !req.Type.Valid() {
		return nil, errors.Newf(errors.ErrUnsupportedDatasetType, "不支持的数据集类型: %s", req.Type)
	}
	if err := validatePermissions(req.Permissions); err != nil {
		return nil, err
	}

	fields := req.Fields
	if len(fields) == 0 {
		fields = []schema.Field{placeholderField()}
	} else if err := validateFields(fields); err != nil {
		return nil, err
	}

	now := time.Now()
	d := &schema.Dataset{
		ID:            newID(),
		OwnerID:       ownerID,
		Name:          req.Name,
		DisplayName:   req.DisplayName,
		Description:   req.Description,
		Category:      req.Category,
		Tags:          req.Tags,
		Type:          req.Type,
		Source:        req.Source,
		Fields:        fields,
		QualityScore:  100,
		QualityIssues: []schema.QualityIssue{},
		Status:        schema.DatasetStatusPending,
		Permissions:   req.Permissions,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if d.DisplayName == "" {
		d.DisplayName = d.Name
	}
	if err := s.validateSource(ctx, ownerID, d); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, d); err != nil {
		g.Log().Errorf(ctx, "创建数据集失败: %v", err)
		return nil, errors.Wrap(errors.ErrDatabaseInsert, err, "创建数据集失败")
	}
	g.Log().Infof(ctx, "数据集已创建: id=%s, type=%s, owner=%s", d.ID, d.Type, ownerID)

	s.scheduleAnalysis(ctx, d.ID)
	return d.Clone(), nil
}

// Update 保存修改，不重新推断字段
func (s *Service) Update(ctx context.Context, userID, id string, patch *schema.DatasetPatch) (*schema.Dataset, error) {
	d, err := s.authorize(ctx, userID, id, schema.RoleEditor)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, errors.New(errors.ErrInvalidParameter, "数据集名称不能为空")
	}
	if patch.Permissions != nil {
		if !d.Can(userID, schema.RoleOwner) {
			return nil, errors.New(errors.ErrPermissionDenied, "只有所有者可以修改权限")
		}
		if err := validatePermissions(*patch.Permissions); err != nil {
			return nil, err
		}
	}
	if patch.Fields != nil {
		if err := validateFields(*patch.Fields); err != nil {
			return nil, err
		}
	}
	if patch.Source != nil {
		next := d.Clone()
		next.Source = *patch.Source
		if err := s.validateSource(ctx, userID, next); err != nil {
			return nil, err
		}
	}

	updated, err := s.repo.FindOneAndUpdate(ctx, id, patch)
	if err != nil {
		g.Log().Errorf(ctx, "更新数据集失败 %s: %v", id, err)
		return nil, errors.Wrap(errors.ErrDatabaseUpdate, err, "更新数据集失败")
	}
	if updated == nil {
		return nil, errors.Newf(errors.ErrDatasetNotFound, "数据集不存在: %s", id)
	}
	s.invalidate(ctx, id)
	return updated.Clone(), nil
}

// Get 读取数据集，按用户缓存
func (s *Service) Get(ctx context.Context, userID, id string) (*schema.Dataset, error) {
	key := fmt.Sprintf("dataset:%s:meta:%s", id, userID)
	tags := []string{dscommon.DatasetTag(id), dscommon.UserTag(userID)}
	d, err := cache.Fetch(ctx, s.store, key, s.cfg.DatasetTTL, tags, func(ctx context.Context) (*schema.Dataset, error) {
		return s.authorize(ctx, userID, id, schema.RoleViewer)
	})
	if err != nil {
		return nil, err
	}
	return d.Clone(), nil
}

// authorize 直接读取存储并检查权限
func (s *Service) authorize(ctx context.Context, userID, id string, required schema.Role) (*schema.Dataset, error) {
	if userID == "" {
		return nil, errors.New(errors.ErrUnauthorized, "缺少用户身份")
	}
	d, err := s.repo.FindByID(ctx, id)
	if err != nil {
		g.Log().Errorf(ctx, "查询数据集失败 %s: %v", id, err)
		return nil, errors.Wrap(errors.ErrDatabaseQuery, err, "查询数据集失败")
	}
	if d == nil {
		return nil, errors.Newf(errors.ErrDatasetNotFound, "数据集不存在: %s", id)
	}
	if !d.Can(userID, required) {
		return nil, errors.Newf(errors.ErrPermissionDenied, "需要 %s 权限", required)
	}
	return d, nil
}

// Search 检索可访问的数据集，不缓存
func (s *Service) Search(ctx context.Context, userID string, params *SearchParams) (*SearchResult, error) {
	if userID == "" {
		return nil, errors.New(errors.ErrUnauthorized, "缺少用户身份")
	}
	if params.Type != "" && !params.Type.Valid() {
		return nil, errors.Newf(errors.ErrUnsupportedDatasetType, "不支持的数据集类型: %s", params.Type)
	}
	column, ok := sortColumns[params.SortBy]
	if !ok {
		return nil, errors.Newf(errors.ErrInvalidParameter, "不支持的排序字段: %s", params.SortBy)
	}
	order := "desc"
	if strings.EqualFold(params.SortOrder, "asc") {
		order = "asc"
	}

	page := max(params.Page, 1)
	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	pageSize = min(pageSize, 100)

	filter := schema.DatasetFilter{
		UserID:   userID,
		Keyword:  strings.TrimSpace(params.Keyword),
		Category: params.Category,
		Type:     params.Type,
		Tags:     params.Tags,
	}

	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabaseQuery, err, "统计数据集失败")
	}
	datasets, err := s.repo.Find(ctx, filter, column+" "+order, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabaseQuery, err, "检索数据集失败")
	}

	// 分面统计基于用户可访问的全部数据集
	scope := schema.DatasetFilter{UserID: userID}
	facets := Facets{}
	for field, dst := range map[string]*[]string{"category": &facets.Categories, "type": &facets.Types, "tags": &facets.Tags} {
		values, err := s.repo.Distinct(ctx, field, scope)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrDatabaseQuery, err, "统计 %s 失败", field)
		}
		*dst = values
	}

	return &SearchResult{
		Datasets: datasets,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
		},
		Filters: facets,
	}, nil
}

// Delete 删除数据集，仅所有者
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.authorize(ctx, userID, id, schema.RoleOwner); err != nil {
		return err
	}
	if err := s.repo.DeleteByID(ctx, id); err != nil {
		g.Log().Errorf(ctx, "删除数据集失败 %s: %v", id, err)
		return errors.Wrap(errors.ErrDatabaseDelete, err, "删除数据集失败")
	}
	s.invalidate(ctx, id)
	g.Log().Infof(ctx, "数据集已删除: id=%s, user=%s", id, userID)
	return nil
}

// Reanalyze 显式重新推断字段
func (s *Service) Reanalyze(ctx context.Context, userID, id string) error {
	if _, err := s.authorize(ctx, userID, id, schema.RoleEditor); err != nil {
		return err
	}
	s.scheduleAnalysis(ctx, id)
	return nil
}

func placeholderField() schema.Field {
	return schema.Field{
		Name:           dscommon.PlaceholderField,
		DisplayName:    "Placeholder",
		Type:           schema.DataTypeString,
		FieldType:      schema.FieldTypeDimension,
		DimensionLevel: schema.DimensionCategorical,
		IsNullable:     true,
	}
}

func validatePermissions(perms []schema.Permission) error {
	for _, p := range perms {
		if p.UserID == "" || !p.Role.Valid() {
			return errors.Newf(errors.ErrInvalidParameter, "无效的权限配置: %s/%s", p.UserID, p.Role)
		}
	}
	return nil
}

// validateFields 字段必须满足：名称唯一，聚合方式只属于度量，层级只属于维度
func validateFields(fields []schema.Field) error {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if strings.TrimSpace(f.Name) == "" {
			return errors.New(errors.ErrInvalidParameter, "字段名称不能为空")
		}
		if _, dup := seen[f.Name]; dup {
			return errors.Newf(errors.ErrInvalidParameter, "字段重复: %s", f.Name)
		}
		seen[f.Name] = struct{}{}

		if f.Type != "" && !f.Type.Valid() {
			return errors.Newf(errors.ErrInvalidParameter, "字段 %s 类型无效: %s", f.Name, f.Type)
		}
		if !f.FieldType.Valid() {
			return errors.Newf(errors.ErrInvalidParameter, "字段 %s 角色无效: %s", f.Name, f.FieldType)
		}
		if f.AggregationType != "" && (f.FieldType != schema.FieldTypeMeasure || !f.AggregationType.Valid()) {
			return errors.Newf(errors.ErrInvalidParameter, "字段 %s 的聚合方式只适用于度量", f.Name)
		}
		if f.DimensionLevel != "" && (f.FieldType != schema.FieldTypeDimension || !f.DimensionLevel.Valid()) {
			return errors.Newf(errors.ErrInvalidParameter, "字段 %s 的维度层级只适用于维度", f.Name)
		}
		if f.FieldType == schema.FieldTypeCalculated && strings.TrimSpace(f.Expression) == "" {
			return errors.Newf(errors.ErrInvalidParameter, "计算字段 %s 缺少表达式", f.Name)
		}
	}
	return nil
}
