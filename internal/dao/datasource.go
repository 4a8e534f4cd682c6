package dao

import (
	"context"
	"errors"

	"github.com/gogf/gf/v2/frame/g"
	"gorm.io/gorm"

	"github.com/Malowking/dsquery/dataset/datasource"
	gormModel "github.com/Malowking/dsquery/internal/model/gorm"
)

// DataSourceDAO 数据源数据访问对象
type DataSourceDAO struct{}

var DataSource = &DataSourceDAO{}

// GetDataSource 根据ID获取数据源，不存在时返回 nil, nil
func (d *DataSourceDAO) GetDataSource(ctx context.Context, id string) (*datasource.Config, error) {
	var m gormModel.DataSource
	if err := GetDB().WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		g.Log().Errorf(ctx, "查询数据源失败: %v", err)
		return nil, err
	}
	return dataSourceFromModel(&m), nil
}

// CreateDataSource 创建数据源
func (d *DataSourceDAO) CreateDataSource(ctx context.Context, cfg *datasource.Config) error {
	m := dataSourceToModel(cfg)
	if err := GetDB().WithContext(ctx).Create(m).Error; err != nil {
		g.Log().Errorf(ctx, "创建数据源失败: %v", err)
		return err
	}
	cfg.ID = m.ID
	return nil
}

// ListDataSources 列出用户拥有的数据源
func (d *DataSourceDAO) ListDataSources(ctx context.Context, ownerID string) ([]*datasource.Config, error) {
	var rows []gormModel.DataSource
	if err := GetDB().WithContext(ctx).Where("owner_id = ?", ownerID).Order("create_time desc").Find(&rows).Error; err != nil {
		g.Log().Errorf(ctx, "查询数据源列表失败: %v", err)
		return nil, err
	}
	out := make([]*datasource.Config, 0, len(rows))
	for i := range rows {
		out = append(out, dataSourceFromModel(&rows[i]))
	}
	return out, nil
}
