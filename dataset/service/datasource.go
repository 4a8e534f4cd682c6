package service

import (
	"context"

	"github.com/gogf/gf/v2/frame/g"

	"github.com/Malowking/dsquery/core/errors"
	"github.com/Malowking/dsquery/dataset/datasource"
)

// CreateDataSource 注册数据源，调用者成为所有者
func (s *Service) CreateDataSource(ctx context.Context, ownerID string, cfg *datasource.Config) (*datasource.Config, error) {
	if ownerID == "" {
		return nil, errors.New(errors.ErrUnauthorized, "缺少用户身份")
	}
	if cfg == nil {
		return nil, errors.New(errors.ErrInvalidParameter, "缺少数据源配置")
	}
	if cfg.Name == "" {
		return nil, errors.New(errors.ErrInvalidParameter, "数据源名称不能为空")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrInvalidParameter, err, "数据源配置无效")
	}

	c := *cfg
	c.ID = newID()
	c.OwnerID = ownerID
	if err := s.sources.CreateDataSource(ctx, &c); err != nil {
		return nil, errors.Wrap(errors.ErrDatabaseInsert, err, "保存数据源失败")
	}
	g.Log().Infof(ctx, "数据源已创建: id=%s, type=%s, owner=%s", c.ID, c.DBType, ownerID)
	return &c, nil
}

// ListDataSources 列出调用者拥有的数据源
func (s *Service) ListDataSources(ctx context.Context, ownerID string) ([]*datasource.Config, error) {
	if ownerID == "" {
		return nil, errors.New(errors.ErrUnauthorized, "缺少用户身份")
	}
	list, err := s.sources.ListDataSources(ctx, ownerID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabaseQuery, err, "查询数据源失败")
	}
	return list, nil
}

// TestDataSource 测试数据源连通性
func (s *Service) TestDataSource(ctx context.Context, ownerID, id string) error {
	if err := s.checkDataSourceOwner(ctx, ownerID, id); err != nil {
		return err
	}
	cfg, err := s.datasource(ctx, id)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()
	if err := s.executor.Ping(ctx, cfg); err != nil {
		g.Log().Warningf(ctx, "数据源连接测试失败 %s: %v", id, err)
		return errors.Wrap(errors.ErrSourceExecution, err, "数据源连接失败")
	}
	return nil
}
