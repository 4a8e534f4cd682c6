package dataset

import (
	"context"

	"github.com/gogf/gf/v2/frame/g"

	v1 "github.com/Malowking/dsquery/api/dataset/v1"
	"github.com/Malowking/dsquery/dataset/datasource"
	"github.com/Malowking/dsquery/internal/service"
)

func (c *ControllerV1) DataSourceCreate(ctx context.Context, req *v1.DataSourceCreateReq) (res *v1.DataSourceCreateRes, err error) {
	g.Log().Infof(ctx, "DataSourceCreate request received - Name: %s, DBType: %s, Host: %s, Database: %s",
		req.Name, req.DBType, req.Host, req.Database)

	cfg, err := service.Dataset().CreateDataSource(ctx, callerID(ctx), &datasource.Config{
		Name:     req.Name,
		DBType:   req.DBType,
		Host:     req.Host,
		Port:     req.Port,
		Database: req.Database,
		Username: req.Username,
		Password: req.Password,
		SSLMode:  req.SSLMode,
		Path:     req.Path,
	})
	if err != nil {
		return nil, err
	}
	return &v1.DataSourceCreateRes{DataSource: cfg}, nil
}

func (c *ControllerV1) DataSourceList(ctx context.Context, req *v1.DataSourceListReq) (res *v1.DataSourceListRes, err error) {
	list, err := service.Dataset().ListDataSources(ctx, callerID(ctx))
	if err != nil {
		return nil, err
	}
	return &v1.DataSourceListRes{List: list}, nil
}

func (c *ControllerV1) DataSourceTest(ctx context.Context, req *v1.DataSourceTestReq) (res *v1.DataSourceTestRes, err error) {
	if err = service.Dataset().TestDataSource(ctx, callerID(ctx), req.ID); err != nil {
		return nil, err
	}
	return &v1.DataSourceTestRes{Success: true, Message: "连接成功"}, nil
}
