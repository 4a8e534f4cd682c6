package dataset

import (
	"context"

	"github.com/gogf/gf/v2/frame/g"

	v1 "github.com/Malowking/dsquery/api/dataset/v1"
	dsservice "github.com/Malowking/dsquery/dataset/service"
	"github.com/Malowking/dsquery/internal/service"
	"github.com/Malowking/dsquery/pkg/schema"
)

func (c *ControllerV1) DatasetCreate(ctx context.Context, req *v1.DatasetCreateReq) (res *v1.DatasetCreateRes, err error) {
	g.Log().Infof(ctx, "DatasetCreate request received - Name: %s, Type: %s, Fields: %d", req.Name, req.Type, len(req.Fields))

	d, err := service.Dataset().Create(ctx, callerID(ctx), &dsservice.CreateRequest{
		Name:        req.Name,
		DisplayName: req.DisplayName,
		Description: req.Description,
		Category:    req.Category,
		Tags:        req.Tags,
		Type:        schema.DatasetType(req.Type),
		Source:      req.Source,
		Fields:      req.Fields,
		Permissions: req.Permissions,
	})
	if err != nil {
		return nil, err
	}
	return &v1.DatasetCreateRes{Dataset: d}, nil
}

func (c *ControllerV1) DatasetSearch(ctx context.Context, req *v1.DatasetSearchReq) (res *v1.DatasetSearchRes, err error) {
	result, err := service.Dataset().Search(ctx, callerID(ctx), &dsservice.SearchParams{
		Keyword:   req.Keyword,
		Category:  req.Category,
		Type:      schema.DatasetType(req.Type),
		Tags:      req.Tags,
		Page:      req.Page,
		PageSize:  req.PageSize,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
	})
	if err != nil {
		return nil, err
	}

	return &v1.DatasetSearchRes{
		Datasets: result.Datasets,
		Pagination: v1.Pagination{
			Page:       result.Pagination.Page,
			PageSize:   result.Pagination.PageSize,
			Total:      result.Pagination.Total,
			TotalPages: result.Pagination.TotalPages,
		},
		Filters: v1.Facets{
			Categories: result.Filters.Categories,
			Types:      result.Filters.Types,
			Tags:       result.Filters.Tags,
		},
	}, nil
}

func (c *ControllerV1) DatasetGet(ctx context.Context, req *v1.DatasetGetReq) (res *v1.DatasetGetRes, err error) {
	d, err := service.Dataset().Get(ctx, callerID(ctx), req.ID)
	if err != nil {
		return nil, err
	}
	return &v1.DatasetGetRes{Dataset: d}, nil
}

func (c *ControllerV1) DatasetUpdate(ctx context.Context, req *v1.DatasetUpdateReq) (res *v1.DatasetUpdateRes, err error) {
	g.Log().Infof(ctx, "DatasetUpdate request received - ID: %s", req.ID)

	d, err := service.Dataset().Update(ctx, callerID(ctx), req.ID, &schema.DatasetPatch{
		Name:        req.Name,
		DisplayName: req.DisplayName,
		Description: req.Description,
		Category:    req.Category,
		Tags:        req.Tags,
		Source:      req.Source,
		Fields:      req.Fields,
		Permissions: req.Permissions,
	})
	if err != nil {
		return nil, err
	}
	return &v1.DatasetUpdateRes{Dataset: d}, nil
}

func (c *ControllerV1) DatasetDelete(ctx context.Context, req *v1.DatasetDeleteReq) (res *v1.DatasetDeleteRes, err error) {
	g.Log().Infof(ctx, "DatasetDelete request received - ID: %s", req.ID)

	if err = service.Dataset().Delete(ctx, callerID(ctx), req.ID); err != nil {
		return nil, err
	}
	return &v1.DatasetDeleteRes{Message: "数据集已删除"}, nil
}
