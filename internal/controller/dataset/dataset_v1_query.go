package dataset

import (
	"context"

	"github.com/gogf/gf/v2/frame/g"

	v1 "github.com/Malowking/dsquery/api/dataset/v1"
	"github.com/Malowking/dsquery/internal/service"
	"github.com/Malowking/dsquery/pkg/schema"
)

func (c *ControllerV1) DatasetPreview(ctx context.Context, req *v1.DatasetPreviewReq) (res *v1.DatasetPreviewRes, err error) {
	result, err := service.Dataset().Preview(ctx, callerID(ctx), req.ID, req.Limit)
	if err != nil {
		return nil, err
	}
	return &v1.DatasetPreviewRes{PreviewResult: result}, nil
}

func (c *ControllerV1) DatasetQuery(ctx context.Context, req *v1.DatasetQueryReq) (res *v1.DatasetQueryRes, err error) {
	g.Log().Debugf(ctx, "DatasetQuery - ID: %s, Measures: %v, Dimensions: %v, Filters: %d",
		req.ID, req.Measures, req.Dimensions, len(req.Filters))

	result, err := service.Dataset().Query(ctx, callerID(ctx), req.ID, schema.QuerySpec{
		Measures:   req.Measures,
		Dimensions: req.Dimensions,
		Filters:    req.Filters,
		Limit:      req.Limit,
	})
	if err != nil {
		return nil, err
	}
	return &v1.DatasetQueryRes{QueryResult: result}, nil
}

func (c *ControllerV1) DatasetQuerySQL(ctx context.Context, req *v1.DatasetQuerySQLReq) (res *v1.DatasetQuerySQLRes, err error) {
	result, err := service.Dataset().QuerySQL(ctx, callerID(ctx), req.ID, req.SQL)
	if err != nil {
		return nil, err
	}
	return &v1.DatasetQuerySQLRes{QueryResult: result}, nil
}

func (c *ControllerV1) DatasetAsk(ctx context.Context, req *v1.DatasetAskReq) (res *v1.DatasetAskRes, err error) {
	g.Log().Infof(ctx, "DatasetAsk request received - ID: %s, Question: %s", req.ID, req.Question)

	result, err := service.Dataset().Ask(ctx, callerID(ctx), req.ID, req.Question)
	if err != nil {
		return nil, err
	}
	return &v1.DatasetAskRes{
		Extraction: result.Extraction,
		Validation: result.Validation,
		DSL:        result.DSL,
		SQL:        result.SQL,
		Result:     result.Result,
	}, nil
}
