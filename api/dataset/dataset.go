package dataset

import (
	"context"

	v1 "github.com/Malowking/dsquery/api/dataset/v1"
)

type IDatasetV1 interface {
	DatasetCreate(ctx context.Context, req *v1.DatasetCreateReq) (res *v1.DatasetCreateRes, err error)
	DatasetSearch(ctx context.Context, req *v1.DatasetSearchReq) (res *v1.DatasetSearchRes, err error)
	DatasetGet(ctx context.Context, req *v1.DatasetGetReq) (res *v1.DatasetGetRes, err error)
	DatasetUpdate(ctx context.Context, req *v1.DatasetUpdateReq) (res *v1.DatasetUpdateRes, err error)
	DatasetDelete(ctx context.Context, req *v1.DatasetDeleteReq) (res *v1.DatasetDeleteRes, err error)
	DatasetPreview(ctx context.Context, req *v1.DatasetPreviewReq) (res *v1.DatasetPreviewRes, err error)
	DatasetQuery(ctx context.Context, req *v1.DatasetQueryReq) (res *v1.DatasetQueryRes, err error)
	DatasetQuerySQL(ctx context.Context, req *v1.DatasetQuerySQLReq) (res *v1.DatasetQuerySQLRes, err error)
	DatasetAsk(ctx context.Context, req *v1.DatasetAskReq) (res *v1.DatasetAskRes, err error)
	DatasetAnalyze(ctx context.Context, req *v1.DatasetAnalyzeReq) (res *v1.DatasetAnalyzeRes, err error)
	DatasetAnalysisStatus(ctx context.Context, req *v1.DatasetAnalysisStatusReq) (res *v1.DatasetAnalysisStatusRes, err error)
	DataSourceCreate(ctx context.Context, req *v1.DataSourceCreateReq) (res *v1.DataSourceCreateRes, err error)
	DataSourceList(ctx context.Context, req *v1.DataSourceListReq) (res *v1.DataSourceListRes, err error)
	DataSourceTest(ctx context.Context, req *v1.DataSourceTestReq) (res *v1.DataSourceTestRes, err error)
}
