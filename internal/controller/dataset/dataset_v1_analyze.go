package dataset

import (
	"context"

	v1 "github.com/Malowking/dsquery/api/dataset/v1"
	dscommon "github.com/Malowking/dsquery/dataset/common"
	"github.com/Malowking/dsquery/internal/service"
)

func (c *ControllerV1) DatasetAnalyze(ctx context.Context, req *v1.DatasetAnalyzeReq) (res *v1.DatasetAnalyzeRes, err error) {
	if err = service.Dataset().Reanalyze(ctx, callerID(ctx), req.ID); err != nil {
		return nil, err
	}
	return &v1.DatasetAnalyzeRes{Status: string(dscommon.TaskStatusPending)}, nil
}

func (c *ControllerV1) DatasetAnalysisStatus(ctx context.Context, req *v1.DatasetAnalysisStatusReq) (res *v1.DatasetAnalysisStatusRes, err error) {
	status, err := service.Dataset().AnalysisStatus(ctx, callerID(ctx), req.ID)
	if err != nil {
		return nil, err
	}
	return &v1.DatasetAnalysisStatusRes{
		DatasetID:   status.DatasetID,
		Status:      string(status.Status),
		Progress:    status.Progress,
		CurrentStep: status.CurrentStep,
		Error:       status.Error,
	}, nil
}
