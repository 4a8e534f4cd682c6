package dataset

import (
	"context"
	"strings"

	"github.com/gogf/gf/v2/frame/g"

	"github.com/Malowking/dsquery/api/dataset"
)

// userHeader 网关注入的调用者身份
const userHeader = "X-User-Id"

type ControllerV1 struct{}

func NewV1() dataset.IDatasetV1 {
	return &ControllerV1{}
}

// callerID 读取调用者ID，缺失时为空串，由服务层拒绝
func callerID(ctx context.Context) string {
	r := g.RequestFromCtx(ctx)
	if r == nil {
		return ""
	}
	return strings.TrimSpace(r.GetHeader(userHeader))
}
