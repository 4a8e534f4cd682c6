package cmd

import (
	"mime"
	"net/http"
	"reflect"

	"github.com/gogf/gf/v2/errors/gcode"
	"github.com/gogf/gf/v2/errors/gerror"
	"github.com/gogf/gf/v2/net/ghttp"
	"github.com/gogf/gf/v2/util/gmeta"

	"github.com/Malowking/dsquery/core/errors"
)

const (
	contentTypeEventStream  = "text/event-stream"
	contentTypeOctetStream  = "application/octet-stream"
	contentTypeMixedReplace = "multipart/x-mixed-replace"
)

var (
	// streamContentType is the content types for stream response.
	streamContentType = []string{contentTypeEventStream, contentTypeOctetStream, contentTypeMixedReplace}
)

// MiddlewareHandlerResponse is the default middleware handling handler response object and its error.
// 业务错误按错误码设置HTTP状态，响应体统一为 {code, message, data}
func MiddlewareHandlerResponse(r *ghttp.Request) {
	r.Middleware.Next()

	// There's custom buffer content, it then exits current handler.
	if r.Response.BufferLength() > 0 || r.Response.Writer.BytesWritten() > 0 {
		return
	}

	// It does not output common response content if it is stream response.
	mediaType, _, _ := mime.ParseMediaType(r.Response.Header().Get("Content-Type"))
	for _, ct := range streamContentType {
		if mediaType == ct {
			return
		}
	}

	var (
		err = r.GetError()
		res = r.GetHandlerResponse()
	)
	if err != nil {
		status, code, msg := errorResponse(err)
		r.Response.ClearBuffer()
		r.Response.WriteHeader(status)
		r.Response.WriteJson(ghttp.DefaultHandlerResponse{
			Code:    code,
			Message: msg,
			Data:    nil,
		})
		return
	}

	code := gcode.CodeOK
	if r.Response.Status > 0 && r.Response.Status != http.StatusOK {
		switch r.Response.Status {
		case http.StatusNotFound:
			code = gcode.CodeNotFound
		case http.StatusForbidden:
			code = gcode.CodeNotAuthorized
		default:
			code = gcode.CodeUnknown
		}
		// It creates an error as it can be retrieved by other middlewares.
		r.SetError(gerror.NewCode(code, code.Message()))
	}
	if noWrapResp(r) {
		r.Response.WriteJson(res)
		return
	}
	r.Response.WriteJson(ghttp.DefaultHandlerResponse{
		Code:    code.Code(),
		Message: code.Message(),
		Data:    res,
	})
}

// errorResponse 把错误映射为HTTP状态、业务码与消息
func errorResponse(err error) (status int, code int, msg string) {
	if appErr := errors.GetAppError(err); appErr != nil {
		return appErr.Code.HTTPStatusCode(), int(appErr.Code), appErr.Message
	}

	// 参数校验失败等框架错误
	gc := gerror.Code(err)
	switch gc {
	case gcode.CodeValidationFailed, gcode.CodeInvalidParameter, gcode.CodeMissingParameter:
		return http.StatusBadRequest, int(errors.ErrInvalidParameter), err.Error()
	case gcode.CodeNotFound:
		return http.StatusNotFound, gc.Code(), err.Error()
	case gcode.CodeNil:
		gc = gcode.CodeInternalError
	}
	return http.StatusInternalServerError, gc.Code(), err.Error()
}

// 中间件中判断
func noWrapResp(r *ghttp.Request) bool {
	handler := r.GetServeHandler().Handler
	if handler.Info.Type != nil && handler.Info.Type.NumIn() == 2 {
		var objectReq = reflect.New(handler.Info.Type.In(1))
		if v := gmeta.Get(objectReq, "no_wrap_resp"); !v.IsEmpty() {
			return v.Bool()
		}
	}
	return false
}
