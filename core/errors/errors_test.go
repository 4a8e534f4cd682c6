package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorChain(t *testing.T) {
	base := stderrors.New("connection refused")
	appErr := Wrapf(ErrSourceExecution, base, "执行查询失败 %s", "sales")
	wrapped := fmt.Errorf("preview: %w", appErr)

	got := GetAppError(wrapped)
	require.NotNil(t, got)
	assert.Equal(t, ErrSourceExecution, got.Code)
	assert.True(t, IsAppError(wrapped))
	assert.True(t, HasCode(wrapped, ErrSourceExecution))
	assert.False(t, HasCode(wrapped, ErrNotFound))
	assert.ErrorIs(t, wrapped, base)
	assert.Contains(t, wrapped.Error(), "connection refused")
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrPermissionDenied, CodeOf(New(ErrPermissionDenied, "x")))
	assert.Equal(t, ErrInternalError, CodeOf(stderrors.New("plain")))
	assert.Nil(t, GetAppError(nil))
}

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		code ErrCode
		want int
	}{
		{ErrInvalidParameter, 400},
		{ErrPermissionDenied, 403},
		{ErrNotFound, 404},
		{ErrDatasetNotFound, 404},
		{ErrDataSourceNotFound, 404},
		{ErrUnsupportedDatasetType, 400},
		{ErrInvalidQuery, 400},
		{ErrInferenceFailed, 500},
		{ErrIntentNotConfigured, 501},
		{ErrSourceExecution, 502},
		{ErrDatabaseQuery, 500},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d", tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.HTTPStatusCode())
		})
	}
}
