package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	verr := NewValidation()
	assert.NoError(t, verr.Err())

	verr.Add("rent_amount", "月租金必须大于0")
	verr.Add("rent_amount", "ignored")
	verr.Add("customizations.utilities", "重复分配")

	err := verr.Err()
	var appErr *AppError
	assert.True(t, stderrors.As(err, &appErr))
	assert.Equal(t, CodeValidation, appErr.Code)
	assert.Equal(t, "月租金必须大于0", appErr.Details["rent_amount"])
	assert.Len(t, appErr.Details, 2)
	assert.Contains(t, err.Error(), "[customizations.utilities: 重复分配] [rent_amount: 月租金必须大于0]")
}

func TestCodeOfAndIs(t *testing.T) {
	wrapped := fmt.Errorf("commit: %w", Wrap(CodeRenderFailure, "租约渲染失败", fmt.Errorf("timeout")))
	assert.Equal(t, CodeRenderFailure, CodeOf(wrapped))
	assert.True(t, Is(wrapped, CodeRenderFailure))
	assert.False(t, Is(nil, CodeRenderFailure))
	assert.Equal(t, CodeInternal, CodeOf(fmt.Errorf("plain")))
	assert.Equal(t, "timeout", stderrors.Unwrap(stderrors.Unwrap(wrapped)).Error())
}

func TestHTTPCode(t *testing.T) {
	assert.Equal(t, CodeInvalidParam, HTTPCode(CodeValidation))
	assert.Equal(t, CodeInvalidParam, HTTPCode(CodeTemplateNotAssociated))
	assert.Equal(t, CodeResourceNotFound, HTTPCode(CodeNotFound))
	assert.Equal(t, CodeConflict, HTTPCode(CodeSignatureStateConflict))
	assert.Equal(t, CodeConflict, HTTPCode(CodeLeaseStateConflict))
	assert.Equal(t, CodeBadGateway, HTTPCode(CodeRenderFailure))
	assert.Equal(t, CodeServerError, HTTPCode(CodeInternal))
}
