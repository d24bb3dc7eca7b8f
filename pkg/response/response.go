package response

import (
	stderrors "errors"
	"net/http"

	"leasehub/pkg/errors"
	"leasehub/pkg/logger"
	"leasehub/pkg/pagination"

	"github.com/gin-gonic/gin"
)

// Response 统一返回格式
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	// ErrorCode 领域错误码，仅错误时返回
	ErrorCode errors.ErrorCode  `json:"error_code,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// ========== 基础返回方法 ==========

// Success 成功返回
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    errors.CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// SuccessWithMessage 成功返回（自定义消息）
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    errors.CodeSuccess,
		Message: message,
		Data:    data,
	})
}

// SuccessWithPage 分页成功返回
func SuccessWithPage(c *gin.Context, data interface{}, pageInfo *pagination.PageInfo) {
	c.JSON(http.StatusOK, gin.H{
		"code":      errors.CodeSuccess,
		"message":   "success",
		"data":      data,
		"page_info": pageInfo,
	})
}

// HTML 直接返回渲染后的标记
func HTML(c *gin.Context, markup []byte) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", markup)
}

// Error 通用错误返回
func Error(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
	})
}

// FromError 按领域错误码返回，未知错误只记录日志不暴露细节
func FromError(c *gin.Context, err error, fallback string) {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		logger.GetLogger().WithError(err).Error(fallback)
		ServerError(c, fallback)
		return
	}
	if appErr.Code == errors.CodeInternal || appErr.Code == errors.CodeRenderFailure {
		logger.GetLogger().WithError(err).Error(fallback)
	}
	c.JSON(http.StatusOK, Response{
		Code:      errors.HTTPCode(appErr.Code),
		Message:   appErr.Message,
		ErrorCode: appErr.Code,
		Details:   appErr.Details,
	})
}

// ========== HTTP错误快捷方法 ==========

func BadRequest(c *gin.Context, message string) {
	Error(c, errors.CodeInvalidParam, message)
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, errors.CodeUnauthorized, message)
}

func Forbidden(c *gin.Context, message string) {
	Error(c, errors.CodeNoPermission, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, errors.CodeResourceNotFound, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, errors.CodeServerError, message)
}
