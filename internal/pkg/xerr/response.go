package xerr

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// CodeError 结构体用于在服务层传递带有业务码的错误
// 它实现了 error 接口
type CodeError struct {
	Code int   // 业务错误码
	Err  error // 被包裹的底层错误
}

// Error 实现 error 接口
func (e *CodeError) Error() string {
	return e.Err.Error()
}

// Unwrap 返回被包裹的底层错误，支持 errors.Unwrap
func (e *CodeError) Unwrap() error {
	return e.Err
}

// NewCodeError 创建一个 CodeError 实例
func NewCodeError(code int, err error) *CodeError {
	return &CodeError{Code: code, Err: err}
}

// Is 判断错误是否为指定的错误类型
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Response 是通用 JSON 响应结构
type Response struct {
	Code    int    `json:"code"`    // 业务状态码
	Message string `json:"message"` // 消息
	Data    any    `json:"data"`    // 响应数据
}

// JSONResponse 发送标准 JSON 响应
func JSONResponse(c *gin.Context, httpStatus int, code int, message string, data any) {
	c.JSON(httpStatus, Response{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

// Success 成功响应
func Success(c *gin.Context, httpStatus int, message string, data any) {
	JSONResponse(c, httpStatus, SuccessCode, message, data)
}

// Error 错误响应
func Error(c *gin.Context, httpStatus int, code int, message string) {
	JSONResponse(c, httpStatus, code, message, nil)
}

// AbortWithError 终止请求并发送错误响应
func AbortWithError(c *gin.Context, httpStatus int, code int, message string) {
	Error(c, httpStatus, code, message)
	c.Abort()
}

// FromError 将服务层错误映射为 HTTP 状态码与业务码后写出响应
// 未识别的错误一律按内部错误处理，不向客户端泄露细节
func FromError(c *gin.Context, err error) {
	var codeErr *CodeError
	if errors.As(err, &codeErr) {
		Error(c, httpStatusFor(codeErr.Code), codeErr.Code, codeErr.Err.Error())
		return
	}

	switch {
	case errors.Is(err, ErrModelNotFound), errors.Is(err, ErrVersionNotFound),
		errors.Is(err, ErrFileNotFound), errors.Is(err, ErrTextureSetNotFound),
		errors.Is(err, ErrThumbnailNotFound), errors.Is(err, ErrJobNotFound),
		errors.Is(err, ErrPackNotFound), errors.Is(err, ErrProjectNotFound),
		errors.Is(err, ErrRecycledFileNotFound), errors.Is(err, ErrTextureNotFound):
		Error(c, http.StatusNotFound, NotFoundCode, err.Error())
	case errors.Is(err, ErrVersionModelMismatch), errors.Is(err, ErrVersionDeleted),
		errors.Is(err, ErrIncompleteOrder), errors.Is(err, ErrTextureTypeInvalid),
		errors.Is(err, ErrValidationFailed), errors.Is(err, ErrInvalidParams),
		errors.Is(err, ErrFileNotRenderable):
		Error(c, http.StatusBadRequest, ValidationFailedCode, err.Error())
	case errors.Is(err, ErrLastVersion):
		Error(c, http.StatusConflict, LastVersionCode, err.Error())
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrDuplicateAssociation),
		errors.Is(err, ErrJobNotClaimable), errors.Is(err, ErrJobNotProcessing),
		errors.Is(err, ErrLeaseLost):
		Error(c, http.StatusConflict, AlreadyExistsCode, err.Error())
	case errors.Is(err, ErrStorageError):
		Error(c, http.StatusInternalServerError, StorageErrorCode, ErrStorageError.Error())
	default:
		Error(c, http.StatusInternalServerError, InternalServerErrorCode, ErrInternalServer.Error())
	}
}

func httpStatusFor(code int) int {
	switch {
	case code >= 40000 && code < 40100:
		return http.StatusBadRequest
	case code >= 40400 && code < 40500:
		return http.StatusNotFound
	case code >= 40900 && code < 41000:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
