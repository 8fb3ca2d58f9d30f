package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"iot-device-service/internal/domain/models"
	"iot-device-service/internal/error/code"
	"iot-device-service/pkg/logger"
)

// Response 定义统一的响应格式
type Response struct {
	Success bool         `json:"success"`
	Code    int          `json:"code"`
	Message string       `json:"message"`
	Data    interface{}  `json:"data,omitempty"`
	Details []FieldError `json:"details,omitempty"`
}

// FieldError 单个字段的校验错误
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	SuccessWithMessage(c, code.GetMessage(code.ErrSuccess), data)
}

// SuccessWithMessage 成功响应（自定义消息）
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Code:    code.ErrSuccess,
		Message: message,
		Data:    data,
	})
}

// Created 资源创建成功
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Success: true,
		Code:    code.ErrSuccess,
		Message: code.GetMessage(code.ErrSuccess),
		Data:    data,
	})
}

// Fail 失败响应
func Fail(c *gin.Context, errorCode int, data interface{}) {
	FailWithMessage(c, errorCode, code.GetMessage(errorCode), data)
}

// FailWithMessage 失败响应（自定义消息）
func FailWithMessage(c *gin.Context, errorCode int, message string, data interface{}) {
	c.AbortWithStatusJSON(code.GetStatus(errorCode), Response{
		Success: false,
		Code:    errorCode,
		Message: message,
		Data:    data,
	})
}

// ValidationError 参数错误响应，带字段级详情
func ValidationError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, Response{
		Success: false,
		Code:    code.ErrValidation,
		Message: code.GetMessage(code.ErrValidation),
		Details: validationDetails(err),
	})
}

// FieldInvalid 单个字段的手工校验失败
func FieldInvalid(c *gin.Context, field, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, Response{
		Success: false,
		Code:    code.ErrValidation,
		Message: code.GetMessage(code.ErrValidation),
		Details: []FieldError{{Field: field, Message: message}},
	})
}

// Unauthorized 未授权响应
func Unauthorized(c *gin.Context) {
	Fail(c, code.ErrTokenInvalid, nil)
}

// NotFound 设备不存在响应
func NotFound(c *gin.Context) {
	Fail(c, code.ErrDeviceNotFound, nil)
}

// Error 把领域错误翻译为对应的响应，未知错误记录日志后返回500
func Error(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrDeviceNotFound):
		Fail(c, code.ErrDeviceNotFound, nil)
	case errors.Is(err, models.ErrNotFound):
		Fail(c, code.ErrNotFound, nil)
	case errors.Is(err, models.ErrDuplicateEmail):
		Fail(c, code.ErrUserAlreadyExist, nil)
	case errors.Is(err, models.ErrInvalidCredentials):
		Fail(c, code.ErrUserPasswordIncorrect, nil)
	case errors.Is(err, models.ErrUnauthenticated):
		Fail(c, code.ErrTokenInvalid, nil)
	case errors.Is(err, models.ErrNoUpdateFields):
		c.AbortWithStatusJSON(http.StatusBadRequest, Response{
			Success: false,
			Code:    code.ErrDeviceNoUpdateFields,
			Message: code.GetMessage(code.ErrDeviceNoUpdateFields),
			Details: []FieldError{{Field: "body", Message: "must contain at least one of name, type, status"}},
		})
	default:
		logger.L().Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		Fail(c, code.ErrUnknown, nil)
	}
}

func validationDetails(err error) []FieldError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, FieldError{
				Field:   lowerFirst(fe.Field()),
				Message: ruleMessage(fe),
			})
		}
		return details
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return []FieldError{{Field: typeErr.Field, Message: fmt.Sprintf("must be a %s", typeErr.Type.Kind())}}
	}
	return []FieldError{{Field: "body", Message: err.Error()}}
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "notblank":
		return "must not be blank"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return "must be at most " + fe.Param()
	}
	return fmt.Sprintf("failed on the %q rule", fe.Tag())
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}
