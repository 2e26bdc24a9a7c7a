// Package errs 提供业务错误码与结构化错误类型
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Code 业务错误码
type Code string

const (
	// CodeValidation 参数非法/超出范围（调用方修正后可重试）
	CodeValidation Code = "validation_error"
	// CodeAlreadyMatched 挂单已被其他买家撮合（正常竞争结果，非故障）
	CodeAlreadyMatched Code = "already_matched"
	// CodeOutOfStock 库存不足（正常竞争结果，非故障）
	CodeOutOfStock Code = "out_of_stock"
	// CodeUnauthorized 操作者身份/角色不匹配
	CodeUnauthorized Code = "unauthorized"
	// CodeInvalidState 当前生命周期状态不允许该操作
	CodeInvalidState Code = "invalid_state"
	// CodeNotFound 实体不存在或已撤下
	CodeNotFound Code = "not_found"
	// CodeInternal 持久层/内部故障（调用方可退避重试）
	CodeInternal Code = "internal"
)

// E 携带业务错误码的错误
type E struct {
	Code  Code
	Msg   string
	cause error
}

// Error 实现error接口
func (e *E) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Unwrap 返回底层错误
func (e *E) Unwrap() error {
	return e.cause
}

// New 构造业务错误
func New(code Code, msg string) *E {
	return &E{Code: code, Msg: msg}
}

// Newf 构造带格式化消息的业务错误
func Newf(code Code, format string, args ...interface{}) *E {
	return &E{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Wrap 包装底层错误并附加业务错误码
func Wrap(code Code, msg string, cause error) *E {
	return &E{Code: code, Msg: msg, cause: cause}
}

// CodeOf 提取错误的业务错误码，非业务错误归为internal
func CodeOf(err error) Code {
	var e *E
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsCode 判断错误是否属于指定错误码
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// HTTPStatus 错误码到HTTP状态码的映射
func HTTPStatus(code Code) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyMatched, CodeOutOfStock, CodeInvalidState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
