package errors

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

const (
	NotFound = iota + 1000
	InvalidParams
	InternalServer
	NoPrice
	InvalidResourceType
	InvalidPayType
	InvalidPeriod
	InvalidTaskName
	LockContention
	LockNotHeld
	PersistenceFailure
	NoReceivers

	Unknown     = -1
	GenericCode = 1
)

// ErrMap english:chinese message pairs
var ErrMap = map[int]string{
	Unknown:             "unknown error:未知错误",
	NotFound:            "not found:信息未找到",
	InvalidParams:       "invalid params:参数有误",
	InternalServer:      "Server Busy:服务器繁忙，请稍后再试",
	NoPrice:             "no price table configured:未配置资源计价定价",
	InvalidResourceType: "invalid resource type:无效的资源类型",
	InvalidPayType:      "invalid pay type:无效的付费方式",
	InvalidPeriod:       "invalid period:无效的订购时长",
	InvalidTaskName:     "invalid timed task lock name:无效的定时任务锁标识",
	LockContention:      "task lock is held by another run:任务锁已被其他实例锁定",
	LockNotHeld:         "task lock is not held:未持有任务锁",
	PersistenceFailure:  "database write failed:数据库写入失败",
	NoReceivers:         "no notification receivers:没有通知接收人",
}

type GenericError struct {
	Code int
	Err  error
}

func (e GenericError) Error() string {
	return e.Err.Error()
}

func (e GenericError) Unwrap() error {
	return e.Err
}

// New returns a GenericError with the default english message for code.
func New(code int) GenericError {
	return GenericError{Code: code, Err: errors.New(splitMsg(code, ""))}
}

// Newf keeps the code but replaces the message.
func Newf(code int, format string, args ...interface{}) GenericError {
	return GenericError{Code: code, Err: errors.Errorf(format, args...)}
}

// Wrap attaches a code to an underlying cause.
func Wrap(code int, cause error) GenericError {
	return GenericError{Code: code, Err: errors.WithMessage(cause, splitMsg(code, ""))}
}

// CodeOf extracts the error code, Unknown if err carries none.
func CodeOf(err error) int {
	var ge GenericError
	if errors.As(err, &ge) {
		return ge.Code
	}
	return Unknown
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code int) bool {
	return CodeOf(err) == code
}

func splitMsg(code int, lang string) string {
	msg, ok := ErrMap[code]
	if !ok {
		msg = ErrMap[Unknown]
	}
	parts := strings.Split(msg, ":")
	if lang == "cn" && len(parts) > 1 {
		return parts[1]
	}
	return parts[0]
}

// NewErrorCode localizes the message by the request Lang header.
func NewErrorCode(code int, c *gin.Context) GenericError {
	return GenericError{Code: code, Err: errors.New(splitMsg(code, c.GetHeader("Lang")))}
}
