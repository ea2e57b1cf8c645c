package service

import (
	"errors"
	"fmt"
)

// ErrOrderNotFound 按ID找不到订单（未持久化或不存在）
var ErrOrderNotFound = errors.New("order not found")

// ValidationError 面向用户的校验错误：整批中止，不产生任何写入。
// 交互式操作原样上抛，HTTP层映射为400。
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError 构造校验错误
func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidationError 判断是否校验错误
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
