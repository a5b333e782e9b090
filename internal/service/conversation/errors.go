package conversation

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFilter 筛选条件不合法（空条件删除、负时间、时间范围颠倒等）
	ErrInvalidFilter = errors.New("invalid filter")
	// ErrConversationNotFound 对话记录不存在
	ErrConversationNotFound = errors.New("conversation not found")
)

// StorageError 存储层错误，保留原始错误供 errors.Is/As 判断
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

func invalidFilter(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidFilter, fmt.Sprintf(format, args...))
}
