package resolver

import (
	"errors"
	"fmt"
)

var (
	// ErrUnregistered 表示包的版本表尚未进入索引就被要求预取。
	ErrUnregistered = errors.New("package versions were never registered")
	// ErrSinkClosed 表示请求通道的接收方已关闭。
	ErrSinkClosed = errors.New("request sink closed")
)

// ResolveError 携带出错的操作与包名。
type ResolveError struct {
	Op      string
	Package string
	Err     error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Package, e.Err)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}
