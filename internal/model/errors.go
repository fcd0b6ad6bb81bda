package model

import "errors"

// ErrUnrecoverable 标记重试无意义的错误（如配置缺失），监控循环遇到后直接退出。
var ErrUnrecoverable = errors.New("unrecoverable")

type unrecoverableError struct{ err error }

func (e unrecoverableError) Error() string { return e.err.Error() }
func (e unrecoverableError) Unwrap() []error {
	return []error{e.err, ErrUnrecoverable}
}

// Unrecoverable 包装 err，使 errors.Is(err, ErrUnrecoverable) 为真。
func Unrecoverable(err error) error {
	if err == nil {
		return nil
	}
	return unrecoverableError{err: err}
}
