// Package errors 提供统一错误辅助，不依赖 internal
package errors

import (
	"errors"
	"fmt"
)

// 哨兵错误，调用方用 errors.Is 判断
var (
	ErrInvalidArg    = errors.New("invalid argument")
	ErrMissingConfig = errors.New("missing required config")
)

// Wrap 包装错误并附加消息
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 带格式的 Wrap
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Missing 返回缺失配置项 key 的错误，可用 errors.Is(err, ErrMissingConfig) 判断
func Missing(key string) error {
	return fmt.Errorf("%w: %s", ErrMissingConfig, key)
}
