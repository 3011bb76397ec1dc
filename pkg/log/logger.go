// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger 简单封装 slog，附带可关闭的输出文件
type Logger struct {
	*slog.Logger
	closer io.Closer
}

// Config 日志配置（与 config.LogConfig 字段一致）
type Config struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// NewLogger 根据配置创建 Logger，cfg 可为 nil 使用默认（info、JSON、stderr）。
// cfg.File 非空时追加写入该文件。
func NewLogger(cfg *Config) (*Logger, error) {
	if cfg == nil || cfg.File == "" {
		return NewLoggerTo(os.Stderr, cfg), nil
	}
	f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", cfg.File, err)
	}
	l := NewLoggerTo(f, cfg)
	l.closer = f
	return l, nil
}

// NewLoggerTo 创建写入 w 的 Logger，忽略 cfg.File
func NewLoggerTo(w io.Writer, cfg *Config) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg)}
	var h slog.Handler = slog.NewJSONHandler(w, opts)
	if cfg != nil && cfg.Format == "text" {
		h = slog.NewTextHandler(w, opts)
	}
	return &Logger{Logger: slog.New(h)}
}

// Discard 返回丢弃所有输出的 Logger，测试与未配置时使用
func Discard() *Logger {
	return NewLoggerTo(io.Discard, nil)
}

// Close 关闭日志文件（若有）
func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

func parseLevel(cfg *Config) slog.Level {
	if cfg == nil {
		return slog.LevelInfo
	}
	switch strings.ToLower(cfg.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
