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

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	perrors "placelens/pkg/errors"
	"placelens/pkg/utils"
)

// EnvPrefix 环境变量前缀：server.url <-> PLACELENS_SERVER_URL
const EnvPrefix = "PLACELENS"

// DefaultTimeout 单次请求默认超时（含上传与识别耗时）
const DefaultTimeout = 60 * time.Second

// Config 客户端配置结构体
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// ServerConfig 后端服务配置
type ServerConfig struct {
	URL     string     `mapstructure:"url"`     // 后端根地址，加载后已去掉末尾 '/'
	Timeout string     `mapstructure:"timeout"` // 如 "60s"，空则默认 DefaultTimeout
	CORS    CORSConfig `mapstructure:"cors"`
}

// CORSConfig 跨域请求配置：启用后每个请求带 Origin 头
type CORSConfig struct {
	Enable bool   `mapstructure:"enable"`
	Origin string `mapstructure:"origin"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// PrometheusConfig Prometheus 配置；CLI 为一次性进程，指标写入 textfile 供 node_exporter 采集
type PrometheusConfig struct {
	Enable   bool   `mapstructure:"enable"`
	Textfile string `mapstructure:"textfile"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// TimeoutDuration 解析 Timeout，空值返回 DefaultTimeout
func (s ServerConfig) TimeoutDuration() (time.Duration, error) {
	if s.Timeout == "" {
		return DefaultTimeout, nil
	}
	d, err := time.ParseDuration(s.Timeout)
	if err != nil {
		return 0, perrors.Wrapf(perrors.ErrInvalidArg, "server.timeout %q", s.Timeout)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: server.timeout must be positive, got %s", perrors.ErrInvalidArg, s.Timeout)
	}
	return d, nil
}

// defaults 所有已知 key 都要注册，否则 AutomaticEnv 在 Unmarshal 时看不到对应环境变量
var defaults = map[string]any{
	"server.url":                         "",
	"server.timeout":                     "",
	"server.cors.enable":                 false,
	"server.cors.origin":                 "",
	"log.level":                          "info",
	"log.format":                         "json",
	"log.file":                           "",
	"monitoring.prometheus.enable":       false,
	"monitoring.prometheus.textfile":     "",
	"monitoring.tracing.enable":          false,
	"monitoring.tracing.service_name":    "placelens",
	"monitoring.tracing.export_endpoint": "",
	"monitoring.tracing.insecure":        false,
}

// LoadConfig 加载配置：path 非空时读取 YAML 文件，再叠加 PLACELENS_* 环境变量。
// server.url 缺失时立即失败（启动期错误，而非每次调用时报错）。
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, perrors.Wrap(err, "无法读取配置文件")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, perrors.Wrap(err, "无法解析配置文件")
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// normalize 校验并规范化配置
func (c *Config) normalize() error {
	c.Server.URL = utils.TrimTrailingSlashes(strings.TrimSpace(c.Server.URL))
	if c.Server.URL == "" {
		return perrors.Missing("server.url (env " + EnvPrefix + "_SERVER_URL)")
	}
	if _, err := c.Server.TimeoutDuration(); err != nil {
		return err
	}
	if c.Server.CORS.Enable && c.Server.CORS.Origin == "" {
		return perrors.Missing("server.cors.origin")
	}
	c.Monitoring.Tracing.ServiceName = utils.CoalesceString(c.Monitoring.Tracing.ServiceName, "placelens")
	return nil
}
