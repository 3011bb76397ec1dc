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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"placelens/internal/places"
	"placelens/pkg/config"
	plog "placelens/pkg/log"
	"placelens/pkg/metrics"
	"placelens/pkg/tracing"
)

// defaultConfigPath 未设置 PLACELENS_CONFIG 时，若该文件存在则读取
const defaultConfigPath = "configs/placelens.yaml"

// cliEnv 一次 CLI 运行所需的配置、日志与客户端
type cliEnv struct {
	configPath string
	cfg        *config.Config
	logger     *plog.Logger
	client     *places.Client
	tp         *sdktrace.TracerProvider
}

func configPath() string {
	if p := os.Getenv("PLACELENS_CONFIG"); p != "" {
		return p
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return defaultConfigPath
	}
	return ""
}

func setup() (*cliEnv, error) {
	env := &cliEnv{configPath: configPath()}
	cfg, err := config.LoadConfig(env.configPath)
	if err != nil {
		return nil, err
	}
	env.cfg = cfg

	env.logger, err = plog.NewLogger(&plog.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return nil, err
	}

	if cfg.Monitoring.Tracing.Enable {
		env.tp, err = tracing.InitTracer(tracing.OTelConfig{
			ServiceName:    cfg.Monitoring.Tracing.ServiceName,
			ExportEndpoint: cfg.Monitoring.Tracing.ExportEndpoint,
			Insecure:       cfg.Monitoring.Tracing.Insecure,
		})
		if err != nil {
			env.logger.Warn("初始化 tracing 失败，继续运行", "error", err)
		}
	}

	env.client, err = places.NewFromConfig(cfg.Server, places.WithLogger(env.logger.Logger))
	if err != nil {
		env.close(context.Background(), io.Discard)
		return nil, err
	}
	return env, nil
}

// close 导出指标、刷新 span 并关闭日志文件
func (e *cliEnv) close(ctx context.Context, stderr io.Writer) {
	if e.cfg != nil && e.cfg.Monitoring.Prometheus.Enable && e.cfg.Monitoring.Prometheus.Textfile != "" {
		if err := metrics.WriteTextfile(e.cfg.Monitoring.Prometheus.Textfile); err != nil {
			fmt.Fprintf(stderr, "写入指标文件失败: %v\n", err)
		}
	}
	if e.tp != nil {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := e.tp.Shutdown(ctx); err != nil {
			e.logger.Warn("关闭 tracer 失败", "error", err)
		}
	}
	_ = e.logger.Close()
}

// lineReader 按行读取输入；*readline.Instance 满足该接口
type lineReader interface {
	Readline() (string, error)
}

func runLookup(ctx context.Context, env *cliEnv, _ []string, stdin io.Reader, stdout, stderr io.Writer) int {
	rl, err := readline.NewEx(&readline.Config{
		Prompt: "place> ",
		Stdin:  io.NopCloser(stdin),
		Stdout: stdout,
		Stderr: stderr,
	})
	if err != nil {
		fmt.Fprintf(stderr, "初始化输入失败: %v\n", err)
		return 1
	}
	defer func() {
		_ = rl.Close()
	}()
	return lookupLoop(ctx, env.client, rl, stdout, stderr)
}

// lookupLoop 逐行读取地名并输出 place_id；单次查询失败不退出循环
func lookupLoop(ctx context.Context, client *places.Client, lines lineReader, stdout, stderr io.Writer) int {
	for {
		line, err := lines.Readline()
		if err != nil { // io.EOF 或 Ctrl-C
			return 0
		}
		name := strings.TrimSpace(line)
		if name == "" {
			continue
		}
		if name == "exit" || name == "quit" {
			return 0
		}
		if ctx.Err() != nil {
			return 1
		}
		id, err := client.GetPlaceID(ctx, name)
		if err != nil {
			fmt.Fprintf(stderr, "查询失败: %v\n", err)
			continue
		}
		fmt.Fprintf(stdout, "%s\t%s\n", name, id)
	}
}

func prettyJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
