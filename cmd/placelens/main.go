package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"placelens/internal/places"
)

const version = "placelens cli 0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run 执行一条子命令并返回退出码
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stdout)
		return 0
	}
	cmd, args := args[0], args[1:]
	switch cmd {
	case "version":
		fmt.Fprintln(stdout, version)
		return 0
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	}

	if _, ok := commands[cmd]; !ok {
		printUsage(stderr)
		return 1
	}
	env, err := setup()
	if err != nil {
		fmt.Fprintf(stderr, "加载配置失败: %v\n", err)
		return 1
	}
	defer env.close(ctx, stderr)
	return commands[cmd](ctx, env, args, stdin, stdout, stderr)
}

type command func(ctx context.Context, env *cliEnv, args []string, stdin io.Reader, stdout, stderr io.Writer) int

var commands map[string]command

func init() {
	commands = map[string]command{
		"config":            runConfig,
		"recommend":         runRecommend,
		"place-id":          runPlaceID,
		"analyze":           runAnalyze,
		"upload-image":      runUploadImage,
		"upload-video":      runUploadVideo,
		"population":        runPopulation,
		"gender-population": runGenderPopulation,
		"age-population":    runAgePopulation,
		"lookup":            runLookup,
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: placelens <command> [args]")
	fmt.Fprintln(w, "  version                 - 显示版本")
	fmt.Fprintln(w, "  config                  - 显示配置概要")
	fmt.Fprintln(w, "  recommend <image>       - 上传图片，输出推荐地点")
	fmt.Fprintln(w, "  place-id <name>         - 按地名查询 place_id")
	fmt.Fprintln(w, "  analyze <image> [-o out.jpg] - 图片识别，输出 captions，-o 保存标注图")
	fmt.Fprintln(w, "  upload-image <file>     - 仅上传图片")
	fmt.Fprintln(w, "  upload-video <file>     - 仅上传视频")
	fmt.Fprintln(w, "  population <region_id> [limit] [offset] - 查询区域人口快照")
	fmt.Fprintln(w, "  gender-population <region_id> [start HH:MM:SS] [end HH:MM:SS] - 查询性别人口，默认最近 60 分钟")
	fmt.Fprintln(w, "  age-population <min|max> <region_id> [limit] [offset] - 查询各年龄段人口")
	fmt.Fprintln(w, "  lookup                  - 交互式查询 place_id（exit/quit 退出）")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "配置: PLACELENS_CONFIG 指定 YAML 文件，或使用 PLACELENS_SERVER_URL 等环境变量")
}

func runConfig(_ context.Context, env *cliEnv, _ []string, _ io.Reader, stdout, _ io.Writer) int {
	cfg := env.cfg
	fmt.Fprintf(stdout, "config.file=%s\n", env.configPath)
	fmt.Fprintf(stdout, "server.url=%s\n", cfg.Server.URL)
	timeout, _ := cfg.Server.TimeoutDuration()
	fmt.Fprintf(stdout, "server.timeout=%s\n", timeout)
	fmt.Fprintf(stdout, "server.cors.enable=%t\n", cfg.Server.CORS.Enable)
	if cfg.Server.CORS.Enable {
		fmt.Fprintf(stdout, "server.cors.origin=%s\n", cfg.Server.CORS.Origin)
	}
	fmt.Fprintf(stdout, "log.level=%s\n", cfg.Log.Level)
	fmt.Fprintf(stdout, "monitoring.prometheus.enable=%t\n", cfg.Monitoring.Prometheus.Enable)
	fmt.Fprintf(stdout, "monitoring.tracing.enable=%t\n", cfg.Monitoring.Tracing.Enable)
	return 0
}

func runRecommend(ctx context.Context, env *cliEnv, args []string, _ io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprintf(stderr, "Usage: placelens recommend <image>\n")
		return 1
	}
	up, err := places.OpenFile(args[0])
	if err != nil {
		fmt.Fprintf(stderr, "打开文件失败: %v\n", err)
		return 1
	}
	defer up.Close()

	recommended, err := env.client.GetRecommendedPlaces(ctx, up)
	if err != nil {
		fmt.Fprintf(stderr, "获取推荐地点失败: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, prettyJSON(recommended))
	return 0
}

func runPlaceID(ctx context.Context, env *cliEnv, args []string, _ io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprintf(stderr, "Usage: placelens place-id <name>\n")
		return 1
	}
	// 未加引号的多词地名按空格拼回
	id, err := env.client.GetPlaceID(ctx, strings.Join(args, " "))
	if err != nil {
		fmt.Fprintf(stderr, "查询 place_id 失败: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, id)
	return 0
}

func runAnalyze(ctx context.Context, env *cliEnv, args []string, _ io.Reader, stdout, stderr io.Writer) int {
	var image, out string
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-o" && i+1 < len(args):
			out = args[i+1]
			i++
		case image == "" && !strings.HasPrefix(args[i], "-"):
			image = args[i]
		default:
			fmt.Fprintf(stderr, "Usage: placelens analyze <image> [-o out.jpg]\n")
			return 1
		}
	}
	if image == "" {
		fmt.Fprintf(stderr, "Usage: placelens analyze <image> [-o out.jpg]\n")
		return 1
	}
	up, err := places.OpenFile(image)
	if err != nil {
		fmt.Fprintf(stderr, "打开文件失败: %v\n", err)
		return 1
	}
	defer up.Close()

	res, err := env.client.AnalyzeImage(ctx, up)
	if err != nil {
		fmt.Fprintf(stderr, "图片识别失败: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, prettyJSON(res.Captions))
	if out == "" {
		return 0
	}
	img, err := res.ImageBytes()
	if err != nil {
		fmt.Fprintf(stderr, "解码标注图失败: %v\n", err)
		return 1
	}
	if err := os.WriteFile(out, img, 0644); err != nil {
		fmt.Fprintf(stderr, "保存标注图失败: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, "标注图已保存:", out)
	return 0
}

func runUploadImage(ctx context.Context, env *cliEnv, args []string, _ io.Reader, stdout, stderr io.Writer) int {
	return runStore(ctx, "upload-image", env.client.UploadImage, args, stdout, stderr)
}

func runUploadVideo(ctx context.Context, env *cliEnv, args []string, _ io.Reader, stdout, stderr io.Writer) int {
	return runStore(ctx, "upload-video", env.client.UploadVideo, args, stdout, stderr)
}

func runStore(ctx context.Context, name string, store func(context.Context, *places.Upload) (*places.StoredFile, error), args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprintf(stderr, "Usage: placelens %s <file>\n", name)
		return 1
	}
	up, err := places.OpenFile(args[0])
	if err != nil {
		fmt.Fprintf(stderr, "打开文件失败: %v\n", err)
		return 1
	}
	defer up.Close()

	stored, err := store(ctx, up)
	if err != nil {
		fmt.Fprintf(stderr, "上传失败: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, prettyJSON(stored))
	return 0
}

func runPopulation(ctx context.Context, env *cliEnv, args []string, _ io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 1 || len(args) > 3 {
		fmt.Fprintf(stderr, "Usage: placelens population <region_id> [limit] [offset]\n")
		return 1
	}
	page, err := parsePage(args[1:])
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}

	rows, err := env.client.GetRegionPopulation(ctx, args[0], page)
	if err != nil {
		fmt.Fprintf(stderr, "查询人口失败: %v\n", err)
		return 1
	}
	printRows(stdout, len(rows), rows)
	return 0
}

func runGenderPopulation(ctx context.Context, env *cliEnv, args []string, _ io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 1 || len(args) > 3 {
		fmt.Fprintf(stderr, "Usage: placelens gender-population <region_id> [start HH:MM:SS] [end HH:MM:SS]\n")
		return 1
	}
	var r places.TimeRange
	if len(args) > 1 {
		r.Start = args[1]
	}
	if len(args) > 2 {
		r.End = args[2]
	}

	rows, err := env.client.GetGenderPopulation(ctx, args[0], r)
	if err != nil {
		fmt.Fprintf(stderr, "查询性别人口失败: %v\n", err)
		return 1
	}
	printRows(stdout, len(rows), rows)
	return 0
}

func runAgePopulation(ctx context.Context, env *cliEnv, args []string, _ io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 2 || len(args) > 4 || (args[0] != "min" && args[0] != "max") {
		fmt.Fprintf(stderr, "Usage: placelens age-population <min|max> <region_id> [limit] [offset]\n")
		return 1
	}
	page, err := parsePage(args[2:])
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}

	get := env.client.GetAgeMinPopulation
	if args[0] == "max" {
		get = env.client.GetAgeMaxPopulation
	}
	rows, err := get(ctx, args[1], page)
	if err != nil {
		fmt.Fprintf(stderr, "查询年龄段人口失败: %v\n", err)
		return 1
	}
	printRows(stdout, len(rows), rows)
	return 0
}

// parsePage 解析可选的 [limit] [offset]
func parsePage(args []string) (places.Page, error) {
	var page places.Page
	for i, dst := range []*int{&page.Limit, &page.Offset} {
		if len(args) <= i {
			break
		}
		n, err := strconv.Atoi(args[i])
		if err != nil || n < 0 {
			return page, fmt.Errorf("无效的分页参数: %q", args[i])
		}
		*dst = n
	}
	return page, nil
}

func printRows(w io.Writer, n int, rows interface{}) {
	if n == 0 {
		fmt.Fprintln(w, "[]")
		return
	}
	fmt.Fprintln(w, prettyJSON(rows))
}
