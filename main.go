package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/perlpunk/openqa-review/internal/browser"
	"github.com/perlpunk/openqa-review/internal/cache"
	"github.com/perlpunk/openqa-review/internal/config"
	"github.com/perlpunk/openqa-review/internal/fixture"
	"github.com/perlpunk/openqa-review/internal/logging"
	"github.com/perlpunk/openqa-review/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath    string
	checkOnly     bool
	showVersion   bool
	save          bool
	load          bool
	saveDir       string
	loadDir       string
	dryRun        bool
	asJSON        bool
	noCache       bool
	serveFixtures bool
	rootURL       string
	urls          []string
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}
	if err := mergeFlags(cfg, opts); err != nil {
		fmt.Fprintf(stdErr, "%v\n", err)
		return 1
	}

	logger, err := logging.Init(logging.Options{
		Level:      cfg.LogLevel,
		FilePath:   cfg.LogFilePath,
		MaxSize:    cfg.LogMaxSize,
		MaxBackups: cfg.LogMaxBackups,
		Compress:   cfg.LogCompress,
	})
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["save"] = cfg.Save
		fields["load"] = cfg.Load
		fields["dry_run"] = cfg.DryRun
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	if opts.serveFixtures {
		return serveFixtures(cfg, logger)
	}
	return fetchURLs(cfg, opts, logger)
}

// fetchURLs 按顺序抓取每个 URL 并打印正文，任何一次失败都终止本轮。
func fetchURLs(cfg *config.Config, opts cliOptions, logger *logrus.Logger) int {
	if len(opts.urls) == 0 {
		fmt.Fprintln(stdErr, "至少需要一个待抓取的 URL")
		return 1
	}

	b, err := browser.New(browserOptions(cfg), logger)
	if err != nil {
		fmt.Fprintf(stdErr, "构建 browser 失败: %v\n", err)
		return 1
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["save"] = cfg.Save
	fields["load"] = cfg.Load
	fields["dry_run"] = cfg.DryRun
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	ctx := context.Background()
	for _, rawURL := range opts.urls {
		var content string
		if opts.asJSON {
			raw, err := b.GetJSON(ctx, rawURL, !opts.noCache)
			if err != nil {
				fmt.Fprintf(stdErr, "抓取 %s 失败: %v\n", rawURL, err)
				return 1
			}
			content = string(raw)
		} else {
			page, err := b.GetPage(ctx, rawURL)
			if err != nil {
				fmt.Fprintf(stdErr, "抓取 %s 失败: %v\n", rawURL, err)
				return 1
			}
			content = page
		}
		fmt.Fprintln(stdOut, content)
	}
	return 0
}

// serveFixtures 把 load 目录里的 fixture 通过 HTTP 暴露出来。
func serveFixtures(cfg *config.Config, logger *logrus.Logger) int {
	store, err := cache.NewStore(cfg.LoadDir)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化 fixture 目录失败: %v\n", err)
		return 1
	}

	app, err := fixture.NewApp(fixture.Options{Logger: logger, Store: store})
	if err != nil {
		fmt.Fprintf(stdErr, "构建 fixture 服务失败: %v\n", err)
		return 1
	}

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   cfg.FixturePort,
		"dir":    cfg.LoadDir,
	}).Info("fixture 回放服务启动")

	if err := app.Listen(fmt.Sprintf(":%d", cfg.FixturePort)); err != nil {
		fmt.Fprintf(stdErr, "fixture 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// mergeFlags 把 CLI 标志合并进配置：布尔开关做或运算，字符串仅在
// 显式传入时覆盖，最终再做一次语义校验。
func mergeFlags(cfg *config.Config, opts cliOptions) error {
	cfg.Save = cfg.Save || opts.save
	cfg.Load = cfg.Load || opts.load
	cfg.DryRun = cfg.DryRun || opts.dryRun
	if opts.saveDir != "" {
		cfg.SaveDir = opts.saveDir
	}
	if opts.loadDir != "" {
		cfg.LoadDir = opts.loadDir
	}
	if opts.rootURL != "" {
		cfg.RootURL = opts.rootURL
	}
	return cfg.Validate()
}

func browserOptions(cfg *config.Config) browser.Options {
	return browser.Options{
		RootURL:  cfg.RootURL,
		Username: cfg.Username,
		Password: cfg.Password,
		Save:     cfg.Save,
		Load:     cfg.Load,
		SaveDir:  cfg.SaveDir,
		LoadDir:  cfg.LoadDir,
		DryRun:   cfg.DryRun,
		Timeout:  cfg.RequestTimeout.DurationValue(),
	}
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("openqa-review", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var opts cliOptions
	var configFlag string

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 OPENQA_REVIEW_CONFIG 覆盖）")
	fs.BoolVar(&opts.checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&opts.showVersion, "version", false, "显示版本信息")
	fs.BoolVar(&opts.save, "save", false, "把每次成功抓取的正文保存到 save-dir，便于之后用 --load 离线回放")
	fs.BoolVar(&opts.load, "load", false, "完全离线运行，只从 load-dir 读取此前保存的 fixture")
	fs.StringVar(&opts.saveDir, "save-dir", "", "--save 模式的写入目录（默认当前目录）")
	fs.StringVar(&opts.loadDir, "load-dir", "", "--load 模式的读取目录（默认当前目录）")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "只记录而不发送副作用型请求")
	fs.BoolVar(&opts.asJSON, "json", false, "把抓取结果当作 JSON 校验后输出")
	fs.BoolVar(&opts.noCache, "no-cache", false, "本次抓取绕过缓存（仍会写入内存缓存）")
	fs.BoolVar(&opts.serveFixtures, "serve-fixtures", false, "启动 fixture 回放服务，而不是抓取 URL")
	fs.StringVar(&opts.rootURL, "root-url", "", "根相对 URL 的解析基准")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	if opts.save && opts.load {
		return cliOptions{}, fmt.Errorf("--save 与 --load 互斥")
	}

	path := os.Getenv("OPENQA_REVIEW_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}
	opts.configPath = path
	opts.urls = fs.Args()

	return opts, nil
}
