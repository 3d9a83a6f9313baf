package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/perlpunk/openqa-review/internal/config"
)

func TestParseCLIFlagsDefaults(t *testing.T) {
	t.Setenv("OPENQA_REVIEW_CONFIG", "")

	opts, err := parseCLIFlags(nil)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "config.toml" {
		t.Fatalf("默认配置路径不符: %s", opts.configPath)
	}
	if opts.save || opts.load || opts.dryRun || opts.checkOnly {
		t.Fatalf("布尔开关默认应全部关闭")
	}
}

func TestParseCLIFlagsEnvAndFlagPrecedence(t *testing.T) {
	t.Setenv("OPENQA_REVIEW_CONFIG", "/etc/openqa-review/env.toml")

	opts, err := parseCLIFlags(nil)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "/etc/openqa-review/env.toml" {
		t.Fatalf("环境变量未生效: %s", opts.configPath)
	}

	// 显式 --config 优先于环境变量。
	opts, err = parseCLIFlags([]string{"--config", "/tmp/cli.toml"})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if opts.configPath != "/tmp/cli.toml" {
		t.Fatalf("--config 应覆盖环境变量: %s", opts.configPath)
	}
}

func TestParseCLIFlagsRejectsSaveAndLoad(t *testing.T) {
	if _, err := parseCLIFlags([]string{"--save", "--load"}); err == nil {
		t.Fatalf("--save 与 --load 同时出现应报错")
	}
}

func TestParseCLIFlagsCollectsURLs(t *testing.T) {
	t.Setenv("OPENQA_REVIEW_CONFIG", "")

	opts, err := parseCLIFlags([]string{"--json", "--no-cache", "http://host/a", "http://host/b"})
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if !opts.asJSON || !opts.noCache {
		t.Fatalf("开关未生效: %+v", opts)
	}
	if len(opts.urls) != 2 || opts.urls[0] != "http://host/a" {
		t.Fatalf("URL 参数不符: %v", opts.urls)
	}
}

func TestRunVersion(t *testing.T) {
	out := captureStdout(t)

	if code := run(cliOptions{showVersion: true}); code != 0 {
		t.Fatalf("退出码不符: %d", code)
	}
	if !strings.Contains(out.String(), "openqa-review") {
		t.Fatalf("版本输出不符: %s", out.String())
	}
}

func TestRunCheckConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "RootURL = \"https://openqa.opensuse.org\"\nLogLevel = \"warning\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("写配置失败: %v", err)
	}

	if code := run(cliOptions{configPath: path, checkOnly: true}); code != 0 {
		t.Fatalf("合法配置校验应通过，退出码 %d", code)
	}
}

func TestRunCheckConfigBadFile(t *testing.T) {
	errOut := captureStderr(t)

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("Save = true\nLoad = true\n"), 0o644); err != nil {
		t.Fatalf("写配置失败: %v", err)
	}

	if code := run(cliOptions{configPath: path, checkOnly: true}); code != 1 {
		t.Fatalf("非法配置应返回 1")
	}
	if !strings.Contains(errOut.String(), "加载配置失败") {
		t.Fatalf("错误输出不符: %s", errOut.String())
	}
}

func TestRunFetchesAndPrintsURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"ok":true}`)
	}))
	defer server.Close()

	out := captureStdout(t)
	captureStderr(t)

	code := run(cliOptions{
		configPath: filepath.Join(t.TempDir(), "missing.toml"),
		asJSON:     true,
		urls:       []string{server.URL + "/api/v1/jobs"},
	})
	if code != 0 {
		t.Fatalf("抓取应成功，退出码 %d", code)
	}
	if !strings.Contains(out.String(), `{"ok":true}`) {
		t.Fatalf("输出不符: %s", out.String())
	}
}

func TestRunWithoutURLsFails(t *testing.T) {
	errOut := captureStderr(t)

	code := run(cliOptions{configPath: filepath.Join(t.TempDir(), "missing.toml")})
	if code != 1 {
		t.Fatalf("缺少 URL 应返回 1")
	}
	if !strings.Contains(errOut.String(), "至少需要一个") {
		t.Fatalf("错误输出不符: %s", errOut.String())
	}
}

func TestMergeFlagsOverridesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("SaveDir = \"/var/a\"\n"), 0o644); err != nil {
		t.Fatalf("写配置失败: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}

	if err := mergeFlags(cfg, cliOptions{save: true, saveDir: "/var/b"}); err != nil {
		t.Fatalf("合并失败: %v", err)
	}
	if !cfg.Save || cfg.SaveDir != "/var/b" {
		t.Fatalf("CLI 覆盖未生效: save=%v dir=%s", cfg.Save, cfg.SaveDir)
	}

	// 配置里 load、CLI 里 save，合并后违反互斥。
	cfg.Load = true
	if err := mergeFlags(cfg, cliOptions{}); err == nil {
		t.Fatalf("合并后的互斥违规应被捕获")
	}
}

func captureStdout(t *testing.T) *bytes.Buffer {
	t.Helper()
	old := stdOut
	buf := &bytes.Buffer{}
	stdOut = buf
	t.Cleanup(func() { stdOut = old })
	return buf
}

func captureStderr(t *testing.T) *bytes.Buffer {
	t.Helper()
	old := stdErr
	buf := &bytes.Buffer{}
	stdErr = buf
	t.Cleanup(func() { stdErr = old })
	return buf
}
