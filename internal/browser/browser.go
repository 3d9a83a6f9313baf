package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/perlpunk/openqa-review/internal/cache"
	"github.com/perlpunk/openqa-review/internal/logging"
)

// UserAgent 是所有请求固定携带的标识头。
const UserAgent = "openqa-review (https://os-autoinst.github.io/openqa_review)"

// Options 固定一个 Browser 实例的全部行为，构建后不再变更。
// Save 与 Load 互斥：前者把每次成功抓取写入磁盘，后者完全绕过网络、
// 只从磁盘读取 fixture。
type Options struct {
	RootURL  string
	Username string
	Password string
	Headers  map[string]string

	Save    bool
	Load    bool
	SaveDir string
	LoadDir string
	DryRun  bool

	// Timeout 为单次请求的整体超时，零值回落到 30s。
	Timeout time.Duration

	// Inspector 为 TLS 诊断探针，为空时使用内建的 crypto/tls 实现。
	Inspector CertInspector
}

// Browser 在一次运行内复用内存缓存与 HTTP 客户端。实例不做并发保护，
// 只应在单个 goroutine 中使用；并行化抓取时需要先给 memo 加锁。
type Browser struct {
	opts      Options
	logger    *logrus.Logger
	headers   map[string]string
	memo      map[string]string
	loadStore cache.Store
	saveStore cache.Store
	retry     *retryablehttp.Client
	direct    *http.Client
	inspector CertInspector
}

// New 构建 Browser。save 与 load 同时启用属于配置错误，直接拒绝。
func New(opts Options, logger *logrus.Logger) (*Browser, error) {
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Save && opts.Load {
		return nil, errors.New("save and load modes are mutually exclusive")
	}

	headers := make(map[string]string, len(opts.Headers)+1)
	for key, value := range opts.Headers {
		headers[key] = value
	}
	headers["User-Agent"] = UserAgent

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	b := &Browser{
		opts:      opts,
		logger:    logger,
		headers:   headers,
		memo:      make(map[string]string),
		retry:     newRetryClient(logger, timeout),
		direct:    &http.Client{Timeout: timeout},
		inspector: opts.Inspector,
	}
	if b.inspector == nil {
		b.inspector = tlsInspector{timeout: timeout}
	}

	if opts.Load {
		store, err := cache.NewStore(dirOrDot(opts.LoadDir))
		if err != nil {
			return nil, fmt.Errorf("open load dir: %w", err)
		}
		b.loadStore = store
	}
	if opts.Save {
		store, err := cache.NewStore(dirOrDot(opts.SaveDir))
		if err != nil {
			return nil, fmt.Errorf("open save dir: %w", err)
		}
		b.saveStore = store
	}

	return b, nil
}

// GetPage 返回 URL 对应的原始文本内容，默认启用缓存。
func (b *Browser) GetPage(ctx context.Context, rawURL string) (string, error) {
	return b.getContent(ctx, rawURL, false, true)
}

// GetJSON 返回 URL 对应的 JSON 正文。正文保持序列化文本形态
// （与磁盘/内存缓存的统一表示一致），调用方自行反序列化。
// 内容不是合法 JSON 时返回 DownloadError，错误信息内嵌截断后的正文。
func (b *Browser) GetJSON(ctx context.Context, rawURL string, useCache bool) (json.RawMessage, error) {
	raw, err := b.getContent(ctx, rawURL, true, useCache)
	if err != nil {
		return nil, err
	}
	if !json.Valid([]byte(raw)) {
		msg := fmt.Sprintf("Unable to decode JSON for %s (Content was: %s)", rawURL, truncateBody(raw))
		b.logger.WithFields(logging.FetchFields(rawURL, "decode", false)).Warn(msg)
		return nil, &DownloadError{URL: rawURL, Msg: msg}
	}
	return json.RawMessage(raw), nil
}

// getContent 按固定顺序解析内容：内存缓存 → 磁盘 fixture（load 模式）→
// 在线抓取。成功后按需落盘，并无条件写入内存缓存。asJSON 为真时在线
// 抓取的正文必须先通过 JSON 校验才算成功，校验失败的正文不进入任何缓存。
func (b *Browser) getContent(ctx context.Context, rawURL string, asJSON, useCache bool) (string, error) {
	if rawURL == "" {
		return "", errors.New("url can not be empty")
	}

	// 内存命中永远优先，load 模式下也避免重复读盘。
	if raw, ok := b.memo[rawURL]; ok && useCache {
		b.logger.WithFields(logging.FetchFields(rawURL, "memory", true)).
			Info("loading content from in-memory cache")
		return raw, nil
	}

	filename := EncodeFilename(rawURL)

	var raw string
	if b.opts.Load && useCache {
		body, err := b.loadStore.Get(ctx, filename)
		if err != nil {
			if errors.Is(err, cache.ErrNotFound) {
				// load 模式在模拟下载，缺失的 fixture 也要模拟为下载失败。
				msg := fmt.Sprintf("Request to %s was not successful, file %s not found", rawURL, filename)
				b.logger.WithFields(logging.FetchFields(rawURL, "disk", false)).Info(msg)
				return "", &CacheNotFoundError{
					DownloadError: DownloadError{URL: rawURL, Msg: msg},
					Filename:      filename,
				}
			}
			return "", err
		}
		b.logger.WithFields(logging.FetchFields(rawURL, "disk", true)).
			Infof("loading content from file %s", filename)
		raw = string(body)
	} else {
		absURL, err := b.absoluteURL(rawURL)
		if err != nil {
			return "", err
		}
		raw, err = b.fetchLive(ctx, absURL)
		if err != nil {
			return "", err
		}
		if asJSON && !json.Valid([]byte(raw)) {
			msg := fmt.Sprintf("Unable to decode JSON for %s (Content was: %s)", rawURL, truncateBody(raw))
			b.logger.WithFields(logging.FetchFields(rawURL, "live", false)).Warn(msg)
			return "", &DownloadError{URL: rawURL, Msg: msg}
		}
	}

	if b.opts.Save {
		if err := b.saveStore.Put(ctx, filename, []byte(raw)); err != nil {
			return "", fmt.Errorf("save fixture %s: %w", filename, err)
		}
		b.logger.WithFields(logging.FetchFields(rawURL, "disk", false)).
			Infof("saving content to file %s", filename)
	}

	b.memo[rawURL] = raw
	return raw, nil
}

// absoluteURL 把根相对 URL 解析到配置的 root URL 上，绝对 URL 原样返回。
func (b *Browser) absoluteURL(rawURL string) (string, error) {
	if !strings.HasPrefix(rawURL, "/") {
		return rawURL, nil
	}
	if b.opts.RootURL == "" {
		return "", fmt.Errorf("relative url %s requires a configured root url", rawURL)
	}
	base, err := url.Parse(b.opts.RootURL)
	if err != nil {
		return "", fmt.Errorf("parse root url: %w", err)
	}
	ref, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url %s: %w", rawURL, err)
	}
	return base.ResolveReference(ref).String(), nil
}

func dirOrDot(dir string) string {
	if dir == "" {
		return "."
	}
	return dir
}

// truncateBody 截断并转义正文，避免把整页内容塞进日志。
func truncateBody(raw string) string {
	const limit = 200
	if len(raw) > limit {
		raw = raw[:limit] + "..."
	}
	return fmt.Sprintf("%q", raw)
}
