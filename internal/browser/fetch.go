package browser

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

const (
	defaultTimeout = 30 * time.Second

	// retryTotal/backoffMin 对应 “7 次重试、因子 2 指数退避” 的固定策略，
	// 等待序列为 2s、4s、8s…，封顶 backoffMax。
	retryTotal = 7
	backoffMin = 2 * time.Second
	backoffMax = 120 * time.Second
)

// retryStatusCodes 是可安全重试的 HTTP 状态码集合。
var retryStatusCodes = map[int]struct{}{
	http.StatusTooManyRequests:     {},
	http.StatusInternalServerError: {},
	http.StatusBadGateway:          {},
	http.StatusServiceUnavailable:  {},
	http.StatusGatewayTimeout:      {},
}

func newRetryClient(logger *logrus.Logger, timeout time.Duration) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = retryTotal
	client.RetryWaitMin = backoffMin
	client.RetryWaitMax = backoffMax
	client.Backoff = retryablehttp.DefaultBackoff
	client.CheckRetry = checkRetry
	// 状态码重试耗尽时把最后一个响应透传出来，让调用方报告具体状态，
	// 而不是 retryablehttp 的 "giving up" 包装错误。
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	client.HTTPClient.Timeout = timeout
	client.Logger = retryLogger{logger: logger}
	return client
}

// checkRetry 只在连接类错误与固定状态码集合上重试。TLS 校验失败立即
// 终止重试，交给上层生成证书诊断信息。
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		if isCertError(err) {
			return false, err
		}
		return true, nil
	}
	if _, ok := retryStatusCodes[resp.StatusCode]; ok {
		return true, nil
	}
	return false, nil
}

// isConnectionError 判断是否为连接层错误。上下文取消/超时与 TLS 校验
// 失败不算：前者必须原样上抛，后者交给证书诊断。
func isConnectionError(err error) bool {
	if err == nil || isCertError(err) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func isCertError(err error) bool {
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return true
	}
	var unknownAuthority x509.UnknownAuthorityError
	if errors.As(err, &unknownAuthority) {
		return true
	}
	var hostnameErr x509.HostnameError
	return errors.As(err, &hostnameErr)
}

// fetchLive 执行一次真实的网络 GET（含重试预算），返回 UTF-8 正文。
func (b *Browser) fetchLive(ctx context.Context, absURL string) (string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, absURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request for %s: %w", absURL, err)
	}
	for key, value := range b.headers {
		req.Header.Set(key, value)
	}
	if b.opts.Username != "" {
		req.SetBasicAuth(b.opts.Username, b.opts.Password)
	}

	requestID := uuid.NewString()
	b.logger.WithFields(logrus.Fields{
		"action":     "fetch",
		"url":        absURL,
		"source":     "live",
		"request_id": requestID,
	}).Debug("fetching live url")

	resp, err := b.retry.Do(req)
	if err != nil {
		if isCertError(err) {
			return "", b.certDiagnostic(ctx, absURL, err)
		}
		msg := fmt.Sprintf("Request to %s was not successful after %d retries: %v", absURL, b.retry.RetryMax, err)
		b.logger.WithField("request_id", requestID).Warn(msg)
		return "", &DownloadError{URL: absURL, Msg: msg, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg := fmt.Sprintf("Request to %s failed: %d %s", absURL, resp.StatusCode, http.StatusText(resp.StatusCode))
		b.logger.WithField("request_id", requestID).Warn(msg)
		return "", &DownloadError{URL: absURL, Msg: msg}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		msg := fmt.Sprintf("Request to %s was not successful: %v", absURL, err)
		b.logger.WithField("request_id", requestID).Warn(msg)
		return "", &DownloadError{URL: absURL, Msg: msg, Err: err}
	}
	return string(body), nil
}

// certDiagnostic 在 TLS 信任失败后做一次裸证书探测，把签发方与指纹
// 嵌入错误信息帮助运维定位自签名/不受信证书。探测本身失败时必须
// 原样返回最初的 TLS 错误，不能掩盖根因。
func (b *Browser) certDiagnostic(ctx context.Context, absURL string, tlsErr error) error {
	parsed, err := url.Parse(absURL)
	if err != nil {
		return tlsErr
	}
	// 诊断探测固定走 443：不带端口的主机名交给探测器补默认端口。
	serverName := parsed.Hostname()

	info, err := b.inspector.Inspect(ctx, serverName)
	if err != nil {
		b.logger.WithError(err).WithField("url", absURL).
			Warn("certificate introspection unavailable")
		return tlsErr
	}

	msg := fmt.Sprintf("Certificate for %q from %q (sha1: %s, sha256 %s) is not trusted by the system",
		serverName, info.Issuer, info.SHA1, info.SHA256)
	b.logger.WithField("url", absURL).Error(msg)
	return &DownloadError{URL: absURL, Msg: msg, Err: tlsErr}
}

// retryLogger 把 retryablehttp 的内部日志桥接到 logrus。
type retryLogger struct {
	logger *logrus.Logger
}

func (l retryLogger) fields(keysAndValues []interface{}) logrus.Fields {
	fields := logrus.Fields{"source": "retryablehttp"}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			fields[key] = keysAndValues[i+1]
		}
	}
	return fields
}

func (l retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(l.fields(keysAndValues)).Error(msg)
}

func (l retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(l.fields(keysAndValues)).Warn(msg)
}

func (l retryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(l.fields(keysAndValues)).Info(msg)
}

func (l retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(l.fields(keysAndValues)).Debug(msg)
}
