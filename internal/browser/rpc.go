package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
)

// postRetryTotal 是副作用型 POST 的连接错误重试预算。
const postRetryTotal = 6

// rpcEnvelope 只解出 error 字段，result 保持原始形态交给调用方。
type rpcEnvelope struct {
	Error *rpcErrorBody `json:"error"`
}

type rpcErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// JSONRPCGet 以 GET 查询串形式发起 JSON-RPC 调用并走完整的缓存管线。
// 查询键由 url.Values.Encode 排序输出（method 在 params 之前），
// 保证相同逻辑请求生成稳定可复现的 fixture 文件名。
// 响应中 error 字段非空时转换为 RPCError，code 101 细化为 BugNotFoundError。
func (b *Browser) JSONRPCGet(ctx context.Context, rawURL, method string, params any, useCache bool) (json.RawMessage, error) {
	encodedParams, err := json.Marshal([]any{params})
	if err != nil {
		return nil, fmt.Errorf("marshal rpc params: %w", err)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse rpc url %s: %w", rawURL, err)
	}
	// 合并进已有查询串，避免端点自带参数时出现双 '?'。
	values := parsed.Query()
	values.Set("method", method)
	values.Set("params", string(encodedParams))
	parsed.RawQuery = values.Encode()
	getURL := parsed.String()

	response, err := b.GetJSON(ctx, getURL, useCache)
	if err != nil {
		return nil, err
	}

	var envelope rpcEnvelope
	if err := json.Unmarshal(response, &envelope); err != nil {
		msg := fmt.Sprintf("Unable to decode JSON-RPC envelope for %s: %v", getURL, err)
		return nil, &DownloadError{URL: getURL, Msg: msg, Err: err}
	}
	if envelope.Error != nil {
		rpcErr := RPCError{URL: getURL, Code: envelope.Error.Code, Message: envelope.Error.Message}
		if rpcErr.Code == CodeBugNotFound {
			return nil, &BugNotFoundError{RPCError: rpcErr}
		}
		return nil, &rpcErr
	}
	return response, nil
}

// JSONRPCPost 发起副作用型 JSON-RPC 调用。dry-run 模式只记录日志并返回
// 空对象。连接错误最多重试 6 次且不做退避，预算耗尽返回 (nil, nil)
// 软失败，避免一次通知失败中断整轮报告。GET 路径的状态码重试策略刻意
// 不在此复用：语义不明的 5xx 上重复提交可能产生重复副作用。
func (b *Browser) JSONRPCPost(ctx context.Context, rawURL, method string, params any) (json.RawMessage, error) {
	if b.opts.DryRun {
		b.logger.WithFields(logrus.Fields{
			"action": "dry_run",
			"method": method,
			"url":    rawURL,
		}).Warnf("NOT sending '%s' request to '%s' with params %v", method, rawURL, params)
		return json.RawMessage("{}"), nil
	}

	absURL, err := b.absoluteURL(rawURL)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(map[string]any{"method": method, "params": []any{params}})
	if err != nil {
		return nil, fmt.Errorf("marshal rpc body: %w", err)
	}

	for attempt := 1; attempt <= postRetryTotal; attempt++ {
		resp, err := b.doJSONRequest(ctx, http.MethodPost, absURL, body)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// 重试预算只覆盖连接层错误，其余传输失败原样上抛。
			if !isConnectionError(err) {
				msg := fmt.Sprintf("Request to %s was not successful: %v", absURL, err)
				return nil, &DownloadError{URL: absURL, Msg: msg, Err: err}
			}
			b.logger.WithFields(logrus.Fields{
				"action":  "rpc_post",
				"url":     absURL,
				"attempt": attempt,
			}).Infof("Connection error encountered accessing %s, retrying try %d", absURL, attempt)
			continue
		}
		return b.finishJSON(absURL, resp)
	}

	msg := fmt.Sprintf("Request to %s was not successful after multiple retries, giving up", absURL)
	b.logger.WithFields(logrus.Fields{"action": "rpc_post", "url": absURL}).Warn(msg)
	return nil, nil
}

// JSONRest 执行任意 HTTP 方法的 JSON REST 调用，只尝试一次。
// dry-run 模式下抑制所有非 GET 请求，与 JSONRPCPost 的行为一致。
func (b *Browser) JSONRest(ctx context.Context, rawURL, method string, data any) (json.RawMessage, error) {
	if b.opts.DryRun && !strings.EqualFold(method, http.MethodGet) {
		b.logger.WithFields(logrus.Fields{
			"action": "dry_run",
			"method": method,
			"url":    rawURL,
		}).Warnf("NOT sending '%s' request to '%s' with params %v", method, rawURL, data)
		return json.RawMessage("{}"), nil
	}

	absURL, err := b.absoluteURL(rawURL)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal rest body: %w", err)
	}

	resp, err := b.doJSONRequest(ctx, strings.ToUpper(method), absURL, body)
	if err != nil {
		msg := fmt.Sprintf("Request to %s was not successful: %v", absURL, err)
		b.logger.WithFields(logrus.Fields{"action": "rest", "url": absURL}).Warn(msg)
		return nil, &DownloadError{URL: absURL, Msg: msg, Err: err}
	}
	return b.finishJSON(absURL, resp)
}

// doJSONRequest 发送携带 JSON 正文的单次请求，错误仅代表传输层失败。
func (b *Browser) doJSONRequest(ctx context.Context, method, absURL string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, absURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for key, value := range b.headers {
		req.Header.Set(key, value)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.opts.Username != "" {
		req.SetBasicAuth(b.opts.Username, b.opts.Password)
	}
	return b.direct.Do(req)
}

// finishJSON 读取响应并按状态码/正文产出结果：HTTP 错误状态转换为
// DownloadError，空正文返回 (nil, nil)。
func (b *Browser) finishJSON(absURL string, resp *http.Response) (json.RawMessage, error) {
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		msg := fmt.Sprintf("Request to %s was not successful: %v", absURL, err)
		return nil, &DownloadError{URL: absURL, Msg: msg, Err: err}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		msg := fmt.Sprintf("Request to %s failed: %d %s", absURL, resp.StatusCode, http.StatusText(resp.StatusCode))
		return nil, &DownloadError{URL: absURL, Msg: msg}
	}

	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if !json.Valid(trimmed) {
		msg := fmt.Sprintf("Unable to decode JSON for %s (Content was: %s)", absURL, truncateBody(string(trimmed)))
		return nil, &DownloadError{URL: absURL, Msg: msg}
	}
	return json.RawMessage(trimmed), nil
}
