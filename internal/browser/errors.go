package browser

import (
	"errors"
	"fmt"
)

// CodeBugNotFound 是 bug 跟踪 API 约定的 “记录不存在” 错误码。
const CodeBugNotFound = 101

// DownloadError 表示一次在线请求未能取得有效内容：连接失败、HTTP 错误
// 状态、TLS 信任失败或 JSON 正文损坏都归入此类。
type DownloadError struct {
	URL string
	Msg string
	Err error
}

func (e *DownloadError) Error() string {
	return e.Msg
}

// Unwrap 暴露底层传输错误，便于调用方用 errors.Is 继续判断根因。
func (e *DownloadError) Unwrap() error {
	return e.Err
}

// CacheNotFoundError 仅在 load 模式下出现：磁盘上缺少对应的 fixture 时，
// 模拟一次下载失败，调用方可以把它与真实的 404/连接失败同等处理。
type CacheNotFoundError struct {
	DownloadError
	Filename string
}

// Unwrap 使 errors.As 能把 CacheNotFoundError 当作 DownloadError 匹配。
func (e *CacheNotFoundError) Unwrap() error {
	return &e.DownloadError
}

// RPCError 表示 JSON-RPC 端返回了结构化错误对象。
type RPCError struct {
	URL     string
	Code    int
	Message string
}

// Error 以 markdown 列表项风格输出，报告层直接拼接展示。
func (e *RPCError) Error() string {
	return fmt.Sprintf("Error retrieving '%s': code=%d msg='%s'", e.URL, e.Code, e.Message)
}

// BugNotFoundError 表示 bugref 指向一个服务端不存在的 bug（code 101）。
// 调用方应把它当作预期内的可恢复状况，而不是硬失败。
type BugNotFoundError struct {
	RPCError
}

// Unwrap 使 errors.As 能把 BugNotFoundError 当作 RPCError 匹配。
func (e *BugNotFoundError) Unwrap() error {
	return &e.RPCError
}

// IsBugNotFound 判断错误链中是否存在 bug 缺失失败。
func IsBugNotFound(err error) bool {
	var notFound *BugNotFoundError
	return errors.As(err, &notFound)
}
