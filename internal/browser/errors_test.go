package browser

import (
	"errors"
	"fmt"
	"testing"
)

func TestDownloadErrorMessageAndCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := &DownloadError{URL: "http://host/x", Msg: "Request to http://host/x was not successful after 7 retries: connection refused", Err: cause}

	if err.Error() != err.Msg {
		t.Fatalf("Error() 应返回 Msg，得到 %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Fatalf("应能通过 errors.Is 找到底层错误")
	}
}

func TestCacheNotFoundErrorMatchesDownloadError(t *testing.T) {
	var err error = &CacheNotFoundError{
		DownloadError: DownloadError{URL: "http://host/x", Msg: "file not found"},
		Filename:      "http%3A::host:x",
	}

	var notFound *CacheNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("应匹配 CacheNotFoundError")
	}
	if notFound.Filename != "http%3A::host:x" {
		t.Fatalf("Filename 不符: %s", notFound.Filename)
	}

	var download *DownloadError
	if !errors.As(err, &download) {
		t.Fatalf("CacheNotFoundError 应能当作 DownloadError 匹配")
	}
	if download.URL != "http://host/x" {
		t.Fatalf("URL 不符: %s", download.URL)
	}
}

func TestRPCErrorRendering(t *testing.T) {
	err := &RPCError{URL: "http://host/jsonrpc.cgi", Code: 500, Message: "internal"}
	want := "Error retrieving 'http://host/jsonrpc.cgi': code=500 msg='internal'"
	if err.Error() != want {
		t.Fatalf("渲染不符: %q", err.Error())
	}
}

func TestBugNotFoundErrorMatchesRPCError(t *testing.T) {
	var err error = &BugNotFoundError{
		RPCError: RPCError{URL: "http://host/jsonrpc.cgi", Code: CodeBugNotFound, Message: "Bug #42 not found"},
	}

	if !IsBugNotFound(err) {
		t.Fatalf("IsBugNotFound 应为 true")
	}
	if IsBugNotFound(fmt.Errorf("wrapped: %w", &RPCError{Code: 500})) {
		t.Fatalf("普通 RPCError 不应命中 IsBugNotFound")
	}

	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("BugNotFoundError 应能当作 RPCError 匹配")
	}
	if rpcErr.Code != CodeBugNotFound {
		t.Fatalf("code 不符: %d", rpcErr.Code)
	}
}

func TestBugNotFoundSurvivesWrapping(t *testing.T) {
	inner := &BugNotFoundError{RPCError: RPCError{Code: CodeBugNotFound, Message: "gone"}}
	wrapped := fmt.Errorf("resolving bugref: %w", inner)
	if !IsBugNotFound(wrapped) {
		t.Fatalf("包装后仍应识别 bug 缺失失败")
	}
}
