package browser

import (
	"context"
	"crypto/sha1"
	"crypto/sha256"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestFingerprintFormat(t *testing.T) {
	got := fingerprint([]byte{0x00, 0xab, 0xff})
	if got != "00:AB:FF" {
		t.Fatalf("指纹格式不符: %s", got)
	}
}

func TestUnsupportedInspectorAlwaysFails(t *testing.T) {
	if _, err := (Unsupported{}).Inspect(context.Background(), "host:443"); err == nil {
		t.Fatalf("Unsupported 应恒定失败")
	}
}

func TestTLSInspectorReadsSelfSignedCertificate(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	host := strings.TrimPrefix(server.URL, "https://")
	inspector := tlsInspector{timeout: 5 * time.Second}

	info, err := inspector.Inspect(context.Background(), host)
	if err != nil {
		t.Fatalf("探测失败: %v", err)
	}

	leaf := server.Certificate()
	sha1Sum := sha1.Sum(leaf.Raw)
	sha256Sum := sha256.Sum256(leaf.Raw)
	if info.SHA1 != fingerprint(sha1Sum[:]) {
		t.Fatalf("sha1 指纹不符: %s", info.SHA1)
	}
	if info.SHA256 != fingerprint(sha256Sum[:]) {
		t.Fatalf("sha256 指纹不符: %s", info.SHA256)
	}
}

func TestTLSInspectorUnreachableHost(t *testing.T) {
	inspector := tlsInspector{timeout: 100 * time.Millisecond}
	if _, err := inspector.Inspect(context.Background(), "127.0.0.1:1"); err == nil {
		t.Fatalf("不可达主机应返回错误")
	}
}
