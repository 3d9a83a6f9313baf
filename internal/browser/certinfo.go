package browser

import (
	"context"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// CertInfo 汇总证书诊断所需的元数据。
type CertInfo struct {
	Issuer string
	SHA1   string
	SHA256 string
}

// CertInspector 抽象裸证书探测能力。目标平台不支持 TLS 自省时注入
// Unsupported，上层会回退为原始 TLS 错误。
type CertInspector interface {
	Inspect(ctx context.Context, host string) (*CertInfo, error)
}

// Unsupported 是证书探测的空实现，Inspect 恒定失败。
type Unsupported struct{}

func (Unsupported) Inspect(context.Context, string) (*CertInfo, error) {
	return nil, errors.New("certificate introspection is not supported on this platform")
}

// tlsInspector 跳过校验重新握手一次，只为抓取对端证书做诊断，
// 连接拿到证书后立即关闭。
type tlsInspector struct {
	timeout time.Duration
}

func (t tlsInspector) Inspect(ctx context.Context, host string) (*CertInfo, error) {
	addr := host
	if _, _, err := net.SplitHostPort(host); err != nil {
		addr = net.JoinHostPort(host, "443")
	}

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: t.timeout},
		Config:    &tls.Config{InsecureSkipVerify: true},
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", addr, err)
	}
	defer conn.Close()

	state := conn.(*tls.Conn).ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return nil, fmt.Errorf("probe %s: no peer certificates presented", addr)
	}
	leaf := state.PeerCertificates[0]

	issuer := ""
	if len(leaf.Issuer.Organization) > 0 {
		issuer = leaf.Issuer.Organization[0]
	}
	sha1Sum := sha1.Sum(leaf.Raw)
	sha256Sum := sha256.Sum256(leaf.Raw)

	return &CertInfo{
		Issuer: issuer,
		SHA1:   fingerprint(sha1Sum[:]),
		SHA256: fingerprint(sha256Sum[:]),
	}, nil
}

// fingerprint 输出 OpenSSL digest 风格的大写冒号分隔十六进制。
func fingerprint(sum []byte) string {
	parts := make([]string, len(sum))
	for i, octet := range sum {
		parts[i] = fmt.Sprintf("%02X", octet)
	}
	return strings.Join(parts, ":")
}
