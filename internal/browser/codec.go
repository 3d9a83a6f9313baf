package browser

import "strings"

const upperhex = "0123456789ABCDEF"

// EncodeFilename 把 URL 转换为无歧义且文件系统安全的文件名：先做
// percent-encoding（保留 '/'），再把 '/' 替换为 ':'。':' 本身会被编码成
// %3A，因此替换后的 ':' 只可能来自路径分隔符，编码保持可逆。
//
//	EncodeFilename("http://openqa.opensuse.org/tests/foo/3")
//	  == "http%3A::openqa.opensuse.org:tests:foo:3"
func EncodeFilename(rawURL string) string {
	var b strings.Builder
	b.Grow(len(rawURL))
	for i := 0; i < len(rawURL); i++ {
		c := rawURL[i]
		switch {
		case c == '/':
			b.WriteByte(':')
		case shouldEscape(c):
			b.WriteByte('%')
			b.WriteByte(upperhex[c>>4])
			b.WriteByte(upperhex[c&0xf])
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// DecodeFilename 是 EncodeFilename 的逆操作：':' 还原为 '/'，随后做
// percent-decoding。无法解析的 '%' 序列按字面保留，与编码端的产出互补，
// 保证 DecodeFilename(EncodeFilename(url)) == url。
func DecodeFilename(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == ':':
			b.WriteByte('/')
		case c == '%' && i+2 < len(name):
			hi, ok1 := unhex(name[i+1])
			lo, ok2 := unhex(name[i+2])
			if ok1 && ok2 {
				b.WriteByte(hi<<4 | lo)
				i += 2
			} else {
				b.WriteByte(c)
			}
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// shouldEscape 与 RFC 3986 的 unreserved 集合一致，额外放行 '/'
// （它随后被替换为 ':'）。
func shouldEscape(c byte) bool {
	if 'A' <= c && c <= 'Z' || 'a' <= c && c <= 'z' || '0' <= c && c <= '9' {
		return false
	}
	switch c {
	case '-', '_', '.', '~', '/':
		return false
	}
	return true
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
