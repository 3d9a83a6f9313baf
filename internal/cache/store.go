package cache

import (
	"context"
	"errors"
	"time"
)

// Store 负责管理 fixture 的磁盘读写。磁盘布局为目录下平铺的文件：
//
//	<dir>/<encoded-url>    # 原始响应正文
//
// 文件名由 browser 包的 URL 编码规则给出，内容与抓取到的正文逐字节一致。
type Store interface {
	// Get 返回指定文件名的完整正文。条目不存在时返回 ErrNotFound，
	// 其余 IO 错误原样上抛。
	Get(ctx context.Context, name string) ([]byte, error)

	// Put 写入正文。实现需通过临时文件 + rename 保证写入原子性，
	// 并在失败时清理临时文件。
	Put(ctx context.Context, name string, body []byte) error

	// List 枚举目录内全部 fixture，按文件名排序，供回放服务器建立索引。
	List(ctx context.Context) ([]Entry, error)
}

// Entry 描述一个磁盘 fixture 文件。
type Entry struct {
	Name      string
	SizeBytes int64
	ModTime   time.Time
}

// ErrNotFound 表示 fixture 不存在。
var ErrNotFound = errors.New("fixture not found")
