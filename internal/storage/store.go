// Package storage 提供进程级的小型持久化存储，供 OCSP 响应与
// header-integrity 摘要在重启之间复用。
package storage

import (
	"context"
	"errors"
)

// Store 是“按 key 读写一段字节”的能力接口。
type Store interface {
	// Read 返回 key 对应的内容。若不存在则返回 ErrNotFound。
	Read(ctx context.Context, key string) ([]byte, error)

	// Write 原子地写入内容。实现需通过临时文件 + rename 保证写入原子性，
	// 并在失败时清理临时文件。
	Write(ctx context.Context, key string, value []byte) error
}

// ErrNotFound 表示条目不存在。
var ErrNotFound = errors.New("storage entry not found")

// NullStore 永远未命中，写入直接丢弃；用于关闭持久化的场景与测试。
type NullStore struct{}

// Read always misses.
func (NullStore) Read(context.Context, string) ([]byte, error) {
	return nil, ErrNotFound
}

// Write drops the value.
func (NullStore) Write(context.Context, string, []byte) error {
	return nil
}
