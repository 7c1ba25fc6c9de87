package sxg

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/sxg-gateway/sxg-gateway/internal/storage"
)

// HeaderIntegrityCache 缓存子资源的 header-integrity 摘要，避免在重复
// 签名同一页面时反复计算。
type HeaderIntegrityCache interface {
	Get(ctx context.Context, url string) (string, bool)
	Put(ctx context.Context, url, integrity string)
}

// NullCache 永远未命中。
type NullCache struct{}

// Get always misses.
func (NullCache) Get(context.Context, string) (string, bool) { return "", false }

// Put drops the entry.
func (NullCache) Put(context.Context, string, string) {}

// storeCache 将摘要持久化到 storage.Store，key 为 URL 的 SHA-256。
type storeCache struct {
	store storage.Store
}

// NewStoreIntegrityCache 基于持久化存储构建 header-integrity 缓存。
func NewStoreIntegrityCache(store storage.Store) HeaderIntegrityCache {
	return &storeCache{store: store}
}

func (c *storeCache) Get(ctx context.Context, url string) (string, bool) {
	value, err := c.store.Read(ctx, integrityKey(url))
	if err != nil || len(value) == 0 {
		return "", false
	}
	return string(value), true
}

func (c *storeCache) Put(ctx context.Context, url, integrity string) {
	// 缓存写失败只损失一次命中，不影响签名结果。
	_ = c.store.Write(ctx, integrityKey(url), []byte(integrity))
}

func integrityKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return "hi/" + hex.EncodeToString(sum[:])
}
