package sxg

import (
	"time"

	"github.com/sxg-gateway/sxg-gateway/internal/fetch"
	"github.com/sxg-gateway/sxg-gateway/internal/storage"
)

// Runtime 是一次逻辑操作（一次签名、一次预置内容解析）所需的能力集合：
// 当前时间、签名器、抓取器与持久化存储。每次操作都重新构造，构造后不再
// 变更，因此可以在测试中用固定时钟与假实现替换。
type Runtime struct {
	Now     time.Time
	Fetcher fetch.Fetcher
	Signer  ExchangeSigner
	Storage storage.Store
}

// NewRuntime 基于进程级单例构造一次操作的 Runtime，取当前时钟。
func (w *Worker) NewRuntime(fetcher fetch.Fetcher, store storage.Store) *Runtime {
	if store == nil {
		store = storage.NullStore{}
	}
	return &Runtime{
		Now:     time.Now(),
		Fetcher: fetcher,
		Signer:  w.CreateSigner(),
		Storage: store,
	}
}
