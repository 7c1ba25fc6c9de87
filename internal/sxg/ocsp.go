package sxg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/crypto/ocsp"

	"github.com/sxg-gateway/sxg-gateway/internal/fetch"
	"github.com/sxg-gateway/sxg-gateway/internal/storage"
)

const ocspStorageKey = "ocsp/response.json"

// dummyOCSP 与 webpackage 工具链约定的占位符一致，供没有 OCSP
// 服务器的自签链（本地开发）使用。
var dummyOCSP = []byte("dummy-ocsp")

// storedOCSP 是持久化的 OCSP 响应以及它的绝对过期时间。
type storedOCSP struct {
	Expires time.Time `json:"expires"`
	DER     []byte    `json:"der"`
}

// ocspResponse 返回证书链的 OCSP 响应 DER：优先读持久化缓存，过期后
// 通过 runtime 的抓取器向 leaf 证书声明的 responder 重新获取。
func (w *Worker) ocspResponse(ctx context.Context, rt *Runtime) ([]byte, error) {
	if cached, ok := w.cachedOCSP(ctx, rt); ok {
		return cached, nil
	}

	leaf := w.certs[0]
	if len(leaf.OCSPServer) == 0 {
		return dummyOCSP, nil
	}
	issuer := leaf
	if len(w.certs) > 1 {
		issuer = w.certs[1]
	}

	reqDER, err := ocsp.CreateRequest(leaf, issuer, nil)
	if err != nil {
		return nil, fmt.Errorf("build ocsp request: %w", err)
	}

	header := http.Header{}
	header.Set("Content-Type", "application/ocsp-request")
	req, err := fetch.NewRequest(http.MethodPost, leaf.OCSPServer[0], header, reqDER)
	if err != nil {
		return nil, err
	}
	resp, err := rt.Fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ocsp responder returned status %d", resp.StatusCode)
	}

	parsed, err := ocsp.ParseResponseForCert(resp.Body, leaf, issuer)
	if err != nil {
		return nil, fmt.Errorf("parse ocsp response: %w", err)
	}

	expires := parsed.NextUpdate
	if expires.IsZero() || expires.After(rt.Now.Add(maxExchangeValidity)) {
		expires = rt.Now.Add(maxExchangeValidity)
	}
	w.storeOCSP(ctx, rt, resp.Body, expires)
	return resp.Body, nil
}

func (w *Worker) cachedOCSP(ctx context.Context, rt *Runtime) ([]byte, bool) {
	raw, err := rt.Storage.Read(ctx, ocspStorageKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			// 读缓存失败退化为重新抓取。
			return nil, false
		}
		return nil, false
	}
	var stored storedOCSP
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, false
	}
	if !rt.Now.Before(stored.Expires) || len(stored.DER) == 0 {
		return nil, false
	}
	return stored.DER, true
}

func (w *Worker) storeOCSP(ctx context.Context, rt *Runtime, der []byte, expires time.Time) {
	raw, err := json.Marshal(storedOCSP{Expires: expires, DER: der})
	if err != nil {
		return
	}
	// 缓存写失败只意味着下次重新抓取。
	_ = rt.Storage.Write(ctx, ocspStorageKey, raw)
}
