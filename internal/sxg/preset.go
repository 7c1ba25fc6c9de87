package sxg

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/WICG/webpackage/go/signedexchange/certurl"

	"github.com/sxg-gateway/sxg-gateway/internal/fetch"
)

// PresetKind 标记预置内容决策的变体。
type PresetKind int

const (
	// PresetDirect：响应原样返回，不经过签名。
	PresetDirect PresetKind = iota + 1

	// PresetToBeSigned：响应需要以 URL 为 fallback 进行签名后返回。
	PresetToBeSigned
)

// PresetContent 是预置内容决策：Direct 携带最终响应，
// ToBeSigned 携带目标 URL 与待签名载荷。每个请求至多产生一次，
// 由调度器消费一次，之后不再变更。
type PresetContent struct {
	Kind     PresetKind
	Response *fetch.Response
	URL      string
}

// 空的 CBOR map，作为 validity 数据返回（当前没有可增量更新的签名）。
var emptyValidityData = []byte{0xA0}

// ServePresetContent 判定请求 URL 是否命中本地信任材料。
// 未命中返回 (nil, nil)；命中路径内部出错（如 OCSP 获取失败）返回 error。
func (w *Worker) ServePresetContent(ctx context.Context, rt *Runtime, rawURL string) (*PresetContent, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse preset url: %w", err)
	}
	path := u.EscapedPath()

	if name, ok := strings.CutPrefix(path, "/"+w.cfg.CertURLDirname+"/"); ok {
		if name != w.certName {
			return &PresetContent{Kind: PresetDirect, Response: notFoundResponse()}, nil
		}
		resp, err := w.certChainResponse(ctx, rt)
		if err != nil {
			return nil, err
		}
		return &PresetContent{Kind: PresetDirect, Response: resp}, nil
	}

	if path == "/"+w.cfg.ValidityURLDirname+"/validity" {
		header := http.Header{}
		header.Set("Content-Type", "application/cbor")
		return &PresetContent{
			Kind:     PresetDirect,
			Response: &fetch.Response{StatusCode: http.StatusOK, Header: header, Body: emptyValidityData},
		}, nil
	}

	if token, ok := strings.CutPrefix(path, "/.well-known/acme-challenge/"); ok {
		if w.cfg.AcmeChallengeToken == "" || token != w.cfg.AcmeChallengeToken {
			return nil, nil
		}
		header := http.Header{}
		header.Set("Content-Type", "text/plain")
		return &PresetContent{
			Kind: PresetToBeSigned,
			URL:  u.String(),
			Response: &fetch.Response{
				StatusCode: http.StatusOK,
				Header:     header,
				Body:       []byte(w.cfg.AcmeChallengeAnswer),
			},
		}, nil
	}

	return nil, nil
}

// certChainResponse 构建 application/cert-chain+cbor 响应：
// leaf+issuer 链加上（缓存的）OCSP 响应。
func (w *Worker) certChainResponse(ctx context.Context, rt *Runtime) (*fetch.Response, error) {
	ocspDER, err := w.ocspResponse(ctx, rt)
	if err != nil {
		return nil, fmt.Errorf("obtain ocsp response: %w", err)
	}

	chain, err := certurl.NewCertChain(w.certs, ocspDER, nil)
	if err != nil {
		return nil, fmt.Errorf("build cert chain: %w", err)
	}
	var buf bytes.Buffer
	if err := chain.Write(&buf); err != nil {
		return nil, fmt.Errorf("serialize cert chain: %w", err)
	}

	header := http.Header{}
	header.Set("Content-Type", "application/cert-chain+cbor")
	header.Set("Cache-Control", "public, max-age=604800")
	return &fetch.Response{StatusCode: http.StatusOK, Header: header, Body: buf.Bytes()}, nil
}

func notFoundResponse() *fetch.Response {
	header := http.Header{}
	header.Set("Content-Type", "text/plain")
	return &fetch.Response{
		StatusCode: http.StatusNotFound,
		Header:     header,
		Body:       []byte("unknown certificate\n"),
	}
}
