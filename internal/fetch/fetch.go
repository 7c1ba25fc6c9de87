// Package fetch 定义出站 HTTP 的统一模型：请求/响应全量缓冲，
// 并以窄接口（Fetcher）暴露能力，便于测试替换。
package fetch

import (
	"context"
	"fmt"
	"net/http"
)

// MaxBodyBytes 限制单次出站请求可缓冲的响应体大小。
// 超过上限视为 fetch 错误（正文整体缓冲是已知的规模限制，不做流式处理）。
const MaxBodyBytes = 8 << 20

// Request 是一次出站请求的全量缓冲表示。
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response 是一次出站响应的全量缓冲表示。
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// NewRequest 构造出站请求。仅允许 GET/POST，与上游转发模型保持一致。
func NewRequest(method, url string, header http.Header, body []byte) (*Request, error) {
	switch method {
	case http.MethodGet, http.MethodPost:
	default:
		return nil, fmt.Errorf("unsupported outbound method: %s", method)
	}
	if url == "" {
		return nil, fmt.Errorf("outbound request url required")
	}
	if header == nil {
		header = http.Header{}
	}
	return &Request{Method: method, URL: url, Header: header, Body: body}, nil
}

// Fetcher 是“抓取一个 URL”的能力接口，生产实现复用共享连接池。
type Fetcher interface {
	Fetch(ctx context.Context, req *Request) (*Response, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, req *Request) (*Response, error)

// Fetch makes FetcherFunc satisfy Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}
