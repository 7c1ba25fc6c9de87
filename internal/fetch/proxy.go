package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/sxg-gateway/sxg-gateway/internal/server"
)

// ReverseProxy 将请求转发到后端 origin，并携带原始客户端地址，
// 便于后端做访问日志与白名单。响应整体缓冲后返回。
type ReverseProxy struct {
	client *http.Client
}

// NewReverseProxy 包装共享客户端，与 HTTPSFetcher 复用同一连接池。
func NewReverseProxy(client *http.Client) *ReverseProxy {
	return &ReverseProxy{client: client}
}

// Call 向 req.URL 指向的后端发起请求。clientIP 追加到 X-Forwarded-For，
// hop-by-hop 头在两个方向上都会被剥离。不做任何重试。
func (p *ReverseProxy) Call(ctx context.Context, clientIP string, req *Request) (*Response, error) {
	target, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("backend url must be absolute: %s", req.URL)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target.String(), bodyReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("build backend request: %w", err)
	}

	server.CopyHeaders(httpReq.Header, req.Header)
	httpReq.Host = target.Host
	httpReq.Header.Set("X-Forwarded-Host", target.Host)
	httpReq.Header.Set("X-Forwarded-Proto", target.Scheme)
	if clientIP != "" {
		if prior := httpReq.Header.Get("X-Forwarded-For"); prior != "" {
			httpReq.Header.Set("X-Forwarded-For", prior+", "+clientIP)
		} else {
			httpReq.Header.Set("X-Forwarded-For", clientIP)
		}
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("proxy %s: %w", target.String(), err)
	}
	defer resp.Body.Close()

	buffered, err := bufferResponse(resp)
	if err != nil {
		return nil, err
	}

	filtered := http.Header{}
	server.CopyHeaders(filtered, buffered.Header)
	buffered.Header = filtered
	return buffered, nil
}
