package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// HTTPSFetcher 通过共享 http.Client 执行通用抓取：OCSP、子资源完整性查询等。
type HTTPSFetcher struct {
	client *http.Client
}

// NewHTTPSFetcher 包装共享客户端；client 不能为空。
func NewHTTPSFetcher(client *http.Client) *HTTPSFetcher {
	return &HTTPSFetcher{client: client}
}

// Fetch 执行请求并整体缓冲响应体；网络/TLS 错误与超大正文都作为错误返回，不重试。
func (f *HTTPSFetcher) Fetch(ctx context.Context, req *Request) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bodyReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("build outbound request: %w", err)
	}
	for key, values := range req.Header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", req.URL, err)
	}
	defer resp.Body.Close()

	return bufferResponse(resp)
}

// bufferResponse 将响应体读入内存并校验大小上限。
func bufferResponse(resp *http.Response) (*Response, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if len(body) > MaxBodyBytes {
		return nil, fmt.Errorf("response body exceeds %d bytes", MaxBodyBytes)
	}

	header := http.Header{}
	for key, values := range resp.Header {
		for _, value := range values {
			header.Add(key, value)
		}
	}
	return &Response{StatusCode: resp.StatusCode, Header: header, Body: body}, nil
}

func bodyReader(b []byte) io.Reader {
	if len(b) == 0 {
		return http.NoBody
	}
	return bytes.NewReader(b)
}
