package sxg

import (
	"fmt"
	"net/url"
	"strings"
)

// FallbackURL 将后端抓取 URL 映射为客户端验签失败后应直接访问的 URL：
// 路径与查询保留，authority 替换为配置的签名域。签名是 origin 绑定的，
// 后端自选的 authority 绝不能出现在 fallback 中。
func (w *Worker) FallbackURL(backendURL *url.URL) (*url.URL, error) {
	if backendURL == nil || !backendURL.IsAbs() || backendURL.Host == "" {
		return nil, fmt.Errorf("backend url must be absolute: %v", backendURL)
	}
	htmlHost := strings.TrimSpace(w.cfg.HtmlHost)
	if htmlHost == "" {
		return nil, fmt.Errorf("signed domain (HtmlHost) is not configured")
	}

	return &url.URL{
		Scheme:   "https",
		Host:     htmlHost,
		Path:     backendURL.Path,
		RawPath:  backendURL.RawPath,
		RawQuery: backendURL.RawQuery,
	}, nil
}

// CertOrigin 返回 fallback URL 的 scheme://authority。纯字符串推导，
// 不做任何 I/O，也绝不参考后端地址。
func CertOrigin(fallbackURL *url.URL) (string, error) {
	if fallbackURL == nil || fallbackURL.Scheme == "" {
		return "", fmt.Errorf("fallback url missing scheme")
	}
	if fallbackURL.Host == "" {
		return "", fmt.Errorf("fallback url missing authority")
	}
	return fmt.Sprintf("%s://%s", fallbackURL.Scheme, fallbackURL.Host), nil
}
