package sxg

import (
	"fmt"
	"mime"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/sxg-gateway/sxg-gateway/internal/server"
)

// AcceptFilter 描述头部策略应当假定的下游客户端能力。
type AcceptFilter int

const (
	// AcceptsSxg：客户端已明确声明理解签名交换；仅用于对
	// 既定要签名的内容做请求头校验。
	AcceptsSxg AcceptFilter = iota

	// PrefersSxg：希望拿到可签名内容，但也接受普通响应；
	// 用于回源请求的 Accept 协商。
	PrefersSxg
)

// SxgMediaType is the media type of a b3 signed exchange.
const SxgMediaType = "application/signed-exchange;v=b3"

// prefersSxgAccept 告诉后端“优先返回可签名内容，其次任何内容”。
const prefersSxgAccept = "application/signed-exchange;v=b3;q=0.9,*/*;q=0.8"

// strippedRequestHeaders 在回源前剥离：转发链路与宿主信息不应到达后端，
// Accept-Encoding 交由传输层重新协商。
var strippedRequestHeaders = map[string]struct{}{
	"Forwarded":         {},
	"X-Forwarded-For":   {},
	"X-Forwarded-Host":  {},
	"X-Forwarded-Proto": {},
	"X-Forwarded-Port":  {},
	"Via":               {},
	"Host":              {},
	"Accept-Encoding":   {},
	"Accept":            {}, // 按 filter 重新设置
}

// statefulPayloadHeaders 不能合法出现在签名交换的内层响应中；
// 出现即拒绝签名，而不是悄悄剥离。
var statefulPayloadHeaders = map[string]struct{}{
	"Authentication-Control":    {},
	"Authentication-Info":       {},
	"Clear-Site-Data":           {},
	"Optional-Www-Authenticate": {},
	"Proxy-Authenticate":        {},
	"Public-Key-Pins":           {},
	"Sec-Websocket-Accept":      {},
	"Set-Cookie":                {},
	"Set-Cookie2":               {},
	"Strict-Transport-Security": {},
	"Www-Authenticate":          {},
}

// strippedPayloadHeaders 标识代理自身或仅对本次连接有意义的头，签名前移除。
var strippedPayloadHeaders = map[string]struct{}{
	"Alt-Svc":      {},
	"Server":       {},
	"Via":          {},
	"X-Powered-By": {},
	"X-Request-Id": {},
}

// TransformRequestHeaders 将入站请求头转换为可安全回源的形式。
// hop-by-hop、转发链路与 Host 被剥离，Accept 按 filter 重新协商；
// filter 为 AcceptsSxg 时要求客户端的 Accept 确实声明了 SXG 支持。
// 对已合规的头集合重复应用不再产生变化。
func TransformRequestHeaders(h http.Header, filter AcceptFilter) (http.Header, error) {
	if err := validateHeaderValues(h); err != nil {
		return nil, err
	}

	if filter == AcceptsSxg {
		if err := validateSxgAccept(h.Get("Accept")); err != nil {
			return nil, err
		}
	}

	out := http.Header{}
	for key, values := range h {
		canonical := textproto.CanonicalMIMEHeaderKey(key)
		if server.IsHopByHopHeader(canonical) {
			continue
		}
		if _, ok := strippedRequestHeaders[canonical]; ok {
			continue
		}
		for _, value := range values {
			out.Add(canonical, value)
		}
	}

	switch filter {
	case PrefersSxg:
		out.Set("Accept", prefersSxgAccept)
	case AcceptsSxg:
		out.Set("Accept", SxgMediaType)
	}

	return out, nil
}

// TransformPayloadHeaders 将待签名响应的头转换为交换内层允许的形式。
// 有状态头导致错误，代理自述与 hop-by-hop 头被剥离，缓存元数据保留。
func TransformPayloadHeaders(h http.Header) (http.Header, error) {
	if err := validateHeaderValues(h); err != nil {
		return nil, err
	}

	out := http.Header{}
	for key, values := range h {
		canonical := textproto.CanonicalMIMEHeaderKey(key)
		if _, ok := statefulPayloadHeaders[canonical]; ok {
			return nil, fmt.Errorf("header %s is not allowed inside a signed exchange", canonical)
		}
		if server.IsHopByHopHeader(canonical) {
			continue
		}
		if _, ok := strippedPayloadHeaders[canonical]; ok {
			continue
		}
		for _, value := range values {
			out.Add(canonical, value)
		}
	}
	return out, nil
}

// validateHeaderValues 拒绝结构非法的头：控制字符或非 UTF-8 的值。
func validateHeaderValues(h http.Header) error {
	for key, values := range h {
		for _, value := range values {
			if !utf8.ValidString(value) {
				return fmt.Errorf("header %s has a non-utf8 value", key)
			}
			for i := 0; i < len(value); i++ {
				c := value[i]
				if c < 0x20 && c != '\t' || c == 0x7f {
					return fmt.Errorf("header %s has a control character in its value", key)
				}
			}
		}
	}
	return nil
}

// validateSxgAccept 要求 Accept 列表中出现 application/signed-exchange;v=b3，
// 且其 q 值不低于其它媒体类型。
func validateSxgAccept(accept string) error {
	if strings.TrimSpace(accept) == "" {
		return fmt.Errorf("accept header missing, client did not state sxg support")
	}

	sxgQ := -1.0
	maxQ := 0.0
	for _, entry := range strings.Split(accept, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		mediaType, params, err := mime.ParseMediaType(entry)
		if err != nil {
			return fmt.Errorf("malformed accept entry %q: %w", entry, err)
		}
		q := 1.0
		if raw, ok := params["q"]; ok {
			parsed, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return fmt.Errorf("malformed q value %q in accept header", raw)
			}
			q = parsed
		}
		if q > maxQ {
			maxQ = q
		}
		if mediaType == "application/signed-exchange" && params["v"] == "b3" {
			sxgQ = q
		}
	}

	if sxgQ < 0 {
		return fmt.Errorf("accept header %q does not list application/signed-exchange;v=b3", accept)
	}
	if sxgQ < maxQ {
		return fmt.Errorf("accept header %q ranks signed exchanges below other types", accept)
	}
	return nil
}
