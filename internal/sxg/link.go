package sxg

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// processLinkHeaders 重写载荷的 Link 头：保留与 fallback 同源的
// rel=preload 项，其余全部丢弃；对可从缓存拿到 header-integrity 的
// 子资源追加 allowed-alt-sxg 项，让客户端可以并行取其签名版本。
// 缓存未命中时保留裸 preload，不现场计算摘要。
func processLinkHeaders(ctx context.Context, h http.Header, fallbackURL *url.URL, cache HeaderIntegrityCache) error {
	values := h.Values("Link")
	if len(values) == 0 {
		return nil
	}

	var kept []string
	for _, value := range values {
		entries, err := splitLinkEntries(value)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			target, params, err := parseLinkEntry(entry)
			if err != nil {
				return err
			}
			if !strings.EqualFold(params["rel"], "preload") {
				continue
			}
			resolved := fallbackURL.ResolveReference(target)
			if resolved.Scheme != fallbackURL.Scheme || resolved.Host != fallbackURL.Host {
				continue
			}
			kept = append(kept, rebuildLinkEntry(resolved, params))
			if integrity, ok := cache.Get(ctx, resolved.String()); ok {
				kept = append(kept, fmt.Sprintf(
					"<%s>;rel=\"allowed-alt-sxg\";header-integrity=%q", resolved, integrity))
			}
		}
	}

	if len(kept) == 0 {
		h.Del("Link")
		return nil
	}
	h.Del("Link")
	for _, entry := range kept {
		h.Add("Link", entry)
	}
	return nil
}

// splitLinkEntries 按逗号切分 Link 头，跳过 <> 内的逗号。
func splitLinkEntries(value string) ([]string, error) {
	var entries []string
	depth := 0
	start := 0
	for i := 0; i < len(value); i++ {
		switch value[i] {
		case '<':
			depth++
		case '>':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("malformed link header: %q", value)
			}
		case ',':
			if depth == 0 {
				entries = append(entries, value[start:i])
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("malformed link header: %q", value)
	}
	entries = append(entries, value[start:])
	return entries, nil
}

// parseLinkEntry 解析单个 `<url>; k=v; …` 项。
func parseLinkEntry(entry string) (*url.URL, map[string]string, error) {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return nil, nil, fmt.Errorf("empty link entry")
	}
	if entry[0] != '<' {
		return nil, nil, fmt.Errorf("link entry %q does not start with <url>", entry)
	}
	end := strings.IndexByte(entry, '>')
	if end < 0 {
		return nil, nil, fmt.Errorf("link entry %q is missing >", entry)
	}
	target, err := url.Parse(entry[1:end])
	if err != nil {
		return nil, nil, fmt.Errorf("link entry target: %w", err)
	}

	params := map[string]string{}
	for _, part := range strings.Split(entry[end+1:], ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		key := strings.ToLower(strings.TrimSpace(kv[0]))
		value := ""
		if len(kv) == 2 {
			value = strings.Trim(strings.TrimSpace(kv[1]), `"`)
		}
		params[key] = value
	}
	return target, params, nil
}

// rebuildLinkEntry 以规范形式重建 preload 项，保留 as/type 等参数。
func rebuildLinkEntry(target *url.URL, params map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<%s>;rel=\"preload\"", target)
	for _, key := range []string{"as", "type", "crossorigin"} {
		if value, ok := params[key]; ok {
			if value == "" {
				fmt.Fprintf(&b, ";%s", key)
				continue
			}
			fmt.Fprintf(&b, ";%s=%q", key, value)
		}
	}
	return b.String()
}
