// Package proxy 实现每请求的调度状态机：预置内容 → 回源代理 → 签名，
// 三选一，任何失败统一转换为 HTTP 500。
package proxy

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/sxg-gateway/sxg-gateway/internal/fetch"
	"github.com/sxg-gateway/sxg-gateway/internal/logging"
	"github.com/sxg-gateway/sxg-gateway/internal/server"
	"github.com/sxg-gateway/sxg-gateway/internal/storage"
	"github.com/sxg-gateway/sxg-gateway/internal/sxg"
)

// Handler 组合进程级单例（工作器、抓取器、反代客户端、存储），
// 对每个请求执行三路分支并产出最终响应。自身无任何可变状态。
type Handler struct {
	worker      *sxg.Worker
	backend     *url.URL
	fetcher     fetch.Fetcher
	proxyClient *fetch.ReverseProxy
	store       storage.Store
	integrity   sxg.HeaderIntegrityCache
	logger      *logrus.Logger
}

// NewHandler constructs the dispatcher from the process-wide singletons.
func NewHandler(
	worker *sxg.Worker,
	backend *url.URL,
	fetcher fetch.Fetcher,
	proxyClient *fetch.ReverseProxy,
	store storage.Store,
	logger *logrus.Logger,
) *Handler {
	if store == nil {
		store = storage.NullStore{}
	}
	return &Handler{
		worker:      worker,
		backend:     backend,
		fetcher:     fetcher,
		proxyClient: proxyClient,
		store:       store,
		integrity:   sxg.NewStoreIntegrityCache(store),
		logger:      logger,
	}
}

// Handle 执行调度并记录结构化日志。任何内部错误都渲染进 500 响应体，
// 便于调试；上线前需要脱敏（已知的临时行为）。
func (h *Handler) Handle(c fiber.Ctx) error {
	started := time.Now()
	requestID := server.RequestID(c)

	branch, status, err := h.dispatch(c)

	fields := logging.RequestFields(branch, h.worker.Config().HtmlHost, h.backend.String(), requestID)
	fields["status"] = status
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	if err != nil {
		fields["error"] = err.Error()
		h.logger.WithFields(fields).Error("dispatch_failed")
		return c.Status(fiber.StatusInternalServerError).SendString(fmt.Sprintf("%+v", err))
	}
	h.logger.WithFields(fields).Info("dispatch_complete")
	return nil
}

// dispatch 是三路分支本体，按优先级恰好命中一条：
//  1. Direct：预置内容原样返回；
//  2. ToBeSigned：预置载荷以给定 URL 为 fallback 签名；
//  3. None：回源取载荷，fallback 由签名域推导。
// 除 Direct 外，载荷最终都交给签名编排。
func (h *Handler) dispatch(c fiber.Ctx) (string, int, error) {
	ctx := requestContext(c)

	reqURL, err := h.canonicalRequestURL(c)
	if err != nil {
		return "", 0, err
	}

	rt := h.worker.NewRuntime(h.fetcher, h.store)
	preset, err := h.worker.ServePresetContent(ctx, rt, reqURL.String())
	if err != nil {
		return "", 0, err
	}

	var branch string
	var fallbackURL *url.URL
	var payload *fetch.Response

	if preset == nil {
		branch = "proxy"
		fallbackURL, payload, err = h.fetchFromBackend(ctx, c)
		if err != nil {
			return branch, 0, err
		}
	} else {
		switch preset.Kind {
		case sxg.PresetDirect:
			writeResponse(c, preset.Response)
			return "preset_direct", preset.Response.StatusCode, nil
		case sxg.PresetToBeSigned:
			branch = "preset_signed"
			fallbackURL, err = url.Parse(preset.URL)
			if err != nil {
				return branch, 0, fmt.Errorf("parse preset fallback url: %w", err)
			}
			payload = preset.Response
			// 内容既定要签名，这里只校验客户端确实声明了 SXG 支持。
			if _, err := sxg.TransformRequestHeaders(inboundHeaders(c), sxg.AcceptsSxg); err != nil {
				return branch, 0, err
			}
		default:
			return "", 0, fmt.Errorf("unhandled preset content kind %d", preset.Kind)
		}
	}

	resp, err := h.generateSignedExchange(ctx, fallbackURL, payload)
	if err != nil {
		return branch, 0, err
	}
	writeResponse(c, resp)
	return branch, resp.StatusCode, nil
}

// fetchFromBackend 处理 None 分支：推导后端 URL 与 fallback、
// 过滤请求头并经反代客户端回源。
func (h *Handler) fetchFromBackend(ctx context.Context, c fiber.Ctx) (*url.URL, *fetch.Response, error) {
	backendURL := h.backend.ResolveReference(requestRef(c))

	fallbackURL, err := h.worker.FallbackURL(backendURL)
	if err != nil {
		return nil, nil, err
	}

	headers, err := sxg.TransformRequestHeaders(inboundHeaders(c), sxg.PrefersSxg)
	if err != nil {
		return nil, nil, err
	}

	req, err := fetch.NewRequest(c.Method(), backendURL.String(), headers, c.Body())
	if err != nil {
		return nil, nil, err
	}

	payload, err := h.proxyClient.Call(ctx, c.IP(), req)
	if err != nil {
		return nil, nil, err
	}
	return fallbackURL, payload, nil
}

// generateSignedExchange 组装签名调用：载荷头转换、cert origin 推导、
// 新鲜的 Runtime，然后交给工作器。
func (h *Handler) generateSignedExchange(ctx context.Context, fallbackURL *url.URL, payload *fetch.Response) (*fetch.Response, error) {
	payloadHeaders, err := sxg.TransformPayloadHeaders(payload.Header)
	if err != nil {
		return nil, err
	}

	certOrigin, err := sxg.CertOrigin(fallbackURL)
	if err != nil {
		return nil, err
	}

	rt := h.worker.NewRuntime(h.fetcher, h.store)
	return h.worker.CreateSignedExchange(ctx, rt, &sxg.SignParams{
		PayloadBody:          payload.Body,
		PayloadHeaders:       payloadHeaders,
		StatusCode:           payload.StatusCode,
		FallbackURL:          fallbackURL.String(),
		CertOrigin:           certOrigin,
		HeaderIntegrityCache: h.integrity,
		SkipProcessLink:      false,
	})
}

// canonicalRequestURL 将请求路径解析到签名域之下，得到规范请求 URL。
func (h *Handler) canonicalRequestURL(c fiber.Ctx) (*url.URL, error) {
	base, err := url.Parse("https://" + h.worker.Config().HtmlHost + "/")
	if err != nil {
		return nil, fmt.Errorf("parse signed domain host: %w", err)
	}
	return base.ResolveReference(requestRef(c)), nil
}

// requestRef 把 fiber 请求的路径与查询还原为相对 URL。
func requestRef(c fiber.Ctx) *url.URL {
	uri := c.Request().URI()
	ref := &url.URL{Path: string(uri.Path())}
	if query := uri.QueryString(); len(query) > 0 {
		ref.RawQuery = string(query)
	}
	return ref
}

func requestContext(c fiber.Ctx) context.Context {
	if ctx := c.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func inboundHeaders(c fiber.Ctx) http.Header {
	header := http.Header{}
	c.Request().Header.VisitAll(func(key, value []byte) {
		header.Add(string(key), string(value))
	})
	return header
}

func writeResponse(c fiber.Ctx, resp *fetch.Response) {
	for key, values := range resp.Header {
		for _, value := range values {
			c.Response().Header.Add(key, value)
		}
	}
	c.Status(resp.StatusCode)
	c.Response().SetBodyRaw(resp.Body)
}
