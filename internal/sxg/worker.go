// Package sxg 实现签名工作器：头部策略、fallback/证书 origin 推导、
// 预置信任材料与签名交换的组装。工作器在进程启动时构造一次，
// 之后只读共享给所有请求。
package sxg

import (
	"context"
	"crypto"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/WICG/webpackage/go/signedexchange"

	"github.com/sxg-gateway/sxg-gateway/internal/config"
	"github.com/sxg-gateway/sxg-gateway/internal/fetch"
)

// maxSignableBytes 是单个交换可承载的载荷上限。
const maxSignableBytes = 8 << 20

// maxExchangeValidity 是 b3 允许的最长签名有效期。
const maxExchangeValidity = 7 * 24 * time.Hour

// Worker 持有静态签名配置与证书材料，进程内唯一且初始化后只读。
type Worker struct {
	cfg      config.SigningConfig
	certs    []*x509.Certificate
	certName string
	privKey  crypto.PrivateKey

	// signerOverride 仅供测试在启动阶段注入假签名器。
	signerOverride ExchangeSigner
}

// New 从配置与 PEM 文件构造工作器：leaf+issuer 证书链与签名私钥。
func New(cfg config.SigningConfig) (*Worker, error) {
	certs, err := loadCertificateChain(cfg.CertFile, cfg.IssuerFile)
	if err != nil {
		return nil, err
	}
	privKey, err := LoadPrivateKey(cfg.KeyFile)
	if err != nil {
		return nil, err
	}
	return NewWithMaterial(cfg, certs, privKey)
}

// NewWithMaterial 以已解析的证书链与私钥构造工作器，便于测试注入。
func NewWithMaterial(cfg config.SigningConfig, certs []*x509.Certificate, privKey crypto.PrivateKey) (*Worker, error) {
	if len(certs) == 0 {
		return nil, fmt.Errorf("certificate chain is empty")
	}
	sum := sha256.Sum256(certs[0].Raw)
	return &Worker{
		cfg:      cfg,
		certs:    certs,
		certName: base64.RawURLEncoding.EncodeToString(sum[:]),
		privKey:  privKey,
	}, nil
}

// Config 返回只读签名配置。
func (w *Worker) Config() config.SigningConfig {
	return w.cfg
}

// CertName 返回证书链在证书 URL 中使用的名字（leaf DER 的 SHA-256）。
func (w *Worker) CertName() string {
	return w.certName
}

// CreateSigner 返回绑定进程级证书链的签名器。
func (w *Worker) CreateSigner() ExchangeSigner {
	if w.signerOverride != nil {
		return w.signerOverride
	}
	return &chainSigner{certs: w.certs, privKey: w.privKey}
}

// OverrideSigner 在启动阶段替换签名器实现；只应在测试中使用，
// 进入服务循环后不得再调用。
func (w *Worker) OverrideSigner(s ExchangeSigner) {
	w.signerOverride = s
}

// SignParams 是一次签名交换组装的全部输入。
type SignParams struct {
	PayloadBody          []byte
	PayloadHeaders       http.Header
	StatusCode           int
	FallbackURL          string
	CertOrigin           string
	HeaderIntegrityCache HeaderIntegrityCache
	SkipProcessLink      bool
}

// CreateSignedExchange 组装并触发签名：推导证书/有效性 URL、按需处理
// Link 头，然后调用 runtime 中的签名器。内层状态码必须是 200——
// 非 200 的后端响应不会被包进 200 交换，而是直接报错。
func (w *Worker) CreateSignedExchange(ctx context.Context, rt *Runtime, p *SignParams) (*fetch.Response, error) {
	if p.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("refusing to sign a response with status %d", p.StatusCode)
	}
	if len(p.PayloadBody) > maxSignableBytes {
		return nil, fmt.Errorf("payload of %d bytes exceeds signable limit", len(p.PayloadBody))
	}

	fallbackURL, err := url.Parse(p.FallbackURL)
	if err != nil {
		return nil, fmt.Errorf("parse fallback url: %w", err)
	}
	if fallbackURL.Scheme == "" {
		return nil, fmt.Errorf("fallback url missing scheme")
	}
	if fallbackURL.Host == "" {
		return nil, fmt.Errorf("fallback url missing authority")
	}
	if p.CertOrigin == "" {
		return nil, fmt.Errorf("cert origin required")
	}

	headers := p.PayloadHeaders
	if headers == nil {
		headers = http.Header{}
	}
	if !p.SkipProcessLink {
		cache := p.HeaderIntegrityCache
		if cache == nil {
			cache = NullCache{}
		}
		if err := processLinkHeaders(ctx, headers, fallbackURL, cache); err != nil {
			return nil, fmt.Errorf("process link headers: %w", err)
		}
	}

	task := &SignTask{
		FallbackURL: fallbackURL.String(),
		StatusCode:  p.StatusCode,
		Header:      headers,
		Body:        p.PayloadBody,
		Date:        rt.Now,
		Expires:     rt.Now.Add(maxExchangeValidity),
		CertURL:     fmt.Sprintf("%s/%s/%s", p.CertOrigin, w.cfg.CertURLDirname, w.certName),
		ValidityURL: fmt.Sprintf("%s://%s/%s/validity", fallbackURL.Scheme, fallbackURL.Host, w.cfg.ValidityURLDirname),
	}

	sxgBytes, err := rt.Signer.Sign(ctx, task)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Content-Type", SxgMediaType)
	header.Set("X-Content-Type-Options", "nosniff")
	header.Set("Cache-Control", "no-transform")
	return &fetch.Response{StatusCode: http.StatusOK, Header: header, Body: sxgBytes}, nil
}

// loadCertificateChain 按顺序读取 leaf 与 issuer 的 PEM 文件。
func loadCertificateChain(paths ...string) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read certificate %s: %w", path, err)
		}
		parsed, err := signedexchange.ParseCertificates(raw)
		if err != nil {
			return nil, fmt.Errorf("parse certificate %s: %w", path, err)
		}
		certs = append(certs, parsed...)
	}
	return certs, nil
}
