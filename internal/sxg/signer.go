package sxg

import (
	"bytes"
	"context"
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/WICG/webpackage/go/signedexchange"
	"github.com/WICG/webpackage/go/signedexchange/version"
)

// miRecordSize 是 MICE 编码的分块大小，与 Web Packager 的默认值一致。
const miRecordSize = 16384

// SignTask 汇总一次签名调用需要的全部输入，由编排层组装。
type SignTask struct {
	FallbackURL string
	StatusCode  int
	Header      http.Header
	Body        []byte
	Date        time.Time
	Expires     time.Time
	CertURL     string
	ValidityURL string
}

// ExchangeSigner 是“对一份载荷产出签名交换字节流”的能力接口，
// 生产实现绑定进程级证书链；测试中可替换。
type ExchangeSigner interface {
	Sign(ctx context.Context, task *SignTask) ([]byte, error)
}

// ExchangeSignerFunc adapts a function to the ExchangeSigner interface.
type ExchangeSignerFunc func(ctx context.Context, task *SignTask) ([]byte, error)

// Sign makes ExchangeSignerFunc satisfy ExchangeSigner.
func (f ExchangeSignerFunc) Sign(ctx context.Context, task *SignTask) ([]byte, error) {
	return f(ctx, task)
}

// chainSigner 通过 WICG webpackage 库产出 b3 交换：MICE 编码 + 签名头。
type chainSigner struct {
	certs   []*x509.Certificate
	privKey crypto.PrivateKey
}

func (s *chainSigner) Sign(ctx context.Context, task *SignTask) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	certURL, err := url.Parse(task.CertURL)
	if err != nil {
		return nil, fmt.Errorf("parse cert url: %w", err)
	}
	validityURL, err := url.Parse(task.ValidityURL)
	if err != nil {
		return nil, fmt.Errorf("parse validity url: %w", err)
	}

	e, err := signedexchange.NewExchange(
		version.Version1b3,
		task.FallbackURL,
		http.MethodGet,
		http.Header{},
		task.StatusCode,
		task.Header,
		task.Body,
	)
	if err != nil {
		return nil, fmt.Errorf("build exchange: %w", err)
	}
	if err := e.MiEncodePayload(miRecordSize); err != nil {
		return nil, fmt.Errorf("mice encode payload: %w", err)
	}

	signer := &signedexchange.Signer{
		Date:        task.Date,
		Expires:     task.Expires,
		Certs:       s.certs,
		CertUrl:     certURL,
		ValidityUrl: validityURL,
		PrivKey:     s.privKey,
	}
	if err := e.AddSignatureHeader(signer); err != nil {
		return nil, fmt.Errorf("sign exchange: %w", err)
	}

	var buf bytes.Buffer
	if err := e.Write(&buf); err != nil {
		return nil, fmt.Errorf("serialize exchange: %w", err)
	}
	return buf.Bytes(), nil
}

// LoadPrivateKey 从 PEM 文件加载签名私钥（EC/PKCS8 均可）。
func LoadPrivateKey(path string) (crypto.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key %s: %w", path, err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("no pem block in %s", path)
	}
	key, err := signedexchange.ParsePrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key %s: %w", path, err)
	}
	return key, nil
}
