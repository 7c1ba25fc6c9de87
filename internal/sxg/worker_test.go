package sxg

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/sxg-gateway/sxg-gateway/internal/config"
	"github.com/sxg-gateway/sxg-gateway/internal/storage"
)

// newTestWorker 用一张临时自签证书构造工作器，避免测试依赖磁盘上的
// PEM 文件。
func newTestWorker(t *testing.T, cfg config.SigningConfig) *Worker {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "pub.example"},
		DNSNames:     []string{"pub.example"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(90 * 24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}

	w, err := NewWithMaterial(cfg, []*x509.Certificate{cert}, key)
	if err != nil {
		t.Fatalf("NewWithMaterial failed: %v", err)
	}
	return w
}

func fixedRuntime(w *Worker, now time.Time) *Runtime {
	return &Runtime{
		Now:     now,
		Signer:  w.CreateSigner(),
		Storage: storage.NullStore{},
	}
}

func TestCreateSignedExchangeAssemblesTask(t *testing.T) {
	w := newTestWorker(t, testWorkerConfig())
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	var captured *SignTask
	w.OverrideSigner(ExchangeSignerFunc(func(_ context.Context, task *SignTask) ([]byte, error) {
		captured = task
		return []byte("sxg-bytes"), nil
	}))

	rt := fixedRuntime(w, now)
	header := http.Header{}
	header.Set("Content-Type", "text/html;charset=utf-8")
	resp, err := w.CreateSignedExchange(context.Background(), rt, &SignParams{
		PayloadBody:    []byte("<html></html>"),
		PayloadHeaders: header,
		StatusCode:     http.StatusOK,
		FallbackURL:    "https://pub.example/articles/foo",
		CertOrigin:     "https://pub.example",
	})
	if err != nil {
		t.Fatalf("CreateSignedExchange failed: %v", err)
	}

	if captured == nil {
		t.Fatalf("signer was not invoked")
	}
	if captured.FallbackURL != "https://pub.example/articles/foo" {
		t.Fatalf("unexpected fallback url: %s", captured.FallbackURL)
	}
	wantCertURL := "https://pub.example/.well-known/sxg-certs/" + w.CertName()
	if captured.CertURL != wantCertURL {
		t.Fatalf("cert url = %s, want %s", captured.CertURL, wantCertURL)
	}
	if captured.ValidityURL != "https://pub.example/.well-known/sxg-validity/validity" {
		t.Fatalf("unexpected validity url: %s", captured.ValidityURL)
	}
	if !captured.Date.Equal(now) {
		t.Fatalf("signature date = %v, want %v", captured.Date, now)
	}
	if !captured.Expires.Equal(now.Add(7 * 24 * time.Hour)) {
		t.Fatalf("signature expiry = %v, want +7d", captured.Expires)
	}

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("outer status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != SxgMediaType {
		t.Fatalf("outer content type = %s", got)
	}
	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("missing nosniff, got %q", got)
	}
	if string(resp.Body) != "sxg-bytes" {
		t.Fatalf("outer body = %q", resp.Body)
	}
}

func TestCreateSignedExchangeRefusesNonOKStatus(t *testing.T) {
	w := newTestWorker(t, testWorkerConfig())
	w.OverrideSigner(ExchangeSignerFunc(func(context.Context, *SignTask) ([]byte, error) {
		t.Fatalf("signer must not run for non-200 payloads")
		return nil, nil
	}))
	rt := fixedRuntime(w, time.Now())

	for _, status := range []int{http.StatusNotFound, http.StatusFound, http.StatusInternalServerError} {
		_, err := w.CreateSignedExchange(context.Background(), rt, &SignParams{
			PayloadBody: []byte("nope"),
			StatusCode:  status,
			FallbackURL: "https://pub.example/missing",
			CertOrigin:  "https://pub.example",
		})
		if err == nil {
			t.Fatalf("expected error for status %d", status)
		}
	}
}

func TestCreateSignedExchangeRefusesOversizePayload(t *testing.T) {
	w := newTestWorker(t, testWorkerConfig())
	rt := fixedRuntime(w, time.Now())

	_, err := w.CreateSignedExchange(context.Background(), rt, &SignParams{
		PayloadBody: make([]byte, maxSignableBytes+1),
		StatusCode:  http.StatusOK,
		FallbackURL: "https://pub.example/huge",
		CertOrigin:  "https://pub.example",
	})
	if err == nil {
		t.Fatalf("expected error for oversize payload")
	}
	if !strings.Contains(err.Error(), "exceeds") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateSignedExchangeRejectsBadFallback(t *testing.T) {
	w := newTestWorker(t, testWorkerConfig())
	rt := fixedRuntime(w, time.Now())

	cases := []SignParams{
		{PayloadBody: []byte("x"), StatusCode: 200, FallbackURL: "/relative", CertOrigin: "https://pub.example"},
		{PayloadBody: []byte("x"), StatusCode: 200, FallbackURL: "https://pub.example/a", CertOrigin: ""},
	}
	for i := range cases {
		if _, err := w.CreateSignedExchange(context.Background(), rt, &cases[i]); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestRealSignerProducesExchangeBytes(t *testing.T) {
	w := newTestWorker(t, testWorkerConfig())
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	rt := fixedRuntime(w, now)

	header := http.Header{}
	header.Set("Content-Type", "text/html;charset=utf-8")
	resp, err := w.CreateSignedExchange(context.Background(), rt, &SignParams{
		PayloadBody:    []byte("<html><body>hello</body></html>"),
		PayloadHeaders: header,
		StatusCode:     http.StatusOK,
		FallbackURL:    "https://pub.example/hello",
		CertOrigin:     "https://pub.example",
	})
	if err != nil {
		t.Fatalf("CreateSignedExchange failed: %v", err)
	}
	if len(resp.Body) == 0 {
		t.Fatalf("empty exchange body")
	}
	// b3 流以固定 magic 开头。
	if !strings.HasPrefix(string(resp.Body), "sxg1-b3\x00") {
		t.Fatalf("exchange body missing b3 magic: %q", resp.Body[:16])
	}
}
