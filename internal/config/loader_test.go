package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validConfig = `
BindAddr = "127.0.0.1:9090"
LogLevel = "debug"
StoragePath = "./storage"
UpstreamTimeout = "15s"
Backend = "https://backend.example"

[Signing]
HtmlHost = "pub.example"
CertFile = "credentials/cert.pem"
IssuerFile = "credentials/issuer.pem"
KeyFile = "credentials/privkey.pem"
`

func TestLoadParsesConfig(t *testing.T) {
	path := writeConfigFile(t, validConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Global.BindAddr != "127.0.0.1:9090" {
		t.Fatalf("BindAddr = %s", cfg.Global.BindAddr)
	}
	if cfg.Global.LogLevel != "debug" {
		t.Fatalf("LogLevel = %s", cfg.Global.LogLevel)
	}
	if cfg.Global.UpstreamTimeout.DurationValue() != 15*time.Second {
		t.Fatalf("UpstreamTimeout = %v", cfg.Global.UpstreamTimeout.DurationValue())
	}
	if cfg.Backend != "https://backend.example" {
		t.Fatalf("Backend = %s", cfg.Backend)
	}
	if cfg.Signing.HtmlHost != "pub.example" {
		t.Fatalf("HtmlHost = %s", cfg.Signing.HtmlHost)
	}
	if !filepath.IsAbs(cfg.Global.StoragePath) {
		t.Fatalf("StoragePath should be absolute: %s", cfg.Global.StoragePath)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
Backend = "https://backend.example"

[Signing]
HtmlHost = "pub.example"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Global.BindAddr != "127.0.0.1:8080" {
		t.Fatalf("default BindAddr = %s", cfg.Global.BindAddr)
	}
	if cfg.Global.UpstreamTimeout.DurationValue() != 30*time.Second {
		t.Fatalf("default UpstreamTimeout = %v", cfg.Global.UpstreamTimeout.DurationValue())
	}
	if cfg.Signing.CertURLDirname != ".well-known/sxg-certs" {
		t.Fatalf("default CertURLDirname = %s", cfg.Signing.CertURLDirname)
	}
	if cfg.Signing.ValidityURLDirname != ".well-known/sxg-validity" {
		t.Fatalf("default ValidityURLDirname = %s", cfg.Signing.ValidityURLDirname)
	}
	if cfg.Signing.CertFile != "credentials/cert.pem" {
		t.Fatalf("default CertFile = %s", cfg.Signing.CertFile)
	}
}

func TestLoadAcceptsIntegerSecondsDuration(t *testing.T) {
	path := writeConfigFile(t, `
Backend = "https://backend.example"
UpstreamTimeout = 45

[Signing]
HtmlHost = "pub.example"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Global.UpstreamTimeout.DurationValue() != 45*time.Second {
		t.Fatalf("UpstreamTimeout = %v", cfg.Global.UpstreamTimeout.DurationValue())
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadDoesNotValidate(t *testing.T) {
	// Backend 留空由 CLI 覆盖后再校验，Load 本身不应报错。
	path := writeConfigFile(t, `
[Signing]
HtmlHost = "pub.example"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	var fieldErr FieldError
	if err := cfg.Validate(); !errors.As(err, &fieldErr) || fieldErr.Field != "Backend" {
		t.Fatalf("Validate = %v, want Backend field error", err)
	}
}
