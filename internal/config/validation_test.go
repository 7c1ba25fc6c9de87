package config

import (
	"errors"
	"testing"
	"time"
)

func validTestConfig() *Config {
	return &Config{
		Global: GlobalConfig{
			BindAddr:        "127.0.0.1:8080",
			StoragePath:     "/tmp/storage",
			UpstreamTimeout: Duration(30 * time.Second),
		},
		Backend: "https://backend.example",
		Signing: SigningConfig{
			HtmlHost:           "pub.example",
			CertFile:           "credentials/cert.pem",
			IssuerFile:         "credentials/issuer.pem",
			KeyFile:            "credentials/privkey.pem",
			CertURLDirname:     ".well-known/sxg-certs",
			ValidityURLDirname: ".well-known/sxg-validity",
		},
	}
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	if err := validTestConfig().Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestValidateFieldErrors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad bind addr", func(c *Config) { c.Global.BindAddr = "nope" }, "BindAddr"},
		{"empty storage path", func(c *Config) { c.Global.StoragePath = "" }, "StoragePath"},
		{"zero timeout", func(c *Config) { c.Global.UpstreamTimeout = 0 }, "UpstreamTimeout"},
		{"empty backend", func(c *Config) { c.Backend = "" }, "Backend"},
		{"relative backend", func(c *Config) { c.Backend = "/just/a/path" }, "Backend"},
		{"ftp backend", func(c *Config) { c.Backend = "ftp://backend.example" }, "Backend"},
		{"empty html host", func(c *Config) { c.Signing.HtmlHost = "" }, "Signing.HtmlHost"},
		{"html host with path", func(c *Config) { c.Signing.HtmlHost = "pub.example/path" }, "Signing.HtmlHost"},
		{"empty cert file", func(c *Config) { c.Signing.CertFile = "" }, "Signing.CertFile"},
		{"empty key file", func(c *Config) { c.Signing.KeyFile = "" }, "Signing.KeyFile"},
		{"dirname traversal", func(c *Config) { c.Signing.CertURLDirname = "../certs" }, "Signing.CertURLDirname"},
		{"acme token without answer", func(c *Config) { c.Signing.AcmeChallengeToken = "tok" }, "Signing.AcmeChallengeToken"},
	}

	for _, tc := range cases {
		cfg := validTestConfig()
		tc.mutate(cfg)
		err := cfg.Validate()
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		var fieldErr FieldError
		if !errors.As(err, &fieldErr) {
			t.Fatalf("%s: error %v is not a FieldError", tc.name, err)
		}
		if fieldErr.Field != tc.field {
			t.Fatalf("%s: field = %s, want %s", tc.name, fieldErr.Field, tc.field)
		}
	}
}

func TestValidateAcmePairAllowed(t *testing.T) {
	cfg := validTestConfig()
	cfg.Signing.AcmeChallengeToken = "tok"
	cfg.Signing.AcmeChallengeAnswer = "tok.thumb"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestDurationUnmarshalText(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("90s")); err != nil {
		t.Fatalf("UnmarshalText failed: %v", err)
	}
	if d.DurationValue() != 90*time.Second {
		t.Fatalf("d = %v", d.DurationValue())
	}
	if err := d.UnmarshalText([]byte("120")); err != nil {
		t.Fatalf("UnmarshalText failed: %v", err)
	}
	if d.DurationValue() != 120*time.Second {
		t.Fatalf("d = %v", d.DurationValue())
	}
	if err := d.UnmarshalText([]byte("not-a-duration")); err == nil {
		t.Fatalf("expected error")
	}
}
