package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteNewFileRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cert.pem")
	if err := writeNewFile(path, []byte("first")); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if err := writeNewFile(path, []byte("second")); err == nil {
		t.Fatalf("second write should be refused")
	}

	// 原内容必须原封不动。
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(got) != "first" {
		t.Fatalf("content = %q, want original", got)
	}
}

func TestWriteNewFilePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "privkey.pem")
	if err := writeNewFile(path, []byte("key")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode = %o, want 600", info.Mode().Perm())
	}
}

func TestExtFileContent(t *testing.T) {
	content := extFileContent("pub.example")
	if !strings.Contains(content, "1.3.6.1.4.1.11129.2.1.22 = ASN1:NULL") {
		t.Fatalf("missing canSignHttpExchanges extension: %q", content)
	}
	if !strings.Contains(content, "subjectAltName = DNS:pub.example") {
		t.Fatalf("missing subjectAltName: %q", content)
	}
}
