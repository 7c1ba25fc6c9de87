package fetch

import (
	"net/http"
	"testing"
)

func TestNewRequestAllowsOnlyGetAndPost(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		if _, err := NewRequest(method, "https://backend.example/a", nil, nil); err != nil {
			t.Fatalf("NewRequest(%s) failed: %v", method, err)
		}
	}
	for _, method := range []string{http.MethodPut, http.MethodDelete, http.MethodHead, "TRACE"} {
		if _, err := NewRequest(method, "https://backend.example/a", nil, nil); err == nil {
			t.Fatalf("NewRequest(%s) should fail", method)
		}
	}
}

func TestNewRequestRequiresURL(t *testing.T) {
	if _, err := NewRequest(http.MethodGet, "", nil, nil); err == nil {
		t.Fatalf("expected error for empty url")
	}
}

func TestNewRequestDefaultsHeader(t *testing.T) {
	req, err := NewRequest(http.MethodGet, "https://backend.example/a", nil, nil)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	if req.Header == nil {
		t.Fatalf("header should default to an empty map")
	}
}
