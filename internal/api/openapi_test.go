package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpenAPIHandler(t *testing.T) {
	dir := t.TempDir()
	spec := filepath.Join(dir, "openapi.yaml")
	doc := "openapi: 3.0.3\ninfo:\n  title: t\n  version: \"1\"\npaths: {}\n"
	if err := os.WriteFile(spec, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("OPENAPI_PATH", spec)
	s := newTestServer(t)

	rr := doGet(t, s.OpenAPIHandler, "/v1/openapi.yaml")
	if rr.Code != 200 || !strings.Contains(rr.Body.String(), "openapi: 3.0.3") {
		t.Fatalf("openapi: %d %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/yaml" {
		t.Fatalf("content type = %q", ct)
	}

	// an unparseable document is a 500, not served broken
	if err := os.WriteFile(spec, []byte("a: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	rr = doGet(t, s.OpenAPIHandler, "/v1/openapi.yaml")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("broken document served: %d", rr.Code)
	}
}

func TestDocsHandler(t *testing.T) {
	s := newTestServer(t)
	rr := doGet(t, s.DocsHandler, "/docs")
	if rr.Code != 200 || !strings.Contains(rr.Body.String(), "redoc") {
		t.Fatalf("docs: %d", rr.Code)
	}
}
