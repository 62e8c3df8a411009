package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/grammarkit/mining-service/internal/models"
	"github.com/grammarkit/mining-service/internal/services"
)

const digitDefinition = `{"<start>": ["<digit>"], "<digit>": ["0", "1", "2"]}`

func newGrammarMux(t *testing.T) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	NewGrammarHandler(services.NewGrammarService(t.TempDir())).RegisterRoutes(mux)
	return mux
}

func createGrammar(t *testing.T, mux *http.ServeMux, path string, req models.CreateGrammarRequest) {
	t.Helper()
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create returned %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGetGrammarIncludesMetadata(t *testing.T) {
	mux := newGrammarMux(t)
	createGrammar(t, mux, "/grammars/default/digits", models.CreateGrammarRequest{
		Format:     "json",
		Definition: digitDefinition,
		Start:      "<digit>",
	})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/grammars/default/digits", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get returned %d: %s", rec.Code, rec.Body.String())
	}

	var got models.Grammar
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Format != "json" {
		t.Errorf("expected json format, got %q", got.Format)
	}
	if got.Start != "<digit>" {
		t.Errorf("expected start <digit>, got %q", got.Start)
	}
}

func TestGetGrammarRawDownload(t *testing.T) {
	mux := newGrammarMux(t)
	createGrammar(t, mux, "/grammars/default/digits", models.CreateGrammarRequest{
		Format:     "json",
		Definition: digitDefinition,
	})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/grammars/default/digits?raw=true", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("raw get returned %d", rec.Code)
	}
	if rec.Body.String() != digitDefinition {
		t.Errorf("raw download should return the stored definition verbatim, got %q", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json content type, got %q", ct)
	}
}

func TestListGrammarsOmitsDefinitions(t *testing.T) {
	mux := newGrammarMux(t)
	createGrammar(t, mux, "/grammars/default/digits", models.CreateGrammarRequest{
		Format:     "json",
		Definition: digitDefinition,
		Start:      "<digit>",
	})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/grammars/default", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list returned %d", rec.Code)
	}

	var listing models.GrammarListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &listing); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if len(listing.Grammars) != 1 {
		t.Fatalf("expected 1 grammar, got %d", len(listing.Grammars))
	}
	if listing.Grammars[0].Definition != "" {
		t.Error("listing should omit definitions by default")
	}
	if listing.Grammars[0].Start != "<digit>" {
		t.Errorf("listing should keep metadata, got start %q", listing.Grammars[0].Start)
	}

	// full=true restores the definitions
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/grammars/default?full=true", nil))
	if err := json.Unmarshal(rec.Body.Bytes(), &listing); err != nil {
		t.Fatalf("decode full listing: %v", err)
	}
	if listing.Grammars[0].Definition != digitDefinition {
		t.Error("full=true listing should include definitions")
	}
}
