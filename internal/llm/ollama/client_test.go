package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/escolab/pi-pipeline/internal/common"
	"github.com/escolab/pi-pipeline/internal/llm"
)

func generateResponse(t *testing.T, payload string) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]string{"response": payload})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestExtractFields(t *testing.T) {
	var gotReq map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write(generateResponse(t, "```json\n{\"dadesAlumne\":{\"nomCognoms\":\"Anna Puig\"},\"orientacions\":[\"Rutines\"]}\n```"))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Timeout: 5 * time.Second}, nil)
	res, raw, err := c.ExtractFields(context.Background(), llm.ExtractRequest{Text: "document", FilenameHint: "pi.docx"})
	if err != nil {
		t.Fatalf("ExtractFields: %v", err)
	}
	if res.DadesAlumne.NomCognoms == nil || *res.DadesAlumne.NomCognoms != "Anna Puig" {
		t.Errorf("NomCognoms = %v", res.DadesAlumne.NomCognoms)
	}
	if len(res.Orientacions) != 1 {
		t.Errorf("Orientacions = %v", res.Orientacions)
	}
	if res.AdaptacionsGenerals == nil {
		t.Error("AdaptacionsGenerals is nil, want empty list")
	}
	if len(raw) == 0 {
		t.Error("raw JSON not returned")
	}

	if gotReq["format"] != "json" {
		t.Errorf("format = %v, want json", gotReq["format"])
	}
	if gotReq["stream"] != false {
		t.Errorf("stream = %v, want false", gotReq["stream"])
	}
	if _, ok := gotReq["prompt"].(string); !ok {
		t.Error("prompt missing from request")
	}
}

func TestExtractFieldsMalformedAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(generateResponse(t, "sorry, I cannot help with that"))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Timeout: 5 * time.Second}, nil)
	_, _, err := c.ExtractFields(context.Background(), llm.ExtractRequest{Text: "doc"})
	if !errors.Is(err, common.ErrAIService) {
		t.Fatalf("err = %v, want ErrAIService", err)
	}
}

func TestExtractFieldsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Timeout: 5 * time.Second}, nil)
	_, _, err := c.ExtractFields(context.Background(), llm.ExtractRequest{Text: "doc"})
	if !errors.Is(err, common.ErrAIService) {
		t.Fatalf("err = %v, want ErrAIService", err)
	}
	if errors.Is(err, common.ErrAITimeout) {
		t.Fatal("server error misclassified as timeout")
	}
}

func TestExtractFieldsTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, nil)
	start := time.Now()
	_, _, err := c.ExtractFields(context.Background(), llm.ExtractRequest{Text: "doc"})
	if !errors.Is(err, common.ErrAITimeout) {
		t.Fatalf("err = %v, want ErrAITimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("timeout took %s, hard bound not enforced", elapsed)
	}
}
