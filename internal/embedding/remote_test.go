package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRemoteEmbedderEmbedText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Model != "test-model" {
			t.Fatalf("model = %q, want test-model", req.Model)
		}
		resp := embedResponse{}
		resp.Data = []struct {
			Embedding []float64 `json:"embedding"`
		}{{Embedding: []float64{0.1, 0.2, 0.3}}}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e, err := NewRemoteEmbedder(RemoteConfig{
		Endpoint: srv.URL,
		Model:    "test-model",
	})
	if err != nil {
		t.Fatal(err)
	}

	v, err := e.EmbedText(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	if len(v) != 3 {
		t.Fatalf("len(v) = %d, want 3", len(v))
	}
}

func TestRemoteEmbedderNon2xxFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"boom"}`))
	}))
	defer srv.Close()

	e, _ := NewRemoteEmbedder(RemoteConfig{Endpoint: srv.URL, Model: "m"})
	if _, err := e.EmbedText(context.Background(), "hello"); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}

func TestRemoteEmbedderMalformedResponseFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	e, _ := NewRemoteEmbedder(RemoteConfig{Endpoint: srv.URL, Model: "m"})
	if _, err := e.EmbedText(context.Background(), "hello"); err == nil {
		t.Fatal("expected error for malformed response")
	}
}

func TestRemoteEmbedderEmptyEmbeddingFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{})
	}))
	defer srv.Close()

	e, _ := NewRemoteEmbedder(RemoteConfig{Endpoint: srv.URL, Model: "m"})
	if _, err := e.EmbedText(context.Background(), "hello"); err == nil {
		t.Fatal("expected error for empty embedding data")
	}
}

func TestNewRemoteEmbedderRequiresEndpointAndModel(t *testing.T) {
	if _, err := NewRemoteEmbedder(RemoteConfig{Model: "m"}); err == nil {
		t.Fatal("expected error for missing endpoint")
	}
	if _, err := NewRemoteEmbedder(RemoteConfig{Endpoint: "http://x"}); err == nil {
		t.Fatal("expected error for missing model")
	}
}
