package crossencoder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestScoreAlignsHitsByIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rerank" {
			http.NotFound(w, r)
			return
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if payload["query"] != "예산 편성" {
			t.Fatalf("query not forwarded: %v", payload)
		}
		// Hits arrive sorted by score, not by input position.
		_, _ = w.Write([]byte(`[{"index":1,"score":0.9},{"index":0,"score":0.2}]`))
	}))
	defer server.Close()

	client := New(server.URL)
	scores, err := client.Score(context.Background(), "예산 편성", []string{"첫 번째 지문", "두 번째 지문"})
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if len(scores) != 2 || scores[0] != 0.2 || scores[1] != 0.9 {
		t.Fatalf("scores misaligned: %v", scores)
	}
}

func TestScoreEmptyPassages(t *testing.T) {
	client := New("http://127.0.0.1:1")
	scores, err := client.Score(context.Background(), "q", nil)
	if err != nil || scores != nil {
		t.Fatalf("expected no-op for empty passages, got %v, %v", scores, err)
	}
}

func TestScoreRejectsOutOfRangeIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"index":5,"score":0.9}]`))
	}))
	defer server.Close()

	client := New(server.URL)
	if _, err := client.Score(context.Background(), "q", []string{"only one"}); err == nil {
		t.Fatalf("expected out-of-range error")
	}
}

func TestScoreSurfacesHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(server.URL)
	if _, err := client.Score(context.Background(), "q", []string{"passage"}); err == nil {
		t.Fatalf("expected error")
	}
}
