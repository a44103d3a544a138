package crossencoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jungujeong/GovRAG-sub000/internal/infrastructure/resilience"
)

// Client scores query/passage pairs against a text-embeddings-inference
// style rerank endpoint. The pipeline treats rerank as optional, so
// callers are expected to degrade on error rather than fail the turn.
type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL string) *Client {
	return NewWithOptions(baseURL, Options{})
}

func NewWithOptions(baseURL string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
	}
}

type rerankHit struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

func (c *Client) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"query": query,
		"texts": passages,
	}
	var hits []rerankHit

	call := func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/rerank", request, &hits)
	}
	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "crossencoder.rerank", call, classifyRerankError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(passages))
	for _, hit := range hits {
		if hit.Index < 0 || hit.Index >= len(scores) {
			return nil, fmt.Errorf("rerank hit index out of range: %d", hit.Index)
		}
		scores[hit.Index] = hit.Score
	}
	return scores, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rerank request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			return fmt.Errorf("rerank status: %s", resp.Status)
		}
		return fmt.Errorf("rerank status: %s: %s", resp.Status, msg)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode rerank response: %w", err)
	}
	return nil
}
