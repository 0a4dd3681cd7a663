package encoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/distill-go/distill/core"
)

const defaultOllamaBase = "http://localhost:11434"

// OllamaClient is an HTTP client for the Ollama local embeddings API.
type OllamaClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// OllamaConfig configures the Ollama client.
type OllamaConfig struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewOllama creates an Ollama encoder (no API key required).
func NewOllama(cfg OllamaConfig) *OllamaClient {
	base := cfg.BaseURL
	if base == "" {
		base = defaultOllamaBase
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &OllamaClient{
		BaseURL:    strings.TrimSuffix(base, "/"),
		HTTPClient: client,
	}
}

type ollamaEmbedReq struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResp struct {
	Model           string      `json:"model"`
	Embeddings      [][]float32 `json:"embeddings"`
	PromptEvalCount int         `json:"prompt_eval_count,omitempty"`
}

// Encode implements Encoder. Ollama has no dimension parameter; truncation is client-side.
func (c *OllamaClient) Encode(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = "nomic-embed-text"
	}
	resp, err := batches(ctx, req, func(ctx context.Context, batch []string) (core.Matrix, Usage, error) {
		body := ollamaEmbedReq{Model: model, Input: batch}
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, Usage{}, fmt.Errorf("ollama encode: %w", err)
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/embed", &buf)
		if err != nil {
			return nil, Usage{}, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpResp, err := c.HTTPClient.Do(httpReq)
		if err != nil {
			return nil, Usage{}, fmt.Errorf("ollama request: %w", err)
		}
		defer httpResp.Body.Close()
		if httpResp.StatusCode != http.StatusOK {
			bs, _ := io.ReadAll(httpResp.Body)
			return nil, Usage{}, fmt.Errorf("ollama api error %d: %s", httpResp.StatusCode, string(bs))
		}
		var out ollamaEmbedResp
		if err := json.NewDecoder(httpResp.Body).Decode(&out); err != nil {
			return nil, Usage{}, fmt.Errorf("ollama decode: %w", err)
		}
		if len(out.Embeddings) != len(batch) {
			return nil, Usage{}, fmt.Errorf("ollama: %d embeddings for %d inputs", len(out.Embeddings), len(batch))
		}
		usage := Usage{PromptTokens: out.PromptEvalCount, TotalTokens: out.PromptEvalCount}
		return core.Matrix(out.Embeddings), usage, nil
	})
	if err != nil {
		return nil, err
	}
	resp.Model = model
	return resp, nil
}
