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

const defaultOpenAIBase = "https://api.openai.com/v1"

// OpenAIClient is an HTTP client for the OpenAI embeddings API.
type OpenAIClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// OpenAIConfig configures the OpenAI client.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// NewOpenAI creates an OpenAI encoder.
func NewOpenAI(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	base := cfg.BaseURL
	if base == "" {
		base = defaultOpenAIBase
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &OpenAIClient{
		BaseURL:    strings.TrimSuffix(base, "/"),
		APIKey:     cfg.APIKey,
		HTTPClient: client,
	}, nil
}

type openAIEmbedReq struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type openAIEmbedResp struct {
	Model string `json:"model"`
	Data  []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Usage *struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// Encode implements Encoder. TruncateDim is passed as the API "dimensions" parameter.
func (c *OpenAIClient) Encode(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = "text-embedding-3-small"
	}
	resp, err := batches(ctx, req, func(ctx context.Context, batch []string) (core.Matrix, Usage, error) {
		body := openAIEmbedReq{Model: model, Input: batch, Dimensions: req.TruncateDim}
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, Usage{}, fmt.Errorf("openai encode: %w", err)
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/embeddings", &buf)
		if err != nil {
			return nil, Usage{}, err
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
		httpReq.Header.Set("Content-Type", "application/json")
		httpResp, err := c.HTTPClient.Do(httpReq)
		if err != nil {
			return nil, Usage{}, fmt.Errorf("openai request: %w", err)
		}
		defer httpResp.Body.Close()
		if httpResp.StatusCode != http.StatusOK {
			bs, _ := io.ReadAll(httpResp.Body)
			return nil, Usage{}, fmt.Errorf("openai api error %d: %s", httpResp.StatusCode, string(bs))
		}
		var out openAIEmbedResp
		if err := json.NewDecoder(httpResp.Body).Decode(&out); err != nil {
			return nil, Usage{}, fmt.Errorf("openai decode: %w", err)
		}
		if len(out.Data) != len(batch) {
			return nil, Usage{}, fmt.Errorf("openai: %d embeddings for %d inputs", len(out.Data), len(batch))
		}
		vecs := make(core.Matrix, len(out.Data))
		for _, d := range out.Data {
			if d.Index < 0 || d.Index >= len(vecs) {
				return nil, Usage{}, fmt.Errorf("openai: embedding index %d out of range", d.Index)
			}
			vecs[d.Index] = d.Embedding
		}
		usage := Usage{}
		if out.Usage != nil {
			usage.PromptTokens = out.Usage.PromptTokens
			usage.TotalTokens = out.Usage.TotalTokens
		}
		return vecs, usage, nil
	})
	if err != nil {
		return nil, err
	}
	resp.Model = model
	return resp, nil
}
