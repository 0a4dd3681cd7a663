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

const defaultCohereBase = "https://api.cohere.com/v2"

// CohereClient is an HTTP client for the Cohere Embed API.
type CohereClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	// InputType is the Cohere embedding input type (default "search_document").
	InputType string
}

// CohereConfig configures the Cohere client.
type CohereConfig struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	InputType  string
}

// NewCohere creates a Cohere encoder.
func NewCohere(cfg CohereConfig) (*CohereClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("cohere: API key is required")
	}
	base := cfg.BaseURL
	if base == "" {
		base = defaultCohereBase
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	inputType := cfg.InputType
	if inputType == "" {
		inputType = "search_document"
	}
	return &CohereClient{
		BaseURL:    strings.TrimSuffix(base, "/"),
		APIKey:     cfg.APIKey,
		HTTPClient: client,
		InputType:  inputType,
	}, nil
}

type cohereEmbedReq struct {
	Model          string   `json:"model"`
	Texts          []string `json:"texts"`
	InputType      string   `json:"input_type"`
	EmbeddingTypes []string `json:"embedding_types"`
}

type cohereEmbedResp struct {
	Embeddings struct {
		Float [][]float32 `json:"float"`
	} `json:"embeddings"`
	Meta *struct {
		BilledUnits *struct {
			InputTokens int `json:"input_tokens"`
		} `json:"billed_units"`
	} `json:"meta"`
}

// Encode implements Encoder. Cohere has no dimension parameter; truncation is client-side.
func (c *CohereClient) Encode(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = "embed-v4.0"
	}
	resp, err := batches(ctx, req, func(ctx context.Context, batch []string) (core.Matrix, Usage, error) {
		body := cohereEmbedReq{
			Model:          model,
			Texts:          batch,
			InputType:      c.InputType,
			EmbeddingTypes: []string{"float"},
		}
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, Usage{}, fmt.Errorf("cohere encode: %w", err)
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/embed", &buf)
		if err != nil {
			return nil, Usage{}, err
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
		httpReq.Header.Set("Content-Type", "application/json")
		httpResp, err := c.HTTPClient.Do(httpReq)
		if err != nil {
			return nil, Usage{}, fmt.Errorf("cohere request: %w", err)
		}
		defer httpResp.Body.Close()
		if httpResp.StatusCode != http.StatusOK {
			bs, _ := io.ReadAll(httpResp.Body)
			return nil, Usage{}, fmt.Errorf("cohere api error %d: %s", httpResp.StatusCode, string(bs))
		}
		var out cohereEmbedResp
		if err := json.NewDecoder(httpResp.Body).Decode(&out); err != nil {
			return nil, Usage{}, fmt.Errorf("cohere decode: %w", err)
		}
		if len(out.Embeddings.Float) != len(batch) {
			return nil, Usage{}, fmt.Errorf("cohere: %d embeddings for %d inputs", len(out.Embeddings.Float), len(batch))
		}
		usage := Usage{}
		if out.Meta != nil && out.Meta.BilledUnits != nil {
			usage.PromptTokens = out.Meta.BilledUnits.InputTokens
			usage.TotalTokens = out.Meta.BilledUnits.InputTokens
		}
		return core.Matrix(out.Embeddings.Float), usage, nil
	})
	if err != nil {
		return nil, err
	}
	resp.Model = model
	return resp, nil
}
