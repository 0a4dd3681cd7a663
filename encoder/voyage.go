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

const defaultVoyageBase = "https://api.voyageai.com/v1"

// VoyageClient is an HTTP client for the Voyage AI embeddings API.
type VoyageClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// VoyageConfig configures the Voyage client.
type VoyageConfig struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// NewVoyage creates a Voyage encoder.
func NewVoyage(cfg VoyageConfig) (*VoyageClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("voyage: API key is required")
	}
	base := cfg.BaseURL
	if base == "" {
		base = defaultVoyageBase
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &VoyageClient{
		BaseURL:    strings.TrimSuffix(base, "/"),
		APIKey:     cfg.APIKey,
		HTTPClient: client,
	}, nil
}

type voyageEmbedReq struct {
	Model           string   `json:"model"`
	Input           []string `json:"input"`
	OutputDimension int      `json:"output_dimension,omitempty"`
}

type voyageEmbedResp struct {
	Model string `json:"model"`
	Data  []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Usage *struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Encode implements Encoder. TruncateDim maps to output_dimension.
func (c *VoyageClient) Encode(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = "voyage-3.5"
	}
	resp, err := batches(ctx, req, func(ctx context.Context, batch []string) (core.Matrix, Usage, error) {
		body := voyageEmbedReq{Model: model, Input: batch, OutputDimension: req.TruncateDim}
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, Usage{}, fmt.Errorf("voyage encode: %w", err)
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/embeddings", &buf)
		if err != nil {
			return nil, Usage{}, err
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
		httpReq.Header.Set("Content-Type", "application/json")
		httpResp, err := c.HTTPClient.Do(httpReq)
		if err != nil {
			return nil, Usage{}, fmt.Errorf("voyage request: %w", err)
		}
		defer httpResp.Body.Close()
		if httpResp.StatusCode != http.StatusOK {
			bs, _ := io.ReadAll(httpResp.Body)
			return nil, Usage{}, fmt.Errorf("voyage api error %d: %s", httpResp.StatusCode, string(bs))
		}
		var out voyageEmbedResp
		if err := json.NewDecoder(httpResp.Body).Decode(&out); err != nil {
			return nil, Usage{}, fmt.Errorf("voyage decode: %w", err)
		}
		if len(out.Data) != len(batch) {
			return nil, Usage{}, fmt.Errorf("voyage: %d embeddings for %d inputs", len(out.Data), len(batch))
		}
		vecs := make(core.Matrix, len(out.Data))
		for _, d := range out.Data {
			if d.Index < 0 || d.Index >= len(vecs) {
				return nil, Usage{}, fmt.Errorf("voyage: embedding index %d out of range", d.Index)
			}
			vecs[d.Index] = d.Embedding
		}
		usage := Usage{}
		if out.Usage != nil {
			usage.PromptTokens = out.Usage.TotalTokens
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
