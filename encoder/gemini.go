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

const defaultGeminiBase = "https://generativelanguage.googleapis.com/v1beta"

// GeminiClient is an HTTP client for the Google Gemini embeddings API.
type GeminiClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// GeminiConfig configures the Gemini client.
type GeminiConfig struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// NewGemini creates a Gemini encoder.
func NewGemini(cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	base := cfg.BaseURL
	if base == "" {
		base = defaultGeminiBase
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &GeminiClient{
		BaseURL:    strings.TrimSuffix(base, "/"),
		APIKey:     cfg.APIKey,
		HTTPClient: client,
	}, nil
}

type geminiEmbedReq struct {
	Requests []geminiEmbedOne `json:"requests"`
}

type geminiEmbedOne struct {
	Model   string `json:"model"`
	Content struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"content"`
	OutputDimensionality int `json:"outputDimensionality,omitempty"`
}

type geminiEmbedResp struct {
	Embeddings []struct {
		Values []float32 `json:"values"`
	} `json:"embeddings"`
}

// Encode implements Encoder. TruncateDim maps to outputDimensionality.
func (c *GeminiClient) Encode(ctx context.Context, req Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = "text-embedding-004"
	}
	fullModel := model
	if !strings.HasPrefix(fullModel, "models/") {
		fullModel = "models/" + fullModel
	}
	resp, err := batches(ctx, req, func(ctx context.Context, batch []string) (core.Matrix, Usage, error) {
		body := geminiEmbedReq{Requests: make([]geminiEmbedOne, len(batch))}
		for i, text := range batch {
			one := geminiEmbedOne{Model: fullModel, OutputDimensionality: req.TruncateDim}
			one.Content.Parts = []struct {
				Text string `json:"text"`
			}{{Text: text}}
			body.Requests[i] = one
		}
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, Usage{}, fmt.Errorf("gemini encode: %w", err)
		}
		url := c.BaseURL + "/" + fullModel + ":batchEmbedContents?key=" + c.APIKey
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
		if err != nil {
			return nil, Usage{}, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpResp, err := c.HTTPClient.Do(httpReq)
		if err != nil {
			return nil, Usage{}, fmt.Errorf("gemini request: %w", err)
		}
		defer httpResp.Body.Close()
		if httpResp.StatusCode != http.StatusOK {
			bs, _ := io.ReadAll(httpResp.Body)
			return nil, Usage{}, fmt.Errorf("gemini api error %d: %s", httpResp.StatusCode, string(bs))
		}
		var out geminiEmbedResp
		if err := json.NewDecoder(httpResp.Body).Decode(&out); err != nil {
			return nil, Usage{}, fmt.Errorf("gemini decode: %w", err)
		}
		if len(out.Embeddings) != len(batch) {
			return nil, Usage{}, fmt.Errorf("gemini: %d embeddings for %d inputs", len(out.Embeddings), len(batch))
		}
		vecs := make(core.Matrix, len(out.Embeddings))
		for i, e := range out.Embeddings {
			vecs[i] = e.Values
		}
		return vecs, Usage{}, nil
	})
	if err != nil {
		return nil, err
	}
	resp.Model = model
	return resp, nil
}
