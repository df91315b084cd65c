package embedding

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/soulnutri/dishscan/internal/config"
	"github.com/soulnutri/dishscan/internal/metrics"
)

type clipProvider struct {
	model   string
	apiKey  string
	baseURL string
	client  *http.Client
	dim     int
}

// NewCLIP constructs an HTTP embedding provider for a CLIP-style image
// embedding server.
//
// It uses the REST endpoint:
//
//	POST {baseURL}/embeddings
//
// with JSON body:
//
//	{"model": "...", "input": "<base64 image>", "encoding": "base64"}
func NewCLIP(cfg config.EmbeddingConfig) Provider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &clipProvider{
		model:   cfg.Model,
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		dim:     cfg.Dim,
	}
}

func (p *clipProvider) ModelID() string {
	return "clip:" + p.model
}

func (p *clipProvider) Dim() int {
	return p.dim
}

func (p *clipProvider) Embed(ctx context.Context, image []byte) ([]float32, error) {
	if len(image) == 0 {
		return nil, &Error{Op: "request", Err: fmt.Errorf("cannot embed empty image")}
	}

	start := time.Now()

	reqBody := map[string]any{
		"model":    p.model,
		"input":    base64.StdEncoding.EncodeToString(image),
		"encoding": "base64",
	}
	b, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &Error{Op: "request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embeddings", bytes.NewReader(b))
	if err != nil {
		return nil, &Error{Op: "request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &Error{Op: "call", Transient: ctx.Err() == nil, Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{
			Op:        "call",
			Transient: resp.StatusCode >= 500,
			Err:       fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var parsed struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &Error{Op: "decode", Err: fmt.Errorf("cannot parse embeddings response: %w", err)}
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, &Error{Op: "decode", Err: fmt.Errorf("embeddings response missing embedding")}
	}

	emb64 := parsed.Data[0].Embedding
	if p.dim != 0 && len(emb64) != p.dim {
		return nil, &Error{Op: "decode", Err: fmt.Errorf("embedding dim mismatch: got %d want %d", len(emb64), p.dim)}
	}

	out := make([]float32, len(emb64))
	var sum float64
	for i, v := range emb64 {
		out[i] = float32(v)
		sum += v * v
	}
	if sum == 0 {
		return nil, &Error{Op: "decode", Err: fmt.Errorf("embedding is the zero vector")}
	}
	// Providers promise unit norm; renormalize when they are slightly off.
	if norm := math.Sqrt(sum); math.Abs(norm-1) > 1e-3 {
		inv := float32(1 / norm)
		for i := range out {
			out[i] *= inv
		}
	}

	if p.dim == 0 {
		p.dim = len(out)
	}
	metrics.EmbedDuration.Observe(time.Since(start).Seconds())
	return out, nil
}
