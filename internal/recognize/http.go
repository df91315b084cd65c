package recognize

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/soulnutri/dishscan/internal/config"
)

type httpRecognizer struct {
	model   string
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewHTTP constructs a recognizer for a vision-language HTTP endpoint.
//
// It uses the REST endpoint:
//
//	POST {baseURL}/recognize
//
// with JSON body:
//
//	{"model": "...", "image": "<base64>"}
//
// and expects a Guess-shaped JSON response.
func NewHTTP(cfg config.EscalationConfig) Recognizer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &httpRecognizer{
		model:   cfg.Model,
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (r *httpRecognizer) ProviderID() string {
	return "http:" + r.model
}

func (r *httpRecognizer) Recognize(ctx context.Context, image []byte) (Guess, error) {
	if len(image) == 0 {
		return Guess{}, fmt.Errorf("cannot recognize empty image")
	}

	reqBody := map[string]any{
		"model": r.model,
		"image": base64.StdEncoding.EncodeToString(image),
	}
	b, err := json.Marshal(reqBody)
	if err != nil {
		return Guess{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/recognize", bytes.NewReader(b))
	if err != nil {
		return Guess{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return Guess{}, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Guess{}, fmt.Errorf("recognize request failed: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var g Guess
	if err := json.Unmarshal(body, &g); err != nil {
		return Guess{}, fmt.Errorf("cannot parse recognize response: %w", err)
	}
	if g.Name == "" && g.Slug == "" {
		return Guess{}, fmt.Errorf("recognize response names no dish")
	}
	return g, nil
}
