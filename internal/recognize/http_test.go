package recognize

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/soulnutri/dishscan/internal/config"
)

func TestHTTPRecognize(t *testing.T) {
	image := []byte("fake-jpeg-bytes")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/recognize" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		var body struct {
			Model string `json:"model"`
			Image string `json:"image"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body.Model != "vision-1" {
			t.Errorf("model = %q", body.Model)
		}
		raw, err := base64.StdEncoding.DecodeString(body.Image)
		if err != nil || string(raw) != string(image) {
			t.Errorf("image payload mismatch: %v", err)
		}
		json.NewEncoder(w).Encode(Guess{
			Name:        "Feijoada",
			Slug:        "feijoada",
			Category:    "animal protein",
			Ingredients: []string{"black beans", "pork"},
			Confidence:  0.93,
		})
	}))
	defer srv.Close()

	rec := NewHTTP(config.EscalationConfig{
		Enabled: true,
		BaseURL: srv.URL,
		Model:   "vision-1",
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
	})

	g, err := rec.Recognize(context.Background(), image)
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if g.Slug != "feijoada" || g.Category != "animal protein" {
		t.Errorf("unexpected guess: %+v", g)
	}
	if len(g.Ingredients) != 2 {
		t.Errorf("ingredients = %v", g.Ingredients)
	}
}

func TestHTTPRecognizeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	rec := NewHTTP(config.EscalationConfig{BaseURL: srv.URL, Model: "vision-1"})
	_, err := rec.Recognize(context.Background(), []byte("x"))
	if err == nil {
		t.Fatal("expected error on HTTP 503")
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("error should carry status code: %v", err)
	}
}

func TestHTTPRecognizeEmptyImage(t *testing.T) {
	rec := NewHTTP(config.EscalationConfig{BaseURL: "http://localhost:0", Model: "vision-1"})
	if _, err := rec.Recognize(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty image")
	}
}

func TestHTTPRecognizeUnnamedGuess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"confidence":0.2}`))
	}))
	defer srv.Close()

	rec := NewHTTP(config.EscalationConfig{BaseURL: srv.URL, Model: "vision-1"})
	if _, err := rec.Recognize(context.Background(), []byte("x")); err == nil {
		t.Fatal("expected error when response names no dish")
	}
}

func TestHTTPRecognizeCancellation(t *testing.T) {
	// done releases the handler after the client gives up, so Close does
	// not wait on a parked handler goroutine.
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-done:
		}
	}))
	defer srv.Close()
	defer close(done)

	rec := NewHTTP(config.EscalationConfig{BaseURL: srv.URL, Model: "vision-1"})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := rec.Recognize(ctx, []byte("x")); err == nil {
		t.Fatal("expected error on context timeout")
	}
}
