// Package embedding turns raw image bytes into unit-normalized float vectors
// via a pluggable provider.
package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/soulnutri/dishscan/internal/metrics"
)

// Provider embeds an image into a fixed-length float vector.
//
// Implementations must return unit-normalized (L2 norm 1) vectors and must be
// deterministic for the same input bytes and model.
type Provider interface {
	ModelID() string
	Dim() int
	Embed(ctx context.Context, image []byte) ([]float32, error)
}

// Error is a typed embedding failure. A failed embedding is never substituted
// with synthetic data; callers decide whether to retry or escalate.
type Error struct {
	Op        string
	Transient bool
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("embedding %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsTransient reports whether err is an embedding failure worth one retry
// (timeouts, 5xx responses, connection errors).
func IsTransient(err error) bool {
	var ee *Error
	return errors.As(err, &ee) && ee.Transient
}

// EmbedWithRetry calls p.Embed and retries exactly once on a transient
// failure. Context cancellation is never retried. Failures that survive the
// retry are counted.
func EmbedWithRetry(ctx context.Context, p Provider, image []byte) ([]float32, error) {
	vec, err := p.Embed(ctx, image)
	if err == nil {
		return vec, nil
	}
	if ctx.Err() != nil || !IsTransient(err) {
		metrics.EmbedFailures.Inc()
		return nil, err
	}
	vec, err = p.Embed(ctx, image)
	if err != nil {
		metrics.EmbedFailures.Inc()
	}
	return vec, err
}
