// Package recognize wraps the external vision-language fallback used when
// the local index is not confident enough.
package recognize

import "context"

// Guess is one external recognition result.
type Guess struct {
	Name        string   `json:"name"`
	Slug        string   `json:"slug"`
	Category    string   `json:"category"`
	Ingredients []string `json:"ingredients"`
	Description string   `json:"description"`
	Confidence  float64  `json:"confidence"`
}

// Recognizer identifies a dish from a photo via an external provider. Calls
// block on network I/O and must honor ctx deadlines and cancellation.
type Recognizer interface {
	ProviderID() string
	Recognize(ctx context.Context, image []byte) (Guess, error)
}
