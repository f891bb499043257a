package providers

import (
	"context"
)

// Image is a single image payload attached to a vision request.
type Image struct {
	MIME string
	Data []byte
}

// Request represents a single vision classification request
type Request struct {
	Model       string
	Temperature float64
	Prompt      string
	Images      []Image
	// ForceJSON asks the provider to constrain output to a JSON object
	// where the underlying API supports it.
	ForceJSON bool
}

// Provider defines the interface for a vision LLM provider
type Provider interface {
	// Classify sends one request to the provider and returns the raw
	// text of the model's answer.
	Classify(ctx context.Context, req Request) (string, error)
	// Name returns the provider's short name for logging.
	Name() string
}
