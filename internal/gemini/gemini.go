package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/pixelsense/pixelsense/internal/providers"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Gemini is a vision provider backed by Google Gemini
type Gemini struct {
	apiKey string
}

// New returns a new Gemini provider using the given API key
func New(apiKey string) *Gemini {
	return &Gemini{apiKey: apiKey}
}

// Name returns the provider name
func (g *Gemini) Name() string {
	return "gemini"
}

// Classify sends the prompt and images to Gemini and returns the
// model's answer text.
func (g *Gemini) Classify(ctx context.Context, req providers.Request) (string, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		return "", fmt.Errorf("failed to create new gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(req.Model)
	model.SetTemperature(float32(req.Temperature))
	if req.ForceJSON {
		model.ResponseMIMEType = "application/json"
	}

	parts := make([]genai.Part, 0, len(req.Images)+1)
	parts = append(parts, genai.Text(req.Prompt))
	for _, img := range req.Images {
		parts = append(parts, genai.ImageData(subtype(img.MIME), img.Data))
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", classifyErr(err)
	}

	if len(resp.Candidates) == 0 {
		return "", providers.Malformed("no candidates returned from Gemini")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", providers.Malformed("empty content returned from Gemini")
	}

	if txt, ok := candidate.Content.Parts[0].(genai.Text); ok {
		return string(txt), nil
	}

	return "", providers.Malformed("unexpected response format from Gemini")
}

// subtype converts an image MIME type to the bare format name the genai
// SDK expects ("image/jpeg" -> "jpeg").
func subtype(mime string) string {
	if i := strings.IndexByte(mime, '/'); i >= 0 {
		return mime[i+1:]
	}
	return mime
}

func classifyErr(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return providers.FromStatus(gerr.Code, gerr.Message)
	}
	return providers.Transient(err)
}
