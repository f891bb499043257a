package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pixelsense/pixelsense/internal/providers"
)

const defaultURL = "https://api.openai.com/v1/chat/completions"

// OpenAI is a vision provider backed by the OpenAI chat completions API
type OpenAI struct {
	apiKey     string
	url        string
	httpClient *http.Client
}

// New returns a new OpenAI provider using the given API key
func New(apiKey string) *OpenAI {
	return &OpenAI{
		apiKey: apiKey,
		url:    defaultURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// NewWithURL returns a provider pointed at a custom endpoint. Used by
// tests and OpenAI-compatible gateways.
func NewWithURL(apiKey, url string) *OpenAI {
	p := New(apiKey)
	p.url = url
	return p
}

// Name returns the provider name
func (o *OpenAI) Name() string {
	return "openai"
}

// Classify sends the prompt and images to the chat completions API and
// returns the model's answer text.
func (o *OpenAI) Classify(ctx context.Context, req providers.Request) (string, error) {
	content := []map[string]interface{}{
		{
			"type": "text",
			"text": req.Prompt,
		},
	}
	for _, img := range req.Images {
		content = append(content, map[string]interface{}{
			"type": "image_url",
			"image_url": map[string]string{
				"url": fmt.Sprintf("data:%s;base64,%s", img.MIME, base64.StdEncoding.EncodeToString(img.Data)),
			},
		})
	}

	body := map[string]interface{}{
		"model": req.Model,
		"messages": []map[string]interface{}{
			{
				"role":    "user",
				"content": content,
			},
		},
		"max_tokens":  800,
		"temperature": req.Temperature,
	}
	if req.ForceJSON {
		body["response_format"] = map[string]string{"type": "json_object"}
	}

	requestBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", o.url, bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return "", providers.Transient(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", providers.FromStatus(resp.StatusCode, string(respBody))
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", providers.Malformed("failed to decode response body: %v", err)
	}

	if len(response.Choices) == 0 {
		return "", providers.Malformed("no choices returned from OpenAI")
	}

	return response.Choices[0].Message.Content, nil
}
