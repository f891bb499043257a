package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pixelsense/pixelsense/internal/images"
	"github.com/pixelsense/pixelsense/internal/providers"
)

// QueryJudgment is the outcome of matching one image against a query.
type QueryJudgment struct {
	Matches    bool
	Confidence *float64
	Reason     string
}

// CategoryJudgment is the outcome of categorizing one image, already
// resolved against the discovered taxonomy.
type CategoryJudgment struct {
	Main   string
	Sub    string
	Reason string
}

// Path returns the category path as "main/sub" or "main".
func (j CategoryJudgment) Path() string {
	if j.Sub == "" {
		return j.Main
	}
	return j.Main + "/" + j.Sub
}

// Classifier issues single classification calls against a provider.
// Retry behavior lives in Do; each method here is one attempt.
type Classifier struct {
	Provider    providers.Provider
	Model       string
	Temperature float64
}

// NewClassifier returns a classifier for the given provider and model.
func NewClassifier(provider providers.Provider, model string, temperature float64) *Classifier {
	return &Classifier{Provider: provider, Model: model, Temperature: temperature}
}

const queryPromptFormat = `Does this image match the following description or request: %q?

Respond with ONLY a JSON object in the following format:

{
  "matches": true,
  "confidence": 0.0,
  "reason": "brief explanation"
}

The "matches" field must be true only if the image clearly matches the
description. The "confidence" field is your confidence in the answer
between 0.0 and 1.0. Do not include any text outside the JSON object.`

// MatchQuery asks whether the image matches the free-text query.
func (c *Classifier) MatchQuery(ctx context.Context, ref images.ImageRef, query string) (QueryJudgment, error) {
	prompt := fmt.Sprintf(queryPromptFormat, query)

	raw, err := c.send(ctx, prompt, ref)
	if err != nil {
		return QueryJudgment{}, err
	}

	var parsed struct {
		Matches    *bool    `json:"matches"`
		Confidence *float64 `json:"confidence"`
		Reason     string   `json:"reason"`
	}
	if err := unmarshalResponse(raw, &parsed); err != nil {
		return QueryJudgment{}, err
	}
	if parsed.Matches == nil {
		return QueryJudgment{}, providers.Malformed("response missing required field \"matches\"")
	}
	if parsed.Confidence != nil {
		clamped := clamp01(*parsed.Confidence)
		parsed.Confidence = &clamped
	}

	return QueryJudgment{
		Matches:    *parsed.Matches,
		Confidence: parsed.Confidence,
		Reason:     parsed.Reason,
	}, nil
}

const categorizePromptFormat = `Analyze this image and classify it into the most appropriate category
from this list:

%s

Respond with ONLY a JSON object in the following format:

{
  "main_category": "one of the main categories above",
  "sub_category": "a subcategory of that main category, or empty",
  "reason": "brief explanation"
}

Pick only from the listed categories. Do not include any text outside
the JSON object.`

// Categorize assigns the image a category path within the taxonomy.
// Answers that reference no discovered node resolve to the
// uncategorized sentinel rather than failing the item.
func (c *Classifier) Categorize(ctx context.Context, ref images.ImageRef, tax Taxonomy) (CategoryJudgment, error) {
	prompt := fmt.Sprintf(categorizePromptFormat, strings.Join(tax.Options(), ", "))

	raw, err := c.send(ctx, prompt, ref)
	if err != nil {
		return CategoryJudgment{}, err
	}

	var parsed struct {
		Main   string `json:"main_category"`
		Sub    string `json:"sub_category"`
		Reason string `json:"reason"`
	}
	if err := unmarshalResponse(raw, &parsed); err != nil {
		// Some models ignore the JSON instruction and answer with a
		// bare "main/sub" path; salvage those before giving up.
		main, sub, ok := splitPathAnswer(raw)
		if !ok {
			return CategoryJudgment{}, err
		}
		parsed.Main, parsed.Sub = main, sub
	}
	if strings.TrimSpace(parsed.Main) == "" {
		return CategoryJudgment{}, providers.Malformed("response missing required field \"main_category\"")
	}

	main, sub := tax.Resolve(parsed.Main, parsed.Sub)
	return CategoryJudgment{Main: main, Sub: sub, Reason: parsed.Reason}, nil
}

const discoverPrompt = `Look at these images and suggest a category system that would best
organize them and similar images from the same collection.

Create 5 to 15 main categories, and for each main category 3 to 6
subcategories that provide more specific organization.

Respond with ONLY a JSON object in the following format:

{
  "categories": [
    {
      "main": "a descriptive category name",
      "subcategories": ["first subcategory", "second subcategory"]
    }
  ]
}

Use actual descriptive category names, not placeholders. Categories
should be lowercase with spaces between words. Do not include any text
outside the JSON object.`

// DiscoverBatch asks the model to propose categories fitting a small
// batch of sample images.
func (c *Classifier) DiscoverBatch(ctx context.Context, refs []images.ImageRef) ([]Category, error) {
	raw, err := c.send(ctx, discoverPrompt, refs...)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Categories []Category `json:"categories"`
	}
	if err := unmarshalResponse(raw, &parsed); err != nil {
		return nil, err
	}
	if parsed.Categories == nil {
		return nil, providers.Malformed("response missing required field \"categories\"")
	}
	return parsed.Categories, nil
}

// send loads and attaches the images and issues one provider call.
func (c *Classifier) send(ctx context.Context, prompt string, refs ...images.ImageRef) (string, error) {
	payload := make([]providers.Image, 0, len(refs))
	for _, ref := range refs {
		data, err := images.Read(ref)
		if err != nil {
			return "", err
		}
		payload = append(payload, providers.Image{MIME: images.MIMEType(ref.Ext), Data: data})
	}

	return c.Provider.Classify(ctx, providers.Request{
		Model:       c.Model,
		Temperature: c.Temperature,
		Prompt:      prompt,
		Images:      payload,
		ForceJSON:   true,
	})
}

// unmarshalResponse strips markdown code fences some models wrap around
// JSON answers, then parses into v. Parse failures are malformed, not
// fatal.
func unmarshalResponse(raw string, v any) error {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	if err := json.Unmarshal([]byte(s), v); err != nil {
		return providers.Malformed("failed to parse response as JSON: %v", err)
	}
	return nil
}

// splitPathAnswer salvages plain "main/sub" or "main/sub: reason"
// answers from models that ignore the JSON instruction.
func splitPathAnswer(raw string) (string, string, bool) {
	s := strings.TrimSpace(raw)
	if i := strings.IndexByte(s, ':'); i > 0 {
		s = s[:i]
	}
	if strings.ContainsAny(s, "{}\n") {
		return "", "", false
	}
	main, sub, found := strings.Cut(s, "/")
	main = strings.TrimSpace(main)
	if main == "" {
		return "", "", false
	}
	if !found {
		return main, "", true
	}
	return main, strings.TrimSpace(sub), true
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
