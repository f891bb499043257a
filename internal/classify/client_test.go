package classify

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pixelsense/pixelsense/internal/images"
	"github.com/pixelsense/pixelsense/internal/providers"
)

// mockProvider returns canned responses and records the requests it saw.
type mockProvider struct {
	respond  func(req providers.Request) (string, error)
	requests []providers.Request
}

func (m *mockProvider) Classify(ctx context.Context, req providers.Request) (string, error) {
	m.requests = append(m.requests, req)
	return m.respond(req)
}

func (m *mockProvider) Name() string { return "mock" }

func testRef(t *testing.T) images.ImageRef {
	t.Helper()
	path := filepath.Join(t.TempDir(), "photo.jpg")
	if err := os.WriteFile(path, []byte("fake jpeg bytes"), 0644); err != nil {
		t.Fatalf("write test image: %v", err)
	}
	return images.ImageRef{Path: path, Ext: ".jpg", Size: 15}
}

func TestMatchQuery(t *testing.T) {
	tests := []struct {
		name        string
		response    string
		wantMatches bool
		wantConf    float64
		hasConf     bool
	}{
		{
			name:        "plain json match",
			response:    `{"matches": true, "confidence": 0.9, "reason": "a red car fills the frame"}`,
			wantMatches: true,
			wantConf:    0.9,
			hasConf:     true,
		},
		{
			name:        "fenced json no match",
			response:    "```json\n{\"matches\": false, \"reason\": \"no car present\"}\n```",
			wantMatches: false,
		},
		{
			name:        "out of range confidence clamped",
			response:    `{"matches": true, "confidence": 1.7, "reason": ""}`,
			wantMatches: true,
			wantConf:    1.0,
			hasConf:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &mockProvider{respond: func(providers.Request) (string, error) {
				return tt.response, nil
			}}
			c := NewClassifier(provider, "test-model", 0.2)

			judgment, err := c.MatchQuery(context.Background(), testRef(t), "a red car")
			if err != nil {
				t.Fatalf("MatchQuery: %v", err)
			}
			if judgment.Matches != tt.wantMatches {
				t.Errorf("Matches = %v, expected %v", judgment.Matches, tt.wantMatches)
			}
			if tt.hasConf {
				if judgment.Confidence == nil {
					t.Fatal("Expected a confidence value")
				}
				if *judgment.Confidence != tt.wantConf {
					t.Errorf("Confidence = %v, expected %v", *judgment.Confidence, tt.wantConf)
				}
			} else if judgment.Confidence != nil {
				t.Errorf("Expected no confidence, got %v", *judgment.Confidence)
			}
		})
	}
}

func TestMatchQueryMalformed(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"not json", "YES, that is a red car"},
		{"missing matches field", `{"confidence": 0.5, "reason": "unclear"}`},
		{"wrong type", `{"matches": "yes"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &mockProvider{respond: func(providers.Request) (string, error) {
				return tt.response, nil
			}}
			c := NewClassifier(provider, "test-model", 0.2)

			_, err := c.MatchQuery(context.Background(), testRef(t), "a red car")
			if err == nil {
				t.Fatal("Expected a malformed-response error")
			}
			if providers.KindOf(err) != providers.KindMalformed {
				t.Errorf("Expected malformed kind, got %s", providers.KindOf(err))
			}
		})
	}
}

func TestMatchQuerySendsImagePayload(t *testing.T) {
	provider := &mockProvider{respond: func(providers.Request) (string, error) {
		return `{"matches": false, "reason": ""}`, nil
	}}
	c := NewClassifier(provider, "test-model", 0.2)

	if _, err := c.MatchQuery(context.Background(), testRef(t), "a red car"); err != nil {
		t.Fatalf("MatchQuery: %v", err)
	}

	if len(provider.requests) != 1 {
		t.Fatalf("Expected 1 request, got %d", len(provider.requests))
	}
	req := provider.requests[0]
	if len(req.Images) != 1 {
		t.Fatalf("Expected 1 image attached, got %d", len(req.Images))
	}
	if req.Images[0].MIME != "image/jpeg" {
		t.Errorf("Expected image/jpeg payload, got %s", req.Images[0].MIME)
	}
	if string(req.Images[0].Data) != "fake jpeg bytes" {
		t.Errorf("Unexpected image payload: %q", req.Images[0].Data)
	}
	if !req.ForceJSON {
		t.Error("Expected ForceJSON to be set")
	}
	if req.Model != "test-model" {
		t.Errorf("Expected model test-model, got %s", req.Model)
	}
}

func TestCategorize(t *testing.T) {
	tax := Taxonomy{Categories: []Category{
		{Main: "travel", Subcategories: []string{"beaches", "cities"}},
	}}

	tests := []struct {
		name     string
		response string
		wantPath string
	}{
		{
			name:     "resolves discovered path",
			response: `{"main_category": "travel", "sub_category": "beaches", "reason": "sand and sea"}`,
			wantPath: "travel/beaches",
		},
		{
			name:     "invented category becomes uncategorized",
			response: `{"main_category": "vehicles", "sub_category": "cars", "reason": "a sedan"}`,
			wantPath: Uncategorized,
		},
		{
			name:     "plain path answer salvaged",
			response: "travel/cities: skyline at night",
			wantPath: "travel/cities",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &mockProvider{respond: func(providers.Request) (string, error) {
				return tt.response, nil
			}}
			c := NewClassifier(provider, "test-model", 0.2)

			judgment, err := c.Categorize(context.Background(), testRef(t), tax)
			if err != nil {
				t.Fatalf("Categorize: %v", err)
			}
			if judgment.Path() != tt.wantPath {
				t.Errorf("Path() = %q, expected %q", judgment.Path(), tt.wantPath)
			}
		})
	}
}

func TestDiscoverBatch(t *testing.T) {
	provider := &mockProvider{respond: func(providers.Request) (string, error) {
		return `{"categories": [{"main": "travel", "subcategories": ["beaches", "cities"]}]}`, nil
	}}
	c := NewClassifier(provider, "test-model", 0.2)

	cats, err := c.DiscoverBatch(context.Background(), []images.ImageRef{testRef(t), testRef(t)})
	if err != nil {
		t.Fatalf("DiscoverBatch: %v", err)
	}
	if len(cats) != 1 || cats[0].Main != "travel" || len(cats[0].Subcategories) != 2 {
		t.Errorf("Unexpected categories: %+v", cats)
	}

	if len(provider.requests[0].Images) != 2 {
		t.Errorf("Expected both sample images attached, got %d", len(provider.requests[0].Images))
	}
}

func TestDiscoverBatchMalformed(t *testing.T) {
	provider := &mockProvider{respond: func(providers.Request) (string, error) {
		return `{"something_else": true}`, nil
	}}
	c := NewClassifier(provider, "test-model", 0.2)

	_, err := c.DiscoverBatch(context.Background(), []images.ImageRef{testRef(t)})
	if providers.KindOf(err) != providers.KindMalformed {
		t.Fatalf("Expected malformed kind, got %v", err)
	}
}
