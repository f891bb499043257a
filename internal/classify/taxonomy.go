package classify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/pixelsense/pixelsense/internal/images"
	"github.com/pixelsense/pixelsense/internal/providers"
)

const (
	// Uncategorized is the sentinel main category for judgments that
	// do not map to any discovered node.
	Uncategorized = "uncategorized"

	// Caps on the merged taxonomy. Discovery prompts ask for fewer,
	// but merging several batch proposals can over-produce; the caps
	// bound the fan-out of the classification prompt and the output
	// folder tree.
	maxMainCategories  = 20
	maxSubcategories   = 8
	discoveryBatchSize = 5
	maxCategoryNameLen = 60
)

// Category is one main category and its subcategories.
type Category struct {
	Main          string   `json:"main" yaml:"main"`
	Subcategories []string `json:"subcategories" yaml:"subcategories"`
}

// Taxonomy is the two-level category tree discovered from a sample of
// the collection. Built once, read-only afterwards.
type Taxonomy struct {
	Categories []Category `json:"categories" yaml:"categories"`
}

// Normalize returns a cleaned copy of the taxonomy: names trimmed and
// lower-cased, empties dropped, duplicates merged (subcategory sets of
// duplicate mains are unioned), everything sorted, and the documented
// caps applied. Normalizing an already-normalized taxonomy returns an
// equal taxonomy.
func (t Taxonomy) Normalize() Taxonomy {
	merged := make(map[string]map[string]bool)
	order := []string{}

	for _, cat := range t.Categories {
		main := normalizeName(cat.Main)
		if main == "" {
			continue
		}
		if _, ok := merged[main]; !ok {
			merged[main] = make(map[string]bool)
			order = append(order, main)
		}
		for _, sub := range cat.Subcategories {
			if s := normalizeName(sub); s != "" {
				merged[main][s] = true
			}
		}
	}

	sort.Strings(order)
	if len(order) > maxMainCategories {
		order = order[:maxMainCategories]
	}

	result := Taxonomy{Categories: make([]Category, 0, len(order))}
	for _, main := range order {
		subs := make([]string, 0, len(merged[main]))
		for s := range merged[main] {
			subs = append(subs, s)
		}
		sort.Strings(subs)
		if len(subs) > maxSubcategories {
			subs = subs[:maxSubcategories]
		}
		result.Categories = append(result.Categories, Category{Main: main, Subcategories: subs})
	}
	return result
}

// Resolve maps a model answer to a discovered node. A main category
// without subcategories resolves to a depth-1 path. Answers that do not
// reference an existing node path, including a known main paired with
// an unknown subcategory, resolve to the Uncategorized sentinel.
func (t Taxonomy) Resolve(main, sub string) (string, string) {
	main = normalizeName(main)
	sub = normalizeName(sub)
	for _, cat := range t.Categories {
		if cat.Main != main {
			continue
		}
		if len(cat.Subcategories) == 0 {
			return main, ""
		}
		for _, s := range cat.Subcategories {
			if s == sub {
				return main, sub
			}
		}
		break
	}
	return Uncategorized, ""
}

// Options renders the flat "main/sub" path list fed to the
// classification prompt.
func (t Taxonomy) Options() []string {
	var opts []string
	for _, cat := range t.Categories {
		if len(cat.Subcategories) == 0 {
			opts = append(opts, cat.Main)
			continue
		}
		for _, sub := range cat.Subcategories {
			opts = append(opts, cat.Main+"/"+sub)
		}
	}
	return opts
}

func normalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) > maxCategoryNameLen {
		// Cut on a rune boundary so multi-byte names stay valid UTF-8.
		cut := maxCategoryNameLen
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	return s
}

// Sample selects min(sampleSize, len(refs)) images by deterministic
// stride over the path-sorted listing: every n/sampleSize-th image,
// starting from half a stride in. The spread keeps runs of
// near-duplicate alphabetically-adjacent filenames from dominating the
// sample, and the same folder always yields the same sample.
func Sample(refs []images.ImageRef, sampleSize int) []images.ImageRef {
	if sampleSize <= 0 || len(refs) <= sampleSize {
		return refs
	}
	stride := float64(len(refs)) / float64(sampleSize)
	sampled := make([]images.ImageRef, 0, sampleSize)
	for i := 0; i < sampleSize; i++ {
		idx := int(stride*float64(i) + stride/2)
		if idx >= len(refs) {
			idx = len(refs) - 1
		}
		sampled = append(sampled, refs[idx])
	}
	return sampled
}

// Discover samples the collection and asks the model to propose a
// category system, in batches of a few images per call. Each batch goes
// through the same retry controller as classification, so a transient
// or rate-limited call backs off instead of sinking the batch. Per-batch
// failures after retry exhaustion are tolerated as long as at least one
// batch produced categories; a discovery that yields nothing is an
// error, which is fatal in auto-categorize mode.
func Discover(ctx context.Context, c *Classifier, refs []images.ImageRef, sampleSize int, cfg RetryConfig) (Taxonomy, error) {
	sampled := Sample(refs, sampleSize)
	slog.Info("Discovering categories from sample", "sample", len(sampled), "total", len(refs))

	var proposed []Category
	var lastErr error
	for start := 0; start < len(sampled); start += discoveryBatchSize {
		end := start + discoveryBatchSize
		if end > len(sampled) {
			end = len(sampled)
		}

		window := sampled[start:end]
		batch, _, err := Do(ctx, cfg, func(callCtx context.Context) ([]Category, error) {
			return c.DiscoverBatch(callCtx, window)
		})
		if err != nil {
			if providers.IsAuth(err) {
				return Taxonomy{}, err
			}
			slog.Warn("Category discovery batch failed", "batch_start", start, "error", err)
			lastErr = err
			continue
		}
		proposed = append(proposed, batch...)
	}

	tax := Taxonomy{Categories: proposed}.Normalize()
	if len(tax.Categories) == 0 {
		if lastErr != nil {
			return Taxonomy{}, fmt.Errorf("category discovery failed: %w", lastErr)
		}
		return Taxonomy{}, fmt.Errorf("category discovery produced no categories")
	}

	slog.Info("Discovered categories", "main_categories", len(tax.Categories))
	return tax, nil
}
