package classify

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ManifestFilename is the category manifest written into the output
// folder before batch classification begins, so a killed run still
// leaves a usable record of the taxonomy it picked.
const ManifestFilename = "discovered_categories.yaml"

// Manifest is the serialized form of a discovered taxonomy.
type Manifest struct {
	RunID      string     `yaml:"run_id"`
	Timestamp  string     `yaml:"timestamp"`
	Provider   string     `yaml:"provider"`
	Model      string     `yaml:"model"`
	SampleSize int        `yaml:"sample_size"`
	Categories []Category `yaml:"categories"`
}

// WriteManifest serializes the taxonomy to outputDir. Written exactly
// once per auto-categorize run, before dispatch.
func WriteManifest(outputDir, runID, provider, model string, sampleSize int, tax Taxonomy) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	manifest := Manifest{
		RunID:      runID,
		Timestamp:  time.Now().Format(time.RFC3339),
		Provider:   provider,
		Model:      model,
		SampleSize: sampleSize,
		Categories: tax.Categories,
	}

	data, err := yaml.Marshal(manifest)
	if err != nil {
		return "", fmt.Errorf("failed to marshal category manifest: %w", err)
	}

	path := filepath.Join(outputDir, ManifestFilename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write category manifest: %w", err)
	}
	return path, nil
}

// LoadManifest reads a previously written category manifest.
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to read category manifest: %w", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return Manifest{}, fmt.Errorf("failed to parse category manifest: %w", err)
	}
	return manifest, nil
}

// Taxonomy rebuilds the taxonomy recorded in the manifest.
func (m Manifest) Taxonomy() Taxonomy {
	return Taxonomy{Categories: m.Categories}.Normalize()
}
