package organize

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Apply executes the plan, copying each source image to its destination
// path. Per-item write failures are logged and counted but never abort
// the run.
func Apply(plan Plan, stats *RunStats) {
	for _, entry := range plan.Entries {
		if err := copyFile(entry.Ref.Path, entry.Dest); err != nil {
			slog.Warn("Failed to copy image", "source", entry.Ref.Path, "dest", entry.Dest, "error", err)
			stats.RecordCopyError()
			continue
		}
		slog.Debug("Copied image", "source", entry.Ref.Path, "dest", entry.Dest)
	}
}

func copyFile(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy contents: %w", err)
	}
	return out.Close()
}
