// Package images enumerates the image files a run will operate on.
package images

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoImages is returned when the input folder contains no supported
// image files. Fatal for the run.
var ErrNoImages = errors.New("no images found in the specified folder")

// supportedExtensions is the fixed set of image formats we process,
// compared case-insensitively against file extensions.
var supportedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
}

// ImageRef identifies one enumerated image. Immutable once created.
type ImageRef struct {
	Path string
	Ext  string
	Size int64
}

// Filename returns the base filename of the referenced image.
func (r ImageRef) Filename() string {
	return filepath.Base(r.Path)
}

// Find enumerates supported images in folder, optionally recursing into
// subfolders. Results are sorted by path so downstream sampling and
// reduction are deterministic.
func Find(folder string, recursive bool) ([]ImageRef, error) {
	info, err := os.Stat(folder)
	if err != nil {
		return nil, fmt.Errorf("failed to read folder %s: %w", folder, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", folder)
	}

	var refs []ImageRef
	if recursive {
		err = filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if ref, ok := toRef(path, d); ok {
				refs = append(refs, ref)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk folder %s: %w", folder, err)
		}
	} else {
		entries, err := os.ReadDir(folder)
		if err != nil {
			return nil, fmt.Errorf("failed to read folder %s: %w", folder, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if ref, ok := toRef(filepath.Join(folder, entry.Name()), entry); ok {
				refs = append(refs, ref)
			}
		}
	}

	if len(refs) == 0 {
		return nil, ErrNoImages
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].Path < refs[j].Path })

	slog.Debug("Enumerated images", "folder", folder, "recursive", recursive, "count", len(refs))
	return refs, nil
}

func toRef(path string, d fs.DirEntry) (ImageRef, bool) {
	ext := strings.ToLower(filepath.Ext(d.Name()))
	if !supportedExtensions[ext] {
		return ImageRef{}, false
	}
	var size int64
	if info, err := d.Info(); err == nil {
		size = info.Size()
	}
	return ImageRef{Path: path, Ext: ext, Size: size}, true
}

// Read loads the image bytes for upload.
func Read(ref ImageRef) ([]byte, error) {
	data, err := os.ReadFile(ref.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image %s: %w", ref.Path, err)
	}
	return data, nil
}

// MIMEType returns the MIME type for a supported extension.
func MIMEType(ext string) string {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".bmp":
		return "image/bmp"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
