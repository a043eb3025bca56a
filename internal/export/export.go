// Package export names and writes generated content files.
package export

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// MIMEPlainText is the content type of exported text.
const MIMEPlainText = "text/plain;charset=utf-8"

// Sink receives an exported file. Implementations decide where it goes: a
// directory, an HTTP download, a test buffer.
type Sink interface {
	Save(ctx context.Context, data []byte, filename, mimeType string) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, data []byte, filename, mimeType string) error

func (f SinkFunc) Save(ctx context.Context, data []byte, filename, mimeType string) error {
	return f(ctx, data, filename, mimeType)
}

// Filename returns content-<templateKey>-<unix millis>.txt.
func Filename(templateKey string, at time.Time) string {
	return fmt.Sprintf("content-%s-%d.txt", templateKey, at.UnixMilli())
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lowercases s and collapses everything but letters and digits into
// single dashes.
func Slug(s string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
	if len(slug) > 40 {
		slug = strings.TrimRight(slug[:40], "-")
	}
	if slug == "" {
		slug = "untitled"
	}
	return slug
}

// ImageFilename returns image-<topic slug>-<unix millis>.<ext>.
func ImageFilename(topic, mimeType string, at time.Time) string {
	return fmt.Sprintf("image-%s-%d%s", Slug(topic), at.UnixMilli(), Extension(mimeType))
}

// Extension maps an image MIME type to a file extension.
func Extension(mimeType string) string {
	switch mimeType {
	case "image/png", "":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}

// DirSink writes files into a directory. Writes are atomic: a temp file in
// the same directory is renamed into place.
type DirSink struct {
	Dir string

	// LastPath is the full path of the most recent successful save.
	LastPath string
}

// NewDirSink returns a DirSink for dir. An empty dir means the working
// directory.
func NewDirSink(dir string) *DirSink {
	if dir == "" {
		dir = "."
	}
	return &DirSink{Dir: dir}
}

func (s *DirSink) Save(ctx context.Context, data []byte, filename, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if filename == "" || filename != filepath.Base(filename) {
		return fmt.Errorf("invalid export filename %q", filename)
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.Dir, "."+filename+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close export: %w", err)
	}

	dst := filepath.Join(s.Dir, filename)
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("move export into place: %w", err)
	}
	s.LastPath = dst
	return nil
}
