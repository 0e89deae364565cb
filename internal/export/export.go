// Package export renders scraped novels to downloadable files.
package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/IshaanNene/NovelGoat/internal/media"
	"github.com/IshaanNene/NovelGoat/internal/types"
)

// Exporter renders a novel's chapters to w.
type Exporter interface {
	Format() string
	Extension() string
	Export(w io.Writer, novel *types.Novel, chapters []*types.Chapter) error
}

// New returns the exporter for format: txt, epub, pdf or json.
func New(format string) (Exporter, error) {
	switch strings.ToLower(format) {
	case "txt":
		return &TXTExporter{}, nil
	case "epub":
		return &EPUBExporter{}, nil
	case "pdf":
		return &PDFExporter{}, nil
	case "json":
		return &JSONExporter{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrUnsupportedFormat, format)
	}
}

// Formats lists the supported export formats.
func Formats() []string {
	return []string{"txt", "epub", "pdf", "json"}
}

var unsafeChars = regexp.MustCompile(`[^\w\s-]`)

// SafeFilename strips characters outside [A-Za-z0-9_ -], turns spaces into
// underscores and cuts the result to 50 runes.
func SafeFilename(name string) string {
	name = unsafeChars.ReplaceAllString(strings.TrimSpace(name), "")
	name = strings.Join(strings.Fields(name), "_")
	if r := []rune(name); len(r) > 50 {
		name = string(r[:50])
	}
	if name == "" {
		name = "novel"
	}
	return name
}

// withContent returns the chapters that have a body.
func withContent(chapters []*types.Chapter) []*types.Chapter {
	out := make([]*types.Chapter, 0, len(chapters))
	for _, ch := range chapters {
		if ch != nil && ch.HasContent() {
			out = append(out, ch)
		}
	}
	return out
}

// paragraphs splits cleaned chapter text on blank lines.
func paragraphs(content string) []string {
	var out []string
	for _, p := range strings.Split(content, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// chapterHeading is the heading used by every format.
func chapterHeading(ch *types.Chapter) string {
	return fmt.Sprintf("Chapter %d: %s", ch.Index+1, ch.Title)
}

// coverable is implemented by formats that can embed a cover image.
type coverable interface {
	setCover(img *media.Image)
}

// EmbedsCover reports whether format can carry a cover image.
func EmbedsCover(format string) bool {
	exp, err := New(format)
	if err != nil {
		return false
	}
	_, ok := exp.(coverable)
	return ok
}

// CoverSource loads cover images.
type CoverSource interface {
	Cover(ctx context.Context, rawURL string) (*media.Image, error)
}

// LoadCover fetches novel's cover when format embeds one. Failures are
// logged and give nil; a missing cover never fails an export.
func LoadCover(ctx context.Context, src CoverSource, format string, novel *types.Novel, logger *slog.Logger) *media.Image {
	if src == nil || novel.CoverURL == "" || !EmbedsCover(format) {
		return nil
	}
	img, err := src.Cover(ctx, novel.CoverURL)
	if err != nil {
		logger.Debug("cover unavailable", "url", novel.CoverURL, "error", err)
		return nil
	}
	return img
}

// WriteOption configures a single Write.
type WriteOption func(*writeOptions)

type writeOptions struct {
	cover *media.Image
}

// WithCover embeds img in formats that support covers. A nil img is ignored.
func WithCover(img *media.Image) WriteOption {
	return func(o *writeOptions) { o.cover = img }
}

// Writer writes export files into a directory.
type Writer struct {
	dir    string
	logger *slog.Logger
}

// NewWriter creates a Writer rooted at dir.
func NewWriter(dir string, logger *slog.Logger) *Writer {
	return &Writer{
		dir:    dir,
		logger: logger.With("component", "export"),
	}
}

// Write renders chapters in format and returns the file path. Chapters
// without content are skipped; if none have content, ErrNoContent is
// returned and no file is created.
func (w *Writer) Write(format string, novel *types.Novel, chapters []*types.Chapter, opts ...WriteOption) (string, error) {
	exp, err := New(format)
	if err != nil {
		return "", err
	}
	var o writeOptions
	for _, opt := range opts {
		opt(&o)
	}
	if c, ok := exp.(coverable); ok && o.cover != nil {
		c.setCover(o.cover)
	}
	if len(withContent(chapters)) == 0 {
		return "", &types.ExportError{Format: exp.Format(), Err: types.ErrNoContent}
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", &types.ExportError{Format: exp.Format(), Err: fmt.Errorf("create output dir: %w", err)}
	}

	name := SafeFilename(novel.Title)
	if len(chapters) > 0 {
		first, last := chapters[0].Index+1, chapters[len(chapters)-1].Index+1
		name = fmt.Sprintf("%s_ch%d-%d", name, first, last)
	}
	path := filepath.Join(w.dir, name+exp.Extension())

	f, err := os.Create(path)
	if err != nil {
		return "", &types.ExportError{Format: exp.Format(), Err: fmt.Errorf("create output file: %w", err)}
	}

	if err := exp.Export(f, novel, chapters); err != nil {
		f.Close()
		os.Remove(path)
		return "", &types.ExportError{Format: exp.Format(), Err: err}
	}
	if err := f.Close(); err != nil {
		return "", &types.ExportError{Format: exp.Format(), Err: err}
	}

	w.logger.Info("export written", "format", exp.Format(), "path", path, "chapters", len(chapters))
	return path, nil
}
