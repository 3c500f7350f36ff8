package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"rsc.io/pdf"
)

// ErrNoText reports a file that parsed fine but contained no extractable
// text (for example a scanned, image-only PDF). Callers should skip the file
// and not retry it.
var ErrNoText = errors.New("no extractable text")

// ExtractionError reports a file that could not be parsed at all. The file
// should be kept for a manual retry.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Supported reports whether path has a file extension the extractor handles.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".txt", ".md":
		return true
	}
	return false
}

// Text extracts the full text of a source file, with pages joined by a
// blank line so page breaks fall on paragraph boundaries for the chunker.
// Returns ErrNoText when the file yields no text and *ExtractionError when
// it cannot be parsed.
func Text(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return pdfText(path)
	case ".txt", ".md":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", &ExtractionError{Path: path, Err: err}
		}
		if strings.TrimSpace(string(data)) == "" {
			return "", ErrNoText
		}
		return string(data), nil
	default:
		return "", &ExtractionError{Path: path, Err: fmt.Errorf("unsupported file type %q", filepath.Ext(path))}
	}
}

func pdfText(path string) (text string, err error) {
	// rsc.io/pdf panics on malformed files; surface that as an
	// ExtractionError instead of taking the whole batch down.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = &ExtractionError{Path: path, Err: fmt.Errorf("malformed pdf: %v", r)}
		}
	}()

	r, err := pdf.Open(path)
	if err != nil {
		return "", &ExtractionError{Path: path, Err: err}
	}

	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		if s := pageText(p); s != "" {
			pages = append(pages, s)
		}
	}
	joined := strings.TrimSpace(strings.Join(pages, "\n\n"))
	if joined == "" {
		return "", ErrNoText
	}
	return joined, nil
}

// pageText reassembles a page's positioned text runs into lines. Runs are
// grouped by their Y coordinate (top to bottom) and ordered by X within a
// line; a larger vertical gap between lines starts a new paragraph.
func pageText(p pdf.Page) string {
	content := p.Content()
	if len(content.Text) == 0 {
		return ""
	}
	texts := make([]pdf.Text, len(content.Text))
	copy(texts, content.Text)
	sort.SliceStable(texts, func(i, j int) bool {
		if texts[i].Y != texts[j].Y {
			return texts[i].Y > texts[j].Y
		}
		return texts[i].X < texts[j].X
	})

	var b strings.Builder
	lineY := texts[0].Y
	for _, t := range texts {
		if t.Y != lineY {
			gap := lineY - t.Y
			if gap > 1.8*t.FontSize && b.Len() > 0 {
				b.WriteString("\n\n")
			} else {
				b.WriteString("\n")
			}
			lineY = t.Y
		}
		b.WriteString(t.S)
	}
	return strings.TrimSpace(b.String())
}
