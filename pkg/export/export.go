// Package export renders schedule tables as downloadable documents.
package export

import (
	"fmt"
	"strings"
)

// Dataset defines tabular export content. Rows flagged in Highlight are
// emphasised by renderers that support it.
type Dataset struct {
	Headers   []string
	Rows      []map[string]string
	Highlight []bool
	Summary   []string
}

// Renderer turns a dataset into a document.
type Renderer interface {
	Render(data Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// ForFormat returns the renderer registered for format ("csv" or "pdf").
func ForFormat(format, title string) (Renderer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "csv":
		return NewCSVExporter(), nil
	case "pdf":
		return NewPDFExporter(title), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

func (d Dataset) highlighted(i int) bool {
	return i < len(d.Highlight) && d.Highlight[i]
}
