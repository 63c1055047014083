// Package export renders a compiled script to downloadable PDF or DOCX.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"scriptlab/api/internal/script"
)

// Format is the requested output format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
)

var (
	// ErrUnsupportedFormat indicates a format other than pdf or docx.
	ErrUnsupportedFormat = errors.New("export: unsupported format")
	// ErrPDFDependencyMissing indicates headless Chrome is unavailable.
	ErrPDFDependencyMissing = errors.New("export: pdf dependency missing")
	// ErrDOCXDependencyMissing indicates pandoc is unavailable.
	ErrDOCXDependencyMissing = errors.New("export: docx dependency missing")
)

// Result is the rendered artifact.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

type section struct {
	Label       string
	Description string
	Paragraphs  []string
	Empty       bool
}

type templateData struct {
	Title      string
	Sections   []section
	ExportedAt time.Time
}

var scriptTemplate = template.Must(template.New("script").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Georgia, serif; line-height: 1.6; max-width: 720px; margin: 2rem auto; color: #1a1a1a; }
    h1 { border-bottom: 2px solid #1a1a1a; padding-bottom: 0.5rem; }
    h2 { margin-top: 2rem; }
    .desc { color: #666; font-style: italic; margin-top: -0.5rem; }
    .empty { color: #999; }
    .meta { color: #666; font-size: 0.85em; margin-top: 3rem; border-top: 1px solid #ddd; padding-top: 0.5rem; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  {{range .Sections}}
  <h2>{{.Label}}</h2>
  <p class="desc">{{.Description}}</p>
  {{if .Empty}}<p class="empty">(not written yet)</p>{{else}}{{range .Paragraphs}}<p>{{.}}</p>
  {{end}}{{end}}
  {{end}}
  <div class="meta">Exported {{.ExportedAt.Format "Jan 2, 2006 3:04 PM"}}</div>
</body>
</html>`))

// RenderHTML builds the printable HTML view of the document.
func RenderHTML(title string, doc script.Document, exportedAt time.Time) (string, error) {
	data := templateData{Title: title, ExportedAt: exportedAt}
	for _, stage := range script.EditableStages {
		sec := section{
			Label:       script.Label(stage),
			Description: script.Description(stage),
		}
		content := strings.TrimSpace(doc[stage])
		if content == "" {
			sec.Empty = true
		} else {
			for _, para := range strings.Split(content, "\n\n") {
				para = strings.TrimSpace(para)
				if para != "" {
					sec.Paragraphs = append(sec.Paragraphs, para)
				}
			}
		}
		data.Sections = append(data.Sections, sec)
	}

	var buf bytes.Buffer
	if err := scriptTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render script template: %w", err)
	}
	return buf.String(), nil
}

// Export renders the document in the requested format.
func Export(title string, doc script.Document, format Format) (*Result, error) {
	html, err := RenderHTML(title, doc, time.Now())
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatPDF:
		return toPDF(html, title)
	case FormatDOCX:
		return toDOCX(html, title)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// filenameFor builds a safe download name from the script title.
func filenameFor(title, ext string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('-')
		}
	}
	name := b.String()
	if len(name) > 50 {
		name = name[:50]
	}
	if name == "" {
		name = "script"
	}
	return name + "." + ext
}
