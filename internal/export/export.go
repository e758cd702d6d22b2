// Package export serializes scraped results for download, one file per
// scraped URL.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/scrapedesk/scrapedesk/internal/workspace"
)

// Format identifies a supported export serialization.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat validates a user-supplied format string.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (valid: json, csv)", s)
	}
}

// Ext returns the file extension for the format, without the dot.
func (f Format) Ext() string { return string(f) }

// ContentType returns the MIME type used when serving a download.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	default:
		return "application/json"
	}
}

// File is one exported result file.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Render serializes every result into its own file. File n for a result
// is named scraping_<sanitized url>_<n>.<ext>, numbering from 1 in
// result order.
func Render(results []workspace.URLResult, format Format) ([]File, error) {
	files := make([]File, 0, len(results))
	for i, res := range results {
		data, err := renderOne(res, format)
		if err != nil {
			return nil, fmt.Errorf("rendering result for %s: %w", res.URL, err)
		}
		files = append(files, File{
			Name:        Filename(res.URL, i+1, format),
			ContentType: format.ContentType(),
			Data:        data,
		})
	}
	return files, nil
}

// RenderOne serializes a single result.
func RenderOne(res workspace.URLResult, format Format) ([]byte, error) {
	return renderOne(res, format)
}

func renderOne(res workspace.URLResult, format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		return renderCSV(res)
	case FormatJSON:
		return renderJSON(res)
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

// renderJSON emits the full result, indented for readability.
func renderJSON(res workspace.URLResult) ([]byte, error) {
	return json.MarshalIndent(res, "", "  ")
}

// renderCSV emits a Title,Value header followed by one row per field.
func renderCSV(res workspace.URLResult) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"Title", "Value"}); err != nil {
		return nil, err
	}
	for _, f := range res.Fields {
		if err := w.Write([]string{f.Title, f.Value}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Filename builds the download name for result number n of url.
func Filename(url string, n int, format Format) string {
	return fmt.Sprintf("scraping_%s_%d.%s", sanitize(url), n, format.Ext())
}

// sanitize replaces every character outside [A-Za-z0-9] with an
// underscore so the name is safe on any filesystem.
func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
