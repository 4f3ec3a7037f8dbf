// Package extract turns uploaded file bytes into plain text for chunking.
package extract

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kailas-cloud/assessdex/internal/domain"
)

// Format is the detected document format.
type Format string

// Supported formats.
const (
	FormatPlain       Format = "plain"
	FormatMarkdown    Format = "markdown"
	FormatHTML        Format = "html"
	FormatSpreadsheet Format = "spreadsheet"
	FormatUnknown     Format = "unknown"
)

var extFormats = map[string]Format{
	".txt":      FormatPlain,
	".text":     FormatPlain,
	".csv":      FormatPlain,
	".tsv":      FormatPlain,
	".log":      FormatPlain,
	".json":     FormatPlain,
	".yaml":     FormatPlain,
	".yml":      FormatPlain,
	".md":       FormatMarkdown,
	".markdown": FormatMarkdown,
	".html":     FormatHTML,
	".htm":      FormatHTML,
	".xlsx":     FormatSpreadsheet,
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Detect picks a format from the file extension, then the content type.
func Detect(fileName, contentType string) Format {
	if f, ok := extFormats[strings.ToLower(filepath.Ext(fileName))]; ok {
		return f
	}

	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch {
	case ct == "text/markdown" || ct == "text/x-markdown":
		return FormatMarkdown
	case ct == "text/html" || ct == "application/xhtml+xml":
		return FormatHTML
	case ct == xlsxContentType:
		return FormatSpreadsheet
	case strings.HasPrefix(ct, "text/") || ct == "application/json":
		return FormatPlain
	default:
		return FormatUnknown
	}
}

// Text extracts plain text. Unknown formats yield a placeholder naming the file
// so the upload is still searchable by name. Parse failures wrap domain.ErrInvalidInput.
func Text(data []byte, fileName, contentType string) (string, Format, error) {
	format := Detect(fileName, contentType)

	var (
		out string
		err error
	)
	switch format {
	case FormatPlain:
		out = string(data)
	case FormatMarkdown:
		out, err = markdownText(data)
	case FormatHTML:
		out, err = htmlText(data)
	case FormatSpreadsheet:
		out, err = spreadsheetText(data)
	default:
		return Placeholder(fileName, contentType), format, nil
	}
	if err != nil {
		return "", format, fmt.Errorf("%w: unreadable %s file %q: %w", domain.ErrInvalidInput, format, fileName, err)
	}

	return normalize(out), format, nil
}

// Placeholder is the text indexed for files whose content cannot be read.
func Placeholder(fileName, contentType string) string {
	if contentType == "" {
		contentType = "unknown"
	}
	return fmt.Sprintf("Document: %s\nContent extracted from %s file.", fileName, contentType)
}

var (
	trailingSpace = regexp.MustCompile(`[ \t]+\n`)
	blankRuns     = regexp.MustCompile(`\n{3,}`)
)

// normalize drops invalid UTF-8, CR line endings and runs of blank lines.
func normalize(s string) string {
	s = strings.ToValidUTF8(s, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "\x00", "")
	s = trailingSpace.ReplaceAllString(s, "\n")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
