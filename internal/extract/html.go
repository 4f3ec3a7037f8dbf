package extract

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var htmlBlocks = map[string]bool{
	"p": true, "div": true, "section": true, "article": true, "main": true,
	"header": true, "footer": true, "aside": true, "nav": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"li": true, "ul": true, "ol": true, "table": true, "tr": true,
	"pre": true, "blockquote": true, "br": true, "hr": true, "title": true,
}

// htmlText returns the visible text of an HTML document. Scripts, styles and
// other non-content elements are dropped; block elements become line breaks.
func htmlText(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", err //nolint:wrapcheck // wrapped by Text
	}
	doc.Find("script, style, noscript, template, svg, iframe").Remove()

	var sb strings.Builder
	if title := strings.TrimSpace(doc.Find("head title").First().Text()); title != "" {
		sb.WriteString(title)
		sb.WriteString("\n\n")
	}

	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	walkHTML(&sb, body)
	return collapseSpaces(sb.String()), nil
}

func walkHTML(sb *strings.Builder, sel *goquery.Selection) {
	sel.Contents().Each(func(_ int, s *goquery.Selection) {
		name := goquery.NodeName(s)
		switch name {
		case "#text":
			sb.WriteString(strings.Map(flattenSpace, s.Text()))
			return
		case "#comment", "head":
			return
		case "td", "th":
			walkHTML(sb, s)
			sb.WriteByte('\t')
			return
		}

		block := htmlBlocks[name]
		if block {
			newline(sb)
		}
		walkHTML(sb, s)
		if block {
			newline(sb)
		}
	})
}

func newline(sb *strings.Builder) {
	if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
		sb.WriteByte('\n')
	}
}

// flattenSpace turns source line breaks and tabs inside text nodes into spaces;
// structural breaks come from block elements only.
func flattenSpace(r rune) rune {
	switch r {
	case '\n', '\r', '\t', '\f', '\v':
		return ' '
	}
	return r
}

// collapseSpaces squeezes whitespace runs within each table cell of each line.
func collapseSpaces(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		cells := strings.Split(line, "\t")
		for j, c := range cells {
			cells[j] = strings.Join(strings.Fields(c), " ")
		}
		lines[i] = strings.Join(cells, "\t")
	}
	return strings.Join(lines, "\n")
}
