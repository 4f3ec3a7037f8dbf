package extract

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var md = goldmark.New()

// markdownText renders the document's text content without markup. Blocks are
// separated by blank lines; code blocks keep their lines.
func markdownText(source []byte) (string, error) {
	doc := md.Parser().Parse(text.NewReader(source))

	var sb strings.Builder
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock && n.Kind() != ast.KindDocument {
				endBlock(&sb)
			}
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Text:
			sb.Write(node.Segment.Value(source))
			switch {
			case node.HardLineBreak():
				sb.WriteByte('\n')
			case node.SoftLineBreak():
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(node.Value)
		case *ast.AutoLink:
			sb.Write(node.Label(source))
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock:
			writeLines(&sb, node.Lines(), source)
		case *ast.CodeBlock:
			writeLines(&sb, node.Lines(), source)
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", err //nolint:wrapcheck // wrapped by Text
	}
	return sb.String(), nil
}

func writeLines(sb *strings.Builder, lines *text.Segments, source []byte) {
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(source))
	}
}

func endBlock(sb *strings.Builder) {
	s := sb.String()
	switch {
	case s == "", strings.HasSuffix(s, "\n\n"):
	case strings.HasSuffix(s, "\n"):
		sb.WriteByte('\n')
	default:
		sb.WriteString("\n\n")
	}
}
