package adf

import (
	"fmt"
	"strings"

	"github.com/ctreminiom/go-atlassian/v2/pkg/infra/models"
)

// ToMarkdown converts a document to Markdown for terminal previews.
// Returns empty string for nil input. Node types outside the description
// vocabulary produce [unsupported: type] placeholders.
func ToMarkdown(node *Node) string {
	if node == nil {
		return ""
	}
	var b strings.Builder
	writeMarkdown(&b, node, 0)
	return strings.TrimRight(b.String(), "\n")
}

func writeMarkdown(b *strings.Builder, node *Node, depth int) {
	if node == nil {
		return
	}

	switch node.Type {
	case TypeDoc:
		writeChildren(b, node, depth)

	case TypeParagraph:
		writeInline(b, node)
		b.WriteString("\n\n")

	case TypeHeading:
		b.WriteString(strings.Repeat("#", attrInt(node.Attrs, "level", 1)))
		b.WriteString(" ")
		writeInline(b, node)
		b.WriteString("\n\n")

	case TypeText:
		b.WriteString(applyMarks(node.Text, node.Marks))

	case TypeRule:
		b.WriteString("---\n\n")

	case TypeBulletList:
		writeList(b, node, depth)
		if depth == 0 {
			b.WriteString("\n")
		}

	case TypeCodeBlock:
		b.WriteString("```")
		b.WriteString(attrString(node.Attrs, "language"))
		b.WriteString("\n")
		writeInline(b, node)
		b.WriteString("\n```\n\n")

	default:
		fmt.Fprintf(b, "[unsupported: %s]", node.Type)
		writeChildren(b, node, depth)
	}
}

func writeChildren(b *strings.Builder, node *Node, depth int) {
	for _, child := range node.Content {
		writeMarkdown(b, child, depth)
	}
}

func writeInline(b *strings.Builder, node *Node) {
	for _, child := range node.Content {
		if child.Type == TypeText {
			b.WriteString(applyMarks(child.Text, child.Marks))
		}
	}
}

// writeList renders list items; the first paragraph of an item sits on the
// bullet line and nested lists are indented one level.
func writeList(b *strings.Builder, list *Node, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, item := range list.Content {
		b.WriteString(indent)
		b.WriteString("- ")
		if item == nil || len(item.Content) == 0 {
			b.WriteString("\n")
			continue
		}
		for i, child := range item.Content {
			switch {
			case i == 0 && child.Type == TypeParagraph:
				writeInline(b, child)
				b.WriteString("\n")
			case child.Type == TypeBulletList:
				writeList(b, child, depth+1)
			default:
				writeMarkdown(b, child, depth+1)
			}
		}
	}
}

func applyMarks(text string, marks []*models.MarkScheme) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	for _, mark := range marks {
		if mark == nil {
			continue
		}
		switch mark.Type {
		case MarkStrong:
			text = "**" + text + "**"
		case "em":
			text = "*" + text + "*"
		case "code":
			text = "`" + text + "`"
		case "strike":
			text = "~~" + text + "~~"
		}
	}
	return text
}

func attrString(attrs map[string]interface{}, key string) string {
	s, _ := attrs[key].(string)
	return s
}

func attrInt(attrs map[string]interface{}, key string, fallback int) int {
	switch n := attrs[key].(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return fallback
	}
}
