// Package adf builds Atlassian Document Format trees for issue descriptions.
//
// Nodes are go-atlassian CommentNodeScheme values so the resulting document
// can be placed directly into an issue payload.
package adf

import (
	"github.com/ctreminiom/go-atlassian/v2/pkg/infra/models"
)

// Node is a single ADF node.
type Node = models.CommentNodeScheme

// Node type names used by this package.
const (
	TypeDoc        = "doc"
	TypeParagraph  = "paragraph"
	TypeHeading    = "heading"
	TypeRule       = "rule"
	TypeBulletList = "bulletList"
	TypeListItem   = "listItem"
	TypeCodeBlock  = "codeBlock"
	TypeText       = "text"

	MarkStrong = "strong"
)

// Doc returns a version 1 document root holding content in order.
func Doc(content ...*Node) *Node {
	return &Node{Version: 1, Type: TypeDoc, Content: nonNil(content)}
}

// Text returns a plain text node.
func Text(s string) *Node {
	return &Node{Type: TypeText, Text: s}
}

// Strong returns a bold text node.
func Strong(s string) *Node {
	return &Node{Type: TypeText, Text: s, Marks: []*models.MarkScheme{{Type: MarkStrong}}}
}

// Paragraph returns a paragraph of inline nodes.
func Paragraph(inline ...*Node) *Node {
	return &Node{Type: TypeParagraph, Content: nonNil(inline)}
}

// Heading returns a heading of the given level (1-6) with plain text.
func Heading(level int, s string) *Node {
	return &Node{
		Type:    TypeHeading,
		Attrs:   map[string]interface{}{"level": level},
		Content: []*Node{Text(s)},
	}
}

// Rule returns a horizontal rule.
func Rule() *Node {
	return &Node{Type: TypeRule}
}

// BulletList returns an unordered list of list items.
func BulletList(items ...*Node) *Node {
	return &Node{Type: TypeBulletList, Content: nonNil(items)}
}

// ListItem returns a list item holding block content.
func ListItem(blocks ...*Node) *Node {
	return &Node{Type: TypeListItem, Content: nonNil(blocks)}
}

// CodeBlock returns a code block tagged with language.
func CodeBlock(language, code string) *Node {
	return &Node{
		Type:    TypeCodeBlock,
		Attrs:   map[string]interface{}{"language": language},
		Content: []*Node{Text(code)},
	}
}

// label returns a paragraph "label: value" with the label in bold, preceded
// by indent when it is not empty.
func label(indent, key, value string) *Node {
	p := Paragraph()
	if indent != "" {
		p.Content = append(p.Content, Text(indent))
	}
	p.Content = append(p.Content, Strong(displayKey(key)), Text(": "+value))
	return p
}

// displayKey shows an empty key as "" since ADF text nodes must not be empty.
func displayKey(key string) string {
	if key == "" {
		return `""`
	}
	return key
}

// title returns a paragraph holding a bold label, preceded by indent.
func title(indent, key string) *Node {
	p := Paragraph()
	if indent != "" {
		p.Content = append(p.Content, Text(indent))
	}
	p.Content = append(p.Content, Strong(displayKey(key)))
	return p
}

func nonNil(nodes []*Node) []*Node {
	out := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

// PlainText concatenates the text of every text node below n in order.
func PlainText(n *Node) string {
	if n == nil {
		return ""
	}
	if n.Type == TypeText {
		return n.Text
	}
	var s string
	for _, c := range n.Content {
		s += PlainText(c)
	}
	return s
}

// IsStrong reports whether a text node carries the strong mark.
func IsStrong(n *Node) bool {
	if n == nil {
		return false
	}
	for _, m := range n.Marks {
		if m != nil && m.Type == MarkStrong {
			return true
		}
	}
	return false
}
