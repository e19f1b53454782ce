package adf

import (
	"strings"

	"github.com/randalmurphal/jira-feedback/internal/metadata"
)

// Section headings.
const (
	DeviceDetailsHeading = "Device details"
	CustomDataHeading    = "Custom data"
)

// Detail is one device detail line, such as "platform: android".
type Detail struct {
	Label string
	Value string
}

// Details is an ordered list of device details.
type Details []Detail

// Add appends a detail and returns the extended list.
func (d Details) Add(label, value string) Details {
	return append(d, Detail{Label: label, Value: value})
}

// BuildDescription renders feedback into an issue description document.
//
// The document always starts with a paragraph holding text. Device details,
// when present, follow under a rule and a "Device details" heading. Metadata
// follows under a rule and a "Custom data" heading, rendered per format. A
// nil metadata tree, or an empty top-level mapping or sequence, is treated
// as absent.
func BuildDescription(text string, device Details, meta *metadata.Value, format Format) *Node {
	content := []*Node{Paragraph(Text(text))}

	if len(device) > 0 {
		content = append(content, Rule(), Heading(3, DeviceDetailsHeading))
		for _, d := range device {
			content = append(content, label("", d.Label, d.Value))
		}
	}

	if meta != nil && !meta.IsEmpty() {
		content = append(content, Rule(), Heading(3, CustomDataHeading))
		content = append(content, RenderMetadata(*meta, format)...)
	}

	return Doc(content...)
}

// RenderMetadata renders a metadata tree as block nodes in the given format.
// Unknown formats fall back to paragraphs.
func RenderMetadata(v metadata.Value, format Format) []*Node {
	switch format {
	case FormatBullets:
		return []*Node{renderBullets(v)}
	case FormatCodeBlock:
		return []*Node{renderCodeBlock(v)}
	case FormatHybrid:
		return []*Node{renderBullets(v), Rule(), renderCodeBlock(v)}
	default:
		return renderParagraphs(v)
	}
}

func renderParagraphs(v metadata.Value) []*Node {
	if v.IsScalar() {
		return []*Node{Paragraph(Text(v.String()))}
	}
	var out []*Node
	appendParagraphs(&out, v, 0)
	return out
}

func appendParagraphs(out *[]*Node, v metadata.Value, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, c := range v.Children() {
		if c.Value.IsContainer() {
			*out = append(*out, title(indent, c.Label))
			appendParagraphs(out, c.Value, depth+1)
			continue
		}
		*out = append(*out, label(indent, c.Label, c.Value.String()))
	}
}

func renderBullets(v metadata.Value) *Node {
	if v.IsScalar() {
		return BulletList(ListItem(Paragraph(Text(v.String()))))
	}
	return bulletList(v)
}

func bulletList(v metadata.Value) *Node {
	list := BulletList()
	for _, c := range v.Children() {
		if !c.Value.IsContainer() {
			list.Content = append(list.Content, ListItem(label("", c.Label, c.Value.String())))
			continue
		}
		item := ListItem(title("", c.Label))
		// ADF rejects empty lists, so an empty container keeps only its label.
		if !c.Value.IsEmpty() {
			item.Content = append(item.Content, bulletList(c.Value))
		}
		list.Content = append(list.Content, item)
	}
	return list
}

func renderCodeBlock(v metadata.Value) *Node {
	return CodeBlock("json", metadata.Stringify(v, "  "))
}
