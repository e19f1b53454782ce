package adf

import (
	"fmt"
	"strings"
)

// Format selects how a metadata tree is rendered into ADF nodes.
type Format string

const (
	// FormatParagraphs renders one indented paragraph per line.
	FormatParagraphs Format = "paragraphs"
	// FormatBullets renders a nested bullet list.
	FormatBullets Format = "bullets"
	// FormatCodeBlock renders indented JSON in a single code block.
	FormatCodeBlock Format = "codeBlock"
	// FormatHybrid renders bullets, a rule, then the JSON code block.
	FormatHybrid Format = "hybrid"
)

// DefaultFormat is used when no format is configured.
const DefaultFormat = FormatParagraphs

// Formats lists every supported format.
var Formats = []Format{FormatParagraphs, FormatBullets, FormatCodeBlock, FormatHybrid}

// ParseFormat parses a format name case-insensitively. "code", "code_block"
// and "code-block" are accepted for codeBlock. The empty string yields the
// default format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return DefaultFormat, nil
	case "paragraphs", "paragraph":
		return FormatParagraphs, nil
	case "bullets", "bullet":
		return FormatBullets, nil
	case "codeblock", "code", "code_block", "code-block":
		return FormatCodeBlock, nil
	case "hybrid":
		return FormatHybrid, nil
	default:
		return "", fmt.Errorf("unknown render format %q (want one of %s)", s, formatNames())
	}
}

func formatNames() string {
	names := make([]string, len(Formats))
	for i, f := range Formats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}
