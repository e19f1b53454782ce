package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/randalmurphal/jira-feedback/internal/adf"
)

const previewWidth = 100

func newRenderCmd() *cobra.Command {
	var (
		pf      payloadFlags
		format  string
		preview bool
	)

	cmd := &cobra.Command{
		Use:   "render [text...]",
		Short: "Print the issue description without submitting",
		Long: `Build the Atlassian Document Format description for some feedback and
print it as JSON, or as a Markdown preview with --preview.

Examples:
  jira-feedback render "Button misaligned" --metadata ctx.json --format hybrid
  jira-feedback render -f report.txt --device OS=macOS --preview`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format == "" {
				format = appConfig.Config.Render.Format
			}
			f, err := adf.ParseFormat(format)
			if err != nil {
				return err
			}

			p, err := pf.payload(args, cmd.InOrStdin())
			if err != nil {
				return err
			}

			doc := adf.BuildDescription(p.Text, p.Device, p.Metadata, f)
			out := cmd.OutOrStdout()
			if !preview {
				return writeJSON(out, doc)
			}
			return renderPreview(out, adf.ToMarkdown(doc))
		},
	}

	pf.register(cmd, false)
	cmd.Flags().StringVar(&format, "format", "", "metadata format: paragraphs, bullets, codeBlock or hybrid")
	cmd.Flags().BoolVar(&preview, "preview", false, "render as Markdown in the terminal")

	return cmd
}

// renderPreview writes md through glamour, styled for a dark terminal or
// plain when out is not one.
func renderPreview(out io.Writer, md string) error {
	style := "notty"
	if isTerminal(out) {
		style = "dark"
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(previewWidth),
	)
	if err != nil {
		return fmt.Errorf("create markdown renderer: %w", err)
	}

	rendered, err := renderer.Render(md)
	if err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}
	_, err = fmt.Fprint(out, rendered)
	return err
}
