package cli

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/jira-feedback/internal/adf"
	"github.com/randalmurphal/jira-feedback/internal/feedback"
	"github.com/randalmurphal/jira-feedback/internal/jira"
	"github.com/randalmurphal/jira-feedback/internal/metadata"
)

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// payloadFlags are the inputs shared by submit and render.
type payloadFlags struct {
	file         string
	screenshot   string
	noScreenshot bool
	metadata     string
	device       []string
}

func (f *payloadFlags) register(cmd *cobra.Command, withScreenshot bool) {
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "read feedback text from a file (- for stdin)")
	cmd.Flags().StringVar(&f.metadata, "metadata", "", "metadata file (.json, .yaml or .yml) rendered under Custom data")
	cmd.Flags().StringArrayVar(&f.device, "device", nil, "device detail as key=value, repeatable and kept in order")
	if withScreenshot {
		cmd.Flags().StringVar(&f.screenshot, "screenshot", "", "PNG screenshot to attach")
		cmd.Flags().BoolVar(&f.noScreenshot, "no-screenshot", false, "file the issue without uploading the screenshot")
	}
}

// payload assembles a feedback payload from args, flags and stdin.
func (f *payloadFlags) payload(args []string, stdin io.Reader) (feedback.Payload, error) {
	text, err := readText(args, f.file, stdin)
	if err != nil {
		return feedback.Payload{}, err
	}

	device, err := parseDevice(f.device)
	if err != nil {
		return feedback.Payload{}, err
	}

	p := feedback.Payload{
		Text:           text,
		Device:         device,
		SkipScreenshot: f.noScreenshot,
		Source:         "cli",
	}

	if f.metadata != "" {
		meta, err := metadata.ParseFile(f.metadata)
		if err != nil {
			return feedback.Payload{}, err
		}
		p.Metadata = &meta
	}

	if f.screenshot != "" && !f.noScreenshot {
		data, err := os.ReadFile(f.screenshot)
		if err != nil {
			return feedback.Payload{}, fmt.Errorf("read screenshot: %w", err)
		}
		if !bytes.HasPrefix(data, pngSignature) {
			slog.Warn("screenshot does not look like a PNG", "path", f.screenshot)
		}
		p.Screenshot = data
	}

	return p, nil
}

// submitOutput is the --json shape of a submission.
type submitOutput struct {
	SubmissionID string `json:"submission_id"`
	IssueID      string `json:"issue_id"`
	IssueKey     string `json:"issue_key"`
	URL          string `json:"url,omitempty"`
	Summary      string `json:"summary"`
	Attachment   string `json:"attachment,omitempty"`
	Error        string `json:"error,omitempty"`
}

func newSubmitCmd() *cobra.Command {
	var (
		pf     payloadFlags
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "submit [text...]",
		Short: "File feedback as a Jira issue",
		Long: `File feedback as a Jira issue, then attach the screenshot.

The issue summary is the text up to the first period. The description holds
the full text, the device details in the order given and the metadata tree
rendered in the configured format.

Text is taken from the arguments, from --file, or from piped stdin.

Examples:
  jira-feedback submit "Checkout hangs. Spinner never stops." --screenshot shot.png
  jira-feedback submit -f report.txt --device OS="iOS 17.2" --device Model="iPhone 15"
  jira-feedback submit "Typo on pricing page" --metadata ctx.json --format bullets
  echo "Crash on launch" | jira-feedback submit --no-screenshot
  jira-feedback submit "Preview only" --metadata ctx.yaml --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyFlagOverrides(cmd, appConfig, jiraFlags); err != nil {
				return err
			}
			cfg := appConfig.Config

			p, err := pf.payload(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if dryRun {
				format, err := adf.ParseFormat(cfg.Render.Format)
				if err != nil {
					return err
				}
				description := adf.BuildDescription(p.Text, p.Device, p.Metadata, format)
				return writeJSON(out, jira.BuildIssuePayload(cfg.JiraDetails(""), jira.Summary(p.Text), description))
			}

			paint := newPainter(cmd.ErrOrStderr())
			status := func(submitting bool) {
				if submitting && !jsonOut {
					_, _ = fmt.Fprintln(cmd.ErrOrStderr(), paint.muted("Submitting feedback..."))
				}
			}

			svc, closeFn, err := newService(cfg, status)
			if err != nil {
				return err
			}
			defer closeFn()

			result, err := svc.File(cmd.Context(), p)
			printSubmission(cmd, svc.Details().SiteURL(), result, err)
			return err
		},
	}

	pf.register(cmd, true)
	addJiraFlags(cmd)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the issue payload as JSON without contacting Jira")

	return cmd
}

// printSubmission reports a result. A non-nil result with an error means the
// issue exists but the screenshot did not upload.
func printSubmission(cmd *cobra.Command, site string, result *jira.Result, err error) {
	if result == nil {
		return
	}
	out := cmd.OutOrStdout()

	if jsonOut {
		o := submitOutput{
			SubmissionID: result.SubmissionID,
			IssueID:      result.IssueID,
			IssueKey:     result.IssueKey,
			URL:          result.IssueURL(site),
			Summary:      result.Summary,
			Attachment:   result.Attachment,
		}
		if err != nil {
			o.Error = err.Error()
		}
		_ = writeJSON(out, o)
		return
	}

	paint := newPainter(out)
	key := result.IssueKey
	if key == "" {
		key = result.IssueID
	}
	_, _ = fmt.Fprintf(out, "%s %s", paint.success("Created"), paint.key(key))
	if url := result.IssueURL(site); url != "" {
		_, _ = fmt.Fprintf(out, "  %s", url)
	}
	_, _ = fmt.Fprintln(out)

	switch {
	case err != nil:
		_, _ = fmt.Fprintln(out, paint.warning("Screenshot was not attached; the issue was kept."))
	case result.Attachment != "":
		_, _ = fmt.Fprintf(out, "Attached %s\n", result.Attachment)
	}
}
