package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/randalmurphal/jira-feedback/internal/config"
	"github.com/randalmurphal/jira-feedback/internal/db"
)

const summaryWidth = 48

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent submissions",
		Long: `List recent submission attempts, newest first.

Every submit and batch run is recorded in the history store
(history.driver: sqlite or postgres). Tokens, feedback text and screenshots
are not stored.

Examples:
  jira-feedback history
  jira-feedback history --limit 50 --json
  jira-feedback history show 6f1c...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			hist, err := requireHistory(appConfig.Config)
			if err != nil {
				return err
			}
			defer func() { _ = hist.Close() }()

			subs, err := hist.ListSubmissions(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, submissionsJSON(subs))
			}
			if len(subs) == 0 {
				_, _ = fmt.Fprintln(out, "No submissions yet.")
				return nil
			}
			_, _ = fmt.Fprintln(out, historyTable(subs))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of submissions to show")
	cmd.AddCommand(newHistoryShowCmd())

	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hist, err := requireHistory(appConfig.Config)
			if err != nil {
				return err
			}
			defer func() { _ = hist.Close() }()

			sub, err := hist.GetSubmission(cmd.Context(), args[0])
			if errors.Is(err, db.ErrNotFound) {
				return fmt.Errorf("no submission with id %s", args[0])
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return writeJSON(out, submissionJSON(*sub))
			}
			printSubmissionDetail(out, *sub)
			return nil
		},
	}
}

func requireHistory(cfg *config.Config) (*db.DB, error) {
	if !cfg.History.Enabled {
		return nil, fmt.Errorf("history is disabled (history.enabled is false)")
	}
	return openHistory(cfg)
}

func historyTable(subs []db.Submission) string {
	rows := make([][]string, len(subs))
	for i, s := range subs {
		rows[i] = []string{
			s.CreatedAt.Local().Format("2006-01-02 15:04"),
			string(s.Outcome),
			s.IssueKey,
			truncate(s.Summary, summaryWidth),
			s.ID,
		}
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styleMuted).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader
			}
			return styleCell
		}).
		Headers("WHEN", "OUTCOME", "ISSUE", "SUMMARY", "ID").
		Rows(rows...).
		String()
}

func printSubmissionDetail(out io.Writer, s db.Submission) {
	paint := newPainter(out)
	field := func(name, value string) {
		if value == "" {
			return
		}
		_, _ = fmt.Fprintf(out, "%s %s\n", paint.key(fmt.Sprintf("%-11s", name+":")), value)
	}

	field("ID", s.ID)
	field("When", s.CreatedAt.Local().Format(time.RFC3339))
	field("Outcome", string(s.Outcome))
	field("Source", s.Source)
	field("Site", s.Site)
	field("Project", s.ProjectKey)
	field("Summary", s.Summary)
	field("Format", s.Format)
	field("Issue", s.IssueKey)
	field("Issue ID", s.IssueID)
	field("Attachment", s.Attachment)
	field("Error code", s.ErrorCode)
	if s.StatusCode != 0 {
		field("HTTP status", strconv.Itoa(s.StatusCode))
	}
	field("Error", s.Error)
}

// submissionOutput is the --json shape of a history entry.
type submissionOutput struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	Source     string    `json:"source"`
	Site       string    `json:"site"`
	ProjectKey string    `json:"project_key"`
	Summary    string    `json:"summary"`
	Format     string    `json:"format"`
	Outcome    string    `json:"outcome"`
	IssueID    string    `json:"issue_id,omitempty"`
	IssueKey   string    `json:"issue_key,omitempty"`
	Attachment string    `json:"attachment,omitempty"`
	ErrorCode  string    `json:"error_code,omitempty"`
	StatusCode int       `json:"status_code,omitempty"`
	Error      string    `json:"error,omitempty"`
}

func submissionJSON(s db.Submission) submissionOutput {
	return submissionOutput{
		ID:         s.ID,
		CreatedAt:  s.CreatedAt,
		Source:     s.Source,
		Site:       s.Site,
		ProjectKey: s.ProjectKey,
		Summary:    s.Summary,
		Format:     s.Format,
		Outcome:    string(s.Outcome),
		IssueID:    s.IssueID,
		IssueKey:   s.IssueKey,
		Attachment: s.Attachment,
		ErrorCode:  s.ErrorCode,
		StatusCode: s.StatusCode,
		Error:      s.Error,
	}
}

func submissionsJSON(subs []db.Submission) []submissionOutput {
	out := make([]submissionOutput, len(subs))
	for i, s := range subs {
		out[i] = submissionJSON(s)
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
