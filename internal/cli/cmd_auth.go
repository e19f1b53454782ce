package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/randalmurphal/jira-feedback/internal/config"
	"github.com/randalmurphal/jira-feedback/internal/credential"
	"github.com/randalmurphal/jira-feedback/internal/jira"
)

// accountFlags map the auth command flags to config keys.
var accountFlags = map[string]string{
	"domain":   "jira.domain",
	"email":    "jira.email",
	"base-url": "jira.base_url",
}

func addAccountFlags(cmd *cobra.Command) {
	cmd.Flags().String("domain", "", "Atlassian site name (acme for acme.atlassian.net)")
	cmd.Flags().String("email", "", "account email")
	cmd.Flags().String("base-url", "", "site URL override")
}

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the Jira API token",
		Long: `Manage the Jira API token used for basic auth.

Tokens are stored per site and email in the system keyring (macOS Keychain,
Secret Service, Windows Credential Manager or pass), falling back to an
encrypted file under ~/.feedback/credentials. The environment variable named
by jira.token_env_var (FEEDBACK_JIRA_TOKEN) always takes precedence.

Create a token at https://id.atlassian.com/manage-profile/security/api-tokens`,
	}

	cmd.AddCommand(newAuthLoginCmd())
	cmd.AddCommand(newAuthLogoutCmd())
	cmd.AddCommand(newAuthStatusCmd())

	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var (
		tokenStdin bool
		noVerify   bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an API token in the keyring",
		Long: `Prompt for an API token, check it against Jira and store it.

Examples:
  jira-feedback auth login --domain acme --email me@acme.io
  printf %s "$TOKEN" | jira-feedback auth login --token-stdin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := applyFlagOverrides(cmd, appConfig, accountFlags); err != nil {
				return err
			}
			cfg := appConfig.Config

			token, err := readToken(cmd, tokenStdin)
			if err != nil {
				return err
			}

			details := cfg.JiraDetails(token)
			if err := details.ValidateAccount(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			paint := newPainter(out)
			if !noVerify {
				name, err := verifyToken(cmd, details)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(out, "Authenticated as %s\n", paint.key(name))
			}

			store, err := openStore()
			if err != nil {
				return err
			}
			if err := store.Set(cfg.Jira.Domain, cfg.Jira.Email, token); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "%s token for %s\n", paint.success("Stored"),
				credential.Key(cfg.Jira.Domain, cfg.Jira.Email))
			return nil
		},
	}

	addAccountFlags(cmd)
	cmd.Flags().BoolVar(&tokenStdin, "token-stdin", false, "read the token from stdin instead of prompting")
	cmd.Flags().BoolVar(&noVerify, "no-verify", false, "store the token without checking it")

	return cmd
}

func newAuthLogoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored API token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := applyFlagOverrides(cmd, appConfig, accountFlags); err != nil {
				return err
			}
			cfg := appConfig.Config

			store, err := openStore()
			if err != nil {
				return err
			}
			if err := store.Delete(cfg.Jira.Domain, cfg.Jira.Email); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed token for %s\n",
				credential.Key(cfg.Jira.Domain, cfg.Jira.Email))
			return nil
		},
	}
	addAccountFlags(cmd)
	return cmd
}

func newAuthStatusCmd() *cobra.Command {
	var verify bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show where the API token comes from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := applyFlagOverrides(cmd, appConfig, accountFlags); err != nil {
				return err
			}
			cfg := appConfig.Config
			out := cmd.OutOrStdout()
			paint := newPainter(out)

			_, _ = fmt.Fprintf(out, "Site:    %s\n", cfg.JiraDetails("").SiteURL())
			_, _ = fmt.Fprintf(out, "Account: %s\n", orNone(cfg.Jira.Email))

			token, err := resolveToken(cfg)
			if err != nil {
				_, _ = fmt.Fprintf(out, "Token:   %s\n", paint.failure("none"))
				return err
			}
			_, _ = fmt.Fprintf(out, "Token:   %s\n", tokenSource(cfg))

			if verify {
				name, err := verifyToken(cmd, cfg.JiraDetails(token))
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(out, "User:    %s\n", paint.key(name))
			}
			return nil
		},
	}
	addAccountFlags(cmd)
	cmd.Flags().BoolVar(&verify, "verify", false, "check the token against Jira")
	return cmd
}

func verifyToken(cmd *cobra.Command, details jira.Details) (string, error) {
	client, err := jira.NewClient(details, nil)
	if err != nil {
		return "", err
	}
	return client.CheckAuth(cmd.Context())
}

func tokenSource(cfg *config.Config) string {
	if env := cfg.Jira.TokenEnvVar; env != "" && strings.TrimSpace(os.Getenv(env)) != "" {
		return "env " + env
	}
	return "keyring " + credential.Key(cfg.Jira.Domain, cfg.Jira.Email)
}

// readToken prompts without echo on a terminal, or reads one line otherwise.
func readToken(cmd *cobra.Command, fromStdin bool) (string, error) {
	in := cmd.InOrStdin()

	if f, ok := in.(*os.File); ok && !fromStdin && isTerminal(f) {
		_, _ = fmt.Fprint(cmd.ErrOrStderr(), "Jira API token: ")
		data, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		return nonEmptyToken(string(data))
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read token: %w", err)
	}
	return nonEmptyToken(line)
}

func nonEmptyToken(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty token")
	}
	return s, nil
}

func orNone(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}
