package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	v3 "github.com/ctreminiom/go-atlassian/v2/jira/v3"
	"github.com/ctreminiom/go-atlassian/v2/pkg/infra/models"

	apperrors "github.com/randalmurphal/jira-feedback/internal/errors"
)

// UserAgent is sent with every request.
const UserAgent = "jira-feedback/1.0"

// Client wraps the go-atlassian Jira v3 client with the two calls a
// feedback submission needs.
type Client struct {
	jira *v3.Client
	site string
}

// NewClient creates a Jira Cloud client with basic auth for d. Only the
// account fields of d are required. A nil httpClient gets a 30 second timeout.
func NewClient(d Details, httpClient *http.Client) (*Client, error) {
	if err := d.ValidateAccount(); err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	client, err := v3.New(httpClient, d.SiteURL())
	if err != nil {
		return nil, fmt.Errorf("create jira client: %w", err)
	}

	client.Auth.SetBasicAuth(d.Email, d.APIToken)
	client.Auth.SetUserAgent(UserAgent)

	return &Client{jira: client, site: d.SiteURL()}, nil
}

// Site returns the Jira site root URL.
func (c *Client) Site() string {
	return c.site
}

// CreatedIssue identifies a newly created issue.
type CreatedIssue struct {
	ID   string
	Key  string
	Self string
}

// CreateIssue posts payload to /rest/api/3/issue.
//
// Any status in [200,400) counts as accepted and the body must then carry an
// id. Other statuses yield an issue-creation error with the status and body.
func (c *Client) CreateIssue(ctx context.Context, payload *models.IssueScheme) (*CreatedIssue, error) {
	created, resp, err := c.jira.Issue.Create(ctx, payload, nil)
	if err != nil {
		if resp == nil || resp.Code == 0 {
			return nil, apperrors.ErrNetwork("create issue", err)
		}
		if !accepted(resp.Code) {
			return nil, apperrors.ErrIssueCreationFailed(resp.Code, strings.TrimSpace(resp.Bytes.String())).WithCause(err)
		}
		// Accepted status the library still rejected (3xx, or a body it
		// could not decode): decode it ourselves so bad JSON surfaces as is.
		created = &models.IssueResponseScheme{}
		if decodeErr := json.Unmarshal(resp.Bytes.Bytes(), created); decodeErr != nil {
			return nil, apperrors.ErrResponseInvalid("create issue", decodeErr)
		}
	}

	if created == nil || created.ID == "" {
		return nil, apperrors.ErrResponseInvalid("create issue", errors.New("response has no id"))
	}

	return &CreatedIssue{ID: created.ID, Key: created.Key, Self: created.Self}, nil
}

// AddAttachment uploads data as fileName to the issue with the given id.
// The library sends it as the multipart field "file" with the
// X-Atlassian-Token: no-check header.
func (c *Client) AddAttachment(ctx context.Context, issueID, fileName string, data []byte) error {
	if issueID == "" || fileName == "" {
		return fmt.Errorf("add attachment: issue id and file name are required")
	}

	_, resp, err := c.jira.Issue.Attachment.Add(ctx, issueID, fileName, bytes.NewReader(data))
	if err == nil {
		return nil
	}
	if resp == nil || resp.Code == 0 {
		return apperrors.ErrNetwork("upload attachment", err)
	}
	if !accepted(resp.Code) {
		return apperrors.ErrAttachmentUploadFailed(issueID, resp.Code, reason(resp)).WithCause(err)
	}
	// The upload was accepted; an unreadable listing of the stored
	// attachments does not undo it.
	return nil
}

// CheckAuth verifies the credentials by fetching the current user and
// returns its display name.
func (c *Client) CheckAuth(ctx context.Context) (string, error) {
	user, resp, err := c.jira.MySelf.Details(ctx, nil)
	if err != nil {
		if resp == nil || resp.Code == 0 {
			return "", apperrors.ErrNetwork("check credentials", err)
		}
		return "", fmt.Errorf("jira auth check failed (status %d): %w", resp.Code, err)
	}
	if user == nil {
		return "", nil
	}
	return user.DisplayName, nil
}

// accepted reports whether status is in [200,400).
func accepted(status int) bool {
	return status >= 200 && status < 400
}

func reason(resp *models.ResponseScheme) string {
	if body := strings.TrimSpace(resp.Bytes.String()); body != "" {
		return body
	}
	return http.StatusText(resp.Code)
}
