package jira

import (
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	apperrors "github.com/randalmurphal/jira-feedback/internal/errors"
)

// recordedRequest is what the fake Jira server saw.
type recordedRequest struct {
	Method   string
	Path     string
	Header   http.Header
	Body     string
	FileName string
	FileData []byte
}

// fakeJira serves the create-issue and attachment endpoints with canned
// responses and records every request in arrival order.
type fakeJira struct {
	mu       sync.Mutex
	requests []recordedRequest

	createStatus int
	createBody   string
	attachStatus int
	attachBody   string
}

func newFakeJira(t *testing.T) (*fakeJira, *httptest.Server) {
	t.Helper()
	f := &fakeJira{
		createStatus: http.StatusCreated,
		createBody:   `{"id":"10001","key":"FB-1","self":"https://example/rest/api/3/issue/10001"}`,
		attachStatus: http.StatusOK,
		attachBody:   `[{"id":"20001","filename":"screenshot.png"}]`,
	}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeJira) serve(w http.ResponseWriter, r *http.Request) {
	rec := recordedRequest{Method: r.Method, Path: r.URL.Path, Header: r.Header.Clone()}

	if strings.HasSuffix(r.URL.Path, "/attachments") {
		if err := r.ParseMultipartForm(10 << 20); err == nil {
			if file, header, err := r.FormFile("file"); err == nil {
				rec.FileName = header.Filename
				rec.FileData, _ = io.ReadAll(file)
				_ = file.Close()
			}
		}
		f.record(rec)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.attachStatus)
		_, _ = io.WriteString(w, f.attachBody)
		return
	}

	body, _ := io.ReadAll(r.Body)
	rec.Body = string(body)
	f.record(rec)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(f.createStatus)
	_, _ = io.WriteString(w, f.createBody)
}

func (f *fakeJira) record(r recordedRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r)
}

func (f *fakeJira) Requests() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

func testDetails(baseURL string) Details {
	return Details{
		Domain:     "acme",
		Email:      "dev@acme.io",
		APIToken:   "secret-token",
		ProjectKey: "FB",
		BaseURL:    baseURL,
	}
}

func TestDetails_SiteURL(t *testing.T) {
	assert.Equal(t, "https://acme.atlassian.net", Details{Domain: "acme"}.SiteURL())
	assert.Equal(t, "http://127.0.0.1:9000", Details{Domain: "acme", BaseURL: "http://127.0.0.1:9000/"}.SiteURL())
}

func TestDetails_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Details)
		wantErr string
	}{
		{"valid", func(*Details) {}, ""},
		{"no domain", func(d *Details) { d.Domain, d.BaseURL = "", "" }, "jira.domain"},
		{"base url instead of domain", func(d *Details) { d.Domain = "" }, ""},
		{"no email", func(d *Details) { d.Email = "" }, "jira.email"},
		{"no token", func(d *Details) { d.APIToken = "" }, "API token"},
		{"no project", func(d *Details) { d.ProjectKey = "" }, "jira.project_key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := testDetails("http://localhost")
			tt.mutate(&d)
			err := d.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, apperrors.HasCode(err, apperrors.CodeConfigMissing))
		})
	}
}

func TestCreateIssue_SendsAuthAndJSON(t *testing.T) {
	fake, srv := newFakeJira(t)
	client, err := NewClient(testDetails(srv.URL), srv.Client())
	require.NoError(t, err)

	d := testDetails(srv.URL)
	d.ParentKey = "FB-100"
	d.Labels = []string{"feedback", "mobile"}

	created, err := client.CreateIssue(t.Context(), BuildIssuePayload(d, "Checkout fails", nil))
	require.NoError(t, err)
	assert.Equal(t, "10001", created.ID)
	assert.Equal(t, "FB-1", created.Key)

	reqs := fake.Requests()
	require.Len(t, reqs, 1)
	req := reqs[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/rest/api/3/issue", req.Path)

	wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("dev@acme.io:secret-token"))
	assert.Equal(t, wantAuth, req.Header.Get("Authorization"))
	assert.Contains(t, req.Header.Get("Content-Type"), "application/json")
	assert.Contains(t, req.Header.Get("Accept"), "application/json")

	assert.Equal(t, "Checkout fails", gjson.Get(req.Body, "fields.summary").String())
	assert.Equal(t, "Bug", gjson.Get(req.Body, "fields.issuetype.name").String())
	assert.Equal(t, "FB", gjson.Get(req.Body, "fields.project.key").String())
	assert.Equal(t, "FB-100", gjson.Get(req.Body, "fields.parent.key").String())
	assert.Equal(t, `["feedback","mobile"]`, gjson.Get(req.Body, "fields.labels").Raw)
}

func TestCreateIssue_OmitsOptionalFields(t *testing.T) {
	fake, srv := newFakeJira(t)
	client, err := NewClient(testDetails(srv.URL), srv.Client())
	require.NoError(t, err)

	_, err = client.CreateIssue(t.Context(), BuildIssuePayload(testDetails(srv.URL), "s", nil))
	require.NoError(t, err)

	body := fake.Requests()[0].Body
	assert.False(t, gjson.Get(body, "fields.parent").Exists())
	assert.False(t, gjson.Get(body, "fields.labels").Exists())
}

func TestCreateIssue_RejectedStatus(t *testing.T) {
	fake, srv := newFakeJira(t)
	fake.createStatus = http.StatusBadRequest
	fake.createBody = `{"errorMessages":[],"errors":{"project":"project is required"}}`

	client, err := NewClient(testDetails(srv.URL), srv.Client())
	require.NoError(t, err)

	_, err = client.CreateIssue(t.Context(), BuildIssuePayload(testDetails(srv.URL), "s", nil))
	require.Error(t, err)

	fbErr := apperrors.AsFeedbackError(err)
	require.NotNil(t, fbErr)
	assert.Equal(t, apperrors.CodeIssueCreationFailed, fbErr.Code)
	assert.Equal(t, 400, fbErr.StatusCode)
	assert.Contains(t, fbErr.Body, "project is required")
}

func TestCreateIssue_MalformedBody(t *testing.T) {
	fake, srv := newFakeJira(t)
	fake.createBody = `{"id": `

	client, err := NewClient(testDetails(srv.URL), srv.Client())
	require.NoError(t, err)

	_, err = client.CreateIssue(t.Context(), BuildIssuePayload(testDetails(srv.URL), "s", nil))
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeResponseInvalid), "got %v", err)
}

func TestCreateIssue_MissingID(t *testing.T) {
	fake, srv := newFakeJira(t)
	fake.createBody = `{"key":"FB-1"}`

	client, err := NewClient(testDetails(srv.URL), srv.Client())
	require.NoError(t, err)

	_, err = client.CreateIssue(t.Context(), BuildIssuePayload(testDetails(srv.URL), "s", nil))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeResponseInvalid), "got %v", err)
}

func TestCreateIssue_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := NewClient(testDetails(url), nil)
	require.NoError(t, err)

	_, err = client.CreateIssue(t.Context(), BuildIssuePayload(testDetails(url), "s", nil))
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNetwork), "got %v", err)
}

func TestAddAttachment(t *testing.T) {
	fake, srv := newFakeJira(t)
	client, err := NewClient(testDetails(srv.URL), srv.Client())
	require.NoError(t, err)

	png := []byte("\x89PNG fake image")
	require.NoError(t, client.AddAttachment(t.Context(), "10001", "screenshot-1.png", png))

	reqs := fake.Requests()
	require.Len(t, reqs, 1)
	req := reqs[0]
	assert.Equal(t, "/rest/api/3/issue/10001/attachments", req.Path)
	assert.Equal(t, "no-check", req.Header.Get("X-Atlassian-Token"))
	assert.Contains(t, req.Header.Get("Content-Type"), "multipart/form-data")
	assert.Equal(t, "screenshot-1.png", req.FileName)
	assert.Equal(t, png, req.FileData)
	assert.True(t, strings.HasPrefix(req.Header.Get("Authorization"), "Basic "))
}

func TestAddAttachment_RejectedStatus(t *testing.T) {
	fake, srv := newFakeJira(t)
	fake.attachStatus = http.StatusRequestEntityTooLarge
	fake.attachBody = ""

	client, err := NewClient(testDetails(srv.URL), srv.Client())
	require.NoError(t, err)

	err = client.AddAttachment(t.Context(), "10001", "s.png", []byte("x"))
	fbErr := apperrors.AsFeedbackError(err)
	require.NotNil(t, fbErr)
	assert.Equal(t, apperrors.CodeAttachmentUploadFailed, fbErr.Code)
	assert.Equal(t, 413, fbErr.StatusCode)
	assert.Equal(t, "Request Entity Too Large", fbErr.Body)
}

func TestAddAttachment_RequiresIDAndName(t *testing.T) {
	client, err := NewClient(testDetails("http://localhost"), nil)
	require.NoError(t, err)

	assert.Error(t, client.AddAttachment(t.Context(), "", "a.png", nil))
	assert.Error(t, client.AddAttachment(t.Context(), "1", "", nil))
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Details{}, nil)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConfigMissing))
}

func TestResultIssueURL(t *testing.T) {
	r := &Result{IssueKey: "FB-7"}
	assert.Equal(t, "https://acme.atlassian.net/browse/FB-7", r.IssueURL("https://acme.atlassian.net/"))
	assert.Equal(t, "", (&Result{}).IssueURL("x"))
	var nilResult *Result
	assert.Equal(t, "", nilResult.IssueURL("x"))
}

func TestCheckAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/3/myself" {
			http.NotFound(w, r)
			return
		}
		user, _, _ := r.BasicAuth()
		if user != "dev@acme.io" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"accountId":"abc","displayName":"Dev Person"}`)
	}))
	defer srv.Close()

	client, err := NewClient(testDetails(srv.URL), srv.Client())
	require.NoError(t, err)
	name, err := client.CheckAuth(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "Dev Person", name)

	bad := testDetails(srv.URL)
	bad.Email = "intruder@acme.io"
	client, err = NewClient(bad, srv.Client())
	require.NoError(t, err)
	_, err = client.CheckAuth(t.Context())
	assert.ErrorContains(t, err, "status 401")
}

func TestNewClient_ProjectNotRequired(t *testing.T) {
	d := testDetails("http://localhost")
	d.ProjectKey = ""

	_, err := NewClient(d, nil)
	assert.NoError(t, err)
	assert.Error(t, d.Validate())
	assert.NoError(t, d.ValidateAccount())
}
