package cli

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/randalmurphal/jira-feedback/internal/config"
	"github.com/randalmurphal/jira-feedback/internal/credential"
	apperrors "github.com/randalmurphal/jira-feedback/internal/errors"
)

// testEnv isolates a CLI run: HOME and the working directory are temp
// directories, FEEDBACK_* variables are cleared and the keyring is in memory.
type testEnv struct {
	dir   string
	store *credential.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", filepath.Join(dir, "home"))
	for envVar := range config.EnvVarMapping {
		t.Setenv(envVar, "")
	}
	t.Setenv(config.DefaultTokenEnvVar, "")
	t.Setenv("FEEDBACK_VERBOSE", "")
	t.Chdir(dir)

	env := &testEnv{dir: dir, store: credential.NewStore(keyring.NewArrayKeyring(nil))}
	orig := openStore
	openStore = func() (*credential.Store, error) { return env.store, nil }
	t.Cleanup(func() { openStore = orig })
	return env
}

// run executes the root command and returns stdout and stderr.
func (e *testEnv) run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return stdout.String(), stderr.String(), err
}

func (e *testEnv) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// useJira points the config at srv with a token in the environment.
func (e *testEnv) useJira(t *testing.T, srv *httptest.Server) {
	t.Helper()
	t.Setenv("FEEDBACK_JIRA_BASE_URL", srv.URL)
	t.Setenv("FEEDBACK_JIRA_DOMAIN", "acme")
	t.Setenv("FEEDBACK_JIRA_EMAIL", "dev@acme.io")
	t.Setenv("FEEDBACK_JIRA_PROJECT", "FB")
	t.Setenv("FEEDBACK_HISTORY_PATH", filepath.Join(e.dir, "history.db"))
	t.Setenv(config.DefaultTokenEnvVar, "env-token")
}

type jiraCall struct {
	path     string
	body     string
	fileName string
}

// stubJira answers issue creation with 201 and attachments with 200.
type stubJira struct {
	mu           sync.Mutex
	calls        []jiraCall
	createStatus int
}

func newStubJira(t *testing.T) (*stubJira, *httptest.Server) {
	t.Helper()
	s := &stubJira{createStatus: http.StatusCreated}
	srv := httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(srv.Close)
	return s, srv
}

func (s *stubJira) serve(w http.ResponseWriter, r *http.Request) {
	call := jiraCall{path: r.URL.Path}
	w.Header().Set("Content-Type", "application/json")

	switch {
	case strings.HasSuffix(r.URL.Path, "/attachments"):
		if _, header, err := r.FormFile("file"); err == nil {
			call.fileName = header.Filename
		}
		s.record(call)
		_, _ = io.WriteString(w, `[{"id":"20001"}]`)
	case r.URL.Path == "/rest/api/3/myself":
		s.record(call)
		_, _ = io.WriteString(w, `{"accountId":"abc","displayName":"Dev Person"}`)
	default:
		body, _ := io.ReadAll(r.Body)
		call.body = string(body)
		s.record(call)
		w.WriteHeader(s.createStatus)
		if s.createStatus >= 400 {
			_, _ = io.WriteString(w, `{"errorMessages":["project is required"]}`)
			return
		}
		_, _ = io.WriteString(w, `{"id":"10001","key":"FB-1","self":"x"}`)
	}
}

func (s *stubJira) record(c jiraCall) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, c)
}

func (s *stubJira) Calls() []jiraCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]jiraCall(nil), s.calls...)
}

func TestSubmit_CreatesIssueAndAttaches(t *testing.T) {
	env := newTestEnv(t)
	stub, srv := newStubJira(t)
	env.useJira(t, srv)

	shot := env.write(t, "shot.png", "\x89PNG\r\n\x1a\nfake")
	meta := env.write(t, "ctx.json", `{"build":"1.4.2","user":{"plan":"pro"}}`)

	stdout, stderr, err := env.run(t, "",
		"submit", "Checkout hangs. Spinner never stops.",
		"--screenshot", shot,
		"--metadata", meta,
		"--device", "OS=iOS 17.2", "--device", "Model=iPhone 15",
		"--label", "mobile", "--format", "bullets")
	require.NoError(t, err, stderr)

	assert.Contains(t, stdout, "Created FB-1")
	assert.Contains(t, stdout, srv.URL+"/browse/FB-1")
	assert.Contains(t, stdout, "Attached screenshot-")
	assert.Contains(t, stderr, "Submitting feedback...")

	calls := stub.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "/rest/api/3/issue", calls[0].path)
	assert.Equal(t, "/rest/api/3/issue/10001/attachments", calls[1].path)
	assert.Regexp(t, `^screenshot-\d+\.png$`, calls[1].fileName)

	body := calls[0].body
	assert.Equal(t, "Checkout hangs", gjson.Get(body, "fields.summary").String())
	assert.Equal(t, "FB", gjson.Get(body, "fields.project.key").String())
	assert.Equal(t, `["mobile"]`, gjson.Get(body, "fields.labels").Raw)
	assert.Equal(t, "bulletList", gjson.Get(body, "fields.description.content.#(type==\"bulletList\").type").String())
	assert.Contains(t, body, "iPhone 15")
}

func TestSubmit_TextFromStdin(t *testing.T) {
	env := newTestEnv(t)
	stub, srv := newStubJira(t)
	env.useJira(t, srv)

	_, stderr, err := env.run(t, "Crash on launch\n", "submit", "--no-screenshot", "--json")
	require.NoError(t, err, stderr)

	calls := stub.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "Crash on launch", gjson.Get(calls[0].body, "fields.summary").String())
}

func TestSubmit_JSONOutput(t *testing.T) {
	env := newTestEnv(t)
	_, srv := newStubJira(t)
	env.useJira(t, srv)

	stdout, stderr, err := env.run(t, "", "--json", "submit", "Broken link")
	require.NoError(t, err, stderr)

	assert.Equal(t, "FB-1", gjson.Get(stdout, "issue_key").String())
	assert.Equal(t, "10001", gjson.Get(stdout, "issue_id").String())
	assert.Equal(t, "Broken link", gjson.Get(stdout, "summary").String())
	assert.NotEmpty(t, gjson.Get(stdout, "submission_id").String())
	assert.False(t, gjson.Get(stdout, "attachment").Exists())
}

func TestSubmit_CreationFailure(t *testing.T) {
	env := newTestEnv(t)
	stub, srv := newStubJira(t)
	stub.createStatus = http.StatusBadRequest
	env.useJira(t, srv)

	shot := env.write(t, "shot.png", "\x89PNG\r\n\x1a\n")
	_, _, err := env.run(t, "", "submit", "Nope", "--screenshot", shot)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeIssueCreationFailed))
	assert.Equal(t, 3, ExitCode(err))
	assert.Len(t, stub.Calls(), 1, "no attachment request after a failed creation")
}

func TestSubmit_DryRun(t *testing.T) {
	env := newTestEnv(t)
	meta := env.write(t, "ctx.yaml", "a: 1\nb:\n  c: 2\n")

	stdout, stderr, err := env.run(t, "", "submit", "Layout glitch. Details below.",
		"--metadata", meta, "--format", "codeBlock", "--project", "FB", "--dry-run")
	require.NoError(t, err, stderr)

	assert.Equal(t, "Layout glitch", gjson.Get(stdout, "fields.summary").String())
	assert.Equal(t, "FB", gjson.Get(stdout, "fields.project.key").String())
	code := gjson.Get(stdout, `fields.description.content.#(type=="codeBlock")`)
	require.True(t, code.Exists())
	assert.Equal(t, "json", code.Get("attrs.language").String())
	assert.Equal(t, "{\n  \"a\": 1,\n  \"b\": {\n    \"c\": 2\n  }\n}", code.Get("content.0.text").String())
}

func TestSubmit_MissingToken(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv("FEEDBACK_JIRA_DOMAIN", "acme")
	t.Setenv("FEEDBACK_JIRA_EMAIL", "dev@acme.io")
	t.Setenv("FEEDBACK_JIRA_PROJECT", "FB")

	_, _, err := env.run(t, "", "submit", "hello")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeCredentialUnavailable))
	assert.Equal(t, 2, ExitCode(err))
}

func TestSubmit_TokenFromKeyring(t *testing.T) {
	env := newTestEnv(t)
	_, srv := newStubJira(t)
	env.useJira(t, srv)
	t.Setenv(config.DefaultTokenEnvVar, "")
	require.NoError(t, env.store.Set("acme", "dev@acme.io", "stored-token"))

	_, stderr, err := env.run(t, "", "submit", "From keyring")
	require.NoError(t, err, stderr)
}

func TestSubmit_BadDeviceFlag(t *testing.T) {
	env := newTestEnv(t)
	_, _, err := env.run(t, "", "submit", "x", "--device", "novalue", "--dry-run")
	assert.ErrorContains(t, err, "key=value")
}

func TestSubmit_RecordsHistory(t *testing.T) {
	env := newTestEnv(t)
	_, srv := newStubJira(t)
	env.useJira(t, srv)

	_, stderr, err := env.run(t, "", "submit", "First report")
	require.NoError(t, err, stderr)

	stdout, stderr, err := env.run(t, "", "--json", "history")
	require.NoError(t, err, stderr)
	entries := gjson.Parse(stdout).Array()
	require.Len(t, entries, 1)
	assert.Equal(t, "created", entries[0].Get("outcome").String())
	assert.Equal(t, "FB-1", entries[0].Get("issue_key").String())
	assert.Equal(t, "cli", entries[0].Get("source").String())

	id := entries[0].Get("id").String()
	stdout, _, err = env.run(t, "", "history", "show", id)
	require.NoError(t, err)
	assert.Contains(t, stdout, "First report")

	stdout, _, err = env.run(t, "", "history")
	require.NoError(t, err)
	assert.Contains(t, stdout, "OUTCOME")
	assert.Contains(t, stdout, "FB-1")

	_, _, err = env.run(t, "", "history", "show", "missing-id")
	assert.ErrorContains(t, err, "no submission")
}

func TestHistory_Disabled(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv("FEEDBACK_HISTORY_ENABLED", "false")

	_, _, err := env.run(t, "", "history")
	assert.ErrorContains(t, err, "history is disabled")
}

func TestRender_JSON(t *testing.T) {
	env := newTestEnv(t)

	stdout, stderr, err := env.run(t, "", "render", "Just text")
	require.NoError(t, err, stderr)

	assert.Equal(t, "doc", gjson.Get(stdout, "type").String())
	assert.Equal(t, int64(1), gjson.Get(stdout, "version").Int())
	assert.Equal(t, "Just text", gjson.Get(stdout, "content.0.content.0.text").String())
	assert.Equal(t, int64(1), gjson.Get(stdout, "content.#").Int())
}

func TestRender_Preview(t *testing.T) {
	env := newTestEnv(t)

	stdout, stderr, err := env.run(t, "", "render", "Preview me", "--device", "OS=macOS", "--preview")
	require.NoError(t, err, stderr)
	assert.Contains(t, stdout, "Preview me")
	assert.Contains(t, stdout, "Device details")
	assert.Contains(t, stdout, "macOS")
}

func TestRender_UnknownFormat(t *testing.T) {
	env := newTestEnv(t)
	_, _, err := env.run(t, "", "render", "x", "--format", "table")
	assert.ErrorContains(t, err, "unknown render format")
}

func TestBatch(t *testing.T) {
	env := newTestEnv(t)
	stub, srv := newStubJira(t)
	env.useJira(t, srv)

	env.write(t, "inbox/a.yaml", "text: First. More.\ndevice:\n  OS: Android 14\n")
	env.write(t, "inbox/nested/b.json", `{"text":"Second","metadata":{"k":"v"}}`)
	env.write(t, "inbox/c.yaml", "text: [broken\n")

	stdout, _, err := env.run(t, "", "batch", "inbox/**/*.{yaml,json}", "-c", "2")
	require.Error(t, err, "one payload is malformed")
	assert.Contains(t, err.Error(), "1 of 3 payloads failed")

	assert.Contains(t, stdout, "2 created, 0 partial, 1 failed")
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Contains(t, lines[0], "inbox/a.yaml")
	assert.Contains(t, lines[1], "inbox/c.yaml")
	assert.Contains(t, lines[2], "inbox/nested/b.json")

	assert.Len(t, stub.Calls(), 2)
}

func TestBatch_NoMatches(t *testing.T) {
	env := newTestEnv(t)
	_, srv := newStubJira(t)
	env.useJira(t, srv)

	_, _, err := env.run(t, "", "batch", "nothing/*.yaml")
	assert.Error(t, err)
}

func TestAuthLogin_StoresToken(t *testing.T) {
	env := newTestEnv(t)
	stub, srv := newStubJira(t)

	stdout, stderr, err := env.run(t, "secret-token\n", "auth", "login",
		"--domain", "acme", "--email", "dev@acme.io", "--base-url", srv.URL)
	require.NoError(t, err, stderr)
	assert.Contains(t, stdout, "Authenticated as Dev Person")
	assert.Contains(t, stdout, "acme/dev@acme.io")

	tok, err := env.store.Get("acme", "dev@acme.io")
	require.NoError(t, err)
	assert.Equal(t, "secret-token", tok)
	require.Len(t, stub.Calls(), 1)
	assert.Equal(t, "/rest/api/3/myself", stub.Calls()[0].path)

	stdout, _, err = env.run(t, "", "auth", "status", "--domain", "acme", "--email", "dev@acme.io")
	require.NoError(t, err)
	assert.Contains(t, stdout, "keyring acme/dev@acme.io")

	_, _, err = env.run(t, "", "auth", "logout", "--domain", "acme", "--email", "dev@acme.io")
	require.NoError(t, err)
	_, err = env.store.Get("acme", "dev@acme.io")
	assert.ErrorIs(t, err, credential.ErrNotFound)
}

func TestAuthLogin_EmptyToken(t *testing.T) {
	env := newTestEnv(t)
	_, _, err := env.run(t, "\n", "auth", "login", "--domain", "acme", "--email", "a@b.c", "--no-verify")
	assert.ErrorContains(t, err, "empty token")
}

func TestAuthStatus_EnvToken(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv(config.DefaultTokenEnvVar, "from-env")

	stdout, _, err := env.run(t, "", "auth", "status", "--domain", "acme")
	require.NoError(t, err)
	assert.Contains(t, stdout, "https://acme.atlassian.net")
	assert.Contains(t, stdout, "env "+config.DefaultTokenEnvVar)
	assert.Contains(t, stdout, "(not set)")
}

func TestConfigCommands(t *testing.T) {
	env := newTestEnv(t)

	stdout, _, err := env.run(t, "", "config", "set", "--project", "jira.project_key", "FB")
	require.NoError(t, err)
	assert.Contains(t, stdout, filepath.Join(".feedback", "config.yaml"))

	_, _, err = env.run(t, "", "config", "set", "jira.labels", "a,b")
	require.NoError(t, err)

	stdout, _, err = env.run(t, "", "config", "get", "jira.project_key", "--source")
	require.NoError(t, err)
	assert.Contains(t, stdout, "FB (from project:")

	stdout, _, err = env.run(t, "", "config", "get", "jira.labels")
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", stdout)

	stdout, _, err = env.run(t, "", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, stdout, "project_key: FB")

	stdout, _, err = env.run(t, "", "config", "show", "--source")
	require.NoError(t, err)
	assert.Contains(t, stdout, "render.format = paragraphs (default)")

	_, _, err = env.run(t, "", "config", "set", "batch.concurrency", "many")
	assert.Error(t, err)
}

func TestConfigFlag_ViperFormats(t *testing.T) {
	env := newTestEnv(t)
	path := env.write(t, "extra.json", `{"jira":{"project_key":"JSON"},"render":{"format":"hybrid"}}`)

	stdout, _, err := env.run(t, "", "--config", path, "config", "get", "jira.project_key", "--source")
	require.NoError(t, err)
	assert.Contains(t, stdout, "JSON (from file: ")

	_, _, err = env.run(t, "", "--config", filepath.Join(env.dir, "missing.yaml"), "version")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	env := newTestEnv(t)

	stdout, _, err := env.run(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "jira-feedback version "+Version+"\n", stdout)

	stdout, _, err = env.run(t, "", "--json", "version")
	require.NoError(t, err)
	assert.Equal(t, Version, gjson.Get(stdout, "version").String())
}

func TestConfigFlag_WithVerbose(t *testing.T) {
	env := newTestEnv(t)
	path := env.write(t, "extra.yaml", "jira:\n  project_key: YML\n")

	stdout, _, err := env.run(t, "", "--config", path, "-v", "config", "get", "jira.project_key")
	require.NoError(t, err)
	assert.Equal(t, "YML", strings.TrimSpace(stdout))
	assert.True(t, verbose)

	t.Setenv("FEEDBACK_VERBOSE", "1")
	stdout, _, err = env.run(t, "", "--config", path, "config", "get", "jira.project_key")
	require.NoError(t, err)
	assert.Equal(t, "YML", strings.TrimSpace(stdout))
}

func TestVerboseFromEnv(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv("FEEDBACK_VERBOSE", "1")

	_, _, err := env.run(t, "", "version")
	require.NoError(t, err)
	assert.True(t, verbose)
}

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	printError(&buf, apperrors.ErrIssueCreationFailed(400, `{"errorMessages":["bad"]}`))
	assert.Contains(t, buf.String(), "HTTP 400")
	assert.Contains(t, buf.String(), "errorMessages")

	buf.Reset()
	printError(&buf, io.ErrUnexpectedEOF)
	assert.Equal(t, "Error: unexpected EOF\n", buf.String())

	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(io.EOF))
	assert.Equal(t, 4, ExitCode(apperrors.ErrAttachmentUploadFailed("1", 500, "boom")))
}

func TestParseDevice(t *testing.T) {
	d, err := parseDevice([]string{"OS = iOS", "Note=a=b", "Empty="})
	require.NoError(t, err)
	require.Len(t, d, 3)
	assert.Equal(t, "OS", d[0].Label)
	assert.Equal(t, "iOS", d[0].Value)
	assert.Equal(t, "a=b", d[1].Value)
	assert.Equal(t, "", d[2].Value)

	_, err = parseDevice([]string{"=x"})
	assert.Error(t, err)
}

func TestReadText(t *testing.T) {
	got, err := readText([]string{"a", "b"}, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "a b", got)

	_, err = readText([]string{"a"}, "file.txt", nil)
	assert.Error(t, err)

	got, err = readText(nil, "-", strings.NewReader("piped\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "piped", got)

	got, err = readText(nil, "", strings.NewReader("implicit"))
	require.NoError(t, err)
	assert.Equal(t, "implicit", got)
}

func TestWatch_SubmitsNewPayloads(t *testing.T) {
	env := newTestEnv(t)
	stub, srv := newStubJira(t)
	env.useJira(t, srv)
	inbox := filepath.Join(env.dir, "inbox")
	env.write(t, "inbox/existing.yaml", "text: Already here")

	ctx, cancel := context.WithCancel(t.Context())
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"watch", inbox, "--debounce", "50ms"})

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	// Let the watcher register before dropping a file
	time.Sleep(200 * time.Millisecond)
	env.write(t, "inbox/new.yaml", "text: Dropped in. Later.")

	require.Eventually(t, func() bool { return len(stub.Calls()) == 1 }, 3*time.Second, 20*time.Millisecond)
	cancel()
	require.NoError(t, <-done, stderr.String())

	assert.Equal(t, "Dropped in", gjson.Get(stub.Calls()[0].body, "fields.summary").String())
	assert.Contains(t, stdout.String(), "new.yaml")
	assert.NotContains(t, stdout.String(), "existing.yaml")
}
