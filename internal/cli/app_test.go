package cli

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cargo-kelvin/internal/errdefs"
	"cargo-kelvin/internal/kelvin/kelvintest"
)

type harness struct {
	srv     *kelvintest.Server
	stdout  bytes.Buffer
	stderr  bytes.Buffer
	opened  []string
	tempDir string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("KELVIN_API_TOKEN", "")
	t.Setenv("KELVIN_CONFIG", "")
	t.Setenv("KELVIN_URL", "")

	h := &harness{srv: kelvintest.NewServer(), tempDir: t.TempDir()}
	h.srv.Tokens["good-token"] = true
	h.srv.Tasks["42"] = "hello-world"
	t.Cleanup(h.srv.Close)
	t.Setenv("KELVIN_TEMP_DIR", h.tempDir)
	return h
}

func (h *harness) run(ctx context.Context, args ...string) int {
	return Run(ctx, args, Env{
		Stdout:  &h.stdout,
		Stderr:  &h.stderr,
		WorkDir: os.TempDir(),
		OpenBrowser: func(url string) error {
			h.opened = append(h.opened, url)
			return nil
		},
	})
}

func project(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"Cargo.toml":           "[package]\nname = \"hello\"\n",
		"Cargo.lock":           "version = 3\n",
		"src/main.rs":          "fn main() {}\n",
		"target/debug/main.rs": "// build output\n",
		"notes.bin":            "\x00\x01",
	}
	for name, body := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	return root
}

func entries(t *testing.T, data []byte) []string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}

func TestRunSubmitSuccess(t *testing.T) {
	h := newHarness(t)
	root := project(t)

	code := h.run(context.Background(), "kelvin", "submit",
		"--token", "good-token",
		"--dir", filepath.Join(root, "src"),
		"--kelvin-url", h.srv.URL,
		"42")

	require.Equal(t, ExitSuccess, code, h.stderr.String())
	assert.Contains(t, h.stdout.String(), "Created submit #1 for task hello-world")
	assert.Contains(t, h.stdout.String(), "You can find the submit at "+h.srv.URL+"/task/42/student/1")

	uploads := h.srv.Uploads()
	require.Len(t, uploads, 1)
	assert.Equal(t, []string{"Cargo.lock", "Cargo.toml", "src/main.rs"}, entries(t, uploads[0].Archive))
	assert.Equal(t, []string{h.srv.URL + "/task/42/student/1"}, h.opened)

	left, err := os.ReadDir(h.tempDir)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestRunNoOpen(t *testing.T) {
	h := newHarness(t)
	root := project(t)

	code := h.run(context.Background(), "submit", "--no-open",
		"--token", "good-token", "--dir", root, "--kelvin-url", h.srv.URL, "42")

	require.Equal(t, ExitSuccess, code, h.stderr.String())
	assert.Empty(t, h.opened)
}

func TestRunTokenFromEnvironment(t *testing.T) {
	h := newHarness(t)
	root := project(t)
	t.Setenv("KELVIN_API_TOKEN", "good-token")
	t.Setenv("KELVIN_URL", h.srv.URL)

	code := h.run(context.Background(), "submit", "--no-open", "--dir", root, "42")
	require.Equal(t, ExitSuccess, code, h.stderr.String())
	assert.Equal(t, "Bearer good-token", h.srv.Uploads()[0].Auth)
}

func TestRunFlagTokenBeatsEnvironment(t *testing.T) {
	h := newHarness(t)
	root := project(t)
	t.Setenv("KELVIN_API_TOKEN", "stale-token")

	code := h.run(context.Background(), "submit", "--no-open",
		"--token", "good-token", "--dir", root, "--kelvin-url", h.srv.URL, "42")
	require.Equal(t, ExitSuccess, code, h.stderr.String())
	assert.Equal(t, "Bearer good-token", h.srv.Uploads()[0].Auth)
}

func TestRunRejectedToken(t *testing.T) {
	h := newHarness(t)
	root := project(t)

	code := h.run(context.Background(), "submit", "--no-open",
		"--token", "expired", "--dir", root, "--kelvin-url", h.srv.URL, "42")

	assert.Equal(t, ExitUploadFailure, code)
	assert.Contains(t, h.stderr.String(), "upload rejected: invalid token (HTTP 401)")
	assert.Len(t, h.srv.Uploads(), 1)
	assert.Empty(t, h.stdout.String())
}

func TestRunUnknownAssignment(t *testing.T) {
	h := newHarness(t)
	root := project(t)

	code := h.run(context.Background(), "submit", "--no-open",
		"--token", "good-token", "--dir", root, "--kelvin-url", h.srv.URL, "7")

	assert.Equal(t, ExitUploadFailure, code)
	assert.Contains(t, h.stderr.String(), "upload failed: assignment not found")
}

func TestRunServerError(t *testing.T) {
	h := newHarness(t)
	root := project(t)
	h.srv.Status = http.StatusInternalServerError
	h.srv.Body = "database is down"

	code := h.run(context.Background(), "submit", "--no-open",
		"--token", "good-token", "--dir", root, "--kelvin-url", h.srv.URL, "42")

	assert.Equal(t, ExitUploadFailure, code)
	assert.Contains(t, h.stderr.String(), "upload failed: server error (HTTP 500): database is down")
}

func TestRunUnreachableServer(t *testing.T) {
	h := newHarness(t)
	root := project(t)
	url := h.srv.URL
	h.srv.Close()

	code := h.run(context.Background(), "submit", "--no-open",
		"--token", "good-token", "--dir", root, "--kelvin-url", url, "42")

	assert.Equal(t, ExitUploadFailure, code)
	assert.Contains(t, h.stderr.String(), "upload failed: could not reach server")
}

func TestRunNoManifest(t *testing.T) {
	h := newHarness(t)
	t.Setenv("KELVIN_MANIFEST", "kelvin-test-manifest.toml")
	dir := t.TempDir()

	code := h.run(context.Background(), "submit", "--no-open",
		"--token", "good-token", "--dir", dir, "--kelvin-url", h.srv.URL, "42")

	assert.Equal(t, ExitWorkspaceError, code)
	assert.Contains(t, h.stderr.String(), "scan failed")
	assert.Empty(t, h.srv.Uploads())
}

func TestRunInterrupted(t *testing.T) {
	h := newHarness(t)
	root := project(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	code := h.run(ctx, "submit", "--no-open",
		"--token", "good-token", "--dir", root, "--kelvin-url", h.srv.URL, "42")

	assert.NotEqual(t, ExitSuccess, code)
	assert.Empty(t, h.srv.Uploads())
	left, err := os.ReadDir(h.tempDir)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestRunConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing token", []string{"submit", "42"}, "configuration error: missing API token"},
		{"missing assignment", []string{"submit", "--token", "t"}, "configuration error: missing assignment id"},
		{"bad assignment", []string{"submit", "--token", "t", "abc"}, "is not a number"},
		{"extra arguments", []string{"submit", "--token", "t", "1", "2"}, "unexpected arguments"},
		{"missing subcommand", []string{}, "missing subcommand"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			code := h.run(context.Background(), tc.args...)
			assert.Equal(t, ExitInvalidInvocation, code)
			assert.Contains(t, h.stderr.String(), tc.want)
			assert.Empty(t, h.srv.Uploads())
		})
	}
}

func TestRunUnknownFlag(t *testing.T) {
	h := newHarness(t)
	code := h.run(context.Background(), "submit", "--bogus", "42")
	assert.Equal(t, ExitInvalidInvocation, code)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, ExitCode(nil))
	assert.Equal(t, ExitInvalidInvocation, ExitCode(errdefs.Config("", "x")))
	assert.Equal(t, ExitWorkspaceError, ExitCode(errdefs.Scan("walk", errors.New("x"))))
	assert.Equal(t, ExitWorkspaceError, ExitCode(errdefs.Archive("write", errors.New("x"))))
	assert.Equal(t, ExitUploadFailure, ExitCode(errdefs.FromStatus("submit", 401, "")))
	assert.Equal(t, ExitUploadFailure, ExitCode(errdefs.Transport("submit", errors.New("x"))))
	assert.Equal(t, ExitInvalidInvocation, ExitCode(errors.New("flag provided but not defined")))
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{errdefs.Config("resolve", "missing API token"), "configuration error: missing API token"},
		{errdefs.Scan("find root", errors.New("no Cargo.toml")), "scan failed: find root: no Cargo.toml"},
		{errdefs.Archive("open src/a.rs", errors.New("denied")), "packaging failed: open src/a.rs: denied"},
		{errdefs.FromStatus("submit", 403, ""), "upload rejected: invalid token (HTTP 403)"},
		{errdefs.FromStatus("submit", 404, ""), "upload failed: assignment not found (HTTP 404), check the assignment id and Kelvin URL"},
		{errdefs.FromStatus("submit", 502, "bad gateway"), "upload failed: server error (HTTP 502): bad gateway"},
		{errdefs.Transport("submit", errors.New("dial tcp: refused")), "upload failed: could not reach server: submit: dial tcp: refused"},
	}
	for _, tc := range tests {
		t.Run(tc.want, func(t *testing.T) {
			assert.Equal(t, tc.want, Describe(tc.err))
		})
	}
}
