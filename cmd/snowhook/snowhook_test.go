package snowhook

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yaklabco/snowhook/config"
	"github.com/yaklabco/snowhook/internal/gittest"
	"github.com/yaklabco/snowhook/pkg/fetch"
	"github.com/yaklabco/snowhook/pkg/republish"
	"github.com/yaklabco/snowhook/pkg/testresult"
	"gopkg.in/yaml.v3"
)

const testPrefix = "https://logs.example.org/ozlabs"

// execute runs the command tree with stdin and returns stdout, stderr and
// the exit code main would report.
func execute(t *testing.T, stdin string, args ...string) (string, string, int) {
	t.Helper()

	// Keep the developer's own configuration out of the tests.
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	ctx := t.Context()
	rootCmd := NewRootCmd(ctx)

	var stdout, stderr bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)

	err := ExecuteWithFang(ctx, rootCmd)
	return stdout.String(), stderr.String(), ExitCode(err)
}

func logServer(t *testing.T, body string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/job/7/consoleText", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAnnotate(t *testing.T) {
	out, _, code := execute(t, `{"state":"success","description":"Build passed","id":7}`, "annotate")
	require.Equal(t, ExitOK, code)

	rec, err := testresult.Decode(strings.NewReader(out))
	require.NoError(t, err)
	desc, err := rec.Description()
	require.NoError(t, err)
	assert.Equal(t, "Build passed Woooooooooo!", desc)
	assert.Equal(t, "7", fmt.Sprint(rec["id"]))
}

func TestAnnotate_Failure(t *testing.T) {
	out, _, code := execute(t, `{"state":"failure"}`, "annotate")
	require.Equal(t, ExitOK, code)
	assert.JSONEq(t, `{"state":"failure","description":"We believe in you! Go respin!"}`, out)
}

func TestAnnotate_MalformedInput(t *testing.T) {
	for _, input := range []string{`{"description":"no state"}`, `[1,2]`, `{"state":`, ``} {
		out, stderr, code := execute(t, input, "annotate")
		assert.Equal(t, ExitMalformed, code, "input %q", input)
		assert.Empty(t, out, "input %q", input)
		assert.NotEmpty(t, stderr, "input %q", input)
	}
}

func TestRepublish_NoTargetURL(t *testing.T) {
	for _, input := range []string{`{"state":"success"}`, `{"state":"success","target_url":""}`, `{"state":"success","target_url":null}`} {
		out, _, code := execute(t, input, "republish", "--repo-dir", t.TempDir())
		assert.Equal(t, ExitOK, code, "input %q", input)
		assert.Empty(t, out, "input %q", input)
	}
}

func TestRepublish_EndToEnd(t *testing.T) {
	fx := gittest.New(t)
	srv := logServer(t, "make: *** [vmlinux] Error 2\n")

	input := `{"state":"failure","description":"ppc64le build","target_url":"` + srv.URL + `/job/7/consoleText"}`
	out, _, code := execute(t, input, "republish", "--repo-dir", fx.Work, "--url-prefix", testPrefix)
	require.Equal(t, ExitOK, code)

	rec, err := testresult.Decode(strings.NewReader(out))
	require.NoError(t, err)
	target, ok, err := rec.TargetURL()
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, strings.HasPrefix(target, testPrefix+"/"), target)

	name := strings.TrimPrefix(target, testPrefix+"/")
	assert.Contains(t, fx.RemoteFiles(), name)

	data, err := os.ReadFile(filepath.Join(fx.Work, name))
	require.NoError(t, err)
	assert.Equal(t, "make: *** [vmlinux] Error 2\n", string(data))

	desc, err := rec.Description()
	require.NoError(t, err)
	assert.Equal(t, "ppc64le build", desc)
}

func TestRepublish_ConfigFromEnvironment(t *testing.T) {
	fx := gittest.New(t)
	srv := logServer(t, "log")

	t.Setenv("SNOWHOOK_REPO_DIR", fx.Work)
	t.Setenv("SNOWHOOK_URL_PREFIX", testPrefix)

	out, _, code := execute(t, `{"state":"success","target_url":"`+srv.URL+`/job/7/consoleText"}`, "republish")
	require.Equal(t, ExitOK, code)
	assert.Contains(t, out, testPrefix+"/")
}

func TestRepublish_FetchFailure(t *testing.T) {
	fx := gittest.New(t)
	srv := logServer(t, "log")

	out, _, code := execute(t, `{"state":"failure","target_url":"`+srv.URL+`/job/8/consoleText"}`,
		"republish", "--repo-dir", fx.Work)
	assert.Equal(t, ExitFetch, code)
	assert.Empty(t, out)
	assert.Equal(t, []string{"README"}, fx.RemoteFiles())
}

func TestRepublish_NotARepo(t *testing.T) {
	srv := logServer(t, "log")
	dir := t.TempDir()

	out, _, code := execute(t, `{"state":"failure","target_url":"`+srv.URL+`/job/7/consoleText"}`,
		"republish", "--repo-dir", dir)
	assert.Equal(t, ExitPublish, code)
	assert.Empty(t, out)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRepublish_InvalidFlag(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { hits.Add(1) }))
	t.Cleanup(srv.Close)

	out, stderr, code := execute(t, `{"state":"success","target_url":"`+srv.URL+`/job/7/consoleText"}`,
		"republish", "--repo-dir", t.TempDir(), "--push-attempts", "0")
	assert.Equal(t, ExitFailure, code)
	assert.Empty(t, out)
	assert.Contains(t, stderr, "push_attempts")
	assert.Zero(t, hits.Load(), "nothing may be fetched with invalid settings")
}

func TestRepublish_NoTargetURLIgnoresInvalidConfig(t *testing.T) {
	t.Setenv("SNOWHOOK_URL_PREFIX", "not-a-url")

	out, _, code := execute(t, `{"state":"success","description":"no log"}`, "republish")
	assert.Equal(t, ExitOK, code)
	assert.Empty(t, out)
}

func TestAnnotate_IgnoresRepublishConfig(t *testing.T) {
	t.Setenv("SNOWHOOK_PUSH_ATTEMPTS", "0")
	t.Setenv("SNOWHOOK_LOCK_TIMEOUT", "forever")

	out, _, code := execute(t, `{"state":"success"}`, "annotate")
	require.Equal(t, ExitOK, code)
	assert.JSONEq(t, `{"state":"success","description":"Woooooooooo!"}`, out)
}

func TestAnnotate_InvalidUTF8(t *testing.T) {
	out, _, code := execute(t, "{\"state\":\"success\",\"x\":\"a\xffb\"}", "annotate")
	assert.Equal(t, ExitMalformed, code)
	assert.Empty(t, out)
}

func TestConfigShow_RedactsToken(t *testing.T) {
	t.Setenv("SNOWHOOK_FETCH_USERNAME", "snowpatch")
	t.Setenv("SNOWHOOK_FETCH_TOKEN", "hunter2")

	out, _, code := execute(t, "", "config", "show")
	require.Equal(t, ExitOK, code)
	assert.NotContains(t, out, "hunter2")

	var shown map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &shown))
	assert.Equal(t, config.DefaultRepoDir, shown["repo_dir"])
	assert.Equal(t, "5m0s", shown["lock_timeout"])
	fetchSection, ok := shown["fetch"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "snowpatch", fetchSection["username"])
}

func TestConfigShow_ExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ci.yaml")
	require.NoError(t, os.WriteFile(path, []byte("commit_message: Add CI logs\n"), 0o600))

	out, stderr, code := execute(t, "", "--config", path, "config", "show")
	require.Equal(t, ExitOK, code)
	assert.Contains(t, out, "commit_message: Add CI logs")
	assert.Contains(t, stderr, path)
}

func TestConfigInit(t *testing.T) {
	out, _, code := execute(t, "", "config", "init")
	require.Equal(t, ExitOK, code)

	path := strings.TrimSpace(out)
	assert.Equal(t, config.ResolveXDGPaths().ConfigFilePath(), path)
	assert.FileExists(t, path)
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"malformed", fmt.Errorf("reading: %w", testresult.ErrMissingField), ExitMalformed},
		{"fetch", fmt.Errorf("%w: boom", fetch.ErrFetch), ExitFetch},
		{"publish", &republish.PublishError{Step: republish.StepPush, Err: errors.New("denied")}, ExitPublish},
		{"other", errors.New("unknown flag"), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}
