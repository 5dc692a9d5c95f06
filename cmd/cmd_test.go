package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cardTemplate = `<div class="card">{{ title }}|{{ html|safe }}</div>`

// newProject writes files below a fresh directory and makes it the working
// directory for the rest of the test.
func newProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	chdir(t, dir)
	t.Setenv(ConfigFileEnv, "")

	return dir
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	return executeContext(t, context.Background(), stdin, args...)
}

func executeContext(t *testing.T, ctx context.Context, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)

	return out.String(), err
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.FromSlash(path))
	require.NoError(t, err)

	return string(data)
}

func TestBuildCommand(t *testing.T) {
	newProject(t, map[string]string{
		"components/card.html": cardTemplate,
		"src/index.html":       `<card title="Hi">body</card>`,
		"src/blog/post.html":   `<main><card title="Post"></card></main>`,
		"src/notes.txt":        `<card title="skip"></card>`,
	})

	out, err := execute(t, "", "build")
	require.NoError(t, err)
	assert.Contains(t, out, "Built 2 file(s) into dist")

	assert.Equal(t, `<div class="card">Hi|body</div>`, readFile(t, "dist/index.html"))
	assert.Equal(t, `<main><div class="card">Post|</div></main>`, readFile(t, "dist/blog/post.html"))
	assert.NoFileExists(t, "dist/notes.txt")
}

func TestBuildCommandFlags(t *testing.T) {
	newProject(t, map[string]string{
		"components/card.html": cardTemplate,
		"site/page.htm":        `<card title="htm"></card>`,
		"site/page.html":       `<card title="html"></card>`,
	})

	_, err := execute(t, "", "build", "--src", "site", "--dest", "public", "--pattern", "*.htm", "-j", "2", "-q")
	require.NoError(t, err)

	assert.Equal(t, `<div class="card">htm|</div>`, readFile(t, "public/page.htm"))
	assert.NoFileExists(t, "public/page.html")
}

func TestBuildCommandConfigFileAndEnv(t *testing.T) {
	newProject(t, map[string]string{
		".tagforge.yml":        "build:\n  src: pages\n  dest: out\n",
		"components/card.html": cardTemplate,
		"pages/index.html":     `<card title="cfg"></card>`,
	})

	_, err := execute(t, "", "build", "-q")
	require.NoError(t, err)
	assert.FileExists(t, "out/index.html")

	t.Setenv("TAGFORGE_BUILD_DEST", "env-out")
	_, err = execute(t, "", "build", "-q")
	require.NoError(t, err)
	assert.FileExists(t, "env-out/index.html")

	_, err = execute(t, "", "build", "-q", "--dest", "flag-out")
	require.NoError(t, err)
	assert.FileExists(t, "flag-out/index.html")
}

func TestBuildCommandFailurePolicy(t *testing.T) {
	newProject(t, map[string]string{
		"components/card.html":   cardTemplate,
		"components/broken.html": `{% if %}`,
		"src/a.html":             `<broken></broken>`,
		"src/b.html":             `<card title="ok"></card>`,
	})

	_, err := execute(t, "", "build")
	require.Error(t, err)

	out, err := execute(t, "", "build", "--continue-on-error", "--dest", "all")
	require.Error(t, err)
	assert.Contains(t, out, "❌ a.html")
	assert.FileExists(t, "all/b.html")
	assert.NoFileExists(t, "all/a.html")
}

func TestBuildCommandNamedFiles(t *testing.T) {
	newProject(t, map[string]string{
		"components/card.html": cardTemplate,
		"src/index.html":       `<card title="one"></card>`,
		"src/other.html":       `<card title="two"></card>`,
	})

	out, err := execute(t, "", "build", "src/index.html")
	require.NoError(t, err)
	assert.Contains(t, out, "Built 1 of 1 file(s)")
	assert.FileExists(t, "dist/index.html")
	assert.NoFileExists(t, "dist/other.html")

	_, err = execute(t, "", "build", "-q", "other.html")
	require.NoError(t, err)
	assert.FileExists(t, "dist/other.html")

	_, err = execute(t, "", "build", "../outside.html")
	require.Error(t, err)
}

func TestSourceRelative(t *testing.T) {
	dir := newProject(t, nil)

	rel, err := sourceRelative("src", "src/blog/post.html")
	require.NoError(t, err)
	assert.Equal(t, "blog/post.html", rel)

	rel, err = sourceRelative("src", filepath.Join(dir, "src", "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "index.html", rel)

	rel, err = sourceRelative("src", "blog/post.html")
	require.NoError(t, err)
	assert.Equal(t, "blog/post.html", rel)

	_, err = sourceRelative("src", filepath.Join(dir, "elsewhere.html"))
	assert.Error(t, err)
}

func TestRenderCommand(t *testing.T) {
	newProject(t, map[string]string{
		"components/card.html": cardTemplate,
		"page.html":            `<section><card title="File">x</card></section>`,
	})

	out, err := execute(t, `<card title="A">b</card>`, "render")
	require.NoError(t, err)
	assert.Equal(t, `<div class="card">A|b</div>`+"\n", out)

	out, err = execute(t, "", "render", "page.html")
	require.NoError(t, err)
	assert.Contains(t, out, `<section><div class="card">File|x</div></section>`)

	out, err = execute(t, "", "render", "page.html", "--tree")
	require.NoError(t, err)
	assert.Contains(t, out, "#document")
	assert.Contains(t, out, "<section>")

	_, err = execute(t, "", "render", "page.html", "-o", "rendered.html")
	require.NoError(t, err)
	assert.Contains(t, readFile(t, "rendered.html"), `<div class="card">File|x</div>`)

	_, err = execute(t, "", "render", "missing.html")
	assert.Error(t, err)
}

func TestListCommand(t *testing.T) {
	newProject(t, map[string]string{
		"components/card.html":           cardTemplate,
		"components/button/primary.html": `<button>{{ html|safe }}</button>`,
	})

	out, err := execute(t, "", "list", "-o", "json")
	require.NoError(t, err)

	var entries []componentEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "button", entries[0].Name)
	assert.Empty(t, entries[0].File)
	assert.Equal(t, []string{"primary"}, entries[0].Variants)
	assert.Equal(t, "card", entries[1].Name)
	assert.Empty(t, entries[1].Hash)

	out, err = execute(t, "", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "TAG")
	assert.Contains(t, out, "<card>")
	assert.Contains(t, out, "primary")

	out, err = execute(t, "", "list", "-o", "yaml", "--hash")
	require.NoError(t, err)
	assert.Contains(t, out, "name: card")
	assert.Contains(t, out, "hash:")

	_, err = execute(t, "", "list", "-o", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestListCommandEmpty(t *testing.T) {
	newProject(t, map[string]string{"components/.keep": ""})

	out, err := execute(t, "", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No components found")
}

func TestValidateCommand(t *testing.T) {
	newProject(t, map[string]string{
		"components/card.html":           cardTemplate,
		"components/button/primary.html": `<button>{{ html|safe }}</button>`,
		"src/index.html":                 `<card></card>`,
	})

	out, err := execute(t, "", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "✅ Configuration is valid, 2 template(s) compiled")
}

func TestValidateCommandBrokenTemplate(t *testing.T) {
	newProject(t, map[string]string{
		"components/broken.html": `{% if %}`,
		"src/index.html":         ``,
	})

	out, err := execute(t, "", "validate", "--format", "json")
	require.Error(t, err)

	var summary ValidationSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.False(t, summary.Valid)
	require.Len(t, summary.Templates, 1)
	assert.Equal(t, "broken", summary.Templates[0].Tag)
	assert.False(t, summary.Templates[0].Valid)

	_, err = execute(t, "", "validate", "--config-only")
	assert.NoError(t, err)
}

func TestValidateCommandInvalidConfig(t *testing.T) {
	newProject(t, map[string]string{
		".tagforge.yml": "build:\n  src: site\n  dest: site\n  workers: 0\n",
	})

	out, err := execute(t, "", "validate")
	require.Error(t, err)
	assert.Contains(t, out, "build.workers")
	assert.Contains(t, out, "build.dest")
	assert.Contains(t, out, "Use a separate directory such as 'dist'")

	// Every other command refuses the same configuration outright.
	_, err = execute(t, "", "build")
	assert.Error(t, err)
}

func TestInitCommand(t *testing.T) {
	newProject(t, nil)

	out, err := execute(t, "", "init", "site")
	require.NoError(t, err)
	assert.Contains(t, out, "Initialized tagforge project in site")
	assert.FileExists(t, "site/.tagforge.yml")
	assert.FileExists(t, "site/components/card.html")
	assert.FileExists(t, "site/src/index.html")

	_, err = execute(t, "", "init", "site")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = execute(t, "", "init", "site", "--force")
	require.NoError(t, err)

	chdir(t, "site")
	_, err = execute(t, "", "build", "-q")
	require.NoError(t, err)
	page := readFile(t, "dist/index.html")
	assert.Contains(t, page, `<article class="card">`)
	assert.Contains(t, page, "<h2>Hello</h2>")
	assert.NotContains(t, page, "<card")
}

func TestInitCommandMinimalWizard(t *testing.T) {
	newProject(t, nil)

	// Empty answers keep every default.
	out, err := execute(t, strings.Repeat("\n", 20), "init", "--wizard", "--minimal")
	require.NoError(t, err)
	assert.Contains(t, out, "configuration wizard")
	assert.FileExists(t, ".tagforge.yml")
	assert.DirExists(t, "components")
	assert.DirExists(t, "src")
	assert.NoFileExists(t, "components/card.html")

	out, err = execute(t, "", "validate", "--format", "json")
	require.NoError(t, err, out)
}

func TestVersionCommand(t *testing.T) {
	newProject(t, nil)

	out, err := execute(t, "", "version", "--short")
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(out))

	out, err = execute(t, "", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "tagforge "))
	assert.Contains(t, out, "Go: ")

	out, err = execute(t, "", "version", "-f", "json")
	require.NoError(t, err)
	var info map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Contains(t, info, "go_version")
	assert.Contains(t, info, "is_release")

	out, err = execute(t, "", "version", "-f", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "go_version:")

	_, err = execute(t, "", "version", "-f", "xml")
	assert.Error(t, err)
}

func TestHealthCommand(t *testing.T) {
	newProject(t, map[string]string{"components/card.html": cardTemplate, "src/index.html": ""})

	out, err := execute(t, "", "health", "--no-server")
	require.NoError(t, err)
	assert.Contains(t, out, "All health checks passed")

	require.NoError(t, os.RemoveAll("src"))
	out, err = execute(t, "", "health", "--no-server")
	require.Error(t, err)
	assert.Contains(t, out, "source_dir")
}

func TestHealthCommandServer(t *testing.T) {
	newProject(t, map[string]string{"components/card.html": cardTemplate, "src/index.html": ""})

	status := "healthy"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": status, "errors": 1})
	}))
	defer srv.Close()

	host, port, err := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	require.NoError(t, err)

	_, err = execute(t, "", "health", "--host", host, "--port", port)
	require.NoError(t, err)

	status = "degraded"
	out, err := execute(t, "", "health", "--host", host, "--port", port)
	require.Error(t, err)
	assert.Contains(t, out, "degraded")

	srv.Close()
	_, err = execute(t, "", "health", "--host", host, "--port", port, "-t", "500ms")
	assert.Error(t, err)
}

func TestWatchCommand(t *testing.T) {
	newProject(t, map[string]string{
		"components/card.html": cardTemplate,
		"src/index.html":       `<card title="v1"></card>`,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := executeContext(t, ctx, "", "watch", "--debounce", "50ms")
		done <- err
	}()

	assert.Eventually(t, func() bool {
		data, err := os.ReadFile(filepath.Join("dist", "index.html"))
		return err == nil && strings.Contains(string(data), "v1|")
	}, 5*time.Second, 50*time.Millisecond)

	// Give the watcher time to register the source tree.
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join("src", "index.html"), []byte(`<card title="v2"></card>`), 0o644))
	assert.Eventually(t, func() bool {
		data, err := os.ReadFile(filepath.Join("dist", "index.html"))
		return err == nil && strings.Contains(string(data), "v2|")
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestConfigFlag(t *testing.T) {
	newProject(t, map[string]string{
		"custom.yml":           "components:\n  folder: tags\n",
		"tags/card.html":       cardTemplate,
		"components/nope.html": `<p></p>`,
	})

	out, err := execute(t, "", "list", "--config", "custom.yml", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "card"`)
	assert.NotContains(t, out, "nope")

	t.Setenv(ConfigFileEnv, "custom.yml")
	out, err = execute(t, "", "list", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "card"`)

	_, err = execute(t, "", "list", "--config", "missing.yml")
	assert.Error(t, err)
}

func TestPortFlagValidation(t *testing.T) {
	newProject(t, nil)

	_, err := execute(t, "", "health", "--port", "70000", "--no-server")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port must be between 0 and 65535")
}

func TestValidateFormat(t *testing.T) {
	assert.NoError(t, ValidateFormat("JSON", []string{"table", "json"}))
	assert.ErrorContains(t, ValidateFormat("js", []string{"table", "json"}), `did you mean "json"`)
	assert.ErrorContains(t, ValidateFormat("xml", []string{"table", "json"}), "must be one of: table, json")
}

func TestValidatePort(t *testing.T) {
	for _, ok := range []string{"0", "80", "65535"} {
		assert.NoError(t, ValidatePort(ok), ok)
	}
	for _, bad := range []string{"-1", "65536", "http"} {
		assert.Error(t, ValidatePort(bad), bad)
	}
}

// chdir changes the working directory for the rest of the test and restores
// the previous one when the test finishes.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restoring working directory: %v", err)
		}
	})
}
