package renderer

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/tagforge/internal/errors"
	"github.com/conneroisu/tagforge/internal/props"
)

func writeTemplate(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestResolveAndRender(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "comp1.html", `<div class="comp1">{{ html|safe }}</div>`)

	r := NewResolver(dir, ".html")
	tpl, err := r.Resolve("comp1", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "comp1.html"), tpl.Path)

	out, err := tpl.Render(props.Context{"html": "<b>hi</b>"})
	require.NoError(t, err)
	assert.Equal(t, `<div class="comp1"><b>hi</b></div>`, out)
}

func TestAutoescapeWithoutSafe(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "raw.html", `{{ html }}`)

	tpl, err := NewResolver(dir, "").Resolve("raw", "")
	require.NoError(t, err)

	out, err := tpl.Render(props.Context{"html": "<b>"})
	require.NoError(t, err)
	assert.Equal(t, "&lt;b&gt;", out)
}

func TestCollectionTemplate(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "customselect.html", "<select>{% for item in items %}\n    <option value=\"{{ item.value }}\">{{ item.html|safe }}</option>{% endfor %}\n</select>")

	tpl, err := NewResolver(dir, ".html").Resolve("customselect", "")
	require.NoError(t, err)

	out, err := tpl.Render(props.Context{"items": []map[string]any{
		{"html": "label", "value": "test"},
		{"html": "label2", "value": "test2"},
	}})
	require.NoError(t, err)
	assert.Equal(t, "<select>\n    <option value=\"test\">label</option>\n    <option value=\"test2\">label2</option>\n</select>", out)
}

func TestTypedVariant(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "button.html", `<button>{{ html|safe }}</button>`)
	writeTemplate(t, dir, "button/primary.html", `<button class="primary">{{ html|safe }}</button>`)

	r := NewResolver(dir, ".html")
	plain, err := r.Resolve("button", "")
	require.NoError(t, err)
	primary, err := r.Resolve("button", "primary")
	require.NoError(t, err)

	assert.NotSame(t, plain, primary)
	assert.Equal(t, "primary", primary.Type)
	assert.Equal(t, filepath.Join(dir, "button", "primary.html"), primary.Path)
	assert.Equal(t, 2, r.Len())

	_, err = r.Resolve("button", "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrTemplateNotFound)
	assert.Contains(t, err.Error(), `"ghost"`)
}

func TestCacheIdentityAndReset(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "card.html", `v1`)

	r := NewResolver(dir, ".html")
	first, err := r.Resolve("card", "")
	require.NoError(t, err)
	second, err := r.Resolve("card", "")
	require.NoError(t, err)
	assert.Same(t, first, second)

	writeTemplate(t, dir, "card.html", `v2`)
	stale, err := r.Resolve("card", "")
	require.NoError(t, err)
	out, err := stale.Render(props.Context{})
	require.NoError(t, err)
	assert.Equal(t, "v1", out)

	assert.Same(t, r, r.Reset())
	assert.Equal(t, 0, r.Len())

	fresh, err := r.Resolve("card", "")
	require.NoError(t, err)
	assert.NotSame(t, first, fresh)
	out, err = fresh.Render(props.Context{})
	require.NoError(t, err)
	assert.Equal(t, "v2", out)
}

func TestResolveErrors(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "broken.html", `{% for x in %}`)

	r := NewResolver(dir, ".html")

	testCases := []struct {
		name     string
		tag, typ string
		want     error
	}{
		{"missing", "nope", "", errors.ErrTemplateNotFound},
		{"compile failure", "broken", "", errors.ErrTemplateCompile},
		{"empty name", "", "", errors.ErrInvalidPath("")},
		{"separator", "a/b", "", errors.ErrInvalidPath("a/b")},
		{"traversal in type", "card", "../secret", errors.ErrPathTraversal("../secret")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.Resolve(tc.tag, tc.typ)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.Equal(t, 0, r.Len())
}

func TestRenderError(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "bad.html", `{{ html|attrs }}`)

	tpl, err := NewResolver(dir, ".html").Resolve("bad", "")
	require.NoError(t, err)

	_, err = tpl.Render(props.Context{"html": "not a map"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrTemplateRender)
}

func TestIncludeResolvesInsideFolder(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "partials/icon.html", `<i class="{{ icon }}"></i>`)
	writeTemplate(t, dir, "badge.html", `<span>{% include "partials/icon.html" %}{{ html|safe }}</span>`)

	tpl, err := NewResolver(dir, ".html").Resolve("badge", "")
	require.NoError(t, err)

	out, err := tpl.Render(props.Context{"icon": "star", "html": "New"})
	require.NoError(t, err)
	assert.Equal(t, `<span><i class="star"></i>New</span>`, out)
}

func TestNonIdentifierKeys(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "link.html", `<a aria-label="{{ aria_label }}" {{ data|attrs:"data-" }}>{{ html|safe }}</a>`)

	tpl, err := NewResolver(dir, ".html").Resolve("link", "")
	require.NoError(t, err)

	out, err := tpl.Render(props.Context{
		"aria-label": "Home",
		"":           "dropped",
		"html":       "home",
		"data":       map[string]any{"b": "2", "a": `say "x"`},
	})
	require.NoError(t, err)
	assert.Equal(t, `<a aria-label="Home" data-a="say &#34;x&#34;" data-b="2">home</a>`, out)
}

func TestTemplateContextAliases(t *testing.T) {
	ctx := templateContext(props.Context{
		"data_x": "real",
		"data-x": "alias",
		"a-b":    "first",
		"a.b":    "second",
		"":       "empty",
	})

	assert.Equal(t, "real", ctx["data_x"])
	assert.Equal(t, "first", ctx["a_b"])
	assert.NotContains(t, ctx, "")
	assert.NotContains(t, ctx, "data-x")
}

func TestSanitizeFilter(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "note.html", `<p>{{ html|sanitize }}</p>`)

	tpl, err := NewResolver(dir, ".html").Resolve("note", "")
	require.NoError(t, err)

	out, err := tpl.Render(props.Context{"html": `<b>ok</b><script>alert(1)</script>`})
	require.NoError(t, err)
	assert.Equal(t, `<p><b>ok</b></p>`, out)
}

func TestConcurrentResolve(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "card.html", `{{ html|safe }}`)

	r := NewResolver(dir, ".html")
	results := make([]*Template, 16)

	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tpl, err := r.Resolve("card", "")
			assert.NoError(t, err)
			results[i] = tpl
		}(i)
	}
	wg.Wait()

	for _, tpl := range results[1:] {
		assert.Same(t, results[0], tpl)
	}
}
