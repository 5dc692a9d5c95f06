package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/tagforge/internal/build"
	"github.com/conneroisu/tagforge/internal/engine"
	"github.com/conneroisu/tagforge/internal/errors"
)

type site struct {
	root, src, dest, components string
	rebuilder                   *Rebuilder

	mu       sync.Mutex
	rebuilds []Rebuild
}

func (s *site) write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func (s *site) output(t *testing.T, rel string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(s.dest, filepath.FromSlash(rel)))
	require.NoError(t, err)

	return string(b)
}

func (s *site) last() Rebuild {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.rebuilds) == 0 {
		return Rebuild{}
	}

	return s.rebuilds[len(s.rebuilds)-1]
}

func (s *site) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.rebuilds)
}

func newSite(t *testing.T) *site {
	t.Helper()
	root := t.TempDir()
	s := &site{
		root:       root,
		src:        filepath.Join(root, "src"),
		dest:       filepath.Join(root, "dist"),
		components: filepath.Join(root, "components"),
	}
	s.write(t, filepath.Join(s.components, "comp1.html"), `<div class="v1">{{ html|safe }}</div>`)
	s.write(t, filepath.Join(s.src, "index.html"), `<comp1>home</comp1>`)
	s.write(t, filepath.Join(s.src, "about", "team.html"), `<p><comp1>team</comp1></p>`)

	eng := engine.New(engine.Options{ComponentsFolder: s.components})
	proc := build.NewProcessor(eng, build.Options{Workers: 2})
	s.rebuilder = NewRebuilder(eng, proc, RebuildConfig{
		Src:  s.src,
		Dest: s.dest,
		OnRebuild: func(rb Rebuild) {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.rebuilds = append(s.rebuilds, rb)
		},
	})

	rb := s.rebuilder.Full(context.Background())
	require.NoError(t, rb.Err)

	return s
}

func TestRebuilderFull(t *testing.T) {
	s := newSite(t)

	assert.Equal(t, `<div class="v1">home</div>`, s.output(t, "index.html"))
	assert.Equal(t, `<p><div class="v1">team</div></p>`, s.output(t, "about/team.html"))
}

func TestRebuilderComponentChange(t *testing.T) {
	s := newSite(t)
	s.write(t, filepath.Join(s.components, "comp1.html"), `<div class="v2">{{ html|safe }}</div>`)

	err := s.rebuilder.Handle([]ChangeEvent{{Type: EventTypeModified, Path: filepath.Join(s.components, "comp1.html")}})
	require.NoError(t, err)

	rb := s.last()
	assert.True(t, rb.Full)
	assert.Equal(t, []string{"about/team.html", "index.html"}, rb.Files)
	assert.Equal(t, `<div class="v2">home</div>`, s.output(t, "index.html"))
}

func TestRebuilderNewComponent(t *testing.T) {
	s := newSite(t)
	s.write(t, filepath.Join(s.src, "badge.html"), `<badge>new</badge>`)
	require.NoError(t, s.rebuilder.Handle([]ChangeEvent{{Type: EventTypeCreated, Path: filepath.Join(s.src, "badge.html")}}))
	assert.Equal(t, `<badge>new</badge>`, s.output(t, "badge.html"))

	s.write(t, filepath.Join(s.components, "badge.html"), `<span class="badge">{{ html|safe }}</span>`)
	require.NoError(t, s.rebuilder.Handle([]ChangeEvent{{Type: EventTypeCreated, Path: filepath.Join(s.components, "badge.html")}}))
	assert.Equal(t, `<span class="badge">new</span>`, s.output(t, "badge.html"))
}

func TestRebuilderSourceChange(t *testing.T) {
	s := newSite(t)
	s.write(t, filepath.Join(s.src, "index.html"), `<h1><comp1>changed</comp1></h1>`)
	s.write(t, filepath.Join(s.src, "notes.txt"), `ignored`)

	err := s.rebuilder.Handle([]ChangeEvent{
		{Type: EventTypeModified, Path: filepath.Join(s.src, "index.html")},
		{Type: EventTypeCreated, Path: filepath.Join(s.src, "notes.txt")},
		{Type: EventTypeModified, Path: filepath.Join(s.dest, "index.html")},
		{Type: EventTypeModified, Path: filepath.Join(s.root, "elsewhere.html")},
	})
	require.NoError(t, err)

	rb := s.last()
	assert.False(t, rb.Full)
	assert.Equal(t, []string{"index.html"}, rb.Files)
	assert.Equal(t, `<h1><div class="v1">changed</div></h1>`, s.output(t, "index.html"))
	assert.NoFileExists(t, filepath.Join(s.dest, "notes.txt"))
}

func TestRebuilderIgnoresIrrelevantBatches(t *testing.T) {
	s := newSite(t)

	err := s.rebuilder.Handle([]ChangeEvent{{Type: EventTypeModified, Path: filepath.Join(s.src, "style.css")}})
	require.NoError(t, err)
	assert.Zero(t, s.count())
}

func TestRebuilderRemovedSource(t *testing.T) {
	s := newSite(t)
	require.NoError(t, os.Remove(filepath.Join(s.src, "about", "team.html")))

	err := s.rebuilder.Handle([]ChangeEvent{{Type: EventTypeDeleted, Path: filepath.Join(s.src, "about", "team.html")}})
	require.NoError(t, err)

	assert.Equal(t, []string{"about/team.html"}, s.last().Removed)
	assert.NoFileExists(t, filepath.Join(s.dest, "about", "team.html"))
	assert.FileExists(t, filepath.Join(s.dest, "index.html"))
}

func TestRebuilderReportsFailures(t *testing.T) {
	s := newSite(t)
	s.write(t, filepath.Join(s.src, "index.html"), `<comp1 type="missing">x</comp1>`)

	err := s.rebuilder.Handle([]ChangeEvent{{Type: EventTypeModified, Path: filepath.Join(s.src, "index.html")}})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrTemplateNotFound)

	rb := s.last()
	assert.Equal(t, err, rb.Err)
	assert.Empty(t, rb.Files)
	assert.Equal(t, `<div class="v1">home</div>`, s.output(t, "index.html"))
}

func TestRebuilderWatch(t *testing.T) {
	s := newSite(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fw, err := s.rebuilder.Watch(ctx, 20*time.Millisecond)
	require.NoError(t, err)
	defer fw.Stop()

	s.write(t, filepath.Join(s.components, "comp1.html"), `<div class="watched">{{ html|safe }}</div>`)

	// OnRebuild runs after the output is written, so wait for both.
	require.Eventually(t, func() bool {
		if s.count() == 0 || !s.last().Full {
			return false
		}
		b, err := os.ReadFile(filepath.Join(s.dest, "index.html"))

		return err == nil && string(b) == `<div class="watched">home</div>`
	}, 5*time.Second, 20*time.Millisecond)
	assert.NoError(t, s.last().Err)
}
