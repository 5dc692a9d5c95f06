package watcher

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/conneroisu/tagforge/internal/build"
	"github.com/conneroisu/tagforge/internal/engine"
	"github.com/conneroisu/tagforge/internal/errors"
	"github.com/conneroisu/tagforge/internal/logging"
)

// Rebuild describes one reaction to a batch of changes.
type Rebuild struct {
	// Full is set when a component changed and every document was rebuilt.
	Full bool
	// Files lists the source-relative slash paths written, Removed the
	// outputs deleted because their source went away.
	Files   []string
	Removed []string
	Err     error
}

// RebuildConfig configures a Rebuilder.
type RebuildConfig struct {
	Src      string
	Dest     string
	Patterns []string
	Logger   logging.Logger
	// OnRebuild runs after every batch that touched the output.
	OnRebuild func(Rebuild)
}

// Rebuilder keeps Dest in step with Src. A component change drops the
// engine's vocabulary and template cache and rebuilds everything; a source
// change rebuilds or removes just the documents involved.
type Rebuilder struct {
	engine     *engine.Engine
	processor  *build.Processor
	components string
	src        string
	dest       string
	patterns   []string
	logger     logging.Logger
	onRebuild  func(Rebuild)
}

// NewRebuilder creates a Rebuilder writing through processor.
func NewRebuilder(eng *engine.Engine, processor *build.Processor, cfg RebuildConfig) *Rebuilder {
	r := &Rebuilder{
		engine:    eng,
		processor: processor,
		patterns:  cfg.Patterns,
		logger:    cfg.Logger,
		onRebuild: cfg.OnRebuild,
	}
	if r.logger == nil {
		r.logger = logging.NewNopLogger()
	}
	r.logger = r.logger.WithComponent("rebuild")
	r.components = absPath(eng.Options().ComponentsFolder)
	r.src = absPath(cfg.Src)
	r.dest = absPath(cfg.Dest)

	return r
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}

	return filepath.Clean(p)
}

// within reports whether path is dir or lies below it.
func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)

	return err == nil && filepath.IsLocal(rel)
}

// Handle is a ChangeHandler.
func (r *Rebuilder) Handle(events []ChangeEvent) error {
	ctx := context.Background()

	var (
		full    bool
		files   []string
		removed []string
	)
	for _, ev := range events {
		p := absPath(ev.Path)
		switch {
		case within(p, r.components):
			full = true
		case within(p, r.dest) || !within(p, r.src):
		default:
			rel, err := filepath.Rel(r.src, p)
			if err != nil {
				continue
			}
			rel = filepath.ToSlash(rel)
			if !build.MatchPatterns(r.patterns, rel) {
				continue
			}
			if ev.Type.Gone() {
				removed = append(removed, rel)
			} else {
				files = append(files, rel)
			}
		}
	}

	var rb Rebuild
	switch {
	case full:
		rb = r.Full(ctx)
	case len(files) > 0 || len(removed) > 0:
		rb = r.partial(ctx, files, removed)
	default:
		return nil
	}

	if r.onRebuild != nil {
		r.onRebuild(rb)
	}

	return rb.Err
}

// Full resets the engine caches and rebuilds every document.
func (r *Rebuilder) Full(ctx context.Context) Rebuild {
	r.engine.ResetVocabulary()
	r.engine.ResetTemplateCache()

	rb := Rebuild{Full: true}
	result, err := r.processor.ProcessDirectory(ctx, r.patterns, r.src, r.dest)
	if result != nil {
		rb.Files = result.Processed
	}
	rb.Err = err
	r.logger.Info(ctx, "full rebuild", "files", len(rb.Files), "failed", err != nil)

	return rb
}

func (r *Rebuilder) partial(ctx context.Context, files, removed []string) Rebuild {
	collector := errors.NewErrorCollector()
	rb := Rebuild{}

	for _, rel := range removed {
		out := filepath.Join(r.dest, filepath.FromSlash(rel))
		if err := os.Remove(out); err != nil && !os.IsNotExist(err) {
			collector.AddError(errors.WrapIO(err, out, "removing stale output"))
			continue
		}
		rb.Removed = append(rb.Removed, rel)
	}

	for _, rel := range files {
		if err := r.processor.ProcessFile(ctx, filepath.FromSlash(rel), r.src, r.dest); err != nil {
			collector.AddError(err)
			continue
		}
		rb.Files = append(rb.Files, rel)
	}

	rb.Err = collector.Err()

	return rb
}

// Watch starts a FileWatcher over the source tree and the components
// folder that feeds its batches to Handle. Stop the returned watcher when
// done.
func (r *Rebuilder) Watch(ctx context.Context, debounce time.Duration) (*FileWatcher, error) {
	fw, err := NewFileWatcher(debounce, r.logger)
	if err != nil {
		return nil, err
	}

	fw.AddFilter(NoHiddenFilter)
	fw.AddFilter(NoGitFilter)
	fw.AddHandler(r.Handle)

	roots := []string{r.src}
	if !within(r.components, r.src) {
		roots = append(roots, r.components)
	}
	for _, root := range roots {
		if err := fw.AddRecursive(root); err != nil {
			_ = fw.Stop()

			return nil, errors.WrapIO(err, root, "watching directory")
		}
	}

	if err := fw.Start(ctx); err != nil {
		_ = fw.Stop()

		return nil, err
	}

	return fw, nil
}
