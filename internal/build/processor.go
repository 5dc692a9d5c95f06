// Package build runs the engine over source files and writes the results.
//
// ProcessFile handles one document; ProcessDirectory walks a source tree,
// picks the files matching a set of glob patterns and processes them with a
// bounded worker pool, mirroring relative paths into the destination.
package build

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/conneroisu/tagforge/internal/errors"
	"github.com/conneroisu/tagforge/internal/logging"
)

// DefaultPatterns selects the files ProcessDirectory handles when no pattern
// is given.
var DefaultPatterns = []string{"*.html"}

// FailurePolicy decides what a directory build does after a file fails.
type FailurePolicy string

const (
	// FailFast stops the batch at the first failure and returns it.
	FailFast FailurePolicy = "fail_fast"
	// Continue processes every file and returns an aggregate of the failures.
	Continue FailurePolicy = "continue"
)

// ParseFailurePolicy maps a configuration value to a FailurePolicy. The
// empty string selects FailFast.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", FailFast:
		return FailFast, nil
	case Continue:
		return Continue, nil
	default:
		return FailFast, errors.NewConfigError(errors.ErrCodeConfigInvalid,
			"unknown failure policy "+s+" (want fail_fast or continue)")
	}
}

// Markup is the engine surface the processor needs.
type Markup interface {
	ProcessMarkup(markup string) (string, error)
}

// Fingerprinter is implemented by engines that can summarize every input
// besides the document itself. Output caching needs it.
type Fingerprinter interface {
	Fingerprint() (string, error)
}

// Options configures a Processor.
type Options struct {
	// Workers bounds concurrent file processing. Values below 1 mean 1.
	Workers int
	Policy  FailurePolicy
	// Exclude lists directories never walked, typically the components
	// folder and the destination when they sit inside the source tree.
	Exclude []string
	Logger  logging.Logger
	// Cache reuses the output of documents whose content and engine
	// fingerprint are unchanged. Ignored unless the engine is a
	// Fingerprinter.
	Cache *OutputCache
}

// Processor writes expanded copies of source files.
type Processor struct {
	engine  Markup
	workers int
	policy  FailurePolicy
	exclude []string
	logger  logging.Logger
	metrics *BuildMetrics
	cache   *OutputCache
}

// NewProcessor creates a processor running engine over every file.
func NewProcessor(engine Markup, opts Options) *Processor {
	p := &Processor{
		engine:  engine,
		workers: opts.Workers,
		policy:  opts.Policy,
		logger:  opts.Logger,
		metrics: NewBuildMetrics(),
	}
	if p.workers < 1 {
		p.workers = 1
	}
	if p.policy == "" {
		p.policy = FailFast
	}
	if p.logger == nil {
		p.logger = logging.NewNopLogger()
	}
	p.logger = p.logger.WithComponent("build")
	if _, ok := engine.(Fingerprinter); ok {
		p.cache = opts.Cache
	}
	for _, dir := range opts.Exclude {
		if abs, err := filepath.Abs(dir); err == nil {
			p.exclude = append(p.exclude, abs)
		}
	}

	return p
}

// Metrics returns the processor's running totals.
func (p *Processor) Metrics() *BuildMetrics {
	return p.metrics
}

// Cache returns the output cache, nil when caching is off.
func (p *Processor) Cache() *OutputCache {
	return p.cache
}

// Result summarizes a directory build.
type Result struct {
	// Processed and Failed hold source-relative slash paths, sorted.
	Processed []string
	Failed    []string
	Duration  time.Duration
}

// ProcessFile expands srcDir/rel and writes the output to destDir/rel,
// creating missing directories. Every error names rel.
func (p *Processor) ProcessFile(ctx context.Context, rel, srcDir, destDir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	err := p.processFile(rel, srcDir, destDir)
	p.metrics.RecordFile(time.Since(start), err)

	if err != nil {
		p.logger.Error(ctx, err, "file failed", "file", rel)

		return err
	}
	p.logger.Info(ctx, "processed file", "file", rel, "duration", time.Since(start).String())

	return nil
}

func (p *Processor) processFile(rel, srcDir, destDir string) error {
	if !filepath.IsLocal(rel) {
		return errors.ErrBuildFailed(rel, errors.ErrPathTraversal(rel))
	}

	src := filepath.Join(srcDir, rel)
	content, err := os.ReadFile(src)
	if err != nil {
		return errors.ErrBuildFailed(rel, errors.WrapIO(err, src, "reading source"))
	}

	out, err := p.expand(src, content)
	if err != nil {
		return errors.ErrBuildFailed(rel, err)
	}

	dest := filepath.Join(destDir, rel)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errors.ErrBuildFailed(rel, errors.WrapIO(err, filepath.Dir(dest), "creating output directory"))
	}
	if err := os.WriteFile(dest, []byte(out), 0o644); err != nil {
		return errors.ErrBuildFailed(rel, errors.WrapIO(err, dest, "writing output"))
	}

	return nil
}

// expand runs the engine over content, going through the output cache
// when there is one.
func (p *Processor) expand(key string, content []byte) (string, error) {
	if p.cache == nil {
		return p.engine.ProcessMarkup(string(content))
	}

	fp, err := p.engine.(Fingerprinter).Fingerprint()
	if err != nil {
		return p.engine.ProcessMarkup(string(content))
	}
	hash := ContentHash(content, []byte(fp))
	if out, ok := p.cache.Get(key, hash); ok {
		p.metrics.RecordCacheHit()

		return string(out), nil
	}

	out, err := p.engine.ProcessMarkup(string(content))
	if err != nil {
		p.cache.Invalidate(key)

		return "", err
	}
	p.cache.Set(key, hash, []byte(out))

	return out, nil
}

// ProcessDirectory processes every file under srcDir whose relative path or
// base name matches one of patterns. With FailFast the first failure cancels
// the files not yet started and is returned; with Continue every file is
// attempted and the failures come back as one aggregate error.
func (p *Processor) ProcessDirectory(ctx context.Context, patterns []string, srcDir, destDir string) (*Result, error) {
	start := time.Now()
	perf := logging.StartOperation(p.logger, "process_directory")

	files, err := p.Match(patterns, srcDir, destDir)
	if err != nil {
		perf.EndWithError(ctx, err)

		return nil, err
	}

	result, err := p.run(ctx, files, srcDir, destDir)
	result.Duration = time.Since(start)
	if err != nil {
		perf.EndWithError(ctx, err)

		return result, err
	}
	perf.End(ctx, "files", len(result.Processed))

	return result, nil
}

// Match lists the files ProcessDirectory would process, as sorted slash
// paths relative to srcDir. Excluded directories and destDir are skipped.
func (p *Processor) Match(patterns []string, srcDir, destDir string) ([]string, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	for _, pattern := range patterns {
		if _, err := path.Match(pattern, ""); err != nil {
			return nil, errors.NewValidationError(errors.ErrCodeValidationFailed, "invalid pattern "+pattern)
		}
	}

	info, err := os.Stat(srcDir)
	if err != nil {
		return nil, errors.WrapIO(err, srcDir, "source directory unavailable")
	}
	if !info.IsDir() {
		return nil, errors.NewIOError(errors.ErrCodeIO, "source is not a directory", nil).WithLocation(srcDir, 0, 0)
	}

	skip := append([]string(nil), p.exclude...)
	if destDir != "" {
		if abs, err := filepath.Abs(destDir); err == nil {
			skip = append(skip, abs)
		}
	}

	var files []string
	err = filepath.WalkDir(srcDir, func(walked string, d fs.DirEntry, err error) error {
		if err != nil {
			return errors.WrapIO(err, walked, "walking source directory")
		}
		if d.IsDir() {
			if walked != srcDir && excluded(walked, skip) {
				return filepath.SkipDir
			}

			return nil
		}

		rel, err := filepath.Rel(srcDir, walked)
		if err != nil {
			return errors.WrapIO(err, walked, "resolving relative path")
		}
		rel = filepath.ToSlash(rel)
		if MatchPatterns(patterns, rel) {
			files = append(files, rel)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	return files, nil
}

func (p *Processor) run(parent context.Context, files []string, srcDir, destDir string) (*Result, error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	result := &Result{}
	collector := errors.NewErrorCollector()

	var (
		mu       sync.Mutex
		firstErr error
		wg       sync.WaitGroup
	)
	jobs := make(chan string)

	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rel := range jobs {
				if ctx.Err() != nil {
					continue
				}
				err := p.ProcessFile(ctx, rel, srcDir, destDir)

				mu.Lock()
				switch {
				case err == nil:
					result.Processed = append(result.Processed, rel)
				case ctx.Err() != nil && err == ctx.Err():
				default:
					result.Failed = append(result.Failed, rel)
					collector.AddError(err)
					if p.policy == FailFast && firstErr == nil {
						firstErr = err
						cancel()
					}
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for _, rel := range files {
		select {
		case jobs <- rel:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	sort.Strings(result.Processed)
	sort.Strings(result.Failed)

	if firstErr != nil {
		return result, firstErr
	}
	if err := parent.Err(); err != nil {
		return result, err
	}

	return result, collector.Err()
}

// MatchPatterns reports whether the slash path rel, or its base name,
// matches one of patterns. No patterns means DefaultPatterns.
func MatchPatterns(patterns []string, rel string) bool {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	base := path.Base(rel)
	for _, pattern := range patterns {
		if ok, _ := path.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := path.Match(pattern, base); ok {
			return true
		}
	}

	return false
}

func excluded(dir string, skip []string) bool {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	for _, s := range skip {
		if abs == s {
			return true
		}
	}

	return false
}
