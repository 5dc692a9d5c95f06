// Package renderer resolves tag names to compiled pongo2 templates.
//
// A template unit lives at <folder>/<name><ext>, or at
// <folder>/<name>/<type><ext> for a typed variant. Compiled templates are
// cached per (name, type) until Reset is called.
package renderer

import (
	"context"
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"

	"github.com/conneroisu/tagforge/internal/errors"
	"github.com/conneroisu/tagforge/internal/logging"
	"github.com/conneroisu/tagforge/internal/props"
)

type cacheKey struct {
	name string
	typ  string
}

// Resolver compiles and caches template units from one components folder.
type Resolver struct {
	folder string
	ext    string
	logger logging.Logger

	mu    sync.RWMutex
	set   *pongo2.TemplateSet
	cache map[cacheKey]*Template
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for cache activity.
func WithLogger(l logging.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver creates a resolver for the templates in folder whose files end
// in ext (".html" when empty).
func NewResolver(folder, ext string, opts ...Option) *Resolver {
	if ext == "" {
		ext = ".html"
	}
	r := &Resolver{
		folder: folder,
		ext:    ext,
		logger: logging.NewNopLogger(),
		cache:  make(map[cacheKey]*Template),
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Folder returns the components folder.
func (r *Resolver) Folder() string {
	return r.folder
}

// Path returns the template file a (name, typ) pair resolves to.
func (r *Resolver) Path(name, typ string) string {
	if typ == "" {
		return filepath.Join(r.folder, name+r.ext)
	}

	return filepath.Join(r.folder, name, typ+r.ext)
}

// Resolve returns the compiled template for name and typ, compiling it on
// first use. Repeated calls return the same *Template until Reset.
func (r *Resolver) Resolve(name, typ string) (*Template, error) {
	key := cacheKey{name: name, typ: typ}

	r.mu.RLock()
	t, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return t, nil
	}

	if err := validateComponentName(name); err != nil {
		return nil, err.WithComponent(name)
	}
	if typ != "" {
		if err := validateComponentName(typ); err != nil {
			return nil, err.WithComponent(name)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.cache[key]; ok {
		return t, nil
	}

	path := r.Path(name, typ)
	src, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.NewTemplateNotFoundError(name, typ, path, err)
		}

		return nil, errors.WrapIO(err, path, "reading template").WithComponent(name)
	}

	tpl, err := r.templateSet().FromBytes(src)
	if err != nil {
		return nil, errors.NewTemplateCompileError(name, path, err)
	}

	t = &Template{Name: name, Type: typ, Path: path, tpl: tpl}
	r.cache[key] = t
	r.logger.Debug(context.Background(), "compiled template", "tag", name, "type", typ, "path", path)

	return t, nil
}

// templateSet must be called with the write lock held.
func (r *Resolver) templateSet() *pongo2.TemplateSet {
	if r.set != nil {
		return r.set
	}

	registerFilters()

	loader, err := pongo2.NewLocalFileSystemLoader(r.folder)
	if err != nil {
		loader = pongo2.MustNewLocalFileSystemLoader("")
	}
	r.set = pongo2.NewSet("tagforge:"+r.folder, loader)

	return r.set
}

// Reset drops every compiled template, including the ones pulled in through
// include or extends, and returns r.
func (r *Resolver) Reset() *Resolver {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cache = make(map[cacheKey]*Template)
	r.set = nil

	return r
}

// Len reports the number of cached templates.
func (r *Resolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.cache)
}

// Template is one compiled template unit.
type Template struct {
	Name string
	Type string
	Path string

	tpl *pongo2.Template
}

// Render executes the template against ctx.
func (t *Template) Render(ctx props.Context) (string, error) {
	out, err := t.tpl.Execute(templateContext(ctx))
	if err != nil {
		return "", errors.NewTemplateRenderError(t.Name, err).WithLocation(t.Path, 0, 0)
	}

	return out, nil
}

// templateContext converts ctx into a pongo2 context. pongo2 rejects
// top-level keys outside [A-Za-z0-9_], so such keys are exposed under an
// alias with every other character replaced by '_'. An alias never shadows a
// real key; when two keys share an alias the lowest sorted key wins.
func templateContext(ctx props.Context) pongo2.Context {
	out := make(pongo2.Context, len(ctx))
	var aliased []string
	for k, v := range ctx {
		if isIdentifier(k) {
			out[k] = v

			continue
		}
		aliased = append(aliased, k)
	}
	sort.Strings(aliased)
	for _, k := range aliased {
		alias := identifier(k)
		if alias == "" {
			continue
		}
		if _, taken := out[alias]; taken {
			continue
		}
		out[alias] = ctx[k]
	}

	return out
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isIdentByte(s[i]) {
			return false
		}
	}

	return true
}

func identifier(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x80 && isIdentByte(byte(r)) {
			return r
		}

		return '_'
	}, s)
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// validateComponentName keeps tag names and types inside the components
// folder.
func validateComponentName(name string) *errors.TagforgeError {
	if name == "" || name == "." {
		return errors.ErrInvalidPath(name)
	}
	if strings.Contains(name, "..") {
		return errors.ErrPathTraversal(name)
	}
	if filepath.IsAbs(name) || strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return errors.ErrInvalidPath(name)
	}

	return nil
}
