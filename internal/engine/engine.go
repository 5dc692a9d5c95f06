// Package engine expands custom tags in markup documents.
//
// Every template unit in the components folder contributes one tag name to
// the engine's vocabulary. ProcessMarkup parses a document, renders each
// vocabulary tag through its template, reprocesses the rendered output so
// that tags produced by templates expand too, and splices the result back in
// place of the tag. Script blocks typed text/html or text/template get the
// same treatment on their text.
package engine

import (
	"context"
	stderrors "errors"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/conneroisu/tagforge/internal/dom"
	"github.com/conneroisu/tagforge/internal/errors"
	"github.com/conneroisu/tagforge/internal/logging"
	"github.com/conneroisu/tagforge/internal/props"
	"github.com/conneroisu/tagforge/internal/registry"
	"github.com/conneroisu/tagforge/internal/renderer"
	"github.com/conneroisu/tagforge/internal/scanner"
)

// Default option values.
const (
	DefaultComponentsFolder = "components"
	DefaultAttrNodePrefix   = "_"
	DefaultTemplateExt      = ".html"
	DefaultMaxDepth         = 64
)

// Hook transforms a whole document before or after processing.
type Hook func(markup string) string

// Options configures an Engine. Zero values select the defaults.
type Options struct {
	ComponentsFolder  string
	AttrNodePrefix    string
	TemplateExt       string
	BeforeProcessHTML Hook
	AfterProcessHTML  Hook
	XMLMode           bool
	MaxDepth          int
	Logger            logging.Logger
}

func identity(s string) string { return s }

func (o Options) withDefaults() Options {
	if o.ComponentsFolder == "" {
		o.ComponentsFolder = DefaultComponentsFolder
	}
	if o.AttrNodePrefix == "" {
		o.AttrNodePrefix = DefaultAttrNodePrefix
	}
	if o.TemplateExt == "" {
		o.TemplateExt = DefaultTemplateExt
	}
	if o.BeforeProcessHTML == nil {
		o.BeforeProcessHTML = identity
	}
	if o.AfterProcessHTML == nil {
		o.AfterProcessHTML = identity
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.Logger == nil {
		o.Logger = logging.NewNopLogger()
	}

	return o
}

// scriptMarkup decides whether a template script holds markup (or a bare
// #id reference) worth expanding.
var scriptMarkup = regexp.MustCompile(`^(?:[^#<]*(<[\w\W]+>)[^>]*$|#([\w\-]*)$)`)

// Engine expands custom tags. It is safe for concurrent use; separate
// engines never share caches.
type Engine struct {
	opts     Options
	mode     dom.Mode
	logger   logging.Logger
	registry *registry.ComponentRegistry
	scanner  *scanner.ComponentScanner
	resolver *renderer.Resolver
	builder  *props.Builder

	vocabMu sync.Mutex
	vocab   []string
	built   bool
}

// New creates an engine. The components folder is read lazily, on the first
// call that needs the vocabulary.
func New(opts Options) *Engine {
	opts = opts.withDefaults()

	mode := dom.HTML
	if opts.XMLMode {
		mode = dom.XML
	}

	logger := opts.Logger.WithComponent("engine")
	reg := registry.NewComponentRegistry()

	return &Engine{
		opts:     opts,
		mode:     mode,
		logger:   logger,
		registry: reg,
		scanner:  scanner.NewComponentScanner(reg, opts.TemplateExt),
		resolver: renderer.NewResolver(opts.ComponentsFolder, opts.TemplateExt, renderer.WithLogger(logger)),
		builder:  props.NewBuilder(opts.AttrNodePrefix, mode),
	}
}

// Options returns the engine's effective options.
func (e *Engine) Options() Options {
	return e.opts
}

// Mode returns the parse and serialize mode.
func (e *Engine) Mode() dom.Mode {
	return e.mode
}

// Registry returns the registry holding the discovered template units.
func (e *Engine) Registry() *registry.ComponentRegistry {
	return e.registry
}

// BuildTagVocabulary scans the components folder once and returns the sorted
// tag names. Later calls return the cached list until ResetVocabulary.
func (e *Engine) BuildTagVocabulary() ([]string, error) {
	e.vocabMu.Lock()
	defer e.vocabMu.Unlock()

	if !e.built {
		if err := e.scanner.ScanDirectory(e.opts.ComponentsFolder); err != nil {
			return nil, err
		}
		e.vocab = e.registry.Names()
		e.built = true
		e.logger.Debug(context.Background(), "built tag vocabulary",
			"folder", e.opts.ComponentsFolder, "tags", len(e.vocab))
	}

	return append([]string(nil), e.vocab...), nil
}

// Fingerprint summarizes the template sources behind the vocabulary. It
// changes whenever a rescan finds a unit added, removed or edited.
func (e *Engine) Fingerprint() (string, error) {
	if _, err := e.BuildTagVocabulary(); err != nil {
		return "", err
	}

	units := e.registry.GetAll()
	sort.Slice(units, func(i, j int) bool { return units[i].Name < units[j].Name })

	var b strings.Builder
	b.WriteString(e.mode.String())
	for _, u := range units {
		b.WriteString("|")
		b.WriteString(u.Name)
		b.WriteString(":")
		b.WriteString(u.Hash)
	}

	return b.String(), nil
}

// ResetVocabulary forgets the vocabulary so that the next build rescans the
// components folder. Compiled templates are kept.
func (e *Engine) ResetVocabulary() {
	e.vocabMu.Lock()
	defer e.vocabMu.Unlock()

	e.vocab = nil
	e.built = false
}

// ResolveTemplate returns the cached template for a tag and optional type.
func (e *Engine) ResolveTemplate(name, typ string) (*renderer.Template, error) {
	return e.resolver.Resolve(name, typ)
}

// ResetTemplateCache drops every compiled template and returns e. The
// vocabulary is kept.
func (e *Engine) ResetTemplateCache() *Engine {
	e.resolver.Reset()

	return e
}

// ProcessMarkup expands every custom tag in markup and returns the
// serialized result.
func (e *Engine) ProcessMarkup(markup string) (string, error) {
	return e.process(markup, nil)
}

// Tree parses markup in the engine's mode without expanding anything.
func (e *Engine) Tree(markup string) (*dom.Node, error) {
	doc, err := dom.Parse(e.opts.BeforeProcessHTML(markup), e.mode)
	if err != nil {
		return nil, parseError(err)
	}

	return doc, nil
}

// process runs one level of expansion. chain lists the tags whose rendered
// output is being processed, outermost first.
func (e *Engine) process(markup string, chain []string) (string, error) {
	markup = e.opts.BeforeProcessHTML(markup)

	vocab, err := e.BuildTagVocabulary()
	if err != nil {
		return "", err
	}

	doc, err := dom.Parse(markup, e.mode)
	if err != nil {
		return "", parseError(err)
	}

	for _, n := range dom.FindByNames(doc, vocab) {
		// Descendants of an expanded tag were handled by its recursive pass.
		if !n.Attached(doc) {
			continue
		}
		if err := e.expandInPlace(n, chain); err != nil {
			return "", err
		}
	}

	for _, s := range dom.FindByAttr(doc, "script", "type", "text/html", "text/template") {
		if !s.Attached(doc) {
			continue
		}
		if err := e.expandScript(s, chain); err != nil {
			return "", err
		}
	}

	return e.opts.AfterProcessHTML(dom.Render(doc, e.mode)), nil
}

// expandInPlace renders n, reprocesses the output and splices it into the
// tree where n was.
func (e *Engine) expandInPlace(n *dom.Node, chain []string) error {
	name := n.Name
	next, err := e.descend(chain, name)
	if err != nil {
		return err
	}

	rendered, err := e.expand(n, len(chain))
	if err != nil {
		return err
	}

	rendered, err = e.process(rendered, next)
	if err != nil {
		return err
	}

	fragment, err := dom.ParseFragment(rendered, e.mode)
	if err != nil {
		return wrapTag(parseError(err), name)
	}
	if !n.ReplaceWith(fragment...) {
		e.logger.Warn(context.Background(), nil, "tag has no splice site; left in place", "tag", name)
	}

	return nil
}

// expand builds the context for n and renders its template. The output is
// returned as is; callers decide how to reprocess and splice it.
func (e *Engine) expand(n *dom.Node, depth int) (string, error) {
	ctx := e.builder.Build(n)
	typ := ctx.Type()

	e.logger.Debug(context.Background(), "expanding tag", "tag", n.Name, "type", typ, "depth", depth)

	tpl, err := e.resolver.Resolve(n.Name, typ)
	if err != nil {
		return "", wrapTag(err, n.Name)
	}

	out, err := tpl.Render(ctx)
	if err != nil {
		return "", wrapTag(err, n.Name)
	}

	return out, nil
}

// expandScript reprocesses the text of a template script when it looks like
// markup. The result goes back into the first CDATA section when the script
// has one, otherwise it replaces the script's text.
func (e *Engine) expandScript(s *dom.Node, chain []string) error {
	text := s.TextContent()
	if !scriptMarkup.MatchString(text) {
		return nil
	}

	next, err := e.descend(chain, "script")
	if err != nil {
		return err
	}

	out, err := e.process(text, next)
	if err != nil {
		return err
	}

	for _, c := range s.Children {
		if c.Type == dom.CDATANode {
			c.Data = out
			s.SetChildren(c)

			return nil
		}
	}
	s.SetChildren(dom.NewText(out))

	return nil
}

// descend extends chain by name, failing once the nesting limit is reached.
func (e *Engine) descend(chain []string, name string) ([]string, error) {
	next := make([]string, len(chain), len(chain)+1)
	copy(next, chain)
	next = append(next, name)

	if len(chain) >= e.opts.MaxDepth {
		return nil, errors.NewRecursionLimitError(next, e.opts.MaxDepth).WithComponent(name)
	}

	return next, nil
}

func parseError(err error) error {
	return errors.Wrap(err, errors.ErrorTypeValidation, errors.ErrCodeValidationFailed, "parsing markup")
}

// wrapTag records the failing tag on err unless an inner expansion already
// did.
func wrapTag(err error, tag string) error {
	var te *errors.TagforgeError
	if stderrors.As(err, &te) {
		if te.Component == "" {
			te.Component = tag
		}

		return te
	}

	return errors.Wrap(err, errors.ErrorTypeTemplate, errors.ErrCodeTemplateRender, "expanding tag").WithComponent(tag)
}
