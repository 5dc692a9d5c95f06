// Package props builds the data context handed to a template for one tag
// expansion.
//
// A context is assembled from the tag's literal attributes, its
// attribute-shorthand children (elements whose name carries the configured
// prefix, e.g. <_title>markup</_title>), its <item> children and whatever
// markup is left over as the tag body.
package props

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/conneroisu/tagforge/internal/dom"
)

// Reserved context keys.
const (
	KeyHTML    = "html"
	KeyItems   = "items"
	KeyData    = "data"
	KeyDataStr = "dataStr"
	KeyType    = "type"

	// ItemTag names the children folded into the items list.
	ItemTag = "item"

	dataPrefix = "data-"
)

// Context is the data passed to a template. It is built fresh for every
// expansion and never retained.
type Context map[string]any

// Type returns the template subtype selected by the type attribute or a
// type shorthand child, or "" when none is set.
func (c Context) Type() string {
	s, _ := c[KeyType].(string)

	return strings.TrimSpace(s)
}

// Item is one <item> child.
type Item struct {
	HTML     string
	Value    string
	HasValue bool
}

// Extraction holds what Extract removed from a tag node.
type Extraction struct {
	// Attrs are the shorthand values, prefix stripped, in declaration order.
	// Val holds inner markup.
	Attrs []dom.Attribute
	Items []Item
}

// Builder turns tag nodes into contexts.
type Builder struct {
	prefix *regexp.Regexp
	mode   dom.Mode
}

// NewBuilder returns a Builder recognizing shorthand children named with
// prefix and serializing markup in mode.
func NewBuilder(prefix string, mode dom.Mode) *Builder {
	return &Builder{
		prefix: regexp.MustCompile("^" + regexp.QuoteMeta(prefix)),
		mode:   mode,
	}
}

// Extract strips shorthand and item children out of n. Every other child
// stays in place, in its original order. Markup inside the removed children
// is captured as written; custom tags in it are not expanded here.
func (b *Builder) Extract(n *dom.Node) Extraction {
	var ex Extraction
	if n == nil {
		return ex
	}

	kept := make([]*dom.Node, 0, len(n.Children))
	for _, c := range n.Children {
		switch {
		case c.Type == dom.ElementNode && b.prefix.MatchString(c.Name):
			ex.Attrs = append(ex.Attrs, dom.Attribute{
				Key: b.prefix.ReplaceAllString(c.Name, ""),
				Val: dom.InnerHTML(c, b.mode),
			})
		case c.IsElement(ItemTag):
			item := Item{HTML: dom.InnerHTML(c, b.mode)}
			if v, ok := c.GetAttr("value"); ok {
				item.Value = html.UnescapeString(v)
				item.HasValue = true
			}
			ex.Items = append(ex.Items, item)
		default:
			kept = append(kept, c)

			continue
		}
		if c.Parent == n {
			c.Parent = nil
		}
	}
	n.Children = kept

	return ex
}

// FromAttributes flattens n's literal attributes, entity-decoded, and the
// shorthand values into one context. Shorthand values win over literal
// attributes of the same name. Every data-* key is also copied into the data
// map and serialized, in declaration order, into dataStr. n is not modified.
func (b *Builder) FromAttributes(n *dom.Node, shorthand []dom.Attribute) Context {
	ctx := make(Context)

	var keys []string
	set := func(key, val string) {
		if _, seen := ctx[key]; !seen {
			keys = append(keys, key)
		}
		ctx[key] = val
	}

	if n != nil {
		for _, a := range n.Attr {
			set(a.Key, a.Value())
		}
	}
	for _, a := range shorthand {
		set(a.Key, a.Val)
	}

	data := make(map[string]any)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		if !strings.HasPrefix(key, dataPrefix) {
			continue
		}
		val, _ := ctx[key].(string)
		data[strings.TrimPrefix(key, dataPrefix)] = val
		parts = append(parts, key+`="`+html.EscapeString(val)+`"`)
	}
	ctx[KeyData] = data
	ctx[KeyDataStr] = strings.Join(parts, " ")

	return ctx
}

// Build extracts shorthand and item children from n, then returns the full
// context: attributes, data, items and the remaining inner markup as html.
// It always returns a non-nil context with items, data, dataStr and html set.
func (b *Builder) Build(n *dom.Node) Context {
	ex := b.Extract(n)
	ctx := b.FromAttributes(n, ex.Attrs)

	items := make([]map[string]any, 0, len(ex.Items))
	for _, it := range ex.Items {
		entry := map[string]any{KeyHTML: it.HTML}
		if it.HasValue {
			entry["value"] = it.Value
		}
		items = append(items, entry)
	}
	ctx[KeyItems] = items
	ctx[KeyHTML] = dom.InnerHTML(n, b.mode)

	return ctx
}
