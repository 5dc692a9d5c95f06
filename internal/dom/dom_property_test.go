//go:build property

package dom

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// genMarkup produces markup from a small alphabet of tags, text, entities and
// stray delimiters so that nesting, void elements and malformed input all show up.
func genMarkup() gopter.Gen {
	pieces := []string{
		"<div>", "</div>", "<p class=\"x\">", "</p>", "<br>", "<br/>", "<hr>",
		"<input type=\"text\">", "<span>", "</span>", "text", " ", "\n",
		"&amp;", "&lt;", "<", ">", "<!-- c -->", "<script>", "</script>",
		"<![CDATA[x]]>", "<a href='y'>", "</a>",
	}

	return gen.SliceOf(gen.IntRange(0, len(pieces)-1)).Map(func(idx []int) string {
		var b strings.Builder
		for _, i := range idx {
			b.WriteString(pieces[i])
		}

		return b.String()
	})
}

func TestRoundTripProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("parse then render is the identity", prop.ForAll(
		func(markup string) bool {
			return Render(ParseHTML(markup), HTML) == markup
		},
		genMarkup(),
	))

	properties.Property("every child points at its parent", prop.ForAll(
		func(markup string) bool {
			ok := true
			var walk func(*Node)
			walk = func(n *Node) {
				for _, c := range n.Children {
					if c.Parent != n {
						ok = false
					}
					walk(c)
				}
			}
			walk(ParseHTML(markup))

			return ok
		},
		genMarkup(),
	))

	properties.Property("splicing keeps sibling order", prop.ForAll(
		func(n int) bool {
			doc := ParseHTML("<div>a<x></x>b</div>")
			x := FindByNames(doc, []string{"x"})[0]
			nodes := make([]*Node, n)
			var want strings.Builder
			want.WriteString("<div>a")
			for i := range nodes {
				nodes[i] = NewText(string(rune('A' + i)))
				want.WriteString(nodes[i].Data)
			}
			want.WriteString("b</div>")

			return x.ReplaceWith(nodes...) && Render(doc, HTML) == want.String()
		},
		gen.IntRange(0, 20),
	))

	properties.TestingRun(t)
}
