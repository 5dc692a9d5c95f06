package dom

import (
	"fmt"
	"strings"

	"github.com/xlab/treeprint"
)

// Select returns every element below root accepted by match, in document
// order. Matches nested inside other matches are included.
func Select(root *Node, match func(*Node) bool) []*Node {
	var out []*Node
	var walk func(*Node)
	walk = func(n *Node) {
		for _, c := range n.Children {
			if c.Type != ElementNode {
				continue
			}
			if match(c) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	if root != nil {
		walk(root)
	}

	return out
}

// FindByNames selects elements whose name is in names. Names compare
// case-sensitively.
func FindByNames(root *Node, names []string) []*Node {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}

	return Select(root, func(n *Node) bool {
		_, ok := set[n.Name]

		return ok
	})
}

// FindByAttr selects elements named name, ignoring case, whose attribute key
// is exactly one of values.
func FindByAttr(root *Node, name, key string, values ...string) []*Node {
	return Select(root, func(n *Node) bool {
		if !strings.EqualFold(n.Name, name) {
			return false
		}
		v, ok := n.GetAttr(key)
		if !ok {
			return false
		}
		for _, want := range values {
			if v == want {
				return true
			}
		}

		return false
	})
}

// Dump renders the structure of the tree below n for debugging.
func Dump(n *Node) string {
	tree := treeprint.New()
	dump(tree.AddBranch(label(n)), n)

	return tree.String()
}

func dump(tree treeprint.Tree, n *Node) {
	for _, c := range n.Children {
		if c.Type == ElementNode && len(c.Children) > 0 {
			dump(tree.AddBranch(label(c)), c)

			continue
		}
		tree.AddNode(label(c))
	}
}

func label(n *Node) string {
	switch n.Type {
	case DocumentNode:
		return "#document"
	case ElementNode:
		var b strings.Builder
		b.WriteByte('<')
		b.WriteString(n.Name)
		writeAttrs(&b, n.Attr)
		if n.SelfClosing {
			b.WriteString("/")
		}
		b.WriteByte('>')

		return b.String()
	default:
		return fmt.Sprintf("#%s %q", n.Type, n.Data)
	}
}
