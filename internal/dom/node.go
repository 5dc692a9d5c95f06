// Package dom holds the mutable markup tree that tag expansion edits in place.
//
// Nodes own their children through the Children slice. Parent is a lookup link
// used to find a node's splice site; it is never trusted for structure, so a
// stale or missing Parent turns edits into no-ops instead of corrupting the tree.
package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// NodeType discriminates the kinds of node in a tree.
type NodeType uint8

const (
	DocumentNode NodeType = iota
	ElementNode
	TextNode
	CommentNode
	CDATANode
	DirectiveNode
)

// String returns the node type name.
func (t NodeType) String() string {
	switch t {
	case DocumentNode:
		return "document"
	case ElementNode:
		return "element"
	case TextNode:
		return "text"
	case CommentNode:
		return "comment"
	case CDATANode:
		return "cdata"
	case DirectiveNode:
		return "directive"
	default:
		return "unknown"
	}
}

// Attribute is one attribute of an element. Val is kept as written in the
// markup, with entities undecoded; use Value for the decoded form.
type Attribute struct {
	Key     string
	Val     string
	NoValue bool
}

// Value returns the attribute value with character references decoded.
func (a Attribute) Value() string {
	return html.UnescapeString(a.Val)
}

// Node is a single node of a markup tree.
//
// For text nodes Data holds the text as written (entities undecoded). For
// comments and CDATA sections it holds the body without delimiters, and for
// directives everything between the angle brackets, e.g. "!DOCTYPE html".
type Node struct {
	Type        NodeType
	Name        string
	Attr        []Attribute
	Data        string
	Children    []*Node
	Parent      *Node
	SelfClosing bool

	// Source spelling of a parsed element's tags. rawStart is dropped when the
	// attributes change; rawEnd is empty when the end tag was implied.
	rawStart string
	rawEnd   string
	parsed   bool
}

// NewDocument returns an empty document node.
func NewDocument() *Node {
	return &Node{Type: DocumentNode}
}

// NewElement returns a detached element with the given name and attributes.
func NewElement(name string, attrs ...Attribute) *Node {
	return &Node{Type: ElementNode, Name: name, Attr: attrs}
}

// NewText returns a detached text node. data is written out verbatim.
func NewText(data string) *Node {
	return &Node{Type: TextNode, Data: data}
}

// NewCDATA returns a detached CDATA section.
func NewCDATA(data string) *Node {
	return &Node{Type: CDATANode, Data: data}
}

// IsElement reports whether n is an element named name.
func (n *Node) IsElement(name string) bool {
	return n != nil && n.Type == ElementNode && n.Name == name
}

// GetAttr returns the raw value of the first attribute named key.
func (n *Node) GetAttr(key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}

	return "", false
}

// HasAttr reports whether n carries an attribute named key.
func (n *Node) HasAttr(key string) bool {
	_, ok := n.GetAttr(key)

	return ok
}

// SetAttr sets the raw value of key, appending the attribute if absent.
func (n *Node) SetAttr(key, val string) {
	n.rawStart = ""
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			n.Attr[i].NoValue = false

			return
		}
	}
	n.Attr = append(n.Attr, Attribute{Key: key, Val: val})
}

// RemoveAttr deletes every attribute named key.
func (n *Node) RemoveAttr(key string) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			kept = append(kept, a)
		}
	}
	if len(kept) != len(n.Attr) {
		n.rawStart = ""
	}
	n.Attr = kept
}

// IndexOf returns the position of child in n.Children, or -1.
func (n *Node) IndexOf(child *Node) int {
	if n == nil {
		return -1
	}
	for i, c := range n.Children {
		if c == child {
			return i
		}
	}

	return -1
}

// AppendChild adds child as the last child of n, detaching it from any
// previous parent first.
func (n *Node) AppendChild(child *Node) {
	detach(child)
	child.Parent = n
	n.Children = append(n.Children, child)
}

// InsertBefore inserts child before ref. A nil ref, or a ref that is not a
// child of n, appends.
func (n *Node) InsertBefore(child, ref *Node) {
	detach(child)
	i := n.IndexOf(ref)
	if i < 0 {
		n.AppendChild(child)

		return
	}
	child.Parent = n
	n.Children = append(n.Children, nil)
	copy(n.Children[i+1:], n.Children[i:])
	n.Children[i] = child
}

// RemoveChild removes child from n. It reports false when child is not one
// of n's children.
func (n *Node) RemoveChild(child *Node) bool {
	i := n.IndexOf(child)
	if i < 0 {
		return false
	}
	n.Children = append(n.Children[:i], n.Children[i+1:]...)
	if child.Parent == n {
		child.Parent = nil
	}

	return true
}

// SetChildren replaces every child of n.
func (n *Node) SetChildren(children ...*Node) {
	for _, c := range n.Children {
		if c.Parent == n {
			c.Parent = nil
		}
	}
	n.Children = n.Children[:0]
	for _, c := range children {
		n.AppendChild(c)
	}
}

// ReplaceWith splices nodes into n's parent at n's position, preserving their
// order, and detaches n. When n has no parent, or the parent does not list
// n, the tree is left untouched and ReplaceWith reports false.
func (n *Node) ReplaceWith(nodes ...*Node) bool {
	p := n.Parent
	if p == nil {
		return false
	}
	i := p.IndexOf(n)
	if i < 0 {
		return false
	}

	for _, c := range nodes {
		if c.Parent != nil && c.Parent != p {
			detach(c)
		}
	}

	children := make([]*Node, 0, len(p.Children)-1+len(nodes))
	children = append(children, p.Children[:i]...)
	children = append(children, nodes...)
	children = append(children, p.Children[i+1:]...)
	p.Children = children

	for _, c := range nodes {
		c.Parent = p
	}
	n.Parent = nil

	return true
}

// Attached reports whether n is reachable from root through child lists.
func (n *Node) Attached(root *Node) bool {
	for cur := n; cur != root; cur = cur.Parent {
		if cur == nil || cur.Parent == nil || cur.Parent.IndexOf(cur) < 0 {
			return false
		}
	}

	return true
}

// TextContent concatenates the data of every text and CDATA descendant.
func (n *Node) TextContent() string {
	var b strings.Builder
	var walk func(*Node)
	walk = func(c *Node) {
		switch c.Type {
		case TextNode, CDATANode:
			b.WriteString(c.Data)
		case ElementNode, DocumentNode:
			for _, gc := range c.Children {
				walk(gc)
			}
		}
	}
	walk(n)

	return b.String()
}

func detach(n *Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
	n.Parent = nil
}
