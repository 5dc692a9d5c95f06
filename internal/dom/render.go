package dom

import (
	"strings"
)

// Render serializes n and its descendants.
func Render(n *Node, mode Mode) string {
	var b strings.Builder
	render(&b, n, mode)

	return b.String()
}

// RenderNodes serializes a sequence of sibling nodes.
func RenderNodes(nodes []*Node, mode Mode) string {
	var b strings.Builder
	for _, n := range nodes {
		render(&b, n, mode)
	}

	return b.String()
}

// InnerHTML serializes the children of n.
func InnerHTML(n *Node, mode Mode) string {
	if n == nil {
		return ""
	}

	return RenderNodes(n.Children, mode)
}

func render(b *strings.Builder, n *Node, mode Mode) {
	switch n.Type {
	case DocumentNode:
		for _, c := range n.Children {
			render(b, c, mode)
		}
	case TextNode:
		b.WriteString(n.Data)
	case CommentNode:
		b.WriteString("<!--")
		b.WriteString(n.Data)
		b.WriteString("-->")
	case CDATANode:
		b.WriteString("<![CDATA[")
		b.WriteString(n.Data)
		b.WriteString("]]>")
	case DirectiveNode:
		b.WriteByte('<')
		b.WriteString(n.Data)
		b.WriteByte('>')
	case ElementNode:
		renderElement(b, n, mode)
	}
}

func renderElement(b *strings.Builder, n *Node, mode Mode) {
	void := mode == HTML && IsVoid(n.Name)
	empty := len(n.Children) == 0
	closed := void || (empty && (n.SelfClosing || mode == XML))

	// Parsed start tags are written as they appeared, so <br/> stays
	// self-closed and untouched markup round-trips. Built void elements get
	// no slash.
	if n.rawStart != "" && (!n.SelfClosing || empty) {
		b.WriteString(n.rawStart)
	} else {
		b.WriteByte('<')
		b.WriteString(n.Name)
		writeAttrs(b, n.Attr)
		if closed && !void {
			b.WriteString("/>")
		} else {
			b.WriteByte('>')
		}
	}

	if closed {
		return
	}

	for _, c := range n.Children {
		render(b, c, mode)
	}

	if n.parsed && !n.SelfClosing {
		b.WriteString(n.rawEnd)

		return
	}
	b.WriteString("</")
	b.WriteString(n.Name)
	b.WriteByte('>')
}

func writeAttrs(b *strings.Builder, attrs []Attribute) {
	for _, a := range attrs {
		b.WriteByte(' ')
		b.WriteString(a.Key)
		if a.NoValue {
			continue
		}
		q := byte('"')
		if strings.IndexByte(a.Val, '"') >= 0 {
			q = '\''
		}
		b.WriteByte('=')
		b.WriteByte(q)
		b.WriteString(a.Val)
		b.WriteByte(q)
	}
}
