package dom

import (
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/net/html"
)

// ParseXML builds a tree from well-formed XML. Several top-level elements
// are accepted so that rendered fragments parse the same way documents do.
func ParseXML(markup string) (*Node, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.PreserveCData = true
	if err := doc.ReadFromString(markup); err != nil {
		return nil, err
	}

	root := NewDocument()
	for _, tok := range doc.Child {
		if n := fromToken(tok); n != nil {
			root.AppendChild(n)
		}
	}

	return root, nil
}

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func fromToken(tok etree.Token) *Node {
	switch t := tok.(type) {
	case *etree.Element:
		n := NewElement(t.FullTag())
		for _, a := range t.Attr {
			n.Attr = append(n.Attr, Attribute{Key: a.FullKey(), Val: html.EscapeString(a.Value)})
		}
		for _, c := range t.Child {
			if cn := fromToken(c); cn != nil {
				n.AppendChild(cn)
			}
		}
		n.SelfClosing = len(n.Children) == 0

		return n
	case *etree.CharData:
		if t.IsCData() {
			return NewCDATA(t.Data)
		}

		return NewText(textEscaper.Replace(t.Data))
	case *etree.Comment:
		return &Node{Type: CommentNode, Data: t.Data}
	case *etree.Directive:
		return &Node{Type: DirectiveNode, Data: "!" + t.Data}
	case *etree.ProcInst:
		data := "?" + t.Target
		if t.Inst != "" {
			data += " " + t.Inst
		}

		return &Node{Type: DirectiveNode, Data: data + "?"}
	}

	return nil
}
