package dom

import (
	"strings"

	"golang.org/x/net/html/atom"
)

// Mode selects the markup dialect used for parsing and rendering.
type Mode uint8

const (
	// HTML is lenient: void elements never take an end tag, script and style
	// bodies are raw text, and unknown or unbalanced markup passes through.
	HTML Mode = iota
	// XML is strict: the input must be well formed and empty elements render
	// self-closed.
	XML
)

// String returns the mode name.
func (m Mode) String() string {
	if m == XML {
		return "xml"
	}

	return "html"
}

var voidElements = map[atom.Atom]bool{
	atom.Area:   true,
	atom.Base:   true,
	atom.Br:     true,
	atom.Col:    true,
	atom.Embed:  true,
	atom.Hr:     true,
	atom.Img:    true,
	atom.Input:  true,
	atom.Keygen: true,
	atom.Link:   true,
	atom.Meta:   true,
	atom.Param:  true,
	atom.Source: true,
	atom.Track:  true,
	atom.Wbr:    true,
}

// IsVoid reports whether name is an HTML void element, ignoring case.
func IsVoid(name string) bool {
	return voidElements[atom.Lookup([]byte(strings.ToLower(name)))]
}

func isRawText(name string) bool {
	switch atom.Lookup([]byte(strings.ToLower(name))) {
	case atom.Script, atom.Style:
		return true
	}

	return false
}

// Parse reads markup in the given mode. HTML parsing never fails.
func Parse(markup string, mode Mode) (*Node, error) {
	if mode == XML {
		return ParseXML(markup)
	}

	return ParseHTML(markup), nil
}

// ParseFragment parses markup and returns its top-level nodes detached from
// the document that held them.
func ParseFragment(markup string, mode Mode) ([]*Node, error) {
	doc, err := Parse(markup, mode)
	if err != nil {
		return nil, err
	}
	nodes := doc.Children
	doc.Children = nil
	for _, n := range nodes {
		n.Parent = nil
	}

	return nodes, nil
}

// ParseHTML builds a tree from markup without normalizing it. Element and
// attribute names keep their case, entities stay undecoded, and every parsed
// element remembers its source tags so that an untouched tree renders back to
// the exact input.
func ParseHTML(markup string) *Node {
	p := &parser{src: markup, doc: NewDocument()}
	p.run()

	return p.doc
}

type parser struct {
	src   string
	pos   int
	doc   *Node
	stack []*Node
}

func (p *parser) current() *Node {
	if len(p.stack) == 0 {
		return p.doc
	}

	return p.stack[len(p.stack)-1]
}

func (p *parser) run() {
	for p.pos < len(p.src) {
		lt := strings.IndexByte(p.src[p.pos:], '<')
		if lt < 0 {
			p.text(p.src[p.pos:])
			p.pos = len(p.src)

			break
		}
		if lt > 0 {
			p.text(p.src[p.pos : p.pos+lt])
			p.pos += lt
		}
		if !p.markup() {
			p.text("<")
			p.pos++
		}
	}
}

// text appends character data to the current parent, merging with a text
// node that is already last.
func (p *parser) text(s string) {
	if s == "" {
		return
	}
	parent := p.current()
	if k := len(parent.Children); k > 0 && parent.Children[k-1].Type == TextNode {
		parent.Children[k-1].Data += s

		return
	}
	p.append(&Node{Type: TextNode, Data: s})
}

func (p *parser) append(n *Node) {
	parent := p.current()
	n.Parent = parent
	parent.Children = append(parent.Children, n)
}

// rest turns the remaining input into text. Used for constructs that are
// never terminated.
func (p *parser) rest() bool {
	p.text(p.src[p.pos:])
	p.pos = len(p.src)

	return true
}

// markup consumes one construct starting at '<'. It reports false when the
// '<' does not start markup and must be kept as text.
func (p *parser) markup() bool {
	s := p.src[p.pos:]
	switch {
	case strings.HasPrefix(s, "<!--"):
		end := strings.Index(s[4:], "-->")
		if end < 0 {
			return p.rest()
		}
		p.append(&Node{Type: CommentNode, Data: s[4 : 4+end]})
		p.pos += 4 + end + 3

		return true
	case strings.HasPrefix(s, "<![CDATA["):
		end := strings.Index(s[9:], "]]>")
		if end < 0 {
			return p.rest()
		}
		p.append(&Node{Type: CDATANode, Data: s[9 : 9+end]})
		p.pos += 9 + end + 3

		return true
	case strings.HasPrefix(s, "<!"), strings.HasPrefix(s, "<?"):
		end := strings.IndexByte(s, '>')
		if end < 0 {
			return p.rest()
		}
		p.append(&Node{Type: DirectiveNode, Data: s[1:end]})
		p.pos += end + 1

		return true
	case strings.HasPrefix(s, "</"):
		if len(s) < 3 || !isNameStart(s[2]) {
			return false
		}

		return p.endTag(s)
	case len(s) > 1 && isNameStart(s[1]):
		return p.startTag(s)
	}

	return false
}

func (p *parser) endTag(s string) bool {
	gt := strings.IndexByte(s, '>')
	if gt < 0 {
		return p.rest()
	}
	raw := s[:gt+1]
	name := s[2:nameEnd(s, 2)]
	p.pos += gt + 1

	for i := len(p.stack) - 1; i >= 0; i-- {
		if strings.EqualFold(p.stack[i].Name, name) {
			p.stack[i].rawEnd = raw
			p.stack = p.stack[:i]

			return true
		}
	}

	// No open element by that name: keep the tag as text.
	p.text(raw)

	return true
}

func (p *parser) startTag(s string) bool {
	i := nameEnd(s, 1)
	n := &Node{Type: ElementNode, Name: s[1:i], parsed: true}

	end := -1
	for end < 0 {
		i = skipSpace(s, i)
		if i >= len(s) {
			return p.rest()
		}
		switch {
		case s[i] == '>':
			end = i + 1

			continue
		case s[i] == '/':
			if i+1 < len(s) && s[i+1] == '>' {
				n.SelfClosing = true
				end = i + 2
			} else {
				i++
			}

			continue
		}

		k := i
		i++
		for i < len(s) && !isSpace(s[i]) && s[i] != '=' && s[i] != '>' && s[i] != '/' {
			i++
		}
		attr := Attribute{Key: s[k:i]}

		j := skipSpace(s, i)
		if j < len(s) && s[j] == '=' {
			j = skipSpace(s, j+1)
			if j >= len(s) {
				return p.rest()
			}
			if q := s[j]; q == '"' || q == '\'' {
				e := strings.IndexByte(s[j+1:], q)
				if e < 0 {
					return p.rest()
				}
				attr.Val = s[j+1 : j+1+e]
				i = j + e + 2
			} else {
				v := j
				for j < len(s) && !isSpace(s[j]) && s[j] != '>' {
					j++
				}
				attr.Val = s[v:j]
				i = j
			}
		} else {
			attr.NoValue = true
		}

		if !n.HasAttr(attr.Key) {
			n.Attr = append(n.Attr, attr)
		}
	}

	n.rawStart = s[:end]
	p.pos += end
	p.append(n)

	switch {
	case n.SelfClosing, IsVoid(n.Name):
	case isRawText(n.Name):
		p.rawText(n)
	default:
		p.stack = append(p.stack, n)
	}

	return true
}

// rawText consumes the body of a script or style element up to its end tag.
// Script bodies are split into text and CDATA children.
func (p *parser) rawText(n *Node) {
	s := p.src[p.pos:]
	closeAt, closeEnd := findRawEnd(s, n.Name)
	body := s[:closeAt]

	if strings.EqualFold(n.Name, "script") {
		for _, c := range splitCDATA(body) {
			c.Parent = n
			n.Children = append(n.Children, c)
		}
	} else if body != "" {
		n.Children = append(n.Children, &Node{Type: TextNode, Data: body, Parent: n})
	}

	n.rawEnd = s[closeAt:closeEnd]
	p.pos += closeEnd
}

// findRawEnd locates "</name" (any case) followed by a tag boundary. Without
// one, the body runs to the end of input and the end tag is implied.
func findRawEnd(s, name string) (int, int) {
	lower := strings.ToLower(s)
	needle := "</" + strings.ToLower(name)
	from := 0
	for {
		i := strings.Index(lower[from:], needle)
		if i < 0 {
			return len(s), len(s)
		}
		i += from
		after := i + len(needle)
		if after == len(s) || isSpace(s[after]) || s[after] == '/' || s[after] == '>' {
			gt := strings.IndexByte(s[after:], '>')
			if gt < 0 {
				return i, len(s)
			}

			return i, after + gt + 1
		}
		from = after
	}
}

func splitCDATA(body string) []*Node {
	var nodes []*Node
	for body != "" {
		i := strings.Index(body, "<![CDATA[")
		if i < 0 {
			nodes = append(nodes, &Node{Type: TextNode, Data: body})

			break
		}
		if i > 0 {
			nodes = append(nodes, &Node{Type: TextNode, Data: body[:i]})
		}
		end := strings.Index(body[i+9:], "]]>")
		if end < 0 {
			nodes = append(nodes, &Node{Type: TextNode, Data: body[i:]})

			break
		}
		nodes = append(nodes, &Node{Type: CDATANode, Data: body[i+9 : i+9+end]})
		body = body[i+9+end+3:]
	}

	return nodes
}

func isNameStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' || c == ':' || c >= 0x80
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

func skipSpace(s string, i int) int {
	for i < len(s) && isSpace(s[i]) {
		i++
	}

	return i
}

func nameEnd(s string, i int) int {
	for i < len(s) && !isSpace(s[i]) && s[i] != '/' && s[i] != '>' {
		i++
	}

	return i
}
