package dom

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHTMLRoundTrip(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{"void br", "<div>foo<br>bar</div>"},
		{"void hr", "<div>foo<hr>bar</div>"},
		{"void input with attrs", `<div>foo<input type="text">bar</div>`},
		{"self-closed void", "<p>a<br/>b<br />c</p>"},
		{"doctype and comments", "<!DOCTYPE html>\n<html><!-- note --><body></body></html>"},
		{"entities untouched", "<p title=\"a &amp; b\">&lt;x&gt; &copy; &#169;</p>"},
		{"mixed quoting", `<a href='x' data-x=1 hidden>link</a>`},
		{"uppercase names", "<DIV Class=\"A\"><Span>x</SPAN></DIV>"},
		{"implied end tags", "<ul><li>one<li>two</ul>"},
		{"unclosed at eof", "<div><p>text"},
		{"stray end tag", "<div>a</span>b</div>"},
		{"stray lt", "<p>1 < 2 and a<3</p>"},
		{"script raw text", `<script>if (a < b && c > d) { x = "</div>"; }</script>`},
		{"script with cdata", "<script type=\"text/html\"><![CDATA[<b>x</b>]]></script>"},
		{"style raw text", "<style>a > b { color: red }</style>"},
		{"uppercase script end", "<SCRIPT>x</Script >"},
		{"processing instruction", `<?xml version="1.0"?><root/>`},
		{"cdata in body", "<div><![CDATA[raw <x>]]></div>"},
		{"unterminated comment", "<div><!-- open"},
		{"unterminated tag", "<div class=\"x"},
		{"whitespace", "  \n\t<p>\n  x\n</p>\n"},
		{"empty", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			doc := ParseHTML(tc.input)
			assert.Equal(t, tc.input, Render(doc, HTML))
		})
	}
}

func TestParseHTMLStructure(t *testing.T) {
	doc := ParseHTML(`<myComponent attr1="value1" flag><_title>Hi <b>there</b></_title><item value="a">A</item></myComponent>`)

	require.Len(t, doc.Children, 1)
	comp := doc.Children[0]
	assert.Equal(t, ElementNode, comp.Type)
	assert.Equal(t, "myComponent", comp.Name)
	assert.Same(t, doc, comp.Parent)

	want := []Attribute{
		{Key: "attr1", Val: "value1"},
		{Key: "flag", NoValue: true},
	}
	assert.Empty(t, cmp.Diff(want, comp.Attr))

	require.Len(t, comp.Children, 2)
	assert.Equal(t, "_title", comp.Children[0].Name)
	assert.Equal(t, "Hi <b>there</b>", InnerHTML(comp.Children[0], HTML))
	assert.Equal(t, "item", comp.Children[1].Name)
	for _, c := range comp.Children {
		assert.Same(t, comp, c.Parent)
	}
}

func TestVoidElementsHaveNoChildren(t *testing.T) {
	doc := ParseHTML("<div><img src=a.png>after</div>")

	div := doc.Children[0]
	require.Len(t, div.Children, 2)
	assert.Equal(t, "img", div.Children[0].Name)
	assert.Empty(t, div.Children[0].Children)
	assert.Equal(t, "after", div.Children[1].Data)
}

func TestSelfClosingAnyElement(t *testing.T) {
	doc := ParseHTML("<box/><span>x</span>")

	require.Len(t, doc.Children, 2)
	assert.True(t, doc.Children[0].SelfClosing)
	assert.Empty(t, doc.Children[0].Children)
	assert.Equal(t, "span", doc.Children[1].Name)
}

func TestScriptChildren(t *testing.T) {
	doc := ParseHTML("<script type=\"text/html\">a<![CDATA[<b>x</b>]]>c</script>")

	script := doc.Children[0]
	require.Len(t, script.Children, 3)
	assert.Equal(t, TextNode, script.Children[0].Type)
	assert.Equal(t, CDATANode, script.Children[1].Type)
	assert.Equal(t, "<b>x</b>", script.Children[1].Data)
	assert.Equal(t, "a<b>x</b>c", script.TextContent())
}

func TestScriptBodyIsNotParsed(t *testing.T) {
	doc := ParseHTML("<script><card></card></script>")

	assert.Empty(t, FindByNames(doc, []string{"card"}))
}

func TestAttributeValueDecoding(t *testing.T) {
	doc := ParseHTML(`<x a="Tom &amp; Jerry" b='say "hi"'>`)

	el := doc.Children[0]
	raw, ok := el.GetAttr("a")
	require.True(t, ok)
	assert.Equal(t, "Tom &amp; Jerry", raw)
	assert.Equal(t, "Tom & Jerry", el.Attr[0].Value())
	assert.Equal(t, `say "hi"`, el.Attr[1].Value())
}

func TestDuplicateAttributesKeepFirst(t *testing.T) {
	doc := ParseHTML(`<x a="1" a="2">`)

	v, _ := doc.Children[0].GetAttr("a")
	assert.Equal(t, "1", v)
	assert.Len(t, doc.Children[0].Attr, 1)
}

func TestParseFragmentDetaches(t *testing.T) {
	nodes, err := ParseFragment("<b>1</b>text<i>2</i>", HTML)
	require.NoError(t, err)

	require.Len(t, nodes, 3)
	for _, n := range nodes {
		assert.Nil(t, n.Parent)
	}
	assert.Equal(t, "<b>1</b>text<i>2</i>", RenderNodes(nodes, HTML))
}

func TestSetAttrRebuildsStartTag(t *testing.T) {
	doc := ParseHTML(`<a   href = "x" >y</a>`)
	a := doc.Children[0]

	assert.Equal(t, `<a   href = "x" >y</a>`, Render(doc, HTML))

	a.SetAttr("class", "btn")
	assert.Equal(t, `<a href="x" class="btn">y</a>`, Render(doc, HTML))

	a.SetAttr("title", `say "hi"`)
	assert.Contains(t, Render(doc, HTML), `title='say "hi"'`)

	a.RemoveAttr("class")
	assert.NotContains(t, Render(doc, HTML), "class")
}

func TestRenderProgrammaticNodes(t *testing.T) {
	div := NewElement("div", Attribute{Key: "id", Val: "x"})
	div.AppendChild(NewText("a"))
	div.AppendChild(NewElement("br"))
	div.AppendChild(NewElement("empty"))

	assert.Equal(t, `<div id="x">a<br><empty></empty></div>`, Render(div, HTML))
	assert.Equal(t, `<div id="x">a<br/><empty/></div>`, Render(div, XML))
}

func TestParseXML(t *testing.T) {
	doc, err := ParseXML(`<?xml version="1.0"?><list><Item value="a &amp; b"/><Item><![CDATA[<x>]]></Item></list><other/>`)
	require.NoError(t, err)

	items := FindByNames(doc, []string{"Item"})
	require.Len(t, items, 2)
	v, _ := items[0].GetAttr("value")
	assert.Equal(t, "a &amp; b", v)
	assert.Equal(t, "a & b", items[0].Attr[0].Value())
	assert.Equal(t, CDATANode, items[1].Children[0].Type)

	out := Render(doc, XML)
	assert.Equal(t, `<?xml version="1.0"?><list><Item value="a &amp; b"/><Item><![CDATA[<x>]]></Item></list><other/>`, out)
}

func TestParseXMLRejectsMalformed(t *testing.T) {
	_, err := Parse("<a><b></a>", XML)
	assert.Error(t, err)
}

func TestIsVoid(t *testing.T) {
	for _, name := range []string{"br", "BR", "hr", "img", "input", "meta", "wbr"} {
		assert.True(t, IsVoid(name), name)
	}
	for _, name := range []string{"div", "brx", "item", "script", ""} {
		assert.False(t, IsVoid(name), name)
	}
}

func FuzzParseHTMLRoundTrip(f *testing.F) {
	seeds := []string{
		"<div>foo<br>bar</div>",
		"<script>a</script>",
		"<!-- c --><![CDATA[x]]><!x><?y?>",
		"<a b='1' c=2 d>",
		"</x><y/>",
		"<",
	}
	for _, s := range seeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, input string) {
		doc := ParseHTML(input)
		if got := Render(doc, HTML); got != input {
			t.Fatalf("round trip mismatch:\ninput: %q\noutput: %q", input, got)
		}
	})
}
