// Package textproc turns the rich-text body of an event into plain narration
// text and strips unsafe markup before it is stored.
package textproc

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Info contains the narration text and its size.
type Info struct {
	Text      string
	WordCount int
}

// blockAtoms start a new paragraph of narration.
var blockAtoms = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Li: true, atom.Blockquote: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Figcaption: true, atom.Pre: true, atom.Tr: true,
}

// skipAtoms never contribute narration.
var skipAtoms = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Sup: true, atom.Iframe: true,
	atom.Img: true, atom.Video: true, atom.Audio: true, atom.Noscript: true,
}

// ExtractText parses an HTML fragment and returns its readable text, one
// paragraph per block element.
func ExtractText(fragment string) (*Info, error) {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body})
	if err != nil {
		return nil, err
	}

	w := &blockWriter{}
	for _, n := range nodes {
		w.walk(n)
	}
	w.flush()

	text := strings.Join(w.blocks, "\n\n")
	return &Info{Text: text, WordCount: countWords(text)}, nil
}

// PlainText is ExtractText without the metadata; parse failures yield "".
func PlainText(fragment string) string {
	info, err := ExtractText(fragment)
	if err != nil {
		return ""
	}
	return info.Text
}

type blockWriter struct {
	cur    strings.Builder
	blocks []string
}

func (w *blockWriter) flush() {
	s := strings.Join(strings.Fields(w.cur.String()), " ")
	if s != "" {
		w.blocks = append(w.blocks, s)
	}
	w.cur.Reset()
}

func (w *blockWriter) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		w.cur.WriteString(n.Data)
		return
	case html.ElementNode:
		if skipAtoms[n.DataAtom] {
			return
		}
		if n.DataAtom == atom.Br {
			w.cur.WriteString(" ")
			return
		}
	}

	block := n.Type == html.ElementNode && blockAtoms[n.DataAtom]
	if block {
		w.flush()
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
	if block {
		w.flush()
	} else if n.Type == html.ElementNode && (n.DataAtom == atom.Td || n.DataAtom == atom.Th) {
		w.cur.WriteString(" ")
	}
}

func countWords(s string) int {
	return len(strings.Fields(s))
}

// allowedTags may appear in stored event bodies.
var allowedTags = map[atom.Atom]bool{
	atom.P: true, atom.Br: true, atom.Strong: true, atom.B: true, atom.Em: true, atom.I: true,
	atom.U: true, atom.S: true, atom.A: true, atom.Ul: true, atom.Ol: true, atom.Li: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.Blockquote: true,
	atom.Code: true, atom.Pre: true, atom.Span: true, atom.Hr: true,
}

// droppedWithContent are removed together with everything inside them.
var droppedWithContent = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Iframe: true, atom.Object: true,
	atom.Embed: true, atom.Noscript: true, atom.Template: true,
}

// Sanitize keeps only formatting markup. Disallowed elements are unwrapped,
// scripts are removed with their content and only safe href values survive.
func Sanitize(fragment string) string {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body})
	if err != nil {
		return html.EscapeString(fragment)
	}
	var buf bytes.Buffer
	for _, n := range nodes {
		sanitizeNode(&buf, n)
	}
	return buf.String()
}

func sanitizeNode(buf *bytes.Buffer, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		buf.WriteString(html.EscapeString(n.Data))
		return
	case html.ElementNode:
	default:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			sanitizeNode(buf, c)
		}
		return
	}

	if droppedWithContent[n.DataAtom] {
		return
	}
	keep := allowedTags[n.DataAtom]
	if keep {
		buf.WriteString("<" + n.Data)
		if n.DataAtom == atom.A {
			for _, a := range n.Attr {
				if a.Key == "href" && safeHref(a.Val) {
					buf.WriteString(` href="` + html.EscapeString(a.Val) + `" rel="noopener" target="_blank"`)
				}
			}
		}
		buf.WriteString(">")
		if n.DataAtom == atom.Br || n.DataAtom == atom.Hr {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sanitizeNode(buf, c)
	}
	if keep {
		buf.WriteString("</" + n.Data + ">")
	}
}

func safeHref(v string) bool {
	l := strings.ToLower(strings.TrimSpace(v))
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://") || strings.HasPrefix(l, "mailto:")
}
