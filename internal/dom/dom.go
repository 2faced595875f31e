// Package dom is the thin layer over golang.org/x/net/html that the binding
// compiler and the reactive runtime share: element walking, structural
// locators, and in-place text and attribute patching.
package dom

import (
	"bytes"
	"errors"
	"fmt"
	"iter"
	"strconv"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var ErrBadLocator = errors.New("dom: bad locator")

func Parse(src string) (*html.Node, error) {
	return html.Parse(strings.NewReader(src))
}

func Render(doc *html.Node) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Elements yields every element of doc in document order, skipping script
// and style elements and everything below them.
func Elements(doc *html.Node) iter.Seq[*html.Node] {
	return func(yield func(*html.Node) bool) {
		var walk func(n *html.Node) bool
		walk = func(n *html.Node) bool {
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type != html.ElementNode {
					continue
				}
				if isSourceNode(c) {
					continue
				}
				if !yield(c) {
					return false
				}
				if !walk(c) {
					return false
				}
			}
			return true
		}
		walk(doc)
	}
}

func isSourceNode(n *html.Node) bool {
	return n.DataAtom == atom.Script || n.DataAtom == atom.Style
}

// Locate returns the structural locator of n: one tag[ordinal] segment per
// element from the document root, where ordinal counts same-tag element
// siblings starting at 1.
func Locate(n *html.Node) string {
	segs := []string{}
	for ; n != nil && n.Type == html.ElementNode; n = n.Parent {
		ord := 1
		for s := n.PrevSibling; s != nil; s = s.PrevSibling {
			if s.Type == html.ElementNode && s.Data == n.Data {
				ord++
			}
		}
		segs = append(segs, n.Data+"["+strconv.Itoa(ord)+"]")
	}

	var b strings.Builder
	for i := len(segs) - 1; i >= 0; i-- {
		b.WriteString("/")
		b.WriteString(segs[i])
	}
	return b.String()
}

// Find resolves a locator produced by Locate. A locator is a valid absolute
// XPath, so it is handed to htmlquery as is. A nil node with a nil error means
// the element is not present in this document.
func Find(doc *html.Node, loc string) (*html.Node, error) {
	if !strings.HasPrefix(loc, "/") {
		return nil, fmt.Errorf("%w: %q", ErrBadLocator, loc)
	}
	n, err := htmlquery.Query(doc, loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrBadLocator, loc, err)
	}
	return n, nil
}

// TextRuns returns the direct text children of n in order.
func TextRuns(n *html.Node) []string {
	var runs []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			runs = append(runs, c.Data)
		}
	}
	return runs
}

// TextTemplate concatenates the direct text children of n.
func TextTemplate(n *html.Node) (string, bool) {
	runs := TextRuns(n)
	return strings.Join(runs, ""), len(runs) > 0
}

// SetTextRuns writes runs into the direct text children of n one by one.
// If the number of text children changed since the runs were read, it
// falls back to SetText with the joined runs.
func SetTextRuns(n *html.Node, runs []string) {
	var texts []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			texts = append(texts, c)
		}
	}
	if len(texts) != len(runs) {
		SetText(n, strings.Join(runs, ""))
		return
	}
	for i, c := range texts {
		c.Data = runs[i]
	}
}

// SetText replaces the direct text children of n with a single text node
// holding s, placed where the first text child was. Element children stay.
func SetText(n *html.Node, s string) {
	var first *html.Node
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.TextNode {
			if first == nil {
				first = c
			} else {
				n.RemoveChild(c)
			}
		}
		c = next
	}

	if first == nil {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: s})
		return
	}
	first.Data = s
}

func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// Scripts joins the sources of every inline JavaScript element of doc.
func Scripts(doc *html.Node) string {
	srcs := []string{}
	for n := range doc.Descendants() {
		if !isScriptNode(n) {
			continue
		}
		var b strings.Builder
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			}
		}
		srcs = append(srcs, b.String())
	}
	return strings.Join(srcs, "\n")
}

func isScriptNode(node *html.Node) bool {
	if node.Type != html.ElementNode || node.DataAtom != atom.Script {
		return false
	}

	for _, attr := range node.Attr {
		switch attr.Key {
		case "src":
			return false
		case "type":
			switch strings.ToLower(strings.TrimSpace(attr.Val)) {
			case "", "module", "text/javascript", "application/javascript":
			default:
				return false
			}
		}
	}

	return true
}
