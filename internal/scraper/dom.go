package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// docIndex is the document's element nodes in pre-order, used to find the
// nearest heading that precedes an element.
type docIndex struct {
	nodes []*html.Node
	pos   map[*html.Node]int
}

func newDocIndex(doc *goquery.Document) *docIndex {
	idx := &docIndex{pos: make(map[*html.Node]int)}
	for _, root := range doc.Nodes {
		idx.walk(root)
	}
	return idx
}

func (idx *docIndex) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		idx.pos[n] = len(idx.nodes)
		idx.nodes = append(idx.nodes, n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		idx.walk(c)
	}
}

// elements returns the indexed elements named tag, in document order.
func (idx *docIndex) elements(tag string) []*html.Node {
	var out []*html.Node
	for _, n := range idx.nodes {
		if n.Data == tag {
			out = append(out, n)
		}
	}
	return out
}

// preceding returns the closest element named tag that starts before n and
// does not contain it, or nil.
func (idx *docIndex) preceding(n *html.Node, tag string) *html.Node {
	i, ok := idx.pos[n]
	if !ok {
		return nil
	}
	for i--; i >= 0; i-- {
		c := idx.nodes[i]
		if c.Data == tag && !isAncestor(c, n) {
			return c
		}
	}
	return nil
}

func isAncestor(a, n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p == a {
			return true
		}
	}
	return false
}

// ownTexts returns the raw text of n's direct text-node children.
func ownTexts(n *html.Node) []string {
	var out []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			out = append(out, c.Data)
		}
	}
	return out
}

// firstOwnText returns the first direct text child of n, or "".
func firstOwnText(n *html.Node) string {
	if texts := ownTexts(n); len(texts) > 0 {
		return texts[0]
	}
	return ""
}

// descendantTexts returns every text node under n in document order.
func descendantTexts(n *html.Node) []string {
	var out []string
	var visit func(*html.Node)
	visit = func(c *html.Node) {
		if c.Type == html.TextNode {
			out = append(out, c.Data)
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			visit(k)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		visit(c)
	}
	return out
}

func anyContains(texts []string, substr string) bool {
	for _, t := range texts {
		if strings.Contains(t, substr) {
			return true
		}
	}
	return false
}
