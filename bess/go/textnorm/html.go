package textnorm

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// blockLevel are elements whose boundaries become newlines in the extracted
// text, so that headings and paragraphs don't run together.
var blockLevel = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true,
	atom.Tr: true, atom.Td: true, atom.Th: true, atom.Table: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true,
	atom.H5: true, atom.H6: true, atom.Ul: true, atom.Ol: true,
	atom.Section: true, atom.Article: true, atom.Header: true,
	atom.Footer: true, atom.Nav: true,
}

// HTMLToText extracts the visible text of an HTML document. Script and style
// contents are dropped, block element boundaries become newlines, and
// whitespace is left un-collapsed so snippet extraction sees the original
// spacing.
func HTMLToText(htmlSrc string) (string, error) {
	doc, err := html.Parse(strings.NewReader(htmlSrc))
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			if n.DataAtom == atom.Script || n.DataAtom == atom.Style || n.DataAtom == atom.Noscript {
				return
			}
			if blockLevel[n.DataAtom] {
				sb.WriteString("\n")
			}
		case html.TextNode:
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
		if n.Type == html.ElementNode && blockLevel[n.DataAtom] {
			sb.WriteString("\n")
		}
	}
	visit(doc)
	return strings.TrimSpace(sb.String()), nil
}

// HTMLTitle returns the contents of the <title> element, or "".
func HTMLTitle(htmlSrc string) string {
	doc, err := html.Parse(strings.NewReader(htmlSrc))
	if err != nil {
		return ""
	}
	var title string
	var visit func(n *html.Node)
	visit = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Title {
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				title = strings.TrimSpace(n.FirstChild.Data)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(doc)
	return title
}
