package web

import (
	"strings"

	"golang.org/x/net/html"
)

// walkElements visits element nodes below and including n in document order.
func walkElements(n *html.Node, visit func(*html.Node)) {
	if n.Type == html.ElementNode {
		visit(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkElements(c, visit)
	}
}

func findAll(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkElements(c, func(el *html.Node) {
			if el.Data == tag {
				out = append(out, el)
			}
		})
	}
	return out
}

func findFirst(n *html.Node, tag string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			return c
		}
		if found := findFirst(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func removeAll(root *html.Node, tags ...string) {
	var doomed []*html.Node
	walkElements(root, func(n *html.Node) {
		for _, tag := range tags {
			if n.Data == tag {
				doomed = append(doomed, n)
				return
			}
		}
	})
	for _, n := range doomed {
		detach(n)
	}
}

func detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// textContent joins the text nodes below n with sep. With strip set, every
// fragment is trimmed and blank fragments are dropped.
func textContent(n *html.Node, sep string, strip bool) string {
	var parts []string
	var collect func(*html.Node)
	collect = func(node *html.Node) {
		if node.Type == html.TextNode {
			text := node.Data
			if strip {
				text = strings.TrimSpace(text)
				if text == "" {
					return
				}
			}
			parts = append(parts, text)
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.Join(parts, sep)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
