package adapters

import (
	"strings"

	"golang.org/x/net/html"
)

// Selector strategies use a deliberately small language so directory tables
// stay plain data:
//
//	tag          element name, e.g. "h1"
//	.class       class contains token
//	tag.class    both
//	#id          id equals
//	itemprop=x   schema.org microdata property
//	meta=x       <meta property|name=x content=...>
//	href:tel     first tel: link
//	href:mailto  first mailto: link
//
// The first strategy in a list that yields non-empty text wins.

// selectFirst applies one selector to a parsed document and returns the
// matched text, or "".
func selectFirst(doc *html.Node, selector string) string {
	selector = strings.TrimSpace(selector)
	if selector == "" || doc == nil {
		return ""
	}
	switch {
	case selector == "href:tel":
		return findHrefScheme(doc, "tel:")
	case selector == "href:mailto":
		return findHrefScheme(doc, "mailto:")
	case strings.HasPrefix(selector, "itemprop="):
		return textOf(findByAttr(doc, "itemprop", selector[len("itemprop="):]))
	case strings.HasPrefix(selector, "meta="):
		return findMetaContent(doc, selector[len("meta="):])
	case strings.HasPrefix(selector, "#"):
		return textOf(findByAttr(doc, "id", selector[1:]))
	case strings.HasPrefix(selector, "."):
		return textOf(findByClass(doc, "", selector[1:]))
	case strings.Contains(selector, "."):
		parts := strings.SplitN(selector, ".", 2)
		return textOf(findByClass(doc, parts[0], parts[1]))
	default:
		return textOf(findByTag(doc, selector))
	}
}

// selectCascade returns the first non-empty match across an ordered list of
// strategies, along with the index of the strategy that matched.
func selectCascade(doc *html.Node, selectors []string) (string, int) {
	for i, sel := range selectors {
		if v := strings.TrimSpace(selectFirst(doc, sel)); v != "" {
			return v, i
		}
	}
	return "", -1
}

// walk visits nodes depth-first; visit returns false to skip a subtree.
func walk(n *html.Node, visit func(*html.Node) bool) {
	if n == nil {
		return
	}
	if !visit(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

func findByTag(doc *html.Node, tag string) *html.Node {
	var found *html.Node
	walk(doc, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if n.Type == html.ElementNode && n.Data == tag {
			found = n
			return false
		}
		return true
	})
	return found
}

func findByAttr(doc *html.Node, key, value string) *html.Node {
	var found *html.Node
	walk(doc, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if n.Type == html.ElementNode && attr(n, key) == value {
			found = n
			return false
		}
		return true
	})
	return found
}

func findByClass(doc *html.Node, tag, class string) *html.Node {
	var found *html.Node
	lowered := strings.ToLower(class)
	walk(doc, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if n.Type != html.ElementNode {
			return true
		}
		if tag != "" && n.Data != tag {
			return true
		}
		for _, token := range strings.Fields(attr(n, "class")) {
			if strings.Contains(strings.ToLower(token), lowered) {
				found = n
				return false
			}
		}
		return true
	})
	return found
}

func findMetaContent(doc *html.Node, property string) string {
	var content string
	walk(doc, func(n *html.Node) bool {
		if content != "" {
			return false
		}
		if n.Type == html.ElementNode && n.Data == "meta" {
			if attr(n, "property") == property || attr(n, "name") == property {
				content = attr(n, "content")
				return false
			}
		}
		return true
	})
	return content
}

func findHrefScheme(doc *html.Node, scheme string) string {
	var value string
	walk(doc, func(n *html.Node) bool {
		if value != "" {
			return false
		}
		if n.Type == html.ElementNode && n.Data == "a" {
			href := attr(n, "href")
			if strings.HasPrefix(strings.ToLower(href), scheme) {
				value = href[len(scheme):]
				return false
			}
		}
		return true
	})
	return value
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// textOf flattens the visible text below a node, skipping script and style.
func textOf(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.ElementNode && (c.Data == "script" || c.Data == "style") {
			return false
		}
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			b.WriteString(" ")
		}
		return true
	})
	return strings.Join(strings.Fields(b.String()), " ")
}
