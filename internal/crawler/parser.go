package crawler

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/nao1215/imgcrawl/internal/model"
)

// Parser extracts image references and hyperlinks from HTML content.
type Parser struct {
	// baseURL is the URL of the page being parsed, used for resolving relative URLs.
	// A <base href> element in the document replaces it.
	baseURL *url.URL

	// local is true when the page itself is a file:// URL. Only local pages
	// may reference local files.
	local bool
}

// ParseResult contains the information extracted from one HTML page.
type ParseResult struct {
	// Title is the page title from <title> tag.
	Title string

	// Elements are the image and page references in document order.
	Elements []model.PageElement
}

// NewParser creates a new HTML parser with the given base URL.
// The base URL is used to resolve relative links.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u, local: strings.EqualFold(u.Scheme, "file")}, nil
}

// Parse parses HTML content and extracts every image and link reference.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{
		Elements: make([]model.PageElement, 0),
	}

	// <base href> applies to the whole document, including elements before it.
	if base := findBase(doc); base != nil {
		p.baseURL = p.baseURL.ResolveReference(base)
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			p.processElement(n, result)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return result, nil
}

// Page parses content and wraps the result as a model.Page for pageURL.
func (p *Parser) Page(pageURL string, content io.Reader) (*model.Page, error) {
	result, err := p.Parse(content)
	if err != nil {
		return nil, err
	}
	return model.NewPage(pageURL, result.Title, result.Elements...), nil
}

// processElement handles HTML element nodes.
func (p *Parser) processElement(n *html.Node, result *ParseResult) {
	switch n.Data {
	case "title":
		if result.Title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
			result.Title = strings.TrimSpace(n.FirstChild.Data)
		}

	case "a", "area":
		p.add(result, model.KindPage, getAttr(n, "href"))

	case "img":
		p.add(result, model.KindImage, getAttr(n, "src"))
		for _, src := range parseSrcset(getAttr(n, "srcset")) {
			p.add(result, model.KindImage, src)
		}

	case "source":
		// <picture><source srcset=...>
		if n.Parent != nil && n.Parent.Data == "picture" {
			for _, src := range parseSrcset(getAttr(n, "srcset")) {
				p.add(result, model.KindImage, src)
			}
		}

	case "link":
		if isIconRel(getAttr(n, "rel")) {
			p.add(result, model.KindImage, getAttr(n, "href"))
		}
	}
}

func (p *Parser) add(result *ParseResult, kind model.ElementKind, ref string) {
	if resolved := p.resolveURL(ref); resolved != "" {
		result.Elements = append(result.Elements, model.PageElement{Kind: kind, URL: resolved})
	}
}

// findBase returns the href of the first <base> element that has one.
func findBase(n *html.Node) *url.URL {
	if n.Type == html.ElementNode && n.Data == "base" {
		if href := strings.TrimSpace(getAttr(n, "href")); href != "" {
			if u, err := url.Parse(href); err == nil {
				return u
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if u := findBase(c); u != nil {
			return u
		}
	}
	return nil
}

// resolveURL resolves a relative URL against the base URL.
// Non-navigable references and bare fragments resolve to "". The fragment is
// stripped so that page#a and page#b deduplicate to one URL. A file:// result
// resolves to "" unless the page itself is local.
func (p *Parser) resolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}

	lower := strings.ToLower(href)
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, prefix) {
			return ""
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := p.baseURL.ResolveReference(u)
	if !p.local && strings.EqualFold(resolved.Scheme, "file") {
		return ""
	}
	resolved.Fragment = ""
	resolved.RawFragment = ""
	return resolved.String()
}

// parseSrcset returns the candidate URLs of a srcset attribute.
// A URL runs up to the next whitespace, so commas inside it are kept. Trailing
// commas end a candidate that has no descriptors. Otherwise descriptors run
// up to the next comma outside parentheses.
func parseSrcset(srcset string) []string {
	var urls []string
	rest := srcset
	for {
		rest = strings.TrimLeft(rest, srcsetSpace+",")
		if rest == "" {
			return urls
		}

		end := strings.IndexAny(rest, srcsetSpace)
		if end < 0 {
			end = len(rest)
		}
		candidate := rest[:end]
		rest = rest[end:]

		if trimmed := strings.TrimRight(candidate, ","); trimmed != candidate {
			urls = append(urls, trimmed)
			continue
		}
		urls = append(urls, candidate)
		rest = skipDescriptors(rest)
	}
}

const srcsetSpace = " \t\n\r\f"

// skipDescriptors returns s after the comma that ends the current
// candidate's descriptors, or "" when there is none.
func skipDescriptors(s string) string {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				return s[i+1:]
			}
		}
	}
	return ""
}

func isIconRel(rel string) bool {
	for _, r := range strings.Fields(strings.ToLower(rel)) {
		if r == "icon" || r == "apple-touch-icon" {
			return true
		}
	}
	return false
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
