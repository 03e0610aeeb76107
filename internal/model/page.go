package model

// ElementKind tags a PageElement as either an image reference or a hyperlink.
type ElementKind int

const (
	// KindImage marks an element that references an image resource
	// (<img src>, <source srcset>, <link rel="icon">).
	KindImage ElementKind = iota

	// KindPage marks an element that references another page (<a href>).
	KindPage
)

// String returns a short name for the kind.
func (k ElementKind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindPage:
		return "page"
	default:
		return "unknown"
	}
}

// PageElement is one typed reference found on a page.
// The URL is always absolute.
type PageElement struct {
	Kind ElementKind `json:"kind"`
	URL  string      `json:"url"`
}

// Page is the transient result of fetching one URL.
// It is produced by a page fetcher and owned by the call that fetched it.
type Page struct {
	// URL is the address the page was fetched from.
	URL string `json:"url"`

	// Title is the <title> text, empty for documents without one.
	Title string `json:"title,omitempty"`

	// elements keeps document order; Elements filters it by kind.
	elements []PageElement
}

// NewPage creates a Page holding a copy of the given elements.
func NewPage(url, title string, elements ...PageElement) *Page {
	elems := make([]PageElement, len(elements))
	copy(elems, elements)
	return &Page{
		URL:      url,
		Title:    title,
		elements: elems,
	}
}

// Elements returns the page elements whose kind is one of kinds, in
// document order. With no kinds every element is returned.
func (p *Page) Elements(kinds ...ElementKind) []PageElement {
	if p == nil {
		return nil
	}
	result := make([]PageElement, 0, len(p.elements))
	for _, e := range p.elements {
		if len(kinds) == 0 || containsKind(kinds, e.Kind) {
			result = append(result, e)
		}
	}
	return result
}

// ElementURLs returns the distinct URLs of elements of the given kind,
// keeping the order of first appearance.
func (p *Page) ElementURLs(kind ElementKind) []string {
	elems := p.Elements(kind)
	seen := make(map[string]struct{}, len(elems))
	urls := make([]string, 0, len(elems))
	for _, e := range elems {
		if _, ok := seen[e.URL]; ok {
			continue
		}
		seen[e.URL] = struct{}{}
		urls = append(urls, e.URL)
	}
	return urls
}

// Len returns the total number of elements on the page.
func (p *Page) Len() int {
	if p == nil {
		return 0
	}
	return len(p.elements)
}

func containsKind(kinds []ElementKind, k ElementKind) bool {
	for _, kind := range kinds {
		if kind == k {
			return true
		}
	}
	return false
}
