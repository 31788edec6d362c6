package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/lenscan/lenscan/internal/connector"
	"github.com/lenscan/lenscan/internal/model"
)

// TextObserver is the optional LLM-assisted sub-extraction hook for
// unstructured text. It returns opaque observations only; its output
// passes the same boundary check as everything else.
type TextObserver interface {
	Observe(ctx context.Context, text string) (map[string]string, error)
}

// WebExtractor parses webscrape pages envelopes. Each fetched page
// becomes one extraction: title, description and visible text reshaped
// into primitives and observations.
type WebExtractor struct {
	connectorID string
	observer    TextObserver
}

// NewWebExtractor creates the extractor for one webscrape connector.
// observer may be nil; the deterministic path never requires it.
func NewWebExtractor(connectorID string, observer TextObserver) *WebExtractor {
	return &WebExtractor{connectorID: connectorID, observer: observer}
}

// ConnectorID implements Extractor.
func (e *WebExtractor) ConnectorID() string { return e.connectorID }

// Extract implements Extractor.
func (e *WebExtractor) Extract(ctx context.Context, payload *connector.Payload) ([]Extraction, error) {
	var envelope connector.PagesPayload
	if err := json.Unmarshal(payload.Body, &envelope); err != nil {
		return nil, fmt.Errorf("parse pages payload: %w", err)
	}

	var extractions []Extraction
	for _, page := range envelope.Pages {
		doc, err := html.Parse(strings.NewReader(page.HTML))
		if err != nil {
			continue
		}

		text := NormalizeWhitespace(visibleText(doc))
		ex := Extraction{
			Primitives: model.Primitives{
				Name:        NormalizeWhitespace(nodeText(findFirst(doc, isElement("title")))),
				Description: metaDescription(doc),
				Website:     NormalizeWebsite(page.URL),
			},
			Observations: map[string]string{},
		}
		if text != "" {
			ex.Observations["page_text"] = truncate(text, 4000)
		}
		for i, h := range findAll(doc, isElement("h1", "h2")) {
			if i >= 5 {
				break
			}
			if t := NormalizeWhitespace(nodeText(h)); t != "" {
				ex.Observations[fmt.Sprintf("heading_%d", i+1)] = t
			}
		}

		if e.observer != nil && text != "" {
			obs, err := e.observer.Observe(ctx, truncate(text, 8000))
			if err == nil {
				for k, v := range obs {
					ex.Observations["llm_"+k] = NormalizeWhitespace(v)
				}
			}
		}

		extractions = append(extractions, ex)
	}
	return extractions, nil
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isElement(names ...string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		for _, name := range names {
			if n.Data == name {
				return true
			}
		}
		return false
	}
}

func metaDescription(doc *html.Node) string {
	meta := findFirst(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "meta" && attr(n, "name") == "description"
	})
	if meta == nil {
		return ""
	}
	return NormalizeWhitespace(attr(meta, "content"))
}

// visibleText walks the document skipping script and style subtrees.
func visibleText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
		return ""
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(visibleText(c))
		b.WriteByte(' ')
	}
	return b.String()
}

func nodeText(n *html.Node) string {
	if n == nil {
		return ""
	}
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(nodeText(c))
		b.WriteByte(' ')
	}
	return b.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func findAll(n *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if pred(node) {
			out = append(out, node)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func findFirst(n *html.Node, pred func(*html.Node) bool) *html.Node {
	var result *html.Node
	var walk func(*html.Node) bool
	walk = func(node *html.Node) bool {
		if pred(node) {
			result = node
			return true
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}
	walk(n)
	return result
}
