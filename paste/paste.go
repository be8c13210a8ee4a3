package paste

import (
	"encoding/json"
	"strings"

	"golang.org/x/net/html"

	"github.com/fork-archive-hub/blocky-editor/changeset"
	"github.com/fork-archive-hub/blocky-editor/delta"
	"github.com/fork-archive-hub/blocky-editor/document"
)

const (
	dataTypeAttr    = "data-type"
	dataContentAttr = "data-content"
	dataHrefAttr    = "data-href"
)

// ClipboardParseError reports that a clipboard HTML body could not be
// parsed; the caller falls back to plain-text paste.
type ClipboardParseError struct {
	cause error
}

func (e *ClipboardParseError) Error() string { return "clipboard HTML parse failed: " + e.cause.Error() }
func (e *ClipboardParseError) Unwrap() error  { return e.cause }

// ParseClipboardHTML parses a text/html clipboard payload into a parse
// tree, tolerating the malformed markup real clipboards produce.
func ParseClipboardHTML(htmlStr string) (*html.Node, error) {
	doc, err := html.Parse(strings.NewReader(htmlStr))
	if err != nil {
		return nil, &ClipboardParseError{cause: err}
	}
	return doc, nil
}

// FindBody returns the <body> element of a parsed document, if present.
func FindBody(doc *html.Node) *html.Node {
	var body *html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "body" {
			body = n
			return
		}
		for c := n.FirstChild; c != nil && body == nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return body
}

// blockLevelTags are the element names ConvertBody treats as candidates
// for the div handler rather than accumulating into an inline run
//.
var blockLevelTags = map[string]bool{
	"div": true, "p": true, "h1": true, "h2": true, "h3": true,
	"ul": true, "ol": true, "li": true, "blockquote": true, "figure": true,
}

// ConvertBody walks body's top-level children and converts them into
// BlockDataElements, routing block-level elements through the div handler
// and runs of inline content through the leaf handler.
func ConvertBody(body *html.Node, blocks *changeset.BlockRegistry, spans *changeset.SpanRegistry, newTextType string, mint func() string) ([]*document.Node, error) {
	var out []*document.Node
	var pendingInline []*html.Node

	flushInline := func() {
		if len(pendingInline) == 0 {
			return
		}
		d := delta.New()
		for _, n := range pendingInline {
			collectInline(n, nil, spans, d)
		}
		pendingInline = nil
		if d.Length() == 0 {
			return
		}
		out = append(out, makeTextBlock(mint(), newTextType, d))
	}

	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && blockLevelTags[c.Data] {
			flushInline()
			n, err := divHandler(c, blocks, spans, newTextType, mint)
			if err != nil {
				return nil, err
			}
			if n != nil {
				out = append(out, n)
			}
			continue
		}
		pendingInline = append(pendingInline, c)
	}
	flushInline()
	return out, nil
}

func makeTextBlock(id, typ string, d *delta.Delta) *document.Node {
	return document.NewNode(id, typ, map[string]any{document.TextContentAttr: delta.NewTextModel(d)})
}

// divHandler converts one block-level element. If it carries data-type/
// data-content (i.e. was copied from this editor) the JSON node is
// deserialized and cloned with a freshly minted id; otherwise the first
// claimant, in BlockRegistry.Names order, willing to claim it
// (HandlePasteElement) wins, falling back to treating its content as an
// inline run. When several claimants would accept the element, which one
// wins is not defined.
func divHandler(el *html.Node, blocks *changeset.BlockRegistry, spans *changeset.SpanRegistry, newTextType string, mint func() string) (*document.Node, error) {
	typeName, hasType := attrVal(el, dataTypeAttr)
	content, hasContent := attrVal(el, dataContentAttr)
	if hasType && hasContent {
		if _, ok := blocks.Lookup(typeName); !ok {
			return nil, &changeset.UnknownBlockTypeError{TypeName: typeName}
		}
		var w WireNode
		if err := json.Unmarshal([]byte(content), &w); err != nil {
			return nil, &ClipboardParseError{cause: err}
		}
		return DecodeNode(&w, mint), nil
	}

	for _, def := range registeredClaimants(blocks, el) {
		if node, ok := def.HandlePasteElement(el); ok {
			return node, nil
		}
	}

	d := delta.New()
	collectInline(el, nil, spans, d)
	if d.Length() == 0 {
		return nil, nil
	}
	return makeTextBlock(mint(), newTextType, d), nil
}

func attrVal(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// collectInline walks n (and descendants) in document order, appending
// text runs to d with the span attributes accumulated from ancestor
// formatting elements.
func collectInline(n *html.Node, attrs map[string]any, spans *changeset.SpanRegistry, d *delta.Delta) {
	switch n.Type {
	case html.TextNode:
		if n.Data != "" {
			d.InsertText(n.Data, attrs)
		}
		return
	case html.ElementNode:
		attrs = withInlineAttrs(n, attrs, spans)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectInline(c, attrs, spans, d)
	}
}

func withInlineAttrs(n *html.Node, attrs map[string]any, spans *changeset.SpanRegistry) map[string]any {
	merged := cloneStringAnyMap(attrs)
	switch n.Data {
	case "b", "strong":
		merged = setAttr(merged, "bold", true)
	case "i", "em":
		merged = setAttr(merged, "italic", true)
	case "u":
		merged = setAttr(merged, "underline", true)
	case "a":
		if href, ok := attrVal(n, "href"); ok {
			merged = setAttr(merged, "href", href)
		}
		if href, ok := attrVal(n, dataHrefAttr); ok {
			merged = setAttr(merged, "href", href)
		}
	}
	if class, ok := attrVal(n, "class"); ok && spans != nil {
		for _, c := range strings.Fields(class) {
			if attrKey, ok := spans.AttrForClass(c); ok {
				merged = setAttr(merged, attrKey, true)
			}
		}
	}
	return merged
}

func cloneStringAnyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func setAttr(m map[string]any, k string, v any) map[string]any {
	if m == nil {
		m = map[string]any{}
	}
	m[k] = v
	return m
}

// registeredClaimants returns every registered block definition
// implementing PasteClaimant, in BlockRegistry.Names order (unspecified,
// not registration order).
func registeredClaimants(blocks *changeset.BlockRegistry, el *html.Node) []changeset.PasteClaimant {
	var out []changeset.PasteClaimant
	if blocks == nil {
		return out
	}
	for _, name := range blocks.Names() {
		def, _ := blocks.Lookup(name)
		if claimant, ok := def.(changeset.PasteClaimant); ok {
			out = append(out, claimant)
		}
	}
	return out
}
