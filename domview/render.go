// Package domview projects a changeset.State onto a DOM tree and
// reconciles browser-originated DOM mutations back into Changesets. The
// DOM here is golang.org/x/net/html.Node rather than a real browser
// document (there is no browser runtime in this module); a WASM binding
// would swap the writer this package uses for syscall/js calls without
// touching document/delta/changeset.
//
// Uses the same linked-list child walk an HTML parse tree offers, turned
// from a static diff target into a live, event-driven reconciler.
package domview

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/fork-archive-hub/blocky-editor/changeset"
	"github.com/fork-archive-hub/blocky-editor/delta"
	"github.com/fork-archive-hub/blocky-editor/document"
)

// blockIDAttr is the hidden back-reference every rendered block element
// carries, recovering a DOM element's model node without a separate
// side table keyed by DOM identity.
const blockIDAttr = "data-block-id"

// Renderer walks a document tree and produces an *html.Node subtree,
// keeping a domMap (id -> element) alongside the usual
// Parent/FirstChild/NextSibling linked-list walk.
type Renderer struct {
	domMap map[string]*html.Node
	embeds *changeset.EmbedRegistry
}

// NewRenderer returns an empty Renderer. embeds may be nil, in which case
// an embed insert renders as the Delta's plain-text placeholder rune
// rather than its registered representation.
func NewRenderer(embeds *changeset.EmbedRegistry) *Renderer {
	return &Renderer{domMap: map[string]*html.Node{}, embeds: embeds}
}

// DomMap exposes the live id -> element index built by the most recent Render.
func (r *Renderer) DomMap() map[string]*html.Node { return r.domMap }

// ElementByID returns the DOM element currently backing block id, if rendered.
func (r *Renderer) ElementByID(id string) (*html.Node, bool) {
	n, ok := r.domMap[id]
	return n, ok
}

// Render rebuilds the full editable subtree for doc, replacing domMap.
func (r *Renderer) Render(doc *document.BlockyDocument) *html.Node {
	r.domMap = map[string]*html.Node{}
	root := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	root.Attr = []html.Attribute{{Key: "contenteditable", Val: "true"}}
	root.AppendChild(r.renderNode(doc.Root))
	return root
}

func (r *Renderer) renderNode(n *document.Node) *html.Node {
	el := &html.Node{Type: html.ElementNode, Data: "div"}
	el.Attr = append(el.Attr, html.Attribute{Key: blockIDAttr, Val: n.ID})
	if document.IsBlockTypeName(n.Type) {
		r.domMap[n.ID] = el
	}
	if document.IsTextLike(n) {
		tm := n.Attrs[document.TextContentAttr].(*delta.TextModel)
		for _, op := range tm.Delta().Ops {
			if op.Kind != delta.KindInsert {
				continue
			}
			if s, ok := op.Insert.(string); ok {
				el.AppendChild(&html.Node{Type: html.TextNode, Data: s})
				continue
			}
			el.AppendChild(r.renderEmbed(op.Insert))
		}
	}
	for _, c := range n.Children() {
		el.AppendChild(r.renderNode(c))
	}
	return el
}

// embedPlaceholder stands in for an embed insert whose type has no
// registered handler, matching delta.Delta.PlainText's own placeholder so
// an un-rendered embed is never silently dropped from the DOM.
const embedPlaceholder = "￼"

// renderEmbed renders a non-string Delta insert as an inline span, using
// payload's "type" key to look up its handler in the Embed Registry.
func (r *Renderer) renderEmbed(payload any) *html.Node {
	text := embedPlaceholder
	if r.embeds != nil {
		if m, ok := payload.(map[string]any); ok {
			if typeKey, ok := m["type"].(string); ok {
				if h, ok := r.embeds.Lookup(typeKey); ok {
					text = h.Render(payload)
				}
			}
		}
	}
	span := &html.Node{Type: html.ElementNode, Data: "span"}
	span.Attr = []html.Attribute{{Key: "data-embed", Val: "true"}}
	span.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	return span
}

// BlockIDOf returns the id a rendered element back-references, if any.
func BlockIDOf(el *html.Node) (string, bool) {
	for _, a := range el.Attr {
		if a.Key == blockIDAttr {
			return a.Val, true
		}
	}
	return "", false
}

// Reconcile re-renders state's document and replaces editor's subtree,
// the fallback path an InvariantViolation triggers: discard
// whatever the DOM currently holds and rebuild from the model.
func Reconcile(r *Renderer, state *changeset.State) *html.Node {
	return r.Render(state.Document())
}
