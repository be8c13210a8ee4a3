// Package paste implements the clipboard HTML -> BlockDataElement
// conversion pipeline and the self-paste JSON wire format used for
// copy/paste and persistence.
package paste

import (
	"encoding/json"

	"github.com/fork-archive-hub/blocky-editor/delta"
	"github.com/fork-archive-hub/blocky-editor/document"
)

// WireOp is one Delta op in the `{ops: [...]}` Text Model wire format
//.
type WireOp struct {
	Kind   string         `json:"kind"`
	Len    int            `json:"len,omitempty"`
	Insert any            `json:"insert,omitempty"`
	Attrs  map[string]any `json:"attrs,omitempty"`
}

var opKindNames = map[delta.OpKind]string{
	delta.KindRetain: "retain",
	delta.KindInsert: "insert",
	delta.KindDelete: "delete",
}

var opKindValues = map[string]delta.OpKind{
	"retain": delta.KindRetain,
	"insert": delta.KindInsert,
	"delete": delta.KindDelete,
}

// EncodeDelta converts d into its wire op list.
func EncodeDelta(d *delta.Delta) []WireOp {
	out := make([]WireOp, len(d.Ops))
	for i, op := range d.Ops {
		out[i] = WireOp{Kind: opKindNames[op.Kind], Len: op.Len, Insert: op.Insert, Attrs: op.Attrs}
	}
	return out
}

// DecodeDelta reconstructs a Delta from its wire op list.
func DecodeDelta(ops []WireOp) *delta.Delta {
	d := delta.New()
	for _, op := range ops {
		switch opKindValues[op.Kind] {
		case delta.KindRetain:
			d.Retain(op.Len, op.Attrs)
		case delta.KindInsert:
			if s, ok := op.Insert.(string); ok {
				d.InsertText(s, op.Attrs)
			} else {
				d.InsertEmbed(op.Insert, op.Attrs)
			}
		case delta.KindDelete:
			d.Delete(op.Len)
		}
	}
	return d
}

// WireNode is the `{t, id, attributes, children?}` JSON shape used for
// a node's `data-content` attribute.
type WireNode struct {
	T          string          `json:"t"`
	ID         string          `json:"id"`
	Attributes json.RawMessage `json:"attributes,omitempty"`
	Children   []*WireNode     `json:"children,omitempty"`
}

// EncodeNode serializes n (and its children) into WireNode form, the
// representation copy/paste's data-content attribute carries.
func EncodeNode(n *document.Node) *WireNode {
	w := &WireNode{T: n.Type, ID: n.ID}
	attrs := map[string]any{}
	for k, v := range n.Attrs {
		if k == document.TextContentAttr {
			continue
		}
		attrs[k] = v
	}
	if document.IsTextLike(n) {
		tm := n.Attrs[document.TextContentAttr].(*delta.TextModel)
		attrs[document.TextContentAttr] = map[string]any{"ops": EncodeDelta(tm.Delta())}
	}
	if len(attrs) > 0 {
		raw, _ := json.Marshal(attrs)
		w.Attributes = raw
	}
	for _, c := range n.Children() {
		w.Children = append(w.Children, EncodeNode(c))
	}
	return w
}

// DecodeNode reconstructs a node tree from w, minting a fresh id for every
// node via mintID. Pass
// mintID = nil to preserve w's ids verbatim (a non-paste deserialize, e.g.
// persistence load).
func DecodeNode(w *WireNode, mintID func() string) *document.Node {
	id := w.ID
	if mintID != nil {
		id = mintID()
	}

	var rawAttrs map[string]json.RawMessage
	_ = json.Unmarshal(w.Attributes, &rawAttrs)

	attrs := map[string]any{}
	for k, raw := range rawAttrs {
		if k == document.TextContentAttr {
			var tm struct {
				Ops []WireOp `json:"ops"`
			}
			if json.Unmarshal(raw, &tm) == nil {
				attrs[document.TextContentAttr] = delta.NewTextModel(DecodeDelta(tm.Ops))
			}
			continue
		}
		var v any
		if json.Unmarshal(raw, &v) == nil {
			attrs[k] = v
		}
	}

	n := document.NewNode(id, w.T, attrs)
	var children []*document.Node
	for _, c := range w.Children {
		children = append(children, DecodeNode(c, mintID))
	}
	if len(children) > 0 {
		document.InsertChildrenAt(n, 0, children)
	}
	return n
}
