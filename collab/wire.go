package collab

import (
	"github.com/fork-archive-hub/blocky-editor/changeset"
	"github.com/fork-archive-hub/blocky-editor/document"
	"github.com/fork-archive-hub/blocky-editor/paste"
)

// WireLocComponent is the JSON shape of one document.NodeLocation path
// step: either a child index or, at a leaf, an attribute name.
type WireLocComponent struct {
	Attr  bool   `json:"attr,omitempty"`
	Index int    `json:"index,omitempty"`
	Name  string `json:"name,omitempty"`
}

func encodeLoc(loc document.NodeLocation) []WireLocComponent {
	out := make([]WireLocComponent, len(loc))
	for i, c := range loc {
		if c.IsAttr() {
			out[i] = WireLocComponent{Attr: true, Name: c.Name()}
		} else {
			out[i] = WireLocComponent{Index: c.Index()}
		}
	}
	return out
}

func decodeLoc(ws []WireLocComponent) document.NodeLocation {
	out := make(document.NodeLocation, len(ws))
	for i, w := range ws {
		if w.Attr {
			out[i] = document.Attr(w.Name)
		} else {
			out[i] = document.Index(w.Index)
		}
	}
	return out
}

// WireRecordedOp is the JSON form of one changeset.RecordedOp: a
// location-addressed, content-carrying edit a remote peer can replay
// against its own tree without ever seeing this peer's node pointers.
type WireRecordedOp struct {
	Kind   changeset.OpName      `json:"kind"`
	Loc    []WireLocComponent    `json:"loc,omitempty"`
	Delta  int                   `json:"delta,omitempty"`
	Nodes  []*paste.WireNode     `json:"nodes,omitempty"`
	Edit   []paste.WireOp        `json:"edit,omitempty"`
	Attrs  map[string]any        `json:"attrs,omitempty"`
	Cursor document.CursorState  `json:"cursor,omitempty"`
	Reason document.CursorReason `json:"reason,omitempty"`
}

// EncodeOps converts a Changeset's recorded ops into their wire form.
func EncodeOps(ops []changeset.RecordedOp) []WireRecordedOp {
	out := make([]WireRecordedOp, len(ops))
	for i, op := range ops {
		w := WireRecordedOp{
			Kind:   op.Kind,
			Loc:    encodeLoc(op.Loc),
			Delta:  op.Delta,
			Attrs:  op.Attrs,
			Cursor: op.Cursor,
			Reason: op.Reason,
		}
		for _, n := range op.Nodes {
			w.Nodes = append(w.Nodes, paste.EncodeNode(n))
		}
		if op.Edit != nil {
			w.Edit = paste.EncodeDelta(op.Edit)
		}
		out[i] = w
	}
	return out
}

// DecodeOps reconstructs the RecordedOp list a WireRecordedOp list was
// encoded from. Node ids are preserved verbatim (mintID = nil): a
// collaborative replay recreates the exact block the originating peer
// created, not a copy of it.
func DecodeOps(ws []WireRecordedOp) []changeset.RecordedOp {
	out := make([]changeset.RecordedOp, len(ws))
	for i, w := range ws {
		op := changeset.RecordedOp{
			Kind:   w.Kind,
			Loc:    decodeLoc(w.Loc),
			Delta:  w.Delta,
			Attrs:  w.Attrs,
			Cursor: w.Cursor,
			Reason: w.Reason,
		}
		for _, n := range w.Nodes {
			op.Nodes = append(op.Nodes, paste.DecodeNode(n, nil))
		}
		if len(w.Edit) > 0 {
			op.Edit = paste.DecodeDelta(w.Edit)
		}
		out[i] = op
	}
	return out
}

// ChangesetAppliedParams is the `changeset/applied` notification payload:
// the document version it produced and the ops to replay to reach it.
type ChangesetAppliedParams struct {
	Version int              `json:"version"`
	Ops     []WireRecordedOp `json:"ops"`
}

// CursorChangedParams is the `cursor/changed` notification payload: which
// peer moved and where.
type CursorChangedParams struct {
	PeerID string              `json:"peerId"`
	Cursor document.CursorState `json:"cursor"`
}
