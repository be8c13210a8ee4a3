package paste

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/fork-archive-hub/blocky-editor/delta"
	"github.com/fork-archive-hub/blocky-editor/document"
)

// nodesEqual asserts a and b are structurally equal: same id, type,
// attributes (Text Models compared by their Delta's ops, not pointer
// identity), and children in the same order, recursively. Uses go-cmp
// (rather than reflect.DeepEqual/require.Equal) for the per-attribute and
// per-delta comparisons so a mismatch reports which field and op differ.
func nodesEqual(t *testing.T, a, b *document.Node) {
	t.Helper()
	require.Equal(t, a.ID, b.ID)
	require.Equal(t, a.Type, b.Type)
	require.Equal(t, len(a.Attrs), len(b.Attrs), "attribute count mismatch on node %s", a.ID)

	for k, av := range a.Attrs {
		bv, ok := b.Attrs[k]
		require.True(t, ok, "missing attr %q on node %s", k, a.ID)

		if atm, ok := av.(*delta.TextModel); ok {
			btm, ok2 := bv.(*delta.TextModel)
			require.True(t, ok2, "attr %q: expected a Text Model", k)
			require.Empty(t, cmp.Diff(atm.Delta().Ops, btm.Delta().Ops), "delta mismatch for attr %q on node %s", k, a.ID)
			continue
		}
		require.Empty(t, cmp.Diff(av, bv), "attr %q mismatch on node %s", k, a.ID)
	}

	ac, bc := a.Children(), b.Children()
	require.Equal(t, len(ac), len(bc), "child count mismatch on node %s", a.ID)
	for i := range ac {
		nodesEqual(t, ac[i], bc[i])
	}
}

func buildSampleDocument() *document.BlockyDocument {
	title := document.NewNode("title", "Title", map[string]any{
		document.TextContentAttr: delta.NewTextModel(delta.New().InsertText("My Doc", nil)),
	})
	doc := document.NewBlockyDocument("root", title)

	p1 := document.NewNode("p1", "Text", map[string]any{
		document.TextContentAttr: delta.NewTextModel(delta.New().InsertText("hello ", nil).InsertText("world", map[string]any{"bold": true})),
	})
	img := document.NewNode("img1", "Image", map[string]any{"src": "x.png", "width": float64(320)})
	document.InsertChildrenAt(doc.Body(), 0, []*document.Node{p1, img})
	return doc
}

// TestDocumentJSONRoundTripPreservesStructure exercises spec.md §8's
// round-trip property: "A JSON serialize -> parse round-trip of any
// document yields an equal tree (same ids, attributes, child order, and
// deltas)".
func TestDocumentJSONRoundTripPreservesStructure(t *testing.T) {
	doc := buildSampleDocument()

	wire := EncodeNode(doc.Root)
	decoded := DecodeNode(wire, nil) // nil: preserve ids, not a paste clone

	nodesEqual(t, doc.Root, decoded)
}

// TestDocumentJSONRoundTripSurvivesMarshalUnmarshal additionally pushes
// the WireNode through an actual encoding/json Marshal/Unmarshal cycle,
// the shape a persisted document or a copy/paste data-content attribute
// actually takes.
func TestDocumentJSONRoundTripSurvivesMarshalUnmarshal(t *testing.T) {
	doc := buildSampleDocument()

	raw, err := json.Marshal(EncodeNode(doc.Root))
	require.NoError(t, err)

	var wire WireNode
	require.NoError(t, json.Unmarshal(raw, &wire))
	decoded := DecodeNode(&wire, nil)

	nodesEqual(t, doc.Root, decoded)
}
