package paste

import (
	"github.com/fork-archive-hub/blocky-editor/changeset"
	"github.com/fork-archive-hub/blocky-editor/delta"
	"github.com/fork-archive-hub/blocky-editor/document"
)

func textModelOf(n *document.Node) (*delta.TextModel, bool) {
	tm, ok := n.Attrs[document.TextContentAttr].(*delta.TextModel)
	return tm, ok
}

// PasteElementsAtCursor inserts elements (already converted from clipboard
// HTML, or decoded from a self-paste wire payload) at a collapsed cursor.
//
// A non-text-like target block treats the cursor as a plain insertion
// point: elements are inserted as new siblings right after it. A
// text-like target is split at the cursor offset the way Enter splits a
// block: the head half stays on the original node, optionally absorbing
// the first pasted element if it is itself text-like (avoiding a spurious
// block boundary), and the tail half becomes a new trailing text block --
// or is absorbed into the last pasted element if that element is
// text-like. The cursor lands at the junction between pasted content and
// whatever survives of the original tail.
func PasteElementsAtCursor(state *changeset.State, cursor document.CursorState, newTextType string, elements []*document.Node) (*changeset.Changeset, error) {
	if len(elements) == 0 {
		return nil, nil
	}
	if !cursor.IsCollapsed() {
		return nil, changeset.NewInvariantViolation("paste target cursor must be collapsed", nil)
	}

	node, ok := state.GetBlockElementById(cursor.ID())
	if !ok {
		return nil, changeset.NewInvariantViolation("paste targeted an unknown block "+cursor.ID(), nil)
	}

	cs := changeset.NewChangeset(state)

	tm, isText := textModelOf(node)
	if !isText {
		last := elements[len(elements)-1]
		cs.InsertChildrenAfter(node.Parent(), elements, node)
		if lastTM, ok := textModelOf(last); ok {
			cs.SetCursorState(document.Collapsed(last.ID, lastTM.Length()), document.ReasonUserInput)
		}
		if err := cs.Apply(); err != nil {
			return nil, err
		}
		return cs, nil
	}

	offset := cursor.Offset()
	full := tm.Delta()
	head := full.Slice(0, offset)
	tail := full.Slice(offset, -1)

	first := elements[0]
	firstTM, firstIsText := textModelOf(first)
	siblings := elements
	consumedFirst := false
	if firstIsText {
		head = head.Concat(firstTM.Delta())
		siblings = elements[1:]
		consumedFirst = true
	}

	var cursorAfter document.CursorState
	var edit *delta.Delta

	if len(siblings) == 0 {
		// Everything pasted landed on node itself (a single text-like
		// element merged into the head); the original tail simply stays
		// attached after it in the same block, with no new sibling.
		edit = delta.New().Retain(offset, nil).Concat(firstTM.Delta())
		cursorAfter = document.Collapsed(node.ID, head.Length())
	} else {
		edit = delta.New().Retain(offset, nil).Delete(full.Length() - offset)
		if consumedFirst {
			edit = edit.Concat(firstTM.Delta())
		}

		last := siblings[len(siblings)-1]
		if lastTM, ok := textModelOf(last); ok {
			junction := lastTM.Length()
			lastTM.Compose(delta.New().Retain(lastTM.Length(), nil).Concat(tail))
			cursorAfter = document.Collapsed(last.ID, junction)
		} else if tail.Length() > 0 {
			trailing := makeTextBlock(changeset.NewBlockID(), newTextType, tail)
			siblings = append(siblings, trailing)
			cursorAfter = document.Collapsed(trailing.ID, 0)
		} else {
			cursorAfter = document.Collapsed(last.ID, 0)
		}
	}
	cs.TextEdit(node, edit)
	if len(siblings) > 0 {
		cs.InsertChildrenAfter(node.Parent(), siblings, node)
	}
	cs.SetCursorState(cursorAfter, document.ReasonUserInput)

	if err := cs.Apply(); err != nil {
		return nil, err
	}
	return cs, nil
}
