package domview

import (
	"github.com/fork-archive-hub/blocky-editor/changeset"
	"github.com/fork-archive-hub/blocky-editor/delta"
	"github.com/fork-archive-hub/blocky-editor/document"
)

// DiffCollapsedInput builds the single-block textEdit Changeset for a
// collapsed cursor: diff domText (the block's current, browser-owned
// textContent) against its Text Model, biased by cursorOffset, and set
// the cursor to cursorOffset.
func DiffCollapsedInput(state *changeset.State, blockID string, domText string, cursorOffset int) (*changeset.Changeset, error) {
	node, ok := state.GetBlockElementById(blockID)
	if !ok {
		return nil, changeset.NewInvariantViolation("input event referenced an unknown block id "+blockID, nil)
	}
	tm, ok := node.Attrs[document.TextContentAttr].(*delta.TextModel)
	if !ok {
		return nil, changeset.NewInvariantViolation("input event targeted a non-text-like block "+blockID, nil)
	}

	edit := delta.DiffText(tm.Delta().PlainText(), domText, cursorOffset)
	cs := changeset.NewChangeset(state)
	cs.TextEdit(node, edit)
	cs.SetCursorState(document.Collapsed(blockID, cursorOffset), document.ReasonUserInput)
	return cs, nil
}

// DiffMultiRangeInput builds one Changeset covering every block in
// domTextByBlockID whose current textContent differs from its Text
// Model, applied atomically -- the input path for IME/browser corrections
// that touch more than one block at once.
func DiffMultiRangeInput(state *changeset.State, domTextByBlockID map[string]string) (*changeset.Changeset, error) {
	cs := changeset.NewChangeset(state)
	anyEdit := false
	for blockID, domText := range domTextByBlockID {
		node, ok := state.GetBlockElementById(blockID)
		if !ok {
			continue
		}
		tm, ok := node.Attrs[document.TextContentAttr].(*delta.TextModel)
		if !ok {
			continue
		}
		current := tm.Delta().PlainText()
		if current == domText {
			continue
		}
		cs.TextEdit(node, delta.DiffText(current, domText, -1))
		anyEdit = true
	}
	if !anyEdit {
		cs.ForceUpdate()
	}
	return cs, nil
}
