package domview

import (
	"github.com/fork-archive-hub/blocky-editor/changeset"
	"github.com/fork-archive-hub/blocky-editor/delta"
	"github.com/fork-archive-hub/blocky-editor/document"
)

// DefaultTextType is the block type Enter/Backspace/paste fall back to
// when splitting or merging a block whose type is not in the preserved
// set.
const DefaultTextType = "Text"

// Editor owns the container/renderer pairing and the keystroke/input
// state machine: the IME composition flag and the set of text types
// whose identity must survive an Enter split (e.g. bulleted lists).
type Editor struct {
	State    *changeset.State
	Renderer *Renderer

	composing           bool
	preservedSplitTypes map[string]bool
}

// NewEditor wires renderer to state and renders the initial DOM. embeds
// may be nil (no registered embed handlers, e.g. a text-only document).
func NewEditor(state *changeset.State, embeds *changeset.EmbedRegistry, preservedSplitTypes ...string) *Editor {
	e := &Editor{
		State:               state,
		Renderer:            NewRenderer(embeds),
		preservedSplitTypes: map[string]bool{},
	}
	for _, t := range preservedSplitTypes {
		e.preservedSplitTypes[t] = true
	}
	e.Renderer.Render(state.Document())
	return e
}

// BeginComposition sets the IME composition flag, suppressing input
// handling until EndComposition.
func (e *Editor) BeginComposition() { e.composing = true }

// EndComposition clears the IME composition flag. Callers should
// immediately run the input diff once more after calling this.
func (e *Editor) EndComposition() { e.composing = false }

// Composing reports whether an IME composition is in progress.
func (e *Editor) Composing() bool { return e.composing }

// HandleTab swallows Tab: no model mutation, reserved for future indent
// support.
func (e *Editor) HandleTab() {}

// HandleEnter splits a collapsed cursor's text-like block at the offset
// into two sibling blocks, or first deletes an open range and then
// splits.
func (e *Editor) HandleEnter(cursor document.CursorState) (*changeset.Changeset, error) {
	target := cursor
	if !cursor.IsCollapsed() {
		deleted, err := e.deleteOpenRange(cursor)
		if err != nil {
			return nil, err
		}
		target = deleted.AfterCursor()
	}
	return e.splitAt(target)
}

// splitAt applies, in a fresh Changeset, the split of cursor's block at
// its offset into two sibling blocks.
func (e *Editor) splitAt(cursor document.CursorState) (*changeset.Changeset, error) {
	node, ok := e.State.GetBlockElementById(cursor.ID())
	if !ok {
		return nil, changeset.NewInvariantViolation("Enter targeted an unknown block "+cursor.ID(), nil)
	}
	tm, ok := node.Attrs[document.TextContentAttr].(*delta.TextModel)
	if !ok {
		return nil, changeset.NewInvariantViolation("Enter targeted a non-text-like block "+cursor.ID(), nil)
	}

	offset := cursor.Offset()
	full := tm.Delta()
	tail := full.Slice(offset, -1)

	newType := DefaultTextType
	if e.preservedSplitTypes[node.Type] {
		newType = node.Type
	}
	sibling := e.State.CreateTextElement(changeset.NewBlockID(), newType, tail, nil)

	cs := changeset.NewChangeset(e.State)
	cs.TextEdit(node, delta.New().Retain(offset, nil).Delete(full.Length()-offset))
	cs.InsertChildrenAfter(node.Parent(), []*document.Node{sibling}, node)
	cs.SetCursorState(document.Collapsed(sibling.ID, 0), document.ReasonUserInput)

	if err := cs.Apply(); err != nil {
		return nil, err
	}
	return cs, nil
}

// HandleBackspace merges with the previous text block at offset 0,
// removes a non-editable block whole, or deletes the open range.
func (e *Editor) HandleBackspace(cursor document.CursorState) (*changeset.Changeset, error) {
	if !cursor.IsCollapsed() {
		return e.deleteOpenRange(cursor)
	}
	node, ok := e.State.GetBlockElementById(cursor.ID())
	if !ok {
		return nil, changeset.NewInvariantViolation("Backspace targeted an unknown block "+cursor.ID(), nil)
	}
	if cursor.Offset() != 0 {
		return nil, nil // not a boundary backspace; caller should diff input instead
	}
	prev := node.PrevSibling()
	if prev == nil {
		return nil, nil // no-op at the first body block
	}
	return e.mergeIntoPrevious(node, prev)
}

// HandleDelete is Backspace's symmetric counterpart at end-of-block.
func (e *Editor) HandleDelete(cursor document.CursorState) (*changeset.Changeset, error) {
	if !cursor.IsCollapsed() {
		return e.deleteOpenRange(cursor)
	}
	node, ok := e.State.GetBlockElementById(cursor.ID())
	if !ok {
		return nil, changeset.NewInvariantViolation("Delete targeted an unknown block "+cursor.ID(), nil)
	}
	tm, ok := node.Attrs[document.TextContentAttr].(*delta.TextModel)
	if !ok || cursor.Offset() != tm.Length() {
		return nil, nil
	}
	next := node.NextSibling()
	if next == nil {
		return nil, nil
	}
	return e.mergeIntoPrevious(next, node)
}

// mergeIntoPrevious concatenates into's text model onto prev's and
// removes into, with the cursor collapsing at prev's old length.
func (e *Editor) mergeIntoPrevious(into, prev *document.Node) (*changeset.Changeset, error) {
	prevTM, prevOK := prev.Attrs[document.TextContentAttr].(*delta.TextModel)
	if !prevOK {
		cs := changeset.NewChangeset(e.State)
		cs.RemoveNode(into)
		if err := cs.Apply(); err != nil {
			return nil, err
		}
		return cs, nil
	}

	joinOffset := prevTM.Length()
	cs := changeset.NewChangeset(e.State)
	if intoTM, ok := into.Attrs[document.TextContentAttr].(*delta.TextModel); ok {
		cs.TextEdit(prev, delta.New().Retain(joinOffset, nil).Concat(intoTM.Delta()))
	}
	cs.RemoveNode(into)
	cs.SetCursorState(document.Collapsed(prev.ID, joinOffset), document.ReasonUserInput)
	if err := cs.Apply(); err != nil {
		return nil, err
	}
	return cs, nil
}

// deleteOpenRange walks blocks in document order from cursor.StartID to
// cursor.EndID inclusive, keeps the start block's head and the end
// block's tail, removes everything strictly between (and the end block
// itself), and collapses the cursor at the junction.
func (e *Editor) deleteOpenRange(cursor document.CursorState) (*changeset.Changeset, error) {
	ranges := e.State.SplitCursorStateByBlocks(cursor)
	if len(ranges) == 0 {
		return nil, changeset.NewInvariantViolation("open cursor did not resolve to any block range", nil)
	}

	cs := changeset.NewChangeset(e.State)
	start, ok := e.State.GetBlockElementById(ranges[0].BlockID)
	if !ok {
		return nil, changeset.NewInvariantViolation("open cursor start block missing: "+ranges[0].BlockID, nil)
	}
	startTM, startIsText := start.Attrs[document.TextContentAttr].(*delta.TextModel)

	var survivorID string
	var survivorOffset int

	if len(ranges) == 1 {
		if startIsText {
			r := ranges[0]
			cs.TextEdit(start, delta.New().Retain(r.StartOffset, nil).Delete(r.EndOffset-r.StartOffset))
			survivorID, survivorOffset = start.ID, r.StartOffset
		} else {
			next := start.NextSibling()
			cs.RemoveNode(start)
			if next != nil {
				survivorID, survivorOffset = next.ID, 0
			}
		}
	} else {
		last := ranges[len(ranges)-1]
		end, ok := e.State.GetBlockElementById(last.BlockID)
		if !ok {
			return nil, changeset.NewInvariantViolation("open cursor end block missing: "+last.BlockID, nil)
		}
		endTM, endIsText := end.Attrs[document.TextContentAttr].(*delta.TextModel)

		for i := 1; i < len(ranges)-1; i++ {
			if mid, ok := e.State.GetBlockElementById(ranges[i].BlockID); ok {
				cs.RemoveNode(mid)
			}
		}

		switch {
		case startIsText && endIsText:
			tail := endTM.Delta().Slice(last.EndOffset, -1)
			cs.TextEdit(start, delta.New().Retain(ranges[0].StartOffset, nil).Delete(startTM.Length()-ranges[0].StartOffset).Concat(tail))
			cs.RemoveNode(end)
			survivorID, survivorOffset = start.ID, ranges[0].StartOffset
		case startIsText && !endIsText:
			cs.TextEdit(start, delta.New().Retain(ranges[0].StartOffset, nil).Delete(startTM.Length()-ranges[0].StartOffset))
			cs.RemoveNode(end)
			survivorID, survivorOffset = start.ID, ranges[0].StartOffset
		default:
			cs.RemoveNode(start)
			cs.RemoveNode(end)
			if next := end.NextSibling(); next != nil {
				survivorID, survivorOffset = next.ID, 0
			}
		}
	}

	if survivorID != "" {
		cs.SetCursorState(document.Collapsed(survivorID, survivorOffset), document.ReasonUserInput)
	}
	if err := cs.Apply(); err != nil {
		return nil, err
	}
	return cs, nil
}
