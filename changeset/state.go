package changeset

import (
	"github.com/google/uuid"

	"github.com/fork-archive-hub/blocky-editor/blocklog"
	"github.com/fork-archive-hub/blocky-editor/delta"
	"github.com/fork-archive-hub/blocky-editor/document"
)

// blockIDPrefix makes IsBlockID a syntactic test on the id string rather
// than a lookup.
const blockIDPrefix = "blk_"

// NewBlockID mints a fresh, globally unique block id.
func NewBlockID() string {
	return blockIDPrefix + uuid.NewString()
}

// IsBlockID reports whether id was minted by NewBlockID.
func IsBlockID(id string) bool {
	return len(id) >= len(blockIDPrefix) && id[:len(blockIDPrefix)] == blockIDPrefix
}

// CursorChangeEvent is the payload of the cursorStateChanged stream
//: the new cursor and why it changed.
type CursorChangeEvent struct {
	Cursor document.CursorState
	Reason document.CursorReason
}

// ChangesetAppliedEvent is the payload of the changesetApplied stream
//: the changeset that just committed and the resulting
// document version.
type ChangesetAppliedEvent struct {
	Changeset *Changeset
	Version   int
}

// BlockCursorRange is one block's slice of an open cursor that may span
// several blocks.
type BlockCursorRange struct {
	BlockID     string
	StartOffset int
	EndOffset   int
}

// State is the live, observable document: the tree itself, a block-id
// index for O(1) lookup, the current cursor, and the version counter and
// event streams every Changeset.Apply drives.
type State struct {
	document *document.BlockyDocument
	blocks   map[string]*document.Node
	version  int
	cursor   document.CursorState
	applying bool

	newBlockCreated    *Stream[*document.Node]
	blockWillDelete    *Stream[*document.Node]
	cursorStateChanged *Stream[CursorChangeEvent]
	changesetApplied   *Stream[ChangesetAppliedEvent]
}

// NewState wraps doc, indexing every already-present block-type node.
func NewState(doc *document.BlockyDocument) *State {
	s := &State{
		document:           doc,
		blocks:             map[string]*document.Node{},
		newBlockCreated:    NewStream[*document.Node](),
		blockWillDelete:    NewStream[*document.Node](),
		cursorStateChanged: NewStream[CursorChangeEvent](),
		changesetApplied:   NewStream[ChangesetAppliedEvent](),
	}
	s.indexSubtree(doc.Root)
	return s
}

func (s *State) indexSubtree(n *document.Node) {
	if document.IsBlockTypeName(n.Type) {
		s.blocks[n.ID] = n
	}
	for _, c := range n.Children() {
		s.indexSubtree(c)
	}
}

// Document returns the live document tree.
func (s *State) Document() *document.BlockyDocument { return s.document }

// Version returns the version counter: its starting value (0, or whatever
// SetVersion set) plus one for every Apply that emitted changesetApplied.
// An Apply that only sets the cursor does not advance it.
func (s *State) Version() int { return s.version }

// SetVersion overrides the version counter, for a controller resuming a
// document at a previously persisted version rather than starting fresh
// at 0.
func (s *State) SetVersion(v int) { s.version = v }

// Cursor returns the current cursor state.
func (s *State) Cursor() document.CursorState { return s.cursor }

// NewBlockCreated is emitted once per block-type node that enters the tree
// via a Changeset.
func (s *State) NewBlockCreated() *Stream[*document.Node] { return s.newBlockCreated }

// BlockWillDelete is emitted once per block-type node immediately before it
// leaves the tree via a Changeset.
func (s *State) BlockWillDelete() *Stream[*document.Node] { return s.blockWillDelete }

// CursorStateChanged is emitted whenever the cursor is set, tagged with why
//.
func (s *State) CursorStateChanged() *Stream[CursorChangeEvent] { return s.cursorStateChanged }

// ChangesetApplied is emitted exactly once per successful Changeset.Apply
// that executed a structural, text or attribute op, moved the cursor off a
// removed block, re-clamped it via RefreshCursor, or had ForceUpdate set.
// An Apply whose only ops are SetCursorState emits nothing here.
func (s *State) ChangesetApplied() *Stream[ChangesetAppliedEvent] { return s.changesetApplied }

// GetBlockElementById returns the block-type node registered under id.
func (s *State) GetBlockElementById(id string) (*document.Node, bool) {
	n, ok := s.blocks[id]
	return n, ok
}

// IsTextLike reports whether the block registered under id carries a Text
// Model.
func (s *State) IsTextLike(id string) bool {
	n, ok := s.blocks[id]
	return ok && document.IsTextLike(n)
}

// CreateTextElement builds a detached text-like block node, wrapping
// initial (or an empty Delta, if nil) as its Text Model.
func (s *State) CreateTextElement(id, typ string, initial *delta.Delta, attrs map[string]any) *document.Node {
	merged := map[string]any{}
	for k, v := range attrs {
		merged[k] = v
	}
	if initial == nil {
		initial = delta.New()
	}
	merged[document.TextContentAttr] = delta.NewTextModel(initial)
	return document.NewNode(id, typ, merged)
}

// setCursorState clamps cursor's offsets against the text length of
// whatever block each endpoint references, applies the result, and
// notifies subscribers, tagged with why it changed. Returns the clamped
// cursor actually applied -- the OutOfRangeCursor rule (spec.md): an
// offset outside [0, textContent.length] is clamped silently, never
// rejected.
func (s *State) setCursorState(cursor document.CursorState, reason document.CursorReason) document.CursorState {
	cursor = s.clampCursorOffsets(cursor)
	s.cursor = cursor
	s.cursorStateChanged.Emit(CursorChangeEvent{Cursor: cursor, Reason: reason})
	return cursor
}

// clampCursorOffsets clamps cursor's StartOffset/EndOffset into
// [0, textContent.length] for whichever of StartID/EndID names a
// text-like block. A block that is absent or not text-like has no
// textContent.length to clamp against, so its endpoint's offset is left
// unchanged.
func (s *State) clampCursorOffsets(cursor document.CursorState) document.CursorState {
	cursor.StartOffset = s.clampOffsetForBlock(cursor.StartID, cursor.StartOffset)
	cursor.EndOffset = s.clampOffsetForBlock(cursor.EndID, cursor.EndOffset)
	return cursor
}

func (s *State) clampOffsetForBlock(id string, offset int) int {
	n, ok := s.blocks[id]
	if !ok {
		return offset
	}
	length := blockTextLength(n)
	if !document.IsTextLike(n) {
		return offset
	}
	clamped := offset
	switch {
	case offset < 0:
		clamped = 0
	case offset > length:
		clamped = length
	}
	if clamped != offset {
		blocklog.Debug().Str("blockID", id).Int("offset", offset).Int("clampedTo", clamped).Msg("clamped out-of-range cursor offset")
	}
	return clamped
}

// orderedTextBlocks returns every text-like block under Body in document
// (pre-)order, the ordering SplitCursorStateByBlocks walks to find which
// blocks a multi-block cursor spans.
func (s *State) orderedTextBlocks() []*document.Node {
	var out []*document.Node
	var walk func(n *document.Node)
	walk = func(n *document.Node) {
		if document.IsTextLike(n) {
			out = append(out, n)
		}
		for _, c := range n.Children() {
			walk(c)
		}
	}
	walk(s.document.Body())
	return out
}

// SplitCursorStateByBlocks splits cursor into one BlockCursorRange per
// block it touches, in document order: a collapsed cursor yields exactly
// one range; an open cursor spanning N blocks yields N ranges, with every
// interior block's range covering its whole Text Model.
func (s *State) SplitCursorStateByBlocks(cursor document.CursorState) []BlockCursorRange {
	if cursor.IsCollapsed() {
		return []BlockCursorRange{{BlockID: cursor.ID(), StartOffset: cursor.Offset(), EndOffset: cursor.Offset()}}
	}

	blocks := s.orderedTextBlocks()
	startIdx, endIdx := -1, -1
	for i, b := range blocks {
		if b.ID == cursor.StartID {
			startIdx = i
		}
		if b.ID == cursor.EndID {
			endIdx = i
		}
	}
	if startIdx < 0 || endIdx < 0 || endIdx < startIdx {
		return nil
	}

	ranges := make([]BlockCursorRange, 0, endIdx-startIdx+1)
	for i := startIdx; i <= endIdx; i++ {
		b := blocks[i]
		start, end := 0, blockTextLength(b)
		if i == startIdx {
			start = cursor.StartOffset
		}
		if i == endIdx {
			end = cursor.EndOffset
		}
		ranges = append(ranges, BlockCursorRange{BlockID: b.ID, StartOffset: start, EndOffset: end})
	}
	return ranges
}

// ApplyRemoteOps rebuilds a Changeset from ops recorded by a Changeset
// applied on another peer's State, resolving each op's NodeLocation against
// this State's own document tree, and applies it. This is the inbound half
// of the collaborative sync protocol: a RecordedOp carries a path rather
// than a node pointer precisely because no pointer from one peer's tree
// means anything on another's.
func (s *State) ApplyRemoteOps(ops []RecordedOp) error {
	cs := NewChangeset(s)
	for _, op := range ops {
		switch op.Kind {
		case OpNameInsert:
			if len(op.Loc) == 0 {
				return NewInvariantViolation("remote insert carried an empty location", nil)
			}
			parent, ok := document.ResolveLocation(s.document.Root, op.Loc[:len(op.Loc)-1])
			if !ok {
				return NewInvariantViolation("remote insert referenced an unresolvable parent path", nil)
			}
			index := op.Loc[len(op.Loc)-1].Index()
			cs.InsertChildrenAt(parent, index, op.Nodes)

		case OpNameRemoveChild, OpNameRemoveNode:
			target, ok := document.ResolveLocation(s.document.Root, op.Loc)
			if !ok {
				return NewInvariantViolation("remote removal referenced an unresolvable node path", nil)
			}
			cs.RemoveNode(target)

		case OpNameTextEdit:
			target, ok := document.ResolveLocation(s.document.Root, op.Loc)
			if !ok {
				return NewInvariantViolation("remote text edit referenced an unresolvable node path", nil)
			}
			cs.TextEdit(target, op.Edit)

		case OpNameUpdateAttrs:
			target, ok := document.ResolveLocation(s.document.Root, op.Loc)
			if !ok {
				return NewInvariantViolation("remote attribute update referenced an unresolvable node path", nil)
			}
			cs.UpdateAttributes(target, op.Attrs)

		case OpNameSetCursor:
			cs.SetCursorState(op.Cursor, op.Reason)
		}
	}
	return cs.Apply()
}

func blockTextLength(n *document.Node) int {
	tm, ok := n.Attrs[document.TextContentAttr].(*delta.TextModel)
	if !ok {
		return 0
	}
	return tm.Length()
}
