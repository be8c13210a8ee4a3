package changeset

import (
	"github.com/fork-archive-hub/blocky-editor/blocklog"
	"github.com/fork-archive-hub/blocky-editor/delta"
	"github.com/fork-archive-hub/blocky-editor/document"
)

type opKind int

const (
	opInsertAt opKind = iota
	opInsertAfter
	opRemoveChild
	opRemoveNode
	opTextEdit
	opUpdateAttrs
	opSetCursor
)

// opRecord is one entry of a Changeset's op table. loc is
// the affected node's (or, for inserts, the parent's) path at the moment
// the op was recorded; Apply keeps it current as earlier ops in the same
// changeset execute, the same way a patch-list applier keeps later ops'
// paths current as earlier diff ops mutate sibling indices.
type opRecord struct {
	kind   opKind
	loc    document.NodeLocation
	parent *document.Node
	index  int
	nodes  []*document.Node
	target *document.Node
	edit   *delta.Delta
	attrs  map[string]any
	cursor document.CursorState
	reason document.CursorReason
}

// Changeset batches a set of document edits and cursor updates for
// application against a State. Ops execute in recording order when Apply
// runs; newBlockCreated, blockWillDelete and cursorStateChanged fire as the
// ops that cause them execute, and changesetApplied fires once at the end.
// Apply does not undo ops that already executed when a later op fails.
type Changeset struct {
	state         *State
	ops           []*opRecord
	forceUpdate   bool
	refreshCursor bool
	afterCursor   document.CursorState
}

// NewChangeset starts an empty changeset against state.
func NewChangeset(state *State) *Changeset {
	return &Changeset{state: state}
}

func (cs *Changeset) locOf(n *document.Node) document.NodeLocation {
	loc, ok := document.Location(cs.state.document.Root, n)
	if !ok {
		return nil
	}
	return loc
}

// locAt returns the path of the child-index slot `index` within parent:
// parent's own location with index appended. This, not parent's location
// alone, is the base Transform needs for an insertion, since Transform's
// last component names the sibling index the edit happened at.
func (cs *Changeset) locAt(parent *document.Node, index int) document.NodeLocation {
	parentLoc := cs.locOf(parent)
	out := make(document.NodeLocation, len(parentLoc)+1)
	copy(out, parentLoc)
	out[len(parentLoc)] = document.Index(index)
	return out
}

// InsertChildrenAt records inserting nodes at index under parent.
func (cs *Changeset) InsertChildrenAt(parent *document.Node, index int, nodes []*document.Node) *Changeset {
	cs.ops = append(cs.ops, &opRecord{
		kind: opInsertAt, loc: cs.locAt(parent, index), parent: parent, index: index, nodes: nodes,
	})
	return cs
}

// InsertChildrenAfter records inserting nodes immediately after
// prevSibling (or at index 0 if prevSibling is nil) under parent.
func (cs *Changeset) InsertChildrenAfter(parent *document.Node, nodes []*document.Node, prevSibling *document.Node) *Changeset {
	index := 0
	if prevSibling != nil {
		index = prevSibling.IndexInParent() + 1
	}
	cs.ops = append(cs.ops, &opRecord{
		kind: opInsertAfter, loc: cs.locAt(parent, index), parent: parent, index: index, nodes: nodes,
	})
	return cs
}

// RemoveChild records removing child from parent.
func (cs *Changeset) RemoveChild(parent, child *document.Node) *Changeset {
	cs.ops = append(cs.ops, &opRecord{
		kind: opRemoveChild, loc: cs.locOf(child), parent: parent, target: child,
	})
	return cs
}

// RemoveNode records removing n from whatever its current parent is.
func (cs *Changeset) RemoveNode(n *document.Node) *Changeset {
	cs.ops = append(cs.ops, &opRecord{
		kind: opRemoveNode, loc: cs.locOf(n), target: n,
	})
	return cs
}

// TextEdit records composing edit into target's Text Model.
func (cs *Changeset) TextEdit(target *document.Node, edit *delta.Delta) *Changeset {
	cs.ops = append(cs.ops, &opRecord{
		kind: opTextEdit, loc: cs.locOf(target).WithAttr(document.TextContentAttr), target: target, edit: edit,
	})
	return cs
}

// UpdateAttributes records merging attrs into target's attribute map; a
// nil value in attrs clears the corresponding key, mirroring Delta's
// format-attribute merge convention.
func (cs *Changeset) UpdateAttributes(target *document.Node, attrs map[string]any) *Changeset {
	cs.ops = append(cs.ops, &opRecord{
		kind: opUpdateAttrs, loc: cs.locOf(target), target: target, attrs: attrs,
	})
	return cs
}

// SetCursorState records setting the cursor once this changeset commits.
func (cs *Changeset) SetCursorState(cursor document.CursorState, reason document.CursorReason) *Changeset {
	cs.ops = append(cs.ops, &opRecord{kind: opSetCursor, cursor: cursor, reason: reason})
	return cs
}

// ForceUpdate marks the changeset as emitting changesetApplied even if it
// recorded no structural or text ops.
func (cs *Changeset) ForceUpdate() *Changeset {
	cs.forceUpdate = true
	return cs
}

// RefreshCursor marks the changeset as re-normalizing the live cursor on
// Apply: the current cursor is preserved (no opSetCursor need be recorded)
// but its offsets are re-clamped to each referenced block's current
// textContent.length, picking up any shift this changeset's own text edits
// caused.
func (cs *Changeset) RefreshCursor() *Changeset {
	cs.refreshCursor = true
	return cs
}

// AfterCursor returns the cursor state set by this changeset's most recent
// SetCursorState call, valid after Apply returns successfully.
func (cs *Changeset) AfterCursor() document.CursorState { return cs.afterCursor }

// RecordedOp is a location-addressed, wire-friendly snapshot of one applied
// op. A live Go pointer means nothing to a remote peer; the collab package
// serializes a Changeset's RecordedOps (not its raw node pointers) into the
// changeset/applied notification it broadcasts, and State.ApplyRemoteOps
// resolves them back against the receiving peer's own tree.
type RecordedOp struct {
	Kind OpName
	Loc  document.NodeLocation
	// Delta is the sibling-count shift an insert or removal op caused
	// (len(nodes) for an insert, -1 for a single removal); zero for
	// non-structural ops.
	Delta int
	// Nodes carries the inserted subtrees for an insert op, nil otherwise.
	Nodes []*document.Node
	// Edit carries the composed edit Delta for a textEdit op, nil otherwise.
	Edit *delta.Delta
	// Attrs carries the merged attribute set for an updateAttributes op,
	// nil otherwise.
	Attrs map[string]any
	// Cursor and Reason populate a setCursorState op.
	Cursor document.CursorState
	Reason document.CursorReason
}

// OpName names a RecordedOp's kind without exposing opRecord's internals.
type OpName string

const (
	OpNameInsert      OpName = "insertChildren"
	OpNameRemoveChild OpName = "removeChild"
	OpNameRemoveNode  OpName = "removeNode"
	OpNameTextEdit    OpName = "textEdit"
	OpNameUpdateAttrs OpName = "updateAttributes"
	OpNameSetCursor   OpName = "setCursorState"
)

// Ops returns a wire-friendly snapshot of every op this changeset recorded,
// with each structural op's Loc reflecting the effect of every op that
// executed before it (the Transform propagation Apply performs as it
// executes). Valid after Apply returns successfully.
func (cs *Changeset) Ops() []RecordedOp {
	out := make([]RecordedOp, 0, len(cs.ops))
	for _, op := range cs.ops {
		r := RecordedOp{Loc: op.loc}
		switch op.kind {
		case opInsertAt, opInsertAfter:
			r.Kind, r.Delta, r.Nodes = OpNameInsert, len(op.nodes), op.nodes
		case opRemoveChild:
			r.Kind, r.Delta = OpNameRemoveChild, -1
		case opRemoveNode:
			r.Kind, r.Delta = OpNameRemoveNode, -1
		case opTextEdit:
			r.Kind, r.Edit = OpNameTextEdit, op.edit
		case opUpdateAttrs:
			r.Kind, r.Attrs = OpNameUpdateAttrs, op.attrs
		case opSetCursor:
			r.Kind, r.Cursor, r.Reason = OpNameSetCursor, op.cursor, op.reason
		}
		out = append(out, r)
	}
	return out
}

// Apply executes every recorded op against state in order, then commits:
//  1. reject if another changeset is already applying on state (reentrancy)
//  2. mark state as applying
//  3. execute ops in order, transforming the as-yet-unexecuted ops'
//     recorded locations through document.Transform as each structural op
//     commits, and emitting newBlockCreated/blockWillDelete around
//     structural ops that create or remove block-type nodes; a recorded
//     SetCursorState runs at its own position in this order, clamping its
//     offsets to each referenced block's textContent.length and emitting
//     cursorStateChanged
//  4. clamp the live cursor if the op stream removed the block it
//     referenced
//  5. if RefreshCursor was set, re-clamp the (possibly untouched) live
//     cursor the same way, picking up any length change this changeset's
//     own text edits caused
//  6. if anything changed (or ForceUpdate was set), bump state's version
//     and emit changesetApplied exactly once, carrying the new version;
//     a changeset that only sets the cursor does neither
//
// Apply is not safe to call reentrantly on the same State from within one
// of its own stream subscribers; that returns a ReentrantApplyError.
func (cs *Changeset) Apply() error {
	if cs.state.applying {
		return &ReentrantApplyError{}
	}
	cs.state.applying = true
	defer func() { cs.state.applying = false }()

	changed := cs.forceUpdate

	for i, op := range cs.ops {
		switch op.kind {
		case opInsertAt, opInsertAfter:
			document.InsertChildrenAt(op.parent, op.index, op.nodes)
			changed = true
			for _, n := range op.nodes {
				if document.IsBlockTypeName(n.Type) {
					cs.state.blocks[n.ID] = n
					cs.state.newBlockCreated.Emit(n)
				}
			}
			cs.propagateShift(cs.ops[i+1:], op.loc, len(op.nodes))

		case opRemoveChild:
			cs.retireBlock(op.target)
			document.RemoveChild(op.parent, op.target)
			changed = true
			cs.propagateShift(cs.ops[i+1:], op.loc, -1)

		case opRemoveNode:
			cs.retireBlock(op.target)
			document.RemoveNode(op.target)
			changed = true
			cs.propagateShift(cs.ops[i+1:], op.loc, -1)

		case opTextEdit:
			tm, ok := op.target.Attrs[document.TextContentAttr].(*delta.TextModel)
			if !ok {
				return NewInvariantViolation("textEdit target has no Text Model", nil)
			}
			tm.Compose(op.edit)
			changed = true

		case opUpdateAttrs:
			for k, v := range op.attrs {
				if v == nil {
					delete(op.target.Attrs, k)
					continue
				}
				op.target.Attrs[k] = v
			}
			changed = true

		case opSetCursor:
			cs.afterCursor = cs.state.setCursorState(op.cursor, op.reason)
		}
	}

	if cs.clampLiveCursorIfDangling() {
		changed = true
	}

	if cs.refreshCursor && cs.refreshLiveCursor() {
		changed = true
	}

	if changed {
		cs.state.version++
		cs.state.changesetApplied.Emit(ChangesetAppliedEvent{Changeset: cs, Version: cs.state.version})
	}
	return nil
}

// propagateShift rewrites every not-yet-executed op's recorded location to
// account for a structural edit at base, the same transform applied
// across a whole pending patch list.
func (cs *Changeset) propagateShift(pending []*opRecord, base document.NodeLocation, shift int) {
	if base == nil {
		return
	}
	for _, op := range pending {
		op.loc = document.Transform(base, op.loc, shift)
	}
}

// retireBlock emits blockWillDelete and drops target from the block index
// before it is unlinked, so subscribers can still read it from the live
// tree while handling the event.
func (cs *Changeset) retireBlock(target *document.Node) {
	if target == nil || !document.IsBlockTypeName(target.Type) {
		return
	}
	cs.state.blockWillDelete.Emit(target)
	delete(cs.state.blocks, target.ID)
}

// clampLiveCursorIfDangling silently moves state's current cursor to the
// document's title block if the block it referenced was just removed
//. Reports whether it changed anything.
func (cs *Changeset) clampLiveCursorIfDangling() bool {
	cur := cs.state.cursor
	if cur.IsZero() {
		return false
	}
	_, startOK := cs.state.blocks[cur.StartID]
	_, endOK := cs.state.blocks[cur.EndID]
	if startOK && endOK {
		return false
	}
	title := cs.state.document.Title()
	fallback := document.Collapsed(title.ID, 0)
	blocklog.Debug().Str("startID", cur.StartID).Str("endID", cur.EndID).Msg("cursor block removed, falling back to title")
	cs.state.setCursorState(fallback, document.ReasonChangeset)
	return true
}

// refreshLiveCursor re-normalizes state's current cursor in place,
// implementing opts.refreshCursor: offsets are clamped to each referenced
// block's textContent.length, same rule as setCursorState applies to a
// freshly recorded cursor. Reports whether anything actually changed.
func (cs *Changeset) refreshLiveCursor() bool {
	cur := cs.state.cursor
	if cur.IsZero() {
		return false
	}
	clamped := cs.state.clampCursorOffsets(cur)
	if clamped == cur {
		return false
	}
	cs.state.setCursorState(clamped, document.ReasonChangeset)
	return true
}
