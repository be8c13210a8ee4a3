// Package controller is the stable public façade over a changeset.State: it
// owns the State, the registries, the DOM-facing Editor, a nextTick queue,
// and the cursorChanged stream collaborative cursor broadcasting subscribes
// to. Callers that don't need direct Changeset construction drive the
// document entirely through Controller methods.
package controller

import (
	"context"

	"github.com/pkg/errors"

	"github.com/fork-archive-hub/blocky-editor/blocklog"
	"github.com/fork-archive-hub/blocky-editor/changeset"
	"github.com/fork-archive-hub/blocky-editor/delta"
	"github.com/fork-archive-hub/blocky-editor/document"
	"github.com/fork-archive-hub/blocky-editor/domview"
	"github.com/fork-archive-hub/blocky-editor/paste"
)

// CollabBroadcaster is the subset of collab.Hub a Controller drives
// automatically from its own changesetApplied/cursorChanged streams once
// AttachHub is called. Kept as a local interface rather than importing
// collab directly, since the dependency runs the other way: collab.Hub's
// Receiver interface is satisfied by *Controller, not the reverse.
type CollabBroadcaster interface {
	Broadcast(ctx context.Context, version int, ops []changeset.RecordedOp)
	BroadcastCursor(ctx context.Context, peerID string, cursor document.CursorState)
}

// Padding is the editor's outer inset, in the host's layout units.
type Padding struct {
	Top, Right, Bottom, Left int
}

// ControllerOptions configures a new Controller. A zero DefaultTextType,
// EmptyPlaceholder, Blocks, Spans or Embeds falls back to a default (see
// NewController); every other field is used as given, so Spellcheck and
// TitleEditable are false unless set.
type ControllerOptions struct {
	// Title seeds a fresh document's Title block when Document is nil;
	// ignored when Document is given.
	Title    string
	Document *document.BlockyDocument

	// InitVersion resumes the version counter from a previously persisted
	// value instead of starting at 0.
	InitVersion int

	Blocks *changeset.BlockRegistry
	Spans  *changeset.SpanRegistry
	Embeds *changeset.EmbedRegistry

	// DefaultTextType is the block type new plain-text blocks are created
	// as (paste overflow, Enter-split fallback). Defaults to
	// domview.DefaultTextType.
	DefaultTextType string
	// PreservedSplitTypes are text types whose identity survives an Enter
	// split (e.g. a bulleted-list item stays a bulleted-list item).
	PreservedSplitTypes []string

	EmptyPlaceholder string
	Spellcheck       bool
	TitleEditable    bool
	Padding          Padding

	URLLauncher func(url string)
	OnError     func(error)
}

// RemoteCursorEvent is a peer's cursor position, relayed by collab.Hub and
// applied via Controller.ApplyCursorChangedEvent. It never touches the
// local State's own cursor -- a remote caret is rendered as an overlay, not
// mistaken for the local user's selection.
type RemoteCursorEvent struct {
	PeerID string
	Cursor document.CursorState
}

// Controller is the stable public API described in the external
// interfaces section of the spec: it owns the State, the Editor, the
// registries, and the observables embedders subscribe to.
type Controller struct {
	State  *changeset.State
	Editor *domview.Editor
	Blocks *changeset.BlockRegistry
	Spans  *changeset.SpanRegistry
	Embeds *changeset.EmbedRegistry

	opts ControllerOptions

	cursorChanged            *changeset.Stream[document.CursorState]
	beforeApplyCursorChanged *changeset.Stream[RemoteCursorEvent]
	remoteCursorChanged      *changeset.Stream[RemoteCursorEvent]
	localCursorSub           int

	nextTick []func()

	hub             CollabBroadcaster
	hubPeerID       string
	hubChangesetSub int
	hubCursorSub    int
	applyingRemote  bool
}

// NewController builds a Controller, seeding a fresh document from
// opts.Title when opts.Document is nil, and wiring the Editor and the
// local-cursor-changed bridge that re-emits State cursor moves on
// Controller.CursorChanged() for collaborative broadcast.
func NewController(opts ControllerOptions) *Controller {
	if opts.DefaultTextType == "" {
		opts.DefaultTextType = domview.DefaultTextType
	}
	if opts.EmptyPlaceholder == "" {
		opts.EmptyPlaceholder = "Empty content"
	}
	if opts.Blocks == nil {
		opts.Blocks = changeset.NewBlockRegistry()
	}
	if opts.Spans == nil {
		opts.Spans = changeset.NewSpanRegistry()
	}
	if opts.Embeds == nil {
		opts.Embeds = changeset.NewEmbedRegistry()
	}

	doc := opts.Document
	if doc == nil {
		title := document.NewNode(changeset.NewBlockID(), "Title", map[string]any{
			document.TextContentAttr: delta.NewTextModel(delta.New().InsertText(opts.Title, nil)),
		})
		doc = document.NewBlockyDocument(changeset.NewBlockID(), title)
	}
	state := changeset.NewState(doc)
	if opts.InitVersion != 0 {
		state.SetVersion(opts.InitVersion)
	}

	c := &Controller{
		State:                    state,
		Editor:                   domview.NewEditor(state, opts.Embeds, opts.PreservedSplitTypes...),
		Blocks:                   opts.Blocks,
		Spans:                    opts.Spans,
		Embeds:                   opts.Embeds,
		opts:                     opts,
		cursorChanged:            changeset.NewStream[document.CursorState](),
		beforeApplyCursorChanged: changeset.NewStream[RemoteCursorEvent](),
		remoteCursorChanged:      changeset.NewStream[RemoteCursorEvent](),
	}
	c.localCursorSub = state.CursorStateChanged().Subscribe(func(evt changeset.CursorChangeEvent) {
		c.cursorChanged.Emit(evt.Cursor)
	})
	return c
}

// CursorChanged is emitted whenever the local cursor moves, for
// collaborative cursor broadcasting (the bridge AttachHub installs
// subscribes here and forwards each move to the hub).
func (c *Controller) CursorChanged() *changeset.Stream[document.CursorState] { return c.cursorChanged }

// BeforeApplyCursorChanged is emitted immediately before a remote cursor
// event is applied, giving embedders a chance to inspect the prior state.
func (c *Controller) BeforeApplyCursorChanged() *changeset.Stream[RemoteCursorEvent] {
	return c.beforeApplyCursorChanged
}

// RemoteCursorChanged is emitted after a remote cursor event is applied.
func (c *Controller) RemoteCursorChanged() *changeset.Stream[RemoteCursorEvent] {
	return c.remoteCursorChanged
}

// ScheduleNextTick queues fn to run on the next FlushNextTick call. There
// is no browser animation-frame loop in this headless module (out of
// scope per Non-goals: framework bindings); a host event loop calls
// FlushNextTick once per frame instead.
func (c *Controller) ScheduleNextTick(fn func()) {
	c.nextTick = append(c.nextTick, fn)
}

// FlushNextTick runs every callback queued since the last flush, in
// enqueue order. Callbacks queued during the flush run on the next
// FlushNextTick, not this one.
func (c *Controller) FlushNextTick() {
	pending := c.nextTick
	c.nextTick = nil
	for _, fn := range pending {
		fn()
	}
}

// reportError logs and forwards err to opts.OnError, the propagation
// policy for invariant violations that cannot be handled locally.
func (c *Controller) reportError(err error) {
	blocklog.Error().Err(err).Msg("controller operation failed")
	if c.opts.OnError != nil {
		c.opts.OnError(err)
	}
}

// InsertBlockAfterId inserts a new block of blockType immediately after
// afterID. Passing a non-nil initial Delta creates a text-like block
// (CreateTextElement); a nil initial creates a plain attribute-only block
// (e.g. an image). The cursor moves to the new block's start.
func (c *Controller) InsertBlockAfterId(afterID, blockType string, initial *delta.Delta, attrs map[string]any) (*changeset.Changeset, error) {
	after, ok := c.State.GetBlockElementById(afterID)
	if !ok {
		err := changeset.NewInvariantViolation("insertBlockAfterId referenced an unknown block "+afterID, nil)
		c.reportError(err)
		return nil, err
	}
	if _, ok := c.Blocks.Lookup(blockType); !ok {
		err := &changeset.UnknownBlockTypeError{TypeName: blockType}
		blocklog.Warn().Str("blockType", blockType).Msg("insertBlockAfterId: unregistered block type")
		return nil, err
	}

	id := changeset.NewBlockID()
	var node *document.Node
	if initial != nil {
		node = c.State.CreateTextElement(id, blockType, initial, attrs)
	} else {
		node = document.NewNode(id, blockType, attrs)
	}

	// The title block lives directly under the document root, not under
	// Body, so "after the title" means "at the start of Body" rather than
	// "as the title's next root-level sibling".
	parent, index := after.Parent(), after.IndexInParent()+1
	if after == c.State.Document().Title() {
		parent, index = c.State.Document().Body(), 0
	}

	cs := changeset.NewChangeset(c.State)
	cs.InsertChildrenAt(parent, index, []*document.Node{node})
	cs.SetCursorState(document.Collapsed(node.ID, 0), document.ReasonUserInput)
	if err := cs.Apply(); err != nil {
		return nil, errors.Wrap(err, "insertBlockAfterId")
	}
	return cs, nil
}

// DeleteBlock removes the block registered under id from the tree.
func (c *Controller) DeleteBlock(id string) (*changeset.Changeset, error) {
	node, ok := c.State.GetBlockElementById(id)
	if !ok {
		err := changeset.NewInvariantViolation("deleteBlock referenced an unknown block "+id, nil)
		c.reportError(err)
		return nil, err
	}
	cs := changeset.NewChangeset(c.State)
	cs.RemoveNode(node)
	if err := cs.Apply(); err != nil {
		return nil, errors.Wrap(err, "deleteBlock")
	}
	return cs, nil
}

// FormatTextOnCursor formats the live selection (State.Cursor()) with
// attrs, following the toggle rule. A collapsed live cursor has no active
// selection to format against -- this module tracks no "sticky" pending
// format for subsequently typed characters, so it is a no-op (nil, nil).
// Callers that already hold an explicit range should call
// FormatTextOnSelectedText directly instead.
func (c *Controller) FormatTextOnCursor(attrs map[string]any) (*changeset.Changeset, error) {
	cursor := c.State.Cursor()
	if cursor.IsCollapsed() {
		return nil, nil
	}
	return c.FormatTextOnSelectedText(cursor, attrs)
}

// FormatTextOnSelectedText applies attrs as a retain-format edit over
// cursor's open range, possibly spanning several blocks. If every
// insert op already in range carries every key in attrs set to its
// requested value, the format is toggled off (every key flipped to nil)
// instead of reapplied.
func (c *Controller) FormatTextOnSelectedText(cursor document.CursorState, attrs map[string]any) (*changeset.Changeset, error) {
	ranges := c.State.SplitCursorStateByBlocks(cursor)
	if len(ranges) == 0 {
		err := changeset.NewInvariantViolation("format target cursor did not resolve to any block range", nil)
		c.reportError(err)
		return nil, err
	}

	allSet := true
	for _, r := range ranges {
		if r.EndOffset <= r.StartOffset {
			continue
		}
		tm, ok := textModelFor(c.State, r.BlockID)
		if !ok {
			continue
		}
		if !allOpsHaveAttrs(tm.Delta().Slice(r.StartOffset, r.EndOffset), attrs) {
			allSet = false
			break
		}
	}

	effective := attrs
	if allSet {
		effective = make(map[string]any, len(attrs))
		for k := range attrs {
			effective[k] = nil
		}
	}

	cs := changeset.NewChangeset(c.State)
	for _, r := range ranges {
		if r.EndOffset <= r.StartOffset {
			continue
		}
		node, ok := c.State.GetBlockElementById(r.BlockID)
		if !ok {
			continue
		}
		edit := delta.New().Retain(r.StartOffset, nil).Retain(r.EndOffset-r.StartOffset, effective)
		cs.TextEdit(node, edit)
	}
	if err := cs.Apply(); err != nil {
		return nil, errors.Wrap(err, "formatTextOnSelectedText")
	}
	return cs, nil
}

func textModelFor(state *changeset.State, blockID string) (*delta.TextModel, bool) {
	node, ok := state.GetBlockElementById(blockID)
	if !ok {
		return nil, false
	}
	tm, ok := node.Attrs[document.TextContentAttr].(*delta.TextModel)
	return tm, ok
}

func allOpsHaveAttrs(d *delta.Delta, attrs map[string]any) bool {
	for _, op := range d.Ops {
		if op.Kind != delta.KindInsert {
			continue
		}
		for k, v := range attrs {
			if op.Attrs[k] != v {
				return false
			}
		}
	}
	return true
}

// ApplyDeltaAtCursor composes edit into the collapsed cursor's block at
// its offset, moving the cursor to the end of the inserted content. Used
// for both plain-text paste fallback and programmatic inserts (e.g. a
// block's own IME-safe insert path).
func (c *Controller) ApplyDeltaAtCursor(cursor document.CursorState, edit *delta.Delta) (*changeset.Changeset, error) {
	if !cursor.IsCollapsed() {
		err := changeset.NewInvariantViolation("applyDeltaAtCursor requires a collapsed cursor", nil)
		c.reportError(err)
		return nil, err
	}
	node, ok := c.State.GetBlockElementById(cursor.ID())
	if !ok {
		err := changeset.NewInvariantViolation("applyDeltaAtCursor targeted an unknown block "+cursor.ID(), nil)
		c.reportError(err)
		return nil, err
	}
	if _, ok := node.Attrs[document.TextContentAttr].(*delta.TextModel); !ok {
		err := changeset.NewInvariantViolation("applyDeltaAtCursor targeted a non-text-like block "+cursor.ID(), nil)
		c.reportError(err)
		return nil, err
	}

	offset := cursor.Offset()
	cs := changeset.NewChangeset(c.State)
	cs.TextEdit(node, delta.New().Retain(offset, nil).Concat(edit))
	cs.SetCursorState(document.Collapsed(node.ID, offset+edit.ChangeLength()), document.ReasonUserInput)
	if err := cs.Apply(); err != nil {
		return nil, errors.Wrap(err, "applyDeltaAtCursor")
	}
	return cs, nil
}

// PastePlainTextAtCursor inserts text verbatim at cursor with no
// attributes -- the fallback when only text/plain is present on the
// clipboard, or when HTML parsing fails.
func (c *Controller) PastePlainTextAtCursor(cursor document.CursorState, text string) (*changeset.Changeset, error) {
	return c.ApplyDeltaAtCursor(cursor, delta.New().InsertText(text, nil))
}

// PasteHTMLAtCursor parses htmlStr as a clipboard HTML body, converts it
// into BlockDataElements via the registered Block/Span registries, and
// splices the result in at cursor. A parse failure is absorbed and
// logged (ClipboardParseError is a recoverable error per the taxonomy);
// callers that have a text/plain fallback available should call
// PastePlainTextAtCursor themselves in that case.
func (c *Controller) PasteHTMLAtCursor(cursor document.CursorState, htmlStr string) (*changeset.Changeset, error) {
	doc, err := paste.ParseClipboardHTML(htmlStr)
	if err != nil {
		blocklog.Warn().Err(err).Msg("clipboard HTML parse failed")
		return nil, nil
	}
	body := paste.FindBody(doc)
	if body == nil {
		return nil, nil
	}
	elements, err := paste.ConvertBody(body, c.Blocks, c.Spans, c.opts.DefaultTextType, changeset.NewBlockID)
	if err != nil {
		if changeset.IsUnknownBlockType(err) {
			blocklog.Warn().Err(err).Msg("pasteHTMLAtCursor: dropping unregistered block type")
			return nil, nil
		}
		return nil, errors.Wrap(err, "pasteHTMLAtCursor")
	}
	return c.PasteElementsAtCursor(cursor, elements)
}

// PasteElementsAtCursor splices already-converted elements (clipboard
// conversion output, or a self-paste wire decode) in at cursor.
func (c *Controller) PasteElementsAtCursor(cursor document.CursorState, elements []*document.Node) (*changeset.Changeset, error) {
	cs, err := paste.PasteElementsAtCursor(c.State, cursor, c.opts.DefaultTextType, elements)
	if err != nil {
		return nil, errors.Wrap(err, "pasteElementsAtCursor")
	}
	return cs, nil
}

// DeleteContentInsideInSelection deletes an open cursor's content (a
// collapsed cursor has nothing to delete, so this is a no-op). Reuses
// Editor's open-range delete routine rather than duplicating it, since
// Backspace on an open selection is exactly this operation.
func (c *Controller) DeleteContentInsideInSelection(cursor document.CursorState) (*changeset.Changeset, error) {
	if cursor.IsCollapsed() {
		return nil, nil
	}
	cs, err := c.Editor.HandleBackspace(cursor)
	if err != nil {
		return nil, errors.Wrap(err, "deleteContentInsideInSelection")
	}
	return cs, nil
}

// SetCursorState sets the live cursor directly, tagged with reason.
func (c *Controller) SetCursorState(cursor document.CursorState, reason document.CursorReason) error {
	cs := changeset.NewChangeset(c.State)
	cs.SetCursorState(cursor, reason)
	return cs.Apply()
}

// GetBlockElementAtCursor returns the block a collapsed (or open-range
// start) cursor addresses.
func (c *Controller) GetBlockElementAtCursor(cursor document.CursorState) (*document.Node, bool) {
	return c.State.GetBlockElementById(cursor.ID())
}

// InsertFollowerWidget inserts widget as a sibling immediately after
// afterID without touching the cursor -- a decorative or non-editable
// element (e.g. an upload-progress indicator) that trails a block it
// was spawned from.
func (c *Controller) InsertFollowerWidget(afterID string, widget *document.Node) (*changeset.Changeset, error) {
	after, ok := c.State.GetBlockElementById(afterID)
	if !ok {
		err := changeset.NewInvariantViolation("insertFollowerWidget referenced an unknown block "+afterID, nil)
		c.reportError(err)
		return nil, err
	}
	cs := changeset.NewChangeset(c.State)
	cs.InsertChildrenAfter(after.Parent(), []*document.Node{widget}, after)
	if err := cs.Apply(); err != nil {
		return nil, errors.Wrap(err, "insertFollowerWidget")
	}
	return cs, nil
}

// ApplyCursorChangedEvent applies a remote peer's cursor position. It
// never writes to State's own cursor -- a remote caret is a distinct
// overlay, not a replacement for the local user's selection.
func (c *Controller) ApplyCursorChangedEvent(peerID string, cursor document.CursorState) {
	evt := RemoteCursorEvent{PeerID: peerID, Cursor: cursor}
	c.beforeApplyCursorChanged.Emit(evt)
	c.remoteCursorChanged.Emit(evt)
}

// ApplyRemoteChangeset replays ops recorded by a Changeset applied on
// another peer's Controller against this one's own State, resolving each
// op's location against this State's own tree. collab.Hub calls this from
// the host's own goroutine once it has drained a peer's
// changeset/applied notification -- never from a connection's own
// read-loop goroutine, since State mutation is confined to the single
// goroutine the host otherwise drives Controller from.
//
// While applying, the changesetApplied bridge AttachHub installs does not
// re-broadcast: without this guard a two-peer Hub would echo every remote
// edit straight back to its origin.
func (c *Controller) ApplyRemoteChangeset(ops []changeset.RecordedOp) error {
	c.applyingRemote = true
	defer func() { c.applyingRemote = false }()
	if err := c.State.ApplyRemoteOps(ops); err != nil {
		c.reportError(err)
		return err
	}
	return nil
}

// AttachHub wires hub to this Controller's own change streams: every
// locally-applied changeset is broadcast as hub.Broadcast, and every local
// cursor move as hub.BroadcastCursor under localPeerID. Call once a
// collab.Hub has been constructed with this Controller as its Receiver.
func (c *Controller) AttachHub(hub CollabBroadcaster, localPeerID string) {
	c.DetachHub()
	c.hub = hub
	c.hubPeerID = localPeerID
	c.hubChangesetSub = c.State.ChangesetApplied().Subscribe(func(evt changeset.ChangesetAppliedEvent) {
		if c.applyingRemote {
			return
		}
		hub.Broadcast(context.Background(), evt.Version, evt.Changeset.Ops())
	})
	c.hubCursorSub = c.cursorChanged.Subscribe(func(cur document.CursorState) {
		hub.BroadcastCursor(context.Background(), localPeerID, cur)
	})
}

// DetachHub unsubscribes the bridge installed by AttachHub, if any. Safe
// to call when no Hub is attached.
func (c *Controller) DetachHub() {
	if c.hub == nil {
		return
	}
	c.State.ChangesetApplied().Unsubscribe(c.hubChangesetSub)
	c.cursorChanged.Unsubscribe(c.hubCursorSub)
	c.hub = nil
}

// Focus re-asserts the current cursor (defaulting to the title block's
// start if none is set yet), forcing a cursorStateChanged re-emission so
// a host's selection mapping can (re)place the browser Range.
func (c *Controller) Focus() error {
	cursor := c.State.Cursor()
	if cursor.IsZero() {
		cursor = document.Collapsed(c.State.Document().Title().ID, 0)
	}
	cs := changeset.NewChangeset(c.State)
	cs.SetCursorState(cursor, document.ReasonUIEvent)
	return cs.Apply()
}

// Dispose unsubscribes the Controller's internal stream bridge and drops
// any queued nextTick callbacks, per the requirement that every listener
// installed at construction be removed to avoid leaks.
func (c *Controller) Dispose() {
	c.DetachHub()
	c.State.CursorStateChanged().Unsubscribe(c.localCursorSub)
	c.nextTick = nil
}
