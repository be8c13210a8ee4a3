package controller

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fork-archive-hub/blocky-editor/changeset"
	"github.com/fork-archive-hub/blocky-editor/delta"
	"github.com/fork-archive-hub/blocky-editor/document"
)

type fakeHub struct {
	changesets []changeset.ChangesetAppliedEvent
	cursors    []document.CursorState
}

func (h *fakeHub) Broadcast(_ context.Context, version int, ops []changeset.RecordedOp) {
	h.changesets = append(h.changesets, changeset.ChangesetAppliedEvent{Version: version})
}

func (h *fakeHub) BroadcastCursor(_ context.Context, _ string, cursor document.CursorState) {
	h.cursors = append(h.cursors, cursor)
}

type fakeBlockDef struct {
	name     string
	editable bool
}

func (d fakeBlockDef) Name() string   { return d.name }
func (d fakeBlockDef) Editable() bool { return d.editable }

func newTestController(t *testing.T) *Controller {
	t.Helper()
	blocks := changeset.NewBlockRegistry()
	blocks.Register(fakeBlockDef{name: "Text", editable: true})
	blocks.Register(fakeBlockDef{name: "Image", editable: false})
	c := NewController(ControllerOptions{Title: "Untitled", Blocks: blocks})
	return c
}

func insertText(t *testing.T, c *Controller, id, text string) *document.Node {
	t.Helper()
	n := c.State.CreateTextElement(id, "Text", delta.New().InsertText(text, nil), nil)
	body := c.State.Document().Body()
	cs := changeset.NewChangeset(c.State)
	require.NoError(t, cs.InsertChildrenAt(body, body.ChildCount(), []*document.Node{n}).Apply())
	return n
}

func TestInsertBlockAfterIdInsertsTextBlock(t *testing.T) {
	c := newTestController(t)
	title := c.State.Document().Title()

	cs, err := c.InsertBlockAfterId(title.ID, "Text", delta.New().InsertText("hi", nil), nil)
	require.NoError(t, err)
	require.NotNil(t, cs)

	body := c.State.Document().Body()
	require.Equal(t, 1, body.ChildCount())
	tm := body.ChildAt(0).Attrs[document.TextContentAttr].(*delta.TextModel)
	require.Equal(t, "hi", tm.Delta().PlainText())
	require.Equal(t, document.Collapsed(body.ChildAt(0).ID, 0), cs.AfterCursor())
}

func TestInsertBlockAfterIdRejectsUnknownType(t *testing.T) {
	c := newTestController(t)
	title := c.State.Document().Title()

	_, err := c.InsertBlockAfterId(title.ID, "Bogus", nil, nil)
	require.Error(t, err)
	require.True(t, changeset.IsUnknownBlockType(err))
}

func TestDeleteBlockRemovesNode(t *testing.T) {
	c := newTestController(t)
	b1 := insertText(t, c, "b1", "foo")

	_, err := c.DeleteBlock("b1")
	require.NoError(t, err)
	_, ok := c.State.GetBlockElementById(b1.ID)
	require.False(t, ok)
}

func TestFormatTextOnSelectedTextAppliesThenToggles(t *testing.T) {
	c := newTestController(t)
	insertText(t, c, "b1", "hello world")

	cursor := document.Open("b1", 0, "b1", 5)
	_, err := c.FormatTextOnSelectedText(cursor, map[string]any{"bold": true})
	require.NoError(t, err)

	b1, _ := c.State.GetBlockElementById("b1")
	tm := b1.Attrs[document.TextContentAttr].(*delta.TextModel)
	require.Equal(t, map[string]any{"bold": true}, tm.Delta().Ops[0].Attrs)

	_, err = c.FormatTextOnSelectedText(cursor, map[string]any{"bold": true})
	require.NoError(t, err)
	_, hasBold := tm.Delta().Ops[0].Attrs["bold"]
	require.False(t, hasBold)
}

func TestApplyDeltaAtCursorInsertsAndMovesCursor(t *testing.T) {
	c := newTestController(t)
	insertText(t, c, "b1", "ac")

	cs, err := c.ApplyDeltaAtCursor(document.Collapsed("b1", 1), delta.New().InsertText("b", nil))
	require.NoError(t, err)

	b1, _ := c.State.GetBlockElementById("b1")
	tm := b1.Attrs[document.TextContentAttr].(*delta.TextModel)
	require.Equal(t, "abc", tm.Delta().PlainText())
	require.Equal(t, document.Collapsed("b1", 2), cs.AfterCursor())
}

func TestPastePlainTextAtCursorInsertsVerbatim(t *testing.T) {
	c := newTestController(t)
	insertText(t, c, "b1", "")

	_, err := c.PastePlainTextAtCursor(document.Collapsed("b1", 0), "hello")
	require.NoError(t, err)

	b1, _ := c.State.GetBlockElementById("b1")
	tm := b1.Attrs[document.TextContentAttr].(*delta.TextModel)
	require.Equal(t, "hello", tm.Delta().PlainText())
}

func TestPasteHTMLAtCursorConvertsAndSplices(t *testing.T) {
	c := newTestController(t)
	insertText(t, c, "b1", "hello world")

	htmlStr := `<html><body><p>PASTE</p></body></html>`
	_, err := c.PasteHTMLAtCursor(document.Collapsed("b1", 5), htmlStr)
	require.NoError(t, err)

	b1, _ := c.State.GetBlockElementById("b1")
	tm := b1.Attrs[document.TextContentAttr].(*delta.TextModel)
	require.Equal(t, "helloPASTE world", tm.Delta().PlainText())
}

func TestPasteHTMLAtCursorIsNoOpForEmptyBody(t *testing.T) {
	c := newTestController(t)
	insertText(t, c, "b1", "x")

	cs, err := c.PasteHTMLAtCursor(document.Collapsed("b1", 0), "")
	require.NoError(t, err)
	require.Nil(t, cs)

	b1, _ := c.State.GetBlockElementById("b1")
	tm := b1.Attrs[document.TextContentAttr].(*delta.TextModel)
	require.Equal(t, "x", tm.Delta().PlainText())
}

func TestDeleteContentInsideInSelectionDeletesOpenRange(t *testing.T) {
	c := newTestController(t)
	insertText(t, c, "b1", "foo")
	insertText(t, c, "b2", "bar")

	_, err := c.DeleteContentInsideInSelection(document.Open("b1", 1, "b2", 2))
	require.NoError(t, err)

	b1, _ := c.State.GetBlockElementById("b1")
	tm := b1.Attrs[document.TextContentAttr].(*delta.TextModel)
	require.Equal(t, "fr", tm.Delta().PlainText())
	_, b2Alive := c.State.GetBlockElementById("b2")
	require.False(t, b2Alive)
}

func TestDeleteContentInsideInSelectionIsNoOpWhenCollapsed(t *testing.T) {
	c := newTestController(t)
	insertText(t, c, "b1", "foo")

	cs, err := c.DeleteContentInsideInSelection(document.Collapsed("b1", 1))
	require.NoError(t, err)
	require.Nil(t, cs)
}

func TestSetCursorStateUpdatesLiveCursor(t *testing.T) {
	c := newTestController(t)
	insertText(t, c, "b1", "foo")

	err := c.SetCursorState(document.Collapsed("b1", 2), document.ReasonUIEvent)
	require.NoError(t, err)
	require.Equal(t, document.Collapsed("b1", 2), c.State.Cursor())
}

func TestGetBlockElementAtCursorReturnsNode(t *testing.T) {
	c := newTestController(t)
	insertText(t, c, "b1", "foo")

	n, ok := c.GetBlockElementAtCursor(document.Collapsed("b1", 0))
	require.True(t, ok)
	require.Equal(t, "b1", n.ID)
}

func TestInsertFollowerWidgetInsertsWithoutMovingCursor(t *testing.T) {
	c := newTestController(t)
	insertText(t, c, "b1", "foo")
	require.NoError(t, c.SetCursorState(document.Collapsed("b1", 1), document.ReasonUIEvent))

	widget := document.NewNode("img1", "Image", map[string]any{"src": "x.png"})
	_, err := c.InsertFollowerWidget("b1", widget)
	require.NoError(t, err)

	b1, _ := c.State.GetBlockElementById("b1")
	require.Equal(t, "img1", b1.NextSibling().ID)
	require.Equal(t, document.Collapsed("b1", 1), c.State.Cursor())
}

func TestApplyCursorChangedEventEmitsRemoteStreamWithoutTouchingLocalCursor(t *testing.T) {
	c := newTestController(t)
	insertText(t, c, "b1", "foo")
	require.NoError(t, c.SetCursorState(document.Collapsed("b1", 1), document.ReasonUIEvent))

	var received RemoteCursorEvent
	c.RemoteCursorChanged().Subscribe(func(evt RemoteCursorEvent) {
		received = evt
	})

	c.ApplyCursorChangedEvent("peer-1", document.Collapsed("b1", 3))
	require.Equal(t, "peer-1", received.PeerID)
	require.Equal(t, document.Collapsed("b1", 3), received.Cursor)
	require.Equal(t, document.Collapsed("b1", 1), c.State.Cursor())
}

func TestCursorChangedBridgesLocalCursorMoves(t *testing.T) {
	c := newTestController(t)
	insertText(t, c, "b1", "foo")

	var seen []document.CursorState
	c.CursorChanged().Subscribe(func(cur document.CursorState) {
		seen = append(seen, cur)
	})

	require.NoError(t, c.SetCursorState(document.Collapsed("b1", 2), document.ReasonUserInput))
	require.Equal(t, []document.CursorState{document.Collapsed("b1", 2)}, seen)
}

func TestFlushNextTickRunsQueuedCallbacksInOrder(t *testing.T) {
	c := newTestController(t)

	var order []int
	c.ScheduleNextTick(func() { order = append(order, 1) })
	c.ScheduleNextTick(func() { order = append(order, 2) })
	c.FlushNextTick()

	require.Equal(t, []int{1, 2}, order)
}

func TestFocusDefaultsToTitleWhenCursorUnset(t *testing.T) {
	c := newTestController(t)
	require.True(t, c.State.Cursor().IsZero())

	err := c.Focus()
	require.NoError(t, err)
	require.Equal(t, document.Collapsed(c.State.Document().Title().ID, 0), c.State.Cursor())
}

func TestAttachHubBroadcastsLocalChangesetsAndCursorMoves(t *testing.T) {
	c := newTestController(t)
	hub := &fakeHub{}
	c.AttachHub(hub, "local-peer")

	b1 := insertText(t, c, "b1", "foo")
	require.Len(t, hub.changesets, 1)

	require.NoError(t, c.SetCursorState(document.Collapsed(b1.ID, 1), document.ReasonUserInput))
	require.Equal(t, []document.CursorState{document.Collapsed(b1.ID, 1)}, hub.cursors)
}

func TestApplyRemoteChangesetDoesNotReBroadcast(t *testing.T) {
	c := newTestController(t)
	insertText(t, c, "b1", "foo")
	hub := &fakeHub{}
	c.AttachHub(hub, "local-peer")

	b1, _ := c.State.GetBlockElementById("b1")
	remoteCS := changeset.NewChangeset(c.State)
	remoteCS.TextEdit(b1, delta.New().Retain(3, nil).InsertText("!", nil))
	require.NoError(t, remoteCS.Apply())
	ops := remoteCS.Ops()

	// Undo the local apply above so ApplyRemoteChangeset below starts from
	// the same base content a real remote peer would have diverged from.
	undo := changeset.NewChangeset(c.State)
	undo.TextEdit(b1, delta.New().Retain(3, nil).Delete(1))
	require.NoError(t, undo.Apply())
	hub.changesets = nil

	require.NoError(t, c.ApplyRemoteChangeset(ops))
	require.Equal(t, "foo!", b1.Attrs[document.TextContentAttr].(*delta.TextModel).Delta().PlainText())
	require.Empty(t, hub.changesets)
}

func TestDetachHubStopsBroadcasting(t *testing.T) {
	c := newTestController(t)
	hub := &fakeHub{}
	c.AttachHub(hub, "local-peer")
	c.DetachHub()

	insertText(t, c, "b1", "foo")
	require.Empty(t, hub.changesets)
}

func TestDisposeUnsubscribesLocalCursorBridge(t *testing.T) {
	c := newTestController(t)
	insertText(t, c, "b1", "foo")

	var count int
	c.CursorChanged().Subscribe(func(document.CursorState) { count++ })
	require.NoError(t, c.SetCursorState(document.Collapsed("b1", 1), document.ReasonUserInput))
	require.Equal(t, 1, count)

	c.Dispose()
	require.NoError(t, c.SetCursorState(document.Collapsed("b1", 2), document.ReasonUserInput))
	require.Equal(t, 1, count)
}
