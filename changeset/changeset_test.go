package changeset

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fork-archive-hub/blocky-editor/delta"
	"github.com/fork-archive-hub/blocky-editor/document"
)

func newTestState() *State {
	title := document.NewNode("title", "Heading1", nil)
	doc := document.NewBlockyDocument("root", title)
	return NewState(doc)
}

func TestApplyInsertTextBlockEmitsNewBlockCreated(t *testing.T) {
	s := newTestState()

	var created []*document.Node
	s.NewBlockCreated().Subscribe(func(n *document.Node) { created = append(created, n) })

	p := s.CreateTextElement("p1", "Paragraph", delta.New().InsertText("hello", nil), nil)
	err := NewChangeset(s).InsertChildrenAt(s.Document().Body(), 0, []*document.Node{p}).Apply()
	require.NoError(t, err)

	require.Len(t, created, 1)
	require.Equal(t, "p1", created[0].ID)
	got, ok := s.GetBlockElementById("p1")
	require.True(t, ok)
	require.Same(t, p, got)
	require.Equal(t, 1, s.Version())
}

func TestApplyRemoveNodeEmitsBlockWillDeleteBeforeUnlink(t *testing.T) {
	s := newTestState()
	p := s.CreateTextElement("p1", "Paragraph", nil, nil)
	require.NoError(t, NewChangeset(s).InsertChildrenAt(s.Document().Body(), 0, []*document.Node{p}).Apply())

	var sawParentDuringEvent *document.Node
	s.BlockWillDelete().Subscribe(func(n *document.Node) { sawParentDuringEvent = n.Parent() })

	require.NoError(t, NewChangeset(s).RemoveNode(p).Apply())

	require.NotNil(t, sawParentDuringEvent, "node must still be linked when blockWillDelete fires")
	_, stillIndexed := s.GetBlockElementById("p1")
	require.False(t, stillIndexed)
	require.Nil(t, p.Parent())
}

func TestApplyTextEditComposesIntoModel(t *testing.T) {
	s := newTestState()
	p := s.CreateTextElement("p1", "Paragraph", delta.New().InsertText("hello", nil), nil)
	require.NoError(t, NewChangeset(s).InsertChildrenAt(s.Document().Body(), 0, []*document.Node{p}).Apply())

	edit := delta.New().Retain(5, nil).InsertText(" world", nil)
	require.NoError(t, NewChangeset(s).TextEdit(p, edit).Apply())

	tm := p.Attrs[document.TextContentAttr].(*delta.TextModel)
	require.Equal(t, "hello world", tm.Delta().PlainText())
}

func TestApplyUpdateAttributesClearsNilValuedKeys(t *testing.T) {
	s := newTestState()
	p := s.CreateTextElement("p1", "Paragraph", nil, map[string]any{"align": "center"})
	require.NoError(t, NewChangeset(s).InsertChildrenAt(s.Document().Body(), 0, []*document.Node{p}).Apply())

	require.NoError(t, NewChangeset(s).UpdateAttributes(p, map[string]any{"align": nil, "indent": 2}).Apply())

	_, hasAlign := p.Attrs["align"]
	require.False(t, hasAlign)
	require.Equal(t, 2, p.Attrs["indent"])
}

func TestApplySetCursorStateEmitsEventAndAfterCursor(t *testing.T) {
	s := newTestState()
	p := s.CreateTextElement("p1", "Paragraph", delta.New().InsertText("hi", nil), nil)
	require.NoError(t, NewChangeset(s).InsertChildrenAt(s.Document().Body(), 0, []*document.Node{p}).Apply())

	var gotReason document.CursorReason
	s.CursorStateChanged().Subscribe(func(ev CursorChangeEvent) { gotReason = ev.Reason })

	cs := NewChangeset(s).SetCursorState(document.Collapsed("p1", 1), document.ReasonUserInput)
	require.NoError(t, cs.Apply())

	require.Equal(t, document.ReasonUserInput, gotReason)
	require.Equal(t, document.Collapsed("p1", 1), cs.AfterCursor())
	require.Equal(t, document.Collapsed("p1", 1), s.Cursor())
}

func TestApplyPropagatesShiftAcrossLaterOpsInSameChangeset(t *testing.T) {
	s := newTestState()
	body := s.Document().Body()

	first := s.CreateTextElement("p1", "Paragraph", nil, nil)
	second := s.CreateTextElement("p2", "Paragraph", nil, nil)
	require.NoError(t, NewChangeset(s).InsertChildrenAt(body, 0, []*document.Node{first, second}).Apply())

	inserted := s.CreateTextElement("p0", "Paragraph", nil, nil)
	// Insert a third paragraph ahead of both, then remove `second` in the
	// same changeset. The removal itself follows the node pointer;
	// propagateShift must have corrected the removal's recorded (stale)
	// location so Ops() reports where `second` actually was.
	cs := NewChangeset(s)
	cs.InsertChildrenAt(body, 0, []*document.Node{inserted})
	cs.RemoveNode(second)
	require.NoError(t, cs.Apply())

	require.Equal(t, 2, body.ChildCount())
	require.Same(t, inserted, body.ChildAt(0))
	require.Same(t, first, body.ChildAt(1))

	ops := cs.Ops()
	require.Len(t, ops, 2)
	require.Equal(t, OpNameRemoveNode, ops[1].Kind)
	require.True(t, ops[1].Loc.Equal(document.Loc(1, 2)))
}

func TestApplyRejectsReentrantApply(t *testing.T) {
	s := newTestState()
	p := s.CreateTextElement("p1", "Paragraph", nil, nil)
	require.NoError(t, NewChangeset(s).InsertChildrenAt(s.Document().Body(), 0, []*document.Node{p}).Apply())

	var reentrantErr error
	s.NewBlockCreated().Subscribe(func(n *document.Node) {
		nested := s.CreateTextElement("nested", "Paragraph", nil, nil)
		reentrantErr = NewChangeset(s).InsertChildrenAt(s.Document().Body(), 0, []*document.Node{nested}).Apply()
	})

	another := s.CreateTextElement("p2", "Paragraph", nil, nil)
	require.NoError(t, NewChangeset(s).InsertChildrenAt(s.Document().Body(), 1, []*document.Node{another}).Apply())

	require.Error(t, reentrantErr)
	require.True(t, IsReentrantApply(reentrantErr))
}

func TestApplyClampsCursorWhenItsBlockIsRemoved(t *testing.T) {
	s := newTestState()
	p := s.CreateTextElement("p1", "Paragraph", delta.New().InsertText("hi", nil), nil)
	require.NoError(t, NewChangeset(s).InsertChildrenAt(s.Document().Body(), 0, []*document.Node{p}).Apply())
	require.NoError(t, NewChangeset(s).SetCursorState(document.Collapsed("p1", 1), document.ReasonUserInput).Apply())

	require.NoError(t, NewChangeset(s).RemoveNode(p).Apply())

	require.Equal(t, s.Document().Title().ID, s.Cursor().ID())
	require.Equal(t, 0, s.Cursor().Offset())
}

func TestApplyClampsCursorOffsetPastSurvivingBlockLength(t *testing.T) {
	s := newTestState()
	p := s.CreateTextElement("p1", "Paragraph", delta.New().InsertText("hi", nil), nil)
	require.NoError(t, NewChangeset(s).InsertChildrenAt(s.Document().Body(), 0, []*document.Node{p}).Apply())

	cs := NewChangeset(s).SetCursorState(document.Collapsed("p1", 50), document.ReasonUserInput)
	require.NoError(t, cs.Apply())

	require.Equal(t, "p1", s.Cursor().ID())
	require.Equal(t, 2, s.Cursor().Offset())
	require.Equal(t, document.Collapsed("p1", 2), cs.AfterCursor())
}

func TestRefreshCursorReclampsLiveCursorAfterShrinkingTextEdit(t *testing.T) {
	s := newTestState()
	p := s.CreateTextElement("p1", "Paragraph", delta.New().InsertText("hello world", nil), nil)
	require.NoError(t, NewChangeset(s).InsertChildrenAt(s.Document().Body(), 0, []*document.Node{p}).Apply())
	require.NoError(t, NewChangeset(s).SetCursorState(document.Collapsed("p1", 11), document.ReasonUserInput).Apply())

	shrink := delta.New().Retain(5, nil).Delete(6)
	require.NoError(t, NewChangeset(s).TextEdit(p, shrink).RefreshCursor().Apply())

	require.Equal(t, "p1", s.Cursor().ID())
	require.Equal(t, 5, s.Cursor().Offset())
}

func TestForceUpdateEmitsChangesetAppliedWithNoOps(t *testing.T) {
	s := newTestState()
	applies := 0
	s.ChangesetApplied().Subscribe(func(ev ChangesetAppliedEvent) { applies++ })

	require.NoError(t, NewChangeset(s).ForceUpdate().Apply())

	require.Equal(t, 1, applies)
	require.Equal(t, 1, s.Version())
}

func TestSplitCursorStateByBlocksCollapsed(t *testing.T) {
	s := newTestState()
	ranges := s.SplitCursorStateByBlocks(document.Collapsed("p1", 3))
	require.Equal(t, []BlockCursorRange{{BlockID: "p1", StartOffset: 3, EndOffset: 3}}, ranges)
}

func TestSplitCursorStateByBlocksSpanningMultipleBlocks(t *testing.T) {
	s := newTestState()
	body := s.Document().Body()
	p1 := s.CreateTextElement("p1", "Paragraph", delta.New().InsertText("hello", nil), nil)
	p2 := s.CreateTextElement("p2", "Paragraph", delta.New().InsertText("world", nil), nil)
	p3 := s.CreateTextElement("p3", "Paragraph", delta.New().InsertText("!!", nil), nil)
	require.NoError(t, NewChangeset(s).InsertChildrenAt(body, 0, []*document.Node{p1, p2, p3}).Apply())

	ranges := s.SplitCursorStateByBlocks(document.Open("p1", 2, "p3", 1))
	require.Equal(t, []BlockCursorRange{
		{BlockID: "p1", StartOffset: 2, EndOffset: 5},
		{BlockID: "p2", StartOffset: 0, EndOffset: 5},
		{BlockID: "p3", StartOffset: 0, EndOffset: 1},
	}, ranges)
}
