package document

// CursorReason tags why a cursor was set.
type CursorReason string

const (
	ReasonChangeset        CursorReason = "changeset"
	ReasonUserInput        CursorReason = "userInput"
	ReasonBrowserSelection CursorReason = "browserSelection"
	ReasonUIEvent          CursorReason = "uiEvent"
)

// CursorState is a collapsed caret or an open (two-endpoint) selection,
// always oriented in document order. A collapsed cursor is represented as
// an open cursor whose endpoints coincide.
type CursorState struct {
	StartID     string
	StartOffset int
	EndID       string
	EndOffset   int
}

// Collapsed builds a collapsed cursor at (id, offset).
func Collapsed(id string, offset int) CursorState {
	return CursorState{StartID: id, StartOffset: offset, EndID: id, EndOffset: offset}
}

// Open builds an open cursor; caller is responsible for document-order
// orientation.
func Open(startID string, startOffset int, endID string, endOffset int) CursorState {
	return CursorState{StartID: startID, StartOffset: startOffset, EndID: endID, EndOffset: endOffset}
}

// IsCollapsed reports whether both endpoints coincide.
func (c CursorState) IsCollapsed() bool {
	return c.StartID == c.EndID && c.StartOffset == c.EndOffset
}

// ID returns the collapsed cursor's block id; only meaningful when
// IsCollapsed() is true.
func (c CursorState) ID() string { return c.StartID }

// Offset returns the collapsed cursor's offset; only meaningful when
// IsCollapsed() is true.
func (c CursorState) Offset() int { return c.StartOffset }

// IsZero reports whether c is the unset cursor (no block referenced).
func (c CursorState) IsZero() bool {
	return c.StartID == "" && c.EndID == ""
}
