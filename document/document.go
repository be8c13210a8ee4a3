package document

// Well-known container type tags, lowercase per the convention that
// container types (unlike block types) do not start with an uppercase
// letter.
const (
	RootType = "document"
	BodyType = "body"
)

// BlockyDocument is the root node with exactly two fixed children, title
// and body. The document's own children are never reordered; only body's
// children change structurally from the user's perspective.
type BlockyDocument struct {
	Root *Node
}

// NewBlockyDocument builds a document with the given Title block and an
// empty body container.
func NewBlockyDocument(rootID string, title *Node) *BlockyDocument {
	root := NewNode(rootID, RootType, nil)
	body := NewNode(rootID+"-body", BodyType, nil)
	InsertChildrenAt(root, 0, []*Node{title, body})
	return &BlockyDocument{Root: root}
}

// Title returns the document's title block.
func (d *BlockyDocument) Title() *Node { return d.Root.ChildAt(0) }

// Body returns the document's body container.
func (d *BlockyDocument) Body() *Node { return d.Root.ChildAt(1) }

// IsTextLike reports whether n carries a Text Model under TextContentAttr
// -- the definition of a "text-like block".
func IsTextLike(n *Node) bool {
	if n == nil {
		return false
	}
	_, ok := n.Attrs[TextContentAttr]
	return ok
}
