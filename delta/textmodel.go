package delta

// TextModel wraps a Delta representing the current content of a text-like
// block's textContent attribute. It is mutated
// only by composing it with an edit Delta, never by direct field writes,
// so the changeset package's textEdit operation is the sole write path.
type TextModel struct {
	content *Delta
}

// NewTextModel wraps initial (or an empty Delta if initial is nil).
func NewTextModel(initial *Delta) *TextModel {
	if initial == nil {
		initial = New()
	}
	return &TextModel{content: initial.Clone()}
}

// Delta returns the model's current content Delta. Callers must not mutate
// the returned value in place.
func (t *TextModel) Delta() *Delta {
	return t.content
}

// Length returns the text length of the model's content.
func (t *TextModel) Length() int {
	return t.content.Length()
}

// Compose replaces the model's content with content.Compose(edit); this is
// the textEdit operation's underlying semantics.
func (t *TextModel) Compose(edit *Delta) {
	t.content = t.content.Compose(edit)
}

// Clone returns an independent copy of the model.
func (t *TextModel) Clone() *TextModel {
	return &TextModel{content: t.content.Clone()}
}
