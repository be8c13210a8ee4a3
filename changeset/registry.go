package changeset

import "github.com/fork-archive-hub/blocky-editor/document"

// BlockDefinition is the plugin contract a block type registers. Concrete block implementations
// (headings, bullet lists, images, ...) are external collaborators
//; the core only needs the capability surface below to
// create nodes and route paste.
type BlockDefinition interface {
	Name() string
	Editable() bool
}

// PasteHandler is an optional BlockDefinition capability: a block type
// that wants to fully own converting a pasted DOM element into a node
//.
type PasteHandler interface {
	OnPaste(node any) (*document.Node, error)
}

// PasteClaimant is an optional BlockDefinition capability: a block type
// that wants first refusal on claiming an inline element during leaf
// paste handling.
type PasteClaimant interface {
	HandlePasteElement(node any) (*document.Node, bool)
}

// BlockRegistry is a name -> BlockDefinition catalog, sealed by convention
// once the application finishes registering its plugins at startup.
type BlockRegistry struct {
	defs map[string]BlockDefinition
}

// NewBlockRegistry returns an empty, unsealed registry.
func NewBlockRegistry() *BlockRegistry {
	return &BlockRegistry{defs: map[string]BlockDefinition{}}
}

// Register adds def under def.Name(). Registering the same name twice
// replaces the previous definition; callers should register all plugins
// before constructing a Controller.
func (r *BlockRegistry) Register(def BlockDefinition) {
	r.defs[def.Name()] = def
}

// Lookup returns the definition registered under name, if any.
func (r *BlockRegistry) Lookup(name string) (BlockDefinition, bool) {
	def, ok := r.defs[name]
	return def, ok
}

// Names returns every registered block type name. Order is unspecified
// and does not follow registration order, so it can differ between calls.
func (r *BlockRegistry) Names() []string {
	out := make([]string, 0, len(r.defs))
	for name := range r.defs {
		out = append(out, name)
	}
	return out
}

// SpanRegistry maps inline style/span attribute names to the CSS class (or
// inline style declaration) paste and render use to express them. Concrete
// span/attribute registration is an external collaborator; the core only
// needs this lookup surface.
type SpanRegistry struct {
	classToAttr map[string]string
	attrToClass map[string]string
}

// NewSpanRegistry returns an empty SpanRegistry.
func NewSpanRegistry() *SpanRegistry {
	return &SpanRegistry{classToAttr: map[string]string{}, attrToClass: map[string]string{}}
}

// RegisterClass maps a CSS class name to a Delta attribute key (e.g.
// "text-bold" -> "bold").
func (r *SpanRegistry) RegisterClass(class, attrKey string) {
	r.classToAttr[class] = attrKey
	r.attrToClass[attrKey] = class
}

// AttrForClass returns the Delta attribute key registered for class.
func (r *SpanRegistry) AttrForClass(class string) (string, bool) {
	attr, ok := r.classToAttr[class]
	return attr, ok
}

// ClassForAttr returns the CSS class registered for a Delta attribute key.
func (r *SpanRegistry) ClassForAttr(attrKey string) (string, bool) {
	class, ok := r.attrToClass[attrKey]
	return class, ok
}

// EmbedHandler decodes/encodes a non-string Delta insert: "embeds are represented as object inserts if
// an embed registry handles them").
type EmbedHandler interface {
	// TypeKey identifies the embed kind, e.g. "image".
	TypeKey() string
	// Render renders an embed payload into its textual copy/paste
	// representation (plain-text fallback content).
	Render(payload any) string
}

// EmbedRegistry is the name -> EmbedHandler catalog.
type EmbedRegistry struct {
	handlers map[string]EmbedHandler
}

// NewEmbedRegistry returns an empty EmbedRegistry.
func NewEmbedRegistry() *EmbedRegistry {
	return &EmbedRegistry{handlers: map[string]EmbedHandler{}}
}

// Register adds h under h.TypeKey().
func (r *EmbedRegistry) Register(h EmbedHandler) {
	r.handlers[h.TypeKey()] = h
}

// Lookup returns the handler registered under key, if any.
func (r *EmbedRegistry) Lookup(key string) (EmbedHandler, bool) {
	h, ok := r.handlers[key]
	return h, ok
}
