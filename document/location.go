package document

import "fmt"

// LocationComponent is one step of a NodeLocation path: either a child
// index or, at a leaf, an attribute name.
type LocationComponent struct {
	attr  bool
	index int
	name  string
}

// Index builds an index-typed path component.
func Index(i int) LocationComponent { return LocationComponent{index: i} }

// Attr builds an attribute-name path component, valid only as the final
// component of a NodeLocation.
func Attr(name string) LocationComponent { return LocationComponent{attr: true, name: name} }

// IsAttr reports whether the component addresses an attribute rather than
// a child index.
func (c LocationComponent) IsAttr() bool { return c.attr }

// Index returns the child index this component addresses; only meaningful
// when IsAttr() is false.
func (c LocationComponent) Index() int { return c.index }

// Name returns the attribute name this component addresses; only
// meaningful when IsAttr() is true.
func (c LocationComponent) Name() string { return c.name }

func (c LocationComponent) equal(o LocationComponent) bool {
	if c.attr != o.attr {
		return false
	}
	if c.attr {
		return c.name == o.name
	}
	return c.index == o.index
}

func (c LocationComponent) String() string {
	if c.attr {
		return c.name
	}
	return fmt.Sprintf("%d", c.index)
}

// NodeLocation is an immutable path from the document root, e.g.
// [0, 2, "textContent"] addresses the textContent attribute of the third
// child of the first child of the root.
type NodeLocation []LocationComponent

// Loc is a convenience constructor for an all-index NodeLocation.
func Loc(indices ...int) NodeLocation {
	out := make(NodeLocation, len(indices))
	for i, idx := range indices {
		out[i] = Index(idx)
	}
	return out
}

// WithAttr returns a copy of loc with an attribute-name component appended.
func (loc NodeLocation) WithAttr(name string) NodeLocation {
	out := make(NodeLocation, len(loc)+1)
	copy(out, loc)
	out[len(loc)] = Attr(name)
	return out
}

// Equal reports whether loc and other address the same path.
func (loc NodeLocation) Equal(other NodeLocation) bool {
	if len(loc) != len(other) {
		return false
	}
	for i := range loc {
		if !loc[i].equal(other[i]) {
			return false
		}
	}
	return true
}

// Hash returns a stable hash of loc's component sequence; string
// components contribute their character codes.
func (loc NodeLocation) Hash() uint64 {
	var h uint64 = 14695981039346656037 // FNV-1a offset basis
	mix := func(v uint64) {
		h ^= v
		h *= 1099511628211 // FNV-1a prime
	}
	for _, c := range loc {
		if c.attr {
			mix(1)
			for _, r := range c.name {
				mix(uint64(r))
			}
		} else {
			mix(0)
			mix(uint64(c.index))
		}
	}
	return h
}

// Transform shifts loc to account for a structural edit at base: an
// insertion or removal of `delta` siblings at the child-index position
// base's last component names, within base's parent path. Paths shorter
// than base, or a zero-length base, are returned unchanged. When the
// component of loc at base's depth is an attribute (not an index) the
// transform is a documented no-op rather than inventing semantics for an
// edit at a string-keyed path.
//
// Same prefix-match-then-compare-sibling-index shape an HTML diff/patch
// walk uses, generalized from DOM child indices to arbitrary NodeLocations.
func Transform(base, loc NodeLocation, delta int) NodeLocation {
	if len(base) == 0 || len(loc) < len(base) {
		return loc
	}
	depth := len(base) - 1

	for i := 0; i < depth; i++ {
		if !base[i].equal(loc[i]) {
			return loc
		}
	}

	if base[depth].IsAttr() || loc[depth].IsAttr() {
		return loc
	}

	if base[depth].Index() > loc[depth].Index() {
		return loc
	}

	out := make(NodeLocation, len(loc))
	copy(out, loc)
	out[depth] = Index(loc[depth].Index() + delta)
	return out
}
