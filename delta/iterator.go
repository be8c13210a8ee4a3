package delta

// opIterator walks a Delta's ops, allowing a caller to peek/take a bounded
// number of units from the current op, splitting it as needed. This mirrors
// the op-at-a-time walk quill-delta uses for compose/slice/diff, playing
// the same role an index-walking DOM diff plays over *html.Node children.
type opIterator struct {
	ops    []Op
	index  int
	offset int // consumed units within ops[index]
}

func newOpIterator(ops []Op) *opIterator {
	return &opIterator{ops: ops}
}

func (it *opIterator) hasNext() bool {
	return it.peekLength() < maxInt
}

func (it *opIterator) peekLength() int {
	if it.index >= len(it.ops) {
		return maxInt
	}
	return opLength(it.ops[it.index]) - it.offset
}

func (it *opIterator) peekKind() OpKind {
	if it.index >= len(it.ops) {
		return KindRetain
	}
	return it.ops[it.index].Kind
}

// next consumes up to n units (or the rest of the current op if smaller)
// and returns the resulting op fragment.
func (it *opIterator) next(n int) Op {
	if it.index >= len(it.ops) {
		return Op{Kind: KindRetain, Len: maxInt}
	}
	op := it.ops[it.index]
	opLen := opLength(op)
	remaining := opLen - it.offset
	if n > remaining {
		n = remaining
	}

	var frag Op
	if op.Kind == KindInsert {
		if s, ok := op.Insert.(string); ok {
			runes := []rune(s)
			frag = Op{Kind: KindInsert, Insert: string(runes[it.offset : it.offset+n]), Attrs: cloneAttrs(op.Attrs)}
		} else {
			// Embeds are atomic: a fragment request always takes the whole thing.
			frag = Op{Kind: KindInsert, Insert: op.Insert, Attrs: cloneAttrs(op.Attrs)}
			n = 1
		}
	} else {
		frag = Op{Kind: op.Kind, Len: n, Attrs: cloneAttrs(op.Attrs)}
	}

	if it.offset+n >= opLen {
		it.index++
		it.offset = 0
	} else {
		it.offset += n
	}
	return frag
}

const maxInt = int(^uint(0) >> 1)

func opLength(op Op) int {
	switch op.Kind {
	case KindInsert:
		return op.InsertLen()
	default:
		return op.Len
	}
}

func mergeAttrs(base, change map[string]any) map[string]any {
	if len(base) == 0 && len(change) == 0 {
		return nil
	}
	out := make(map[string]any, len(base)+len(change))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range change {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
