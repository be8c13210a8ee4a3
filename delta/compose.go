package delta

// Compose returns the Delta that results from applying other on top of the
// document produced by d. d is treated as a content
// delta (or a prior edit whose result we're composing against) and other
// as an edit delta of retain/insert/delete ops addressing d's content.
func (d *Delta) Compose(other *Delta) *Delta {
	thisIter := newOpIterator(d.Ops)
	otherIter := newOpIterator(other.Ops)
	result := New()

	// A leading insert in other has no counterpart in d and is emitted
	// verbatim before the merge walk below.
	if len(other.Ops) > 0 && other.Ops[0].Kind == KindInsert {
		result.push(otherIter.next(maxInt))
	}

	for thisIter.hasNext() || otherIter.hasNext() {
		switch {
		case otherIter.peekKind() == KindInsert:
			result.push(otherIter.next(maxInt))
		case thisIter.peekKind() == KindDelete:
			result.push(thisIter.next(maxInt))
		default:
			length := minInt(thisIter.peekLength(), otherIter.peekLength())
			thisOp := thisIter.next(length)
			otherOp := otherIter.next(length)

			switch otherOp.Kind {
			case KindRetain:
				var merged Op
				if thisOp.Kind == KindRetain {
					merged = Op{Kind: KindRetain, Len: length, Attrs: mergeAttrs(thisOp.Attrs, otherOp.Attrs)}
				} else {
					merged = Op{Kind: KindInsert, Insert: thisOp.Insert, Attrs: mergeAttrs(thisOp.Attrs, otherOp.Attrs)}
				}
				result.push(merged)
			case KindDelete:
				if thisOp.Kind == KindRetain {
					result.push(Op{Kind: KindDelete, Len: length})
				}
				// thisOp is Insert: the delete cancels it, nothing emitted.
			}
		}
	}

	return result
}

// Concat appends other's ops to d, merging the boundary ops when their
// kinds and attributes match.
func (d *Delta) Concat(other *Delta) *Delta {
	out := d.Clone()
	for _, op := range other.Ops {
		out.push(Op{Kind: op.Kind, Len: op.Len, Insert: op.Insert, Attrs: cloneAttrs(op.Attrs)})
	}
	return out
}

// Slice returns the portion of d's content between [start, end) in Delta
// space (insert-length units). end < 0 means "to the end".
func (d *Delta) Slice(start, end int) *Delta {
	if end < 0 {
		end = d.Length()
	}
	out := New()
	iter := newOpIterator(d.Ops)
	pos := 0
	for pos < end && iter.hasNext() {
		var next Op
		if pos < start {
			next = iter.next(start - pos)
		} else {
			next = iter.next(end - pos)
			out.push(next)
		}
		pos += opLength(next)
	}
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
