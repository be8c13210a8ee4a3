package delta

import "strings"

// embedPlaceholder stands in for an embed insert when Diff projects a Delta
// to plain text for comparison; embeds are opaque objects and are always
// treated as a single changed unit.
const embedPlaceholder = '￼'

// PlainText renders d's insert content as a flat string, substituting
// embedPlaceholder for non-string inserts.
func (d *Delta) PlainText() string {
	var sb strings.Builder
	for _, op := range d.Ops {
		if op.Kind != KindInsert {
			continue
		}
		if s, ok := op.Insert.(string); ok {
			sb.WriteString(s)
		} else {
			sb.WriteRune(embedPlaceholder)
		}
	}
	return sb.String()
}

// Diff produces a minimal retain/insert/delete Delta transforming d's
// content into other's content. offsetHint biases where the
// changed region starts when the natural common prefix is ambiguous (e.g.
// repeated characters); pass -1 for no hint.
func (d *Delta) Diff(other *Delta, offsetHint int) *Delta {
	return DiffText(d.PlainText(), other.PlainText(), offsetHint)
}

// DiffText is the string-level diff Diff delegates to; exposed directly so
// the domview input-diff step can run it against raw DOM textContent
// without constructing an intermediate Delta.
func DiffText(a, b string, offsetHint int) *Delta {
	ar := []rune(a)
	br := []rune(b)

	prefix := commonPrefixLen(ar, br)
	if offsetHint >= 0 && offsetHint < prefix {
		prefix = offsetHint
	}

	suffix := commonSuffixLen(ar[prefix:], br[prefix:])
	if max := minInt(len(ar), len(br)) - prefix; suffix > max {
		suffix = max
	}

	midOld := ar[prefix : len(ar)-suffix]
	midNew := br[prefix : len(br)-suffix]

	out := New()
	out.Retain(prefix, nil)
	if len(midOld) > 0 {
		out.Delete(len(midOld))
	}
	if len(midNew) > 0 {
		out.InsertText(string(midNew), nil)
	}
	out.Retain(suffix, nil)
	return out
}

func commonPrefixLen(a, b []rune) int {
	n := minInt(len(a), len(b))
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

func commonSuffixLen(a, b []rune) int {
	n := minInt(len(a), len(b))
	i := 0
	for i < n && a[len(a)-1-i] == b[len(b)-1-i] {
		i++
	}
	return i
}
