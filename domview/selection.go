package domview

import "golang.org/x/net/html"

// FindTextOffsetInBlock computes the absolute text offset of target within
// blockRoot, summing the textContent length of every leaf that precedes it
// in document order and adding offsetInNode when target is itself a text
// node.
func FindTextOffsetInBlock(blockRoot, target *html.Node, offsetInNode int) int {
	offset, found := textOffset(blockRoot, target, offsetInNode)
	if !found {
		return 0
	}
	return offset
}

// textOffset walks n in document order, returning the accumulated offset
// once target is reached, and whether target was found in this subtree.
func textOffset(n, target *html.Node, offsetInNode int) (int, bool) {
	if n == target {
		if n.Type == html.TextNode {
			return offsetInNode, true
		}
		return 0, true
	}
	if n.Type == html.TextNode {
		return len([]rune(n.Data)), false
	}
	sum := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		got, found := textOffset(c, target, offsetInNode)
		if found {
			return sum + got, true
		}
		sum += got
	}
	return sum, false
}

// DomPosition locates the leaf node and in-node offset that addresses an
// absolute text offset within blockRoot, for placing a browser Range (or
// equivalent) at a requested model offset.
type DomPosition struct {
	Node   *html.Node
	Offset int
}

// OffsetToDomPosition is the inverse of FindTextOffsetInBlock.
func OffsetToDomPosition(blockRoot *html.Node, offset int) (DomPosition, bool) {
	remaining := offset
	return walkForOffset(blockRoot, &remaining)
}

func walkForOffset(n *html.Node, remaining *int) (DomPosition, bool) {
	if n.Type == html.TextNode {
		length := len([]rune(n.Data))
		if *remaining <= length {
			return DomPosition{Node: n, Offset: *remaining}, true
		}
		*remaining -= length
		return DomPosition{}, false
	}
	var last *html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if pos, ok := walkForOffset(c, remaining); ok {
			return pos, true
		}
		last = c
	}
	if last != nil && *remaining == 0 {
		return DomPosition{Node: last, Offset: 0}, true
	}
	return DomPosition{}, false
}
