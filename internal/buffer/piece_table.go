package buffer

import (
	"errors"
	"slices"
	"strings"
)

// ErrOutOfRange is returned when an offset or range falls outside the
// current document bounds. It usually means the caller's view of the
// document has drifted and needs to be re-synced.
var ErrOutOfRange = errors.New("offset out of range")

type source int

const (
	sourceOriginal source = iota
	sourceAdd
)

// piece references a contiguous slice of either the original text or the
// append-only add log. The ordered piece list is the current document.
type piece struct {
	src    source
	start  int
	length int
}

// PieceTable is a mutable text buffer. The original text is never touched;
// inserted text is appended to an add log, and the document is described by
// an ordered list of pieces referencing slices of the two. Mid-document
// edits therefore splice the piece list instead of re-copying the text.
//
// Offsets are byte offsets into the UTF-8 document. A PieceTable is not
// safe for concurrent use; callers serialize access.
type PieceTable struct {
	original string
	add      []byte
	pieces   []piece
	length   int
}

// New builds a piece table holding initial. An empty string yields an
// empty piece list.
func New(initial string) *PieceTable {
	pt := &PieceTable{original: initial, length: len(initial)}
	if len(initial) > 0 {
		pt.pieces = []piece{{src: sourceOriginal, start: 0, length: len(initial)}}
	}
	return pt
}

// Len returns the current document length in bytes.
func (pt *PieceTable) Len() int {
	return pt.length
}

func (pt *PieceTable) slice(p piece) string {
	if p.src == sourceOriginal {
		return pt.original[p.start : p.start+p.length]
	}
	return string(pt.add[p.start : p.start+p.length])
}

// Insert makes text visible starting at offset. Inserting at a piece
// boundary never creates a zero-length piece; inserting the empty string
// is a no-op.
func (pt *PieceTable) Insert(text string, offset int) error {
	if offset < 0 || offset > pt.length {
		return ErrOutOfRange
	}
	if text == "" {
		return nil
	}

	addStart := len(pt.add)
	pt.add = append(pt.add, text...)
	added := piece{src: sourceAdd, start: addStart, length: len(text)}

	pos := 0
	for i := range pt.pieces {
		p := pt.pieces[i]
		if offset == pos {
			if pt.extendAddPiece(i-1, addStart, added.length) {
				pt.length += added.length
				return nil
			}
			pt.pieces = slices.Insert(pt.pieces, i, added)
			pt.length += added.length
			return nil
		}
		if offset < pos+p.length {
			rel := offset - pos
			left := piece{src: p.src, start: p.start, length: rel}
			right := piece{src: p.src, start: p.start + rel, length: p.length - rel}
			pt.pieces = slices.Replace(pt.pieces, i, i+1, left, added, right)
			pt.length += added.length
			return nil
		}
		pos += p.length
	}

	// Insert at end of document.
	if !pt.extendAddPiece(len(pt.pieces)-1, addStart, added.length) {
		pt.pieces = append(pt.pieces, added)
	}
	pt.length += added.length
	return nil
}

// extendAddPiece grows pieces[i] in place when it already ends exactly at
// addStart in the add log. Keeps the piece list from fragmenting under
// sequential typing.
func (pt *PieceTable) extendAddPiece(i, addStart, n int) bool {
	if i < 0 || i >= len(pt.pieces) {
		return false
	}
	p := &pt.pieces[i]
	if p.src != sourceAdd || p.start+p.length != addStart {
		return false
	}
	p.length += n
	return true
}

// Delete removes length bytes starting at offset. A length of 0 is a
// no-op. Pieces fully inside the range are dropped, partially overlapping
// pieces are shortened, and a piece straddling both ends is split in two.
func (pt *PieceTable) Delete(offset, length int) error {
	if offset < 0 || length < 0 || offset+length > pt.length {
		return ErrOutOfRange
	}
	if length == 0 {
		return nil
	}

	end := offset + length
	out := make([]piece, 0, len(pt.pieces)+1)
	pos := 0
	for _, p := range pt.pieces {
		pstart, pend := pos, pos+p.length
		pos = pend
		if pend <= offset || pstart >= end {
			out = append(out, p)
			continue
		}
		if pstart < offset {
			out = append(out, piece{src: p.src, start: p.start, length: offset - pstart})
		}
		if pend > end {
			out = append(out, piece{src: p.src, start: p.start + (end - pstart), length: pend - end})
		}
	}
	pt.pieces = out
	pt.length -= length
	return nil
}

// Sequence returns the full document text.
func (pt *PieceTable) Sequence() string {
	var b strings.Builder
	b.Grow(pt.length)
	for _, p := range pt.pieces {
		b.WriteString(pt.slice(p))
	}
	return b.String()
}

// StringAt returns the substring of length bytes starting at offset.
func (pt *PieceTable) StringAt(offset, length int) (string, error) {
	if offset < 0 || length < 0 || offset+length > pt.length {
		return "", ErrOutOfRange
	}
	var b strings.Builder
	b.Grow(length)
	end := offset + length
	pos := 0
	for _, p := range pt.pieces {
		pstart, pend := pos, pos+p.length
		pos = pend
		if pend <= offset {
			continue
		}
		if pstart >= end {
			break
		}
		from := max(pstart, offset) - pstart
		to := min(pend, end) - pstart
		b.WriteString(pt.slice(p)[from:to])
	}
	return b.String(), nil
}
