package session

import "io"

// OffsetAt translates a row/column coordinate into a byte offset by
// walking the buffer's character sequence and counting line transitions.
// Coordinates past the end of the document clamp to the document length,
// matching editor behavior for a caret below the last line. Returns false
// when the file is not open. O(document length).
func (r *Registry) OffsetAt(path string, target Cursor) (int, bool) {
	e, ok := r.entry(path)
	if !ok {
		return 0, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	offset, _ := walkTo(e, target)
	return offset, true
}

// SpanBetween returns the byte offset of start and the byte length of the
// range from start to end, both given as row/column coordinates. Returns
// false when the file is not open. Both coordinates are resolved in one
// walk under the entry lock so the span is consistent.
func (r *Registry) SpanBetween(path string, start, end Cursor) (offset, length int, ok bool) {
	e, ok := r.entry(path)
	if !ok {
		return 0, 0, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	offset, _ = walkTo(e, start)
	endOffset, _ := walkTo(e, end)
	if endOffset < offset {
		endOffset = offset
	}
	return offset, endOffset - offset, true
}

// walkTo scans the buffer counting rows and columns until the target
// coordinate is reached or the buffer is exhausted. The second return
// reports whether the exact coordinate was found.
func walkTo(e *fileEntry, target Cursor) (int, bool) {
	var (
		row, col int
		i        int
	)
	reader := e.buf.Reader()
	for {
		if row == target.Row && col == target.Column {
			return i, true
		}
		b, err := reader.ReadByte()
		if err == io.EOF {
			return i, false
		}
		if b == '\n' {
			row++
			col = 0
		} else {
			col++
		}
		i++
	}
}
