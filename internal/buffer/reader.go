package buffer

import "io"

// Reader iterates the document bytes in logical order without materializing
// the full text. It reflects the piece list as it was when the Reader was
// created; mutating the table while a Reader is live is undefined, so
// callers hold the owning lock for the duration of the walk.
type Reader struct {
	pt  *PieceTable
	idx int // current piece
	rel int // bytes consumed within the current piece
}

// Reader returns a new iterator positioned at the start of the document.
func (pt *PieceTable) Reader() *Reader {
	return &Reader{pt: pt}
}

// ReadByte returns the next document byte, or io.EOF when exhausted.
func (r *Reader) ReadByte() (byte, error) {
	for r.idx < len(r.pt.pieces) {
		p := r.pt.pieces[r.idx]
		if r.rel < p.length {
			b := r.pt.slice(p)[r.rel]
			r.rel++
			return b, nil
		}
		r.idx++
		r.rel = 0
	}
	return 0, io.EOF
}

// Read fills p with document bytes, implementing io.Reader.
func (r *Reader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) && r.idx < len(r.pt.pieces) {
		pc := r.pt.pieces[r.idx]
		if r.rel >= pc.length {
			r.idx++
			r.rel = 0
			continue
		}
		c := copy(p[n:], r.pt.slice(pc)[r.rel:])
		n += c
		r.rel += c
	}
	if n == 0 && r.idx >= len(r.pt.pieces) {
		return 0, io.EOF
	}
	return n, nil
}
