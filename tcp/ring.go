package tcp

import "io"

// ring is a fixed-capacity circular byte buffer used for both the Connection
// receive buffer (incoming) and send buffer (unacked). Adapted from the
// teacher's internal.Ring: Off indexes the start of readable data, End
// indexes one past the last readable byte; End==0 means empty.
type ring struct {
	buf []byte
	off int
	end int
}

func newRing(buf []byte) ring { return ring{buf: buf} }

// Cap returns the buffer's total capacity.
func (r *ring) Cap() int { return len(r.buf) }

// Len returns the number of bytes currently buffered and readable.
func (r *ring) Len() int { return r.Cap() - r.Free() }

// Free returns the number of bytes that can still be written before the
// buffer is full.
func (r *ring) Free() int {
	if r.end == 0 || r.off == 0 {
		return len(r.buf) - r.end
	}
	if r.off < r.end {
		return r.off + (len(r.buf) - r.end)
	}
	return r.off - r.end
}

func (r *ring) isFull() bool {
	return r.end != 0 && (r.end == r.off || (r.end == len(r.buf) && r.off == 0))
}

// Write appends b to the buffer, returning the number of bytes written (<
// len(b) if the buffer fills up; never returns an error, matching the
// circular-queue semantics write_segment/Write rely on to enqueue
// best-effort).
func (r *ring) Write(b []byte) (n int) {
	if r.isFull() || len(b) == 0 {
		return 0
	}
	if midFree := r.midFree(); midFree > 0 {
		// start     end       off    len(buf)
		//   |  used  |  mfree  |  used  |
		n = copy(r.buf[r.end:r.off], b)
		r.end += n
		return n
	} else if r.end == 0 {
		r.end = r.off
	}
	// start       off       end      len(buf)
	//   |  sfree   |  used   |  efree   |
	n = copy(r.buf[r.end:], b)
	r.end += n
	if n < len(b) && r.off > 0 {
		// buf[end:] ran out (possibly empty, if end==len(buf) already);
		// continue writing into the head region up to off. With off==0
		// there is no head region and end stays at len(buf) (full).
		n2 := copy(r.buf[:r.off], b[n:])
		r.end = n2
		n += n2
	}
	return n
}

// midFree returns the size of the single contiguous free region between end
// and off when the buffered data wraps around the end of buf. Returns 0 when
// the buffered data is itself contiguous (or empty), in which case free
// space may be split between a tail region (end..len(buf)) and a head region
// (0..off).
func (r *ring) midFree() int {
	if r.end >= r.off || r.end == 0 {
		return 0
	}
	return r.off - r.end
}

// TwoSlices returns the buffered data as (at most) two contiguous slices in
// read order: first is buf[off:min(end,len(buf))] when contiguous, and when
// the data wraps around the end of buf, first is the tail and second is the
// head — exactly the layout write_segment must walk when composing a
// segment payload starting at an arbitrary offset.
func (r *ring) TwoSlices() (first, second []byte) {
	if r.end == 0 {
		return nil, nil
	}
	if r.end > r.off {
		return r.buf[r.off:r.end], nil
	}
	return r.buf[r.off:], r.buf[:r.end]
}

// Peek copies up to len(p) buffered bytes starting skip bytes into the
// buffered data, without advancing the read pointer. It copies min(len(p),
// available-slice-length) from each of the two underlying slices in turn,
// per the corrected read contract (SPEC_FULL.md §4.5 / spec.md §9 Open
// Question): no over-copy when the second slice is shorter than the
// request.
func (r *ring) Peek(p []byte, skip int) (n int) {
	first, second := r.TwoSlices()
	if skip >= len(first) {
		skip -= len(first)
		first = nil
	} else {
		first = first[skip:]
		skip = 0
	}
	if skip > 0 && skip <= len(second) {
		second = second[skip:]
	} else if skip > 0 {
		second = nil
	}
	n = copy(p, first)
	if n < len(p) {
		n += copy(p[n:], second)
	}
	return n
}

// Discard advances the read pointer by n bytes without copying them out.
func (r *ring) Discard(n int) error {
	if n < 0 || n > r.Len() {
		return io.ErrShortBuffer
	}
	if n == 0 {
		return nil
	}
	if n == r.Len() {
		r.off, r.end = 0, 0
		return nil
	}
	newOff := r.off + n
	if newOff >= len(r.buf) {
		newOff -= len(r.buf)
	}
	r.off = newOff
	return nil
}

// Read copies up to len(p) buffered bytes into p and discards them,
// returning the number of bytes read.
func (r *ring) Read(p []byte) (n int) {
	n = r.Peek(p, 0)
	if n > 0 {
		r.Discard(n)
	}
	return n
}

// Reset empties the buffer.
func (r *ring) Reset() { r.off, r.end = 0, 0 }
