package savecodec

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// writer and reader keep the first error and turn every later call into a
// no-op, so the codec reads as a flat list of fields.

type writer struct {
	w   *bufio.Writer
	buf [8]byte
	err error
}

func (w *writer) put(b []byte) {
	if w.err != nil {
		return
	}
	_, w.err = w.w.Write(b)
}

func (w *writer) u8(v uint8) { w.put([]byte{v}) }

func (w *writer) boolean(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

func (w *writer) u32(v uint32) {
	binary.BigEndian.PutUint32(w.buf[:4], v)
	w.put(w.buf[:4])
}

func (w *writer) i32(v int) { w.u32(uint32(int32(v))) }

func (w *writer) i64(v int64) {
	binary.BigEndian.PutUint64(w.buf[:8], uint64(v))
	w.put(w.buf[:8])
}

func (w *writer) f64(v float64) {
	binary.BigEndian.PutUint64(w.buf[:8], math.Float64bits(v))
	w.put(w.buf[:8])
}

type reader struct {
	r   io.Reader
	buf [8]byte
	off int64
	err error
}

func (r *reader) fail(format string, args ...any) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: at byte %d: %s", ErrFormat, r.off, fmt.Sprintf(format, args...))
	}
}

func (r *reader) fill(n int) []byte {
	if r.err != nil {
		return r.buf[:n]
	}
	got, err := io.ReadFull(r.r, r.buf[:n])
	r.off += int64(got)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			r.fail("truncated")
		} else {
			r.err = err
		}
		for i := range r.buf[:n] {
			r.buf[i] = 0
		}
	}
	return r.buf[:n]
}

func (r *reader) u8() uint8 { return r.fill(1)[0] }

func (r *reader) boolean() bool {
	switch v := r.u8(); v {
	case 0:
		return false
	case 1:
		return true
	default:
		r.fail("bad bool %d", v)
		return false
	}
}

func (r *reader) u32() uint32 { return binary.BigEndian.Uint32(r.fill(4)) }

func (r *reader) i32() int { return int(int32(r.u32())) }

func (r *reader) i64() int64 { return int64(binary.BigEndian.Uint64(r.fill(8))) }

func (r *reader) f64() float64 { return math.Float64frombits(binary.BigEndian.Uint64(r.fill(8))) }

// count reads a u32 length and rejects anything above max.
func (r *reader) count(what string, max int) int {
	n := r.u32()
	if r.err == nil && uint64(n) > uint64(max) {
		r.fail("%s count %d exceeds %d", what, n, max)
		return 0
	}
	return int(n)
}
