package consensus

import "encoding/binary"

// cursor is a forward-only reader over a byte slice, used by the block/transaction
// parsers. It never panics: every read past the end of the buffer returns ErrParse.
type cursor struct {
	b   []byte
	pos int
}

func newCursor(b []byte) *cursor {
	return &cursor{b: b, pos: 0}
}

func (c *cursor) remaining() int {
	if c.pos >= len(c.b) {
		return 0
	}
	return len(c.b) - c.pos
}

func (c *cursor) readExact(n int) ([]byte, error) {
	if n < 0 || c.remaining() < n {
		return nil, ruleErr(ErrParse, "truncated")
	}
	start := c.pos
	c.pos += n
	return c.b[start:c.pos], nil
}

func (c *cursor) readU32LE() (uint32, error) {
	b, err := c.readExact(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (c *cursor) readHash32() ([32]byte, error) {
	var out [32]byte
	b, err := c.readExact(32)
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}

func (c *cursor) readCompactSize() (uint64, error) {
	v, used, err := DecodeCompactSize(c.b[c.pos:])
	if err != nil {
		return 0, err
	}
	c.pos += used
	return v, nil
}

// CompactSize is a Bitcoin-style variable-length unsigned integer encoding.
type CompactSize uint64

// Encode returns the minimal CompactSize encoding of cs.
func (cs CompactSize) Encode() []byte {
	v := uint64(cs)
	switch {
	case v < 0xfd:
		return []byte{byte(v)}
	case v <= 0xffff:
		out := make([]byte, 3)
		out[0] = 0xfd
		binary.LittleEndian.PutUint16(out[1:], uint16(v))
		return out
	case v <= 0xffffffff:
		out := make([]byte, 5)
		out[0] = 0xfe
		binary.LittleEndian.PutUint32(out[1:], uint32(v))
		return out
	default:
		out := make([]byte, 9)
		out[0] = 0xff
		binary.LittleEndian.PutUint64(out[1:], v)
		return out
	}
}

// DecodeCompactSize reads a CompactSize from the front of b, rejecting non-minimal
// encodings, and returns the value and the number of bytes consumed.
func DecodeCompactSize(b []byte) (uint64, int, error) {
	if len(b) < 1 {
		return 0, 0, ruleErr(ErrParse, "compactsize: empty")
	}
	tag := b[0]
	switch {
	case tag < 0xfd:
		return uint64(tag), 1, nil
	case tag == 0xfd:
		if len(b) < 3 {
			return 0, 0, ruleErr(ErrParse, "compactsize: truncated")
		}
		v := binary.LittleEndian.Uint16(b[1:3])
		if v < 0xfd {
			return 0, 0, ruleErr(ErrParse, "compactsize: non-minimal")
		}
		return uint64(v), 3, nil
	case tag == 0xfe:
		if len(b) < 5 {
			return 0, 0, ruleErr(ErrParse, "compactsize: truncated")
		}
		v := binary.LittleEndian.Uint32(b[1:5])
		if v <= 0xffff {
			return 0, 0, ruleErr(ErrParse, "compactsize: non-minimal")
		}
		return uint64(v), 5, nil
	case tag == 0xff:
		if len(b) < 9 {
			return 0, 0, ruleErr(ErrParse, "compactsize: truncated")
		}
		v := binary.LittleEndian.Uint64(b[1:9])
		if v <= 0xffffffff {
			return 0, 0, ruleErr(ErrParse, "compactsize: non-minimal")
		}
		return v, 9, nil
	default:
		return 0, 0, ruleErr(ErrParse, "compactsize: unreachable tag")
	}
}

type writer struct {
	buf []byte
}

func (w *writer) writeU32LE(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *writer) writeHash32(h [32]byte) {
	w.buf = append(w.buf, h[:]...)
}

func (w *writer) writeCompactSize(v uint64) {
	w.buf = append(w.buf, CompactSize(v).Encode()...)
}

func (w *writer) writeBytes(b []byte) {
	w.writeCompactSize(uint64(len(b)))
	w.buf = append(w.buf, b...)
}
