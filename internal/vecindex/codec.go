package vecindex

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

var magic = [4]byte{'R', 'V', 'I', '1'}

// maxPrealloc caps the capacity Decode reserves up front, in float32 values.
const maxPrealloc = 1 << 20

// ErrBadFormat is returned when decoding data that is not a serialized index.
var ErrBadFormat = errors.New("vecindex: bad format")

// header is the fixed prefix of the on-disk format:
// magic, uint32 dimension, uint64 count, all little-endian.
type header struct {
	Magic [4]byte
	Dim   uint32
	Count uint64
}

// WriteTo serializes the index. Vectors follow the header as count*dim
// little-endian float32 values.
func (x *Index) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	h := header{Magic: magic, Dim: uint32(x.dim), Count: uint64(x.Len())}
	if err := binary.Write(bw, binary.LittleEndian, h); err != nil {
		return 0, err
	}
	buf := make([]byte, 4)
	for _, f := range x.data {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(f))
		if _, err := bw.Write(buf); err != nil {
			return 0, err
		}
	}
	if err := bw.Flush(); err != nil {
		return 0, err
	}
	return int64(binary.Size(h)) + int64(len(x.data))*4, nil
}

// Decode reads an index previously written with WriteTo.
func Decode(r io.Reader) (*Index, error) {
	br := bufio.NewReader(r)
	var h header
	if err := binary.Read(br, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrBadFormat, err)
	}
	if h.Magic != magic {
		return nil, fmt.Errorf("%w: magic %q", ErrBadFormat, h.Magic[:])
	}
	if h.Dim == 0 && h.Count > 0 {
		return nil, fmt.Errorf("%w: zero dimension with %d vectors", ErrBadFormat, h.Count)
	}

	if h.Dim != 0 && h.Count > math.MaxInt/4/uint64(h.Dim) {
		return nil, fmt.Errorf("%w: %d vectors of dimension %d overflow", ErrBadFormat, h.Count, h.Dim)
	}

	// the header is untrusted; grow past maxPrealloc only as values arrive
	total := h.Count * uint64(h.Dim)
	x := &Index{dim: int(h.Dim), data: make([]float32, 0, min(total, maxPrealloc))}
	buf := make([]byte, 4)
	for i := uint64(0); i < total; i++ {
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, fmt.Errorf("%w: truncated at value %d of %d", ErrBadFormat, i, total)
		}
		x.data = append(x.data, math.Float32frombits(binary.LittleEndian.Uint32(buf)))
	}
	return x, nil
}
