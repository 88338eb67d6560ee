package vecindex

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestSearchOrdersByDistance(t *testing.T) {
	x := New(2)
	for _, v := range [][]float32{{5, 5}, {1, 0}, {0, 0}, {3, 4}} {
		if err := x.Add(v); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	got, err := x.Search([]float32{0, 0}, 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	wantPos := []int{2, 1, 3}
	wantDist := []float32{0, 1, 25}
	if len(got) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(got))
	}
	for i := range got {
		if got[i].Position != wantPos[i] || got[i].Distance != wantDist[i] {
			t.Errorf("match %d = %+v, want pos %d dist %v", i, got[i], wantPos[i], wantDist[i])
		}
	}
}

func TestSearchTiesKeepInsertionOrder(t *testing.T) {
	x := New(1)
	x.Add([]float32{1})
	x.Add([]float32{-1})
	x.Add([]float32{1})

	got, _ := x.Search([]float32{0}, 3)
	for i, want := range []int{0, 1, 2} {
		if got[i].Position != want {
			t.Errorf("tie %d: got position %d, want %d", i, got[i].Position, want)
		}
	}
}

func TestSearchFewerThanK(t *testing.T) {
	x := New(3)
	got, err := x.Search([]float32{0, 0, 0}, 5)
	if err != nil {
		t.Fatalf("search empty: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty result, got %d", len(got))
	}

	x.Add([]float32{1, 2, 3})
	x.Add([]float32{4, 5, 6})
	got, _ = x.Search([]float32{0, 0, 0}, 5)
	if len(got) != 2 {
		t.Errorf("expected 2 results when count < k, got %d", len(got))
	}
}

func TestDimensionMismatch(t *testing.T) {
	x := New(2)
	if err := x.Add([]float32{1, 2, 3}); err == nil {
		t.Error("expected error adding wrong dimension")
	}
	if _, err := x.Search([]float32{1}, 1); err == nil {
		t.Error("expected error searching wrong dimension")
	}
	if x.Len() != 0 {
		t.Errorf("failed add mutated index: len %d", x.Len())
	}
}

func TestTruncate(t *testing.T) {
	x := New(1)
	x.Add([]float32{1})
	x.Add([]float32{2})
	x.Truncate(1)
	if x.Len() != 1 {
		t.Fatalf("expected len 1, got %d", x.Len())
	}
	if x.Vector(0)[0] != 1 {
		t.Errorf("truncate dropped the wrong vector")
	}
	x.Truncate(5)
	if x.Len() != 1 {
		t.Errorf("truncate beyond length changed index")
	}
}

func TestCodecRoundTrip(t *testing.T) {
	x := New(3)
	x.Add([]float32{0.5, -1.25, 3})
	x.Add([]float32{7, 8, 9})

	var buf bytes.Buffer
	n, err := x.WriteTo(&buf)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if n != int64(buf.Len()) {
		t.Errorf("WriteTo reported %d bytes, buffer has %d", n, buf.Len())
	}

	y, err := Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if y.Dim() != 3 || y.Len() != 2 {
		t.Fatalf("decoded dim=%d len=%d", y.Dim(), y.Len())
	}
	if got := y.Vector(0); got[1] != -1.25 {
		t.Errorf("decoded vector 0 = %v", got)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte("not an index at all")))
	if !errors.Is(err, ErrBadFormat) {
		t.Errorf("expected ErrBadFormat, got %v", err)
	}

	x := New(2)
	x.Add([]float32{1, 2})
	var buf bytes.Buffer
	x.WriteTo(&buf)
	truncated := buf.Bytes()[:buf.Len()-2]
	if _, err := Decode(bytes.NewReader(truncated)); !errors.Is(err, ErrBadFormat) {
		t.Errorf("expected ErrBadFormat for truncated data, got %v", err)
	}
}

func TestDecodeRejectsOversizedHeader(t *testing.T) {
	tests := []struct {
		name  string
		dim   uint32
		count uint64
	}{
		{"count beyond data", 256, 1 << 50},
		{"count times dim overflows", 4, 1 << 62},
		{"max count", 1, ^uint64(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := header{Magic: magic, Dim: tt.dim, Count: tt.count}
			if err := binary.Write(&buf, binary.LittleEndian, h); err != nil {
				t.Fatal(err)
			}
			buf.Write(make([]byte, 64))
			if _, err := Decode(&buf); !errors.Is(err, ErrBadFormat) {
				t.Errorf("expected ErrBadFormat, got %v", err)
			}
		})
	}
}
