package binary

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestReaderReadByte(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03}
	r := NewReader(data)

	for i, want := range data {
		if r.Position() != i {
			t.Errorf("position before read %d: got %d, want %d", i, r.Position(), i)
		}
		b, err := r.ReadByte()
		if err != nil {
			t.Fatalf("ReadByte %d: %v", i, err)
		}
		if b != want {
			t.Errorf("ReadByte %d: got 0x%02x, want 0x%02x", i, b, want)
		}
	}

	if r.Len() != 0 {
		t.Errorf("Len: got %d, want 0", r.Len())
	}
	if _, err := r.ReadByte(); !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF, got %v", err)
	}
}

func TestReaderReadBytes(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02, 0x03, 0x04, 0x05})

	got, err := r.ReadBytes(3)
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if !bytes.Equal(got, []byte{0x01, 0x02, 0x03}) {
		t.Errorf("ReadBytes: got %v, want [1 2 3]", got)
	}
	if _, err := r.ReadBytes(3); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("short read: expected ErrUnexpectedEOF, got %v", err)
	}
	if rest := r.ReadRemaining(); !bytes.Equal(rest, []byte{0x04, 0x05}) {
		t.Errorf("ReadRemaining: got %v", rest)
	}
}

func TestLEB128Unsigned(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want uint32
	}{
		{"zero", []byte{0x00}, 0},
		{"one byte", []byte{0x7f}, 127},
		{"two bytes", []byte{0x80, 0x01}, 128},
		{"padded", []byte{0x80, 0x80, 0x00}, 0},
		{"max", []byte{0xff, 0xff, 0xff, 0xff, 0x0f}, 0xffffffff},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewReader(tt.data).ReadU32()
			if err != nil {
				t.Fatalf("ReadU32: %v", err)
			}
			if got != tt.want {
				t.Errorf("ReadU32: got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLEB128Overflow(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"too many bytes", []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x00}},
		{"high bits set", []byte{0xff, 0xff, 0xff, 0xff, 0x1f}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReader(tt.data).ReadU32()
			if !errors.Is(err, ErrOverflow) {
				t.Errorf("expected ErrOverflow, got %v", err)
			}
		})
	}
}

func TestLEB128SignedRoundTrip(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 63, -64, 64, -65, 1 << 40, -(1 << 40), 9223372036854775807, -9223372036854775808} {
		w := NewWriter()
		w.WriteS64(v)
		got, err := NewReader(w.Bytes()).ReadS64()
		if err != nil {
			t.Fatalf("ReadS64(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("round trip: got %d, want %d", got, v)
		}
	}

	for _, v := range []int32{0, -1, 2147483647, -2147483648, -64, 8191} {
		w := NewWriter()
		w.WriteS32(v)
		got, err := NewReader(w.Bytes()).ReadS32()
		if err != nil {
			t.Fatalf("ReadS32(%d): %v", v, err)
		}
		if got != v {
			t.Errorf("round trip: got %d, want %d", got, v)
		}
	}
}

func TestReadName(t *testing.T) {
	w := NewWriter()
	w.WriteName("memory")
	got, err := NewReader(w.Bytes()).ReadName()
	if err != nil {
		t.Fatalf("ReadName: %v", err)
	}
	if got != "memory" {
		t.Errorf("ReadName: got %q", got)
	}

	if _, err := NewReader([]byte{0x02, 0xff, 0xfe}).ReadName(); err == nil {
		t.Error("expected error for invalid UTF-8")
	}
}

func TestWriterSection(t *testing.T) {
	body := NewWriter()
	body.WriteU32(1)
	body.Byte(0x60)

	w := NewWriter()
	w.Section(1, body)
	want := []byte{0x01, 0x02, 0x01, 0x60}
	if !bytes.Equal(w.Bytes(), want) {
		t.Errorf("Section: got %v, want %v", w.Bytes(), want)
	}
}

func TestParseError(t *testing.T) {
	r := NewReader([]byte{0x01})
	_, _ = r.ReadByte()
	err := r.WrapError("header", io.EOF)

	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %T", err)
	}
	if pe.Position != 1 || pe.Section != "header" {
		t.Errorf("unexpected ParseError: %+v", pe)
	}
	if !errors.Is(err, io.EOF) {
		t.Error("ParseError should unwrap to cause")
	}
}
