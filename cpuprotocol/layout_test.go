package cpuprotocol

import (
	"testing"
)

func TestFieldKindWidth(t *testing.T) {
	tests := []struct {
		kind     FieldKind
		expected int
	}{
		{FieldByte, 1},
		{FieldWord, 2},
		{FieldLong, 4},
		{FieldString, 0},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			if got := tt.kind.Width(); got != tt.expected {
				t.Errorf("got %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestLayoutFrameSize(t *testing.T) {
	traceExec := Layout{FieldLong, FieldWord, FieldString}

	tests := []struct {
		name     string
		layout   Layout
		buf      []byte
		size     int
		complete bool
	}{
		{"empty layout", LayoutNone, []byte{0x00}, 1, true},
		{"byte complete", LayoutByte, []byte{0x00, 0x01}, 2, true},
		{"byte missing", LayoutByte, []byte{0x00}, 2, false},
		{"long partial", LayoutLong, []byte{0x00, 0x12, 0x34}, 5, false},
		{"long with trailing data", LayoutLong, []byte{0x00, 1, 2, 3, 4, 0x81}, 5, true},
		{"string length not arrived", traceExec, []byte{0x84, 0, 0, 0, 0, 0x4e, 0x71}, 0, false},
		{"string body partial", traceExec, []byte{0x84, 0, 0, 0, 0, 0x4e, 0x71, 3, 'n', 'o'}, 11, false},
		{"string complete", traceExec, []byte{0x84, 0, 0, 0, 0, 0x4e, 0x71, 3, 'n', 'o', 'p'}, 11, true},
		{"empty string", traceExec, []byte{0x84, 0, 0, 0, 0, 0x4e, 0x71, 0}, 8, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			size, complete := tt.layout.FrameSize(tt.buf)
			if complete != tt.complete {
				t.Fatalf("complete = %v, want %v", complete, tt.complete)
			}
			if tt.size != 0 && size != tt.size {
				t.Errorf("size = %d, want %d", size, tt.size)
			}
		})
	}
}

// The string length is taken from the byte right after the fields that
// precede it, not from a fixed position in the frame.
func TestLayoutFrameSizeStringAfterFixedFields(t *testing.T) {
	layout := Layout{FieldLong, FieldWord, FieldString}
	// byte 1 is 0xff: reading the length from there would ask for 255 bytes.
	buf := []byte{0x84, 0xff, 0, 0, 0, 0, 0, 2, 'h', 'i'}

	size, complete := layout.FrameSize(buf)
	if !complete || size != 10 {
		t.Errorf("got (%d, %v), want (10, true)", size, complete)
	}
}

func TestLayoutDecode(t *testing.T) {
	layout := Layout{FieldByte, FieldLong, FieldWord, FieldLong, FieldByte}
	frame := []byte{
		0x86,
		0x03,
		0x00, 0x00, 0x10, 0x00,
		0x30, 0x80,
		0x00, 0x00, 0x20, 0x01,
		0x15,
	}

	f := layout.Decode(frame)
	if len(f) != 5 {
		t.Fatalf("got %d fields, want 5", len(f))
	}
	if f.Byte(0) != 3 {
		t.Errorf("field 0 = %#x, want 0x3", f.Byte(0))
	}
	if f.Long(1) != 0x1000 {
		t.Errorf("field 1 = %#x, want 0x1000", f.Long(1))
	}
	if f.Word(2) != 0x3080 {
		t.Errorf("field 2 = %#x, want 0x3080", f.Word(2))
	}
	if f.Long(3) != 0x2001 {
		t.Errorf("field 3 = %#x, want 0x2001", f.Long(3))
	}
	if f.Byte(4) != 0x15 {
		t.Errorf("field 4 = %#x, want 0x15", f.Byte(4))
	}
}

func TestLayoutDecodeLongIsUnsigned(t *testing.T) {
	f := LayoutLong.Decode([]byte{0x00, 0xff, 0xff, 0xff, 0xfe})
	if f.Long(0) != 0xfffffffe {
		t.Errorf("got %#x, want 0xfffffffe", f.Long(0))
	}
}

func TestLayoutDecodeString(t *testing.T) {
	layout := Layout{FieldLong, FieldWord, FieldString}
	frame := []byte{0x84, 0, 0, 0x04, 0, 0x4e, 0x71, 3, 'n', 'o', 'p'}

	f := layout.Decode(frame)
	if f.Text(2) != "nop" {
		t.Errorf("got %q, want %q", f.Text(2), "nop")
	}
	if f.Long(0) != 0x400 {
		t.Errorf("pc = %#x, want 0x400", f.Long(0))
	}
}

func TestFieldsMissingReadAsZero(t *testing.T) {
	var f Fields
	if f.Byte(0) != 0 || f.Word(1) != 0 || f.Long(2) != 0 || f.Text(3) != "" {
		t.Error("missing fields should read as zero values")
	}
}

func TestFieldsFormat(t *testing.T) {
	f := Fields{
		{Kind: FieldLong, Num: 0x12345678},
		{Kind: FieldString, Str: "nop"},
	}
	expected := `[0x12345678 "nop"]`
	if got := f.Format(); got != expected {
		t.Errorf("got %q, want %q", got, expected)
	}
}

func TestLayoutString(t *testing.T) {
	layout := Layout{FieldByte, FieldLong, FieldWord, FieldString}
	if got := layout.String(); got != "blws" {
		t.Errorf("got %q, want %q", got, "blws")
	}
}
