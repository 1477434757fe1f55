package cpuprotocol

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// FieldKind is the encoding of a single message field.
type FieldKind uint8

const (
	fieldNone FieldKind = iota

	// FieldByte is a 1-byte unsigned integer.
	FieldByte
	// FieldWord is a 2-byte big-endian unsigned integer.
	FieldWord
	// FieldLong is a 4-byte big-endian unsigned integer.
	FieldLong
	// FieldString is a 1-byte length followed by that many bytes of UTF-8.
	FieldString
)

// Width returns the encoded size of a fixed-width field, or 0 for
// FieldString whose size depends on its length byte.
func (k FieldKind) Width() int {
	switch k {
	case FieldByte:
		return 1
	case FieldWord:
		return 2
	case FieldLong:
		return 4
	default:
		return 0
	}
}

func (k FieldKind) String() string {
	switch k {
	case FieldByte:
		return "b"
	case FieldWord:
		return "w"
	case FieldLong:
		return "l"
	case FieldString:
		return "s"
	default:
		return "?"
	}
}

// Layout is the ordered list of fields that follow an opcode byte.
type Layout []FieldKind

// Reply layouts used by commands.
var (
	LayoutNone = Layout{}
	LayoutByte = Layout{FieldByte}
	LayoutWord = Layout{FieldWord}
	LayoutLong = Layout{FieldLong}
)

func (l Layout) String() string {
	var sb strings.Builder
	for _, k := range l {
		sb.WriteString(k.String())
	}
	return sb.String()
}

// FrameSize returns the number of bytes of the frame that starts at buf[0],
// counting the opcode byte. The second result is false if buf does not yet
// hold the whole frame, including the case where a string length byte that
// the size depends on has not arrived yet.
func (l Layout) FrameSize(buf []byte) (int, bool) {
	n := 1 // opcode
	for _, k := range l {
		if k == FieldString {
			if len(buf) < n+1 {
				return 0, false
			}
			n += 1 + int(buf[n])
			continue
		}
		n += k.Width()
	}
	if len(buf) < n {
		return n, false
	}
	return n, true
}

// Decode decodes the fields of a complete frame. frame must start with the
// opcode byte and hold at least FrameSize bytes.
func (l Layout) Decode(frame []byte) Fields {
	fields := make(Fields, 0, len(l))
	p := frame[1:]
	for _, k := range l {
		switch k {
		case FieldByte:
			fields = append(fields, Field{Kind: k, Num: uint32(p[0])})
			p = p[1:]
		case FieldWord:
			fields = append(fields, Field{Kind: k, Num: uint32(binary.BigEndian.Uint16(p))})
			p = p[2:]
		case FieldLong:
			v := uint32(p[0])<<24 | uint32(p[1])<<16 | uint32(p[2])<<8 | uint32(p[3])
			fields = append(fields, Field{Kind: k, Num: v})
			p = p[4:]
		case FieldString:
			n := int(p[0])
			fields = append(fields, Field{Kind: k, Str: string(p[1 : 1+n])})
			p = p[1+n:]
		}
	}
	return fields
}

// Field is one decoded field of a message.
type Field struct {
	Kind FieldKind
	Num  uint32 // Byte, Word and Long fields
	Str  string // String fields
}

// Fields is the decoded payload of a message, in layout order.
type Fields []Field

// Byte returns field i as a byte. Missing fields read as zero.
func (f Fields) Byte(i int) uint8 { return uint8(f.num(i)) }

// Word returns field i as a 16-bit value. Missing fields read as zero.
func (f Fields) Word(i int) uint16 { return uint16(f.num(i)) }

// Long returns field i as a 32-bit value. Missing fields read as zero.
func (f Fields) Long(i int) uint32 { return f.num(i) }

// Text returns field i as a string. Missing fields read as "".
func (f Fields) Text(i int) string {
	if i < 0 || i >= len(f) {
		return ""
	}
	return f[i].Str
}

func (f Fields) num(i int) uint32 {
	if i < 0 || i >= len(f) {
		return 0
	}
	return f[i].Num
}

// Format renders the fields for log output.
func (f Fields) Format() string {
	parts := make([]string, len(f))
	for i, v := range f {
		if v.Kind == FieldString {
			parts[i] = fmt.Sprintf("%q", v.Str)
		} else {
			parts[i] = fmt.Sprintf("%#x", v.Num)
		}
	}
	return "[" + strings.Join(parts, " ") + "]"
}
