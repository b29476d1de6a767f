package bytecode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"basic/value"
)

// magic identifies the file format; version allows the on-disk layout to
// change without silently misreading an older image.
const (
	magic   uint32 = 0x42415343 // "BASC"
	version byte   = 1
)

// Procedure describes one compiled SUB or FUNCTION: where its body starts
// and how the VM should bind arguments to parameter names on entry. OpCallUser
// carries only a Procedures index; the VM reads the rest from here rather
// than from inline operands, since arity and by-ref/by-val mode differ per
// procedure.
type Procedure struct {
	Name       string
	Params     []string
	ByVal      []bool
	Entry      int
	IsFunction bool
}

// LineMark records the source line number active as of a given instruction
// offset, sampled once per numeric line-number label. The VM uses the
// highest mark at or before the current instruction to report a runtime
// error's line and to back the legacy ERL function; it is necessarily an
// approximation for statements between line labels rather than a per-
// statement table.
type LineMark struct {
	Instr int
	Line  int32
}

// Image is the compiler's complete output: a self-contained, persistable
// program. No AST is needed to execute it.
type Image struct {
	Instructions Instructions
	Constants    []value.Value
	Names        []string
	DataPool     []value.Value
	Procedures   []Procedure
	LineTable    []LineMark
}

// AddLineMark records that line became active at the instruction stream's
// current length.
func (img *Image) AddLineMark(line int32) {
	img.LineTable = append(img.LineTable, LineMark{Instr: len(img.Instructions), Line: line})
}

// LineAt returns the most recently marked line at or before instr, or 0 if
// no numeric line label precedes it.
func (img *Image) LineAt(instr int) int32 {
	var line int32
	for _, m := range img.LineTable {
		if m.Instr > instr {
			break
		}
		line = m.Line
	}
	return line
}

// NewImage returns an empty Image ready for a compiler to populate.
func NewImage() *Image {
	return &Image{}
}

// AddProcedure appends p to the procedure table and returns its index.
func (img *Image) AddProcedure(p Procedure) int {
	img.Procedures = append(img.Procedures, p)
	return len(img.Procedures) - 1
}

// FindProcedure returns the index of the procedure named name, or -1.
func (img *Image) FindProcedure(name string) int {
	for i, p := range img.Procedures {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// AddConstant appends v to the constant pool and returns its index.
func (img *Image) AddConstant(v value.Value) int {
	img.Constants = append(img.Constants, v)
	return len(img.Constants) - 1
}

// InternName returns the index of name within the name pool, appending it
// if this is the first use (so repeated references to the same variable
// share one pool entry).
func (img *Image) InternName(name string) int {
	for i, n := range img.Names {
		if n == name {
			return i
		}
	}
	img.Names = append(img.Names, name)
	return len(img.Names) - 1
}

// AddData appends v to the ordered DATA pool and returns its index (the
// data-label table records these indices).
func (img *Image) AddData(v value.Value) int {
	img.DataPool = append(img.DataPool, v)
	return len(img.DataPool) - 1
}

// Encode serializes the image to its deterministic, length-prefixed,
// little-endian on-disk form: a magic number and version byte, followed by
// the instruction stream, constant pool, name pool, DATA pool, procedure
// table, and line table, each prefixed with a uint32 element/byte count.
func (img *Image) Encode() []byte {
	var buf bytes.Buffer
	writeU32(&buf, magic)
	buf.WriteByte(version)

	writeU32(&buf, uint32(len(img.Instructions)))
	buf.Write(img.Instructions)

	writeU32(&buf, uint32(len(img.Constants)))
	for _, c := range img.Constants {
		encodeValue(&buf, c)
	}

	writeU32(&buf, uint32(len(img.Names)))
	for _, n := range img.Names {
		writeString(&buf, n)
	}

	writeU32(&buf, uint32(len(img.DataPool)))
	for _, d := range img.DataPool {
		encodeValue(&buf, d)
	}

	writeU32(&buf, uint32(len(img.Procedures)))
	for _, p := range img.Procedures {
		writeString(&buf, p.Name)
		writeU32(&buf, uint32(len(p.Params)))
		for i, param := range p.Params {
			writeString(&buf, param)
			if p.ByVal[i] {
				buf.WriteByte(1)
			} else {
				buf.WriteByte(0)
			}
		}
		writeU32(&buf, uint32(p.Entry))
		if p.IsFunction {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	}

	writeU32(&buf, uint32(len(img.LineTable)))
	for _, m := range img.LineTable {
		writeU32(&buf, uint32(m.Instr))
		writeU32(&buf, uint32(m.Line))
	}

	return buf.Bytes()
}

// Decode parses the on-disk form produced by Encode, failing if the magic
// number or version do not match.
func Decode(data []byte) (*Image, error) {
	r := bytes.NewReader(data)

	gotMagic, err := readU32(r)
	if err != nil {
		return nil, fmt.Errorf("bytecode: truncated image header: %w", err)
	}
	if gotMagic != magic {
		return nil, fmt.Errorf("bytecode: bad magic number %08x", gotMagic)
	}
	gotVersion, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("bytecode: truncated image header: %w", err)
	}
	if gotVersion != version {
		return nil, fmt.Errorf("bytecode: unsupported image version %d", gotVersion)
	}

	img := NewImage()

	insLen, err := readU32(r)
	if err != nil {
		return nil, err
	}
	ins := make(Instructions, insLen)
	if _, err := r.Read(ins); err != nil {
		return nil, fmt.Errorf("bytecode: truncated instruction stream: %w", err)
	}
	img.Instructions = ins

	constLen, err := readU32(r)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < constLen; i++ {
		v, err := decodeValue(r)
		if err != nil {
			return nil, fmt.Errorf("bytecode: constant %d: %w", i, err)
		}
		img.Constants = append(img.Constants, v)
	}

	nameLen, err := readU32(r)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < nameLen; i++ {
		s, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("bytecode: name %d: %w", i, err)
		}
		img.Names = append(img.Names, s)
	}

	dataLen, err := readU32(r)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < dataLen; i++ {
		v, err := decodeValue(r)
		if err != nil {
			return nil, fmt.Errorf("bytecode: data item %d: %w", i, err)
		}
		img.DataPool = append(img.DataPool, v)
	}

	procLen, err := readU32(r)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < procLen; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("bytecode: procedure %d: %w", i, err)
		}
		paramLen, err := readU32(r)
		if err != nil {
			return nil, err
		}
		p := Procedure{Name: name}
		for j := uint32(0); j < paramLen; j++ {
			pname, err := readString(r)
			if err != nil {
				return nil, fmt.Errorf("bytecode: procedure %d param %d: %w", i, j, err)
			}
			byVal, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			p.Params = append(p.Params, pname)
			p.ByVal = append(p.ByVal, byVal == 1)
		}
		entry, err := readU32(r)
		if err != nil {
			return nil, err
		}
		p.Entry = int(entry)
		isFunc, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		p.IsFunction = isFunc == 1
		img.Procedures = append(img.Procedures, p)
	}

	lineLen, err := readU32(r)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < lineLen; i++ {
		instr, err := readU32(r)
		if err != nil {
			return nil, err
		}
		line, err := readU32(r)
		if err != nil {
			return nil, err
		}
		img.LineTable = append(img.LineTable, LineMark{Instr: int(instr), Line: int32(line)})
	}

	return img, nil
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func readU32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := r.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func writeString(buf *bytes.Buffer, s string) {
	writeU32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	n, err := readU32(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := r.Read(b); err != nil {
		return "", err
	}
	return string(b), nil
}

// value tags used only in the on-disk encoding; these mirror value.Kind
// but are pinned independently of its iota order so the file format never
// shifts if value.Kind gains a member.
const (
	tagInteger byte = iota
	tagLong
	tagWide
	tagUInteger
	tagULong
	tagUWide
	tagSingle
	tagDouble
	tagString
	tagFixedString
	tagEmpty
	tagNull
)

func encodeValue(buf *bytes.Buffer, v value.Value) {
	switch v.Kind {
	case value.KindInteger:
		buf.WriteByte(tagInteger)
		writeU32(buf, uint32(uint16(v.I16)))
	case value.KindLong:
		buf.WriteByte(tagLong)
		writeU32(buf, uint32(v.I32))
	case value.KindWide:
		buf.WriteByte(tagWide)
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(v.I64))
		buf.Write(b[:])
	case value.KindUInteger:
		buf.WriteByte(tagUInteger)
		writeU32(buf, uint32(v.U16))
	case value.KindULong:
		buf.WriteByte(tagULong)
		writeU32(buf, v.U32)
	case value.KindUWide:
		buf.WriteByte(tagUWide)
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], v.U64)
		buf.Write(b[:])
	case value.KindSingle:
		buf.WriteByte(tagSingle)
		writeU32(buf, math.Float32bits(v.F32))
	case value.KindDouble:
		buf.WriteByte(tagDouble)
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(v.F64))
		buf.Write(b[:])
	case value.KindString:
		buf.WriteByte(tagString)
		writeString(buf, v.Str)
	case value.KindFixedString:
		buf.WriteByte(tagFixedString)
		writeU32(buf, uint32(v.FixLen))
		writeString(buf, v.Str)
	case value.KindNull:
		buf.WriteByte(tagNull)
	default:
		buf.WriteByte(tagEmpty)
	}
}

func decodeValue(r *bytes.Reader) (value.Value, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return value.Value{}, err
	}
	switch tag {
	case tagInteger:
		n, err := readU32(r)
		if err != nil {
			return value.Value{}, err
		}
		return value.Integer(int16(uint16(n))), nil
	case tagLong:
		n, err := readU32(r)
		if err != nil {
			return value.Value{}, err
		}
		return value.Long(int32(n)), nil
	case tagWide:
		var b [8]byte
		if _, err := r.Read(b[:]); err != nil {
			return value.Value{}, err
		}
		return value.Wide(int64(binary.LittleEndian.Uint64(b[:]))), nil
	case tagUInteger:
		n, err := readU32(r)
		if err != nil {
			return value.Value{}, err
		}
		return value.UInteger(uint16(n)), nil
	case tagULong:
		n, err := readU32(r)
		if err != nil {
			return value.Value{}, err
		}
		return value.ULong(n), nil
	case tagUWide:
		var b [8]byte
		if _, err := r.Read(b[:]); err != nil {
			return value.Value{}, err
		}
		return value.UWide(binary.LittleEndian.Uint64(b[:])), nil
	case tagSingle:
		n, err := readU32(r)
		if err != nil {
			return value.Value{}, err
		}
		return value.Single(math.Float32frombits(n)), nil
	case tagDouble:
		var b [8]byte
		if _, err := r.Read(b[:]); err != nil {
			return value.Value{}, err
		}
		return value.Double(math.Float64frombits(binary.LittleEndian.Uint64(b[:]))), nil
	case tagString:
		s, err := readString(r)
		if err != nil {
			return value.Value{}, err
		}
		return value.Str(s), nil
	case tagFixedString:
		length, err := readU32(r)
		if err != nil {
			return value.Value{}, err
		}
		s, err := readString(r)
		if err != nil {
			return value.Value{}, err
		}
		return value.FixedString(int(length), s), nil
	case tagNull:
		return value.Null, nil
	case tagEmpty:
		return value.Empty, nil
	}
	return value.Value{}, fmt.Errorf("bytecode: unknown value tag %d", tag)
}
