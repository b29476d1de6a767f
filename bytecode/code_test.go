package bytecode

import (
	"testing"

	"basic/value"
)

func TestMakeEncodesOperands(t *testing.T) {
	tests := []struct {
		op       Opcode
		operands []int
		expected []byte
	}{
		{OpConstant, []int{65000}, []byte{byte(OpConstant), 232, 253}},
		{OpEnd, nil, []byte{byte(OpEnd)}},
		{OpAdd, nil, []byte{byte(OpAdd)}},
		{OpJump, []int{300000}, []byte{byte(OpJump), 224, 147, 4, 0}},
		{OpLoadArray, []int{7, 2}, []byte{byte(OpLoadArray), 7, 0, 2}},
		{OpCallBuiltin, []int{3, 1}, []byte{byte(OpCallBuiltin), 3, 0, 1}},
	}

	for _, tt := range tests {
		ins := Make(tt.op, tt.operands...)
		if len(ins) != len(tt.expected) {
			t.Fatalf("op %v: instruction has wrong length - got %d, want %d", tt.op, len(ins), len(tt.expected))
		}
		for i, b := range tt.expected {
			if ins[i] != b {
				t.Errorf("op %v: byte %d wrong - got %d, want %d", tt.op, i, ins[i], b)
			}
		}
	}
}

func TestReadOperandsRoundTrips(t *testing.T) {
	ins := Make(OpCallUser, 42, 3)
	def, err := Lookup(OpCallUser)
	if err != nil {
		t.Fatalf("lookup error: %v", err)
	}
	operands, n := ReadOperands(def, ins[1:])
	if n != 3 {
		t.Fatalf("expected 3 bytes consumed, got %d", n)
	}
	if operands[0] != 42 || operands[1] != 3 {
		t.Fatalf("expected [42 3], got %v", operands)
	}
}

func TestDisassembleProducesOneLinePerInstruction(t *testing.T) {
	var ins Instructions
	ins = append(ins, Make(OpConstant, 1)...)
	ins = append(ins, Make(OpConstant, 2)...)
	ins = append(ins, Make(OpAdd)...)
	ins = append(ins, Make(OpPrint)...)

	out := Disassemble(ins)
	wantLines := 4
	gotLines := 0
	for _, c := range out {
		if c == '\n' {
			gotLines++
		}
	}
	if gotLines != wantLines {
		t.Fatalf("expected %d lines, got %d:\n%s", wantLines, gotLines, out)
	}
}

func TestLookupUnknownOpcodeErrors(t *testing.T) {
	if _, err := Lookup(Opcode(255)); err == nil {
		t.Fatal("expected error for undefined opcode")
	}
}

func TestImageEncodeDecodeRoundTrip(t *testing.T) {
	img := NewImage()
	ci := img.AddConstant(value.Integer(42))
	cs := img.AddConstant(value.Str("hello"))
	cd := img.AddConstant(value.Double(3.5))
	nx := img.InternName("X")
	img.AddData(value.Long(100))

	img.Instructions = append(img.Instructions, Make(OpConstant, ci)...)
	img.Instructions = append(img.Instructions, Make(OpStoreVar, nx)...)
	img.Instructions = append(img.Instructions, Make(OpConstant, cs)...)
	img.Instructions = append(img.Instructions, Make(OpConstant, cd)...)
	img.Instructions = append(img.Instructions, Make(OpEnd)...)

	encoded := img.Encode()
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if len(decoded.Instructions) != len(img.Instructions) {
		t.Fatalf("instruction length mismatch - got %d, want %d", len(decoded.Instructions), len(img.Instructions))
	}
	if len(decoded.Constants) != 3 {
		t.Fatalf("expected 3 constants, got %d", len(decoded.Constants))
	}
	if decoded.Constants[0].I16 != 42 {
		t.Errorf("expected constant 0 = 42, got %d", decoded.Constants[0].I16)
	}
	if decoded.Constants[1].Str != "hello" {
		t.Errorf("expected constant 1 = hello, got %q", decoded.Constants[1].Str)
	}
	if decoded.Constants[2].F64 != 3.5 {
		t.Errorf("expected constant 2 = 3.5, got %v", decoded.Constants[2].F64)
	}
	if len(decoded.Names) != 1 || decoded.Names[0] != "X" {
		t.Fatalf("expected names [X], got %v", decoded.Names)
	}
	if len(decoded.DataPool) != 1 || decoded.DataPool[0].I32 != 100 {
		t.Fatalf("expected data pool [100], got %v", decoded.DataPool)
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	bad := []byte{1, 2, 3, 4, 5}
	if _, err := Decode(bad); err == nil {
		t.Fatal("expected error decoding bad magic number")
	}
}

func TestInternNameReusesIndex(t *testing.T) {
	img := NewImage()
	a := img.InternName("FOO")
	b := img.InternName("BAR")
	c := img.InternName("FOO")
	if a != c {
		t.Fatalf("expected repeated intern to reuse index, got %d and %d", a, c)
	}
	if a == b {
		t.Fatalf("expected distinct names to get distinct indices")
	}
	if len(img.Names) != 2 {
		t.Fatalf("expected 2 interned names, got %d", len(img.Names))
	}
}
