package bpf

import (
	"github.com/pkg/errors"
	"strings"
	"testing"
)

func I(code uint16, jt, jf uint8, k uint32) *Ins {
	return &Ins{Code: code, Jt: jt, Jf: jf, K: k}
}

func prog(code ...*Ins) []byte {
	var p []byte
	for _, ins := range code {
		p = append(p, ins.Bytes()...)
	}
	return p
}

// accept IPv4 ethernet frames
var ipv4Filter = prog(
	I(OP_LD_H_ABS, 0, 0, 12),
	I(OP_JEQ_K, 0, 1, 0x800),
	I(OP_RET_K, 0, 0, 0xffff),
	I(OP_RET_K, 0, 0, 0),
)

func TestDis(t *testing.T) {
	code, err := Dis(ipv4Filter, ProgramBase)
	if err != nil {
		t.Fatal(err)
	}
	expect := []string{
		"ldh [12]",
		"jeq #0x800, 0x80000010, 0x80000018",
		"ret #0xffff",
		"ret #0x0",
	}
	if len(code) != len(expect) {
		t.Fatalf("decoded %d instructions", len(code))
	}
	for i, ins := range code {
		if ins.Addr != ProgramBase+uint64(i)*InsSize {
			t.Errorf("instruction %d at %#x", i, ins.Addr)
		}
		if s := ins.String(); s != expect[i] {
			t.Errorf("instruction %d: %q, expecting %q", i, s, expect[i])
		}
	}
	out, err := Disas(ipv4Filter, ProgramBase)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "0x80000000: ldh [12]\n0x80000008: jeq") {
		t.Errorf("bad listing:\n%s", out)
	}
}

func TestInsString(t *testing.T) {
	tests := []struct {
		ins    *Ins
		expect string
	}{
		{I(OP_LD_W_ABS, 0, 0, 26), "ld [26]"},
		{I(OP_LD_B_IND, 0, 0, 4), "ldb [x + 4]"},
		{I(OP_LD_IMM, 0, 0, 0x2a), "ld #0x2a"},
		{I(OP_LD_MEM, 0, 0, 7), "ld M[7]"},
		{I(OP_LD_LEN, 0, 0, 0), "ld #len"},
		{I(OP_LDX_IMM, 0, 0, 1), "ldx #0x1"},
		{I(OP_LDX_LEN, 0, 0, 0), "ldx #len"},
		{I(OP_LDX_B_MSH, 0, 0, 14), "ldxb 4*([14]&0xf)"},
		{I(OP_ST, 0, 0, 2), "st M[2]"},
		{I(OP_STX, 0, 0, 15), "stx M[15]"},
		{I(CLASS_ALU|ALU_ADD|SRC_K, 0, 0, 1), "add #0x1"},
		{I(CLASS_ALU|ALU_LSH|SRC_X, 0, 0, 0), "lsh x"},
		{I(CLASS_ALU|ALU_NEG, 0, 0, 0), "neg"},
		{I(OP_JA, 0, 0, 2), "jmp 0x18"},
		{I(OP_JSET_X, 1, 0, 0), "jset x, 0x10, 0x8"},
		{I(OP_RET_A, 0, 0, 0), "ret a"},
		{I(OP_RET_X, 0, 0, 0), "ret x"},
		{I(OP_TAX, 0, 0, 0), "tax"},
		{I(OP_TXA, 0, 0, 0), "txa"},
	}
	for _, test := range tests {
		ins, err := Decode(test.ins.Bytes(), 0)
		if err != nil {
			t.Errorf("decode %#x: %v", test.ins.Code, err)
			continue
		}
		if s := ins.String(); s != test.expect {
			t.Errorf("%#x: %q, expecting %q", test.ins.Code, s, test.expect)
		}
	}
}

func TestDecodeInvalid(t *testing.T) {
	bad := []*Ins{
		I(0x100, 0, 0, 0),
		I(CLASS_LD|0x18, 0, 0, 0),
		I(CLASS_LD|SIZE_H|MODE_IMM, 0, 0, 0),
		I(CLASS_LD|SIZE_B|MODE_MSH, 0, 0, 0),
		I(CLASS_LDX|SIZE_W|MODE_ABS, 0, 0, 0),
		I(OP_LD_MEM, 0, 0, MEMWORDS),
		I(OP_ST, 0, 0, MEMWORDS),
		I(OP_ST|0x80, 0, 0, 0),
		I(CLASS_ALU|0xb0, 0, 0, 0),
		I(CLASS_ALU|ALU_NEG|SRC_X, 0, 0, 0),
		I(CLASS_ALU|ALU_DIV|SRC_K, 0, 0, 0),
		I(CLASS_ALU|ALU_MOD|SRC_K, 0, 0, 0),
		I(CLASS_JMP|0x50, 0, 0, 0),
		I(OP_JA|SRC_X, 0, 0, 0),
		I(CLASS_RET|0x18, 0, 0, 0),
		I(CLASS_MISC|0x08, 0, 0, 0),
	}
	for _, ins := range bad {
		if _, err := Decode(ins.Bytes(), 0); errors.Cause(err) != ErrBadOpcode {
			t.Errorf("Decode(%#x) returned %v", ins.Code, err)
		}
	}
	if _, err := Decode([]byte{1, 2, 3}, 0); err == nil {
		t.Error("short instruction decoded")
	}
	if _, err := Dis(ipv4Filter[:12], 0); err == nil {
		t.Error("truncated program decoded")
	}
}
