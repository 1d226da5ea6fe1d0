package bpf

import (
	"encoding/binary"
	"fmt"
	"github.com/pkg/errors"
	"strings"
)

// size of one encoded instruction
const InsSize = 8

var ErrBadOpcode = errors.New("invalid bpf instruction")

// Ins is a decoded sock_filter instruction located at Addr.
type Ins struct {
	Addr uint64
	Code uint16
	Jt   uint8
	Jf   uint8
	K    uint32
}

func (i *Ins) Class() uint16 { return i.Code & 0x07 }
func (i *Ins) Width() uint16 { return i.Code & 0x18 }
func (i *Ins) Mode() uint16  { return i.Code & 0xe0 }
func (i *Ins) Op() uint16    { return i.Code & 0xf0 }
func (i *Ins) Src() uint16   { return i.Code & 0x08 }
func (i *Ins) Rval() uint16  { return i.Code & 0x18 }

// Next is the address of the following instruction.
func (i *Ins) Next() uint64 {
	return i.Addr + InsSize
}

// target resolves a jump offset, counted in instructions after this one
func (i *Ins) target(off uint32) uint64 {
	return i.Next() + uint64(off)*InsSize
}

// Targets returns the taken and not-taken addresses of a jump.
func (i *Ins) Targets() (taken, next uint64) {
	if i.Op() == JMP_JA {
		return i.target(i.K), i.Next()
	}
	return i.target(uint32(i.Jt)), i.target(uint32(i.Jf))
}

func (i *Ins) Bytes() []byte {
	p := make([]byte, InsSize)
	binary.LittleEndian.PutUint16(p, i.Code)
	p[2], p[3] = i.Jt, i.Jf
	binary.LittleEndian.PutUint32(p[4:], i.K)
	return p
}

func (i *Ins) bad(why string) error {
	return errors.Wrapf(ErrBadOpcode, "%#04x at %#x: %s", i.Code, i.Addr, why)
}

func (i *Ins) validate() error {
	if i.Code > 0xff {
		return i.bad("unknown opcode")
	}
	switch i.Class() {
	case CLASS_LD, CLASS_LDX:
		mode, width := i.Mode(), i.Width()
		if width == 0x18 {
			return i.bad("bad load size")
		}
		switch mode {
		case MODE_ABS, MODE_IND:
			if i.Class() == CLASS_LDX {
				return i.bad("ldx cannot address the packet")
			}
		case MODE_IMM, MODE_LEN, MODE_MEM:
			if width != SIZE_W {
				return i.bad("load mode requires word size")
			}
			if mode == MODE_MEM && i.K >= MEMWORDS {
				return i.bad("scratch index out of range")
			}
		case MODE_MSH:
			if i.Class() != CLASS_LDX || width != SIZE_B {
				return i.bad("msh is only valid for ldxb")
			}
		default:
			return i.bad("bad load mode")
		}
	case CLASS_ST, CLASS_STX:
		if i.Code != i.Class() {
			return i.bad("unknown store")
		}
		if i.K >= MEMWORDS {
			return i.bad("scratch index out of range")
		}
	case CLASS_ALU:
		op := i.Op()
		if _, ok := aluNames[op]; !ok {
			return i.bad("unknown alu op")
		}
		if op == ALU_NEG && i.Src() != SRC_K {
			return i.bad("neg takes no operand")
		}
		if (op == ALU_DIV || op == ALU_MOD) && i.Src() == SRC_K && i.K == 0 {
			return i.bad("division by zero")
		}
	case CLASS_JMP:
		op := i.Op()
		if _, ok := jmpNames[op]; !ok {
			return i.bad("unknown jump")
		}
		if op == JMP_JA && i.Src() != SRC_K {
			return i.bad("jmp takes an immediate offset")
		}
	case CLASS_RET:
		if i.Code&0xe0 != 0 || i.Rval() == 0x18 {
			return i.bad("unknown return")
		}
	case CLASS_MISC:
		if i.Code != OP_TAX && i.Code != OP_TXA {
			return i.bad("unknown misc op")
		}
	}
	return nil
}

func (i *Ins) Mnemonic() string {
	switch i.Class() {
	case CLASS_LD:
		switch i.Width() {
		case SIZE_H:
			return "ldh"
		case SIZE_B:
			return "ldb"
		}
		return "ld"
	case CLASS_LDX:
		if i.Mode() == MODE_MSH {
			return "ldxb"
		}
		return "ldx"
	case CLASS_ST:
		return "st"
	case CLASS_STX:
		return "stx"
	case CLASS_ALU:
		return aluNames[i.Op()]
	case CLASS_JMP:
		return jmpNames[i.Op()]
	case CLASS_RET:
		return "ret"
	case CLASS_MISC:
		if i.Code == OP_TXA {
			return "txa"
		}
		return "tax"
	}
	return "?"
}

func (i *Ins) src() string {
	if i.Src() == SRC_X {
		return "x"
	}
	return fmt.Sprintf("#%#x", i.K)
}

func (i *Ins) OpStr() string {
	switch i.Class() {
	case CLASS_LD, CLASS_LDX:
		switch i.Mode() {
		case MODE_IMM:
			return fmt.Sprintf("#%#x", i.K)
		case MODE_ABS:
			return fmt.Sprintf("[%d]", i.K)
		case MODE_IND:
			return fmt.Sprintf("[x + %d]", i.K)
		case MODE_MEM:
			return fmt.Sprintf("M[%d]", i.K)
		case MODE_LEN:
			return "#len"
		case MODE_MSH:
			return fmt.Sprintf("4*([%d]&0xf)", i.K)
		}
	case CLASS_ST, CLASS_STX:
		return fmt.Sprintf("M[%d]", i.K)
	case CLASS_ALU:
		if i.Op() == ALU_NEG {
			return ""
		}
		return i.src()
	case CLASS_JMP:
		taken, next := i.Targets()
		if i.Op() == JMP_JA {
			return fmt.Sprintf("%#x", taken)
		}
		return fmt.Sprintf("%s, %#x, %#x", i.src(), taken, next)
	case CLASS_RET:
		switch i.Rval() {
		case RVAL_A:
			return "a"
		case RVAL_X:
			return "x"
		}
		return fmt.Sprintf("#%#x", i.K)
	}
	return ""
}

func (i *Ins) String() string {
	return strings.TrimSpace(i.Mnemonic() + " " + i.OpStr())
}

// Decode reads exactly one instruction from the start of p.
func Decode(p []byte, addr uint64) (*Ins, error) {
	if len(p) < InsSize {
		return nil, errors.Errorf("short instruction at %#x: %d bytes", addr, len(p))
	}
	i := &Ins{
		Addr: addr,
		Code: binary.LittleEndian.Uint16(p),
		Jt:   p[2],
		Jf:   p[3],
		K:    binary.LittleEndian.Uint32(p[4:]),
	}
	if err := i.validate(); err != nil {
		return nil, err
	}
	return i, nil
}

// Dis decodes a whole program loaded at addr.
func Dis(mem []byte, addr uint64) ([]*Ins, error) {
	if len(mem)%InsSize != 0 {
		return nil, errors.Errorf("program length %d is not a multiple of %d", len(mem), InsSize)
	}
	var ret []*Ins
	for off := 0; off < len(mem); off += InsSize {
		ins, err := Decode(mem[off:], addr+uint64(off))
		if err != nil {
			return nil, err
		}
		ret = append(ret, ins)
	}
	return ret, nil
}

// Disas renders a program one instruction per line.
func Disas(mem []byte, addr uint64) (string, error) {
	code, err := Dis(mem, addr)
	if err != nil {
		return "", err
	}
	var lines []string
	for _, ins := range code {
		lines = append(lines, fmt.Sprintf("%#x: %s", ins.Addr, ins))
	}
	return strings.Join(lines, "\n"), nil
}
