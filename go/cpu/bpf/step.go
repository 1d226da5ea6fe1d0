package bpf

import (
	"github.com/lunixbochs/hookcorn/go/models/cpu"
	"github.com/lunixbochs/hookcorn/go/models/event"
)

// step executes one instruction, folding every event Action it raises.
// Once an error or ERROR is recorded the remaining accesses are skipped.
type step struct {
	c   *Cpu
	ins *Ins

	next   uint64
	action event.Action
	err    error

	exited bool
	ret    uint32
}

func (s *step) stopped() bool {
	return s.err != nil || s.action == event.ERROR || s.exited
}

func (s *step) note(action event.Action, err error) {
	s.action = s.action.Max(action)
	if err != nil && s.err == nil {
		s.err = err
	}
}

// exit terminates the filter with a return value
func (s *step) exit(ret uint32) {
	s.exited, s.ret = true, ret
}

func (s *step) reg(enum int) uint32 {
	if s.stopped() {
		return 0
	}
	val, action, err := s.c.ReadReg(enum)
	s.note(action, err)
	return uint32(val)
}

func (s *step) setReg(enum int, val uint32) {
	if s.stopped() {
		return
	}
	s.note(s.c.WriteReg(enum, uint64(val)))
}

// load reads from the packet; out of bounds loads make the filter return 0
func (s *step) load(off uint64, size int) uint32 {
	if s.stopped() {
		return 0
	}
	plen, _ := s.c.RegRead(LEN)
	if off+uint64(size) > plen {
		s.exit(0)
		return 0
	}
	val, action, err := s.c.ReadUint(PacketBase+off, size, cpu.PROT_READ)
	s.note(action, err)
	return uint32(val)
}

func (s *step) scratch(k uint32) uint32 {
	if s.stopped() {
		return 0
	}
	val, action, err := s.c.ReadUint(ScratchBase+uint64(k)*4, 4, cpu.PROT_READ)
	s.note(action, err)
	return uint32(val)
}

func (s *step) setScratch(k, val uint32) {
	if s.stopped() {
		return
	}
	s.note(s.c.WriteUint(ScratchBase+uint64(k)*4, 4, cpu.PROT_WRITE, uint64(val)))
}

func (s *step) operand() uint32 {
	if s.ins.Src() == SRC_X {
		return s.reg(X)
	}
	return s.ins.K
}

// branch raises PATH (conditional jumps only) and BRANCH around the pc update
func (s *step) branch(cond, taken bool) {
	if s.stopped() {
		return
	}
	target, next := s.ins.Targets()
	ctx := &event.Context{
		Addr:   s.ins.Addr,
		Branch: event.Branch{Target: target, Next: next, Taken: taken, Cond: cond},
		Engine: s.c,
	}
	events := s.c.Events()
	for _, when := range []event.When{event.BEFORE, event.AFTER} {
		if when == event.AFTER {
			if taken {
				s.next = target
			} else {
				s.next = next
			}
		}
		if cond {
			s.note(events.Dispatch(event.PATH, when, ctx), nil)
			if s.stopped() {
				return
			}
		}
		s.note(events.Dispatch(event.BRANCH, when, ctx), nil)
		if s.stopped() {
			return
		}
	}
}

func (s *step) exec() {
	ins := s.ins
	switch ins.Class() {
	case CLASS_LD:
		var val uint32
		switch ins.Mode() {
		case MODE_IMM:
			val = ins.K
		case MODE_LEN:
			plen, _ := s.c.RegRead(LEN)
			val = uint32(plen)
		case MODE_MEM:
			val = s.scratch(ins.K)
		case MODE_ABS:
			val = s.load(uint64(ins.K), sizeBytes[ins.Width()])
		case MODE_IND:
			off := uint64(s.reg(X)) + uint64(ins.K)
			val = s.load(off, sizeBytes[ins.Width()])
		}
		s.setReg(A, val)
	case CLASS_LDX:
		var val uint32
		switch ins.Mode() {
		case MODE_IMM:
			val = ins.K
		case MODE_LEN:
			plen, _ := s.c.RegRead(LEN)
			val = uint32(plen)
		case MODE_MEM:
			val = s.scratch(ins.K)
		case MODE_MSH:
			val = 4 * (s.load(uint64(ins.K), 1) & 0xf)
		}
		s.setReg(X, val)
	case CLASS_ST:
		s.setScratch(ins.K, s.reg(A))
	case CLASS_STX:
		s.setScratch(ins.K, s.reg(X))
	case CLASS_ALU:
		s.alu()
	case CLASS_JMP:
		if ins.Op() == JMP_JA {
			s.branch(false, true)
			return
		}
		a := s.reg(A)
		k := s.operand()
		var taken bool
		switch ins.Op() {
		case JMP_JEQ:
			taken = a == k
		case JMP_JGT:
			taken = a > k
		case JMP_JGE:
			taken = a >= k
		case JMP_JSET:
			taken = a&k != 0
		}
		s.branch(true, taken)
	case CLASS_RET:
		var ret uint32
		switch ins.Rval() {
		case RVAL_K:
			ret = ins.K
		case RVAL_A:
			ret = s.reg(A)
		case RVAL_X:
			ret = s.reg(X)
		}
		if !s.stopped() {
			s.exit(ret)
		}
	case CLASS_MISC:
		if ins.Code == OP_TAX {
			s.setReg(X, s.reg(A))
		} else {
			s.setReg(A, s.reg(X))
		}
	}
}

func (s *step) alu() {
	op := s.ins.Op()
	a := s.reg(A)
	if op == ALU_NEG {
		s.setReg(A, -a)
		return
	}
	k := s.operand()
	if s.stopped() {
		return
	}
	switch op {
	case ALU_ADD:
		a += k
	case ALU_SUB:
		a -= k
	case ALU_MUL:
		a *= k
	case ALU_DIV, ALU_MOD:
		// only reachable with k from X, immediate zero divisors fail to decode
		if k == 0 {
			s.exit(0)
			return
		}
		if op == ALU_DIV {
			a /= k
		} else {
			a %= k
		}
	case ALU_OR:
		a |= k
	case ALU_AND:
		a &= k
	case ALU_LSH:
		a <<= k
	case ALU_RSH:
		a >>= k
	case ALU_XOR:
		a ^= k
	}
	s.setReg(A, a)
}
