package bpf

import (
	"encoding/binary"
	"fmt"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/lunixbochs/hookcorn/go/models/cpu"
	"github.com/lunixbochs/hookcorn/go/models/event"
	"github.com/lunixbochs/hookcorn/go/models/stats"
)

// register enums
const (
	A = iota
	X
	PC
	// packet length, read by ld/ldx #len
	LEN
)

var regNames = map[int]string{A: "A", X: "X", PC: "PC", LEN: "LEN"}

// fixed memory layout
const (
	PacketBase  = 0x00000000
	ScratchBase = 0x7fff0000
	ProgramBase = 0x80000000
)

var ErrCallbackAbort = errors.New("execution aborted by callback")

// CallbackFault is returned when a hook callback panics during execution.
type CallbackFault struct {
	PC    uint64
	Value interface{}
}

func (c *CallbackFault) Error() string {
	return fmt.Sprintf("callback panicked at %#x: %v", c.PC, c.Value)
}

type StopReason int

const (
	// the filter executed ret
	Exited StopReason = iota
	// a callback returned HALT
	Halted
	// a callback returned ERROR
	Aborted
	// execution reached the until address
	Until
	// memory or decode fault, or a callback panic
	Faulted
)

func (r StopReason) String() string {
	switch r {
	case Exited:
		return "exited"
	case Halted:
		return "halted"
	case Aborted:
		return "aborted"
	case Until:
		return "until"
	case Faulted:
		return "faulted"
	}
	return "unknown"
}

// Stop describes why Start returned. Ret is only meaningful for Exited.
type Stop struct {
	Reason StopReason
	PC     uint64
	Ret    uint32
}

func (s *Stop) String() string {
	if s.Reason == Exited {
		return fmt.Sprintf("%s at %#x, returned %#x", s.Reason, s.PC, s.Ret)
	}
	return fmt.Sprintf("%s at %#x", s.Reason, s.PC)
}

// Cpu is a classic BPF interpreter raising events through an *event.Manager.
type Cpu struct {
	*cpu.Regs
	*cpu.Mem

	events *event.Manager
	log    *zap.Logger

	// set when an EXEC BEFORE hook halted at haltPC
	halted bool
	haltPC uint64
}

var _ cpu.Cpu = &Cpu{}

func NewCpu() (*Cpu, error) {
	c := &Cpu{
		Regs:   cpu.NewRegs(32, regNames),
		Mem:    cpu.NewMem(32, binary.BigEndian),
		events: event.NewManager(),
		log:    zap.NewNop(),
	}
	c.Regs.Attach(c.events, c)
	c.Mem.Attach(c.events, c)
	if err := c.MemMapDesc(ScratchBase, MEMWORDS*4, cpu.PROT_READ|cpu.PROT_WRITE, "scratch"); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cpu) Events() *event.Manager {
	return c.events
}

// SetLogger enables per-instruction debug logging.
func (c *Cpu) SetLogger(log *zap.Logger) {
	c.log = log
}

func (c *Cpu) Close() error {
	return nil
}

// LoadProgram maps a filter program read-only at ProgramBase.
func (c *Cpu) LoadProgram(code []byte) error {
	if _, err := Dis(code, ProgramBase); err != nil {
		return errors.Wrap(err, "invalid filter program")
	}
	if len(code) == 0 {
		return errors.New("empty filter program")
	}
	if c.Find(ProgramBase) != nil {
		c.MemUnmap(ProgramBase, c.Find(ProgramBase).Size)
	}
	if err := c.MemMapDesc(ProgramBase, uint64(len(code)), cpu.PROT_READ|cpu.PROT_EXEC, "filter"); err != nil {
		return err
	}
	return c.MemWrite(ProgramBase, code)
}

// SetPacket maps the packet the filter runs against at PacketBase.
func (c *Cpu) SetPacket(p []byte) error {
	if old, _ := c.RegRead(LEN); old > 0 {
		c.MemUnmap(PacketBase, old)
	}
	c.RegWrite(LEN, 0)
	if len(p) == 0 {
		return nil
	}
	if uint64(len(p)) > ScratchBase-PacketBase {
		return errors.Errorf("packet too large: %d bytes", len(p))
	}
	if err := c.MemMapDesc(PacketBase, uint64(len(p)), cpu.PROT_READ, "packet"); err != nil {
		return err
	}
	if err := c.MemWrite(PacketBase, p); err != nil {
		return err
	}
	return c.RegWrite(LEN, uint64(len(p)))
}

// Find returns the mapping containing addr, or nil.
func (c *Cpu) Find(addr uint64) *cpu.Page {
	return c.Mappings().Find(addr)
}

// Run executes the loaded program from its first instruction.
func (c *Cpu) Run() (*Stop, error) {
	return c.Start(ProgramBase, 0)
}

// Start executes from begin until the filter returns, a callback stops it, or the
// pc reaches until (0 means no limit).
//
// A HALT from EXEC BEFORE stops before the instruction runs; restarting at the same
// address runs it without triggering those hooks again. A HALT raised anywhere else
// stops after the current instruction. ERROR stops immediately with ErrCallbackAbort.
func (c *Cpu) Start(begin, until uint64) (stop *Stop, err error) {
	pc := begin
	defer func() {
		if r := recover(); r != nil {
			stop = &Stop{Reason: Faulted, PC: pc}
			err = &CallbackFault{PC: pc, Value: r}
		}
	}()
	skip := c.halted && c.haltPC == begin
	c.halted = false
	if err := c.RegWrite(PC, begin); err != nil {
		return nil, err
	}
	for {
		if until != 0 && pc >= until {
			return &Stop{Reason: Until, PC: pc}, nil
		}
		ctx := &event.Context{Addr: pc, Size: InsSize, Engine: c}
		if !skip {
			switch c.events.Dispatch(event.EXEC, event.BEFORE, ctx) {
			case event.ERROR:
				return &Stop{Reason: Aborted, PC: pc}, ErrCallbackAbort
			case event.HALT:
				c.halted, c.haltPC = true, pc
				return &Stop{Reason: Halted, PC: pc}, nil
			}
			if next, _ := c.RegRead(PC); next != pc {
				c.log.Debug("pc redirected", zap.Uint64("from", pc), zap.Uint64("to", next))
				pc = next
				continue
			}
		}
		skip = false

		p, err := c.ReadProt(pc, InsSize, cpu.PROT_EXEC)
		if err != nil {
			return &Stop{Reason: Faulted, PC: pc}, errors.Wrap(err, "instruction fetch failed")
		}
		ins, err := Decode(p, pc)
		if err != nil {
			return &Stop{Reason: Faulted, PC: pc}, err
		}
		c.log.Debug("exec", zap.Uint64("pc", pc), zap.Stringer("ins", ins))

		s := &step{c: c, ins: ins, next: ins.Next()}
		s.exec()
		if s.err != nil {
			return &Stop{Reason: Faulted, PC: pc}, s.err
		}
		if s.action == event.ERROR {
			return &Stop{Reason: Aborted, PC: pc}, ErrCallbackAbort
		}
		if g := stats.Get(); g != nil {
			g.ExecutedInsts++
		}
		action := s.action.Max(c.events.Dispatch(event.EXEC, event.AFTER, ctx))
		if action == event.ERROR {
			return &Stop{Reason: Aborted, PC: pc}, ErrCallbackAbort
		}
		if s.exited {
			return &Stop{Reason: Exited, PC: pc, Ret: s.ret}, nil
		}
		pc = s.next
		c.RegWrite(PC, pc)
		if action == event.HALT {
			return &Stop{Reason: Halted, PC: pc}, nil
		}
	}
}

// Save snapshots registers and memory. Hooks are not part of the snapshot.
func (c *Cpu) Save() ([]byte, error) {
	return cpu.Save(c.Regs, c.Mem)
}

func (c *Cpu) Restore(data []byte) error {
	c.halted = false
	return cpu.Restore(data, c.Regs, c.Mem)
}
