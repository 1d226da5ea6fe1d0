package cpu

import (
	"encoding/binary"
	"github.com/pkg/errors"

	"github.com/lunixbochs/hookcorn/go/models/event"
	"github.com/lunixbochs/hookcorn/go/models/stats"
)

// Mem wraps MemSim with address range checks and MEM_R/MEM_W event dispatch.
type Mem struct {
	bits uint
	// addresses must fit inside mask, ^uint64(0) >> (64 - bits)
	mask  uint64
	sim   *MemSim
	order binary.ByteOrder

	events Dispatcher
	engine event.Engine
}

func NewMem(bits uint, order binary.ByteOrder) *Mem {
	return &Mem{
		bits:  bits,
		mask:  ^uint64(0) >> (64 - bits),
		sim:   &MemSim{},
		order: order,
	}
}

// Attach routes accessor events to d. engine is handed to callbacks as Context.Engine.
func (m *Mem) Attach(d Dispatcher, engine event.Engine) {
	m.events, m.engine = d, engine
}

func (m *Mem) ByteOrder() binary.ByteOrder {
	return m.order
}

func (m *Mem) inRange(addr, size uint64) bool {
	end := addr + size
	return end > addr && (end-1)&m.mask == end-1
}

func (m *Mem) MemMapProt(addr, size uint64, prot int) error {
	return m.MemMapDesc(addr, size, prot, "")
}

func (m *Mem) MemMapDesc(addr, size uint64, prot int, desc string) error {
	if size == 0 || !m.inRange(addr, size) {
		return errors.Errorf("region %#x+%#x outside memory range", addr, size)
	}
	m.sim.Map(addr, size, prot, desc)
	return nil
}

func (m *Mem) MemProt(addr, size uint64, prot int) error {
	if mapped, _ := m.sim.check(addr, size, 0); !mapped {
		return errors.Errorf("range %#x+%#x not mapped", addr, size)
	}
	m.sim.Prot(addr, size, prot)
	return nil
}

func (m *Mem) MemUnmap(addr, size uint64) error {
	if mapped, _ := m.sim.check(addr, size, 0); !mapped {
		return errors.Errorf("range %#x+%#x not mapped", addr, size)
	}
	m.sim.Unmap(addr, size)
	return nil
}

func (m *Mem) Mappings() Pages {
	return append(Pages(nil), m.sim.Mem...)
}

// MemRead and MemWrite ignore protections and never raise events.
func (m *Mem) MemRead(addr, size uint64) ([]byte, error) {
	p := make([]byte, size)
	if err := m.sim.Read(addr, p, 0); err != nil {
		return nil, err
	}
	return p, nil
}

func (m *Mem) MemWrite(addr uint64, p []byte) error {
	return m.sim.Write(addr, p, 0)
}

// ReadProt reads while checking protections, without raising events. Used for instruction fetch.
func (m *Mem) ReadProt(addr, size uint64, prot int) ([]byte, error) {
	p := make([]byte, size)
	if err := m.sim.Read(addr, p, prot); err != nil {
		return nil, err
	}
	return p, nil
}

func (m *Mem) dispatch(ev event.Event, when event.When, ctx *event.Context) event.Action {
	if m.events == nil {
		return event.CONTINUE
	}
	return m.events.Dispatch(ev, when, ctx)
}

// ReadUint performs a data read, raising MEM_R before and after the access.
// An ERROR from the BEFORE hooks skips the read.
func (m *Mem) ReadUint(addr uint64, size, prot int) (uint64, event.Action, error) {
	if size > 8 {
		return 0, event.CONTINUE, errors.Errorf("ReadUint size too large: %d > 8", size)
	}
	ctx := &event.Context{Addr: addr, Size: uint64(size), Engine: m.engine}
	action := m.dispatch(event.MEM_R, event.BEFORE, ctx)
	if action == event.ERROR {
		return 0, action, nil
	}
	p, err := m.ReadProt(addr, uint64(size), prot)
	if err != nil {
		return 0, action, err
	}
	val, err := UnpackUint(m.order, size, p)
	if err != nil {
		return 0, action, err
	}
	if s := stats.Get(); s != nil {
		s.MemReads++
	}
	ctx.Value = val
	action = action.Max(m.dispatch(event.MEM_R, event.AFTER, ctx))
	return val, action, nil
}

// WriteUint performs a data write, raising MEM_W before and after the access.
// An ERROR from the BEFORE hooks skips the write.
func (m *Mem) WriteUint(addr uint64, size, prot int, val uint64) (event.Action, error) {
	var buf [8]byte
	if size > 8 {
		return event.CONTINUE, errors.Errorf("WriteUint size too large: %d > 8", size)
	}
	p, err := PackUint(m.order, size, buf[:], val)
	if err != nil {
		return event.CONTINUE, err
	}
	ctx := &event.Context{Addr: addr, Size: uint64(size), Value: val, Engine: m.engine}
	action := m.dispatch(event.MEM_W, event.BEFORE, ctx)
	if action == event.ERROR {
		return action, nil
	}
	if err := m.sim.Write(addr, p, prot); err != nil {
		return action, err
	}
	if s := stats.Get(); s != nil {
		s.MemWrites++
	}
	action = action.Max(m.dispatch(event.MEM_W, event.AFTER, ctx))
	return action, nil
}
