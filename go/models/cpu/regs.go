package cpu

import (
	"fmt"
	"github.com/pkg/errors"
	"sort"

	"github.com/lunixbochs/hookcorn/go/models/event"
	"github.com/lunixbochs/hookcorn/go/models/stats"
)

// Regs is an enum-keyed register file.
// RegRead/RegWrite are raw accessors; ReadReg/WriteReg raise REG_R/REG_W events.
type Regs struct {
	mask  uint64
	vals  map[int]uint64
	names map[int]string

	events Dispatcher
	engine event.Engine
}

// NewRegs creates a register file; names maps each register enum to its display name.
func NewRegs(bits uint, names map[int]string) *Regs {
	r := &Regs{
		mask:  ^uint64(0) >> (64 - bits),
		vals:  make(map[int]uint64, len(names)),
		names: make(map[int]string, len(names)),
	}
	for e, name := range names {
		r.vals[e] = 0
		r.names[e] = name
	}
	return r
}

func (r *Regs) Attach(d Dispatcher, engine event.Engine) {
	r.events, r.engine = d, engine
}

func (r *Regs) Name(enum int) string {
	if name, ok := r.names[enum]; ok {
		return name
	}
	return fmt.Sprintf("reg%d", enum)
}

// Enums returns every register enum in ascending order.
func (r *Regs) Enums() []int {
	enums := make([]int, 0, len(r.vals))
	for e := range r.vals {
		enums = append(enums, e)
	}
	sort.Ints(enums)
	return enums
}

func (r *Regs) RegRead(enum int) (uint64, error) {
	val, ok := r.vals[enum]
	if !ok {
		return 0, errors.Errorf("invalid register %d", enum)
	}
	return val, nil
}

func (r *Regs) RegWrite(enum int, val uint64) error {
	if _, ok := r.vals[enum]; !ok {
		return errors.Errorf("invalid register %d", enum)
	}
	r.vals[enum] = val & r.mask
	return nil
}

func (r *Regs) dispatch(ev event.Event, when event.When, ctx *event.Context) event.Action {
	if r.events == nil {
		return event.CONTINUE
	}
	return r.events.Dispatch(ev, when, ctx)
}

// ReadReg reads a register on behalf of the executing program.
func (r *Regs) ReadReg(enum int) (uint64, event.Action, error) {
	if _, ok := r.vals[enum]; !ok {
		return 0, event.CONTINUE, errors.Errorf("invalid register %d", enum)
	}
	ctx := &event.Context{Reg: enum, RegName: r.Name(enum), Engine: r.engine}
	ctx.Value = r.vals[enum]
	action := r.dispatch(event.REG_R, event.BEFORE, ctx)
	if action == event.ERROR {
		return 0, action, nil
	}
	// BEFORE callbacks may have rewritten the register through the engine
	val := r.vals[enum]
	if s := stats.Get(); s != nil {
		s.RegReads++
	}
	ctx.Value = val
	action = action.Max(r.dispatch(event.REG_R, event.AFTER, ctx))
	return val, action, nil
}

// WriteReg writes a register on behalf of the executing program.
func (r *Regs) WriteReg(enum int, val uint64) (event.Action, error) {
	if _, ok := r.vals[enum]; !ok {
		return event.CONTINUE, errors.Errorf("invalid register %d", enum)
	}
	val &= r.mask
	ctx := &event.Context{Reg: enum, RegName: r.Name(enum), Value: val, Engine: r.engine}
	action := r.dispatch(event.REG_W, event.BEFORE, ctx)
	if action == event.ERROR {
		return action, nil
	}
	r.vals[enum] = val
	if s := stats.Get(); s != nil {
		s.RegWrites++
	}
	action = action.Max(r.dispatch(event.REG_W, event.AFTER, ctx))
	return action, nil
}

// ContextSave copies every register value, reusing a previous context if given.
func (r *Regs) ContextSave(reuse interface{}) (interface{}, error) {
	var m map[int]uint64
	if reuse != nil {
		var ok bool
		if m, ok = reuse.(map[int]uint64); !ok {
			return nil, errors.New("incorrect context type")
		}
	} else {
		m = make(map[int]uint64, len(r.vals))
	}
	for k, v := range r.vals {
		m[k] = v
	}
	return m, nil
}

func (r *Regs) ContextRestore(ctx interface{}) error {
	m, ok := ctx.(map[int]uint64)
	if !ok {
		return errors.New("incorrect context type")
	}
	for k, v := range m {
		if _, ok := r.vals[k]; ok {
			r.vals[k] = v
		}
	}
	return nil
}
