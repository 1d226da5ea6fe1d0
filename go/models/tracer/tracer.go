// Package tracer logs engine events through hooks registered in the "trace" group.
package tracer

import (
	"fmt"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/lunixbochs/hookcorn/go/models/event"
)

const Group = "trace"

type Config struct {
	Exec   bool
	Mem    bool
	Reg    bool
	Branch bool

	// Disas renders the instruction at addr for exec traces, if set
	Disas func(addr uint64) (string, error)
}

// Tracer owns the trace hooks of one manager.
type Tracer struct {
	m      *event.Manager
	log    *zap.Logger
	config Config
	count  uint64
}

func hex(val uint64) string {
	return fmt.Sprintf("%#x", val)
}

// Attach registers trace hooks on m for every traced event class.
// Memory and register traces fire AFTER the access so values are final.
func Attach(m *event.Manager, log *zap.Logger, config Config) (*Tracer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	t := &Tracer{m: m, log: log, config: config}
	hooks := []struct {
		on   bool
		name string
		ev   event.Event
		when event.When
		fn   event.CallbackFunc
	}{
		{config.Exec, "trace_exec", event.EXEC, event.BEFORE, t.exec},
		{config.Mem, "trace_mem", event.MEM_RW, event.AFTER, t.mem},
		{config.Reg, "trace_reg", event.REG_RW, event.AFTER, t.reg},
		{config.Branch, "trace_branch", event.BRANCH, event.AFTER, t.branch},
	}
	for _, h := range hooks {
		if !h.on {
			continue
		}
		if _, err := m.Add(h.ev, h.when, h.name, event.AnyAddr(), Group, h.fn); err != nil {
			return nil, errors.Wrap(err, "failed to add trace hook")
		}
	}
	return t, nil
}

func (t *Tracer) Enable() error {
	return t.m.EnableGroup(Group)
}

func (t *Tracer) Disable() error {
	return t.m.DisableGroup(Group)
}

// Count is the number of events logged so far.
func (t *Tracer) Count() uint64 {
	return t.count
}

func (t *Tracer) exec(ctx *event.Context) event.Action {
	t.count++
	fields := []zap.Field{zap.String("addr", hex(ctx.Addr))}
	if t.config.Disas != nil {
		if dis, err := t.config.Disas(ctx.Addr); err != nil {
			fields = append(fields, zap.Error(err))
		} else {
			fields = append(fields, zap.String("ins", dis))
		}
	}
	t.log.Info("exec", fields...)
	return event.CONTINUE
}

func (t *Tracer) mem(ctx *event.Context) event.Action {
	t.count++
	t.log.Info("mem",
		zap.Stringer("event", ctx.Event),
		zap.String("addr", hex(ctx.Addr)),
		zap.Uint64("size", ctx.Size),
		zap.String("value", hex(ctx.Value)))
	return event.CONTINUE
}

func (t *Tracer) reg(ctx *event.Context) event.Action {
	t.count++
	t.log.Info("reg",
		zap.Stringer("event", ctx.Event),
		zap.String("reg", ctx.RegName),
		zap.String("value", hex(ctx.Value)))
	return event.CONTINUE
}

func (t *Tracer) branch(ctx *event.Context) event.Action {
	t.count++
	t.log.Info("branch",
		zap.String("addr", hex(ctx.Addr)),
		zap.String("target", hex(ctx.Branch.Target)),
		zap.Bool("taken", ctx.Branch.Taken),
		zap.Bool("cond", ctx.Branch.Cond))
	return event.CONTINUE
}
