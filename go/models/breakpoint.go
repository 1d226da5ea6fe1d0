package models

import (
	"fmt"
	"github.com/pkg/errors"
	"strings"

	"github.com/lunixbochs/hookcorn/go/models/event"
)

// BreakpointGroup holds every breakpoint hook so they can be toggled together.
const BreakpointGroup = "breakpoints"

var BreakpointParseErr = fmt.Errorf("breakpoint parse failed")

type Breakpoint struct {
	Desc   string
	Filter event.AddrFilter
	// Hits counts the halts caused by this breakpoint
	Hits uint64

	m    *event.Manager
	name string
}

// desc can be ADDR, *ADDR, MIN-MAX or [MIN,MAX]
func NewBreakpoint(desc string) (*Breakpoint, error) {
	filter, err := event.ParseAddrFilter(strings.TrimPrefix(strings.TrimSpace(desc), "*"))
	if err != nil || filter.Any() {
		return nil, errors.Wrapf(BreakpointParseErr, "%q", desc)
	}
	return &Breakpoint{Desc: desc, Filter: filter}, nil
}

func halt(ctx *event.Context, data interface{}) event.Action {
	data.(*Breakpoint).Hits++
	return event.HALT
}

// Apply installs the breakpoint as an EXEC BEFORE hook returning HALT.
// Observers run first and may be any handler accepted by event.Func.
// The hook is named bp_<filter>, or gets a generated name if that one is taken.
func (b *Breakpoint) Apply(m *event.Manager, observers ...interface{}) error {
	if b.m != nil {
		return errors.Errorf("breakpoint %s already applied", b.Desc)
	}
	fns := make([]interface{}, 0, len(observers)+1)
	for _, fn := range observers {
		if fn != nil {
			fns = append(fns, fn)
		}
	}
	fns = append(fns, event.Bind(halt, b))
	name := "bp_" + b.Filter.String()
	if m.Hook(name) != nil {
		name = ""
	}
	id, err := m.AddFunc(event.EXEC, event.BEFORE, name, b.Filter, BreakpointGroup, fns...)
	if err != nil {
		return errors.Wrap(err, "failed to add breakpoint hook")
	}
	b.m, b.name = m, m.Hooks()[id].Name()
	return nil
}

// Name is the hook name, empty until applied.
func (b *Breakpoint) Name() string {
	return b.name
}

// Remove disables the breakpoint hook; hooks cannot be deleted.
func (b *Breakpoint) Remove() error {
	if b.m == nil {
		return nil
	}
	return b.m.Disable(b.name)
}
