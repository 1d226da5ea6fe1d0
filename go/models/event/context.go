package event

import (
	"fmt"
)

// Engine is the live-state handle passed to callbacks.
// Side effects performed through it are not tracked by the Manager.
type Engine interface {
	MemRead(addr, size uint64) ([]byte, error)
	MemWrite(addr uint64, p []byte) error
	RegRead(reg int) (uint64, error)
	RegWrite(reg int, val uint64) error
}

// Branch describes a control flow decision for BRANCH and PATH events.
type Branch struct {
	Target uint64
	Next   uint64
	Taken  bool
	// Cond is false for unconditional jumps
	Cond bool
}

// Context is the view of a triggering event handed to callbacks.
// Dispatch fills in Event and When; the engine fills in the rest.
type Context struct {
	Event Event
	When  When

	// EXEC: instruction address, MEM_*: access address
	Addr uint64
	Size uint64
	// MEM_W: value being written, MEM_R/REG_R AFTER: value read, REG_W: new value
	Value uint64

	Reg     int
	RegName string

	Branch Branch

	Engine Engine
}

func (c *Context) String() string {
	switch c.Event {
	case EXEC:
		return fmt.Sprintf("%s %s @%#x", c.Event, c.When, c.Addr)
	case MEM_R, MEM_W, MEM_RW:
		return fmt.Sprintf("%s %s @%#x(%d) = %#x", c.Event, c.When, c.Addr, c.Size, c.Value)
	case REG_R, REG_W, REG_RW:
		return fmt.Sprintf("%s %s %s = %#x", c.Event, c.When, c.RegName, c.Value)
	case BRANCH, PATH:
		return fmt.Sprintf("%s %s @%#x -> %#x (taken=%v)", c.Event, c.When, c.Addr, c.Branch.Target, c.Branch.Taken)
	}
	return fmt.Sprintf("%s %s", c.Event, c.When)
}
