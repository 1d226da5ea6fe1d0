package cpu

import (
	"github.com/lunixbochs/hookcorn/go/models/event"
)

// Dispatcher is the part of *event.Manager the memory and register models raise events through.
type Dispatcher interface {
	Dispatch(ev event.Event, when event.When, ctx *event.Context) event.Action
}

// Cpu is the minimum an interpreter engine exposes to hooks and tools.
type Cpu interface {
	event.Engine

	MemMapProt(addr, size uint64, prot int) error
	MemProt(addr, size uint64, prot int) error
	MemUnmap(addr, size uint64) error

	Events() *event.Manager
	Close() error
}
