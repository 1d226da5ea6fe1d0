package lua

import (
	"github.com/lunixbochs/luaish"
	"io"
	"os"
	"strconv"

	"github.com/lunixbochs/hookcorn/go/models/event"
)

// Binding exposes an event.Manager to a Lua state.
type Binding struct {
	*lua.LState
	m *event.Manager
	io.Writer

	// context of the Lua callback currently running, for the engine table
	ctx *event.Context
}

// Bind installs the EVENT, WHEN and ACTION enum tables and the hooks and engine
// function tables into L.
func Bind(L *lua.LState, m *event.Manager) (*Binding, error) {
	b := &Binding{LState: L, m: m, Writer: os.Stdout}
	if err := b.loadBindings(); err != nil {
		return nil, err
	}
	return b, nil
}

// New binds m to a fresh Lua state, closed by Close.
func New(m *event.Manager) (*Binding, error) {
	L := lua.NewState()
	b, err := Bind(L, m)
	if err != nil {
		L.Close()
		return nil, err
	}
	return b, nil
}

func (b *Binding) SetOutput(w io.Writer) {
	b.Writer = w
}

func (b *Binding) Manager() *event.Manager {
	return b.m
}

func enumTable(L *lua.LState, names map[string]int) *lua.LTable {
	mod := L.NewTable()
	for k, v := range names {
		mod.RawSetString(k, lua.LInt(v))
	}
	return mod
}

func (b *Binding) loadBindings() error {
	events := make(map[string]int)
	for ev := event.EXEC; ev <= event.REG_RW; ev++ {
		events[ev.String()] = int(ev)
	}
	b.SetGlobal("EVENT", enumTable(b.LState, events))
	b.SetGlobal("WHEN", enumTable(b.LState, map[string]int{
		"BEFORE": int(event.BEFORE),
		"AFTER":  int(event.AFTER),
	}))
	b.SetGlobal("ACTION", enumTable(b.LState, map[string]int{
		"CONTINUE": int(event.CONTINUE),
		"HALT":     int(event.HALT),
		"ERROR":    int(event.ERROR),
	}))

	b.SetGlobal("hooks", b.SetFuncs(b.NewTable(), b.hookExports()))
	b.SetGlobal("engine", b.SetFuncs(b.NewTable(), b.engineExports()))
	b.SetGlobal("print", b.NewFunction(b.printFunc))
	b.SetGlobal("int", b.NewFunction(b.intFunc))
	return b.DoString(sugarRc)
}

func (b *Binding) printFunc(_ *lua.LState) int {
	b.PrettyPrint(b.getArgs(), false)
	return 0
}

func (b *Binding) intFunc(_ *lua.LState) int {
	switch v := b.CheckAny(1).(type) {
	case lua.LString:
		n, err := strconv.ParseInt(string(v), 0, 64)
		if err == nil {
			b.Push(lua.LInt(n))
			return 1
		}
	case lua.LFloat:
		b.Push(lua.LInt(v))
		return 1
	case lua.LInt:
		b.Push(v)
		return 1
	}
	return 0
}

// Returns a list of lua.LValue for each value on the stack.
func (b *Binding) getArgs() []lua.LValue {
	lv := make([]lua.LValue, b.GetTop())
	for i := range lv {
		lv[i] = b.CheckAny(i + 1)
	}
	return lv
}

func (b *Binding) checkErr(err error) {
	if err != nil {
		b.RaiseError(err.Error())
	}
}
