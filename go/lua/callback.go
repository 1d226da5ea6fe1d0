package lua

import (
	"github.com/lunixbochs/luaish"
	"github.com/lunixbochs/luaish-luar"
	"github.com/pkg/errors"

	"github.com/lunixbochs/hookcorn/go/models/event"
)

// eventTable converts a Context into the table passed to Lua callbacks
func (b *Binding) eventTable(ctx *event.Context) *lua.LTable {
	t := b.NewTable()
	t.RawSetString("event", lua.LString(ctx.Event.String()))
	t.RawSetString("when", lua.LString(ctx.When.String()))
	t.RawSetString("addr", lua.LInt(ctx.Addr))
	t.RawSetString("size", lua.LInt(ctx.Size))
	t.RawSetString("value", lua.LInt(ctx.Value))
	t.RawSetString("reg", lua.LInt(ctx.Reg))
	t.RawSetString("reg_name", lua.LString(ctx.RegName))
	t.RawSetString("target", lua.LInt(ctx.Branch.Target))
	t.RawSetString("next", lua.LInt(ctx.Branch.Next))
	t.RawSetString("taken", lua.LBool(ctx.Branch.Taken))
	return t
}

// toAction maps a Lua return value: nil means CONTINUE, numbers are Action values
// and strings are Action names.
func toAction(v lua.LValue) event.Action {
	switch v := v.(type) {
	case *lua.LNilType:
		return event.CONTINUE
	case lua.LInt:
		return event.Action(v)
	case lua.LString:
		if a, err := event.ParseAction(string(v)); err == nil {
			return a
		}
	}
	return event.ERROR
}

// callback wraps fn as an event.Callback. fn(ev, engine) runs with the engine table
// bound to the triggering context. Lua errors are raised as Go panics.
func (b *Binding) callback(fn *lua.LFunction) event.Callback {
	return event.CallbackFunc(func(ctx *event.Context) event.Action {
		var engine lua.LValue = lua.LNil
		if ctx.Engine != nil {
			engine = luar.New(b.LState, ctx.Engine)
		}
		prev := b.ctx
		b.ctx = ctx
		defer func() { b.ctx = prev }()

		err := b.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, b.eventTable(ctx), engine)
		if err != nil {
			panic(errors.Wrap(err, "lua callback failed"))
		}
		ret := b.Get(-1)
		b.Pop(1)
		return toAction(ret)
	})
}

func (b *Binding) engineExports() map[string]lua.LGFunction {
	return map[string]lua.LGFunction{
		"mem_read":  b.MemRead,
		"mem_write": b.MemWrite,
		"reg_read":  b.RegRead,
		"reg_write": b.RegWrite,
	}
}

func (b *Binding) engine() event.Engine {
	if b.ctx == nil || b.ctx.Engine == nil {
		b.RaiseError("engine is only available inside a hook callback")
	}
	return b.ctx.Engine
}

func (b *Binding) MemRead(L *lua.LState) int {
	addr, size := L.CheckUint64(1), L.CheckUint64(2)
	mem, err := b.engine().MemRead(addr, size)
	b.checkErr(err)
	L.Push(lua.LString(mem))
	return 1
}

func (b *Binding) MemWrite(L *lua.LState) int {
	addr, data := L.CheckUint64(1), L.CheckString(2)
	b.checkErr(b.engine().MemWrite(addr, []byte(data)))
	return 0
}

func (b *Binding) RegRead(L *lua.LState) int {
	val, err := b.engine().RegRead(L.CheckInt(1))
	b.checkErr(err)
	L.Push(lua.LInt(val))
	return 1
}

func (b *Binding) RegWrite(L *lua.LState) int {
	reg, val := L.CheckInt(1), L.CheckUint64(2)
	b.checkErr(b.engine().RegWrite(reg, val))
	return 0
}
