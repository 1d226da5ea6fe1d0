package lua

import (
	"github.com/lunixbochs/luaish"
	"github.com/pkg/errors"

	"github.com/lunixbochs/hookcorn/go/models/event"
)

func (b *Binding) hookExports() map[string]lua.LGFunction {
	return map[string]lua.LGFunction{
		"add":           b.HookAdd,
		"enable":        b.Enable,
		"disable":       b.Disable,
		"enable_group":  b.EnableGroup,
		"disable_group": b.DisableGroup,
		"disable_all":   b.DisableAll,
		"describe":      b.Describe,
	}
}

func checkEvent(v lua.LValue) (event.Event, error) {
	switch v := v.(type) {
	case lua.LInt:
		if ev := event.Event(v); ev.Valid() {
			return ev, nil
		}
		return 0, errors.Wrapf(event.ErrInvalidEvent, "%d", int64(v))
	case lua.LString:
		return event.ParseEvent(string(v))
	}
	return 0, errors.Wrapf(event.ErrInvalidEvent, "got %s", v.Type())
}

func checkWhen(v lua.LValue) (event.When, error) {
	switch v := v.(type) {
	case lua.LInt:
		if w := event.When(v); w.Valid() {
			return w, nil
		}
		return 0, errors.Wrapf(event.ErrInvalidWhen, "%d", int64(v))
	case lua.LString:
		return event.ParseWhen(string(v))
	}
	return 0, errors.Wrapf(event.ErrInvalidWhen, "got %s", v.Type())
}

// filter=addr, filter={min, max}, filter={min=, max=} or filter="0xMIN-0xMAX"
func checkFilter(v lua.LValue) (event.AddrFilter, error) {
	switch v := v.(type) {
	case *lua.LNilType:
		return event.AnyAddr(), nil
	case lua.LInt:
		return event.SingleAddr(uint64(v)), nil
	case lua.LString:
		return event.ParseAddrFilter(string(v))
	case *lua.LTable:
		min, max := v.RawGetString("min"), v.RawGetString("max")
		if min == lua.LNil && max == lua.LNil {
			min, max = v.RawGetInt(1), v.RawGetInt(2)
		}
		lo, ok1 := min.(lua.LInt)
		hi, ok2 := max.(lua.LInt)
		if !ok1 || !ok2 {
			return event.AddrFilter{}, errors.Wrap(event.ErrInvalidFilter, "filter table needs integer min and max")
		}
		return event.NewAddrFilter(uint64(lo), uint64(hi))
	}
	return event.AddrFilter{}, errors.Wrapf(event.ErrInvalidFilter, "got %s", v.Type())
}

func optString(tbl *lua.LTable, key string) (string, error) {
	switch v := tbl.RawGetString(key).(type) {
	case *lua.LNilType:
		return "", nil
	case lua.LString:
		return string(v), nil
	default:
		return "", errors.Errorf("%s must be a string, got %s", key, v.Type())
	}
}

// hooks.add(event, when, {name=, filter=, group=, callbacks={fn, ...}}) returns the hook id
func (b *Binding) HookAdd(L *lua.LState) int {
	ev, err := checkEvent(L.CheckAny(1))
	b.checkErr(err)
	when, err := checkWhen(L.CheckAny(2))
	b.checkErr(err)
	opts := L.OptTable(3, L.NewTable())

	name, err := optString(opts, "name")
	b.checkErr(err)
	group, err := optString(opts, "group")
	b.checkErr(err)
	filter, err := checkFilter(opts.RawGetString("filter"))
	b.checkErr(err)

	var callbacks []event.Callback
	switch v := opts.RawGetString("callbacks").(type) {
	case *lua.LNilType:
	case *lua.LFunction:
		callbacks = append(callbacks, b.callback(v))
	case *lua.LTable:
		for i := 1; i <= v.Len(); i++ {
			fn, ok := v.RawGetInt(i).(*lua.LFunction)
			if !ok {
				b.checkErr(errors.Wrapf(event.ErrCallbackType, "callback number %d is not a function", i-1))
			}
			callbacks = append(callbacks, b.callback(fn))
		}
	default:
		b.checkErr(errors.Wrapf(event.ErrCallbackType, "callbacks must be a list of functions, got %s", v.Type()))
	}

	id, err := b.m.Add(ev, when, name, filter, group, callbacks...)
	b.checkErr(err)
	L.Push(lua.LInt(id))
	return 1
}

func (b *Binding) Enable(L *lua.LState) int {
	b.checkErr(b.m.Enable(L.CheckString(1)))
	return 0
}

func (b *Binding) Disable(L *lua.LState) int {
	b.checkErr(b.m.Disable(L.CheckString(1)))
	return 0
}

func (b *Binding) EnableGroup(L *lua.LState) int {
	b.checkErr(b.m.EnableGroup(L.CheckString(1)))
	return 0
}

func (b *Binding) DisableGroup(L *lua.LState) int {
	b.checkErr(b.m.DisableGroup(L.CheckString(1)))
	return 0
}

func (b *Binding) DisableAll(L *lua.LState) int {
	b.m.DisableAll()
	return 0
}

func (b *Binding) Describe(L *lua.LState) int {
	L.Push(lua.LString(b.m.Describe(false)))
	return 1
}
