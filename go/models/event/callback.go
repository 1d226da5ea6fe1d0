package event

import (
	"fmt"
	"github.com/lunixbochs/argjoy"
	"github.com/pkg/errors"
	"reflect"
)

// Callback handles a triggered hook. Its only contract with the Manager is the returned Action.
type Callback interface {
	Call(ctx *Context) Action
}

type CallbackFunc func(ctx *Context) Action

func (f CallbackFunc) Call(ctx *Context) Action {
	return f(ctx)
}

// Bind captures opaque user data at registration time.
func Bind(fn func(ctx *Context, data interface{}) Action, data interface{}) Callback {
	return CallbackFunc(func(ctx *Context) Action {
		return fn(ctx, data)
	})
}

var (
	contextType = reflect.TypeOf((*Context)(nil))
	engineType  = reflect.TypeOf((*Engine)(nil)).Elem()
	eventType   = reflect.TypeOf(Event(0))
	whenType    = reflect.TypeOf(When(0))
	addrType    = reflect.TypeOf(uint64(0))
	actionType  = reflect.TypeOf(Action(0))
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

var aj = argjoy.NewArgjoy()

func init() {
	aj.Register(contextCodec)
}

// every parameter is fed the *Context and converted here
func contextCodec(arg interface{}, vals []interface{}) error {
	if len(vals) == 0 {
		return argjoy.NoMatch
	}
	ctx, ok := vals[0].(*Context)
	if !ok {
		return argjoy.NoMatch
	}
	switch v := arg.(type) {
	case **Context:
		*v = ctx
	case *Engine:
		*v = ctx.Engine
	case *Event:
		*v = ctx.Event
	case *When:
		*v = ctx.When
	case *uint64:
		*v = ctx.Addr
	default:
		return argjoy.NoMatch
	}
	return nil
}

type funcCallback struct {
	fn      interface{}
	nargs   int
	results int
}

// Func adapts a loosely typed Go function into a Callback.
// Parameters may be any of *Context, Engine, Event, When or uint64 (the event address).
// Results may be empty, Action, or (Action, error); a non-nil error maps to ERROR.
// Signatures are checked here so a bad handler fails at registration instead of at dispatch.
func Func(fn interface{}) (Callback, error) {
	if cb, ok := fn.(Callback); ok {
		return cb, nil
	}
	if f, ok := fn.(func(*Context) Action); ok && f != nil {
		return CallbackFunc(f), nil
	}
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return nil, errors.Wrapf(ErrCallbackType, "got (%T)", fn)
	}
	typ := v.Type()
	if typ.IsVariadic() {
		return nil, errors.Wrapf(ErrCallbackType, "variadic callback %s", typ)
	}
	for i := 0; i < typ.NumIn(); i++ {
		switch typ.In(i) {
		case contextType, engineType, eventType, whenType, addrType:
		default:
			return nil, errors.Wrapf(ErrCallbackType, "unsupported parameter %d (%s) in %s", i, typ.In(i), typ)
		}
	}
	switch typ.NumOut() {
	case 0:
	case 1:
		if typ.Out(0) != actionType {
			return nil, errors.Wrapf(ErrCallbackType, "result must be Action in %s", typ)
		}
	case 2:
		if typ.Out(0) != actionType || typ.Out(1) != errorType {
			return nil, errors.Wrapf(ErrCallbackType, "results must be (Action, error) in %s", typ)
		}
	default:
		return nil, errors.Wrapf(ErrCallbackType, "too many results in %s", typ)
	}
	return &funcCallback{fn: fn, nargs: typ.NumIn(), results: typ.NumOut()}, nil
}

func (f *funcCallback) Call(ctx *Context) Action {
	args := make([]interface{}, f.nargs)
	for i := range args {
		args[i] = ctx
	}
	out, err := aj.Call(f.fn, args...)
	if err != nil {
		// the signature was checked in Func, so this is a programming error
		panic(fmt.Sprintf("calling %T: %s", f.fn, err))
	}
	if f.results == 0 || len(out) == 0 {
		return CONTINUE
	}
	action, _ := out[0].(Action)
	if f.results == 2 && out[1] != nil {
		if err, ok := out[1].(error); ok && err != nil {
			return ERROR
		}
	}
	return action
}
