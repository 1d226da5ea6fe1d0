package tracer

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/lunixbochs/hookcorn/go/models/event"
)

func TestTracer(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := event.NewManager()
	tr, err := Attach(m, zap.New(core), Config{
		Exec: true,
		Mem:  true,
		Reg:  true,
		Disas: func(addr uint64) (string, error) {
			return "nop", nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Group(Group)) != 3 {
		t.Fatalf("registered %d trace hooks, expecting 3", len(m.Group(Group)))
	}
	m.Dispatch(event.EXEC, event.BEFORE, &event.Context{Addr: 0x80000000})
	m.Dispatch(event.MEM_R, event.AFTER, &event.Context{Addr: 0xc, Size: 2, Value: 0x800})
	m.Dispatch(event.REG_W, event.AFTER, &event.Context{RegName: "A", Value: 0x800})
	// branches are not traced with this config
	m.Dispatch(event.BRANCH, event.AFTER, &event.Context{})

	entries := logs.AllUntimed()
	if len(entries) != 3 || tr.Count() != 3 {
		t.Fatalf("logged %d entries, count %d", len(entries), tr.Count())
	}
	exec := entries[0].ContextMap()
	if entries[0].Message != "exec" || exec["addr"] != "0x80000000" || exec["ins"] != "nop" {
		t.Errorf("exec entry %v", exec)
	}
	mem := entries[1].ContextMap()
	if mem["event"] != "MEM_R" || mem["addr"] != "0xc" || mem["value"] != "0x800" || mem["size"] != uint64(2) {
		t.Errorf("mem entry %v", mem)
	}
	if reg := entries[2].ContextMap(); reg["reg"] != "A" || reg["event"] != "REG_W" {
		t.Errorf("reg entry %v", reg)
	}

	if err := tr.Disable(); err != nil {
		t.Fatal(err)
	}
	m.Dispatch(event.EXEC, event.BEFORE, &event.Context{})
	if logs.Len() != 3 {
		t.Error("disabled tracer still logging")
	}
	if err := tr.Enable(); err != nil {
		t.Fatal(err)
	}
	m.Dispatch(event.EXEC, event.BEFORE, &event.Context{})
	if logs.Len() != 4 {
		t.Error("re-enabled tracer not logging")
	}
}

func TestTracerDuplicate(t *testing.T) {
	m := event.NewManager()
	if _, err := Attach(m, nil, Config{Exec: true}); err != nil {
		t.Fatal(err)
	}
	if _, err := Attach(m, nil, Config{Exec: true}); err == nil {
		t.Error("second tracer replaced the first")
	}
}
