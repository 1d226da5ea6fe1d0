package lua

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lunixbochs/luaish"

	"github.com/lunixbochs/hookcorn/go/models/event"
)

type stubEngine struct {
	regs map[int]uint64
	mem  map[uint64]byte
}

func newStub() *stubEngine {
	return &stubEngine{regs: make(map[int]uint64), mem: make(map[uint64]byte)}
}

func (s *stubEngine) MemRead(addr, size uint64) ([]byte, error) {
	p := make([]byte, size)
	for i := range p {
		p[i] = s.mem[addr+uint64(i)]
	}
	return p, nil
}

func (s *stubEngine) MemWrite(addr uint64, p []byte) error {
	for i, c := range p {
		s.mem[addr+uint64(i)] = c
	}
	return nil
}

func (s *stubEngine) RegRead(reg int) (uint64, error) { return s.regs[reg], nil }

func (s *stubEngine) RegWrite(reg int, val uint64) error {
	s.regs[reg] = val
	return nil
}

func newBinding(t *testing.T) (*Binding, *event.Manager) {
	t.Helper()
	L := lua.NewState()
	t.Cleanup(L.Close)
	m := event.NewManager()
	b, err := Bind(L, m)
	if err != nil {
		t.Fatal(err)
	}
	b.SetOutput(&bytes.Buffer{})
	return b, m
}

func TestHookAdd(t *testing.T) {
	b, m := newBinding(t)
	err := b.DoString(`
hits = 0
id = hooks.add(EVENT.EXEC, WHEN.BEFORE, {
    name = "bp1",
    filter = 0x4000,
    callbacks = {func(ev)
        hits = hits + 1
        last_addr = ev.addr
        last_event = ev.event
        return ACTION.HALT
    end},
})
`)
	if err != nil {
		t.Fatal(err)
	}
	if id := b.GetGlobal("id"); id != lua.LInt(0) {
		t.Errorf("hooks.add returned %v", id)
	}
	if action := m.Dispatch(event.EXEC, event.BEFORE, &event.Context{Addr: 0x4000}); action != event.HALT {
		t.Errorf("breakpoint returned %s", action)
	}
	if action := m.Dispatch(event.EXEC, event.BEFORE, &event.Context{Addr: 0x4004}); action != event.CONTINUE {
		t.Errorf("next instruction returned %s", action)
	}
	if hits := b.GetGlobal("hits"); hits != lua.LInt(1) {
		t.Errorf("hits = %v", hits)
	}
	if addr := b.GetGlobal("last_addr"); addr != lua.LInt(0x4000) {
		t.Errorf("callback saw addr %v", addr)
	}
	if ev := b.GetGlobal("last_event"); ev != lua.LString("EXEC") {
		t.Errorf("callback saw event %v", ev)
	}
}

func TestHookOptions(t *testing.T) {
	b, m := newBinding(t)
	err := b.DoString(`
hooks.add("MEM_RW", "AFTER", {filter = {0x1000, 0x2000}, group = "g"})
hooks.add(EVENT.MEM_W, WHEN.BEFORE, {name = "ranged", filter = {min = 0x10, max = 0x20}})
hooks.add(EVENT.REG_W, WHEN.AFTER, {filter = "0x10-0x20"})
hooks.add(EVENT.PATH, WHEN.BEFORE)
hooks.disable("ranged")
hooks.disable_group("g")
desc = hooks.describe()
`)
	if err != nil {
		t.Fatal(err)
	}
	if m.Len() != 4 {
		t.Fatalf("registered %d hooks", m.Len())
	}
	hooks := m.Hooks()
	if f := hooks[0].Filter(); f.Min() != 0x1000 || f.Max() != 0x2000 || hooks[0].Group() != "g" {
		t.Errorf("hook 0: %s", hooks[0])
	}
	if hooks[0].Enabled() || m.Hook("ranged").Enabled() || !hooks[2].Enabled() {
		t.Error("enable state not applied")
	}
	if hooks[1].Filter().Min() != 0x10 || hooks[1].Filter().Max() != 0x20 {
		t.Errorf("hook 1: %s", hooks[1])
	}
	if desc := b.GetGlobal("desc"); desc != lua.LString(m.Describe(false)) {
		t.Errorf("describe returned %v", desc)
	}
	if err := b.DoString(`hooks.enable_group("g") hooks.disable_all()`); err != nil {
		t.Fatal(err)
	}
	for _, h := range m.Hooks() {
		if h.Enabled() {
			t.Errorf("%s enabled after disable_all", h.Name())
		}
	}
}

func TestHookErrors(t *testing.T) {
	b, m := newBinding(t)
	bad := map[string]string{
		"callback":   `hooks.add(EVENT.EXEC, WHEN.BEFORE, {callbacks = {func() end, 42}})`,
		"event":      `hooks.add("SYSCALL", WHEN.BEFORE)`,
		"when":       `hooks.add(EVENT.EXEC, 9)`,
		"filter":     `hooks.add(EVENT.EXEC, WHEN.BEFORE, {filter = {0x20, 0x10}})`,
		"missing":    `hooks.enable("nope")`,
		"group":      `hooks.disable_group("nope")`,
		"duplicate":  `hooks.add(EVENT.EXEC, WHEN.BEFORE, {name = "x"}) hooks.add(EVENT.EXEC, WHEN.AFTER, {name = "x"})`,
		"engine use": `engine.reg_read(0)`,
	}
	for what, code := range bad {
		if err := b.DoString(code); err == nil {
			t.Errorf("%s: no error from %s", what, code)
		}
	}
	if err := b.DoString(`hooks.add(EVENT.EXEC, WHEN.BEFORE, {callbacks = {1}})`); err == nil || !strings.Contains(err.Error(), "callback") {
		t.Errorf("non-function callback error: %v", err)
	}
	// only the first "x" hook made it in
	if m.Len() != 1 {
		t.Errorf("failed adds registered %d hooks", m.Len())
	}
}

func TestCallbackEngine(t *testing.T) {
	b, m := newBinding(t)
	err := b.DoString(`
hooks.add(EVENT.REG_W, WHEN.AFTER, {callbacks = {func(ev, eng)
    engine.reg_write(1, ev.value + 1)
    engine.mem_write(0x10, "hi")
    seen = engine.mem_read(0x10, 2)
    have_handle = eng != nil
end}})
`)
	if err != nil {
		t.Fatal(err)
	}
	stub := newStub()
	m.Dispatch(event.REG_W, event.AFTER, &event.Context{Reg: 0, RegName: "A", Value: 0x41, Engine: stub})
	if stub.regs[1] != 0x42 {
		t.Errorf("reg 1 = %#x", stub.regs[1])
	}
	if seen := b.GetGlobal("seen"); seen != lua.LString("hi") {
		t.Errorf("mem_read returned %v", seen)
	}
	if b.GetGlobal("have_handle") != lua.LTrue {
		t.Error("callback did not receive an engine handle")
	}
}

func TestCallbackReturns(t *testing.T) {
	b, m := newBinding(t)
	err := b.DoString(`
hooks.add(EVENT.EXEC, WHEN.BEFORE, {filter = 1, callbacks = {func() return "halt" end}})
hooks.add(EVENT.EXEC, WHEN.BEFORE, {filter = 2, callbacks = {func() return ACTION.ERROR end}})
hooks.add(EVENT.EXEC, WHEN.BEFORE, {filter = 3, callbacks = {func() return "bogus" end}})
hooks.add(EVENT.EXEC, WHEN.BEFORE, {filter = 4, callbacks = {func() error("boom") end}})
`)
	if err != nil {
		t.Fatal(err)
	}
	expect := map[uint64]event.Action{0: event.CONTINUE, 1: event.HALT, 2: event.ERROR, 3: event.ERROR}
	for addr, action := range expect {
		if got := m.Dispatch(event.EXEC, event.BEFORE, &event.Context{Addr: addr}); got != action {
			t.Errorf("addr %d returned %s, expecting %s", addr, got, action)
		}
	}
	defer func() {
		if r := recover(); r == nil {
			t.Error("lua error did not propagate")
		}
	}()
	m.Dispatch(event.EXEC, event.BEFORE, &event.Context{Addr: 4})
}

func TestSugar(t *testing.T) {
	b, m := newBinding(t)
	out := &bytes.Buffer{}
	b.SetOutput(out)
	if err := b.DoString(`bp(0x80000008, "entry") print(hex(255))`); err != nil {
		t.Fatal(err)
	}
	if h := m.Hook("entry"); h == nil || h.Group() != "breakpoints" || !h.Filter().Match(0x80000008) {
		t.Fatalf("bp() hook: %v", h)
	}
	if action := m.Dispatch(event.EXEC, event.BEFORE, &event.Context{Addr: 0x80000008}); action != event.HALT {
		t.Errorf("bp() hook returned %s", action)
	}
	if strings.TrimSpace(out.String()) != "0xff" {
		t.Errorf("print wrote %q", out.String())
	}
}

func TestLoadScripts(t *testing.T) {
	b, m := newBinding(t)
	dir := t.TempDir()
	good := filepath.Join(dir, "good.lua")
	os.WriteFile(good, []byte(`hooks.add(EVENT.EXEC, WHEN.BEFORE, {name = "from_file"})`), 0644)
	broken := filepath.Join(dir, "broken.lua")
	os.WriteFile(broken, []byte(`this is not lua`), 0644)

	if err := b.LoadScripts([]string{good}); err != nil {
		t.Fatal(err)
	}
	if m.Hook("from_file") == nil {
		t.Error("script hook missing")
	}
	if err := b.LoadScripts([]string{broken}); err == nil {
		t.Error("broken script loaded")
	}
	if err := b.LoadScripts([]string{filepath.Join(dir, "missing.lua")}); err == nil {
		t.Error("missing script loaded")
	}
}

func TestPrintTables(t *testing.T) {
	b, _ := newBinding(t)
	out := &bytes.Buffer{}
	b.SetOutput(out)
	if err := b.DoString("local t = {1}\nprint({a = t, b = t})"); err != nil {
		t.Fatal(err)
	}
	if s := out.String(); strings.Contains(s, "skipped") || strings.Count(s, "{1}") != 2 {
		t.Errorf("shared table printed as %q", s)
	}
	out.Reset()
	if err := b.DoString("local c = {}\nc.self = c\nprint(c)"); err != nil {
		t.Fatal(err)
	}
	if s := strings.TrimSpace(out.String()); s != `{self = {"<skipped recursion>"}}` {
		t.Errorf("cycle printed as %q", s)
	}
}
