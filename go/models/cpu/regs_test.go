package cpu

import (
	"testing"

	"github.com/lunixbochs/hookcorn/go/models/event"
)

func makeRegs(bits uint) ([]int, *Regs) {
	enums := make([]int, 100)
	names := make(map[int]string)
	for i := range enums {
		enums[i] = 100 - i
		names[enums[i]] = ""
	}
	return enums, NewRegs(bits, names)
}

func BenchmarkRegsRead(b *testing.B) {
	enums, regs := makeRegs(64)
	for i := 0; i < b.N; i++ {
		regs.RegRead(enums[i%len(enums)])
	}
}

func BenchmarkRegsWrite(b *testing.B) {
	enums, regs := makeRegs(64)
	for i := 0; i < b.N; i++ {
		regs.RegWrite(enums[i%len(enums)], uint64(i))
	}
}

func TestRegs(t *testing.T) {
	enums, regs := makeRegs(64)

	// save context to check zeroes later
	ctx, err := regs.ContextSave(nil)
	if err != nil {
		t.Fatal(err, "initial ContextSave() failed")
	}
	for i, e := range enums {
		if err := regs.RegWrite(e, uint64(i*2)); err != nil {
			t.Fatal(err, "initial RegWrite() failed")
		}
	}
	for i, e := range enums {
		if val, err := regs.RegRead(e); err != nil {
			t.Fatal(err, "initial RegRead() failed")
		} else if val != uint64(i*2) {
			t.Fatalf("RegRead() returned %d, expecting %d", val, i*2)
		}
	}
	if err := regs.ContextRestore(ctx); err != nil {
		t.Fatal(err, "ContextRestore() failed")
	}
	for _, e := range enums {
		if val, err := regs.RegRead(e); err != nil {
			t.Fatal(err, "RegRead() failed")
		} else if val != 0 {
			t.Fatalf("RegRead() returned %d, expecting 0", val)
		}
	}
	if _, err := regs.RegRead(1000); err == nil {
		t.Error("RegRead() of an invalid register succeeded")
	}
	if err := regs.ContextRestore("bogus"); err == nil {
		t.Error("ContextRestore() accepted a bad context")
	}
	if got := regs.Enums(); len(got) != len(enums) || got[0] != 1 || got[len(got)-1] != 100 {
		t.Errorf("Enums() returned %v", got)
	}
}

func TestRegs8(t *testing.T) {
	enums, regs := makeRegs(8)
	if err := regs.RegWrite(enums[0], 0xffff); err != nil {
		t.Fatal("RegWrite() failed")
	}
	if val, err := regs.RegRead(enums[0]); err != nil {
		t.Fatal("RegRead() failed")
	} else if val != 0xffff&0xff {
		t.Fatalf("RegRead() returned %d, expecting 255", val)
	}
}

func TestRegEvents(t *testing.T) {
	const A, X = 1, 2
	regs := NewRegs(32, map[int]string{A: "A", X: "X"})
	m := event.NewManager()
	regs.Attach(m, engineStub{})

	var seen []string
	record := event.CallbackFunc(func(ctx *event.Context) event.Action {
		seen = append(seen, ctx.String())
		return event.CONTINUE
	})
	// register events have no address, so the filter is ignored
	filter := event.SingleAddr(0x1234)
	m.Add(event.REG_W, event.BEFORE, "", filter, "", record)
	m.Add(event.REG_R, event.AFTER, "", filter, "", record)
	m.Add(event.REG_W, event.AFTER, "halt", event.AnyAddr(), "", event.CallbackFunc(func(*event.Context) event.Action {
		return event.HALT
	}))

	action, err := regs.WriteReg(A, 0x1ffffffff)
	if err != nil {
		t.Fatal(err)
	} else if action != event.HALT {
		t.Errorf("WriteReg() returned %s, expecting HALT", action)
	}
	val, action, err := regs.ReadReg(A)
	if err != nil {
		t.Fatal(err)
	} else if val != 0xffffffff || action != event.CONTINUE {
		t.Errorf("ReadReg() returned (%#x, %s)", val, action)
	}
	if _, _, err := regs.ReadReg(99); err == nil {
		t.Error("ReadReg() of an invalid register succeeded")
	}
	compare := []string{
		"REG_W BEFORE A = 0xffffffff",
		"REG_R AFTER A = 0xffffffff",
	}
	if err := strseq(seen, compare); err != nil {
		t.Fatal(err)
	}
}
