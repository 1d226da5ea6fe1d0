package cpu

import (
	"bytes"
	"testing"
)

// this shouldn't repeat much at width
func pattern(len int) []byte {
	p := make([]byte, len)
	width := 8
	for i := range p {
		cycle := i / width
		p[i] = byte(cycle*width*i + i)
	}
	return p
}

// table of overlap tests for an unmapped 0x1100-0x1200 hole
// {start, end, should_error}
var overlapTable = [][]uint64{
	{0x1000, 0x1100, 0},
	{0x1000, 0x1050, 0},
	{0x1000, 0x1200, 1},
	{0x1000, 0x1250, 1},
	{0x1100, 0x1150, 1},
	{0x1100, 0x1200, 1},
	{0x1100, 0x1250, 1},
	{0x1150, 0x1200, 1},
	{0x1150, 0x1250, 1},
	{0x1200, 0x1250, 0},
}

func BenchmarkMemSimRead(b *testing.B) {
	m := &MemSim{}
	m.Map(0, 0x100000, 0, "")
	p := make([]byte, 4)
	for i := 0; i < b.N; i++ {
		m.Read(uint64(i*4)&0xfffff, p, 0)
	}
}

func BenchmarkMemSimWrite(b *testing.B) {
	m := &MemSim{}
	m.Map(0, 0x100000, 0, "")
	p := make([]byte, 4)
	for i := 0; i < b.N; i++ {
		m.Write(uint64(i*4)&0xfffff, p, 0)
	}
}

func TestMemSim(t *testing.T) {
	m := &MemSim{}
	m.Map(0x1000, 0x1000, 0, "")

	b := pattern(0x1000)
	c := make([]byte, len(b))
	if err := m.Write(0x1000, b, 0); err != nil {
		t.Fatal(err, "write failed")
	} else if err := m.Read(0x1000, c, 0); err != nil {
		t.Fatal(err, "read failed")
	} else if !bytes.Equal(b, c) {
		t.Fatal("read/write inconsistent")
	}

	for _, region := range overlapTable {
		p := make([]byte, region[1]-region[0])
		if err := m.Read(region[0], p, 0); err != nil {
			t.Errorf("read_mapped(%#x, %#x) error: %v", region[0], region[1], err)
		}
	}

	// punch a hole at 0x1100-0x1200
	m.Unmap(0x1100, 0x100)
	if len(m.Mem) != 2 {
		t.Fatalf("expected 2 pages after unmap, got:\n%s", m.Mem)
	}
	if err := m.Read(0x1000, c[:0x100], 0); err != nil {
		t.Error("failed to read left-adjacent memory after unmap")
	} else if !bytes.Equal(b[:0x100], c[:0x100]) {
		t.Error("left-adjacent memory corruption after unmap")
	}
	if err := m.Read(0x1200, c[:0x100], 0); err != nil {
		t.Error("failed to read right-adjacent memory after unmap")
	} else if !bytes.Equal(b[0x200:0x300], c[:0x100]) {
		t.Error("right-adjacent memory corruption after unmap")
	}
	for _, region := range overlapTable {
		p := make([]byte, region[1]-region[0])
		if err := m.Read(region[0], p, 0); err == nil && region[2] == 1 || err != nil && region[2] == 0 {
			t.Errorf("read_unmapped(%#x, %#x) bad error value: %v", region[0], region[1], err)
		}
		if err := m.Write(region[0], p, 0); err == nil && region[2] == 1 || err != nil && region[2] == 0 {
			t.Errorf("write_unmapped(%#x, %#x) bad error value: %v", region[0], region[1], err)
		}
	}
}

func TestMemSimAdjacent(t *testing.T) {
	m := &MemSim{}
	m.Map(0x3000, 0x1000, 0, "")
	m.Map(0x1000, 0x1000, 0, "")
	m.Map(0x2000, 0x1000, 0, "")

	b := pattern(0x3000)
	c := make([]byte, len(b))
	if err := m.Write(0x1000, b, 0); err != nil {
		t.Fatal(err, "while writing multiple adjacent maps")
	} else if err := m.Read(0x1000, c, 0); err != nil {
		t.Fatal(err, "while reading multiple adjacent maps")
	} else if !bytes.Equal(b, c) {
		t.Fatal("memory corruption when reading multiple adjacent maps")
	}
}

func TestMemSimRemap(t *testing.T) {
	m := &MemSim{}
	m.Map(0x1000, 0x3000, 0, "")
	m.Write(0x1000, pattern(0x3000), 0)
	// remapping the middle discards its contents
	m.Map(0x2000, 0x1000, PROT_READ, "mid")
	if len(m.Mem) != 3 {
		t.Fatalf("expected 3 pages after remap, got:\n%s", m.Mem)
	}
	c := make([]byte, 0x1000)
	if err := m.Read(0x2000, c, PROT_READ); err != nil {
		t.Fatal(err)
	} else if !bytes.Equal(c, make([]byte, 0x1000)) {
		t.Error("remapped region was not zeroed")
	}
	if pg := m.Mem.Find(0x2800); pg == nil || pg.Desc != "mid" {
		t.Errorf("Find(0x2800) returned %v", pg)
	}
}

func TestMemSimProt(t *testing.T) {
	m := &MemSim{}
	m.Map(0x1000, 0x3000, PROT_READ|PROT_WRITE, "")
	m.Prot(0x2000, 0x1000, PROT_READ)
	if len(m.Mem) != 3 {
		t.Fatalf("expected 3 pages after prot, got:\n%s", m.Mem)
	}
	p := make([]byte, 4)
	if err := m.Write(0x1ffe, p, PROT_WRITE); err == nil {
		t.Error("write across read-only boundary succeeded")
	} else if merr, ok := err.(*MemError); !ok || merr.Enum != MEM_WRITE_PROT {
		t.Errorf("unexpected error: %v", err)
	}
	if err := m.Read(0x1ffe, p, PROT_READ); err != nil {
		t.Errorf("read across prot boundary failed: %v", err)
	}
	if err := m.Read(0x2000, p, PROT_EXEC); err == nil {
		t.Error("fetch from non-exec page succeeded")
	} else if merr, ok := err.(*MemError); !ok || merr.Enum != MEM_FETCH_PROT {
		t.Errorf("unexpected error: %v", err)
	}
	if err := m.Read(0x5000, p, PROT_EXEC); err == nil {
		t.Error("fetch from unmapped page succeeded")
	} else if merr, ok := err.(*MemError); !ok || merr.Enum != MEM_FETCH_UNMAPPED {
		t.Errorf("unexpected error: %v", err)
	}
}
