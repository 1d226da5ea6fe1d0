package cpu

import (
	"fmt"
	"sort"
)

type MemError struct {
	Addr uint64
	Size int
	Enum int
}

func (m *MemError) Error() string {
	reason := "memory error"
	switch m.Enum {
	case MEM_WRITE_UNMAPPED:
		reason = "unmapped write"
	case MEM_READ_UNMAPPED:
		reason = "unmapped read"
	case MEM_FETCH_UNMAPPED:
		reason = "unmapped fetch"
	case MEM_WRITE_PROT:
		reason = "protected write"
	case MEM_READ_PROT:
		reason = "protected read"
	case MEM_FETCH_PROT:
		reason = "protected exec"
	}
	return fmt.Sprintf("%s at %#x(%d)", reason, m.Addr, m.Size)
}

// MemSim is a sorted, non-overlapping list of pages.
type MemSim struct {
	Mem Pages
}

// check reports whether addr:addr+size is fully mapped, and whether every page in it has prot
func (m *MemSim) check(addr, size uint64, prot int) (mapped, allowed bool) {
	i := m.Mem.bsearch(addr)
	if i < 0 {
		return false, false
	}
	allowed = true
	end := addr + size
	for _, pg := range m.Mem[i:] {
		if !pg.Contains(addr) {
			break
		}
		if pg.Prot&prot != prot {
			allowed = false
		}
		addr = pg.Addr + pg.Size
		if addr >= end {
			return true, allowed
		}
	}
	return addr >= end, allowed
}

// Map maps addr:addr+size with prot, replacing any overlapping mappings.
func (m *MemSim) Map(addr, size uint64, prot int, desc string) *Page {
	m.Unmap(addr, size)
	page := &Page{Addr: addr, Size: size, Prot: prot, Data: make([]byte, size), Desc: desc}
	m.Mem = append(m.Mem, page)
	sort.Sort(m.Mem)
	return page
}

// split every page overlapping addr:addr+size, calling fn with the overlapping middle
func (m *MemSim) split(addr, size uint64, fn func(mid *Page) *Page) {
	tmp := make(Pages, 0, len(m.Mem)+2)
	for _, pg := range m.Mem {
		oaddr, osize, ok := pg.Intersect(addr, size)
		if !ok {
			tmp = append(tmp, pg)
			continue
		}
		left, right := pg.cut(oaddr, osize)
		if left != nil {
			tmp = append(tmp, left)
		}
		if mid := fn(pg.slice(oaddr, osize)); mid != nil {
			tmp = append(tmp, mid)
		}
		if right != nil {
			tmp = append(tmp, right)
		}
	}
	m.Mem = tmp
}

func (m *MemSim) Prot(addr, size uint64, prot int) {
	m.split(addr, size, func(mid *Page) *Page {
		mid.Prot = prot
		return mid
	})
}

func (m *MemSim) Unmap(addr, size uint64) {
	m.split(addr, size, func(*Page) *Page { return nil })
}

func (m *MemSim) fault(addr uint64, size, prot int, write, mapped bool) error {
	enum := MEM_READ_PROT
	switch {
	case write && !mapped:
		enum = MEM_WRITE_UNMAPPED
	case write:
		enum = MEM_WRITE_PROT
	case prot&PROT_EXEC != 0 && !mapped:
		enum = MEM_FETCH_UNMAPPED
	case prot&PROT_EXEC != 0:
		enum = MEM_FETCH_PROT
	case !mapped:
		enum = MEM_READ_UNMAPPED
	}
	return &MemError{Addr: addr, Size: size, Enum: enum}
}

// copy between p and memory starting at addr; the range must already be checked
func (m *MemSim) each(addr uint64, p []byte, fn func(pg *Page, off uint64, p []byte) int) {
	i := m.Mem.bsearch(addr)
	if i < 0 {
		return
	}
	for _, pg := range m.Mem[i:] {
		if len(p) == 0 || !pg.Contains(addr) {
			break
		}
		n := fn(pg, addr-pg.Addr, p)
		addr, p = addr+uint64(n), p[n:]
	}
}

// Read fills p from addr, failing if any byte is unmapped or lacks prot.
func (m *MemSim) Read(addr uint64, p []byte, prot int) error {
	if mapped, allowed := m.check(addr, uint64(len(p)), prot); !mapped || !allowed {
		return m.fault(addr, len(p), prot, false, mapped)
	}
	m.each(addr, p, func(pg *Page, off uint64, p []byte) int {
		return copy(p, pg.Data[off:])
	})
	return nil
}

// Write copies p to addr, failing if any byte is unmapped or lacks prot.
func (m *MemSim) Write(addr uint64, p []byte, prot int) error {
	if mapped, allowed := m.check(addr, uint64(len(p)), prot); !mapped || !allowed {
		return m.fault(addr, len(p), prot, true, mapped)
	}
	m.each(addr, p, func(pg *Page, off uint64, p []byte) int {
		return copy(pg.Data[off:], p)
	})
	return nil
}
