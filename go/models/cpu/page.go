package cpu

import (
	"fmt"
	"strings"
)

// Page is one contiguous mapping.
type Page struct {
	Addr uint64
	Size uint64
	Prot int
	Data []byte

	Desc string
}

func protString(prot int) string {
	s := []byte("---")
	if prot&PROT_READ != 0 {
		s[0] = 'r'
	}
	if prot&PROT_WRITE != 0 {
		s[1] = 'w'
	}
	if prot&PROT_EXEC != 0 {
		s[2] = 'x'
	}
	return string(s)
}

func (p *Page) String() string {
	desc := fmt.Sprintf("%#x-%#x %s", p.Addr, p.Addr+p.Size, protString(p.Prot))
	if p.Desc != "" {
		desc += fmt.Sprintf(" [%s]", p.Desc)
	}
	return desc
}

func (p *Page) Contains(addr uint64) bool {
	return addr >= p.Addr && addr < p.Addr+p.Size
}

// Intersect returns the overlap of p with addr:addr+size.
func (p *Page) Intersect(addr, size uint64) (uint64, uint64, bool) {
	start, end := p.Addr, p.Addr+p.Size
	if addr > start {
		start = addr
	}
	if e := addr + size; e < end {
		end = e
	}
	if end <= start {
		return 0, 0, false
	}
	return start, end - start, true
}

func (p *Page) slice(addr, size uint64) *Page {
	o := addr - p.Addr
	return &Page{Addr: addr, Size: size, Prot: p.Prot, Data: p.Data[o : o+size], Desc: p.Desc}
}

// cut removes addr:addr+size from p, returning what remains on either side
func (p *Page) cut(addr, size uint64) (left, right *Page) {
	if addr > p.Addr {
		left = p.slice(p.Addr, addr-p.Addr)
	}
	if end := addr + size; end < p.Addr+p.Size {
		right = p.slice(end, p.Addr+p.Size-end)
	}
	return left, right
}

type Pages []*Page

func (p Pages) Len() int           { return len(p) }
func (p Pages) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }
func (p Pages) Less(i, j int) bool { return p[i].Addr < p[j].Addr }

func (p Pages) String() string {
	s := make([]string, len(p))
	for i, v := range p {
		s[i] = v.String()
	}
	return strings.Join(s, "\n")
}

// index of the page containing addr, or -1
func (p Pages) bsearch(addr uint64) int {
	l, r := 0, len(p)-1
	for l <= r {
		mid := (l + r) / 2
		e := p[mid]
		if addr < e.Addr {
			r = mid - 1
		} else if addr >= e.Addr+e.Size {
			l = mid + 1
		} else {
			return mid
		}
	}
	return -1
}

func (p Pages) Find(addr uint64) *Page {
	if i := p.bsearch(addr); i >= 0 {
		return p[i]
	}
	return nil
}
