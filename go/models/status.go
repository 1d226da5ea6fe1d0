package models

import (
	"fmt"
	"strings"

	"github.com/mgutz/ansi"
)

// RegSource is the register file a StatusDiff watches.
type RegSource interface {
	Enums() []int
	Name(enum int) string
	RegRead(enum int) (uint64, error)
}

// StatusDiff prints registers, marking the ones changed since the last call.
type StatusDiff struct {
	Regs RegSource
	Bits int

	oldRegs map[int]uint64
}

var chSame = ansi.ColorCode("default:default")
var chNew = ansi.ColorCode("default+bu:default")

type ChangeMask struct {
	Old, New string
	Changed  bool
}

type Change struct {
	Old, New uint64
	Enum     int
	Name     string
}

func (c *Change) Changed() bool {
	return c.Old != c.New
}

// Mask splits the hex digits of New into runs that match or differ from Old.
func (c *Change) Mask(digits int) []ChangeMask {
	hexFmt := fmt.Sprintf("%%0%dx", digits)
	s1, s2 := fmt.Sprintf(hexFmt, c.New), fmt.Sprintf(hexFmt, c.Old)
	var masks []ChangeMask
	pos := 0
	for i := 1; i <= len(s1); i++ {
		if i == len(s1) || (s1[i] == s2[i]) != (s1[pos] == s2[pos]) {
			masks = append(masks, ChangeMask{New: s1[pos:i], Old: s2[pos:i], Changed: s1[pos] != s2[pos]})
			pos = i
		}
	}
	return masks
}

func (c *Change) String(digits int, color bool) string {
	hexFmt := fmt.Sprintf("%%0%dx", digits)
	if !c.Changed() {
		return fmt.Sprintf("%s=0x"+hexFmt, c.Name, c.New)
	}
	if !color {
		return fmt.Sprintf("+%s=0x"+hexFmt, c.Name, c.New)
	}
	out := []string{chNew + c.Name + chSame + "=0x"}
	for _, mask := range c.Mask(digits) {
		col := chSame
		if mask.Changed {
			col = chNew
		}
		out = append(out, col+mask.New)
	}
	out = append(out, ansi.Reset)
	return strings.Join(out, "")
}

type Changes struct {
	Digits  int
	Changes []*Change
}

func (cs *Changes) String(color bool) string {
	out := make([]string, len(cs.Changes))
	for i, c := range cs.Changes {
		out[i] = c.String(cs.Digits, color)
	}
	return strings.Join(out, " ")
}

func (cs *Changes) Count() int {
	ret := 0
	for _, c := range cs.Changes {
		if c.Changed() {
			ret += 1
		}
	}
	return ret
}

func (cs *Changes) Find(enum int) *Change {
	for _, c := range cs.Changes {
		if c.Enum == enum {
			return c
		}
	}
	return nil
}

// Changes snapshots the registers. With onlyChanged, unchanged registers are omitted.
func (s *StatusDiff) Changes(onlyChanged bool) *Changes {
	enums := s.Regs.Enums()
	cs := make([]*Change, 0, len(enums))
	vals := make(map[int]uint64, len(enums))
	for _, enum := range enums {
		val, _ := s.Regs.RegRead(enum)
		vals[enum] = val
		change := &Change{Old: s.oldRegs[enum], New: val, Enum: enum, Name: s.Regs.Name(enum)}
		if !onlyChanged || change.Changed() {
			cs = append(cs, change)
		}
	}
	s.oldRegs = vals
	return &Changes{Digits: s.Bits / 4, Changes: cs}
}
