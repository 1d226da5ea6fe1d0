package event

import (
	"fmt"
	"github.com/pkg/errors"
	"regexp"
	"strconv"
	"strings"
)

// AddrFilter restricts a hook to an inclusive address range.
// The zero value matches every address; ranges come from the constructors.
type AddrFilter struct {
	min, max uint64
	set      bool
}

func AnyAddr() AddrFilter {
	return AddrFilter{}
}

// NewAddrFilter returns a filter matching min <= addr <= max.
// The full 64-bit range collapses to the unrestricted filter.
func NewAddrFilter(min, max uint64) (AddrFilter, error) {
	if min > max {
		return AddrFilter{}, errors.Wrapf(ErrInvalidFilter, "min %#x > max %#x", min, max)
	}
	if min == 0 && max == ^uint64(0) {
		return AddrFilter{}, nil
	}
	return AddrFilter{min: min, max: max, set: true}, nil
}

func SingleAddr(addr uint64) AddrFilter {
	return AddrFilter{min: addr, max: addr, set: true}
}

// Min is the lowest matched address, 0 for unrestricted filters.
func (f AddrFilter) Min() uint64 {
	return f.min
}

// Max is the highest matched address.
func (f AddrFilter) Max() uint64 {
	if !f.set {
		return ^uint64(0)
	}
	return f.max
}

// Any reports whether f is unrestricted.
func (f AddrFilter) Any() bool {
	return !f.set
}

func (f AddrFilter) Match(addr uint64) bool {
	return !f.set || addr >= f.min && addr <= f.max
}

func (f AddrFilter) String() string {
	if !f.set {
		return "*"
	}
	return fmt.Sprintf("[%#x,%#x]", f.min, f.max)
}

var filterRe = regexp.MustCompile(`^\[?\s*(0x[0-9a-fA-F]+|\d+)\s*(?:[-,]\s*(0x[0-9a-fA-F]+|\d+)\s*)?\]?$`)

// ParseAddrFilter accepts "*", "ADDR", "MIN-MAX" and "[MIN,MAX]".
func ParseAddrFilter(s string) (AddrFilter, error) {
	s = strings.TrimSpace(s)
	if s == "*" || s == "" {
		return AnyAddr(), nil
	}
	m := filterRe.FindStringSubmatch(s)
	if m == nil {
		return AddrFilter{}, errors.Wrapf(ErrInvalidFilter, "parse %q", s)
	}
	min, err := strconv.ParseUint(m[1], 0, 64)
	if err != nil {
		return AddrFilter{}, errors.Wrap(err, "failed to parse filter start")
	}
	max := min
	if m[2] != "" {
		if max, err = strconv.ParseUint(m[2], 0, 64); err != nil {
			return AddrFilter{}, errors.Wrap(err, "failed to parse filter end")
		}
	}
	return NewAddrFilter(min, max)
}
