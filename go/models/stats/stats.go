// Package stats holds process-wide execution counters.
//
// Counting is off until Init is called. The counters are not synchronized:
// like the engine, they are meant to be driven from a single goroutine.
package stats

import (
	"fmt"
	"github.com/mgutz/ansi"
	"strings"
)

type Stats struct {
	ExecutedInsts uint64
	Dispatches    uint64
	Callbacks     uint64
	MemReads      uint64
	MemWrites     uint64
	RegReads      uint64
	RegWrites     uint64
}

var current *Stats

// Init installs a fresh set of counters and returns it.
func Init() *Stats {
	current = &Stats{}
	return current
}

// Get returns the installed counters, or nil if counting is disabled.
func Get() *Stats {
	return current
}

// Reset zeroes the installed counters, if any.
func Reset() {
	if current != nil {
		*current = Stats{}
	}
}

// Disable removes the installed counters.
func Disable() {
	current = nil
}

type field struct {
	name string
	val  uint64
}

func (s *Stats) fields() []field {
	return []field{
		{"executed instructions", s.ExecutedInsts},
		{"dispatches", s.Dispatches},
		{"callbacks", s.Callbacks},
		{"memory reads", s.MemReads},
		{"memory writes", s.MemWrites},
		{"register reads", s.RegReads},
		{"register writes", s.RegWrites},
	}
}

func (s *Stats) Format(color bool) string {
	var lines []string
	for _, f := range s.fields() {
		name := f.name
		if color {
			name = ansi.Color(name, "cyan")
		}
		lines = append(lines, fmt.Sprintf("%s: %d", name, f.val))
	}
	return strings.Join(lines, "\n")
}

func (s *Stats) String() string {
	return s.Format(false)
}
