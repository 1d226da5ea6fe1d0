package event

import (
	"github.com/pkg/errors"
	"strings"
)

// Event is a class of observable occurrence during emulation.
type Event int

const (
	EXEC Event = iota
	BRANCH
	MEM_R
	MEM_W
	MEM_RW
	PATH
	REG_R
	REG_W
	REG_RW
)

var eventNames = []string{"EXEC", "BRANCH", "MEM_R", "MEM_W", "MEM_RW", "PATH", "REG_R", "REG_W", "REG_RW"}

func (e Event) Valid() bool {
	return e >= EXEC && e <= REG_RW
}

func (e Event) String() string {
	if !e.Valid() {
		return "UNKNOWN"
	}
	return eventNames[e]
}

// Union reports whether e is one of the read/write convenience unions.
func (e Event) Union() bool {
	return e == MEM_RW || e == REG_RW
}

// Matches reports whether a hook registered on e is interested in a concrete event.
func (e Event) Matches(concrete Event) bool {
	switch e {
	case MEM_RW:
		return concrete == MEM_R || concrete == MEM_W || concrete == MEM_RW
	case REG_RW:
		return concrete == REG_R || concrete == REG_W || concrete == REG_RW
	}
	return e == concrete
}

// concrete returns the non-union events covered by e
func (e Event) concrete() []Event {
	switch e {
	case MEM_RW:
		return []Event{MEM_R, MEM_W}
	case REG_RW:
		return []Event{REG_R, REG_W}
	}
	return []Event{e}
}

// HasAddr reports whether address filters apply to this event.
// Only instruction execution and memory accesses carry a natural address.
func (e Event) HasAddr() bool {
	switch e {
	case EXEC, MEM_R, MEM_W, MEM_RW:
		return true
	}
	return false
}

func ParseEvent(s string) (Event, error) {
	for i, name := range eventNames {
		if strings.EqualFold(s, name) {
			return Event(i), nil
		}
	}
	return 0, errors.Wrapf(ErrInvalidEvent, "%q", s)
}

// When is the phase of a hook relative to the underlying occurrence.
type When int

const (
	BEFORE When = iota
	AFTER
)

func (w When) Valid() bool {
	return w == BEFORE || w == AFTER
}

func (w When) String() string {
	switch w {
	case BEFORE:
		return "BEFORE"
	case AFTER:
		return "AFTER"
	}
	return "UNKNOWN"
}

func ParseWhen(s string) (When, error) {
	switch strings.ToUpper(s) {
	case "BEFORE":
		return BEFORE, nil
	case "AFTER":
		return AFTER, nil
	}
	return 0, errors.Wrapf(ErrInvalidWhen, "%q", s)
}

// Action is the control signal a callback returns to the execution engine.
// Values are ordered by severity.
type Action int

const (
	CONTINUE Action = iota
	HALT
	ERROR
)

func (a Action) String() string {
	switch a {
	case CONTINUE:
		return "CONTINUE"
	case HALT:
		return "HALT"
	case ERROR:
		return "ERROR"
	}
	return "UNKNOWN"
}

func (a Action) Valid() bool {
	return a >= CONTINUE && a <= ERROR
}

// Max returns the more severe of a and b.
func (a Action) Max(b Action) Action {
	if b > a {
		return b
	}
	return a
}

func ParseAction(s string) (Action, error) {
	switch strings.ToUpper(s) {
	case "CONTINUE":
		return CONTINUE, nil
	case "HALT":
		return HALT, nil
	case "ERROR":
		return ERROR, nil
	}
	return 0, errors.Errorf("invalid action %q", s)
}
