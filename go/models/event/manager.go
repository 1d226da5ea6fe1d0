package event

import (
	"fmt"
	"github.com/pkg/errors"
	"strings"

	"github.com/lunixbochs/hookcorn/go/models/stats"
)

// Stats counts dispatch activity on a single Manager.
type Stats struct {
	Dispatches uint64
	Matched    uint64
	Callbacks  uint64
}

// Manager owns a set of hooks and dispatches engine events to them.
//
// Hooks are only ever appended and toggled, never removed or reordered, so hooks may
// be added or toggled from inside a callback while a dispatch is scanning.
// A Manager is not safe for concurrent use; the engine calls Dispatch synchronously.
type Manager struct {
	hooks  []*Hook
	byName map[string]*Hook
	groups map[string][]*Hook
	// hooks bucketed by concrete event and phase, in registration order
	buckets [REG_RW + 1][2][]*Hook

	counter int
	stats   Stats
}

func NewManager() *Manager {
	return &Manager{
		byName: make(map[string]*Hook),
		groups: make(map[string][]*Hook),
	}
}

func (m *Manager) genName(ev Event) string {
	for {
		m.counter++
		name := fmt.Sprintf("%d_%s", m.counter, strings.ToLower(ev.String()))
		if _, ok := m.byName[name]; !ok {
			return name
		}
	}
}

// Add registers a new enabled hook and returns its id.
// An empty name is replaced with a generated unique name. An empty group means no group.
// Nothing is modified if validation fails.
func (m *Manager) Add(ev Event, when When, name string, filter AddrFilter, group string, callbacks ...Callback) (int, error) {
	if !ev.Valid() {
		return -1, errors.Wrapf(ErrInvalidEvent, "%d", int(ev))
	}
	if !when.Valid() {
		return -1, errors.Wrapf(ErrInvalidWhen, "%d", int(when))
	}
	for i, cb := range callbacks {
		if cb == nil {
			return -1, errors.Wrapf(ErrCallbackType, "callback number %d is nil", i)
		}
	}
	if name == "" {
		name = m.genName(ev)
	} else if _, ok := m.byName[name]; ok {
		return -1, errors.Wrapf(ErrDuplicateHookName, "%q", name)
	}
	h := &Hook{
		id:        len(m.hooks),
		name:      name,
		event:     ev,
		when:      when,
		filter:    filter,
		group:     group,
		callbacks: append([]Callback(nil), callbacks...),
		enabled:   true,
	}
	m.hooks = append(m.hooks, h)
	m.byName[name] = h
	if group != "" {
		m.groups[group] = append(m.groups[group], h)
	}
	for _, c := range ev.concrete() {
		m.buckets[c][when] = append(m.buckets[c][when], h)
	}
	return h.id, nil
}

// AddFunc is Add for loosely typed handlers, see Func.
func (m *Manager) AddFunc(ev Event, when When, name string, filter AddrFilter, group string, fns ...interface{}) (int, error) {
	callbacks := make([]Callback, len(fns))
	for i, fn := range fns {
		cb, err := Func(fn)
		if err != nil {
			return -1, errors.Wrapf(err, "callback number %d", i)
		}
		callbacks[i] = cb
	}
	return m.Add(ev, when, name, filter, group, callbacks...)
}

func (m *Manager) lookup(name string) (*Hook, error) {
	if h, ok := m.byName[name]; ok {
		return h, nil
	}
	return nil, errors.Wrapf(ErrHookNotFound, "%q", name)
}

func (m *Manager) Enable(name string) error {
	h, err := m.lookup(name)
	if err != nil {
		return err
	}
	h.enabled = true
	return nil
}

func (m *Manager) Disable(name string) error {
	h, err := m.lookup(name)
	if err != nil {
		return err
	}
	h.enabled = false
	return nil
}

func (m *Manager) setGroup(group string, enabled bool) error {
	members, ok := m.groups[group]
	if !ok {
		return errors.Wrapf(ErrGroupNotFound, "%q", group)
	}
	for _, h := range members {
		h.enabled = enabled
	}
	return nil
}

// EnableGroup enables every member of group, including members that were
// disabled individually before the group was disabled.
func (m *Manager) EnableGroup(group string) error {
	return m.setGroup(group, true)
}

func (m *Manager) DisableGroup(group string) error {
	return m.setGroup(group, false)
}

// DisableAll disables every hook. There is no EnableAll.
func (m *Manager) DisableAll() {
	for _, h := range m.hooks {
		h.enabled = false
	}
}

// Dispatch runs every enabled hook matching ev, when and the context address, in
// registration order, and returns the most severe Action observed.
//
// Scanning continues after HALT so every interested hook observes the event, but stops
// as soon as a callback returns ERROR. Callback panics are not recovered here.
func (m *Manager) Dispatch(ev Event, when When, ctx *Context) Action {
	if ctx == nil {
		ctx = &Context{}
	}
	ctx.Event, ctx.When = ev, when
	m.stats.Dispatches++
	global := stats.Get()
	if global != nil {
		global.Dispatches++
	}

	var hooks []*Hook
	if ev.Valid() && !ev.Union() && when.Valid() {
		hooks = m.buckets[ev][when]
	} else {
		hooks = m.hooks
	}
	// hooks appended by a callback land past len(hooks) and are not visited
	action := CONTINUE
	for _, h := range hooks {
		if !h.matches(ev, when, ctx) {
			continue
		}
		m.stats.Matched++
		for _, cb := range h.callbacks {
			m.stats.Callbacks++
			if global != nil {
				global.Callbacks++
			}
			ret := cb.Call(ctx)
			if !ret.Valid() {
				ret = ERROR
			}
			action = action.Max(ret)
			if action == ERROR {
				return ERROR
			}
		}
	}
	return action
}

// Hook returns the hook registered as name, or nil.
func (m *Manager) Hook(name string) *Hook {
	return m.byName[name]
}

// Hooks returns every hook in registration order.
func (m *Manager) Hooks() []*Hook {
	return append([]*Hook(nil), m.hooks...)
}

// Group returns the members of group in registration order.
func (m *Manager) Group(group string) []*Hook {
	return append([]*Hook(nil), m.groups[group]...)
}

func (m *Manager) Len() int {
	return len(m.hooks)
}

func (m *Manager) Stats() Stats {
	return m.stats
}

func (m *Manager) ResetStats() {
	m.stats = Stats{}
}
