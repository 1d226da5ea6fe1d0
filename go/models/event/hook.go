package event

// Hook binds an Event, When and AddrFilter to an ordered list of callbacks.
// Hooks are created by Manager.Add and are never removed, only enabled or disabled.
type Hook struct {
	id        int
	name      string
	event     Event
	when      When
	filter    AddrFilter
	group     string
	callbacks []Callback
	enabled   bool
}

func (h *Hook) ID() int            { return h.id }
func (h *Hook) Name() string       { return h.name }
func (h *Hook) Event() Event       { return h.event }
func (h *Hook) When() When         { return h.when }
func (h *Hook) Filter() AddrFilter { return h.filter }
func (h *Hook) Group() string      { return h.group }
func (h *Hook) Enabled() bool      { return h.enabled }
func (h *Hook) NumCallbacks() int  { return len(h.callbacks) }

// matches reports whether h is interested in a concrete event instance
func (h *Hook) matches(ev Event, when When, ctx *Context) bool {
	if !h.enabled || h.when != when || !h.event.Matches(ev) {
		return false
	}
	if ev.HasAddr() && !h.filter.Match(ctx.Addr) {
		return false
	}
	return true
}

// Info returns a describable snapshot of h.
func (h *Hook) Info() HookInfo {
	return HookInfo{
		Name:      h.name,
		Event:     h.event,
		When:      h.when,
		Filter:    h.filter,
		Group:     h.group,
		Enabled:   h.enabled,
		Callbacks: len(h.callbacks),
	}
}

func (h *Hook) String() string {
	return h.Info().String()
}
