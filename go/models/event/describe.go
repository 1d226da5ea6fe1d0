package event

import (
	"bufio"
	"fmt"
	"github.com/mgutz/ansi"
	"github.com/pkg/errors"
	"regexp"
	"strconv"
	"strings"
)

// HookInfo is the describable state of a hook. Callbacks are code and are only counted.
type HookInfo struct {
	Name      string
	Event     Event
	When      When
	Filter    AddrFilter
	Group     string
	Enabled   bool
	Callbacks int
}

func (i HookInfo) String() string {
	return fmt.Sprintf("name=%s event=%s when=%s filter=%s group=%s callbacks=%d enabled=%v",
		strconv.Quote(i.Name), i.Event, i.When, i.Filter, strconv.Quote(i.Group), i.Callbacks, i.Enabled)
}

const quoted = `("(?:[^"\\]|\\.)*")`

var infoRe = regexp.MustCompile(`^name=` + quoted + ` event=(\S+) when=(\S+) filter=(\S+) group=` + quoted + ` callbacks=(\d+) enabled=(true|false)$`)

// ParseHookInfo parses a line produced by HookInfo.String.
func ParseHookInfo(line string) (HookInfo, error) {
	var info HookInfo
	m := infoRe.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return info, errors.Errorf("malformed hook description: %q", line)
	}
	var err error
	if info.Name, err = strconv.Unquote(m[1]); err != nil {
		return info, errors.Wrap(err, "bad hook name")
	}
	if info.Event, err = ParseEvent(m[2]); err != nil {
		return info, err
	}
	if info.When, err = ParseWhen(m[3]); err != nil {
		return info, err
	}
	if info.Filter, err = ParseAddrFilter(m[4]); err != nil {
		return info, err
	}
	if info.Group, err = strconv.Unquote(m[5]); err != nil {
		return info, errors.Wrap(err, "bad hook group")
	}
	if info.Callbacks, err = strconv.Atoi(m[6]); err != nil {
		return info, errors.Wrap(err, "bad callback count")
	}
	info.Enabled = m[7] == "true"
	return info, nil
}

const describeHeader = "EventManager"

var (
	colorOn   = ansi.ColorFunc("green")
	colorOff  = ansi.ColorFunc("red")
	colorHead = ansi.ColorFunc("default+b")
)

// Describe returns a human readable description of every hook.
// The uncolored form can be fed back to ParseDescription.
func (m *Manager) Describe(color bool) string {
	var b strings.Builder
	head := fmt.Sprintf("%s: %d hooks", describeHeader, len(m.hooks))
	if color {
		head = colorHead(head)
	}
	b.WriteString(head + "\n")
	for _, h := range m.hooks {
		line := h.String()
		if color {
			if h.enabled {
				line = colorOn(line)
			} else {
				line = colorOff(line)
			}
		}
		b.WriteString("  " + line + "\n")
	}
	return b.String()
}

func (m *Manager) String() string {
	return m.Describe(false)
}

// Info returns a snapshot of every hook in registration order.
func (m *Manager) Info() []HookInfo {
	infos := make([]HookInfo, len(m.hooks))
	for i, h := range m.hooks {
		infos[i] = h.Info()
	}
	return infos
}

// ParseDescription parses the output of Describe(false).
func ParseDescription(text string) ([]HookInfo, error) {
	var infos []HookInfo
	s := bufio.NewScanner(strings.NewReader(text))
	for lineno := 1; s.Scan(); lineno++ {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, describeHeader) {
			continue
		}
		info, err := ParseHookInfo(line)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", lineno)
		}
		infos = append(infos, info)
	}
	return infos, errors.Wrap(s.Err(), "failed to read description")
}

// AddInfo registers a hook equivalent to info, including its enabled state.
func (m *Manager) AddInfo(info HookInfo, callbacks ...Callback) (int, error) {
	id, err := m.Add(info.Event, info.When, info.Name, info.Filter, info.Group, callbacks...)
	if err != nil {
		return id, err
	}
	if !info.Enabled {
		m.hooks[id].enabled = false
	}
	return id, nil
}
