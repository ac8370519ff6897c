package client

import "github.com/charmbracelet/lipgloss"

// styler renders the handful of human-facing lines the driver prints to
// standard output (§4.G). With color disabled it reproduces the literal
// strings the specification mandates byte-for-byte; with color enabled (the
// teacher's own --color convention, carried over from its lipgloss-based
// presentation layer) it dresses the same text up for a terminal without
// changing a single byte of the underlying content.
type styler struct {
	color bool

	self lipgloss.Style
	peer lipgloss.Style
	sys  lipgloss.Style
}

func newStyler(color bool) *styler {
	return &styler{
		color: color,
		self:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
		peer:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("75")),
		sys:   lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Italic(true),
	}
}

// renderMsg renders a MSG:name[:payload] as the client displays it: "name:
// payload" when a payload is present, "name:" when it is not (§4.G). name is
// colorized as self or peer only when color is on; the plain-text shape is
// unchanged either way.
func (s *styler) renderMsg(name, payload string, isSelf bool) string {
	label := name
	if s.color {
		if isSelf {
			label = s.self.Render(name)
		} else {
			label = s.peer.Render(name)
		}
	}
	if payload == "" {
		return label + ":"
	}
	return label + ": " + payload
}

// renderSystem renders an already-formatted system line (enter/leave/list
// notice), colorizing it only when color is on.
func (s *styler) renderSystem(line string) string {
	if !s.color {
		return line
	}
	return s.sys.Render(line)
}
