// Package display renders sequencer status for humans.
package display

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"reflow_oven/internal/reflow"
)

var (
	colorHeat  = lipgloss.AdaptiveColor{Light: "#d20f39", Dark: "#f38ba8"}
	colorOK    = lipgloss.AdaptiveColor{Light: "#40a02b", Dark: "#a6e3a1"}
	colorWarn  = lipgloss.AdaptiveColor{Light: "#df8e1d", Dark: "#f9e2af"}
	colorMuted = lipgloss.AdaptiveColor{Light: "#6c6f85", Dark: "#6c7086"}
)

// Styles used by the console panel.
type Styles struct {
	Stage     lipgloss.Style
	Temp      lipgloss.Style
	HeaterOn  lipgloss.Style
	HeaterOff lipgloss.Style
	Fault     lipgloss.Style
	Muted     lipgloss.Style
}

// DefaultStyles returns the console palette.
func DefaultStyles() Styles {
	return Styles{
		Stage:     lipgloss.NewStyle().Bold(true).Width(13),
		Temp:      lipgloss.NewStyle(),
		HeaterOn:  lipgloss.NewStyle().Foreground(colorHeat).Bold(true),
		HeaterOff: lipgloss.NewStyle().Foreground(colorMuted),
		Fault:     lipgloss.NewStyle().Foreground(colorWarn).Bold(true),
		Muted:     lipgloss.NewStyle().Foreground(colorMuted),
	}
}

// Console writes one line per render.
type Console struct {
	mu     sync.Mutex
	w      io.Writer
	styles Styles
	// Elapsed, when set, prefixes each line with the run clock.
	Elapsed func() time.Duration
}

// NewConsole returns a console sink writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w, styles: DefaultStyles()}
}

// Render implements reflow.Display.
func (c *Console) Render(st reflow.Status) {
	line := c.Format(st)
	if c.Elapsed != nil {
		line = c.styles.Muted.Render(fmt.Sprintf("%7.1fs", c.Elapsed().Seconds())) + " " + line
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w, line)
}

// Format builds the status line without writing it.
func (c *Console) Format(st reflow.Status) string {
	s := c.styles
	stage := s.Stage.Foreground(colorOK).Render(st.Stage.String())
	if st.FaultIndicator() {
		stage = s.Stage.Foreground(colorWarn).Render(st.Stage.String())
	}

	parts := []string{
		stage,
		s.Temp.Render(fmt.Sprintf("%6.1f°C → %5.1f°C", st.Temperature, st.Setpoint)),
	}
	if st.Heater {
		parts = append(parts, s.HeaterOn.Render("HEAT"))
	} else {
		parts = append(parts, s.HeaterOff.Render("off "))
	}
	parts = append(parts, s.Muted.Render(st.Profile))

	if st.FaultIndicator() {
		choice := "abandon"
		if st.Resume {
			choice = "resume"
		}
		parts = append(parts, s.Fault.Render(fmt.Sprintf("FAULT %s (was %s, choice: %s)", st.Fault, st.Interrupted, choice)))
	}
	if st.Countdown > 0 {
		parts = append(parts, fmt.Sprintf("%ds", int(st.Countdown.Seconds())))
	}
	return strings.Join(parts, "  ")
}

// Multi fans a status out to several displays.
type Multi []reflow.Display

// Render implements reflow.Display.
func (m Multi) Render(st reflow.Status) {
	for _, d := range m {
		if d != nil {
			d.Render(st)
		}
	}
}

// Timeline records stage changes, for end-of-run summaries.
type Timeline struct {
	mu      sync.Mutex
	entries []TimelineEntry
	last    reflow.Stage
	now     func() time.Time
}

// TimelineEntry is one stage entry.
type TimelineEntry struct {
	Stage reflow.Stage
	At    time.Time
	TempC float64
}

// NewTimeline returns an empty timeline using now for timestamps.
func NewTimeline(now func() time.Time) *Timeline {
	if now == nil {
		now = time.Now
	}
	return &Timeline{now: now}
}

// Render implements reflow.Display.
func (t *Timeline) Render(st reflow.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if st.Stage == t.last {
		return
	}
	t.last = st.Stage
	t.entries = append(t.entries, TimelineEntry{Stage: st.Stage, At: t.now(), TempC: st.Temperature})
}

// Entries returns a copy of the recorded stage changes.
func (t *Timeline) Entries() []TimelineEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]TimelineEntry(nil), t.entries...)
}

// Write prints the timeline relative to its first entry.
func (t *Timeline) Write(w io.Writer) {
	entries := t.Entries()
	if len(entries) == 0 {
		return
	}
	head := lipgloss.NewStyle().Bold(true).Render("stage timeline")
	fmt.Fprintln(w, head)
	start := entries[0].At
	for _, e := range entries {
		fmt.Fprintf(w, "  %8s  %-12s %6.1f°C\n", e.At.Sub(start).Truncate(100*time.Millisecond), e.Stage, e.TempC)
	}
}
