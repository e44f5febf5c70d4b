package reflow

import "sync/atomic"

// maxQueuedToggles bounds how many profile toggles one drain replays. It
// is even so that the cap keeps the parity of the posted count.
const maxQueuedToggles = 8

// Mailbox carries operator requests from other goroutines (HTTP handlers,
// serial reader) to the control loop. Post never blocks; the loop drains it
// once per iteration. Requests of the same kind posted between two drains
// collapse into one, except profile toggles, which are counted: two toggles
// in one iteration cancel out.
type Mailbox struct {
	pending atomic.Uint32
	toggles atomic.Uint32
}

// Post records a request.
func (m *Mailbox) Post(ev Event) {
	switch {
	case ev == EventNone || ev >= eventCount:
		return
	case ev == EventSolderToggle:
		m.toggles.Add(1)
	default:
		m.pending.Or(1 << ev)
	}
}

// Drain returns and clears all pending requests in processing order.
func (m *Mailbox) Drain() []Event {
	bits := m.pending.Swap(0)
	toggles := m.toggles.Swap(0)
	if bits == 0 && toggles == 0 {
		return nil
	}
	if toggles > maxQueuedToggles {
		toggles = maxQueuedToggles + toggles%2
	}
	out := make([]Event, 0, 2)
	for ev := EventNone + 1; ev < eventCount; ev++ {
		if ev == EventSolderToggle {
			for i := uint32(0); i < toggles; i++ {
				out = append(out, ev)
			}
			continue
		}
		if bits&(1<<ev) != 0 {
			out = append(out, ev)
		}
	}
	return out
}

// Pending reports whether any request is waiting.
func (m *Mailbox) Pending() bool { return m.pending.Load() != 0 || m.toggles.Load() != 0 }
