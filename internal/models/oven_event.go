package models

import "time"

// OvenEvent is a single log entry.
type OvenEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`            // START | STOP | STAGE | FAULT | RESUME | COMPLETE | PROFILE | ERROR | COMMAND
	Stage       string    `json:"stage,omitempty"` // stage when the event was recorded
	Description string    `json:"description"`     // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}
