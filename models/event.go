package models

import "time"

// Case event types, also used as routing keys
const (
	EventCaseCreated      = "case.created"
	EventCaseResolved     = "case.resolved"
	EventCaseReplyExpired = "case.reply_expired"
)

// CaseEvent is published whenever a case changes state or a reviewer wait expires
type CaseEvent struct {
	EventID    string    `json:"event_id"`
	Type       string    `json:"type"`
	CaseID     int64     `json:"case_id"`
	ReporterID string    `json:"reporter_id"`
	TargetID   string    `json:"target_id"`
	ActorID    string    `json:"actor_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
