package models

import (
	"time"
)

// CaseStatus is the persisted state of a case. The only transition is
// CaseOpen -> CaseResolved.
type CaseStatus string

const (
	CaseOpen     CaseStatus = "open"
	CaseResolved CaseStatus = "resolved"
)

// Case represents a user report tracked by the ledger
type Case struct {
	ID              int64      `json:"id" db:"id"`
	ReporterID      string     `json:"reporter_id" db:"reporter_id"`
	TargetID        string     `json:"target_id" db:"target_id"`
	Reason          string     `json:"reason" db:"reason"`
	Status          CaseStatus `json:"status" db:"status"`
	NoticeChannelID string     `json:"notice_channel_id,omitempty" db:"notice_channel_id"`
	NoticeMessageID string     `json:"notice_message_id,omitempty" db:"notice_message_id"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
	ResolvedBy      string     `json:"resolved_by,omitempty" db:"resolved_by"`
	Response        string     `json:"response,omitempty" db:"response"`
}

// IsResolved reports whether the case reached its terminal state
func (c *Case) IsResolved() bool {
	return c.Status == CaseResolved
}

// NoticeDelivered reports whether a review notice was published for the case
func (c *Case) NoticeDelivered() bool {
	return c.NoticeMessageID != ""
}

// ResolveOutcome is the result of a resolve attempt
type ResolveOutcome int

const (
	Resolved ResolveOutcome = iota + 1
	AlreadyResolved
	NotFound
)

func (o ResolveOutcome) String() string {
	switch o {
	case Resolved:
		return "resolved"
	case AlreadyResolved:
		return "already_resolved"
	case NotFound:
		return "not_found"
	}
	return "unknown"
}

// CaseFilter narrows ListCases results
type CaseFilter struct {
	Status          CaseStatus
	UndeliveredOnly bool
	Limit           int
}

// ResolveCaseRequest is the operator request to resolve a case by hand
type ResolveCaseRequest struct {
	ResolvedBy string `json:"resolved_by" binding:"required"`
	Note       string `json:"note"`
}

// ResolveCaseResponse reports the outcome of an operator resolve
type ResolveCaseResponse struct {
	Success bool   `json:"success"`
	CaseID  int64  `json:"case_id"`
	Outcome string `json:"outcome"`
}
