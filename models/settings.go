package models

import "time"

// ReportSettings is the complete runtime configuration of the report workflow
type ReportSettings struct {
	ReviewChannelID string              `json:"review_channel_id"`
	AckMessage      string              `json:"ack_message"`
	Blacklist       map[string]struct{} `json:"-"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// Clone returns a deep copy safe to mutate
func (s ReportSettings) Clone() ReportSettings {
	out := s
	out.Blacklist = make(map[string]struct{}, len(s.Blacklist))
	for id := range s.Blacklist {
		out.Blacklist[id] = struct{}{}
	}
	return out
}

// BlacklistedIDs returns the blacklist as a slice, order unspecified
func (s ReportSettings) BlacklistedIDs() []string {
	ids := make([]string, 0, len(s.Blacklist))
	for id := range s.Blacklist {
		ids = append(ids, id)
	}
	return ids
}

// BlacklistEntry is a reporter barred from submitting reports
type BlacklistEntry struct {
	UserID    string    `json:"user_id" db:"user_id"`
	AddedBy   string    `json:"added_by" db:"added_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// SetChannelRequest sets the review channel
type SetChannelRequest struct {
	ChannelID string `json:"channel_id" binding:"required"`
}

// SetMessageRequest sets the acknowledgment message sent to reporters
type SetMessageRequest struct {
	Message string `json:"message" binding:"required"`
}

// BlacklistToggleResponse reports the result of a blacklist toggle
type BlacklistToggleResponse struct {
	Success     bool   `json:"success"`
	UserID      string `json:"user_id"`
	Blacklisted bool   `json:"blacklisted"`
}
