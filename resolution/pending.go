package resolution

import (
	"sort"
	"time"

	"report-case-service/models"
)

// PendingReply is an acknowledged case waiting for the reviewer's answer
type PendingReply struct {
	CaseID     int64     `json:"case_id"`
	ReviewerID string    `json:"reviewer_id"`
	ChannelID  string    `json:"channel_id"`
	ReporterID string    `json:"reporter_id"`
	TargetID   string    `json:"target_id"`
	Deadline   time.Time `json:"deadline"`
	// Relaying is set once the reply was claimed. A relaying entry is
	// never expired by the sweeper.
	Relaying bool `json:"relaying"`

	seq uint64
}

func (p PendingReply) asCase() *models.Case {
	return &models.Case{ID: p.CaseID, ReporterID: p.ReporterID, TargetID: p.TargetID}
}

// pendingTable is keyed by case id. Callers hold Workflow.mu.
type pendingTable struct {
	seq     uint64
	entries map[int64]*PendingReply
}

func newPendingTable() *pendingTable {
	return &pendingTable{entries: map[int64]*PendingReply{}}
}

// add registers p unless the case already has a live entry, which is
// returned instead. An awaiting entry past its deadline is replaced and
// handed back as stale so the caller can report the expiry.
func (t *pendingTable) add(p PendingReply, now time.Time) (entry *PendingReply, added bool, stale *PendingReply) {
	if existing, ok := t.entries[p.CaseID]; ok {
		if existing.Relaying || !now.After(existing.Deadline) {
			return existing, false, nil
		}
		expired := *existing
		stale = &expired
	}
	t.seq++
	p.seq = t.seq
	t.entries[p.CaseID] = &p
	return &p, true, stale
}

// claim returns the oldest awaiting entry of reviewerID in channelID
func (t *pendingTable) claim(channelID, reviewerID string) *PendingReply {
	var oldest *PendingReply
	for _, p := range t.entries {
		if p.Relaying || p.ChannelID != channelID || p.ReviewerID != reviewerID {
			continue
		}
		if oldest == nil || p.seq < oldest.seq {
			oldest = p
		}
	}
	return oldest
}

func (t *pendingTable) remove(caseID int64) {
	delete(t.entries, caseID)
}

// expired removes and returns awaiting entries whose deadline passed
func (t *pendingTable) expired(now time.Time) []PendingReply {
	var out []PendingReply
	for id, p := range t.entries {
		if p.Relaying || !now.After(p.Deadline) {
			continue
		}
		out = append(out, *p)
		delete(t.entries, id)
	}
	sortBySeq(out)
	return out
}

func (t *pendingTable) snapshot() []PendingReply {
	out := make([]PendingReply, 0, len(t.entries))
	for _, p := range t.entries {
		out = append(out, *p)
	}
	sortBySeq(out)
	return out
}

func (t *pendingTable) len() int {
	return len(t.entries)
}

func sortBySeq(ps []PendingReply) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].seq < ps[j].seq })
}
