// Package ledgertest holds an in-process case ledger with the same contract as
// the MySQL ledger in package database. Components under test run against it.
package ledgertest

import (
	"context"
	"sort"
	"sync"
	"time"

	"report-case-service/models"
)

// Memory is a mutex guarded case ledger
type Memory struct {
	mu     sync.Mutex
	nextID int64
	cases  map[int64]*models.Case

	// CreateErr, when set, makes CreateCase fail without allocating an id.
	CreateErr error
}

// NewMemory returns an empty ledger whose first case id is firstID
func NewMemory(firstID int64) *Memory {
	if firstID < 1 {
		firstID = 1
	}
	return &Memory{nextID: firstID, cases: map[int64]*models.Case{}}
}

func (m *Memory) CreateCase(_ context.Context, reporterID, targetID, reason string) (*models.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	c := &models.Case{
		ID:         m.nextID,
		ReporterID: reporterID,
		TargetID:   targetID,
		Reason:     reason,
		Status:     models.CaseOpen,
		CreatedAt:  time.Now().UTC(),
	}
	m.nextID++
	m.cases[c.ID] = c
	out := *c
	return &out, nil
}

func (m *Memory) GetCase(_ context.Context, id int64) (*models.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cases[id]
	if !ok {
		return nil, models.ErrCaseNotFound
	}
	out := *c
	return &out, nil
}

func (m *Memory) ResolveCase(_ context.Context, id int64, resolvedBy, response string) (models.ResolveOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cases[id]
	if !ok {
		return models.NotFound, nil
	}
	if c.Status == models.CaseResolved {
		return models.AlreadyResolved, nil
	}
	now := time.Now().UTC()
	c.Status = models.CaseResolved
	c.ResolvedAt = &now
	c.ResolvedBy = resolvedBy
	c.Response = response
	return models.Resolved, nil
}

func (m *Memory) AttachNotice(_ context.Context, id int64, channelID, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cases[id]
	if !ok {
		return models.ErrCaseNotFound
	}
	c.NoticeChannelID = channelID
	c.NoticeMessageID = messageID
	return nil
}

func (m *Memory) ListCases(_ context.Context, filter models.CaseFilter) ([]models.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Case
	for _, c := range m.cases {
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.UndeliveredOnly && c.NoticeDelivered() {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Len returns the number of stored cases
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cases)
}
