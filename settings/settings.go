// Package settings keeps the report workflow configuration (review channel,
// acknowledgment message, blacklist) as an immutable in-memory snapshot backed
// by the database. Readers never block; writers persist first and then
// publish a fresh snapshot.
package settings

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/apex/log"

	"report-case-service/gateway"
	"report-case-service/models"
)

// Persister is the durable side of the settings
type Persister interface {
	GetReportSettings(ctx context.Context) (*models.ReportSettings, error)
	SetReviewChannel(ctx context.Context, channelID string) error
	SetAckMessage(ctx context.Context, message string) error
	ToggleBlacklist(ctx context.Context, userID, addedBy string) (bool, error)
}

type Store struct {
	persister  Persister
	defaultAck string

	mu      sync.Mutex
	current atomic.Pointer[models.ReportSettings]
}

func NewStore(p Persister, defaultAck string) *Store {
	s := &Store{persister: p, defaultAck: defaultAck}
	s.current.Store(&models.ReportSettings{AckMessage: defaultAck, Blacklist: map[string]struct{}{}})
	return s
}

// Load replaces the snapshot with what is persisted. Called once at startup
// and whenever an operator wants to pick up out-of-band edits.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	loaded, err := s.persister.GetReportSettings(ctx)
	if err != nil {
		return models.E(models.KindPersistence, "settings.Load", err)
	}
	if loaded.AckMessage == "" {
		loaded.AckMessage = s.defaultAck
	}
	if loaded.Blacklist == nil {
		loaded.Blacklist = map[string]struct{}{}
	}
	s.current.Store(loaded)

	log.WithFields(log.Fields{
		"review_channel": loaded.ReviewChannelID,
		"blacklisted":    len(loaded.Blacklist),
	}).Info("Report settings loaded")
	return nil
}

// Current returns the latest snapshot. The returned value must be treated as
// read-only; use Clone before modifying it.
func (s *Store) Current() models.ReportSettings {
	return *s.current.Load()
}

// SetReviewChannel persists and publishes the review channel
func (s *Store) SetReviewChannel(ctx context.Context, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persister.SetReviewChannel(ctx, channelID); err != nil {
		return models.E(models.KindPersistence, "settings.SetReviewChannel", err)
	}
	next := s.current.Load().Clone()
	next.ReviewChannelID = channelID
	s.current.Store(&next)
	return nil
}

// SetAckMessage persists and publishes the acknowledgment message
func (s *Store) SetAckMessage(ctx context.Context, message string) error {
	if err := gateway.CheckContent(message); err != nil {
		return models.E(models.KindValidation, "settings.SetAckMessage", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persister.SetAckMessage(ctx, message); err != nil {
		return models.E(models.KindPersistence, "settings.SetAckMessage", err)
	}
	next := s.current.Load().Clone()
	next.AckMessage = message
	s.current.Store(&next)
	return nil
}

// ToggleBlacklist adds or removes a reporter. Returns true when the reporter
// is blacklisted afterwards.
func (s *Store) ToggleBlacklist(ctx context.Context, userID, actorID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	blacklisted, err := s.persister.ToggleBlacklist(ctx, userID, actorID)
	if err != nil {
		return false, models.E(models.KindPersistence, "settings.ToggleBlacklist", err)
	}
	next := s.current.Load().Clone()
	if blacklisted {
		next.Blacklist[userID] = struct{}{}
	} else {
		delete(next.Blacklist, userID)
	}
	s.current.Store(&next)
	return blacklisted, nil
}
