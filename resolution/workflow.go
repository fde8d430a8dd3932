// Package resolution drives a case from Open to Resolved: a reviewer
// acknowledges the review notice, answers in the review channel, the answer is
// relayed to the reporter and the case is closed.
package resolution

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/apex/log"

	"report-case-service/gateway"
	"report-case-service/metrics"
	"report-case-service/models"
)

const (
	MsgPrompt      = "Enter your response which will be sent to the reporter"
	MsgConfirmSent = "DM sent."
)

type Ledger interface {
	GetCase(ctx context.Context, id int64) (*models.Case, error)
	ResolveCase(ctx context.Context, id int64, resolvedBy, response string) (models.ResolveOutcome, error)
}

type SettingsSource interface {
	Current() models.ReportSettings
}

type Events interface {
	Emit(eventType string, c *models.Case, actorID string)
}

type Options struct {
	TeamName      string
	ReplyTimeout  time.Duration
	SweepInterval time.Duration
}

type Workflow struct {
	ledger   Ledger
	settings SettingsSource
	gw       gateway.Gateway
	events   Events
	opts     Options
	now      func() time.Time

	mu      sync.Mutex
	pending *pendingTable
}

// NewWorkflow wires the workflow. events may be nil.
func NewWorkflow(ledger Ledger, settings SettingsSource, gw gateway.Gateway, events Events, opts Options) *Workflow {
	if opts.ReplyTimeout <= 0 {
		opts.ReplyTimeout = 5 * time.Minute
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = 10 * time.Second
	}
	return &Workflow{
		ledger:   ledger,
		settings: settings,
		gw:       gw,
		events:   events,
		opts:     opts,
		now:      time.Now,
		pending:  newPendingTable(),
	}
}

func alreadyResolvedMsg(id int64) string {
	return fmt.Sprintf("Case `#%d` is already resolved.", id)
}

func alreadyHandledMsg(id int64, reviewerID string) string {
	return fmt.Sprintf("Case `#%d` is already being handled by %s.", id, gateway.Mention(reviewerID))
}

func expiredMsg(p PendingReply) string {
	return fmt.Sprintf("%s The request expired, case `#%d` is still open. React again to respond.", gateway.Mention(p.ReviewerID), p.CaseID)
}

// RelayDM is the direct message the reporter receives
func RelayDM(teamName, reply string) string {
	return fmt.Sprintf("**Response from %s:**\n%s", teamName, reply)
}

// MaxReplyLength is the longest reply that still fits in a relayed DM
func (w *Workflow) MaxReplyLength() int {
	return gateway.MaxMessageLength - utf8.RuneCountInString(RelayDM(w.opts.TeamName, ""))
}

func replyTooLongMsg(p PendingReply, limit int) string {
	return fmt.Sprintf("%s The response is too long to relay, keep it under %d characters and send it again.", gateway.Mention(p.ReviewerID), limit)
}

// HandleReaction starts collecting a reply when a reviewer acknowledges a
// review notice
func (w *Workflow) HandleReaction(ctx context.Context, ev gateway.ReactionAdd) {
	if ev.Emoji != gateway.AckEmoji || ev.UserID == "" || ev.UserID == w.gw.SelfID() {
		return
	}
	if channel := w.settings.Current().ReviewChannelID; channel == "" || channel != ev.Ref.ChannelID {
		return
	}

	msg, err := w.gw.FetchMessage(ctx, ev.Ref)
	if err != nil {
		log.WithField("message", ev.Ref.MessageID).Warnf("Failed to fetch reacted message: %v", err)
		return
	}
	if msg.AuthorID != w.gw.SelfID() {
		return
	}
	caseID, err := gateway.ParseCaseID(msg)
	if err != nil {
		log.WithField("message", ev.Ref.MessageID).Debugf("Ignoring reaction: %v", err)
		return
	}
	logger := log.WithFields(log.Fields{"case": caseID, "reviewer": ev.UserID})

	c, ok := w.openCase(ctx, ev.Ref.ChannelID, caseID)
	if !ok {
		return
	}

	w.mu.Lock()
	now := w.now()
	entry, added, stale := w.pending.add(PendingReply{
		CaseID:     c.ID,
		ReviewerID: ev.UserID,
		ChannelID:  ev.Ref.ChannelID,
		ReporterID: c.ReporterID,
		TargetID:   c.TargetID,
		Deadline:   now.Add(w.opts.ReplyTimeout),
	}, now)
	holder := entry.ReviewerID
	w.updateGaugeLocked()
	w.mu.Unlock()

	if stale != nil {
		w.expire(ctx, *stale)
	}
	if !added {
		w.say(ctx, ev.Ref.ChannelID, alreadyHandledMsg(caseID, holder))
		return
	}

	// The case may have been resolved between the lookup and the add.
	if _, ok := w.openCase(ctx, ev.Ref.ChannelID, caseID); !ok {
		w.drop(caseID)
		return
	}

	if _, err := w.gw.SendMessage(ctx, ev.Ref.ChannelID, gateway.Mention(ev.UserID)+" "+MsgPrompt); err != nil {
		logger.Errorf("Failed to prompt reviewer: %v", err)
		w.drop(caseID)
		return
	}
	logger.Info("Waiting for reviewer reply")
}

// HandleMessage offers a channel message to the pending replies. It returns
// true when the message was consumed as a reviewer reply.
func (w *Workflow) HandleMessage(ctx context.Context, ev gateway.MessageCreate) bool {
	if ev.AuthorIsBot || strings.TrimSpace(ev.Content) == "" {
		return false
	}

	w.mu.Lock()
	entry := w.pending.claim(ev.Ref.ChannelID, ev.AuthorID)
	if entry == nil {
		w.mu.Unlock()
		return false
	}
	if w.now().After(entry.Deadline) {
		expired := *entry
		w.pending.remove(entry.CaseID)
		w.updateGaugeLocked()
		w.mu.Unlock()
		w.expire(ctx, expired)
		return true
	}
	if limit := w.MaxReplyLength(); utf8.RuneCountInString(ev.Content) > limit {
		p := *entry
		w.mu.Unlock()
		w.say(ctx, p.ChannelID, replyTooLongMsg(p, limit))
		return true
	}
	entry.Relaying = true
	p := *entry
	w.mu.Unlock()

	defer w.drop(p.CaseID)
	if _, ok := w.openCase(ctx, p.ChannelID, p.CaseID); !ok {
		return true
	}
	w.relay(ctx, p, ev.Content)
	return true
}

// openCase loads a case that can still take a reply. A missing or resolved
// case is answered in channelID.
func (w *Workflow) openCase(ctx context.Context, channelID string, caseID int64) (*models.Case, bool) {
	c, err := w.ledger.GetCase(ctx, caseID)
	switch {
	case errors.Is(err, models.ErrCaseNotFound):
		w.say(ctx, channelID, alreadyResolvedMsg(caseID))
		return nil, false
	case err != nil:
		log.WithField("case", caseID).Errorf("Failed to load case: %v", err)
		return nil, false
	case c.IsResolved():
		w.say(ctx, channelID, alreadyResolvedMsg(caseID))
		return nil, false
	}
	return c, true
}

func (w *Workflow) relay(ctx context.Context, p PendingReply, reply string) {
	logger := log.WithFields(log.Fields{"case": p.CaseID, "reviewer": p.ReviewerID})

	if err := w.gw.SendDirectMessage(ctx, p.ReporterID, RelayDM(w.opts.TeamName, reply)); err != nil {
		metrics.RelayFailuresTotal.Inc()
		logger.Warnf("Failed to relay reply to reporter: %v", err)
		w.say(ctx, p.ChannelID, fmt.Sprintf("Could not DM the reporter, case `#%d` is still open.", p.CaseID))
		return
	}

	outcome, err := w.ledger.ResolveCase(ctx, p.CaseID, p.ReviewerID, reply)
	if err != nil {
		metrics.ResolutionsTotal.WithLabelValues("error").Inc()
		logger.Errorf("Failed to resolve case: %v", err)
		w.say(ctx, p.ChannelID, fmt.Sprintf("The reply was delivered, but case `#%d` could not be marked resolved.", p.CaseID))
		return
	}
	metrics.ResolutionsTotal.WithLabelValues(outcome.String()).Inc()

	switch outcome {
	case models.Resolved:
		w.say(ctx, p.ChannelID, MsgConfirmSent)
		w.emit(models.EventCaseResolved, p.asCase(), p.ReviewerID)
		logger.Info("Case resolved")
	default:
		logger.Infof("Case was not resolved by this reply: %s", outcome)
	}
}

// ResolveManually closes a case without relaying anything to the reporter.
// Used by operators for cases whose notice never reached the review channel.
// An awaiting reply for the case is discarded; one already being relayed
// finishes and finds the case resolved.
func (w *Workflow) ResolveManually(ctx context.Context, caseID int64, actorID, note string) (models.ResolveOutcome, error) {
	outcome, err := w.ledger.ResolveCase(ctx, caseID, actorID, note)
	if err != nil {
		metrics.ResolutionsTotal.WithLabelValues("error").Inc()
		return 0, models.E(models.KindPersistence, "resolution.ResolveManually", err)
	}
	metrics.ResolutionsTotal.WithLabelValues(outcome.String()).Inc()
	if outcome != models.Resolved {
		return outcome, nil
	}

	w.mu.Lock()
	if p, ok := w.pending.entries[caseID]; ok && !p.Relaying {
		w.pending.remove(caseID)
		w.updateGaugeLocked()
	}
	w.mu.Unlock()

	c, err := w.ledger.GetCase(ctx, caseID)
	if err != nil {
		c = &models.Case{ID: caseID}
	}
	w.emit(models.EventCaseResolved, c, actorID)
	log.WithFields(log.Fields{"case": caseID, "actor": actorID}).Info("Case resolved by operator")
	return outcome, nil
}

// Sweep expires awaiting replies past their deadline and returns how many it expired
func (w *Workflow) Sweep(ctx context.Context, now time.Time) int {
	w.mu.Lock()
	expired := w.pending.expired(now)
	w.updateGaugeLocked()
	w.mu.Unlock()

	for _, p := range expired {
		w.expire(ctx, p)
	}
	return len(expired)
}

// Run sweeps every SweepInterval until ctx is done
func (w *Workflow) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.Sweep(ctx, w.now())
		}
	}
}

// Pending returns the entries waiting for a reply, oldest first
func (w *Workflow) Pending() []PendingReply {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending.snapshot()
}

func (w *Workflow) expire(ctx context.Context, p PendingReply) {
	metrics.ReplyWaitsExpiredTotal.Inc()
	log.WithFields(log.Fields{"case": p.CaseID, "reviewer": p.ReviewerID}).Info("Reviewer reply wait expired")
	w.say(ctx, p.ChannelID, expiredMsg(p))
	w.emit(models.EventCaseReplyExpired, p.asCase(), p.ReviewerID)
}

func (w *Workflow) drop(caseID int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending.remove(caseID)
	w.updateGaugeLocked()
}

func (w *Workflow) updateGaugeLocked() {
	metrics.PendingReplies.Set(float64(w.pending.len()))
}

func (w *Workflow) emit(eventType string, c *models.Case, actorID string) {
	if w.events == nil {
		return
	}
	w.events.Emit(eventType, c, actorID)
}

func (w *Workflow) say(ctx context.Context, channelID, content string) {
	if _, err := w.gw.SendMessage(ctx, channelID, content); err != nil {
		log.WithField("channel", channelID).Warnf("Failed to send message: %v", err)
	}
}
