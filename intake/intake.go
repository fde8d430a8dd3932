// Package intake turns a member's report into a persisted case and a review
// notice in the configured review channel.
package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/apex/log"

	"report-case-service/gateway"
	"report-case-service/metrics"
	"report-case-service/models"
)

// Reporter-facing replies
const (
	MsgChannelNotSet  = "Reports channel for the guild has not been set."
	MsgChannelInvalid = "The reports channel is invalid."
	MsgReportFailed   = "An error occurred while reporting. Please try again later."
	MsgNoticeFailed   = "Your report was recorded but could not be posted for review. Staff have been notified."
)

// MaxReasonLength keeps a reason within a single notice field.
const MaxReasonLength = gateway.MaxFieldValue

var ErrReasonTooLong = fmt.Errorf("reason is longer than %d characters", MaxReasonLength)

// ReasonTooLongMsg is the reply to a member whose reason does not fit
func ReasonTooLongMsg() string {
	return fmt.Sprintf("Your reason is too long, please keep it under %d characters.", MaxReasonLength)
}

// Status is the outcome class of a submission
type Status int

const (
	Accepted Status = iota + 1
	Rejected
	Failed
)

func (s Status) String() string {
	switch s {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Submission is a report as received from a member or the operator API
type Submission struct {
	ReporterID string
	TargetID   string
	Reason     string
	// Origin is the public message that carried the report, deleted once handled.
	Origin *gateway.MessageRef
}

type Result struct {
	Status          Status
	CaseID          int64
	NoticeDelivered bool
}

// Ledger is the subset of the case ledger intake writes to
type Ledger interface {
	CreateCase(ctx context.Context, reporterID, targetID, reason string) (*models.Case, error)
	AttachNotice(ctx context.Context, id int64, channelID, messageID string) error
}

type Guard interface {
	IsBlacklisted(reporterID string) bool
}

type SettingsSource interface {
	Current() models.ReportSettings
}

type Events interface {
	Emit(eventType string, c *models.Case, actorID string)
}

type Service struct {
	ledger   Ledger
	guard    Guard
	settings SettingsSource
	gw       gateway.Gateway
	events   Events
	now      func() time.Time
}

// NewService wires intake. events may be nil.
func NewService(ledger Ledger, guard Guard, settings SettingsSource, gw gateway.Gateway, events Events) *Service {
	return &Service{
		ledger:   ledger,
		guard:    guard,
		settings: settings,
		gw:       gw,
		events:   events,
		now:      time.Now,
	}
}

// SubmitReport validates, persists and publishes a report. The returned
// error carries a models.ErrorKind; an Accepted result may still come with a
// KindDelivery error when the review notice could not be published.
func (s *Service) SubmitReport(ctx context.Context, sub Submission) (Result, error) {
	const op = "intake.SubmitReport"

	sub.Reason = strings.TrimSpace(sub.Reason)
	if err := validate(sub); err != nil {
		metrics.SubmissionsTotal.WithLabelValues("invalid").Inc()
		return Result{Status: Failed}, models.E(models.KindValidation, op, err)
	}

	logger := log.WithFields(log.Fields{"reporter": sub.ReporterID, "target": sub.TargetID})

	if s.guard.IsBlacklisted(sub.ReporterID) {
		s.deleteOrigin(ctx, sub.Origin)
		metrics.SubmissionsTotal.WithLabelValues("rejected").Inc()
		logger.Info("Dropped report from blacklisted reporter")
		return Result{Status: Rejected}, models.E(models.KindAuthorization, op, errors.New("reporter is blacklisted"))
	}

	snapshot := s.settings.Current()
	channelID := snapshot.ReviewChannelID
	if channelID == "" {
		s.deleteOrigin(ctx, sub.Origin)
		s.dm(ctx, sub.ReporterID, MsgChannelNotSet)
		metrics.SubmissionsTotal.WithLabelValues("unconfigured").Inc()
		return Result{Status: Failed}, models.E(models.KindConfiguration, op, errors.New("review channel not set"))
	}
	ok, err := s.gw.ChannelExists(ctx, channelID)
	if err != nil || !ok {
		if err == nil {
			err = fmt.Errorf("channel %s: %w", channelID, gateway.ErrUnknownChannel)
		}
		s.deleteOrigin(ctx, sub.Origin)
		s.dm(ctx, sub.ReporterID, MsgChannelInvalid)
		metrics.SubmissionsTotal.WithLabelValues("unconfigured").Inc()
		return Result{Status: Failed}, models.E(models.KindConfiguration, op, err)
	}

	c, err := s.ledger.CreateCase(ctx, sub.ReporterID, sub.TargetID, sub.Reason)
	if err != nil {
		s.deleteOrigin(ctx, sub.Origin)
		s.dm(ctx, sub.ReporterID, MsgReportFailed)
		metrics.SubmissionsTotal.WithLabelValues("store_error").Inc()
		logger.Errorf("Failed to create case: %v", err)
		return Result{Status: Failed}, models.E(models.KindPersistence, op, err)
	}
	logger = logger.WithField("case", c.ID)

	res := Result{Status: Accepted, CaseID: c.ID}
	ref, noticeErr := s.publishNotice(ctx, channelID, c)
	if noticeErr != nil {
		logger.Errorf("Failed to publish review notice: %v", noticeErr)
		s.dm(ctx, sub.ReporterID, MsgNoticeFailed)
	} else {
		res.NoticeDelivered = true
		if err := s.ledger.AttachNotice(ctx, c.ID, ref.ChannelID, ref.MessageID); err != nil {
			// The notice is live and the footer carries the id, so the
			// workflow still works without the stored location.
			logger.Warnf("Failed to record notice location: %v", err)
		}
		s.dm(ctx, sub.ReporterID, snapshot.AckMessage)
	}

	s.deleteOrigin(ctx, sub.Origin)
	if s.events != nil {
		s.events.Emit(models.EventCaseCreated, c, sub.ReporterID)
	}

	if noticeErr != nil {
		metrics.SubmissionsTotal.WithLabelValues("undelivered").Inc()
		return res, models.E(models.KindDelivery, op, noticeErr)
	}
	metrics.SubmissionsTotal.WithLabelValues("accepted").Inc()
	logger.Info("Report accepted")
	return res, nil
}

func validate(sub Submission) error {
	switch {
	case sub.ReporterID == "":
		return errors.New("reporter is required")
	case sub.TargetID == "":
		return errors.New("target member is required")
	case sub.Reason == "":
		return errors.New("reason is required")
	case utf8.RuneCountInString(sub.Reason) > MaxReasonLength:
		return ErrReasonTooLong
	}
	return nil
}

func (s *Service) publishNotice(ctx context.Context, channelID string, c *models.Case) (gateway.MessageRef, error) {
	reporter, err := s.gw.FetchUser(ctx, c.ReporterID)
	if err != nil {
		reporter = gateway.Profile{ID: c.ReporterID, Username: c.ReporterID}
	}
	target, err := s.gw.FetchUser(ctx, c.TargetID)
	if err != nil {
		target = gateway.Profile{ID: c.TargetID, Username: c.TargetID}
	}

	ref, err := s.gw.SendNotice(ctx, channelID, gateway.ReviewNotice(c.ID, reporter, target, c.Reason, s.now()))
	if err != nil {
		return gateway.MessageRef{}, err
	}
	if err := s.gw.AddReaction(ctx, ref, gateway.AckEmoji); err != nil {
		log.WithField("case", c.ID).Warnf("Failed to add acknowledgment reaction: %v", err)
	}
	return ref, nil
}

func (s *Service) dm(ctx context.Context, userID, content string) {
	if content == "" {
		return
	}
	if err := s.gw.SendDirectMessage(ctx, userID, content); err != nil {
		log.WithField("user", userID).Warnf("Failed to DM reporter: %v", err)
	}
}

func (s *Service) deleteOrigin(ctx context.Context, origin *gateway.MessageRef) {
	if origin == nil || origin.IsZero() {
		return
	}
	if err := s.gw.DeleteMessage(ctx, *origin); err != nil {
		log.WithField("message", origin.MessageID).Warnf("Failed to delete report request: %v", err)
	}
}
