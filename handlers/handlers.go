package handlers

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"report-case-service/gateway"
	"report-case-service/intake"
	"report-case-service/models"
	"report-case-service/resolution"
	"report-case-service/version"
)

type Reporter interface {
	SubmitReport(ctx context.Context, sub intake.Submission) (intake.Result, error)
}

type Workflow interface {
	ResolveManually(ctx context.Context, caseID int64, actorID, note string) (models.ResolveOutcome, error)
	Pending() []resolution.PendingReply
}

type Settings interface {
	Current() models.ReportSettings
	SetReviewChannel(ctx context.Context, channelID string) error
	SetAckMessage(ctx context.Context, message string) error
	ToggleBlacklist(ctx context.Context, userID, actorID string) (bool, error)
}

type Cases interface {
	GetCase(ctx context.Context, id int64) (*models.Case, error)
	ListCases(ctx context.Context, filter models.CaseFilter) ([]models.Case, error)
}

type BlacklistLister interface {
	ListBlacklist(ctx context.Context) ([]models.BlacklistEntry, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds all HTTP handlers
type Handlers struct {
	reporter Reporter
	workflow Workflow
	settings Settings
	cases    Cases
	entries  BlacklistLister
	channels ChannelChecker
	db       Pinger
}

// ChannelChecker validates review channels before they are stored
type ChannelChecker interface {
	ChannelExists(ctx context.Context, channelID string) (bool, error)
}

// NewHandlers creates a new handlers instance
func NewHandlers(reporter Reporter, workflow Workflow, settings Settings, cases Cases, entries BlacklistLister, channels ChannelChecker, db Pinger) *Handlers {
	return &Handlers{
		reporter: reporter,
		workflow: workflow,
		settings: settings,
		cases:    cases,
		entries:  entries,
		channels: channels,
		db:       db,
	}
}

// statusFor maps the error taxonomy onto HTTP status codes
func statusFor(err error) int {
	if errors.Is(err, models.ErrCaseNotFound) {
		return http.StatusNotFound
	}
	switch models.KindOf(err) {
	case models.KindValidation:
		return http.StatusBadRequest
	case models.KindAuthorization:
		return http.StatusForbidden
	case models.KindConfiguration:
		return http.StatusConflict
	case models.KindDelivery:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func fail(c *gin.Context, status int, message string, err error) {
	body := gin.H{
		"success": false,
		"message": message,
	}
	if err != nil {
		body["error"] = err.Error()
	}
	c.JSON(status, body)
}

func actor(c *gin.Context) string {
	if a := c.GetString("actor_id"); a != "" {
		return a
	}
	return "api"
}

func caseIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, "Case id must be a positive integer", nil)
		return 0, false
	}
	return id, true
}

// SubmitReport files a report on behalf of a member
func (h *Handlers) SubmitReport(c *gin.Context) {
	var req models.SubmitReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	res, err := h.reporter.SubmitReport(c.Request.Context(), intake.Submission{
		ReporterID: req.ReporterID,
		TargetID:   req.TargetID,
		Reason:     req.Reason,
	})
	if err != nil && res.Status != intake.Accepted {
		fail(c, statusFor(err), "Report was not accepted", err)
		return
	}

	resp := models.SubmitReportResponse{
		Success:         true,
		CaseID:          res.CaseID,
		NoticeDelivered: res.NoticeDelivered,
		Message:         "Report accepted",
	}
	status := http.StatusCreated
	if err != nil {
		// The case exists but reviewers have not seen it.
		resp.Message = err.Error()
		status = statusFor(err)
	}
	c.JSON(status, resp)
}

// ListCases lists cases, newest first.
// Query: status=open|resolved, undelivered=true, limit=N
func (h *Handlers) ListCases(c *gin.Context) {
	filter := models.CaseFilter{
		UndeliveredOnly: c.Query("undelivered") == "true",
	}
	switch status := models.CaseStatus(c.Query("status")); status {
	case "", models.CaseOpen, models.CaseResolved:
		filter.Status = status
	default:
		fail(c, http.StatusBadRequest, "Invalid status filter", nil)
		return
	}
	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			fail(c, http.StatusBadRequest, "Invalid limit", nil)
			return
		}
		filter.Limit = limit
	}

	cases, err := h.cases.ListCases(c.Request.Context(), filter)
	if err != nil {
		log.Errorf("Failed to list cases: %v", err)
		fail(c, http.StatusInternalServerError, "Failed to list cases", err)
		return
	}
	if cases == nil {
		cases = []models.Case{}
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   len(cases),
		"data":    cases,
	})
}

// GetCase returns a single case
func (h *Handlers) GetCase(c *gin.Context) {
	id, ok := caseIDParam(c)
	if !ok {
		return
	}
	cs, err := h.cases.GetCase(c.Request.Context(), id)
	if err != nil {
		if !errors.Is(err, models.ErrCaseNotFound) {
			log.WithField("case", id).Errorf("Failed to get case: %v", err)
		}
		fail(c, statusFor(err), "Failed to get case", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    cs,
	})
}

// ResolveCase closes a case without relaying a reply
func (h *Handlers) ResolveCase(c *gin.Context) {
	id, ok := caseIDParam(c)
	if !ok {
		return
	}
	var req models.ResolveCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	outcome, err := h.workflow.ResolveManually(c.Request.Context(), id, req.ResolvedBy, req.Note)
	if err != nil {
		log.WithField("case", id).Errorf("Failed to resolve case: %v", err)
		fail(c, statusFor(err), "Failed to resolve case", err)
		return
	}

	resp := models.ResolveCaseResponse{
		Success: outcome == models.Resolved,
		CaseID:  id,
		Outcome: outcome.String(),
	}
	switch outcome {
	case models.Resolved:
		c.JSON(http.StatusOK, resp)
	case models.AlreadyResolved:
		c.JSON(http.StatusConflict, resp)
	default:
		c.JSON(http.StatusNotFound, resp)
	}
}

// ListPending returns the cases waiting for a reviewer reply
func (h *Handlers) ListPending(c *gin.Context) {
	pending := h.workflow.Pending()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   len(pending),
		"data":    pending,
	})
}

// GetSettings returns the current report settings
func (h *Handlers) GetSettings(c *gin.Context) {
	s := h.settings.Current()
	blacklisted := s.BlacklistedIDs()
	sort.Strings(blacklisted)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"review_channel_id": s.ReviewChannelID,
			"ack_message":       s.AckMessage,
			"blacklist":         blacklisted,
		},
	})
}

// SetChannel sets the review channel
func (h *Handlers) SetChannel(c *gin.Context) {
	var req models.SetChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	channelID := strings.TrimSpace(req.ChannelID)
	if h.channels != nil {
		exists, err := h.channels.ChannelExists(c.Request.Context(), channelID)
		if err != nil {
			fail(c, http.StatusBadGateway, "Failed to look up channel", err)
			return
		}
		if !exists {
			fail(c, http.StatusBadRequest, intake.MsgChannelInvalid, gateway.ErrUnknownChannel)
			return
		}
	}

	if err := h.settings.SetReviewChannel(c.Request.Context(), channelID); err != nil {
		log.Errorf("Failed to set review channel: %v", err)
		fail(c, statusFor(err), "Failed to set review channel", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Channel for reports is set.",
	})
}

// SetMessage sets the acknowledgment message
func (h *Handlers) SetMessage(c *gin.Context) {
	var req models.SetMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		fail(c, http.StatusBadRequest, "Message must not be empty", nil)
		return
	}
	if err := h.settings.SetAckMessage(c.Request.Context(), message); err != nil {
		log.Errorf("Failed to set acknowledgment message: %v", err)
		fail(c, statusFor(err), "Failed to set message", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Custom message set!",
	})
}

// ToggleBlacklist blacklists or unblacklists a reporter
func (h *Handlers) ToggleBlacklist(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("user_id"))
	if userID == "" {
		fail(c, http.StatusBadRequest, "User id is required", nil)
		return
	}
	blacklisted, err := h.settings.ToggleBlacklist(c.Request.Context(), userID, actor(c))
	if err != nil {
		log.WithField("user", userID).Errorf("Failed to toggle blacklist: %v", err)
		fail(c, statusFor(err), "Failed to toggle blacklist", err)
		return
	}
	c.JSON(http.StatusOK, models.BlacklistToggleResponse{
		Success:     true,
		UserID:      userID,
		Blacklisted: blacklisted,
	})
}

// ListBlacklist returns blacklisted reporters with who added them
func (h *Handlers) ListBlacklist(c *gin.Context) {
	entries, err := h.entries.ListBlacklist(c.Request.Context())
	if err != nil {
		log.Errorf("Failed to list blacklist: %v", err)
		fail(c, http.StatusInternalServerError, "Failed to list blacklist", err)
		return
	}
	if entries == nil {
		entries = []models.BlacklistEntry{}
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   len(entries),
		"data":    entries,
	})
}

// Health reports liveness and database reachability
func (h *Handlers) Health(c *gin.Context) {
	body := gin.H{
		"status":  "healthy",
		"service": version.ServiceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
	}
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			body["status"] = "unhealthy"
			body["error"] = err.Error()
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
	}
	c.JSON(http.StatusOK, body)
}

// Version returns build information
func (h *Handlers) Version(c *gin.Context) {
	c.JSON(http.StatusOK, version.Get())
}
