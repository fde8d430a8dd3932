// Package commands parses prefixed chat commands and dispatches them to the
// report workflow.
package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/apex/log"

	"report-case-service/gateway"
	"report-case-service/intake"
	"report-case-service/models"
)

const (
	MsgNoPermission   = "You do not have permission to use this command."
	MsgChannelSet     = "Channel for reports is set."
	MsgMessageSet     = "Custom message set!"
	MsgBlacklisted    = "Blacklisted!"
	MsgUnblacklisted  = "Blacklist Removed!"
	MsgNoOpenCases    = "There are no open cases."
	MsgSettingsFailed = "Could not save the setting, please try again."
)

type Reporter interface {
	SubmitReport(ctx context.Context, sub intake.Submission) (intake.Result, error)
}

// Workflow is the resolution side the router talks to
type Workflow interface {
	HandleMessage(ctx context.Context, ev gateway.MessageCreate) bool
	ResolveManually(ctx context.Context, caseID int64, actorID, note string) (models.ResolveOutcome, error)
}

type Settings interface {
	SetReviewChannel(ctx context.Context, channelID string) error
	SetAckMessage(ctx context.Context, message string) error
	ToggleBlacklist(ctx context.Context, userID, actorID string) (bool, error)
}

type Cases interface {
	GetCase(ctx context.Context, id int64) (*models.Case, error)
	ListCases(ctx context.Context, filter models.CaseFilter) ([]models.Case, error)
}

// Staff decides who may run the ru subcommands. *config.Config implements it.
type Staff interface {
	IsStaff(userID string) bool
}

type Router struct {
	prefix   string
	gw       gateway.Gateway
	reporter Reporter
	workflow Workflow
	settings Settings
	cases    Cases
	staff    Staff
}

func NewRouter(prefix string, gw gateway.Gateway, reporter Reporter, workflow Workflow, settings Settings, cases Cases, staff Staff) *Router {
	if prefix == "" {
		prefix = "!"
	}
	return &Router{
		prefix:   prefix,
		gw:       gw,
		reporter: reporter,
		workflow: workflow,
		settings: settings,
		cases:    cases,
		staff:    staff,
	}
}

// HandleMessage is registered as the gateway message handler. Pending
// reviewer replies take precedence over command parsing.
func (r *Router) HandleMessage(ctx context.Context, ev gateway.MessageCreate) {
	if ev.AuthorIsBot || ev.AuthorID == r.gw.SelfID() {
		return
	}
	if r.workflow.HandleMessage(ctx, ev) {
		return
	}
	if !strings.HasPrefix(ev.Content, r.prefix) {
		return
	}
	body := strings.TrimPrefix(ev.Content, r.prefix)
	name, rest := cut(body)

	switch strings.ToLower(name) {
	case "report":
		r.report(ctx, ev, rest)
	case "ru":
		r.ru(ctx, ev, rest)
	}
}

func (r *Router) report(ctx context.Context, ev gateway.MessageCreate, args string) {
	member, reason := cut(args)
	targetID, ok := ParseUser(member)
	if !ok || strings.TrimSpace(reason) == "" {
		r.reply(ctx, ev, fmt.Sprintf("Usage: `%sreport <member> <reason>`", r.prefix))
		return
	}

	origin := ev.Ref
	res, err := r.reporter.SubmitReport(ctx, intake.Submission{
		ReporterID: ev.AuthorID,
		TargetID:   targetID,
		Reason:     reason,
		Origin:     &origin,
	})
	if errors.Is(err, intake.ErrReasonTooLong) {
		r.reply(ctx, ev, intake.ReasonTooLongMsg())
		return
	}
	if err != nil {
		log.WithFields(log.Fields{
			"reporter": ev.AuthorID,
			"status":   res.Status.String(),
			"kind":     models.KindOf(err).String(),
		}).Infof("Report not fully processed: %v", err)
	}
}

func (r *Router) ru(ctx context.Context, ev gateway.MessageCreate, args string) {
	sub, rest := cut(args)
	sub = strings.ToLower(sub)
	if sub == "" {
		r.reply(ctx, ev, r.help())
		return
	}
	if !r.staff.IsStaff(ev.AuthorID) {
		r.reply(ctx, ev, MsgNoPermission)
		return
	}

	switch sub {
	case "blacklist":
		r.blacklist(ctx, ev, rest)
	case "channel":
		r.channel(ctx, ev, rest)
	case "message":
		r.message(ctx, ev, rest)
	case "info":
		r.info(ctx, ev, rest)
	case "open":
		r.open(ctx, ev)
	case "resolve":
		r.resolve(ctx, ev, rest)
	default:
		r.reply(ctx, ev, r.help())
	}
}

func (r *Router) help() string {
	p := r.prefix
	return strings.Join([]string{
		"**Report User**",
		fmt.Sprintf("`%sreport <member> <reason>` report a member to the moderation team", p),
		"Staff commands:",
		fmt.Sprintf("`%sru blacklist <member>` blacklist or unblacklist a reporter", p),
		fmt.Sprintf("`%sru channel <#channel>` set the reports channel", p),
		fmt.Sprintf("`%sru message <text>` set the message sent to reporters", p),
		fmt.Sprintf("`%sru info <case>` show a case", p),
		fmt.Sprintf("`%sru open` list open cases", p),
		fmt.Sprintf("`%sru resolve <case>` close a case without replying", p),
	}, "\n")
}

func (r *Router) blacklist(ctx context.Context, ev gateway.MessageCreate, args string) {
	member, _ := cut(args)
	userID, ok := ParseUser(member)
	if !ok {
		r.reply(ctx, ev, fmt.Sprintf("Usage: `%sru blacklist <member>`", r.prefix))
		return
	}
	blacklisted, err := r.settings.ToggleBlacklist(ctx, userID, ev.AuthorID)
	if err != nil {
		log.WithField("user", userID).Errorf("Failed to toggle blacklist: %v", err)
		r.reply(ctx, ev, MsgSettingsFailed)
		return
	}
	if blacklisted {
		r.reply(ctx, ev, MsgBlacklisted)
	} else {
		r.reply(ctx, ev, MsgUnblacklisted)
	}
}

func (r *Router) channel(ctx context.Context, ev gateway.MessageCreate, args string) {
	arg, _ := cut(args)
	channelID, ok := ParseChannel(arg)
	if !ok {
		r.reply(ctx, ev, fmt.Sprintf("Usage: `%sru channel <#channel>`", r.prefix))
		return
	}
	exists, err := r.gw.ChannelExists(ctx, channelID)
	if err != nil || !exists {
		r.reply(ctx, ev, intake.MsgChannelInvalid)
		return
	}
	if err := r.settings.SetReviewChannel(ctx, channelID); err != nil {
		log.WithField("channel", channelID).Errorf("Failed to set review channel: %v", err)
		r.reply(ctx, ev, MsgSettingsFailed)
		return
	}
	r.reply(ctx, ev, MsgChannelSet)
}

func (r *Router) message(ctx context.Context, ev gateway.MessageCreate, args string) {
	text := strings.TrimSpace(args)
	if text == "" {
		r.reply(ctx, ev, fmt.Sprintf("Usage: `%sru message <text>`", r.prefix))
		return
	}
	if err := r.settings.SetAckMessage(ctx, text); err != nil {
		if models.KindOf(err) == models.KindValidation {
			r.reply(ctx, ev, fmt.Sprintf("The message is too long, keep it under %d characters.", gateway.MaxMessageLength))
			return
		}
		log.Errorf("Failed to set acknowledgment message: %v", err)
		r.reply(ctx, ev, MsgSettingsFailed)
		return
	}
	r.reply(ctx, ev, MsgMessageSet)
}

func (r *Router) info(ctx context.Context, ev gateway.MessageCreate, args string) {
	id, ok := r.caseArg(ctx, ev, "info", args)
	if !ok {
		return
	}
	c, err := r.cases.GetCase(ctx, id)
	if errors.Is(err, models.ErrCaseNotFound) {
		r.reply(ctx, ev, caseMissingMsg(id))
		return
	}
	if err != nil {
		log.WithField("case", id).Errorf("Failed to load case: %v", err)
		r.reply(ctx, ev, fmt.Sprintf("Could not load case `#%d`.", id))
		return
	}

	reporter := r.profile(ctx, c.ReporterID)
	target := r.profile(ctx, c.TargetID)
	if _, err := r.gw.SendNotice(ctx, ev.Ref.ChannelID, CaseLog(c, reporter, target)); err != nil {
		log.WithField("case", id).Warnf("Failed to send case info: %v", err)
	}
}

func (r *Router) open(ctx context.Context, ev gateway.MessageCreate) {
	cases, err := r.cases.ListCases(ctx, models.CaseFilter{Status: models.CaseOpen, Limit: 25})
	if err != nil {
		log.Errorf("Failed to list open cases: %v", err)
		r.reply(ctx, ev, "Could not list open cases.")
		return
	}
	if len(cases) == 0 {
		r.reply(ctx, ev, MsgNoOpenCases)
		return
	}
	lines := make([]string, 0, len(cases)+1)
	lines = append(lines, fmt.Sprintf("**Open cases (%d)**", len(cases)))
	for _, c := range cases {
		line := fmt.Sprintf("`#%d` against %s", c.ID, gateway.Mention(c.TargetID))
		if !c.NoticeDelivered() {
			line += " (notice not delivered)"
		}
		lines = append(lines, line)
	}
	r.reply(ctx, ev, strings.Join(lines, "\n"))
}

func (r *Router) resolve(ctx context.Context, ev gateway.MessageCreate, args string) {
	id, ok := r.caseArg(ctx, ev, "resolve", args)
	if !ok {
		return
	}
	outcome, err := r.workflow.ResolveManually(ctx, id, ev.AuthorID, "")
	if err != nil {
		log.WithField("case", id).Errorf("Failed to resolve case: %v", err)
		r.reply(ctx, ev, fmt.Sprintf("Could not resolve case `#%d`.", id))
		return
	}
	switch outcome {
	case models.Resolved:
		r.reply(ctx, ev, fmt.Sprintf("Case `#%d` resolved.", id))
	case models.AlreadyResolved:
		r.reply(ctx, ev, fmt.Sprintf("Case `#%d` is already resolved.", id))
	case models.NotFound:
		r.reply(ctx, ev, caseMissingMsg(id))
	}
}

func (r *Router) caseArg(ctx context.Context, ev gateway.MessageCreate, sub, args string) (int64, bool) {
	arg, _ := cut(args)
	id, err := strconv.ParseInt(strings.TrimPrefix(arg, "#"), 10, 64)
	if err != nil || id <= 0 {
		r.reply(ctx, ev, fmt.Sprintf("Usage: `%sru %s <case>`", r.prefix, sub))
		return 0, false
	}
	return id, true
}

func (r *Router) profile(ctx context.Context, userID string) gateway.Profile {
	p, err := r.gw.FetchUser(ctx, userID)
	if err != nil {
		return gateway.Profile{ID: userID, Username: userID}
	}
	return p
}

func (r *Router) reply(ctx context.Context, ev gateway.MessageCreate, content string) {
	if _, err := r.gw.SendMessage(ctx, ev.Ref.ChannelID, content); err != nil {
		log.WithField("channel", ev.Ref.ChannelID).Warnf("Failed to reply: %v", err)
	}
}

func caseMissingMsg(id int64) string {
	return fmt.Sprintf("Case `#%d` doesn't exist.", id)
}
