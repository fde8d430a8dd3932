package gateway

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// AckEmoji is the reaction reviewers use to take a case.
	AckEmoji = "✅"

	ColorRed = 0xE74C3C

	caseFooterPrefix = "Case "
)

// Discord rejects payloads past these sizes, counted in characters.
const (
	MaxMessageLength = 2000
	MaxFieldValue    = 1024
)

var ErrTooLong = errors.New("exceeds discord length limit")

// ReviewNotice renders the notice published to the review channel. The case
// id goes in the footer so it can be recovered with ParseCaseID.
func ReviewNotice(caseID int64, reporter, target Profile, reason string, at time.Time) Notice {
	return Notice{
		Title:      "User Report",
		Color:      ColorRed,
		AuthorName: reporter.Tag(),
		AuthorIcon: reporter.AvatarURL,
		Fields: []Field{
			{Name: "Against", Value: Truncate(target.Tag(), MaxFieldValue)},
			{Name: "Reason", Value: Truncate(reason, MaxFieldValue)},
		},
		Footer:    CaseFooter(caseID),
		Timestamp: at,
	}
}

// CaseFooter is the footer text carrying a case id
func CaseFooter(caseID int64) string {
	return caseFooterPrefix + strconv.FormatInt(caseID, 10)
}

// ParseCaseID extracts the case id from the first notice of msg
func ParseCaseID(msg Message) (int64, error) {
	if len(msg.Notices) == 0 {
		return 0, fmt.Errorf("message %s has no notice", msg.Ref.MessageID)
	}
	footer := strings.TrimSpace(msg.Notices[0].Footer)
	if !strings.HasPrefix(footer, caseFooterPrefix) {
		return 0, fmt.Errorf("footer %q is not a case footer", footer)
	}
	digits := strings.TrimPrefix(footer, caseFooterPrefix)
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("footer %q is not a case footer", footer)
		}
	}
	id, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("footer %q is not a case footer", footer)
	}
	return id, nil
}

// Mention renders a user mention
func Mention(userID string) string {
	return "<@" + userID + ">"
}

// Truncate cuts s to at most n characters, ending the cut text with an
// ellipsis
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-1]) + "…"
}

// CheckContent rejects message content Discord would refuse
func CheckContent(content string) error {
	if l := utf8.RuneCountInString(content); l > MaxMessageLength {
		return fmt.Errorf("message of %d characters: %w", l, ErrTooLong)
	}
	return nil
}

// CheckLimits rejects a notice with a field Discord would refuse
func (n Notice) CheckLimits() error {
	for _, f := range n.Fields {
		if l := utf8.RuneCountInString(f.Value); l > MaxFieldValue {
			return fmt.Errorf("field %q of %d characters: %w", f.Name, l, ErrTooLong)
		}
	}
	return nil
}
