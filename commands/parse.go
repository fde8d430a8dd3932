package commands

import (
	"strings"

	"report-case-service/gateway"
	"report-case-service/models"
)

// cut splits off the first whitespace separated word. rest keeps its inner
// spacing so free text arguments survive.
func cut(s string) (word, rest string) {
	s = strings.TrimLeft(s, " \t\n")
	i := strings.IndexAny(s, " \t\n")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i+1:])
}

// ParseUser accepts <@id>, <@!id> or a bare id
func ParseUser(s string) (string, bool) {
	if strings.HasPrefix(s, "<@") && strings.HasSuffix(s, ">") {
		s = strings.TrimPrefix(strings.TrimSuffix(s[2:], ">"), "!")
	}
	return s, isSnowflake(s)
}

// ParseChannel accepts <#id> or a bare id
func ParseChannel(s string) (string, bool) {
	if strings.HasPrefix(s, "<#") && strings.HasSuffix(s, ">") {
		s = s[2 : len(s)-1]
	}
	return s, isSnowflake(s)
}

func isSnowflake(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// CaseLog renders the info card of a case. It carries no case footer so
// reactions on it never start a resolution.
func CaseLog(c *models.Case, reporter, target gateway.Profile) gateway.Notice {
	return gateway.Notice{
		Title: "Report Log",
		Color: gateway.ColorRed,
		Fields: []gateway.Field{
			{Name: "Reported by", Value: reporter.Tag()},
			{Name: "Against", Value: target.Tag()},
			{Name: "Reason", Value: c.Reason},
			{Name: "Status", Value: string(c.Status)},
		},
		Timestamp: c.CreatedAt,
	}
}
