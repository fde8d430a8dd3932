package blacklist

import "report-case-service/models"

// Source provides the current settings snapshot
type Source interface {
	Current() models.ReportSettings
}

// Guard answers whether a reporter is barred from filing reports
type Guard struct {
	src Source
}

func NewGuard(src Source) *Guard {
	return &Guard{src: src}
}

// IsBlacklisted is a pure read against the latest snapshot.
func (g *Guard) IsBlacklisted(reporterID string) bool {
	_, ok := g.src.Current().Blacklist[reporterID]
	return ok
}
