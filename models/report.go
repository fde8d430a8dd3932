package models

// SubmitReportRequest is the operator API payload for filing a report
type SubmitReportRequest struct {
	ReporterID string `json:"reporter_id" binding:"required"`
	TargetID   string `json:"target_id"`
	Reason     string `json:"reason"`
}

// SubmitReportResponse is returned for accepted reports
type SubmitReportResponse struct {
	Success         bool   `json:"success"`
	CaseID          int64  `json:"case_id,omitempty"`
	NoticeDelivered bool   `json:"notice_delivered"`
	Message         string `json:"message,omitempty"`
}
