package auditlog

import (
	"time"
)

// AuditLog represents the audit_logs table. Every pipeline transition
// (discovery, scoring, approval, registration attempt, report) leaves a row.
type AuditLog struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID   *uint     `gorm:"index" json:"event_id"` // nullable (e.g. failed intake)
	Action    string    `gorm:"size:100;not null;index" json:"action"`
	Details   string    `gorm:"type:jsonb" json:"details"` // freeform JSON details
	Status    string    `gorm:"size:20;not null;index" json:"status"` // success/failure
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// TableName overrides table name for AuditLog
func (AuditLog) TableName() string {
	return "audit_logs"
}

// Known pipeline actions
const (
	ActionEventDiscovered       = "EVENT_DISCOVERED"
	ActionEventScored           = "EVENT_SCORED"
	ActionApprovalSent          = "APPROVAL_SENT"
	ActionApprovalDecided       = "APPROVAL_DECIDED"
	ActionRegistrationAttempted = "REGISTRATION_ATTEMPTED"
	ActionReportSent            = "REPORT_SENT"
)

// AuditLogFilter represents filters for querying audit logs
type AuditLogFilter struct {
	EventID  *uint      `json:"event_id"`
	Action   string     `json:"action"`
	Status   string     `json:"status"`
	FromDate *time.Time `json:"from_date"`
	ToDate   *time.Time `json:"to_date"`
	Page     int        `json:"page"`
	Limit    int        `json:"limit"`
}

// PaginatedAuditLogs represents paginated audit log response
type PaginatedAuditLogs struct {
	Data       []AuditLog `json:"data"`
	Total      int64      `json:"total"`
	Page       int        `json:"page"`
	Limit      int        `json:"limit"`
	TotalPages int        `json:"total_pages"`
}
