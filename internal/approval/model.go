package approval

import (
	"time"
)

// ============================
// 🔶 Approval request status (terminal once decided)
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// ============================
// 🔷 GORM Approval Request Model
// At most one pending request exists per event at a time.
type ApprovalRequest struct {
	ID          string        `gorm:"type:varchar(36);primaryKey" json:"id"`
	EventID     uint          `gorm:"not null;index" json:"event_id"`
	PhoneNumber string        `gorm:"type:varchar(20);not null;index" json:"phone_number"`
	Status      RequestStatus `gorm:"type:varchar(10);not null;index;default:'pending'" json:"status"`
	MessageSID  string        `gorm:"type:varchar(64)" json:"message_sid"`
	CreatedAt   time.Time     `gorm:"autoCreateTime;index" json:"created_at"`
	RespondedAt *time.Time    `json:"responded_at,omitempty"`
}

// TableName overrides table name for ApprovalRequest
func (ApprovalRequest) TableName() string {
	return "approval_requests"
}

// ============================
// 🟢 Decision parsed from an inbound reply
type Decision struct {
	ApprovalID string        `json:"approval_id"`
	EventID    uint          `json:"event_id"`
	Approved   bool          `json:"approved"`
	Status     RequestStatus `json:"status"`
}
