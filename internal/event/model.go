package event

import (
	"time"

	"gorm.io/datatypes"
)

// ============================
// 🔶 Event lifecycle status
type Status string

const (
	StatusDiscovered     Status = "discovered"
	StatusPending        Status = "pending"
	StatusApproved       Status = "approved"
	StatusRejected       Status = "rejected"
	StatusRegistered     Status = "registered"
	StatusManualRequired Status = "manual_required"
)

// Valid reports whether s is one of the known lifecycle states
func (s Status) Valid() bool {
	switch s {
	case StatusDiscovered, StatusPending, StatusApproved,
		StatusRejected, StatusRegistered, StatusManualRequired:
		return true
	}
	return false
}

// Terminal reports whether automation is done with the event
func (s Status) Terminal() bool {
	return s == StatusRegistered || s == StatusManualRequired
}

// ============================
// 🔷 GORM Event Model
type Event struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Title           string     `gorm:"type:varchar(255);not null" json:"title"`
	Description     string     `gorm:"type:text" json:"description"`
	StartTime       time.Time  `gorm:"not null;index" json:"start_time"`
	DurationMinutes int        `gorm:"default:60" json:"duration_minutes"`

	LocationName    string  `gorm:"type:varchar(255)" json:"location_name"`
	LocationAddress string  `gorm:"type:text" json:"location_address"`
	DistanceMiles   float64 `json:"distance_miles"`

	Cost   float64 `gorm:"not null" json:"cost"`
	AgeMin int     `gorm:"not null" json:"age_min"`
	AgeMax int     `gorm:"not null" json:"age_max"`

	Status          Status `gorm:"type:varchar(20);not null;index;default:'discovered'" json:"status"`
	RegistrationURL string `gorm:"type:text" json:"registration_url"`

	ConfirmationNumber *string `gorm:"type:varchar(100)" json:"confirmation_number,omitempty"`
	RejectionReason    *string `gorm:"type:text" json:"rejection_reason,omitempty"`
	FailureReason      *string `gorm:"type:text" json:"failure_reason,omitempty"`

	// Cached score; the Kafka score topic keeps the full history
	Score          float64        `gorm:"default:0;index" json:"score"`
	ScoreBreakdown datatypes.JSON `json:"score_breakdown,omitempty"`

	// Social proof
	Rating      *float64       `json:"rating,omitempty"`
	ReviewCount *int           `json:"review_count,omitempty"`
	Tags        datatypes.JSON `json:"tags,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// EndTime is the proposed calendar window end for conflict checks
func (e *Event) EndTime() time.Time {
	d := e.DurationMinutes
	if d <= 0 {
		d = 60
	}
	return e.StartTime.Add(time.Duration(d) * time.Minute)
}

// ============================
// 🟡 Candidate Event Request (discovery intake)
type CreateEventRequest struct {
	Title           string   `json:"title" binding:"required"`
	Description     string   `json:"description"`
	StartTime       string   `json:"start_time" binding:"required"` // 🛠 RFC3339
	DurationMinutes int      `json:"duration_minutes"`
	LocationName    string   `json:"location_name"`
	LocationAddress string   `json:"location_address"`
	DistanceMiles   float64  `json:"distance_miles"`
	Cost            float64  `json:"cost"`
	AgeMin          int      `json:"age_min"`
	AgeMax          int      `json:"age_max"`
	RegistrationURL string   `json:"registration_url"`
	Rating          *float64 `json:"rating,omitempty"`
	ReviewCount     *int     `json:"review_count,omitempty"`
	Tags            []string `json:"tags,omitempty"`
}

// ============================
// 📊 Pipeline stats response
type EventStatsResponse struct {
	Total          int64 `json:"total"`
	Discovered     int64 `json:"discovered"`
	Pending        int64 `json:"pending"`
	Approved       int64 `json:"approved"`
	Rejected       int64 `json:"rejected"`
	Registered     int64 `json:"registered"`
	ManualRequired int64 `json:"manual_required"`
}
