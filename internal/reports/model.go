package reports

import "time"

// Export formats
const (
	FormatCSV   = "csv"
	FormatExcel = "excel"
	FormatPDF   = "pdf"
)

// PipelineOutcome is one registration attempt as recorded from the
// pipeline-outcomes topic
type PipelineOutcome struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	EventID            uint      `gorm:"index" json:"event_id"`
	Title              string    `json:"title"`
	Status             string    `gorm:"index" json:"status"`
	ConfirmationNumber string    `json:"confirmation_number,omitempty"`
	Message            string    `json:"message,omitempty"`
	AttemptedAt        time.Time `json:"attempted_at"`
	CreatedAt          time.Time `json:"created_at"`
}

func (PipelineOutcome) TableName() string {
	return "pipeline_outcomes"
}

// Summary aggregates outcomes over a reporting window
type Summary struct {
	WindowStart    time.Time         `json:"window_start"`
	WindowEnd      time.Time         `json:"window_end"`
	TotalAttempts  int               `json:"total_attempts"`
	Registered     int               `json:"registered"`
	ManualRequired int               `json:"manual_required"`
	Outcomes       []PipelineOutcome `json:"outcomes"`
}

// DeliveryResult reports how a summary left the system. When email
// delivery fails the report is written to disk instead and Fallback is
// set to "file_saved".
type DeliveryResult struct {
	Success  bool   `json:"success"`
	Fallback string `json:"fallback,omitempty"`
	Path     string `json:"path,omitempty"`
	Message  string `json:"message,omitempty"`
}
