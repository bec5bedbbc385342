package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sharath018/family-events-backend/internal/auditlog"
)

// Emailer is the delivery channel for report emails
type Emailer interface {
	Send(to []string, subject string, htmlBody string) error
}

type Service struct {
	repo      Repository
	emailer   Emailer
	exporter  Exporter
	auditSvc  auditlog.Service
	reportDir string
	recipient string
	window    time.Duration
}

// NewService builds the reporting service. The configured recipient wins
// over the family profile's parent email; fallback covers the usual case
// where only the profile is set.
func NewService(repo Repository, emailer Emailer, exporter Exporter, auditSvc auditlog.Service, reportDir, recipient, fallbackRecipient string) *Service {
	if reportDir == "" {
		reportDir = "./reports"
	}
	if recipient == "" {
		recipient = fallbackRecipient
	}
	return &Service{
		repo:      repo,
		emailer:   emailer,
		exporter:  exporter,
		auditSvc:  auditSvc,
		reportDir: reportDir,
		recipient: recipient,
		window:    24 * time.Hour,
	}
}

// BuildSummary aggregates all outcomes recorded in the reporting window
func (s *Service) BuildSummary(ctx context.Context) (*Summary, error) {
	now := time.Now()
	since := now.Add(-s.window)

	outcomes, err := s.repo.ListSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline outcomes: %w", err)
	}

	summary := &Summary{
		WindowStart:   since,
		WindowEnd:     now,
		TotalAttempts: len(outcomes),
		Outcomes:      outcomes,
	}
	for _, o := range outcomes {
		switch o.Status {
		case "registered":
			summary.Registered++
		case "manual_required":
			summary.ManualRequired++
		}
	}
	return summary, nil
}

// ===========================
// 📧 Deliver the daily digest, falling back to a file on disk
func (s *Service) SendPipelineReport(ctx context.Context) DeliveryResult {
	summary, err := s.BuildSummary(ctx)
	if err != nil {
		log.Printf("❌ Failed to build pipeline report: %v", err)
		return DeliveryResult{Success: false, Message: err.Error()}
	}

	subject := fmt.Sprintf("Family Events Report: %d registered, %d need attention",
		summary.Registered, summary.ManualRequired)
	body := renderEmailBody(summary)

	if s.recipient != "" {
		if err := s.emailer.Send([]string{s.recipient}, subject, body); err == nil {
			log.Printf("✅ Pipeline report emailed to %s", s.recipient)
			s.auditSvc.LogAction(ctx, nil, auditlog.ActionReportSent, map[string]interface{}{
				"channel":   "email",
				"recipient": s.recipient,
				"attempts":  summary.TotalAttempts,
			}, "success")
			return DeliveryResult{Success: true, Message: "report emailed"}
		} else {
			log.Printf("⚠️ Email delivery failed, falling back to file: %v", err)
		}
	}

	path, err := s.saveToFile(summary)
	if err != nil {
		log.Printf("❌ Report file fallback failed: %v", err)
		s.auditSvc.LogAction(ctx, nil, auditlog.ActionReportSent, map[string]interface{}{
			"channel": "none",
			"error":   err.Error(),
		}, "failure")
		return DeliveryResult{Success: false, Message: fmt.Sprintf("email and file fallback both failed: %v", err)}
	}

	log.Printf("💾 Pipeline report saved to %s", path)
	s.auditSvc.LogAction(ctx, nil, auditlog.ActionReportSent, map[string]interface{}{
		"channel": "file",
		"path":    path,
	}, "success")
	return DeliveryResult{
		Success:  false,
		Fallback: "file_saved",
		Path:     path,
		Message:  "email delivery failed; report saved to disk",
	}
}

// Export renders the current window's summary in the requested format
func (s *Service) Export(ctx context.Context, format string) ([]byte, string, string, error) {
	summary, err := s.BuildSummary(ctx)
	if err != nil {
		return nil, "", "", err
	}
	return s.exporter.Export(format, summary)
}

func (s *Service) saveToFile(summary *Summary) (string, error) {
	if err := os.MkdirAll(s.reportDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	filename := fmt.Sprintf("pipeline_report_%s.json", time.Now().Format("20060102_150405"))
	path := filepath.Join(s.reportDir, filename)

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}
	return path, nil
}

func renderEmailBody(summary *Summary) string {
	var b strings.Builder
	b.WriteString("<h2>Family Events Pipeline Report</h2>")
	b.WriteString(fmt.Sprintf("<p>Window: %s to %s</p>",
		summary.WindowStart.Format("Jan 2 15:04"),
		summary.WindowEnd.Format("Jan 2 15:04")))
	b.WriteString(fmt.Sprintf("<p><b>%d</b> attempts, <b>%d</b> registered, <b>%d</b> need manual action</p>",
		summary.TotalAttempts, summary.Registered, summary.ManualRequired))

	if len(summary.Outcomes) > 0 {
		b.WriteString("<table border=\"1\" cellpadding=\"4\"><tr><th>Event</th><th>Status</th><th>Confirmation</th><th>Notes</th></tr>")
		for _, o := range summary.Outcomes {
			b.WriteString(fmt.Sprintf("<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>",
				o.Title, o.Status, o.ConfirmationNumber, o.Message))
		}
		b.WriteString("</table>")
	} else {
		b.WriteString("<p>No registration attempts in this window.</p>")
	}
	return b.String()
}
