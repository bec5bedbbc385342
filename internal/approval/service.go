package approval

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sharath018/family-events-backend/internal/auditlog"
	"github.com/sharath018/family-events-backend/internal/event"
)

// Reply keywords, matched case-insensitively token by token
var (
	affirmativeWords = map[string]bool{
		"yes": true, "y": true, "yeah": true, "yep": true,
		"approve": true, "approved": true, "ok": true, "okay": true,
		"sure": true, "1": true,
	}
	negativeWords = map[string]bool{
		"no": true, "n": true, "nope": true,
		"reject": true, "rejected": true, "skip": true, "pass": true, "2": true,
	}
)

// ReplyDeduper drops duplicate webhook deliveries by message SID
type ReplyDeduper interface {
	MarkProcessed(ctx context.Context, messageSID string, ttl time.Duration) (bool, error)
}

// Registrar is the registration kick-off implemented by the orchestrator.
// Declared here so the approval flow can trigger it without an import cycle.
type Registrar interface {
	ProcessAutoRegistration(ctx context.Context, eventID uint, approvalID string)
}

// Service is the SMS approval state machine: pending → approved/rejected,
// terminal states final.
type Service struct {
	repo      Repository
	gateway   Gateway
	deduper   ReplyDeduper
	auditSvc  auditlog.Service
	registrar Registrar

	parentPhone string
	dedupTTL    time.Duration
}

func NewService(repo Repository, gateway Gateway, deduper ReplyDeduper, auditSvc auditlog.Service, parentPhone string) *Service {
	return &Service{
		repo:        repo,
		gateway:     gateway,
		deduper:     deduper,
		auditSvc:    auditSvc,
		parentPhone: parentPhone,
		dedupTTL:    48 * time.Hour,
	}
}

// SetRegistrar wires the orchestrator in after construction (the
// orchestrator itself depends on this service for the discovery cycle)
func (s *Service) SetRegistrar(r Registrar) {
	s.registrar = r
}

// ===========================
// 📤 Send an event out for approval
// Either both the pending record and the SMS dispatch succeed, or the
// attempt fails with no pending record left behind.
func (s *Service) SendEventForApproval(ctx context.Context, e *event.Event) (string, error) {
	if e == nil || e.ID == 0 {
		return "", errors.New("invalid event for approval")
	}

	pending, err := s.repo.HasPendingForEvent(ctx, e.ID)
	if err != nil {
		return "", fmt.Errorf("failed to check pending approvals: %w", err)
	}
	if pending {
		return "", errors.New("approval already pending for this event")
	}

	req := &ApprovalRequest{
		ID:          uuid.NewString(),
		EventID:     e.ID,
		PhoneNumber: s.parentPhone,
		Status:      RequestPending,
	}
	if err := s.repo.Create(ctx, req); err != nil {
		return "", fmt.Errorf("failed to create approval request: %w", err)
	}

	// Retry transient gateway failures before giving up
	var sid string
	op := func() error {
		var sendErr error
		sid, sendErr = s.gateway.Send(ctx, s.parentPhone, formatApprovalMessage(e))
		return sendErr
	}
	err = backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx))
	if err != nil {
		// Roll back so no dangling pending record is observable
		if delErr := s.repo.Delete(ctx, req.ID); delErr != nil {
			log.Printf("❌ Failed to roll back approval %s after SMS failure: %v", req.ID, delErr)
		}
		s.auditSvc.LogAction(ctx, &e.ID, auditlog.ActionApprovalSent, map[string]interface{}{
			"approval_id": req.ID,
			"error":       err.Error(),
		}, "failure")
		return "", fmt.Errorf("failed to dispatch approval SMS: %w", err)
	}

	req.MessageSID = sid
	if err := s.repo.SetMessageSID(ctx, req.ID, sid); err != nil {
		log.Printf("⚠️ Failed to record message SID for approval %s: %v", req.ID, err)
	}

	s.auditSvc.LogAction(ctx, &e.ID, auditlog.ActionApprovalSent, map[string]interface{}{
		"approval_id": req.ID,
		"message_sid": sid,
		"to":          s.parentPhone,
	}, "success")

	log.Printf("📱 Approval request %s sent for event %d (%s)", req.ID, e.ID, e.Title)
	return req.ID, nil
}

// ===========================
// 📥 Handle an inbound SMS reply
// Returns nil for anything that is not a clean decision: empty or
// unparseable content, an unknown sender, a duplicate delivery, or a
// request that was already decided. Never returns an error for malformed
// input.
func (s *Service) HandleIncomingResponse(ctx context.Context, phoneNumber, messageBody, messageSID string) *Decision {
	body := strings.TrimSpace(messageBody)
	if body == "" {
		return nil
	}

	approved, recognized := parseReply(body)
	if !recognized {
		log.Printf("ℹ️ Unrecognized reply from %s: %q", phoneNumber, truncate(body, 60))
		return nil
	}

	// Duplicate webhook deliveries carry the same message SID
	if messageSID != "" && s.deduper != nil {
		fresh, err := s.deduper.MarkProcessed(ctx, messageSID, s.dedupTTL)
		if err != nil {
			// Dedup is an optimization; the status CAS below is the guard
			log.Printf("⚠️ Reply dedup unavailable: %v", err)
		} else if !fresh {
			log.Printf("ℹ️ Duplicate delivery of message %s ignored", messageSID)
			return nil
		}
	}

	req, err := s.repo.GetPendingByPhone(ctx, phoneNumber)
	if err != nil {
		log.Printf("❌ Failed to look up pending approval for %s: %v", phoneNumber, err)
		return nil
	}
	if req == nil {
		log.Printf("ℹ️ Orphaned reply from %s; no pending approval", phoneNumber)
		return nil
	}

	newStatus := RequestRejected
	eventStatus := event.StatusRejected
	if approved {
		newStatus = RequestApproved
		eventStatus = event.StatusApproved
	}

	reason := ""
	if !approved {
		reason = "declined via SMS"
	}

	// First durably recorded reply wins; a lost race means the request
	// went terminal under us and this reply is discarded. The request and
	// event move in one transaction.
	won, moved, err := s.repo.Decide(ctx, req.ID, newStatus, req.EventID, eventStatus, reason)
	if err != nil {
		log.Printf("❌ Failed to record decision for approval %s: %v", req.ID, err)
		return nil
	}
	if !won {
		log.Printf("ℹ️ Approval %s already decided; discarding reply %s", req.ID, messageSID)
		return nil
	}
	if !moved {
		log.Printf("⚠️ Event %d was not pending when approval %s resolved", req.EventID, req.ID)
	}

	s.auditSvc.LogAction(ctx, &req.EventID, auditlog.ActionApprovalDecided, map[string]interface{}{
		"approval_id": req.ID,
		"approved":    approved,
		"message_sid": messageSID,
	}, "success")

	decision := &Decision{
		ApprovalID: req.ID,
		EventID:    req.EventID,
		Approved:   approved,
		Status:     newStatus,
	}

	// Approved events go straight into the registration path
	if approved && s.registrar != nil {
		s.registrar.ProcessAutoRegistration(ctx, req.EventID, req.ID)
	}

	return decision
}

// ===========================
// 📋 List pending approvals
func (s *Service) ListPending(ctx context.Context) ([]ApprovalRequest, error) {
	return s.repo.ListPending(ctx)
}

// ===========================
// ⏰ Expire stale pending approvals so events do not wedge in 'pending'
func (s *Service) ExpireStale(ctx context.Context, ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)
	stale, err := s.repo.ExpireStale(ctx, cutoff)
	if err != nil {
		log.Printf("❌ Approval expiry sweep failed: %v", err)
		return len(stale)
	}

	if len(stale) > 0 {
		log.Printf("⏰ Expired %d stale approval request(s)", len(stale))
	}
	return len(stale)
}

// parseReply maps free text onto approve/reject. The earliest recognized
// keyword wins so "yes please" and "no thanks" both parse.
func parseReply(body string) (approved bool, recognized bool) {
	for _, token := range strings.Fields(strings.ToLower(body)) {
		token = strings.Trim(token, ".,!?:;\"'")
		if affirmativeWords[token] {
			return true, true
		}
		if negativeWords[token] {
			return false, true
		}
	}
	return false, false
}

func formatApprovalMessage(e *event.Event) string {
	var b strings.Builder
	b.WriteString("🎪 New family event found!\n")
	b.WriteString(e.Title + "\n")
	b.WriteString("📅 " + e.StartTime.Format("Mon Jan 2, 3:04 PM") + "\n")
	if e.LocationName != "" {
		b.WriteString("📍 " + e.LocationName + "\n")
	}
	if e.Cost == 0 {
		b.WriteString("💲 Free\n")
	} else {
		b.WriteString(fmt.Sprintf("💲 $%.2f\n", e.Cost))
	}
	b.WriteString(fmt.Sprintf("👶 Ages %d-%d\n", e.AgeMin, e.AgeMax))
	b.WriteString(fmt.Sprintf("⭐ Score %.2f\n", e.Score))
	b.WriteString("Reply YES to register or NO to skip.")
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
