// Package orchestrator ties the pipeline stages together: scoring freshly
// discovered events, requesting SMS approval for the best candidates, and
// registering approved events through the browser automation layer.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/sharath018/family-events-backend/config"
	"github.com/sharath018/family-events-backend/internal/auditlog"
	"github.com/sharath018/family-events-backend/internal/automation"
	"github.com/sharath018/family-events-backend/internal/calendar"
	"github.com/sharath018/family-events-backend/internal/event"
	"github.com/sharath018/family-events-backend/internal/scoring"
)

// EventStore is the slice of event persistence the orchestrator needs
type EventStore interface {
	GetByID(ctx context.Context, id uint) (*event.Event, error)
	ListByStatus(ctx context.Context, status event.Status) ([]event.Event, error)
	UpdateScore(ctx context.Context, id uint, score float64, breakdown datatypes.JSON) error
	TransitionStatus(ctx context.Context, id uint, from, to event.Status, reason string) (bool, error)
	SetRegistered(ctx context.Context, id uint, confirmation string) (bool, error)
	SetManualRequired(ctx context.Context, id uint, reason string) (bool, error)
}

// Locker guards each event against concurrent registration across instances
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Publisher emits score history and pipeline outcomes to Kafka
type Publisher interface {
	PublishScore(ctx context.Context, key string, value []byte) error
	PublishOutcome(ctx context.Context, key string, value []byte) error
}

// Automator attempts an unattended registration, degrading to
// manual-required instead of failing
type Automator interface {
	RegisterForEvent(ctx context.Context, e *event.Event) automation.Result
}

// ConflictChecker answers whether a proposed window collides with
// family calendars
type ConflictChecker interface {
	GetConflictDetails(ctx context.Context, proposedStart time.Time, durationMinutes int) *calendar.ConflictDetails
}

// ApprovalSender dispatches the SMS approval request for a candidate
type ApprovalSender interface {
	SendEventForApproval(ctx context.Context, e *event.Event) (string, error)
}

// CalendarWriter places a registered event onto a family calendar
type CalendarWriter interface {
	CreateEvent(ctx context.Context, calendarID, title, description string, start, end time.Time) error
}

// Outcome is the record of one registration attempt, published to the
// pipeline-outcomes topic and collected for reports
type Outcome struct {
	EventID            uint      `json:"event_id"`
	Title              string    `json:"title"`
	Status             string    `json:"status"`
	ConfirmationNumber string    `json:"confirmation_number,omitempty"`
	Message            string    `json:"message,omitempty"`
	AttemptedAt        time.Time `json:"attempted_at"`
}

const registrationLockTTL = 5 * time.Minute

type Service struct {
	store     EventStore
	locker    Locker
	publisher Publisher
	automator Automator
	checker   ConflictChecker
	approvals ApprovalSender
	calWriter CalendarWriter
	auditSvc  auditlog.Service
	profile   *config.FamilyProfile

	maxConcurrent     int
	approvalBatchSize int
}

func NewService(
	store EventStore,
	locker Locker,
	publisher Publisher,
	automator Automator,
	checker ConflictChecker,
	approvals ApprovalSender,
	calWriter CalendarWriter,
	auditSvc auditlog.Service,
	profile *config.FamilyProfile,
	cfg *config.Config,
) *Service {
	maxConcurrent := 2
	batchSize := 3
	if cfg != nil {
		if cfg.MaxConcurrentRegistrations > 0 {
			maxConcurrent = cfg.MaxConcurrentRegistrations
		}
		if cfg.ApprovalBatchSize > 0 {
			batchSize = cfg.ApprovalBatchSize
		}
	}
	return &Service{
		store:             store,
		locker:            locker,
		publisher:         publisher,
		automator:         automator,
		checker:           checker,
		approvals:         approvals,
		calWriter:         calWriter,
		auditSvc:          auditSvc,
		profile:           profile,
		maxConcurrent:     maxConcurrent,
		approvalBatchSize: batchSize,
	}
}

// ===========================
// 🚀 Batch registration for everything the parent has approved
func (s *Service) ProcessApprovedEvents(ctx context.Context) []Outcome {
	approved, err := s.store.ListByStatus(ctx, event.StatusApproved)
	if err != nil {
		log.Printf("❌ Failed to load approved events: %v", err)
		return []Outcome{}
	}
	if len(approved) == 0 {
		return []Outcome{}
	}

	log.Printf("🚀 Processing %d approved event(s), concurrency=%d", len(approved), s.maxConcurrent)

	var mu sync.Mutex
	outcomes := make([]Outcome, 0, len(approved))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)
	for i := range approved {
		e := approved[i]
		g.Go(func() error {
			if outcome, ok := s.registerOne(gctx, e.ID); ok {
				mu.Lock()
				outcomes = append(outcomes, outcome)
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()

	succeeded := 0
	for _, o := range outcomes {
		if o.Status == string(event.StatusRegistered) {
			succeeded++
		}
	}
	log.Printf("📊 Registration batch done: %d attempted, %d registered, %d manual",
		len(outcomes), succeeded, len(outcomes)-succeeded)

	return outcomes
}

// ProcessAutoRegistration kicks off registration for a single event right
// after its approval lands. Safe to call concurrently with the batch path:
// both funnel through the same lock and compare-and-set transitions.
func (s *Service) ProcessAutoRegistration(ctx context.Context, eventID uint, approvalID string) {
	log.Printf("⚡ Auto-registration triggered for event %d (approval %s)", eventID, approvalID)
	s.registerOne(ctx, eventID)
}

// registerOne performs one locked registration attempt. Returns false when
// the attempt was skipped because another worker holds the lock or already
// moved the event to a terminal state.
func (s *Service) registerOne(ctx context.Context, eventID uint) (Outcome, bool) {
	lockKey := fmt.Sprintf("registration:lock:%d", eventID)
	acquired, err := s.locker.Acquire(ctx, lockKey, registrationLockTTL)
	if err != nil {
		log.Printf("⚠️ Lock acquisition failed for event %d: %v", eventID, err)
		return Outcome{}, false
	}
	if !acquired {
		log.Printf("⏭️ Event %d is already being registered elsewhere, skipping", eventID)
		return Outcome{}, false
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), lockKey); err != nil {
			log.Printf("⚠️ Failed to release lock %s: %v", lockKey, err)
		}
	}()

	// Re-read under the lock: the event may have been registered by a
	// previous attempt between listing and locking
	e, err := s.store.GetByID(ctx, eventID)
	if err != nil {
		log.Printf("❌ Failed to load event %d: %v", eventID, err)
		return Outcome{}, false
	}
	if e.Status != event.StatusApproved {
		if e.Status.Terminal() {
			log.Printf("⏭️ Event %d already finished as %s, skipping", eventID, e.Status)
		} else {
			log.Printf("⏭️ Event %d is %s, not approved, skipping", eventID, e.Status)
		}
		return Outcome{}, false
	}

	res := s.automator.RegisterForEvent(ctx, e)

	outcome := Outcome{
		EventID:     e.ID,
		Title:       e.Title,
		Message:     res.Message,
		AttemptedAt: time.Now(),
	}

	if res.Success {
		moved, err := s.store.SetRegistered(ctx, e.ID, res.ConfirmationNumber)
		if err != nil {
			log.Printf("❌ Failed to mark event %d registered: %v", e.ID, err)
			return Outcome{}, false
		}
		if !moved {
			log.Printf("⏭️ Event %d already left approved state, skipping", e.ID)
			return Outcome{}, false
		}
		outcome.Status = string(event.StatusRegistered)
		outcome.ConfirmationNumber = res.ConfirmationNumber
		s.writeBackToCalendars(ctx, e, res.ConfirmationNumber)
	} else {
		moved, err := s.store.SetManualRequired(ctx, e.ID, res.Message)
		if err != nil {
			log.Printf("❌ Failed to mark event %d manual-required: %v", e.ID, err)
			return Outcome{}, false
		}
		if !moved {
			log.Printf("⏭️ Event %d already left approved state, skipping", e.ID)
			return Outcome{}, false
		}
		outcome.Status = string(event.StatusManualRequired)
	}

	s.auditSvc.LogAction(ctx, &e.ID, auditlog.ActionRegistrationAttempted, map[string]interface{}{
		"title":               e.Title,
		"outcome":             outcome.Status,
		"confirmation_number": outcome.ConfirmationNumber,
		"message":             res.Message,
	}, "success")

	s.publishOutcome(ctx, outcome)
	return outcome, true
}

// writeBackToCalendars records the registered event on every member
// calendar. Best effort: a calendar failure never undoes a registration.
func (s *Service) writeBackToCalendars(ctx context.Context, e *event.Event, confirmation string) {
	if s.calWriter == nil || s.profile == nil {
		return
	}
	description := e.Description
	if confirmation != "" {
		description = fmt.Sprintf("%s\nConfirmation: %s", description, confirmation)
	}
	for _, m := range s.profile.Members {
		if m.CalendarID == "" {
			continue
		}
		if err := s.calWriter.CreateEvent(ctx, m.CalendarID, e.Title, description, e.StartTime, e.EndTime()); err != nil {
			log.Printf("⚠️ Calendar write-back failed for %s: %v", m.Name, err)
		}
	}
}

func (s *Service) publishOutcome(ctx context.Context, outcome Outcome) {
	if s.publisher == nil {
		return
	}
	payload, err := json.Marshal(outcome)
	if err != nil {
		log.Printf("⚠️ Failed to marshal outcome for event %d: %v", outcome.EventID, err)
		return
	}
	key := fmt.Sprintf("%d", outcome.EventID)
	if err := s.publisher.PublishOutcome(ctx, key, payload); err != nil {
		log.Printf("⚠️ Failed to publish outcome for event %d: %v", outcome.EventID, err)
	}
}

// ===========================
// 🔍 Score new discoveries and request approval for the best candidates
func (s *Service) RunDiscoveryCycle(ctx context.Context) error {
	discovered, err := s.store.ListByStatus(ctx, event.StatusDiscovered)
	if err != nil {
		return fmt.Errorf("failed to load discovered events: %w", err)
	}
	if len(discovered) == 0 {
		return nil
	}

	log.Printf("🔍 Discovery cycle: scoring %d event(s)", len(discovered))

	results := scoring.ScoreEvents(discovered, s.profile, time.Now())
	for _, r := range results {
		s.persistScore(ctx, r)
	}

	sent := 0
	for _, r := range results {
		if sent >= s.approvalBatchSize {
			break
		}
		if r.HasError() || r.Event == nil {
			continue
		}
		e := r.Event

		details := s.checker.GetConflictDetails(ctx, e.StartTime, e.DurationMinutes)
		if details.HasConflict {
			log.Printf("⏭️ Event %d (%s) conflicts with family calendar, skipping", e.ID, e.Title)
			continue
		}
		for _, w := range details.Warnings {
			log.Printf("⚠️ Event %d: %s", e.ID, w)
		}

		if _, err := s.approvals.SendEventForApproval(ctx, e); err != nil {
			log.Printf("❌ Failed to request approval for event %d: %v", e.ID, err)
			continue
		}
		moved, err := s.store.TransitionStatus(ctx, e.ID, event.StatusDiscovered, event.StatusPending, "")
		if err != nil || !moved {
			log.Printf("⚠️ Event %d did not move to pending (moved=%v err=%v)", e.ID, moved, err)
			continue
		}
		sent++
	}

	log.Printf("📨 Discovery cycle done: %d approval request(s) sent", sent)
	return nil
}

func (s *Service) persistScore(ctx context.Context, r scoring.Result) {
	if r.Event == nil {
		return
	}
	breakdown, err := json.Marshal(r.Breakdown)
	if err != nil {
		log.Printf("⚠️ Failed to marshal score breakdown for event %d: %v", r.Event.ID, err)
		return
	}
	if err := s.store.UpdateScore(ctx, r.Event.ID, r.Total, datatypes.JSON(breakdown)); err != nil {
		log.Printf("❌ Failed to persist score for event %d: %v", r.Event.ID, err)
		return
	}

	s.auditSvc.LogAction(ctx, &r.Event.ID, auditlog.ActionEventScored, map[string]interface{}{
		"title": r.Event.Title,
		"score": r.Total,
		"error": r.Err,
	}, "success")

	if s.publisher != nil {
		record := struct {
			EventID   uint              `json:"event_id"`
			Title     string            `json:"title"`
			Total     float64           `json:"total"`
			Breakdown scoring.Breakdown `json:"breakdown"`
			Error     string            `json:"error,omitempty"`
			ScoredAt  time.Time         `json:"scored_at"`
		}{r.Event.ID, r.Event.Title, r.Total, r.Breakdown, r.Err, time.Now()}
		payload, err := json.Marshal(record)
		if err == nil {
			if err := s.publisher.PublishScore(ctx, fmt.Sprintf("%d", r.Event.ID), payload); err != nil {
				log.Printf("⚠️ Failed to publish score for event %d: %v", r.Event.ID, err)
			}
		}
	}
}
