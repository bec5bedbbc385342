package event

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sharath018/family-events-backend/internal/auditlog"
)

// Service wraps intake and read access for candidate events
type Service struct {
	Repo     Repository
	AuditSvc auditlog.Service
}

func NewService(r Repository, auditSvc auditlog.Service) *Service {
	return &Service{
		Repo:     r,
		AuditSvc: auditSvc,
	}
}

// ===========================
// 🎯 Ingest Candidate Event
// The ingestion layer (site adapters) posts raw candidates here; they
// enter the pipeline in 'discovered' and get scored on the next cycle.
func (s *Service) IngestCandidate(ctx context.Context, req *CreateEventRequest) (*Event, error) {
	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		s.AuditSvc.LogAction(ctx, nil, auditlog.ActionEventDiscovered, map[string]interface{}{
			"title":      req.Title,
			"error":      "invalid start_time format",
			"start_time": req.StartTime,
		}, "failure")
		return nil, errors.New("invalid start_time format. Use RFC3339")
	}

	if req.AgeMin > req.AgeMax {
		return nil, errors.New("age_min must not exceed age_max")
	}
	if req.Cost < 0 {
		return nil, errors.New("cost must not be negative")
	}

	var tagsJSON []byte
	if len(req.Tags) > 0 {
		tagsJSON, _ = json.Marshal(req.Tags)
	}

	e := &Event{
		Title:           req.Title,
		Description:     req.Description,
		StartTime:       startTime,
		DurationMinutes: req.DurationMinutes,
		LocationName:    req.LocationName,
		LocationAddress: req.LocationAddress,
		DistanceMiles:   req.DistanceMiles,
		Cost:            req.Cost,
		AgeMin:          req.AgeMin,
		AgeMax:          req.AgeMax,
		Status:          StatusDiscovered,
		RegistrationURL: req.RegistrationURL,
		Rating:          req.Rating,
		ReviewCount:     req.ReviewCount,
		Tags:            tagsJSON,
	}

	if err := s.Repo.Create(ctx, e); err != nil {
		s.AuditSvc.LogAction(ctx, nil, auditlog.ActionEventDiscovered, map[string]interface{}{
			"title": req.Title,
			"error": err.Error(),
		}, "failure")
		return nil, err
	}

	s.AuditSvc.LogAction(ctx, &e.ID, auditlog.ActionEventDiscovered, map[string]interface{}{
		"event_id":   e.ID,
		"title":      e.Title,
		"start_time": e.StartTime.Format(time.RFC3339),
		"cost":       e.Cost,
	}, "success")

	return e, nil
}

// ===========================
// 🔍 Get Event by ID
func (s *Service) GetEventByID(ctx context.Context, id uint) (*Event, error) {
	return s.Repo.GetByID(ctx, id)
}

// ===========================
// 📄 List Events with Pagination
func (s *Service) ListEvents(ctx context.Context, limit, offset int, search, status string) ([]Event, error) {
	if status != "" && !Status(status).Valid() {
		return nil, errors.New("unknown status filter")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.Repo.List(ctx, limit, offset, search, status)
}

// ===========================
// 📊 Pipeline Stats
func (s *Service) GetStats(ctx context.Context) (*EventStatsResponse, error) {
	return s.Repo.GetStats(ctx)
}
