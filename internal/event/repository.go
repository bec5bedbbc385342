package event

import (
	"context"
	"errors"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrStatusConflict is returned when a compare-and-set transition finds the
// event no longer in the expected status
var ErrStatusConflict = errors.New("event status changed concurrently")

type Repository interface {
	Create(ctx context.Context, e *Event) error
	GetByID(ctx context.Context, id uint) (*Event, error)
	ListByStatus(ctx context.Context, status Status) ([]Event, error)
	List(ctx context.Context, limit, offset int, search string, status string) ([]Event, error)
	GetStats(ctx context.Context) (*EventStatsResponse, error)
	UpdateScore(ctx context.Context, id uint, score float64, breakdown datatypes.JSON) error

	// Compare-and-set transitions. All return (false, nil) when the guard
	// status no longer matches, so callers can tell a lost race from a
	// storage failure.
	TransitionStatus(ctx context.Context, id uint, from, to Status, reason string) (bool, error)
	SetRegistered(ctx context.Context, id uint, confirmation string) (bool, error)
	SetManualRequired(ctx context.Context, id uint, reason string) (bool, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// ===========================
// 🎯 Create Candidate Event
func (r *repository) Create(ctx context.Context, e *Event) error {
	return r.db.WithContext(ctx).Create(e).Error
}

// ===========================
// 🔍 Get Event By ID
func (r *repository) GetByID(ctx context.Context, id uint) (*Event, error) {
	var e Event
	if err := r.db.WithContext(ctx).First(&e, id).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// ===========================
// 📋 List Events By Status (highest score first)
func (r *repository) ListByStatus(ctx context.Context, status Status) ([]Event, error) {
	var events []Event
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("score DESC, id ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

// ===========================
// 📄 List Events With Pagination & Search
func (r *repository) List(ctx context.Context, limit, offset int, search string, status string) ([]Event, error) {
	var events []Event

	query := r.db.WithContext(ctx).Model(&Event{})

	if status != "" {
		query = query.Where("status = ?", status)
	}
	if search != "" {
		ilike := "%" + search + "%"
		query = query.Where("title ILIKE ? OR description ILIKE ?", ilike, ilike)
	}

	err := query.
		Order("start_time ASC").
		Limit(limit).
		Offset(offset).
		Find(&events).Error
	if err != nil {
		return nil, err
	}

	return events, nil
}

// ===========================
// 📊 Pipeline Stats (count per lifecycle status)
func (r *repository) GetStats(ctx context.Context) (*EventStatsResponse, error) {
	stats := &EventStatsResponse{}

	type row struct {
		Status string
		Count  int64
	}
	var rows []row

	err := r.db.WithContext(ctx).
		Model(&Event{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, rw := range rows {
		stats.Total += rw.Count
		switch Status(rw.Status) {
		case StatusDiscovered:
			stats.Discovered = rw.Count
		case StatusPending:
			stats.Pending = rw.Count
		case StatusApproved:
			stats.Approved = rw.Count
		case StatusRejected:
			stats.Rejected = rw.Count
		case StatusRegistered:
			stats.Registered = rw.Count
		case StatusManualRequired:
			stats.ManualRequired = rw.Count
		}
	}

	return stats, nil
}

// ===========================
// 🧮 Update Cached Score
func (r *repository) UpdateScore(ctx context.Context, id uint, score float64, breakdown datatypes.JSON) error {
	return r.db.WithContext(ctx).
		Model(&Event{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"score":           score,
			"score_breakdown": breakdown,
		}).Error
}

// ===========================
// 🔁 Compare-And-Set Status Transition
func (r *repository) TransitionStatus(ctx context.Context, id uint, from, to Status, reason string) (bool, error) {
	updates := map[string]interface{}{"status": to}
	if to == StatusRejected && reason != "" {
		updates["rejection_reason"] = reason
	}

	res := r.db.WithContext(ctx).
		Model(&Event{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ===========================
// ✅ Registered (only from approved)
func (r *repository) SetRegistered(ctx context.Context, id uint, confirmation string) (bool, error) {
	updates := map[string]interface{}{"status": StatusRegistered}
	if confirmation != "" {
		updates["confirmation_number"] = confirmation
	}

	res := r.db.WithContext(ctx).
		Model(&Event{}).
		Where("id = ? AND status = ?", id, StatusApproved).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ===========================
// 🖐 Manual Action Required (only from approved)
func (r *repository) SetManualRequired(ctx context.Context, id uint, reason string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&Event{}).
		Where("id = ? AND status = ?", id, StatusApproved).
		Updates(map[string]interface{}{
			"status":         StatusManualRequired,
			"failure_reason": reason,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
