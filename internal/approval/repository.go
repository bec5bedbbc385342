package approval

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/sharath018/family-events-backend/internal/event"
)

type Repository interface {
	Create(ctx context.Context, req *ApprovalRequest) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*ApprovalRequest, error)
	// Most recent pending request for the phone number, nil when none exists
	GetPendingByPhone(ctx context.Context, phone string) (*ApprovalRequest, error)
	HasPendingForEvent(ctx context.Context, eventID uint) (bool, error)
	SetMessageSID(ctx context.Context, id, sid string) error
	ListPending(ctx context.Context) ([]ApprovalRequest, error)
	// Compare-and-set terminal decision. The request and its event move
	// in one transaction so neither can go terminal without the other
	// being attempted. won is false when the request was already decided;
	// eventMoved is false when the event had already left pending.
	Decide(ctx context.Context, id string, status RequestStatus, eventID uint, eventStatus event.Status, reason string) (won bool, eventMoved bool, err error)
	// Reject every pending request created before the cutoff, moving each
	// request and its event together. Rows that lose the race to a
	// concurrent reply are skipped, not returned.
	ExpireStale(ctx context.Context, cutoff time.Time) ([]ApprovalRequest, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// ===========================
// 🎯 Create Approval Request
func (r *repository) Create(ctx context.Context, req *ApprovalRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

// ===========================
// ❌ Delete (rollback of a half-created request)
func (r *repository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&ApprovalRequest{}).Error
}

// ===========================
// 🔍 Get By ID
func (r *repository) GetByID(ctx context.Context, id string) (*ApprovalRequest, error) {
	var req ApprovalRequest
	if err := r.db.WithContext(ctx).First(&req, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// ===========================
// 📱 Most Recent Pending For Phone
func (r *repository) GetPendingByPhone(ctx context.Context, phone string) (*ApprovalRequest, error) {
	var req ApprovalRequest
	err := r.db.WithContext(ctx).
		Where("phone_number = ? AND status = ?", phone, RequestPending).
		Order("created_at DESC").
		First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// ===========================
// 🔎 Pending Check Per Event (one active request max)
func (r *repository) HasPendingForEvent(ctx context.Context, eventID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&ApprovalRequest{}).
		Where("event_id = ? AND status = ?", eventID, RequestPending).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ===========================
// 🔖 Record The Dispatched Message SID
func (r *repository) SetMessageSID(ctx context.Context, id, sid string) error {
	return r.db.WithContext(ctx).
		Model(&ApprovalRequest{}).
		Where("id = ?", id).
		Update("message_sid", sid).Error
}

// ===========================
// 📋 List Pending
func (r *repository) ListPending(ctx context.Context) ([]ApprovalRequest, error) {
	var reqs []ApprovalRequest
	err := r.db.WithContext(ctx).
		Where("status = ?", RequestPending).
		Order("created_at ASC").
		Find(&reqs).Error
	if err != nil {
		return nil, err
	}
	return reqs, nil
}

// ===========================
// 🔁 Compare-And-Set Decision (first durably recorded reply wins)
// Both updates commit or neither does, so a crash mid-decision can never
// strand a terminal request against a still-pending event.
func (r *repository) Decide(ctx context.Context, id string, status RequestStatus, eventID uint, eventStatus event.Status, reason string) (bool, bool, error) {
	var won, moved bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&ApprovalRequest{}).
			Where("id = ? AND status = ?", id, RequestPending).
			Updates(map[string]interface{}{
				"status":       status,
				"responded_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		won = true

		updates := map[string]interface{}{"status": eventStatus}
		if eventStatus == event.StatusRejected && reason != "" {
			updates["rejection_reason"] = reason
		}
		evRes := tx.Model(&event.Event{}).
			Where("id = ? AND status = ?", eventID, event.StatusPending).
			Updates(updates)
		if evRes.Error != nil {
			return evRes.Error
		}
		moved = evRes.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, false, err
	}
	return won, moved, nil
}

// ===========================
// ⏰ Expire Stale Pending Requests
func (r *repository) ExpireStale(ctx context.Context, cutoff time.Time) ([]ApprovalRequest, error) {
	var candidates []ApprovalRequest
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", RequestPending, cutoff).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	var expired []ApprovalRequest
	for i := range candidates {
		req := candidates[i]
		won := false
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&ApprovalRequest{}).
				Where("id = ? AND status = ?", req.ID, RequestPending).
				Updates(map[string]interface{}{
					"status":       RequestRejected,
					"responded_at": time.Now().UTC(),
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				// A reply landed between the scan and this update;
				// its decision stands
				return nil
			}
			won = true
			return tx.Model(&event.Event{}).
				Where("id = ? AND status = ?", req.EventID, event.StatusPending).
				Updates(map[string]interface{}{
					"status":           event.StatusRejected,
					"rejection_reason": "approval request expired",
				}).Error
		})
		if err != nil {
			return expired, err
		}
		if won {
			expired = append(expired, req)
		}
	}

	return expired, nil
}
