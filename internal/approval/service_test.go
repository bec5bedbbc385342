package approval

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sharath018/family-events-backend/internal/auditlog"
	"github.com/sharath018/family-events-backend/internal/event"
)

// ===========================
// In-memory fakes

type fakeRepo struct {
	mu         sync.Mutex
	reqs       map[string]*ApprovalRequest
	events     *fakeEventStore
	failDecide bool
}

func newFakeRepo(events *fakeEventStore) *fakeRepo {
	return &fakeRepo{reqs: make(map[string]*ApprovalRequest), events: events}
}

func (f *fakeRepo) Create(_ context.Context, req *ApprovalRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *req
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	f.reqs[req.ID] = &cp
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.reqs, id)
	return nil
}

func (f *fakeRepo) SetMessageSID(_ context.Context, id, sid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if req, ok := f.reqs[id]; ok {
		req.MessageSID = sid
	}
	return nil
}

func (f *fakeRepo) GetByID(_ context.Context, id string) (*ApprovalRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.reqs[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *req
	return &cp, nil
}

func (f *fakeRepo) GetPendingByPhone(_ context.Context, phone string) (*ApprovalRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var newest *ApprovalRequest
	for _, req := range f.reqs {
		if req.PhoneNumber == phone && req.Status == RequestPending {
			if newest == nil || req.CreatedAt.After(newest.CreatedAt) {
				newest = req
			}
		}
	}
	if newest == nil {
		return nil, nil
	}
	cp := *newest
	return &cp, nil
}

func (f *fakeRepo) HasPendingForEvent(_ context.Context, eventID uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, req := range f.reqs {
		if req.EventID == eventID && req.Status == RequestPending {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) ListPending(_ context.Context) ([]ApprovalRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ApprovalRequest
	for _, req := range f.reqs {
		if req.Status == RequestPending {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (f *fakeRepo) Decide(ctx context.Context, id string, status RequestStatus, eventID uint, eventStatus event.Status, reason string) (bool, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDecide {
		return false, false, errors.New("database unavailable")
	}
	req, ok := f.reqs[id]
	if !ok || req.Status != RequestPending {
		return false, false, nil
	}
	now := time.Now()
	req.Status = status
	req.RespondedAt = &now
	moved := false
	if f.events != nil {
		moved, _ = f.events.TransitionStatus(ctx, eventID, event.StatusPending, eventStatus, reason)
	}
	return true, moved, nil
}

func (f *fakeRepo) ExpireStale(ctx context.Context, cutoff time.Time) ([]ApprovalRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var stale []ApprovalRequest
	for _, req := range f.reqs {
		if req.Status == RequestPending && req.CreatedAt.Before(cutoff) {
			req.Status = RequestRejected
			if f.events != nil {
				f.events.TransitionStatus(ctx, req.EventID, event.StatusPending, event.StatusRejected, "approval request expired")
			}
			stale = append(stale, *req)
		}
	}
	return stale, nil
}

type fakeEventStore struct {
	mu     sync.Mutex
	events map[uint]*event.Event
}

func newFakeEventStore(events ...*event.Event) *fakeEventStore {
	m := make(map[uint]*event.Event)
	for _, e := range events {
		m[e.ID] = e
	}
	return &fakeEventStore{events: m}
}

func (f *fakeEventStore) GetByID(_ context.Context, id uint) (*event.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *e
	return &cp, nil
}

func (f *fakeEventStore) TransitionStatus(_ context.Context, id uint, from, to event.Status, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok || e.Status != from {
		return false, nil
	}
	e.Status = to
	return true, nil
}

type fakeGateway struct {
	mu    sync.Mutex
	sent  []string
	fail  bool
	calls int
}

func (f *fakeGateway) Send(_ context.Context, to, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return "", errors.New("twilio unavailable")
	}
	f.sent = append(f.sent, body)
	return "SM123", nil
}

type fakeDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newFakeDeduper() *fakeDeduper {
	return &fakeDeduper{seen: make(map[string]bool)}
}

func (f *fakeDeduper) MarkProcessed(_ context.Context, sid string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen[sid] {
		return false, nil
	}
	f.seen[sid] = true
	return true, nil
}

type noopAudit struct{}

func (noopAudit) LogAction(context.Context, *uint, string, map[string]interface{}, string) error {
	return nil
}
func (noopAudit) GetAuditLogs(context.Context, auditlog.AuditLogFilter) (*auditlog.PaginatedAuditLogs, error) {
	return nil, nil
}

const testPhone = "+15550001111"

func pendingFixture(t *testing.T) (*Service, *fakeRepo, *fakeEventStore, string) {
	t.Helper()
	ev := &event.Event{ID: 42, Title: "Science Day", Status: event.StatusPending, StartTime: time.Now().Add(5 * 24 * time.Hour)}
	store := newFakeEventStore(ev)
	repo := newFakeRepo(store)
	svc := NewService(repo, &fakeGateway{}, newFakeDeduper(), noopAudit{}, testPhone)

	req := &ApprovalRequest{ID: "req-1", EventID: 42, PhoneNumber: testPhone, Status: RequestPending}
	if err := repo.Create(context.Background(), req); err != nil {
		t.Fatalf("fixture create failed: %v", err)
	}
	return svc, repo, store, req.ID
}

// ===========================
// 📤 Send

func TestSendEventForApproval(t *testing.T) {
	gw := &fakeGateway{}
	ev := &event.Event{ID: 7, Title: "Zoo Trip", Status: event.StatusDiscovered, StartTime: time.Now().Add(72 * time.Hour)}
	repo := newFakeRepo(newFakeEventStore(ev))
	svc := NewService(repo, gw, newFakeDeduper(), noopAudit{}, testPhone)

	id, err := svc.SendEventForApproval(context.Background(), ev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == "" {
		t.Fatal("expected an approval id")
	}
	if len(gw.sent) != 1 {
		t.Fatalf("expected 1 SMS, got %d", len(gw.sent))
	}

	pending, _ := repo.ListPending(context.Background())
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending request, got %d", len(pending))
	}
}

func TestSendEventForApprovalDispatchFailureLeavesNoPendingRecord(t *testing.T) {
	gw := &fakeGateway{fail: true}
	ev := &event.Event{ID: 7, Title: "Zoo Trip", Status: event.StatusDiscovered, StartTime: time.Now().Add(72 * time.Hour)}
	repo := newFakeRepo(newFakeEventStore(ev))
	svc := NewService(repo, gw, newFakeDeduper(), noopAudit{}, testPhone)

	_, err := svc.SendEventForApproval(context.Background(), ev)
	if err == nil {
		t.Fatal("expected error when SMS dispatch fails")
	}

	pending, _ := repo.ListPending(context.Background())
	if len(pending) != 0 {
		t.Errorf("expected no dangling pending record, got %d", len(pending))
	}
}

func TestSendEventForApprovalRejectsDuplicatePending(t *testing.T) {
	svc, _, store, _ := pendingFixture(t)
	ev, _ := store.GetByID(context.Background(), 42)

	if _, err := svc.SendEventForApproval(context.Background(), ev); err == nil {
		t.Error("expected error when a pending approval already exists for the event")
	}
}

// ===========================
// 📥 Replies

func TestHandleIncomingResponseEmptyBody(t *testing.T) {
	svc, _, _, _ := pendingFixture(t)

	for _, body := range []string{"", "   ", "\n\t"} {
		if d := svc.HandleIncomingResponse(context.Background(), testPhone, body, "SM1"); d != nil {
			t.Errorf("body %q: expected nil decision, got %+v", body, d)
		}
	}
}

func TestHandleIncomingResponseUnparseable(t *testing.T) {
	svc, _, _, _ := pendingFixture(t)

	if d := svc.HandleIncomingResponse(context.Background(), testPhone, "what is this about?", "SM2"); d != nil {
		t.Errorf("expected nil decision for unparseable reply, got %+v", d)
	}
}

func TestHandleIncomingResponseOrphaned(t *testing.T) {
	repo := newFakeRepo(newFakeEventStore())
	svc := NewService(repo, &fakeGateway{}, newFakeDeduper(), noopAudit{}, testPhone)

	if d := svc.HandleIncomingResponse(context.Background(), "+19998887777", "YES", "SM3"); d != nil {
		t.Errorf("expected nil decision for orphaned reply, got %+v", d)
	}
}

func TestHandleIncomingResponseApproves(t *testing.T) {
	svc, repo, store, reqID := pendingFixture(t)

	d := svc.HandleIncomingResponse(context.Background(), testPhone, "yes please!", "SM4")
	if d == nil {
		t.Fatal("expected a decision")
	}
	if !d.Approved || d.EventID != 42 {
		t.Errorf("unexpected decision %+v", d)
	}

	req, _ := repo.GetByID(context.Background(), reqID)
	if req.Status != RequestApproved {
		t.Errorf("request status = %s, expected approved", req.Status)
	}
	ev, _ := store.GetByID(context.Background(), 42)
	if ev.Status != event.StatusApproved {
		t.Errorf("event status = %s, expected approved", ev.Status)
	}
}

func TestHandleIncomingResponseStorageFailureLeavesBothPending(t *testing.T) {
	svc, repo, store, reqID := pendingFixture(t)
	repo.failDecide = true

	d := svc.HandleIncomingResponse(context.Background(), testPhone, "YES", "SM10")
	if d != nil {
		t.Fatalf("expected nil decision on storage failure, got %+v", d)
	}

	// The decision and the event move together or not at all; a failed
	// write must not strand a terminal request against a pending event
	req, _ := repo.GetByID(context.Background(), reqID)
	if req.Status != RequestPending {
		t.Errorf("request status = %s, expected still pending", req.Status)
	}
	ev, _ := store.GetByID(context.Background(), 42)
	if ev.Status != event.StatusPending {
		t.Errorf("event status = %s, expected still pending", ev.Status)
	}
}

func TestHandleIncomingResponseSecondReplyIgnored(t *testing.T) {
	svc, _, store, _ := pendingFixture(t)
	ctx := context.Background()

	first := svc.HandleIncomingResponse(ctx, testPhone, "YES", "SM5")
	second := svc.HandleIncomingResponse(ctx, testPhone, "NO", "SM6")

	if first == nil {
		t.Fatal("first reply should produce a decision")
	}
	if second != nil {
		t.Errorf("second reply should be discarded, got %+v", second)
	}

	ev, _ := store.GetByID(ctx, 42)
	if ev.Status != event.StatusApproved {
		t.Errorf("event status = %s; the first reply must win exactly once", ev.Status)
	}
}

func TestHandleIncomingResponseDuplicateDelivery(t *testing.T) {
	svc, _, _, _ := pendingFixture(t)
	ctx := context.Background()

	first := svc.HandleIncomingResponse(ctx, testPhone, "YES", "SM7")
	dup := svc.HandleIncomingResponse(ctx, testPhone, "YES", "SM7")

	if first == nil {
		t.Fatal("first delivery should produce a decision")
	}
	if dup != nil {
		t.Errorf("redelivered message should be ignored, got %+v", dup)
	}
}

func TestHandleIncomingResponseConcurrentRace(t *testing.T) {
	svc, repo, store, reqID := pendingFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	var decisions []*Decision

	for _, reply := range []struct{ body, sid string }{
		{"YES", "SM8"},
		{"NO", "SM9"},
	} {
		wg.Add(1)
		go func(body, sid string) {
			defer wg.Done()
			d := svc.HandleIncomingResponse(ctx, testPhone, body, sid)
			mu.Lock()
			defer mu.Unlock()
			if d != nil {
				decisions = append(decisions, d)
			}
		}(reply.body, reply.sid)
	}
	wg.Wait()

	if len(decisions) != 1 {
		t.Fatalf("expected exactly one winning decision, got %d", len(decisions))
	}

	req, _ := repo.GetByID(ctx, reqID)
	if req.Status == RequestPending {
		t.Error("request should be terminal after the race")
	}

	ev, _ := store.GetByID(ctx, 42)
	if ev.Status != event.StatusApproved && ev.Status != event.StatusRejected {
		t.Errorf("event ended in %s; expected exactly one terminal status", ev.Status)
	}
}

// ===========================
// ⏰ Expiry

func TestExpireStale(t *testing.T) {
	svc, repo, store, _ := pendingFixture(t)
	ctx := context.Background()

	// Backdate the fixture request
	repo.mu.Lock()
	for _, req := range repo.reqs {
		req.CreatedAt = time.Now().Add(-48 * time.Hour)
	}
	repo.mu.Unlock()

	n := svc.ExpireStale(ctx, 24*time.Hour)
	if n != 1 {
		t.Fatalf("expected 1 expired request, got %d", n)
	}

	ev, _ := store.GetByID(ctx, 42)
	if ev.Status != event.StatusRejected {
		t.Errorf("event status = %s, expected rejected after expiry", ev.Status)
	}
}

func TestExpireStaleSkipsDecidedRequest(t *testing.T) {
	svc, repo, store, reqID := pendingFixture(t)
	ctx := context.Background()

	// Backdate the request, then let a reply decide it before the sweep
	repo.mu.Lock()
	repo.reqs[reqID].CreatedAt = time.Now().Add(-48 * time.Hour)
	repo.mu.Unlock()

	if d := svc.HandleIncomingResponse(ctx, testPhone, "YES", "SM11"); d == nil {
		t.Fatal("reply should produce a decision")
	}

	n := svc.ExpireStale(ctx, 24*time.Hour)
	if n != 0 {
		t.Fatalf("sweep expired %d request(s); a decided request must not be expired", n)
	}

	req, _ := repo.GetByID(ctx, reqID)
	if req.Status != RequestApproved {
		t.Errorf("request status = %s, expected approved to stand", req.Status)
	}
	ev, _ := store.GetByID(ctx, 42)
	if ev.Status != event.StatusApproved {
		t.Errorf("event status = %s; the sweep must not reject an approved event", ev.Status)
	}
}

func TestParseReply(t *testing.T) {
	tests := []struct {
		body       string
		approved   bool
		recognized bool
	}{
		{"YES", true, true},
		{"yes", true, true},
		{"  Yes please! ", true, true},
		{"ok", true, true},
		{"1", true, true},
		{"NO", false, true},
		{"no thanks", false, true},
		{"skip", false, true},
		{"maybe later", false, false},
		{"🤷", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			approved, recognized := parseReply(tt.body)
			if approved != tt.approved || recognized != tt.recognized {
				t.Errorf("parseReply(%q) = (%v, %v), expected (%v, %v)",
					tt.body, approved, recognized, tt.approved, tt.recognized)
			}
		})
	}
}
