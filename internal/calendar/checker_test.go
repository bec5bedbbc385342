package calendar

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sharath018/family-events-backend/config"
)

// fakeProvider maps calendar IDs to canned busy blocks or errors
type fakeProvider struct {
	busy map[string][]Interval
	errs map[string]error
}

func (f *fakeProvider) FreeBusy(_ context.Context, calendarID string, _, _ time.Time) ([]Interval, error) {
	if err, ok := f.errs[calendarID]; ok {
		return nil, err
	}
	return f.busy[calendarID], nil
}

func (f *fakeProvider) CreateEvent(context.Context, string, string, string, time.Time, time.Time) error {
	return nil
}

func twoMemberProfile() *config.FamilyProfile {
	return &config.FamilyProfile{
		ParentPhone: "+15550001111",
		Children:    []config.Child{{Name: "Maya", Age: 5}},
		Members: []config.Member{
			{ID: "parent1", Name: "Priya", CalendarID: "cal-priya"},
			{ID: "parent2", Name: "Dev", CalendarID: "cal-dev"},
		},
	}
}

func TestGetConflictDetailsAllClear(t *testing.T) {
	provider := &fakeProvider{busy: map[string][]Interval{}}
	checker := NewCheckerService(provider, twoMemberProfile(), time.Second)

	start := time.Now().Add(48 * time.Hour)
	details := checker.GetConflictDetails(context.Background(), start, 90)

	if details.HasConflict {
		t.Error("expected no conflict with empty calendars")
	}
	if len(details.Warnings) != 0 {
		t.Errorf("expected no warnings, got %v", details.Warnings)
	}
	if !details.CalendarAccessible["parent1"] || !details.CalendarAccessible["parent2"] {
		t.Error("expected both calendars accessible")
	}
}

func TestGetConflictDetailsOverlapBlocks(t *testing.T) {
	start := time.Date(2026, 9, 12, 10, 0, 0, 0, time.UTC)
	provider := &fakeProvider{
		busy: map[string][]Interval{
			"cal-priya": {{Start: start.Add(30 * time.Minute), End: start.Add(2 * time.Hour), Summary: "Dentist"}},
		},
	}
	checker := NewCheckerService(provider, twoMemberProfile(), time.Second)

	details := checker.GetConflictDetails(context.Background(), start, 60)

	if !details.HasConflict {
		t.Fatal("expected a blocking conflict")
	}
	if len(details.BlockingConflicts) != 1 {
		t.Fatalf("expected 1 blocking conflict, got %d", len(details.BlockingConflicts))
	}
	if details.BlockingConflicts[0].MemberID != "parent1" {
		t.Errorf("conflict attributed to %s, expected parent1", details.BlockingConflicts[0].MemberID)
	}
}

func TestGetConflictDetailsAdjacentIsWarningOnly(t *testing.T) {
	start := time.Date(2026, 9, 12, 10, 0, 0, 0, time.UTC)
	provider := &fakeProvider{
		busy: map[string][]Interval{
			// Ends 15 minutes before the proposed start
			"cal-dev": {{Start: start.Add(-2 * time.Hour), End: start.Add(-15 * time.Minute), Summary: "Gym"}},
		},
	}
	checker := NewCheckerService(provider, twoMemberProfile(), time.Second)

	details := checker.GetConflictDetails(context.Background(), start, 60)

	if details.HasConflict {
		t.Error("adjacent commitment must not block")
	}
	if !details.HasWarning || len(details.WarningConflicts) != 1 {
		t.Errorf("expected one warning conflict, got %d (warnings: %v)", len(details.WarningConflicts), details.Warnings)
	}
}

func TestGetConflictDetailsInaccessibleCalendarNeverBlocks(t *testing.T) {
	provider := &fakeProvider{
		errs: map[string]error{"cal-priya": errors.New("403 access denied")},
		busy: map[string][]Interval{},
	}
	checker := NewCheckerService(provider, twoMemberProfile(), time.Second)

	details := checker.GetConflictDetails(context.Background(), time.Now().Add(24*time.Hour), 60)

	if details.HasConflict {
		t.Error("inaccessible calendar must never produce a blocking conflict")
	}
	if details.CalendarAccessible["parent1"] {
		t.Error("expected parent1 calendar marked inaccessible")
	}
	if !details.CalendarAccessible["parent2"] {
		t.Error("expected parent2 calendar still accessible")
	}
	if len(details.Warnings) == 0 {
		t.Error("expected a warning about the inaccessible calendar")
	}
}

func TestGetConflictDetailsTotalOutage(t *testing.T) {
	provider := &fakeProvider{
		errs: map[string]error{
			"cal-priya": errors.New("connection refused"),
			"cal-dev":   errors.New("connection refused"),
		},
	}
	checker := NewCheckerService(provider, twoMemberProfile(), time.Second)

	details := checker.GetConflictDetails(context.Background(), time.Now().Add(24*time.Hour), 60)

	if details.HasConflict {
		t.Error("total outage must not report a conflict")
	}
	if len(details.Warnings) == 0 {
		t.Fatal("expected warnings on total outage")
	}

	found := false
	for _, w := range details.Warnings {
		if strings.Contains(w, "completely unavailable") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a warning mentioning complete unavailability, got %v", details.Warnings)
	}
}

func TestGetConflictDetailsRateLimitTreatedAsOutage(t *testing.T) {
	provider := &fakeProvider{
		errs: map[string]error{"cal-priya": ErrRateLimited},
		busy: map[string][]Interval{},
	}
	checker := NewCheckerService(provider, twoMemberProfile(), time.Second)

	details := checker.GetConflictDetails(context.Background(), time.Now().Add(24*time.Hour), 60)

	if details.HasConflict {
		t.Error("rate limiting must not produce a conflict")
	}

	found := false
	for _, w := range details.Warnings {
		if strings.Contains(w, "rate limited") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a rate-limit warning, got %v", details.Warnings)
	}
}
