package calendar

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sharath018/family-events-backend/config"
)

// warningBuffer is how close another commitment may sit to the proposed
// window before we flag it as a warning (tight but not overlapping)
const warningBuffer = 30 * time.Minute

// Conflict is one existing commitment that collides with (or crowds) the
// proposed event window
type Conflict struct {
	MemberID   string    `json:"member_id"`
	MemberName string    `json:"member_name"`
	Summary    string    `json:"summary"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
}

// ConflictDetails is the full answer for one proposed window. It never
// carries an error: an unreachable calendar degrades to a warning, because
// absence of information is not a conflict.
type ConflictDetails struct {
	HasConflict        bool            `json:"has_conflict"`
	HasWarning         bool            `json:"has_warning"`
	BlockingConflicts  []Conflict      `json:"blocking_conflicts"`
	WarningConflicts   []Conflict      `json:"warning_conflicts"`
	CalendarAccessible map[string]bool `json:"calendar_accessible"`
	Warnings           []string        `json:"warnings"`
}

// CheckerService queries each family member's calendar independently
type CheckerService struct {
	provider Provider
	members  []config.Member
	timeout  time.Duration
}

func NewCheckerService(provider Provider, profile *config.FamilyProfile, timeout time.Duration) *CheckerService {
	var members []config.Member
	if profile != nil {
		members = profile.Members
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CheckerService{
		provider: provider,
		members:  members,
		timeout:  timeout,
	}
}

// ===========================
// 🗓 Check a proposed window against every member calendar
func (s *CheckerService) GetConflictDetails(ctx context.Context, proposedStart time.Time, durationMinutes int) *ConflictDetails {
	details := &ConflictDetails{
		BlockingConflicts:  []Conflict{},
		WarningConflicts:   []Conflict{},
		CalendarAccessible: make(map[string]bool),
		Warnings:           []string{},
	}

	if durationMinutes <= 0 {
		durationMinutes = 60
	}
	proposedEnd := proposedStart.Add(time.Duration(durationMinutes) * time.Minute)

	if len(s.members) == 0 {
		details.Warnings = append(details.Warnings, "no member calendars configured; conflicts not checked")
		details.HasWarning = true
		return details
	}

	var mu sync.Mutex
	var wg sync.WaitGroup

	// Pad the queried window so near-miss commitments show up too
	queryStart := proposedStart.Add(-warningBuffer)
	queryEnd := proposedEnd.Add(warningBuffer)

	for _, member := range s.members {
		wg.Add(1)
		go func(m config.Member) {
			defer wg.Done()

			callCtx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			busy, err := s.provider.FreeBusy(callCtx, m.CalendarID, queryStart, queryEnd)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				details.CalendarAccessible[m.ID] = false
				if errors.Is(err, ErrRateLimited) {
					details.Warnings = append(details.Warnings,
						fmt.Sprintf("calendar for %s rate limited; treating as no conflict", m.Name))
				} else {
					details.Warnings = append(details.Warnings,
						fmt.Sprintf("calendar for %s not accessible: %v", m.Name, err))
				}
				return
			}

			details.CalendarAccessible[m.ID] = true

			for _, interval := range busy {
				c := Conflict{
					MemberID:   m.ID,
					MemberName: m.Name,
					Summary:    interval.Summary,
					Start:      interval.Start,
					End:        interval.End,
				}

				if interval.Start.Before(proposedEnd) && interval.End.After(proposedStart) {
					details.BlockingConflicts = append(details.BlockingConflicts, c)
				} else {
					details.WarningConflicts = append(details.WarningConflicts, c)
					details.Warnings = append(details.Warnings,
						fmt.Sprintf("%s has %q within %d minutes of the proposed time", m.Name, interval.Summary, int(warningBuffer.Minutes())))
				}
			}
		}(member)
	}

	wg.Wait()

	// Total outage reads differently from a partial one
	allDown := true
	for _, ok := range details.CalendarAccessible {
		if ok {
			allDown = false
			break
		}
	}
	if allDown && len(s.members) > 0 {
		details.Warnings = append(details.Warnings,
			"calendar completely unavailable; conflicts could not be checked for any member")
	}

	details.HasConflict = len(details.BlockingConflicts) > 0
	details.HasWarning = len(details.Warnings) > 0 || len(details.WarningConflicts) > 0

	if details.HasConflict {
		log.Printf("⚠️ Conflict check: %d blocking, %d warnings for window starting %s",
			len(details.BlockingConflicts), len(details.Warnings), proposedStart.Format(time.RFC3339))
	}

	return details
}
