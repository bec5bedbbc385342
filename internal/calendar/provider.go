package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// ErrRateLimited marks a provider rejection caused by quota/rate limiting.
// The checker treats it like an outage: no conflict, explicit warning.
var ErrRateLimited = errors.New("calendar provider rate limited")

// Interval is one busy block on a member's calendar
type Interval struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Summary string    `json:"summary,omitempty"`
}

// Provider is the per-member calendar capability the checker drives.
// Implemented by GoogleProvider in production and by fakes in tests.
type Provider interface {
	FreeBusy(ctx context.Context, calendarID string, start, end time.Time) ([]Interval, error)
	CreateEvent(ctx context.Context, calendarID, title, description string, start, end time.Time) error
}

// ===========================
// 📅 Google Calendar provider
type GoogleProvider struct {
	svc *gcal.Service
}

func NewGoogleProvider(ctx context.Context, credentialsPath string) (*GoogleProvider, error) {
	svc, err := gcal.NewService(ctx,
		option.WithCredentialsFile(credentialsPath),
		option.WithScopes(gcal.CalendarScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to init google calendar client: %w", err)
	}
	return &GoogleProvider{svc: svc}, nil
}

// FreeBusy returns the member's busy blocks inside the window
func (p *GoogleProvider) FreeBusy(ctx context.Context, calendarID string, start, end time.Time) ([]Interval, error) {
	req := &gcal.FreeBusyRequest{
		TimeMin: start.Format(time.RFC3339),
		TimeMax: end.Format(time.RFC3339),
		Items:   []*gcal.FreeBusyRequestItem{{Id: calendarID}},
	}

	resp, err := p.svc.Freebusy.Query(req).Context(ctx).Do()
	if err != nil {
		return nil, translateGoogleError(err)
	}

	cal, ok := resp.Calendars[calendarID]
	if !ok {
		return nil, fmt.Errorf("calendar %s missing from freebusy response", calendarID)
	}
	if len(cal.Errors) > 0 {
		return nil, fmt.Errorf("freebusy error for %s: %s", calendarID, cal.Errors[0].Reason)
	}

	intervals := make([]Interval, 0, len(cal.Busy))
	for _, b := range cal.Busy {
		s, err := time.Parse(time.RFC3339, b.Start)
		if err != nil {
			continue
		}
		e, err := time.Parse(time.RFC3339, b.End)
		if err != nil {
			continue
		}
		intervals = append(intervals, Interval{Start: s, End: e, Summary: "busy"})
	}

	return intervals, nil
}

// CreateEvent writes a confirmed registration back onto a member calendar
func (p *GoogleProvider) CreateEvent(ctx context.Context, calendarID, title, description string, start, end time.Time) error {
	ev := &gcal.Event{
		Summary:     title,
		Description: description,
		Start:       &gcal.EventDateTime{DateTime: start.Format(time.RFC3339)},
		End:         &gcal.EventDateTime{DateTime: end.Format(time.RFC3339)},
	}

	if _, err := p.svc.Events.Insert(calendarID, ev).Context(ctx).Do(); err != nil {
		return translateGoogleError(err)
	}
	return nil
}

// UnavailableProvider stands in when no calendar credentials are
// configured. Every call fails, which the checker degrades to warnings,
// so the rest of the pipeline keeps running.
type UnavailableProvider struct {
	Reason string
}

func (p *UnavailableProvider) FreeBusy(ctx context.Context, calendarID string, start, end time.Time) ([]Interval, error) {
	return nil, fmt.Errorf("calendar provider unavailable: %s", p.Reason)
}

func (p *UnavailableProvider) CreateEvent(ctx context.Context, calendarID, title, description string, start, end time.Time) error {
	return fmt.Errorf("calendar provider unavailable: %s", p.Reason)
}

// translateGoogleError maps quota responses onto ErrRateLimited so the
// checker can pick the right warning wording
func translateGoogleError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == 429 {
			return fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		if gerr.Code == 403 {
			for _, e := range gerr.Errors {
				if e.Reason == "rateLimitExceeded" || e.Reason == "userRateLimitExceeded" || e.Reason == "quotaExceeded" {
					return fmt.Errorf("%w: %v", ErrRateLimited, err)
				}
			}
		}
	}
	return err
}
