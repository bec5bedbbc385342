package automation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sharath018/family-events-backend/config"
	"github.com/sharath018/family-events-backend/internal/event"
)

type fakeSession struct {
	pageHTML      string
	finalHTML     string
	navigateErr   error
	fillSelectors map[string]bool
	clicked       bool
	htmlCalls     int
}

func (s *fakeSession) Navigate(ctx context.Context, url string) error { return s.navigateErr }

func (s *fakeSession) Fill(ctx context.Context, selector, value string) error {
	if s.fillSelectors[selector] {
		return nil
	}
	return errors.New("selector not found")
}

func (s *fakeSession) Click(ctx context.Context, selector string) error {
	if selector == "button[type=submit]" {
		s.clicked = true
		return nil
	}
	return errors.New("selector not found")
}

func (s *fakeSession) HTML(ctx context.Context) (string, error) {
	s.htmlCalls++
	if s.htmlCalls == 1 {
		return s.pageHTML, nil
	}
	return s.finalHTML, nil
}

func (s *fakeSession) Close() {}

type fakeEngine struct {
	session    *fakeSession
	sessionErr error
	calls      int
	panicOn    bool
}

func (e *fakeEngine) NewSession(ctx context.Context) (Session, error) {
	e.calls++
	if e.panicOn {
		panic("browser process died")
	}
	if e.sessionErr != nil {
		return nil, e.sessionErr
	}
	return e.session, nil
}

func (e *fakeEngine) Close() {}

func testProfile() *config.FamilyProfile {
	return &config.FamilyProfile{
		ParentName:  "Jordan Smith",
		ParentPhone: "+15550001111",
		ParentEmail: "jordan@example.com",
		Children:    []config.Child{{Name: "Avery", Age: 6}},
	}
}

func testEvent() *event.Event {
	return &event.Event{
		ID:              7,
		Title:           "Junior Robotics Workshop",
		StartTime:       time.Now().Add(72 * time.Hour),
		RegistrationURL: "https://events.example.com/register/robotics",
	}
}

func fillableSession(finalHTML string) *fakeSession {
	return &fakeSession{
		pageHTML: `<form><input type="email" name="email"><input type="tel" name="phone"></form>`,
		fillSelectors: map[string]bool{
			"input[type=email]": true,
			"input[type=tel]":   true,
		},
		finalHTML: finalHTML,
	}
}

func TestRegisterForEvent_CorruptedInputSkipsEngine(t *testing.T) {
	engine := &fakeEngine{}
	a := NewAutomator(engine, testProfile())

	cases := []struct {
		name string
		ev   *event.Event
	}{
		{"nil event", nil},
		{"missing id", &event.Event{Title: "x", StartTime: time.Now(), RegistrationURL: "https://example.com"}},
		{"missing title", &event.Event{ID: 1, StartTime: time.Now(), RegistrationURL: "https://example.com"}},
		{"zero start time", &event.Event{ID: 1, Title: "x", RegistrationURL: "https://example.com"}},
		{"missing url", &event.Event{ID: 1, Title: "x", StartTime: time.Now()}},
		{"bad scheme", &event.Event{ID: 1, Title: "x", StartTime: time.Now(), RegistrationURL: "ftp://example.com/reg"}},
		{"no host", &event.Event{ID: 1, Title: "x", StartTime: time.Now(), RegistrationURL: "https:///register"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := a.RegisterForEvent(context.Background(), tc.ev)
			if res.Success {
				t.Fatal("expected failure for corrupted input")
			}
			if !res.RequiresManualAction {
				t.Fatal("expected manual action to be required")
			}
		})
	}

	if engine.calls != 0 {
		t.Fatalf("engine should not be touched for corrupted input, got %d sessions", engine.calls)
	}
}

func TestRegisterForEvent_EngineUnavailable(t *testing.T) {
	engine := &fakeEngine{sessionErr: ErrNoSessions}
	a := NewAutomator(engine, testProfile())

	res := a.RegisterForEvent(context.Background(), testEvent())
	if res.Success || !res.RequiresManualAction {
		t.Fatalf("expected manual fallback, got %+v", res)
	}
	if !strings.Contains(res.Message, "unavailable") {
		t.Fatalf("unexpected message %q", res.Message)
	}
}

func TestRegisterForEvent_NavigateFailureDegrades(t *testing.T) {
	engine := &fakeEngine{session: &fakeSession{navigateErr: errors.New("net::ERR_NAME_NOT_RESOLVED")}}
	a := NewAutomator(engine, testProfile())

	res := a.RegisterForEvent(context.Background(), testEvent())
	if res.Success || !res.RequiresManualAction {
		t.Fatalf("expected manual fallback, got %+v", res)
	}
	if !strings.Contains(res.Message, "failed to load") {
		t.Fatalf("unexpected message %q", res.Message)
	}
}

func TestRegisterForEvent_PaymentPageDegrades(t *testing.T) {
	session := fillableSession("")
	session.pageHTML = `<form><label>Card Number</label><input name="card"></form>`
	engine := &fakeEngine{session: session}
	a := NewAutomator(engine, testProfile())

	res := a.RegisterForEvent(context.Background(), testEvent())
	if res.Success || !res.RequiresManualAction {
		t.Fatalf("expected manual fallback, got %+v", res)
	}
	if !strings.Contains(res.Message, "payment") {
		t.Fatalf("unexpected message %q", res.Message)
	}
}

func TestRegisterForEvent_NoFormFieldsDegrades(t *testing.T) {
	engine := &fakeEngine{session: &fakeSession{pageHTML: "<p>About our club</p>"}}
	a := NewAutomator(engine, testProfile())

	res := a.RegisterForEvent(context.Background(), testEvent())
	if res.Success || !res.RequiresManualAction {
		t.Fatalf("expected manual fallback, got %+v", res)
	}
	if !strings.Contains(res.Message, "no recognizable") {
		t.Fatalf("unexpected message %q", res.Message)
	}
}

func TestRegisterForEvent_SuccessExtractsConfirmation(t *testing.T) {
	final := `<html><body>
		<h1>Thank you!</h1>
		<div class="confirmation-details">Confirmation Number: ABC-12345</div>
	</body></html>`
	engine := &fakeEngine{session: fillableSession(final)}
	a := NewAutomator(engine, testProfile())

	res := a.RegisterForEvent(context.Background(), testEvent())
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.RequiresManualAction {
		t.Fatal("success should not require manual action")
	}
	if res.ConfirmationNumber != "ABC-12345" {
		t.Fatalf("confirmation = %q, want ABC-12345", res.ConfirmationNumber)
	}
}

func TestRegisterForEvent_UnverifiedCompletionDegrades(t *testing.T) {
	engine := &fakeEngine{session: fillableSession("<p>Processing...</p>")}
	a := NewAutomator(engine, testProfile())

	res := a.RegisterForEvent(context.Background(), testEvent())
	if res.Success || !res.RequiresManualAction {
		t.Fatalf("expected manual fallback, got %+v", res)
	}
	if !strings.Contains(res.Message, "could not verify") {
		t.Fatalf("unexpected message %q", res.Message)
	}
}

func TestRegisterForEvent_PanicRecovered(t *testing.T) {
	engine := &fakeEngine{panicOn: true}
	a := NewAutomator(engine, testProfile())

	res := a.RegisterForEvent(context.Background(), testEvent())
	if res.Success || !res.RequiresManualAction {
		t.Fatalf("expected manual fallback after panic, got %+v", res)
	}
	if !strings.Contains(res.Message, "crashed") {
		t.Fatalf("unexpected message %q", res.Message)
	}
}

func TestExtractConfirmationNumber(t *testing.T) {
	cases := []struct {
		name string
		html string
		want string
	}{
		{"dedicated element", `<div id="confirmation">Reference #QRX-9981</div>`, "QRX-9981"},
		{"body text fallback", `<p>Your booking code: ZZ88TOP</p>`, "ZZ88TOP"},
		{"nothing to find", `<p>Thanks for visiting.</p>`, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := extractConfirmationNumber(tc.html); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}
