package automation

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sharath018/family-events-backend/config"
	"github.com/sharath018/family-events-backend/internal/event"
)

// Result is the structured outcome of one registration attempt. Any
// failure surfaces here as requires_manual_action; the automator never
// lets an error escape to the caller.
type Result struct {
	Success              bool   `json:"success"`
	RequiresManualAction bool   `json:"requires_manual_action"`
	Message              string `json:"message"`
	ConfirmationNumber   string `json:"confirmation_number,omitempty"`
}

// formField is one value we try to place into the registration form,
// with candidate selectors ordered most to least specific
type formField struct {
	label     string
	value     string
	selectors []string
}

var paymentMarkers = []string{
	"credit card", "card number", "payment required", "checkout",
	"billing address", "cvv", "stripe.com", "paypal",
}

var successMarkers = []string{
	"thank you", "you're registered", "you are registered",
	"registration complete", "registration confirmed", "successfully registered",
	"see you there", "spot is reserved",
}

var confirmationPattern = regexp.MustCompile(`(?i)(?:confirmation|reference|booking)\s*(?:number|code|id|#)?\s*[:#]?\s*([A-Z0-9][A-Z0-9-]{3,})`)

// Automator drives the browser engine through third-party registration
// forms with best-effort field heuristics
type Automator struct {
	engine  Engine
	profile *config.FamilyProfile
}

func NewAutomator(engine Engine, profile *config.FamilyProfile) *Automator {
	return &Automator{
		engine:  engine,
		profile: profile,
	}
}

// ===========================
// 🤖 Attempt an unattended registration
func (a *Automator) RegisterForEvent(ctx context.Context, e *event.Event) (result Result) {
	// An automation-engine crash must surface as a failed registration,
	// never as a crashed pipeline
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ Automation panic recovered: %v", r)
			result = manualResult(fmt.Sprintf("automation engine crashed: %v", r))
		}
	}()

	if msg := validateEvent(e); msg != "" {
		return manualResult(msg)
	}

	session, err := a.engine.NewSession(ctx)
	if err != nil {
		return manualResult(fmt.Sprintf("automation engine unavailable: %v", err))
	}
	defer session.Close()

	if err := session.Navigate(ctx, e.RegistrationURL); err != nil {
		return manualResult(fmt.Sprintf("failed to load registration page: %v", err))
	}

	html, err := session.HTML(ctx)
	if err != nil {
		return manualResult(fmt.Sprintf("failed to read registration page: %v", err))
	}
	if containsAny(html, paymentMarkers) {
		return manualResult("payment required; complete the registration manually")
	}

	filled := 0
	for _, field := range a.buildFormFields() {
		for _, selector := range field.selectors {
			if err := session.Fill(ctx, selector, field.value); err == nil {
				filled++
				break
			}
		}
	}
	if filled == 0 {
		return manualResult("no recognizable registration form fields on the page")
	}

	submitted := false
	for _, selector := range []string{"button[type=submit]", "input[type=submit]", "form button"} {
		if err := session.Click(ctx, selector); err == nil {
			submitted = true
			break
		}
	}
	if !submitted {
		return manualResult("could not submit the registration form")
	}

	finalHTML, err := session.HTML(ctx)
	if err != nil {
		return manualResult(fmt.Sprintf("could not read confirmation page: %v", err))
	}

	if containsAny(finalHTML, paymentMarkers) {
		return manualResult("payment required to complete registration")
	}
	if !containsAny(finalHTML, successMarkers) {
		return manualResult("could not verify registration completion")
	}

	confirmation := extractConfirmationNumber(finalHTML)
	log.Printf("✅ Registered for event %d (%s), confirmation=%q", e.ID, e.Title, confirmation)

	return Result{
		Success:            true,
		Message:            "registration completed",
		ConfirmationNumber: confirmation,
	}
}

// validateEvent rejects corrupted input before any network action
func validateEvent(e *event.Event) string {
	if e == nil {
		return "invalid event: nil"
	}
	if e.ID == 0 {
		return "invalid event: missing identifier"
	}
	if strings.TrimSpace(e.Title) == "" {
		return "invalid event: missing title"
	}
	if e.StartTime.IsZero() {
		return "invalid event: missing start time"
	}
	if e.RegistrationURL == "" {
		return "invalid event: missing registration URL"
	}

	u, err := url.Parse(e.RegistrationURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Sprintf("invalid registration URL: %s", e.RegistrationURL)
	}
	return ""
}

// buildFormFields maps the family profile onto common field-name
// heuristics. Order matters: the first selector that takes the value wins.
func (a *Automator) buildFormFields() []formField {
	var fields []formField

	parentName := ""
	parentEmail := ""
	parentPhone := ""
	childAge := ""
	childName := ""
	if a.profile != nil {
		parentName = a.profile.ParentName
		parentEmail = a.profile.ParentEmail
		parentPhone = a.profile.ParentPhone
		if len(a.profile.Children) > 0 {
			childName = a.profile.Children[0].Name
			childAge = strconv.Itoa(a.profile.Children[0].Age)
		}
	}

	if parentName != "" {
		fields = append(fields, formField{
			label: "parent name", value: parentName,
			selectors: []string{"input[name*=parent]", "input#name", "input[name=name]", "input[name*=full_name]", "input[name*=fullname]"},
		})
	}
	if parentEmail != "" {
		fields = append(fields, formField{
			label: "email", value: parentEmail,
			selectors: []string{"input[type=email]", "input[name*=email]", "input#email"},
		})
	}
	if parentPhone != "" {
		fields = append(fields, formField{
			label: "phone", value: parentPhone,
			selectors: []string{"input[type=tel]", "input[name*=phone]", "input[name*=mobile]"},
		})
	}
	if childName != "" {
		fields = append(fields, formField{
			label: "child name", value: childName,
			selectors: []string{"input[name*=child]", "input[name*=participant]", "input[name*=kid]"},
		})
	}
	if childAge != "" {
		fields = append(fields, formField{
			label: "child age", value: childAge,
			selectors: []string{"input[name*=age]", "select[name*=age]"},
		})
	}

	return fields
}

// extractConfirmationNumber pulls a confirmation code from the final
// page, preferring elements that look purpose-built for it
func extractConfirmationNumber(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	confirmation := ""
	doc.Find("[class*=confirmation], [id*=confirmation], [class*=reference], [id*=reference]").
		EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			if m := confirmationPattern.FindStringSubmatch(sel.Text()); m != nil {
				confirmation = m[1]
				return false
			}
			return true
		})
	if confirmation != "" {
		return confirmation
	}

	if m := confirmationPattern.FindStringSubmatch(doc.Text()); m != nil {
		return m[1]
	}
	return ""
}

func manualResult(msg string) Result {
	log.Printf("🖐 Manual action required: %s", msg)
	return Result{
		Success:              false,
		RequiresManualAction: true,
		Message:              msg,
	}
}

func containsAny(html string, markers []string) bool {
	lower := strings.ToLower(html)
	for _, m := range markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
