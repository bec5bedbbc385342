// Package scoring ranks candidate events for a family profile.
//
// Each factor is normalized to [0,1], then weighted and summed:
// cost 25%, age compatibility 30%, timing 25%, social proof 20%.
// ScoreEvent never panics; malformed input yields a best-effort partial
// score with the problem recorded in the Err field.
package scoring

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/sharath018/family-events-backend/config"
	"github.com/sharath018/family-events-backend/internal/event"
)

// Factor weights. Must sum to 1.
const (
	WeightCost   = 0.25
	WeightAge    = 0.30
	WeightTiming = 0.25
	WeightSocial = 0.20
)

// Breakdown holds the per-factor sub-scores behind a total
type Breakdown struct {
	Cost        float64 `json:"cost"`
	Age         float64 `json:"age_compatibility"`
	Timing      float64 `json:"timing"`
	SocialProof float64 `json:"social_proof"`
	Total       float64 `json:"total"`
}

// Result is the scoring outcome for one event. Err is non-empty when the
// input was malformed; callers must check it instead of expecting a panic.
type Result struct {
	Event     *event.Event `json:"-"`
	Total     float64      `json:"total"`
	Breakdown Breakdown    `json:"breakdown"`
	Err       string       `json:"error,omitempty"`
}

// HasError reports whether scoring hit malformed input
func (r Result) HasError() bool {
	return r.Err != ""
}

// ===========================
// 🧮 Score a single event
func ScoreEvent(e *event.Event, profile *config.FamilyProfile, now time.Time) Result {
	if e == nil {
		return Result{Err: "nil event"}
	}

	var problems []string

	cost := e.Cost
	if cost < 0 {
		problems = append(problems, "negative cost treated as 0")
		cost = 0
	}
	costScore := scoreCost(cost)

	ageScore, ageProblem := scoreAge(e.AgeMin, e.AgeMax, profile)
	if ageProblem != "" {
		problems = append(problems, ageProblem)
	}

	var timingScore float64
	if e.StartTime.IsZero() {
		problems = append(problems, "missing start time")
	} else {
		sweetSpot := 7
		if profile != nil && profile.SweetSpotDays > 0 {
			sweetSpot = profile.SweetSpotDays
		}
		timingScore = scoreTiming(e.StartTime, now, sweetSpot)
	}

	socialScore := scoreSocialProof(e.Rating, e.ReviewCount)

	breakdown := Breakdown{
		Cost:        costScore,
		Age:         ageScore,
		Timing:      timingScore,
		SocialProof: socialScore,
	}
	breakdown.Total = WeightCost*costScore +
		WeightAge*ageScore +
		WeightTiming*timingScore +
		WeightSocial*socialScore

	return Result{
		Event:     e,
		Total:     breakdown.Total,
		Breakdown: breakdown,
		Err:       strings.Join(problems, "; "),
	}
}

// ===========================
// 📋 Score and rank a batch, highest total first, stable on ties
func ScoreEvents(events []event.Event, profile *config.FamilyProfile, now time.Time) []Result {
	results := make([]Result, len(events))
	for i := range events {
		results[i] = ScoreEvent(&events[i], profile, now)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Total > results[j].Total
	})

	return results
}

// scoreCost gives 1.0 for free events and decays with cost.
// At $25 this yields 0.5, at $50 roughly 0.33, never below 0.
func scoreCost(cost float64) float64 {
	return 1.0 / (1.0 + cost/25.0)
}

// scoreAge is the fraction of family children the event's age range fits,
// with partial credit for near misses (within 2 years of the range).
// When no child fits, the factor is capped below 0.5.
func scoreAge(ageMin, ageMax int, profile *config.FamilyProfile) (float64, string) {
	if profile == nil || len(profile.Children) == 0 {
		return 0.5, "no family profile for age scoring"
	}
	if ageMin > ageMax {
		return 0, "age_min exceeds age_max"
	}

	var sum float64
	anyFit := false

	for _, child := range profile.Children {
		if child.Age >= ageMin && child.Age <= ageMax {
			sum += 1.0
			anyFit = true
			continue
		}

		// Distance outside the range, in years
		var dist float64
		if child.Age < ageMin {
			dist = float64(ageMin - child.Age)
		} else {
			dist = float64(child.Age - ageMax)
		}
		if dist < 2 {
			sum += (2 - dist) / 2 * 0.4
		}
	}

	factor := sum / float64(len(profile.Children))
	if !anyFit && factor > 0.45 {
		factor = 0.45
	}
	return factor, ""
}

// scoreTiming peaks at the configured sweet spot (days out), falls toward
// 0.3 for events starting right now, and decays for events far out.
// Past events score 0.
func scoreTiming(start, now time.Time, sweetSpotDays int) float64 {
	daysOut := start.Sub(now).Hours() / 24.0
	if daysOut < 0 {
		return 0
	}

	s := float64(sweetSpotDays)
	if daysOut <= s {
		// Too soon to react: climb linearly from 0.3 up to the peak
		return 0.3 + 0.7*(daysOut/s)
	}

	// Low urgency past the peak: exponential falloff with a two-week scale
	return math.Exp(-(daysOut - s) / 14.0)
}

// scoreSocialProof is neutral (0.5) when no data exists; otherwise the
// rating carries the score and review volume (capped at 50) scales
// confidence in it.
func scoreSocialProof(rating *float64, reviewCount *int) float64 {
	if rating == nil || reviewCount == nil || *reviewCount <= 0 {
		return 0.5
	}

	r := *rating
	if r < 0 {
		r = 0
	}
	if r > 5 {
		r = 5
	}

	reviews := float64(*reviewCount)
	if reviews > 50 {
		reviews = 50
	}

	confidence := 0.5 + 0.5*(reviews/50.0)
	return (r / 5.0) * confidence
}
