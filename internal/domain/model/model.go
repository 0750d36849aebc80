// Package model contains the records exchanged between the scoring engine,
// its stores and its callers.
package model

import "time"

// KeyResult is one goal-tracking outcome: an achievement score in [0,1] and
// a positive, finite relative weight.
type KeyResult struct {
	Score  float64 `json:"score" yaml:"score" validate:"gte=0,lte=1"`
	Weight float64 `json:"weight" yaml:"weight" validate:"finite,gt=0"`
}

// CollaborationSignals are the discrete collaboration counts for a period.
type CollaborationSignals struct {
	PeerReviewCount    int  `json:"peer_review_count" yaml:"peer_review_count" validate:"gte=0"`
	DailyPostsInPeriod int  `json:"daily_posts_in_period" yaml:"daily_posts_in_period" validate:"gte=0"`
	HasRetroInsight    bool `json:"has_retro_insight" yaml:"has_retro_insight"`
}

// ActivityRecord holds the raw inputs for one employee in one period.
// TeamID is optional; when empty the roster entry decides the team.
type ActivityRecord struct {
	EmployeeID    string               `json:"employee_id" yaml:"employee_id" validate:"required"`
	PeriodID      string               `json:"period_id" yaml:"period_id" validate:"required,isoweek"`
	TeamID        string               `json:"team_id,omitempty" yaml:"team_id,omitempty"`
	HoursWorked   float64              `json:"hours_worked" yaml:"hours_worked" validate:"finite,gte=0"`
	KeyResults    []KeyResult          `json:"key_results" yaml:"key_results" validate:"dive"`
	Collaboration CollaborationSignals `json:"collaboration" yaml:"collaboration"`
}

// Weights are the EC/OC/CC composite weights expressed as percentages.
type Weights struct {
	EC float64 `json:"ec" yaml:"ec" koanf:"ec"`
	OC float64 `json:"oc" yaml:"oc" koanf:"oc"`
	CC float64 `json:"cc" yaml:"cc" koanf:"cc"`
}

// DefaultWeights returns the 40/50/10 split used when a team has none.
func DefaultWeights() Weights {
	return Weights{EC: 40, OC: 50, CC: 10}
}

// Sum returns EC+OC+CC.
func (w Weights) Sum() float64 {
	return w.EC + w.OC + w.CC
}

// ScoreRecord is the persisted result for one employee in one period.
// WCS depends only on EC, OC, CC and Weights; CheckMark only on HoursWorked
// and OC. FinalScore is WCS scaled by Multiplier.
type ScoreRecord struct {
	EmployeeID  string    `json:"employee_id" yaml:"employee_id"`
	PeriodID    string    `json:"period_id" yaml:"period_id"`
	TeamID      string    `json:"team_id,omitempty" yaml:"team_id,omitempty"`
	HoursWorked float64   `json:"hours_worked" yaml:"hours_worked"`
	EC          float64   `json:"ec" yaml:"ec"`
	OC          float64   `json:"oc" yaml:"oc"`
	CC          float64   `json:"cc" yaml:"cc"`
	WCS         float64   `json:"wcs" yaml:"wcs"`
	CheckMark   bool      `json:"check_mark" yaml:"check_mark"`
	Weights     Weights   `json:"weights" yaml:"weights"`
	Multiplier  float64   `json:"multiplier" yaml:"multiplier"`
	FinalScore  float64   `json:"final_score" yaml:"final_score"`
	ScoredAt    time.Time `json:"scored_at" yaml:"scored_at"`
}

// ScorePatch is an authorized edit. Nil fields are left unchanged; every
// derived field is recomputed after the patch is applied.
type ScorePatch struct {
	HoursWorked *float64 `json:"hours_worked,omitempty"`
	EC          *float64 `json:"ec,omitempty"`
	OC          *float64 `json:"oc,omitempty"`
	CC          *float64 `json:"cc,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p ScorePatch) Empty() bool {
	return p.HoursWorked == nil && p.EC == nil && p.OC == nil && p.CC == nil
}

// TeamWeightConfig is an admin-owned per-team weighting.
type TeamWeightConfig struct {
	TeamID  string  `json:"team_id" yaml:"team_id"`
	Weights Weights `json:"weights" yaml:"weights"`
}

// UserMultiplier is an admin-owned per-employee performance multiplier.
type UserMultiplier struct {
	EmployeeID string  `json:"employee_id" yaml:"employee_id"`
	Multiplier float64 `json:"multiplier" yaml:"multiplier"`
}

// Employee is a roster entry.
type Employee struct {
	ID     string `json:"id" yaml:"id" validate:"required"`
	Name   string `json:"name,omitempty" yaml:"name,omitempty"`
	TeamID string `json:"team_id,omitempty" yaml:"team_id,omitempty"`
}

// History is one employee's score records, most recent period first.
type History struct {
	Employee Employee      `json:"employee" yaml:"employee"`
	Records  []ScoreRecord `json:"records" yaml:"records"`
}

// Submission is an accepted activity waiting to be scored. ID makes retries
// idempotent.
type Submission struct {
	ID         string         `json:"submission_id"`
	Activity   ActivityRecord `json:"activity"`
	ReceivedAt time.Time      `json:"received_at"`
}
