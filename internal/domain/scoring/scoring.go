// Package scoring turns activity records into score records.
package scoring

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/okian/wcs/internal/domain/credit"
	"github.com/okian/wcs/internal/domain/model"
	"github.com/okian/wcs/internal/domain/period"
	"github.com/okian/wcs/internal/domain/personalize"
	"github.com/okian/wcs/pkg/logger"
	"github.com/okian/wcs/pkg/metrics"
)

// Scorer computes a score record from an activity record.
type Scorer interface {
	// Score validates and scores one activity, honoring ctx for cancellation.
	Score(ctx context.Context, in model.ActivityRecord) (model.ScoreRecord, error)
}

// Engine implements Scorer over the credit calculators and a personalization
// resolver.
type Engine struct {
	calendar  *period.Calendar
	resolver  *personalize.Resolver
	tolerance float64
	now       func() time.Time
	logger    logger.Logger
}

var _ Scorer = (*Engine)(nil)

// NewEngine creates an engine. Without options it uses the Monday to Friday
// calendar, default weights and no multipliers.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		resolver:  personalize.NewResolver(nil),
		tolerance: credit.DefaultCheckMarkTolerance,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Score validates in and computes every credit, the weighted WCS, the
// personalized final score and the check mark.
func (e *Engine) Score(ctx context.Context, in model.ActivityRecord) (model.ScoreRecord, error) {
	if err := ctx.Err(); err != nil {
		return model.ScoreRecord{}, fmt.Errorf("context cancelled: %w", err)
	}
	start := time.Now()

	days := e.reportingDays(in.PeriodID)
	if err := in.Validate(days); err != nil {
		metrics.RecordInvalidActivity()
		return model.ScoreRecord{}, err
	}

	policy := credit.Policy{ReportingDays: days}
	c := in.Collaboration
	rec := model.ScoreRecord{
		EmployeeID:  in.EmployeeID,
		PeriodID:    in.PeriodID,
		TeamID:      in.TeamID,
		HoursWorked: in.HoursWorked,
		EC:          credit.Effort(in.HoursWorked),
		OC:          credit.Outcome(in.KeyResults),
		CC:          policy.Collaboration(c.PeerReviewCount, c.DailyPostsInPeriod, c.HasRetroInsight),
	}
	e.derive(ctx, &rec)

	metrics.RecordScoreComputed(float64(time.Since(start).Microseconds())/1000, rec.CheckMark)
	if e.logger != nil {
		e.logger.Debug(ctx, "activity scored",
			logger.String("employee", rec.EmployeeID),
			logger.String("period", rec.PeriodID),
			logger.Float64("wcs", rec.WCS),
			logger.Bool("check_mark", rec.CheckMark),
		)
	}
	return rec, nil
}

// Rescore recomputes WCS, final score and check mark from the stored
// credits and hours under the current configuration.
func (e *Engine) Rescore(ctx context.Context, rec model.ScoreRecord) (model.ScoreRecord, error) {
	if err := ctx.Err(); err != nil {
		return model.ScoreRecord{}, fmt.Errorf("context cancelled: %w", err)
	}
	e.derive(ctx, &rec)
	return rec, nil
}

// ApplyPatch applies an authorized edit and recomputes every derived field.
// Changing hours without an explicit EC re-bands EC.
func (e *Engine) ApplyPatch(ctx context.Context, rec model.ScoreRecord, p model.ScorePatch) (model.ScoreRecord, error) {
	if err := checkPatch(p); err != nil {
		return model.ScoreRecord{}, err
	}
	if p.HoursWorked != nil {
		rec.HoursWorked = *p.HoursWorked
		rec.EC = credit.Effort(rec.HoursWorked)
	}
	if p.EC != nil {
		rec.EC = *p.EC
	}
	if p.OC != nil {
		rec.OC = *p.OC
	}
	if p.CC != nil {
		rec.CC = *p.CC
	}
	out, err := e.Rescore(ctx, rec)
	if err != nil {
		return model.ScoreRecord{}, err
	}
	metrics.RecordScoreEdit()
	return out, nil
}

// Validate checks in against the reporting calendar without scoring it.
func (e *Engine) Validate(in model.ActivityRecord) error {
	return in.Validate(e.reportingDays(in.PeriodID))
}

// CheckMarkTolerance returns the tolerance used for OC == 1.0.
func (e *Engine) CheckMarkTolerance() float64 {
	return e.tolerance
}

func (e *Engine) derive(ctx context.Context, rec *model.ScoreRecord) {
	fs := e.resolver.ComputeFinalScore(ctx, rec.EC, rec.OC, rec.CC, rec.EmployeeID, rec.TeamID)
	rec.Weights = fs.Weights
	rec.WCS = fs.BaseScore
	rec.Multiplier = fs.Multiplier
	rec.FinalScore = fs.FinalScore
	rec.CheckMark = credit.CheckMarkWithin(rec.HoursWorked, rec.OC, e.tolerance)
	rec.ScoredAt = e.now().UTC()
}

func (e *Engine) reportingDays(periodID string) int {
	w, err := period.Parse(periodID)
	if err != nil {
		return credit.DefaultReportingDays
	}
	return e.calendar.ReportingDays(w)
}

func checkPatch(p model.ScorePatch) error {
	if p.Empty() {
		return fmt.Errorf("%w: no fields to change", ErrInvalidPatch)
	}
	if p.HoursWorked != nil && !(*p.HoursWorked >= 0 && !math.IsInf(*p.HoursWorked, 1)) {
		return fmt.Errorf("%w: hours_worked %v is negative or not finite", ErrInvalidPatch, *p.HoursWorked)
	}
	for name, v := range map[string]*float64{"ec": p.EC, "oc": p.OC, "cc": p.CC} {
		if v != nil && !(*v >= 0 && *v <= 1) {
			return fmt.Errorf("%w: %s %v outside [0,1]", ErrInvalidPatch, name, *v)
		}
	}
	return nil
}
