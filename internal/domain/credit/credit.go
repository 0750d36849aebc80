// Package credit computes the Effort, Outcome and Collaboration credits and
// the Weekly Credit Score composite. Every function is pure; inputs are not
// range checked here (see model.ActivityRecord.Validate).
package credit

import (
	"math"

	"github.com/okian/wcs/internal/domain/model"
)

// Effort bands, evaluated high to low, closed below.
const (
	fullEffortHours = 20.0
	highEffortHours = 15.0
	halfEffortHours = 10.0

	fullEffortCredit = 1.0
	highEffortCredit = 0.8
	halfEffortCredit = 0.5
)

// Collaboration points.
const (
	peerReviewCap        = 3
	peerReviewPoints     = 0.33
	missedPostPenalty    = -0.2
	missingRetroPenalty  = 0.2
	DefaultReportingDays = 5
)

// Effort maps hours worked in a period to 0, 0.5, 0.8 or 1.0.
func Effort(hoursWorked float64) float64 {
	switch {
	case hoursWorked >= fullEffortHours:
		return fullEffortCredit
	case hoursWorked >= highEffortHours:
		return highEffortCredit
	case hoursWorked >= halfEffortHours:
		return halfEffortCredit
	default:
		return 0
	}
}

// Outcome is the weighted mean of key-result scores. No key results (or a
// zero total weight) yields 0. Weights are scaled by the largest one so that
// huge finite weights cannot overflow the sums; a result that is still not
// finite yields 0.
func Outcome(keyResults []model.KeyResult) float64 {
	var largest float64
	for _, kr := range keyResults {
		largest = max(largest, math.Abs(kr.Weight))
	}
	if largest == 0 || math.IsInf(largest, 0) || math.IsNaN(largest) {
		return 0
	}

	var sum, weights float64
	for _, kr := range keyResults {
		w := kr.Weight / largest
		sum += kr.Score * w
		weights += w
	}
	if weights == 0 {
		return 0
	}
	oc := sum / weights
	if math.IsNaN(oc) || math.IsInf(oc, 0) {
		return 0
	}
	return oc
}

// Policy parameterises the collaboration credit.
type Policy struct {
	// ReportingDays is the number of days a daily post is expected.
	ReportingDays int
}

// DefaultPolicy expects five posts per period.
func DefaultPolicy() Policy {
	return Policy{ReportingDays: DefaultReportingDays}
}

// Collaboration scores peer reviews (capped at three), posting cadence and
// retrospective participation, rounded to 2dp and clamped to [0,1].
func (p Policy) Collaboration(peerReviewCount, dailyPostsInPeriod int, hasRetroInsight bool) float64 {
	cc := float64(min(peerReviewCount, peerReviewCap)) * peerReviewPoints
	cc += float64(p.ReportingDays-dailyPostsInPeriod) * missedPostPenalty
	if !hasRetroInsight {
		cc -= missingRetroPenalty
	}
	return clamp01(Round(cc))
}

// Collaboration applies DefaultPolicy.
func Collaboration(peerReviewCount, dailyPostsInPeriod int, hasRetroInsight bool) float64 {
	return DefaultPolicy().Collaboration(peerReviewCount, dailyPostsInPeriod, hasRetroInsight)
}

// Composite is the fixed 40/50/10 Weekly Credit Score.
func Composite(ec, oc, cc float64) float64 {
	return Round(ec*0.4 + oc*0.5 + cc*0.1)
}

// CompositeWeighted is the Weekly Credit Score under percentage weights.
// With DefaultWeights it equals Composite.
func CompositeWeighted(ec, oc, cc float64, w model.Weights) float64 {
	return Round(ec*(w.EC/100) + oc*(w.OC/100) + cc*(w.CC/100))
}

// Round rounds half away from zero to two decimal places.
func Round(x float64) float64 {
	return math.Round(x*100) / 100
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
