package credit

import "math"

// DefaultCheckMarkTolerance absorbs float drift in a weighted mean of perfect
// key results. It is far below the 0.01 resolution of any rounded score.
const DefaultCheckMarkTolerance = 1e-9

// CheckMark is true when hours reach the top effort band and OC is 1.0
// within DefaultCheckMarkTolerance.
func CheckMark(hoursWorked, oc float64) bool {
	return CheckMarkWithin(hoursWorked, oc, DefaultCheckMarkTolerance)
}

// CheckMarkWithin is CheckMark with an explicit tolerance. A tolerance of 0
// demands exact equality.
func CheckMarkWithin(hoursWorked, oc, tolerance float64) bool {
	return Effort(hoursWorked) == fullEffortCredit && math.Abs(oc-1.0) <= tolerance
}
