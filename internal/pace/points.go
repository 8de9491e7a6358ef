package pace

// Effort-derived point values for the 1-4 effort ordinal.
var effortPoints = [...]int{1: 1, 2: 3, 3: 5, 4: 8}

// DefaultEffort is used when a task carries no usable effort estimate.
const DefaultEffort = 2

// EffortPoints maps an effort ordinal to points. Values outside 1-4 fall
// back to DefaultEffort.
func EffortPoints(effort int) int {
	if effort < 1 || effort > 4 {
		effort = DefaultEffort
	}
	return effortPoints[effort]
}

// PointValue resolves a task's points. Sources are consulted in a fixed
// order and the first one present wins:
//
//  1. manually finalized points
//  2. AI-estimated points
//  3. the effort-derived fallback, which is always present
//
// Every aggregate (daily totals, weekly debt, heatmaps) goes through here.
func PointValue(final, aiGuess *int, effort int) int {
	switch {
	case final != nil:
		return *final
	case aiGuess != nil:
		return *aiGuess
	default:
		return EffortPoints(effort)
	}
}
