package domain

import "strings"

// PolicyStatus values recorded on persisted policy records. The first five
// mirror the raw solver outcomes; the rest mark how a partition was repaired.
const (
	StatusOptimal    = "optimal"
	StatusSuboptimal = "suboptimal"
	StatusInfeasible = "infeasible"
	StatusTimedOut   = "timed_out"
	StatusError      = "error"

	StatusRepaired  = "repaired"  // re-solved with relaxed constraints
	StatusHeuristic = "heuristic" // reorder-point fallback, solver bypassed
	StatusCarried   = "carried"   // prior cycle's policy reused after a timeout
)

var policyStatusLabels = map[string]string{
	StatusOptimal:    "Optimal",
	StatusSuboptimal: "Suboptimal",
	StatusInfeasible: "Infeasible",
	StatusTimedOut:   "Timed Out",
	StatusError:      "Error",
	StatusRepaired:   "Repaired",
	StatusHeuristic:  "Heuristic",
	StatusCarried:    "Carried Over",
}

// PolicyStatusLabel returns a human-readable label for a policy status.
func PolicyStatusLabel(status string) string {
	if label, ok := policyStatusLabels[strings.ToLower(status)]; ok {
		return label
	}

	return "Unknown"
}

// ValidPolicyStatus reports whether s is a known policy status (case-insensitive).
func ValidPolicyStatus(s string) bool {
	_, ok := policyStatusLabels[strings.ToLower(s)]

	return ok
}
