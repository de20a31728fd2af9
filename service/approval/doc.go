// Package approval implements the human-in-the-loop approval gate.
//
// A gated action either proceeds at once (its risk level is at or below the
// policy threshold) or becomes a pending Request that waits for a quorum of
// distinct approvers. A single rejection vetoes it and requests that outlive
// their deadline expire. Terminal states are final.
package approval
