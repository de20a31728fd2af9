// Package risk classifies gated actions and derives how much human oversight
// they need. It has no state: a Policy maps a Level to an auto-approval
// decision and a quorum size.
package risk
