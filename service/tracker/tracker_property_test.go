package tracker_test

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/viant/vigil/service/tracker"
)

func lastAllFailed(outcomes []bool, n int) bool {
	if len(outcomes) < n {
		return false
	}
	for _, ok := range outcomes[len(outcomes)-n:] {
		if ok {
			return false
		}
	}
	return true
}

func TestShouldTrip_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("trips iff the last threshold outcomes failed", prop.ForAll(
		func(outcomes []bool, threshold int) bool {
			tr := tracker.New(context.Background(), tracker.WithThreshold(threshold))
			for _, success := range outcomes {
				tr.RecordOutcome(context.Background(), "s", &tracker.Outcome{Success: success})
			}
			return tr.ShouldTrip("s") == lastAllFailed(outcomes, threshold)
		},
		gen.SliceOf(gen.Bool()),
		gen.IntRange(1, 5),
	))

	properties.Property("a success always resets", prop.ForAll(
		func(outcomes []bool) bool {
			tr := tracker.New(context.Background())
			for _, success := range outcomes {
				tr.RecordOutcome(context.Background(), "s", &tracker.Outcome{Success: success})
			}
			tr.RecordOutcome(context.Background(), "s", &tracker.Outcome{Success: true})
			return !tr.ShouldTrip("s")
		},
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}
