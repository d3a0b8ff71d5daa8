package qualification_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/NvTimLiu/spark-rapids-tools/core/qualification"
)

func TestStatusTracker(t *testing.T) {
	t.Run("counts by outcome", func(t *testing.T) {
		tracker := qualification.NewStatusTracker()
		tracker.Record("/logs/a", qualification.StatusSuccess, "")
		tracker.Record("/logs/b", qualification.StatusFailure, "malformed header")
		tracker.Record("/logs/c", qualification.StatusUnknown, "gpu event log")
		tracker.Record("/logs/d", qualification.StatusSuccess, "")

		success, failure, unknown := tracker.Counts()

		assert.Equal(t, 2, success)
		assert.Equal(t, 1, failure)
		assert.Equal(t, 1, unknown)
		assert.False(t, tracker.AllFailed())
	})

	t.Run("all failed", func(t *testing.T) {
		tracker := qualification.NewStatusTracker()
		assert.False(t, tracker.AllFailed(), "empty tracker is not a total failure")

		tracker.Record("/logs/a", qualification.StatusFailure, "boom")
		tracker.Record("/logs/b", qualification.StatusFailure, "boom")

		assert.True(t, tracker.AllFailed())
	})

	t.Run("concurrent records are all kept", func(t *testing.T) {
		tracker := qualification.NewStatusTracker()
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				tracker.Record("/logs/a", qualification.StatusSuccess, "")
			}()
		}
		wg.Wait()

		assert.Len(t, tracker.Records(), 50)
	})
}

func TestRecommendationFor(t *testing.T) {
	for _, tc := range []struct {
		name       string
		speedup    float64
		applicable bool
		want       qualification.Recommendation
	}{
		{name: "strongly recommended at threshold", speedup: 2.5, applicable: true, want: qualification.StronglyRecommended},
		{name: "recommended below strong threshold", speedup: 2.49, applicable: true, want: qualification.Recommended},
		{name: "recommended at threshold", speedup: 1.3, applicable: true, want: qualification.Recommended},
		{name: "not recommended below threshold", speedup: 1.29, applicable: true, want: qualification.NotRecommended},
		{name: "not applicable overrides speedup", speedup: 4.0, applicable: false, want: qualification.NotApplicable},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, qualification.RecommendationFor(tc.speedup, tc.applicable))
		})
	}
}
