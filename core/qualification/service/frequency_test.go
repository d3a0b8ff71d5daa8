package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/NvTimLiu/spark-rapids-tools/core/qualification"
	"github.com/NvTimLiu/spark-rapids-tools/core/qualification/service"
)

const dayMillis = 24 * 60 * 60 * 1000

func TestEstimateFrequencies(t *testing.T) {
	t.Run("single occurrence defaults to thirty per month", func(t *testing.T) {
		summaries := []*qualification.AggregateSummary{
			{AppName: "Nightly ETL", StartTime: 0},
		}

		service.EstimateFrequencies(summaries)

		assert.Equal(t, int64(30), summaries[0].EstimatedFrequency)
	})

	t.Run("runs of the same job are grouped despite run numbers", func(t *testing.T) {
		summaries := []*qualification.AggregateSummary{
			{AppName: "Nightly ETL 101", StartTime: 0},
			{AppName: "Nightly ETL 102", StartTime: 1 * dayMillis},
			{AppName: "nightly_etl_103", StartTime: 2 * dayMillis},
		}

		service.EstimateFrequencies(summaries)

		// three runs over two days scale to forty-five per month
		for _, summary := range summaries {
			assert.Equal(t, int64(45), summary.EstimatedFrequency)
		}
	})

	t.Run("distinct jobs get independent estimates", func(t *testing.T) {
		summaries := []*qualification.AggregateSummary{
			{AppName: "Nightly ETL 1", StartTime: 0},
			{AppName: "Nightly ETL 2", StartTime: 30 * dayMillis},
			{AppName: "Ad Hoc Query", StartTime: 0},
		}

		service.EstimateFrequencies(summaries)

		assert.Equal(t, int64(2), summaries[0].EstimatedFrequency)
		assert.Equal(t, int64(2), summaries[1].EstimatedFrequency)
		assert.Equal(t, int64(30), summaries[2].EstimatedFrequency)
	})

	t.Run("frequency never drops below one", func(t *testing.T) {
		summaries := []*qualification.AggregateSummary{
			{AppName: "Quarterly Report 1", StartTime: 0},
			{AppName: "Quarterly Report 2", StartTime: 90 * dayMillis},
		}

		service.EstimateFrequencies(summaries)

		assert.Equal(t, int64(1), summaries[0].EstimatedFrequency)
	})
}
