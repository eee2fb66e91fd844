package profiling

import (
	"github.com/montanaflynn/stats"
)

// NumericSummary describes the spread of a numeric column
type NumericSummary struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
}

// Summarize computes summary statistics for data. It returns nil for empty input.
func Summarize(data []float64) (*NumericSummary, error) {
	if len(data) == 0 {
		return nil, nil
	}

	mean, err := stats.Mean(data)
	if err != nil {
		return nil, err
	}

	stdDev, err := stats.StandardDeviation(data)
	if err != nil {
		return nil, err
	}

	min, err := stats.Min(data)
	if err != nil {
		return nil, err
	}

	max, err := stats.Max(data)
	if err != nil {
		return nil, err
	}

	median, err := stats.Median(data)
	if err != nil {
		return nil, err
	}

	return &NumericSummary{
		Count:  len(data),
		Min:    min,
		Max:    max,
		Mean:   mean,
		Median: median,
		StdDev: stdDev,
	}, nil
}
