package miner

import (
	"math"

	"github.com/logsift/logsift/internal/logs/model"
)

const (
	DefaultTrendRatio   = 1.5
	DefaultAnomalySigma = 3.0

	// minAnomalyHistory is the number of closed buckets needed before the
	// anomaly threshold is meaningful.
	minAnomalyHistory = 3
)

// Classifier turns a template's bucket history into trend and anomaly
// flags. The thresholds are policy, not invariants, so the whole thing sits
// behind an interface.
type Classifier interface {
	Classify(history []model.BucketCount) (model.Trend, bool)
}

// ThresholdClassifier compares the two most recent complete buckets for the
// trend and flags an anomaly when the current bucket exceeds the mean of the
// preceding buckets by sigma standard deviations.
type ThresholdClassifier struct {
	trendRatio   float64
	anomalySigma float64
}

func NewThresholdClassifier(trendRatio, anomalySigma float64) *ThresholdClassifier {
	if trendRatio <= 1 {
		trendRatio = DefaultTrendRatio
	}
	if anomalySigma <= 0 {
		anomalySigma = DefaultAnomalySigma
	}
	return &ThresholdClassifier{trendRatio: trendRatio, anomalySigma: anomalySigma}
}

func (c *ThresholdClassifier) Classify(history []model.BucketCount) (model.Trend, bool) {
	trend := model.TrendStable
	// The last bucket is still open; the two before it are the most recent
	// complete ones.
	if len(history) >= 3 {
		previous := float64(history[len(history)-3].Count)
		recent := float64(history[len(history)-2].Count)
		switch {
		case recent > previous*c.trendRatio:
			trend = model.TrendIncreasing
		case recent*c.trendRatio < previous:
			trend = model.TrendDecreasing
		}
	}

	anomaly := false
	if len(history) >= minAnomalyHistory+1 {
		current := float64(history[len(history)-1].Count)
		mean, stddev := meanAndStddev(history[:len(history)-1])
		if current > mean+c.anomalySigma*stddev && current > mean {
			anomaly = true
		}
	}
	return trend, anomaly
}

func meanAndStddev(buckets []model.BucketCount) (float64, float64) {
	if len(buckets) == 0 {
		return 0, 0
	}
	var sum float64
	for _, bucket := range buckets {
		sum += float64(bucket.Count)
	}
	mean := sum / float64(len(buckets))

	var squares float64
	for _, bucket := range buckets {
		delta := float64(bucket.Count) - mean
		squares += delta * delta
	}
	return mean, math.Sqrt(squares / float64(len(buckets)))
}
