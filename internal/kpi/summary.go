package kpi

import (
	"math"

	"orgpulse/internal/personnel"
)

// Band buckets a score for at-a-glance display.
type Band string

const (
	BandCritical Band = "critical"
	BandWatch    Band = "watch"
	BandHealthy  Band = "healthy"
)

// Trend is the direction of the latest period-over-period change.
type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
	TrendFlat Trend = "flat"
)

const (
	watchThreshold   = 50.0
	healthyThreshold = 75.0
	// Changes smaller than this are reported as flat.
	trendEpsilon = 0.5
)

// HistoryStats aggregates a record's score history.
type HistoryStats struct {
	Periods int     `json:"periods"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Mean    float64 `json:"mean"`
	First   string  `json:"first_period,omitempty"`
	Last    string  `json:"last_period,omitempty"`
}

// Summary is the KPI card for a single record.
type Summary struct {
	ID      string                   `json:"id"`
	Name    string                   `json:"name"`
	Role    personnel.Role           `json:"role"`
	Title   string                   `json:"title"`
	Tier    string                   `json:"tier"`
	Score   float64                  `json:"score"`
	Band    Band                     `json:"band"`
	Delta   *float64                 `json:"delta,omitempty"`
	Trend   Trend                    `json:"trend"`
	Stats   *HistoryStats            `json:"history_stats,omitempty"`
	History []personnel.HistoryPoint `json:"history,omitempty"`
}

// Summarize projects rec into a KPI summary.
func Summarize(rec personnel.Record) Summary {
	s := Summary{
		ID:      rec.ID,
		Name:    rec.Name,
		Role:    rec.Role,
		Title:   rec.Role.Label(),
		Tier:    rec.Tier().String(),
		Score:   rec.Score,
		Band:    BandFor(rec.Score),
		Trend:   TrendFlat,
		History: append([]personnel.HistoryPoint(nil), rec.History...),
	}
	if len(rec.History) == 0 {
		return s
	}

	stats := &HistoryStats{
		Periods: len(rec.History),
		Min:     math.Inf(1),
		Max:     math.Inf(-1),
		First:   rec.History[0].Period,
		Last:    rec.History[len(rec.History)-1].Period,
	}
	var sum float64
	for _, point := range rec.History {
		stats.Min = math.Min(stats.Min, point.Value)
		stats.Max = math.Max(stats.Max, point.Value)
		sum += point.Value
	}
	stats.Mean = round2(sum / float64(len(rec.History)))
	s.Stats = stats

	if len(rec.History) >= 2 {
		last := rec.History[len(rec.History)-1].Value
		prev := rec.History[len(rec.History)-2].Value
		delta := round2(last - prev)
		s.Delta = &delta
		s.Trend = trendFor(delta)
	}
	return s
}

// BandFor returns the band a score falls in.
func BandFor(score float64) Band {
	switch {
	case score < watchThreshold:
		return BandCritical
	case score < healthyThreshold:
		return BandWatch
	default:
		return BandHealthy
	}
}

func trendFor(delta float64) Trend {
	switch {
	case delta >= trendEpsilon:
		return TrendUp
	case delta <= -trendEpsilon:
		return TrendDown
	default:
		return TrendFlat
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
