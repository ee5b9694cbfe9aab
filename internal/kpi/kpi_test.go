package kpi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orgpulse/internal/drilldown"
	"orgpulse/internal/personnel"
)

func TestSummarizeHistory(t *testing.T) {
	rec := personnel.Record{
		ID:    "w1",
		Name:  "Writer",
		Role:  personnel.RoleContentWriter,
		Score: 62,
		History: []personnel.HistoryPoint{
			{Period: "Jan", Value: 50},
			{Period: "Feb", Value: 70},
			{Period: "Mar", Value: 62},
		},
	}

	s := Summarize(rec)
	assert.Equal(t, BandWatch, s.Band)
	assert.Equal(t, "execution", s.Tier)
	assert.Equal(t, "Content Writer", s.Title)
	require.NotNil(t, s.Stats)
	assert.Equal(t, 3, s.Stats.Periods)
	assert.Equal(t, 50.0, s.Stats.Min)
	assert.Equal(t, 70.0, s.Stats.Max)
	assert.Equal(t, 60.67, s.Stats.Mean)
	assert.Equal(t, "Jan", s.Stats.First)
	assert.Equal(t, "Mar", s.Stats.Last)
	require.NotNil(t, s.Delta)
	assert.Equal(t, -8.0, *s.Delta)
	assert.Equal(t, TrendDown, s.Trend)
}

func TestSummarizeWithoutHistory(t *testing.T) {
	s := Summarize(personnel.Record{ID: "c", Name: "C", Role: personnel.RoleCEO, Score: 90})
	assert.Equal(t, BandHealthy, s.Band)
	assert.Nil(t, s.Stats)
	assert.Nil(t, s.Delta)
	assert.Equal(t, TrendFlat, s.Trend)
}

func TestBandBoundaries(t *testing.T) {
	assert.Equal(t, BandCritical, BandFor(0))
	assert.Equal(t, BandCritical, BandFor(49.99))
	assert.Equal(t, BandWatch, BandFor(50))
	assert.Equal(t, BandWatch, BandFor(74.9))
	assert.Equal(t, BandHealthy, BandFor(75))
	assert.Equal(t, BandHealthy, BandFor(100))
}

func TestTrendIgnoresNoise(t *testing.T) {
	assert.Equal(t, TrendFlat, trendFor(0.2))
	assert.Equal(t, TrendFlat, trendFor(-0.49))
	assert.Equal(t, TrendUp, trendFor(0.5))
	assert.Equal(t, TrendDown, trendFor(-3))
}

func TestBuildDashboard(t *testing.T) {
	reg, err := personnel.New([]personnel.Record{
		{ID: "L", Name: "Leader", Role: personnel.RoleCEO, Score: 78},
		{ID: "O", Name: "Ops", Role: personnel.RoleCOO, Score: 40},
		{ID: "M1", Name: "PM", Role: personnel.RoleProjectManager, Score: 70, ManagerID: "L"},
	})
	require.NoError(t, err)

	d := BuildDashboard(drilldown.New(reg))
	assert.Equal(t, []string{"L", "M1"}, d.Path)
	require.Len(t, d.Tiers, 3)

	lead := d.Tiers[0]
	assert.Equal(t, "leadership", lead.Tier)
	require.Len(t, lead.Entries, 2)
	assert.Equal(t, "O", lead.Entries[0].ID)
	assert.Equal(t, 1, lead.Entries[0].Rank)
	assert.Equal(t, BandCritical, lead.Entries[0].Band)
	assert.False(t, lead.Entries[0].Selected)
	assert.True(t, lead.Entries[1].Selected)

	assert.Equal(t, "M1", d.Tiers[1].Selected)
	assert.NotNil(t, d.Tiers[2].Entries)
	assert.Empty(t, d.Tiers[2].Entries)

	require.NotNil(t, d.Active)
	assert.Equal(t, "M1", d.Active.ID)
}
