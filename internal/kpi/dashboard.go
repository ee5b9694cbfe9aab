package kpi

import (
	"orgpulse/internal/drilldown"
	"orgpulse/internal/personnel"
)

// Entry is one ranked row of a candidate list.
type Entry struct {
	Rank     int            `json:"rank"`
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Role     personnel.Role `json:"role"`
	Score    float64        `json:"score"`
	Band     Band           `json:"band"`
	Selected bool           `json:"selected"`
}

// TierView is the candidate list for one tier. An empty Entries slice means
// there is nothing further to drill into.
type TierView struct {
	Tier     string  `json:"tier"`
	Selected string  `json:"selected,omitempty"`
	Entries  []Entry `json:"entries"`
}

// Dashboard is the full view state a presentation layer renders.
type Dashboard struct {
	State  drilldown.State `json:"state"`
	Path   []string        `json:"path"`
	Tiers  []TierView      `json:"tiers"`
	Active *Summary        `json:"active,omitempty"`
}

// Rank numbers records in the order given, starting at 1. Records are
// expected to already be sorted lowest score first.
func Rank(records []personnel.Record, selected string) []Entry {
	entries := make([]Entry, 0, len(records))
	for i, rec := range records {
		entries = append(entries, Entry{
			Rank:     i + 1,
			ID:       rec.ID,
			Name:     rec.Name,
			Role:     rec.Role,
			Score:    rec.Score,
			Band:     BandFor(rec.Score),
			Selected: rec.ID == selected,
		})
	}
	return entries
}

// BuildDashboard captures the selector's current view.
func BuildDashboard(s *drilldown.Selector) Dashboard {
	state := s.State()
	d := Dashboard{
		State: state,
		Path:  []string{},
	}
	for _, rec := range s.Path() {
		d.Path = append(d.Path, rec.ID)
	}
	for tier := personnel.TierLeadership; tier <= drilldown.MaxTier; tier++ {
		selected := state.Field(tier)
		d.Tiers = append(d.Tiers, TierView{
			Tier:     tier.String(),
			Selected: selected,
			Entries:  Rank(s.Candidates(tier), selected),
		})
	}
	if active, ok := s.Active(); ok {
		summary := Summarize(active)
		d.Active = &summary
	}
	return d
}
