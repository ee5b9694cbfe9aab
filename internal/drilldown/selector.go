// Package drilldown maintains the leader -> level1 -> level2 selection over a
// personnel registry and derives the candidate lists and active record shown
// by the dashboard.
package drilldown

import (
	"errors"
	"fmt"

	"orgpulse/internal/personnel"
)

// ErrInvalidSelection is returned when a record is not a legal candidate for
// the requested tier under the current state.
var ErrInvalidSelection = errors.New("invalid selection")

// MaxTier is the deepest selectable tier.
const MaxTier = personnel.TierExecution

// State holds the selected record ids. An empty string means unset.
type State struct {
	Leader string `json:"leader,omitempty"`
	Level1 string `json:"level1,omitempty"`
	Level2 string `json:"level2,omitempty"`
}

// Field returns the id selected at tier.
func (s State) Field(tier personnel.Tier) string {
	switch tier {
	case personnel.TierLeadership:
		return s.Leader
	case personnel.TierMid:
		return s.Level1
	case personnel.TierExecution:
		return s.Level2
	default:
		return ""
	}
}

// IsZero reports whether nothing is selected.
func (s State) IsZero() bool {
	return s == State{}
}

// Selector owns a State over one registry snapshot. It is not safe for
// concurrent use; callers that share one serialize access themselves.
type Selector struct {
	reg   *personnel.Registry
	state State
}

// New returns a Selector for reg with the default leader already selected,
// when the registry has one.
func New(reg *personnel.Registry) *Selector {
	s := &Selector{reg: reg}
	s.initialize()
	return s
}

// NewEmpty returns a Selector with nothing selected.
func NewEmpty(reg *personnel.Registry) *Selector {
	return &Selector{reg: reg}
}

func (s *Selector) initialize() {
	s.state = State{}
	leader, ok := s.reg.FirstWithRole(personnel.DefaultLeaderRole)
	if !ok {
		return
	}
	// The default leader is always a tier-0 candidate.
	_ = s.Select(leader.ID, personnel.TierLeadership)
}

// Registry returns the snapshot the selector currently reads from.
func (s *Selector) Registry() *personnel.Registry {
	return s.reg
}

// State returns a copy of the current selection.
func (s *Selector) State() State {
	return s.state
}

// Select makes id the selection at tier and auto-descends below it, picking the
// lowest-scoring candidate at each deeper tier. On error the state is unchanged.
func (s *Selector) Select(id string, tier personnel.Tier) error {
	if tier < personnel.TierLeadership || tier > MaxTier {
		return fmt.Errorf("%w: unknown tier %d", ErrInvalidSelection, int(tier))
	}
	if !isCandidate(s.reg, s.state, tier, id) {
		return fmt.Errorf("%w: %q is not a %s candidate", ErrInvalidSelection, id, tier)
	}

	next := s.state
	switch tier {
	case personnel.TierLeadership:
		next = State{Leader: id}
	case personnel.TierMid:
		next.Level1 = id
		next.Level2 = ""
	case personnel.TierExecution:
		next.Level2 = id
	}
	s.state = descend(s.reg, next, tier)
	return nil
}

// SelectPath replays a breadcrumb from the leader down. An empty path
// restores the initial selection.
func (s *Selector) SelectPath(ids ...string) error {
	if len(ids) > int(MaxTier)+1 {
		return fmt.Errorf("%w: path has %d entries, at most %d tiers", ErrInvalidSelection, len(ids), int(MaxTier)+1)
	}
	saved := s.state
	if len(ids) == 0 {
		s.initialize()
		return nil
	}
	for i, id := range ids {
		if err := s.Select(id, personnel.Tier(i)); err != nil {
			s.state = saved
			return err
		}
	}
	return nil
}

// Candidates returns the selectable records at tier, lowest score first.
func (s *Selector) Candidates(tier personnel.Tier) []personnel.Record {
	return Candidates(s.reg, s.state, tier)
}

// Active returns the record whose detail is displayed.
func (s *Selector) Active() (personnel.Record, bool) {
	return Active(s.reg, s.state)
}

// Path returns the selected records top-down.
func (s *Selector) Path() []personnel.Record {
	var out []personnel.Record
	for tier := personnel.TierLeadership; tier <= MaxTier; tier++ {
		id := s.state.Field(tier)
		if id == "" {
			break
		}
		rec, ok := s.reg.Lookup(id)
		if !ok {
			break
		}
		out = append(out, rec)
	}
	return out
}

// Candidates derives the selectable records at tier for state.
func Candidates(reg *personnel.Registry, state State, tier personnel.Tier) []personnel.Record {
	var out []personnel.Record
	switch tier {
	case personnel.TierLeadership:
		out = reg.InTier(personnel.TierLeadership)
	case personnel.TierMid, personnel.TierExecution:
		parent, ok := reg.Lookup(state.Field(tier - 1))
		if !ok || parent.Tier() != tier-1 {
			return nil
		}
		for _, child := range reg.Children(parent.ID) {
			if child.Tier() == tier && parent.Role.Routes(child.Role) {
				out = append(out, child)
			}
		}
	default:
		return nil
	}
	reg.SortByScore(out)
	return out
}

// Active returns the deepest selected record of state.
func Active(reg *personnel.Registry, state State) (personnel.Record, bool) {
	for _, id := range []string{state.Level2, state.Level1, state.Leader} {
		if id == "" {
			continue
		}
		return reg.Lookup(id)
	}
	return personnel.Record{}, false
}

// Valid reports whether state satisfies the parent/child invariants for reg.
func Valid(reg *personnel.Registry, state State) bool {
	if state.Level2 != "" && state.Level1 == "" {
		return false
	}
	if state.Level1 != "" && state.Leader == "" {
		return false
	}
	partial := State{}
	for tier := personnel.TierLeadership; tier <= MaxTier; tier++ {
		id := state.Field(tier)
		if id == "" {
			return true
		}
		if !isCandidate(reg, partial, tier, id) {
			return false
		}
		partial = withField(partial, tier, id)
	}
	return true
}

func descend(reg *personnel.Registry, state State, from personnel.Tier) State {
	for tier := from + 1; tier <= MaxTier; tier++ {
		if state.Field(tier) != "" {
			continue
		}
		cands := Candidates(reg, state, tier)
		if len(cands) == 0 {
			return clearFrom(state, tier)
		}
		state = withField(state, tier, cands[0].ID)
	}
	return state
}

func isCandidate(reg *personnel.Registry, state State, tier personnel.Tier, id string) bool {
	if id == "" {
		return false
	}
	for _, rec := range Candidates(reg, state, tier) {
		if rec.ID == id {
			return true
		}
	}
	return false
}

func withField(state State, tier personnel.Tier, id string) State {
	switch tier {
	case personnel.TierLeadership:
		state.Leader = id
	case personnel.TierMid:
		state.Level1 = id
	case personnel.TierExecution:
		state.Level2 = id
	}
	return state
}

func clearFrom(state State, tier personnel.Tier) State {
	for t := tier; t <= MaxTier; t++ {
		state = withField(state, t, "")
	}
	return state
}
