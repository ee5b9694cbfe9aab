package snapshot

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"orgpulse/internal/personnel"
)

// ChangeKind classifies a per-record difference between two snapshots.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeRemoved  ChangeKind = "removed"
	ChangeScore    ChangeKind = "score"
	ChangeRole     ChangeKind = "role"
	ChangeReparent ChangeKind = "manager"
	ChangeName     ChangeKind = "name"
	ChangeHistory  ChangeKind = "history"
)

// Change is one difference for one record.
type Change struct {
	ID     string     `json:"id"`
	Kind   ChangeKind `json:"kind"`
	Before string     `json:"before,omitempty"`
	After  string     `json:"after,omitempty"`
}

func (c Change) String() string {
	switch c.Kind {
	case ChangeAdded:
		return fmt.Sprintf("+ %s", c.ID)
	case ChangeRemoved:
		return fmt.Sprintf("- %s", c.ID)
	default:
		return fmt.Sprintf("~ %s %s: %s -> %s", c.ID, c.Kind, c.Before, c.After)
	}
}

// Compare lists record-level changes from prev to next, ordered by id then kind.
func Compare(prev, next *Snapshot) []Change {
	before := indexPeople(prev)
	after := indexPeople(next)

	var changes []Change
	for id, old := range before {
		cur, ok := after[id]
		if !ok {
			changes = append(changes, Change{ID: id, Kind: ChangeRemoved})
			continue
		}
		if old.Score != cur.Score {
			changes = append(changes, Change{ID: id, Kind: ChangeScore, Before: formatScore(old.Score), After: formatScore(cur.Score)})
		}
		if old.Role != cur.Role {
			changes = append(changes, Change{ID: id, Kind: ChangeRole, Before: string(old.Role), After: string(cur.Role)})
		}
		if old.ManagerID != cur.ManagerID {
			changes = append(changes, Change{ID: id, Kind: ChangeReparent, Before: old.ManagerID, After: cur.ManagerID})
		}
		if old.Name != cur.Name {
			changes = append(changes, Change{ID: id, Kind: ChangeName, Before: old.Name, After: cur.Name})
		}
		if before, after := formatHistory(old.History), formatHistory(cur.History); before != after {
			changes = append(changes, Change{ID: id, Kind: ChangeHistory, Before: before, After: after})
		}
	}
	for id := range after {
		if _, ok := before[id]; !ok {
			changes = append(changes, Change{ID: id, Kind: ChangeAdded})
		}
	}

	sort.SliceStable(changes, func(i, j int) bool {
		if changes[i].ID != changes[j].ID {
			return changes[i].ID < changes[j].ID
		}
		return changes[i].Kind < changes[j].Kind
	})
	return changes
}

// UnifiedDiff renders a line diff of the two snapshots' people lists.
// The result is empty when nothing changed.
func UnifiedDiff(prev, next *Snapshot) (string, error) {
	a, err := render(prev)
	if err != nil {
		return "", err
	}
	b, err := render(next)
	if err != nil {
		return "", err
	}

	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(a),
		B:        difflib.SplitLines(b),
		FromFile: "snapshots/" + asOf(prev),
		ToFile:   "snapshots/" + asOf(next),
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("diff snapshots: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	return text, nil
}

func render(s *Snapshot) (string, error) {
	if s == nil {
		return "", nil
	}
	people := append([]personnel.Record(nil), s.People...)
	sort.SliceStable(people, func(i, j int) bool { return people[i].ID < people[j].ID })
	data, err := json.MarshalIndent(people, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal people: %w", err)
	}
	return string(data) + "\n", nil
}

func indexPeople(s *Snapshot) map[string]personnel.Record {
	out := make(map[string]personnel.Record)
	if s == nil {
		return out
	}
	for _, rec := range s.People {
		out[rec.ID] = rec
	}
	return out
}

func asOf(s *Snapshot) string {
	if s == nil {
		return "empty"
	}
	return s.AsOf
}

func formatScore(v float64) string {
	return fmt.Sprintf("%g", v)
}

// formatHistory renders points as "period=value" pairs in series order.
func formatHistory(points []personnel.HistoryPoint) string {
	parts := make([]string, 0, len(points))
	for _, p := range points {
		parts = append(parts, p.Period+"="+formatScore(p.Value))
	}
	return strings.Join(parts, " ")
}
