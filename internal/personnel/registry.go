package personnel

import (
	"fmt"
	"sort"
)

// Registry is an immutable snapshot of personnel records. Records are kept in
// registry order; lookups go through an id index and a manager -> children
// index built once in New.
type Registry struct {
	records  []Record
	index    map[string]int
	children map[string][]int
}

// New validates records and builds a Registry. Every problem found is
// reported at once as ValidationErrors.
func New(records []Record) (*Registry, error) {
	reg := &Registry{
		records:  make([]Record, 0, len(records)),
		index:    make(map[string]int, len(records)),
		children: make(map[string][]int),
	}

	var errs ValidationErrors
	for i, rec := range records {
		fieldPath := fmt.Sprintf("people[%d]", i)
		if rec.ID == "" {
			errs = append(errs, ValidationError{
				File:    rec.Source,
				Field:   fieldPath + ".id",
				Message: "id is required",
			})
			continue
		}
		if !rec.Role.Valid() {
			errs = append(errs, ValidationError{
				File:    rec.Source,
				Field:   fieldPath + ".role",
				Message: fmt.Sprintf("invalid role %q", string(rec.Role)),
			})
		}
		for _, issue := range checkRecord(rec) {
			issue.File = rec.Source
			issue.Field = fieldPath + issue.Field
			errs = append(errs, issue)
		}
		if prev, exists := reg.index[rec.ID]; exists {
			errs = append(errs, ValidationError{
				File:    rec.Source,
				Field:   fieldPath + ".id",
				Message: fmt.Sprintf("id %q already defined in %s", rec.ID, describeSource(reg.records[prev].Source)),
			})
			continue
		}

		rec.History = append([]HistoryPoint(nil), rec.History...)
		reg.index[rec.ID] = len(reg.records)
		reg.records = append(reg.records, rec)
	}

	for pos, rec := range reg.records {
		if rec.ManagerID == "" {
			continue
		}
		if _, ok := reg.index[rec.ManagerID]; !ok {
			errs = append(errs, ValidationError{
				File:    rec.Source,
				Field:   fmt.Sprintf("%s.manager_id", rec.ID),
				Message: fmt.Sprintf("manager %q does not exist", rec.ManagerID),
			})
			continue
		}
		reg.children[rec.ManagerID] = append(reg.children[rec.ManagerID], pos)
	}

	errs = append(errs, reg.detectCycles()...)

	if len(errs) > 0 {
		return nil, errs
	}
	return reg, nil
}

// detectCycles walks manager chains; any chain that revisits a record is a cycle.
func (r *Registry) detectCycles() ValidationErrors {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]int, len(r.records))
	var errs ValidationErrors

	for start := range r.records {
		if state[start] != unvisited {
			continue
		}
		var chain []int
		pos := start
		for {
			if state[pos] == done {
				break
			}
			if state[pos] == visiting {
				rec := r.records[pos]
				errs = append(errs, ValidationError{
					File:    rec.Source,
					Field:   rec.ID + ".manager_id",
					Message: "manager chain forms a cycle",
				})
				break
			}
			state[pos] = visiting
			chain = append(chain, pos)
			next, ok := r.index[r.records[pos].ManagerID]
			if !ok {
				break
			}
			pos = next
		}
		for _, p := range chain {
			state[p] = done
		}
	}
	return errs
}

// Len returns the number of records.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.records)
}

// All returns a copy of every record in registry order.
func (r *Registry) All() []Record {
	if r == nil {
		return nil
	}
	return append([]Record(nil), r.records...)
}

// Lookup returns the record for id, if present.
func (r *Registry) Lookup(id string) (Record, bool) {
	if r == nil {
		return Record{}, false
	}
	pos, ok := r.index[id]
	if !ok {
		return Record{}, false
	}
	return r.records[pos], true
}

// Position returns the registry order of id, or -1 when absent.
func (r *Registry) Position(id string) int {
	if r == nil {
		return -1
	}
	pos, ok := r.index[id]
	if !ok {
		return -1
	}
	return pos
}

// Children returns the direct reports of id in registry order.
func (r *Registry) Children(id string) []Record {
	if r == nil {
		return nil
	}
	positions := r.children[id]
	out := make([]Record, 0, len(positions))
	for _, pos := range positions {
		out = append(out, r.records[pos])
	}
	return out
}

// InTier returns every record of the given tier in registry order.
func (r *Registry) InTier(tier Tier) []Record {
	if r == nil {
		return nil
	}
	var out []Record
	for _, rec := range r.records {
		if rec.Tier() == tier {
			out = append(out, rec)
		}
	}
	return out
}

// FirstWithRole returns the first record carrying role, in registry order.
func (r *Registry) FirstWithRole(role Role) (Record, bool) {
	if r == nil {
		return Record{}, false
	}
	for _, rec := range r.records {
		if rec.Role == role {
			return rec, true
		}
	}
	return Record{}, false
}

// ReportsTo reports whether id reaches ancestorID by following manager links.
// A record does not report to itself.
func (r *Registry) ReportsTo(id, ancestorID string) bool {
	rec, ok := r.Lookup(id)
	if !ok {
		return false
	}
	for steps := 0; rec.ManagerID != "" && steps < r.Len(); steps++ {
		if rec.ManagerID == ancestorID {
			return true
		}
		rec, ok = r.Lookup(rec.ManagerID)
		if !ok {
			return false
		}
	}
	return false
}

// SortByScore orders records ascending by score; equal scores keep registry order.
func (r *Registry) SortByScore(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Score != records[j].Score {
			return records[i].Score < records[j].Score
		}
		return r.Position(records[i].ID) < r.Position(records[j].ID)
	})
}

func describeSource(source string) string {
	if source == "" {
		return "an earlier record"
	}
	return source
}
