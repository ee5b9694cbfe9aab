package personnel

import (
	"fmt"
	"math"
	"strings"

	"gopkg.in/yaml.v3"
)

type rawDocument struct {
	People []rawPerson `yaml:"people"`
}

type rawPerson struct {
	ID        string       `yaml:"id"`
	Name      string       `yaml:"name"`
	Role      string       `yaml:"role"`
	Score     *float64     `yaml:"score"`
	ManagerID string       `yaml:"manager_id"`
	History   []rawHistory `yaml:"history"`
}

type rawHistory struct {
	Period string   `yaml:"period"`
	Value  *float64 `yaml:"value"`
}

// ValidationError captures a single field-specific validation issue.
type ValidationError struct {
	File    string
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.File == "" {
		if e.Field == "" {
			return e.Message
		}
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.File, e.Field, e.Message)
}

// ValidationErrors aggregates multiple validation problems.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.Error())
	}
	return strings.Join(parts, "\n")
}

// ParseAndValidateDocument unmarshals and validates a YAML registry document.
// Cross-record checks (manager references, cycles, duplicate ids across files)
// happen in New.
func ParseAndValidateDocument(data []byte, source string) ([]Record, error) {
	var raw rawDocument
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, ValidationErrors{{
			File:    source,
			Field:   "yaml",
			Message: err.Error(),
		}}
	}
	if len(raw.People) == 0 {
		return nil, ValidationErrors{{
			File:    source,
			Field:   "people",
			Message: "must contain at least one person",
		}}
	}

	var errs ValidationErrors
	records := make([]Record, 0, len(raw.People))
	for idx, person := range raw.People {
		rec, recErrs := validatePerson(person, fmt.Sprintf("people[%d]", idx), source)
		errs = append(errs, recErrs...)
		records = append(records, rec)
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return records, nil
}

func validatePerson(raw rawPerson, fieldPath, source string) (Record, ValidationErrors) {
	var errs ValidationErrors

	rec := Record{
		ID:        strings.TrimSpace(raw.ID),
		Name:      strings.TrimSpace(raw.Name),
		ManagerID: strings.TrimSpace(raw.ManagerID),
		Source:    source,
	}

	if rec.ID == "" {
		errs = append(errs, ValidationError{
			File:    source,
			Field:   fieldPath + ".id",
			Message: "id is required",
		})
	}
	if rec.Name == "" {
		errs = append(errs, ValidationError{
			File:    source,
			Field:   fieldPath + ".name",
			Message: "name is required",
		})
	}

	role, err := ParseRole(raw.Role)
	if err != nil {
		errs = append(errs, ValidationError{
			File:    source,
			Field:   fieldPath + ".role",
			Message: err.Error(),
		})
	}
	rec.Role = role

	if raw.Score == nil {
		errs = append(errs, ValidationError{
			File:    source,
			Field:   fieldPath + ".score",
			Message: "score is required",
		})
	} else {
		rec.Score = *raw.Score
	}

	if len(raw.History) > 0 {
		rec.History = make([]HistoryPoint, 0, len(raw.History))
	}
	for i, h := range raw.History {
		histPath := fmt.Sprintf("%s.history[%d]", fieldPath, i)
		point := HistoryPoint{Period: strings.TrimSpace(h.Period)}
		if h.Value == nil {
			errs = append(errs, ValidationError{
				File:    source,
				Field:   histPath + ".value",
				Message: "value is required",
			})
		} else {
			point.Value = *h.Value
		}
		rec.History = append(rec.History, point)
	}

	for _, issue := range checkRecord(rec) {
		issue.File = source
		issue.Field = fieldPath + issue.Field
		errs = append(errs, issue)
	}

	return rec, errs
}

// checkRecord validates value ranges on an already-normalized record. Field
// paths are relative (".score", ".history[0].period") so callers can prefix them.
func checkRecord(rec Record) ValidationErrors {
	var errs ValidationErrors
	if !inPercentRange(rec.Score) {
		errs = append(errs, ValidationError{
			Field:   ".score",
			Message: "must be between 0 and 100",
		})
	}
	if rec.ManagerID != "" && rec.ManagerID == rec.ID {
		errs = append(errs, ValidationError{
			Field:   ".manager_id",
			Message: "cannot reference itself",
		})
	}

	periods := make(map[string]struct{}, len(rec.History))
	for i, point := range rec.History {
		histPath := fmt.Sprintf(".history[%d]", i)
		if point.Period == "" {
			errs = append(errs, ValidationError{
				Field:   histPath + ".period",
				Message: "period is required",
			})
		} else if _, dup := periods[point.Period]; dup {
			errs = append(errs, ValidationError{
				Field:   histPath + ".period",
				Message: fmt.Sprintf("duplicate period %q", point.Period),
			})
		} else {
			periods[point.Period] = struct{}{}
		}
		if !inPercentRange(point.Value) {
			errs = append(errs, ValidationError{
				Field:   histPath + ".value",
				Message: "must be between 0 and 100",
			})
		}
	}
	return errs
}

func inPercentRange(v float64) bool {
	if math.IsNaN(v) {
		return false
	}
	return v >= 0 && v <= 100
}
