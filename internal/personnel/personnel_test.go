package personnel

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseAndValidateDocumentValid(t *testing.T) {
	yml := `
people:
  - id: ceo-1
    name: Dana Ruiz
    role: CEO
    score: 78
    history:
      - period: Jan
        value: 70
      - period: Feb
        value: 78
  - id: coo-1
    name: Sam Ito
    role: coo
    score: 81
    manager_id: ceo-1
`
	recs, err := ParseAndValidateDocument([]byte(yml), "people.yml")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].Role != RoleCEO {
		t.Fatalf("expected role to be normalized to ceo, got %q", recs[0].Role)
	}
	if len(recs[0].History) != 2 || recs[0].History[1].Period != "Feb" {
		t.Fatalf("unexpected history %+v", recs[0].History)
	}
	if recs[1].ManagerID != "ceo-1" {
		t.Fatalf("expected manager ceo-1, got %q", recs[1].ManagerID)
	}
}

func TestParseAndValidateDocumentInvalidFields(t *testing.T) {
	yml := `
people:
  - id: ""
    name: ""
    role: intern
    score: 140
    history:
      - period: ""
        value: -1
      - period: Q1
`
	_, err := ParseAndValidateDocument([]byte(yml), "bad.yml")
	if err == nil {
		t.Fatalf("expected validation error")
	}
	ves, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	want := []string{
		"people[0].id",
		"people[0].name",
		"people[0].role",
		"people[0].score",
		"people[0].history[0].period",
		"people[0].history[0].value",
		"people[0].history[1].value",
	}
	fields := make(map[string]bool)
	for _, ve := range ves {
		fields[ve.Field] = true
		if ve.File != "bad.yml" {
			t.Fatalf("expected file bad.yml, got %q", ve.File)
		}
	}
	for _, f := range want {
		if !fields[f] {
			t.Fatalf("expected error for %s, got %v", f, err)
		}
	}
}

func TestParseAndValidateDocumentEmpty(t *testing.T) {
	if _, err := ParseAndValidateDocument([]byte("people: []\n"), "empty.yml"); err == nil {
		t.Fatalf("expected error for empty people list")
	}
	if _, err := ParseAndValidateDocument([]byte("people: [\n"), "broken.yml"); err == nil {
		t.Fatalf("expected yaml error")
	}
}

func TestNewRejectsDanglingManager(t *testing.T) {
	_, err := New([]Record{
		{ID: "a", Name: "A", Role: RoleCEO, Score: 50},
		{ID: "b", Name: "B", Role: RoleCOO, Score: 50, ManagerID: "ghost"},
	})
	if err == nil || !strings.Contains(err.Error(), `manager "ghost" does not exist`) {
		t.Fatalf("expected dangling manager error, got %v", err)
	}
}

func TestNewRejectsCycles(t *testing.T) {
	_, err := New([]Record{
		{ID: "a", Name: "A", Role: RoleCEO, Score: 50, ManagerID: "c"},
		{ID: "b", Name: "B", Role: RoleCOO, Score: 50, ManagerID: "a"},
		{ID: "c", Name: "C", Role: RoleProjectManager, Score: 50, ManagerID: "b"},
	})
	if err == nil || !strings.Contains(err.Error(), "cycle") {
		t.Fatalf("expected cycle error, got %v", err)
	}
}

func TestNewRejectsDuplicateIDs(t *testing.T) {
	_, err := New([]Record{
		{ID: "a", Name: "A", Role: RoleCEO, Score: 50, Source: "one.yml"},
		{ID: "a", Name: "A2", Role: RoleCTO, Score: 60, Source: "two.yml"},
	})
	var ves ValidationErrors
	if !errors.As(err, &ves) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	if !strings.Contains(err.Error(), "already defined in one.yml") {
		t.Fatalf("expected duplicate id error naming first source, got %v", err)
	}
}

func TestRegistryIndexes(t *testing.T) {
	reg, err := New([]Record{
		{ID: "ceo", Name: "C", Role: RoleCEO, Score: 80},
		{ID: "pm-2", Name: "P2", Role: RoleProjectManager, Score: 60, ManagerID: "coo"},
		{ID: "coo", Name: "O", Role: RoleCOO, Score: 70, ManagerID: "ceo"},
		{ID: "pm-1", Name: "P1", Role: RoleProjectManager, Score: 60, ManagerID: "coo"},
		{ID: "cw", Name: "W", Role: RoleContentWriter, Score: 40, ManagerID: "pm-1"},
	})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	kids := reg.Children("coo")
	if len(kids) != 2 || kids[0].ID != "pm-2" || kids[1].ID != "pm-1" {
		t.Fatalf("children should keep registry order, got %+v", kids)
	}
	if !reg.ReportsTo("cw", "ceo") {
		t.Fatalf("cw should report to ceo")
	}
	if reg.ReportsTo("ceo", "cw") || reg.ReportsTo("ceo", "ceo") {
		t.Fatalf("reachability should follow manager links upward only")
	}
	if got := len(reg.InTier(TierMid)); got != 2 {
		t.Fatalf("expected 2 mid-tier records, got %d", got)
	}

	recs := []Record{kids[1], kids[0]}
	reg.SortByScore(recs)
	if recs[0].ID != "pm-2" {
		t.Fatalf("equal scores should fall back to registry order, got %s first", recs[0].ID)
	}
}

func TestRoleRouting(t *testing.T) {
	if !RoleCOO.Routes(RoleProjectManager) || RoleCOO.Routes(RoleEngineeringManager) {
		t.Fatalf("coo should route only to project managers")
	}
	for _, mid := range RolesInTier(TierMid) {
		if !RoleCEO.Routes(mid) {
			t.Fatalf("ceo should route to every mid-tier role, missing %s", mid)
		}
	}
	if !RoleEngineeringManager.Routes(RoleDeveloper) || RoleEngineeringManager.Routes(RoleDesigner) {
		t.Fatalf("engineering manager should route only to developers")
	}
	if len(RoleDeveloper.SubordinateRoles()) != 0 {
		t.Fatalf("execution roles have no subordinates")
	}
	for _, role := range Roles() {
		if !role.Valid() {
			t.Fatalf("role %s should be valid", role)
		}
		for _, child := range role.SubordinateRoles() {
			if child.Tier() != role.Tier()+1 {
				t.Fatalf("%s routes to %s outside the next tier", role, child)
			}
		}
	}
}

func TestLoadFromDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a_leaders.yml"), `
people:
  - id: ceo-1
    name: Dana
    role: ceo
    score: 78
`)
	writeFile(t, filepath.Join(dir, "b_staff.yaml"), `
people:
  - id: cto-1
    name: Lee
    role: cto
    score: 65
    manager_id: ceo-1
`)

	reg, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if reg.Len() != 2 {
		t.Fatalf("expected 2 records, got %d", reg.Len())
	}
	rec, ok := reg.Lookup("cto-1")
	if !ok || !strings.HasSuffix(rec.Source, "b_staff.yaml") {
		t.Fatalf("expected cto-1 loaded from b_staff.yaml, got %#v", rec)
	}
}

func TestLoadFromDirEmpty(t *testing.T) {
	if _, err := LoadFromDir(t.TempDir()); err == nil {
		t.Fatalf("expected error for empty registry dir")
	}
}

func writeFile(t *testing.T, path string, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write file %s: %v", path, err)
	}
}
