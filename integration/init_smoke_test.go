package integration_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"orgpulse/integration/harness"
)

func TestInitSmoke(t *testing.T) {
	binPath := harness.BuildBinary(t)
	runDir := t.TempDir()
	workspaceRoot := filepath.Join(t.TempDir(), "workspace-init")

	args := []string{
		"init",
		"--workspace", workspaceRoot,
	}
	stdout, stderr, code := harness.Run(t, binPath, runDir, args)
	if code != 0 {
		t.Fatalf("orgpulse init exit code %d\nstdout:\n%s\nstderr:\n%s", code, stdout, stderr)
	}

	paths := []string{
		filepath.Join(workspaceRoot, "registry"),
		filepath.Join(workspaceRoot, "snapshots"),
		filepath.Join(workspaceRoot, "reports"),
		filepath.Join(workspaceRoot, "audit"),
		filepath.Join(workspaceRoot, "registry", "people.yml"),
		filepath.Join(workspaceRoot, "orgpulse.yml"),
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("missing init path %s: %v", path, err)
		}
	}

	auditPath := filepath.Join(workspaceRoot, "audit", "audit.sqlite")
	if _, err := os.Stat(auditPath); err != nil {
		t.Fatalf("audit db not written at %s: %v", auditPath, err)
	}
	requireAuditEvents(t, auditPath, []string{
		"workspace_init_started",
		"workspace_init_finished",
	})

	stdout, stderr, code = harness.Run(t, binPath, runDir, []string{"registry", "validate", "--workspace", workspaceRoot})
	if code != 0 {
		t.Fatalf("starter registry should validate, exit code %d\nstdout:\n%s\nstderr:\n%s", code, stdout, stderr)
	}
	if !strings.Contains(stdout, "Registry OK: 3 people") {
		t.Fatalf("unexpected validate output:\n%s", stdout)
	}
}

func TestRegistryValidateReportsIssues(t *testing.T) {
	binPath := harness.BuildBinary(t)
	workspace := setupWorkspace(t)
	runDir := t.TempDir()

	broken := "people:\n  - id: ghost-report\n    name: Lee\n    role: developer\n    score: 140\n    manager_id: nobody\n"
	if err := os.WriteFile(filepath.Join(workspace, "registry", "broken.yml"), []byte(broken), 0o644); err != nil {
		t.Fatalf("write broken registry: %v", err)
	}

	_, stderr, code := harness.Run(t, binPath, runDir, []string{"registry", "validate", "--workspace", workspace})
	if code == 0 {
		t.Fatalf("expected validation failure")
	}
	if !strings.Contains(stderr, "broken.yml") || !strings.Contains(stderr, "registry invalid") {
		t.Fatalf("expected file-scoped validation errors, got:\n%s", stderr)
	}
}
