package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"orgpulse/internal/audit"
	"orgpulse/internal/config"
	"orgpulse/internal/drilldown"
	"orgpulse/internal/kpi"
	"orgpulse/internal/logging"
	"orgpulse/internal/personnel"
	"orgpulse/internal/refresh"
	"orgpulse/internal/server"
	"orgpulse/internal/snapshot"
	"orgpulse/internal/workspace"
)

const appName = "orgpulse"

func main() {
	flag.String("workspace", "", "Path to workspace root")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s: organizational KPI drill-down\n\n", appName)
		fmt.Fprintf(os.Stderr, "Usage:\n  %s [command] [flags]\n\n", appName)
		fmt.Fprintln(os.Stderr, "Commands:")
		fmt.Fprintln(os.Stderr, "  init      Initialize a new workspace")
		fmt.Fprintln(os.Stderr, "  registry  Validate the personnel registry")
		fmt.Fprintln(os.Stderr, "  drill     Print the drill-down dashboard")
		fmt.Fprintln(os.Stderr, "  snapshot  Write and diff registry snapshots")
		fmt.Fprintln(os.Stderr, "  audit     Show recent audit events")
		fmt.Fprintln(os.Stderr, "  serve     Run the HTTP API")
		fmt.Fprintln(os.Stderr, "  help      Show this help")
		fmt.Fprintln(os.Stderr, "\nFlags:")
		flag.PrintDefaults()
	}

	workspacePath, remaining, err := extractWorkspaceFlag(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	args := remaining
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		flag.Usage()
		return
	}

	var runErr error
	switch args[0] {
	case "init":
		runErr = runInit(args[1:], workspacePath)
	case "registry":
		runErr = runRegistry(args[1:], workspacePath)
	case "drill":
		runErr = runDrill(args[1:], workspacePath)
	case "snapshot":
		runErr = runSnapshot(args[1:], workspacePath)
	case "audit":
		runErr = runAudit(args[1:], workspacePath)
	case "serve":
		runErr = runServe(args[1:], workspacePath)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		flag.Usage()
		os.Exit(1)
	}
	if runErr != nil {
		fmt.Fprintln(os.Stderr, runErr)
		os.Exit(1)
	}
}

func extractWorkspaceFlag(args []string) (string, []string, error) {
	var workspacePath string
	remaining := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--workspace" {
			if i+1 >= len(args) {
				return "", nil, fmt.Errorf("--workspace requires a value")
			}
			workspacePath = args[i+1]
			i++
			continue
		}
		if strings.HasPrefix(arg, "--workspace=") {
			workspacePath = strings.TrimPrefix(arg, "--workspace=")
			continue
		}
		remaining = append(remaining, arg)
	}
	return workspacePath, remaining, nil
}

func resolveWorkspace(root string) (*workspace.Workspace, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("--workspace is required")
	}
	return workspace.Resolve(root)
}

// auditLogger honors ORGPULSE_AUDIT_DB before the workspace default.
func auditLogger(ws *workspace.Workspace) *audit.Logger {
	if path := strings.TrimSpace(os.Getenv(audit.EnvDBPath)); path != "" {
		return audit.NewLogger(path)
	}
	return audit.NewLogger(ws.AuditDBPath)
}

func runInit(args []string, workspacePath string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(workspacePath) == "" {
		return fmt.Errorf("--workspace is required")
	}

	root, err := workspace.ResolveRoot(workspacePath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create workspace root: %w", err)
	}
	ws, err := workspace.Resolve(root)
	if err != nil {
		return err
	}

	logger := auditLogger(ws)
	if err := logger.LogEvent("cli", "workspace_init_started", map[string]any{"workspace": ws.Root}); err != nil {
		fmt.Fprintln(os.Stderr, "audit log failed:", err)
	}
	var finishErr error
	defer func() {
		finishPayload := map[string]any{"workspace": ws.Root}
		if finishErr != nil {
			finishPayload["error"] = finishErr.Error()
		}
		_ = logger.LogEvent("cli", "workspace_init_finished", finishPayload)
	}()

	if err := ws.EnsureDirs(); err != nil {
		finishErr = err
		return finishErr
	}
	if err := writeFileIfMissing(filepath.Join(ws.RegistryDir, "people.yml"), starterRegistryTemplate); err != nil {
		finishErr = err
		return finishErr
	}
	if err := writeFileIfMissing(ws.ConfigPath, starterConfigTemplate); err != nil {
		finishErr = err
		return finishErr
	}

	fmt.Fprintf(os.Stdout, "Initialized workspace: %s\n", ws.Root)
	fmt.Fprintln(os.Stdout, "Next steps:")
	fmt.Fprintf(os.Stdout, "  %s registry validate --workspace %s\n", appName, ws.Root)
	fmt.Fprintf(os.Stdout, "  %s drill --workspace %s\n", appName, ws.Root)
	fmt.Fprintf(os.Stdout, "  %s serve --workspace %s\n", appName, ws.Root)
	return nil
}

func runRegistry(args []string, workspacePath string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		return fmt.Errorf("%s registry: missing subcommand", appName)
	}

	switch args[0] {
	case "validate":
		return runRegistryValidate(args[1:], workspacePath)
	default:
		return fmt.Errorf("%s registry: unknown subcommand %q", appName, args[0])
	}
}

func runRegistryValidate(args []string, workspacePath string) error {
	fs := flag.NewFlagSet("registry validate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ws, err := resolveWorkspace(workspacePath)
	if err != nil {
		return err
	}
	files, err := personnel.RegistryFiles(ws.RegistryDir)
	if err != nil {
		return err
	}
	reg, err := personnel.LoadFromDir(ws.RegistryDir)
	if err != nil {
		var verrs personnel.ValidationErrors
		if errors.As(err, &verrs) {
			for _, verr := range verrs {
				fmt.Fprintln(os.Stderr, verr.Error())
			}
			return fmt.Errorf("registry invalid: %d issue(s)", len(verrs))
		}
		return err
	}

	counts := make(map[personnel.Tier]int)
	for _, rec := range reg.All() {
		counts[rec.Tier()]++
	}
	fmt.Fprintf(os.Stdout, "Registry OK: %d people in %d file(s)\n", reg.Len(), len(files))
	for tier := personnel.TierLeadership; tier <= drilldown.MaxTier; tier++ {
		fmt.Fprintf(os.Stdout, "  %-10s %d\n", tier, counts[tier])
	}
	return nil
}

func runDrill(args []string, workspacePath string) error {
	fs := flag.NewFlagSet("drill", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	pathFlag := fs.String("path", "", "Comma-separated breadcrumb of ids from the leader down")
	format := fs.String("format", "text", "Output format: text or json")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *format != "text" && *format != "json" {
		return fmt.Errorf("unknown format: %s", *format)
	}

	ws, err := resolveWorkspace(workspacePath)
	if err != nil {
		return err
	}
	reg, err := personnel.LoadFromDir(ws.RegistryDir)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}

	sel := drilldown.New(reg)
	if ids := splitPath(*pathFlag); len(ids) > 0 {
		if err := sel.SelectPath(ids...); err != nil {
			return err
		}
	}
	dash := kpi.BuildDashboard(sel)

	if *format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(dash)
	}
	printDashboard(dash)
	return nil
}

func splitPath(value string) []string {
	var ids []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			ids = append(ids, part)
		}
	}
	return ids
}

func printDashboard(dash kpi.Dashboard) {
	if len(dash.Path) == 0 {
		fmt.Fprintln(os.Stdout, "Path: (none)")
	} else {
		fmt.Fprintf(os.Stdout, "Path: %s\n", strings.Join(dash.Path, " > "))
	}
	for _, view := range dash.Tiers {
		fmt.Fprintf(os.Stdout, "\n[%s]\n", view.Tier)
		if len(view.Entries) == 0 {
			fmt.Fprintln(os.Stdout, "  (no candidates)")
			continue
		}
		for _, entry := range view.Entries {
			marker := " "
			if entry.Selected {
				marker = "*"
			}
			fmt.Fprintf(os.Stdout, "%s %2d. %-12s %-24s %6.1f %s\n",
				marker, entry.Rank, entry.ID, entry.Name, entry.Score, entry.Band)
		}
	}
	if dash.Active != nil {
		a := dash.Active
		fmt.Fprintf(os.Stdout, "\nActive: %s (%s, %s)\n", a.Name, a.Title, a.ID)
		fmt.Fprintf(os.Stdout, "  score=%.1f band=%s trend=%s\n", a.Score, a.Band, a.Trend)
		if a.Delta != nil {
			fmt.Fprintf(os.Stdout, "  delta=%+.2f\n", *a.Delta)
		}
	}
}

func runSnapshot(args []string, workspacePath string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		return fmt.Errorf("%s snapshot: missing subcommand", appName)
	}

	switch args[0] {
	case "write":
		return runSnapshotWrite(args[1:], workspacePath)
	case "diff":
		return runSnapshotDiff(args[1:], workspacePath)
	default:
		return fmt.Errorf("%s snapshot: unknown subcommand %q", appName, args[0])
	}
}

func runSnapshotWrite(args []string, workspacePath string) error {
	fs := flag.NewFlagSet("snapshot write", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	asOfStr := fs.String("as-of", "", "Snapshot date (YYYY-MM-DD, default: today)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	asOf := time.Now().UTC()
	if *asOfStr != "" {
		parsed, err := time.Parse("2006-01-02", *asOfStr)
		if err != nil {
			return fmt.Errorf("parse --as-of: %w", err)
		}
		asOf = parsed
	}

	ws, err := resolveWorkspace(workspacePath)
	if err != nil {
		return err
	}
	if err := ws.EnsureDirs(); err != nil {
		return err
	}
	reg, err := personnel.LoadFromDir(ws.RegistryDir)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}

	snap := snapshot.FromRegistry(reg, asOf)
	path := snapshot.PathForDate(ws.SnapshotsDir, asOf)
	if err := snapshot.Write(path, snap); err != nil {
		return err
	}

	logger := auditLogger(ws)
	if err := logger.LogEvent("cli", "snapshot_written", map[string]any{
		"path":   path,
		"as_of":  snap.AsOf,
		"people": len(snap.People),
	}); err != nil {
		fmt.Fprintln(os.Stderr, "audit log failed:", err)
	}

	fmt.Fprintf(os.Stdout, "Wrote snapshot: %s (%d people)\n", path, len(snap.People))
	return nil
}

func runSnapshotDiff(args []string, workspacePath string) error {
	fs := flag.NewFlagSet("snapshot diff", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fromPath := fs.String("from", "", "Older snapshot (default: second newest)")
	toPath := fs.String("to", "", "Newer snapshot (default: newest)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ws, err := resolveWorkspace(workspacePath)
	if err != nil {
		return err
	}

	from, to := *fromPath, *toPath
	if from == "" || to == "" {
		older, newer, err := snapshot.LatestPair(ws.SnapshotsDir)
		if err != nil {
			return err
		}
		if from == "" {
			from = older
		}
		if to == "" {
			to = newer
		}
	}
	if from, err = ws.ResolvePath(from); err != nil {
		return fmt.Errorf("resolve --from: %w", err)
	}
	if to, err = ws.ResolvePath(to); err != nil {
		return fmt.Errorf("resolve --to: %w", err)
	}

	prev, err := snapshot.Load(from)
	if err != nil {
		return err
	}
	next, err := snapshot.Load(to)
	if err != nil {
		return err
	}

	changes := snapshot.Compare(prev, next)
	if len(changes) == 0 {
		fmt.Fprintf(os.Stdout, "No changes between %s and %s\n", prev.AsOf, next.AsOf)
		return nil
	}
	for _, change := range changes {
		fmt.Fprintln(os.Stdout, change.String())
	}

	text, err := snapshot.UnifiedDiff(prev, next)
	if err != nil {
		return err
	}
	reportPath := filepath.Join(ws.ReportsDir, next.AsOf+".diff")
	if err := os.MkdirAll(ws.ReportsDir, 0o755); err != nil {
		return fmt.Errorf("ensure reports dir: %w", err)
	}
	if err := os.WriteFile(reportPath, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write diff report: %w", err)
	}

	logger := auditLogger(ws)
	if err := logger.LogEvent("cli", "snapshot_diffed", map[string]any{
		"from":    prev.AsOf,
		"to":      next.AsOf,
		"changes": len(changes),
		"report":  reportPath,
	}); err != nil {
		fmt.Fprintln(os.Stderr, "audit log failed:", err)
	}

	fmt.Fprintf(os.Stdout, "Wrote diff report: %s\n", reportPath)
	return nil
}

func runAudit(args []string, workspacePath string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		return fmt.Errorf("%s audit: missing subcommand", appName)
	}

	switch args[0] {
	case "tail":
		return runAuditTail(args[1:], workspacePath)
	default:
		return fmt.Errorf("%s audit: unknown subcommand %q", appName, args[0])
	}
}

func runAuditTail(args []string, workspacePath string) error {
	fs := flag.NewFlagSet("audit tail", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	limit := fs.Int("limit", 20, "Maximum number of events")
	eventType := fs.String("type", "", "Only show events of this type")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ws, err := resolveWorkspace(workspacePath)
	if err != nil {
		return err
	}
	events, err := auditLogger(ws).Recent(*limit, *eventType)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Fprintln(os.Stdout, "No audit events")
		return nil
	}
	for _, ev := range events {
		fmt.Fprintf(os.Stdout, "%d %s %s %s %s\n", ev.ID, ev.Timestamp, ev.Actor, ev.Type, ev.PayloadJSON)
	}
	return nil
}

func runServe(args []string, workspacePath string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	listen := fs.String("listen", "", "Listen address (default: from orgpulse.yml)")
	noWatch := fs.Bool("no-watch", false, "Disable registry reloads")
	verbose := fs.Bool("verbose", false, "Enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ws, err := resolveWorkspace(workspacePath)
	if err != nil {
		return err
	}
	cfg, err := config.Load(ws.ConfigPath)
	if err != nil {
		return err
	}
	if *listen != "" {
		cfg.Serve.Listen = *listen
	}

	logger, err := logging.New(*verbose)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	reg, err := personnel.LoadFromDir(ws.RegistryDir)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}

	srv, err := server.New(server.Options{
		Registry:    reg,
		MaxSessions: cfg.Serve.MaxSessions,
		Audit:       auditLogger(ws),
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Serve.WatchEnabled() && !*noWatch {
		watcher, err := refresh.NewWatcher(ws.RegistryDir, cfg.Serve.Debounce, func(next *personnel.Registry) {
			srv.SwapRegistry(next)
		}, logger)
		if err != nil {
			return err
		}
		if err := watcher.Start(ctx); err != nil {
			return err
		}
		defer watcher.Stop()
	}

	httpServer := &http.Server{
		Addr:              cfg.Serve.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	logger.Info("serving",
		zap.String("listen", cfg.Serve.Listen),
		zap.String("workspace", ws.Root),
		zap.Int("records", reg.Len()))
	fmt.Fprintf(os.Stdout, "Listening on %s\n", cfg.Serve.Listen)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func writeFileIfMissing(path string, contents string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure dir for %s: %w", path, err)
	}
	return os.WriteFile(path, []byte(contents), 0o644)
}

const starterRegistryTemplate = `people:
  - id: ceo-1
    name: Avery Chen
    role: ceo
    score: 78
    history:
      - period: "2025-Q3"
        value: 74
      - period: "2025-Q4"
        value: 78
  - id: pm-1
    name: Jordan Park
    role: project_manager
    score: 68
    manager_id: ceo-1
  - id: cw-1
    name: Riley Moss
    role: content_writer
    score: 61
    manager_id: pm-1
`

const starterConfigTemplate = `serve:
  listen: 127.0.0.1:8089
  watch: true
  debounce: 500ms
  max_sessions: 256
`
