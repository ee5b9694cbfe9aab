package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"orgpulse/internal/personnel"
)

const SchemaVersion = 1

// Snapshot is a dated, serialized copy of a personnel registry.
type Snapshot struct {
	SchemaVersion int                `json:"schema_version"`
	AsOf          string             `json:"as_of"`
	People        []personnel.Record `json:"people"`
}

// FromRegistry captures reg as of the given date.
func FromRegistry(reg *personnel.Registry, asOf time.Time) Snapshot {
	return Snapshot{
		SchemaVersion: SchemaVersion,
		AsOf:          asOf.UTC().Format("2006-01-02"),
		People:        reg.All(),
	}
}

// Registry rebuilds a validated registry from the snapshot.
func (s *Snapshot) Registry() (*personnel.Registry, error) {
	return personnel.New(s.People)
}

// Write stores the snapshot atomically at path.
func Write(path string, snap Snapshot) error {
	if path == "" {
		return fmt.Errorf("snapshot path is required")
	}
	if snap.AsOf == "" {
		return fmt.Errorf("snapshot as_of is required")
	}
	snap.SchemaVersion = SchemaVersion

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// Load reads and checks a snapshot file.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap Snapshot
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("unsupported snapshot schema_version %d", snap.SchemaVersion)
	}
	if snap.AsOf == "" {
		return nil, fmt.Errorf("snapshot missing as_of")
	}
	return &snap, nil
}

// PathForDate returns the snapshot path for asOf inside dir.
func PathForDate(dir string, asOf time.Time) string {
	date := asOf.UTC().Format("2006-01-02")
	return filepath.Join(dir, date+".json")
}

// List returns snapshot paths in dir, oldest first.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read snapshots dir: %w", err)
	}
	var paths []string
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		name := ent.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		// YYYY-MM-DD.json compares lexicographically in chronological order.
		paths = append(paths, filepath.Join(dir, name))
	}
	sort.Strings(paths)
	return paths, nil
}

// Latest returns the newest snapshot path in dir.
func Latest(dir string) (string, error) {
	paths, err := List(dir)
	if err != nil {
		return "", err
	}
	if len(paths) == 0 {
		return "", fmt.Errorf("no snapshots found in %s", dir)
	}
	return paths[len(paths)-1], nil
}

// LatestPair returns the two newest snapshot paths, older first.
func LatestPair(dir string) (string, string, error) {
	paths, err := List(dir)
	if err != nil {
		return "", "", err
	}
	if len(paths) < 2 {
		return "", "", fmt.Errorf("need two snapshots in %s, found %d", dir, len(paths))
	}
	return paths[len(paths)-2], paths[len(paths)-1], nil
}
