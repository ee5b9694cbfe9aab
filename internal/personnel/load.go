package personnel

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// LoadFromDir loads and validates every registry YAML file in dir and builds
// a single Registry. Files are read in lexical order, which fixes registry order.
func LoadFromDir(dir string) (*Registry, error) {
	if dir == "" {
		dir = "registry"
	}

	files, err := RegistryFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no registry YAML files found in %s", dir)
	}

	var records []Record
	var vErrs ValidationErrors

	for _, path := range files {
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil, fmt.Errorf("read %s: %w", path, readErr)
		}
		recs, parseErr := ParseAndValidateDocument(data, path)
		if parseErr != nil {
			if ve, ok := parseErr.(ValidationErrors); ok {
				vErrs = append(vErrs, ve...)
				continue
			}
			return nil, parseErr
		}
		records = append(records, recs...)
	}

	if len(vErrs) > 0 {
		return nil, vErrs
	}
	return New(records)
}

// RegistryFiles lists the registry YAML files in dir, sorted.
func RegistryFiles(dir string) ([]string, error) {
	var files []string
	for _, pattern := range []string{"*.yml", "*.yaml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("scan registry dir: %w", err)
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}
