package harness

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// IsVectorFile reports whether name looks like a test vector file.
func IsVectorFile(name string) bool {
	return strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".json.gz")
}

// Decode reads a JSON array of tests from r.
func Decode(r io.Reader) ([]Test, error) {
	var tests []Test
	if err := json.NewDecoder(r).Decode(&tests); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}
	return tests, nil
}

// LoadFile loads the tests of a .json or .json.gz file.
func LoadFile(path string) ([]Test, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open test file: %w", err)
	}
	defer file.Close()

	var r io.Reader = file
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	tests, err := Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tests, nil
}

// Discover returns the vector files to run for path. A directory yields
// its .json and .json.gz files in name order; a file is returned as is.
func Discover(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !IsVectorFile(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(path, entry.Name()))
	}
	return files, nil
}

// Matches reports whether a test name contains any of the filters.
// With no filters every name matches.
func Matches(name string, filters []string) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if strings.Contains(name, f) {
			return true
		}
	}
	return false
}

// Filter returns the tests whose names match the filters.
func Filter(tests []Test, filters []string) []Test {
	if len(filters) == 0 {
		return tests
	}
	var out []Test
	for _, t := range tests {
		if Matches(t.Name, filters) {
			out = append(out, t)
		}
	}
	return out
}
