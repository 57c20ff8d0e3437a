// Package artifacts persists rendered report documents for the user,
// standing in for the browser's save-file action.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"

	"psycho-client/internal/report"
	"psycho-client/internal/shared/util"
)

// Store writes artifacts under a base directory.
type Store struct {
	baseDir string
}

// NewStore creates a store rooted at baseDir.
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// Save writes one artifact to disk and returns its path.
func (s *Store) Save(artifact report.Artifact) (string, error) {
	name, err := util.SanitizeFileName(artifact.Name)
	if err != nil {
		return "", fmt.Errorf("artifact name: %w", err)
	}
	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir: %w", err)
	}
	path := filepath.Join(s.baseDir, name)
	if err := os.WriteFile(path, artifact.Data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return path, nil
}

// SaveAll writes each artifact, collecting per-file failures without
// stopping. It returns the saved paths and any errors in input order.
func (s *Store) SaveAll(artifacts []report.Artifact) ([]string, []error) {
	var paths []string
	var errs []error
	for _, artifact := range artifacts {
		path, err := s.Save(artifact)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", artifact.Name, err))
			continue
		}
		paths = append(paths, path)
	}
	return paths, errs
}
