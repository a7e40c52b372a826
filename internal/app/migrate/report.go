package migrate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DuplicateReport is the YAML document written for duplicate job numbers.
type DuplicateReport struct {
	GeneratedAt time.Time        `yaml:"generated_at"`
	Groups      []DuplicateGroup `yaml:"groups"`
}

// WriteDuplicateReport writes groups to path as YAML.
func WriteDuplicateReport(path string, groups []DuplicateGroup, now time.Time) error {
	data, err := yaml.Marshal(DuplicateReport{GeneratedAt: now.UTC(), Groups: groups})
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func (s *Service) writeDuplicateReport(groups []DuplicateGroup) error {
	if s.opts.ReportPath == "" || len(groups) == 0 {
		return nil
	}
	return WriteDuplicateReport(s.opts.ReportPath, groups, s.opts.Now())
}

// Duplicates reads the legacy jobs and reports duplicate numbers without
// migrating anything.
func (s *Service) Duplicates(ctx context.Context) ([]DuplicateGroup, error) {
	jobs, err := s.source.Jobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read legacy jobs: %w", err)
	}
	return FindDuplicateNumbers(jobs), nil
}
