package service

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"civildocs_backend/internal/communes/repository"
)

// seedFile is the on-disk shape of the commune seed data.
type seedFile struct {
	Communes []seedCommune `yaml:"communes"`
}

type seedCommune struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Region      string `yaml:"region"`
	Department  string `yaml:"department"`
}

// SeedFromFile loads communes from a YAML file and upserts each one.
// Existing communes keep their counters; only descriptive fields refresh.
func (s *Service) SeedFromFile(ctx context.Context, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read commune seed file: %w", err)
	}

	var file seedFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return 0, fmt.Errorf("parse commune seed file: %w", err)
	}

	count := 0
	for _, sc := range file.Communes {
		if sc.Name == "" || sc.Region == "" || sc.Department == "" {
			s.log.Warn("skipping incomplete seed commune", "name", sc.Name)
			continue
		}

		params := repository.CreateParams{
			Name:       sc.Name,
			Region:     sc.Region,
			Department: sc.Department,
		}
		if sc.Description != "" {
			desc := sc.Description
			params.Description = &desc
		}

		if _, err := s.repo.Upsert(ctx, params); err != nil {
			return count, fmt.Errorf("seed commune %q: %w", sc.Name, err)
		}
		count++
	}

	s.log.Info("communes seeded", "count", count, "file", path)
	return count, nil
}
