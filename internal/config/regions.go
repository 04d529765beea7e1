package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Regions maps a macro-region name to the locations it groups.
type Regions map[string][]string

// LoadRegions reads a regions YAML file and validates it.
func LoadRegions(path string) (Regions, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("regions path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read regions: %w", err)
	}

	var doc struct {
		Regions Regions `yaml:"regions"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse regions: %w", err)
	}

	if err := validateRegions(doc.Regions); err != nil {
		return nil, fmt.Errorf("validate regions: %w", err)
	}

	return doc.Regions, nil
}

// ByLocation inverts the mapping: location → macro-region.
func (r Regions) ByLocation() map[string]string {
	out := make(map[string]string)
	for region, locs := range r {
		for _, loc := range locs {
			out[loc] = region
		}
	}
	return out
}

// Names returns the region names, sorted.
func (r Regions) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Expand resolves a macro-region name to its locations. ok is false when name
// is not a region.
func (r Regions) Expand(name string) ([]string, bool) {
	for region, locs := range r {
		if strings.EqualFold(region, name) {
			return append([]string(nil), locs...), true
		}
	}
	return nil, false
}

func validateRegions(r Regions) error {
	owner := make(map[string]string)
	for _, region := range r.Names() {
		if strings.TrimSpace(region) == "" {
			return errors.New("region name must not be empty")
		}
		if len(r[region]) == 0 {
			return fmt.Errorf("region %q: at least one location is required", region)
		}
		for _, loc := range r[region] {
			if prev, ok := owner[loc]; ok {
				return fmt.Errorf("location %q appears in regions %q and %q", loc, prev, region)
			}
			owner[loc] = region
		}
	}
	return nil
}
