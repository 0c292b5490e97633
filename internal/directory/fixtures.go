package directory

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type profilesFile struct {
	Profiles []*Profile `yaml:"profiles"`
}

// LoadProfiles reads a YAML document with a top-level `profiles` list.
func LoadProfiles(path string) ([]*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profiles file %q: %w", path, err)
	}

	var doc profilesFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing profiles file %q: %w", path, err)
	}

	seen := make(map[string]struct{}, len(doc.Profiles))
	for i, p := range doc.Profiles {
		if p == nil {
			return nil, fmt.Errorf("profile #%d is empty", i)
		}
		p.UID = strings.TrimSpace(p.UID)
		if p.UID == "" {
			return nil, fmt.Errorf("profile #%d has no uid", i)
		}
		if _, ok := seen[p.UID]; ok {
			return nil, fmt.Errorf("duplicate profile uid %q", p.UID)
		}
		seen[p.UID] = struct{}{}

		switch p.UserType {
		case UserTypeMentor, UserTypeMentee, UserTypePM:
		default:
			return nil, fmt.Errorf("profile %q has unknown user type %q", p.UID, p.UserType)
		}
	}

	return doc.Profiles, nil
}

// Seed stores the profiles in order.
func Seed(ctx context.Context, store ProfileStore, profiles []*Profile) error {
	for _, p := range profiles {
		if err := store.PutProfile(ctx, p); err != nil {
			return fmt.Errorf("storing profile %q: %w", p.UID, err)
		}
	}
	return nil
}
