package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultPaths returns the search order for config files.
func DefaultPaths() []string {
	paths := []string{"sitehealth.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "sitehealth", "config.yaml"))
	}
	return append(paths, "/etc/sitehealth/config.yaml")
}

// Resolve loads the config from the given explicit path, or searches the
// default locations.
func Resolve(ctx context.Context, explicit string) (*Config, error) {
	path, err := find(explicit, DefaultPaths())
	if err != nil {
		return nil, err
	}
	return Load(ctx, path)
}

func find(explicit string, search []string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("%w: %s", ErrNoConfig, explicit)
		}
		return explicit, nil
	}
	for _, p := range search {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w (searched %v)", ErrNoConfig, search)
}
