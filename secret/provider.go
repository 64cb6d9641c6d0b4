package secret

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Provider resolves secrets by reference string.
//
// Implementations must be safe for concurrent use and must not log secret values.
type Provider interface {
	Name() string
	Resolve(ctx context.Context, ref string) (string, error)
}

// EnvProvider reads environment variables.
type EnvProvider struct {
	lookup func(string) (string, bool)
}

// NewEnvProvider returns a provider over the process environment.
func NewEnvProvider() *EnvProvider {
	return &EnvProvider{lookup: os.LookupEnv}
}

// Name implements Provider.
func (p *EnvProvider) Name() string { return "env" }

// Resolve implements Provider.
func (p *EnvProvider) Resolve(_ context.Context, ref string) (string, error) {
	v, ok := p.lookup(ref)
	if !ok {
		return "", fmt.Errorf("%w: environment variable %s", ErrNotFound, ref)
	}
	return v, nil
}

// FileProvider reads files, such as mounted container secrets.
type FileProvider struct {
	// Root, when set, is prepended to relative references.
	Root string
}

// NewFileProvider returns a provider reading files under root.
func NewFileProvider(root string) *FileProvider {
	return &FileProvider{Root: root}
}

// Name implements Provider.
func (p *FileProvider) Name() string { return "file" }

// Resolve implements Provider.
func (p *FileProvider) Resolve(_ context.Context, ref string) (string, error) {
	path := ref
	if !filepath.IsAbs(path) && p.Root != "" {
		path = filepath.Join(p.Root, path)
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", fmt.Errorf("%w: file %s", ErrNotFound, path)
	}
	if err != nil {
		return "", fmt.Errorf("secret: read %s: %w", path, err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}
