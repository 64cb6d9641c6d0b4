package probe

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonwraymond/sitehealth/fetch"
	"github.com/jonwraymond/sitehealth/resilience"
	"github.com/jonwraymond/sitehealth/toolexec"
)

// toolFunc adapts a function to ToolRunner.
type toolFunc func(ctx context.Context, cmd toolexec.Command) (*toolexec.Result, error)

func (f toolFunc) Run(ctx context.Context, cmd toolexec.Command) (*toolexec.Result, error) {
	return f(ctx, cmd)
}

func exitWith(code int, stdout string) ToolRunner {
	return toolFunc(func(context.Context, toolexec.Command) (*toolexec.Result, error) {
		return &toolexec.Result{ExitCode: code, Stdout: stdout}, nil
	})
}

func toolMissing() ToolRunner {
	return toolFunc(func(_ context.Context, cmd toolexec.Command) (*toolexec.Result, error) {
		return nil, toolexec.ErrToolMissing
	})
}

func newFetcher(timeout time.Duration) *fetch.Client {
	return fetch.New(fetch.Config{
		Timeout: timeout,
		Retry:   resilience.NewRetry(resilience.RetryConfig{MaxAttempts: 1}),
	})
}

// writeTree creates files under a temp dir and returns its path.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, data := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}
