package toolexec

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tool.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun_Success(t *testing.T) {
	tool := writeScript(t, `echo "out $1"; echo "err" >&2`)

	res, err := NewRunner().Run(context.Background(), Command{Name: tool, Args: []string{"arg"}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.Success() {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
	if strings.TrimSpace(res.Stdout) != "out arg" {
		t.Errorf("Stdout = %q, want %q", res.Stdout, "out arg")
	}
	if strings.TrimSpace(res.Stderr) != "err" {
		t.Errorf("Stderr = %q, want %q", res.Stderr, "err")
	}
}

func TestRun_NonZeroExitIsData(t *testing.T) {
	tool := writeScript(t, "echo failing; exit 3")

	res, err := NewRunner().Run(context.Background(), Command{Name: tool})
	if err != nil {
		t.Fatalf("Run() error = %v, want nil for non-zero exit", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
	if res.Success() {
		t.Error("Success() = true, want false")
	}
}

func TestRun_Missing(t *testing.T) {
	_, err := NewRunner().Run(context.Background(), Command{Name: "sitehealth-no-such-tool"})
	if !errors.Is(err, ErrToolMissing) {
		t.Errorf("Run() error = %v, want ErrToolMissing", err)
	}

	_, err = NewRunner().Run(context.Background(), Command{Name: filepath.Join(t.TempDir(), "absent")})
	if !errors.Is(err, ErrToolMissing) {
		t.Errorf("Run(absolute) error = %v, want ErrToolMissing", err)
	}
}

func TestRun_Timeout(t *testing.T) {
	tool := writeScript(t, "sleep 5")

	start := time.Now()
	_, err := (&Runner{WaitDelay: 100 * time.Millisecond}).Run(context.Background(), Command{Name: tool, Timeout: 50 * time.Millisecond})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Run() error = %v, want ErrTimeout", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() error = %v, want it to match context.DeadlineExceeded", err)
	}
	if time.Since(start) > 3*time.Second {
		t.Errorf("Run() took %v, want prompt return after timeout", time.Since(start))
	}
}

func TestRun_DirAndEnv(t *testing.T) {
	tool := writeScript(t, `pwd; echo "$SITEHEALTH_TEST"`)
	dir := t.TempDir()

	res, err := NewRunner().Run(context.Background(), Command{
		Name: tool,
		Dir:  dir,
		Env:  []string{"SITEHEALTH_TEST=yes"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(res.Stdout), "\n")
	if len(lines) != 2 {
		t.Fatalf("Stdout = %q, want 2 lines", res.Stdout)
	}
	wantDir, _ := filepath.EvalSymlinks(dir)
	gotDir, _ := filepath.EvalSymlinks(lines[0])
	if gotDir != wantDir {
		t.Errorf("working dir = %s, want %s", gotDir, wantDir)
	}
	if lines[1] != "yes" {
		t.Errorf("env = %q, want yes", lines[1])
	}
}

func TestRun_OutputCapped(t *testing.T) {
	tool := writeScript(t, `i=0; while [ $i -lt 100 ]; do echo 0123456789; i=$((i+1)); done`)

	res, err := NewRunner().Run(context.Background(), Command{Name: tool, MaxOutput: 64})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(res.Stdout) != 64 {
		t.Errorf("len(Stdout) = %d, want 64", len(res.Stdout))
	}
	if !res.Truncated {
		t.Error("Truncated = false, want true")
	}
}

func TestRun_EmptyCommand(t *testing.T) {
	if _, err := NewRunner().Run(context.Background(), Command{}); !errors.Is(err, ErrEmptyCommand) {
		t.Errorf("Run() error = %v, want ErrEmptyCommand", err)
	}
}

func TestCommand_String(t *testing.T) {
	c := Command{Name: "bundle", Args: []string{"exec", "jekyll", "build", "--dry-run"}}
	if got := c.String(); got != "bundle exec jekyll build --dry-run" {
		t.Errorf("String() = %q", got)
	}
}
