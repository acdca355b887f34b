package env

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestExecCommandRunsSuccessfully(t *testing.T) {
	l := NewLocal(t.TempDir())
	result, err := l.ExecCommand(context.Background(), "echo hello", 5000, "", nil)
	if err != nil {
		t.Fatalf("ExecCommand: %v", err)
	}
	if result.TimedOut {
		t.Fatal("expected no timeout")
	}
	if !strings.Contains(result.Stdout, "hello") {
		t.Fatalf("expected stdout to contain hello, got %q", result.Stdout)
	}
	if result.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %d", result.ExitCode)
	}
}

func TestExecCommandTimeoutEscalation(t *testing.T) {
	l := NewLocal(t.TempDir())
	start := time.Now()
	result, err := l.ExecCommand(context.Background(), "sleep 10", 200, "", nil)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("ExecCommand: %v", err)
	}
	if !result.TimedOut {
		t.Fatal("expected timed_out=true")
	}
	if result.ExitCode != -1 {
		t.Fatalf("expected exit_code=-1, got %d", result.ExitCode)
	}
	if result.Stderr != "Command timed out" {
		t.Fatalf("expected stderr %q, got %q", "Command timed out", result.Stderr)
	}
	if elapsed >= 3*time.Second {
		t.Fatalf("expected wall time under 3s (soft->hard escalation), took %v", elapsed)
	}
}

func TestExecCommandNonZeroExit(t *testing.T) {
	l := NewLocal(t.TempDir())
	result, err := l.ExecCommand(context.Background(), "exit 7", 5000, "", nil)
	if err != nil {
		t.Fatalf("ExecCommand: %v", err)
	}
	if result.ExitCode != 7 {
		t.Fatalf("expected exit code 7, got %d", result.ExitCode)
	}
}

func TestGlobSortsByModTimeDescending(t *testing.T) {
	root := t.TempDir()
	l := NewLocal(root)
	ctx := context.Background()

	if err := l.WriteFile(ctx, "a.txt", []byte("a")); err != nil {
		t.Fatalf("write a: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := l.WriteFile(ctx, "b.txt", []byte("b")); err != nil {
		t.Fatalf("write b: %v", err)
	}

	matches, err := l.Glob(ctx, "*.txt", ".")
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	if len(matches) != 2 || matches[0] != "b.txt" || matches[1] != "a.txt" {
		t.Fatalf("expected [b.txt a.txt] by descending mtime, got %v", matches)
	}
}

func TestGrepFindsMatches(t *testing.T) {
	root := t.TempDir()
	l := NewLocal(root)
	ctx := context.Background()
	if err := l.WriteFile(ctx, "needle.txt", []byte("find the needle here\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	out, err := l.Grep(ctx, "needle", ".", false, "", 0)
	if err != nil {
		t.Fatalf("Grep: %v", err)
	}
	if !strings.Contains(out, "needle.txt") {
		t.Fatalf("expected match to reference needle.txt, got %q", out)
	}
}
