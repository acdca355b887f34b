package truncate

import (
	"strings"
	"testing"
)

func TestUnderLimitsUnchanged(t *testing.T) {
	s := "short output"
	if got := Truncate("read_file", s); got != s {
		t.Fatalf("expected unchanged output, got %q", got)
	}
}

func TestCharLimitApplied(t *testing.T) {
	s := strings.Repeat("a", 2000)
	got := Truncate("write_file", s) // write_file cap: 1000 chars
	if len(got) > 1000 {
		t.Fatalf("expected output capped near 1000 chars, got %d", len(got))
	}
	if !strings.Contains(got, "truncated") {
		t.Fatal("expected truncation marker")
	}
}

func TestLineLimitApplied(t *testing.T) {
	var lines []string
	for i := 0; i < 600; i++ {
		lines = append(lines, "line")
	}
	s := strings.Join(lines, "\n")
	got := Truncate("grep", s) // grep cap: 200 lines
	gotLines := strings.Split(got, "\n")
	if len(gotLines) > 201 {
		t.Fatalf("expected line-capped output, got %d lines", len(gotLines))
	}
}

func TestDefaultLimitsForUnknownTool(t *testing.T) {
	l := LimitsFor("some_unlisted_tool")
	if l != Default {
		t.Fatalf("expected default limits, got %+v", l)
	}
}

func TestHeadAndTailPreserved(t *testing.T) {
	s := "HEAD_MARKER\n" + strings.Repeat("filler\n", 1000) + "TAIL_MARKER"
	got := Truncate("shell", s)
	if !strings.Contains(got, "HEAD_MARKER") {
		t.Fatal("expected head content preserved")
	}
	if !strings.Contains(got, "TAIL_MARKER") {
		t.Fatal("expected tail content preserved")
	}
}
