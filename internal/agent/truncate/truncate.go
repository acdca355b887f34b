// Package truncate bounds tool output stored into session history: the
// complete untruncated output is always emitted as a tool_call_end event,
// but the form persisted to history is capped per-tool by char and line
// count, per §4.4/§6.
package truncate

import "fmt"

// Limits holds a tool's char/line cap.
type Limits struct {
	Chars int
	Lines int
}

// Default is applied to tools with no specific entry.
var Default = Limits{Chars: 30000, Lines: 500}

// ByTool is the tool-name → limits table from §6's truncation limits.
var ByTool = map[string]Limits{
	"read_file":   {Chars: 50000, Lines: 500},
	"shell":       {Chars: 30000, Lines: 256},
	"grep":        {Chars: 20000, Lines: 200},
	"glob":        {Chars: 20000, Lines: 500},
	"edit_file":   {Chars: 10000, Lines: 500},
	"apply_patch": {Chars: 10000, Lines: 500},
	"write_file":  {Chars: 1000, Lines: 500},
	"spawn_agent": {Chars: 20000, Lines: 500},
}

// LimitsFor returns the configured limits for a tool, or Default.
func LimitsFor(tool string) Limits {
	if l, ok := ByTool[tool]; ok {
		return l
	}
	return Default
}

// Truncate applies a tool's char/line cap to s using a head/tail collapse:
// when s exceeds either bound, the head and tail are kept and the elided
// middle is replaced with a marker naming how much was dropped.
func Truncate(tool, s string) string {
	return ApplyLimits(LimitsFor(tool), s)
}

// ApplyLimits applies an explicit Limits value to s.
func ApplyLimits(l Limits, s string) string {
	lines := splitLines(s)
	overChars := len(s) > l.Chars && l.Chars > 0
	overLines := l.Lines > 0 && len(lines) > l.Lines

	if !overChars && !overLines {
		return s
	}

	if overLines {
		s, lines = collapseLines(lines, l.Lines)
	}
	if l.Chars > 0 && len(s) > l.Chars {
		s = collapseChars(s, l.Chars)
	}
	return s
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	lines = append(lines, s[start:])
	return lines
}

func collapseLines(lines []string, max int) (string, []string) {
	if len(lines) <= max {
		joined := joinLines(lines)
		return joined, lines
	}
	head := max * 2 / 3
	tail := max - head
	dropped := len(lines) - head - tail
	out := make([]string, 0, head+tail+1)
	out = append(out, lines[:head]...)
	out = append(out, fmt.Sprintf("… [%d lines truncated] …", dropped))
	out = append(out, lines[len(lines)-tail:]...)
	joined := joinLines(out)
	return joined, out
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}

func collapseChars(s string, max int) string {
	if len(s) <= max {
		return s
	}
	marker := fmt.Sprintf("\n… [%d chars truncated] …\n", len(s)-max)
	budget := max - len(marker)
	if budget <= 0 {
		return s[:max]
	}
	head := budget * 2 / 3
	tail := budget - head
	return s[:head] + marker + s[len(s)-tail:]
}
