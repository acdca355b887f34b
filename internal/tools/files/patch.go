package files

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/haasonsaas/nexus/internal/agent"
)

// ApplyPatchTool applies patches in v4a format to workspace files: a textual
// format of "*** Add/Update/Delete File" operations whose update hunks are
// anchored by @@-prefixed context hints rather than line numbers.
type ApplyPatchTool struct {
	resolver Resolver
}

// NewApplyPatchTool creates an apply_patch tool scoped to the workspace.
func NewApplyPatchTool(cfg Config) *ApplyPatchTool {
	return &ApplyPatchTool{resolver: Resolver{Root: cfg.Workspace}}
}

// Name returns the tool name.
func (t *ApplyPatchTool) Name() string {
	return "apply_patch"
}

// Description returns the tool description.
func (t *ApplyPatchTool) Description() string {
	return "Apply a patch in v4a format (*** Add/Update/Delete File operations with @@-anchored hunks) to create, delete, or update workspace files."
}

// Schema returns the JSON schema for tool parameters.
func (t *ApplyPatchTool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"patch": map[string]interface{}{
				"type":        "string",
				"description": "Patch content in v4a format: *** Begin Patch, one or more *** Add File:/*** Update File:/*** Delete File: sections, *** End Patch.",
			},
		},
		"required": []string{"patch"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

// Execute applies a v4a patch.
func (t *ApplyPatchTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	_ = ctx
	var input struct {
		Patch string `json:"patch"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("Invalid parameters: %v", err)), nil
	}
	if strings.TrimSpace(input.Patch) == "" {
		return toolError("patch is required"), nil
	}

	ops, err := parsePatch(input.Patch)
	if err != nil {
		return toolError(err.Error()), nil
	}
	if len(ops) == 0 {
		return &agent.ToolResult{Content: "No operations in patch"}, nil
	}

	summaries := make([]string, 0, len(ops))
	for _, op := range ops {
		summary, err := t.applyOp(op)
		if err != nil {
			return toolError(err.Error()), nil
		}
		summaries = append(summaries, summary)
	}

	return &agent.ToolResult{Content: strings.Join(summaries, "\n")}, nil
}

// patchOpKind discriminates a parsed v4a operation.
type patchOpKind int

const (
	opAdd patchOpKind = iota
	opDelete
	opUpdate
)

// hunkLine is one line of an update hunk: a diff prefix (' ', '-', '+') plus
// the line content with the prefix stripped.
type hunkLine struct {
	prefix  byte
	content string
}

// patchHunk is one @@-anchored block within an Update File operation.
// contextHint is the free text following "@@ "; it is consulted only when
// exact and whitespace-fuzzy matching both fail to locate the hunk.
type patchHunk struct {
	contextHint string
	lines       []hunkLine
}

// patchOp is one operation parsed from a v4a patch.
type patchOp struct {
	kind       patchOpKind
	path       string
	moveTo     string
	addedLines []string
	hunks      []patchHunk
}

// parsePatch parses a v4a patch string into operations. The grammar:
//
//	*** Begin Patch
//	*** Add File: <path>       (followed by "+"-prefixed lines)
//	*** Delete File: <path>
//	*** Update File: <path>
//	*** Move to: <path>        (optional, directly after Update File)
//	@@ <context hint>
//	 <context line>
//	-<removed line>
//	+<added line>
//	*** End Patch
func parsePatch(text string) ([]patchOp, error) {
	lines := strings.Split(text, "\n")
	var ops []patchOp

	i := 0
	for i < len(lines) && strings.TrimSpace(lines[i]) != "*** Begin Patch" {
		i++
	}
	if i >= len(lines) {
		return nil, fmt.Errorf("invalid patch: missing \"*** Begin Patch\" header")
	}
	i++

	for i < len(lines) {
		line := lines[i]
		if strings.TrimSpace(line) == "*** End Patch" {
			break
		}

		switch {
		case strings.HasPrefix(line, "*** Add File: "):
			path := strings.TrimSpace(strings.TrimPrefix(line, "*** Add File: "))
			i++
			var added []string
			for i < len(lines) && !strings.HasPrefix(lines[i], "***") && !strings.HasPrefix(lines[i], "@@") {
				if strings.HasPrefix(lines[i], "+") {
					added = append(added, lines[i][1:])
				}
				i++
			}
			ops = append(ops, patchOp{kind: opAdd, path: path, addedLines: added})

		case strings.HasPrefix(line, "*** Delete File: "):
			path := strings.TrimSpace(strings.TrimPrefix(line, "*** Delete File: "))
			i++
			ops = append(ops, patchOp{kind: opDelete, path: path})

		case strings.HasPrefix(line, "*** Update File: "):
			path := strings.TrimSpace(strings.TrimPrefix(line, "*** Update File: "))
			i++
			moveTo := ""
			if i < len(lines) && strings.HasPrefix(lines[i], "*** Move to: ") {
				moveTo = strings.TrimSpace(strings.TrimPrefix(lines[i], "*** Move to: "))
				i++
			}
			var hunks []patchHunk
			for i < len(lines) && !strings.HasPrefix(lines[i], "***") {
				if strings.HasPrefix(lines[i], "@@ ") {
					hint := strings.TrimSpace(strings.TrimPrefix(lines[i], "@@"))
					i++
					var hl []hunkLine
					for i < len(lines) && !strings.HasPrefix(lines[i], "@@") && !strings.HasPrefix(lines[i], "***") {
						raw := lines[i]
						if raw != "" && (raw[0] == ' ' || raw[0] == '-' || raw[0] == '+') {
							hl = append(hl, hunkLine{prefix: raw[0], content: raw[1:]})
						}
						i++
					}
					hunks = append(hunks, patchHunk{contextHint: hint, lines: hl})
				} else {
					i++
				}
			}
			ops = append(ops, patchOp{kind: opUpdate, path: path, moveTo: moveTo, hunks: hunks})

		default:
			i++
		}
	}

	return ops, nil
}

func (t *ApplyPatchTool) applyOp(op patchOp) (string, error) {
	switch op.kind {
	case opAdd:
		resolved, err := t.resolver.Resolve(op.path)
		if err != nil {
			return "", err
		}
		content := strings.Join(op.addedLines, "\n")
		if len(op.addedLines) > 0 {
			content += "\n"
		}
		if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
			return "", fmt.Errorf("create directory: %w", err)
		}
		if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
			return "", fmt.Errorf("write file: %w", err)
		}
		return fmt.Sprintf("Added %s", op.path), nil

	case opDelete:
		resolved, err := t.resolver.Resolve(op.path)
		if err != nil {
			return "", err
		}
		if err := os.Remove(resolved); err != nil && !os.IsNotExist(err) {
			return "", fmt.Errorf("delete file: %w", err)
		}
		return fmt.Sprintf("Deleted %s", op.path), nil

	case opUpdate:
		resolved, err := t.resolver.Resolve(op.path)
		if err != nil {
			return "", err
		}
		data, err := os.ReadFile(resolved)
		if err != nil {
			return "", fmt.Errorf("read file: %w", err)
		}

		hadTrailing := strings.HasSuffix(string(data), "\n")
		trimmed := strings.TrimSuffix(string(data), "\n")
		var fileLines []string
		if trimmed != "" {
			fileLines = strings.Split(trimmed, "\n")
		}
		for _, h := range op.hunks {
			fileLines = applyHunk(fileLines, h)
		}
		newContent := strings.Join(fileLines, "\n")
		if len(fileLines) > 0 && hadTrailing {
			newContent += "\n"
		}

		targetPath := op.path
		if op.moveTo != "" {
			targetPath = op.moveTo
		}
		targetResolved, err := t.resolver.Resolve(targetPath)
		if err != nil {
			return "", err
		}
		if err := os.MkdirAll(filepath.Dir(targetResolved), 0o755); err != nil {
			return "", fmt.Errorf("create directory: %w", err)
		}
		if err := os.WriteFile(targetResolved, []byte(newContent), 0o644); err != nil {
			return "", fmt.Errorf("write file: %w", err)
		}
		if op.moveTo != "" && op.moveTo != op.path {
			if err := os.Remove(resolved); err != nil && !os.IsNotExist(err) {
				return "", fmt.Errorf("remove moved file: %w", err)
			}
			return fmt.Sprintf("Updated and moved %s -> %s", op.path, op.moveTo), nil
		}
		return fmt.Sprintf("Updated %s", op.path), nil
	}
	return "", fmt.Errorf("unknown patch operation for %s", op.path)
}

// applyHunk applies one hunk to fileLines, returning the resulting lines.
// Context (' ') and removed ('-') lines mark what must exist in the file;
// added ('+') lines are inserted in their hunk position; context lines are
// re-emitted unchanged.
func applyHunk(fileLines []string, h patchHunk) []string {
	pos := findHunkPosition(fileLines, h)

	existingCount := 0
	for _, l := range h.lines {
		if l.prefix == ' ' || l.prefix == '-' {
			existingCount++
		}
	}

	result := make([]string, 0, len(fileLines)+len(h.lines))
	result = append(result, fileLines[:pos]...)
	for _, l := range h.lines {
		if l.prefix == ' ' || l.prefix == '+' {
			result = append(result, l.content)
		}
	}
	tail := pos + existingCount
	if tail > len(fileLines) {
		tail = len(fileLines)
	}
	result = append(result, fileLines[tail:]...)
	return result
}

// findHunkPosition locates where a hunk's context/removed lines occur in
// fileLines: first by exact match, then by whitespace-normalized fuzzy
// match, then by searching for the hunk's free-text context hint.
func findHunkPosition(fileLines []string, h patchHunk) int {
	var existing []hunkLine
	for _, l := range h.lines {
		if l.prefix == ' ' || l.prefix == '-' {
			existing = append(existing, l)
		}
	}
	if len(existing) == 0 {
		return 0
	}
	if pos := matchLines(fileLines, existing, false); pos >= 0 {
		return pos
	}
	if pos := matchLines(fileLines, existing, true); pos >= 0 {
		return pos
	}
	if hint := strings.TrimSpace(h.contextHint); hint != "" {
		for idx, fl := range fileLines {
			if strings.Contains(strings.TrimSpace(fl), hint) {
				return idx
			}
		}
	}
	return 0
}

func matchLines(fileLines []string, existing []hunkLine, fuzzy bool) int {
	n := len(existing)
	for start := 0; start+n <= len(fileLines); start++ {
		match := true
		for j, l := range existing {
			a, b := fileLines[start+j], l.content
			if fuzzy {
				a, b = normalizeWhitespace(a), normalizeWhitespace(b)
			}
			if a != b {
				match = false
				break
			}
		}
		if match {
			return start
		}
	}
	return -1
}

var whitespaceRun = regexp.MustCompile(`\s+`)

func normalizeWhitespace(s string) string {
	return whitespaceRun.ReplaceAllString(strings.TrimSpace(s), " ")
}
