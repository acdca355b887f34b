// Package subagent implements the subagent manager: an AGENTS.md-backed
// catalog of agent definitions, and a runtime manager that spawns,
// drives, and tears down child sessions under a depth bound.
package subagent

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// AgentDefinition describes one agent catalog entry: its identity, base
// prompt, and the provider/model/tool selection a spawned session for it
// should use.
type AgentDefinition struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description,omitempty"`
	SystemPrompt  string   `json:"system_prompt,omitempty"`
	Model         string   `json:"model,omitempty"`
	Provider      string   `json:"provider,omitempty"`
	AgentDir      string   `json:"agent_dir,omitempty"`
	Tools         []string `json:"tools,omitempty"`
	MaxIterations int      `json:"max_iterations,omitempty"`
}

// Clone returns a deep copy of the definition.
func (a *AgentDefinition) Clone() *AgentDefinition {
	if a == nil {
		return nil
	}
	clone := *a
	if a.Tools != nil {
		clone.Tools = append([]string(nil), a.Tools...)
	}
	return &clone
}

// HasTool reports whether the agent declares access to the named tool.
func (a *AgentDefinition) HasTool(name string) bool {
	for _, t := range a.Tools {
		if t == name {
			return true
		}
	}
	return false
}

// AgentManifest is the set of agent definitions loaded from an AGENTS.md
// file.
type AgentManifest struct {
	Agents []AgentDefinition `json:"agents"`
	Source string            `json:"source,omitempty"`
}

var (
	agentHeaderRe   = regexp.MustCompile(`^#\s+Agent:\s*(.+)$`)
	sectionHeaderRe = regexp.MustCompile(`^##\s+(.+)$`)
	propertyRe      = regexp.MustCompile(`^([A-Za-z_]+):\s*(.*)$`)
	listItemRe      = regexp.MustCompile(`^[-*]\s+(.+)$`)
)

// LoadAgentsManifest reads and parses an AGENTS.md file at path.
func LoadAgentsManifest(path string) (*AgentManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read AGENTS.md: %w", err)
	}
	return ParseAgentsMarkdown(string(data), path)
}

// ParseAgentsMarkdown parses "# Agent: id" sections with "## System
// Prompt" and "## Tools" subsections into an AgentManifest. Property
// lines (Name:, Description:, Model:, Provider:, Max_Iterations:) are
// read before the first subsection header.
func ParseAgentsMarkdown(content, source string) (*AgentManifest, error) {
	manifest := &AgentManifest{Source: source}

	scanner := bufio.NewScanner(strings.NewReader(content))
	var current *AgentDefinition
	var section string
	var sectionBody strings.Builder

	flush := func() {
		if current == nil || section == "" {
			return
		}
		body := strings.TrimSpace(sectionBody.String())
		switch strings.ToLower(section) {
		case "system prompt", "systemprompt", "prompt":
			current.SystemPrompt = body
		case "description":
			if current.Description == "" {
				current.Description = body
			}
		}
		sectionBody.Reset()
	}

	for scanner.Scan() {
		line := scanner.Text()

		if m := agentHeaderRe.FindStringSubmatch(line); len(m) > 1 {
			if current != nil {
				flush()
				manifest.Agents = append(manifest.Agents, *current)
			}
			id := strings.TrimSpace(m[1])
			current = &AgentDefinition{ID: id, Name: id}
			section = ""
			continue
		}
		if current == nil {
			continue
		}

		if m := sectionHeaderRe.FindStringSubmatch(line); len(m) > 1 {
			flush()
			section = strings.TrimSpace(m[1])
			continue
		}

		if section == "" {
			if m := propertyRe.FindStringSubmatch(line); len(m) > 2 {
				key := strings.ToLower(m[1])
				value := strings.TrimSpace(m[2])
				switch key {
				case "name":
					current.Name = value
				case "description":
					current.Description = value
				case "model":
					current.Model = value
				case "provider":
					current.Provider = value
				case "agent_dir", "agentdir":
					current.AgentDir = value
				case "max_iterations", "maxiterations":
					if n, err := strconv.Atoi(value); err == nil {
						current.MaxIterations = n
					}
				}
				continue
			}
		}

		switch strings.ToLower(section) {
		case "tools":
			if m := listItemRe.FindStringSubmatch(line); len(m) > 1 {
				current.Tools = append(current.Tools, strings.TrimSpace(m[1]))
			}
		case "system prompt", "systemprompt", "prompt", "description":
			sectionBody.WriteString(line)
			sectionBody.WriteString("\n")
		}
	}

	if current != nil {
		flush()
		manifest.Agents = append(manifest.Agents, *current)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read AGENTS.md: %w", err)
	}
	return manifest, nil
}

// Find returns the agent with the given id, or nil.
func (m *AgentManifest) Find(id string) *AgentDefinition {
	for i := range m.Agents {
		if m.Agents[i].ID == id {
			return &m.Agents[i]
		}
	}
	return nil
}
