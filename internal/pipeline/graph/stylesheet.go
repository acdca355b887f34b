package graph

import (
	"regexp"
	"strings"
)

var styleProperties = map[string]bool{"llm_model": true, "llm_provider": true, "reasoning_effort": true}

// StyleRule is one CSS-like selector block from a model stylesheet: "*",
// ".classname", or "#nodeid" mapped to a handful of LLM-routing properties.
type StyleRule struct {
	Selector    string
	Specificity int
	Properties  map[string]string
	Order       int
}

var styleRulePattern = regexp.MustCompile(`(?s)([*#.]\S*)\s*\{([^}]*)\}`)

// ParseStylesheet parses a CSS-like model stylesheet into rules.
func ParseStylesheet(text string) []StyleRule {
	var rules []StyleRule
	matches := styleRulePattern.FindAllStringSubmatch(text, -1)
	for i, m := range matches {
		selector := strings.TrimSpace(m[1])
		declText := strings.TrimSpace(m[2])

		var specificity int
		switch {
		case selector == "*":
			specificity = 0
		case strings.HasPrefix(selector, "."):
			specificity = 1
		case strings.HasPrefix(selector, "#"):
			specificity = 2
		default:
			continue
		}

		props := map[string]string{}
		for _, decl := range strings.Split(declText, ";") {
			decl = strings.TrimSpace(decl)
			if decl == "" {
				continue
			}
			parts := strings.SplitN(decl, ":", 2)
			if len(parts) != 2 {
				continue
			}
			key := strings.TrimSpace(parts[0])
			val := strings.TrimSpace(parts[1])
			if styleProperties[key] {
				props[key] = val
			}
		}

		if len(props) > 0 {
			rules = append(rules, StyleRule{Selector: selector, Specificity: specificity, Properties: props, Order: i})
		}
	}
	return rules
}

func styleMatches(rule StyleRule, node *Node) bool {
	if rule.Selector == "*" {
		return true
	}
	if strings.HasPrefix(rule.Selector, "#") {
		return rule.Selector[1:] == node.ID
	}
	if strings.HasPrefix(rule.Selector, ".") {
		cls := rule.Selector[1:]
		for _, c := range node.Classes {
			if c == cls {
				return true
			}
		}
	}
	return false
}

type resolvedStyle struct {
	specificity int
	order       int
	value       string
}

func higherOrEqual(a, b resolvedStyle) bool {
	if a.specificity != b.specificity {
		return a.specificity > b.specificity
	}
	return a.order >= b.order
}

// ApplyStylesheet resolves graph.ModelStylesheet rules onto each node,
// only filling in properties the node does not already set explicitly.
func ApplyStylesheet(g *Graph) {
	if g.ModelStylesheet == "" {
		return
	}
	rules := ParseStylesheet(g.ModelStylesheet)

	for _, node := range g.Nodes {
		resolved := map[string]resolvedStyle{}
		for _, rule := range rules {
			if !styleMatches(rule, node) {
				continue
			}
			for prop, val := range rule.Properties {
				candidate := resolvedStyle{specificity: rule.Specificity, order: rule.Order, value: val}
				existing, ok := resolved[prop]
				if !ok || higherOrEqual(candidate, existing) {
					resolved[prop] = candidate
				}
			}
		}

		for prop, rs := range resolved {
			switch prop {
			case "llm_model":
				if node.LLMModel == "" {
					node.LLMModel = rs.value
				}
			case "llm_provider":
				if node.LLMProvider == "" {
					node.LLMProvider = rs.value
				}
			case "reasoning_effort":
				if node.ReasoningEffort == "high" {
					node.ReasoningEffort = rs.value
				}
			}
		}
	}
}
