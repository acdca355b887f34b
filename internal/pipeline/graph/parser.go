package graph

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var boolAttrs = map[string]bool{
	"goal_gate": true, "auto_status": true, "allow_partial": true, "loop_restart": true,
}

var intAttrs = map[string]bool{
	"max_retries": true, "weight": true, "default_max_retry": true,
}

var blockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
var lineComment = regexp.MustCompile(`//[^\n]*`)

func stripComments(text string) string {
	text = blockComment.ReplaceAllString(text, "")
	text = lineComment.ReplaceAllString(text, "")
	return text
}

// attrValue is the parsed representation of one DOT attribute's right-hand
// side: a string, bool, int64, or float64, mirroring Python's loosely typed
// attribute dict.
type attrValue struct {
	raw string
}

func (v attrValue) asString() string {
	if strings.HasPrefix(v.raw, "\x00q") {
		return strings.TrimPrefix(v.raw, "\x00q")
	}
	return v.raw
}

func (v attrValue) asBool() bool {
	return strings.ToLower(v.asString()) == "true"
}

func (v attrValue) asInt() int {
	n, _ := strconv.Atoi(v.asString())
	return n
}

func parseValue(raw string) attrValue {
	if len(raw) >= 2 && strings.HasPrefix(raw, `"`) && strings.HasSuffix(raw, `"`) {
		s := raw[1 : len(raw)-1]
		s = strings.ReplaceAll(s, `\"`, `"`)
		s = strings.ReplaceAll(s, `\n`, "\n")
		s = strings.ReplaceAll(s, `\t`, "\t")
		s = strings.ReplaceAll(s, `\\`, `\`)
		return attrValue{raw: "\x00q" + s}
	}
	return attrValue{raw: raw}
}

func tokenize(text string) []string {
	tokens := make([]string, 0, 128)
	i := 0
	n := len(text)
	isSep := func(c byte) bool {
		switch c {
		case ' ', '\t', '\n', '\r', '{', '}', '[', ']', ',', '=', ';', '"':
			return true
		}
		return false
	}
	for i < n {
		c := text[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == ';':
			i++
		case strings.ContainsRune("{}[],=", rune(c)):
			tokens = append(tokens, string(c))
			i++
		case c == '-' && i+1 < n && text[i+1] == '>':
			tokens = append(tokens, "->")
			i += 2
		case c == '"':
			j := i + 1
			for j < n {
				if text[j] == '\\' && j+1 < n {
					j += 2
				} else if text[j] == '"' {
					j++
					break
				} else {
					j++
				}
			}
			tokens = append(tokens, text[i:j])
			i = j
		default:
			j := i
			for j < n && !isSep(text[j]) && !(text[j] == '-' && j+1 < n && text[j+1] == '>') {
				j++
			}
			if j > i {
				tokens = append(tokens, text[i:j])
			}
			i = j
		}
	}
	return tokens
}

func coerceAttr(key string, v attrValue) attrValue {
	if boolAttrs[key] {
		if v.asBool() {
			return attrValue{raw: "true"}
		}
		return attrValue{raw: "false"}
	}
	return v
}

func applyAttrsToNode(node *Node, attrs map[string]attrValue) {
	for key, raw := range attrs {
		v := coerceAttr(key, raw)
		switch key {
		case "label":
			node.Label = v.asString()
		case "shape":
			node.Shape = v.asString()
		case "type":
			node.Type = v.asString()
		case "prompt":
			node.Prompt = v.asString()
		case "max_retries":
			node.MaxRetries = v.asInt()
		case "goal_gate":
			node.GoalGate = v.asBool()
		case "retry_target":
			node.RetryTarget = v.asString()
		case "fallback_retry_target":
			node.FallbackRetryTarget = v.asString()
		case "fidelity":
			node.Fidelity = v.asString()
		case "thread_id":
			node.ThreadID = v.asString()
		case "class":
			var classes []string
			for _, c := range strings.Split(v.asString(), ",") {
				c = strings.TrimSpace(c)
				if c != "" {
					classes = append(classes, c)
				}
			}
			node.Classes = classes
		case "timeout":
			node.Timeout = v.asString()
		case "llm_model":
			node.LLMModel = v.asString()
		case "llm_provider":
			node.LLMProvider = v.asString()
		case "reasoning_effort":
			node.ReasoningEffort = v.asString()
		case "auto_status":
			node.AutoStatus = v.asBool()
		case "allow_partial":
			node.AllowPartial = v.asBool()
		default:
			node.Extra[key] = v.asString()
		}
	}
}

func applyAttrsToEdge(edge *Edge, attrs map[string]attrValue) {
	for key, raw := range attrs {
		v := coerceAttr(key, raw)
		switch key {
		case "label":
			edge.Label = v.asString()
		case "condition":
			edge.Condition = v.asString()
		case "weight":
			edge.Weight = v.asInt()
		case "fidelity":
			edge.Fidelity = v.asString()
		case "thread_id":
			edge.ThreadID = v.asString()
		case "loop_restart":
			edge.LoopRestart = v.asBool()
		default:
			edge.Extra[key] = v.asString()
		}
	}
}

// parser is a recursive-descent parser over a tokenized DOT source.
type parser struct {
	tokens []string
	pos    int
}

func (p *parser) peek() (string, bool) {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos], true
	}
	return "", false
}

func (p *parser) advance() (string, error) {
	if p.pos >= len(p.tokens) {
		return "", fmt.Errorf("unexpected end of input")
	}
	tok := p.tokens[p.pos]
	p.pos++
	return tok, nil
}

func (p *parser) expect(value string) error {
	tok, err := p.advance()
	if err != nil {
		return err
	}
	if tok != value {
		return fmt.Errorf("expected %q, got %q", value, tok)
	}
	return nil
}

// Parse parses a DOT digraph source string into a Graph.
func Parse(text string) (*Graph, error) {
	cleaned := stripComments(text)
	tokens := tokenize(cleaned)
	p := &parser{tokens: tokens}
	return p.parseGraph()
}

func (p *parser) parseGraph() (*Graph, error) {
	if err := p.expect("digraph"); err != nil {
		return nil, err
	}
	name, err := p.advance()
	if err != nil {
		return nil, err
	}
	if err := p.expect("{"); err != nil {
		return nil, err
	}
	g := New()
	g.Name = name
	if err := p.parseStatements(g, map[string]attrValue{}, map[string]attrValue{}, ""); err != nil {
		return nil, err
	}
	if err := p.expect("}"); err != nil {
		return nil, err
	}
	return g, nil
}

func cloneAttrs(m map[string]attrValue) map[string]attrValue {
	out := make(map[string]attrValue, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (p *parser) parseStatements(g *Graph, nodeDefaults, edgeDefaults map[string]attrValue, subgraphName string) error {
	for {
		tok, ok := p.peek()
		if !ok || tok == "}" {
			return nil
		}

		switch tok {
		case "graph":
			p.advance()
			if next, ok := p.peek(); ok && next == "[" {
				attrs, err := p.parseAttrBlock()
				if err != nil {
					return err
				}
				applyGraphAttrs(g, attrs)
			}
			continue
		case "node":
			p.advance()
			if next, ok := p.peek(); ok && next == "[" {
				attrs, err := p.parseAttrBlock()
				if err != nil {
					return err
				}
				for k, v := range attrs {
					nodeDefaults[k] = v
					g.NodeDefaults[k] = v.asString()
				}
			}
			continue
		case "edge":
			p.advance()
			if next, ok := p.peek(); ok && next == "[" {
				attrs, err := p.parseAttrBlock()
				if err != nil {
					return err
				}
				for k, v := range attrs {
					edgeDefaults[k] = v
					g.EdgeDefaults[k] = v.asString()
				}
			}
			continue
		case "subgraph":
			p.advance()
			sgName := ""
			if next, ok := p.peek(); ok && next != "{" {
				sgName, _ = p.advance()
			}
			if err := p.expect("{"); err != nil {
				return err
			}
			childNodeDefaults := cloneAttrs(nodeDefaults)
			childEdgeDefaults := cloneAttrs(edgeDefaults)
			if err := p.parseStatements(g, childNodeDefaults, childEdgeDefaults, sgName); err != nil {
				return err
			}
			if err := p.expect("}"); err != nil {
				return err
			}
			sg, exists := g.Subgraphs[sgName]
			if !exists {
				sg = &Subgraph{Name: sgName}
			}
			sg.NodeDefaults = map[string]string{}
			for k, v := range childNodeDefaults {
				sg.NodeDefaults[k] = v.asString()
			}
			sg.EdgeDefaults = map[string]string{}
			for k, v := range childEdgeDefaults {
				sg.EdgeDefaults[k] = v.asString()
			}
			g.Subgraphs[sgName] = sg
			continue
		}

		if p.isGraphAttrDecl() {
			key, _ := p.advance()
			if err := p.expect("="); err != nil {
				return err
			}
			raw, err := p.advance()
			if err != nil {
				return err
			}
			applyGraphAttrs(g, map[string]attrValue{key: parseValue(raw)})
			continue
		}

		if p.isEdgeStmt() {
			if err := p.parseEdgeStmt(g, edgeDefaults, nodeDefaults, subgraphName); err != nil {
				return err
			}
			continue
		}

		if err := p.parseNodeStmt(g, nodeDefaults, subgraphName); err != nil {
			return err
		}
	}
}

func (p *parser) isGraphAttrDecl() bool {
	if p.pos+2 >= len(p.tokens) {
		return false
	}
	return p.tokens[p.pos+1] == "=" && p.tokens[p.pos+2] != "["
}

func (p *parser) isEdgeStmt() bool {
	i := p.pos + 1
	for i < len(p.tokens) {
		t := p.tokens[i]
		if t == "{" || t == "}" || t == ";" {
			return false
		}
		if t == "->" {
			return true
		}
		if t == "[" {
			return false
		}
		i++
	}
	return false
}

func (p *parser) parseNodeStmt(g *Graph, defaults map[string]attrValue, subgraphName string) error {
	nodeID, err := p.advance()
	if err != nil {
		return err
	}
	attrs := cloneAttrs(defaults)
	if next, ok := p.peek(); ok && next == "[" {
		block, err := p.parseAttrBlock()
		if err != nil {
			return err
		}
		for k, v := range block {
			attrs[k] = v
		}
	}

	node, exists := g.Nodes[nodeID]
	if !exists {
		node = NewNode(nodeID)
	}
	applyAttrsToNode(node, attrs)
	if subgraphName != "" {
		node.Subgraph = subgraphName
		sg, ok := g.Subgraphs[subgraphName]
		if !ok {
			sg = &Subgraph{Name: subgraphName}
			g.Subgraphs[subgraphName] = sg
		}
		found := false
		for _, id := range sg.NodeIDs {
			if id == nodeID {
				found = true
				break
			}
		}
		if !found {
			sg.NodeIDs = append(sg.NodeIDs, nodeID)
		}
		if sg.Label != "" {
			if cls := sg.DerivedClass(); cls != "" {
				hasClass := false
				for _, c := range node.Classes {
					if c == cls {
						hasClass = true
						break
					}
				}
				if !hasClass {
					node.Classes = append(node.Classes, cls)
				}
			}
		}
	}
	g.Nodes[nodeID] = node
	return nil
}

func (p *parser) parseEdgeStmt(g *Graph, edgeDefaults, nodeDefaults map[string]attrValue, subgraphName string) error {
	first, err := p.advance()
	if err != nil {
		return err
	}
	chain := []string{first}
	for {
		next, ok := p.peek()
		if !ok || next != "->" {
			break
		}
		p.advance()
		target, err := p.advance()
		if err != nil {
			return err
		}
		chain = append(chain, target)
	}

	attrs := cloneAttrs(edgeDefaults)
	if next, ok := p.peek(); ok && next == "[" {
		block, err := p.parseAttrBlock()
		if err != nil {
			return err
		}
		for k, v := range block {
			attrs[k] = v
		}
	}

	for _, nodeID := range chain {
		if _, ok := g.Nodes[nodeID]; !ok {
			node := NewNode(nodeID)
			applyAttrsToNode(node, nodeDefaults)
			if subgraphName != "" {
				node.Subgraph = subgraphName
			}
			g.Nodes[nodeID] = node
		}
	}

	for i := 0; i < len(chain)-1; i++ {
		edge := &Edge{Source: chain[i], Target: chain[i+1], Extra: map[string]string{}}
		applyAttrsToEdge(edge, attrs)
		g.Edges = append(g.Edges, edge)
	}
	return nil
}

func (p *parser) parseAttrBlock() (map[string]attrValue, error) {
	if err := p.expect("["); err != nil {
		return nil, err
	}
	attrs := map[string]attrValue{}
	for {
		tok, ok := p.peek()
		if !ok || tok == "]" {
			break
		}
		if tok == "," {
			p.advance()
			continue
		}
		key, err := p.advance()
		if err != nil {
			return nil, err
		}
		if err := p.expect("="); err != nil {
			return nil, err
		}
		raw, err := p.advance()
		if err != nil {
			return nil, err
		}
		attrs[key] = parseValue(raw)
	}
	if err := p.expect("]"); err != nil {
		return nil, err
	}
	return attrs, nil
}

func applyGraphAttrs(g *Graph, attrs map[string]attrValue) {
	for key, v := range attrs {
		switch key {
		case "goal":
			g.Goal = v.asString()
		case "label":
			g.Label = v.asString()
		case "model_stylesheet":
			g.ModelStylesheet = v.asString()
		case "default_max_retry":
			g.DefaultMaxRetry = v.asInt()
		case "retry_target":
			g.RetryTarget = v.asString()
		case "fallback_retry_target":
			g.FallbackRetryTarget = v.asString()
		case "default_fidelity":
			g.DefaultFidelity = v.asString()
		default:
			g.Extra[key] = v.asString()
		}
	}
}
