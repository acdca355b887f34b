package handler

import (
	"context"
	"strings"

	"github.com/haasonsaas/nexus/internal/pipeline/graph"
	"github.com/haasonsaas/nexus/internal/pipeline/interview"
	"github.com/haasonsaas/nexus/internal/pipeline/outcome"
	"github.com/haasonsaas/nexus/internal/pipeline/pctx"
)

// humanChoice is one (accelerator key, label, target node) derived from an
// outgoing edge of a wait.human node.
type humanChoice struct {
	key    string
	label  string
	target string
}

// WaitForHuman blocks until an interviewer selects one of the node's
// outgoing edges, then routes there.
type WaitForHuman struct {
	Interviewer interview.Interviewer
}

// NewWaitForHuman creates a WaitForHuman handler bound to iv.
func NewWaitForHuman(iv interview.Interviewer) *WaitForHuman {
	return &WaitForHuman{Interviewer: iv}
}

func (h *WaitForHuman) Execute(ctx context.Context, node *graph.Node, pc *pctx.Context, g *graph.Graph, logsRoot string) (outcome.Outcome, error) {
	edges := g.OutgoingEdges(node.ID)
	if len(edges) == 0 {
		return outcome.Outcome{Status: outcome.Fail, FailureReason: "No outgoing edges for human gate"}, nil
	}

	choices := make([]humanChoice, 0, len(edges))
	options := make([]interview.Option, 0, len(edges))
	for _, e := range edges {
		label := e.Label
		if label == "" {
			label = e.Target
		}
		key := interview.ParseAcceleratorKey(label)
		choices = append(choices, humanChoice{key: key, label: label, target: e.Target})
		options = append(options, interview.Option{Key: key, Label: label})
	}

	questionText := node.Label
	if questionText == "" {
		questionText = "Select an option:"
	}
	question := interview.Question{
		Text:    questionText,
		Type:    interview.MultipleChoice,
		Options: options,
		Stage:   node.ID,
	}

	answer, err := h.Interviewer.Ask(ctx, question)
	if err != nil {
		return outcome.Outcome{Status: outcome.Fail, FailureReason: err.Error()}, nil
	}

	if answer.HasSentinel {
		switch answer.Sentinel {
		case interview.Timeout:
			defaultChoice := node.Extra["human.default_choice"]
			if defaultChoice != "" {
				for _, c := range choices {
					if c.key == defaultChoice || c.label == defaultChoice {
						return outcome.Outcome{
							Status:          outcome.Success,
							SuggestedNextID: []string{c.target},
							ContextUpdates:  map[string]interface{}{"human.gate.selected": c.key, "human.gate.label": c.label},
						}, nil
					}
				}
			}
			return outcome.Outcome{Status: outcome.Retry, FailureReason: "human gate timeout, no default"}, nil
		case interview.Skipped:
			return outcome.Outcome{Status: outcome.Fail, FailureReason: "human skipped interaction"}, nil
		}
	}

	answerVal := answer.Value
	var selected *humanChoice
	for i := range choices {
		c := &choices[i]
		if strings.EqualFold(answerVal, c.key) || answerVal == c.label {
			selected = c
			break
		}
	}
	if selected == nil {
		selected = &choices[0]
	}

	return outcome.Outcome{
		Status:          outcome.Success,
		SuggestedNextID: []string{selected.target},
		ContextUpdates:  map[string]interface{}{"human.gate.selected": selected.key, "human.gate.label": selected.label},
	}, nil
}
