// Package promptbuilder implements orchestrator.PromptBuilder: a system
// prompt assembled from a persona core plus capability blocks (available
// tools, recalled memory, handoff summary), followed by the user's turn
// input - spec.md §4.1 step 4's prompt assembly, kept separate from the
// internal utility prompts llmadapter's structured-output repair path uses
// (those stay minimal and never carry a persona).
package promptbuilder

import (
	"context"
	"fmt"
	"strings"

	"github.com/ConaryLabs/mira/internal/llmadapter"
	"github.com/ConaryLabs/mira/internal/memory"
)

const defaultPersona = `You are Mira, a persistent coding assistant embedded in the user's development environment. You have access to a memory fabric of prior conversations and project facts, a code-intelligence index of the current project, and a set of tools for inspecting and modifying the workspace. Answer directly, use tools when they would settle a question faster than guessing, and say when you don't know something rather than inventing an answer.`

// ToolCapability names one tool available to the model this turn, surfaced
// in a capability block so the persona prompt doesn't need to hardcode the
// tool roster.
type ToolCapability struct {
	Name        string
	Description string
}

// Builder assembles chat messages from a persona core, a fixed or
// per-call tool roster, recalled memory, and a handoff summary.
type Builder struct {
	persona string
	tools   []ToolCapability
}

func New(tools []ToolCapability) *Builder {
	return &Builder{persona: defaultPersona, tools: tools}
}

// WithPersona overrides the default persona text, for callers that want a
// differently tuned assistant voice without touching the tool roster.
func (b *Builder) WithPersona(persona string) *Builder {
	b.persona = persona
	return b
}

// BuildMessages satisfies orchestrator.PromptBuilder.
func (b *Builder) BuildMessages(ctx context.Context, input string, recalled []memory.RecallHit, handoff string) ([]llmadapter.Message, error) {
	var system strings.Builder
	system.WriteString(b.persona)

	if len(b.tools) > 0 {
		system.WriteString("\n\nAvailable tools:\n")
		for _, t := range b.tools {
			fmt.Fprintf(&system, "- %s: %s\n", t.Name, t.Description)
		}
	}

	if len(recalled) > 0 {
		system.WriteString("\nRelevant context recalled from memory:\n")
		for _, hit := range recalled {
			if hit.CrossProject && hit.Label != "" {
				fmt.Fprintf(&system, "- %s: %s\n", hit.Label, hit.Content)
				continue
			}
			fmt.Fprintf(&system, "- %s\n", hit.Content)
		}
	}

	if handoff != "" {
		system.WriteString("\nSummary of the conversation so far:\n")
		system.WriteString(handoff)
		system.WriteString("\n")
	}

	return []llmadapter.Message{
		{Role: llmadapter.RoleSystem, Content: system.String()},
		{Role: llmadapter.RoleUser, Content: input},
	}, nil
}
