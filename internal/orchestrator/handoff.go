package orchestrator

import (
	"fmt"
	"strings"

	"github.com/ConaryLabs/mira/internal/store"
)

// handoffMessageCap is the per-message character budget in the "Recent
// Conversation" section - measured in characters, not bytes, since the
// blob is meant to stay human-legible after truncation, not to hit an
// exact wire-size target.
const handoffMessageCap = 500

// HandoffInputs gathers everything a reset might want to carry forward.
// Every field is optional; an empty value omits its section rather than
// emitting an empty heading.
type HandoffInputs struct {
	RecentTurns     []store.Turn
	EarlierSummary  string
	ActiveGoals     []string
	RecentDecisions []string
	WorkingSet      []string
	LastFailure     string
	ArtifactIDs     []string
	ContinuityNote  string
}

// BuildHandoff renders the reset handoff blob: a markdown document a fresh
// chain opens with in place of the turns a reset just discarded. Sections
// appear in a fixed order and missing ones are skipped outright - there is
// no placeholder heading for an empty section.
func BuildHandoff(in HandoffInputs) string {
	var b strings.Builder

	if len(in.RecentTurns) > 0 {
		b.WriteString("## Recent Conversation\n\n")
		n := len(in.RecentTurns)
		start := 0
		if n > 4 {
			start = n - 4
		}
		for _, t := range in.RecentTurns[start:] {
			content := t.Content
			if len([]rune(content)) > handoffMessageCap {
				r := []rune(content)
				content = string(r[:handoffMessageCap]) + "…"
			}
			fmt.Fprintf(&b, "**%s**: %s\n\n", t.Role, content)
		}
	}

	if in.EarlierSummary != "" {
		b.WriteString("## Earlier Context\n\n")
		b.WriteString(in.EarlierSummary)
		b.WriteString("\n\n")
	}

	if len(in.ActiveGoals) > 0 {
		b.WriteString("## Active Goals\n\n")
		for _, g := range in.ActiveGoals {
			fmt.Fprintf(&b, "- %s\n", g)
		}
		b.WriteString("\n")
	}

	if len(in.RecentDecisions) > 0 {
		b.WriteString("## Recent Decisions\n\n")
		for _, d := range in.RecentDecisions {
			fmt.Fprintf(&b, "- %s\n", d)
		}
		b.WriteString("\n")
	}

	if len(in.WorkingSet) > 0 {
		b.WriteString("## Working Set\n\n")
		for _, f := range in.WorkingSet {
			fmt.Fprintf(&b, "- %s\n", f)
		}
		b.WriteString("\n")
	}

	if in.LastFailure != "" {
		b.WriteString("## Last Known Failure\n\n")
		b.WriteString(in.LastFailure)
		b.WriteString("\n\n")
	}

	if len(in.ArtifactIDs) > 0 {
		b.WriteString("## Recent Artifact IDs\n\n")
		for _, id := range in.ArtifactIDs {
			fmt.Fprintf(&b, "- %s\n", id)
		}
		b.WriteString("\n")
	}

	if in.ContinuityNote != "" {
		b.WriteString("## Continuity Note\n\n")
		b.WriteString(in.ContinuityNote)
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}
