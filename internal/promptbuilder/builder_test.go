package promptbuilder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ConaryLabs/mira/internal/llmadapter"
	"github.com/ConaryLabs/mira/internal/memory"
)

func TestBuildMessagesIncludesPersonaAndInput(t *testing.T) {
	b := New(nil)

	msgs, err := b.BuildMessages(context.Background(), "what does this function do?", nil, "")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, llmadapter.RoleSystem, msgs[0].Role)
	require.Contains(t, msgs[0].Content, "Mira")
	require.Equal(t, llmadapter.RoleUser, msgs[1].Role)
	require.Equal(t, "what does this function do?", msgs[1].Content)
}

func TestBuildMessagesIncludesToolsAndRecallAndHandoff(t *testing.T) {
	b := New([]ToolCapability{{Name: "shell", Description: "run a shell command"}})

	recalled := []memory.RecallHit{
		{Content: "project uses go modules", Score: 0.9},
		{Content: "use a connection pool here", Score: 0.4, CrossProject: true, Label: "You solved this in billing-api"},
	}

	msgs, err := b.BuildMessages(context.Background(), "continue", recalled, "user asked about build tooling earlier")
	require.NoError(t, err)

	system := msgs[0].Content
	require.Contains(t, system, "shell: run a shell command")
	require.Contains(t, system, "project uses go modules")
	require.Contains(t, system, "You solved this in billing-api: use a connection pool here")
	require.Contains(t, system, "user asked about build tooling earlier")
}

func TestWithPersonaOverridesDefault(t *testing.T) {
	b := New(nil).WithPersona("custom persona text")

	msgs, err := b.BuildMessages(context.Background(), "hi", nil, "")
	require.NoError(t, err)
	require.Equal(t, "custom persona text", msgs[0].Content)
}
