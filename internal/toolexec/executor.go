// Package toolexec implements orchestrator.ToolExecutor: it runs the one
// tool call name every turn loop actually needs authorization for - "shell"
// - through internal/sudo's authorizer before ever invoking os/exec,
// mirroring the teacher's own shell.RunCommandTool wrapper but gating it on
// a project's permission rules instead of running unconditionally.
package toolexec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"runtime"
	"time"

	"github.com/ConaryLabs/mira/internal/llmadapter"
	"github.com/ConaryLabs/mira/internal/logging"
	"github.com/ConaryLabs/mira/internal/sudo"
)

const maxOutputChars = 8000

// Executor bridges llmadapter.ToolCall to a sudo-gated command execution,
// satisfying orchestrator.ToolExecutor.
type Executor struct {
	auth       *sudo.Authorizer
	projectID  string
	workingDir string
	timeout    time.Duration
}

func New(auth *sudo.Authorizer, projectID, workingDir string, timeout time.Duration) *Executor {
	return &Executor{auth: auth, projectID: projectID, workingDir: workingDir, timeout: timeout}
}

type shellArgs struct {
	Command    string `json:"command"`
	WorkingDir string `json:"working_dir,omitempty"`
}

// ExecuteTool runs call.Name, returning its result as tool-result text
// rather than an error where possible - spec.md §4.1.2 treats a denied or
// failed tool call as part of the conversation, not a turn failure.
func (e *Executor) ExecuteTool(ctx context.Context, call llmadapter.ToolCall) (string, error) {
	switch call.Name {
	case "shell":
		return e.executeShell(ctx, call)
	default:
		return fmt.Sprintf("unknown tool %q", call.Name), nil
	}
}

func (e *Executor) executeShell(ctx context.Context, call llmadapter.ToolCall) (string, error) {
	var args shellArgs
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return fmt.Sprintf("invalid arguments for shell tool: %v", err), nil
	}
	if args.Command == "" {
		return "shell tool requires a non-empty command", nil
	}

	decision, err := e.auth.Check(ctx, e.projectID, args.Command)
	if err != nil {
		return "", fmt.Errorf("authorization check failed: %w", err)
	}

	switch decision.Kind {
	case "denied":
		return fmt.Sprintf("command denied: %s", decision.Reason), nil
	case "requires_approval":
		return fmt.Sprintf("command requires operator approval (request %s); try again once it's resolved", decision.ApprovalID), nil
	}

	workingDir := args.WorkingDir
	if workingDir == "" {
		workingDir = e.workingDir
	}

	execCtx := ctx
	var cancel context.CancelFunc
	if e.timeout > 0 {
		execCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(execCtx, "cmd", "/C", args.Command)
	} else {
		cmd = exec.CommandContext(execCtx, "sh", "-c", args.Command)
	}
	cmd.Dir = workingDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	output := stdout.String()
	if stderr.Len() > 0 {
		if output != "" {
			output += "\n--- stderr ---\n"
		}
		output += stderr.String()
	}
	if len(output) > maxOutputChars {
		output = output[:maxOutputChars] + "\n...[truncated]"
	}

	if runErr != nil {
		if execCtx.Err() == context.DeadlineExceeded {
			logging.SudoDebug("shell tool command %q timed out", args.Command)
			return output + "\ncommand timed out", nil
		}
		return fmt.Sprintf("%s\ncommand exited with error: %v", output, runErr), nil
	}

	return output, nil
}
