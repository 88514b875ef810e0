// Package sudo implements the command authorization gate: every command a
// tool or operation wants to execute is checked against a project's
// permission rules before it runs, matching spec.md §4.7's decision order -
// exact match, then regex, then prefix, first match wins; a matched "allow"
// rule lets the command through, a matched "require_approval" rule opens a
// time-boxed approval request, a matched "deny" rule or no match at all
// denies.
package sudo

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ConaryLabs/mira/internal/config"
	"github.com/ConaryLabs/mira/internal/logging"
	"github.com/ConaryLabs/mira/internal/store"
)

// matchPriority orders rule kinds the way spec.md §4.7 evaluates them: exact
// matches beat regex matches beat prefix matches, independent of how the
// store happened to return them.
var matchPriority = map[string]int{
	"exact":  0,
	"regex":  1,
	"prefix": 2,
}

// Decision is the outcome of an authorization check.
type Decision struct {
	Kind         string // "allowed" | "requires_approval" | "denied"
	PermissionID string
	ApprovalID   string
	Reason       string
}

func Allowed(permissionID string) Decision {
	return Decision{Kind: "allowed", PermissionID: permissionID}
}

func RequiresApproval(approvalID string) Decision {
	return Decision{Kind: "requires_approval", ApprovalID: approvalID}
}

func Denied(reason string) Decision {
	return Decision{Kind: "denied", Reason: reason}
}

// Authorizer evaluates commands against a project's permission rules,
// mints approval requests for rules that require one, and journals an
// audit row for every decision it makes.
type Authorizer struct {
	store *store.Store
	cfg   config.SudoConfig
}

func New(st *store.Store, cfg config.SudoConfig) *Authorizer {
	return &Authorizer{store: st, cfg: cfg}
}

// Check evaluates command against projectID's enabled permission rules and
// returns the resulting Decision, writing an audit row regardless of the
// outcome.
func (a *Authorizer) Check(ctx context.Context, projectID, command string) (Decision, error) {
	perms, err := a.store.MatchingPermissions(projectID)
	if err != nil {
		return Decision{}, fmt.Errorf("load permissions: %w", err)
	}

	rule, ok, err := bestMatch(perms, command)
	if err != nil {
		return Decision{}, fmt.Errorf("match rules: %w", err)
	}

	if !ok {
		decision := Denied("no matching permission rule")
		a.audit(projectID, command, "denied", decision.Reason)
		return decision, nil
	}

	switch rule.Action {
	case "allow":
		decision := Allowed(rule.ID)
		a.audit(projectID, command, "whitelist", fmt.Sprintf("matched rule %q", rule.Pattern))
		return decision, nil

	case "require_approval":
		approval, err := a.store.CreateApproval(projectID, command, a.cfg.ApprovalExpiry)
		if err != nil {
			return Decision{}, fmt.Errorf("create approval: %w", err)
		}
		decision := RequiresApproval(approval.ID)
		a.audit(projectID, command, "approval_requested", fmt.Sprintf("matched rule %q", rule.Pattern))
		return decision, nil

	case "deny":
		decision := Denied(fmt.Sprintf("matched deny rule %q", rule.Pattern))
		a.audit(projectID, command, "denied", decision.Reason)
		return decision, nil

	default:
		decision := Denied(fmt.Sprintf("rule %q has unknown action %q", rule.Pattern, rule.Action))
		a.audit(projectID, command, "denied", decision.Reason)
		return decision, nil
	}
}

// Resolve records an operator's decision on a pending approval request and
// audits the outcome.
func (a *Authorizer) Resolve(ctx context.Context, projectID, approvalID string, approve bool) error {
	status := "denied"
	decision := "approval_denied"
	if approve {
		status = "approved"
		decision = "approval_granted"
	}
	if err := a.store.ResolveApproval(approvalID, status); err != nil {
		return fmt.Errorf("resolve approval: %w", err)
	}
	a.audit(projectID, approvalID, decision, "")
	return nil
}

// SweepExpired marks any pending approval past its expiry as expired. The
// scheduler or daemon calls this on cfg.SweepInterval.
func (a *Authorizer) SweepExpired() (int, error) {
	n, err := a.store.ExpirePendingApprovals()
	if err != nil {
		return 0, fmt.Errorf("expire approvals: %w", err)
	}
	if n > 0 {
		logging.Sudo("expired %d pending approval(s)", n)
	}
	return n, nil
}

func (a *Authorizer) audit(projectID, command, decision, reason string) {
	if err := a.store.AppendAudit(projectID, command, decision, reason); err != nil {
		logging.Get(logging.CategorySudo).Warn("audit write failed for project %s: %v", projectID, err)
	}
}

// bestMatch scans perms for the highest-priority rule matching command,
// ties broken by the store's own project-before-global, oldest-first order.
func bestMatch(perms []store.SudoPermission, command string) (store.SudoPermission, bool, error) {
	var best store.SudoPermission
	bestPriority := -1
	found := false

	for _, p := range perms {
		matched, err := matches(p, command)
		if err != nil {
			return store.SudoPermission{}, false, err
		}
		if !matched {
			continue
		}
		priority, ok := matchPriority[p.MatchKind]
		if !ok {
			priority = len(matchPriority)
		}
		if !found || priority < bestPriority {
			best, bestPriority, found = p, priority, true
		}
	}
	return best, found, nil
}

func matches(p store.SudoPermission, command string) (bool, error) {
	switch p.MatchKind {
	case "exact":
		return command == p.Pattern, nil
	case "prefix":
		return strings.HasPrefix(command, p.Pattern), nil
	case "regex":
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return false, fmt.Errorf("compile rule %q: %w", p.Pattern, err)
		}
		return re.MatchString(command), nil
	default:
		return false, fmt.Errorf("unknown match kind %q", p.MatchKind)
	}
}

// IsApprovalExpired reports whether a in-flight approval result is past its
// expiry but hasn't been swept yet - callers polling GetApproval directly,
// between sweep ticks, use this instead of waiting for the next sweep.
func IsApprovalExpired(a *store.SudoApproval, now time.Time) bool {
	return a.Status == "pending" && now.After(a.ExpiresAt)
}
