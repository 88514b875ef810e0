// Package operation implements the operation engine: a coarser async unit
// above a conversational turn, for artifacts that need planning, generation,
// and application as one tracked job. Lifecycle states are
// pending -> planning -> executing -> completed | failed, each transition
// appended to a strictly-ordered event journal in internal/store, and
// fanned out live to any subscribers registered before the run starts.
package operation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ConaryLabs/mira/internal/logging"
	"github.com/ConaryLabs/mira/internal/store"
)

// Event is one journal entry, delivered to subscribers in the same order it
// was appended to the store.
type Event struct {
	OperationID string
	Seq         int
	Kind        string
	Payload     string
}

// Runner supplies the three phases of one operation kind. Plan and Generate
// may do nothing (return the input unchanged) for operation kinds that skip
// a phase; Apply always runs last and produces the terminal result.
type Runner interface {
	Plan(ctx context.Context, input string) (plan string, err error)
	Generate(ctx context.Context, plan string) (artifact string, err error)
	Apply(ctx context.Context, artifact string) (result string, err error)
}

// subscriberBuffer bounds how many events an idle subscriber can fall behind
// by before publish starts dropping events for it - operations are short
// enough, and journaled durably regardless, that a slow subscriber losing
// live updates is preferable to blocking the run.
const subscriberBuffer = 64

// Engine runs operations and journals their events, mirroring the shape of
// the teacher's Glass Box event bus: a mutex-guarded subscriber registry
// handing out buffered channels that never block the publisher.
type Engine struct {
	store *store.Store

	mu          sync.Mutex
	subscribers map[string][]chan Event
}

func New(st *store.Store) *Engine {
	return &Engine{store: st, subscribers: make(map[string][]chan Event)}
}

// Subscribe registers a buffered channel for operationID's events. The
// "created" event is journaled by Create before a caller can know the
// operation's id, so a subscriber registered between Create and Run (see
// Create) receives every event from "planned" onward.
func (e *Engine) Subscribe(operationID string) <-chan Event {
	ch := make(chan Event, subscriberBuffer)
	e.mu.Lock()
	e.subscribers[operationID] = append(e.subscribers[operationID], ch)
	e.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a channel returned by Subscribe. Safe to
// call once the operation has reached a terminal state.
func (e *Engine) Unsubscribe(operationID string, ch <-chan Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	chans := e.subscribers[operationID]
	for i, c := range chans {
		if c == ch {
			close(c)
			e.subscribers[operationID] = append(chans[:i], chans[i+1:]...)
			return
		}
	}
}

func (e *Engine) publish(operationID string, ev Event) {
	e.mu.Lock()
	chans := append([]chan Event(nil), e.subscribers[operationID]...)
	e.mu.Unlock()

	for _, ch := range chans {
		select {
		case ch <- ev:
		default:
			logging.Get(logging.CategoryOperation).Warn("subscriber for operation %s falling behind, dropping event %s", operationID, ev.Kind)
		}
	}
}

// append writes an event to the journal and publishes it to subscribers in
// the same call, so the two never drift out of sync.
func (e *Engine) append(operationID, kind, payload string) error {
	ev, err := e.store.AppendOperationEvent(operationID, kind, payload)
	if err != nil {
		return fmt.Errorf("append %s event: %w", kind, err)
	}
	e.publish(operationID, Event{OperationID: operationID, Seq: ev.Seq, Kind: kind, Payload: payload})
	return nil
}

// Create allocates a pending operation and journals its "created" event.
// Callers that want to observe a run live must Subscribe(op.ID) after Create
// returns but before calling Run, so the subscription is in place before
// any planning/executing event can be published.
func (e *Engine) Create(projectID string, sessionID sql.NullString, kind, input string) (*store.Operation, error) {
	op, err := e.store.CreateOperation(projectID, sessionID, kind, "")
	if err != nil {
		return nil, fmt.Errorf("create operation: %w", err)
	}
	if err := e.append(op.ID, "created", input); err != nil {
		return nil, err
	}
	return op, nil
}

// Run drives an already-created operation through plan -> generate -> apply
// synchronously, journaling every transition, and returns the final
// *store.Operation whether or not it succeeded.
func (e *Engine) Run(ctx context.Context, op *store.Operation, input string, runner Runner) (*store.Operation, error) {
	_, runErr := e.run(ctx, op, input, runner)
	final, getErr := e.store.GetOperation(op.ID)
	if getErr != nil {
		return nil, getErr
	}
	return final, runErr
}

// Start is a convenience wrapper combining Create and Run for callers that
// don't need to subscribe before the run begins.
func (e *Engine) Start(ctx context.Context, projectID string, sessionID sql.NullString, kind, input string, runner Runner) (*store.Operation, error) {
	op, err := e.Create(projectID, sessionID, kind, input)
	if err != nil {
		return nil, err
	}
	return e.Run(ctx, op, input, runner)
}

func (e *Engine) run(ctx context.Context, op *store.Operation, input string, runner Runner) (string, error) {
	if err := e.store.SetOperationStatus(op.ID, "planning"); err != nil {
		return "", e.fail(op.ID, fmt.Errorf("set status planning: %w", err))
	}
	plan, err := runner.Plan(ctx, input)
	if err != nil {
		return "", e.fail(op.ID, fmt.Errorf("plan: %w", err))
	}
	if err := e.append(op.ID, "planned", plan); err != nil {
		return "", e.fail(op.ID, err)
	}

	if err := e.store.SetOperationStatus(op.ID, "executing"); err != nil {
		return "", e.fail(op.ID, fmt.Errorf("set status executing: %w", err))
	}

	artifact, err := runner.Generate(ctx, plan)
	if err != nil {
		return "", e.fail(op.ID, fmt.Errorf("generate: %w", err))
	}
	if err := e.append(op.ID, "generated", artifact); err != nil {
		return "", e.fail(op.ID, err)
	}

	result, err := runner.Apply(ctx, artifact)
	if err != nil {
		return "", e.fail(op.ID, fmt.Errorf("apply: %w", err))
	}
	if err := e.append(op.ID, "applied", result); err != nil {
		return "", e.fail(op.ID, err)
	}

	if err := e.store.CompleteOperation(op.ID, result); err != nil {
		return "", e.fail(op.ID, fmt.Errorf("complete operation: %w", err))
	}
	if err := e.append(op.ID, "completed", result); err != nil {
		logging.Get(logging.CategoryOperation).Warn("operation %s completed but completion event failed: %v", op.ID, err)
	}
	return result, nil
}

// fail marks the operation failed and journals the failure, returning the
// original error so callers can propagate it unchanged.
func (e *Engine) fail(operationID string, cause error) error {
	if err := e.store.FailOperation(operationID, cause.Error()); err != nil {
		logging.Get(logging.CategoryOperation).Warn("operation %s failed but status update failed: %v", operationID, err)
	}
	if err := e.append(operationID, "failed", cause.Error()); err != nil {
		logging.Get(logging.CategoryOperation).Warn("operation %s failed but failure event failed: %v", operationID, err)
	}
	return cause
}

// EventPayload helps Runner implementations encode structured payloads
// (e.g. a plan's step list) into the plain-string journal column.
func EventPayload(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
