// Package action manages long-running work items: action records,
// the five-state lifecycle machine, the lifecycle events derived from
// each transition, and English verb conjugation for event names.
package action

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"eve.evalgo.org/eventbus"
	"eve.evalgo.org/schema"
	"eve.evalgo.org/semantic/runtime"
)

// Manager owns every action record and serializes transitions.
type Manager struct {
	mu      sync.RWMutex
	actions map[string]*runtime.Action
	order   []string
	bus     *eventbus.Bus
	now     func() time.Time
}

func NewManager(bus *eventbus.Bus) *Manager {
	return &Manager{actions: make(map[string]*runtime.Action), bus: bus, now: time.Now}
}

// CreateInput describes a new action request.
type CreateInput struct {
	Actor      string
	ActorData  map[string]any
	Verb       string
	Object     string
	ObjectData map[string]any
	Meta       map[string]any
}

// Create allocates an action in the pending state, conjugating the
// base verb, and emits Action.created.
func (m *Manager) Create(ctx context.Context, in CreateInput) *runtime.Action {
	act3rd, gerund := Conjugate(in.Verb)
	now := m.now()
	a := &runtime.Action{
		ID:         uuid.New().String(),
		Actor:      in.Actor,
		ActorData:  in.ActorData,
		Action:     in.Verb,
		Act:        act3rd,
		Activity:   gerund,
		Object:     in.Object,
		ObjectData: in.ObjectData,
		Status:     runtime.StatusPending,
		Meta:       in.Meta,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	m.mu.Lock()
	m.actions[a.ID] = a
	m.order = append(m.order, a.ID)
	m.mu.Unlock()

	m.emit(ctx, in.Actor, "Action.created", a)
	return a.DeepCopy()
}

// Get returns a copy of the action, or nil if absent.
func (m *Manager) Get(id string) *runtime.Action {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.actions[id]
	if !ok {
		return nil
	}
	return a.DeepCopy()
}

// ListFilter restricts List to actions with the given status, if set.
type ListFilter struct {
	Status runtime.Status
}

// List returns copies of actions in creation order, optionally
// filtered by status.
func (m *Manager) List(f ListFilter) []*runtime.Action {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*runtime.Action
	for _, id := range m.order {
		a := m.actions[id]
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		out = append(out, a.DeepCopy())
	}
	return out
}

// Start transitions pending -> active, stamping StartedAt and
// emitting Action.started.
func (m *Manager) Start(ctx context.Context, id string) (*runtime.Action, error) {
	return m.transition(ctx, id, func(a *runtime.Action) (string, error) {
		if a.Status != runtime.StatusPending {
			return "", illegalTransition(a.Status, runtime.StatusActive)
		}
		now := m.now()
		a.Status = runtime.StatusActive
		a.StartedAt = &now
		return "Action.started", nil
	})
}

// Complete transitions active -> completed, stamping CompletedAt and
// emitting Action.completed.
func (m *Manager) Complete(ctx context.Context, id string, result map[string]any) (*runtime.Action, error) {
	return m.transition(ctx, id, func(a *runtime.Action) (string, error) {
		if a.Status != runtime.StatusActive {
			return "", illegalTransition(a.Status, runtime.StatusCompleted)
		}
		now := m.now()
		a.Status = runtime.StatusCompleted
		a.CompletedAt = &now
		a.Result = result
		a.Progress = 1
		return "Action.completed", nil
	})
}

// Fail transitions active -> failed, stamping CompletedAt and
// emitting Action.failed.
func (m *Manager) Fail(ctx context.Context, id string, failure *runtime.ActionFailure) (*runtime.Action, error) {
	return m.transition(ctx, id, func(a *runtime.Action) (string, error) {
		if a.Status != runtime.StatusActive {
			return "", illegalTransition(a.Status, runtime.StatusFailed)
		}
		now := m.now()
		a.Status = runtime.StatusFailed
		a.CompletedAt = &now
		a.Error = failure
		return "Action.failed", nil
	})
}

// Cancel transitions pending or active -> cancelled (terminal),
// emitting Action.cancelled.
func (m *Manager) Cancel(ctx context.Context, id string) (*runtime.Action, error) {
	return m.transition(ctx, id, func(a *runtime.Action) (string, error) {
		if a.Status != runtime.StatusPending && a.Status != runtime.StatusActive {
			return "", illegalTransition(a.Status, runtime.StatusCancelled)
		}
		now := m.now()
		a.Status = runtime.StatusCancelled
		a.CompletedAt = &now
		return "Action.cancelled", nil
	})
}

// Retry transitions failed -> pending, clearing Error/StartedAt/
// CompletedAt, emitting Action.retried. Permitted only from failed.
func (m *Manager) Retry(ctx context.Context, id string) (*runtime.Action, error) {
	return m.transition(ctx, id, func(a *runtime.Action) (string, error) {
		if a.Status != runtime.StatusFailed {
			return "", illegalTransition(a.Status, runtime.StatusPending)
		}
		a.Status = runtime.StatusPending
		a.Error = nil
		a.StartedAt = nil
		a.CompletedAt = nil
		return "Action.retried", nil
	})
}

// UpdateProgress sets Progress/Total without a state transition.
func (m *Manager) UpdateProgress(id string, progress float64, total *float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.actions[id]
	if !ok {
		return schema.New(schema.KindNotFound, "action not found: "+id)
	}
	a.Progress = progress
	a.Total = total
	a.UpdatedAt = m.now()
	return nil
}

func (m *Manager) transition(ctx context.Context, id string, fn func(*runtime.Action) (string, error)) (*runtime.Action, error) {
	m.mu.Lock()
	a, ok := m.actions[id]
	if !ok {
		m.mu.Unlock()
		return nil, schema.New(schema.KindNotFound, "action not found: "+id)
	}
	eventName, err := fn(a)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	a.UpdatedAt = m.now()
	snapshot := a.DeepCopy()
	m.mu.Unlock()

	m.emit(ctx, a.Actor, eventName, snapshot)
	return snapshot, nil
}

func (m *Manager) emit(ctx context.Context, actor, eventName string, a *runtime.Action) {
	if m.bus == nil {
		return
	}
	e := runtime.NewEvent(actor, eventName).WithObject(a.ID, map[string]any{
		"$id": a.ID, "status": string(a.Status), "action": a.Action,
	})
	m.bus.Emit(ctx, e)
}

func illegalTransition(from, to runtime.Status) *schema.Error {
	return schema.New(schema.KindInvalidStateTransition, fmt.Sprintf("cannot transition from %s to %s", from, to))
}
