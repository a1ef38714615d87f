// Package lifecycle drives the trash lifecycle of a manageable entity:
// soft-delete, restore and hard-delete, each gated by the permission
// evaluator and, for the destructive ones, by an explicit confirmation.
//
// The controller never updates the entity optimistically. After a
// successful transition it reloads the entity from the server; after a
// hard delete it reports StatePurged and the caller leaves the detail view.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"devon-cli/internal/api"
	"devon-cli/internal/model"
	"devon-cli/internal/perm"
)

var (
	ErrCanceled     = errors.New("canceled")
	ErrNotPermitted = errors.New("not permitted")
	// ErrNotAvailable is returned for transitions the current state does not
	// offer, e.g. restore on an active entity.
	ErrNotAvailable = errors.New("not available in the current state")
	ErrBusy         = errors.New("a transition is already in progress")
	// ErrStale means the transition went through but the entity could not
	// be reloaded. The result then carries the previous snapshot.
	ErrStale = errors.New("transition applied, reload failed")
)

type Op int

const (
	OpSoftDelete Op = iota
	OpRestore
	OpHardDelete
)

func (o Op) String() string {
	switch o {
	case OpSoftDelete:
		return "delete"
	case OpRestore:
		return "restore"
	case OpHardDelete:
		return "purge"
	default:
		return "unknown"
	}
}

// NeedsConfirm reports whether the operation asks before sending anything.
func (o Op) NeedsConfirm() bool { return o != OpRestore }

type Backend[T model.Entity] interface {
	Get(ctx context.Context, id int64) (T, error)
	SoftDelete(ctx context.Context, id int64) (string, error)
	Restore(ctx context.Context, id int64) (string, error)
	HardDelete(ctx context.Context, id int64) (string, error)
}

// Confirmer asks the operator to approve a destructive transition.
type Confirmer interface {
	Confirm(ctx context.Context, p Prompt) (bool, error)
}

type ConfirmFunc func(ctx context.Context, p Prompt) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, p Prompt) (bool, error) { return f(ctx, p) }

// AlwaysConfirm approves every prompt. Used by --yes.
var AlwaysConfirm = ConfirmFunc(func(context.Context, Prompt) (bool, error) { return true, nil })

type Affordances struct {
	SoftDelete perm.Affordance
	Restore    perm.Affordance
	HardDelete perm.Affordance
}

func (a Affordances) For(op Op) perm.Affordance {
	switch op {
	case OpSoftDelete:
		return a.SoftDelete
	case OpRestore:
		return a.Restore
	default:
		return a.HardDelete
	}
}

type Result[T model.Entity] struct {
	Op      Op
	Entity  T
	State   model.LifecycleState
	Message string
}

type Deps[T model.Entity] struct {
	Backend Backend[T]
	Confirm Confirmer
	Perms   perm.Checker
	Log     zerolog.Logger
}

type Controller[T model.Entity] struct {
	deps Deps[T]

	mu     sync.Mutex
	entity T
	state  model.LifecycleState
	busy   bool
}

func New[T model.Entity](deps Deps[T], entity T) *Controller[T] {
	return &Controller[T]{deps: deps, entity: entity, state: model.StateOf(entity)}
}

func (c *Controller[T]) Entity() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entity
}

func (c *Controller[T]) State() model.LifecycleState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller[T]) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// Reset replaces the tracked entity, e.g. after an edit session saved it.
func (c *Controller[T]) Reset(entity T) {
	c.mu.Lock()
	c.entity = entity
	c.state = model.StateOf(entity)
	c.mu.Unlock()
}

// Affordances reports which transitions are shown and enabled.
// Hidden transitions are the ones the current state does not offer.
func (c *Controller[T]) Affordances() Affordances {
	c.mu.Lock()
	state, busy, e := c.state, c.busy, c.entity
	c.mu.Unlock()

	var out Affordances
	kind := e.Kind()
	if !kind.Manageable() {
		return out
	}
	switch state {
	case model.StateActive:
		out.SoftDelete = perm.DeleteAffordance(c.deps.Perms, kind, e.EntityID())
	case model.StateTrashed:
		out.Restore = perm.RestoreAffordance(c.deps.Perms, kind)
		out.HardDelete = perm.DeleteAffordance(c.deps.Perms, kind, e.EntityID())
	}
	if busy {
		for _, a := range []*perm.Affordance{&out.SoftDelete, &out.Restore, &out.HardDelete} {
			if a.Visible {
				a.Enabled = false
				a.Reason = "busy"
			}
		}
	}
	return out
}

// Check returns nil when op may run now.
func (c *Controller[T]) Check(op Op) error {
	a := c.Affordances().For(op)
	switch {
	case !a.Visible:
		return fmt.Errorf("%s %s: %w", op, c.Entity().Kind(), ErrNotAvailable)
	case a.Reason == "busy":
		return ErrBusy
	case !a.Enabled:
		return fmt.Errorf("%s: %w", a.Reason, ErrNotPermitted)
	}
	return nil
}

// Prompt builds the confirmation text for op on the current entity.
func (c *Controller[T]) Prompt(op Op) Prompt {
	return PromptFor(c.Entity(), op)
}

// Run checks, confirms when the operation requires it, then applies op.
// A declined confirmation returns ErrCanceled and sends nothing.
func (c *Controller[T]) Run(ctx context.Context, op Op) (Result[T], error) {
	if err := c.Check(op); err != nil {
		return Result[T]{}, err
	}
	if op.NeedsConfirm() {
		if c.deps.Confirm == nil {
			return Result[T]{}, fmt.Errorf("%s: no confirmer: %w", op, ErrCanceled)
		}
		ok, err := c.deps.Confirm.Confirm(ctx, c.Prompt(op))
		if err != nil {
			return Result[T]{}, err
		}
		if !ok {
			return Result[T]{}, ErrCanceled
		}
	}
	return c.Apply(ctx, op)
}

// Apply sends op without asking. Callers that collect confirmation
// themselves, such as the console modal, use it after the operator agreed.
func (c *Controller[T]) Apply(ctx context.Context, op Op) (Result[T], error) {
	if err := c.Check(op); err != nil {
		return Result[T]{}, err
	}
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return Result[T]{}, ErrBusy
	}
	c.busy = true
	e := c.entity
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
	}()

	id := e.EntityID()
	log := c.deps.Log.With().Str("kind", string(e.Kind())).Int64("id", id).Str("op", op.String()).Logger()

	var (
		msg string
		err error
	)
	switch op {
	case OpSoftDelete:
		msg, err = c.deps.Backend.SoftDelete(ctx, id)
	case OpRestore:
		msg, err = c.deps.Backend.Restore(ctx, id)
	case OpHardDelete:
		msg, err = c.deps.Backend.HardDelete(ctx, id)
	default:
		return Result[T]{}, fmt.Errorf("unknown op %d", op)
	}
	if err != nil {
		log.Warn().Err(err).Msg("lifecycle transition failed")
		return Result[T]{}, err
	}
	log.Info().Msg("lifecycle transition")

	if op == OpHardDelete {
		var zero T
		c.mu.Lock()
		c.state = model.StatePurged
		c.mu.Unlock()
		return Result[T]{Op: op, Entity: zero, State: model.StatePurged, Message: msg}, nil
	}

	fresh, err := c.deps.Backend.Get(ctx, id)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			var zero T
			c.mu.Lock()
			c.state = model.StatePurged
			c.mu.Unlock()
			return Result[T]{Op: op, Entity: zero, State: model.StatePurged, Message: msg}, nil
		}
		// The previous snapshot and its state stay in place so that
		// deleted_at and the state never disagree.
		log.Warn().Err(err).Msg("reload after transition")
		return Result[T]{Op: op, Entity: e, State: model.StateOf(e), Message: msg}, fmt.Errorf("%w: %w", ErrStale, err)
	}

	c.Reset(fresh)
	return Result[T]{Op: op, Entity: fresh, State: model.StateOf(fresh), Message: msg}, nil
}
