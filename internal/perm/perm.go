package perm

import (
	"sync"

	"devon-cli/internal/model"
)

// Checker answers module/action permission questions for the current identity.
type Checker interface {
	HasPermission(module model.Module, action model.Action) bool
	Identity() (model.Identity, bool)
}

// Evaluator holds the authenticated identity for the whole process.
//
// Rules:
// - Set (login or refresh) replaces the identity wholesale and is the only writer.
// - Clear (logout) drops it; every check then answers false.
// - The permission matrix is copied in and never patched locally.
// - Subscribers are called synchronously after every Set/Clear.
type Evaluator struct {
	mu       sync.RWMutex
	identity *model.Identity

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(model.Identity, bool)
}

func NewEvaluator() *Evaluator {
	return &Evaluator{subs: map[int]func(model.Identity, bool){}}
}

func (e *Evaluator) Set(id model.Identity) {
	id.Permissions = id.Permissions.Clone()
	e.mu.Lock()
	e.identity = &id
	e.mu.Unlock()
	e.notify(id, true)
}

func (e *Evaluator) Clear() {
	e.mu.Lock()
	e.identity = nil
	e.mu.Unlock()
	e.notify(model.Identity{}, false)
}

func (e *Evaluator) Identity() (model.Identity, bool) {
	if e == nil {
		return model.Identity{}, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.identity == nil {
		return model.Identity{}, false
	}
	id := *e.identity
	id.Permissions = id.Permissions.Clone()
	return id, true
}

// HasPermission reports whether the current identity grants action on module.
// No identity, an absent module and an absent action all answer false.
func (e *Evaluator) HasPermission(module model.Module, action model.Action) bool {
	if e == nil {
		return false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.identity == nil {
		return false
	}
	return e.identity.Permissions.Allows(module, action)
}

// Subscribe registers fn to be called after every identity change.
// The returned func removes the subscription.
func (e *Evaluator) Subscribe(fn func(id model.Identity, ok bool)) (cancel func()) {
	if fn == nil {
		return func() {}
	}
	e.subMu.Lock()
	key := e.nextID
	e.nextID++
	e.subs[key] = fn
	e.subMu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			e.subMu.Lock()
			delete(e.subs, key)
			e.subMu.Unlock()
		})
	}
}

func (e *Evaluator) notify(id model.Identity, ok bool) {
	e.subMu.Lock()
	fns := make([]func(model.Identity, bool), 0, len(e.subs))
	for _, fn := range e.subs {
		fns = append(fns, fn)
	}
	e.subMu.Unlock()
	for _, fn := range fns {
		fn(id, ok)
	}
}
