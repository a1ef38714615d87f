package editsession

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"devon-cli/internal/api"
	"devon-cli/internal/perm"
	"devon-cli/internal/store"
)

var (
	ErrSaveInFlight = errors.New("a save is already in progress")
	ErrNotPermitted = errors.New("not permitted")
)

// ValidationError is a local rejection; no request was sent.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// DraftStore is the durable scratch storage for long-form fields.
type DraftStore interface {
	ReadDraft(ctx context.Context, key store.DraftKey) (string, bool, error)
	WriteDraft(ctx context.Context, key store.DraftKey, value string) error
	DeleteDraft(ctx context.Context, key store.DraftKey) error
}

// Backend is the remote side of a session.
type Backend[T any] interface {
	Get(ctx context.Context, id int64) (T, error)
	Create(ctx context.Context, body any) (T, error)
	Patch(ctx context.Context, id int64, body any) (T, error)
}

// Attachment is a staged binary upload (author photo, site logo) plus any
// form fields that travel with it, e.g. the avatar crop rectangle.
type Attachment struct {
	Path  string
	Extra map[string]string
}

type Deps[T any] struct {
	Backend Backend[T]
	Drafts  DraftStore
	Perms   perm.Checker
	Log     zerolog.Logger
}

// Session is one open edit of an entity, or of a new entity in create mode.
type Session[T any] struct {
	table Table[T]
	deps  Deps[T]

	mu         sync.Mutex
	id         int64
	scope      string
	entity     T
	snapshot   Values
	draft      Values
	attachment *Attachment
	saving     bool
	draftErr   error
}

// Open starts editing an existing entity. Empty draft-tracked fields are
// seeded from the draft store.
func Open[T any](ctx context.Context, table Table[T], deps Deps[T], entity T) *Session[T] {
	s := &Session[T]{table: table, deps: deps}
	s.reset(entity)
	s.seedDrafts(ctx)
	return s
}

// OpenNew starts a create-mode session. preset values become part of the
// snapshot, e.g. the fixed author of a poem created from an author page.
// scope keeps create drafts from different parents apart.
func OpenNew[T any](ctx context.Context, table Table[T], deps Deps[T], scope string, preset Values) *Session[T] {
	s := &Session[T]{table: table, deps: deps, scope: scope}
	snap := table.Normalize(mergeValues(table.Empty(), preset))
	s.snapshot = snap
	s.draft = snap.Clone()
	s.seedDrafts(ctx)
	return s
}

func mergeValues(base, over Values) Values {
	out := base.Clone()
	maps.Copy(out, over)
	return out
}

func (s *Session[T]) reset(entity T) {
	s.entity = entity
	s.id = s.table.ID(entity)
	s.snapshot = s.table.Snapshot(entity)
	s.draft = s.snapshot.Clone()
	s.attachment = nil
}

func (s *Session[T]) key(field string) store.DraftKey {
	return store.DraftKey{Kind: s.table.Kind, ID: s.id, Field: field, Scope: s.scope}
}

func (s *Session[T]) seedDrafts(ctx context.Context) {
	if s.deps.Drafts == nil {
		return
	}
	for _, f := range s.table.Fields {
		if !f.Draft || !f.Type.IsEmpty(s.snapshot[f.Name]) {
			continue
		}
		v, ok, err := s.deps.Drafts.ReadDraft(ctx, s.key(f.Name))
		if err != nil {
			s.draftErr = err
			s.deps.Log.Warn().Err(err).Str("key", s.key(f.Name).String()).Msg("read draft")
			continue
		}
		if ok && v != "" {
			s.draft[f.Name] = f.Type.Normalize(v)
		}
	}
}

func (s *Session[T]) Table() Table[T] { return s.table }

func (s *Session[T]) Creating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id == 0
}

func (s *Session[T]) ID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Entity returns the last server snapshot; ok is false in create mode.
func (s *Session[T]) Entity() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entity, s.id != 0
}

func (s *Session[T]) Draft() Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.Clone()
}

func (s *Session[T]) Snapshot() Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.Clone()
}

func (s *Session[T]) Value(name string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft[name]
}

func (s *Session[T]) Saving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saving
}

func (s *Session[T]) Attachment() *Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attachment
}

// DraftError reports the last draft store failure, if any. Drafts are best
// effort; editing continues without them.
func (s *Session[T]) DraftError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draftErr
}

// SetField updates the draft and writes draft-tracked fields through to the store.
func (s *Session[T]) SetField(ctx context.Context, name string, value any) error {
	f, ok := s.table.Field(name)
	if !ok {
		return fmt.Errorf("%s has no field %q", s.table.Kind, name)
	}
	s.mu.Lock()
	if f.CreateOnly && s.id != 0 {
		s.mu.Unlock()
		return fmt.Errorf("%s can only be set while creating", name)
	}
	v := f.Type.Normalize(value)
	s.draft[name] = v
	key := s.key(name)
	s.mu.Unlock()

	if !f.Draft || s.deps.Drafts == nil {
		return nil
	}
	if err := s.deps.Drafts.WriteDraft(ctx, key, asString(v)); err != nil {
		s.mu.Lock()
		s.draftErr = err
		s.mu.Unlock()
		return fmt.Errorf("write draft %s: %w", key, err)
	}
	return nil
}

func (s *Session[T]) StageAttachment(a Attachment) error {
	if s.table.Attachment == "" {
		return fmt.Errorf("%s does not take attachments", s.table.Kind)
	}
	if a.Path == "" {
		return errors.New("attachment path is empty")
	}
	if _, err := os.Stat(a.Path); err != nil {
		return err
	}
	s.mu.Lock()
	s.attachment = &a
	s.mu.Unlock()
	return nil
}

func (s *Session[T]) ClearAttachment() {
	s.mu.Lock()
	s.attachment = nil
	s.mu.Unlock()
}

func (s *Session[T]) IsDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attachment != nil || !s.table.Equal(s.draft, s.snapshot)
}

// Changed lists the fields that differ from the snapshot.
func (s *Session[T]) Changed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.Changed(s.draft, s.snapshot)
}

// Cancel discards the in-memory draft. Stored drafts are left alone.
func (s *Session[T]) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = s.snapshot.Clone()
	s.attachment = nil
}

// CanSave reports whether Save would pass the permission gate.
func (s *Session[T]) CanSave() perm.Affordance {
	return perm.SaveAffordance(s.deps.Perms, s.table.Kind, s.Creating())
}

// Validate runs the local checks Save runs, without sending anything.
func (s *Session[T]) Validate() error {
	s.mu.Lock()
	draft, creating := s.draft.Clone(), s.id == 0
	s.mu.Unlock()
	return s.validate(draft, creating)
}

func (s *Session[T]) validate(draft Values, creating bool) error {
	for _, f := range s.table.Active(creating) {
		if !f.Required || !f.Type.IsEmpty(draft[f.Name]) {
			continue
		}
		reason := "is required"
		if f.Type.Name == Ref.Name {
			reason = "must be selected"
		}
		return &ValidationError{Field: f.Name, Reason: reason}
	}
	if s.table.Check != nil {
		return s.table.Check(draft, creating)
	}
	return nil
}

// Save submits the full draft. Local rejections (permission, validation, a
// save already in flight) send nothing. On success the draft keys are
// cleared and the session reopens on the reloaded server snapshot; on
// failure the draft is kept as is.
func (s *Session[T]) Save(ctx context.Context) (T, error) {
	var zero T

	s.mu.Lock()
	if s.saving {
		s.mu.Unlock()
		return zero, ErrSaveInFlight
	}
	creating := s.id == 0
	if !perm.CanSave(s.deps.Perms, s.table.Kind, creating) {
		s.mu.Unlock()
		return zero, fmt.Errorf("save %s: %w", s.table.Kind, ErrNotPermitted)
	}
	draft := s.draft.Clone()
	if err := s.validate(draft, creating); err != nil {
		s.mu.Unlock()
		return zero, err
	}
	s.saving = true
	id := s.id
	attachment := s.attachment
	var keys []store.DraftKey
	for _, f := range s.table.Fields {
		if f.Draft {
			keys = append(keys, s.key(f.Name))
		}
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.saving = false
		s.mu.Unlock()
	}()

	body, closeBody, err := s.body(draft, creating, attachment)
	if err != nil {
		return zero, err
	}
	var saved T
	if creating {
		saved, err = s.deps.Backend.Create(ctx, body)
	} else {
		saved, err = s.deps.Backend.Patch(ctx, id, body)
	}
	closeBody()
	if err != nil {
		s.deps.Log.Warn().Err(err).Str("kind", string(s.table.Kind)).Int64("id", id).Msg("save failed")
		return zero, err
	}

	if s.deps.Drafts != nil {
		for _, k := range keys {
			if err := s.deps.Drafts.DeleteDraft(ctx, k); err != nil {
				s.deps.Log.Warn().Err(err).Str("key", k.String()).Msg("clear draft")
			}
		}
	}

	fresh := saved
	if newID := s.table.ID(saved); newID > 0 {
		reloaded, err := s.deps.Backend.Get(ctx, newID)
		if err != nil {
			s.deps.Log.Warn().Err(err).Str("kind", string(s.table.Kind)).Int64("id", newID).Msg("reload after save")
		} else {
			fresh = reloaded
		}
	}

	s.mu.Lock()
	s.reset(fresh)
	s.scope = ""
	s.mu.Unlock()
	s.deps.Log.Info().Str("kind", string(s.table.Kind)).Int64("id", s.ID()).Bool("created", creating).Msg("saved")
	return fresh, nil
}

func (s *Session[T]) body(draft Values, creating bool, a *Attachment) (any, func(), error) {
	fields := s.table.Active(creating)
	if a == nil {
		out := make(map[string]any, len(fields))
		for _, f := range fields {
			if f.Type.Name == Secret.Name && asString(draft[f.Name]) == "" {
				continue
			}
			out[f.Name] = wireValue(f, draft[f.Name])
		}
		return out, func() {}, nil
	}

	mp := &api.Multipart{Fields: map[string]string{}, Files: map[string]api.File{}}
	for _, f := range fields {
		if f.Type.Name == Secret.Name && asString(draft[f.Name]) == "" {
			continue
		}
		mp.Fields[f.Name] = formValue(f, draft[f.Name])
	}
	for k, v := range a.Extra {
		mp.Fields[k] = v
	}
	fh, err := os.Open(a.Path)
	if err != nil {
		return nil, func() {}, fmt.Errorf("open attachment: %w", err)
	}
	mp.Files[s.table.Attachment] = api.File{Name: a.Path, Reader: fh}
	return mp, func() { _ = fh.Close() }, nil
}
