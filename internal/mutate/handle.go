package mutate

import (
	"context"
	"errors"
	"sync"

	"devon-cli/internal/editsession"
	"devon-cli/internal/format"
	"devon-cli/internal/lifecycle"
	"devon-cli/internal/model"
	"devon-cli/internal/perm"
)

// Handle is one opened entity (or a new one in create mode) with its edit
// session and lifecycle controller, independent of the entity type. The CLI
// and the console both drive entities through it.
type Handle interface {
	Kind() model.Kind
	ID() int64
	Title() string
	Creating() bool
	Entity() any

	Fields() []editsession.Field
	Value(name string) any
	Display(name string) string
	Options(name string) []Option
	SetField(ctx context.Context, name string, v any) error
	SetFieldText(ctx context.Context, name, raw string) error
	IsDirty() bool
	Changed() []string
	Cancel()
	Validate() error
	Saving() bool
	CanSave() perm.Affordance
	Save(ctx context.Context) error
	AttachmentField() string
	StageAttachment(a editsession.Attachment) error
	DraftError() error

	State() model.LifecycleState
	Affordances() lifecycle.Affordances
	Prompt(op lifecycle.Op) lifecycle.Prompt
	// Transition runs op. confirmed skips the confirmer because the caller
	// already asked. An error wrapping lifecycle.ErrStale comes with the
	// server's message: the transition happened but the view is stale.
	Transition(ctx context.Context, op lifecycle.Op, confirmed bool) (string, error)

	Details() format.KV
	// Markdown returns the long-form field shown as a rendered preview.
	Markdown() (label, md string)
}

type view[T model.Entity] struct {
	title    func(T) string
	details  func(T) format.KV
	markdown func(T) (string, string)
}

type handle[T model.Entity] struct {
	deps     lifecycle.Deps[T]
	sessDeps editsession.Deps[T]
	options  map[string][]Option
	view     view[T]
	newName  string

	mu   sync.Mutex
	sess *editsession.Session[T]
	ctl  *lifecycle.Controller[T]
}

func (h *handle[T]) controller() *lifecycle.Controller[T] {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ctl
}

func (h *handle[T]) session() *editsession.Session[T] {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sess
}

func (h *handle[T]) Kind() model.Kind { return h.session().Table().Kind }
func (h *handle[T]) ID() int64        { return h.session().ID() }
func (h *handle[T]) Creating() bool   { return h.session().Creating() }

func (h *handle[T]) Title() string {
	e, ok := h.session().Entity()
	if !ok {
		return "New " + h.newName
	}
	return h.view.title(e)
}

func (h *handle[T]) Entity() any {
	if ctl := h.controller(); ctl != nil && ctl.State() == model.StatePurged {
		return nil
	}
	e, ok := h.session().Entity()
	if !ok {
		return nil
	}
	return e
}

func (h *handle[T]) Fields() []editsession.Field {
	return h.session().Table().Active(h.session().Creating())
}

func (h *handle[T]) Value(name string) any { return h.session().Value(name) }

func (h *handle[T]) Options(name string) []Option { return h.options[name] }

func (h *handle[T]) Display(name string) string {
	f, ok := h.session().Table().Field(name)
	if !ok {
		return ""
	}
	return Display(f, h.session().Value(name), h.options[name])
}

func (h *handle[T]) SetField(ctx context.Context, name string, v any) error {
	return h.session().SetField(ctx, name, v)
}

func (h *handle[T]) SetFieldText(ctx context.Context, name, raw string) error {
	f, ok := h.session().Table().Field(name)
	if !ok {
		return FieldError{Field: name, Value: raw, Msg: "unknown field"}
	}
	v, err := ParseValue(f, raw)
	if err != nil {
		return err
	}
	return h.session().SetField(ctx, name, v)
}

func (h *handle[T]) IsDirty() bool            { return h.session().IsDirty() }
func (h *handle[T]) Changed() []string        { return h.session().Changed() }
func (h *handle[T]) Cancel()                  { h.session().Cancel() }
func (h *handle[T]) Validate() error          { return h.session().Validate() }
func (h *handle[T]) Saving() bool             { return h.session().Saving() }
func (h *handle[T]) CanSave() perm.Affordance { return h.session().CanSave() }
func (h *handle[T]) AttachmentField() string  { return h.session().Table().Attachment }
func (h *handle[T]) DraftError() error        { return h.session().DraftError() }

func (h *handle[T]) Prompt(op lifecycle.Op) lifecycle.Prompt {
	if ctl := h.controller(); ctl != nil {
		return ctl.Prompt(op)
	}
	e, _ := h.session().Entity()
	return lifecycle.PromptFor(e, op)
}

func (h *handle[T]) StageAttachment(a editsession.Attachment) error {
	return h.session().StageAttachment(a)
}

func (h *handle[T]) Save(ctx context.Context) error {
	saved, err := h.session().Save(ctx)
	if err != nil {
		return err
	}
	h.mu.Lock()
	if h.ctl == nil {
		h.ctl = lifecycle.New(h.deps, saved)
	} else {
		h.ctl.Reset(saved)
	}
	h.mu.Unlock()
	return nil
}

func (h *handle[T]) State() model.LifecycleState {
	if ctl := h.controller(); ctl != nil {
		return ctl.State()
	}
	return model.StateActive
}

func (h *handle[T]) Affordances() lifecycle.Affordances {
	if ctl := h.controller(); ctl != nil {
		return ctl.Affordances()
	}
	return lifecycle.Affordances{}
}

func (h *handle[T]) Transition(ctx context.Context, op lifecycle.Op, confirmed bool) (string, error) {
	ctl := h.controller()
	if ctl == nil {
		return "", lifecycle.ErrNotAvailable
	}
	var (
		res lifecycle.Result[T]
		err error
	)
	if confirmed {
		res, err = ctl.Apply(ctx, op)
	} else {
		res, err = ctl.Run(ctx, op)
	}
	if errors.Is(err, lifecycle.ErrStale) {
		return res.Message, err
	}
	if err != nil {
		return "", err
	}
	// Keep the edit session on the fresh snapshot unless the operator has
	// unsaved changes in it.
	if sess := h.session(); res.State != model.StatePurged && !sess.IsDirty() {
		fresh := editsession.Open(ctx, sess.Table(), h.sessDeps, res.Entity)
		h.mu.Lock()
		h.sess = fresh
		h.mu.Unlock()
	}
	return res.Message, nil
}

func (h *handle[T]) Details() format.KV {
	e, ok := h.session().Entity()
	if !ok {
		kv := format.KV{}
		for _, f := range h.Fields() {
			kv = append(kv, [2]string{f.Name, h.Display(f.Name)})
		}
		return kv
	}
	kv := h.view.details(e)
	if ctl := h.controller(); ctl != nil && h.Kind().Manageable() {
		kv = append(kv, [2]string{"state", ctl.State().String()})
	}
	return kv
}

func (h *handle[T]) Markdown() (string, string) {
	if h.view.markdown == nil {
		return "", ""
	}
	e, ok := h.session().Entity()
	if !ok {
		return "", ""
	}
	return h.view.markdown(e)
}
