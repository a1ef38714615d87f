package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devon-cli/internal/api"
	"devon-cli/internal/model"
	"devon-cli/internal/perm"
)

type fakeBackend[T model.Entity] struct {
	current T
	getErr  error
	opErr   error
	calls   []string
	onSoft  func(T) T
	onRest  func(T) T
}

func (f *fakeBackend[T]) Get(context.Context, int64) (T, error) {
	f.calls = append(f.calls, "get")
	return f.current, f.getErr
}

func (f *fakeBackend[T]) SoftDelete(context.Context, int64) (string, error) {
	f.calls = append(f.calls, "soft-delete")
	if f.opErr != nil {
		return "", f.opErr
	}
	f.current = f.onSoft(f.current)
	return "Перемещено в корзину.", nil
}

func (f *fakeBackend[T]) Restore(context.Context, int64) (string, error) {
	f.calls = append(f.calls, "restore")
	if f.opErr != nil {
		return "", f.opErr
	}
	f.current = f.onRest(f.current)
	return "Восстановлено.", nil
}

func (f *fakeBackend[T]) HardDelete(context.Context, int64) (string, error) {
	f.calls = append(f.calls, "hard-delete")
	return "Удалено навсегда.", f.opErr
}

func authorBackend(a model.Author) *fakeBackend[model.Author] {
	return &fakeBackend[model.Author]{
		current: a,
		onSoft: func(a model.Author) model.Author {
			now := time.Now()
			a.DeletedAt = &now
			return a
		},
		onRest: func(a model.Author) model.Author {
			a.DeletedAt = nil
			return a
		},
	}
}

func evaluator(selfID int64, m model.PermissionMatrix) *perm.Evaluator {
	ev := perm.NewEvaluator()
	ev.Set(model.Identity{ID: &selfID, Permissions: m})
	return ev
}

var authorsAll = model.PermissionMatrix{model.ModuleAuthors: {Create: true, Read: true, Update: true, Delete: true}}

type recordingConfirmer struct {
	answer  bool
	prompts []Prompt
}

func (r *recordingConfirmer) Confirm(_ context.Context, p Prompt) (bool, error) {
	r.prompts = append(r.prompts, p)
	return r.answer, nil
}

func TestAuthorSoftDeletePromptMentionsPoemCount(t *testing.T) {
	author := model.Author{ID: 7, FullName: "Рудаки", Poems: []model.Poem{{ID: 1}, {ID: 2}, {ID: 3}}}
	be := authorBackend(author)
	conf := &recordingConfirmer{answer: true}
	c := New(Deps[model.Author]{Backend: be, Confirm: conf, Perms: evaluator(1, authorsAll)}, author)

	res, err := c.Run(context.Background(), OpSoftDelete)
	require.NoError(t, err)
	require.Len(t, conf.prompts, 1)
	assert.Contains(t, conf.prompts[0].Body, "3")
	assert.Contains(t, conf.prompts[0].Body, "published state")
	assert.Equal(t, model.StateTrashed, res.State)
	assert.Equal(t, model.StateTrashed, c.State())
	assert.Equal(t, []string{"soft-delete", "get"}, be.calls)
	assert.Equal(t, "Перемещено в корзину.", res.Message)
}

func TestDeclinedConfirmationSendsNothing(t *testing.T) {
	author := model.Author{ID: 7, FullName: "Рудаки"}
	be := authorBackend(author)
	c := New(Deps[model.Author]{Backend: be, Confirm: &recordingConfirmer{answer: false}, Perms: evaluator(1, authorsAll)}, author)

	_, err := c.Run(context.Background(), OpSoftDelete)
	require.ErrorIs(t, err, ErrCanceled)
	assert.Empty(t, be.calls)
	assert.Equal(t, model.StateActive, c.State())
}

func TestStateMachine(t *testing.T) {
	ctx := context.Background()
	author := model.Author{ID: 7, FullName: "Рудаки"}
	be := authorBackend(author)
	c := New(Deps[model.Author]{Backend: be, Confirm: AlwaysConfirm, Perms: evaluator(1, authorsAll)}, author)

	aff := c.Affordances()
	assert.True(t, aff.SoftDelete.Enabled)
	assert.False(t, aff.Restore.Visible)
	assert.False(t, aff.HardDelete.Visible)

	_, err := c.Run(ctx, OpHardDelete)
	require.ErrorIs(t, err, ErrNotAvailable)
	_, err = c.Run(ctx, OpRestore)
	require.ErrorIs(t, err, ErrNotAvailable)
	assert.Empty(t, be.calls)

	_, err = c.Run(ctx, OpSoftDelete)
	require.NoError(t, err)
	aff = c.Affordances()
	assert.False(t, aff.SoftDelete.Visible)
	assert.True(t, aff.Restore.Enabled)
	assert.True(t, aff.HardDelete.Enabled)

	res, err := c.Run(ctx, OpRestore)
	require.NoError(t, err)
	assert.Equal(t, model.StateActive, res.State)
	assert.Nil(t, c.Entity().DeletedAt)

	_, err = c.Run(ctx, OpSoftDelete)
	require.NoError(t, err)
	res, err = c.Run(ctx, OpHardDelete)
	require.NoError(t, err)
	assert.Equal(t, model.StatePurged, res.State)
	assert.Equal(t, model.StatePurged, c.State())
	aff = c.Affordances()
	assert.False(t, aff.SoftDelete.Visible || aff.Restore.Visible || aff.HardDelete.Visible)
}

func TestRestoreNeedsNoConfirmation(t *testing.T) {
	now := time.Now()
	author := model.Author{ID: 7, FullName: "Рудаки", DeletedAt: &now}
	be := authorBackend(author)
	conf := &recordingConfirmer{answer: false}
	c := New(Deps[model.Author]{Backend: be, Confirm: conf, Perms: evaluator(1, authorsAll)}, author)

	_, err := c.Run(context.Background(), OpRestore)
	require.NoError(t, err)
	assert.Empty(t, conf.prompts)
	assert.Equal(t, model.StateActive, c.State())
}

func TestFailedTransitionKeepsEntity(t *testing.T) {
	author := model.Author{ID: 7, FullName: "Рудаки"}
	be := authorBackend(author)
	be.opErr = &api.Error{Status: 403, Detail: "Недостаточно прав."}
	c := New(Deps[model.Author]{Backend: be, Confirm: AlwaysConfirm, Perms: evaluator(1, authorsAll)}, author)

	_, err := c.Run(context.Background(), OpSoftDelete)
	require.ErrorIs(t, err, api.ErrPermissionDenied)
	assert.Equal(t, "Недостаточно прав.", err.Error())
	assert.Equal(t, model.StateActive, c.State())
	assert.Nil(t, c.Entity().DeletedAt)
	assert.False(t, c.Busy())
}

func TestPermissionGate(t *testing.T) {
	author := model.Author{ID: 7, FullName: "Рудаки"}
	be := authorBackend(author)
	c := New(Deps[model.Author]{Backend: be, Confirm: AlwaysConfirm,
		Perms: evaluator(1, model.PermissionMatrix{model.ModuleAuthors: {Read: true}})}, author)

	aff := c.Affordances()
	assert.True(t, aff.SoftDelete.Visible)
	assert.False(t, aff.SoftDelete.Enabled)

	_, err := c.Run(context.Background(), OpSoftDelete)
	require.ErrorIs(t, err, ErrNotPermitted)
	assert.Empty(t, be.calls)
}

func TestEmployeeCannotDeleteSelf(t *testing.T) {
	me := model.Employee{ID: 5, FullName: "Ali"}
	be := &fakeBackend[model.Employee]{current: me}
	c := New(Deps[model.Employee]{Backend: be, Confirm: AlwaysConfirm,
		Perms: evaluator(5, model.PermissionMatrix{model.ModuleEmployees: {Delete: true}})}, me)

	aff := c.Affordances()
	assert.False(t, aff.SoftDelete.Enabled)
	assert.Equal(t, perm.SelfDeleteReason, aff.SoftDelete.Reason)
	_, err := c.Run(context.Background(), OpSoftDelete)
	require.ErrorIs(t, err, ErrNotPermitted)
	assert.Empty(t, be.calls)
}

func TestReloadNotFoundMeansPurged(t *testing.T) {
	author := model.Author{ID: 7, FullName: "Рудаки"}
	be := authorBackend(author)
	be.getErr = &api.Error{Status: 404, Detail: "Not found."}
	c := New(Deps[model.Author]{Backend: be, Confirm: AlwaysConfirm, Perms: evaluator(1, authorsAll)}, author)

	res, err := c.Run(context.Background(), OpSoftDelete)
	require.NoError(t, err)
	assert.Equal(t, model.StatePurged, res.State)
}

func TestReloadFailureKeepsSnapshotConsistent(t *testing.T) {
	author := model.Author{ID: 7, FullName: "Рудаки"}
	be := authorBackend(author)
	be.getErr = errors.Join(api.ErrTransport, errors.New("connection reset"))
	c := New(Deps[model.Author]{Backend: be, Confirm: AlwaysConfirm, Perms: evaluator(1, authorsAll)}, author)

	res, err := c.Run(context.Background(), OpSoftDelete)
	require.ErrorIs(t, err, ErrStale)
	require.ErrorIs(t, err, api.ErrTransport)
	assert.Equal(t, "Перемещено в корзину.", res.Message)
	assert.Nil(t, res.Entity.DeletedAt)
	assert.Equal(t, model.StateActive, res.State)
	assert.Equal(t, model.StateOf(res.Entity), res.State)
	assert.Equal(t, model.StateActive, c.State())
	assert.Nil(t, c.Entity().DeletedAt)
	assert.Equal(t, []string{"soft-delete", "get"}, be.calls)
}

func TestPrompts(t *testing.T) {
	role := model.Role{ID: 2, Name: "Editors", Employees: []model.EmployeeRef{{ID: 1}, {ID: 2}}}
	p := PromptFor(role, OpSoftDelete)
	assert.Contains(t, p.Body, "2 employees")

	emp := model.Employee{ID: 3, FullName: "Ali"}
	assert.Contains(t, PromptFor(emp, OpSoftDelete).Title, "Are you sure")

	poem := model.Poem{ID: 9}
	hard := PromptFor(poem, OpHardDelete)
	assert.Contains(t, hard.Title, "#9")
	assert.Contains(t, hard.Title, "permanently")

	one := PromptFor(model.Author{ID: 1, FullName: "A", PoemsCount: 1}, OpSoftDelete)
	assert.Contains(t, one.Body, "1 poem.")
}
