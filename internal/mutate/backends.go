package mutate

import (
	"context"
	"errors"

	"devon-cli/internal/api"
	"devon-cli/internal/lifecycle"
	"devon-cli/internal/model"
)

// settingsBackend exposes the site settings singleton through the
// per-entity backend shapes. The id argument is ignored.
type settingsBackend struct{ c *api.Client }

func (b settingsBackend) Get(ctx context.Context, _ int64) (model.SiteSettings, error) {
	return b.c.SiteSettings(ctx)
}

func (b settingsBackend) Create(context.Context, any) (model.SiteSettings, error) {
	return model.SiteSettings{}, errors.New("site settings cannot be created")
}

func (b settingsBackend) Patch(ctx context.Context, _ int64, body any) (model.SiteSettings, error) {
	return b.c.PatchSiteSettings(ctx, body)
}

func (b settingsBackend) SoftDelete(context.Context, int64) (string, error) {
	return "", lifecycle.ErrNotAvailable
}

func (b settingsBackend) Restore(context.Context, int64) (string, error) {
	return "", lifecycle.ErrNotAvailable
}

func (b settingsBackend) HardDelete(context.Context, int64) (string, error) {
	return "", lifecycle.ErrNotAvailable
}

// authorPoemBackend creates poems through the author's nested endpoint so
// the author is fixed by the path.
type authorPoemBackend struct {
	api.Resource[model.Poem]
	c        *api.Client
	authorID int64
}

func (b authorPoemBackend) Create(ctx context.Context, body any) (model.Poem, error) {
	return b.c.AddAuthorPoem(ctx, b.authorID, body)
}
