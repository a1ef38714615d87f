package api

import (
	"context"
	"fmt"
	"net/http"

	"devon-cli/internal/model"
)

func (c *Client) Authors() Resource[model.Author] { return newResource[model.Author](c, model.KindAuthor) }
func (c *Client) Poems() Resource[model.Poem]     { return newResource[model.Poem](c, model.KindPoem) }
func (c *Client) Roles() Resource[model.Role]     { return newResource[model.Role](c, model.KindRole) }
func (c *Client) Employees() Resource[model.Employee] {
	return newResource[model.Employee](c, model.KindEmployee)
}

func (c *Client) Home(ctx context.Context) (model.Home, error) {
	var out model.Home
	err := c.do(ctx, http.MethodGet, dashboardPrefix+"/home", nil, nil, &out)
	return out, err
}

// AuthorPoems lists the poems of one author with the usual filters.
func (c *Client) AuthorPoems(ctx context.Context, authorID int64, q ListQuery) (model.Page[model.Poem], error) {
	var page model.Page[model.Poem]
	path := fmt.Sprintf("%s/authors/%d/poems", dashboardPrefix, authorID)
	err := c.do(ctx, http.MethodGet, path, q.values(), nil, &page)
	return page, err
}

// AddAuthorPoem creates a poem attached to authorID.
func (c *Client) AddAuthorPoem(ctx context.Context, authorID int64, body any) (model.Poem, error) {
	var out model.Poem
	path := fmt.Sprintf("%s/authors/%d/poems", dashboardPrefix, authorID)
	err := c.do(ctx, http.MethodPost, path, nil, body, &out)
	return out, err
}

// ResetEmployeePassword sets a new password for another employee.
func (c *Client) ResetEmployeePassword(ctx context.Context, employeeID int64, newPassword, confirm string) (string, error) {
	var out messageResponse
	path := fmt.Sprintf("%s/employees/%d/reset-password", dashboardPrefix, employeeID)
	body := map[string]string{"new_password": newPassword, "confirm_password": confirm}
	err := c.do(ctx, http.MethodPost, path, nil, body, &out)
	return out.text(), err
}

func (c *Client) SiteSettings(ctx context.Context) (model.SiteSettings, error) {
	var out model.SiteSettings
	err := c.do(ctx, http.MethodGet, dashboardPrefix+"/site-settings", nil, nil, &out)
	return out, err
}

// PatchSiteSettings updates the singleton; body is a JSON value or *Multipart with a logo.
func (c *Client) PatchSiteSettings(ctx context.Context, body any) (model.SiteSettings, error) {
	var out model.SiteSettings
	err := c.do(ctx, http.MethodPatch, dashboardPrefix+"/site-settings", nil, body, &out)
	return out, err
}
