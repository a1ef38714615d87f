package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"devon-cli/internal/model"
)

const MaxPageSize = 100

// ListQuery is the common filter set of dashboard collection endpoints.
// Empty values are omitted and the server applies its defaults.
type ListQuery struct {
	Q         string
	Sort      string // alphabetic | oldest | newest
	Published string // all | published | unpublished (authors, poems)
	Status    string // all | active | inactive (employees, roles)
	Trash     string // active | trash | all
	AuthorID  int64  // poems only
	Page      int
	PageSize  int
}

func (q ListQuery) values() url.Values {
	v := url.Values{}
	set := func(k, val string) {
		if s := strings.TrimSpace(val); s != "" {
			v.Set(k, s)
		}
	}
	set("q", q.Q)
	set("sort", q.Sort)
	set("published", q.Published)
	set("status", q.Status)
	set("trash", q.Trash)
	if q.AuthorID > 0 {
		v.Set("author_id", strconv.FormatInt(q.AuthorID, 10))
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		size := q.PageSize
		if size > MaxPageSize {
			size = MaxPageSize
		}
		v.Set("page_size", strconv.Itoa(size))
	}
	return v
}

// Resource is a dashboard collection with the uniform lifecycle endpoints.
type Resource[T model.Entity] struct {
	c    *Client
	path string
}

func newResource[T model.Entity](c *Client, kind model.Kind) Resource[T] {
	return Resource[T]{c: c, path: dashboardPrefix + "/" + kind.Collection()}
}

func (r Resource[T]) item(id int64, suffix string) string {
	return fmt.Sprintf("%s/%d%s", r.path, id, suffix)
}

func (r Resource[T]) List(ctx context.Context, q ListQuery) (model.Page[T], error) {
	var page model.Page[T]
	err := r.c.do(ctx, http.MethodGet, r.path, q.values(), nil, &page)
	return page, err
}

func (r Resource[T]) Get(ctx context.Context, id int64) (T, error) {
	var out T
	err := r.c.do(ctx, http.MethodGet, r.item(id, ""), nil, nil, &out)
	return out, err
}

// Create posts body (a JSON value or *Multipart) and returns the created entity.
func (r Resource[T]) Create(ctx context.Context, body any) (T, error) {
	var out T
	err := r.c.do(ctx, http.MethodPost, r.path, nil, body, &out)
	return out, err
}

// Patch sends body as a partial update and returns the updated entity.
func (r Resource[T]) Patch(ctx context.Context, id int64, body any) (T, error) {
	var out T
	err := r.c.do(ctx, http.MethodPatch, r.item(id, ""), nil, body, &out)
	return out, err
}

// SoftDelete moves the entity to the trash. It returns the server's message.
func (r Resource[T]) SoftDelete(ctx context.Context, id int64) (string, error) {
	var out messageResponse
	err := r.c.do(ctx, http.MethodDelete, r.item(id, ""), nil, nil, &out)
	return out.text(), err
}

func (r Resource[T]) Restore(ctx context.Context, id int64) (string, error) {
	var out messageResponse
	err := r.c.do(ctx, http.MethodPost, r.item(id, "/restore"), nil, map[string]any{}, &out)
	return out.text(), err
}

func (r Resource[T]) HardDelete(ctx context.Context, id int64) (string, error) {
	var out messageResponse
	err := r.c.do(ctx, http.MethodDelete, r.item(id, "/hard-delete"), nil, nil, &out)
	return out.text(), err
}
