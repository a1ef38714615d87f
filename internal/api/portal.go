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

// Portal is the read-only public side of the API plus reactions.
type Portal struct {
	c *Client
}

func (c *Client) Portal() Portal { return Portal{c: c} }

type PortalQuery struct {
	Q        string
	Ordering string
	Page     int
	PageSize int
}

func (q PortalQuery) values() url.Values {
	v := url.Values{}
	if s := strings.TrimSpace(q.Q); s != "" {
		v.Set("q", s)
	}
	if s := strings.TrimSpace(q.Ordering); s != "" {
		v.Set("ordering", s)
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

func (p Portal) Authors(ctx context.Context, q PortalQuery) (model.Page[model.PortalAuthor], error) {
	var page model.Page[model.PortalAuthor]
	err := p.c.do(ctx, http.MethodGet, publicPrefix+"/authors", q.values(), nil, &page)
	return page, err
}

func (p Portal) Author(ctx context.Context, id int64) (model.PortalAuthor, error) {
	var out model.PortalAuthor
	err := p.c.do(ctx, http.MethodGet, fmt.Sprintf("%s/authors/%d", publicPrefix, id), nil, nil, &out)
	return out, err
}

func (p Portal) AuthorPoems(ctx context.Context, id int64, q PortalQuery) (model.Page[model.PortalPoem], error) {
	var page model.Page[model.PortalPoem]
	err := p.c.do(ctx, http.MethodGet, fmt.Sprintf("%s/authors/%d/poems", publicPrefix, id), q.values(), nil, &page)
	return page, err
}

// RandomAuthors returns up to limit published authors, skipping exclude when > 0.
func (p Portal) RandomAuthors(ctx context.Context, limit int, exclude int64) ([]model.PortalAuthor, error) {
	v := url.Values{}
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	if exclude > 0 {
		v.Set("exclude", strconv.FormatInt(exclude, 10))
	}
	var out []model.PortalAuthor
	err := p.c.do(ctx, http.MethodGet, publicPrefix+"/authors/random", v, nil, &out)
	return out, err
}

func (p Portal) Poem(ctx context.Context, id int64) (model.PortalPoem, error) {
	var out model.PortalPoem
	err := p.c.do(ctx, http.MethodGet, fmt.Sprintf("%s/poems/%d", publicPrefix, id), nil, nil, &out)
	return out, err
}

func (p Portal) RandomPoem(ctx context.Context) (model.PortalPoem, error) {
	var out model.PortalPoem
	err := p.c.do(ctx, http.MethodGet, publicPrefix+"/poems/random", nil, nil, &out)
	return out, err
}

// RegisterView counts a read of the poem for this visitor.
func (p Portal) RegisterView(ctx context.Context, id int64) (model.ViewResult, error) {
	var out model.ViewResult
	err := p.c.do(ctx, http.MethodPost, fmt.Sprintf("%s/poems/%d/view", publicPrefix, id), nil, map[string]any{}, &out)
	return out, err
}

func (p Portal) Neighbors(ctx context.Context, poemID, authorID int64) (model.Neighbors, error) {
	v := url.Values{}
	v.Set("author_id", strconv.FormatInt(authorID, 10))
	var out model.Neighbors
	err := p.c.do(ctx, http.MethodGet, fmt.Sprintf("%s/poems/%d/neighbors", publicPrefix, poemID), v, nil, &out)
	return out, err
}

func (p Portal) Search(ctx context.Context, q PortalQuery) (model.SearchResult, error) {
	var out model.SearchResult
	err := p.c.do(ctx, http.MethodGet, publicPrefix+"/search", q.values(), nil, &out)
	return out, err
}

// ToggleReaction adds the reaction, or removes it when already set. A visitor
// holds at most one reaction per poem.
func (p Portal) ToggleReaction(ctx context.Context, poemID int64, typ model.ReactionType) (model.ReactionSummary, error) {
	var out model.ReactionSummary
	body := map[string]any{"poem_id": poemID, "type": typ}
	err := p.c.do(ctx, http.MethodPost, publicPrefix+"/reactions/toggle", nil, body, &out)
	return out, err
}
