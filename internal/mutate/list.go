package mutate

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"devon-cli/internal/api"
	"devon-cli/internal/model"
)

type Row struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Status  string    `json:"status"`
	State   string    `json:"state"`
	Created time.Time `json:"created_at"`
}

// Listing is one page of a collection in a kind-independent shape.
type Listing struct {
	Kind     model.Kind `json:"kind"`
	Count    int        `json:"count"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
	Items    []Row      `json:"results"`
}

func (l Listing) Pages() int {
	return model.Page[Row]{Count: l.Count, PageSize: l.PageSize}.Pages()
}

func (l Listing) Headers() []string {
	return []string{"id", "title", "detail", "status", "state", "created"}
}

func (l Listing) Rows() [][]string {
	out := make([][]string, 0, len(l.Items))
	for _, r := range l.Items {
		out = append(out, []string{strconv.FormatInt(r.ID, 10), r.Title, r.Detail, r.Status, r.State, created(r.Created)})
	}
	return out
}

func created(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(time.DateTime)
}

func published(b bool) string {
	if b {
		return "published"
	}
	return "draft"
}

func active(b bool) string {
	if b {
		return "active"
	}
	return "inactive"
}

func listing[T model.Entity](kind model.Kind, p model.Page[T], row func(T) Row) Listing {
	l := Listing{Kind: kind, Count: p.Count, Page: p.Page, PageSize: p.PageSize, Items: make([]Row, 0, len(p.Results))}
	for _, it := range p.Results {
		r := row(it)
		r.ID = it.EntityID()
		r.State = model.StateOf(it).String()
		r.Created = it.Created()
		l.Items = append(l.Items, r)
	}
	return l
}

func authorRow(a model.Author) Row {
	return Row{Title: a.FullName, Detail: fmt.Sprintf("%s %d poems", a.Lifespan(), a.PoemsCount), Status: published(a.IsPublished)}
}

func poemRow(p model.Poem) Row {
	return Row{Title: p.Title, Detail: p.Author.FullName, Status: published(p.IsPublished)}
}

func (s *Service) List(ctx context.Context, kind model.Kind, q api.ListQuery) (Listing, error) {
	switch kind {
	case model.KindAuthor:
		p, err := s.Client.Authors().List(ctx, q)
		return listing(kind, p, authorRow), err
	case model.KindPoem:
		p, err := s.Client.Poems().List(ctx, q)
		return listing(kind, p, poemRow), err
	case model.KindRole:
		p, err := s.Client.Roles().List(ctx, q)
		return listing(kind, p, func(r model.Role) Row {
			return Row{Title: r.Name, Detail: fmt.Sprintf("%d employees", r.EmployeesCount), Status: active(r.IsActive)}
		}), err
	case model.KindEmployee:
		p, err := s.Client.Employees().List(ctx, q)
		return listing(kind, p, func(e model.Employee) Row {
			role := ""
			if e.Role != nil {
				role = e.Role.Name
			}
			return Row{Title: e.FullName, Detail: e.Email + " " + role, Status: active(e.IsActive)}
		}), err
	default:
		return Listing{}, fmt.Errorf("%s has no collection", kind)
	}
}

// AuthorPoems lists the poems of one author.
func (s *Service) AuthorPoems(ctx context.Context, authorID int64, q api.ListQuery) (Listing, error) {
	p, err := s.Client.AuthorPoems(ctx, authorID, q)
	return listing(model.KindPoem, p, poemRow), err
}
