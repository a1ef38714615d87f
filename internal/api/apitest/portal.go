package apitest

import (
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"

	"devon-cli/internal/model"
	"devon-cli/internal/slug"
)

const visitorCookie = "shoieron_uid"

func visitor(r *http.Request) string {
	if c, err := r.Cookie(visitorCookie); err == nil {
		return c.Value
	}
	return "anonymous"
}

func (s *Server) publicAuthor(a *model.Author) bool {
	return a != nil && a.IsPublished && a.DeletedAt == nil
}

func (s *Server) publicPoem(p *model.Poem) bool {
	return p != nil && p.IsPublished && p.DeletedAt == nil && s.publicAuthor(s.Authors[p.Author.ID])
}

func (s *Server) portalAuthor(a *model.Author, full bool) model.PortalAuthor {
	out := model.PortalAuthor{
		ID:       a.ID,
		FullName: a.FullName,
		Slug:     slug.Make(a.FullName, slug.FallbackAuthor),
		URLSlug:  slug.WithID(a.ID, a.FullName, slug.FallbackAuthor),
	}
	if a.BirthYear != nil {
		d := strconv.Itoa(*a.BirthYear) + "-01-01"
		out.BirthDate = &d
	}
	if a.DeathYear != nil {
		d := strconv.Itoa(*a.DeathYear) + "-01-01"
		out.DeathDate = &d
	}
	for _, p := range s.Poems {
		if p.Author.ID == a.ID && s.publicPoem(p) {
			out.PoemsCount++
			out.Popularity += p.Views
		}
	}
	if full {
		out.BiographyMD = a.BiographyMD
	}
	return out
}

func (s *Server) portalPoem(p *model.Poem, full bool, who string) model.PortalPoem {
	a := s.Authors[p.Author.ID]
	out := model.PortalPoem{
		ID:      p.ID,
		Title:   p.Title,
		Views:   p.Views,
		Slug:    slug.Make(p.Title, slug.FallbackPoem),
		URLSlug: slug.WithID(p.ID, p.Title, slug.FallbackPoem),
		Author: model.PortalAuthorRef{
			ID:       a.ID,
			FullName: a.FullName,
			Slug:     slug.Make(a.FullName, slug.FallbackAuthor),
		},
	}
	if full {
		out.Text = p.Text
		sum := s.summary(p.ID, who)
		out.Reactions = &sum
	} else {
		out.Preview, _, _ = strings.Cut(p.Text, "\n")
	}
	return out
}

func (s *Server) summary(poemID int64, who string) model.ReactionSummary {
	sum := model.ReactionSummary{CountsByType: map[model.ReactionType]int{}, UserFlagsByType: map[model.ReactionType]bool{}}
	for _, t := range model.ReactionTypes {
		sum.CountsByType[t] = 0
		sum.UserFlagsByType[t] = false
	}
	for v, t := range s.reactions[poemID] {
		sum.CountsByType[t]++
		if v == who {
			sum.UserFlagsByType[t] = true
		}
	}
	return sum
}

func (s *Server) publicPoems(authorID int64) []*model.Poem {
	var out []*model.Poem
	for _, id := range sortedKeys(s.Poems) {
		p := s.Poems[id]
		if s.publicPoem(p) && (authorID == 0 || p.Author.ID == authorID) {
			out = append(out, p)
		}
	}
	return out
}

func (s *Server) portal(r *http.Request, parts []string) reply {
	who := visitor(r)
	q := strings.ToLower(r.URL.Query().Get("q"))
	switch {
	case len(parts) == 1 && parts[0] == "authors":
		var out []model.PortalAuthor
		for _, id := range sortedKeys(s.Authors) {
			if a := s.Authors[id]; s.publicAuthor(a) && (q == "" || strings.Contains(strings.ToLower(a.FullName), q)) {
				out = append(out, s.portalAuthor(a, false))
			}
		}
		return ok(page(out, r))
	case len(parts) == 2 && parts[0] == "authors" && parts[1] == "random":
		var out []model.PortalAuthor
		exclude, _ := strconv.ParseInt(r.URL.Query().Get("exclude"), 10, 64)
		for _, id := range sortedKeys(s.Authors) {
			if a := s.Authors[id]; s.publicAuthor(a) && a.ID != exclude {
				out = append(out, s.portalAuthor(a, false))
			}
		}
		rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
		if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit < len(out) {
			out = out[:limit]
		}
		return ok(out)
	case len(parts) >= 2 && parts[0] == "authors":
		id, _ := strconv.ParseInt(parts[1], 10, 64)
		a := s.Authors[id]
		if !s.publicAuthor(a) {
			return notFound
		}
		if len(parts) == 3 && parts[2] == "poems" {
			var out []model.PortalPoem
			for _, p := range s.publicPoems(id) {
				out = append(out, s.portalPoem(p, false, who))
			}
			return ok(page(out, r))
		}
		return ok(s.portalAuthor(a, true))
	case len(parts) == 2 && parts[0] == "poems" && parts[1] == "random":
		all := s.publicPoems(0)
		if len(all) == 0 {
			return notFound
		}
		return ok(s.portalPoem(all[rand.IntN(len(all))], true, who))
	case len(parts) >= 2 && parts[0] == "poems":
		id, _ := strconv.ParseInt(parts[1], 10, 64)
		p := s.Poems[id]
		if !s.publicPoem(p) {
			return notFound
		}
		if len(parts) == 3 {
			switch parts[2] {
			case "view":
				if s.viewed[id] == nil {
					s.viewed[id] = map[string]bool{}
				}
				counted := !s.viewed[id][who]
				if counted {
					s.viewed[id][who] = true
					p.Views++
				}
				return ok(model.ViewResult{Views: p.Views, Counted: counted})
			case "neighbors":
				return ok(s.neighbors(p))
			}
			return notFound
		}
		return ok(s.portalPoem(p, true, who))
	case len(parts) == 1 && parts[0] == "search":
		var res model.SearchResult
		var authors []model.PortalAuthor
		for _, id := range sortedKeys(s.Authors) {
			if a := s.Authors[id]; s.publicAuthor(a) && strings.Contains(strings.ToLower(a.FullName), q) {
				authors = append(authors, s.portalAuthor(a, false))
			}
		}
		var poems []model.PortalPoem
		for _, p := range s.publicPoems(0) {
			if strings.Contains(strings.ToLower(p.Title+" "+p.Text), q) {
				poems = append(poems, s.portalPoem(p, false, who))
			}
		}
		res.Authors = pageOf(authors, r)
		res.Poems = pageOf(poems, r)
		return ok(res)
	case len(parts) == 2 && parts[0] == "reactions" && parts[1] == "toggle":
		var in struct {
			PoemID int64              `json:"poem_id"`
			Type   model.ReactionType `json:"type"`
		}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			return fail(http.StatusBadRequest, err.Error())
		}
		if _, known := model.ParseReactionType(string(in.Type)); !known {
			return fail(http.StatusBadRequest, "Неизвестная реакция.")
		}
		if !s.publicPoem(s.Poems[in.PoemID]) {
			return notFound
		}
		if s.reactions[in.PoemID] == nil {
			s.reactions[in.PoemID] = map[string]model.ReactionType{}
		}
		if s.reactions[in.PoemID][who] == in.Type {
			delete(s.reactions[in.PoemID], who)
		} else {
			s.reactions[in.PoemID][who] = in.Type
		}
		return ok(s.summary(in.PoemID, who))
	}
	return notFound
}

func (s *Server) neighbors(p *model.Poem) model.Neighbors {
	var out model.Neighbors
	list := s.publicPoems(p.Author.ID)
	for i, it := range list {
		if it.ID != p.ID {
			continue
		}
		if i > 0 {
			prev := list[i-1]
			out.Prev = &model.PoemLink{ID: prev.ID, Title: prev.Title, URLSlug: slug.WithID(prev.ID, prev.Title, slug.FallbackPoem)}
		}
		if i+1 < len(list) {
			next := list[i+1]
			out.Next = &model.PoemLink{ID: next.ID, Title: next.Title, URLSlug: slug.WithID(next.ID, next.Title, slug.FallbackPoem)}
		}
	}
	return out
}

func pageOf[T any](items []T, r *http.Request) model.Page[T] {
	m := page(items, r)
	return model.Page[T]{Count: m["count"].(int), Page: m["page"].(int), PageSize: m["page_size"].(int), Results: m["results"].([]T)}
}
