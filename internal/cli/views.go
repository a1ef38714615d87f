package cli

import (
	"strconv"
	"strings"

	"devon-cli/internal/model"
	"devon-cli/internal/slug"
)

type homeView model.Home

func (h homeView) Headers() []string { return []string{"metric", "value"} }

func (h homeView) Rows() [][]string {
	s := h.Stats
	rows := [][]string{
		{"operator", h.Profile.FullName},
		{"poems", strconv.Itoa(s.TotalPoems)},
		{"authors", strconv.Itoa(s.TotalAuthors)},
		{"visits " + s.MonthLabel, strconv.Itoa(s.MonthVisits)},
	}
	for i, p := range s.TopPoems {
		rows = append(rows, []string{"top poem " + strconv.Itoa(i+1), p.Title + " (" + p.AuthorFullName + ", " + strconv.Itoa(p.Visits) + ")"})
	}
	for i, a := range s.TopAuthors {
		rows = append(rows, []string{"top author " + strconv.Itoa(i+1), a.AuthorFullName + " (" + strconv.Itoa(a.Visits) + ")"})
	}
	return rows
}

// portal path segments, reproduced from ids when the server left them empty.
func authorPath(a model.PortalAuthor) string {
	seg := a.URLSlug
	if seg == "" {
		seg = slug.WithID(a.ID, a.FullName, slug.FallbackAuthor)
	}
	return "/authors/" + seg
}

func poemPath(p model.PortalPoem) string {
	seg := p.URLSlug
	if seg == "" {
		seg = slug.WithID(p.ID, p.Title, slug.FallbackPoem)
	}
	return "/poems/" + seg
}

type portalAuthorsView []model.PortalAuthor

func (v portalAuthorsView) Headers() []string {
	return []string{"id", "name", "years", "poems", "path"}
}

func (v portalAuthorsView) Rows() [][]string {
	rows := make([][]string, 0, len(v))
	for _, a := range v {
		rows = append(rows, []string{formatID(a.ID), a.FullName, years(a.BirthDate, a.DeathDate), strconv.Itoa(a.PoemsCount), authorPath(a)})
	}
	return rows
}

type portalPoemsView []model.PortalPoem

func (v portalPoemsView) Headers() []string {
	return []string{"id", "title", "author", "views", "path"}
}

func (v portalPoemsView) Rows() [][]string {
	rows := make([][]string, 0, len(v))
	for _, p := range v {
		rows = append(rows, []string{formatID(p.ID), p.Title, p.Author.FullName, strconv.Itoa(p.Views), poemPath(p)})
	}
	return rows
}

func years(birth, death *string) string {
	y := func(s *string) string {
		if s == nil || len(*s) < 4 {
			return "?"
		}
		return (*s)[:4]
	}
	if birth == nil && death == nil {
		return ""
	}
	return y(birth) + "–" + y(death)
}

type poemView struct {
	model.PortalPoem
	Neighbors model.Neighbors
}

func (v poemView) Headers() []string { return []string{"field", "value"} }

func (v poemView) Rows() [][]string {
	rows := [][]string{
		{"title", v.Title},
		{"author", v.Author.FullName},
		{"views", strconv.Itoa(v.Views)},
		{"path", poemPath(v.PortalPoem)},
	}
	if r := v.Reactions; r != nil {
		parts := make([]string, 0, len(model.ReactionTypes))
		for _, t := range model.ReactionTypes {
			mark := ""
			if r.UserFlagsByType[t] {
				mark = "*"
			}
			parts = append(parts, string(t)+mark+" "+strconv.Itoa(r.CountsByType[t]))
		}
		rows = append(rows, []string{"reactions", strings.Join(parts, "  ")})
	}
	if p := v.Neighbors.Prev; p != nil {
		rows = append(rows, []string{"previous", p.Title})
	}
	if n := v.Neighbors.Next; n != nil {
		rows = append(rows, []string{"next", n.Title})
	}
	rows = append(rows, []string{"text", v.Text})
	return rows
}
