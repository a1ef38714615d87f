package lifecycle

import (
	"fmt"
	"strings"

	"devon-cli/internal/model"
)

// Prompt is the text of a confirmation dialog.
type Prompt struct {
	Title   string
	Body    string
	Confirm string
}

func (p Prompt) String() string {
	if p.Body == "" {
		return p.Title
	}
	return p.Title + "\n" + p.Body
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}

// PromptFor builds the confirmation for op on e.
func PromptFor(e model.Entity, op Op) Prompt {
	switch op {
	case OpHardDelete:
		return Prompt{
			Title:   fmt.Sprintf("Delete %s %s permanently?", e.Kind(), label(e)),
			Body:    "This cannot be undone.",
			Confirm: "Delete permanently",
		}
	case OpRestore:
		return Prompt{Title: fmt.Sprintf("Restore %s %s?", e.Kind(), label(e)), Confirm: "Restore"}
	}

	p := Prompt{Title: fmt.Sprintf("Move %s %s to the trash?", e.Kind(), label(e)), Confirm: "Move to trash"}
	switch v := e.(type) {
	case model.Author:
		n := v.PoemsCount
		if len(v.Poems) > n {
			n = len(v.Poems)
		}
		p.Body = fmt.Sprintf("The author is linked to %s. They will stay in the archive and keep their own published state.",
			plural(n, "poem", "poems"))
	case model.Role:
		n := v.EmployeesCount
		if len(v.Employees) > n {
			n = len(v.Employees)
		}
		if n > 0 {
			p.Body = fmt.Sprintf("%s with this role will lose their permissions.", plural(n, "employee", "employees"))
		} else {
			p.Body = "Employees with this role will lose their permissions."
		}
	case model.Employee:
		p.Title = fmt.Sprintf("Are you sure you want to delete employee %s?", label(e))
		p.Body = "The account can be restored from the trash."
	case model.Poem:
		p.Body = "The poem disappears from the portal until it is restored."
	}
	return p
}

func label(e model.Entity) string {
	var name string
	switch v := e.(type) {
	case model.Author:
		name = v.FullName
	case model.Poem:
		name = v.Title
	case model.Role:
		name = v.Name
	case model.Employee:
		name = v.FullName
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Sprintf("#%d", e.EntityID())
	}
	return fmt.Sprintf("%q", name)
}
