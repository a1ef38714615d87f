package perm

import (
	"fmt"

	"devon-cli/internal/model"
)

// Affordance describes whether a control is shown and whether it is interactive.
type Affordance struct {
	Visible bool
	Enabled bool
	Reason  string
}

func enabled() Affordance { return Affordance{Visible: true, Enabled: true} }

func disabled(reason string) Affordance {
	return Affordance{Visible: true, Enabled: false, Reason: reason}
}

func deniedReason(module model.Module, action model.Action) string {
	return fmt.Sprintf("missing %s:%s permission", module, action)
}

const SelfDeleteReason = "you cannot delete your own account"

// CanDeleteEmployee applies the self-delete guard before the delete flag:
// an identity can never delete its own employee record.
func CanDeleteEmployee(c Checker, employeeID int64) bool {
	if c == nil {
		return false
	}
	if id, ok := c.Identity(); ok && id.IsSelf(employeeID) {
		return false
	}
	return c.HasPermission(model.ModuleEmployees, model.ActionDelete)
}

// CanSave reports whether saving an entity of kind is allowed: create for new
// records, update for existing ones.
func CanSave(c Checker, kind model.Kind, creating bool) bool {
	if c == nil {
		return false
	}
	action := model.ActionUpdate
	if creating {
		action = model.ActionCreate
	}
	return c.HasPermission(kind.Module(), action)
}

// SaveAffordance is CanSave with a human-readable reason.
func SaveAffordance(c Checker, kind model.Kind, creating bool) Affordance {
	if CanSave(c, kind, creating) {
		return enabled()
	}
	action := model.ActionUpdate
	if creating {
		action = model.ActionCreate
	}
	return disabled(deniedReason(kind.Module(), action))
}

// DeleteAffordance gates soft and hard delete. id is the target entity id and
// only matters for employees.
func DeleteAffordance(c Checker, kind model.Kind, id int64) Affordance {
	if kind == model.KindEmployee {
		if c != nil {
			if ident, ok := c.Identity(); ok && ident.IsSelf(id) {
				return disabled(SelfDeleteReason)
			}
		}
	}
	if c != nil && c.HasPermission(kind.Module(), model.ActionDelete) {
		return enabled()
	}
	return disabled(deniedReason(kind.Module(), model.ActionDelete))
}

// RestoreAffordance gates restore, which the API guards with update.
func RestoreAffordance(c Checker, kind model.Kind) Affordance {
	if c != nil && c.HasPermission(kind.Module(), model.ActionUpdate) {
		return enabled()
	}
	return disabled(deniedReason(kind.Module(), model.ActionUpdate))
}

// CreateAffordance gates the "new" entry point of a collection.
func CreateAffordance(c Checker, kind model.Kind) Affordance {
	if c != nil && c.HasPermission(kind.Module(), model.ActionCreate) {
		return enabled()
	}
	return Affordance{Visible: false, Reason: deniedReason(kind.Module(), model.ActionCreate)}
}
