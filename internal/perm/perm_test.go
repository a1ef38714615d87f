package perm

import (
	"testing"

	"devon-cli/internal/model"
)

func int64p(v int64) *int64 { return &v }

func editorIdentity() model.Identity {
	return model.Identity{
		ID:       int64p(5),
		FullName: "Editor",
		Permissions: model.PermissionMatrix{
			model.ModuleAuthors: {Read: true, Update: true},
			model.ModulePoems:   {Create: true, Read: true, Update: true, Delete: true},
		},
	}
}

func TestHasPermission_NoIdentityDeniesEverything(t *testing.T) {
	ev := NewEvaluator()
	for _, m := range model.Modules {
		for _, a := range model.Actions {
			if ev.HasPermission(m, a) {
				t.Fatalf("expected %s:%s to be denied without identity", m, a)
			}
		}
	}
	var nilEv *Evaluator
	if nilEv.HasPermission(model.ModuleAuthors, model.ActionRead) {
		t.Fatalf("expected nil evaluator to deny")
	}
}

func TestHasPermission_MatrixLookup(t *testing.T) {
	ev := NewEvaluator()
	ev.Set(editorIdentity())

	cases := []struct {
		module model.Module
		action model.Action
		want   bool
	}{
		{model.ModuleAuthors, model.ActionRead, true},
		{model.ModuleAuthors, model.ActionUpdate, true},
		{model.ModuleAuthors, model.ActionDelete, false},
		{model.ModulePoems, model.ActionDelete, true},
		{model.ModuleRoles, model.ActionRead, false},
		{model.ModuleEmployees, model.ActionCreate, false},
		{model.ModulePoems, model.Action("publish"), false},
	}
	for _, tc := range cases {
		if got := ev.HasPermission(tc.module, tc.action); got != tc.want {
			t.Fatalf("%s:%s = %v, want %v", tc.module, tc.action, got, tc.want)
		}
	}

	ev.Clear()
	if ev.HasPermission(model.ModulePoems, model.ActionRead) {
		t.Fatalf("expected clear to revoke everything")
	}
}

func TestSet_CopiesMatrix(t *testing.T) {
	ev := NewEvaluator()
	id := editorIdentity()
	ev.Set(id)

	id.Permissions[model.ModuleRoles] = model.Capabilities{Read: true}
	if ev.HasPermission(model.ModuleRoles, model.ActionRead) {
		t.Fatalf("expected evaluator to be unaffected by caller mutation")
	}

	got, ok := ev.Identity()
	if !ok {
		t.Fatalf("expected identity")
	}
	got.Permissions[model.ModuleRoles] = model.Capabilities{Read: true}
	if ev.HasPermission(model.ModuleRoles, model.ActionRead) {
		t.Fatalf("expected returned identity to be a copy")
	}
}

func TestSubscribe_NotifiedOnSetAndClear(t *testing.T) {
	ev := NewEvaluator()
	var events []bool
	cancel := ev.Subscribe(func(_ model.Identity, ok bool) {
		events = append(events, ok)
	})

	ev.Set(editorIdentity())
	ev.Clear()
	cancel()
	ev.Set(editorIdentity())

	if len(events) != 2 || events[0] != true || events[1] != false {
		t.Fatalf("unexpected events: %v", events)
	}
	cancel()
}

func TestCanDeleteEmployee_SelfGuardWinsOverFlag(t *testing.T) {
	ev := NewEvaluator()
	id := editorIdentity()
	id.Permissions[model.ModuleEmployees] = model.Capabilities{Read: true, Delete: true}
	ev.Set(id)

	if CanDeleteEmployee(ev, 5) {
		t.Fatalf("expected self delete to be denied")
	}
	if !CanDeleteEmployee(ev, 6) {
		t.Fatalf("expected delete of another employee to be allowed")
	}
	if a := DeleteAffordance(ev, model.KindEmployee, 5); a.Enabled || a.Reason != SelfDeleteReason {
		t.Fatalf("unexpected affordance: %+v", a)
	}
}

func TestCanDeleteEmployee_SuperuserWithoutProfile(t *testing.T) {
	ev := NewEvaluator()
	ev.Set(model.Identity{
		FullName:    "root",
		Permissions: model.PermissionMatrix{model.ModuleEmployees: {Delete: true}},
	})
	if !CanDeleteEmployee(ev, 5) {
		t.Fatalf("expected superuser without profile id to delete")
	}
}

func TestSaveAndRestoreAffordances(t *testing.T) {
	ev := NewEvaluator()
	ev.Set(editorIdentity())

	if !CanSave(ev, model.KindAuthor, false) {
		t.Fatalf("expected author update to be allowed")
	}
	if CanSave(ev, model.KindAuthor, true) {
		t.Fatalf("expected author create to be denied")
	}
	if a := SaveAffordance(ev, model.KindRole, false); a.Enabled || !a.Visible {
		t.Fatalf("expected visible, disabled role save: %+v", a)
	}
	if a := SaveAffordance(ev, model.KindSiteSettings, false); a.Enabled {
		t.Fatalf("expected site settings save to require roles:update: %+v", a)
	}
	if a := RestoreAffordance(ev, model.KindPoem); !a.Enabled {
		t.Fatalf("expected poem restore to follow update: %+v", a)
	}
	if a := CreateAffordance(ev, model.KindAuthor); a.Visible {
		t.Fatalf("expected author create entry point hidden: %+v", a)
	}
}
