package auth

import (
	"testing"

	"worklist/internal/domain"
)

func staff(user string) domain.PermissionContext {
	return domain.PermissionContext{UserID: user, TenantID: "t1", LocationID: "l1"}
}

func manager(user string) domain.PermissionContext {
	pc := staff(user)
	pc.IsManager = true
	pc.CanViewAll = true
	pc.CanManageAll = true
	return pc
}

func todo(createdBy string) domain.Task {
	return domain.Task{ID: "task-1", TenantID: "t1", LocationID: "l1", Type: domain.TypeTodo, CreatedBy: createdBy}
}

func TestCheckPrecedence(t *testing.T) {
	foreign := todo("alice")
	foreign.TenantID = "t2"
	foreign.IsPersonal = true

	otherLoc := todo("alice")
	otherLoc.LocationID = "l2"

	personal := todo("alice")
	personal.IsPersonal = true

	cases := []struct {
		name string
		pc   domain.PermissionContext
		task domain.Task
		want Visibility
	}{
		{"own task", staff("alice"), todo("alice"), Visible},
		{"colleague task", staff("bob"), todo("alice"), Visible},
		{"other tenant beats personal", staff("alice"), foreign, OutOfScope},
		{"other tenant even for manager", manager("bob"), foreign, OutOfScope},
		{"other location", staff("bob"), otherLoc, OutOfScope},
		{"other location with view all", manager("bob"), otherLoc, Visible},
		{"personal own", staff("alice"), personal, Visible},
		{"personal other", staff("bob"), personal, Private},
		{"personal other manager", manager("bob"), personal, Private},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Check(tc.pc, tc.task); got != tc.want {
				t.Fatalf("Check = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRequireVisibleErrorKinds(t *testing.T) {
	foreign := todo("alice")
	foreign.TenantID = "t2"
	if err := RequireVisible(staff("alice"), foreign); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	personal := todo("alice")
	personal.IsPersonal = true
	err := RequireVisible(manager("bob"), personal)
	if !domain.IsForbidden(err) || err.Error() != MsgPersonalOfOthers {
		t.Fatalf("expected personal forbidden, got %v", err)
	}
	if err := RequireVisible(staff("alice"), personal); err != nil {
		t.Fatalf("owner should see personal task: %v", err)
	}
}

func TestListable(t *testing.T) {
	personal := todo("alice")
	personal.IsPersonal = true
	if Listable(staff("alice"), personal, false) {
		t.Fatalf("personal tasks are excluded unless requested")
	}
	if !Listable(staff("alice"), personal, true) {
		t.Fatalf("own personal task should list when requested")
	}
	if Listable(manager("bob"), personal, true) {
		t.Fatalf("manager must never list another user's personal task")
	}
}

func TestRequireMutate(t *testing.T) {
	tk := todo("alice")
	tk.AssigneeIDs = []string{"carol"}
	allowed := []domain.PermissionContext{staff("alice"), staff("carol"), manager("bob")}
	for _, pc := range allowed {
		if err := RequireMutate(pc, tk); err != nil {
			t.Fatalf("%s should mutate: %v", pc.UserID, err)
		}
	}
	onlyManageAll := staff("dave")
	onlyManageAll.CanManageAll = true
	if err := RequireMutate(onlyManageAll, tk); err != nil {
		t.Fatalf("manage-all should mutate: %v", err)
	}
	err := RequireMutate(staff("eve"), tk)
	if !domain.IsForbidden(err) || err.Error() != MsgNoUpdate {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestRequireAssign(t *testing.T) {
	tk := todo("alice")
	if err := RequireAssign(staff("alice"), tk); err != nil {
		t.Fatalf("creator assigns: %v", err)
	}
	mgr := staff("bob")
	mgr.IsManager = true
	if err := RequireAssign(mgr, tk); err != nil {
		t.Fatalf("manager assigns: %v", err)
	}
	tk.AssigneeIDs = []string{"carol"}
	if err := RequireAssign(staff("carol"), tk); !domain.IsForbidden(err) {
		t.Fatalf("assignee may not reassign, got %v", err)
	}
	manageAllOnly := staff("dave")
	manageAllOnly.CanManageAll = true
	if err := RequireAssign(manageAllOnly, tk); !domain.IsForbidden(err) {
		t.Fatalf("manage-all without manager role may not assign, got %v", err)
	}
	personal := todo("alice")
	personal.IsPersonal = true
	err := RequireAssign(staff("alice"), personal)
	if !domain.IsConflict(err) || err.Error() != MsgAssignPersonal {
		t.Fatalf("expected personal assignment conflict, got %v", err)
	}
}

func TestRequireDelete(t *testing.T) {
	tk := todo("alice")
	if err := RequireDelete(staff("alice"), tk); err != nil {
		t.Fatalf("creator deletes: %v", err)
	}
	manageAll := staff("bob")
	manageAll.CanManageAll = true
	if err := RequireDelete(manageAll, tk); err != nil {
		t.Fatalf("manage-all deletes: %v", err)
	}
	mgr := staff("bob")
	mgr.IsManager = true
	err := RequireDelete(mgr, tk)
	if !domain.IsForbidden(err) || err.Error() != MsgNoDelete {
		t.Fatalf("manager without manage-all may not delete, got %v", err)
	}
}
