// Package auth decides, per task and per operation, what a requester may see and change.
package auth

import "worklist/internal/domain"

const (
	MsgPersonalOfOthers = "Cannot access personal tasks of other users"
	MsgNoUpdate         = "No permission to update this task"
	MsgNoAssign         = "No permission to assign this task"
	MsgAssignPersonal   = "Cannot assign personal tasks"
	MsgNoDelete         = "Only task creator or manager can delete"
)

type Visibility int

const (
	Visible Visibility = iota
	// OutOfScope tasks belong to another tenant, or another location
	// without view-all; callers must not be able to tell them from missing ones.
	OutOfScope
	// Private tasks are in scope but personal to another user.
	Private
)

// Check applies tenant isolation, location scope and personal visibility, in that order.
func Check(pc domain.PermissionContext, t domain.Task) Visibility {
	if t.TenantID != pc.TenantID {
		return OutOfScope
	}
	if !pc.CanViewAll && t.LocationID != pc.LocationID {
		return OutOfScope
	}
	// no role overrides personal privacy
	if t.IsPersonal && t.CreatedBy != pc.UserID {
		return Private
	}
	return Visible
}

// RequireVisible is the direct-fetch form of Check.
func RequireVisible(pc domain.PermissionContext, t domain.Task) error {
	switch Check(pc, t) {
	case OutOfScope:
		return domain.NotFound("task", t.ID)
	case Private:
		return domain.Forbidden(MsgPersonalOfOthers)
	}
	return nil
}

// Listable is the bulk-listing form of Check: hidden tasks are dropped without error.
// Personal tasks appear only when asked for, and only to their creator.
func Listable(pc domain.PermissionContext, t domain.Task, includePersonal bool) bool {
	if Check(pc, t) != Visible {
		return false
	}
	if t.IsPersonal && !includePersonal {
		return false
	}
	return true
}

func CanMutate(pc domain.PermissionContext, t domain.Task) bool {
	return t.CreatedBy == pc.UserID || t.HasAssignee(pc.UserID) || pc.IsManager || pc.CanManageAll
}

func RequireMutate(pc domain.PermissionContext, t domain.Task) error {
	if !CanMutate(pc, t) {
		return domain.Forbidden(MsgNoUpdate)
	}
	return nil
}

// RequireAssign rejects personal tasks before looking at roles.
func RequireAssign(pc domain.PermissionContext, t domain.Task) error {
	if t.IsPersonal {
		return domain.Conflict(MsgAssignPersonal)
	}
	if t.CreatedBy != pc.UserID && !pc.IsManager {
		return domain.Forbidden(MsgNoAssign)
	}
	return nil
}

func RequireDelete(pc domain.PermissionContext, t domain.Task) error {
	if t.CreatedBy != pc.UserID && !pc.CanManageAll {
		return domain.Forbidden(MsgNoDelete)
	}
	return nil
}
