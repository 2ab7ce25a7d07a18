// Package authz holds the pure authorization decisions. Every function maps
// (actor, target) to a bool with no side effects; callers translate a false
// into a 403 and perform no state change. The actor is always passed in
// explicitly, never read from ambient state.
package authz

import (
	"taskforge/internal/models"
)

// CanManageUser reports whether actor may create, edit or deactivate the
// target account. Admins only manage accounts supervised by them.
func CanManageUser(actor, target *models.User) bool {
	if actor.IsSuperadmin() {
		return true
	}
	if actor.IsAdmin() && target.SupervisedBy(actor.ID) {
		return true
	}
	return false
}

// CanDeleteUser adds the self-protection rule: nobody removes or deactivates
// their own account through the management surface.
func CanDeleteUser(actor, target *models.User) bool {
	if actor.ID == target.ID {
		return false
	}
	return CanManageUser(actor, target)
}

// CanCreateUserWithRole limits the roles an editor may hand out. The
// superadmin role is never assignable through the account surface.
func CanCreateUserWithRole(actor *models.User, role string) bool {
	if role == models.RoleSuperadmin {
		return false
	}
	if actor.IsSuperadmin() {
		return models.ValidRole(role)
	}
	// Admins only create plain users under themselves.
	return actor.IsAdmin() && role == models.RoleUser
}

// CanAssignTo reports whether actor may assign a task to assignee. Only
// active, role=user accounts within the actor's authority are eligible.
func CanAssignTo(actor, assignee *models.User) bool {
	if !assignee.IsUser() || !assignee.IsActive {
		return false
	}
	if actor.IsSuperadmin() {
		return true
	}
	return actor.IsAdmin() && assignee.SupervisedBy(actor.ID)
}

// CanViewTask: superadmin sees everything, an admin sees tasks of users
// supervised by them, a user sees only their own tasks.
func CanViewTask(actor *models.User, task *models.Task, assignee *models.User) bool {
	if actor.IsSuperadmin() {
		return true
	}
	if actor.IsAdmin() {
		return assignee.SupervisedBy(actor.ID)
	}
	return task.AssignedTo == actor.ID
}

// CanEditTask covers field edits and deletion. Authority is supervisory
// only; having created a task grants no edit rights.
func CanEditTask(actor *models.User, task *models.Task, assignee *models.User) bool {
	if actor.IsSuperadmin() {
		return true
	}
	return actor.IsAdmin() && assignee.SupervisedBy(actor.ID)
}

// CanUpdateStatus: the assignee drives their own task through the lifecycle;
// admins with edit authority may also write status manually.
func CanUpdateStatus(actor *models.User, task *models.Task, assignee *models.User) bool {
	if task.AssignedTo == actor.ID {
		return true
	}
	return CanEditTask(actor, task, assignee)
}

// CanViewReport gates the completion report. For admins, a supervisory OR
// authorship relation suffices; this is deliberately wider than edit
// authority. Plain users never view reports.
func CanViewReport(actor *models.User, task *models.Task, assignee *models.User) bool {
	if actor.IsSuperadmin() {
		return true
	}
	if !actor.IsAdmin() {
		return false
	}
	return assignee.SupervisedBy(actor.ID) || task.CreatedBy == actor.ID
}

// CanSetAssignedAdmin validates an assigned_admin write: the supervisor must
// be an admin, never the account itself, and superadmins are never placed
// under an admin.
func CanSetAssignedAdmin(target *models.User, supervisor *models.User) bool {
	if target.IsSuperadmin() {
		return false
	}
	if supervisor.ID == target.ID {
		return false
	}
	return supervisor.IsAdmin()
}
