// Package policy decides whether a caller may perform an action on a
// resource. It is a pure function of the caller's role and identity, the
// action, the resource kind and the resource owner; handlers supply all of
// that explicitly, nothing is read from request globals.
package policy

import "github.com/avdonin/reviewbase/internal/models"

type Role string

const (
	Anonymous Role = "anonymous"
	User      Role = "user"
	Moderator Role = "moderator"
	Admin     Role = "admin"
)

// RoleOf maps a stored role string to the closed Role enumeration.
// Unknown values degrade to Anonymous rather than gaining rights.
func RoleOf(role string) Role {
	switch role {
	case models.RoleUser:
		return User
	case models.RoleModerator:
		return Moderator
	case models.RoleAdmin:
		return Admin
	}
	return Anonymous
}

type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

type Resource string

const (
	ResourceUserAccount Resource = "user_account"
	ResourceProfile     Resource = "profile"
	ResourceTitle       Resource = "title"
	ResourceGenre       Resource = "genre"
	ResourceCategory    Resource = "category"
	ResourceReview      Resource = "review"
	ResourceComment     Resource = "comment"
)

type Caller struct {
	ID   uint
	Role Role
}

// Allow implements the decision table:
//
//	admin      — everything
//	moderator  — update/delete any review or comment, otherwise as user
//	user       — create reviews/comments, update/delete own, read public
//	anonymous  — read public resources only
//
// User accounts are admin-only even for reads; a profile is readable and
// updatable by its owner alone.
func Allow(caller Caller, action Action, res Resource, ownerID uint) bool {
	if caller.Role == Admin {
		return true
	}

	switch res {
	case ResourceUserAccount:
		return false
	case ResourceProfile:
		return caller.Role != Anonymous && caller.ID == ownerID &&
			(action == ActionRead || action == ActionUpdate)
	}

	if action == ActionRead {
		return true
	}
	if caller.Role == Anonymous {
		return false
	}

	switch res {
	case ResourceReview, ResourceComment:
		if action == ActionCreate {
			return true
		}
		if caller.Role == Moderator {
			return true
		}
		return caller.ID == ownerID
	}

	// Titles, genres and categories are mutable by admins only.
	return false
}
