package policy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllowDecisionTable(t *testing.T) {
	anon := Caller{}
	user := Caller{ID: 1, Role: User}
	other := Caller{ID: 2, Role: User}
	moder := Caller{ID: 3, Role: Moderator}
	admin := Caller{ID: 4, Role: Admin}

	cases := []struct {
		name    string
		caller  Caller
		action  Action
		res     Resource
		ownerID uint
		want    bool
	}{
		{"anonymous reads titles", anon, ActionRead, ResourceTitle, 0, true},
		{"anonymous reads reviews", anon, ActionRead, ResourceReview, 1, true},
		{"anonymous cannot create review", anon, ActionCreate, ResourceReview, 0, false},
		{"anonymous cannot update title", anon, ActionUpdate, ResourceTitle, 0, false},
		{"anonymous cannot read accounts", anon, ActionRead, ResourceUserAccount, 0, false},

		{"user creates review", user, ActionCreate, ResourceReview, 0, true},
		{"user creates comment", user, ActionCreate, ResourceComment, 0, true},
		{"user updates own review", user, ActionUpdate, ResourceReview, 1, true},
		{"user deletes own comment", user, ActionDelete, ResourceComment, 1, true},
		{"user cannot update foreign review", user, ActionUpdate, ResourceReview, 2, false},
		{"user cannot delete foreign comment", user, ActionDelete, ResourceComment, 2, false},
		{"user cannot create title", user, ActionCreate, ResourceTitle, 0, false},
		{"user cannot delete genre", user, ActionDelete, ResourceGenre, 0, false},
		{"user cannot list accounts", user, ActionRead, ResourceUserAccount, 0, false},

		{"moderator updates foreign review", moder, ActionUpdate, ResourceReview, 1, true},
		{"moderator deletes foreign comment", moder, ActionDelete, ResourceComment, 1, true},
		{"moderator cannot create title", moder, ActionCreate, ResourceTitle, 0, false},
		{"moderator cannot manage accounts", moder, ActionUpdate, ResourceUserAccount, 1, false},

		{"admin creates title", admin, ActionCreate, ResourceTitle, 0, true},
		{"admin deletes category", admin, ActionDelete, ResourceCategory, 0, true},
		{"admin manages accounts", admin, ActionDelete, ResourceUserAccount, 1, true},
		{"admin updates foreign review", admin, ActionUpdate, ResourceReview, 1, true},

		{"owner reads own profile", user, ActionRead, ResourceProfile, 1, true},
		{"owner updates own profile", user, ActionUpdate, ResourceProfile, 1, true},
		{"other cannot update profile", other, ActionUpdate, ResourceProfile, 1, false},
		{"anonymous cannot read profile", anon, ActionRead, ResourceProfile, 1, false},
		{"owner cannot delete profile", user, ActionDelete, ResourceProfile, 1, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Allow(tc.caller, tc.action, tc.res, tc.ownerID))
		})
	}
}

func TestRoleOf(t *testing.T) {
	require.Equal(t, User, RoleOf("user"))
	require.Equal(t, Moderator, RoleOf("moderator"))
	require.Equal(t, Admin, RoleOf("admin"))
	require.Equal(t, Anonymous, RoleOf(""))
	require.Equal(t, Anonymous, RoleOf("superuser"))
}
