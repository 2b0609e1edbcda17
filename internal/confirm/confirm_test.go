package confirm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avdonin/reviewbase/internal/models"
)

func TestMakeCodeDeterministic(t *testing.T) {
	secret := []byte("test-secret")
	user := &models.User{ID: 1, Username: "test_user", Email: "user@example.com", Role: models.RoleUser}

	first := MakeCode(secret, user)
	second := MakeCode(secret, user)
	require.Equal(t, first, second)
	require.NotEmpty(t, first)
}

func TestCheckCode(t *testing.T) {
	secret := []byte("test-secret")
	user := &models.User{ID: 1, Username: "test_user", Email: "user@example.com", Role: models.RoleUser}

	code := MakeCode(secret, user)
	require.True(t, CheckCode(secret, user, code))
	require.False(t, CheckCode(secret, user, "not-a-code"))
	require.False(t, CheckCode([]byte("other-secret"), user, code))
}

func TestCodeInvalidatedByStateChange(t *testing.T) {
	secret := []byte("test-secret")
	user := &models.User{ID: 1, Username: "test_user", Email: "user@example.com", Role: models.RoleUser}

	code := MakeCode(secret, user)
	require.True(t, CheckCode(secret, user, code))

	user.Active = true
	require.False(t, CheckCode(secret, user, code), "code must stop validating after activation")

	fresh := MakeCode(secret, user)
	require.True(t, CheckCode(secret, user, fresh))
}

func TestCodeBoundToUser(t *testing.T) {
	secret := []byte("test-secret")
	alice := &models.User{ID: 1, Username: "alice", Email: "alice@example.com", Role: models.RoleUser}
	bob := &models.User{ID: 2, Username: "bob", Email: "bob@example.com", Role: models.RoleUser}

	require.False(t, CheckCode(secret, bob, MakeCode(secret, alice)))
}
