package tokens

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avdonin/reviewbase/internal/models"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	secret := []byte("access-secret")

	raw, err := SignAccessToken(42, models.RoleModerator, secret)
	require.NoError(t, err)

	claims, err := AccessClaimsFromToken(raw, secret)
	require.NoError(t, err)
	require.Equal(t, models.RoleModerator, claims.Role)

	id, err := claims.UserID()
	require.NoError(t, err)
	require.Equal(t, uint(42), id)
}

func TestAccessTokenWrongSecret(t *testing.T) {
	raw, err := SignAccessToken(1, models.RoleUser, []byte("right"))
	require.NoError(t, err)

	_, err = AccessClaimsFromToken(raw, []byte("wrong"))
	require.Error(t, err)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	secret := []byte("refresh-secret")

	raw, err := SignRefreshToken(7, secret)
	require.NoError(t, err)

	claims, err := RefreshClaimsFromToken(raw, secret)
	require.NoError(t, err)
	require.Equal(t, "refresh", claims.Typ)
	require.Equal(t, "7", claims.Subject)
}

func TestAccessTokenRejectedAsRefresh(t *testing.T) {
	secret := []byte("shared-secret")

	raw, err := SignAccessToken(7, models.RoleUser, secret)
	require.NoError(t, err)

	_, err = RefreshClaimsFromToken(raw, secret)
	require.Error(t, err)
}
