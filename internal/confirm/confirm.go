// Package confirm derives one-time confirmation codes from the persisted
// user state instead of storing them. The code from issuance stays valid
// only while the row it was derived from is unchanged; activating the user
// at token exchange mutates that state, so a consumed code stops checking
// out without any extra bookkeeping.
package confirm

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/avdonin/reviewbase/internal/models"
)

func MakeCode(secret []byte, u *models.User) string {
	state := fmt.Sprintf("%d|%s|%s|%t|%s", u.ID, u.Username, u.Email, u.Active, u.Role)
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(state))
	return hex.EncodeToString(mac.Sum(nil))
}

func CheckCode(secret []byte, u *models.User, code string) bool {
	expected := MakeCode(secret, u)
	return hmac.Equal([]byte(expected), []byte(code))
}
