package credentials

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/ipdash/internal/common"
)

// Claims is the informational view of a credential. The signature is not
// checked: only the backend can verify the token, the client merely displays
// what it carries.
type Claims struct {
	Subject   string
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the credential carries an expiry that is before now.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// Inspect decodes the claims of a JWT credential without verifying it.
// Opaque (non-JWT) credentials yield common.ErrInvalidToken.
func Inspect(token string) (Claims, error) {
	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, mc); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	var c Claims
	if sub, err := mc.GetSubject(); err == nil {
		c.Subject = sub
	}
	if c.Subject == "" {
		for _, k := range []string{"id", "userId", "_id"} {
			if v, ok := mc[k].(string); ok {
				c.Subject = v
				break
			}
		}
	}
	if email, ok := mc["email"].(string); ok {
		c.Email = email
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		c.IssuedAt = iat.Time
	}
	return c, nil
}
