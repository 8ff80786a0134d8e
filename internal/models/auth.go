package models

import "github.com/golang-jwt/jwt/v5"

// TokenClaims is the payload of API access tokens.
type TokenClaims struct {
	ClientID string   `json:"client_id"`
	Scopes   []string `json:"scopes,omitempty"`
	jwt.RegisteredClaims
}

// HasScope reports whether the token grants scope. Tokens without scopes
// grant everything.
func (c *TokenClaims) HasScope(scope string) bool {
	if c == nil {
		return false
	}
	if len(c.Scopes) == 0 {
		return true
	}
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}
