package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/marketedge/auth-service/internal/utils"
	"github.com/pkg/errors"
)

// Token type discriminator carried in the "type" claim. A refresh token must
// never be accepted where an access token is expected.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Claims is the decoded form of an internal token.
type Claims struct {
	ID          string    // jti, unique per token
	Subject     string    // internal principal id
	Email       string    // principal email (access tokens only)
	TenantID    string    // tenant the token is scoped to
	Role        string    // tenant-level role
	Permissions []string  // resolved permission set (access tokens only)
	Industry    string    // tenant industry tag
	Type        string    // "access" or "refresh"
	FamilyID    string    // rotation family (refresh tokens only)
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

func (c *Claims) toMapClaims(issuer, audience string) jwt.MapClaims {
	claims := jwt.MapClaims{
		"iss":       issuer,
		"aud":       audience,
		"sub":       c.Subject,
		"tenant_id": c.TenantID,
		"type":      c.Type,
		"iat":       c.IssuedAt.Unix(),
		"exp":       c.ExpiresAt.Unix(),
		"jti":       c.ID,
	}
	if c.Email != "" {
		claims["email"] = c.Email
	}
	if c.Role != "" {
		claims["role"] = c.Role
	}
	if c.Permissions != nil {
		claims["permissions"] = c.Permissions
	}
	if c.Industry != "" {
		claims["industry"] = c.Industry
	}
	if c.FamilyID != "" {
		claims["fid"] = c.FamilyID
	}
	return claims
}

func claimsFromMap(mapClaims jwt.MapClaims) (*Claims, error) {
	sub, _ := mapClaims["sub"].(string)
	if sub == "" {
		return nil, errors.New("token missing sub claim")
	}
	tokenType, _ := mapClaims["type"].(string)
	if tokenType == "" {
		return nil, errors.New("token missing type claim")
	}

	claims := &Claims{
		Subject: sub,
		Type:    tokenType,
	}
	claims.ID, _ = mapClaims["jti"].(string)
	claims.Email, _ = mapClaims["email"].(string)
	claims.TenantID, _ = mapClaims["tenant_id"].(string)
	claims.Role, _ = mapClaims["role"].(string)
	claims.Industry, _ = mapClaims["industry"].(string)
	claims.FamilyID, _ = mapClaims["fid"].(string)

	if perms, ok := mapClaims["permissions"].([]any); ok {
		claims.Permissions = utils.ToStringSlice(perms)
	}
	if iat, ok := mapClaims["iat"].(float64); ok {
		claims.IssuedAt = time.Unix(int64(iat), 0)
	}
	if exp, ok := mapClaims["exp"].(float64); ok {
		claims.ExpiresAt = time.Unix(int64(exp), 0)
	}
	return claims, nil
}
