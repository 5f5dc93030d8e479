package token

import (
	stderrors "errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/marketedge/auth-service/internal/autherr"
	"github.com/marketedge/auth-service/internal/obs"
	"github.com/marketedge/auth-service/principals"
	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
)

// Pair is the result of issuing or rotating tokens.
type Pair struct {
	AccessToken   string
	RefreshToken  string
	AccessClaims  *Claims
	RefreshClaims *Claims
}

// Manager mints and verifies internal tokens and owns refresh rotation.
type Manager struct {
	families           FamilyRepo
	principalRepo      principals.Repo
	accessSigner       Signer
	refreshSigner      Signer
	issuer             string
	audience           string
	revokedCache       RevokedTokenCache
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
	nowFunc            func() time.Time
}

type ManagerOption func(*Manager)

func WithTokenExpiry(accessTokenExpiry, refreshTokenExpiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.accessTokenExpiry = accessTokenExpiry
		m.refreshTokenExpiry = refreshTokenExpiry
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func WithIssuer(issuer string) ManagerOption {
	return func(m *Manager) {
		m.issuer = issuer
	}
}

func WithAudience(audience string) ManagerOption {
	return func(m *Manager) {
		m.audience = audience
	}
}

func WithRevokedTokenCache(cache RevokedTokenCache) ManagerOption {
	return func(m *Manager) {
		m.revokedCache = cache
	}
}

func New(families FamilyRepo, principalRepo principals.Repo, accessSigner, refreshSigner Signer, options ...ManagerOption) *Manager {
	m := &Manager{
		families:      families,
		principalRepo: principalRepo,
		accessSigner:  accessSigner,
		refreshSigner: refreshSigner,
		revokedCache:  NewInMemoryRevokedTokenCache(),
	}

	for _, opt := range options {
		opt(m)
	}

	if m.accessTokenExpiry == 0 {
		m.accessTokenExpiry = 30 * time.Minute
	}
	if m.refreshTokenExpiry == 0 {
		m.refreshTokenExpiry = 7 * 24 * time.Hour
	}
	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	return m
}

// Issue mints a fresh access/refresh pair for the principal and opens a new
// rotation family.
func (m *Manager) Issue(principal *principals.Principal) (*Pair, error) {
	now := m.nowFunc()
	family := &Family{
		ID:          ulid.Make().String(),
		PrincipalID: principal.ID,
		TenantID:    principal.TenantID,
		CurrentJTI:  uuid.New().String(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.families.Create(family); err != nil {
		return nil, errors.Wrap(err, "[Manager.Issue] families.Create")
	}
	return m.mintPair(principal, family.ID, family.CurrentJTI)
}

// Rotate verifies the presented refresh token, retires it and mints a new
// pair in the same family. A retired token, or the loser of two concurrent
// rotations, gets a replay error and kills the whole family.
func (m *Manager) Rotate(rawRefreshToken string) (*Pair, error) {
	claims, err := m.verify(rawRefreshToken, m.refreshSigner)
	if err != nil {
		return nil, err
	}
	if claims.Type != TypeRefresh {
		return nil, autherr.New(autherr.CodeTokenInvalid, "not a refresh token")
	}
	if claims.FamilyID == "" {
		return nil, autherr.New(autherr.CodeTokenInvalid, "refresh token missing family")
	}

	newJTI := uuid.New().String()
	if err := m.families.Advance(claims.FamilyID, claims.ID, newJTI); err != nil {
		switch {
		case stderrors.Is(err, ErrStaleFamily), stderrors.Is(err, ErrFamilyRevoked):
			// Replay of a retired token. Invalidate the family as a precaution:
			// both the thief and the legitimate holder must re-login.
			_ = m.families.Revoke(claims.FamilyID)
			obs.SecurityEvent("token_replay").
				Str("family_id", claims.FamilyID).
				Str("principal_id", claims.Subject).
				Msg("refresh token replayed after rotation")
			obs.CountSecurityEvent("token_replay")
			return nil, autherr.Wrap(err, autherr.CodeTokenReplay, "refresh token already rotated")
		case stderrors.Is(err, ErrFamilyNotFound):
			return nil, autherr.Wrap(err, autherr.CodeTokenInvalid, "unknown token family")
		default:
			return nil, errors.Wrap(err, "[Manager.Rotate] families.Advance")
		}
	}

	principal, err := m.principalRepo.GetByID(claims.Subject)
	if err != nil {
		return nil, autherr.Wrap(err, autherr.CodeTokenInvalid, "principal not found for refresh token")
	}

	return m.mintPair(principal, claims.FamilyID, newJTI)
}

// VerifyAccess validates an internal access token: signature, expiry, type
// and revocation state.
func (m *Manager) VerifyAccess(rawToken string) (*Claims, error) {
	claims, err := m.verify(rawToken, m.accessSigner)
	if err != nil {
		return nil, err
	}
	if claims.Type != TypeAccess {
		return nil, autherr.New(autherr.CodeTokenInvalid, "not an access token")
	}
	if claims.ID != "" && m.revokedCache.IsRevoked(claims.ID) {
		return nil, autherr.New(autherr.CodeTokenInvalid, "token revoked")
	}
	return claims, nil
}

// RevokeAccess marks an access token's jti as revoked until it would have
// expired anyway.
func (m *Manager) RevokeAccess(rawToken string) error {
	claims, err := m.verify(rawToken, m.accessSigner)
	if err != nil {
		return err
	}
	if claims.ID == "" {
		return autherr.New(autherr.CodeTokenInvalid, "token missing jti claim")
	}
	return m.revokedCache.Add(claims.ID, claims.ExpiresAt)
}

// InvalidateRefresh revokes the family of the presented refresh token. Used
// on logout; an invalid token is ignored since the session is dead either way.
func (m *Manager) InvalidateRefresh(rawRefreshToken string) {
	claims, err := m.verify(rawRefreshToken, m.refreshSigner)
	if err != nil || claims.FamilyID == "" {
		return
	}
	_ = m.families.Revoke(claims.FamilyID)
}

// AccessTokenExpiry returns the configured access token TTL.
func (m *Manager) AccessTokenExpiry() time.Duration {
	return m.accessTokenExpiry
}

// CleanupRevokedTokens removes expired tokens from the revocation cache
func (m *Manager) CleanupRevokedTokens() {
	m.revokedCache.Cleanup()
}

// CleanupExpiredFamilies drops family records idle longer than the refresh TTL.
func (m *Manager) CleanupExpiredFamilies() error {
	return m.families.DeleteExpired(m.nowFunc().Add(-m.refreshTokenExpiry))
}

func (m *Manager) mintPair(principal *principals.Principal, familyID, refreshJTI string) (*Pair, error) {
	now := m.nowFunc()

	permissions := principal.Permissions
	if permissions == nil {
		permissions = principals.DefaultPermissions(principal.Role)
	}

	accessClaims := &Claims{
		ID:          uuid.New().String(),
		Subject:     principal.ID,
		Email:       principal.Email,
		TenantID:    principal.TenantID,
		Role:        string(principal.Role),
		Permissions: permissions,
		Industry:    principal.Industry,
		Type:        TypeAccess,
		IssuedAt:    now,
		ExpiresAt:   now.Add(m.accessTokenExpiry),
	}
	refreshClaims := &Claims{
		ID:        refreshJTI,
		Subject:   principal.ID,
		TenantID:  principal.TenantID,
		Type:      TypeRefresh,
		FamilyID:  familyID,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.refreshTokenExpiry),
	}

	accessToken, err := m.accessSigner.Sign(accessClaims.toMapClaims(m.issuer, m.audience))
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.mintPair] signing access token")
	}
	refreshToken, err := m.refreshSigner.Sign(refreshClaims.toMapClaims(m.issuer, m.audience))
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.mintPair] signing refresh token")
	}

	return &Pair{
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		AccessClaims:  accessClaims,
		RefreshClaims: refreshClaims,
	}, nil
}

func (m *Manager) verify(rawToken string, signer Signer) (*Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, autherr.New(autherr.CodeTokenInvalid, "empty token")
	}

	parsed, err := jwt.Parse(rawToken, signer.GetVerificationKey, jwt.WithTimeFunc(m.nowFunc))
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, autherr.Wrap(err, autherr.CodeTokenExpired, "token expired")
		}
		if stderrors.Is(err, jwt.ErrTokenSignatureInvalid) {
			obs.SecurityEvent("signature_mismatch").Msg("token presented with invalid signature")
			obs.CountSecurityEvent("signature_mismatch")
		}
		return nil, autherr.Wrap(err, autherr.CodeTokenInvalid, "token verification failed")
	}
	if !parsed.Valid {
		return nil, autherr.New(autherr.CodeTokenInvalid, "token not valid")
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, autherr.New(autherr.CodeTokenInvalid, "error extracting claims from token")
	}
	claims, err := claimsFromMap(mapClaims)
	if err != nil {
		return nil, autherr.Wrap(err, autherr.CodeTokenInvalid, "malformed claims")
	}
	return claims, nil
}
