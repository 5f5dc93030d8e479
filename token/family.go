package token

import (
	"errors"
	"time"
)

// Family tracks the lineage of refresh tokens produced by successive
// rotations of one login session. Exactly one refresh token id is valid per
// family at any time; presenting a retired id is treated as replay.
type Family struct {
	ID          string    // family id (ULID), carried in the refresh token's fid claim
	PrincipalID string
	TenantID    string
	CurrentJTI  string // jti of the currently valid refresh token
	Revoked     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

var (
	ErrFamilyNotFound = errors.New("token: family not found")
	ErrFamilyRevoked  = errors.New("token: family revoked")
	// ErrStaleFamily means the compare-and-swap lost: the presented jti is no
	// longer the family's current one.
	ErrStaleFamily = errors.New("token: stale family record")
)

// FamilyRepo manages server-side family records. Advance must be atomic with
// respect to concurrent rotations of the same family.
type FamilyRepo interface {
	Create(family *Family) error
	Get(familyID string) (*Family, error)

	// Advance replaces the family's current jti with newJTI only if it still
	// equals expectedJTI. Returns ErrStaleFamily when the swap loses a race or
	// a retired token is replayed, and ErrFamilyRevoked for dead families.
	Advance(familyID, expectedJTI, newJTI string) error

	Revoke(familyID string) error
	RevokeByPrincipal(principalID string) error
	DeleteExpired(cutoff time.Time) error
}
