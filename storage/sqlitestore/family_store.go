package sqlitestore

import (
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/marketedge/auth-service/token"
	"github.com/pkg/errors"

	_ "modernc.org/sqlite" // pure-Go SQLite driver, no CGO
)

const familySchema = `
CREATE TABLE IF NOT EXISTS token_families (
	id           TEXT PRIMARY KEY,
	principal_id TEXT NOT NULL,
	tenant_id    TEXT NOT NULL,
	current_jti  TEXT NOT NULL,
	revoked      INTEGER NOT NULL DEFAULT 0,
	created_at   TIMESTAMP NOT NULL,
	updated_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_token_families_principal ON token_families(principal_id);
`

var _ token.FamilyRepo = (*FamilyStore)(nil)

// FamilyStore persists token-family records in SQLite so refresh sessions
// survive a restart. Advance relies on a conditional UPDATE for its
// compare-and-swap, so replay detection needs no explicit locking.
type FamilyStore struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema exists.
func Open(path string) (*FamilyStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "opening sqlite database")
	}
	// SQLite allows a single writer; serialize access through one connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(familySchema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "creating token_families schema")
	}
	return &FamilyStore{db: db}, nil
}

func (s *FamilyStore) Close() error {
	return s.db.Close()
}

func (s *FamilyStore) Create(family *token.Family) error {
	_, err := s.db.Exec(
		`INSERT INTO token_families (id, principal_id, tenant_id, current_jti, revoked, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		family.ID, family.PrincipalID, family.TenantID, family.CurrentJTI,
		boolToInt(family.Revoked), family.CreatedAt, family.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "inserting token family")
	}
	return nil
}

func (s *FamilyStore) Get(familyID string) (*token.Family, error) {
	family := &token.Family{}
	var revoked int
	err := s.db.QueryRow(
		`SELECT id, principal_id, tenant_id, current_jti, revoked, created_at, updated_at
		 FROM token_families WHERE id = ?`, familyID,
	).Scan(&family.ID, &family.PrincipalID, &family.TenantID, &family.CurrentJTI,
		&revoked, &family.CreatedAt, &family.UpdatedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, token.ErrFamilyNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "loading token family")
	}
	family.Revoked = revoked != 0
	return family, nil
}

func (s *FamilyStore) Advance(familyID, expectedJTI, newJTI string) error {
	res, err := s.db.Exec(
		`UPDATE token_families SET current_jti = ?, updated_at = ?
		 WHERE id = ? AND current_jti = ? AND revoked = 0`,
		newJTI, time.Now().UTC(), familyID, expectedJTI,
	)
	if err != nil {
		return errors.Wrap(err, "advancing token family")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "advancing token family: rows affected")
	}
	if affected == 1 {
		return nil
	}

	// The swap lost; distinguish why for the caller.
	family, err := s.Get(familyID)
	if err != nil {
		return err
	}
	if family.Revoked {
		return token.ErrFamilyRevoked
	}
	return token.ErrStaleFamily
}

func (s *FamilyStore) Revoke(familyID string) error {
	res, err := s.db.Exec(`UPDATE token_families SET revoked = 1 WHERE id = ?`, familyID)
	if err != nil {
		return errors.Wrap(err, "revoking token family")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "revoking token family: rows affected")
	}
	if affected == 0 {
		return token.ErrFamilyNotFound
	}
	return nil
}

func (s *FamilyStore) RevokeByPrincipal(principalID string) error {
	_, err := s.db.Exec(`UPDATE token_families SET revoked = 1 WHERE principal_id = ?`, principalID)
	if err != nil {
		return errors.Wrap(err, "revoking token families for principal")
	}
	return nil
}

func (s *FamilyStore) DeleteExpired(cutoff time.Time) error {
	_, err := s.db.Exec(`DELETE FROM token_families WHERE updated_at < ?`, cutoff)
	if err != nil {
		return errors.Wrap(err, "deleting expired token families")
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
