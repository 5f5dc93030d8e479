package familyrepofake

import (
	"sync"
	"time"

	"github.com/marketedge/auth-service/token"
)

var _ token.FamilyRepo = (*FakeFamilyRepo)(nil)

type FakeFamilyRepo struct {
	families map[string]*token.Family
	lock     sync.Mutex
}

func NewFakeFamilyRepo() token.FamilyRepo {
	return &FakeFamilyRepo{
		families: make(map[string]*token.Family),
	}
}

func (fr *FakeFamilyRepo) Create(family *token.Family) error {
	fr.lock.Lock()
	defer fr.lock.Unlock()
	copied := *family
	fr.families[family.ID] = &copied
	return nil
}

func (fr *FakeFamilyRepo) Get(familyID string) (*token.Family, error) {
	fr.lock.Lock()
	defer fr.lock.Unlock()
	family, ok := fr.families[familyID]
	if !ok {
		return nil, token.ErrFamilyNotFound
	}
	copied := *family
	return &copied, nil
}

func (fr *FakeFamilyRepo) Advance(familyID, expectedJTI, newJTI string) error {
	fr.lock.Lock()
	defer fr.lock.Unlock()
	family, ok := fr.families[familyID]
	if !ok {
		return token.ErrFamilyNotFound
	}
	if family.Revoked {
		return token.ErrFamilyRevoked
	}
	if family.CurrentJTI != expectedJTI {
		return token.ErrStaleFamily
	}
	family.CurrentJTI = newJTI
	family.UpdatedAt = time.Now()
	return nil
}

func (fr *FakeFamilyRepo) Revoke(familyID string) error {
	fr.lock.Lock()
	defer fr.lock.Unlock()
	family, ok := fr.families[familyID]
	if !ok {
		return token.ErrFamilyNotFound
	}
	family.Revoked = true
	return nil
}

func (fr *FakeFamilyRepo) RevokeByPrincipal(principalID string) error {
	fr.lock.Lock()
	defer fr.lock.Unlock()
	for _, family := range fr.families {
		if family.PrincipalID == principalID {
			family.Revoked = true
		}
	}
	return nil
}

func (fr *FakeFamilyRepo) DeleteExpired(cutoff time.Time) error {
	fr.lock.Lock()
	defer fr.lock.Unlock()
	for id, family := range fr.families {
		if family.UpdatedAt.Before(cutoff) {
			delete(fr.families, id)
		}
	}
	return nil
}
