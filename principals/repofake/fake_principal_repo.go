package principalrepofake

import (
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/marketedge/auth-service/principals"
)

var _ principals.Repo = (*FakePrincipalRepo)(nil)

type FakePrincipalRepo struct {
	byID     map[string]*principals.Principal
	byEmail  map[string]string
	bySub    map[string]string
	lock     sync.RWMutex
}

func NewFakePrincipalRepo() principals.Repo {
	return &FakePrincipalRepo{
		byID:    make(map[string]*principals.Principal),
		byEmail: make(map[string]string),
		bySub:   make(map[string]string),
	}
}

func (pr *FakePrincipalRepo) Upsert(principal *principals.Principal) error {
	pr.lock.Lock()
	defer pr.lock.Unlock()
	if principal.ID == "" {
		principal.ID = uuid.New().String()
	}
	pr.byID[principal.ID] = principal
	pr.byEmail[principal.Email] = principal.ID
	if principal.UpstreamSub != "" {
		pr.bySub[principal.UpstreamSub] = principal.ID
	}
	return nil
}

func (pr *FakePrincipalRepo) GetByID(id string) (*principals.Principal, error) {
	pr.lock.RLock()
	defer pr.lock.RUnlock()
	p, ok := pr.byID[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return p, nil
}

func (pr *FakePrincipalRepo) GetByEmail(email string) (*principals.Principal, error) {
	pr.lock.RLock()
	defer pr.lock.RUnlock()
	id, ok := pr.byEmail[email]
	if !ok {
		return nil, errors.New("not found")
	}
	return pr.byID[id], nil
}

func (pr *FakePrincipalRepo) GetByUpstreamSub(sub string) (*principals.Principal, error) {
	pr.lock.RLock()
	defer pr.lock.RUnlock()
	id, ok := pr.bySub[sub]
	if !ok {
		return nil, errors.New("not found")
	}
	return pr.byID[id], nil
}

func (pr *FakePrincipalRepo) List(offset, limit int) ([]*principals.Principal, error) {
	pr.lock.RLock()
	defer pr.lock.RUnlock()

	all := make([]*principals.Principal, 0, len(pr.byID))
	for _, p := range pr.byID {
		all = append(all, p)
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].ID < all[j].ID
	})

	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}
