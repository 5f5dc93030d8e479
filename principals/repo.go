package principals

type Repo interface {
	Upsert(principal *Principal) error
	GetByID(id string) (*Principal, error)
	GetByEmail(email string) (*Principal, error)
	GetByUpstreamSub(sub string) (*Principal, error)
	List(offset, limit int) ([]*Principal, error)
}
