package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Store bundles the repositories behind one transaction boundary.  Its
// promoted methods satisfy the reservation manager's storage interface.
type Store struct {
	*LotRepo
	*LotRequestRepo
	*UserRepo
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{
		LotRepo:        NewLotRepo(db),
		LotRequestRepo: NewLotRequestRepo(db),
		UserRepo:       NewUserRepo(db),
		db:             db,
	}
}

// WithTx runs fn in a single transaction; repository calls made with the
// context passed to fn join it.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, s.db, fn)
}
