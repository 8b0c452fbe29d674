package claims

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// BunTokenStore is the durable TokenStore, a single keyed row in the local
// sqlite database. It is what lets a session survive process restarts.
type BunTokenStore struct {
	db     *bun.DB
	tokens repository.Repository[*StoredToken]
	key    string
}

var _ TokenStore = (*BunTokenStore)(nil)

// NewBunTokenStore returns a TokenStore persisting under WellKnownTokenKey.
func NewBunTokenStore(db *bun.DB) *BunTokenStore {
	return &BunTokenStore{
		db:     db,
		tokens: NewTokensRepository(db),
		key:    WellKnownTokenKey,
	}
}

func (s *BunTokenStore) Get(ctx context.Context) (string, error) {
	record, err := s.tokens.GetByIdentifier(ctx, s.key)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return "", nil
		}
		return "", err
	}

	return record.Token, nil
}

func (s *BunTokenStore) Put(ctx context.Context, token string) error {
	now := time.Now()
	record := &StoredToken{
		Key:       s.key,
		Token:     token,
		UpdatedAt: &now,
	}

	existing, err := s.tokens.GetByIdentifier(ctx, s.key)
	if err != nil {
		if !repository.IsRecordNotFound(err) {
			return err
		}
		_, err = s.tokens.Create(ctx, record)
		return err
	}

	record.ID = existing.ID
	_, err = s.tokens.Update(ctx, record, repository.UpdateByID(existing.ID.String()))
	return err
}

func (s *BunTokenStore) Delete(ctx context.Context) error {
	_, err := s.db.NewDelete().
		Model((*StoredToken)(nil)).
		Where("?TableAlias.key = ?", s.key).
		Exec(ctx)
	return err
}
