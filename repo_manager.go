package claims

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// StoredToken is the single durable row holding the bearer token, keyed by
// WellKnownTokenKey.
type StoredToken struct {
	bun.BaseModel `bun:"table:auth_tokens,alias:tok"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Key           string     `bun:"key,notnull,unique" json:"key,omitempty"`
	Token         string     `bun:"token,notnull" json:"token,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// ActivityRecord is a spooled audit event awaiting delivery.
type ActivityRecord struct {
	bun.BaseModel `bun:"table:activity_spool,alias:act"`
	ID            uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	EventType     string         `bun:"event_type,notnull" json:"event_type,omitempty"`
	ActorID       string         `bun:"actor_id" json:"actor_id,omitempty"`
	ActorRole     string         `bun:"actor_role" json:"actor_role,omitempty"`
	ActorType     string         `bun:"actor_type" json:"actor_type,omitempty"`
	SubjectID     string         `bun:"subject_id" json:"subject_id,omitempty"`
	Outcome       string         `bun:"outcome" json:"outcome,omitempty"`
	Severity      string         `bun:"severity" json:"severity,omitempty"`
	Metadata      map[string]any `bun:"metadata" json:"metadata,omitempty"`
	OccurredAt    *time.Time     `bun:"occurred_at,nullzero" json:"occurred_at,omitempty"`
}

// RepositoryManager exposes the local persistence repositories.
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Tokens() repository.Repository[*StoredToken]
	Activity() repository.Repository[*ActivityRecord]
}

func NewTokensRepository(db *bun.DB) repository.Repository[*StoredToken] {
	handlers := repository.ModelHandlers[*StoredToken]{
		NewRecord: func() *StoredToken {
			return &StoredToken{}
		},
		GetID: func(record *StoredToken) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *StoredToken, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "key"
		},
	}
	return repository.NewRepository(db, handlers)
}

func NewActivityRepository(db *bun.DB) repository.Repository[*ActivityRecord] {
	handlers := repository.ModelHandlers[*ActivityRecord]{
		NewRecord: func() *ActivityRecord {
			return &ActivityRecord{}
		},
		GetID: func(record *ActivityRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *ActivityRecord, id uuid.UUID) {
			record.ID = id
		},
	}
	return repository.NewRepository(db, handlers)
}

type mngr struct {
	db       *bun.DB
	tokens   repository.Repository[*StoredToken]
	activity repository.Repository[*ActivityRecord]
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:       db,
		tokens:   NewTokensRepository(db),
		activity: NewActivityRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.tokens == nil {
		return errors.New("repository tokens should be initialized")
	}

	if m.activity == nil {
		return errors.New("repository activity should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Tokens() repository.Repository[*StoredToken] {
	return m.tokens
}

func (m mngr) Activity() repository.Repository[*ActivityRecord] {
	return m.activity
}

// OpenLocalDB opens the embedded sqlite database backing the durable token
// store and the activity spool. Pass ":memory:" for an ephemeral store.
func OpenLocalDB(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, err
	}

	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// EnsureLocalSchema creates the local tables when missing.
func EnsureLocalSchema(ctx context.Context, db *bun.DB) error {
	models := []any{
		(*StoredToken)(nil),
		(*ActivityRecord)(nil),
	}

	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}

	return nil
}
