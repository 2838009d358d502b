package registry

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"molmind-rag/internal/config"
)

// Record is one ingested link for a user/project pair. The registry is an
// audit trail over the vector index, not its source of truth: registry
// failures never fail an ingestion.
type Record struct {
	bun.BaseModel `bun:"table:ingested_documents,alias:doc"`

	ID         int64     `bun:"id,pk,autoincrement" json:"-"`
	UserID     string    `bun:"user_id,notnull" json:"user_id"`
	ProjectID  string    `bun:"project_id,notnull" json:"project_id"`
	Source     string    `bun:"source,notnull" json:"source"`
	ChunkCount int       `bun:"chunk_count,notnull" json:"chunk_count"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// Registry stores ingestion records in Postgres (Supabase in the default
// deployment).
type Registry struct {
	db *bun.DB
}

// Connect opens the registry database. An empty DSN means the registry is
// disabled and Connect returns (nil, nil); a nil *Registry is safe to call.
func Connect(dbConfig *config.DatabaseConfig) (*Registry, error) {
	if dbConfig.DSN == "" {
		return nil, nil
	}

	opts := []pgdriver.Option{pgdriver.WithDSN(dbConfig.DSN)}
	if dbConfig.Password != "" {
		opts = append(opts, pgdriver.WithPassword(dbConfig.Password))
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(opts...))

	db := bun.NewDB(sqldb, pgdialect.New())
	if dbConfig.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return &Registry{db: db}, nil
}

// Init creates the records table when it does not exist yet.
func (r *Registry) Init(ctx context.Context) error {
	if r == nil {
		return nil
	}
	_, err := r.db.NewCreateTable().Model((*Record)(nil)).IfNotExists().Exec(ctx)
	return err
}

// Add records one ingested link.
func (r *Registry) Add(ctx context.Context, rec *Record) error {
	if r == nil {
		return nil
	}
	_, err := r.db.NewInsert().Model(rec).Exec(ctx)
	return err
}

// List returns a project's ingested links, newest first.
func (r *Registry) List(ctx context.Context, userID, projectID string) ([]Record, error) {
	if r == nil {
		return nil, nil
	}
	var recs []Record
	err := r.db.NewSelect().
		Model(&recs).
		Where("user_id = ?", userID).
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		Scan(ctx)
	return recs, err
}

// Enabled reports whether a database is configured behind this registry.
func (r *Registry) Enabled() bool {
	return r != nil
}

func (r *Registry) Close() {
	if r == nil {
		return
	}
	if err := r.db.Close(); err != nil {
		log.Warn().Err(err).Msg("Error closing registry database")
	}
}
