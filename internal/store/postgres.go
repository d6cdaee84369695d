package store

import (
	"context"
	"time"

	"github.com/Harshitk-cp/bdi/internal/belief"
	"github.com/Harshitk-cp/bdi/internal/term"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const defaultQueryTimeout = 5 * time.Second

const schema = `CREATE TABLE IF NOT EXISTS beliefs (
	id         BIGSERIAL PRIMARY KEY,
	view       TEXT NOT NULL,
	key        TEXT NOT NULL,
	hash       BIGINT NOT NULL,
	literal    BYTEA NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (view, key, hash, literal)
);
CREATE INDEX IF NOT EXISTS beliefs_view_key_idx ON beliefs (view, key, id);`

// Postgres persists beliefs in the beliefs table.
type Postgres struct {
	db      *pgxpool.Pool
	logger  *zap.Logger
	timeout time.Duration
}

func NewPostgres(db *pgxpool.Pool, logger *zap.Logger) *Postgres {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Postgres{db: db, logger: logger, timeout: defaultQueryTimeout}
}

// Migrate creates the beliefs table when it does not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.db.Exec(ctx, schema)
	return err
}

func (p *Postgres) Factory() belief.StorageFactory {
	return func(path term.Path) belief.Storage {
		return p.Storage(path)
	}
}

func (p *Postgres) Storage(path term.Path) *PostgresStorage {
	return &PostgresStorage{db: p, view: string(path), logger: p.logger.With(zap.String("view", string(path)))}
}

// PostgresStorage implements belief.Storage for one view. Every call runs
// its own statement bounded by the query timeout.
type PostgresStorage struct {
	db     *Postgres
	view   string
	logger *zap.Logger
}

func (s *PostgresStorage) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.db.timeout)
}

func (s *PostgresStorage) query(sql string, args ...any) []*term.Literal {
	ctx, cancel := s.ctx()
	defer cancel()

	rows, err := s.db.db.Query(ctx, sql, args...)
	if err != nil {
		s.logger.Error("failed to query beliefs", zap.Error(err))
		return nil
	}
	defer rows.Close()

	var out []*term.Literal
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			s.logger.Error("failed to scan belief", zap.Error(err))
			return out
		}
		l, err := DecodeLiteral(raw)
		if err != nil {
			s.logger.Warn("skipping undecodable belief", zap.Error(err))
			continue
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		s.logger.Error("failed to iterate beliefs", zap.Error(err))
	}
	return out
}

func (s *PostgresStorage) Stream() []*term.Literal {
	return s.query(`SELECT literal FROM beliefs WHERE view = $1 ORDER BY key, id`, s.view)
}

func (s *PostgresStorage) Get(key string) []*term.Literal {
	return s.query(`SELECT literal FROM beliefs WHERE view = $1 AND key = $2 ORDER BY id`, s.view, key)
}

func (s *PostgresStorage) Contains(key string) bool {
	ctx, cancel := s.ctx()
	defer cancel()

	var exists bool
	err := s.db.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM beliefs WHERE view = $1 AND key = $2)`,
		s.view, key,
	).Scan(&exists)
	if err != nil {
		s.logger.Error("failed to look up beliefs", zap.String("key", key), zap.Error(err))
		return false
	}
	return exists
}

func (s *PostgresStorage) Put(l *term.Literal) bool {
	encoded, err := EncodeLiteral(l)
	if err != nil {
		s.logger.Warn("cannot persist belief", zap.String("literal", l.String()), zap.Error(err))
		return false
	}
	ctx, cancel := s.ctx()
	defer cancel()

	tag, err := s.db.db.Exec(ctx,
		`INSERT INTO beliefs (view, key, hash, literal)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (view, key, hash, literal) DO NOTHING`,
		s.view, l.Key(), int64(l.Hash()), encoded,
	)
	if err != nil {
		s.logger.Error("failed to put belief", zap.String("literal", l.String()), zap.Error(err))
		return false
	}
	return tag.RowsAffected() == 1
}

func (s *PostgresStorage) Remove(l *term.Literal) bool {
	encoded, err := EncodeLiteral(l)
	if err != nil {
		return false
	}
	ctx, cancel := s.ctx()
	defer cancel()

	tag, err := s.db.db.Exec(ctx,
		`DELETE FROM beliefs WHERE view = $1 AND key = $2 AND hash = $3 AND literal = $4`,
		s.view, l.Key(), int64(l.Hash()), encoded,
	)
	if err != nil {
		s.logger.Error("failed to remove belief", zap.String("literal", l.String()), zap.Error(err))
		return false
	}
	return tag.RowsAffected() > 0
}

func (s *PostgresStorage) Clear() {
	ctx, cancel := s.ctx()
	defer cancel()

	if _, err := s.db.db.Exec(ctx, `DELETE FROM beliefs WHERE view = $1`, s.view); err != nil {
		s.logger.Error("failed to clear beliefs", zap.Error(err))
	}
}

func (s *PostgresStorage) Size() int {
	ctx, cancel := s.ctx()
	defer cancel()

	var n int
	err := s.db.db.QueryRow(ctx, `SELECT COUNT(*) FROM beliefs WHERE view = $1`, s.view).Scan(&n)
	if err != nil {
		s.logger.Error("failed to count beliefs", zap.Error(err))
		return 0
	}
	return n
}
