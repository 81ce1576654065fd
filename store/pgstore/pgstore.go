// server/store/pgstore/pgstore.go
package pgstore

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/arbornote/arbor/domain"
	"github.com/arbornote/arbor/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const copyRetries = 3

// Store is a postgres-backed ObjectStore: one row per path, metadata as
// jsonb, content as bytea. Put and Copy replace the row in a single
// statement/transaction so content and metadata never diverge.
type Store struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// Open connects to databaseURL, runs pending migrations and returns the store.
func Open(ctx context.Context, databaseURL string, log zerolog.Logger) (*Store, error) {
	if err := runMigrations(databaseURL); err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool, log: log}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func runMigrations(databaseURL string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	url := databaseURL
	if strings.HasPrefix(url, "postgres://") {
		url = "pgx5://" + strings.TrimPrefix(url, "postgres://")
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func (s *Store) Has(ctx context.Context, path string) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM objects WHERE path = $1)`, path).Scan(&ok)
	return ok, err
}

func (s *Store) Get(ctx context.Context, path string) (*store.Object, error) {
	var (
		content     []byte
		metaRaw     []byte
		contentType string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT content, metadata, content_type FROM objects WHERE path = $1`, path).
		Scan(&content, &metaRaw, &contentType)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound.New("object %q", path)
	}
	if err != nil {
		return nil, err
	}
	meta, err := decodeMeta(metaRaw)
	if err != nil {
		return nil, err
	}
	return &store.Object{Content: content, Meta: meta, ContentType: contentType}, nil
}

func (s *Store) GetMeta(ctx context.Context, path string) (map[string]string, error) {
	var metaRaw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT metadata FROM objects WHERE path = $1`, path).Scan(&metaRaw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound.New("object %q", path)
	}
	if err != nil {
		return nil, err
	}
	return decodeMeta(metaRaw)
}

func (s *Store) Put(ctx context.Context, path string, content []byte, opts store.PutOptions) error {
	metaRaw, err := encodeMeta(opts.Meta)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO objects (path, content, metadata, content_type)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (path) DO UPDATE SET
			content = excluded.content,
			metadata = excluded.metadata,
			content_type = excluded.content_type
	`, path, content, metaRaw, opts.ContentType)
	return err
}

// Copy replaces toPath with fromPath's content and the given metadata inside
// one transaction. Serialization conflicts with concurrent cascades are
// retried a few times before giving up.
func (s *Store) Copy(ctx context.Context, fromPath, toPath string, opts store.PutOptions) error {
	metaRaw, err := encodeMeta(opts.Meta)
	if err != nil {
		return err
	}
	for attempt := 0; ; attempt++ {
		err = s.copyOnce(ctx, fromPath, toPath, metaRaw, opts.ContentType)
		if err == nil || !isRetryable(err) || attempt >= copyRetries {
			return err
		}
		s.log.Warn().Err(err).Str("from", fromPath).Str("to", toPath).
			Int("attempt", attempt+1).Msg("retrying object copy")
	}
}

func (s *Store) copyOnce(ctx context.Context, fromPath, toPath string, metaRaw []byte, contentType string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var (
		content []byte
		srcType string
	)
	err = tx.QueryRow(ctx,
		`SELECT content, content_type FROM objects WHERE path = $1`, fromPath).
		Scan(&content, &srcType)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound.New("object %q", fromPath)
	}
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = srcType
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO objects (path, content, metadata, content_type)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (path) DO UPDATE SET
			content = excluded.content,
			metadata = excluded.metadata,
			content_type = excluded.content_type
	`, toPath, content, metaRaw, contentType)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) Delete(ctx context.Context, path string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM objects WHERE path = $1`, path)
	return err
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure ||
			pgErr.Code == pgerrcode.DeadlockDetected
	}
	return false
}

func encodeMeta(meta map[string]string) ([]byte, error) {
	if meta == nil {
		meta = map[string]string{}
	}
	return json.Marshal(meta)
}

func decodeMeta(raw []byte) (map[string]string, error) {
	meta := map[string]string{}
	if len(raw) == 0 {
		return meta, nil
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, err
	}
	return meta, nil
}
