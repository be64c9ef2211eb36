package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres caps bind parameters per statement; 1000 ids stays far below it.
const postgresInLimit = 1000

const schema = `
CREATE TABLE IF NOT EXISTS tenants (
    id     TEXT PRIMARY KEY,
    name   TEXT NOT NULL,
    active BOOLEAN NOT NULL DEFAULT TRUE
);
CREATE TABLE IF NOT EXISTS keywords (
    tenant_id TEXT NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
    id        TEXT NOT NULL,
    word      TEXT NOT NULL,
    position  INT NOT NULL DEFAULT 0,
    PRIMARY KEY (tenant_id, id)
);
CREATE TABLE IF NOT EXISTS settings (
    id         TEXT PRIMARY KEY,
    doc        JSONB NOT NULL DEFAULT '{}'::jsonb,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS articles (
    tenant_id           TEXT NOT NULL,
    id                  TEXT NOT NULL,
    title               TEXT NOT NULL DEFAULT '',
    description         TEXT NOT NULL DEFAULT '',
    url                 TEXT NOT NULL,
    source_name         TEXT NOT NULL DEFAULT '',
    source_url          TEXT NOT NULL DEFAULT '',
    author              TEXT NOT NULL DEFAULT '',
    published_at        TIMESTAMPTZ,
    keyword             TEXT NOT NULL DEFAULT '',
    source_type         TEXT NOT NULL DEFAULT '',
    image_url           TEXT NOT NULL DEFAULT '',
    sentiment_score     DOUBLE PRECISION,
    sentiment_magnitude DOUBLE PRECISION,
    entities            TEXT[],
    image_labels        TEXT[],
    fetched_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (tenant_id, id)
);
CREATE TABLE IF NOT EXISTS fix_lock (
    id          INT PRIMARY KEY,
    running     BOOLEAN NOT NULL DEFAULT FALSE,
    started_at  TIMESTAMPTZ,
    owner       TEXT NOT NULL DEFAULT '',
    released_at TIMESTAMPTZ
);
`

var articleColumns = []string{
	"tenant_id", "id", "title", "description", "url", "source_name", "source_url",
	"author", "published_at", "keyword", "source_type", "image_url",
	"sentiment_score", "sentiment_magnitude", "entities", "image_labels", "fetched_at",
}

const articleConflict = `ON CONFLICT (tenant_id, id) DO UPDATE SET
    title = EXCLUDED.title,
    description = EXCLUDED.description,
    url = EXCLUDED.url,
    source_name = EXCLUDED.source_name,
    source_url = EXCLUDED.source_url,
    author = EXCLUDED.author,
    published_at = EXCLUDED.published_at,
    keyword = EXCLUDED.keyword,
    source_type = EXCLUDED.source_type,
    image_url = EXCLUDED.image_url,
    sentiment_score = EXCLUDED.sentiment_score,
    sentiment_magnitude = EXCLUDED.sentiment_magnitude,
    entities = EXCLUDED.entities,
    image_labels = EXCLUDED.image_labels,
    fetched_at = EXCLUDED.fetched_at`

// PostgresStore is the relational backend. Settings documents are kept as
// JSONB so partial writes stay field merges.
type PostgresStore struct {
	db   *pgxpool.Pool
	psql sq.StatementBuilderType
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	db, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	if _, err := db.Exec(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	return &PostgresStore{
		db:   db,
		psql: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}, nil
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

// PutTenant inserts or renames a tenant and replaces its keyword list.
func (s *PostgresStore) PutTenant(ctx context.Context, t Tenant, keywords ...Keyword) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
        INSERT INTO tenants (id, name, active) VALUES ($1, $2, $3)
        ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, active = EXCLUDED.active`,
		t.ID, t.Name, t.Active)
	if err != nil {
		return fmt.Errorf("failed to upsert tenant %s: %w", t.ID, err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM keywords WHERE tenant_id = $1`, t.ID); err != nil {
		return fmt.Errorf("failed to clear keywords for %s: %w", t.ID, err)
	}
	if len(keywords) > 0 {
		ins := s.psql.Insert("keywords").Columns("tenant_id", "id", "word", "position")
		for _, k := range keywords {
			ins = ins.Values(t.ID, k.ID, k.Word, k.Position)
		}
		query, args, err := ins.ToSql()
		if err != nil {
			return fmt.Errorf("failed to build keyword insert: %w", err)
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert keywords for %s: %w", t.ID, err)
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) ListTenants(ctx context.Context) ([]Tenant, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name, active FROM tenants ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()
	var out []Tenant
	for rows.Next() {
		var t Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.Active); err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListKeywords(ctx context.Context, tenantID string) ([]Keyword, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, word, position FROM keywords WHERE tenant_id = $1 ORDER BY position, id`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list keywords for %s: %w", tenantID, err)
	}
	defer rows.Close()
	var out []Keyword
	for rows.Next() {
		var k Keyword
		if err := rows.Scan(&k.ID, &k.Word, &k.Position); err != nil {
			return nil, fmt.Errorf("failed to scan keyword: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (s *PostgresStore) getDoc(ctx context.Context, id string) ([]byte, error) {
	var doc []byte
	err := s.db.QueryRow(ctx, `SELECT doc FROM settings WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *PostgresStore) mergeDoc(ctx context.Context, id string, fields map[string]interface{}) error {
	patch, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
        INSERT INTO settings (id, doc) VALUES ($1, $2::jsonb)
        ON CONFLICT (id) DO UPDATE SET doc = settings.doc || EXCLUDED.doc, updated_at = NOW()`,
		id, string(patch))
	return err
}

func (s *PostgresStore) GetGlobalSettings(ctx context.Context) (*GlobalSettings, error) {
	doc, err := s.getDoc(ctx, globalSettingsDoc)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get global settings: %w", err)
	}
	var gs GlobalSettings
	if err := json.Unmarshal(doc, &gs); err != nil {
		return nil, fmt.Errorf("failed to decode global settings: %w", err)
	}
	return &gs, nil
}

func (s *PostgresStore) SaveGlobalSettings(ctx context.Context, gs *GlobalSettings) error {
	doc, err := json.Marshal(gs)
	if err != nil {
		return fmt.Errorf("failed to encode global settings: %w", err)
	}
	_, err = s.db.Exec(ctx, `
        INSERT INTO settings (id, doc) VALUES ($1, $2::jsonb)
        ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()`,
		globalSettingsDoc, string(doc))
	if err != nil {
		return fmt.Errorf("failed to save global settings: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkSourceRun(ctx context.Context, class SourceClass, at time.Time) error {
	_, err := s.db.Exec(ctx, `
        UPDATE settings
        SET doc = doc || jsonb_build_object('lastRun',
                COALESCE(doc->'lastRun', '{}'::jsonb) || jsonb_build_object($2::text, $3::text)),
            updated_at = NOW()
        WHERE id = $1`,
		globalSettingsDoc, string(class), at.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to mark %s run: %w", class, err)
	}
	return nil
}

func (s *PostgresStore) GetTenantSettings(ctx context.Context, tenantID string) (*TenantSettings, error) {
	st := DefaultTenantSettings()
	doc, err := s.getDoc(ctx, tenantID)
	if errors.Is(err, ErrNotFound) {
		return &st, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings for %s: %w", tenantID, err)
	}
	if err := json.Unmarshal(doc, &st); err != nil {
		return nil, fmt.Errorf("failed to decode settings for %s: %w", tenantID, err)
	}
	if st.SearchScope == "" {
		st.SearchScope = ScopeBrazil
	}
	return &st, nil
}

func (s *PostgresStore) SetNewAlerts(ctx context.Context, tenantID string, value bool) error {
	if err := s.mergeDoc(ctx, tenantID, map[string]interface{}{"newAlerts": value}); err != nil {
		return fmt.Errorf("failed to set newAlerts for %s: %w", tenantID, err)
	}
	return nil
}

func (s *PostgresStore) MaxLookupIDs() int { return postgresInLimit }

func (s *PostgresStore) ExistingArticleIDs(ctx context.Context, tenantID string, ids []string) (map[string]bool, error) {
	found := make(map[string]bool)
	for _, chunk := range chunkStrings(ids, postgresInLimit) {
		query, args, err := s.psql.Select("id").From("articles").
			Where(sq.Eq{"tenant_id": tenantID, "id": chunk}).ToSql()
		if err != nil {
			return nil, fmt.Errorf("failed to build lookup: %w", err)
		}
		rows, err := s.db.Query(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to look up articles for %s: %w", tenantID, err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan article id: %w", err)
			}
			found[id] = true
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to look up articles for %s: %w", tenantID, err)
		}
	}
	return found, nil
}

func (s *PostgresStore) UpsertArticles(ctx context.Context, tenantID string, articles []Article) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, a := range articles {
		var score, magnitude *float64
		if a.Sentiment != nil {
			score, magnitude = &a.Sentiment.Score, &a.Sentiment.Magnitude
		}
		var published *time.Time
		if !a.PublishedAt.IsZero() {
			published = &a.PublishedAt
		}
		query, args, err := s.psql.Insert("articles").Columns(articleColumns...).
			Values(tenantID, a.ID, a.Title, a.Description, a.URL, a.Source.Name, a.Source.URL,
				a.Author, published, a.Keyword, string(a.SourceType), a.ImageURL,
				score, magnitude, a.Entities, a.ImageLabels, a.FetchedAt).
			Suffix(articleConflict).ToSql()
		if err != nil {
			return 0, fmt.Errorf("failed to build upsert: %w", err)
		}
		batch.Queue(query, args...)
	}

	br := tx.SendBatch(ctx, batch)
	for range articles {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return 0, fmt.Errorf("failed to upsert articles for %s: %w", tenantID, err)
		}
	}
	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("failed to upsert articles for %s: %w", tenantID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit articles for %s: %w", tenantID, err)
	}
	return len(articles), nil
}

func (s *PostgresStore) ListArticles(ctx context.Context, tenantID string) ([]Article, error) {
	query, args, err := s.psql.Select(articleColumns...).From("articles").
		Where(sq.Eq{"tenant_id": tenantID}).OrderBy("id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build article list: %w", err)
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles for %s: %w", tenantID, err)
	}
	defer rows.Close()

	var out []Article
	for rows.Next() {
		var (
			a                Article
			sourceType       string
			published        *time.Time
			score, magnitude *float64
		)
		err := rows.Scan(&a.TenantID, &a.ID, &a.Title, &a.Description, &a.URL, &a.Source.Name,
			&a.Source.URL, &a.Author, &published, &a.Keyword, &sourceType, &a.ImageURL,
			&score, &magnitude, &a.Entities, &a.ImageLabels, &a.FetchedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		a.SourceType = SourceClass(sourceType)
		if published != nil {
			a.PublishedAt = *published
		}
		if score != nil && magnitude != nil {
			a.Sentiment = &Sentiment{Score: *score, Magnitude: *magnitude}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ApplyArticleFixes(ctx context.Context, tenantID string, fixes []ArticleFix) (int, error) {
	if len(fixes) == 0 {
		return 0, nil
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, f := range fixes {
		query, args, err := s.psql.Update("articles").
			Set("source_name", f.SourceName).
			Set("author", f.Author).
			Where(sq.Eq{"tenant_id": tenantID, "id": f.ID}).ToSql()
		if err != nil {
			return 0, fmt.Errorf("failed to build fix: %w", err)
		}
		batch.Queue(query, args...)
	}
	br := tx.SendBatch(ctx, batch)
	updated := 0
	for range fixes {
		tag, err := br.Exec()
		if err != nil {
			br.Close()
			return 0, fmt.Errorf("failed to apply fixes for %s: %w", tenantID, err)
		}
		updated += int(tag.RowsAffected())
	}
	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("failed to apply fixes for %s: %w", tenantID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit fixes for %s: %w", tenantID, err)
	}
	return updated, nil
}

// AcquireFixLock is a single conditional upsert: the update branch only fires
// while the row is not running, so no rows returned means the lock is held.
func (s *PostgresStore) AcquireFixLock(ctx context.Context, owner string, now time.Time) (*FixLock, error) {
	var startedAt time.Time
	err := s.db.QueryRow(ctx, `
        INSERT INTO fix_lock (id, running, started_at, owner) VALUES (1, TRUE, $1, $2)
        ON CONFLICT (id) DO UPDATE
        SET running = TRUE, started_at = EXCLUDED.started_at, owner = EXCLUDED.owner
        WHERE fix_lock.running = FALSE
        RETURNING started_at`, now, owner).Scan(&startedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		held, getErr := s.GetFixLock(ctx)
		if getErr != nil {
			return nil, getErr
		}
		return held, ErrLockHeld
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acquire fix lock: %w", err)
	}
	return &FixLock{Running: true, StartedAt: startedAt, Owner: owner}, nil
}

func (s *PostgresStore) GetFixLock(ctx context.Context) (*FixLock, error) {
	var (
		l                   FixLock
		started, releasedAt *time.Time
	)
	err := s.db.QueryRow(ctx,
		`SELECT running, started_at, owner, released_at FROM fix_lock WHERE id = 1`).
		Scan(&l.Running, &started, &l.Owner, &releasedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return &FixLock{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read fix lock: %w", err)
	}
	if started != nil {
		l.StartedAt = *started
	}
	if releasedAt != nil {
		l.ReleasedAt = *releasedAt
	}
	return &l, nil
}

func (s *PostgresStore) ReleaseFixLock(ctx context.Context, now time.Time) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO fix_lock (id, running, released_at) VALUES (1, FALSE, $1)
        ON CONFLICT (id) DO UPDATE SET running = FALSE, released_at = EXCLUDED.released_at`, now)
	if err != nil {
		return fmt.Errorf("failed to release fix lock: %w", err)
	}
	return nil
}
