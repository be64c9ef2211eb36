package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"
)

const sqliteInLimit = 500

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tenants (
    id     TEXT PRIMARY KEY,
    name   TEXT NOT NULL,
    active INTEGER NOT NULL DEFAULT 1
);
CREATE TABLE IF NOT EXISTS keywords (
    tenant_id TEXT NOT NULL,
    id        TEXT NOT NULL,
    word      TEXT NOT NULL,
    position  INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (tenant_id, id)
);
CREATE TABLE IF NOT EXISTS settings (
    id         TEXT PRIMARY KEY,
    doc        TEXT NOT NULL DEFAULT '{}',
    updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS articles (
    tenant_id    TEXT NOT NULL,
    id           TEXT NOT NULL,
    doc          TEXT NOT NULL,
    source_name  TEXT NOT NULL DEFAULT '',
    author       TEXT NOT NULL DEFAULT '',
    fetched_at   TEXT NOT NULL,
    PRIMARY KEY (tenant_id, id)
);
CREATE TABLE IF NOT EXISTS fix_lock (
    id          INTEGER PRIMARY KEY,
    running     INTEGER NOT NULL DEFAULT 0,
    started_at  TEXT NOT NULL DEFAULT '',
    owner       TEXT NOT NULL DEFAULT '',
    released_at TEXT NOT NULL DEFAULT ''
);
`

// SQLiteStore is the single-node backend. Articles are stored as JSON
// documents; source_name and author are columns so corrections can update
// them without rewriting the document.
type SQLiteStore struct {
	db   *sql.DB
	psql sq.StatementBuilderType
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database file at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	// Pragmas go in the DSN so every pooled connection gets them.
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "synchronous(NORMAL)")
	// Every transaction here writes; taking the write lock at BEGIN lets
	// busy_timeout queue concurrent read-modify-writes instead of failing them.
	q.Set("_txlock", "immediate")
	db, err := sql.Open("sqlite", "file:"+path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	return &SQLiteStore{
		db:   db,
		psql: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

// PutTenant inserts or renames a tenant and replaces its keyword list.
func (s *SQLiteStore) PutTenant(ctx context.Context, t Tenant, keywords ...Keyword) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
        INSERT INTO tenants (id, name, active) VALUES (?, ?, ?)
        ON CONFLICT (id) DO UPDATE SET name = excluded.name, active = excluded.active`,
		t.ID, t.Name, t.Active)
	if err != nil {
		return fmt.Errorf("failed to upsert tenant %s: %w", t.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM keywords WHERE tenant_id = ?`, t.ID); err != nil {
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
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert keywords for %s: %w", t.ID, err)
		}
	}
	return tx.Commit()
}

// PutTenantSettings replaces a tenant's settings document.
func (s *SQLiteStore) PutTenantSettings(ctx context.Context, tenantID string, st TenantSettings) error {
	doc, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode settings for %s: %w", tenantID, err)
	}
	return s.putDoc(ctx, s.db, tenantID, doc)
}

func (s *SQLiteStore) ListTenants(ctx context.Context) ([]Tenant, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, active FROM tenants ORDER BY id`)
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

func (s *SQLiteStore) ListKeywords(ctx context.Context, tenantID string) ([]Keyword, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, word, position FROM keywords WHERE tenant_id = ? ORDER BY position, id`, tenantID)
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

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (s *SQLiteStore) getDoc(ctx context.Context, q queryer, id string) ([]byte, error) {
	var doc string
	err := q.QueryRowContext(ctx, `SELECT doc FROM settings WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(doc), nil
}

func (s *SQLiteStore) putDoc(ctx context.Context, q queryer, id string, doc []byte) error {
	_, err := q.ExecContext(ctx, `
        INSERT INTO settings (id, doc, updated_at) VALUES (?, ?, ?)
        ON CONFLICT (id) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`,
		id, string(doc), formatTime(time.Now()))
	return err
}

// mergeDoc applies a top-level field merge inside one transaction.
func (s *SQLiteStore) mergeDoc(ctx context.Context, id string, apply func(doc map[string]interface{})) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	doc := map[string]interface{}{}
	raw, err := s.getDoc(ctx, tx, id)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return err
	default:
		if err := json.Unmarshal(raw, &doc); err != nil {
			return err
		}
	}
	apply(doc)
	merged, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	if err := s.putDoc(ctx, tx, id, merged); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetGlobalSettings(ctx context.Context) (*GlobalSettings, error) {
	doc, err := s.getDoc(ctx, s.db, globalSettingsDoc)
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

func (s *SQLiteStore) SaveGlobalSettings(ctx context.Context, gs *GlobalSettings) error {
	doc, err := json.Marshal(gs)
	if err != nil {
		return fmt.Errorf("failed to encode global settings: %w", err)
	}
	if err := s.putDoc(ctx, s.db, globalSettingsDoc, doc); err != nil {
		return fmt.Errorf("failed to save global settings: %w", err)
	}
	return nil
}

func (s *SQLiteStore) MarkSourceRun(ctx context.Context, class SourceClass, at time.Time) error {
	err := s.mergeDoc(ctx, globalSettingsDoc, func(doc map[string]interface{}) {
		lastRun, _ := doc["lastRun"].(map[string]interface{})
		if lastRun == nil {
			lastRun = map[string]interface{}{}
		}
		lastRun[string(class)] = formatTime(at)
		doc["lastRun"] = lastRun
	})
	if err != nil {
		return fmt.Errorf("failed to mark %s run: %w", class, err)
	}
	return nil
}

func (s *SQLiteStore) GetTenantSettings(ctx context.Context, tenantID string) (*TenantSettings, error) {
	st := DefaultTenantSettings()
	doc, err := s.getDoc(ctx, s.db, tenantID)
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

func (s *SQLiteStore) SetNewAlerts(ctx context.Context, tenantID string, value bool) error {
	err := s.mergeDoc(ctx, tenantID, func(doc map[string]interface{}) {
		doc["newAlerts"] = value
	})
	if err != nil {
		return fmt.Errorf("failed to set newAlerts for %s: %w", tenantID, err)
	}
	return nil
}

func (s *SQLiteStore) MaxLookupIDs() int { return sqliteInLimit }

func (s *SQLiteStore) ExistingArticleIDs(ctx context.Context, tenantID string, ids []string) (map[string]bool, error) {
	found := make(map[string]bool)
	for _, chunk := range chunkStrings(ids, sqliteInLimit) {
		query, args, err := s.psql.Select("id").From("articles").
			Where(sq.Eq{"tenant_id": tenantID, "id": chunk}).ToSql()
		if err != nil {
			return nil, fmt.Errorf("failed to build lookup: %w", err)
		}
		rows, err := s.db.QueryContext(ctx, query, args...)
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

func (s *SQLiteStore) UpsertArticles(ctx context.Context, tenantID string, articles []Article) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO articles (tenant_id, id, doc, source_name, author, fetched_at)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT (tenant_id, id) DO UPDATE SET
            doc = excluded.doc,
            source_name = excluded.source_name,
            author = excluded.author,
            fetched_at = excluded.fetched_at`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, a := range articles {
		a.TenantID = tenantID
		doc, err := json.Marshal(a)
		if err != nil {
			return 0, fmt.Errorf("failed to encode article %s: %w", a.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, tenantID, a.ID, string(doc), a.Source.Name, a.Author, formatTime(a.FetchedAt)); err != nil {
			return 0, fmt.Errorf("failed to upsert articles for %s: %w", tenantID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit articles for %s: %w", tenantID, err)
	}
	return len(articles), nil
}

func (s *SQLiteStore) ListArticles(ctx context.Context, tenantID string) ([]Article, error) {
	query, args, err := s.psql.Select("doc", "source_name", "author").From("articles").
		Where(sq.Eq{"tenant_id": tenantID}).OrderBy("id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build article list: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles for %s: %w", tenantID, err)
	}
	defer rows.Close()

	var out []Article
	for rows.Next() {
		var (
			doc, sourceName, author string
			a                       Article
		)
		if err := rows.Scan(&doc, &sourceName, &author); err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		if err := json.Unmarshal([]byte(doc), &a); err != nil {
			return nil, fmt.Errorf("failed to decode article: %w", err)
		}
		a.Source.Name = sourceName
		a.Author = author
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ApplyArticleFixes(ctx context.Context, tenantID string, fixes []ArticleFix) (int, error) {
	if len(fixes) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	updated := 0
	for _, f := range fixes {
		query, args, err := s.psql.Update("articles").
			Set("source_name", f.SourceName).
			Set("author", f.Author).
			Where(sq.Eq{"tenant_id": tenantID, "id": f.ID}).ToSql()
		if err != nil {
			return 0, fmt.Errorf("failed to build fix: %w", err)
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("failed to apply fixes for %s: %w", tenantID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to apply fixes for %s: %w", tenantID, err)
		}
		updated += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit fixes for %s: %w", tenantID, err)
	}
	return updated, nil
}

// AcquireFixLock is a conditional upsert: the update branch only fires while
// the row is not running, so zero affected rows means the lock is held.
func (s *SQLiteStore) AcquireFixLock(ctx context.Context, owner string, now time.Time) (*FixLock, error) {
	res, err := s.db.ExecContext(ctx, `
        INSERT INTO fix_lock (id, running, started_at, owner) VALUES (1, 1, ?, ?)
        ON CONFLICT (id) DO UPDATE
        SET running = 1, started_at = excluded.started_at, owner = excluded.owner
        WHERE fix_lock.running = 0`, formatTime(now), owner)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire fix lock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire fix lock: %w", err)
	}
	if n == 0 {
		held, getErr := s.GetFixLock(ctx)
		if getErr != nil {
			return nil, getErr
		}
		return held, ErrLockHeld
	}
	return &FixLock{Running: true, StartedAt: now, Owner: owner}, nil
}

func (s *SQLiteStore) GetFixLock(ctx context.Context) (*FixLock, error) {
	var (
		l                   FixLock
		started, releasedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT running, started_at, owner, released_at FROM fix_lock WHERE id = 1`).
		Scan(&l.Running, &started, &l.Owner, &releasedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &FixLock{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read fix lock: %w", err)
	}
	l.StartedAt = parseTime(started)
	l.ReleasedAt = parseTime(releasedAt)
	return &l, nil
}

func (s *SQLiteStore) ReleaseFixLock(ctx context.Context, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO fix_lock (id, running, released_at) VALUES (1, 0, ?)
        ON CONFLICT (id) DO UPDATE SET running = 0, released_at = excluded.released_at`,
		formatTime(now))
	if err != nil {
		return fmt.Errorf("failed to release fix lock: %w", err)
	}
	return nil
}
