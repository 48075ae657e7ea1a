package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"tenderwatch/internal/domain"
	"tenderwatch/internal/ports"
)

// Store persists tenders, their enrichment details, the source registry,
// keyword taxonomies and crawl history in Postgres.
type Store struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var (
	_ ports.TenderStore       = (*Store)(nil)
	_ ports.SourceStore       = (*Store)(nil)
	_ ports.NotificationStore = (*Store)(nil)
	_ ports.KeywordStore      = (*Store)(nil)
)

// NewStore wires a sql.DB implementation.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Exists reports whether the source already holds a tender with the same URL
// or the same exact title. Either alone makes a duplicate.
func (s *Store) Exists(ctx context.Context, title, url string, sourceID int64) (bool, error) {
	query, args, err := s.sb.
		Select("1").
		From("tenders").
		Where(sq.And{
			sq.Eq{"source_id": sourceID},
			sq.Or{
				sq.Eq{"url": url},
				sq.Expr("lower(title) = ?", strings.ToLower(title)),
			},
		}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists query: %w", err)
	}

	var one int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query exists: %w", err)
	}
	return true, nil
}

// SaveTender inserts one validated tender and returns its id.
func (s *Store) SaveTender(ctx context.Context, sourceID int64, t domain.ValidatedTender) (int64, error) {
	query := `INSERT INTO tenders
	            (source_id, title, url, raw_date, published_at, category,
	             description, matched_keywords, esg_count, credit_count, date_status)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	          RETURNING id`

	var id int64
	err := s.db.QueryRowContext(ctx, query,
		sourceID,
		t.Title,
		t.URL,
		t.RawDate,
		t.PublishedAt,
		string(t.Category),
		t.Description,
		pq.StringArray(t.MatchedKeywords),
		t.ESGCount,
		t.CreditCount,
		string(t.DateStatus),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert tender: %w", err)
	}
	return id, nil
}

// SaveDetail upserts the enrichment record for a tender. Every enrichment
// outcome, including failures, is written.
func (s *Store) SaveDetail(ctx context.Context, tenderID int64, d domain.DetailRecord) (int64, error) {
	query := `INSERT INTO tender_details
	            (tender_id, title, description, requirements, publication_date,
	             deadline, contact_organization, contact_person, contact_phone,
	             contact_email, contact_address, additional_info, urgency,
	             status, reason, full_content)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	          ON CONFLICT (tender_id) DO UPDATE
	          SET title = EXCLUDED.title,
	              description = EXCLUDED.description,
	              requirements = EXCLUDED.requirements,
	              publication_date = EXCLUDED.publication_date,
	              deadline = EXCLUDED.deadline,
	              contact_organization = EXCLUDED.contact_organization,
	              contact_person = EXCLUDED.contact_person,
	              contact_phone = EXCLUDED.contact_phone,
	              contact_email = EXCLUDED.contact_email,
	              contact_address = EXCLUDED.contact_address,
	              additional_info = EXCLUDED.additional_info,
	              urgency = EXCLUDED.urgency,
	              status = EXCLUDED.status,
	              reason = EXCLUDED.reason,
	              full_content = EXCLUDED.full_content,
	              updated_at = NOW()
	          RETURNING id`

	var id int64
	err := s.db.QueryRowContext(ctx, query,
		tenderID,
		d.Title,
		d.Description,
		d.Requirements,
		d.PublicationDate,
		d.Deadline,
		d.Contact.Organization,
		d.Contact.Person,
		d.Contact.Phone,
		d.Contact.Email,
		d.Contact.Address,
		d.Additional,
		string(d.Urgency),
		string(d.Status),
		d.Reason,
		d.FullContent,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert detail: %w", err)
	}
	return id, nil
}

// ActiveSources lists sources enabled for crawling.
func (s *Store) ActiveSources(ctx context.Context) ([]domain.Source, error) {
	query, args, err := s.sb.
		Select("id", "name", "url", "active", "COALESCE(last_crawled, 'epoch'::timestamptz)").
		From("sources").
		Where(sq.Eq{"active": true}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sources query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	var sources []domain.Source
	for rows.Next() {
		var src domain.Source
		if err := rows.Scan(&src.ID, &src.Name, &src.URL, &src.Active, &src.LastCrawled); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return sources, nil
}

// EnsureSource registers a source if unknown and returns the stored row
// either way.
func (s *Store) EnsureSource(ctx context.Context, url, name string) (domain.Source, error) {
	query := `INSERT INTO sources (name, url)
	          VALUES ($1, $2)
	          ON CONFLICT (url) DO UPDATE SET name = EXCLUDED.name
	          RETURNING id, name, url, active, COALESCE(last_crawled, 'epoch'::timestamptz)`

	var src domain.Source
	err := s.db.QueryRowContext(ctx, query, name, url).
		Scan(&src.ID, &src.Name, &src.URL, &src.Active, &src.LastCrawled)
	if err != nil {
		return domain.Source{}, fmt.Errorf("ensure source: %w", err)
	}
	return src, nil
}

// TouchSource stamps a source's last crawl time.
func (s *Store) TouchSource(ctx context.Context, id int64, at time.Time) error {
	query, args, err := s.sb.
		Update("sources").
		Set("last_crawled", at).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build touch query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("touch source: %w", err)
	}
	return nil
}

// LogCrawl appends one crawl outcome to the history.
func (s *Store) LogCrawl(ctx context.Context, entry domain.CrawlLog) error {
	query := `INSERT INTO crawl_log (source_id, status, tenders_found, error, crawled_at)
	          VALUES ($1, $2, $3, $4, $5)`

	_, err := s.db.ExecContext(ctx, query,
		entry.SourceID, entry.Status, entry.TendersFound, entry.Error, entry.At)
	if err != nil {
		return fmt.Errorf("insert crawl log: %w", err)
	}
	return nil
}

// UnnotifiedTenders lists stored tenders of one category that have not gone
// out to the stakeholder team yet.
func (s *Store) UnnotifiedTenders(ctx context.Context, category domain.Category) ([]domain.StoredTender, error) {
	query, args, err := s.sb.
		Select("id", "title", "url", "raw_date", "published_at", "category",
			"description", "matched_keywords", "esg_count", "credit_count", "date_status").
		From("tenders").
		Where(sq.Eq{"category": string(category), "notified": false}).
		OrderBy("created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build unnotified query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query unnotified: %w", err)
	}
	defer rows.Close()

	var tenders []domain.StoredTender
	for rows.Next() {
		var (
			t        domain.StoredTender
			keywords pq.StringArray
		)
		err := rows.Scan(&t.ID, &t.Title, &t.URL, &t.RawDate, &t.PublishedAt,
			&t.Category, &t.Description, &keywords, &t.ESGCount, &t.CreditCount, &t.DateStatus)
		if err != nil {
			return nil, fmt.Errorf("scan tender: %w", err)
		}
		t.MatchedKeywords = keywords
		tenders = append(tenders, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return tenders, nil
}

// MarkNotified flags one tender as delivered.
func (s *Store) MarkNotified(ctx context.Context, tenderID int64) error {
	query, args, err := s.sb.
		Update("tenders").
		Set("notified", true).
		Set("notified_at", time.Now()).
		Where(sq.Eq{"id": tenderID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build notified query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	return nil
}

// Keywords returns one taxonomy's list in seeding order.
func (s *Store) Keywords(ctx context.Context, taxonomy domain.Category) ([]string, error) {
	query, args, err := s.sb.
		Select("keyword").
		From("keywords").
		Where(sq.Eq{"taxonomy": string(taxonomy)}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build keywords query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query keywords: %w", err)
	}
	defer rows.Close()

	var keywords []string
	for rows.Next() {
		var kw string
		if err := rows.Scan(&kw); err != nil {
			return nil, fmt.Errorf("scan keyword: %w", err)
		}
		keywords = append(keywords, kw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return keywords, nil
}

// SeedKeywords inserts defaults for a taxonomy, leaving existing rows alone.
func (s *Store) SeedKeywords(ctx context.Context, taxonomy domain.Category, keywords []string) error {
	query := `INSERT INTO keywords (taxonomy, keyword)
	          SELECT $1, unnest($2::text[])
	          ON CONFLICT (taxonomy, keyword) DO NOTHING`

	_, err := s.db.ExecContext(ctx, query, string(taxonomy), pq.StringArray(keywords))
	if err != nil {
		return fmt.Errorf("seed keywords: %w", err)
	}
	return nil
}

// InitSchema creates all tables if missing. Idempotent.
func (s *Store) InitSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS sources (
	    id            BIGSERIAL PRIMARY KEY,
	    name          TEXT NOT NULL,
	    url           TEXT NOT NULL UNIQUE,
	    active        BOOLEAN NOT NULL DEFAULT TRUE,
	    last_crawled  TIMESTAMPTZ
	);

	CREATE TABLE IF NOT EXISTS tenders (
	    id               BIGSERIAL PRIMARY KEY,
	    source_id        BIGINT NOT NULL REFERENCES sources(id),
	    title            TEXT NOT NULL,
	    url              TEXT NOT NULL,
	    raw_date         TEXT NOT NULL DEFAULT '',
	    published_at     DATE,
	    category         TEXT NOT NULL,
	    description      TEXT NOT NULL DEFAULT '',
	    matched_keywords TEXT[] NOT NULL DEFAULT '{}',
	    esg_count        INT NOT NULL DEFAULT 0,
	    credit_count     INT NOT NULL DEFAULT 0,
	    date_status      TEXT NOT NULL DEFAULT 'unknown',
	    notified         BOOLEAN NOT NULL DEFAULT FALSE,
	    notified_at      TIMESTAMPTZ,
	    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_tenders_source_url ON tenders (source_id, url);
	CREATE INDEX IF NOT EXISTS idx_tenders_notified ON tenders (category, notified);

	CREATE TABLE IF NOT EXISTS tender_details (
	    id                   BIGSERIAL PRIMARY KEY,
	    tender_id            BIGINT NOT NULL UNIQUE REFERENCES tenders(id),
	    title                TEXT NOT NULL DEFAULT '',
	    description          TEXT NOT NULL DEFAULT '',
	    requirements         TEXT NOT NULL DEFAULT '',
	    publication_date     DATE,
	    deadline             DATE,
	    contact_organization TEXT NOT NULL DEFAULT '',
	    contact_person       TEXT NOT NULL DEFAULT '',
	    contact_phone        TEXT NOT NULL DEFAULT '',
	    contact_email        TEXT NOT NULL DEFAULT '',
	    contact_address      TEXT NOT NULL DEFAULT '',
	    additional_info      TEXT NOT NULL DEFAULT '',
	    urgency              TEXT NOT NULL DEFAULT 'unknown',
	    status               TEXT NOT NULL,
	    reason               TEXT NOT NULL DEFAULT '',
	    full_content         TEXT NOT NULL DEFAULT '',
	    created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	    updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS keywords (
	    id       BIGSERIAL PRIMARY KEY,
	    taxonomy TEXT NOT NULL,
	    keyword  TEXT NOT NULL,
	    UNIQUE (taxonomy, keyword)
	);

	CREATE TABLE IF NOT EXISTS crawl_log (
	    id            BIGSERIAL PRIMARY KEY,
	    source_id     BIGINT NOT NULL REFERENCES sources(id),
	    status        TEXT NOT NULL,
	    tenders_found INT NOT NULL DEFAULT 0,
	    error         TEXT NOT NULL DEFAULT '',
	    crawled_at    TIMESTAMPTZ NOT NULL
	);`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}
