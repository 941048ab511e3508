package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/resilience"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS prospects (
	id                TEXT PRIMARY KEY,
	tenant_id         TEXT NOT NULL,
	name              TEXT NOT NULL,
	title             TEXT,
	company           TEXT NOT NULL DEFAULT '',
	email             TEXT,
	linkedin_url      TEXT,
	is_public_company INTEGER NOT NULL DEFAULT 0,
	registry_id       TEXT,
	enrichment_status TEXT NOT NULL DEFAULT 'none',
	sources           TEXT NOT NULL DEFAULT '{}',
	contact           TEXT,
	web_intel         TEXT,
	filings           TEXT,
	summary           TEXT,
	last_enriched_at  DATETIME,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS activities (
	id          TEXT PRIMARY KEY,
	tenant_id   TEXT NOT NULL,
	user_id     TEXT,
	action_type TEXT NOT NULL,
	target_id   TEXT NOT NULL,
	metadata    TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_prospects_tenant ON prospects(tenant_id);
CREATE INDEX IF NOT EXISTS idx_prospects_status ON prospects(enrichment_status);
CREATE INDEX IF NOT EXISTS idx_activities_tenant_target ON activities(tenant_id, target_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const prospectColumns = `id, tenant_id, name, title, company, email, linkedin_url,
	is_public_company, registry_id, enrichment_status, sources,
	contact, web_intel, filings, summary, last_enriched_at, created_at, updated_at`

func (s *SQLiteStore) CreateProspect(ctx context.Context, p *model.Prospect) (*model.Prospect, error) {
	out := *p
	if out.ID == "" {
		out.ID = uuid.New().String()
	}
	if out.EnrichmentStatus == "" {
		out.EnrichmentStatus = model.EnrichmentNone
	}
	if out.Sources == nil {
		out.Sources = model.SourceStatusMap{}
	}
	now := time.Now().UTC()
	out.CreatedAt = now
	out.UpdatedAt = now

	sourcesJSON, err := json.Marshal(out.Sources)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal sources")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO prospects (id, tenant_id, name, title, company, email, linkedin_url,
			is_public_company, registry_id, enrichment_status, sources, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		out.ID, out.TenantID, out.Name, out.Title, out.Company, out.Email, out.LinkedInURL,
		out.IsPublicCompany, out.RegistryID, string(out.EnrichmentStatus), string(sourcesJSON), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert prospect")
	}
	return &out, nil
}

func (s *SQLiteStore) GetProspect(ctx context.Context, tenantID, id string) (*model.Prospect, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+prospectColumns+` FROM prospects WHERE tenant_id = ? AND id = ?`,
		tenantID, id,
	)
	return scanProspect(row)
}

func (s *SQLiteStore) ListProspects(ctx context.Context, filter ProspectFilter) ([]model.Prospect, error) {
	query := `SELECT ` + prospectColumns + ` FROM prospects WHERE 1=1`
	var args []any

	if filter.TenantID != "" {
		query += ` AND tenant_id = ?`
		args = append(args, filter.TenantID)
	}
	if filter.Status != "" {
		query += ` AND enrichment_status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list prospects")
	}
	defer rows.Close()

	var prospects []model.Prospect
	for rows.Next() {
		p, err := scanProspect(rows)
		if err != nil {
			return nil, err
		}
		prospects = append(prospects, *p)
	}
	return prospects, eris.Wrap(rows.Err(), "sqlite: list prospects iterate")
}

func (s *SQLiteStore) SaveEnrichment(ctx context.Context, p *model.Prospect) error {
	sourcesJSON, err := json.Marshal(p.Sources)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal sources")
	}
	contact, err := jsonOrNull(p.Contact)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal contact")
	}
	webIntel, err := jsonOrNull(p.WebIntel)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal web intel")
	}
	filings, err := jsonOrNull(p.Filings)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal filings")
	}
	summary, err := jsonOrNull(p.Summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal summary")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE prospects SET enrichment_status = ?, sources = ?, contact = ?, web_intel = ?,
			filings = ?, summary = ?, last_enriched_at = ?, updated_at = ?
		 WHERE tenant_id = ? AND id = ?`,
		string(p.EnrichmentStatus), string(sourcesJSON), contact, webIntel,
		filings, summary, p.LastEnrichedAt, time.Now().UTC(),
		p.TenantID, p.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save enrichment %s", p.ID)
	}
	return checkRowsAffected(res, "prospect", p.ID)
}

func (s *SQLiteStore) AppendActivity(ctx context.Context, a *model.Activity) (*model.Activity, error) {
	out := *a
	if out.ID == "" {
		out.ID = uuid.New().String()
	}
	out.CreatedAt = time.Now().UTC()

	metadata, err := jsonOrNullMap(out.Metadata)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal activity metadata")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO activities (id, tenant_id, user_id, action_type, target_id, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		out.ID, out.TenantID, out.UserID, out.ActionType, out.TargetID, metadata, out.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert activity")
	}
	return &out, nil
}

func (s *SQLiteStore) ListActivities(ctx context.Context, tenantID, targetID string) ([]model.Activity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, user_id, action_type, target_id, metadata, created_at
		 FROM activities WHERE tenant_id = ? AND target_id = ?
		 ORDER BY created_at DESC`,
		tenantID, targetID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list activities")
	}
	defer rows.Close()

	var activities []model.Activity
	for rows.Next() {
		var a model.Activity
		var userID, metadata sql.NullString
		if err := rows.Scan(&a.ID, &a.TenantID, &userID, &a.ActionType, &a.TargetID, &metadata, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan activity")
		}
		a.UserID = userID.String
		if metadata.Valid {
			if err := json.Unmarshal([]byte(metadata.String), &a.Metadata); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal activity metadata")
			}
		}
		activities = append(activities, a)
	}
	return activities, eris.Wrap(rows.Err(), "sqlite: list activities iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

// jsonOrNull marshals a payload pointer, passing NULL through for nil.
func jsonOrNull[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func jsonOrNullMap(m map[string]any) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanProspect(row scannable) (*model.Prospect, error) {
	var p model.Prospect
	var title, email, linkedin, registryID sql.NullString
	var sourcesJSON string
	var contact, webIntel, filings, summary sql.NullString
	var lastEnriched sql.NullTime

	err := row.Scan(
		&p.ID, &p.TenantID, &p.Name, &title, &p.Company, &email, &linkedin,
		&p.IsPublicCompany, &registryID, &p.EnrichmentStatus, &sourcesJSON,
		&contact, &webIntel, &filings, &summary, &lastEnriched, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, eris.Wrap(&resilience.NotFoundError{Resource: "prospect"}, "sqlite")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan prospect")
	}

	p.Title = title.String
	p.Email = email.String
	p.LinkedInURL = linkedin.String
	p.RegistryID = registryID.String
	if lastEnriched.Valid {
		t := lastEnriched.Time
		p.LastEnrichedAt = &t
	}

	// Status maps written before statuses were typed may carry legacy
	// values; repair them once at the read boundary.
	var rawSources map[model.SourceKey]string
	if err := json.Unmarshal([]byte(sourcesJSON), &rawSources); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal sources")
	}
	if len(rawSources) > 0 {
		p.Sources = model.NormalizeSourceStatuses(rawSources)
	} else {
		p.Sources = model.SourceStatusMap{}
	}

	if err := unmarshalSlot(contact, &p.Contact); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal contact")
	}
	if err := unmarshalSlot(webIntel, &p.WebIntel); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal web intel")
	}
	if err := unmarshalSlot(filings, &p.Filings); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal filings")
	}
	if err := unmarshalSlot(summary, &p.Summary); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal summary")
	}
	return &p, nil
}

func unmarshalSlot[T any](col sql.NullString, dst **T) error {
	if !col.Valid || col.String == "" {
		return nil
	}
	v := new(T)
	if err := json.Unmarshal([]byte(col.String), v); err != nil {
		return err
	}
	*dst = v
	return nil
}
