package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/resilience"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot store operations.
var preparedStatements = map[string]string{
	"get_prospect":    `SELECT ` + pgProspectColumns + ` FROM prospects WHERE tenant_id = $1 AND id = $2`,
	"save_enrichment": pgSaveEnrichmentSQL,
	"insert_activity": pgInsertActivitySQL,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool. Used by tests.
func NewPostgresFromPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS prospects (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	tenant_id         TEXT NOT NULL,
	name              TEXT NOT NULL,
	title             TEXT,
	company           TEXT NOT NULL DEFAULT '',
	email             TEXT,
	linkedin_url      TEXT,
	is_public_company BOOLEAN NOT NULL DEFAULT false,
	registry_id       TEXT,
	enrichment_status TEXT NOT NULL DEFAULT 'none',
	sources           JSONB NOT NULL DEFAULT '{}',
	contact           JSONB,
	web_intel         JSONB,
	filings           JSONB,
	summary           JSONB,
	last_enriched_at  TIMESTAMPTZ,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS activities (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	tenant_id   TEXT NOT NULL,
	user_id     TEXT,
	action_type TEXT NOT NULL,
	target_id   TEXT NOT NULL,
	metadata    JSONB,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_prospects_tenant ON prospects(tenant_id);
CREATE INDEX IF NOT EXISTS idx_prospects_status ON prospects(enrichment_status);
CREATE INDEX IF NOT EXISTS idx_activities_tenant_target ON activities(tenant_id, target_id);
`

const pgProspectColumns = `id, tenant_id, name, title, company, email, linkedin_url,
	is_public_company, registry_id, enrichment_status, sources,
	contact, web_intel, filings, summary, last_enriched_at, created_at, updated_at`

const pgSaveEnrichmentSQL = `UPDATE prospects SET enrichment_status = $1, sources = $2, contact = $3,
	web_intel = $4, filings = $5, summary = $6, last_enriched_at = $7, updated_at = $8
	WHERE tenant_id = $9 AND id = $10`

const pgInsertActivitySQL = `INSERT INTO activities (id, tenant_id, user_id, action_type, target_id, metadata, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) CreateProspect(ctx context.Context, p *model.Prospect) (*model.Prospect, error) {
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
		return nil, eris.Wrap(err, "postgres: marshal sources")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO prospects (id, tenant_id, name, title, company, email, linkedin_url,
			is_public_company, registry_id, enrichment_status, sources, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		out.ID, out.TenantID, out.Name, out.Title, out.Company, out.Email, out.LinkedInURL,
		out.IsPublicCompany, out.RegistryID, string(out.EnrichmentStatus), sourcesJSON, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert prospect")
	}
	return &out, nil
}

func (s *PostgresStore) GetProspect(ctx context.Context, tenantID, id string) (*model.Prospect, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgProspectColumns+` FROM prospects WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	)
	return scanPgProspect(row)
}

func (s *PostgresStore) ListProspects(ctx context.Context, filter ProspectFilter) ([]model.Prospect, error) {
	query := `SELECT ` + pgProspectColumns + ` FROM prospects WHERE true`
	args := []any{}
	argIdx := 1

	if filter.TenantID != "" {
		query += fmt.Sprintf(` AND tenant_id = $%d`, argIdx)
		args = append(args, filter.TenantID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND enrichment_status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list prospects")
	}
	defer rows.Close()

	var prospects []model.Prospect
	for rows.Next() {
		p, err := scanPgProspect(rows)
		if err != nil {
			return nil, err
		}
		prospects = append(prospects, *p)
	}
	return prospects, eris.Wrap(rows.Err(), "postgres: list prospects iterate")
}

func (s *PostgresStore) SaveEnrichment(ctx context.Context, p *model.Prospect) error {
	sourcesJSON, err := json.Marshal(p.Sources)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal sources")
	}
	contact, err := jsonOrNull(p.Contact)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal contact")
	}
	webIntel, err := jsonOrNull(p.WebIntel)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal web intel")
	}
	filings, err := jsonOrNull(p.Filings)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal filings")
	}
	summary, err := jsonOrNull(p.Summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal summary")
	}

	tag, err := s.pool.Exec(ctx, pgSaveEnrichmentSQL,
		string(p.EnrichmentStatus), sourcesJSON, contact, webIntel,
		filings, summary, p.LastEnrichedAt, time.Now().UTC(),
		p.TenantID, p.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save enrichment %s", p.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("prospect not found: %s", p.ID)
	}
	return nil
}

func (s *PostgresStore) AppendActivity(ctx context.Context, a *model.Activity) (*model.Activity, error) {
	out := *a
	if out.ID == "" {
		out.ID = uuid.New().String()
	}
	out.CreatedAt = time.Now().UTC()

	metadata, err := jsonOrNullMap(out.Metadata)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal activity metadata")
	}

	_, err = s.pool.Exec(ctx, pgInsertActivitySQL,
		out.ID, out.TenantID, out.UserID, out.ActionType, out.TargetID, metadata, out.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert activity")
	}
	return &out, nil
}

func (s *PostgresStore) ListActivities(ctx context.Context, tenantID, targetID string) ([]model.Activity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, user_id, action_type, target_id, metadata, created_at
		 FROM activities WHERE tenant_id = $1 AND target_id = $2
		 ORDER BY created_at DESC`,
		tenantID, targetID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list activities")
	}
	defer rows.Close()

	var activities []model.Activity
	for rows.Next() {
		var a model.Activity
		var userID *string
		var metadata []byte
		if err := rows.Scan(&a.ID, &a.TenantID, &userID, &a.ActionType, &a.TargetID, &metadata, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan activity")
		}
		if userID != nil {
			a.UserID = *userID
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &a.Metadata); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal activity metadata")
			}
		}
		activities = append(activities, a)
	}
	return activities, eris.Wrap(rows.Err(), "postgres: list activities iterate")
}

func scanPgProspect(row pgx.Row) (*model.Prospect, error) {
	var p model.Prospect
	var title, email, linkedin, registryID *string
	var sourcesJSON []byte
	var contact, webIntel, filings, summary []byte
	var lastEnriched *time.Time

	err := row.Scan(
		&p.ID, &p.TenantID, &p.Name, &title, &p.Company, &email, &linkedin,
		&p.IsPublicCompany, &registryID, &p.EnrichmentStatus, &sourcesJSON,
		&contact, &webIntel, &filings, &summary, &lastEnriched, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrap(&resilience.NotFoundError{Resource: "prospect"}, "postgres")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan prospect")
	}

	if title != nil {
		p.Title = *title
	}
	if email != nil {
		p.Email = *email
	}
	if linkedin != nil {
		p.LinkedInURL = *linkedin
	}
	if registryID != nil {
		p.RegistryID = *registryID
	}
	p.LastEnrichedAt = lastEnriched

	var rawSources map[model.SourceKey]string
	if err := json.Unmarshal(sourcesJSON, &rawSources); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal sources")
	}
	if len(rawSources) > 0 {
		p.Sources = model.NormalizeSourceStatuses(rawSources)
	} else {
		p.Sources = model.SourceStatusMap{}
	}

	if err := unmarshalPgSlot(contact, &p.Contact); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal contact")
	}
	if err := unmarshalPgSlot(webIntel, &p.WebIntel); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal web intel")
	}
	if err := unmarshalPgSlot(filings, &p.Filings); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal filings")
	}
	if err := unmarshalPgSlot(summary, &p.Summary); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal summary")
	}
	return &p, nil
}

func unmarshalPgSlot[T any](raw []byte, dst **T) error {
	if len(raw) == 0 {
		return nil
	}
	v := new(T)
	if err := json.Unmarshal(raw, v); err != nil {
		return err
	}
	*dst = v
	return nil
}
