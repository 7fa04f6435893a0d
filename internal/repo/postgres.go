package repo

import (
    "context"
    "errors"
    "fmt"
    "strings"
    "time"

    "github.com/jamesbringetto/atlassian-bug-dashboard/internal/config"
    "github.com/jamesbringetto/atlassian-bug-dashboard/internal/domain"
    "github.com/jackc/pgx/v5"
    "github.com/jackc/pgx/v5/pgxpool"
    "github.com/rs/zerolog"
)

var ErrNotFound = errors.New("not found")

type DB struct {
    Pool *pgxpool.Pool
    log  zerolog.Logger
}

func MustOpen(ctx context.Context, cfg config.Config, log zerolog.Logger) *DB {
    pool, err := pgxpool.New(ctx, cfg.DBDSN)
    if err != nil { log.Fatal().Err(err).Msg("db connect failed") }
    ctx2, cancel := context.WithTimeout(ctx, 10*time.Second); defer cancel()
    if err := pool.Ping(ctx2); err != nil { log.Fatal().Err(err).Msg("db ping failed") }
    return &DB{Pool: pool, log: log}
}

func (d *DB) Close() { d.Pool.Close() }

func (d *DB) Ping(ctx context.Context) error {
    var one int
    return d.Pool.QueryRow(ctx, "SELECT 1").Scan(&one)
}

// EnsureSchema creates the tables and indexes when they do not exist yet.
// Safe to run on every startup.
func (d *DB) EnsureSchema(ctx context.Context) error {
    stmts := []string{
        `CREATE TABLE IF NOT EXISTS bugs (
            id BIGSERIAL PRIMARY KEY,
            jira_key VARCHAR(50) UNIQUE NOT NULL,
            jira_id VARCHAR(50),
            summary TEXT NOT NULL DEFAULT '',
            description TEXT,
            status VARCHAR(100) NOT NULL DEFAULT 'Unknown',
            status_category VARCHAR(50),
            priority VARCHAR(50),
            created_at TIMESTAMPTZ NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL,
            resolved_at TIMESTAMPTZ,
            component VARCHAR(200),
            labels TEXT[],
            reporter VARCHAR(200),
            assignee VARCHAR(200),
            raw_data JSONB,
            fetched_at TIMESTAMPTZ NOT NULL DEFAULT now(),
            triage_category VARCHAR(50),
            triage_priority VARCHAR(20),
            triage_urgency VARCHAR(20),
            triage_team VARCHAR(50),
            triage_tags TEXT[],
            triage_confidence DOUBLE PRECISION,
            triage_reasoning TEXT,
            triaged_at TIMESTAMPTZ
        )`,
        `CREATE INDEX IF NOT EXISTS idx_bugs_status_priority ON bugs(status, priority)`,
        `CREATE INDEX IF NOT EXISTS idx_bugs_created_updated ON bugs(created_at, updated_at)`,
        `CREATE INDEX IF NOT EXISTS idx_bugs_triage_category ON bugs(triage_category)`,
        `CREATE INDEX IF NOT EXISTS idx_bugs_triage_team ON bugs(triage_team)`,
        `CREATE INDEX IF NOT EXISTS idx_bugs_triage_priority ON bugs(triage_priority)`,
        `CREATE TABLE IF NOT EXISTS commits (
            id BIGSERIAL PRIMARY KEY,
            sha VARCHAR(64) UNIQUE NOT NULL,
            short_sha VARCHAR(16) NOT NULL DEFAULT '',
            message TEXT,
            message_headline VARCHAR(200),
            author_name VARCHAR(200),
            author_email VARCHAR(200),
            authored_at TIMESTAMPTZ,
            url TEXT,
            jira_keys TEXT[]
        )`,
        `CREATE INDEX IF NOT EXISTS idx_commits_authored_at ON commits(authored_at)`,
        `CREATE INDEX IF NOT EXISTS idx_commits_jira_keys ON commits USING GIN (jira_keys)`,
        `CREATE TABLE IF NOT EXISTS commit_bug_links (
            id BIGSERIAL PRIMARY KEY,
            commit_id BIGINT NOT NULL REFERENCES commits(id) ON DELETE CASCADE,
            bug_id BIGINT NOT NULL REFERENCES bugs(id) ON DELETE CASCADE,
            jira_key VARCHAR(50),
            UNIQUE (commit_id, bug_id)
        )`,
        `CREATE INDEX IF NOT EXISTS idx_links_bug_id ON commit_bug_links(bug_id)`,
    }
    for _, s := range stmts {
        if _, err := d.Pool.Exec(ctx, s); err != nil { return fmt.Errorf("ensure schema: %w", err) }
    }
    return nil
}

type Repository struct {
    db  *DB
    log zerolog.Logger
}

func NewRepository(d *DB, log zerolog.Logger) *Repository { return &Repository{db: d, log: log} }

func (r *Repository) Ping(ctx context.Context) error { return r.db.Ping(ctx) }

func nullstr(s string) any {
    if strings.TrimSpace(s) == "" { return nil }
    return s
}

const bugColumns = `id, jira_key, COALESCE(jira_id,''), COALESCE(summary,''), COALESCE(description,''),
    COALESCE(status,''), COALESCE(status_category,''), COALESCE(priority,''),
    created_at, updated_at, resolved_at, COALESCE(component,''), COALESCE(labels,'{}'),
    COALESCE(reporter,''), COALESCE(assignee,''), fetched_at,
    COALESCE(triage_category,''), COALESCE(triage_priority,''), COALESCE(triage_urgency,''),
    COALESCE(triage_team,''), COALESCE(triage_tags,'{}'), triage_confidence,
    COALESCE(triage_reasoning,''), triaged_at`

func scanBug(row pgx.Row) (domain.Bug, error) {
    var b domain.Bug
    err := row.Scan(&b.ID, &b.JiraKey, &b.JiraID, &b.Summary, &b.Description,
        &b.Status, &b.StatusCategory, &b.Priority,
        &b.CreatedAt, &b.UpdatedAt, &b.ResolvedAt, &b.Component, &b.Labels,
        &b.Reporter, &b.Assignee, &b.FetchedAt,
        &b.TriageCategory, &b.TriagePriority, &b.TriageUrgency,
        &b.TriageTeam, &b.TriageTags, &b.TriageConfidence,
        &b.TriageReasoning, &b.TriagedAt)
    return b, err
}

// UpsertBug writes the tracker-sourced fields of a bug, keyed by jira_key.
// Triage columns are never touched here. Returns the row id, whether the row
// was freshly inserted, and the current triaged_at.
func (r *Repository) UpsertBug(ctx context.Context, b domain.Bug) (int64, bool, *time.Time, error) {
    const q = `
        INSERT INTO bugs(jira_key, jira_id, summary, description, status, status_category,
            priority, created_at, updated_at, resolved_at, component, labels,
            reporter, assignee, raw_data, fetched_at)
        VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,now())
        ON CONFLICT(jira_key) DO UPDATE SET
            jira_id=EXCLUDED.jira_id,
            summary=EXCLUDED.summary,
            description=EXCLUDED.description,
            status=EXCLUDED.status,
            status_category=EXCLUDED.status_category,
            priority=EXCLUDED.priority,
            created_at=EXCLUDED.created_at,
            updated_at=EXCLUDED.updated_at,
            resolved_at=EXCLUDED.resolved_at,
            component=EXCLUDED.component,
            labels=EXCLUDED.labels,
            reporter=EXCLUDED.reporter,
            assignee=EXCLUDED.assignee,
            raw_data=EXCLUDED.raw_data,
            fetched_at=now()
        RETURNING id, (xmax = 0) AS inserted, triaged_at`
    var raw any
    if len(b.Raw) > 0 { raw = []byte(b.Raw) }
    var id int64
    var inserted bool
    var triagedAt *time.Time
    row := r.db.Pool.QueryRow(ctx, q, b.JiraKey, nullstr(b.JiraID), b.Summary, nullstr(b.Description),
        b.Status, nullstr(b.StatusCategory), nullstr(b.Priority), b.CreatedAt, b.UpdatedAt, b.ResolvedAt,
        nullstr(b.Component), b.Labels, nullstr(b.Reporter), nullstr(b.Assignee), raw)
    if err := row.Scan(&id, &inserted, &triagedAt); err != nil { return 0, false, nil, err }
    return id, inserted, triagedAt, nil
}

func (r *Repository) GetBugByKey(ctx context.Context, key string) (*domain.Bug, error) {
    q := `SELECT ` + bugColumns + ` FROM bugs WHERE jira_key=$1`
    b, err := scanBug(r.db.Pool.QueryRow(ctx, q, key))
    if errors.Is(err, pgx.ErrNoRows) { return nil, ErrNotFound }
    if err != nil { return nil, err }
    return &b, nil
}

func (r *Repository) ListBugs(ctx context.Context, page, pageSize int, status, priority, search string) ([]domain.Bug, int, error) {
    where := []string{}
    args := []any{}
    if status != "" {
        args = append(args, status)
        where = append(where, fmt.Sprintf("status = $%d", len(args)))
    }
    if priority != "" {
        args = append(args, priority)
        where = append(where, fmt.Sprintf("priority = $%d", len(args)))
    }
    if search != "" {
        args = append(args, "%"+search+"%")
        where = append(where, fmt.Sprintf("summary ILIKE $%d", len(args)))
    }
    cond := ""
    if len(where) > 0 { cond = " WHERE " + strings.Join(where, " AND ") }

    var total int
    if err := r.db.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM bugs"+cond, args...).Scan(&total); err != nil {
        return nil, 0, err
    }

    args = append(args, pageSize, (page-1)*pageSize)
    q := fmt.Sprintf("SELECT %s FROM bugs%s ORDER BY updated_at DESC LIMIT $%d OFFSET $%d",
        bugColumns, cond, len(args)-1, len(args))
    rows, err := r.db.Pool.Query(ctx, q, args...)
    if err != nil { return nil, 0, err }
    defer rows.Close()
    var out []domain.Bug
    for rows.Next() {
        b, err := scanBug(rows)
        if err != nil { return nil, 0, err }
        out = append(out, b)
    }
    return out, total, rows.Err()
}

// SetTriage writes the whole classification block plus triaged_at in one statement.
func (r *Repository) SetTriage(ctx context.Context, key string, t domain.TriageResult) (*time.Time, error) {
    const q = `UPDATE bugs SET
            triage_category=$2,
            triage_priority=$3,
            triage_urgency=$4,
            triage_team=$5,
            triage_tags=$6,
            triage_confidence=$7,
            triage_reasoning=$8,
            triaged_at=now()
        WHERE jira_key=$1
        RETURNING triaged_at`
    var at time.Time
    err := r.db.Pool.QueryRow(ctx, q, key, t.Category, t.Priority, t.Urgency, t.Team,
        t.Tags, t.Confidence, nullstr(t.Reasoning)).Scan(&at)
    if errors.Is(err, pgx.ErrNoRows) { return nil, ErrNotFound }
    if err != nil { return nil, err }
    return &at, nil
}

func (r *Repository) UntriagedBugs(ctx context.Context, limit int) ([]domain.Bug, error) {
    q := `SELECT ` + bugColumns + ` FROM bugs WHERE triaged_at IS NULL ORDER BY created_at`
    args := []any{}
    if limit > 0 {
        args = append(args, limit)
        q += " LIMIT $1"
    }
    rows, err := r.db.Pool.Query(ctx, q, args...)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []domain.Bug
    for rows.Next() {
        b, err := scanBug(rows)
        if err != nil { return nil, err }
        out = append(out, b)
    }
    return out, rows.Err()
}

func (r *Repository) CountUntriaged(ctx context.Context) (int, error) {
    var n int
    err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM bugs WHERE triaged_at IS NULL`).Scan(&n)
    return n, err
}

func (r *Repository) DistinctStatuses(ctx context.Context) ([]string, error) {
    return r.distinct(ctx, `SELECT DISTINCT status FROM bugs WHERE status IS NOT NULL ORDER BY 1`)
}

func (r *Repository) DistinctPriorities(ctx context.Context) ([]string, error) {
    return r.distinct(ctx, `SELECT DISTINCT priority FROM bugs WHERE priority IS NOT NULL ORDER BY 1`)
}

func (r *Repository) distinct(ctx context.Context, q string) ([]string, error) {
    rows, err := r.db.Pool.Query(ctx, q)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []string{}
    for rows.Next() {
        var s string
        if err := rows.Scan(&s); err != nil { return nil, err }
        out = append(out, s)
    }
    return out, rows.Err()
}
