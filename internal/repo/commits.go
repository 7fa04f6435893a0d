package repo

import (
    "context"
    "errors"
    "fmt"

    "github.com/jamesbringetto/atlassian-bug-dashboard/internal/domain"
    "github.com/jackc/pgx/v5"
)

const commitColumns = `id, sha, COALESCE(short_sha,''), COALESCE(message,''), COALESCE(message_headline,''),
    COALESCE(author_name,''), COALESCE(author_email,''), authored_at, COALESCE(url,''), COALESCE(jira_keys,'{}')`

func scanCommit(row pgx.Row) (domain.Commit, error) {
    var c domain.Commit
    err := row.Scan(&c.ID, &c.SHA, &c.ShortSHA, &c.Message, &c.MessageHeadline,
        &c.AuthorName, &c.AuthorEmail, &c.AuthoredAt, &c.URL, &c.JiraKeys)
    return c, err
}

// UpsertCommit is keyed by sha. Message fields and extracted keys are
// refreshed on conflict so amended commits stay current.
func (r *Repository) UpsertCommit(ctx context.Context, c domain.Commit) (int64, bool, error) {
    const q = `
        INSERT INTO commits(sha, short_sha, message, message_headline,
            author_name, author_email, authored_at, url, jira_keys)
        VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT(sha) DO UPDATE SET
            message=EXCLUDED.message,
            message_headline=EXCLUDED.message_headline,
            jira_keys=EXCLUDED.jira_keys
        RETURNING id, (xmax = 0) AS inserted`
    var id int64
    var inserted bool
    row := r.db.Pool.QueryRow(ctx, q, c.SHA, c.ShortSHA, nullstr(c.Message), nullstr(c.MessageHeadline),
        nullstr(c.AuthorName), nullstr(c.AuthorEmail), c.AuthoredAt, nullstr(c.URL), c.JiraKeys)
    if err := row.Scan(&id, &inserted); err != nil { return 0, false, err }
    return id, inserted, nil
}

func (r *Repository) BugIDByKey(ctx context.Context, key string) (int64, error) {
    var id int64
    err := r.db.Pool.QueryRow(ctx, `SELECT id FROM bugs WHERE jira_key=$1`, key).Scan(&id)
    if errors.Is(err, pgx.ErrNoRows) { return 0, ErrNotFound }
    return id, err
}

// LinkCommitBug reports true when a new link row was written.
func (r *Repository) LinkCommitBug(ctx context.Context, commitID, bugID int64, jiraKey string) (bool, error) {
    tag, err := r.db.Pool.Exec(ctx, `INSERT INTO commit_bug_links(commit_id, bug_id, jira_key)
        VALUES($1,$2,$3) ON CONFLICT (commit_id, bug_id) DO NOTHING`, commitID, bugID, jiraKey)
    if err != nil { return false, err }
    return tag.RowsAffected() > 0, nil
}

func (r *Repository) ListCommits(ctx context.Context, page, pageSize int, jiraKey string) ([]domain.Commit, int, error) {
    cond := ""
    args := []any{}
    if jiraKey != "" {
        args = append(args, jiraKey)
        cond = " WHERE $1 = ANY(jira_keys)"
    }

    var total int
    if err := r.db.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM commits"+cond, args...).Scan(&total); err != nil {
        return nil, 0, err
    }

    args = append(args, pageSize, (page-1)*pageSize)
    q := fmt.Sprintf("SELECT %s FROM commits%s ORDER BY authored_at DESC LIMIT $%d OFFSET $%d",
        commitColumns, cond, len(args)-1, len(args))
    rows, err := r.db.Pool.Query(ctx, q, args...)
    if err != nil { return nil, 0, err }
    defer rows.Close()
    var out []domain.Commit
    for rows.Next() {
        c, err := scanCommit(rows)
        if err != nil { return nil, 0, err }
        out = append(out, c)
    }
    return out, total, rows.Err()
}

func (r *Repository) CommitsForBug(ctx context.Context, bugID int64) ([]domain.Commit, error) {
    q := `SELECT ` + commitColumns + ` FROM commits
        WHERE id IN (SELECT commit_id FROM commit_bug_links WHERE bug_id = $1)
        ORDER BY authored_at DESC`
    rows, err := r.db.Pool.Query(ctx, q, bugID)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []domain.Commit{}
    for rows.Next() {
        c, err := scanCommit(rows)
        if err != nil { return nil, err }
        out = append(out, c)
    }
    return out, rows.Err()
}

func (r *Repository) CommitStats(ctx context.Context) (domain.GitHubStats, error) {
    var st domain.GitHubStats
    err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*),
            COUNT(*) FILTER (WHERE jira_keys IS NOT NULL AND array_length(jira_keys, 1) > 0)
        FROM commits`).Scan(&st.TotalCommits, &st.CommitsWithJiraKeys)
    if err != nil { return st, err }
    err = r.db.Pool.QueryRow(ctx, `SELECT COUNT(*), COUNT(DISTINCT bug_id) FROM commit_bug_links`).
        Scan(&st.TotalLinks, &st.BugsWithCommits)
    return st, err
}
