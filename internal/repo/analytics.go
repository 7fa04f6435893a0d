package repo

import (
    "context"
    "math"
    "time"

    "github.com/jamesbringetto/atlassian-bug-dashboard/internal/domain"
)

func round1(x float64) float64 { return math.Round(x*10) / 10 }

// Overview recomputes the dashboard statistics on every call. Nothing is cached.
func (r *Repository) Overview(ctx context.Context) (domain.BugStats, error) {
    var st domain.BugStats
    var classified int
    err := r.db.Pool.QueryRow(ctx, `
        SELECT COUNT(*),
            COUNT(*) FILTER (WHERE NOT (status = ANY($1))),
            COUNT(*) FILTER (WHERE updated_at >= now() - interval '7 days'),
            COUNT(*) FILTER (WHERE triaged_at IS NOT NULL)
        FROM bugs`, domain.ClosedStatuses).
        Scan(&st.TotalBugs, &st.OpenBugs, &st.RecentActivityCount, &classified)
    if err != nil { return st, err }
    st.ClosedBugs = st.TotalBugs - st.OpenBugs

    var avg *float64
    err = r.db.Pool.QueryRow(ctx, `SELECT AVG(EXTRACT(EPOCH FROM (resolved_at - created_at))/86400.0)
        FROM bugs WHERE resolved_at IS NOT NULL`).Scan(&avg)
    if err != nil { return st, err }
    if avg != nil {
        v := round1(*avg)
        st.AvgResolutionTimeDays = &v
    }

    if st.BugsByPriority, err = r.groupCount(ctx, `SELECT COALESCE(priority,'None'), COUNT(*) FROM bugs GROUP BY 1`); err != nil {
        return st, err
    }
    if st.BugsByStatus, err = r.groupCount(ctx, `SELECT status, COUNT(*) FROM bugs GROUP BY 1`); err != nil {
        return st, err
    }

    if classified > 0 && st.TotalBugs > 0 {
        if st.BugsByTriageCategory, err = r.groupCount(ctx, `SELECT triage_category, COUNT(*) FROM bugs WHERE triage_category IS NOT NULL GROUP BY 1`); err != nil {
            return st, err
        }
        if st.BugsByTriageTeam, err = r.groupCount(ctx, `SELECT triage_team, COUNT(*) FROM bugs WHERE triage_team IS NOT NULL GROUP BY 1`); err != nil {
            return st, err
        }
        cov := int(math.Round(100 * float64(classified) / float64(st.TotalBugs)))
        st.TriageCoverage = &cov
    }
    return st, nil
}

func (r *Repository) Trends(ctx context.Context, days int) (domain.BugTrends, error) {
    cutoff := time.Now().UTC().AddDate(0, 0, -days)
    tr := domain.BugTrends{
        DailyCreated:   []domain.TrendPoint{},
        DailyResolved:  []domain.TrendPoint{},
        StatusOverTime: []domain.TrendPoint{},
    }

    var err error
    if tr.DailyCreated, err = r.trendPoints(ctx, `SELECT created_at::date AS d, COUNT(*)
        FROM bugs WHERE created_at >= $1 GROUP BY d ORDER BY d`, cutoff); err != nil {
        return tr, err
    }
    if tr.DailyResolved, err = r.trendPoints(ctx, `SELECT resolved_at::date AS d, COUNT(*)
        FROM bugs WHERE resolved_at IS NOT NULL AND resolved_at >= $1 GROUP BY d ORDER BY d`, cutoff); err != nil {
        return tr, err
    }

    rows, err := r.db.Pool.Query(ctx, `SELECT date_trunc('week', updated_at)::date AS w, status, COUNT(*)
        FROM bugs WHERE updated_at >= $1 GROUP BY w, status ORDER BY w`, cutoff)
    if err != nil { return tr, err }
    defer rows.Close()
    for rows.Next() {
        var d time.Time
        var status string
        var c int
        if err := rows.Scan(&d, &status, &c); err != nil { return tr, err }
        tr.StatusOverTime = append(tr.StatusOverTime, domain.TrendPoint{Date: d.Format("2006-01-02"), Count: c, Category: status})
    }
    return tr, rows.Err()
}

func (r *Repository) trendPoints(ctx context.Context, q string, cutoff time.Time) ([]domain.TrendPoint, error) {
    rows, err := r.db.Pool.Query(ctx, q, cutoff)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []domain.TrendPoint{}
    for rows.Next() {
        var d time.Time
        var c int
        if err := rows.Scan(&d, &c); err != nil { return nil, err }
        out = append(out, domain.TrendPoint{Date: d.Format("2006-01-02"), Count: c})
    }
    return out, rows.Err()
}

// ResolutionTimes lists per-bug resolution durations (most recent 100) plus
// per-priority averages over everything resolved.
func (r *Repository) ResolutionTimes(ctx context.Context) (domain.ResolutionReport, error) {
    rep := domain.ResolutionReport{
        ResolutionTimes:   []domain.ResolutionEntry{},
        AverageByPriority: map[string]float64{},
    }
    err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM bugs WHERE resolved_at IS NOT NULL`).Scan(&rep.TotalResolved)
    if err != nil { return rep, err }

    rows, err := r.db.Pool.Query(ctx, `SELECT jira_key, COALESCE(priority,''),
            EXTRACT(EPOCH FROM (resolved_at - created_at))/86400.0
        FROM bugs WHERE resolved_at IS NOT NULL ORDER BY resolved_at DESC LIMIT 100`)
    if err != nil { return rep, err }
    defer rows.Close()
    for rows.Next() {
        var e domain.ResolutionEntry
        var days float64
        if err := rows.Scan(&e.JiraKey, &e.Priority, &days); err != nil { return rep, err }
        e.Days = round1(days)
        rep.ResolutionTimes = append(rep.ResolutionTimes, e)
    }
    if err := rows.Err(); err != nil { return rep, err }

    rows2, err := r.db.Pool.Query(ctx, `SELECT COALESCE(priority,'None'),
            AVG(EXTRACT(EPOCH FROM (resolved_at - created_at))/86400.0)
        FROM bugs WHERE resolved_at IS NOT NULL GROUP BY 1`)
    if err != nil { return rep, err }
    defer rows2.Close()
    for rows2.Next() {
        var k string
        var v *float64
        if err := rows2.Scan(&k, &v); err != nil { return rep, err }
        if v != nil { rep.AverageByPriority[k] = round1(*v) }
    }
    return rep, rows2.Err()
}

func (r *Repository) TriageCounts(ctx context.Context) (total, triaged int, err error) {
    err = r.db.Pool.QueryRow(ctx, `SELECT COUNT(*), COUNT(*) FILTER (WHERE triaged_at IS NOT NULL) FROM bugs`).
        Scan(&total, &triaged)
    return total, triaged, err
}

func (r *Repository) TriageGroups(ctx context.Context) (byCategory, byTeam map[string]int, err error) {
    if byCategory, err = r.groupCount(ctx, `SELECT triage_category, COUNT(*) FROM bugs WHERE triage_category IS NOT NULL GROUP BY 1`); err != nil {
        return nil, nil, err
    }
    if byTeam, err = r.groupCount(ctx, `SELECT triage_team, COUNT(*) FROM bugs WHERE triage_team IS NOT NULL GROUP BY 1`); err != nil {
        return nil, nil, err
    }
    return byCategory, byTeam, nil
}

func (r *Repository) groupCount(ctx context.Context, q string, args ...any) (map[string]int, error) {
    rows, err := r.db.Pool.Query(ctx, q, args...)
    if err != nil { return nil, err }
    defer rows.Close()
    out := map[string]int{}
    for rows.Next() {
        var k string
        var c int
        if err := rows.Scan(&k, &c); err != nil { return nil, err }
        out[k] = c
    }
    return out, rows.Err()
}
