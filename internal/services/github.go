package services

import (
    "context"
    "errors"
    "fmt"

    "github.com/jamesbringetto/atlassian-bug-dashboard/internal/domain"
    "github.com/jamesbringetto/atlassian-bug-dashboard/internal/repo"
)

// SyncCommits ingests the repository's recent commits, refreshes stored
// rows by sha and links each commit to the bugs its message references.
func (s *Service) SyncCommits(ctx context.Context, maxCommits int) (domain.CommitSyncSummary, error) {
    if !s.commits.Available() { return domain.CommitSyncSummary{}, ErrGitHubUnavailable }

    raw, err := s.commits.ListCommits(ctx, maxCommits)
    if err != nil {
        return domain.CommitSyncSummary{}, fmt.Errorf("github fetch failed: %w", err)
    }

    sum := domain.CommitSyncSummary{Status: "success", CommitsFetched: len(raw)}
    for _, rc := range raw {
        c := s.commits.ParseCommit(rc)
        if c.SHA == "" {
            s.log.Warn().Msg("skipping commit without sha")
            continue
        }
        id, created, err := s.store.UpsertCommit(ctx, c)
        if err != nil {
            s.log.Warn().Err(err).Str("sha", c.ShortSHA).Msg("commit upsert failed, skipping")
            continue
        }
        if created { sum.CommitsCreated++ } else { sum.CommitsUpdated++ }

        for _, key := range c.JiraKeys {
            bugID, err := s.store.BugIDByKey(ctx, key)
            if errors.Is(err, repo.ErrNotFound) { continue }
            if err != nil {
                s.log.Warn().Err(err).Str("key", key).Msg("bug lookup failed")
                continue
            }
            linked, err := s.store.LinkCommitBug(ctx, id, bugID, key)
            if err != nil {
                s.log.Warn().Err(err).Str("key", key).Msg("commit link failed")
                continue
            }
            if linked { sum.LinksCreated++ }
        }
    }
    sum.Message = fmt.Sprintf("Synced %d commits, created %d bug links", sum.CommitsFetched, sum.LinksCreated)
    return sum, nil
}

func (s *Service) ListCommits(ctx context.Context, page, pageSize int, jiraKey string) (domain.CommitList, error) {
    commits, total, err := s.store.ListCommits(ctx, page, pageSize, jiraKey)
    if err != nil { return domain.CommitList{}, err }
    if commits == nil { commits = []domain.Commit{} }
    return domain.CommitList{
        Commits:    commits,
        Total:      total,
        Page:       page,
        PageSize:   pageSize,
        TotalPages: (total + pageSize - 1) / pageSize,
    }, nil
}

func (s *Service) BugCommits(ctx context.Context, key string) (domain.BugCommits, error) {
    bugID, err := s.store.BugIDByKey(ctx, key)
    if err != nil { return domain.BugCommits{}, err }
    commits, err := s.store.CommitsForBug(ctx, bugID)
    if err != nil { return domain.BugCommits{}, err }
    if commits == nil { commits = []domain.Commit{} }
    return domain.BugCommits{JiraKey: key, CommitCount: len(commits), Commits: commits}, nil
}

func (s *Service) GitHubStatus(ctx context.Context) (domain.GitHubStatusReport, error) {
    st, err := s.store.CommitStats(ctx)
    if err != nil { return domain.GitHubStatusReport{}, err }
    return domain.GitHubStatusReport{
        Available:  s.commits.Available(),
        Repository: s.commits.Repository(),
        Statistics: st,
    }, nil
}
