/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
    "context"
    "errors"
    "fmt"
    "time"

    "github.com/jamesbringetto/atlassian-bug-dashboard/internal/adapters/github"
    "github.com/jamesbringetto/atlassian-bug-dashboard/internal/adapters/jira"
    "github.com/jamesbringetto/atlassian-bug-dashboard/internal/config"
    "github.com/jamesbringetto/atlassian-bug-dashboard/internal/domain"
    "github.com/rs/zerolog"
)

var (
    ErrTriageUnavailable = errors.New("triage service unavailable")
    ErrGitHubUnavailable = errors.New("github integration unavailable")
)

type Tracker interface {
    SearchBugs(ctx context.Context, fetchAll bool) ([]jira.Issue, error)
}

type LLM interface {
    TriageBug(ctx context.Context, b domain.Bug) (domain.TriageResult, error)
    Available() bool
}

type CommitSource interface {
    ListCommits(ctx context.Context, max int) ([]github.Commit, error)
    ParseCommit(rc github.Commit) domain.Commit
    Available() bool
    Repository() string
}

type Store interface {
    Ping(ctx context.Context) error
    UpsertBug(ctx context.Context, b domain.Bug) (int64, bool, *time.Time, error)
    GetBugByKey(ctx context.Context, key string) (*domain.Bug, error)
    ListBugs(ctx context.Context, page, pageSize int, status, priority, search string) ([]domain.Bug, int, error)
    SetTriage(ctx context.Context, key string, t domain.TriageResult) (*time.Time, error)
    UntriagedBugs(ctx context.Context, limit int) ([]domain.Bug, error)
    CountUntriaged(ctx context.Context) (int, error)
    DistinctStatuses(ctx context.Context) ([]string, error)
    DistinctPriorities(ctx context.Context) ([]string, error)
    Overview(ctx context.Context) (domain.BugStats, error)
    Trends(ctx context.Context, days int) (domain.BugTrends, error)
    ResolutionTimes(ctx context.Context) (domain.ResolutionReport, error)
    TriageCounts(ctx context.Context) (total, triaged int, err error)
    TriageGroups(ctx context.Context) (byCategory, byTeam map[string]int, err error)
    UpsertCommit(ctx context.Context, c domain.Commit) (int64, bool, error)
    BugIDByKey(ctx context.Context, key string) (int64, error)
    LinkCommitBug(ctx context.Context, commitID, bugID int64, jiraKey string) (bool, error)
    ListCommits(ctx context.Context, page, pageSize int, jiraKey string) ([]domain.Commit, int, error)
    CommitsForBug(ctx context.Context, bugID int64) ([]domain.Commit, error)
    CommitStats(ctx context.Context) (domain.GitHubStats, error)
}

type Service struct {
    cfg     config.Config
    log     zerolog.Logger
    store   Store
    tracker Tracker
    llm     LLM
    commits CommitSource
}

func New(cfg config.Config, log zerolog.Logger, store Store, tracker Tracker, llm LLM, commits CommitSource) *Service {
    return &Service{cfg: cfg, log: log, store: store, tracker: tracker, llm: llm, commits: commits}
}

// Sync pulls issues from the tracker and upserts them one at a time. A bug
// that fails to parse or write is logged and skipped; a failed tracker fetch
// aborts the whole pass, keeping whatever was already written. When
// autoTriage is set, bugs still lacking a classification are triaged
// synchronously afterwards, up to triageLimit (0 means unlimited).
func (s *Service) Sync(ctx context.Context, fetchAll, autoTriage bool, triageLimit int) (domain.SyncSummary, error) {
    issues, err := s.tracker.SearchBugs(ctx, fetchAll)
    if err != nil {
        return domain.SyncSummary{}, fmt.Errorf("tracker search failed: %w", err)
    }

    sum := domain.SyncSummary{Status: "success", TotalFetched: len(issues)}
    var queue []domain.Bug
    for _, is := range issues {
        b, err := jira.ParseBug(is)
        if err != nil {
            s.log.Warn().Err(err).Str("key", is.Key).Msg("skipping malformed issue")
            continue
        }
        _, created, triagedAt, err := s.store.UpsertBug(ctx, b)
        if err != nil {
            s.log.Warn().Err(err).Str("key", b.JiraKey).Msg("upsert failed, skipping")
            continue
        }
        if created { sum.Created++ } else { sum.Updated++ }
        if autoTriage && triagedAt == nil { queue = append(queue, b) }
    }

    if autoTriage && s.cfg.TriageEnabled && s.llm.Available() {
        for _, b := range queue {
            if triageLimit > 0 && sum.Triaged+sum.TriageErrors >= triageLimit {
                sum.TriageSkipped = len(queue) - sum.Triaged - sum.TriageErrors
                break
            }
            if err := s.classify(ctx, b); err != nil {
                s.log.Warn().Err(err).Str("key", b.JiraKey).Msg("triage failed")
                sum.TriageErrors++
                continue
            }
            sum.Triaged++
        }
    }

    sum.Message = fmt.Sprintf("Synced %d bugs from Jira, triaged %d bugs", sum.TotalFetched, sum.Triaged)
    if sum.TriageSkipped > 0 {
        sum.Message += fmt.Sprintf(" (%d skipped due to limit)", sum.TriageSkipped)
    }
    s.log.Info().Int("fetched", sum.TotalFetched).Int("created", sum.Created).
        Int("updated", sum.Updated).Int("triaged", sum.Triaged).Msg("sync done")
    return sum, nil
}

func (s *Service) ListBugs(ctx context.Context, page, pageSize int, status, priority, search string) (domain.BugList, error) {
    bugs, total, err := s.store.ListBugs(ctx, page, pageSize, status, priority, search)
    if err != nil { return domain.BugList{}, err }
    if bugs == nil { bugs = []domain.Bug{} }
    return domain.BugList{
        Bugs:       bugs,
        Total:      total,
        Page:       page,
        PageSize:   pageSize,
        TotalPages: (total + pageSize - 1) / pageSize,
    }, nil
}

func (s *Service) GetBug(ctx context.Context, key string) (*domain.Bug, error) {
    return s.store.GetBugByKey(ctx, key)
}

func (s *Service) Statuses(ctx context.Context) ([]string, error) {
    return s.store.DistinctStatuses(ctx)
}

func (s *Service) Priorities(ctx context.Context) ([]string, error) {
    return s.store.DistinctPriorities(ctx)
}

func (s *Service) Overview(ctx context.Context) (domain.BugStats, error) {
    return s.store.Overview(ctx)
}

func (s *Service) Trends(ctx context.Context, days int) (domain.BugTrends, error) {
    return s.store.Trends(ctx, days)
}

func (s *Service) ResolutionTimes(ctx context.Context) (domain.ResolutionReport, error) {
    return s.store.ResolutionTimes(ctx)
}

func (s *Service) Ping(ctx context.Context) error { return s.store.Ping(ctx) }
