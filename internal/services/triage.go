package services

import (
    "context"
    "fmt"
    "math"

    "github.com/jamesbringetto/atlassian-bug-dashboard/internal/domain"
)

// Triage classifies one bug. An already classified bug is returned as stored
// unless force is set; the model is not called in that case.
func (s *Service) Triage(ctx context.Context, key string, force bool) (domain.TriageOutcome, error) {
    if !s.llm.Available() { return domain.TriageOutcome{}, ErrTriageUnavailable }

    b, err := s.store.GetBugByKey(ctx, key)
    if err != nil { return domain.TriageOutcome{}, err }
    if b.Triaged() && !force {
        return outcomeFromBug("already_triaged", *b), nil
    }

    res, err := s.llm.TriageBug(ctx, *b)
    if err != nil { return domain.TriageOutcome{}, fmt.Errorf("triage failed: %w", err) }
    at, err := s.store.SetTriage(ctx, key, res)
    if err != nil { return domain.TriageOutcome{}, err }
    return domain.TriageOutcome{Status: "triaged", JiraKey: key, TriagedAt: at, Triage: res}, nil
}

// BatchTriage classifies up to limit untriaged bugs, oldest first.
func (s *Service) BatchTriage(ctx context.Context, limit int) (domain.BatchTriageSummary, error) {
    if !s.llm.Available() { return domain.BatchTriageSummary{}, ErrTriageUnavailable }

    bugs, err := s.store.UntriagedBugs(ctx, limit)
    if err != nil { return domain.BatchTriageSummary{}, err }
    out := domain.BatchTriageSummary{Status: "success"}
    if len(bugs) == 0 {
        out.Message = "No untriaged bugs found"
        return out, nil
    }
    for _, b := range bugs {
        if err := s.classify(ctx, b); err != nil {
            s.log.Warn().Err(err).Str("key", b.JiraKey).Msg("triage failed")
            out.Errors++
            continue
        }
        out.Triaged++
    }
    remaining, err := s.store.CountUntriaged(ctx)
    if err != nil { return out, err }
    out.Remaining = remaining
    out.Message = fmt.Sprintf("Triaged %d bugs, %d remaining", out.Triaged, out.Remaining)
    return out, nil
}

func (s *Service) TriageStatus(ctx context.Context) (domain.TriageStatusReport, error) {
    total, triaged, err := s.store.TriageCounts(ctx)
    if err != nil { return domain.TriageStatusReport{}, err }
    byCat, byTeam, err := s.store.TriageGroups(ctx)
    if err != nil { return domain.TriageStatusReport{}, err }

    rep := domain.TriageStatusReport{
        ServiceAvailable: s.llm.Available(),
        TriageEnabled:    s.cfg.TriageEnabled,
        Statistics: domain.TriageStats{
            TotalBugs:     total,
            TriagedBugs:   triaged,
            UntriagedBugs: total - triaged,
        },
        ByCategory: byCat,
        ByTeam:     byTeam,
    }
    if total > 0 {
        rep.Statistics.TriageRate = math.Round(float64(triaged)/float64(total)*1000) / 10
    }
    return rep, nil
}

func (s *Service) classify(ctx context.Context, b domain.Bug) error {
    res, err := s.llm.TriageBug(ctx, b)
    if err != nil { return err }
    _, err = s.store.SetTriage(ctx, b.JiraKey, res)
    return err
}

func outcomeFromBug(status string, b domain.Bug) domain.TriageOutcome {
    conf := 0.0
    if b.TriageConfidence != nil { conf = *b.TriageConfidence }
    tags := b.TriageTags
    if tags == nil { tags = []string{} }
    return domain.TriageOutcome{
        Status:    status,
        JiraKey:   b.JiraKey,
        TriagedAt: b.TriagedAt,
        Triage: domain.TriageResult{
            Category:   b.TriageCategory,
            Priority:   b.TriagePriority,
            Urgency:    b.TriageUrgency,
            Team:       b.TriageTeam,
            Tags:       tags,
            Confidence: conf,
            Reasoning:  b.TriageReasoning,
        },
    }
}
