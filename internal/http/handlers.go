/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
    "context"
    "errors"
    "fmt"
    "math"
    "net/http"
    "strconv"

    "github.com/gin-gonic/gin"
    "github.com/jamesbringetto/atlassian-bug-dashboard/internal/config"
    "github.com/jamesbringetto/atlassian-bug-dashboard/internal/domain"
    "github.com/jamesbringetto/atlassian-bug-dashboard/internal/repo"
    "github.com/jamesbringetto/atlassian-bug-dashboard/internal/services"
    "github.com/rs/zerolog"
)

type service interface {
    Ping(ctx context.Context) error
    Sync(ctx context.Context, fetchAll, autoTriage bool, triageLimit int) (domain.SyncSummary, error)
    ListBugs(ctx context.Context, page, pageSize int, status, priority, search string) (domain.BugList, error)
    GetBug(ctx context.Context, key string) (*domain.Bug, error)
    Triage(ctx context.Context, key string, force bool) (domain.TriageOutcome, error)
    BatchTriage(ctx context.Context, limit int) (domain.BatchTriageSummary, error)
    TriageStatus(ctx context.Context) (domain.TriageStatusReport, error)
    Statuses(ctx context.Context) ([]string, error)
    Priorities(ctx context.Context) ([]string, error)
    Overview(ctx context.Context) (domain.BugStats, error)
    Trends(ctx context.Context, days int) (domain.BugTrends, error)
    ResolutionTimes(ctx context.Context) (domain.ResolutionReport, error)
    SyncCommits(ctx context.Context, maxCommits int) (domain.CommitSyncSummary, error)
    ListCommits(ctx context.Context, page, pageSize int, jiraKey string) (domain.CommitList, error)
    BugCommits(ctx context.Context, key string) (domain.BugCommits, error)
    GitHubStatus(ctx context.Context) (domain.GitHubStatusReport, error)
}

type Handlers struct {
    cfg config.Config
    log zerolog.Logger
    svc service
}

func NewHandlers(cfg config.Config, log zerolog.Logger, svc any) *Handlers {
    return &Handlers{cfg: cfg, log: log, svc: svc.(service)}
}

// intQuery reads an integer query parameter, rejecting the request with a
// 400 when the value does not parse or falls outside [lo, hi].
func intQuery(c *gin.Context, name string, def, lo, hi int) (int, bool) {
    raw := c.Query(name)
    if raw == "" { return def, true }
    v, err := strconv.Atoi(raw)
    if err != nil || v < lo || v > hi {
        c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
        return 0, false
    }
    return v, true
}

func boolQuery(c *gin.Context, name string, def bool) (bool, bool) {
    raw := c.Query(name)
    if raw == "" { return def, true }
    v, err := strconv.ParseBool(raw)
    if err != nil {
        c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
        return false, false
    }
    return v, true
}

func (h *Handlers) Health(c *gin.Context) {
    out := gin.H{"status": "healthy", "database": "connected", "api": "running"}
    if err := h.svc.Ping(c.Request.Context()); err != nil {
        out["status"] = "unhealthy"
        out["database"] = "error: " + err.Error()
    }
    c.JSON(http.StatusOK, out)
}

func (h *Handlers) ListBugs(c *gin.Context) {
    page, ok := intQuery(c, "page", 1, 1, math.MaxInt32)
    if !ok { return }
    size, ok := intQuery(c, "page_size", 50, 1, 100)
    if !ok { return }
    out, err := h.svc.ListBugs(c.Request.Context(), page, size, c.Query("status"), c.Query("priority"), c.Query("search"))
    if err != nil {
        c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
        return
    }
    c.JSON(http.StatusOK, out)
}

func (h *Handlers) GetBug(c *gin.Context) {
    key := c.Param("key")
    b, err := h.svc.GetBug(c.Request.Context(), key)
    if errors.Is(err, repo.ErrNotFound) {
        c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Bug %s not found", key)})
        return
    }
    if err != nil {
        c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
        return
    }
    c.JSON(http.StatusOK, b)
}

func (h *Handlers) SyncBugs(c *gin.Context) {
    fetchAll, ok := boolQuery(c, "fetch_all", true)
    if !ok { return }
    autoTriage, ok := boolQuery(c, "auto_triage", true)
    if !ok { return }
    limit, ok := intQuery(c, "triage_limit", h.cfg.TriageLimit, 0, 100)
    if !ok { return }

    sum, err := h.svc.Sync(c.Request.Context(), fetchAll, autoTriage, limit)
    if err != nil {
        c.JSON(http.StatusBadGateway, gin.H{"error": "Sync failed: " + err.Error()})
        return
    }
    c.JSON(http.StatusOK, sum)
}

func (h *Handlers) TriageBug(c *gin.Context) {
    force, ok := boolQuery(c, "force", false)
    if !ok { return }
    key := c.Param("key")

    out, err := h.svc.Triage(c.Request.Context(), key, force)
    switch {
    case errors.Is(err, services.ErrTriageUnavailable):
        c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Triage service unavailable. Check OPENAI_API_KEY configuration."})
    case errors.Is(err, repo.ErrNotFound):
        c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Bug %s not found", key)})
    case err != nil:
        c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    default:
        c.JSON(http.StatusOK, out)
    }
}

func (h *Handlers) BatchTriage(c *gin.Context) {
    limit, ok := intQuery(c, "limit", 20, 1, 100)
    if !ok { return }

    out, err := h.svc.BatchTriage(c.Request.Context(), limit)
    switch {
    case errors.Is(err, services.ErrTriageUnavailable):
        c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Triage service unavailable. Check OPENAI_API_KEY configuration."})
    case err != nil:
        c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
    default:
        c.JSON(http.StatusOK, out)
    }
}

func (h *Handlers) TriageStatus(c *gin.Context) {
    out, err := h.svc.TriageStatus(c.Request.Context())
    if err != nil {
        c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
        return
    }
    c.JSON(http.StatusOK, out)
}

func (h *Handlers) ListStatuses(c *gin.Context) {
    vals, err := h.svc.Statuses(c.Request.Context())
    if err != nil {
        c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
        return
    }
    if vals == nil { vals = []string{} }
    c.JSON(http.StatusOK, gin.H{"statuses": vals})
}

func (h *Handlers) ListPriorities(c *gin.Context) {
    vals, err := h.svc.Priorities(c.Request.Context())
    if err != nil {
        c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
        return
    }
    if vals == nil { vals = []string{} }
    c.JSON(http.StatusOK, gin.H{"priorities": vals})
}

func (h *Handlers) Overview(c *gin.Context) {
    out, err := h.svc.Overview(c.Request.Context())
    if err != nil {
        c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
        return
    }
    c.JSON(http.StatusOK, out)
}

func (h *Handlers) Trends(c *gin.Context) {
    days, ok := intQuery(c, "days", 30, 7, 365)
    if !ok { return }
    out, err := h.svc.Trends(c.Request.Context(), days)
    if err != nil {
        c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
        return
    }
    c.JSON(http.StatusOK, out)
}

func (h *Handlers) ResolutionTimes(c *gin.Context) {
    out, err := h.svc.ResolutionTimes(c.Request.Context())
    if err != nil {
        c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
        return
    }
    c.JSON(http.StatusOK, out)
}

func (h *Handlers) SyncCommits(c *gin.Context) {
    max, ok := intQuery(c, "max_commits", 100, 1, 500)
    if !ok { return }

    out, err := h.svc.SyncCommits(c.Request.Context(), max)
    switch {
    case errors.Is(err, services.ErrGitHubUnavailable):
        c.JSON(http.StatusServiceUnavailable, gin.H{"error": "GitHub integration unavailable. Set GITHUB_TOKEN environment variable."})
    case err != nil:
        c.JSON(http.StatusBadGateway, gin.H{"error": "GitHub sync failed: " + err.Error()})
    default:
        c.JSON(http.StatusOK, out)
    }
}

func (h *Handlers) ListCommits(c *gin.Context) {
    page, ok := intQuery(c, "page", 1, 1, math.MaxInt32)
    if !ok { return }
    size, ok := intQuery(c, "page_size", 20, 1, 100)
    if !ok { return }
    out, err := h.svc.ListCommits(c.Request.Context(), page, size, c.Query("jira_key"))
    if err != nil {
        c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
        return
    }
    c.JSON(http.StatusOK, out)
}

func (h *Handlers) BugCommits(c *gin.Context) {
    key := c.Param("key")
    out, err := h.svc.BugCommits(c.Request.Context(), key)
    if errors.Is(err, repo.ErrNotFound) {
        c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Bug %s not found", key)})
        return
    }
    if err != nil {
        c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
        return
    }
    c.JSON(http.StatusOK, out)
}

func (h *Handlers) GitHubStatus(c *gin.Context) {
    out, err := h.svc.GitHubStatus(c.Request.Context())
    if err != nil {
        c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
        return
    }
    c.JSON(http.StatusOK, out)
}
