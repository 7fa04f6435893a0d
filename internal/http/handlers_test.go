package http

import (
    "context"
    "encoding/json"
    "errors"
    "net/http/httptest"
    "strings"
    "testing"

    "github.com/jamesbringetto/atlassian-bug-dashboard/internal/config"
    "github.com/jamesbringetto/atlassian-bug-dashboard/internal/domain"
    "github.com/jamesbringetto/atlassian-bug-dashboard/internal/repo"
    "github.com/jamesbringetto/atlassian-bug-dashboard/internal/services"
    "github.com/rs/zerolog"
)

type fakeService struct {
    pingErr error

    syncSum       domain.SyncSummary
    syncErr       error
    gotFetchAll   bool
    gotAutoTriage bool
    gotLimit      int
    syncCalls     int

    bugList     domain.BugList
    listErr     error
    gotPage     int
    gotPageSize int
    gotStatus   string
    gotPriority string
    gotSearch   string

    bug    *domain.Bug
    getErr error

    triageOut domain.TriageOutcome
    triageErr error
    gotForce  bool

    batchOut      domain.BatchTriageSummary
    batchErr      error
    gotBatchLimit int

    statusRep domain.TriageStatusReport

    statuses   []string
    priorities []string

    stats      domain.BugStats
    trends     domain.BugTrends
    gotDays    int
    resolution domain.ResolutionReport

    commitSum  domain.CommitSyncSummary
    commitErr  error
    gotMax     int
    commitList domain.CommitList
    gotJiraKey string
    bugCommits domain.BugCommits
    bcErr      error
    ghStatus   domain.GitHubStatusReport
}

func (f *fakeService) Ping(ctx context.Context) error { return f.pingErr }

func (f *fakeService) Sync(ctx context.Context, fetchAll, autoTriage bool, triageLimit int) (domain.SyncSummary, error) {
    f.syncCalls++
    f.gotFetchAll, f.gotAutoTriage, f.gotLimit = fetchAll, autoTriage, triageLimit
    return f.syncSum, f.syncErr
}

func (f *fakeService) ListBugs(ctx context.Context, page, pageSize int, status, priority, search string) (domain.BugList, error) {
    f.gotPage, f.gotPageSize = page, pageSize
    f.gotStatus, f.gotPriority, f.gotSearch = status, priority, search
    return f.bugList, f.listErr
}

func (f *fakeService) GetBug(ctx context.Context, key string) (*domain.Bug, error) {
    return f.bug, f.getErr
}

func (f *fakeService) Triage(ctx context.Context, key string, force bool) (domain.TriageOutcome, error) {
    f.gotForce = force
    return f.triageOut, f.triageErr
}

func (f *fakeService) BatchTriage(ctx context.Context, limit int) (domain.BatchTriageSummary, error) {
    f.gotBatchLimit = limit
    return f.batchOut, f.batchErr
}

func (f *fakeService) TriageStatus(ctx context.Context) (domain.TriageStatusReport, error) {
    return f.statusRep, nil
}

func (f *fakeService) Statuses(ctx context.Context) ([]string, error) { return f.statuses, nil }

func (f *fakeService) Priorities(ctx context.Context) ([]string, error) { return f.priorities, nil }

func (f *fakeService) Overview(ctx context.Context) (domain.BugStats, error) { return f.stats, nil }

func (f *fakeService) Trends(ctx context.Context, days int) (domain.BugTrends, error) {
    f.gotDays = days
    return f.trends, nil
}

func (f *fakeService) ResolutionTimes(ctx context.Context) (domain.ResolutionReport, error) {
    return f.resolution, nil
}

func (f *fakeService) SyncCommits(ctx context.Context, maxCommits int) (domain.CommitSyncSummary, error) {
    f.gotMax = maxCommits
    return f.commitSum, f.commitErr
}

func (f *fakeService) ListCommits(ctx context.Context, page, pageSize int, jiraKey string) (domain.CommitList, error) {
    f.gotPage, f.gotPageSize, f.gotJiraKey = page, pageSize, jiraKey
    return f.commitList, nil
}

func (f *fakeService) BugCommits(ctx context.Context, key string) (domain.BugCommits, error) {
    return f.bugCommits, f.bcErr
}

func (f *fakeService) GitHubStatus(ctx context.Context) (domain.GitHubStatusReport, error) {
    return f.ghStatus, nil
}

func serve(t *testing.T, svc *fakeService, method, target string) (*httptest.ResponseRecorder, map[string]any) {
    t.Helper()
    cfg := config.Config{AppEnv: "test", TriageLimit: 20}
    r := NewRouter(cfg, zerolog.Nop(), svc)
    w := httptest.NewRecorder()
    req := httptest.NewRequest(method, target, nil)
    r.ServeHTTP(w, req)

    var body map[string]any
    if w.Body.Len() > 0 {
        if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
            t.Fatalf("response not JSON: %v: %s", err, w.Body.String())
        }
    }
    return w, body
}

func TestHealth_Healthy(t *testing.T) {
    w, body := serve(t, &fakeService{}, "GET", "/health")
    if w.Code != 200 { t.Fatalf("code = %d", w.Code) }
    if body["status"] != "healthy" || body["database"] != "connected" || body["api"] != "running" {
        t.Fatalf("body = %#v", body)
    }
}

func TestHealth_DatabaseDownStill200(t *testing.T) {
    w, body := serve(t, &fakeService{pingErr: errors.New("dial refused")}, "GET", "/health")
    if w.Code != 200 { t.Fatalf("code = %d", w.Code) }
    if body["status"] != "unhealthy" || body["database"] != "error: dial refused" {
        t.Fatalf("body = %#v", body)
    }
}

func TestListBugs_Defaults(t *testing.T) {
    svc := &fakeService{bugList: domain.BugList{Bugs: []domain.Bug{}, Page: 1, PageSize: 50}}
    w, _ := serve(t, svc, "GET", "/bugs")
    if w.Code != 200 { t.Fatalf("code = %d", w.Code) }
    if svc.gotPage != 1 || svc.gotPageSize != 50 {
        t.Fatalf("page=%d size=%d", svc.gotPage, svc.gotPageSize)
    }
}

func TestListBugs_PassesFilters(t *testing.T) {
    svc := &fakeService{}
    serve(t, svc, "GET", "/bugs?page=3&page_size=10&status=Open&priority=High&search=timeout")
    if svc.gotPage != 3 || svc.gotPageSize != 10 || svc.gotStatus != "Open" ||
        svc.gotPriority != "High" || svc.gotSearch != "timeout" {
        t.Fatalf("params = %#v", svc)
    }
}

func TestListBugs_RejectsBadPagination(t *testing.T) {
    for _, target := range []string{"/bugs?page=0", "/bugs?page=x", "/bugs?page_size=0", "/bugs?page_size=101"} {
        svc := &fakeService{}
        w, body := serve(t, svc, "GET", target)
        if w.Code != 400 { t.Fatalf("%s: code = %d", target, w.Code) }
        if msg, _ := body["error"].(string); msg == "" { t.Fatalf("%s: body = %#v", target, body) }
        if svc.gotPage != 0 && svc.gotPageSize != 0 {
            t.Fatalf("%s: service reached on invalid input", target)
        }
    }
}

func TestGetBug_NotFound(t *testing.T) {
    svc := &fakeService{getErr: repo.ErrNotFound}
    w, body := serve(t, svc, "GET", "/bugs/MIG-404")
    if w.Code != 404 { t.Fatalf("code = %d", w.Code) }
    if body["error"] != "Bug MIG-404 not found" { t.Fatalf("body = %#v", body) }
}

func TestGetBug_Found(t *testing.T) {
    svc := &fakeService{bug: &domain.Bug{JiraKey: "MIG-1", Summary: "payment fails", Status: "Open"}}
    w, body := serve(t, svc, "GET", "/bugs/MIG-1")
    if w.Code != 200 { t.Fatalf("code = %d", w.Code) }
    if body["jira_key"] != "MIG-1" || body["status"] != "Open" {
        t.Fatalf("body = %#v", body)
    }
}

func TestSyncBugs_Defaults(t *testing.T) {
    svc := &fakeService{syncSum: domain.SyncSummary{Status: "success"}}
    w, _ := serve(t, svc, "POST", "/bugs/sync")
    if w.Code != 200 { t.Fatalf("code = %d", w.Code) }
    if !svc.gotFetchAll || !svc.gotAutoTriage || svc.gotLimit != 20 {
        t.Fatalf("fetchAll=%v autoTriage=%v limit=%d", svc.gotFetchAll, svc.gotAutoTriage, svc.gotLimit)
    }
}

func TestSyncBugs_ParamsParsed(t *testing.T) {
    svc := &fakeService{}
    serve(t, svc, "POST", "/bugs/sync?fetch_all=false&auto_triage=false&triage_limit=5")
    if svc.gotFetchAll || svc.gotAutoTriage || svc.gotLimit != 5 {
        t.Fatalf("fetchAll=%v autoTriage=%v limit=%d", svc.gotFetchAll, svc.gotAutoTriage, svc.gotLimit)
    }
}

func TestSyncBugs_RejectsBadParams(t *testing.T) {
    for _, target := range []string{"/bugs/sync?fetch_all=maybe", "/bugs/sync?triage_limit=101", "/bugs/sync?triage_limit=-1"} {
        svc := &fakeService{}
        w, _ := serve(t, svc, "POST", target)
        if w.Code != 400 { t.Fatalf("%s: code = %d", target, w.Code) }
        if svc.syncCalls != 0 { t.Fatalf("%s: sync ran on invalid input", target) }
    }
}

func TestSyncBugs_UpstreamFailure(t *testing.T) {
    svc := &fakeService{syncErr: errors.New("tracker search failed: status=503")}
    w, body := serve(t, svc, "POST", "/bugs/sync")
    if w.Code != 502 { t.Fatalf("code = %d", w.Code) }
    if msg, _ := body["error"].(string); !strings.HasPrefix(msg, "Sync failed: ") {
        t.Fatalf("body = %#v", body)
    }
}

func TestTriageBug_Unavailable(t *testing.T) {
    svc := &fakeService{triageErr: services.ErrTriageUnavailable}
    w, body := serve(t, svc, "POST", "/bugs/MIG-1/triage")
    if w.Code != 503 { t.Fatalf("code = %d", w.Code) }
    if msg, _ := body["error"].(string); !strings.Contains(msg, "OPENAI_API_KEY") {
        t.Fatalf("body = %#v", body)
    }
}

func TestTriageBug_NotFound(t *testing.T) {
    svc := &fakeService{triageErr: repo.ErrNotFound}
    w, body := serve(t, svc, "POST", "/bugs/MIG-404/triage")
    if w.Code != 404 { t.Fatalf("code = %d", w.Code) }
    if body["error"] != "Bug MIG-404 not found" { t.Fatalf("body = %#v", body) }
}

func TestTriageBug_ForceParam(t *testing.T) {
    svc := &fakeService{triageOut: domain.TriageOutcome{Status: "triaged"}}
    w, _ := serve(t, svc, "POST", "/bugs/MIG-1/triage?force=true")
    if w.Code != 200 { t.Fatalf("code = %d", w.Code) }
    if !svc.gotForce { t.Fatalf("force not passed through") }
}

func TestBatchTriage_LimitValidated(t *testing.T) {
    for _, target := range []string{"/bugs/triage/batch?limit=0", "/bugs/triage/batch?limit=101"} {
        w, _ := serve(t, &fakeService{}, "POST", target)
        if w.Code != 400 { t.Fatalf("%s: code = %d", target, w.Code) }
    }
    svc := &fakeService{batchOut: domain.BatchTriageSummary{Status: "success"}}
    w, _ := serve(t, svc, "POST", "/bugs/triage/batch")
    if w.Code != 200 || svc.gotBatchLimit != 20 {
        t.Fatalf("code = %d limit = %d", w.Code, svc.gotBatchLimit)
    }
}

func TestBatchTriage_Unavailable(t *testing.T) {
    svc := &fakeService{batchErr: services.ErrTriageUnavailable}
    w, _ := serve(t, svc, "POST", "/bugs/triage/batch")
    if w.Code != 503 { t.Fatalf("code = %d", w.Code) }
}

func TestListStatuses_WrapsValues(t *testing.T) {
    svc := &fakeService{statuses: []string{"Open", "Closed"}}
    w, body := serve(t, svc, "GET", "/bugs/statuses/list")
    if w.Code != 200 { t.Fatalf("code = %d", w.Code) }
    vals, ok := body["statuses"].([]any)
    if !ok || len(vals) != 2 { t.Fatalf("body = %#v", body) }
}

func TestListPriorities_EmptyIsList(t *testing.T) {
    w, body := serve(t, &fakeService{}, "GET", "/bugs/priorities/list")
    if w.Code != 200 { t.Fatalf("code = %d", w.Code) }
    if _, ok := body["priorities"].([]any); !ok {
        t.Fatalf("priorities should be a list: %#v", body)
    }
}

func TestOverview_SerializesStats(t *testing.T) {
    avg := 3.0
    svc := &fakeService{stats: domain.BugStats{
        TotalBugs: 2, OpenBugs: 1, ClosedBugs: 1,
        AvgResolutionTimeDays: &avg,
        BugsByPriority:        map[string]int{"High": 2},
        BugsByStatus:          map[string]int{"Open": 1, "Closed": 1},
    }}
    w, body := serve(t, svc, "GET", "/analytics/overview")
    if w.Code != 200 { t.Fatalf("code = %d", w.Code) }
    if body["total_bugs"] != float64(2) || body["open_bugs"] != float64(1) || body["avg_resolution_time_days"] != float64(3) {
        t.Fatalf("body = %#v", body)
    }
    if _, present := body["triage_coverage"]; present {
        t.Fatalf("coverage must be omitted when unset: %#v", body)
    }
}

func TestTrends_DaysValidated(t *testing.T) {
    for _, target := range []string{"/analytics/trends?days=6", "/analytics/trends?days=366"} {
        w, _ := serve(t, &fakeService{}, "GET", target)
        if w.Code != 400 { t.Fatalf("%s: code = %d", target, w.Code) }
    }
    svc := &fakeService{}
    serve(t, svc, "GET", "/analytics/trends")
    if svc.gotDays != 30 { t.Fatalf("days = %d", svc.gotDays) }
}

func TestSyncCommits_Unavailable(t *testing.T) {
    svc := &fakeService{commitErr: services.ErrGitHubUnavailable}
    w, body := serve(t, svc, "POST", "/github/sync")
    if w.Code != 503 { t.Fatalf("code = %d", w.Code) }
    if msg, _ := body["error"].(string); !strings.Contains(msg, "GITHUB_TOKEN") {
        t.Fatalf("body = %#v", body)
    }
}

func TestSyncCommits_MaxValidated(t *testing.T) {
    w, _ := serve(t, &fakeService{}, "POST", "/github/sync?max_commits=501")
    if w.Code != 400 { t.Fatalf("code = %d", w.Code) }
    svc := &fakeService{}
    serve(t, svc, "POST", "/github/sync")
    if svc.gotMax != 100 { t.Fatalf("max = %d", svc.gotMax) }
}

func TestListCommits_JiraKeyFilterPassed(t *testing.T) {
    svc := &fakeService{}
    serve(t, svc, "GET", "/github/commits?jira_key=MIG-1")
    if svc.gotJiraKey != "MIG-1" || svc.gotPageSize != 20 {
        t.Fatalf("key=%q size=%d", svc.gotJiraKey, svc.gotPageSize)
    }
}

func TestBugCommits_NotFound(t *testing.T) {
    svc := &fakeService{bcErr: repo.ErrNotFound}
    w, body := serve(t, svc, "GET", "/bugs/MIG-404/commits")
    if w.Code != 404 { t.Fatalf("code = %d", w.Code) }
    if body["error"] != "Bug MIG-404 not found" { t.Fatalf("body = %#v", body) }
}
