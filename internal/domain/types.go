package domain

import (
    "encoding/json"
    "time"
)

// ClosedStatuses is the fixed set of status values that count a bug as closed.
// Anything else, including unknown tracker states, counts as open.
var ClosedStatuses = []string{"Closed", "Done", "Resolved"}

func IsClosedStatus(status string) bool {
    for _, s := range ClosedStatuses {
        if s == status { return true }
    }
    return false
}

type Bug struct {
    ID             int64      `json:"id"`
    JiraKey        string     `json:"jira_key"`
    JiraID         string     `json:"jira_id,omitempty"`
    Summary        string     `json:"summary"`
    Description    string     `json:"description,omitempty"`
    Status         string     `json:"status"`
    StatusCategory string     `json:"status_category,omitempty"`
    Priority       string     `json:"priority,omitempty"`
    CreatedAt      time.Time  `json:"created_at"`
    UpdatedAt      time.Time  `json:"updated_at"`
    ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
    Component      string     `json:"component,omitempty"`
    Labels         []string   `json:"labels,omitempty"`
    Reporter       string     `json:"reporter,omitempty"`
    Assignee       string     `json:"assignee,omitempty"`
    Raw            json.RawMessage `json:"-"`
    FetchedAt      time.Time  `json:"fetched_at"`

    TriageCategory   string     `json:"triage_category,omitempty"`
    TriagePriority   string     `json:"triage_priority,omitempty"`
    TriageUrgency    string     `json:"triage_urgency,omitempty"`
    TriageTeam       string     `json:"triage_team,omitempty"`
    TriageTags       []string   `json:"triage_tags,omitempty"`
    TriageConfidence *float64   `json:"triage_confidence,omitempty"`
    TriageReasoning  string     `json:"triage_reasoning,omitempty"`
    TriagedAt        *time.Time `json:"triaged_at,omitempty"`
}

func (b Bug) Triaged() bool { return b.TriagedAt != nil }

// TriageResult is what the classifier returns for one bug.
type TriageResult struct {
    Category   string   `json:"category"`
    Priority   string   `json:"priority"`
    Urgency    string   `json:"urgency"`
    Team       string   `json:"team"`
    Tags       []string `json:"tags"`
    Confidence float64  `json:"confidence"`
    Reasoning  string   `json:"reasoning"`
}

type BugList struct {
    Bugs       []Bug `json:"bugs"`
    Total      int   `json:"total"`
    Page       int   `json:"page"`
    PageSize   int   `json:"page_size"`
    TotalPages int   `json:"total_pages"`
}

type BugStats struct {
    TotalBugs             int            `json:"total_bugs"`
    OpenBugs              int            `json:"open_bugs"`
    ClosedBugs            int            `json:"closed_bugs"`
    AvgResolutionTimeDays *float64       `json:"avg_resolution_time_days"`
    BugsByPriority        map[string]int `json:"bugs_by_priority"`
    BugsByStatus          map[string]int `json:"bugs_by_status"`
    RecentActivityCount   int            `json:"recent_activity_count"`

    BugsByTriageCategory map[string]int `json:"bugs_by_triage_category,omitempty"`
    BugsByTriageTeam     map[string]int `json:"bugs_by_triage_team,omitempty"`
    TriageCoverage       *int           `json:"triage_coverage,omitempty"`
}

type TrendPoint struct {
    Date     string `json:"date"`
    Count    int    `json:"count"`
    Category string `json:"category,omitempty"`
}

type BugTrends struct {
    DailyCreated   []TrendPoint `json:"daily_created"`
    DailyResolved  []TrendPoint `json:"daily_resolved"`
    StatusOverTime []TrendPoint `json:"status_over_time"`
}

type ResolutionEntry struct {
    JiraKey  string  `json:"jira_key"`
    Priority string  `json:"priority"`
    Days     float64 `json:"days"`
}

type ResolutionReport struct {
    ResolutionTimes   []ResolutionEntry  `json:"resolution_times"`
    AverageByPriority map[string]float64 `json:"average_by_priority"`
    TotalResolved     int                `json:"total_resolved"`
}

type SyncSummary struct {
    Status        string `json:"status"`
    TotalFetched  int    `json:"total_fetched"`
    Created       int    `json:"created"`
    Updated       int    `json:"updated"`
    Triaged       int    `json:"triaged"`
    TriageErrors  int    `json:"triage_errors"`
    TriageSkipped int    `json:"triage_skipped"`
    Message       string `json:"message"`
}

type TriageOutcome struct {
    Status    string       `json:"status"`
    JiraKey   string       `json:"jira_key"`
    TriagedAt *time.Time   `json:"triaged_at"`
    Triage    TriageResult `json:"triage"`
}

type BatchTriageSummary struct {
    Status    string `json:"status"`
    Triaged   int    `json:"triaged"`
    Errors    int    `json:"errors"`
    Remaining int    `json:"remaining"`
    Message   string `json:"message"`
}

type TriageStats struct {
    TotalBugs     int     `json:"total_bugs"`
    TriagedBugs   int     `json:"triaged_bugs"`
    UntriagedBugs int     `json:"untriaged_bugs"`
    TriageRate    float64 `json:"triage_rate"`
}

type TriageStatusReport struct {
    ServiceAvailable bool           `json:"service_available"`
    TriageEnabled    bool           `json:"triage_enabled"`
    Statistics       TriageStats    `json:"statistics"`
    ByCategory       map[string]int `json:"by_category"`
    ByTeam           map[string]int `json:"by_team"`
}

type Commit struct {
    ID              int64      `json:"id"`
    SHA             string     `json:"sha"`
    ShortSHA        string     `json:"short_sha"`
    Message         string     `json:"message,omitempty"`
    MessageHeadline string     `json:"message_headline"`
    AuthorName      string     `json:"author_name,omitempty"`
    AuthorEmail     string     `json:"author_email,omitempty"`
    AuthoredAt      *time.Time `json:"authored_at"`
    URL             string     `json:"url,omitempty"`
    JiraKeys        []string   `json:"jira_keys"`
}

type CommitList struct {
    Commits    []Commit `json:"commits"`
    Total      int      `json:"total"`
    Page       int      `json:"page"`
    PageSize   int      `json:"page_size"`
    TotalPages int      `json:"total_pages"`
}

type BugCommits struct {
    JiraKey     string   `json:"jira_key"`
    CommitCount int      `json:"commit_count"`
    Commits     []Commit `json:"commits"`
}

type CommitSyncSummary struct {
    Status         string `json:"status"`
    CommitsFetched int    `json:"commits_fetched"`
    CommitsCreated int    `json:"commits_created"`
    CommitsUpdated int    `json:"commits_updated"`
    LinksCreated   int    `json:"links_created"`
    Message        string `json:"message"`
}

type GitHubStats struct {
    TotalCommits        int `json:"total_commits"`
    CommitsWithJiraKeys int `json:"commits_with_jira_keys"`
    TotalLinks          int `json:"total_links"`
    BugsWithCommits     int `json:"bugs_with_commits"`
}

type GitHubStatusReport struct {
    Available  bool        `json:"available"`
    Repository string      `json:"repository"`
    Statistics GitHubStats `json:"statistics"`
}
