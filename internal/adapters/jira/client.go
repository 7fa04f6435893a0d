/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jira

import (
    "bytes"
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "net/url"
    "strings"
    "time"

    "github.com/jamesbringetto/atlassian-bug-dashboard/internal/config"
    "github.com/jamesbringetto/atlassian-bug-dashboard/internal/domain"
    "github.com/rs/zerolog"
)

const searchFields = "summary,description,status,priority,created,updated,resolutiondate,components,labels,reporter,assignee"

type Client struct {
    baseURL   string
    project   string
    issueType string
    token     string
    user      string
    pass      string
    pageSize  int
    http      *http.Client
    log       zerolog.Logger
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
    size := cfg.JiraPageSize
    if size <= 0 || size > 100 { size = 100 }
    return &Client{
        baseURL:   cfg.JiraBaseURL,
        project:   cfg.JiraProject,
        issueType: cfg.JiraIssueType,
        token:     cfg.JiraPAT,
        user:      cfg.JiraUsername,
        pass:      cfg.JiraPassword,
        pageSize:  size,
        http:      &http.Client{Timeout: cfg.JiraTimeout},
        log:       log,
    }
}

type searchResponse struct {
    StartAt    int     `json:"startAt"`
    MaxResults int     `json:"maxResults"`
    Total      int     `json:"total"`
    Issues     []Issue `json:"issues"`
}

type Issue struct {
    ID     string `json:"id"`
    Key    string `json:"key"`
    Fields Fields `json:"fields"`
    Raw    json.RawMessage `json:"-"`
}

// UnmarshalJSON keeps the undecoded issue body around so the store can
// persist the tracker record verbatim.
func (i *Issue) UnmarshalJSON(b []byte) error {
    type plain Issue
    var p plain
    if err := json.Unmarshal(b, &p); err != nil { return err }
    *i = Issue(p)
    i.Raw = append([]byte(nil), b...)
    return nil
}

type Fields struct {
    Summary        string   `json:"summary"`
    Description    string   `json:"description"`
    Status         *Status  `json:"status"`
    Priority       *Named   `json:"priority"`
    Created        string   `json:"created"`
    Updated        string   `json:"updated"`
    ResolutionDate string   `json:"resolutiondate"`
    Components     []Named  `json:"components"`
    Labels         []string `json:"labels"`
    Reporter       *User    `json:"reporter"`
    Assignee       *User    `json:"assignee"`
}

type Status struct {
    Name           string `json:"name"`
    StatusCategory *Named `json:"statusCategory"`
}

type Named struct {
    Name string `json:"name"`
}

type User struct {
    DisplayName string `json:"displayName"`
}

// SearchBugs pages through the tracker's search API until exhausted and
// returns every matching issue. fetchAll=false restricts to issues whose
// status category is not Done.
func (c *Client) SearchBugs(ctx context.Context, fetchAll bool) ([]Issue, error) {
    jql := fmt.Sprintf("project=%s AND type=%s", c.project, c.issueType)
    if !fetchAll { jql += " AND statusCategory!=Done" }
    jql += " ORDER BY updated DESC"

    var all []Issue
    startAt := 0
    for {
        q := url.Values{}
        q.Set("jql", jql)
        q.Set("startAt", fmt.Sprint(startAt))
        q.Set("maxResults", fmt.Sprint(c.pageSize))
        q.Set("fields", searchFields)
        u := c.apiURL("/rest/api/2/search", q)

        var page searchResponse
        if err := c.doJSON(ctx, http.MethodGet, u, nil, &page); err != nil { return nil, err }
        if len(page.Issues) == 0 { break }
        all = append(all, page.Issues...)
        startAt += len(page.Issues)
        c.log.Debug().Int("fetched", len(all)).Int("total", page.Total).Msg("jira search page")
        if len(all) >= page.Total { break }
    }
    return all, nil
}

// ParseBug maps one tracker issue onto the internal bug shape. Records that
// do not carry an issue key or usable created/updated timestamps are
// rejected here so loosely shaped data never travels further in.
func ParseBug(i Issue) (domain.Bug, error) {
    if strings.TrimSpace(i.Key) == "" {
        return domain.Bug{}, errors.New("issue missing key")
    }
    created, err := parseTimeUTC(i.Fields.Created)
    if err != nil { return domain.Bug{}, fmt.Errorf("issue %s: created: %w", i.Key, err) }
    updated, err := parseTimeUTC(i.Fields.Updated)
    if err != nil { return domain.Bug{}, fmt.Errorf("issue %s: updated: %w", i.Key, err) }

    b := domain.Bug{
        JiraKey:     i.Key,
        JiraID:      i.ID,
        Summary:     i.Fields.Summary,
        Description: i.Fields.Description,
        Status:      "Unknown",
        CreatedAt:   created,
        UpdatedAt:   updated,
        Labels:      i.Fields.Labels,
        Raw:         i.Raw,
    }
    if s := i.Fields.Status; s != nil {
        if s.Name != "" { b.Status = s.Name }
        if s.StatusCategory != nil { b.StatusCategory = s.StatusCategory.Name }
    }
    if i.Fields.Priority != nil { b.Priority = i.Fields.Priority.Name }
    if len(i.Fields.Components) > 0 { b.Component = i.Fields.Components[0].Name }
    if i.Fields.Reporter != nil { b.Reporter = i.Fields.Reporter.DisplayName }
    if i.Fields.Assignee != nil { b.Assignee = i.Fields.Assignee.DisplayName }
    if i.Fields.ResolutionDate != "" {
        if t, err := parseTimeUTC(i.Fields.ResolutionDate); err == nil { b.ResolvedAt = &t }
    }
    return b, nil
}

func parseTimeUTC(s string) (time.Time, error) {
    if s == "" { return time.Time{}, errors.New("empty timestamp") }
    layouts := []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000-0700", "2006-01-02T15:04:05-0700"}
    for _, l := range layouts {
        if t, err := time.Parse(l, s); err == nil { return t.UTC(), nil }
    }
    return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

func (c *Client) apiURL(path string, q url.Values) string {
    base := strings.TrimRight(c.baseURL, "/")
    if !strings.HasPrefix(path, "/") { path = "/" + path }
    u := base + path
    if len(q) > 0 { u = u + "?" + q.Encode() }
    return u
}

func (c *Client) doJSON(ctx context.Context, method, u string, body, out any) error {
    if c.baseURL == "" { return errors.New("jira: empty baseURL") }
    var payload []byte
    if body != nil {
        b, err := json.Marshal(body)
        if err != nil { return err }
        payload = b
    }
    var lastErr error
    for attempt := 0; attempt < 3; attempt++ {
        var r io.Reader
        if payload != nil { r = bytes.NewReader(payload) }
        req, err := http.NewRequestWithContext(ctx, method, u, r)
        if err != nil { return err }
        if payload != nil { req.Header.Set("Content-Type", "application/json") }
        if c.token != "" {
            req.Header.Set("Authorization", "Bearer "+c.token)
        } else if c.user != "" && c.pass != "" {
            req.SetBasicAuth(c.user, c.pass)
        }
        resp, err := c.http.Do(req)
        if err != nil { lastErr = err } else {
            b, _ := io.ReadAll(resp.Body)
            resp.Body.Close()
            if resp.StatusCode >= 300 {
                // retry on 429/5xx
                if resp.StatusCode == 429 || resp.StatusCode >= 500 {
                    lastErr = fmt.Errorf("jira api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
                } else {
                    return fmt.Errorf("jira api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
                }
            } else {
                return json.Unmarshal(b, out)
            }
        }
        // backoff
        time.Sleep(time.Duration(300*(1<<attempt)) * time.Millisecond)
    }
    return lastErr
}
