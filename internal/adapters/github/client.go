/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package github

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "net/url"
    "regexp"
    "strings"
    "time"

    "github.com/jamesbringetto/atlassian-bug-dashboard/internal/config"
    "github.com/jamesbringetto/atlassian-bug-dashboard/internal/domain"
    "github.com/rs/zerolog"
)

var jiraKeyPattern = regexp.MustCompile(`\b([A-Z]+-\d+)\b`)

type Client struct {
    baseURL string
    token   string
    owner   string
    repo    string
    project string
    http    *http.Client
    log     zerolog.Logger
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
    return &Client{
        baseURL: "https://api.github.com",
        token:   cfg.GitHubToken,
        owner:   cfg.GitHubRepoOwner,
        repo:    cfg.GitHubRepoName,
        project: cfg.JiraProject,
        http:    &http.Client{Timeout: cfg.GitHubTimeout},
        log:     log,
    }
}

func (c *Client) Available() bool { return c.token != "" }

func (c *Client) Repository() string { return c.owner + "/" + c.repo }

type Commit struct {
    SHA     string `json:"sha"`
    HTMLURL string `json:"html_url"`
    Commit  struct {
        Message string `json:"message"`
        Author  struct {
            Name  string `json:"name"`
            Email string `json:"email"`
            Date  string `json:"date"`
        } `json:"author"`
    } `json:"commit"`
}

// ListCommits pages through the repository's commit history, newest first,
// stopping at max commits or the first short page.
func (c *Client) ListCommits(ctx context.Context, max int) ([]Commit, error) {
    if !c.Available() { return nil, errors.New("github: missing token") }
    var all []Commit
    for page := 1; len(all) < max; page++ {
        q := url.Values{}
        q.Set("per_page", "100")
        q.Set("page", fmt.Sprint(page))
        u := fmt.Sprintf("%s/repos/%s/%s/commits?%s", strings.TrimRight(c.baseURL, "/"), c.owner, c.repo, q.Encode())

        var batch []Commit
        if err := c.getJSON(ctx, u, &batch); err != nil { return nil, err }
        if len(batch) == 0 { break }
        all = append(all, batch...)
        c.log.Debug().Int("fetched", len(all)).Msg("github commits page")
        if len(batch) < 100 { break }
    }
    if len(all) > max { all = all[:max] }
    return all, nil
}

// ParseCommit maps a raw API commit onto the internal shape, extracting the
// tracker keys referenced by the commit message.
func (c *Client) ParseCommit(rc Commit) domain.Commit {
    headline := rc.Commit.Message
    if i := strings.IndexByte(headline, '\n'); i >= 0 { headline = headline[:i] }
    if len(headline) > 200 { headline = headline[:200] }
    short := rc.SHA
    if len(short) > 7 { short = short[:7] }

    out := domain.Commit{
        SHA:             rc.SHA,
        ShortSHA:        short,
        Message:         rc.Commit.Message,
        MessageHeadline: headline,
        AuthorName:      rc.Commit.Author.Name,
        AuthorEmail:     rc.Commit.Author.Email,
        URL:             rc.HTMLURL,
        JiraKeys:        ExtractJiraKeys(rc.Commit.Message, c.project),
    }
    if rc.Commit.Author.Date != "" {
        if t, err := time.Parse(time.RFC3339, rc.Commit.Author.Date); err == nil {
            t = t.UTC()
            out.AuthoredAt = &t
        }
    }
    return out
}

// ExtractJiraKeys returns the issue keys mentioned in text that belong to
// the given tracker project.
func ExtractJiraKeys(text, project string) []string {
    keys := []string{}
    for _, k := range jiraKeyPattern.FindAllString(text, -1) {
        if strings.HasPrefix(k, project+"-") { keys = append(keys, k) }
    }
    return keys
}

func (c *Client) getJSON(ctx context.Context, u string, out any) error {
    var lastErr error
    for attempt := 0; attempt < 3; attempt++ {
        req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
        if err != nil { return err }
        req.Header.Set("Accept", "application/vnd.github+json")
        req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
        if c.token != "" { req.Header.Set("Authorization", "Bearer "+c.token) }
        resp, err := c.http.Do(req)
        if err != nil { lastErr = err } else {
            b, _ := io.ReadAll(resp.Body)
            resp.Body.Close()
            if resp.StatusCode >= 300 {
                if resp.StatusCode == 429 || resp.StatusCode >= 500 {
                    lastErr = fmt.Errorf("github api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
                } else {
                    return fmt.Errorf("github api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
                }
            } else {
                return json.Unmarshal(b, out)
            }
        }
        time.Sleep(time.Duration(300*(1<<attempt)) * time.Millisecond)
    }
    return lastErr
}
