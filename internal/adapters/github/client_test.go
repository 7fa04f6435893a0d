package github

import (
    "context"
    "fmt"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "github.com/rs/zerolog"
)

func testClient(baseURL, token string) *Client {
    return &Client{
        baseURL: baseURL,
        token:   token,
        owner:   "acme",
        repo:    "shop",
        project: "MIG",
        http:    &http.Client{Timeout: 5 * time.Second},
        log:     zerolog.Nop(),
    }
}

func commitJSON(i int) string {
    return fmt.Sprintf(`{"sha":"sha%04d000000","html_url":"https://github.com/acme/shop/commit/sha%04d",
        "commit":{"message":"MIG-%d fix","author":{"name":"Dev","email":"dev@acme.test","date":"2025-03-01T10:00:00Z"}}}`, i, i, i)
}

func pageJSON(start, n int) string {
    items := make([]string, 0, n)
    for i := 0; i < n; i++ { items = append(items, commitJSON(start+i)) }
    return "[" + strings.Join(items, ",") + "]"
}

func TestListCommits_PaginatesAndTruncates(t *testing.T) {
    var pages []string
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        page := r.URL.Query().Get("page")
        pages = append(pages, page)
        if page == "1" {
            fmt.Fprint(w, pageJSON(0, 100))
            return
        }
        fmt.Fprint(w, pageJSON(100, 100))
    }))
    defer srv.Close()

    commits, err := testClient(srv.URL, "tok").ListCommits(context.Background(), 150)
    if err != nil { t.Fatalf("ListCommits: %v", err) }
    if len(commits) != 150 { t.Fatalf("expected 150 commits, got %d", len(commits)) }
    if len(pages) != 2 || pages[0] != "1" || pages[1] != "2" { t.Fatalf("pages = %#v", pages) }
}

func TestListCommits_StopsOnShortPage(t *testing.T) {
    calls := 0
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        calls++
        fmt.Fprint(w, pageJSON(0, 3))
    }))
    defer srv.Close()

    commits, err := testClient(srv.URL, "tok").ListCommits(context.Background(), 500)
    if err != nil { t.Fatalf("ListCommits: %v", err) }
    if len(commits) != 3 { t.Fatalf("expected 3 commits, got %d", len(commits)) }
    if calls != 1 { t.Fatalf("expected 1 call, got %d", calls) }
}

func TestListCommits_RequiresToken(t *testing.T) {
    if _, err := testClient("http://unused", "").ListCommits(context.Background(), 10); err == nil {
        t.Fatalf("expected error without token")
    }
}

func TestListCommits_SendsGitHubHeaders(t *testing.T) {
    var accept, version, auth string
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        accept = r.Header.Get("Accept")
        version = r.Header.Get("X-GitHub-Api-Version")
        auth = r.Header.Get("Authorization")
        fmt.Fprint(w, "[]")
    }))
    defer srv.Close()

    if _, err := testClient(srv.URL, "tok").ListCommits(context.Background(), 10); err != nil {
        t.Fatalf("ListCommits: %v", err)
    }
    if accept != "application/vnd.github+json" { t.Fatalf("Accept = %q", accept) }
    if version != "2022-11-28" { t.Fatalf("X-GitHub-Api-Version = %q", version) }
    if auth != "Bearer tok" { t.Fatalf("Authorization = %q", auth) }
}

func TestParseCommit_MapsFieldsAndExtractsKeys(t *testing.T) {
    var rc Commit
    rc.SHA = "0123456789abcdef"
    rc.HTMLURL = "https://github.com/acme/shop/commit/0123456"
    rc.Commit.Message = "MIG-12 and MIG-99: fix checkout\n\nAlso mentions CLOUD-1 and MIGRATION-7."
    rc.Commit.Author.Name = "Dev"
    rc.Commit.Author.Email = "dev@acme.test"
    rc.Commit.Author.Date = "2025-03-01T10:00:00Z"

    c := testClient("http://unused", "tok").ParseCommit(rc)
    if c.SHA != rc.SHA || c.ShortSHA != "0123456" { t.Fatalf("sha: %#v", c) }
    if c.MessageHeadline != "MIG-12 and MIG-99: fix checkout" { t.Fatalf("headline = %q", c.MessageHeadline) }
    if len(c.JiraKeys) != 2 || c.JiraKeys[0] != "MIG-12" || c.JiraKeys[1] != "MIG-99" {
        t.Fatalf("keys = %#v", c.JiraKeys)
    }
    if c.AuthoredAt == nil || !c.AuthoredAt.Equal(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)) {
        t.Fatalf("authored = %v", c.AuthoredAt)
    }
}

func TestParseCommit_TruncatesHeadline(t *testing.T) {
    var rc Commit
    rc.SHA = "abc"
    rc.Commit.Message = strings.Repeat("x", 300)
    c := testClient("http://unused", "tok").ParseCommit(rc)
    if len(c.MessageHeadline) != 200 { t.Fatalf("headline length = %d", len(c.MessageHeadline)) }
    if c.ShortSHA != "abc" { t.Fatalf("short sha should keep short input: %q", c.ShortSHA) }
    if c.AuthoredAt != nil { t.Fatalf("authored should be nil without date") }
}

func TestExtractJiraKeys_FiltersByProjectPrefix(t *testing.T) {
    keys := ExtractJiraKeys("MIG-1 fixed, MIGRATION-5 ignored, CLOUD-2 ignored, mig-3 ignored", "MIG")
    if len(keys) != 1 || keys[0] != "MIG-1" { t.Fatalf("keys = %#v", keys) }
    if got := ExtractJiraKeys("no keys here", "MIG"); len(got) != 0 {
        t.Fatalf("expected none, got %#v", got)
    }
}
