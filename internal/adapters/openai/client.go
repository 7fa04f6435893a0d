package openai

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "strings"

    "github.com/jamesbringetto/atlassian-bug-dashboard/internal/config"
    "github.com/jamesbringetto/atlassian-bug-dashboard/internal/domain"
    "github.com/openai/openai-go/v2"
    "github.com/openai/openai-go/v2/option"
    "github.com/openai/openai-go/v2/shared"
    "github.com/rs/zerolog"
)

const triagePrompt = `You are an expert bug triage specialist for a software development team. Analyze the following bug ticket and provide a structured triage assessment.

## Bug Ticket
**Summary:** %s

**Description:** %s

**Current Priority (from Jira):** %s
**Component:** %s
**Labels:** %s

## Your Task
Analyze this ticket and provide triage information. Consider:
1. **Category**: What type of issue is this? (bug, feature_request, documentation, performance, security, ui_ux, data_issue, integration)
2. **Priority Recommendation**: Based on potential impact and severity (critical, high, medium, low)
3. **Urgency**: How soon should this be addressed? (immediate, soon, normal, backlog)
4. **Suggested Team**: Which team should handle this? (frontend, backend, infrastructure, security, data, platform, mobile, qa)
5. **Tags**: 3-5 relevant tags for categorization
6. **Confidence**: Your confidence in this assessment (0.0-1.0)
7. **Reasoning**: Brief 1-2 sentence explanation

Respond with ONLY valid JSON matching this exact structure:
{
  "category": "string",
  "priority_recommendation": "string",
  "urgency": "string",
  "suggested_team": "string",
  "tags": ["string"],
  "confidence": 0.0,
  "reasoning": "string"
}`

type Client struct {
    key   string
    model string
    cli   openai.Client
    log   zerolog.Logger
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
    model := cfg.OpenAIModel
    if strings.TrimSpace(model) == "" { model = "gpt-4.1-mini" }
    cli := openai.NewClient(
        option.WithAPIKey(cfg.OpenAIKey),
        option.WithHTTPClient(&http.Client{Timeout: cfg.OpenAITimeout}),
    )
    return &Client{key: cfg.OpenAIKey, model: model, cli: cli, log: log}
}

func (c *Client) Available() bool { return strings.TrimSpace(c.key) != "" }

// TriageBug sends one classification request for the bug and decodes the
// structured result. A response that is not the expected JSON is an error;
// the caller decides whether to retry, nothing is written here.
func (c *Client) TriageBug(ctx context.Context, b domain.Bug) (domain.TriageResult, error) {
    if !c.Available() { return domain.TriageResult{}, errors.New("openai: missing key") }
    c.log.Debug().Str("model", c.model).Str("key", b.JiraKey).Msg("triage call")
    params := openai.ChatCompletionNewParams{
        Model: shared.ChatModel(c.model),
        Messages: []openai.ChatCompletionMessageParamUnion{
            openai.UserMessage(BuildPrompt(b)),
        },
    }
    resp, err := c.cli.Chat.Completions.New(ctx, params)
    if err != nil { return domain.TriageResult{}, err }
    if len(resp.Choices) == 0 { return domain.TriageResult{}, errors.New("openai: no choices") }
    return ParseResponse(resp.Choices[0].Message.Content)
}

func BuildPrompt(b domain.Bug) string {
    description := b.Description
    if description == "" { description = "No description provided" }
    priority := b.Priority
    if priority == "" { priority = "Not set" }
    component := b.Component
    if component == "" { component = "Not assigned" }
    labels := "None"
    if len(b.Labels) > 0 { labels = strings.Join(b.Labels, ", ") }
    return fmt.Sprintf(triagePrompt, b.Summary, description, priority, component, labels)
}

// ParseResponse decodes the model output. Missing fields take neutral
// defaults; confidence is clamped to [0,1]. Category values outside the
// suggested enum are stored as-is.
func ParseResponse(content string) (domain.TriageResult, error) {
    var raw struct {
        Category               string   `json:"category"`
        PriorityRecommendation string   `json:"priority_recommendation"`
        Urgency                string   `json:"urgency"`
        SuggestedTeam          string   `json:"suggested_team"`
        Tags                   []string `json:"tags"`
        Confidence             *float64 `json:"confidence"`
        Reasoning              string   `json:"reasoning"`
    }
    if err := json.Unmarshal([]byte(content), &raw); err != nil {
        return domain.TriageResult{}, fmt.Errorf("triage response not valid JSON: %w", err)
    }
    res := domain.TriageResult{
        Category:  raw.Category,
        Priority:  raw.PriorityRecommendation,
        Urgency:   raw.Urgency,
        Team:      raw.SuggestedTeam,
        Tags:      raw.Tags,
        Reasoning: raw.Reasoning,
    }
    if res.Category == "" { res.Category = "unknown" }
    if res.Priority == "" { res.Priority = "medium" }
    if res.Urgency == "" { res.Urgency = "normal" }
    if res.Team == "" { res.Team = "unassigned" }
    if res.Tags == nil { res.Tags = []string{} }
    conf := 0.5
    if raw.Confidence != nil { conf = *raw.Confidence }
    if conf < 0 { conf = 0 }
    if conf > 1 { conf = 1 }
    res.Confidence = conf
    return res, nil
}
