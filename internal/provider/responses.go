package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"content_orchestra/internal/domain"
)

const (
	defaultDraftRetries      = 2
	defaultDraftRetryBackoff = time.Second
	defaultDraftTimeout      = 2 * time.Minute
	maxDraftResponseBytes    = 1 << 20
	maxDraftKeywords         = 5
)

type ResponsesConfig struct {
	Endpoint     string
	Model        string
	AuthToken    string
	Timeout      time.Duration
	Retries      int
	RetryBackoff time.Duration
	Logger       *log.Logger
	Client       *http.Client
}

// ResponsesGenerator asks a Responses-style endpoint for a structured draft
// ({"body", "keywords"}) and turns it into GeneratedContent.
type ResponsesGenerator struct {
	endpoint  string
	model     string
	authToken string
	retries   int
	backoff   time.Duration
	logger    *log.Logger
	client    *http.Client
}

func NewResponsesGenerator(cfg ResponsesConfig) (*ResponsesGenerator, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("content api: empty endpoint: %w", domain.ErrInvalidArgument)
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("content api: endpoint %q: %w", endpoint, err)
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, fmt.Errorf("content api: empty model: %w", domain.ErrInvalidArgument)
	}
	g := &ResponsesGenerator{
		endpoint:  endpoint,
		model:     model,
		authToken: strings.TrimSpace(cfg.AuthToken),
		retries:   cfg.Retries,
		backoff:   cfg.RetryBackoff,
		logger:    cfg.Logger,
		client:    cfg.Client,
	}
	if g.retries <= 0 {
		g.retries = defaultDraftRetries
	}
	if g.backoff <= 0 {
		g.backoff = defaultDraftRetryBackoff
	}
	if g.logger == nil {
		g.logger = log.Default()
	}
	if g.client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultDraftTimeout
		}
		g.client = &http.Client{Timeout: timeout}
	}
	return g, nil
}

// Generate retries transient failures (429, 5xx, transport errors) with a
// doubling wait. Any other error is returned after the first attempt.
func (g *ResponsesGenerator) Generate(ctx context.Context, prompt string, kind domain.ContentKind) (domain.GeneratedContent, error) {
	wait := g.backoff
	for attempt := 0; ; attempt++ {
		d, err := g.requestDraft(ctx, prompt, kind)
		if err == nil {
			return d.content(), nil
		}
		if attempt >= g.retries || !retryableDraftError(ctx, err) {
			return domain.GeneratedContent{}, err
		}
		g.logger.Printf("content draft retry kind=%s attempt=%d wait=%s: %v", kind, attempt+1, wait, err)
		if err := sleep(ctx, wait); err != nil {
			return domain.GeneratedContent{}, err
		}
		wait *= 2
	}
}

func (g *ResponsesGenerator) requestDraft(ctx context.Context, prompt string, kind domain.ContentKind) (draft, error) {
	body, err := json.Marshal(newDraftRequest(g.model, prompt, kind))
	if err != nil {
		return draft{}, fmt.Errorf("encode draft request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return draft{}, fmt.Errorf("build draft request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+g.authToken)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return draft{}, fmt.Errorf("draft request: %w", err)
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, maxDraftResponseBytes)
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(limited, 4096))
		return draft{}, &draftStatusError{code: resp.StatusCode, body: strings.TrimSpace(string(msg))}
	}
	var out draftResponse
	if err := json.NewDecoder(limited).Decode(&out); err != nil {
		return draft{}, fmt.Errorf("decode draft response: %w", err)
	}
	return out.draft()
}

type draft struct {
	Body     string   `json:"body"`
	Keywords []string `json:"keywords"`
}

// content fills in the counters the pipeline records for generated copy.
func (d draft) content() domain.GeneratedContent {
	words := strings.Fields(d.Body)
	sentences := strings.Count(d.Body, ".") + strings.Count(d.Body, "!") + strings.Count(d.Body, "?")
	return domain.GeneratedContent{
		Body:             d.Body,
		WordCount:        len(words),
		ReadabilityScore: readability(len(words), sentences),
		Keywords:         d.Keywords,
	}
}

// readability penalizes long sentences: 100 minus two points per word in
// the average sentence, clamped to [0, 100].
func readability(words, sentences int) int {
	if sentences == 0 {
		sentences = 1
	}
	return min(max(100-2*(words/sentences), 0), 100)
}

func normalizeKeywords(in []string) []string {
	out := make([]string, 0, min(len(in), maxDraftKeywords))
	seen := make(map[string]bool, len(in))
	for _, k := range in {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
		if len(out) == maxDraftKeywords {
			break
		}
	}
	return out
}

type draftRequest struct {
	Model        string    `json:"model"`
	Instructions string    `json:"instructions"`
	Input        string    `json:"input"`
	Text         draftText `json:"text"`
}

type draftText struct {
	Format draftFormat `json:"format"`
}

type draftFormat struct {
	Type   string          `json:"type"`
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

func newDraftRequest(model, prompt string, kind domain.ContentKind) draftRequest {
	return draftRequest{
		Model:        model,
		Instructions: fmt.Sprintf(draftInstructions, kind, maxDraftKeywords),
		Input:        prompt,
		Text: draftText{Format: draftFormat{
			Type:   "json_schema",
			Name:   "content_draft",
			Strict: true,
			Schema: json.RawMessage(draftSchema),
		}},
	}
}

type draftResponse struct {
	Status string `json:"status"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error"`
	Output []struct {
		Type    string `json:"type"`
		Content []struct {
			Type    string `json:"type"`
			Text    string `json:"text"`
			Refusal string `json:"refusal"`
		} `json:"content"`
	} `json:"output"`
}

// draft extracts the structured draft from the message output. Refusals
// and failed responses are permanent errors.
func (r draftResponse) draft() (draft, error) {
	if r.Error != nil {
		return draft{}, fmt.Errorf("draft response %s: %s", r.Status, r.Error.Message)
	}
	var raw strings.Builder
	for _, item := range r.Output {
		if item.Type != "message" {
			continue
		}
		for _, part := range item.Content {
			switch part.Type {
			case "refusal":
				return draft{}, fmt.Errorf("draft refused: %s", part.Refusal)
			case "output_text":
				raw.WriteString(part.Text)
			}
		}
	}
	if raw.Len() == 0 {
		return draft{}, fmt.Errorf("draft response %s: no output text", r.Status)
	}
	var d draft
	if err := json.Unmarshal([]byte(raw.String()), &d); err != nil {
		return draft{}, fmt.Errorf("draft output is not a content draft: %w", err)
	}
	d.Body = strings.TrimSpace(d.Body)
	if d.Body == "" {
		return draft{}, errors.New("draft output has an empty body")
	}
	d.Keywords = normalizeKeywords(d.Keywords)
	return d, nil
}

type draftStatusError struct {
	code int
	body string
}

func (e *draftStatusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("content api status %d", e.code)
	}
	return fmt.Sprintf("content api status %d: %s", e.code, e.body)
}

func retryableDraftError(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var status *draftStatusError
	if errors.As(err, &status) {
		return status.code == http.StatusTooManyRequests || status.code >= http.StatusInternalServerError
	}
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, io.ErrUnexpectedEOF)
}

const draftInstructions = `You write marketing copy of kind %s.
Reply with a JSON object: "body" holds the finished copy as plain prose without markdown fences or preamble, "keywords" lists up to %d search keywords the copy targets.`

const draftSchema = `{
  "type": "object",
  "properties": {
    "body": {"type": "string"},
    "keywords": {"type": "array", "items": {"type": "string"}}
  },
  "required": ["body", "keywords"],
  "additionalProperties": false
}`
