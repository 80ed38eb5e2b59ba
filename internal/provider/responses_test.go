package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// draftBody wraps a structured draft in a Responses message envelope.
func draftBody(t *testing.T, body string, keywords ...string) string {
	t.Helper()
	text, err := json.Marshal(draft{Body: body, Keywords: keywords})
	if err != nil {
		t.Fatalf("marshal draft: %v", err)
	}
	envelope := map[string]any{
		"status": "completed",
		"output": []any{
			map[string]any{"type": "reasoning"},
			map[string]any{"type": "message", "content": []any{
				map[string]any{"type": "output_text", "text": string(text)},
			}},
		},
	}
	out, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return string(out)
}

func quietGenerator(t *testing.T, endpoint string) *ResponsesGenerator {
	t.Helper()
	gen, err := NewResponsesGenerator(ResponsesConfig{
		Endpoint:     endpoint,
		Model:        "test-model",
		AuthToken:    "secret",
		RetryBackoff: time.Millisecond,
		Logger:       log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	return gen
}

func TestDraftResponseDecodesStructuredOutput(t *testing.T) {
	var resp draftResponse
	if err := json.Unmarshal([]byte(draftBody(t, "  Remote teams ship faster.  ", "Remote Work", "remote work", " ", "async")), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	d, err := resp.draft()
	if err != nil {
		t.Fatalf("draft: %v", err)
	}
	if d.Body != "Remote teams ship faster." {
		t.Fatalf("body=%q", d.Body)
	}
	if strings.Join(d.Keywords, ",") != "remote work,async" {
		t.Fatalf("keywords=%v", d.Keywords)
	}
}

func TestDraftResponseErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "api error", body: `{"status":"failed","error":{"message":"overloaded"}}`, want: "overloaded"},
		{name: "refusal", body: `{"output":[{"type":"message","content":[{"type":"refusal","refusal":"cannot help"}]}]}`, want: "refused"},
		{name: "no text", body: `{"status":"incomplete","output":[]}`, want: "no output text"},
		{name: "plain prose", body: `{"output":[{"type":"message","content":[{"type":"output_text","text":"just prose"}]}]}`, want: "not a content draft"},
		{name: "empty body", body: `{"output":[{"type":"message","content":[{"type":"output_text","text":"{\"body\":\" \",\"keywords\":[]}"}]}]}`, want: "empty body"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var resp draftResponse
			if err := json.Unmarshal([]byte(tc.body), &resp); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			_, err := resp.draft()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err=%v want %q", err, tc.want)
			}
		})
	}
}

func TestDraftContentCounters(t *testing.T) {
	got := draft{Body: "Automation helps. Automation scales teams quickly!", Keywords: []string{"automation"}}.content()
	if got.WordCount != 6 {
		t.Fatalf("word count=%d want=6", got.WordCount)
	}
	if got.ReadabilityScore != 94 {
		t.Fatalf("readability=%d want=94", got.ReadabilityScore)
	}
	if len(got.Keywords) != 1 || got.Keywords[0] != "automation" {
		t.Fatalf("keywords=%v", got.Keywords)
	}
	if r := readability(300, 0); r != 0 {
		t.Fatalf("readability clamp=%d want=0", r)
	}
}

func TestNormalizeKeywordsCaps(t *testing.T) {
	got := normalizeKeywords([]string{"a", "b", "c", "d", "e", "f", "g"})
	if len(got) != maxDraftKeywords {
		t.Fatalf("keywords=%v", got)
	}
}

func TestResponsesGeneratorSendsSchemaRequest(t *testing.T) {
	var got draftRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("authorization=%q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = io.WriteString(w, draftBody(t, "Fresh trending copy.", "trends"))
	}))
	defer srv.Close()

	out, err := quietGenerator(t, srv.URL).Generate(context.Background(), "Create engaging reel content", "reel")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out.Body != "Fresh trending copy." || out.WordCount != 3 || len(out.Keywords) != 1 {
		t.Fatalf("output=%+v", out)
	}
	if got.Model != "test-model" || got.Input != "Create engaging reel content" || !strings.Contains(got.Instructions, "kind reel") {
		t.Fatalf("request=%+v", got)
	}
	if got.Text.Format.Type != "json_schema" || !got.Text.Format.Strict || !strings.Contains(string(got.Text.Format.Schema), `"keywords"`) {
		t.Fatalf("format=%+v", got.Text.Format)
	}
}

func TestResponsesGeneratorRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			http.Error(w, "busy", http.StatusServiceUnavailable)
		case 2:
			http.Error(w, "slow down", http.StatusTooManyRequests)
		default:
			_, _ = io.WriteString(w, draftBody(t, "Third time lucky."))
		}
	}))
	defer srv.Close()

	out, err := quietGenerator(t, srv.URL).Generate(context.Background(), "prompt", "article")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out.Body != "Third time lucky." || calls.Load() != 3 {
		t.Fatalf("output=%+v calls=%d", out, calls.Load())
	}
}

func TestResponsesGeneratorDoesNotRetryPermanentErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{name: "bad request", handler: func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "bad request", http.StatusBadRequest)
		}},
		{name: "refusal", handler: func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `{"output":[{"type":"message","content":[{"type":"refusal","refusal":"no"}]}]}`)
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				tc.handler(w, r)
			}))
			defer srv.Close()

			if _, err := quietGenerator(t, srv.URL).Generate(context.Background(), "prompt", "article"); err == nil {
				t.Fatalf("expected error")
			}
			if calls.Load() != 1 {
				t.Fatalf("calls=%d want=1", calls.Load())
			}
		})
	}
}

func TestRetryableDraftError(t *testing.T) {
	ctx := context.Background()
	if !retryableDraftError(ctx, &draftStatusError{code: 502}) {
		t.Fatalf("5xx should be retryable")
	}
	if retryableDraftError(ctx, fmt.Errorf("wrapped: %w", &draftStatusError{code: 404})) {
		t.Fatalf("404 should not be retryable")
	}
	if !retryableDraftError(ctx, fmt.Errorf("read: %w", io.ErrUnexpectedEOF)) {
		t.Fatalf("truncated body should be retryable")
	}
	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if retryableDraftError(canceled, &draftStatusError{code: 503}) {
		t.Fatalf("no retry once the caller is gone")
	}
	if retryableDraftError(ctx, errors.New("plain error")) {
		t.Fatalf("plain error should not be retryable")
	}
}

func TestNewResponsesGeneratorValidates(t *testing.T) {
	if _, err := NewResponsesGenerator(ResponsesConfig{Model: "m"}); err == nil {
		t.Fatalf("expected error for empty endpoint")
	}
	if _, err := NewResponsesGenerator(ResponsesConfig{Endpoint: "http://localhost"}); err == nil {
		t.Fatalf("expected error for empty model")
	}
}
