package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"content_orchestra/internal/domain"
	"content_orchestra/internal/orchestrator"
)

// Client talks to a running orchestrator over its HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Health(ctx context.Context) error {
	var out map[string]any
	return c.do(ctx, http.MethodGet, "/healthz", nil, &out)
}

func (c *Client) ListAgents(ctx context.Context) ([]domain.Agent, error) {
	var out []domain.Agent
	if err := c.do(ctx, http.MethodGet, "/agents", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListVideoAgents(ctx context.Context) ([]domain.Agent, error) {
	var out []domain.Agent
	if err := c.do(ctx, http.MethodGet, "/agents/video", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) PauseAgent(ctx context.Context, id string) (domain.Agent, error) {
	var out domain.Agent
	err := c.do(ctx, http.MethodPost, "/agents/"+url.PathEscape(id)+"/pause", nil, &out)
	return out, err
}

func (c *Client) ResumeAgent(ctx context.Context, id string) (domain.Agent, error) {
	var out domain.Agent
	err := c.do(ctx, http.MethodPost, "/agents/"+url.PathEscape(id)+"/resume", nil, &out)
	return out, err
}

func (c *Client) ListContent(ctx context.Context) ([]domain.ContentItem, error) {
	var out []domain.ContentItem
	if err := c.do(ctx, http.MethodGet, "/content", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetContent(ctx context.Context, id string) (domain.ContentItem, error) {
	var out domain.ContentItem
	err := c.do(ctx, http.MethodGet, "/content/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (c *Client) UpdateContent(ctx context.Context, id string, patch orchestrator.ContentPatch) (domain.ContentItem, error) {
	var out domain.ContentItem
	err := c.do(ctx, http.MethodPatch, "/content/"+url.PathEscape(id), patch, &out)
	return out, err
}

func (c *Client) RequestRevision(ctx context.Context, id, feedback string) (domain.ContentItem, error) {
	var out domain.ContentItem
	err := c.do(ctx, http.MethodPost, "/content/"+url.PathEscape(id)+"/revision", map[string]string{"feedback": feedback}, &out)
	return out, err
}

func (c *Client) RequestVideo(ctx context.Context, id string) (domain.ContentItem, error) {
	return c.contentAction(ctx, id, "video")
}

func (c *Client) Approve(ctx context.Context, id string) (domain.ContentItem, error) {
	return c.contentAction(ctx, id, "approve")
}

func (c *Client) Publish(ctx context.Context, id string) (domain.ContentItem, error) {
	return c.contentAction(ctx, id, "publish")
}

func (c *Client) Archive(ctx context.Context, id string) (domain.ContentItem, error) {
	return c.contentAction(ctx, id, "archive")
}

func (c *Client) contentAction(ctx context.Context, id, action string) (domain.ContentItem, error) {
	var out domain.ContentItem
	err := c.do(ctx, http.MethodPost, "/content/"+url.PathEscape(id)+"/"+action, nil, &out)
	return out, err
}

func (c *Client) Metrics(ctx context.Context) (domain.Metrics, error) {
	var out domain.Metrics
	err := c.do(ctx, http.MethodGet, "/metrics", nil, &out)
	return out, err
}

func (c *Client) Journal(ctx context.Context, subject string, limit int) ([]domain.JournalEntry, error) {
	q := url.Values{}
	if subject != "" {
		q.Set("subject", subject)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	path := "/journal"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out []domain.JournalEntry
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in any, out any) error {
	var payload io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

// StreamEvents reads /events and calls fn for each event until ctx ends or
// the server closes the stream. The client timeout does not apply.
func (c *Client) StreamEvents(ctx context.Context, fn func(domain.Event)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/events", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	stream := &http.Client{Transport: c.http.Transport}
	resp, err := stream.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("http %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return readEventStream(resp.Body, fn)
}

func readEventStream(r io.Reader, fn func(domain.Event)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data.Len() == 0 {
				continue
			}
			var evt domain.Event
			if err := json.Unmarshal([]byte(data.String()), &evt); err != nil {
				return fmt.Errorf("decode event: %w", err)
			}
			data.Reset()
			fn(evt)
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	return scanner.Err()
}
