package search

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

	"github.com/sethvargo/go-retry"
	"github.com/tidwall/gjson"

	"github.com/zhouzirui/searchchat/internal/config"
)

var (
	ErrMissingAPIKey      = errors.New("tavily: API key is missing")
	ErrUnexpectedResponse = errors.New("tavily: unexpected response")
)

const defaultTavilyURL = "https://api.tavily.com"

// Tavily calls the Tavily search API.
type Tavily struct {
	apiKey  string
	baseURL string
	depth   string
	client  *http.Client
	backoff func() retry.Backoff
}

// NewTavily constructs a Tavily provider from cfg. The per-call deadline comes from ctx.
func NewTavily(cfg config.SearchConfig) *Tavily {
	return NewTavilyWithClient(cfg, &http.Client{})
}

// NewTavilyWithClient constructs a Tavily provider using the supplied HTTP client.
func NewTavilyWithClient(cfg config.SearchConfig, client *http.Client) *Tavily {
	depth := cfg.Depth
	if depth == "" {
		depth = "basic"
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultTavilyURL
	}
	return &Tavily{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		depth:   depth,
		client:  client,
		backoff: defaultBackoff,
	}
}

// Back off on 429/5xx, doubling from 1s and capped at 30s, until ctx expires.
func defaultBackoff() retry.Backoff {
	return retry.WithCappedDuration(30*time.Second, retry.NewExponential(time.Second))
}

// Search posts a query to Tavily and returns at most count hits.
func (t *Tavily) Search(ctx context.Context, query string, count int) ([]Result, error) {
	if strings.TrimSpace(t.apiKey) == "" {
		return nil, ErrMissingAPIKey
	}

	payload, err := json.Marshal(map[string]any{
		"query":        query,
		"max_results":  count,
		"search_depth": t.depth,
	})
	if err != nil {
		return nil, err
	}

	var body []byte
	err = retry.Do(ctx, t.backoff(), func(ctx context.Context) error {
		body, err = t.post(ctx, payload)
		return err
	})
	if err != nil {
		return nil, err
	}

	return decodeResults(body, count)
}

func (t *Tavily) post(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tavily: read body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return data, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return nil, retry.RetryableError(fmt.Errorf("tavily http %d", resp.StatusCode))
	default:
		return nil, fmt.Errorf("tavily http %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
}

// decodeResults keeps hits whose content is a string as text results and
// coerces anything else to its raw JSON.
func decodeResults(body []byte, count int) ([]Result, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrUnexpectedResponse
	}

	items := gjson.GetBytes(body, "results")
	if !items.Exists() {
		return []Result{}, nil
	}
	if !items.IsArray() {
		return nil, fmt.Errorf("%w: results is %s", ErrUnexpectedResponse, items.Type)
	}

	results := make([]Result, 0, count)
	items.ForEach(func(_, item gjson.Result) bool {
		if count > 0 && len(results) >= count {
			return false
		}
		results = append(results, decodeResult(item))
		return true
	})
	return results, nil
}

func decodeResult(item gjson.Result) Result {
	if item.Type == gjson.String {
		return TextResult("", "", item.String())
	}

	content := item.Get("content")
	if item.IsObject() && content.Type == gjson.String {
		return TextResult(item.Get("title").String(), linkURL(item.Get("url").String()), content.String())
	}
	return RawResult(item.Raw)
}

// linkURL keeps only absolute http(s) links; anything else is dropped so it never
// reaches the page as a clickable href.
func linkURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return u.String()
	}
	return ""
}
