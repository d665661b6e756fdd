package callrail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"call-insights/internal/config"
)

// ErrNotConfigured is returned when the provider credentials are absent.
// Refresh endpoints surface it as a client error instead of retrying.
var ErrNotConfigured = errors.New("callrail: api key or account id not configured")

const (
	defaultPerPage    = 250
	requestTimeout    = 30 * time.Second
	maxRetryElapsed   = 45 * time.Second
	maxPagesPerWindow = 200
)

// Client fetches call records from the CallRail v3 REST API.
type Client struct {
	apiKey    string
	accountID string
	baseURL   string
	http      *http.Client
	log       *slog.Logger
}

func NewClient(cfg config.CallRailConfig, log *slog.Logger) *Client {
	return &Client{
		apiKey:    cfg.APIKey,
		accountID: cfg.AccountID,
		baseURL:   cfg.BaseURL,
		http:      &http.Client{Timeout: requestTimeout},
		log:       log.With("component", "callrail"),
	}
}

func (c *Client) Configured() bool {
	return c.apiKey != "" && c.accountID != ""
}

type page struct {
	Calls       []map[string]any `json:"calls"`
	Page        int              `json:"page"`
	TotalPages  int              `json:"total_pages"`
	HasNextPage bool             `json:"has_next_page"`
}

// FetchCalls pulls every call that started inside [from, to] (provider dates
// are inclusive), walking the paginated listing until the API reports no
// further pages. An empty companyID means all companies on the account.
func (c *Client) FetchCalls(ctx context.Context, from, to time.Time, companyID string) ([]map[string]any, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	var out []map[string]any
	for pageNum := 1; pageNum <= maxPagesPerWindow; pageNum++ {
		p, err := c.fetchPage(ctx, from, to, companyID, pageNum)
		if err != nil {
			return nil, err
		}
		out = append(out, p.Calls...)
		if !p.HasNextPage || len(p.Calls) == 0 {
			break
		}
	}
	c.log.Info("fetched calls from provider",
		"from", from.Format("2006-01-02"),
		"to", to.Format("2006-01-02"),
		"count", len(out))
	return out, nil
}

func (c *Client) fetchPage(ctx context.Context, from, to time.Time, companyID string, pageNum int) (page, error) {
	q := url.Values{}
	q.Set("start_date", from.Format("2006-01-02"))
	q.Set("end_date", to.Format("2006-01-02"))
	if companyID != "" {
		q.Set("company_id", companyID)
	}
	q.Set("per_page", strconv.Itoa(defaultPerPage))
	q.Set("page", strconv.Itoa(pageNum))
	q.Set("fields", "id,answered,duration,start_time,tracking_phone_number,customer_phone_number,source_name,tags,agent_email,voicemail,company_id,company_name,call_type,recording,note")

	endpoint := fmt.Sprintf("%s/a/%s/calls.json?%s", c.baseURL, c.accountID, q.Encode())

	var p page
	var lastErr error
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Token token="+c.apiKey)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			return err
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("callrail: status %d: %s", resp.StatusCode, truncate(body, 200))
			c.log.Warn("provider request failed, retrying", "status", resp.StatusCode, "page", pageNum)
			return lastErr
		}
		if resp.StatusCode >= 400 {
			lastErr = fmt.Errorf("callrail: status %d: %s", resp.StatusCode, truncate(body, 200))
			return backoff.Permanent(lastErr)
		}
		if err := json.Unmarshal(body, &p); err != nil {
			lastErr = fmt.Errorf("callrail: decode page %d: %w", pageNum, err)
			return lastErr
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = maxRetryElapsed
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		if lastErr != nil {
			return page{}, lastErr
		}
		return page{}, err
	}
	return p, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
