package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"backoffice/internal/core"
	"backoffice/internal/remote"
)

// Ensure interface conformance
var _ remote.MutationClient = (*Client)(nil)

const (
	activitiesPath = "/holding_activity_logs"
	valuationsPath = "/fund_valuations"
	fundsPath      = "/portfolio_funds"

	maxErrorBody = 4 << 10
)

// Options configure a Client. They are fixed at construction.
type Options struct {
	// BaseURL is the API root, e.g. "https://backoffice.example.com/api".
	BaseURL string

	// Token is sent as a bearer token when set.
	Token string

	// Timeout bounds a single request (default 30s).
	Timeout time.Duration

	// DeferIRR asks the backend to skip its synchronous IRR computation
	// when activities are created; the coordinator recalculates once per
	// fund after the batch instead.
	DeferIRR bool

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// Client talks to the back-office REST API.
type Client struct {
	base     *url.URL
	token    string
	deferIRR bool
	http     *http.Client
}

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Detail)
}

// NotFound reports whether the record addressed by the request is gone.
func (e *APIError) NotFound() bool { return e.StatusCode == http.StatusNotFound }

// New builds a client from options.
func New(opts Options) (*Client, error) {
	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" {
		return nil, errors.New("missing API base URL")
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse API base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid API base URL scheme %q: must be http or https", base.Scheme)
	}

	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}

	return &Client{
		base:     base,
		token:    strings.TrimSpace(opts.Token),
		deferIRR: opts.DeferIRR,
		http:     hc,
	}, nil
}

// CreateActivity implements remote.ActivityWriter
func (c *Client) CreateActivity(ctx context.Context, a core.Activity) (core.Activity, error) {
	var query url.Values
	if c.deferIRR {
		query = url.Values{"skip_irr_calculation": []string{"true"}}
	}
	var out core.Activity
	if err := c.do(ctx, http.MethodPost, activitiesPath, query, activityBody(a), &out); err != nil {
		return core.Activity{}, fmt.Errorf("create activity: %w", err)
	}
	return out, nil
}

// UpdateActivity implements remote.ActivityWriter
func (c *Client) UpdateActivity(ctx context.Context, id int64, a core.Activity) (core.Activity, error) {
	var out core.Activity
	if err := c.do(ctx, http.MethodPatch, recordPath(activitiesPath, id), nil, activityBody(a), &out); err != nil {
		return core.Activity{}, fmt.Errorf("update activity %d: %w", id, err)
	}
	return out, nil
}

// DeleteActivity implements remote.ActivityWriter
func (c *Client) DeleteActivity(ctx context.Context, id int64) error {
	if err := c.do(ctx, http.MethodDelete, recordPath(activitiesPath, id), nil, nil, nil); err != nil {
		return fmt.Errorf("delete activity %d: %w", id, err)
	}
	return nil
}

// CreateValuation implements remote.ValuationWriter
func (c *Client) CreateValuation(ctx context.Context, v core.Valuation) (core.Valuation, error) {
	var out core.Valuation
	if err := c.do(ctx, http.MethodPost, valuationsPath, nil, valuationBody(v), &out); err != nil {
		return core.Valuation{}, fmt.Errorf("create valuation: %w", err)
	}
	return out, nil
}

// UpdateValuation implements remote.ValuationWriter
func (c *Client) UpdateValuation(ctx context.Context, id int64, v core.Valuation) (core.Valuation, error) {
	var out core.Valuation
	if err := c.do(ctx, http.MethodPatch, recordPath(valuationsPath, id), nil, valuationBody(v), &out); err != nil {
		return core.Valuation{}, fmt.Errorf("update valuation %d: %w", id, err)
	}
	return out, nil
}

// DeleteValuation implements remote.ValuationWriter
func (c *Client) DeleteValuation(ctx context.Context, id int64) error {
	if err := c.do(ctx, http.MethodDelete, recordPath(valuationsPath, id), nil, nil, nil); err != nil {
		return fmt.Errorf("delete valuation %d: %w", id, err)
	}
	return nil
}

type recalcRequest struct {
	ActivityDate string `json:"activity_date"`
}

type recalcResponse struct {
	RecalculationResult struct {
		RecalculatedExisting int `json:"recalculated_existing"`
	} `json:"recalculation_result"`
}

// RecalculateIRR implements remote.IRRRecalculator
func (c *Client) RecalculateIRR(ctx context.Context, fundID int64, activityDate string) (int, error) {
	path := recordPath(fundsPath, fundID) + "/recalculate-irr"
	var out recalcResponse
	if err := c.do(ctx, http.MethodPost, path, nil, recalcRequest{ActivityDate: activityDate}, &out); err != nil {
		return 0, fmt.Errorf("recalculate IRR for fund %d: %w", fundID, err)
	}
	return out.RecalculationResult.RecalculatedExisting, nil
}

// activityPayload and valuationPayload omit the id: the backend takes it
// from the path.
type activityPayload struct {
	PortfolioFundID   int64   `json:"portfolio_fund_id"`
	ProductID         int64   `json:"product_id"`
	ActivityType      string  `json:"activity_type"`
	ActivityTimestamp string  `json:"activity_timestamp"`
	Amount            float64 `json:"amount"`
}

type valuationPayload struct {
	PortfolioFundID int64   `json:"portfolio_fund_id"`
	ValuationDate   string  `json:"valuation_date"`
	Valuation       float64 `json:"valuation"`
}

func activityBody(a core.Activity) activityPayload {
	return activityPayload{
		PortfolioFundID:   a.PortfolioFundID,
		ProductID:         a.ProductID,
		ActivityType:      a.ActivityType,
		ActivityTimestamp: a.ActivityTimestamp,
		Amount:            a.Amount,
	}
}

func valuationBody(v core.Valuation) valuationPayload {
	return valuationPayload{
		PortfolioFundID: v.PortfolioFundID,
		ValuationDate:   v.ValuationDate,
		Valuation:       v.Valuation,
	}
}

func recordPath(collection string, id int64) string {
	return collection + "/" + strconv.FormatInt(id, 10)
}

// do sends one request and decodes the JSON answer into out when out is
// not nil. Empty bodies are accepted for any status in the 2xx range.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := *c.base
	u.Path = c.base.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	slog.DebugContext(ctx, "Backend call completed",
		"method", method,
		"path", path,
		"status_code", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Detail:     readDetail(resp.Body),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// readDetail extracts the message from a {"detail": "..."} error body
// or falls back to the trimmed raw text.
func readDetail(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(data) == 0 {
		return ""
	}

	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(data, &payload) == nil && len(payload.Detail) > 0 {
		var s string
		if json.Unmarshal(payload.Detail, &s) == nil {
			return s
		}
		return string(payload.Detail)
	}
	return strings.TrimSpace(string(data))
}
