package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/papaburgs/fluffy-miner/internal/gate"
	"github.com/papaburgs/fluffy-miner/internal/metrics"
	"github.com/papaburgs/fluffy-miner/internal/types"
)

// HTTPClient talks to the game API over HTTP. Every request waits on the gate
// and carries the bearer token.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	gate    *gate.Gate
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient builds a client for baseURL. A nil gate disables rate limiting.
func NewHTTPClient(baseURL, token string, timeout time.Duration, g *gate.Gate) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: &bearerTransport{token: token, next: http.DefaultTransport},
		},
		gate: g,
	}
}

type envelope struct {
	Data json.RawMessage `json:"data"`
	Meta *types.Meta     `json:"meta"`
}

// do sends one request and returns the raw body of a 2xx answer.
// Failures are not retried; a 429 locks the gate for the advertised wait.
func (c *HTTPClient) do(ctx context.Context, op, method, path string, query url.Values, body any) ([]byte, error) {
	l := slog.With("function", "do", "operation", op)

	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encoding request: %w", op, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.gate != nil {
		if err := c.gate.Latch(ctx); err != nil {
			return nil, fmt.Errorf("%s: waiting for rate limit: %w", op, err)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordAPIRequest(op, 0, time.Since(start).Seconds())
		l.Error("error in calling api", "error", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	metrics.RecordAPIRequest(op, resp.StatusCode, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%s: reading response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr, retry := parseError(op, resp.StatusCode, b)
		if resp.StatusCode == http.StatusTooManyRequests && c.gate != nil {
			if retry == 0 {
				retry = retryAfterHeader(resp.Header)
			}
			c.gate.Lock(retry)
		}
		l.Warn("api request failed", "rc", resp.StatusCode, "message", apiErr.Message)
		return nil, apiErr
	}
	l.Debug("api request done", "rc", resp.StatusCode, "path", path)
	return b, nil
}

// data sends a request and decodes the data member of the answer into out.
func (c *HTTPClient) data(ctx context.Context, op, method, path string, query url.Values, body, out any) (*types.Meta, error) {
	b, err := c.do(ctx, op, method, path, query, body)
	if err != nil {
		return nil, err
	}
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("%s: decoding response: %w", op, err)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, fmt.Errorf("%s: decoding data: %w", op, err)
		}
	}
	return env.Meta, nil
}

func retryAfterHeader(h http.Header) time.Duration {
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return time.Second
}

func pageQuery(page, limit int) url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	return q
}

func (c *HTTPClient) Status(ctx context.Context) (types.ServerStatus, error) {
	var s types.ServerStatus
	b, err := c.do(ctx, "status", http.MethodGet, "/", nil, nil)
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal(b, &s); err != nil {
		return s, fmt.Errorf("status: decoding response: %w", err)
	}
	return s, nil
}

func (c *HTTPClient) MyAgent(ctx context.Context) (types.Agent, error) {
	var a types.Agent
	_, err := c.data(ctx, "my-agent", http.MethodGet, "/my/agent", nil, nil, &a)
	return a, err
}

func (c *HTTPClient) Contracts(ctx context.Context, page, limit int) ([]types.Contract, *types.Meta, error) {
	var out []types.Contract
	meta, err := c.data(ctx, "contracts", http.MethodGet, "/my/contracts", pageQuery(page, limit), nil, &out)
	return out, meta, err
}

func (c *HTTPClient) NegotiateContract(ctx context.Context, shipSymbol string) (types.Contract, error) {
	var out struct {
		Contract types.Contract `json:"contract"`
	}
	_, err := c.data(ctx, "negotiate-contract", http.MethodPost, "/my/ships/"+url.PathEscape(shipSymbol)+"/negotiate/contract", nil, nil, &out)
	return out.Contract, err
}

func (c *HTTPClient) AcceptContract(ctx context.Context, contractID string) (types.AcceptContractResult, error) {
	var out types.AcceptContractResult
	_, err := c.data(ctx, "accept-contract", http.MethodPost, "/my/contracts/"+url.PathEscape(contractID)+"/accept", nil, nil, &out)
	return out, err
}

func (c *HTTPClient) Waypoints(ctx context.Context, system string, filter WaypointFilter, page, limit int) ([]types.Waypoint, *types.Meta, error) {
	q := pageQuery(page, limit)
	if filter.Type != "" {
		q.Set("type", filter.Type)
	}
	for _, t := range filter.Traits {
		q.Add("traits", t)
	}
	var out []types.Waypoint
	meta, err := c.data(ctx, "waypoints", http.MethodGet, "/systems/"+url.PathEscape(system)+"/waypoints", q, nil, &out)
	return out, meta, err
}

func (c *HTTPClient) Waypoint(ctx context.Context, system, waypoint string) (types.Waypoint, error) {
	var out types.Waypoint
	_, err := c.data(ctx, "waypoint", http.MethodGet, waypointPath(system, waypoint), nil, nil, &out)
	return out, err
}

func (c *HTTPClient) Shipyard(ctx context.Context, system, waypoint string) (types.Shipyard, error) {
	var out types.Shipyard
	_, err := c.data(ctx, "shipyard", http.MethodGet, waypointPath(system, waypoint)+"/shipyard", nil, nil, &out)
	return out, err
}

func (c *HTTPClient) Market(ctx context.Context, system, waypoint string) (types.Market, error) {
	var out types.Market
	_, err := c.data(ctx, "market", http.MethodGet, waypointPath(system, waypoint)+"/market", nil, nil, &out)
	return out, err
}

func (c *HTTPClient) Ships(ctx context.Context, page, limit int) ([]types.Ship, *types.Meta, error) {
	var out []types.Ship
	meta, err := c.data(ctx, "ships", http.MethodGet, "/my/ships", pageQuery(page, limit), nil, &out)
	return out, meta, err
}

func (c *HTTPClient) Ship(ctx context.Context, shipSymbol string) (types.Ship, error) {
	var out types.Ship
	_, err := c.data(ctx, "ship", http.MethodGet, shipPath(shipSymbol), nil, nil, &out)
	return out, err
}

func (c *HTTPClient) PurchaseShip(ctx context.Context, shipType, waypoint string) (types.PurchaseShipResult, error) {
	body := map[string]string{"shipType": shipType, "waypointSymbol": waypoint}
	var out types.PurchaseShipResult
	_, err := c.data(ctx, "purchase-ship", http.MethodPost, "/my/ships", nil, body, &out)
	return out, err
}

func (c *HTTPClient) OrbitShip(ctx context.Context, shipSymbol string) (types.ShipNav, error) {
	var out struct {
		Nav types.ShipNav `json:"nav"`
	}
	_, err := c.data(ctx, "orbit", http.MethodPost, shipPath(shipSymbol)+"/orbit", nil, nil, &out)
	return out.Nav, err
}

func (c *HTTPClient) DockShip(ctx context.Context, shipSymbol string) (types.ShipNav, error) {
	var out struct {
		Nav types.ShipNav `json:"nav"`
	}
	_, err := c.data(ctx, "dock", http.MethodPost, shipPath(shipSymbol)+"/dock", nil, nil, &out)
	return out.Nav, err
}

func (c *HTTPClient) NavigateShip(ctx context.Context, shipSymbol, waypoint string) (types.NavigateResult, error) {
	body := map[string]string{"waypointSymbol": waypoint}
	var out types.NavigateResult
	_, err := c.data(ctx, "navigate", http.MethodPost, shipPath(shipSymbol)+"/navigate", nil, body, &out)
	return out, err
}

func (c *HTTPClient) RefuelShip(ctx context.Context, shipSymbol string, units int) (types.RefuelResult, error) {
	body := map[string]int{"units": units}
	var out types.RefuelResult
	_, err := c.data(ctx, "refuel", http.MethodPost, shipPath(shipSymbol)+"/refuel", nil, body, &out)
	return out, err
}

func (c *HTTPClient) ExtractResources(ctx context.Context, shipSymbol string) (types.ExtractResult, error) {
	var out types.ExtractResult
	_, err := c.data(ctx, "extract", http.MethodPost, shipPath(shipSymbol)+"/extract", nil, nil, &out)
	return out, err
}

func (c *HTTPClient) SellCargo(ctx context.Context, shipSymbol, tradeSymbol string, units int) (types.SellResult, error) {
	body := struct {
		Symbol string `json:"symbol"`
		Units  int    `json:"units"`
	}{tradeSymbol, units}
	var out types.SellResult
	_, err := c.data(ctx, "sell", http.MethodPost, shipPath(shipSymbol)+"/sell", nil, body, &out)
	return out, err
}

func waypointPath(system, waypoint string) string {
	return "/systems/" + url.PathEscape(system) + "/waypoints/" + url.PathEscape(waypoint)
}

func shipPath(shipSymbol string) string {
	return "/my/ships/" + url.PathEscape(shipSymbol)
}
