// Package unifi talks to the UniFi Access controller API and reconciles
// the desired door schedule against its schedule and policy resources.
package unifi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/door-schedule-sync/backend/internal/config"
)

// API is the controller surface the reconciler needs. The HTTP client
// implements it; tests substitute a fake.
type API interface {
	ListSchedules(ctx context.Context) ([]Schedule, error)
	GetSchedule(ctx context.Context, id string) (*ScheduleDetail, error)
	UpdateSchedule(ctx context.Context, id string, payload SchedulePayload) error
	ListPolicies(ctx context.Context) ([]Policy, error)
	CreatePolicy(ctx context.Context, payload PolicyPayload) error
	DeletePolicy(ctx context.Context, id string) error
}

// Schedule is one row from the schedule listing.
type Schedule struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	IsDefault      bool   `json:"is_default"`
	HolidayGroupID string `json:"holiday_group_id"`
}

// TimeRange is one HH:MM:SS range inside a weekly pattern.
type TimeRange struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// ScheduleDetail is the full schedule resource, weekly pattern included.
type ScheduleDetail struct {
	ID              string                 `json:"id"`
	Name            string                 `json:"name"`
	Weekly          map[string][]TimeRange `json:"weekly"`
	HolidayGroupID  string                 `json:"holiday_group_id"`
	HolidaySchedule json.RawMessage        `json:"holiday_schedule"`
}

// SchedulePayload is the update body for a schedule resource. Fields other
// than the weekly pattern are carried over from the existing resource.
type SchedulePayload struct {
	Name            string                 `json:"name"`
	WeekSchedule    map[string][]TimeRange `json:"week_schedule"`
	HolidayGroupID  string                 `json:"holiday_group_id"`
	HolidaySchedule json.RawMessage        `json:"holiday_schedule"`
}

// Resource is one (id, type) binding inside a policy.
type Resource struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Policy binds a schedule to a set of door resources.
type Policy struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	ScheduleID string     `json:"schedule_id"`
	Resources  []Resource `json:"resources"`
}

// PolicyPayload is the create body for a policy. The API takes `resource`
// on create but returns `resources` on read.
type PolicyPayload struct {
	Name       string     `json:"name"`
	Resource   []Resource `json:"resource"`
	ScheduleID string     `json:"schedule_id"`
}

// Client is the HTTP controller client.
type Client struct {
	cfg        config.UnifiConfig
	httpClient *http.Client
}

// NewClient creates a controller client from config.
func NewClient(cfg config.UnifiConfig) *Client {
	transport := &http.Transport{}
	if !cfg.VerifyTLS {
		// Controllers ship with self-signed certificates.
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 20 * time.Second, Transport: transport},
	}
}

func (c *Client) authHeaders() (map[string]string, error) {
	switch c.cfg.AuthType {
	case "none":
		return nil, nil
	case "api_token":
		if c.cfg.APIToken == "" {
			return nil, fmt.Errorf("unifi: api_token is required when auth_type is api_token")
		}
		header := c.cfg.APIKeyHeader
		if header == "" {
			header = "X-API-Key"
		}
		value := c.cfg.APIToken
		if strings.EqualFold(header, "Authorization") && !strings.HasPrefix(strings.ToLower(value), "bearer ") {
			value = "Bearer " + value
		}
		return map[string]string{header: value}, nil
	default:
		return nil, fmt.Errorf("unifi: unsupported auth_type %q", c.cfg.AuthType)
	}
}

// envelope is the controller's standard response wrapper.
type envelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	headers, err := c.authHeaders()
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unifi: %s %s returned HTTP %d", method, path, resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("unifi: decoding %s %s response: %w", method, path, err)
	}
	if env.Code != "" && env.Code != "SUCCESS" {
		return nil, fmt.Errorf("unifi: %s %s failed: %s %s", method, path, env.Code, env.Msg)
	}
	return env.Data, nil
}

// CheckConnectivity reports whether the controller answers at all.
func (c *Client) CheckConnectivity(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/", nil)
	if err != nil {
		return false
	}
	if headers, err := c.authHeaders(); err == nil {
		for k, v := range headers {
			req.Header.Set(k, v)
		}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

// doorProbePaths are the door-listing endpoints across controller
// versions; the first successful response wins.
var doorProbePaths = []string{
	"/api/v1/developer/doors",
	"/api/v1/developer/door",
	"/api/v1/doors",
	"/api/v1/door",
	"/api/doors",
	"/doors",
}

// DoorListing is the raw result of a successful door probe.
type DoorListing struct {
	Path   string          `json:"path"`
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

// ListDoors probes the known door-listing endpoints and returns the first
// successful response.
func (c *Client) ListDoors(ctx context.Context) (*DoorListing, error) {
	headers, err := c.authHeaders()
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, path := range doorProbePaths {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
		if err != nil {
			return nil, err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", path, err)
			continue
		}
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("%s: %w", path, readErr)
			continue
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return &DoorListing{Path: path, Status: resp.StatusCode, Data: body}, nil
		}
		lastErr = fmt.Errorf("%s: HTTP %d", path, resp.StatusCode)
	}
	return nil, fmt.Errorf("unifi: unable to list doors: %w", lastErr)
}

// ListSchedules returns the access schedules.
func (c *Client) ListSchedules(ctx context.Context) ([]Schedule, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/v1/developer/access_policies/schedules", nil)
	if err != nil {
		return nil, err
	}
	var rows []Schedule
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("unifi: decoding schedule list: %w", err)
	}
	return rows, nil
}

// GetSchedule returns one schedule's full detail.
func (c *Client) GetSchedule(ctx context.Context, id string) (*ScheduleDetail, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/v1/developer/access_policies/schedules/"+id, nil)
	if err != nil {
		return nil, err
	}
	var detail ScheduleDetail
	if err := json.Unmarshal(data, &detail); err != nil {
		return nil, fmt.Errorf("unifi: decoding schedule detail: %w", err)
	}
	return &detail, nil
}

// UpdateSchedule replaces a schedule's weekly pattern.
func (c *Client) UpdateSchedule(ctx context.Context, id string, payload SchedulePayload) error {
	_, err := c.do(ctx, http.MethodPut, "/api/v1/developer/access_policies/schedules/"+id, payload)
	return err
}

// ListPolicies returns the access policies.
func (c *Client) ListPolicies(ctx context.Context) ([]Policy, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/v1/developer/access_policies?page_num=1&page_size=200", nil)
	if err != nil {
		return nil, err
	}
	var rows []Policy
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("unifi: decoding policy list: %w", err)
	}
	return rows, nil
}

// CreatePolicy creates a policy binding a schedule to door resources.
func (c *Client) CreatePolicy(ctx context.Context, payload PolicyPayload) error {
	_, err := c.do(ctx, http.MethodPost, "/api/v1/developer/access_policies", payload)
	return err
}

// DeletePolicy removes a policy.
func (c *Client) DeletePolicy(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/v1/developer/access_policies/"+id, nil)
	return err
}
