// Package pco fetches calendar event instances from the Planning Center
// API: paged fetch over a UTC window, per-window result cache, and a
// rate-limit fallback to the last good result.
package pco

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/door-schedule-sync/backend/internal/config"
	"github.com/door-schedule-sync/backend/internal/schedule"
)

// Client talks to the calendar API. Safe for concurrent use; the fetch
// cache is guarded by an internal mutex.
type Client struct {
	cfg        config.PCOConfig
	httpClient *http.Client
	now        func() time.Time

	cache *windowCache
}

// NewClient creates a calendar client from config.
func NewClient(cfg config.PCOConfig) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        func() time.Time { return time.Now().UTC() },
		cache:      newWindowCache(),
	}
}

// Stats returns a snapshot of the request/cache counters for the status
// endpoint.
func (c *Client) Stats() map[string]any {
	return c.cache.statsSnapshot()
}

func (c *Client) authHeader() (string, error) {
	switch c.cfg.AuthType {
	case "personal_access_token":
		if c.cfg.AppID == "" || c.cfg.Secret == "" {
			return "", fmt.Errorf("pco: app_id and secret are required for personal_access_token auth")
		}
		token := base64.StdEncoding.EncodeToString([]byte(c.cfg.AppID + ":" + c.cfg.Secret))
		return "Basic " + token, nil
	case "oauth":
		if c.cfg.AccessToken == "" {
			return "", fmt.Errorf("pco: access_token is required for oauth auth")
		}
		return "Bearer " + c.cfg.AccessToken, nil
	default:
		return "", fmt.Errorf("pco: unsupported auth_type %q", c.cfg.AuthType)
	}
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) (int, error) {
	u := c.cfg.BaseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	auth, err := c.authHeader()
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", auth)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("pco: GET %s returned HTTP %d", path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("pco: decoding %s response: %w", path, err)
		}
	}
	return resp.StatusCode, nil
}

// CheckConnectivity reports whether the API answers an authenticated
// request.
func (c *Client) CheckConnectivity(ctx context.Context) bool {
	params := url.Values{"per_page": {"1"}}
	_, err := c.get(ctx, "/people/v2/people", params, nil)
	return err == nil
}

// Calendar is a compact calendar listing for source discovery.
type Calendar struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ListCalendars returns the calendars visible to the configured
// credentials.
func (c *Client) ListCalendars(ctx context.Context) ([]Calendar, error) {
	var payload struct {
		Data []struct {
			ID         string `json:"id"`
			Attributes struct {
				Name string `json:"name"`
			} `json:"attributes"`
		} `json:"data"`
	}
	params := url.Values{"per_page": {"200"}}
	if _, err := c.get(ctx, "/calendar/v2/calendars", params, &payload); err != nil {
		return nil, err
	}
	out := make([]Calendar, 0, len(payload.Data))
	for _, row := range payload.Data {
		out = append(out, Calendar{ID: row.ID, Name: row.Attributes.Name})
	}
	return out, nil
}

func (c *Client) eventInstancesPath() string {
	if c.cfg.CalendarID != "" {
		return "/calendar/v2/calendars/" + c.cfg.CalendarID + "/event_instances"
	}
	return "/calendar/v2/event_instances"
}

// instancePage is the JSON:API page shape for event instances.
type instancePage struct {
	Data []struct {
		ID         string `json:"id"`
		Attributes struct {
			Name     string `json:"name"`
			StartsAt string `json:"starts_at"`
			EndsAt   string `json:"ends_at"`
			Location string `json:"location"`
		} `json:"attributes"`
	} `json:"data"`
	Links struct {
		Next string `json:"next"`
	} `json:"links"`
}

// Events fetches event instances whose start falls inside [from, to].
// Cached results are reused within the cache TTL and the minimum fetch
// interval; on a rate-limit response the last good result for the window
// is returned when available.
func (c *Client) Events(ctx context.Context, from, to time.Time, maxItems int) ([]schedule.Event, error) {
	key := windowKey(from, to, maxItems)
	now := c.now()

	if items, ok := c.cache.lookup(key, now, c.cfg.CacheSeconds, c.cfg.MinFetchIntervalSec); ok {
		return items, nil
	}

	items, err := c.fetchWindow(ctx, from, to, maxItems)
	if err != nil {
		if isRateLimited(err) {
			if items, ok := c.cache.fallback(key, now); ok {
				return items, nil
			}
		}
		return nil, err
	}

	c.cache.store(key, now, items)
	return items, nil
}

// rateLimitError marks an HTTP 429 so the caller can degrade to cache.
type rateLimitError struct{ err error }

func (e *rateLimitError) Error() string { return e.err.Error() }
func (e *rateLimitError) Unwrap() error { return e.err }

func isRateLimited(err error) bool {
	_, ok := err.(*rateLimitError)
	return ok
}

func (c *Client) fetchWindow(ctx context.Context, from, to time.Time, maxItems int) ([]schedule.Event, error) {
	perPage := c.cfg.PerPage
	if perPage < 1 {
		perPage = 100
	}
	maxPages := c.cfg.MaxPages
	if maxPages < 1 {
		maxPages = 40
	}

	c.cache.countLiveFetch(c.now())

	items := []schedule.Event{}
	offset := 0
	for page := 1; page <= maxPages; page++ {
		params := url.Values{
			"per_page":              {strconv.Itoa(perPage)},
			"offset":                {strconv.Itoa(offset)},
			"order":                 {"starts_at"},
			"where[starts_at][gte]": {from.UTC().Format(time.RFC3339)},
			"where[starts_at][lte]": {to.UTC().Format(time.RFC3339)},
		}

		var payload instancePage
		c.cache.countInstanceRequest()
		status, err := c.get(ctx, c.eventInstancesPath(), params, &payload)
		if err != nil {
			if status == http.StatusTooManyRequests {
				return nil, &rateLimitError{err: err}
			}
			return nil, err
		}

		if len(payload.Data) == 0 {
			break
		}

		done := false
		for _, row := range payload.Data {
			evt, ok := c.buildEvent(ctx, row.ID, row.Attributes.Name, row.Attributes.StartsAt, row.Attributes.EndsAt, row.Attributes.Location, from, to)
			if !ok {
				continue
			}
			items = append(items, evt)
			if maxItems > 0 && len(items) >= maxItems {
				done = true
				break
			}
		}
		if done || payload.Links.Next == "" {
			break
		}
		offset += len(payload.Data)
	}

	return items, nil
}

func (c *Client) buildEvent(ctx context.Context, id, name, startsAt, endsAt, rawLocation string, from, to time.Time) (schedule.Event, bool) {
	start, ok := parseInstant(startsAt)
	if !ok || start.Before(from) || start.After(to) {
		return schedule.Event{}, false
	}
	end, _ := parseInstant(endsAt)

	if c.cfg.LocationMustContain != "" && !containsFold(rawLocation, c.cfg.LocationMustContain) {
		return schedule.Event{}, false
	}

	building, address, room := parseLocation(rawLocation)

	roomSource := "location"
	rooms := c.instanceRoomNames(ctx, id)
	if len(rooms) > 0 {
		room = rooms[0]
		roomSource = "resource_booking"
	}
	if room == "" {
		room = rawLocation
	}

	return schedule.Event{
		ID:          id,
		Name:        name,
		StartAt:     start,
		EndAt:       end,
		Room:        room,
		Rooms:       rooms,
		LocationRaw: rawLocation,
		Building:    building,
		Address:     address,
		RoomSource:  roomSource,
	}, true
}

// instanceRoomNames resolves booked room resources for an event instance.
// Failures degrade to the parsed location; a missing room never fails the
// fetch.
func (c *Client) instanceRoomNames(ctx context.Context, instanceID string) []string {
	var payload struct {
		Data []struct {
			Relationships struct {
				Resource struct {
					Data struct {
						ID string `json:"id"`
					} `json:"data"`
				} `json:"resource"`
			} `json:"relationships"`
		} `json:"data"`
		Included []struct {
			Type       string `json:"type"`
			ID         string `json:"id"`
			Attributes struct {
				Kind string `json:"kind"`
				Name string `json:"name"`
			} `json:"attributes"`
		} `json:"included"`
	}

	c.cache.countResourceBookingRequest()
	params := url.Values{"per_page": {"100"}, "include": {"resource"}}
	path := "/calendar/v2/event_instances/" + instanceID + "/resource_bookings"
	if _, err := c.get(ctx, path, params, &payload); err != nil {
		return nil
	}

	roomsByID := make(map[string]string)
	for _, inc := range payload.Included {
		if inc.Type == "Resource" && inc.Attributes.Kind == "Room" && inc.Attributes.Name != "" {
			roomsByID[inc.ID] = inc.Attributes.Name
		}
	}

	var names []string
	seen := make(map[string]bool)
	for _, rb := range payload.Data {
		name := roomsByID[rb.Relationships.Resource.Data.ID]
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

func parseInstant(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}
