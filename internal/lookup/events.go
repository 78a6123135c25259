package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/astana-data/hotspot.report/internal/hotspot"
)

// EventsClient implements hotspot.EventLookup against an event feed
// that serves city events near a point.
type EventsClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewEventsClient creates an event lookup client for the given feed
// endpoint.
func NewEventsClient(apiKey, baseURL string, timeout time.Duration) *EventsClient {
	return &EventsClient{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Nearby returns the events near the given point. Feed entries with a
// missing or malformed start time are dropped rather than reported
// with a zero time.
func (c *EventsClient) Nearby(ctx context.Context, lat, lon float64) ([]hotspot.Event, error) {
	params := url.Values{
		"key": {c.apiKey},
		"lat": {fmt.Sprintf("%.6f", lat)},
		"lon": {fmt.Sprintf("%.6f", lon)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("events request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("events API error: status %d: %s", resp.StatusCode, body)
	}

	var payload eventsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	events := make([]hotspot.Event, 0, len(payload.Events))
	for _, item := range payload.Events {
		start, err := time.Parse(time.RFC3339, item.StartTime)
		if err != nil {
			continue
		}
		events = append(events, hotspot.Event{
			Name:               item.Name,
			Type:               item.Type,
			StartTime:          start,
			ExpectedAttendance: item.ExpectedAttendance,
			IsPredicted:        item.IsPredicted,
		})
	}
	return events, nil
}

type eventsResponse struct {
	Events []struct {
		Name               string `json:"name"`
		Type               string `json:"type"`
		StartTime          string `json:"start_time"`
		ExpectedAttendance int    `json:"expected_attendance"`
		IsPredicted        bool   `json:"is_predicted"`
	} `json:"events"`
}
