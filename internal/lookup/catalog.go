package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/astana-data/hotspot.report/internal/hotspot"
)

// DefaultCatalogURL is the production catalog endpoint for nearby
// organisation search.
const DefaultCatalogURL = "https://catalog.api.2gis.com/3.0/items"

// defaultClosingHour is assumed when a schedule is missing or
// unparseable.
const defaultClosingHour = 22

// CatalogClient implements hotspot.OrganizationLookup against a
// 2GIS-style catalog API.
type CatalogClient struct {
	apiKey     string
	baseURL    string
	limit      int
	httpClient *http.Client
}

// NewCatalogClient creates an organisation lookup client. limit bounds
// the number of records requested per centre.
func NewCatalogClient(apiKey string, limit int, timeout time.Duration) *CatalogClient {
	return &CatalogClient{
		apiKey:     apiKey,
		baseURL:    DefaultCatalogURL,
		limit:      limit,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SetBaseURL overrides the catalog endpoint. Tests point it at a local
// httptest server.
func (c *CatalogClient) SetBaseURL(u string) { c.baseURL = u }

// Nearby returns the organisations within radiusMeters of the given
// point.
func (c *CatalogClient) Nearby(ctx context.Context, lat, lon, radiusMeters float64) ([]hotspot.Organization, error) {
	params := url.Values{
		"key":    {c.apiKey},
		"point":  {fmt.Sprintf("%.6f,%.6f", lon, lat)}, // catalog API uses lon,lat order
		"radius": {strconv.Itoa(int(radiusMeters))},
		"type":   {"branch"},
		"fields": {"items.point,items.name,items.type,items.schedule,items.rubrics"},
		"limit":  {strconv.Itoa(c.limit)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("catalog API error: status %d: %s", resp.StatusCode, body)
	}

	var payload catalogResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	orgs := make([]hotspot.Organization, 0, len(payload.Result.Items))
	for _, item := range payload.Result.Items {
		org := hotspot.Organization{
			Name:        item.Name,
			Category:    item.category(),
			Lat:         item.Point.Lat,
			Lon:         item.Point.Lon,
			ClosingHour: parseClosingHour(item.Schedule.Workdays),
		}
		// Items without a point fall back to the queried centre.
		if org.Lat == 0 && org.Lon == 0 {
			org.Lat, org.Lon = lat, lon
		}
		if validOrganization(org) {
			orgs = append(orgs, org)
		}
	}
	return orgs, nil
}

// parseClosingHour extracts the closing hour from a schedule string
// like "09:00-23:00". Unparseable schedules get the default.
func parseClosingHour(workdays string) int {
	_, closing, found := strings.Cut(workdays, "-")
	if !found {
		return defaultClosingHour
	}
	hourStr, _, found := strings.Cut(closing, ":")
	if !found {
		return defaultClosingHour
	}
	hour, err := strconv.Atoi(strings.TrimSpace(hourStr))
	if err != nil || hour < 0 || hour > 24 {
		return defaultClosingHour
	}
	return hour
}

// Catalog API response types.

type catalogResponse struct {
	Result struct {
		Items []catalogItem `json:"items"`
	} `json:"result"`
}

type catalogItem struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Point struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"point"`
	Schedule struct {
		Workdays string `json:"workdays"`
	} `json:"schedule"`
	Rubrics []struct {
		Name string `json:"name"`
	} `json:"rubrics"`
}

// category prefers the first rubric over the generic item type.
func (i catalogItem) category() string {
	if len(i.Rubrics) > 0 && i.Rubrics[0].Name != "" {
		return i.Rubrics[0].Name
	}
	return i.Type
}
