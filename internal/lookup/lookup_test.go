package lookup

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astana-data/hotspot.report/internal/hotspot"
)

func TestCatalogClientNearby(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "test-key", q.Get("key"))
		// Catalog point parameter is lon,lat.
		assert.Equal(t, "71.449100,51.169400", q.Get("point"))
		assert.Equal(t, "500", q.Get("radius"))
		assert.Equal(t, "20", q.Get("limit"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"result":{"items":[
			{"name":"Mega Silk Way","type":"branch",
			 "point":{"lat":51.1694,"lon":71.4491},
			 "schedule":{"workdays":"10:00-23:00"},
			 "rubrics":[{"name":"Shopping mall"}]},
			{"name":"No Point Cafe","type":"branch",
			 "schedule":{"workdays":"bad schedule"}},
			{"name":"Broken","type":"branch",
			 "point":{"lat":200,"lon":71.4}}
		]}}`)
	}))
	defer server.Close()

	client := NewCatalogClient("test-key", 20, time.Second)
	client.SetBaseURL(server.URL)

	orgs, err := client.Nearby(context.Background(), 51.1694, 71.4491, 500)
	require.NoError(t, err)
	require.Len(t, orgs, 2, "out-of-range latitude should be dropped")

	assert.Equal(t, "Mega Silk Way", orgs[0].Name)
	assert.Equal(t, "Shopping mall", orgs[0].Category, "rubric preferred over item type")
	assert.Equal(t, 23, orgs[0].ClosingHour)

	assert.Equal(t, "No Point Cafe", orgs[1].Name)
	assert.Equal(t, "branch", orgs[1].Category)
	assert.Equal(t, defaultClosingHour, orgs[1].ClosingHour)
	assert.Equal(t, 51.1694, orgs[1].Lat, "missing point falls back to the queried centre")
	assert.Equal(t, 71.4491, orgs[1].Lon)
}

func TestCatalogClientError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	}))
	defer server.Close()

	client := NewCatalogClient("test-key", 20, time.Second)
	client.SetBaseURL(server.URL)

	_, err := client.Nearby(context.Background(), 51.17, 71.45, 500)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}

func TestParseClosingHour(t *testing.T) {
	tests := []struct {
		workdays string
		want     int
	}{
		{"09:00-23:00", 23},
		{"08:30-22:30", 22},
		{"00:00-24:00", 24},
		{"10:00", defaultClosingHour},
		{"", defaultClosingHour},
		{"09:00-late", defaultClosingHour},
		{"09:00-99:00", defaultClosingHour},
	}
	for _, tt := range tests {
		if got := parseClosingHour(tt.workdays); got != tt.want {
			t.Errorf("parseClosingHour(%q) = %d, want %d", tt.workdays, got, tt.want)
		}
	}
}

func TestEventsClientNearby(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"events":[
			{"name":"Concert","type":"concert","start_time":"2026-08-30T19:00:00+06:00",
			 "expected_attendance":5000,"is_predicted":false},
			{"name":"Bad Time","type":"festival","start_time":"tonight"}
		]}`)
	}))
	defer server.Close()

	client := NewEventsClient("test-key", server.URL, time.Second)
	events, err := client.Nearby(context.Background(), 51.17, 71.45)
	require.NoError(t, err)
	require.Len(t, events, 1, "unparseable start time should be dropped")
	assert.Equal(t, "Concert", events[0].Name)
	assert.Equal(t, 5000, events[0].ExpectedAttendance)
	assert.False(t, events[0].IsPredicted)
}

func TestForecastClientPredict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/predict", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"prediction":[1,2,3,4]}`)
	}))
	defer server.Close()

	client := NewForecastClient(server.URL, time.Second)
	history := []hotspot.Grid{
		{Size: 2, Cells: []float64{10, 20, 30, 40}},
		{Size: 2, Cells: []float64{11, 21, 31, 41}},
	}
	grid, err := client.Predict(context.Background(), history)
	require.NoError(t, err)
	assert.Equal(t, 2, grid.Size)
	assert.Equal(t, []float64{1, 2, 3, 4}, grid.Cells)
}

func TestForecastClientSizeMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"prediction":[1,2,3]}`)
	}))
	defer server.Close()

	client := NewForecastClient(server.URL, time.Second)
	_, err := client.Predict(context.Background(), []hotspot.Grid{{Size: 2, Cells: []float64{1, 2, 3, 4}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 cells, want 4")
}

type countingOrgLookup struct {
	calls int
	orgs  []hotspot.Organization
	err   error
}

func (c *countingOrgLookup) Nearby(context.Context, float64, float64, float64) ([]hotspot.Organization, error) {
	c.calls++
	return c.orgs, c.err
}

func TestCachedOrganizations(t *testing.T) {
	inner := &countingOrgLookup{orgs: []hotspot.Organization{{Name: "A", Lat: 51.17, Lon: 71.45, ClosingHour: 22}}}
	cached := NewCachedOrganizations(inner, 8)

	hits := 0
	cached.SetObserver(func(hit bool) {
		if hit {
			hits++
		}
	})

	ctx := context.Background()
	_, err := cached.Nearby(ctx, 51.16941, 71.44912, 500)
	require.NoError(t, err)
	// Rounds to the same 3-decimal key.
	_, err = cached.Nearby(ctx, 51.16939, 71.44908, 500)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls, "second lookup should hit the cache")
	assert.Equal(t, 1, hits)

	_, err = cached.Nearby(ctx, 51.180, 71.449, 500)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, 2, cached.Len())
}

func TestCachedOrganizationsDoesNotCacheErrors(t *testing.T) {
	inner := &countingOrgLookup{err: fmt.Errorf("upstream down")}
	cached := NewCachedOrganizations(inner, 8)

	ctx := context.Background()
	_, err := cached.Nearby(ctx, 51.17, 71.45, 500)
	require.Error(t, err)
	_, err = cached.Nearby(ctx, 51.17, 71.45, 500)
	require.Error(t, err)
	assert.Equal(t, 2, inner.calls, "failed lookups must not be cached")
	assert.Equal(t, 0, cached.Len())
}

func TestLRUCacheEviction(t *testing.T) {
	c := newLRUCache[int](2)
	c.put("a", 1)
	c.put("b", 2)
	c.put("c", 3)

	if _, ok := c.get("a"); ok {
		t.Fatal("oldest entry should have been evicted")
	}
	if v, ok := c.get("b"); !ok || v != 2 {
		t.Fatalf("get(b) = %d, %v", v, ok)
	}

	// b is now most recently used; adding d evicts c.
	c.put("d", 4)
	if _, ok := c.get("c"); ok {
		t.Fatal("least recently used entry should have been evicted")
	}
	if c.len() != 2 {
		t.Fatalf("len = %d, want 2", c.len())
	}
}

func TestNullLookups(t *testing.T) {
	orgs, err := NullOrganizations{}.Nearby(context.Background(), 51.17, 71.45, 500)
	require.NoError(t, err)
	assert.Empty(t, orgs)

	events, err := NullEvents{}.Nearby(context.Background(), 51.17, 71.45)
	require.NoError(t, err)
	assert.Empty(t, events)
}
