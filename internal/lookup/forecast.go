package lookup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/astana-data/hotspot.report/internal/hotspot"
)

// ForecastClient implements hotspot.Forecaster against a forecast
// service that accepts a window of velocity grids and returns the
// predicted next grid.
type ForecastClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewForecastClient creates a forecaster client for the given service
// base URL.
func NewForecastClient(baseURL string, timeout time.Duration) *ForecastClient {
	return &ForecastClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Predict posts the history window and returns the predicted grid. The
// returned grid must match the history grid size; a mismatched
// prediction is an error, never silently resized.
func (c *ForecastClient) Predict(ctx context.Context, history []hotspot.Grid) (hotspot.Grid, error) {
	if len(history) == 0 {
		return hotspot.Grid{}, fmt.Errorf("empty history window")
	}
	size := history[0].Size

	reqBody := forecastRequest{History: make([][]float64, len(history))}
	for i, g := range history {
		if g.Size != size {
			return hotspot.Grid{}, fmt.Errorf("history grid %d size %d, want %d", i, g.Size, size)
		}
		reqBody.History[i] = g.Cells
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return hotspot.Grid{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return hotspot.Grid{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return hotspot.Grid{}, fmt.Errorf("forecast request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return hotspot.Grid{}, fmt.Errorf("forecast API error: status %d: %s", resp.StatusCode, raw)
	}

	var payload forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return hotspot.Grid{}, fmt.Errorf("decode response: %w", err)
	}
	if len(payload.Prediction) != size*size {
		return hotspot.Grid{}, fmt.Errorf("prediction has %d cells, want %d", len(payload.Prediction), size*size)
	}

	grid := hotspot.Grid{Size: size, Cells: payload.Prediction}
	if err := grid.ValidateFinite(); err != nil {
		return hotspot.Grid{}, fmt.Errorf("prediction: %w", err)
	}
	return grid, nil
}

type forecastRequest struct {
	History [][]float64 `json:"history"`
}

type forecastResponse struct {
	Prediction []float64 `json:"prediction"`
}
