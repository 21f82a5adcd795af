package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Bhargavprasad-data/Jalrakshak-water-guarden-sub000/internal/model"
)

// defaultAnalyzeTimeout bounds a single AI analysis call. The engine
// degrades to "no anomaly" rather than block on a slow analyzer.
const defaultAnalyzeTimeout = 5 * time.Second

// GPSEstimate is the analyzer's estimated location of an issue.
type GPSEstimate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// WaterQuality is the analyzer's weighted water quality index result.
type WaterQuality struct {
	WQI     float64 `json:"wqi"`
	Status  string  `json:"status"`
	Message string  `json:"message"`
}

// Analysis is the response contract of the external AI anomaly service.
type Analysis struct {
	AnomalyDetected   bool          `json:"anomaly_detected"`
	AnomalyType       string        `json:"anomaly_type"`
	Severity          string        `json:"severity"`
	Confidence        float64       `json:"confidence"`
	Description       string        `json:"description"`
	GPSEstimate       *GPSEstimate  `json:"gps_estimate,omitempty"`
	RecommendedAction string        `json:"recommended_action,omitempty"`
	WaterQuality      *WaterQuality `json:"water_quality,omitempty"`
}

// analyzeRequest is the request body for the analyzer's /analyze endpoint.
type analyzeRequest struct {
	DeviceID     string   `json:"device_id"`
	FlowRate     *float64 `json:"flow_rate,omitempty"`
	Pressure     *float64 `json:"pressure,omitempty"`
	Turbidity    *float64 `json:"turbidity,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
	PH           *float64 `json:"ph,omitempty"`
	Conductivity *float64 `json:"conductivity,omitempty"`
	Timestamp    string   `json:"timestamp"`
	GPSLat       *float64 `json:"gps_lat,omitempty"`
	GPSLon       *float64 `json:"gps_lon,omitempty"`
}

// AIClient calls the external AI anomaly analyzer over HTTP.
type AIClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAIClient creates an analyzer client for the given base URL.
func NewAIClient(baseURL string) *AIClient {
	return &AIClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: defaultAnalyzeTimeout,
		},
	}
}

// Analyze submits a reading to the analyzer's /analyze endpoint.
// Transport failures and non-2xx responses are returned as errors; the
// caller decides whether to degrade.
func (c *AIClient) Analyze(ctx context.Context, r *model.TelemetryReading) (*Analysis, error) {
	body, err := json.Marshal(analyzeRequest{
		DeviceID:     r.DeviceID,
		FlowRate:     r.FlowRate,
		Pressure:     r.Pressure,
		Turbidity:    r.Turbidity,
		Temperature:  r.Temperature,
		PH:           r.PH,
		Conductivity: r.Conductivity,
		Timestamp:    r.Timestamp.UTC().Format(time.RFC3339),
		GPSLat:       r.GPSLat,
		GPSLon:       r.GPSLon,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal analyze request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create analyze request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analyze request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("analyzer returned status %d", resp.StatusCode)
	}

	var analysis Analysis
	if err := json.NewDecoder(resp.Body).Decode(&analysis); err != nil {
		return nil, fmt.Errorf("failed to decode analyze response: %w", err)
	}
	return &analysis, nil
}
