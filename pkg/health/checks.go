package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

type HealthStatus struct {
	ServerReachable bool          `json:"server_reachable"`
	Latency         time.Duration `json:"-"`
	LatencyMS       int64         `json:"latency_ms"`
	HealthCalls     int           `json:"health_calls_in_window"`
	Healthy         bool          `json:"healthy"`
	CheckedAt       time.Time     `json:"checked_at"`
	Issues          []string      `json:"issues,omitempty"`
}

type statisticsResponse struct {
	API   string `json:"api"`
	Count int    `json:"number of calls in current minute"`
}

// Check probes a running sentiment server: the health endpoint must answer
// 200 within maxLatency, and the statistics endpoint must report it.
func Check(ctx context.Context, client *http.Client, serverURL string, maxLatency time.Duration) *HealthStatus {
	status := &HealthStatus{
		Healthy:   true,
		Issues:    []string{},
		CheckedAt: time.Now(),
	}

	start := time.Now()
	code, err := get(ctx, client, serverURL+"/api/v1/health", nil)
	status.Latency = time.Since(start)
	status.LatencyMS = status.Latency.Milliseconds()
	if err != nil {
		status.Healthy = false
		status.Issues = append(status.Issues, fmt.Sprintf("cannot reach server: %v", err))
		return status
	}
	status.ServerReachable = code == http.StatusOK
	if !status.ServerReachable {
		status.Healthy = false
		status.Issues = append(status.Issues, fmt.Sprintf("server unhealthy: %d", code))
	}
	if maxLatency > 0 && status.Latency > maxLatency {
		status.Healthy = false
		status.Issues = append(status.Issues, fmt.Sprintf("latency %s exceeds max %s", status.Latency.Round(time.Millisecond), maxLatency))
	}

	var stats statisticsResponse
	code, err = get(ctx, client, serverURL+"/api/v1/statistics?api="+url.QueryEscape("health"), &stats)
	switch {
	case err != nil:
		status.Healthy = false
		status.Issues = append(status.Issues, fmt.Sprintf("statistics unavailable: %v", err))
	case code != http.StatusOK:
		status.Healthy = false
		status.Issues = append(status.Issues, fmt.Sprintf("statistics returned %d", code))
	case stats.Count < 1:
		status.Healthy = false
		status.Issues = append(status.Issues, "statistics did not count the health probe")
	default:
		status.HealthCalls = stats.Count
	}

	return status
}

func get(ctx context.Context, client *http.Client, target string, into any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if into != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}
