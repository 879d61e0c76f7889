// Package sentinelhub implements the imagery provider against the
// Sentinel Hub Statistical API.
package sentinelhub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/geopulselabs/geopulse/internal/config"
	"github.com/geopulselabs/geopulse/internal/imagery/domain"
	"github.com/geopulselabs/geopulse/internal/observability/tracing"
	"go.uber.org/zap"
	"golang.org/x/oauth2/clientcredentials"
)

const statisticsPath = "/api/v1/statistics"

// evalscript computing mean NDVI, NDBI and NDWI over the request box.
const changeDetectionEvalscript = `//VERSION=3
function setup() {
  return {
    input: [{ bands: ["B03", "B04", "B08", "B11", "dataMask"] }],
    output: [
      { id: "ndvi", bands: 1 },
      { id: "ndbi", bands: 1 },
      { id: "ndwi", bands: 1 },
      { id: "dataMask", bands: 1 }
    ]
  };
}
function evaluatePixel(s) {
  let ndvi = (s.B08 - s.B04) / (s.B08 + s.B04);
  let ndbi = (s.B11 - s.B08) / (s.B11 + s.B08);
  let ndwi = (s.B03 - s.B08) / (s.B03 + s.B08);
  return { ndvi: [ndvi], ndbi: [ndbi], ndwi: [ndwi], dataMask: [s.dataMask] };
}`

type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
	maxCloud   float64
	resolution float64
}

// New builds a Statistical API client. Authentication uses the OAuth2
// client-credentials flow; the token source refreshes itself.
func New(cfg config.ProviderConfig, log *zap.Logger) *Client {
	creds := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.BaseURL + "/oauth/token",
	}
	httpClient := creds.Client(context.Background())
	httpClient.Timeout = cfg.Timeout

	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: tracing.WrapHTTPClient(httpClient),
		log:        log.Named("sentinelhub.client"),
		maxCloud:   cfg.MaxCloudCoverage,
		resolution: cfg.ResolutionMeters,
	}
}

type statsRequest struct {
	Input        statsInput       `json:"input"`
	Aggregation  statsAggregation `json:"aggregation"`
	Calculations map[string]any   `json:"calculations"`
}

type statsInput struct {
	Bounds statsBounds `json:"bounds"`
	Data   []statsData `json:"data"`
}

type statsBounds struct {
	BBox [4]float64 `json:"bbox"`
}

type statsData struct {
	Type       string          `json:"type"`
	DataFilter statsDataFilter `json:"dataFilter"`
}

type statsDataFilter struct {
	MaxCloudCoverage float64 `json:"maxCloudCoverage"`
}

type statsAggregation struct {
	TimeRange  statsTimeRange `json:"timeRange"`
	Interval   statsInterval  `json:"aggregationInterval"`
	Evalscript string         `json:"evalscript"`
	ResX       float64        `json:"resx"`
	ResY       float64        `json:"resy"`
}

type statsTimeRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type statsInterval struct {
	Of string `json:"of"`
}

type statsResponse struct {
	Data []struct {
		Outputs map[string]struct {
			Bands map[string]struct {
				Stats struct {
					Mean        float64 `json:"mean"`
					SampleCount int     `json:"sampleCount"`
					NoDataCount int     `json:"noDataCount"`
				} `json:"stats"`
			} `json:"bands"`
		} `json:"outputs"`
	} `json:"data"`
	Status string `json:"status"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) GetIndices(ctx context.Context, box domain.BoundingBox, window domain.PeriodWindow) (domain.IndexValues, error) {
	body := statsRequest{
		Input: statsInput{
			Bounds: statsBounds{BBox: [4]float64{box.MinLon, box.MinLat, box.MaxLon, box.MaxLat}},
			Data: []statsData{{
				Type:       "sentinel-2-l2a",
				DataFilter: statsDataFilter{MaxCloudCoverage: c.maxCloud},
			}},
		},
		Aggregation: statsAggregation{
			TimeRange: statsTimeRange{
				From: window.Start.Format(time.RFC3339),
				To:   window.End.Add(24*time.Hour - time.Second).Format(time.RFC3339),
			},
			Interval:   statsInterval{Of: "P365D"},
			Evalscript: changeDetectionEvalscript,
			ResX:       c.resolution,
			ResY:       c.resolution,
		},
		Calculations: map[string]any{"default": map[string]any{}},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return domain.IndexValues{}, &domain.ProviderError{Reason: fmt.Sprintf("encode request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+statisticsPath, bytes.NewReader(payload))
	if err != nil {
		return domain.IndexValues{}, &domain.ProviderError{Reason: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.IndexValues{}, &domain.ProviderError{
			Reason:    fmt.Sprintf("provider unreachable: %v", err),
			Transient: true,
		}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.IndexValues{}, &domain.ProviderError{
			Reason:    fmt.Sprintf("read response: %v", err),
			Transient: true,
		}
	}

	c.log.Debug("statistics response",
		zap.String("window", window.Name),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode != http.StatusOK {
		reason := fmt.Sprintf("provider returned status %d", resp.StatusCode)
		var errBody errorResponse
		if json.Unmarshal(raw, &errBody) == nil && errBody.Error.Message != "" {
			reason = errBody.Error.Message
		}
		return domain.IndexValues{}, &domain.ProviderError{
			Reason:    reason,
			Transient: resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
		}
	}

	var parsed statsResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return domain.IndexValues{}, &domain.ProviderError{Reason: fmt.Sprintf("decode response: %v", err)}
	}
	if len(parsed.Data) == 0 {
		return domain.IndexValues{}, &domain.ProviderError{
			Reason: fmt.Sprintf("no satellite data available for period %s to %s",
				window.Start.Format("2006-01-02"), window.End.Format("2006-01-02")),
		}
	}

	values := domain.IndexValues{}
	outputs := parsed.Data[0].Outputs
	for name, target := range map[string]*float64{
		"ndvi": &values.Vegetation,
		"ndbi": &values.BuiltUp,
		"ndwi": &values.Water,
	} {
		output, ok := outputs[name]
		if !ok {
			return domain.IndexValues{}, &domain.ProviderError{Reason: fmt.Sprintf("output %s missing from response", name)}
		}
		band, ok := output.Bands["B0"]
		if !ok {
			return domain.IndexValues{}, &domain.ProviderError{Reason: fmt.Sprintf("band B0 missing from output %s", name)}
		}
		if band.Stats.SampleCount > 0 && band.Stats.SampleCount == band.Stats.NoDataCount {
			return domain.IndexValues{}, &domain.ProviderError{Reason: "all pixels masked as no-data"}
		}
		*target = band.Stats.Mean
	}
	return values, nil
}
