package geolocate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/fcode09/topin-tracker/internal/metrics"
	"github.com/fcode09/topin-tracker/pkg/topin/types"
)

const defaultEndpoint = "https://www.googleapis.com/geolocation/v1/geolocate"

// Devices rescan the same towers for as long as they sit still, so resolved
// positions are cached per evidence fingerprint.
const (
	cacheTTL     = 5 * time.Minute
	cacheSweep   = 10 * time.Minute
	requestLimit = 10 * time.Second
)

// GoogleClient resolves evidence through the Google Geolocation API.
type GoogleClient struct {
	key      string
	endpoint string
	client   *http.Client
	cache    *gocache.Cache
}

// GoogleOption configures a GoogleClient.
type GoogleOption func(*GoogleClient)

// WithEndpoint overrides the API endpoint. Used by tests.
func WithEndpoint(url string) GoogleOption {
	return func(c *GoogleClient) { c.endpoint = url }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) GoogleOption {
	return func(c *GoogleClient) { c.client = hc }
}

// NewGoogleClient creates a client with a bounded request timeout and a TTL
// response cache.
func NewGoogleClient(apiKey string, opts ...GoogleOption) *GoogleClient {
	c := &GoogleClient{
		key:      apiKey,
		endpoint: defaultEndpoint,
		client:   &http.Client{Timeout: requestLimit},
		cache:    gocache.New(cacheTTL, cacheSweep),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request and response bodies of the geolocation API.
type (
	geoRequest struct {
		HomeMobileCountryCode int            `json:"homeMobileCountryCode"`
		HomeMobileNetworkCode int            `json:"homeMobileNetworkCode"`
		RadioType             string         `json:"radioType"`
		ConsiderIP            bool           `json:"considerIp"`
		CellTowers            []geoCellTower `json:"cellTowers"`
		WifiAccessPoints      []geoWifiAP    `json:"wifiAccessPoints"`
	}

	geoCellTower struct {
		LocationAreaCode int `json:"locationAreaCode"`
		CellID           int `json:"cellId"`
		SignalStrength   int `json:"signalStrength"`
	}

	geoWifiAP struct {
		MacAddress     string `json:"macAddress"`
		SignalStrength int    `json:"signalStrength"`
	}

	geoResponse struct {
		Location *struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
		Accuracy float64 `json:"accuracy"`
		Error    *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
)

// Locate implements Locator. The device population is 2G only, so the radio
// type is always "gsm".
func (c *GoogleClient) Locate(ctx context.Context, ev types.Evidence) (Position, error) {
	key := ev.Fingerprint()
	if cached, ok := c.cache.Get(key); ok {
		metrics.GeolocationLookups.WithLabelValues("cached").Inc()
		return cached.(Position), nil
	}

	pos, err := c.lookup(ctx, ev)
	if err != nil {
		metrics.GeolocationLookups.WithLabelValues("error").Inc()
		return Position{}, err
	}

	metrics.GeolocationLookups.WithLabelValues("ok").Inc()
	c.cache.Set(key, pos, gocache.DefaultExpiration)
	return pos, nil
}

func (c *GoogleClient) lookup(ctx context.Context, ev types.Evidence) (Position, error) {
	reqBody := geoRequest{
		HomeMobileCountryCode: ev.MCC,
		HomeMobileNetworkCode: ev.MNC,
		RadioType:             "gsm",
		ConsiderIP:            true,
		CellTowers:            make([]geoCellTower, 0, len(ev.Cells)),
		WifiAccessPoints:      make([]geoWifiAP, 0, len(ev.Wifi)),
	}
	for _, cell := range ev.Cells {
		reqBody.CellTowers = append(reqBody.CellTowers, geoCellTower{
			LocationAreaCode: int(cell.LAC),
			CellID:           int(cell.CellID),
			SignalStrength:   cell.RSSI,
		})
	}
	for _, ap := range ev.Wifi {
		reqBody.WifiAccessPoints = append(reqBody.WifiAccessPoints, geoWifiAP{
			MacAddress:     ap.BSSID,
			SignalStrength: ap.RSSI,
		})
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return Position{}, fmt.Errorf("geolocate: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"?key="+c.key, bytes.NewReader(payload))
	if err != nil {
		return Position{}, fmt.Errorf("geolocate: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Position{}, fmt.Errorf("geolocate: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Position{}, fmt.Errorf("geolocate: read response: %w", err)
	}

	var decoded geoResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return Position{}, fmt.Errorf("geolocate: decode response: %w", err)
	}
	if decoded.Error != nil {
		return Position{}, &APIError{Code: decoded.Error.Code, Message: decoded.Error.Message}
	}
	if resp.StatusCode != http.StatusOK || decoded.Location == nil {
		return Position{}, fmt.Errorf("geolocate: unexpected response status %d", resp.StatusCode)
	}

	return Position{
		Latitude:  decoded.Location.Lat,
		Longitude: decoded.Location.Lng,
		Accuracy:  decoded.Accuracy,
	}, nil
}
