package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

// Package-level token cache guarded by a mutex to allow safe reuse across requests.
var (
	shiprocketToken       string
	shiprocketTokenExpiry time.Time
	shiprocketTokenMu     sync.RWMutex
	shiprocketHTTPClient  = &http.Client{Timeout: 15 * time.Second}
)

const (
	defaultShiprocketBaseURL = "https://apiv2.shiprocket.in/v1/external"
	// Shiprocket tokens live for ten days; refresh well before that.
	shiprocketTokenLifetime = 9 * 24 * time.Hour
	shiprocketTokenLeeway   = time.Minute
)

// ShiprocketConfig holds aggregator credentials loaded from environment variables.
type ShiprocketConfig struct {
	BaseURL        string
	Email          string
	Password       string
	PickupLocation string
	Enabled        bool
}

// LoadShiprocketConfig reads Shiprocket configuration from environment.
func LoadShiprocketConfig() ShiprocketConfig {
	return ShiprocketConfig{
		BaseURL:        strings.TrimRight(getEnvOrDefault("SHIPROCKET_BASE_URL", defaultShiprocketBaseURL), "/"),
		Email:          getEnvOrDefault("SHIPROCKET_EMAIL", ""),
		Password:       getEnvOrDefault("SHIPROCKET_PASSWORD", ""),
		PickupLocation: getEnvOrDefault("SHIPROCKET_PICKUP_LOCATION", "Primary"),
		Enabled:        getEnvOrDefault("SHIPROCKET_ENABLED", "false") == "true",
	}
}

func getEnvOrDefault(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

type shiprocketAuthRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type shiprocketAuthResponse struct {
	Token string `json:"token"`
}

// GetShiprocketToken returns a cached aggregator token, fetching a new one if needed.
func GetShiprocketToken() (string, error) {
	return getShiprocketToken(false)
}

// RefreshShiprocketToken forces retrieval of a fresh aggregator token.
func RefreshShiprocketToken() (string, error) {
	return getShiprocketToken(true)
}

func getShiprocketToken(force bool) (string, error) {
	cfg := LoadShiprocketConfig()
	if !cfg.Enabled {
		return "", errors.New("shiprocket integration is disabled")
	}
	if cfg.Email == "" || cfg.Password == "" {
		return "", errors.New("SHIPROCKET_EMAIL and SHIPROCKET_PASSWORD must be configured")
	}

	if !force {
		shiprocketTokenMu.RLock()
		if shiprocketToken != "" && time.Now().Add(shiprocketTokenLeeway).Before(shiprocketTokenExpiry) {
			t := shiprocketToken
			shiprocketTokenMu.RUnlock()
			return t, nil
		}
		shiprocketTokenMu.RUnlock()
	}

	shiprocketTokenMu.Lock()
	defer shiprocketTokenMu.Unlock()

	// Check again in case another goroutine refreshed while we waited for the lock.
	if !force && shiprocketToken != "" && time.Now().Add(shiprocketTokenLeeway).Before(shiprocketTokenExpiry) {
		return shiprocketToken, nil
	}

	payload, err := json.Marshal(shiprocketAuthRequest{Email: cfg.Email, Password: cfg.Password})
	if err != nil {
		return "", fmt.Errorf("marshal shiprocket auth payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, cfg.BaseURL+"/auth/login", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create shiprocket auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := shiprocketHTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute shiprocket auth request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read shiprocket auth response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("shiprocket auth failed: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	var authResp shiprocketAuthResponse
	if err := json.Unmarshal(respBody, &authResp); err != nil {
		return "", fmt.Errorf("unmarshal shiprocket auth response: %w", err)
	}

	if authResp.Token == "" {
		return "", errors.New("shiprocket auth response missing token")
	}

	shiprocketToken = authResp.Token
	shiprocketTokenExpiry = time.Now().Add(shiprocketTokenLifetime)

	return shiprocketToken, nil
}

// ShiprocketRequestOpts captures inputs for aggregator API calls.
type ShiprocketRequestOpts struct {
	Method string
	Path   string
	Query  map[string]string
	Body   any
}

// ShiprocketResponse bundles the HTTP response metadata.
type ShiprocketResponse struct {
	Status int
	Body   []byte
}

// ShiprocketService wraps the shipping aggregator API.
type ShiprocketService struct {
	cfg ShiprocketConfig
}

func NewShiprocketService() *ShiprocketService {
	return &ShiprocketService{cfg: LoadShiprocketConfig()}
}

// Enabled reports whether the aggregator integration is configured.
func (s *ShiprocketService) Enabled() bool {
	return s.cfg.Enabled
}

// doRequest performs an aggregator API request, retrying once on 401.
func (s *ShiprocketService) doRequest(opts ShiprocketRequestOpts) (*ShiprocketResponse, error) {
	if opts.Method == "" {
		return nil, errors.New("request method is required")
	}
	path := strings.TrimLeft(opts.Path, "/")
	if path == "" {
		return nil, errors.New("request path is required")
	}

	buildRequest := func(token string) (*http.Request, error) {
		target := s.cfg.BaseURL + "/" + path
		if len(opts.Query) > 0 {
			values := url.Values{}
			for k, v := range opts.Query {
				values.Set(k, v)
			}
			target += "?" + values.Encode()
		}

		var bodyReader io.Reader
		if opts.Body != nil {
			payload, err := json.Marshal(opts.Body)
			if err != nil {
				return nil, fmt.Errorf("marshal request body: %w", err)
			}
			bodyReader = bytes.NewReader(payload)
		}

		req, err := http.NewRequest(opts.Method, target, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}

		if opts.Body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Authorization", "Bearer "+token)

		return req, nil
	}

	do := func(req *http.Request) (*ShiprocketResponse, error) {
		resp, err := shiprocketHTTPClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("execute request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}

		return &ShiprocketResponse{Status: resp.StatusCode, Body: respBody}, nil
	}

	token, err := GetShiprocketToken()
	if err != nil {
		return nil, err
	}

	req, err := buildRequest(token)
	if err != nil {
		return nil, err
	}

	resp, err := do(req)
	if err != nil {
		return nil, err
	}

	if resp.Status != http.StatusUnauthorized {
		return resp, nil
	}

	// Token likely expired; refresh and retry once.
	token, err = RefreshShiprocketToken()
	if err != nil {
		return nil, err
	}

	req, err = buildRequest(token)
	if err != nil {
		return nil, err
	}

	return do(req)
}

// ServiceabilityCourier describes one courier option for a lane.
type ServiceabilityCourier struct {
	CourierCompanyID      int     `json:"courier_company_id"`
	CourierName           string  `json:"courier_name"`
	Rate                  float64 `json:"rate"`
	EstimatedDeliveryDays string  `json:"estimated_delivery_days"`
	COD                   int     `json:"cod"`
}

type serviceabilityResponse struct {
	Status int `json:"status"`
	Data   struct {
		AvailableCourierCompanies []ServiceabilityCourier `json:"available_courier_companies"`
	} `json:"data"`
}

// CheckServiceability returns courier options for a pickup/delivery lane.
func (s *ShiprocketService) CheckServiceability(pickupPincode, deliveryPincode string, weightKg float64, cod bool) ([]ServiceabilityCourier, error) {
	codFlag := "0"
	if cod {
		codFlag = "1"
	}

	resp, err := s.doRequest(ShiprocketRequestOpts{
		Method: http.MethodGet,
		Path:   "courier/serviceability",
		Query: map[string]string{
			"pickup_postcode":   pickupPincode,
			"delivery_postcode": deliveryPincode,
			"weight":            fmt.Sprintf("%.2f", weightKg),
			"cod":               codFlag,
		},
	})
	if err != nil {
		return nil, err
	}

	if resp.Status < 200 || resp.Status >= 300 {
		return nil, fmt.Errorf("serviceability check failed: status %d, body: %s", resp.Status, string(resp.Body))
	}

	var parsed serviceabilityResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal serviceability response: %w", err)
	}

	return parsed.Data.AvailableCourierCompanies, nil
}
