package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetShiprocketToken() {
	shiprocketTokenMu.Lock()
	shiprocketToken = ""
	shiprocketTokenExpiry = time.Time{}
	shiprocketTokenMu.Unlock()
}

func setupShiprocketEnv(t *testing.T, baseURL string) {
	t.Helper()
	t.Setenv("SHIPROCKET_BASE_URL", baseURL)
	t.Setenv("SHIPROCKET_EMAIL", "ops@example.com")
	t.Setenv("SHIPROCKET_PASSWORD", "secret")
	t.Setenv("SHIPROCKET_ENABLED", "true")
	resetShiprocketToken()
	t.Cleanup(resetShiprocketToken)
}

func TestGetShiprocketTokenCaches(t *testing.T) {
	var logins int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/login", r.URL.Path)
		logins++
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "tok-1"})
	}))
	defer server.Close()

	setupShiprocketEnv(t, server.URL)

	token, err := GetShiprocketToken()
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)

	// Second call must come from the cache.
	token, err = GetShiprocketToken()
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
	assert.Equal(t, 1, logins)
}

func TestGetShiprocketTokenDisabled(t *testing.T) {
	t.Setenv("SHIPROCKET_ENABLED", "false")
	resetShiprocketToken()

	_, err := GetShiprocketToken()
	require.Error(t, err)
}

func TestCheckServiceability(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			_ = json.NewEncoder(w).Encode(map[string]string{"token": "tok-svc"})
		case "/courier/serviceability":
			assert.Equal(t, "Bearer tok-svc", r.Header.Get("Authorization"))
			assert.Equal(t, "110001", r.URL.Query().Get("pickup_postcode"))
			assert.Equal(t, "560001", r.URL.Query().Get("delivery_postcode"))
			assert.Equal(t, "0.50", r.URL.Query().Get("weight"))
			assert.Equal(t, "0", r.URL.Query().Get("cod"))
			_, _ = w.Write([]byte(`{
				"status": 200,
				"data": {
					"available_courier_companies": [
						{"courier_company_id": 24, "courier_name": "Bluedart", "rate": 91.5, "estimated_delivery_days": "2", "cod": 1}
					]
				}
			}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	setupShiprocketEnv(t, server.URL)
	svc := NewShiprocketService()

	couriers, err := svc.CheckServiceability("110001", "560001", 0.5, false)
	require.NoError(t, err)
	require.Len(t, couriers, 1)
	assert.Equal(t, "Bluedart", couriers[0].CourierName)
	assert.Equal(t, 91.5, couriers[0].Rate)
}

func TestDoRequestRetriesOnUnauthorized(t *testing.T) {
	var logins, calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			logins++
			_ = json.NewEncoder(w).Encode(map[string]string{"token": "tok-fresh"})
		case "/courier/serviceability":
			calls++
			if calls == 1 {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			assert.Equal(t, "Bearer tok-fresh", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{"status": 200, "data": {"available_courier_companies": []}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	setupShiprocketEnv(t, server.URL)

	// Pre-seed a stale token so the first API call fails with 401.
	shiprocketTokenMu.Lock()
	shiprocketToken = "tok-stale"
	shiprocketTokenExpiry = time.Now().Add(time.Hour)
	shiprocketTokenMu.Unlock()

	svc := NewShiprocketService()

	couriers, err := svc.CheckServiceability("110001", "560001", 1, true)
	require.NoError(t, err)
	assert.Empty(t, couriers)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, logins)
}
