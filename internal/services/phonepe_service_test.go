package services

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSaltKey   = "test-salt-key"
	testSaltIndex = "1"
)

func newTestPhonePe(baseURL string) *PhonePeService {
	return NewPhonePeService(PhonePeConfig{
		BaseURL:     baseURL,
		MerchantID:  "MERCHANTTEST",
		SaltKey:     testSaltKey,
		SaltIndex:   testSaltIndex,
		CallbackURL: "https://shop.example.com/api/webhooks/phonepe",
	})
}

func TestComputeChecksum(t *testing.T) {
	payload := "eyJmb28iOiJiYXIifQ=="
	sum := sha256.Sum256([]byte(payload + payEndpointPath + testSaltKey))
	expected := hex.EncodeToString(sum[:]) + "###" + testSaltIndex

	assert.Equal(t, expected, ComputeChecksum(payload, payEndpointPath, testSaltKey, testSaltIndex))
}

func notificationJSON(t *testing.T, code, responseCode, mtid string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"success": code == GatewayCodeSuccess,
		"code":    code,
		"data": map[string]any{
			"merchantTransactionId": mtid,
			"transactionId":         "T987",
			"amount":                25000,
			"state":                 "COMPLETED",
			"responseCode":          responseCode,
		},
	})
	require.NoError(t, err)
	return body
}

func TestParseCallbackInline(t *testing.T) {
	svc := newTestPhonePe("https://gateway.example.com")
	body := notificationJSON(t, GatewayCodeSuccess, "SUCCESS", "MTABC123")

	cb, err := svc.ParseCallback(body, "")
	require.NoError(t, err)
	assert.Equal(t, GatewayCodeSuccess, cb.Code)
	assert.Equal(t, "MTABC123", cb.MerchantTransactionID)
	assert.Equal(t, "T987", cb.ProviderTransactionID)
	assert.Equal(t, int64(25000), cb.AmountPaise)
	assert.False(t, cb.LegacyEnvelope)
}

func TestParseCallbackLegacyEnvelope(t *testing.T) {
	svc := newTestPhonePe("https://gateway.example.com")
	inner := notificationJSON(t, GatewayCodeSuccess, "SUCCESS", "MTLEGACY1")
	encoded := base64.StdEncoding.EncodeToString(inner)

	body, err := json.Marshal(map[string]string{"response": encoded})
	require.NoError(t, err)

	verify := ComputeChecksum(encoded, "", testSaltKey, testSaltIndex)

	cb, err := svc.ParseCallback(body, verify)
	require.NoError(t, err)
	assert.True(t, cb.LegacyEnvelope)
	assert.Equal(t, "MTLEGACY1", cb.MerchantTransactionID)
	assert.Equal(t, GatewayCodeSuccess, cb.Code)
}

func TestParseCallbackLegacyChecksumMismatchStillParses(t *testing.T) {
	svc := newTestPhonePe("https://gateway.example.com")
	inner := notificationJSON(t, GatewayCodeSuccess, "SUCCESS", "MTLEGACY2")
	encoded := base64.StdEncoding.EncodeToString(inner)

	body, err := json.Marshal(map[string]string{"response": encoded})
	require.NoError(t, err)

	cb, err := svc.ParseCallback(body, "bogus###1")
	require.NoError(t, err)
	assert.Equal(t, "MTLEGACY2", cb.MerchantTransactionID)
}

func TestParseCallbackCodeFallsBackToResponseCode(t *testing.T) {
	svc := newTestPhonePe("https://gateway.example.com")
	body := notificationJSON(t, "", GatewayCodePending, "MTFALLBACK")

	cb, err := svc.ParseCallback(body, "")
	require.NoError(t, err)
	assert.Equal(t, GatewayCodePending, cb.Code)
}

func TestParseCallbackMalformed(t *testing.T) {
	svc := newTestPhonePe("https://gateway.example.com")

	cases := map[string][]byte{
		"not json":               []byte("not-json"),
		"bad base64 envelope":    []byte(`{"response":"%%%%"}`),
		"missing transaction id": notificationJSON(t, GatewayCodeSuccess, "SUCCESS", ""),
	}

	for name, body := range cases {
		_, err := svc.ParseCallback(body, "")
		require.True(t, errors.Is(err, ErrMalformedCallback), name)
	}
}

func TestInitiatePayment(t *testing.T) {
	var gotVerify string
	var gotPayload phonePePayRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, payEndpointPath, r.URL.Path)
		gotVerify = r.Header.Get("X-VERIFY")

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var envelope struct {
			Request string `json:"request"`
		}
		require.NoError(t, json.Unmarshal(body, &envelope))

		expected := ComputeChecksum(envelope.Request, payEndpointPath, testSaltKey, testSaltIndex)
		assert.Equal(t, expected, gotVerify)

		decoded, err := base64.StdEncoding.DecodeString(envelope.Request)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(decoded, &gotPayload))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"success": true,
			"code": "PAYMENT_INITIATED",
			"data": {
				"instrumentResponse": {
					"redirectInfo": {"url": "https://pay.example.com/checkout/xyz"}
				}
			}
		}`))
	}))
	defer server.Close()

	svc := newTestPhonePe(server.URL)

	url, err := svc.InitiatePayment(PaymentRequest{
		MerchantTransactionID: "MTPAY123",
		MerchantUserID:        "user-1",
		AmountPaise:           50000,
		RedirectURL:           "https://shop.example.com/payment/result",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/checkout/xyz", url)

	assert.Equal(t, "MERCHANTTEST", gotPayload.MerchantID)
	assert.Equal(t, "MTPAY123", gotPayload.MerchantTransactionID)
	assert.Equal(t, int64(50000), gotPayload.Amount)
	assert.Equal(t, "PAY_PAGE", gotPayload.PaymentInstrument.Type)
}

func TestInitiatePaymentRejectedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success": false, "code": "BAD_REQUEST", "message": "merchant not found"}`))
	}))
	defer server.Close()

	svc := newTestPhonePe(server.URL)

	_, err := svc.InitiatePayment(PaymentRequest{
		MerchantTransactionID: "MTPAY456",
		AmountPaise:           1000,
		RedirectURL:           "https://shop.example.com/payment/result",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BAD_REQUEST")
}
