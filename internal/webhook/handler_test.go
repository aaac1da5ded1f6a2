package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	stripewebhook "github.com/stripe/stripe-go/v82/webhook"
	"github.com/stretchr/testify/require"

	"gatehouse/internal/entitlement"
)

const testWebhookSecret = "whsec_test_secret"

func signedRequest(t *testing.T, payload []byte, secret string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/billing", bytes.NewReader(payload))
	signed := stripewebhook.GenerateTestSignedPayload(&stripewebhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	req.Header.Set(signatureHeader, signed.Header)
	return req
}

func checkoutPayload(t *testing.T, eventID string) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":      eventID,
		"type":    "checkout.session.completed",
		"created": time.Now().Unix(),
		"data": map[string]any{
			"object": map[string]any{
				"id":                  "cs_1",
				"mode":                "subscription",
				"customer":            "cus_123",
				"subscription":        "sub_123",
				"client_reference_id": "user-1",
			},
		},
	})
	require.NoError(t, err)
	return payload
}

func TestHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("acknowledges a verified delivery", func(t *testing.T) {
		f := newServiceFixture(t)
		handler := NewHandler(testWebhookSecret, f.service, logger, nil)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, signedRequest(t, checkoutPayload(t, "evt_1"), testWebhookSecret))

		require.Equal(t, http.StatusOK, rec.Code)

		var resp receivedResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.True(t, resp.Received)

		status, err := f.mirror.Get(context.Background(), "user-1")
		require.NoError(t, err)
		require.NotNil(t, status)
		require.Equal(t, entitlement.StateActive, status.State)
	})

	t.Run("rejects a missing signature", func(t *testing.T) {
		f := newServiceFixture(t)
		handler := NewHandler(testWebhookSecret, f.service, logger, nil)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/webhooks/billing", bytes.NewReader(checkoutPayload(t, "evt_1")))
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Empty(t, f.forwarder.messages)
	})

	t.Run("rejects a signature from the wrong secret", func(t *testing.T) {
		f := newServiceFixture(t)
		handler := NewHandler(testWebhookSecret, f.service, logger, nil)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, signedRequest(t, checkoutPayload(t, "evt_1"), "whsec_wrong"))

		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Empty(t, f.forwarder.messages)
	})

	t.Run("refuses to run without a configured secret", func(t *testing.T) {
		f := newServiceFixture(t)
		handler := NewHandler("", f.service, logger, nil)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, signedRequest(t, checkoutPayload(t, "evt_1"), testWebhookSecret))

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("processing failures answer 5xx for redelivery", func(t *testing.T) {
		f := newServiceFixture(t)
		f.forwarder.err = errors.New("broker unreachable")
		handler := NewHandler(testWebhookSecret, f.service, logger, nil)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, signedRequest(t, checkoutPayload(t, "evt_1"), testWebhookSecret))

		require.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("redelivery after success is acknowledged", func(t *testing.T) {
		f := newServiceFixture(t)
		handler := NewHandler(testWebhookSecret, f.service, logger, nil)
		payload := checkoutPayload(t, "evt_1")

		first := httptest.NewRecorder()
		handler.ServeHTTP(first, signedRequest(t, payload, testWebhookSecret))
		require.Equal(t, http.StatusOK, first.Code)

		second := httptest.NewRecorder()
		handler.ServeHTTP(second, signedRequest(t, payload, testWebhookSecret))
		require.Equal(t, http.StatusOK, second.Code)

		require.Len(t, f.forwarder.messages, 1)
	})
}

func TestHandlerBodyLimit(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := newServiceFixture(t)
	handler := NewHandler(testWebhookSecret, f.service, logger, nil)

	oversized := bytes.Repeat([]byte("a"), bodyLimit+1)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, signedRequest(t, oversized, testWebhookSecret))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, f.forwarder.messages)
}
