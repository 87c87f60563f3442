package payment

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
)

// newStripeStub points a StripeProcessor at a local server.
func newStripeStub(t *testing.T, handler http.HandlerFunc) *StripeProcessor {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		HTTPClient:        srv.Client(),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	return NewStripeProcessor("sk_test_123", testSecret, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
}

func TestStripeProcessor_CreateIntent(t *testing.T) {
	proc := newStripeStub(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payment_intents" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("amount") != "2550" || r.PostForm.Get("currency") != "usd" || r.PostForm.Get("metadata[transactionId]") != "tx-1" {
			t.Errorf("unexpected form %v", r.PostForm)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pi_123","object":"payment_intent","client_secret":"pi_123_secret","status":"requires_payment_method","amount":2550,"currency":"usd"}`))
	})

	intent, err := proc.CreateIntent(context.Background(), decimal.RequireFromString("25.50"), "usd", map[string]string{MetadataTransactionID: "tx-1"})
	require.NoError(t, err)
	assert.Equal(t, "pi_123", intent.Ref)
	assert.Equal(t, "pi_123_secret", intent.ClientSecret)
	assert.Equal(t, Pending, intent.Status)
}

func TestStripeProcessor_ErrorKeepsMessage(t *testing.T) {
	proc := newStripeStub(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"type":"card_error","message":"Your card was declined."}}`))
	})

	err := proc.Refund(context.Background(), "pi_123")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProcessor))
	assert.Contains(t, err.Error(), "Your card was declined.")
}

func TestStripeProcessor_Retrieve(t *testing.T) {
	proc := newStripeStub(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pi_123","object":"payment_intent","status":"succeeded"}`))
	})
	st, err := proc.Retrieve(context.Background(), "pi_123")
	require.NoError(t, err)
	assert.Equal(t, Completed, st)
}

func TestStripeProcessor_ParseWebhook(t *testing.T) {
	proc := NewStripeProcessor("sk_test_123", testSecret, nil)
	now := time.Now()

	succeeded := []byte(`{"id":"evt_1","object":"event","api_version":"2023-10-16","type":"payment_intent.succeeded",` +
		`"data":{"object":{"id":"pi_123","object":"payment_intent","status":"succeeded","metadata":{"transactionId":"tx-1"}}}}`)
	ev, err := proc.ParseWebhook(succeeded, SignPayload(succeeded, testSecret, now))
	require.NoError(t, err)
	assert.Equal(t, Event{ID: "evt_1", Type: "payment_intent.succeeded", Ref: "pi_123", TransactionID: "tx-1", Status: Completed}, ev)

	refunded := []byte(`{"id":"evt_2","object":"event","api_version":"2023-10-16","type":"charge.refunded",` +
		`"data":{"object":{"id":"ch_1","object":"charge","payment_intent":"pi_123"}}}`)
	ev, err = proc.ParseWebhook(refunded, SignPayload(refunded, testSecret, now))
	require.NoError(t, err)
	assert.Equal(t, "pi_123", ev.Ref)
	assert.Equal(t, Refunded, ev.Status)

	other := []byte(`{"id":"evt_3","object":"event","api_version":"2023-10-16","type":"customer.created","data":{"object":{"id":"cus_1"}}}`)
	ev, err = proc.ParseWebhook(other, SignPayload(other, testSecret, now))
	require.NoError(t, err)
	assert.Empty(t, ev.Status, "unrelated events move nothing")

	_, err = proc.ParseWebhook(succeeded, SignPayload(succeeded, "whsec_other", now))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = proc.ParseWebhook(succeeded, SignPayload(succeeded, testSecret, now.Add(-time.Hour)))
	assert.ErrorIs(t, err, ErrInvalidSignature, "stale signatures are rejected")
}
