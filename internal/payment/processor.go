package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76/webhook"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrProcessor wraps every failure reported by the processor.
	ErrProcessor = errors.New("payment processor error")
)

// Intent is a payment intent created at the processor.
type Intent struct {
	Ref          string
	ClientSecret string
	Status       Status
}

// Event is a verified webhook notification. Status is empty for event types
// that do not move a payment.
type Event struct {
	ID            string
	Type          string
	Ref           string
	TransactionID string
	Status        Status
}

// Processor is the external card processor.
type Processor interface {
	CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (Intent, error)
	Retrieve(ctx context.Context, ref string) (Status, error)
	Refund(ctx context.Context, ref string) error
	ParseWebhook(payload []byte, signature string) (Event, error)
}

// FakeProcessor settles intents in memory. Webhooks use the same signed
// header format as the real processor so the HTTP path is identical.
type FakeProcessor struct {
	secret string

	mu      sync.Mutex
	intents map[string]Status
}

func NewFakeProcessor(webhookSecret string) *FakeProcessor {
	return &FakeProcessor{secret: webhookSecret, intents: make(map[string]Status)}
}

func (f *FakeProcessor) CreateIntent(_ context.Context, amount decimal.Decimal, _ string, _ map[string]string) (Intent, error) {
	if !amount.IsPositive() {
		return Intent{}, fmt.Errorf("%w: amount must be positive", ErrProcessor)
	}
	ref := "pi_fake_" + uuid.NewString()
	f.mu.Lock()
	f.intents[ref] = Pending
	f.mu.Unlock()
	return Intent{Ref: ref, ClientSecret: ref + "_secret", Status: Pending}, nil
}

func (f *FakeProcessor) Retrieve(_ context.Context, ref string) (Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.intents[ref]
	if !ok {
		return "", fmt.Errorf("%w: no such intent %s", ErrProcessor, ref)
	}
	return st, nil
}

func (f *FakeProcessor) Refund(_ context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.intents[ref] != Completed {
		return fmt.Errorf("%w: intent %s has not succeeded", ErrProcessor, ref)
	}
	f.intents[ref] = Refunded
	return nil
}

// Settle sets the processor-side status of an intent, as a customer
// completing or abandoning checkout would.
func (f *FakeProcessor) Settle(ref string, st Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intents[ref] = st
}

type fakeEvent struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	Ref           string `json:"paymentIntentId"`
	TransactionID string `json:"transactionId"`
	Status        Status `json:"status"`
}

func (f *FakeProcessor) ParseWebhook(payload []byte, signature string) (Event, error) {
	if err := webhook.ValidatePayload(payload, signature, f.secret); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	var ev fakeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return Event(ev), nil
}

// Sign returns the signature header for payload at time t.
func (f *FakeProcessor) Sign(payload []byte, t time.Time) string {
	return SignPayload(payload, f.secret, t)
}

// SignPayload computes a processor-style signature header
// ("t=<unix>,v1=<hex hmac-sha256>") over payload.
func SignPayload(payload []byte, secret string, t time.Time) string {
	ts := strconv.FormatInt(t.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return "t=" + ts + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}

// FakeWebhook builds a webhook body the FakeProcessor understands.
func FakeWebhook(eventID, ref, transactionID string, st Status) []byte {
	b, _ := json.Marshal(fakeEvent{ID: eventID, Type: "payment_intent." + string(st), Ref: ref, TransactionID: transactionID, Status: st})
	return b
}
