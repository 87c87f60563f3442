package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// MetadataTransactionID is the intent metadata key carrying our transaction id.
const MetadataTransactionID = "transactionId"

const (
	eventIntentSucceeded = "payment_intent.succeeded"
	eventIntentFailed    = "payment_intent.payment_failed"
	eventIntentCanceled  = "payment_intent.canceled"
	eventChargeRefunded  = "charge.refunded"
)

// StripeProcessor talks to Stripe payment intents.
type StripeProcessor struct {
	api           *client.API
	webhookSecret string
}

// NewStripeProcessor uses the default Stripe backends. backends may be nil.
func NewStripeProcessor(secretKey, webhookSecret string, backends *stripe.Backends) *StripeProcessor {
	api := &client.API{}
	api.Init(secretKey, backends)
	return &StripeProcessor{api: api, webhookSecret: webhookSecret}
}

func (p *StripeProcessor) CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(MinorUnits(amount)),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	pi, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return Intent{}, processorError(err)
	}
	return Intent{Ref: pi.ID, ClientSecret: pi.ClientSecret, Status: intentStatus(pi.Status)}, nil
}

func (p *StripeProcessor) Retrieve(ctx context.Context, ref string) (Status, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := p.api.PaymentIntents.Get(ref, params)
	if err != nil {
		return "", processorError(err)
	}
	return intentStatus(pi.Status), nil
}

func (p *StripeProcessor) Refund(ctx context.Context, ref string) error {
	params := &stripe.RefundParams{PaymentIntent: stripe.String(ref)}
	params.Context = ctx
	if _, err := p.api.Refunds.New(params); err != nil {
		return processorError(err)
	}
	return nil
}

func (p *StripeProcessor) ParseWebhook(payload []byte, signature string) (Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                webhook.DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	out := Event{ID: ev.ID, Type: string(ev.Type)}

	switch out.Type {
	case eventIntentSucceeded, eventIntentFailed, eventIntentCanceled:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
			return Event{}, fmt.Errorf("decode payment intent: %w", err)
		}
		out.Ref = pi.ID
		out.TransactionID = pi.Metadata[MetadataTransactionID]
		out.Status = Completed
		if out.Type != eventIntentSucceeded {
			out.Status = Failed
		}
	case eventChargeRefunded:
		var ch stripe.Charge
		if err := json.Unmarshal(ev.Data.Raw, &ch); err != nil {
			return Event{}, fmt.Errorf("decode charge: %w", err)
		}
		if ch.PaymentIntent != nil {
			out.Ref = ch.PaymentIntent.ID
		}
		out.TransactionID = ch.Metadata[MetadataTransactionID]
		out.Status = Refunded
	}
	return out, nil
}

func intentStatus(s stripe.PaymentIntentStatus) Status {
	switch s {
	case stripe.PaymentIntentStatusSucceeded:
		return Completed
	case stripe.PaymentIntentStatusCanceled:
		return Failed
	default:
		return Pending
	}
}

// processorError keeps the processor's own message for the client.
func processorError(err error) error {
	if se, ok := err.(*stripe.Error); ok && se.Msg != "" {
		return fmt.Errorf("%w: %s", ErrProcessor, se.Msg)
	}
	return fmt.Errorf("%w: %v", ErrProcessor, err)
}
