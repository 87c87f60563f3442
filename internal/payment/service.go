package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount = errors.New("amount must be greater than zero")
	ErrNotRefundable = errors.New("only completed payments can be refunded")
	// ErrEventTooEarly rejects a webhook whose status is only reachable after
	// another event the processor has not delivered yet.
	ErrEventTooEarly = errors.New("webhook event arrived before the payment can take its status")
)

const maxStatusRetries = 3

type IntentRequest struct {
	Email    string
	Amount   decimal.Decimal
	Currency string
}

// IntentResult is a recorded pending payment plus the secret the client
// needs to complete it with the processor.
type IntentResult struct {
	ClientSecret string  `json:"clientSecret"`
	Payment      Payment `json:"payment"`
}

type Service struct {
	repo      Repository
	processor Processor
	mailer    Mailer
	currency  string
	now       func() time.Time
}

type Option func(*Service)

func WithMailer(m Mailer) Option {
	return func(s *Service) { s.mailer = m }
}

func WithCurrency(c string) Option {
	return func(s *Service) { s.currency = strings.ToLower(c) }
}

func NewService(repo Repository, processor Processor, opts ...Option) *Service {
	s := &Service{repo: repo, processor: processor, currency: "usd", now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) CreateIntent(ctx context.Context, req IntentRequest) (IntentResult, error) {
	if !req.Amount.IsPositive() {
		return IntentResult{}, ErrInvalidAmount
	}
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.currency
	}
	amount := req.Amount.Round(2)
	txID := uuid.NewString()

	intent, err := s.processor.CreateIntent(ctx, amount, currency, map[string]string{
		MetadataTransactionID: txID,
		"email":               req.Email,
	})
	if err != nil {
		return IntentResult{}, err
	}

	now := s.now().UTC()
	p, err := s.repo.Create(ctx, Payment{
		TransactionID: txID,
		Email:         strings.ToLower(strings.TrimSpace(req.Email)),
		Amount:        amount,
		Currency:      currency,
		Status:        Pending,
		ProcessorRef:  intent.Ref,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return IntentResult{}, err
	}
	return IntentResult{ClientSecret: intent.ClientSecret, Payment: p}, nil
}

// Confirm pulls the intent's status from the processor and records it.
func (s *Service) Confirm(ctx context.Context, transactionID string) (Payment, error) {
	p, err := s.repo.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return Payment{}, err
	}
	st, err := s.processor.Retrieve(ctx, p.ProcessorRef)
	if err != nil {
		return Payment{}, err
	}
	return s.advance(ctx, p, st)
}

func (s *Service) Status(ctx context.Context, transactionID string) (Payment, error) {
	return s.repo.GetByTransactionID(ctx, transactionID)
}

func (s *Service) ListByEmail(ctx context.Context, email string) ([]Payment, error) {
	return s.repo.ListByEmail(ctx, strings.TrimSpace(email))
}

func (s *Service) Refund(ctx context.Context, transactionID string) (Payment, error) {
	p, err := s.repo.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return Payment{}, err
	}
	if p.Status != Completed {
		return Payment{}, ErrNotRefundable
	}
	if err := s.processor.Refund(ctx, p.ProcessorRef); err != nil {
		return Payment{}, err
	}
	return s.advance(ctx, p, Refunded)
}

// HandleWebhook verifies and applies a processor notification. Replays of an
// event already applied are acknowledged without effect, and events that
// would move a payment backwards are logged and ignored. An event whose status
// needs an earlier one first returns ErrEventTooEarly and stays unrecorded.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	ev, err := s.processor.ParseWebhook(payload, signature)
	if err != nil {
		return err
	}
	if ev.Status == "" {
		return nil
	}

	seen, err := s.repo.EventSeen(ctx, ev.ID)
	if err != nil {
		return err
	}
	if seen {
		log.Infof("payment: webhook event %s already applied", ev.ID)
		return nil
	}

	p, err := s.lookup(ctx, ev)
	if errors.Is(err, ErrNotFound) {
		log.Warnf("payment: webhook event %s for unknown payment (ref %q)", ev.ID, ev.Ref)
		return nil
	}
	if err != nil {
		return err
	}

	current, err := s.advance(ctx, p, ev.Status)
	if err != nil {
		if !errors.Is(err, ErrIllegalTransition) {
			return err
		}
		if Reachable(current.Status, ev.Status) {
			// not recorded, so the processor's redelivery can apply it later
			log.Warnf("payment: event %s for %s arrived early (%s -> %s)", ev.ID, p.TransactionID, current.Status, ev.Status)
			return fmt.Errorf("%w: event %s", ErrEventTooEarly, ev.ID)
		}
		log.Warnf("payment: ignoring event %s for %s: %v", ev.ID, p.TransactionID, err)
	}
	return s.repo.RecordEvent(ctx, ev.ID)
}

func (s *Service) lookup(ctx context.Context, ev Event) (Payment, error) {
	if ev.TransactionID != "" {
		p, err := s.repo.GetByTransactionID(ctx, ev.TransactionID)
		if !errors.Is(err, ErrNotFound) {
			return p, err
		}
	}
	return s.repo.GetByProcessorRef(ctx, ev.Ref)
}

// advance applies a status transition, rereading the payment when another
// writer moved it first.
func (s *Service) advance(ctx context.Context, p Payment, to Status) (Payment, error) {
	for range maxStatusRetries {
		changed, err := Transition(p.Status, to)
		if err != nil {
			return p, err
		}
		if !changed {
			return p, nil
		}
		updated, err := s.repo.UpdateStatus(ctx, p.TransactionID, p.Status, to, s.now().UTC())
		if errors.Is(err, ErrStaleStatus) {
			if p, err = s.repo.GetByTransactionID(ctx, p.TransactionID); err != nil {
				return Payment{}, err
			}
			continue
		}
		if err != nil {
			return Payment{}, err
		}
		if to == Completed {
			s.sendReceipt(ctx, updated)
		}
		return updated, nil
	}
	return p, fmt.Errorf("%w: %s", ErrStaleStatus, p.TransactionID)
}

func (s *Service) sendReceipt(ctx context.Context, p Payment) {
	if s.mailer == nil || p.Email == "" {
		return
	}
	go func() {
		if err := s.mailer.SendReceipt(context.WithoutCancel(ctx), p); err != nil {
			log.Warnf("payment: receipt for %s not sent: %v", p.TransactionID, err)
		}
	}()
}
