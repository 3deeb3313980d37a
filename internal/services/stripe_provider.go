package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roryk/backend/internal/config"
	"github.com/roryk/backend/internal/models"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.uber.org/zap"
)

const (
	metadataAccountID = "account_id"
	metadataService   = "service"
	topUpService      = "balance_topup"

	eventPaymentIntentSucceeded = "payment_intent.succeeded"
	paymentStatusSucceeded      = "succeeded"
)

// PaymentIntent is the provider-neutral view of a card payment.
type PaymentIntent struct {
	ID           string       `json:"paymentIntentId"`
	ClientSecret string       `json:"clientSecret,omitempty"`
	Status       string       `json:"status"`
	Amount       models.Money `json:"amount"`
	Currency     string       `json:"currency"`
	AccountID    string       `json:"-"`
}

type PaymentIntentParams struct {
	AccountID   string
	Amount      models.Money
	Currency    string
	Description string
}

type WebhookEvent struct {
	ID     string
	Type   string
	Intent *PaymentIntent
}

// PaymentProvider creates and inspects card payments.
type PaymentProvider interface {
	CreatePaymentIntent(ctx context.Context, params PaymentIntentParams) (*PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error)
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

// StripeProvider implements PaymentProvider on the Stripe API.
type StripeProvider struct {
	api           *client.API
	webhookSecret string
	logger        *zap.Logger
}

func NewStripeProvider(cfg config.StripeConfig, logger *zap.Logger) (*StripeProvider, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("stripe: secret key is required")
	}
	return &StripeProvider{
		api:           client.New(cfg.SecretKey, nil),
		webhookSecret: cfg.WebhookSecret,
		logger:        logger.Named("stripe"),
	}, nil
}

func (p *StripeProvider) CreatePaymentIntent(ctx context.Context, in PaymentIntentParams) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(int64(in.Amount)),
		Currency:    stripe.String(in.Currency),
		Description: stripe.String(in.Description),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata(metadataAccountID, in.AccountID)
	params.AddMetadata(metadataService, topUpService)

	pi, err := p.api.PaymentIntents.New(params)
	if err != nil {
		p.logger.Error("failed to create payment intent", zap.String("account_id", in.AccountID), zap.Error(err))
		return nil, fmt.Errorf("stripe: failed to create payment intent: %w", err)
	}

	p.logger.Info("created payment intent", zap.String("account_id", in.AccountID), zap.String("payment_intent_id", pi.ID))
	return fromStripeIntent(pi), nil
}

func (p *StripeProvider) GetPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := p.api.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("stripe: failed to get payment intent: %w", err)
	}
	return fromStripeIntent(pi), nil
}

func (p *StripeProvider) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWebhookSignature, err)
	}
	return decodeWebhookEvent(event)
}

// decodeWebhookEvent extracts the payment intent from payment_intent.* events.
func decodeWebhookEvent(event stripe.Event) (*WebhookEvent, error) {
	out := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if event.Type != eventPaymentIntentSucceeded || event.Data == nil {
		return out, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payment intent: %w", err)
	}
	out.Intent = fromStripeIntent(&pi)
	return out, nil
}

func fromStripeIntent(pi *stripe.PaymentIntent) *PaymentIntent {
	return &PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		Amount:       models.Money(pi.Amount),
		Currency:     string(pi.Currency),
		AccountID:    pi.Metadata[metadataAccountID],
	}
}
