package services

import (
	"encoding/json"
	"testing"

	"github.com/roryk/backend/internal/config"
	"github.com/roryk/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81"
	"go.uber.org/zap"
)

func TestDecodeWebhookEvent_PaymentIntentSucceeded(t *testing.T) {
	raw, err := json.Marshal(map[string]any{
		"id":            "pi_123",
		"object":        "payment_intent",
		"amount":        2000,
		"currency":      "eur",
		"status":        "succeeded",
		"client_secret": "pi_123_secret",
		"metadata": map[string]string{
			metadataAccountID: "acc-1",
			metadataService:   topUpService,
		},
	})
	require.NoError(t, err)

	event, err := decodeWebhookEvent(stripe.Event{
		ID:   "evt_1",
		Type: eventPaymentIntentSucceeded,
		Data: &stripe.EventData{Raw: raw},
	})
	require.NoError(t, err)
	require.NotNil(t, event.Intent)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, "pi_123", event.Intent.ID)
	assert.Equal(t, models.MustParseMoney("20.00"), event.Intent.Amount)
	assert.Equal(t, "eur", event.Intent.Currency)
	assert.Equal(t, paymentStatusSucceeded, event.Intent.Status)
	assert.Equal(t, "acc-1", event.Intent.AccountID)
}

func TestDecodeWebhookEvent_OtherEvent(t *testing.T) {
	event, err := decodeWebhookEvent(stripe.Event{
		ID:   "evt_2",
		Type: "customer.created",
		Data: &stripe.EventData{Raw: json.RawMessage(`{"id":"cus_1"}`)},
	})
	require.NoError(t, err)
	assert.Equal(t, "customer.created", event.Type)
	assert.Nil(t, event.Intent)
}

func TestDecodeWebhookEvent_MalformedIntent(t *testing.T) {
	_, err := decodeWebhookEvent(stripe.Event{
		ID:   "evt_3",
		Type: eventPaymentIntentSucceeded,
		Data: &stripe.EventData{Raw: json.RawMessage(`{"amount":"not a number"}`)},
	})
	assert.Error(t, err)
}

func TestStripeProvider_ParseWebhookRejectsBadSignature(t *testing.T) {
	provider, err := NewStripeProvider(config.StripeConfig{SecretKey: "sk_test_123", WebhookSecret: "whsec_test"}, zap.NewNop())
	require.NoError(t, err)

	_, err = provider.ParseWebhook([]byte(`{"id":"evt_1"}`), "t=1,v1=deadbeef")
	assert.ErrorIs(t, err, ErrInvalidWebhookSignature)
}

func TestNewStripeProvider_RequiresKey(t *testing.T) {
	_, err := NewStripeProvider(config.StripeConfig{}, zap.NewNop())
	assert.Error(t, err)
}
