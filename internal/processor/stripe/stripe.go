// Package stripe implements the processor capability on the Stripe API.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"math"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"

	"rentpay/internal/apperr"
	"rentpay/internal/config"
	"rentpay/internal/processor"
)

type Client struct {
	api                  *client.API
	webhookSecret        string
	connectWebhookSecret string
	logger               *zap.Logger
}

func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	api := &client.API{}
	api.Init(cfg.Stripe.APIKey, nil)
	return &Client{
		api:                  api,
		webhookSecret:        cfg.Stripe.WebhookSecret,
		connectWebhookSecret: cfg.Stripe.ConnectWebhookSecret,
		logger:               logger.With(zap.String("component", "stripe_client")),
	}
}

// toCents converts a currency amount to the minor unit Stripe expects.
func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func (c *Client) CreateCheckoutSession(ctx context.Context, p processor.CheckoutParams) (*processor.Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(p.Currency),
				UnitAmount: stripe.Int64(toCents(p.Amount)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(p.Description),
				},
			},
		}},
	}
	params.Context = ctx
	if p.CustomerID != "" {
		params.Customer = stripe.String(p.CustomerID)
	}
	// The ledger payment id is the idempotency key: a retried create resolves
	// to the same session instead of minting a second charge page.
	params.SetIdempotencyKey(p.IdempotencyKey)
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	s, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", wrapStripeErr(err))
	}
	return &processor.Session{ID: s.ID, URL: s.URL}, nil
}

func (c *Client) CreateSetupSession(ctx context.Context, p processor.SetupParams) (*processor.Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSetup)),
		Customer:           stripe.String(p.CustomerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(p.SuccessURL),
		CancelURL:          stripe.String(p.CancelURL),
	}
	params.Context = ctx

	s, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create setup session: %w", wrapStripeErr(err))
	}
	return &processor.Session{ID: s.ID, URL: s.URL}, nil
}

func (c *Client) CreateSubscriptionSession(ctx context.Context, p processor.SubscriptionParams) (*processor.Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(p.Currency),
				UnitAmount: stripe.Int64(toCents(p.Amount)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(p.PlanName),
				},
				Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
					Interval:      stripe.String(p.Interval),
					IntervalCount: stripe.Int64(p.IntervalCount),
				},
			},
		}},
	}
	params.Context = ctx
	if p.CustomerID != "" {
		params.Customer = stripe.String(p.CustomerID)
	}
	params.SetIdempotencyKey(p.IdempotencyKey)
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	s, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create subscription session: %w", wrapStripeErr(err))
	}
	return &processor.Session{ID: s.ID, URL: s.URL}, nil
}

func (c *Client) CreateCustomer(ctx context.Context, email, userID string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	params.Context = ctx
	params.AddMetadata("userId", userID)

	cust, err := c.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("create customer: %w", wrapStripeErr(err))
	}
	return cust.ID, nil
}

func (c *Client) ListPaymentMethods(ctx context.Context, customerID string) ([]processor.PaymentMethod, error) {
	params := &stripe.PaymentMethodListParams{
		Customer: stripe.String(customerID),
		Type:     stripe.String(string(stripe.PaymentMethodTypeCard)),
	}
	params.Context = ctx

	var methods []processor.PaymentMethod
	iter := c.api.PaymentMethods.List(params)
	for iter.Next() {
		pm := iter.PaymentMethod()
		m := processor.PaymentMethod{ID: pm.ID}
		if pm.Card != nil {
			m.Brand = string(pm.Card.Brand)
			m.Last4 = pm.Card.Last4
		}
		methods = append(methods, m)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list payment methods: %w", wrapStripeErr(err))
	}
	return methods, nil
}

func (c *Client) ChargeOffSession(ctx context.Context, p processor.OffSessionCharge) (*processor.ChargeResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(toCents(p.Amount)),
		Currency:      stripe.String(p.Currency),
		Customer:      stripe.String(p.CustomerID),
		PaymentMethod: stripe.String(p.PaymentMethodID),
		Description:   stripe.String(p.Description),
		Confirm:       stripe.Bool(true),
		OffSession:    stripe.Bool(true),
	}
	params.Context = ctx
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := c.api.PaymentIntents.New(params)
	if err != nil {
		// The intent may exist even when confirmation failed; return its id so
		// the caller can mirror the outcome in the ledger.
		res := &processor.ChargeResult{}
		var sErr *stripe.Error
		if errors.As(err, &sErr) && sErr.PaymentIntent != nil {
			res.PaymentIntentID = sErr.PaymentIntent.ID
		}
		return res, fmt.Errorf("off-session charge: %w", wrapStripeErr(err))
	}
	return &processor.ChargeResult{
		PaymentIntentID: pi.ID,
		Succeeded:       pi.Status == stripe.PaymentIntentStatusSucceeded,
	}, nil
}

func (c *Client) GetAccount(ctx context.Context, accountID string) (*processor.Account, error) {
	params := &stripe.AccountParams{}
	params.Context = ctx

	acct, err := c.api.Accounts.GetByID(accountID, params)
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", accountID, wrapStripeErr(err))
	}
	return &processor.Account{
		ID:               acct.ID,
		DetailsSubmitted: acct.DetailsSubmitted,
		ChargesEnabled:   acct.ChargesEnabled,
		PayoutsEnabled:   acct.PayoutsEnabled,
	}, nil
}

// VerifyEvent checks the signature of a raw webhook payload against the
// secret of the endpoint that received it. The payload must be the unparsed
// request body.
func (c *Client) VerifyEvent(payload []byte, sigHeader string, endpoint processor.Endpoint) (*processor.Event, error) {
	secret := c.webhookSecret
	if endpoint == processor.EndpointConnect {
		secret = c.connectWebhookSecret
	}

	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrSignatureInvalid, err)
	}

	out := &processor.Event{
		ID:      event.ID,
		Type:    string(event.Type),
		Account: event.Account,
	}
	if event.Data != nil {
		out.Data = event.Data.Raw
	}
	return out, nil
}

// wrapStripeErr maps processor error codes the orchestrators branch on to
// apperr sentinels, keeping the stripe detail in the chain.
func wrapStripeErr(err error) error {
	var sErr *stripe.Error
	if errors.As(err, &sErr) {
		switch sErr.Code {
		case stripe.ErrorCodeAuthenticationRequired:
			return fmt.Errorf("%w: %v", apperr.ErrAuthenticationRequired, err)
		case stripe.ErrorCodeMissing, stripe.ErrorCodeResourceMissing:
			return fmt.Errorf("%w: %v", apperr.ErrNotFound, err)
		}
	}
	return err
}
