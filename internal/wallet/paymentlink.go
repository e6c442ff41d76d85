package wallet

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	stripe "github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/client"
)

// PurchaseIntent is a validated request to buy one token package.
type PurchaseIntent struct {
	Package TokenPackage
	Email   string
	UserID  string
}

// PaymentLink is the hosted checkout URL handed back to the client.
type PaymentLink struct {
	URL string `json:"url"`
}

// PaymentLinker creates a hosted payment page for a purchase intent.
type PaymentLinker interface {
	CreateLink(ctx context.Context, intent PurchaseIntent) (PaymentLink, error)
}

// StripeLinker creates Stripe Checkout sessions for token purchases.
type StripeLinker struct {
	api        *client.API
	successURL string
	cancelURL  string
}

func NewStripeLinker(apiKey, successURL, cancelURL string) (*StripeLinker, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("stripe api key is required")
	}
	api := &client.API{}
	api.Init(apiKey, nil)
	return &StripeLinker{
		api:        api,
		successURL: successURL,
		cancelURL:  cancelURL,
	}, nil
}

func (l *StripeLinker) CreateLink(ctx context.Context, intent PurchaseIntent) (PaymentLink, error) {
	pkg := intent.Package
	if pkg.EffectiveTokens != pkg.BaseTokens+pkg.BonusTokens {
		return PaymentLink{}, fmt.Errorf("package %q has inconsistent token totals", pkg.ID)
	}

	currency := pkg.Currency
	if currency == "" {
		currency = "usd"
	}

	params := &stripe.CheckoutSessionParams{
		Params: stripe.Params{
			Context: ctx,
		},
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("%s (%d OTT)", pkg.Name, pkg.EffectiveTokens)),
					},
					UnitAmount: stripe.Int64(priceToCents(pkg.Price)),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(l.successURL),
		CancelURL:  stripe.String(l.cancelURL),
	}
	if strings.TrimSpace(intent.Email) != "" {
		params.CustomerEmail = stripe.String(strings.TrimSpace(intent.Email))
	}
	params.AddMetadata("package_id", pkg.ID)
	params.AddMetadata("token_amount", strconv.FormatInt(pkg.EffectiveTokens, 10))
	if intent.UserID != "" {
		params.AddMetadata("user_id", intent.UserID)
	}

	sess, err := l.api.CheckoutSessions.New(params)
	if err != nil {
		return PaymentLink{}, fmt.Errorf("create checkout session: %w", err)
	}
	if sess.URL == "" {
		return PaymentLink{}, errors.New("checkout session has no hosted url")
	}
	return PaymentLink{URL: sess.URL}, nil
}

func priceToCents(price float64) int64 {
	return int64(math.Round(price * 100))
}

// MockLinker returns deterministic links for dev setups without Stripe keys.
type MockLinker struct{}

func (MockLinker) CreateLink(_ context.Context, intent PurchaseIntent) (PaymentLink, error) {
	return PaymentLink{
		URL: fmt.Sprintf("https://checkout.invalid/pay/%s?amount=%d", intent.Package.ID, priceToCents(intent.Package.Price)),
	}, nil
}
