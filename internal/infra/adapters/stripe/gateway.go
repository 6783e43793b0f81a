// File: internal/infra/adapters/stripe/gateway.go
package stripe

import (
	"context"
	"errors"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"

	"stripe-invoice-bridge/internal/domain"
	"stripe-invoice-bridge/internal/domain/model"
	"stripe-invoice-bridge/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*Gateway)(nil)

// Gateway implements adapter.PaymentGateway on the Stripe API. Payments are
// PaymentIntents, the checkout context is the Checkout Session that created
// the intent, and the metadata bag is the intent's metadata.
type Gateway struct {
	sc *client.API
}

func NewGateway(secretKey string) (*Gateway, error) {
	if secretKey == "" {
		return nil, errors.New("stripe secret key empty")
	}
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &Gateway{sc: sc}, nil
}

func (g *Gateway) Name() string { return "stripe" }

func (g *Gateway) GetPayment(ctx context.Context, paymentID string) (*model.PaymentEvent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := g.sc.PaymentIntents.Get(paymentID, params)
	if err != nil {
		return nil, mapErr(err)
	}
	return &model.PaymentEvent{
		ID:        pi.ID,
		Amount:    pi.Amount,
		Currency:  string(pi.Currency),
		CreatedAt: time.Unix(pi.Created, 0).UTC(),
		Metadata:  pi.Metadata,
	}, nil
}

func (g *Gateway) GetRefund(ctx context.Context, refundID string) (*model.RefundEvent, error) {
	params := &stripe.RefundParams{}
	params.Context = ctx
	r, err := g.sc.Refunds.Get(refundID, params)
	if err != nil {
		return nil, mapErr(err)
	}
	if r.PaymentIntent == nil {
		return nil, errors.New("refund has no payment intent")
	}
	return &model.RefundEvent{
		ID:        r.ID,
		Amount:    r.Amount,
		Currency:  string(r.Currency),
		PaymentID: r.PaymentIntent.ID,
		CreatedAt: time.Unix(r.Created, 0).UTC(),
	}, nil
}

// GetCheckoutContext lists the checkout session for the intent and loads
// its line items and custom fields. (nil, nil) when no session exists:
// the payment came through an integration that never produces invoices.
func (g *Gateway) GetCheckoutContext(ctx context.Context, paymentID string) (*model.CheckoutContext, error) {
	lp := &stripe.CheckoutSessionListParams{PaymentIntent: stripe.String(paymentID)}
	lp.Context = ctx
	lp.Limit = stripe.Int64(1)
	iter := g.sc.CheckoutSessions.List(lp)
	if !iter.Next() {
		if err := iter.Err(); err != nil {
			return nil, mapErr(err)
		}
		return nil, nil
	}
	s := iter.CheckoutSession()

	out := &model.CheckoutContext{ID: s.ID}
	if s.CustomerDetails != nil {
		out.CustomerName = s.CustomerDetails.Name
		out.CustomerEmail = s.CustomerDetails.Email
	}
	for _, f := range s.CustomFields {
		cf := model.CustomField{Key: f.Key, Type: string(f.Type)}
		switch {
		case f.Numeric != nil && string(f.Type) == "numeric":
			cf.Value = f.Numeric.Value
		case f.Text != nil:
			cf.Value = f.Text.Value
		}
		out.CustomFields = append(out.CustomFields, cf)
	}

	ip := &stripe.CheckoutSessionListLineItemsParams{Session: stripe.String(s.ID)}
	ip.Context = ctx
	items := g.sc.CheckoutSessions.ListLineItems(ip)
	for items.Next() {
		li := items.LineItem()
		if li.Price == nil || li.Price.Product == nil {
			continue
		}
		qty := li.Quantity
		if qty <= 0 {
			qty = 1
		}
		out.Lines = append(out.Lines, model.PurchasedLine{
			ProductID:   li.Price.Product.ID,
			Quantity:    qty,
			AmountGross: li.AmountTotal,
		})
	}
	if err := items.Err(); err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}

func (g *Gateway) GetProduct(ctx context.Context, productID string) (*model.Product, error) {
	params := &stripe.ProductParams{}
	params.Context = ctx
	p, err := g.sc.Products.Get(productID, params)
	if err != nil {
		return nil, mapErr(err)
	}
	return &model.Product{
		ID:   p.ID,
		Name: p.Name,
		Tax: model.TaxConfig{
			VATRate:           p.Metadata["vat_rate"],
			VATType:           p.Metadata["vat_type"],
			ServiceFeePercent: p.Metadata["service_fee_percentage"],
			SheetName:         p.Metadata["sheet_name"],
		},
	}, nil
}

// SetMetadata merges the given keys into the intent's metadata; Stripe
// metadata updates are per-key merges, never whole-bag replaces.
func (g *Gateway) SetMetadata(ctx context.Context, paymentID string, meta map[string]string) error {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	for k, v := range meta {
		params.AddMetadata(k, v)
	}
	_, err := g.sc.PaymentIntents.Update(paymentID, params)
	return mapErr(err)
}

// mapErr translates Stripe errors into domain errors so the SDK does not
// leak into the engine.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var serr *stripe.Error
	if errors.As(err, &serr) && serr.HTTPStatusCode == 404 {
		return domain.ErrNotFound
	}
	return err
}
