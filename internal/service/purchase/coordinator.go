// Package purchase turns a cart into a ticket against live stock.
//
// Each line is fulfilled on its own through the product store's conditional
// decrement. Lines that cannot be fulfilled stay in the cart; lines that were
// fulfilled are never rolled back.
package purchase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"analogue-shop/internal/domain"
	"analogue-shop/internal/logging"
	"analogue-shop/internal/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const useCaseName = "purchase"

// Reasons a line was left in the cart.
const (
	ReasonInsufficientStock  = "insufficient_stock"
	ReasonProductUnavailable = "product_unavailable"
	ReasonStoreError         = "store_error"
	ReasonCancelled          = "cancelled"
)

type cartStore interface {
	Get(ctx context.Context, id string) (*domain.Cart, error)
	SetItems(ctx context.Context, id string, lines []domain.LineItem) (*domain.Cart, error)
}

type cartReader interface {
	Get(ctx context.Context, id string) (*domain.Cart, error)
}

type productStore interface {
	DecrementStock(ctx context.Context, id string, qty int) (*domain.Product, bool, error)
}

type ticketIssuer interface {
	Issue(ctx context.Context, purchaser string, amountCents int64) (*domain.Ticket, error)
}

// Unfulfilled is a cart line that was not purchased and the reason why.
type Unfulfilled struct {
	domain.LineItem
	Reason string `json:"reason"`
}

// Result is the outcome of one purchase. The cart holds exactly the
// NotPurchased lines afterwards.
type Result struct {
	Ticket       *domain.Ticket    `json:"ticket"`
	Purchased    []domain.LineItem `json:"purchasedItems"`
	NotPurchased []Unfulfilled     `json:"notPurchasedItems"`
}

// Residual returns the lines that remain in the cart.
func (r *Result) Residual() []domain.LineItem {
	out := make([]domain.LineItem, 0, len(r.NotPurchased))
	for _, u := range r.NotPurchased {
		out = append(out, u.LineItem)
	}
	return out
}

type Coordinator struct {
	carts    cartStore
	source   cartReader
	products productStore
	tickets  ticketIssuer
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

type Option func(*Coordinator)

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithCartSource makes Purchase load the cart from r instead of the cart store.
// Use it to bypass a read cache so a purchase never starts from a stale cart.
func WithCartSource(r cartReader) Option {
	return func(c *Coordinator) { c.source = r }
}

func WithTracer(t trace.Tracer) Option {
	return func(c *Coordinator) { c.tracer = t }
}

func New(carts cartStore, products productStore, tickets ticketIssuer, opts ...Option) *Coordinator {
	c := &Coordinator{
		carts:    carts,
		products: products,
		tickets:  tickets,
		tracer:   otel.Tracer("analogue-shop/purchase"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Purchase fulfils every line of the cart it can, issues one ticket for the
// fulfilled total and rewrites the cart to the unfulfilled lines.
//
// It fails without side effects when the cart does not exist. Once any stock
// has been taken, the ticket and the cart rewrite run to completion even if ctx
// is cancelled; lines not yet attempted at cancellation stay in the cart.
//
// If the cart rewrite fails after the ticket was issued, the result is
// returned together with the error so the receipt is not lost.
func (c *Coordinator) Purchase(ctx context.Context, cartID, userID string) (res *Result, err error) {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, useCaseName, trace.WithAttributes(
		attribute.String("cart.id", cartID),
		attribute.String("user.id", userID),
	))
	defer func() {
		outcome := metrics.OutcomeSuccess
		if err != nil {
			outcome = metrics.OutcomeError
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		elapsed := time.Since(start)
		c.metrics.ObserveUseCase(useCaseName, outcome, elapsed)

		fields := []zap.Field{
			zap.String("use_case", useCaseName),
			zap.String("outcome", outcome),
			zap.String("cart_id", cartID),
			zap.Float64("latency_seconds", elapsed.Seconds()),
			zap.String("trace_id", span.SpanContext().TraceID().String()),
		}
		if res != nil {
			fields = append(fields,
				zap.Int("purchased", len(res.Purchased)),
				zap.Int("not_purchased", len(res.NotPurchased)),
			)
			if res.Ticket != nil {
				fields = append(fields, zap.String("ticket_code", res.Ticket.Code), zap.Int64("amount_cents", res.Ticket.AmountCents))
			}
		}
		logger := logging.FromContext(ctx)
		if err != nil {
			logger.Warn("use_case_done", append(fields, zap.Error(err))...)
			return
		}
		logger.Info("use_case_done", fields...)
	}()

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.Invalid("purchaser required")
	}

	var load cartReader = c.carts
	if c.source != nil {
		load = c.source
	}
	cart, err := load.Get(ctx, cartID)
	if err != nil {
		return nil, fmt.Errorf("cart %s: %w", cartID, err)
	}

	res = &Result{Purchased: []domain.LineItem{}, NotPurchased: []Unfulfilled{}}
	var total int64
	for i, line := range cart.Lines {
		if ctx.Err() != nil {
			for _, rest := range cart.Lines[i:] {
				res.NotPurchased = append(res.NotPurchased, Unfulfilled{LineItem: rest, Reason: ReasonCancelled})
			}
			break
		}
		amount, reason := c.fulfil(ctx, line)
		if reason != "" {
			res.NotPurchased = append(res.NotPurchased, Unfulfilled{LineItem: line, Reason: reason})
			continue
		}
		res.Purchased = append(res.Purchased, line)
		total += amount
	}

	// committed stock must be reflected in the ticket and the cart
	commitCtx := context.WithoutCancel(ctx)

	res.Ticket, err = c.tickets.Issue(commitCtx, userID, total)
	if err != nil {
		logging.FromContext(ctx).Error("ticket not issued after stock was taken",
			zap.String("cart_id", cartID),
			zap.Any("purchased", res.Purchased),
			zap.Int64("amount_cents", total),
			zap.Error(err),
		)
		return nil, fmt.Errorf("issue ticket: %w", err)
	}
	c.metrics.ObservePurchase(len(res.Purchased), len(res.NotPurchased), total)

	if _, err = c.carts.SetItems(commitCtx, cartID, res.Residual()); err != nil {
		return res, fmt.Errorf("rewrite cart %s: %w", cartID, err)
	}
	return res, nil
}

// fulfil takes stock for one line. It returns the line amount, priced at the
// product state the stock was taken from, or the reason the line stays in the
// cart.
func (c *Coordinator) fulfil(ctx context.Context, line domain.LineItem) (amount int64, reason string) {
	ctx, span := c.tracer.Start(ctx, "purchase.line", trace.WithAttributes(
		attribute.String("product.id", line.ProductID),
		attribute.Int("quantity", line.Quantity),
	))
	defer func() {
		span.SetAttributes(attribute.String("result", reasonOrPurchased(reason)))
		span.End()
	}()

	product, ok, err := c.products.DecrementStock(ctx, line.ProductID, line.Quantity)
	if err != nil {
		return 0, classify(ctx, line, err)
	}
	if !ok {
		return 0, ReasonInsufficientStock
	}
	return product.PriceCents * int64(line.Quantity), ""
}

func classify(ctx context.Context, line domain.LineItem, err error) string {
	if errors.Is(err, domain.ErrNotFound) {
		return ReasonProductUnavailable
	}
	logging.FromContext(ctx).Warn("line skipped on store error",
		zap.String("product_id", line.ProductID),
		zap.Int("quantity", line.Quantity),
		zap.Error(err),
	)
	return ReasonStoreError
}

func reasonOrPurchased(reason string) string {
	if reason == "" {
		return "purchased"
	}
	return reason
}
