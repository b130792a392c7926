package httpserver

import (
	"context"
	"errors"
	"time"

	"analogue-shop/internal/domain"
	"analogue-shop/internal/metrics"
	productsvc "analogue-shop/internal/service/product"
	"analogue-shop/internal/service/purchase"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type productService interface {
	Create(ctx context.Context, in productsvc.CreateInput) (*domain.Product, error)
	Get(ctx context.Context, id string) (*domain.Product, error)
	Update(ctx context.Context, id string, patch domain.ProductPatch) (*domain.Product, error)
	Delete(ctx context.Context, id string) error
	Restock(ctx context.Context, id string, qty int) (*domain.Product, error)
	List(ctx context.Context, in productsvc.ListInput) (*productsvc.Page, error)
}

type cartService interface {
	Create(ctx context.Context, lines []domain.LineItem) (*domain.Cart, error)
	Get(ctx context.Context, id string) (*domain.Cart, error)
	AddItem(ctx context.Context, cartID, productID string, qty int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, cartID, productID string) (*domain.Cart, error)
	SetItems(ctx context.Context, cartID string, lines []domain.LineItem) (*domain.Cart, error)
	UpdateQuantity(ctx context.Context, cartID, productID string, qty int) (*domain.Cart, error)
	Clear(ctx context.Context, cartID string) (*domain.Cart, error)
}

type ticketService interface {
	Get(ctx context.Context, id string) (*domain.Ticket, error)
	GetByCode(ctx context.Context, code string) (*domain.Ticket, error)
	ListByPurchaser(ctx context.Context, purchaser string) ([]domain.Ticket, error)
}

type purchaser interface {
	Purchase(ctx context.Context, cartID, userID string) (*purchase.Result, error)
}

// Deps are the collaborators the router needs.
type Deps struct {
	Products    productService
	Carts       cartService
	Tickets     ticketService
	Purchases   purchaser
	Metrics     *metrics.Metrics
	Ready       func(ctx context.Context) error
	JWTSecret   []byte
	CORSOrigins []string
}

// buildRouter wires routes for the API.
func buildRouter(logger *zap.Logger, deps Deps) (*gin.Engine, error) {
	if deps.Products == nil || deps.Carts == nil || deps.Tickets == nil || deps.Purchases == nil {
		return nil, errors.New("httpserver: product, cart, ticket and purchase services are required")
	}
	if len(deps.JWTSecret) == 0 {
		return nil, errors.New("httpserver: jwt secret is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(requestContext(logger, deps.Metrics), gin.Recovery(), cors.New(corsConfig(deps.CORSOrigins)))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(deps.Ready))
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	auth := requireUser(deps.JWTSecret)
	api := router.Group("/api")

	products := &productHandlers{svc: deps.Products}
	p := api.Group("/products")
	p.GET("", products.list)
	p.GET("/:pid", products.get)
	p.POST("", auth, products.create)
	p.PUT("/:pid", auth, products.update)
	p.DELETE("/:pid", auth, products.delete)
	p.POST("/:pid/restock", auth, products.restock)

	carts := &cartHandlers{svc: deps.Carts, purchases: deps.Purchases}
	c := api.Group("/carts")
	c.POST("", carts.create)
	c.GET("/:cid", carts.get)
	c.PUT("/:cid", carts.setItems)
	c.DELETE("/:cid", carts.clear)
	c.POST("/:cid/products/:pid", carts.addItem)
	c.PUT("/:cid/products/:pid", carts.updateQuantity)
	c.DELETE("/:cid/products/:pid", carts.removeItem)
	c.POST("/:cid/purchase", auth, carts.purchase)

	tickets := &ticketHandlers{svc: deps.Tickets}
	t := api.Group("/tickets")
	t.GET("", auth, tickets.listMine)
	t.GET("/code/:code", tickets.getByCode)
	t.GET("/:tid", tickets.get)

	return router, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", requestIDHeader},
		ExposeHeaders:    []string{requestIDHeader},
		AllowCredentials: len(origins) > 0,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
