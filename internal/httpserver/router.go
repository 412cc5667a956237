package httpserver

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"storefront/internal/cart"
	"storefront/internal/domain"
	"storefront/internal/httplog"
	"storefront/internal/notify"
)

type SessionService interface {
	Login(ctx context.Context, email, password string) (domain.Session, error)
	Register(ctx context.Context, email, password string) (domain.Session, error)
	Logout(ctx context.Context)
	Current() domain.Session
}

type CatalogService interface {
	List(ctx context.Context) ([]domain.Product, error)
	Search(ctx context.Context, query string) ([]domain.Product, error)
	Get(ctx context.Context, id domain.ID) (domain.Product, error)
	Delete(ctx context.Context, id domain.ID) error
}

type CartService interface {
	View() cart.View
	LoadCart(ctx context.Context) (cart.View, error)
	AddItem(ctx context.Context, productID domain.ID, quantity int) error
	UpdateQuantity(ctx context.Context, lineID domain.ID, quantity int) (cart.View, error)
	Adjust(ctx context.Context, lineID domain.ID, delta int) (cart.View, error)
	Checkout(ctx context.Context) (domain.Order, error)
	Orders(ctx context.Context) ([]domain.Order, error)
}

// Deps are the services the router dispatches to. DB is optional and only used for
// readiness.
type Deps struct {
	Session     SessionService
	Catalog     CatalogService
	Cart        CartService
	Feed        *notify.Feed
	DB          *pgxpool.Pool
	CORSOrigins []string
}

// buildRouter wires routes for the API.
func buildRouter(logger *zap.Logger, deps Deps) *gin.Engine {
	router := gin.New()
	router.Use(httplog.Middleware(logger), gin.Recovery())
	if len(deps.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     deps.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", httplog.RequestIDHeader},
			ExposeHeaders:    []string{httplog.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(deps.DB))

	h := &handlers{deps: deps, logger: logger}
	api := router.Group("/api")

	api.GET("/session", h.sessionState)
	api.POST("/session/login", h.login)
	api.POST("/session/register", h.register)
	api.POST("/session/logout", h.logout)

	api.GET("/products", h.listProducts)
	api.GET("/products/search", h.searchProducts)
	api.GET("/products/:id", h.getProduct)

	api.GET("/cart", h.getCart)
	api.POST("/cart/items", h.addItem)
	api.PUT("/cart/lines/:id", h.setQuantity)
	api.POST("/cart/lines/:id/increment", h.adjust(1))
	api.POST("/cart/lines/:id/decrement", h.adjust(-1))

	api.POST("/checkout/open", h.openCheckout)
	api.POST("/checkout", h.checkout)
	api.GET("/orders", h.listOrders)

	api.DELETE("/admin/products/:id", h.deleteProduct)

	api.GET("/notifications", h.drainNotifications)
	api.DELETE("/notifications/:id", h.dismissNotification)

	return router
}
