// Package fakeapi is an in-memory implementation of the commerce API the storefront talks
// to. It backs local development (cmd/mockapi) and the end-to-end tests.
package fakeapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/httplog"
)

const accountKey = "account_id"

type Options struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Logger     *zap.Logger
}

type Server struct {
	store      *Store
	accounts   *accounts
	tokens     *tokenManager
	accessTTL  time.Duration
	refreshTTL time.Duration
	logger     *zap.Logger
	router     *gin.Engine
}

func New(store *Store, opts Options) *Server {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 30 * time.Minute
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 7 * 24 * time.Hour
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	s := &Server{
		store:      store,
		accounts:   newAccounts(),
		tokens:     newTokenManager(time.Now),
		accessTTL:  opts.AccessTTL,
		refreshTTL: opts.RefreshTTL,
		logger:     opts.Logger,
	}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Store() *Store {
	return s.store
}

// AddAccount registers an account directly, bypassing the HTTP API. It is how admin
// accounts are created.
func (s *Server) AddAccount(email, password, role string) error {
	_, err := s.accounts.Register(email, password, role)
	return err
}

// ExpireSessions expires every issued token, as if the access TTL had elapsed.
func (s *Server) ExpireSessions() {
	s.tokens.ExpireAll()
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(httplog.Middleware(s.logger), gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	auth := router.Group("/auth")
	auth.POST("/register", s.register)
	auth.POST("/login", s.login)

	products := router.Group("/products")
	products.GET("/", s.listProducts)
	products.GET("/search", s.searchProducts)
	products.GET("/:id", s.getProduct)

	cart := router.Group("/cart", s.requireAccount)
	cart.GET("/", s.getCart)
	cart.POST("/items", s.addItem)
	cart.PUT("/items/:id", s.updateItem)

	orders := router.Group("/orders", s.requireAccount)
	orders.POST("/", s.createOrder)
	orders.GET("/", s.listOrders)

	admin := router.Group("/admin", s.requireAccount, s.requireAdmin)
	admin.GET("/products", s.listProducts)
	admin.DELETE("/products/:id", s.deleteProduct)

	return router
}

func (s *Server) fail(c *gin.Context, err error) {
	status, detail := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": []gin.H{{"msg": err.Error()}}})
}

func (s *Server) requireAccount(c *gin.Context) {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Not authenticated"})
		return
	}
	accountID, reason := s.tokens.Validate(strings.TrimSpace(token))
	if reason != "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": reason})
		return
	}
	c.Set(accountKey, accountID)
	c.Next()
}

func (s *Server) requireAdmin(c *gin.Context) {
	acc, ok := s.accounts.Get(c.GetInt(accountKey))
	if !ok || acc.Role != roleAdmin {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"detail": "Not enough permissions"})
		return
	}
	c.Next()
}

type credentialsRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	Role     string `json:"role"`
}

type userResponse struct {
	ID    int    `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (s *Server) register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Role == roleAdmin {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"detail": "Not enough permissions"})
		return
	}
	acc, err := s.accounts.Register(req.Email, req.Password, req.Role)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, userResponse{ID: acc.ID, Email: acc.Email, Role: acc.Role})
}

// login accepts credentials as a JSON body or as query parameters.
func (s *Server) login(c *gin.Context) {
	var req credentialsRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	} else if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, err)
		return
	}
	acc, err := s.accounts.Authenticate(req.Email, req.Password)
	if err != nil {
		s.fail(c, err)
		return
	}
	access, err := s.tokens.Issue(acc.ID, kindAccess, s.accessTTL)
	if err != nil {
		s.fail(c, err)
		return
	}
	refresh, err := s.tokens.Issue(acc.ID, kindRefresh, s.refreshTTL)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  access,
		"refresh_token": refresh,
		"token_type":    "bearer",
	})
}

type productResponse struct {
	ID          domain.ID       `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	IsActive    bool            `json:"is_active"`
	ImageURL    string          `json:"image_url,omitempty"`
}

func toProductResponse(p domain.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.Decimal,
		Quantity:    p.Stock,
		IsActive:    true,
		ImageURL:    p.Image,
	}
}

func toProductResponses(in []domain.Product) []productResponse {
	out := make([]productResponse, 0, len(in))
	for _, p := range in {
		out = append(out, toProductResponse(p))
	}
	return out
}

func (s *Server) listProducts(c *gin.Context) {
	c.JSON(http.StatusOK, toProductResponses(s.store.ListProducts()))
}

func (s *Server) searchProducts(c *gin.Context) {
	q := c.Query("q")
	if len([]rune(strings.TrimSpace(q))) < 2 {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": []gin.H{{"msg": "String should have at least 2 characters"}}})
		return
	}
	c.JSON(http.StatusOK, toProductResponses(s.store.SearchProducts(q)))
}

func (s *Server) getProduct(c *gin.Context) {
	p, err := s.store.Product(domain.ID(c.Param("id")))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toProductResponse(p))
}

func (s *Server) deleteProduct(c *gin.Context) {
	id := domain.ID(c.Param("id"))
	if err := s.store.DeleteProduct(id); err != nil {
		s.fail(c, err)
		return
	}
	s.logger.Info("product deleted", zap.String("product_id", id.String()))
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

type cartItemResponse struct {
	ID        domain.ID        `json:"id"`
	ProductID domain.ID        `json:"product_id"`
	Quantity  int              `json:"quantity"`
	Price     decimal.Decimal  `json:"price"`
	Product   *productResponse `json:"product,omitempty"`
}

type cartResponse struct {
	ID    int                `json:"id"`
	Items []cartItemResponse `json:"items"`
}

func (s *Server) cartResponse(accountID int) cartResponse {
	lines := s.store.Cart(accountID)
	resp := cartResponse{ID: accountID, Items: make([]cartItemResponse, 0, len(lines))}
	for _, l := range lines {
		item := cartItemResponse{
			ID:        l.ID,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Price:     l.Price,
		}
		if l.Product.ID != "" {
			p := toProductResponse(l.Product)
			item.Product = &p
		}
		resp.Items = append(resp.Items, item)
	}
	return resp
}

func (s *Server) getCart(c *gin.Context) {
	c.JSON(http.StatusOK, s.cartResponse(c.GetInt(accountKey)))
}

type addItemRequest struct {
	ProductID domain.ID `json:"product_id" binding:"required"`
	Quantity  int       `json:"quantity"`
}

func (s *Server) addItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	accountID := c.GetInt(accountKey)
	if err := s.store.AddItem(accountID, req.ProductID, req.Quantity); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.cartResponse(accountID))
}

type updateItemRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

func (s *Server) updateItem(c *gin.Context) {
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	accountID := c.GetInt(accountKey)
	itemID := domain.ID(c.Param("id"))
	removed, err := s.store.UpdateItem(accountID, itemID, *req.Quantity)
	if err != nil {
		s.fail(c, err)
		return
	}
	if removed {
		c.JSON(http.StatusOK, gin.H{"detail": "Item removed"})
		return
	}
	for _, it := range s.cartResponse(accountID).Items {
		if it.ID == itemID {
			c.JSON(http.StatusOK, it)
			return
		}
	}
	s.fail(c, ErrItemNotFound)
}

type orderItemResponse struct {
	ProductID domain.ID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type orderResponse struct {
	ID         int                 `json:"id"`
	Status     string              `json:"status"`
	CreatedAt  time.Time           `json:"created_at"`
	TotalPrice decimal.Decimal     `json:"total_price"`
	Items      []orderItemResponse `json:"items"`
}

func toOrderResponse(o order) orderResponse {
	resp := orderResponse{
		ID:         o.ID,
		Status:     o.Status,
		CreatedAt:  o.CreatedAt,
		TotalPrice: o.total(),
		Items:      make([]orderItemResponse, 0, len(o.Items)),
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, orderItemResponse{ProductID: it.ProductID, Quantity: it.Quantity, Price: it.Price})
	}
	return resp
}

func (s *Server) createOrder(c *gin.Context) {
	o, err := s.store.CreateOrder(c.GetInt(accountKey))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(o))
}

func (s *Server) listOrders(c *gin.Context) {
	orders := s.store.Orders(c.GetInt(accountKey))
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	c.JSON(http.StatusOK, out)
}
