package httpserver

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/failure"
	"storefront/internal/notify"
	"storefront/internal/session"
)

type handlers struct {
	deps   Deps
	logger *zap.Logger
}

// writeError answers with the status matching err and a message the user can read.
func (h *handlers) writeError(c *gin.Context, err error) {
	status, msg := http.StatusInternalServerError, "Something went wrong."
	switch {
	case errors.Is(err, domain.ErrAuthRequired):
		status, msg = http.StatusUnauthorized, failure.MsgSignIn
	case errors.Is(err, domain.ErrUnauthorized):
		status, msg = http.StatusUnauthorized, failure.MsgSessionExpired
	case errors.Is(err, domain.ErrForbidden):
		status, msg = http.StatusForbidden, "You do not have permission to do that."
	case errors.Is(err, session.ErrMissingCredentials):
		status, msg = http.StatusBadRequest, "Enter your email and password."
	case errors.Is(err, domain.ErrEmptyCart):
		status, msg = http.StatusConflict, "Your cart is empty."
	case errors.Is(err, domain.ErrMutationPending):
		status, msg = http.StatusConflict, "Wait for the cart to finish updating."
	case errors.Is(err, domain.ErrStaleResult):
		status, msg = http.StatusConflict, "The cart changed. Please review it."
	case errors.Is(err, domain.ErrLineNotFound):
		status, msg = http.StatusNotFound, "That item is no longer in your cart."
	case errors.Is(err, domain.ErrNotFound):
		status, msg = http.StatusNotFound, "Not found."
	default:
		switch failure.Classify(err) {
		case failure.KindValidation:
			status = failure.As(err).Status
			msg = failure.Message(err, "The request was rejected.")
		case failure.KindNetwork:
			status, msg = http.StatusBadGateway, failure.MsgUnavailable
		}
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Authenticated bool   `json:"authenticated"`
	IssuedAt      string `json:"issuedAt,omitempty"`
}

func toSessionResponse(s domain.Session) sessionResponse {
	resp := sessionResponse{Authenticated: s.Authenticated()}
	if resp.Authenticated {
		resp.IssuedAt = s.IssuedAt.Format(time.RFC3339)
	}
	return resp
}

func (h *handlers) sessionState(c *gin.Context) {
	c.JSON(http.StatusOK, toSessionResponse(h.deps.Session.Current()))
}

func (h *handlers) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	s, err := h.deps.Session.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.authError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(s))
}

func (h *handlers) register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	s, err := h.deps.Session.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.authError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toSessionResponse(s))
}

// authError reports a rejected sign-in. The remote 401 there means bad credentials, not an
// expired session.
func (h *handlers) authError(c *gin.Context, err error) {
	if fe := failure.As(err); fe != nil && fe.Status >= 400 && fe.Status < 500 {
		msg := fe.Detail
		if msg == "" {
			msg = "Sign-in failed."
		}
		c.AbortWithStatusJSON(fe.Status, gin.H{"error": msg})
		return
	}
	h.writeError(c, err)
}

func (h *handlers) logout(c *gin.Context) {
	h.deps.Session.Logout(c.Request.Context())
	c.Status(http.StatusNoContent)
}

func (h *handlers) listProducts(c *gin.Context) {
	products, err := h.deps.Catalog.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *handlers) searchProducts(c *gin.Context) {
	products, err := h.deps.Catalog.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *handlers) getProduct(c *gin.Context) {
	p, err := h.deps.Catalog.Get(c.Request.Context(), domain.ID(c.Param("id")))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handlers) deleteProduct(c *gin.Context) {
	if err := h.deps.Catalog.Delete(c.Request.Context(), domain.ID(c.Param("id"))); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) getCart(c *gin.Context) {
	v, err := h.deps.Cart.LoadCart(c.Request.Context())
	if err != nil && !errors.Is(err, domain.ErrUnauthorized) && !errors.Is(err, domain.ErrStaleResult) {
		h.logger.Info("load cart", zap.Error(err))
	}
	c.JSON(http.StatusOK, v)
}

type addItemRequest struct {
	ProductID domain.ID `json:"productId" binding:"required"`
	Quantity  int       `json:"quantity"`
}

func (h *handlers) addItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.deps.Cart.AddItem(c.Request.Context(), req.ProductID, req.Quantity); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type setQuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

func (h *handlers) setQuantity(c *gin.Context) {
	var req setQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	v, err := h.deps.Cart.UpdateQuantity(c.Request.Context(), domain.ID(c.Param("id")), *req.Quantity)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *handlers) adjust(delta int) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, err := h.deps.Cart.Adjust(c.Request.Context(), domain.ID(c.Param("id")), delta)
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, v)
	}
}

type paymentResponse struct {
	Amount     decimal.Decimal `json:"amount"`
	TotalItems int             `json:"totalItems"`
}

// openCheckout reports the amount to pay for the current cart without placing the order.
func (h *handlers) openCheckout(c *gin.Context) {
	if !h.deps.Session.Current().Authenticated() {
		h.writeError(c, domain.ErrAuthRequired)
		return
	}
	v := h.deps.Cart.View()
	if len(v.Pending) > 0 {
		h.writeError(c, domain.ErrMutationPending)
		return
	}
	if !v.TotalPrice.IsPositive() {
		h.writeError(c, domain.ErrEmptyCart)
		return
	}
	c.JSON(http.StatusOK, paymentResponse{Amount: v.TotalPrice, TotalItems: v.TotalItems})
}

func (h *handlers) checkout(c *gin.Context) {
	order, err := h.deps.Cart.Checkout(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *handlers) listOrders(c *gin.Context) {
	orders, err := h.deps.Cart.Orders(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *handlers) drainNotifications(c *gin.Context) {
	items := []notify.Notification{}
	if h.deps.Feed != nil {
		items = append(items, h.deps.Feed.Drain()...)
	}
	c.JSON(http.StatusOK, items)
}

func (h *handlers) dismissNotification(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return
	}
	if h.deps.Feed == nil || !h.deps.Feed.Dismiss(id) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "notification not found"})
		return
	}
	c.Status(http.StatusNoContent)
}
