// Package service exposes the cart and checkout operations as a JSON API for
// the static page.
package service

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flame5nz/flame5/internal/cart"
	"github.com/flame5nz/flame5/internal/checkout"
	"github.com/flame5nz/flame5/internal/models"
)

// Service wires the cart store and checkout wizard into HTTP handlers.
type Service struct {
	cart   *cart.Store
	wizard *checkout.Wizard
}

// New creates a Service over the given cart store and checkout wizard.
func New(cartStore *cart.Store, wizard *checkout.Wizard) *Service {
	return &Service{cart: cartStore, wizard: wizard}
}

// Register mounts all API routes on the given router.
func (s *Service) Register(r gin.IRouter) {
	api := r.Group("/api")

	api.GET("/cart", s.getCart)
	api.POST("/cart/items", s.addItem)
	api.POST("/cart/items/:name/quantity", s.changeQuantity)
	api.DELETE("/cart/items/:name", s.removeItem)
	api.POST("/cart/clear", s.clearCart)

	api.GET("/checkout", s.checkoutState)
	api.POST("/checkout/open", s.openCheckout)
	api.POST("/checkout/phone", s.submitPhone)
	api.POST("/checkout/verify", s.verifyCode)
	api.POST("/checkout/resend", s.resendCode)
	api.POST("/checkout/confirm", s.confirmOrder)
	api.POST("/checkout/close", s.closeCheckout)
}

// cartView renders a snapshot for the page: unit prices and line totals to
// two places, badge count, and the empty flag driving the empty-cart message.
func cartView(snap cart.Snapshot) gin.H {
	items := make([]gin.H, len(snap.Lines))
	for i, line := range snap.Lines {
		items[i] = gin.H{
			"name":      line.Name,
			"category":  line.Category,
			"price":     line.Price.StringFixed(2),
			"quantity":  line.Quantity,
			"lineTotal": models.NewMoney(line.LineTotal()).Display(),
		}
	}
	return gin.H{
		"items": items,
		"total": models.NewMoney(snap.Total).Display(),
		"count": snap.Count,
		"empty": len(snap.Lines) == 0,
	}
}

// respondError maps flow errors to stable codes and customer-facing messages.
// Unclassified provider errors pass through verbatim; the provider's own
// message is the fallback.
func respondError(c *gin.Context, err error) {
	status, code, message := http.StatusInternalServerError, "error", err.Error()

	switch {
	case errors.Is(err, checkout.ErrPhoneTooShort):
		status, code, message = http.StatusBadRequest, "invalid-input", "Please enter a valid phone number"
	case errors.Is(err, checkout.ErrCodeLength):
		status, code, message = http.StatusBadRequest, "invalid-input", "Please enter a valid 6-digit code"
	case errors.Is(err, checkout.ErrEmptyCart):
		status, code, message = http.StatusBadRequest, "empty-cart", "Your cart is empty"
	case errors.Is(err, checkout.ErrInvalidNumber):
		status, code, message = http.StatusBadRequest, "invalid-number", "Failed to send verification code. Invalid phone number format."
	case errors.Is(err, checkout.ErrRateLimited):
		status, code, message = http.StatusTooManyRequests, "rate-limited", "Failed to send verification code. Too many attempts. Please try again later."
	case errors.Is(err, checkout.ErrBotCheckFailed):
		status, code, message = http.StatusBadRequest, "bot-check-failed", "Failed to send verification code. Security check failed. Please refresh and try again."
	case errors.Is(err, checkout.ErrInvalidCode):
		status, code, message = http.StatusBadRequest, "invalid-code", "Invalid verification code. Please try again."
	case errors.Is(err, checkout.ErrBusy):
		status, code = http.StatusConflict, "busy"
	case errors.Is(err, checkout.ErrNotOpen), errors.Is(err, checkout.ErrWrongStep):
		status, code = http.StatusConflict, "wrong-step"
	}

	c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"code": code, "error": message})
}
