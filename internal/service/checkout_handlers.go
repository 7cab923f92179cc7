package service

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flame5nz/flame5/internal/middleware"
)

type phoneInput struct {
	Phone string `json:"phone" binding:"required"`
}

type codeInput struct {
	Code string `json:"code" binding:"required"`
}

// GET /api/checkout
func (s *Service) checkoutState(c *gin.Context) {
	state, open := s.wizard.State()
	if !open {
		c.JSON(http.StatusOK, gin.H{"open": false})
		return
	}

	body := gin.H{"open": true, "step": state.Step.String()}
	if state.Phone != "" {
		body["phone"] = state.Phone
	}
	if state.OrderNumber != 0 {
		body["orderNumber"] = state.OrderNumber
	}
	c.JSON(http.StatusOK, body)
}

// POST /api/checkout/open
func (s *Service) openCheckout(c *gin.Context) {
	if err := s.wizard.Open(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"open": true, "step": "phone"})
}

// POST /api/checkout/phone
func (s *Service) submitPhone(c *gin.Context) {
	var input phoneInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "invalid-input", "error": "Invalid input: " + err.Error()})
		return
	}

	if err := s.wizard.SubmitPhone(c.Request.Context(), input.Phone); err != nil {
		respondError(c, err)
		return
	}

	state, _ := s.wizard.State()
	c.JSON(http.StatusOK, gin.H{
		"step":    "code",
		"phone":   state.Phone,
		"message": "Verification code sent to " + state.Phone,
	})
}

// POST /api/checkout/verify
func (s *Service) verifyCode(c *gin.Context) {
	var input codeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "invalid-input", "error": "Invalid input: " + err.Error()})
		return
	}

	ctx := c.Request.Context()
	if err := s.wizard.VerifyCode(ctx, input.Code); err != nil {
		respondError(c, err)
		return
	}

	summary, err := s.wizard.Summary(ctx)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"step":    "review",
		"summary": cartView(summary),
		"message": "Phone verified successfully!",
	})
}

// POST /api/checkout/resend
func (s *Service) resendCode(c *gin.Context) {
	if err := s.wizard.Resend(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"step": "code", "message": "New verification code sent!"})
}

// POST /api/checkout/confirm
func (s *Service) confirmOrder(c *gin.Context) {
	number, err := s.wizard.Confirm(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	middleware.OrdersPlaced.Inc()
	c.JSON(http.StatusOK, gin.H{
		"step":        "confirmed",
		"orderNumber": number,
		"message":     "Order placed successfully!",
	})
}

// POST /api/checkout/close
func (s *Service) closeCheckout(c *gin.Context) {
	if err := s.wizard.Close(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"open": false})
}
