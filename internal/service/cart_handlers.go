package service

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type addItemInput struct {
	Name     string          `json:"name" binding:"required"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
}

type quantityInput struct {
	Delta int `json:"delta" binding:"required"`
}

type clearInput struct {
	Confirmed bool `json:"confirmed"`
}

// GET /api/cart
func (s *Service) getCart(c *gin.Context) {
	if err := s.cart.Reload(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cartView(s.cart.Snapshot()))
}

// POST /api/cart/items
func (s *Service) addItem(c *gin.Context) {
	var input addItemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "invalid-input", "error": "Invalid input: " + err.Error()})
		return
	}

	ctx := c.Request.Context()
	if err := s.cart.AddItem(ctx, input.Name, input.Price, input.Category); err != nil {
		respondError(c, err)
		return
	}

	slog.Info("Item added to cart", "name", input.Name)
	c.JSON(http.StatusOK, cartView(s.cart.Snapshot()))
}

// POST /api/cart/items/:name/quantity
func (s *Service) changeQuantity(c *gin.Context) {
	var input quantityInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "invalid-input", "error": "Invalid input: " + err.Error()})
		return
	}

	if err := s.cart.SetQuantityDelta(c.Request.Context(), c.Param("name"), input.Delta); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, cartView(s.cart.Snapshot()))
}

// DELETE /api/cart/items/:name
func (s *Service) removeItem(c *gin.Context) {
	if err := s.cart.RemoveItem(c.Request.Context(), c.Param("name")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cartView(s.cart.Snapshot()))
}

// POST /api/cart/clear
func (s *Service) clearCart(c *gin.Context) {
	var input clearInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "invalid-input", "error": "Invalid input: " + err.Error()})
		return
	}

	cleared, err := s.cart.Clear(c.Request.Context(), input.Confirmed)
	if err != nil {
		respondError(c, err)
		return
	}
	if cleared {
		slog.Info("Cart cleared")
	}

	view := cartView(s.cart.Snapshot())
	view["cleared"] = cleared
	c.JSON(http.StatusOK, view)
}
