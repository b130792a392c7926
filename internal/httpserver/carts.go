package httpserver

import (
	"errors"
	"io"
	"net/http"

	"analogue-shop/internal/domain"
	"github.com/gin-gonic/gin"
)

type cartHandlers struct {
	svc       cartService
	purchases purchaser
}

type linesRequest struct {
	Lines []domain.LineItem `json:"lines"`
}

func (h *cartHandlers) create(c *gin.Context) {
	var req linesRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "invalid cart body")
		return
	}
	cart, err := h.svc.Create(c.Request.Context(), req.Lines)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cart)
}

func (h *cartHandlers) get(c *gin.Context) {
	cart, err := h.svc.Get(c.Request.Context(), c.Param("cid"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *cartHandlers) setItems(c *gin.Context) {
	var req linesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid cart body")
		return
	}
	cart, err := h.svc.SetItems(c.Request.Context(), c.Param("cid"), req.Lines)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *cartHandlers) clear(c *gin.Context) {
	cart, err := h.svc.Clear(c.Request.Context(), c.Param("cid"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// addItem adds one unit unless the body names a quantity.
func (h *cartHandlers) addItem(c *gin.Context) {
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "invalid quantity body")
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	cart, err := h.svc.AddItem(c.Request.Context(), c.Param("cid"), c.Param("pid"), qty)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *cartHandlers) updateQuantity(c *gin.Context) {
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Quantity == nil {
		badRequest(c, "quantity required")
		return
	}
	cart, err := h.svc.UpdateQuantity(c.Request.Context(), c.Param("cid"), c.Param("pid"), *req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *cartHandlers) removeItem(c *gin.Context) {
	cart, err := h.svc.RemoveItem(c.Request.Context(), c.Param("cid"), c.Param("pid"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *cartHandlers) purchase(c *gin.Context) {
	res, err := h.purchases.Purchase(c.Request.Context(), c.Param("cid"), c.GetString(userIDKey))
	if err != nil {
		if res != nil {
			// the ticket exists; the cart could not be rewritten
			c.JSON(statusFor(err), gin.H{"error": "purchase recorded but cart was not updated", "result": res})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
