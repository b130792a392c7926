package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type ticketHandlers struct {
	svc ticketService
}

func (h *ticketHandlers) get(c *gin.Context) {
	t, err := h.svc.Get(c.Request.Context(), c.Param("tid"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *ticketHandlers) getByCode(c *gin.Context) {
	t, err := h.svc.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *ticketHandlers) listMine(c *gin.Context) {
	tickets, err := h.svc.ListByPurchaser(c.Request.Context(), c.GetString(userIDKey))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickets": tickets})
}
