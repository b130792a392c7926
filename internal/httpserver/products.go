package httpserver

import (
	"net/http"
	"net/url"
	"strconv"

	"analogue-shop/internal/domain"
	productsvc "analogue-shop/internal/service/product"
	"github.com/gin-gonic/gin"
)

type productHandlers struct {
	svc productService
}

type productListResponse struct {
	Status string `json:"status"`
	*productsvc.Page
	PrevLink *string `json:"prevLink"`
	NextLink *string `json:"nextLink"`
}

type quantityRequest struct {
	Quantity *int `json:"quantity"`
}

func (h *productHandlers) list(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		badRequest(c, "limit must be a number")
		return
	}
	page, err := queryInt(c, "page")
	if err != nil {
		badRequest(c, "page must be a number")
		return
	}

	res, err := h.svc.List(c.Request.Context(), productsvc.ListInput{
		Limit:    limit,
		Page:     page,
		Sort:     c.Query("sort"),
		Category: c.Query("query"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	out := productListResponse{Status: "success", Page: res}
	if res.PrevPage != nil {
		link := pageLink(c.Request.URL, *res.PrevPage)
		out.PrevLink = &link
	}
	if res.NextPage != nil {
		link := pageLink(c.Request.URL, *res.NextPage)
		out.NextLink = &link
	}
	c.JSON(http.StatusOK, out)
}

func (h *productHandlers) get(c *gin.Context) {
	p, err := h.svc.Get(c.Request.Context(), c.Param("pid"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *productHandlers) create(c *gin.Context) {
	var in productsvc.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid product body")
		return
	}
	p, err := h.svc.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *productHandlers) update(c *gin.Context) {
	var patch domain.ProductPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "invalid product body")
		return
	}
	p, err := h.svc.Update(c.Request.Context(), c.Param("pid"), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *productHandlers) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("pid")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *productHandlers) restock(c *gin.Context) {
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Quantity == nil {
		badRequest(c, "quantity required")
		return
	}
	p, err := h.svc.Restock(c.Request.Context(), c.Param("pid"), *req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

// pageLink returns the request path and query with page replaced.
func pageLink(u *url.URL, page int) string {
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	return u.Path + "?" + q.Encode()
}
